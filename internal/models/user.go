package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// DefaultTimezone 新用户的默认时区；数据库时间统一为UTC，时区仅用于展示
const DefaultTimezone = "Australia/Sydney"

// User 用户。Role/Permissions 为未选择租户时使用的默认值。
type User struct {
	BaseModel
	Name         string                          `json:"name" gorm:"not null;size:100"`
	Email        string                          `json:"email" gorm:"unique;not null;size:100;index"`
	PasswordHash string                          `json:"-" gorm:"not null;size:255"`
	Role         Role                            `json:"role" gorm:"not null;size:32"`
	Permissions  datatypes.JSONSlice[Permission] `json:"permissions"`
	IsActive     bool                            `json:"is_active" gorm:"not null;index"`
	Timezone     string                          `json:"timezone" gorm:"size:64"`
	Avatar       *string                         `json:"avatar" gorm:"size:255"`
	LastLoginAt  *time.Time                      `json:"last_login_at"`

	// CurrentTenantID 当前操作的租户，只能通过切换租户修改
	CurrentTenantID *uint `json:"current_tenant_id" gorm:"index"`
	// PrimaryTenantID 主成员关系的缓存，由成员关系变更时重新计算，不作为权限依据
	PrimaryTenantID *uint `json:"primary_tenant_id" gorm:"index"`

	CurrentTenant *Tenant      `json:"current_tenant,omitempty" gorm:"foreignKey:CurrentTenantID"`
	Memberships   []Membership `json:"memberships,omitempty" gorm:"foreignKey:UserID"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// SetPassword 设置密码
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// DefaultPermissions 账户级自定义权限，空集合视为未设置
func (u *User) DefaultPermissions() []Permission {
	if len(u.Permissions) == 0 {
		return nil
	}
	return []Permission(u.Permissions)
}
