package models

import (
	"time"

	"gorm.io/datatypes"
)

// Membership 用户-租户成员关系，(tenant_id, user_id) 唯一。
// 停用而不删除；每个用户最多一条 IsPrimary，由 MembershipService 在事务中维护。
type Membership struct {
	ID          uint                            `gorm:"primarykey" json:"id"`
	TenantID    uint                            `gorm:"not null;uniqueIndex:idx_tenant_user" json:"tenant_id"`
	UserID      uint                            `gorm:"not null;uniqueIndex:idx_tenant_user;index" json:"user_id"`
	Role        Role                            `gorm:"not null;size:32;index" json:"role"`
	Permissions datatypes.JSONSlice[Permission] `json:"permissions"`
	IsPrimary   bool                            `gorm:"not null;index" json:"is_primary"`
	IsActive    bool                            `gorm:"not null;index" json:"is_active"`
	CreatedAt   time.Time                       `json:"created_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`

	Tenant *Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
	User   *User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// TableName 指定表名
func (Membership) TableName() string {
	return "tenant_users"
}

// TenantPermissions 租户级自定义权限，空集合视为未设置
func (m *Membership) TenantPermissions() []Permission {
	if len(m.Permissions) == 0 {
		return nil
	}
	return []Permission(m.Permissions)
}
