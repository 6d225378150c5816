package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tenant 租户（客户组织）
type Tenant struct {
	BaseModel
	Name        string            `json:"name" gorm:"not null;size:100"`
	Code        string            `json:"code" gorm:"unique;not null;size:50;index"`
	Description string            `json:"description" gorm:"size:255"`
	Domain      string            `json:"domain" gorm:"size:255"`
	Logo        *string           `json:"logo" gorm:"size:255"`
	Settings    datatypes.JSONMap `json:"settings"`
	IsActive    bool              `json:"is_active" gorm:"not null;index"`
	DeletedAt   gorm.DeletedAt    `json:"-" gorm:"index"`

	MemberCount int `json:"member_count" gorm:"-"` // 活跃成员数，不存储
}

// TableName 表名
func (t *Tenant) TableName() string {
	return "tenants"
}
