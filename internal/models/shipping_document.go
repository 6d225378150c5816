package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 文档状态
const (
	DocumentStatusPending   = "pending"
	DocumentStatusProcessed = "processed"
	DocumentStatusFailed    = "failed"
)

// ShippingDocument 上传的发货单（一个表格文件）
type ShippingDocument struct {
	BaseModel
	UserID          uint            `json:"user_id" gorm:"not null;index"`
	TenantID        *uint           `json:"tenant_id" gorm:"index"`
	OrderNumber     *string         `json:"order_number" gorm:"size:255;index"`
	EtaDate         *time.Time      `json:"eta_date" gorm:"type:date;index"`
	ContainerNumber *string         `json:"container_number" gorm:"size:255"`
	FileName        string          `json:"file_name" gorm:"not null;size:255"`
	FilePath        string          `json:"-" gorm:"not null;size:512"`
	FileType        string          `json:"file_type" gorm:"not null;size:10"`
	FileSize        int64           `json:"file_size"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2)"`
	TotalItems      int             `json:"total_items" gorm:"not null"`
	Notes           *string         `json:"notes" gorm:"type:text"`
	Status          string          `json:"status" gorm:"not null;size:20;index"`
	ProcessedAt     *time.Time      `json:"processed_at"`
	DeletedAt       gorm.DeletedAt  `json:"-" gorm:"index"`

	User  *User          `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Items []ShippingItem `json:"items,omitempty" gorm:"foreignKey:ShippingDocumentID;constraint:OnDelete:CASCADE"`
}

// TableName 表名
func (d *ShippingDocument) TableName() string {
	return "shipping_documents"
}

// IsOwnedBy 只有上传者可以查看、解析、下载和删除
func (d *ShippingDocument) IsOwnedBy(userID uint) bool {
	return d.UserID == userID
}

// FormattedFileSize 可读的文件大小
func (d *ShippingDocument) FormattedFileSize() string {
	switch {
	case d.FileSize >= 1048576:
		return fmt.Sprintf("%.2f MB", float64(d.FileSize)/1048576)
	case d.FileSize >= 1024:
		return fmt.Sprintf("%.2f KB", float64(d.FileSize)/1024)
	default:
		return fmt.Sprintf("%d bytes", d.FileSize)
	}
}
