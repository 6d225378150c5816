package models

import (
	"github.com/shopspring/decimal"
)

// ShippingItem 发货单中的一行，只在解析时创建
type ShippingItem struct {
	BaseModel
	ShippingDocumentID uint            `json:"shipping_document_id" gorm:"not null;index"`
	ModelNumber        string          `json:"model_number" gorm:"not null;size:255;index"`
	ProductName        *string         `json:"product_name" gorm:"size:255"`
	Category           *string         `json:"category" gorm:"size:255;index"`
	Quantity           int             `json:"quantity" gorm:"not null"`
	CartonQuantity     int             `json:"carton_quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price" gorm:"type:decimal(10,2)"`
	TotalPrice         decimal.Decimal `json:"total_price" gorm:"type:decimal(12,2)"`
	CartonNumber       *string         `json:"carton_number" gorm:"size:255"`
	GrossWeight        decimal.Decimal `json:"gross_weight" gorm:"type:decimal(10,2)"`
	NetWeight          decimal.Decimal `json:"net_weight" gorm:"type:decimal(10,2)"`
	Volume             decimal.Decimal `json:"volume" gorm:"type:decimal(10,3)"`
	Specifications     *string         `json:"specifications" gorm:"size:255"`
	Notes              *string         `json:"notes" gorm:"type:text"`
	RowNumber          int             `json:"row_number"`
}

// TableName 表名
func (i *ShippingItem) TableName() string {
	return "shipping_items"
}

// CalculateTotalPrice 数量和单价都不为零时重新计算总价
func (i *ShippingItem) CalculateTotalPrice() {
	if i.Quantity != 0 && !i.UnitPrice.IsZero() {
		i.TotalPrice = decimal.NewFromInt(int64(i.Quantity)).Mul(i.UnitPrice)
	}
}
