package services

import (
	"context"
	"time"

	"shipdesk/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const recentDocumentLimit = 10

// DocumentTotals 文档汇总
type DocumentTotals struct {
	Documents          int64           `json:"documents"`
	ProcessedDocuments int64           `json:"processed_documents"`
	PendingDocuments   int64           `json:"pending_documents"`
	Items              int64           `json:"items"`
	TotalValue         decimal.Decimal `json:"total_value"`
}

// ModelRollup 按型号汇总
type ModelRollup struct {
	ModelNumber      string          `json:"model_number"`
	ItemCount        int64           `json:"item_count"`
	TotalQuantity    int64           `json:"total_quantity"`
	TotalValue       decimal.Decimal `json:"total_value"`
	TotalGrossWeight decimal.Decimal `json:"total_gross_weight"`
	TotalVolume      decimal.Decimal `json:"total_volume"`
}

// CategoryRollup 按品类汇总
type CategoryRollup struct {
	Category      string          `json:"category"`
	ItemCount     int64           `json:"item_count"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// MonthlyTrend 当年按月汇总
type MonthlyTrend struct {
	Month       int             `json:"month"`
	Documents   int64           `json:"documents"`
	TotalItems  int64           `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// AnalyticsSummary 分析页面数据
type AnalyticsSummary struct {
	Totals          DocumentTotals             `json:"totals"`
	ByModel         []ModelRollup              `json:"by_model"`
	ByCategory      []CategoryRollup           `json:"by_category"`
	RecentDocuments []*models.ShippingDocument `json:"recent_documents"`
	MonthlyTrend    []MonthlyTrend             `json:"monthly_trend"`
}

// AnalyticsService 基于已解析的发货明细计算统计数据，每次请求重新计算
type AnalyticsService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db, now: time.Now}
}

// Summary 汇总当前用户（及当前租户）已解析的文档
func (s *AnalyticsService) Summary(ctx context.Context, scope *Scope) (*AnalyticsSummary, error) {
	summary := &AnalyticsSummary{}
	var err error

	if summary.Totals, err = s.Totals(ctx, scope); err != nil {
		return nil, err
	}
	if summary.ByModel, err = s.ByModel(ctx, scope); err != nil {
		return nil, err
	}
	if summary.ByCategory, err = s.ByCategory(ctx, scope); err != nil {
		return nil, err
	}
	if summary.RecentDocuments, err = s.RecentDocuments(ctx, scope); err != nil {
		return nil, err
	}
	if summary.MonthlyTrend, err = s.MonthlyTrend(ctx, scope); err != nil {
		return nil, err
	}
	return summary, nil
}

// Totals 文档数量与金额
func (s *AnalyticsService) Totals(ctx context.Context, scope *Scope) (DocumentTotals, error) {
	var totals DocumentTotals
	db := s.db.WithContext(ctx)

	if err := ownedDocuments(db, scope).Count(&totals.Documents).Error; err != nil {
		return totals, err
	}
	if err := ownedDocuments(db, scope).Where("status = ?", models.DocumentStatusPending).
		Count(&totals.PendingDocuments).Error; err != nil {
		return totals, err
	}

	var row struct {
		Documents  int64
		Items      int64
		TotalValue decimal.NullDecimal
	}
	err := ownedDocuments(db, scope).
		Select("COUNT(*) AS documents, COALESCE(SUM(total_items), 0) AS items, SUM(total_amount) AS total_value").
		Where("status = ?", models.DocumentStatusProcessed).
		Scan(&row).Error
	if err != nil {
		return totals, err
	}
	totals.ProcessedDocuments = row.Documents
	totals.Items = row.Items
	totals.TotalValue = row.TotalValue.Decimal
	return totals, nil
}

// ByModel 按型号汇总，数量降序，数量相同按型号排序
func (s *AnalyticsService) ByModel(ctx context.Context, scope *Scope) ([]ModelRollup, error) {
	var rows []ModelRollup
	err := s.processedItems(ctx, scope).
		Select("shipping_items.model_number AS model_number, " +
			"COUNT(*) AS item_count, " +
			"SUM(shipping_items.quantity) AS total_quantity, " +
			"SUM(shipping_items.total_price) AS total_value, " +
			"SUM(shipping_items.gross_weight) AS total_gross_weight, " +
			"SUM(shipping_items.volume) AS total_volume").
		Group("shipping_items.model_number").
		Order("total_quantity DESC").
		Order("model_number ASC").
		Scan(&rows).Error
	return rows, err
}

// ByCategory 按品类汇总，忽略未填写品类的明细
func (s *AnalyticsService) ByCategory(ctx context.Context, scope *Scope) ([]CategoryRollup, error) {
	var rows []CategoryRollup
	err := s.processedItems(ctx, scope).
		Select("shipping_items.category AS category, " +
			"COUNT(*) AS item_count, " +
			"SUM(shipping_items.quantity) AS total_quantity, " +
			"SUM(shipping_items.total_price) AS total_value").
		Where("shipping_items.category IS NOT NULL").
		Group("shipping_items.category").
		Order("total_quantity DESC").
		Order("category ASC").
		Scan(&rows).Error
	return rows, err
}

// RecentDocuments 最近解析的文档
func (s *AnalyticsService) RecentDocuments(ctx context.Context, scope *Scope) ([]*models.ShippingDocument, error) {
	var docs []*models.ShippingDocument
	err := ownedDocuments(s.db.WithContext(ctx), scope).
		Where("status = ?", models.DocumentStatusProcessed).
		Order("processed_at DESC").
		Order("id DESC").
		Limit(recentDocumentLimit).
		Find(&docs).Error
	return docs, err
}

// MonthlyTrend 当年已解析文档按创建月份汇总，月份升序。
// 月份在应用层计算，避免依赖不同数据库的日期函数。
func (s *AnalyticsService) MonthlyTrend(ctx context.Context, scope *Scope) ([]MonthlyTrend, error) {
	now := s.now()
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(1, 0, 0)

	var docs []models.ShippingDocument
	err := ownedDocuments(s.db.WithContext(ctx), scope).
		Select("created_at", "total_items", "total_amount").
		Where("status = ?", models.DocumentStatusProcessed).
		Where("created_at >= ? AND created_at < ?", start, end).
		Find(&docs).Error
	if err != nil {
		return nil, err
	}

	var buckets [13]*MonthlyTrend
	for _, doc := range docs {
		month := int(doc.CreatedAt.In(now.Location()).Month())
		b := buckets[month]
		if b == nil {
			b = &MonthlyTrend{Month: month, TotalAmount: decimal.Zero}
			buckets[month] = b
		}
		b.Documents++
		b.TotalItems += int64(doc.TotalItems)
		b.TotalAmount = b.TotalAmount.Add(doc.TotalAmount)
	}

	trend := make([]MonthlyTrend, 0, 12)
	for month := 1; month <= 12; month++ {
		if buckets[month] != nil {
			trend = append(trend, *buckets[month])
		}
	}
	return trend, nil
}

// processedItems 当前范围内已解析文档的明细
func (s *AnalyticsService) processedItems(ctx context.Context, scope *Scope) *gorm.DB {
	query := s.db.WithContext(ctx).Table("shipping_items").
		Joins("JOIN shipping_documents ON shipping_documents.id = shipping_items.shipping_document_id").
		Where("shipping_documents.user_id = ?", scope.UserID).
		Where("shipping_documents.status = ?", models.DocumentStatusProcessed).
		Where("shipping_documents.deleted_at IS NULL")
	if scope.TenantID != nil {
		query = query.Where("shipping_documents.tenant_id = ?", *scope.TenantID)
	}
	return query
}
