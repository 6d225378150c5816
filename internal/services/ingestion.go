package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"shipdesk/internal/models"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/logger"
	"shipdesk/pkg/spreadsheet"
	"shipdesk/pkg/storage"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 发货单表格的固定列，第 1 行为表头
const (
	colModelNumber    = "A"
	colProductName    = "B"
	colCategory       = "C"
	colQuantity       = "D"
	colUnitPrice      = "E"
	colCartonQuantity = "F"
	colCartonNumber   = "G"
	colGrossWeight    = "H"
	colNetWeight      = "I"
	colVolume         = "J"
	colSpecifications = "K"
	colNotes          = "L"

	firstDataRow = 2
	insertBatch  = 200
)

// IngestResult 解析结果
type IngestResult struct {
	ItemCount   int             `json:"item_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// IngestionService 将上传的表格解析为发货明细
type IngestionService struct {
	db      *gorm.DB
	storage storage.Storage
	now     func() time.Time
}

func NewIngestionService(db *gorm.DB, store storage.Storage) *IngestionService {
	return &IngestionService{db: db, storage: store, now: time.Now}
}

// Ingest 解析文档对应的表格并替换其明细。
// 先完整解析文件再写库；明细替换与汇总更新在同一事务中完成，重复执行结果相同。
// 文件无法读取时不写入任何数据，文档状态保持不变。
func (s *IngestionService) Ingest(ctx context.Context, documentID uint) (*IngestResult, error) {
	var doc models.ShippingDocument
	err := s.db.WithContext(ctx).First(&doc, documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %d: %w", documentID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	log := logger.GetLogger().WithFields(logrus.Fields{
		"document_id": doc.ID,
		"file_type":   doc.FileType,
	})

	sheet, err := s.openSheet(ctx, &doc)
	if err != nil {
		log.Warnf("Ingestion aborted: %v", err)
		return nil, err
	}

	items, total := ParseItems(sheet)
	if !spreadsheet.FitsColumn(total, 12, 2) {
		err := fmt.Errorf("%w: total amount %s out of range", apperrors.ErrIngestionFailed, total.String())
		log.Warnf("Ingestion aborted: %v", err)
		return nil, err
	}
	processedAt := s.now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 同一文档的并发解析在此串行化
		var locked models.ShippingDocument
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&locked, doc.ID).Error; err != nil {
			return err
		}

		if err := tx.Where("shipping_document_id = ?", doc.ID).Delete(&models.ShippingItem{}).Error; err != nil {
			return fmt.Errorf("delete previous items: %w", err)
		}

		for i := range items {
			items[i].ShippingDocumentID = doc.ID
		}
		if len(items) > 0 {
			if err := tx.CreateInBatches(items, insertBatch).Error; err != nil {
				return fmt.Errorf("insert items: %w", err)
			}
		}

		return tx.Model(&models.ShippingDocument{}).Where("id = ?", doc.ID).Updates(map[string]interface{}{
			"total_amount": total,
			"total_items":  len(items),
			"status":       models.DocumentStatusProcessed,
			"processed_at": processedAt,
		}).Error
	})
	if err != nil {
		log.Errorf("Ingestion failed: %v", err)
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"item_count":   len(items),
		"total_amount": total.StringFixed(2),
	}).Info("Document ingested")

	return &IngestResult{ItemCount: len(items), TotalAmount: total}, nil
}

func (s *IngestionService) openSheet(ctx context.Context, doc *models.ShippingDocument) (spreadsheet.Sheet, error) {
	reader, err := s.storage.Open(ctx, doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", apperrors.ErrIngestionFailed, doc.FileName, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", apperrors.ErrIngestionFailed, doc.FileName, err)
	}

	sheet, err := spreadsheet.Open(data, doc.FileType)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", apperrors.ErrIngestionFailed, doc.FileName, err)
	}
	return sheet, nil
}

// ParseItems 从第 2 行开始读取明细，型号为空的行整行跳过。
// 无法识别或超出列范围的数值按 0 处理。
func ParseItems(sheet spreadsheet.Sheet) ([]models.ShippingItem, decimal.Decimal) {
	var items []models.ShippingItem
	total := decimal.Zero

	for row := firstDataRow; row <= sheet.HighestRow(); row++ {
		modelNumber := sheet.Cell(colModelNumber, row)
		if modelNumber == "" {
			continue
		}

		item := models.ShippingItem{
			ModelNumber:    modelNumber,
			ProductName:    optionalCell(sheet, colProductName, row),
			Category:       optionalCell(sheet, colCategory, row),
			Quantity:       spreadsheet.ToInt(sheet.Cell(colQuantity, row)),
			UnitPrice:      spreadsheet.ToFixed(sheet.Cell(colUnitPrice, row), 10, 2),
			CartonQuantity: spreadsheet.ToInt(sheet.Cell(colCartonQuantity, row)),
			CartonNumber:   optionalCell(sheet, colCartonNumber, row),
			GrossWeight:    spreadsheet.ToFixed(sheet.Cell(colGrossWeight, row), 10, 2),
			NetWeight:      spreadsheet.ToFixed(sheet.Cell(colNetWeight, row), 10, 2),
			Volume:         spreadsheet.ToFixed(sheet.Cell(colVolume, row), 10, 3),
			Specifications: optionalCell(sheet, colSpecifications, row),
			Notes:          optionalCell(sheet, colNotes, row),
			RowNumber:      row,
		}
		item.TotalPrice = decimal.NewFromInt(int64(item.Quantity)).Mul(item.UnitPrice)
		if !spreadsheet.FitsColumn(item.TotalPrice, 12, 2) {
			item.TotalPrice = decimal.Zero
		}

		total = total.Add(item.TotalPrice)
		items = append(items, item)
	}
	return items, total
}

func optionalCell(sheet spreadsheet.Sheet, column string, row int) *string {
	v := sheet.Cell(column, row)
	if v == "" {
		return nil
	}
	return &v
}
