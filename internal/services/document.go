package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"shipdesk/internal/models"
	"shipdesk/pkg/config"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/logger"
	"shipdesk/pkg/pagination"
	"shipdesk/pkg/storage"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const documentCategory = "shipping-documents"

// UploadInput 上传参数，元数据均为可选
type UploadInput struct {
	FileName        string `json:"file_name"`
	Data            []byte `json:"-"`
	OrderNumber     string `json:"order_number" validate:"omitempty,max=255"`
	EtaDate         string `json:"eta_date" validate:"omitempty,datetime=2006-01-02"`
	ContainerNumber string `json:"container_number" validate:"omitempty,max=255"`
	Notes           string `json:"notes" validate:"omitempty,max=5000"`
	AutoParse       bool   `json:"auto_parse"`
}

// DocumentFilter 列表过滤条件
type DocumentFilter struct {
	Status  string
	Keyword string
}

// DocumentService 发货单上传、查询、下载与删除
type DocumentService struct {
	db        *gorm.DB
	storage   storage.Storage
	ingestion *IngestionService
	upload    config.UploadConfig
	validate  *validator.Validate
}

func NewDocumentService(db *gorm.DB, store storage.Storage, upload config.UploadConfig) *DocumentService {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &DocumentService{
		db:        db,
		storage:   store,
		ingestion: NewIngestionService(db, store),
		upload:    upload,
		validate:  validate,
	}
}

// Ingestion 返回解析服务
func (s *DocumentService) Ingestion() *IngestionService {
	return s.ingestion
}

// Upload 保存文件并创建待解析的文档记录。
// 记录创建失败时删除已保存的文件；AutoParse 时立即解析，解析失败会连同文档一起返回错误。
func (s *DocumentService) Upload(ctx context.Context, scope *Scope, in UploadInput) (*models.ShippingDocument, error) {
	ext, err := s.validateUpload(in)
	if err != nil {
		return nil, err
	}

	key, err := s.storage.Save(ctx, in.Data, storage.SaveOptions{
		Category:  documentCategory,
		Extension: ext,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: save file: %v", apperrors.ErrStorageFailure, err)
	}

	doc := &models.ShippingDocument{
		UserID:          scope.UserID,
		TenantID:        scope.TenantID,
		OrderNumber:     optionalString(in.OrderNumber),
		ContainerNumber: optionalString(in.ContainerNumber),
		Notes:           optionalString(in.Notes),
		FileName:        filepath.Base(in.FileName),
		FilePath:        key,
		FileType:        ext,
		FileSize:        int64(len(in.Data)),
		Status:          models.DocumentStatusPending,
	}
	if in.EtaDate != "" {
		eta, _ := time.Parse("2006-01-02", in.EtaDate)
		doc.EtaDate = &eta
	}

	log := logger.GetLogger().WithFields(logrus.Fields{
		"user_id":   scope.UserID,
		"file_name": doc.FileName,
		"file_size": doc.FileSize,
	})

	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			log.Errorf("Failed to remove blob %s after insert failure: %v", key, delErr)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}
	log.WithField("document_id", doc.ID).Info("Document uploaded")

	if in.AutoParse {
		if _, err := s.ingestion.Ingest(ctx, doc.ID); err != nil {
			return doc, err
		}
		return s.reload(ctx, doc.ID)
	}
	return doc, nil
}

func (s *DocumentService) validateUpload(in UploadInput) (string, error) {
	if len(in.Data) == 0 {
		return "", apperrors.Validation("file", "file is required")
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(in.FileName), "."))
	if !s.extensionAllowed(ext) {
		return "", apperrors.Validation("file", "file must be one of: "+strings.Join(s.upload.AllowedExtensions, ", "))
	}
	if s.upload.MaxFileSize > 0 && int64(len(in.Data)) > s.upload.MaxFileSize {
		return "", apperrors.Validation("file", fmt.Sprintf("file must not exceed %d bytes", s.upload.MaxFileSize))
	}

	if err := s.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields[fe.Field()] = fieldMessage(fe)
			}
			return "", &apperrors.ValidationError{Fields: fields}
		}
		return "", err
	}
	return ext, nil
}

func (s *DocumentService) extensionAllowed(ext string) bool {
	for _, allowed := range s.upload.AllowedExtensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

// Get 查看文档（仅上传者）
func (s *DocumentService) Get(ctx context.Context, scope *Scope, id uint) (*models.ShippingDocument, error) {
	var doc models.ShippingDocument
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "row_number"}})
		}).
		First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !doc.IsOwnedBy(scope.UserID) {
		return nil, apperrors.Forbidden(apperrors.ForbiddenOwnership, "document")
	}
	return &doc, nil
}

// List 当前用户的文档，租户上下文存在时只返回该租户下上传的文档
func (s *DocumentService) List(ctx context.Context, scope *Scope, filter DocumentFilter, page *pagination.PageParams) ([]*models.ShippingDocument, int64, error) {
	var docs []*models.ShippingDocument
	var total int64

	query := ownedDocuments(s.db.WithContext(ctx), scope)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Keyword != "" {
		pattern := fmt.Sprintf("%%%s%%", filter.Keyword)
		query = query.Where("order_number LIKE ? OR container_number LIKE ? OR file_name LIKE ?", pattern, pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Order("id DESC").Scopes(page.Scope()).Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Parse 手动触发解析
func (s *DocumentService) Parse(ctx context.Context, scope *Scope, id uint) (*models.ShippingDocument, *IngestResult, error) {
	if _, err := s.authorizeOwner(ctx, scope, id); err != nil {
		return nil, nil, err
	}
	result, err := s.ingestion.Ingest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.reload(ctx, id)
	return doc, result, err
}

// Download 打开原始文件，调用方负责关闭
func (s *DocumentService) Download(ctx context.Context, scope *Scope, id uint) (*models.ShippingDocument, io.ReadCloser, error) {
	doc, err := s.authorizeOwner(ctx, scope, id)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.storage.Open(ctx, doc.FilePath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil, fmt.Errorf("file of document %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open file: %v", apperrors.ErrStorageFailure, err)
	}
	return doc, reader, nil
}

// Delete 先在事务中删除明细与文档记录，再删除文件。
// 文件删除失败时记录为孤立文件，由清理任务重试。
func (s *DocumentService) Delete(ctx context.Context, scope *Scope, id uint) error {
	doc, err := s.authorizeOwner(ctx, scope, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("shipping_document_id = ?", doc.ID).Delete(&models.ShippingItem{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.ShippingDocument{}, doc.ID).Error
	})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	log := logger.GetLogger().WithFields(logrus.Fields{
		"document_id": doc.ID,
		"path":        doc.FilePath,
	})
	if err := s.storage.Delete(ctx, doc.FilePath); err != nil {
		log.Warnf("Blob delete failed, queued for sweep: %v", err)
		if recErr := recordOrphan(s.db.WithContext(ctx), doc.FilePath, err); recErr != nil {
			log.Errorf("Failed to record orphan blob: %v", recErr)
		}
		return nil
	}
	log.Info("Document deleted")
	return nil
}

func (s *DocumentService) authorizeOwner(ctx context.Context, scope *Scope, id uint) (*models.ShippingDocument, error) {
	var doc models.ShippingDocument
	err := s.db.WithContext(ctx).First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !doc.IsOwnedBy(scope.UserID) {
		return nil, apperrors.Forbidden(apperrors.ForbiddenOwnership, "document")
	}
	return &doc, nil
}

func (s *DocumentService) reload(ctx context.Context, id uint) (*models.ShippingDocument, error) {
	var doc models.ShippingDocument
	if err := s.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// ownedDocuments 按上传者和当前租户过滤
func ownedDocuments(db *gorm.DB, scope *Scope) *gorm.DB {
	query := db.Model(&models.ShippingDocument{}).Where("shipping_documents.user_id = ?", scope.UserID)
	if scope.TenantID != nil {
		query = query.Where("shipping_documents.tenant_id = ?", *scope.TenantID)
	}
	return query
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	default:
		return "is invalid"
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
