package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"shipdesk/internal/models"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/logger"
	"shipdesk/pkg/pagination"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TenantService struct {
	db *gorm.DB
}

// TenantStats 租户统计信息
type TenantStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

// TenantInput 创建或更新租户的参数
type TenantInput struct {
	Name        string                 `json:"name" binding:"required"`
	Code        string                 `json:"code" binding:"required"`
	Description string                 `json:"description"`
	Domain      string                 `json:"domain"`
	Settings    map[string]interface{} `json:"settings"`
}

func NewTenantService(db *gorm.DB) *TenantService {
	return &TenantService{db: db}
}

// GetWithFiltersAndPage 组合查询（分页版本），active 为 nil 时不过滤状态
func (s *TenantService) GetWithFiltersAndPage(ctx context.Context, active *bool, keyword string, page *pagination.PageParams) ([]*models.Tenant, int64, error) {
	var tenants []*models.Tenant
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Tenant{})
	if active != nil {
		query = query.Where("is_active = ?", *active)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR code LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Scopes(page.Scope()).Find(&tenants).Error; err != nil {
		return nil, 0, err
	}

	s.fillMemberCounts(ctx, tenants)
	return tenants, total, nil
}

// GetAllActive 获取所有激活的租户
func (s *TenantService) GetAllActive(ctx context.Context) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&tenants).Error
	if err != nil {
		return nil, err
	}
	s.fillMemberCounts(ctx, tenants)
	return tenants, nil
}

// Create 创建租户
func (s *TenantService) Create(ctx context.Context, in TenantInput) (*models.Tenant, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if err := s.ValidateParams(in); err != nil {
		return nil, err
	}

	var count int64
	s.db.WithContext(ctx).Unscoped().Model(&models.Tenant{}).Where("code = ?", in.Code).Count(&count)
	if count > 0 {
		return nil, apperrors.Validation("code", "tenant code already exists")
	}

	tenant := &models.Tenant{
		Name:        strings.TrimSpace(in.Name),
		Code:        in.Code,
		Description: in.Description,
		Domain:      in.Domain,
		Settings:    datatypes.JSONMap(in.Settings),
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(tenant).Error; err != nil {
		return nil, err
	}
	return tenant, nil
}

// GetByID 根据ID获取租户
func (s *TenantService) GetByID(ctx context.Context, id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).First(&tenant, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("tenant %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// Update 更新租户（代码不可修改）
func (s *TenantService) Update(ctx context.Context, id uint, in TenantInput) (*models.Tenant, error) {
	tenant, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.Code = tenant.Code
	if err := s.ValidateParams(in); err != nil {
		return nil, err
	}

	tenant.Name = strings.TrimSpace(in.Name)
	tenant.Description = in.Description
	tenant.Domain = in.Domain
	if in.Settings != nil {
		tenant.Settings = datatypes.JSONMap(in.Settings)
	}
	if err := s.db.WithContext(ctx).Save(tenant).Error; err != nil {
		return nil, err
	}
	return tenant, nil
}

// Delete 删除租户（软删除），成员的后续请求会被拒绝
func (s *TenantService) Delete(ctx context.Context, id uint) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.Tenant{}, id).Error
}

// Activate 激活租户
func (s *TenantService) Activate(ctx context.Context, id uint) (*models.Tenant, error) {
	return s.setActive(ctx, id, true)
}

// Deactivate 停用租户
func (s *TenantService) Deactivate(ctx context.Context, id uint) (*models.Tenant, error) {
	return s.setActive(ctx, id, false)
}

func (s *TenantService) setActive(ctx context.Context, id uint, active bool) (*models.Tenant, error) {
	tenant, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(tenant).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	tenant.IsActive = active

	logger.GetLogger().WithFields(logrus.Fields{
		"tenant_id": id,
		"is_active": active,
	}).Info("Tenant status changed")
	return tenant, nil
}

// GetStats 获取租户统计
func (s *TenantService) GetStats(ctx context.Context) (*TenantStats, error) {
	stats := &TenantStats{}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Tenant{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	db.Model(&models.Tenant{}).Where("is_active = ?", true).Count(&stats.Active)
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

// fillMemberCounts 统计每个租户的有效成员数
func (s *TenantService) fillMemberCounts(ctx context.Context, tenants []*models.Tenant) {
	if len(tenants) == 0 {
		return
	}
	ids := make([]uint, len(tenants))
	for i, t := range tenants {
		ids[i] = t.ID
	}

	var rows []struct {
		TenantID uint
		Count    int
	}
	s.db.WithContext(ctx).Model(&models.Membership{}).
		Select("tenant_id, COUNT(*) as count").
		Where("tenant_id IN ? AND is_active = ?", ids, true).
		Group("tenant_id").
		Scan(&rows)

	counts := make(map[uint]int, len(rows))
	for _, r := range rows {
		counts[r.TenantID] = r.Count
	}
	for _, t := range tenants {
		t.MemberCount = counts[t.ID]
	}
}

// ========== 验证相关方法 ==========

// ValidateName 名称按字符数计算
func (s *TenantService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(strings.TrimSpace(name))
	return runeCount >= 2 && runeCount <= 100
}

// ValidateCode 2-50 位字母、数字、下划线或连字符
func (s *TenantService) ValidateCode(code string) bool {
	if len(code) < 2 || len(code) > 50 {
		return false
	}
	for _, r := range code {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-') {
			return false
		}
	}
	return true
}

// ValidateParams 验证租户参数
func (s *TenantService) ValidateParams(in TenantInput) error {
	if !s.ValidateName(in.Name) {
		return apperrors.Validation("name", "name must be 2-100 characters")
	}
	if !s.ValidateCode(in.Code) {
		return apperrors.Validation("code", "code must be 2-50 letters, digits, '_' or '-'")
	}
	return nil
}
