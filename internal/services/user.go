package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"shipdesk/internal/models"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/logger"
	"shipdesk/pkg/pagination"
	"shipdesk/pkg/session"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	sessions session.Store
}

// UserStats 用户统计信息
type UserStats struct {
	Total    int64            `json:"total"`
	Active   int64            `json:"active"`
	Inactive int64            `json:"inactive"`
	ByRole   map[string]int64 `json:"by_role"`
}

// CreateUserInput 创建用户的参数
type CreateUserInput struct {
	Name        string              `json:"name" binding:"required"`
	Email       string              `json:"email" binding:"required"`
	Password    string              `json:"password" binding:"required"`
	Role        models.Role         `json:"role" binding:"required"`
	Permissions []models.Permission `json:"permissions"`
	Timezone    string              `json:"timezone"`
}

// UpdateUserInput 更新用户的参数
type UpdateUserInput struct {
	Name        string              `json:"name" binding:"required"`
	Role        models.Role         `json:"role" binding:"required"`
	Permissions []models.Permission `json:"permissions"`
	Timezone    string              `json:"timezone"`
}

func NewUserService(db *gorm.DB, sessions session.Store) *UserService {
	return &UserService{db: db, sessions: sessions}
}

// ========== 基础CRUD方法 ==========

// Create 创建用户
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.ValidateCreateParams(in); err != nil {
		return nil, err
	}

	var emailCount int64
	s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", in.Email).Count(&emailCount)
	if emailCount > 0 {
		return nil, apperrors.Validation("email", "email already exists")
	}

	timezone := in.Timezone
	if timezone == "" {
		timezone = models.DefaultTimezone
	}

	user := &models.User{
		Name:        strings.TrimSpace(in.Name),
		Email:       in.Email,
		Role:        in.Role,
		Permissions: in.Permissions,
		IsActive:    true,
		Timezone:    timezone,
	}
	if err := user.SetPassword(in.Password); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetByID 根据ID获取用户
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("CurrentTenant").First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", email, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetWithFiltersAndPage 组合查询（分页版本）。tenantID 不为空时只返回该租户的有效成员。
func (s *UserService) GetWithFiltersAndPage(ctx context.Context, tenantID *uint, role, keyword string, page *pagination.PageParams) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	query := s.db.WithContext(ctx).Model(&models.User{})
	if tenantID != nil {
		query = query.Where("id IN (?)", s.db.Model(&models.Membership{}).
			Select("user_id").
			Where("tenant_id = ? AND is_active = ?", *tenantID, true))
	}
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR email LIKE ?", searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Scopes(page.Scope()).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update 更新用户的默认角色与权限
func (s *UserService) Update(ctx context.Context, id uint, in UpdateUserInput) (*models.User, error) {
	if err := s.ValidateUpdateParams(in); err != nil {
		return nil, err
	}
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name = strings.TrimSpace(in.Name)
	user.Role = in.Role
	user.Permissions = in.Permissions
	if in.Timezone != "" {
		user.Timezone = in.Timezone
	}
	if err := s.db.WithContext(ctx).Omit("CurrentTenant", "Memberships").Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Activate 启用用户
func (s *UserService) Activate(ctx context.Context, id uint) (*models.User, error) {
	return s.setActive(ctx, id, true)
}

// Deactivate 停用用户并终止其全部会话
func (s *UserService) Deactivate(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.setActive(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if s.sessions != nil {
		if err := s.sessions.RevokeUser(ctx, id); err != nil {
			logger.GetLogger().WithField("user_id", id).Errorf("Failed to revoke sessions: %v", err)
		}
	}
	return user, nil
}

func (s *UserService) setActive(ctx context.Context, id uint, active bool) (*models.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	user.IsActive = active

	logger.GetLogger().WithFields(logrus.Fields{
		"user_id":   id,
		"is_active": active,
	}).Info("User status changed")
	return user, nil
}

// ResetPassword 重置密码，原有会话全部失效
func (s *UserService) ResetPassword(ctx context.Context, id uint, newPassword string) error {
	if err := s.ValidatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("password_hash", user.PasswordHash).Error; err != nil {
		return err
	}
	if s.sessions != nil {
		return s.sessions.RevokeUser(ctx, id)
	}
	return nil
}

// UpdateLastLogin 更新最后登录时间
func (s *UserService) UpdateLastLogin(ctx context.Context, id uint) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", &now).Error
}

// GetStats 获取用户统计
func (s *UserService) GetStats(ctx context.Context) (*UserStats, error) {
	stats := &UserStats{ByRole: make(map[string]int64)}
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.User{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	db.Model(&models.User{}).Where("is_active = ?", true).Count(&stats.Active)
	stats.Inactive = stats.Total - stats.Active

	var rows []struct {
		Role  string
		Count int64
	}
	if err := db.Model(&models.User{}).Select("role, COUNT(*) as count").Group("role").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByRole[r.Role] = r.Count
	}
	return stats, nil
}

// ========== 验证相关方法 ==========

// ValidateEmail 验证邮箱
func (s *UserService) ValidateEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && strings.Contains(email[at:], ".") && len(email) >= 5 && len(email) <= 100
}

// ValidatePassword 验证密码
func (s *UserService) ValidatePassword(password string) error {
	if len(password) < 8 {
		return apperrors.Validation("password", "password must be at least 8 characters")
	}
	if len(password) > 72 {
		return apperrors.Validation("password", "password must be at most 72 characters")
	}
	return nil
}

// ValidateName 姓名按字符数计算
func (s *UserService) ValidateName(name string) bool {
	runeCount := utf8.RuneCountInString(strings.TrimSpace(name))
	return runeCount >= 2 && runeCount <= 100
}

// ValidateTimezone 空值表示使用默认时区
func (s *UserService) ValidateTimezone(tz string) bool {
	if tz == "" {
		return true
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// ValidateCreateParams 验证创建用户的参数
func (s *UserService) ValidateCreateParams(in CreateUserInput) error {
	if !s.ValidateEmail(in.Email) {
		return apperrors.Validation("email", "invalid email")
	}
	if err := s.ValidatePassword(in.Password); err != nil {
		return err
	}
	return s.ValidateUpdateParams(UpdateUserInput{
		Name:        in.Name,
		Role:        in.Role,
		Permissions: in.Permissions,
		Timezone:    in.Timezone,
	})
}

// ValidateUpdateParams 验证更新用户的参数
func (s *UserService) ValidateUpdateParams(in UpdateUserInput) error {
	if !s.ValidateName(in.Name) {
		return apperrors.Validation("name", "name must be 2-100 characters")
	}
	if !s.ValidateTimezone(in.Timezone) {
		return apperrors.Validation("timezone", "unknown timezone")
	}
	return validateMembershipInput(MembershipInput{Role: in.Role, Permissions: in.Permissions})
}
