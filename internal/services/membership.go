package services

import (
	"context"
	"errors"
	"fmt"

	"shipdesk/internal/models"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MembershipService 成员关系管理与租户切换
type MembershipService struct {
	db *gorm.DB
}

// MembershipInput 添加或更新成员关系的参数
type MembershipInput struct {
	Role        models.Role         `json:"role" binding:"required"`
	Permissions []models.Permission `json:"permissions"`
	IsPrimary   bool                `json:"is_primary"`
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{db: db}
}

// SwitchTenant 切换当前租户。没有有效成员关系时返回 false，不做任何修改。
// 成员关系检查与写入在同一事务中完成。
func (s *MembershipService) SwitchTenant(ctx context.Context, userID, tenantID uint) (bool, error) {
	switched := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		membership, err := findActiveMembership(tx, userID, tenantID)
		if err != nil {
			return err
		}
		if membership == nil {
			return nil
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("current_tenant_id", tenantID).Error; err != nil {
			return fmt.Errorf("update current tenant: %w", err)
		}
		switched = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if switched {
		logger.GetLogger().WithFields(logrus.Fields{
			"user_id":   userID,
			"tenant_id": tenantID,
		}).Info("Tenant switched")
	}
	return switched, nil
}

// ListForUser 用户的成员关系（含租户信息）
func (s *MembershipService) ListForUser(ctx context.Context, userID uint, activeOnly bool) ([]models.Membership, error) {
	var memberships []models.Membership
	query := s.db.WithContext(ctx).Preload("Tenant").Where("user_id = ?", userID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("is_primary DESC, id ASC").Find(&memberships).Error
	return memberships, err
}

// ListForTenant 租户的成员
func (s *MembershipService) ListForTenant(ctx context.Context, tenantID uint) ([]models.Membership, error) {
	var memberships []models.Membership
	err := s.db.WithContext(ctx).Preload("User").
		Where("tenant_id = ?", tenantID).
		Order("id ASC").
		Find(&memberships).Error
	return memberships, err
}

// Attach 将用户加入租户。已存在的成员关系会被重新启用并更新。
func (s *MembershipService) Attach(ctx context.Context, tenantID, userID uint, in MembershipInput) (*models.Membership, error) {
	if err := validateMembershipInput(in); err != nil {
		return nil, err
	}

	var result models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureExists(tx, &models.Tenant{}, tenantID, "tenant"); err != nil {
			return err
		}
		if err := ensureExists(tx, &models.User{}, userID, "user"); err != nil {
			return err
		}

		err := tx.Where("tenant_id = ? AND user_id = ?", tenantID, userID).First(&result).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			result = models.Membership{TenantID: tenantID, UserID: userID}
		case err != nil:
			return err
		}

		result.Role = in.Role
		result.Permissions = in.Permissions
		result.IsActive = true
		result.IsPrimary = false
		if err := tx.Save(&result).Error; err != nil {
			return fmt.Errorf("save membership: %w", err)
		}

		// 第一个成员关系自动成为主成员关系
		primary, err := hasPrimary(tx, userID)
		if err != nil {
			return err
		}
		if in.IsPrimary || !primary {
			return setPrimary(tx, &result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Update 修改租户内的角色与权限
func (s *MembershipService) Update(ctx context.Context, tenantID, userID uint, in MembershipInput) (*models.Membership, error) {
	if err := validateMembershipInput(in); err != nil {
		return nil, err
	}

	var result models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadMembership(tx, tenantID, userID, &result); err != nil {
			return err
		}
		result.Role = in.Role
		result.Permissions = in.Permissions
		if err := tx.Save(&result).Error; err != nil {
			return fmt.Errorf("save membership: %w", err)
		}
		if in.IsPrimary && result.IsActive && !result.IsPrimary {
			return setPrimary(tx, &result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Deactivate 停用成员关系（不删除）。停用主成员关系时，下一个有效的成员关系成为主成员关系。
func (s *MembershipService) Deactivate(ctx context.Context, tenantID, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var membership models.Membership
		if err := loadMembership(tx, tenantID, userID, &membership); err != nil {
			return err
		}
		wasPrimary := membership.IsPrimary
		if err := tx.Model(&membership).Updates(map[string]interface{}{
			"is_active":  false,
			"is_primary": false,
		}).Error; err != nil {
			return fmt.Errorf("deactivate membership: %w", err)
		}

		if wasPrimary {
			var next models.Membership
			err := tx.Where("user_id = ? AND is_active = ?", userID, true).Order("id ASC").First(&next).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				return refreshPrimaryCache(tx, userID)
			case err != nil:
				return err
			}
			return setPrimary(tx, &next)
		}
		return nil
	})
}

// SetPrimary 设为主成员关系，同时取消该用户其它成员关系的主标记
func (s *MembershipService) SetPrimary(ctx context.Context, tenantID, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var membership models.Membership
		if err := loadMembership(tx, tenantID, userID, &membership); err != nil {
			return err
		}
		if !membership.IsActive {
			return apperrors.Validation("tenant_id", "membership is inactive")
		}
		return setPrimary(tx, &membership)
	})
}

func setPrimary(tx *gorm.DB, membership *models.Membership) error {
	if err := tx.Model(&models.Membership{}).
		Where("user_id = ? AND id <> ?", membership.UserID, membership.ID).
		Update("is_primary", false).Error; err != nil {
		return fmt.Errorf("clear primary membership: %w", err)
	}
	if err := tx.Model(membership).Update("is_primary", true).Error; err != nil {
		return fmt.Errorf("set primary membership: %w", err)
	}
	return refreshPrimaryCache(tx, membership.UserID)
}

// refreshPrimaryCache 根据成员关系重新计算 users.primary_tenant_id
func refreshPrimaryCache(tx *gorm.DB, userID uint) error {
	var primary models.Membership
	var tenantID *uint
	err := tx.Where("user_id = ? AND is_primary = ? AND is_active = ?", userID, true, true).First(&primary).Error
	switch {
	case err == nil:
		tenantID = &primary.TenantID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}
	return tx.Model(&models.User{}).Where("id = ?", userID).Update("primary_tenant_id", tenantID).Error
}

func hasPrimary(tx *gorm.DB, userID uint) (bool, error) {
	var count int64
	if err := tx.Model(&models.Membership{}).
		Where("user_id = ? AND is_primary = ? AND is_active = ?", userID, true, true).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("count primary membership: %w", err)
	}
	return count > 0, nil
}

func loadMembership(tx *gorm.DB, tenantID, userID uint, out *models.Membership) error {
	err := tx.Where("tenant_id = ? AND user_id = ?", tenantID, userID).First(out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("membership: %w", apperrors.ErrNotFound)
	}
	return err
}

func ensureExists(tx *gorm.DB, model interface{}, id uint, name string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%s: %w", name, apperrors.ErrNotFound)
	}
	return nil
}

func validateMembershipInput(in MembershipInput) error {
	if !in.Role.IsValid() {
		return apperrors.Validation("role", "unknown role")
	}
	for _, p := range in.Permissions {
		if !p.IsValid() {
			return apperrors.Validation("permissions", "unknown permission "+string(p))
		}
	}
	return nil
}
