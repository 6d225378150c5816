package services

import (
	"context"
	"errors"
	"fmt"

	"shipdesk/internal/models"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/logger"
	"shipdesk/pkg/session"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Principal 已认证的请求主体，由 RequireLogin 构建并显式传递
type Principal struct {
	User      *models.User
	SessionID string
}

// Requirement 访问要求，零值表示不要求
type Requirement struct {
	Role       models.Role
	Permission models.Permission
}

// Scope 授权通过后附加到请求上的租户范围
type Scope struct {
	UserID    uint
	TenantID  *uint
	Role      models.Role
	Effective *Effective
}

// AccessService 访问控制
type AccessService struct {
	db       *gorm.DB
	resolver *MembershipResolver
	sessions session.Store
}

func NewAccessService(db *gorm.DB, sessions session.Store) *AccessService {
	return &AccessService{
		db:       db,
		resolver: NewMembershipResolver(db),
		sessions: sessions,
	}
}

// Resolver 返回成员关系解析器
func (s *AccessService) Resolver() *MembershipResolver {
	return s.resolver
}

// Authorize 按顺序检查，第一个失败的检查决定结果：
// 未登录、账户停用、租户停用、角色不符、缺少权限。
// 账户或租户停用时会终止当前会话。
func (s *AccessService) Authorize(ctx context.Context, p *Principal, req Requirement) (*Scope, error) {
	if p == nil || p.User == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	user := p.User

	if !user.IsActive {
		s.terminate(ctx, p, "account deactivated")
		return nil, apperrors.ErrAccountDeactivated
	}

	tenantID, err := s.resolver.ActiveTenantID(ctx, user)
	if err != nil {
		return nil, err
	}
	if tenantID != nil {
		active, err := s.tenantActive(ctx, *tenantID)
		if err != nil {
			return nil, err
		}
		if !active {
			s.terminate(ctx, p, "tenant deactivated")
			return nil, apperrors.ErrTenantDeactivated
		}
	}

	eff, err := s.resolver.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}

	if req.Role != "" && !eff.HasRole(req.Role) {
		return nil, apperrors.Forbidden(apperrors.ForbiddenRole, string(req.Role))
	}
	if req.Permission != "" && !eff.HasPermission(req.Permission) {
		return nil, apperrors.Forbidden(apperrors.ForbiddenPermission, string(req.Permission))
	}

	return &Scope{
		UserID:    user.ID,
		TenantID:  tenantID,
		Role:      eff.Role,
		Effective: eff,
	}, nil
}

// RequireTenant 租户范围的路由要求用户属于某个租户，超级管理员除外
func (s *AccessService) RequireTenant(ctx context.Context, p *Principal) (*uint, error) {
	if p == nil || p.User == nil {
		return nil, apperrors.ErrUnauthenticated
	}

	eff, err := s.resolver.Resolve(ctx, p.User)
	if err != nil {
		return nil, err
	}

	tenantID, err := s.resolver.ActiveTenantID(ctx, p.User)
	if err != nil {
		return nil, err
	}
	if eff.HasRole(models.RoleSuperAdmin) {
		return tenantID, nil
	}

	if tenantID == nil {
		s.terminate(ctx, p, "no tenant assigned")
		return nil, apperrors.ErrNoTenantAssigned
	}

	active, err := s.tenantActive(ctx, *tenantID)
	if err != nil {
		return nil, err
	}
	if !active {
		s.terminate(ctx, p, "tenant deactivated")
		return nil, apperrors.ErrTenantDeactivated
	}
	return tenantID, nil
}

// tenantActive 软删除的租户视为停用
func (s *AccessService) tenantActive(ctx context.Context, tenantID uint) (bool, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).Unscoped().First(&tenant, tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query tenant: %w", err)
	}
	return tenant.IsActive && !tenant.DeletedAt.Valid, nil
}

func (s *AccessService) terminate(ctx context.Context, p *Principal, reason string) {
	if s.sessions == nil || p.SessionID == "" {
		return
	}
	log := logger.GetLogger().WithFields(logrus.Fields{
		"user_id":    p.User.ID,
		"session_id": p.SessionID,
		"reason":     reason,
	})
	if err := s.sessions.Revoke(ctx, p.SessionID); err != nil {
		log.Errorf("Failed to revoke session: %v", err)
		return
	}
	log.Info("Session terminated")
}
