package services

import (
	"context"
	"errors"
	"fmt"

	"shipdesk/internal/models"

	"gorm.io/gorm"
)

// Effective 当前租户上下文下生效的角色与权限，每次请求重新计算，不存储
type Effective struct {
	Role models.Role
	// Custom 自定义权限（租户级优先，否则账户级），为空表示未设置
	Custom []models.Permission
	// TenantID 生效的租户上下文，nil 表示使用账户默认值
	TenantID   *uint
	Membership *models.Membership
}

// HasPermission 先查自定义权限，未命中再查角色的静态权限
func (e *Effective) HasPermission(p models.Permission) bool {
	for _, perm := range e.Custom {
		if perm == p {
			return true
		}
	}
	return e.Role.HasPermission(p)
}

// HasRole 生效角色是否为指定角色
func (e *Effective) HasRole(role models.Role) bool {
	return e.Role == role
}

// HasAnyPermission 拥有任一权限
func (e *Effective) HasAnyPermission(perms ...models.Permission) bool {
	for _, p := range perms {
		if e.HasPermission(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions 拥有全部权限
func (e *Effective) HasAllPermissions(perms ...models.Permission) bool {
	for _, p := range perms {
		if !e.HasPermission(p) {
			return false
		}
	}
	return true
}

// Granted 展示用的权限列表：按已知顺序排列，附带未知的自定义标签
func (e *Effective) Granted() []models.Permission {
	var granted []models.Permission
	seen := make(map[models.Permission]bool)
	for _, p := range models.AllPermissions() {
		if e.HasPermission(p) {
			granted = append(granted, p)
			seen[p] = true
		}
	}
	for _, p := range e.Custom {
		if !seen[p] {
			granted = append(granted, p)
			seen[p] = true
		}
	}
	return granted
}

// MembershipResolver 根据用户当前租户解析生效的角色与权限
type MembershipResolver struct {
	db *gorm.DB
}

func NewMembershipResolver(db *gorm.DB) *MembershipResolver {
	return &MembershipResolver{db: db}
}

// Resolve 解析生效角色与权限。
// 未选择租户，或当前租户没有有效成员关系时，使用账户默认值。
func (r *MembershipResolver) Resolve(ctx context.Context, user *models.User) (*Effective, error) {
	defaults := &Effective{
		Role:   user.Role,
		Custom: user.DefaultPermissions(),
	}
	if user.CurrentTenantID == nil {
		return defaults, nil
	}

	membership, err := r.ActiveMembership(ctx, user.ID, *user.CurrentTenantID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return defaults, nil
	}

	eff := &Effective{
		Role:       user.Role,
		Custom:     user.DefaultPermissions(),
		TenantID:   &membership.TenantID,
		Membership: membership,
	}
	if membership.Role != "" {
		eff.Role = membership.Role
	}
	if perms := membership.TenantPermissions(); perms != nil {
		eff.Custom = perms
	}
	return eff, nil
}

// ActiveMembership 查询有效的成员关系，不存在时返回 nil
func (r *MembershipResolver) ActiveMembership(ctx context.Context, userID, tenantID uint) (*models.Membership, error) {
	return findActiveMembership(r.db.WithContext(ctx), userID, tenantID)
}

// PrimaryMembership 查询用户的有效主成员关系，不存在时返回 nil
func (r *MembershipResolver) PrimaryMembership(ctx context.Context, userID uint) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_primary = ? AND is_active = ?", userID, true, true).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query primary membership: %w", err)
	}
	return &membership, nil
}

// ActiveTenantID 用户当前所在的租户：已选择且成员关系有效的租户，否则为有效主成员关系的租户。
// 都没有时返回 nil。
func (r *MembershipResolver) ActiveTenantID(ctx context.Context, user *models.User) (*uint, error) {
	if user.CurrentTenantID != nil {
		current, err := r.ActiveMembership(ctx, user.ID, *user.CurrentTenantID)
		if err != nil {
			return nil, err
		}
		if current != nil {
			return &current.TenantID, nil
		}
	}
	primary, err := r.PrimaryMembership(ctx, user.ID)
	if err != nil || primary == nil {
		return nil, err
	}
	return &primary.TenantID, nil
}

// EffectiveRole 生效角色
func (r *MembershipResolver) EffectiveRole(ctx context.Context, user *models.User) (models.Role, error) {
	eff, err := r.Resolve(ctx, user)
	if err != nil {
		return "", err
	}
	return eff.Role, nil
}

// EffectivePermissions 生效的自定义权限（不含角色静态权限）
func (r *MembershipResolver) EffectivePermissions(ctx context.Context, user *models.User) ([]models.Permission, error) {
	eff, err := r.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}
	return eff.Custom, nil
}

// HasPermission 用户在当前租户下是否拥有权限
func (r *MembershipResolver) HasPermission(ctx context.Context, user *models.User, p models.Permission) (bool, error) {
	eff, err := r.Resolve(ctx, user)
	if err != nil {
		return false, err
	}
	return eff.HasPermission(p), nil
}

// HasRole 用户在当前租户下的生效角色是否为指定角色
func (r *MembershipResolver) HasRole(ctx context.Context, user *models.User, role models.Role) (bool, error) {
	eff, err := r.Resolve(ctx, user)
	if err != nil {
		return false, err
	}
	return eff.HasRole(role), nil
}

func findActiveMembership(db *gorm.DB, userID, tenantID uint) (*models.Membership, error) {
	var membership models.Membership
	err := db.Where("user_id = ? AND tenant_id = ? AND is_active = ?", userID, tenantID, true).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query membership: %w", err)
	}
	return &membership, nil
}
