package services

import (
	"context"
	"testing"

	"shipdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithoutTenantUsesAccountDefaults(t *testing.T) {
	db := newTestDB(t)
	user := createUser(t, db, "vip@example.com", models.RoleVIP, models.PermissionDocument)

	eff, err := NewMembershipResolver(db).Resolve(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, models.RoleVIP, eff.Role)
	assert.Nil(t, eff.TenantID)
	assert.True(t, eff.HasPermission(models.PermissionDocument), "custom permission")
	assert.True(t, eff.HasPermission(models.PermissionAccount), "role permission")
	assert.False(t, eff.HasPermission(models.PermissionSystemAccess))
}

func TestResolveTenantMembershipOverridesDefaults(t *testing.T) {
	db := newTestDB(t)
	tenant := createTenant(t, db, "ACME", true)
	user := createUser(t, db, "manager@example.com", models.RoleVIP, models.PermissionWarehouseManagement)
	attach(t, db, tenant, user, models.RoleAdmin, models.PermissionSystemAccess)
	switchTo(t, db, user, tenant)

	resolver := NewMembershipResolver(db)
	eff, err := resolver.Resolve(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, models.RoleAdmin, eff.Role)
	require.NotNil(t, eff.TenantID)
	assert.Equal(t, tenant.ID, *eff.TenantID)
	assert.Equal(t, []models.Permission{models.PermissionSystemAccess}, eff.Custom)

	// 生效权限 = 自定义权限 ∪ 角色静态权限
	for _, p := range models.AllPermissions() {
		want := p == models.PermissionSystemAccess || models.RoleAdmin.HasPermission(p)
		assert.Equalf(t, want, eff.HasPermission(p), "permission %s", p)
	}

	ok, err := resolver.HasRole(context.Background(), user, models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolveEmptyTenantPermissionsFallBackToAccount(t *testing.T) {
	db := newTestDB(t)
	tenant := createTenant(t, db, "ACME", true)
	user := createUser(t, db, "partner@example.com", models.RoleCommercialPartner, models.PermissionDocument)
	attach(t, db, tenant, user, models.RoleShopManager)
	switchTo(t, db, user, tenant)

	eff, err := NewMembershipResolver(db).Resolve(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, models.RoleShopManager, eff.Role)
	assert.Equal(t, []models.Permission{models.PermissionDocument}, eff.Custom)
	assert.True(t, eff.HasPermission(models.PermissionDocument))
	assert.True(t, eff.HasPermission(models.PermissionTransactionManagement))
}

func TestResolveInactiveMembershipFallsBackSilently(t *testing.T) {
	db := newTestDB(t)
	tenant := createTenant(t, db, "ACME", true)
	user := createUser(t, db, "former@example.com", models.RoleVIP)
	attach(t, db, tenant, user, models.RoleAdmin)
	switchTo(t, db, user, tenant)

	require.NoError(t, NewMembershipService(db).Deactivate(context.Background(), tenant.ID, user.ID))

	eff, err := NewMembershipResolver(db).Resolve(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, models.RoleVIP, eff.Role)
	assert.Nil(t, eff.TenantID)
	assert.False(t, eff.HasPermission(models.PermissionDocument))
}

func TestActiveTenantIDFallsBackToPrimary(t *testing.T) {
	db := newTestDB(t)
	acme := createTenant(t, db, "ACME", true)
	user := createUser(t, db, "new@example.com", models.RoleVIP)
	attach(t, db, acme, user, models.RoleVIP)

	require.NoError(t, db.First(user, user.ID).Error)
	require.Nil(t, user.CurrentTenantID)

	tenantID, err := NewMembershipResolver(db).ActiveTenantID(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, tenantID)
	assert.Equal(t, acme.ID, *tenantID)
}

func TestEffectiveGrantedKeepsKnownOrder(t *testing.T) {
	eff := &Effective{
		Role:   models.RoleVIP,
		Custom: []models.Permission{models.PermissionDocument, "beta_feature"},
	}
	assert.Equal(t, []models.Permission{
		models.PermissionMessageCenter,
		models.PermissionAccount,
		models.PermissionDocument,
		models.PermissionSettings,
		"beta_feature",
	}, eff.Granted())
	assert.True(t, eff.HasAnyPermission(models.PermissionSystemAccess, models.PermissionDocument))
	assert.False(t, eff.HasAllPermissions(models.PermissionSystemAccess, models.PermissionDocument))
}

func TestActiveTenantIDIgnoresInactiveCurrentMembership(t *testing.T) {
	db := newTestDB(t)
	acme := createTenant(t, db, "ACME", true)
	user := createUser(t, db, "former@example.com", models.RoleVIP)
	attach(t, db, acme, user, models.RoleVIP)
	switchTo(t, db, user, acme)

	require.NoError(t, NewMembershipService(db).Deactivate(context.Background(), acme.ID, user.ID))

	tenantID, err := NewMembershipResolver(db).ActiveTenantID(context.Background(), user)
	require.NoError(t, err)
	assert.Nil(t, tenantID)
}
