package services

import (
	"context"
	"testing"

	"shipdesk/internal/models"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionAlive(t *testing.T, store session.Store, p *Principal) bool {
	t.Helper()
	_, err := store.Get(context.Background(), p.SessionID)
	return err == nil
}

func TestAuthorizeRejectsMissingPrincipal(t *testing.T) {
	db := newTestDB(t)
	access := NewAccessService(db, session.NewMemoryStore())

	_, err := access.Authorize(context.Background(), nil, Requirement{})
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
}

func TestAuthorizeDeactivatedAccountEndsSession(t *testing.T) {
	db := newTestDB(t)
	store := session.NewMemoryStore()
	access := NewAccessService(db, store)
	user := createUser(t, db, "gone@example.com", models.RoleAdmin)
	user.IsActive = false
	p := login(t, store, user)

	_, err := access.Authorize(context.Background(), p, Requirement{Permission: models.PermissionDocument})
	assert.ErrorIs(t, err, apperrors.ErrAccountDeactivated)
	assert.False(t, sessionAlive(t, store, p))
}

func TestAuthorizeDeactivatedTenantEndsSession(t *testing.T) {
	db := newTestDB(t)
	store := session.NewMemoryStore()
	access := NewAccessService(db, store)
	tenant := createTenant(t, db, "ACME", true)
	user := createUser(t, db, "admin@example.com", models.RoleAdmin)
	attach(t, db, tenant, user, models.RoleAdmin)
	switchTo(t, db, user, tenant)
	p := login(t, store, user)

	_, err := access.Authorize(context.Background(), p, Requirement{})
	require.NoError(t, err)

	require.NoError(t, db.Model(tenant).Update("is_active", false).Error)

	// 租户停用优先于角色检查
	_, err = access.Authorize(context.Background(), p, Requirement{Role: models.RoleSuperAdmin})
	assert.ErrorIs(t, err, apperrors.ErrTenantDeactivated)
	assert.False(t, sessionAlive(t, store, p))
}

func TestAuthorizeSoftDeletedTenantCountsAsInactive(t *testing.T) {
	db := newTestDB(t)
	store := session.NewMemoryStore()
	access := NewAccessService(db, store)
	tenant := createTenant(t, db, "ACME", true)
	user := createUser(t, db, "admin@example.com", models.RoleAdmin)
	attach(t, db, tenant, user, models.RoleAdmin)
	switchTo(t, db, user, tenant)
	p := login(t, store, user)

	require.NoError(t, db.Delete(tenant).Error)

	_, err := access.Authorize(context.Background(), p, Requirement{})
	assert.ErrorIs(t, err, apperrors.ErrTenantDeactivated)
}

func TestAuthorizeRoleThenPermission(t *testing.T) {
	db := newTestDB(t)
	store := session.NewMemoryStore()
	access := NewAccessService(db, store)
	user := createUser(t, db, "shop@example.com", models.RoleShopManager)
	p := login(t, store, user)

	_, err := access.Authorize(context.Background(), p, Requirement{
		Role:       models.RoleAdmin,
		Permission: models.PermissionDocument,
	})
	var forbidden *apperrors.ForbiddenError
	require.True(t, apperrors.As(err, &forbidden))
	assert.Equal(t, apperrors.ForbiddenRole, forbidden.Kind)
	assert.Equal(t, "admin", forbidden.Value)

	_, err = access.Authorize(context.Background(), p, Requirement{Permission: models.PermissionDocument})
	require.True(t, apperrors.As(err, &forbidden))
	assert.Equal(t, apperrors.ForbiddenPermission, forbidden.Kind)
	assert.Equal(t, "document", forbidden.Value)

	// 拒绝访问不会终止会话
	assert.True(t, sessionAlive(t, store, p))
}

func TestAuthorizeReturnsScope(t *testing.T) {
	db := newTestDB(t)
	store := session.NewMemoryStore()
	access := NewAccessService(db, store)
	tenant := createTenant(t, db, "ACME", true)
	user := createUser(t, db, "vip@example.com", models.RoleVIP)
	attach(t, db, tenant, user, models.RoleAdmin)
	switchTo(t, db, user, tenant)

	scope, err := access.Authorize(context.Background(), login(t, store, user), Requirement{Permission: models.PermissionDocument})
	require.NoError(t, err)
	assert.Equal(t, user.ID, scope.UserID)
	require.NotNil(t, scope.TenantID)
	assert.Equal(t, tenant.ID, *scope.TenantID)
	assert.Equal(t, models.RoleAdmin, scope.Role)
}

func TestRequireTenant(t *testing.T) {
	db := newTestDB(t)
	store := session.NewMemoryStore()
	access := NewAccessService(db, store)

	t.Run("no tenant", func(t *testing.T) {
		user := createUser(t, db, "lonely@example.com", models.RoleAdmin)
		p := login(t, store, user)

		_, err := access.RequireTenant(context.Background(), p)
		assert.ErrorIs(t, err, apperrors.ErrNoTenantAssigned)
		assert.False(t, sessionAlive(t, store, p))
	})

	t.Run("super admin bypass", func(t *testing.T) {
		user := createUser(t, db, "root@example.com", models.RoleSuperAdmin)
		p := login(t, store, user)

		tenantID, err := access.RequireTenant(context.Background(), p)
		require.NoError(t, err)
		assert.Nil(t, tenantID)
		assert.True(t, sessionAlive(t, store, p))
	})

	t.Run("primary tenant", func(t *testing.T) {
		tenant := createTenant(t, db, "TECHCORP", true)
		user := createUser(t, db, "member@example.com", models.RoleVIP)
		attach(t, db, tenant, user, models.RoleVIP)
		require.NoError(t, db.First(user, user.ID).Error)

		tenantID, err := access.RequireTenant(context.Background(), login(t, store, user))
		require.NoError(t, err)
		require.NotNil(t, tenantID)
		assert.Equal(t, tenant.ID, *tenantID)
	})

	t.Run("inactive tenant", func(t *testing.T) {
		tenant := createTenant(t, db, "GLOBALTRADE", false)
		user := createUser(t, db, "idle@example.com", models.RoleVIP)
		attach(t, db, tenant, user, models.RoleVIP)
		require.NoError(t, db.First(user, user.ID).Error)
		p := login(t, store, user)

		_, err := access.RequireTenant(context.Background(), p)
		assert.ErrorIs(t, err, apperrors.ErrTenantDeactivated)
		assert.False(t, sessionAlive(t, store, p))
	})
}

func TestAuthorizeDropsTenantAfterMembershipDeactivated(t *testing.T) {
	db := newTestDB(t)
	store := session.NewMemoryStore()
	access := NewAccessService(db, store)
	acme := createTenant(t, db, "ACME", true)
	user := createUser(t, db, "former@example.com", models.RoleAdmin)
	attach(t, db, acme, user, models.RoleAdmin)
	switchTo(t, db, user, acme)
	p := login(t, store, user)

	require.NoError(t, NewMembershipService(db).Deactivate(context.Background(), acme.ID, user.ID))

	scope, err := access.Authorize(context.Background(), p, Requirement{})
	require.NoError(t, err)
	assert.Nil(t, scope.TenantID)
	assert.Nil(t, scope.Effective.TenantID)

	_, err = access.RequireTenant(context.Background(), p)
	assert.ErrorIs(t, err, apperrors.ErrNoTenantAssigned)
	assert.False(t, sessionAlive(t, store, p))
}

func TestAuthorizeFallsBackToPromotedPrimary(t *testing.T) {
	db := newTestDB(t)
	store := session.NewMemoryStore()
	access := NewAccessService(db, store)
	acme := createTenant(t, db, "ACME", true)
	tech := createTenant(t, db, "TECHCORP", true)
	user := createUser(t, db, "mover@example.com", models.RoleAdmin)
	attach(t, db, acme, user, models.RoleAdmin)
	attach(t, db, tech, user, models.RoleVIP)
	switchTo(t, db, user, acme)
	p := login(t, store, user)

	require.NoError(t, NewMembershipService(db).Deactivate(context.Background(), acme.ID, user.ID))

	scope, err := access.Authorize(context.Background(), p, Requirement{})
	require.NoError(t, err)
	require.NotNil(t, scope.TenantID)
	assert.Equal(t, tech.ID, *scope.TenantID)

	tenantID, err := access.RequireTenant(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, tenantID)
	assert.Equal(t, tech.ID, *tenantID)
	assert.True(t, sessionAlive(t, store, p))
}
