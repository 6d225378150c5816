package services

import (
	"context"
	"testing"

	"shipdesk/internal/models"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantLifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := NewTenantService(db)
	ctx := context.Background()

	tenant, err := svc.Create(ctx, TenantInput{Name: "Acme Corporation", Code: " acme "})
	require.NoError(t, err)
	assert.Equal(t, "ACME", tenant.Code)
	assert.True(t, tenant.IsActive)

	_, err = svc.Create(ctx, TenantInput{Name: "Other Acme", Code: "ACME"})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	updated, err := svc.Update(ctx, tenant.ID, TenantInput{Name: "Acme Pty Ltd", Code: "CHANGED", Settings: map[string]interface{}{"currency": "AUD"}})
	require.NoError(t, err)
	assert.Equal(t, "ACME", updated.Code, "code is immutable")
	assert.Equal(t, "AUD", updated.Settings["currency"])

	deactivated, err := svc.Deactivate(ctx, tenant.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
	assert.Equal(t, int64(1), stats.Inactive)

	require.NoError(t, svc.Delete(ctx, tenant.ID))
	_, err = svc.GetByID(ctx, tenant.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// 软删除后代码仍被占用
	_, err = svc.Create(ctx, TenantInput{Name: "Acme Again", Code: "ACME"})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestTenantListCountsActiveMembers(t *testing.T) {
	db := newTestDB(t)
	svc := NewTenantService(db)
	acme := createTenant(t, db, "ACME", true)
	createTenant(t, db, "IDLE", false)
	a := createUser(t, db, "a@example.com", models.RoleVIP)
	b := createUser(t, db, "b@example.com", models.RoleVIP)
	attach(t, db, acme, a, models.RoleVIP)
	attach(t, db, acme, b, models.RoleVIP)
	require.NoError(t, NewMembershipService(db).Deactivate(context.Background(), acme.ID, b.ID))

	active := true
	tenants, total, err := svc.GetWithFiltersAndPage(context.Background(), &active, "", &pagination.PageParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tenants, 1)
	assert.Equal(t, 1, tenants[0].MemberCount)

	all, err := svc.GetAllActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
