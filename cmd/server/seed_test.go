package main

import (
	"context"
	"testing"

	"shipdesk/internal/database"
	"shipdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedDataIsIdempotent(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, seedData(ctx, db))
	require.NoError(t, seedData(ctx, db))

	var tenants, users, memberships int64
	require.NoError(t, db.Model(&models.Tenant{}).Count(&tenants).Error)
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Membership{}).Count(&memberships).Error)
	assert.Equal(t, int64(len(seedTenants)), tenants)
	assert.Equal(t, int64(len(seedUsers)), users)
	assert.Equal(t, int64(13), memberships)

	var admin models.User
	require.NoError(t, db.Preload("CurrentTenant").Where("email = ?", "admin@example.com").First(&admin).Error)
	require.NotNil(t, admin.CurrentTenant)
	assert.Equal(t, "ACME", admin.CurrentTenant.Code)
	assert.True(t, admin.CheckPassword(seedPassword))
	assert.Equal(t, *admin.CurrentTenantID, *admin.PrimaryTenantID)
}
