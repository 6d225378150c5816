package services

import (
	"context"
	"testing"
	"time"

	"shipdesk/internal/database"
	"shipdesk/internal/models"
	"shipdesk/pkg/session"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createTenant(t *testing.T, db *gorm.DB, code string, active bool) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Name: code + " Ltd", Code: code, IsActive: active}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func createUser(t *testing.T, db *gorm.DB, email string, role models.Role, perms ...models.Permission) *models.User {
	t.Helper()
	user := &models.User{
		Name:        "Test User",
		Email:       email,
		Role:        role,
		Permissions: perms,
		IsActive:    true,
		Timezone:    models.DefaultTimezone,
	}
	require.NoError(t, user.SetPassword("secret-password"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func attach(t *testing.T, db *gorm.DB, tenant *models.Tenant, user *models.User, role models.Role, perms ...models.Permission) *models.Membership {
	t.Helper()
	m, err := NewMembershipService(db).Attach(context.Background(), tenant.ID, user.ID, MembershipInput{
		Role:        role,
		Permissions: perms,
	})
	require.NoError(t, err)
	return m
}

func switchTo(t *testing.T, db *gorm.DB, user *models.User, tenant *models.Tenant) {
	t.Helper()
	ok, err := NewMembershipService(db).SwitchTenant(context.Background(), user.ID, tenant.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, db.First(user, user.ID).Error)
}

func login(t *testing.T, store session.Store, user *models.User) *Principal {
	t.Helper()
	sid, err := store.Create(context.Background(), user.ID, time.Hour)
	require.NoError(t, err)
	return &Principal{User: user, SessionID: sid}
}
