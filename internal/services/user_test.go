package services

import (
	"context"
	"testing"

	"shipdesk/internal/models"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/pagination"
	"shipdesk/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, session.NewMemoryStore())
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateUserInput{
		Name:     "Dana",
		Email:    " Dana@Example.com ",
		Password: "long-enough",
		Role:     models.RoleShopManager,
	})
	require.NoError(t, err)
	assert.Equal(t, "dana@example.com", user.Email)
	assert.Equal(t, models.DefaultTimezone, user.Timezone)
	assert.True(t, user.IsActive)
	assert.True(t, user.CheckPassword("long-enough"))

	_, err = svc.Create(ctx, CreateUserInput{Name: "Dup", Email: "dana@example.com", Password: "long-enough", Role: models.RoleVIP})
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)

	cases := map[string]CreateUserInput{
		"short password": {Name: "Al", Email: "a@example.com", Password: "short", Role: models.RoleVIP},
		"bad role":       {Name: "Al", Email: "a@example.com", Password: "long-enough", Role: "owner"},
		"bad email":      {Name: "Al", Email: "not-an-email", Password: "long-enough", Role: models.RoleVIP},
		"bad timezone":   {Name: "Al", Email: "a@example.com", Password: "long-enough", Role: models.RoleVIP, Timezone: "Mars/Olympus"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, in)
			assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
		})
	}
}

func TestUserListFiltersByTenant(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db, nil)
	acme := createTenant(t, db, "ACME", true)
	inside := createUser(t, db, "inside@example.com", models.RoleVIP)
	createUser(t, db, "outside@example.com", models.RoleAdmin)
	attach(t, db, acme, inside, models.RoleVIP)

	page := &pagination.PageParams{Page: 1, PageSize: 10}
	users, total, err := svc.GetWithFiltersAndPage(context.Background(), &acme.ID, "", "", page)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, users, 1)
	assert.Equal(t, inside.ID, users[0].ID)

	users, total, err = svc.GetWithFiltersAndPage(context.Background(), nil, string(models.RoleAdmin), "", page)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "outside@example.com", users[0].Email)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
}

func TestResetPassword(t *testing.T) {
	db := newTestDB(t)
	store := session.NewMemoryStore()
	svc := NewUserService(db, store)
	user := createUser(t, db, "reset@example.com", models.RoleVIP)
	p := login(t, store, user)
	ctx := context.Background()

	assert.ErrorIs(t, svc.ResetPassword(ctx, user.ID, "short"), apperrors.ErrValidationFailed)
	require.NoError(t, svc.ResetPassword(ctx, user.ID, "brand-new-password"))

	fresh, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, fresh.CheckPassword("brand-new-password"))
	assert.False(t, sessionAlive(t, store, p))

	_, err = svc.GetByID(ctx, 404)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
