package main

import (
	"context"
	"errors"
	"fmt"

	"shipdesk/internal/models"
	"shipdesk/internal/services"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/logger"

	"gorm.io/gorm"
)

// 演示账号的统一密码
const seedPassword = "qweasdzxc123"

type seedTenant struct {
	Name        string
	Code        string
	Description string
}

type seedMembership struct {
	TenantCode string
	Role       models.Role
	Primary    bool
}

type seedUser struct {
	Name        string
	Email       string
	Role        models.Role
	Memberships []seedMembership
}

var seedTenants = []seedTenant{
	{Name: "ACME Corporation", Code: "ACME", Description: "Global manufacturing and distribution company"},
	{Name: "TechCorp Solutions", Code: "TECHCORP", Description: "Technology solutions provider"},
	{Name: "GlobalTrade Logistics", Code: "GLOBALTRADE", Description: "International logistics and supply chain management"},
}

var seedUsers = []seedUser{
	{
		Name: "Super Admin Example", Email: "super_admin@example.com", Role: models.RoleSuperAdmin,
		Memberships: []seedMembership{
			{TenantCode: "ACME", Role: models.RoleSuperAdmin, Primary: true},
			{TenantCode: "TECHCORP", Role: models.RoleSuperAdmin},
			{TenantCode: "GLOBALTRADE", Role: models.RoleSuperAdmin},
		},
	},
	{
		Name: "Admin Example", Email: "admin@example.com", Role: models.RoleAdmin,
		Memberships: []seedMembership{
			{TenantCode: "ACME", Role: models.RoleAdmin, Primary: true},
			{TenantCode: "TECHCORP", Role: models.RoleShopManager},
		},
	},
	{
		Name: "Supervisor Example", Email: "supervisor@example.com", Role: models.RoleAdmin,
		Memberships: []seedMembership{
			{TenantCode: "TECHCORP", Role: models.RoleAdmin, Primary: true},
			{TenantCode: "GLOBALTRADE", Role: models.RoleShopManager},
		},
	},
	{
		Name: "Shop Manager Example", Email: "shop_manager@example.com", Role: models.RoleShopManager,
		Memberships: []seedMembership{
			{TenantCode: "ACME", Role: models.RoleShopManager, Primary: true},
			{TenantCode: "GLOBALTRADE", Role: models.RoleCommercialPartner},
		},
	},
	{
		Name: "Shopper Example", Email: "shopper@example.com", Role: models.RoleCommercialPartner,
		Memberships: []seedMembership{
			{TenantCode: "TECHCORP", Role: models.RoleCommercialPartner, Primary: true},
			{TenantCode: "ACME", Role: models.RoleVIP},
		},
	},
	{
		Name: "VIP Shopper Example", Email: "vip_shopper@example.com", Role: models.RoleVIP,
		Memberships: []seedMembership{
			{TenantCode: "GLOBALTRADE", Role: models.RoleVIP, Primary: true},
			{TenantCode: "TECHCORP", Role: models.RoleVIP},
		},
	},
}

// seedData 初始化演示数据，已存在的租户和用户会被跳过
func seedData(ctx context.Context, db *gorm.DB) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting seed data initialization...")

	tenantIDs, err := seedTenantRecords(ctx, db)
	if err != nil {
		return fmt.Errorf("创建租户失败: %w", err)
	}
	if err := seedUserRecords(ctx, db, tenantIDs); err != nil {
		return fmt.Errorf("创建用户失败: %w", err)
	}

	appLogger.Infof("Seed data initialization completed, password for all demo users: %s", seedPassword)
	return nil
}

func seedTenantRecords(ctx context.Context, db *gorm.DB) (map[string]uint, error) {
	tenantService := services.NewTenantService(db)
	ids := make(map[string]uint, len(seedTenants))

	for _, t := range seedTenants {
		var existing models.Tenant
		err := db.WithContext(ctx).Where("code = ?", t.Code).First(&existing).Error
		if err == nil {
			logger.GetLogger().Infof("租户 %s 已存在，跳过创建", t.Code)
			ids[t.Code] = existing.ID
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		tenant, err := tenantService.Create(ctx, services.TenantInput{
			Name:        t.Name,
			Code:        t.Code,
			Description: t.Description,
		})
		if err != nil {
			return nil, err
		}
		ids[t.Code] = tenant.ID
	}
	return ids, nil
}

func seedUserRecords(ctx context.Context, db *gorm.DB, tenantIDs map[string]uint) error {
	userService := services.NewUserService(db, nil)
	membershipService := services.NewMembershipService(db)

	for _, u := range seedUsers {
		_, err := userService.GetByEmail(ctx, u.Email)
		if err == nil {
			logger.GetLogger().Infof("用户 %s 已存在，跳过创建", u.Email)
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		user, err := userService.Create(ctx, services.CreateUserInput{
			Name:     u.Name,
			Email:    u.Email,
			Password: seedPassword,
			Role:     u.Role,
		})
		if err != nil {
			return err
		}

		for _, m := range u.Memberships {
			tenantID, ok := tenantIDs[m.TenantCode]
			if !ok {
				return fmt.Errorf("unknown tenant %s", m.TenantCode)
			}
			if _, err := membershipService.Attach(ctx, tenantID, user.ID, services.MembershipInput{
				Role:      m.Role,
				IsPrimary: m.Primary,
			}); err != nil {
				return err
			}
			if m.Primary {
				if _, err := membershipService.SwitchTenant(ctx, user.ID, tenantID); err != nil {
					return err
				}
			}
		}
		logger.GetLogger().Infof("Created user: %s (%s)", u.Name, u.Email)
	}
	return nil
}
