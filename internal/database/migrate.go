package database

import (
	"shipdesk/internal/models"
	"shipdesk/pkg/logger"

	"gorm.io/gorm"
)

// Migrate 对全局连接执行数据库迁移
func Migrate() error {
	return MigrateDB(DB)
}

// MigrateDB 执行数据库迁移
func MigrateDB(db *gorm.DB) error {
	appLogger := logger.GetLogger()
	appLogger.Info("Starting database migration...")

	err := db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Membership{},
		// 发货单
		&models.ShippingDocument{},
		&models.ShippingItem{},
		&models.OrphanBlob{},
	)
	if err != nil {
		appLogger.Errorf("Database migration failed: %v", err)
		return err
	}

	appLogger.Info("Database migration completed successfully")
	return nil
}
