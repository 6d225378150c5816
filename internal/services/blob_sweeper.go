package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shipdesk/internal/models"
	"shipdesk/pkg/config"
	"shipdesk/pkg/logger"
	"shipdesk/pkg/storage"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlobSweeper 定期重试删除孤立文件
type BlobSweeper struct {
	db      *gorm.DB
	storage storage.Storage
	cfg     config.SweeperConfig
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
}

// NewBlobSweeper 创建孤立文件清理器
func NewBlobSweeper(db *gorm.DB, store storage.Storage, cfg config.SweeperConfig) *BlobSweeper {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &BlobSweeper{
		db:      db,
		storage: store,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}
}

// Start 启动调度器
func (s *BlobSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("清理任务已经在运行")
	}

	if _, err := s.cron.AddFunc(s.cfg.Spec, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			logger.GetLogger().Errorf("孤立文件清理失败: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("无效的cron表达式 %q: %w", s.cfg.Spec, err)
	}

	s.cron.Start()
	s.running = true
	logger.GetLogger().Infof("孤立文件清理任务已启动，cron: %s", s.cfg.Spec)
	return nil
}

// Stop 停止调度器，等待正在执行的清理完成
func (s *BlobSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	logger.GetLogger().Info("孤立文件清理任务已停止")
}

// Sweep 处理一批孤立文件，返回成功删除的数量。超过最大重试次数的记录保留以便人工处理。
func (s *BlobSweeper) Sweep(ctx context.Context) (int, error) {
	var orphans []models.OrphanBlob
	if err := s.db.WithContext(ctx).
		Where("attempts < ?", s.cfg.MaxAttempts).
		Order("updated_at ASC").
		Limit(s.cfg.BatchSize).
		Find(&orphans).Error; err != nil {
		return 0, err
	}

	removed := 0
	for _, orphan := range orphans {
		if err := s.storage.Delete(ctx, orphan.Path); err != nil {
			if uerr := s.db.WithContext(ctx).Model(&models.OrphanBlob{}).Where("id = ?", orphan.ID).Updates(map[string]interface{}{
				"attempts":   gorm.Expr("attempts + ?", 1),
				"last_error": err.Error(),
				"updated_at": time.Now(),
			}).Error; uerr != nil {
				logger.GetLogger().WithField("path", orphan.Path).Errorf("记录清理失败出错: %v", uerr)
				return removed, fmt.Errorf("record sweep failure for %s: %w", orphan.Path, uerr)
			}
			continue
		}
		if err := s.db.WithContext(ctx).Delete(&models.OrphanBlob{}, orphan.ID).Error; err != nil {
			return removed, err
		}
		removed++
	}

	if removed > 0 {
		logger.GetLogger().Infof("已清理 %d 个孤立文件", removed)
	}
	return removed, nil
}

// recordOrphan 记录删除失败的文件，同一路径只保留一条
func recordOrphan(db *gorm.DB, path string, cause error) error {
	orphan := models.OrphanBlob{Path: path, Attempts: 1, LastError: cause.Error()}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"last_error": cause.Error(),
			"updated_at": time.Now(),
		}),
	}).Create(&orphan).Error
}
