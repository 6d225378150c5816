package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shipdesk/internal/database"
	"shipdesk/internal/router"
	"shipdesk/internal/services"
	"shipdesk/pkg/config"
	"shipdesk/pkg/jwt"
	"shipdesk/pkg/logger"
	"shipdesk/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	withSeed bool

	rootCmd = &cobra.Command{
		Use:   "shipdesk",
		Short: "Multi-tenant warehouse administration backend",
		RunE:  runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE:  runMigrate,
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Create demo tenants and users",
		RunE:  runSeed,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&withSeed, "seed", false, "seed demo data after migration")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap 加载配置、初始化日志与数据库
func bootstrap() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := database.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	if _, err := bootstrap(); err != nil {
		return err
	}
	defer database.Close()
	return database.Migrate()
}

func runSeed(cmd *cobra.Command, _ []string) error {
	if _, err := bootstrap(); err != nil {
		return err
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		return err
	}
	return seedData(cmd.Context(), database.GetDB())
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	appLogger := logger.GetLogger()
	appLogger.Info("Starting shipdesk...")

	sessions := database.GetSessionStore()
	defer func() {
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
		if err := database.CloseSessionStore(); err != nil {
			appLogger.Error("Failed to close session store:", err)
		}
	}()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if withSeed {
		if err := seedData(cmd.Context(), database.GetDB()); err != nil {
			return fmt.Errorf("failed to initialize seed data: %w", err)
		}
	}

	store, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	gin.SetMode(cfg.Server.Mode)

	// 孤立文件清理任务
	if cfg.Sweeper.Enabled {
		sweeper := services.NewBlobSweeper(database.GetDB(), store, cfg.Sweeper)
		if err := sweeper.Start(); err != nil {
			appLogger.Errorf("Failed to start blob sweeper: %v", err)
			// 不影响主服务启动
		}
		defer sweeper.Stop()
	}

	r := router.SetupRouter(router.Dependencies{
		Config:   cfg,
		DB:       database.GetDB(),
		Sessions: sessions,
		Storage:  store,
		JWT:      jwt.GetJWTManager(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()
	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
	return nil
}
