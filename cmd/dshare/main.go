package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/dshare/internal/ai"
	"github.com/xxxsen/dshare/internal/config"
	"github.com/xxxsen/dshare/internal/db"
	"github.com/xxxsen/dshare/internal/filestore"
	"github.com/xxxsen/dshare/internal/handler"
	"github.com/xxxsen/dshare/internal/job"
	"github.com/xxxsen/dshare/internal/middleware"
	"github.com/xxxsen/dshare/internal/repo"
	"github.com/xxxsen/dshare/internal/schedule"
	"github.com/xxxsen/dshare/internal/service"
)

type app struct {
	cfg      *config.Config
	users    *repo.UserRepo
	orgs     *repo.OrganizationRepo
	datasets *repo.DatasetRepo
	tokens   *service.ShareTokenService
	sessions *service.SessionService
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "dshare",
		Short: "dataset sharing server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run dshare server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "expire share tokens and delete stale sessions once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			a := newApp(cfg, conn)
			return schedule.RunAll(cmd.Context(), a.jobs()...)
		},
	}

	rootCmd.AddCommand(runCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func bootstrap(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

func newApp(cfg *config.Config, conn *sql.DB) *app {
	datasetRepo := repo.NewDatasetRepo(conn)
	return &app{
		cfg:      cfg,
		users:    repo.NewUserRepo(conn),
		orgs:     repo.NewOrganizationRepo(conn),
		datasets: datasetRepo,
		tokens:   service.NewShareTokenService(repo.NewShareTokenRepo(conn), datasetRepo),
		sessions: service.NewSessionService(repo.NewSessionRepo(conn), service.SessionOptions{
			TTL:          time.Duration(cfg.Share.SessionTTLHours) * time.Hour,
			Retention:    time.Duration(cfg.Share.SessionRetentionHours) * time.Hour,
			CacheSize:    cfg.Share.SessionCacheSize,
			MaxDownloads: cfg.Share.MaxDownloads,
			MaxChats:     cfg.Share.MaxChats,
		}),
	}
}

func (a *app) jobs() []schedule.Job {
	return []schedule.Job{
		job.NewTokenExpiryJob(a.tokens),
		job.NewSessionCleanupJob(a.sessions),
	}
}

// newAsker returns nil when no provider is configured, which disables chat.
func newAsker(cfg config.AIConfig) (service.Asker, error) {
	if cfg.Provider == "" {
		return nil, nil
	}
	provider, err := ai.NewProvider(cfg.Provider, cfg.Data)
	if err != nil {
		return nil, err
	}
	return ai.NewAssistant(ai.NewGenerator(provider, cfg.Model), ai.AssistantConfig{
		Timeout:       cfg.Timeout,
		MaxInputChars: cfg.MaxInputChars,
	}), nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	a := newApp(cfg, conn)
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}
	asker, err := newAsker(cfg.AI)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}

	authService := service.NewAuthService(a.users, []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours), cfg.Superusers)
	orgService := service.NewOrganizationService(a.orgs, a.users)
	datasetService := service.NewDatasetService(a.datasets, store)
	accessService := service.NewAccessService(a.datasets, a.tokens, a.sessions)
	chatService := service.NewChatService(accessService, datasetService, asker)

	deps := handler.RouterDeps{
		Auth:            handler.NewAuthHandler(authService),
		Organizations:   handler.NewOrganizationHandler(orgService),
		Datasets:        handler.NewDatasetHandler(datasetService, cfg.MaxUploadSizeMB*1024*1024),
		Shares:          handler.NewShareHandler(datasetService, a.tokens),
		Access:          handler.NewAccessHandler(accessService, datasetService, chatService),
		Users:           authService,
		JWTSecret:       []byte(cfg.JWTSecret),
		PublicRateLimit: time.Duration(cfg.PublicRateLimitMS) * time.Millisecond,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	for _, j := range a.jobs() {
		if err := scheduler.AddJob(j, cfg.Share.SweepSpec); err != nil {
			return fmt.Errorf("schedule %s: %w", j.Name(), err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
