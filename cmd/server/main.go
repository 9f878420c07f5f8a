package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mstanton/labtrack/internal/api"
	"github.com/mstanton/labtrack/internal/app"
	"github.com/mstanton/labtrack/internal/app/maintenance"
	iauth "github.com/mstanton/labtrack/internal/auth"
	"github.com/mstanton/labtrack/internal/cache"
	"github.com/mstanton/labtrack/internal/database"
	"github.com/mstanton/labtrack/internal/services"
	"github.com/mstanton/labtrack/pkg/logger"
	"github.com/mstanton/labtrack/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("labtrack-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	var store cache.Store
	if cfg.Cache.Redis.Enabled {
		redisStore, redisErr := cache.NewRedisStore(ctx, cfg.Cache.RedisClientConfig())
		if redisErr != nil {
			log.Warn("redis unavailable; using in-memory cache", zap.Error(redisErr))
		} else {
			store = redisStore
			defer redisStore.Close()
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	if store == nil {
		store = cache.NewMemoryStore()
	}

	jwtService, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise jwt service: %w", err)
	}

	reminder, err := startReminders(db, cfg)
	if err != nil {
		return fmt.Errorf("start reminder job: %w", err)
	}
	if reminder != nil {
		defer reminder.Stop()
	}

	routerOpts := api.Options{
		DB:          db,
		JWT:         jwtService,
		Cache:       store,
		CORSOrigins: cfg.Server.CORSOrigins,
	}
	if cfg.Server.RateLimit.Enabled {
		routerOpts.RateLimitRequests = cfg.Server.RateLimit.Requests
		routerOpts.RateLimitWindow = cfg.Server.RateLimit.Window
	}

	router, err := api.NewRouter(routerOpts)
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	dbCfg.Driver = strings.ToLower(strings.TrimSpace(dbCfg.Driver))
	if dbCfg.Driver == "" {
		dbCfg.Driver = "sqlite"
	}

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	if err := database.EnsureAdmin(db, cfg.Bootstrap.BootstrapAdmin()); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func startReminders(db *gorm.DB, cfg *app.Config) (*maintenance.Reminder, error) {
	if !cfg.Reminders.Enabled {
		return nil, nil
	}

	notifications, err := services.NewNotificationService(db)
	if err != nil {
		return nil, err
	}
	loans, err := services.NewLoanService(db, notifications)
	if err != nil {
		return nil, err
	}

	opts := []maintenance.Option{
		maintenance.WithSchedule(cfg.Reminders.Schedule),
		maintenance.WithDaysBeforeDue(cfg.Reminders.DaysBeforeDue),
	}

	if cfg.Email.SMTP.Enabled {
		mailer, mailErr := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
		if mailErr != nil {
			logger.WithModule("bootstrap").Warn("smtp mailer unavailable", zap.Error(mailErr))
		} else {
			opts = append(opts, maintenance.WithMailer(mailer))
		}
	}

	reminder := maintenance.NewReminder(db, loans, notifications, opts...)
	if err := reminder.Start(); err != nil {
		return nil, err
	}
	return reminder, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("access underlying database handle", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
}
