package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/surveykit/hooks/internal/app"
	"github.com/surveykit/hooks/internal/config"
	"github.com/surveykit/hooks/internal/database"
	"github.com/surveykit/hooks/internal/pkg/nativelog"
	"github.com/surveykit/hooks/internal/pkg/prettylog"
	"github.com/surveykit/hooks/internal/pkg/proctitle"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	migrateOnly := flag.Bool("migrate", false, "Apply database schema migration and exit")
	flag.Parse()

	_ = proctitle.Set("surveykit-hooks")

	cfg, err := loadConfig(*configPath)
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("failed to load config", zap.Error(err))
	}

	// The native log pipeline reads its directory from the environment, so
	// it must be set before the logger opens its file.
	_ = os.Setenv(nativelog.EnvLogDir, cfg.LogDir())

	logger, err := nativelog.NewZapLogger()
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("native log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	defer logger.Sync()

	// Worker replicas skip migration at boot, so a fresh deployment
	// without a cron owner needs this explicit path.
	if *migrateOnly {
		if err := database.EnsureSchema(cfg); err != nil {
			logger.Fatal("schema migration failed", zap.Error(err))
		}
		logger.Info("schema up to date", prettylog.SuccessField())
		return
	}

	application, err := app.New(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    application.Addr(),
		Handler: application.Router(),
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), prettylog.ReadyField())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	application.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}

// loadConfig falls back to built-in defaults when the default config file
// does not exist. An explicitly given --config path must exist. Environment
// overrides apply on top of whichever source won.
func loadConfig(path string) (*config.AppConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if path != config.DefaultConfigPath || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
	}
	config.ApplyEnvOverrides(cfg)
	return cfg, nil
}
