// Package main API Server 入口
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pocketfiler/internal/apiserver/auth"
	"pocketfiler/internal/apiserver/metrics"
	"pocketfiler/internal/apiserver/server"
	"pocketfiler/internal/config"
	"pocketfiler/internal/shared/infra"
	"pocketfiler/internal/shared/mailer"
	objstore "pocketfiler/internal/shared/minio"
	"pocketfiler/internal/shared/payment"
	"pocketfiler/pkg/logging"
)

func main() {
	configDir := flag.String("config", "", "配置文件目录（或 YAML 文件路径）")
	flag.Parse()
	if *configDir != "" {
		config.SetConfigDir(*configDir)
	}

	// 加载配置（.env → YAML → 环境变量）
	cfg, err := config.Load()
	if err != nil {
		logging.Default("api-server").WithError(err).Error("failed to load config")
		os.Exit(1)
	}

	log := logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Component: "api-server",
	})
	log.Info("starting api server", "env", cfg.Env, "config", cfg.String())

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("api server exited")
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, log *logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 存储、Redis、事件总线
	inf, err := infra.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer inf.Close()
	log.Info("storage ready", "driver", cfg.DatabaseDriver, "redis", inf.Redis != nil)

	files, err := objstore.New(ctx, cfg.MinIO)
	if err != nil {
		return err
	}
	gateway, err := payment.New(cfg.Payment.Provider)
	if err != nil {
		return err
	}
	issuer, err := auth.NewJWTIssuer(auth.Config{
		JWTSecret:       cfg.Auth.JWTSecret,
		AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		BcryptCost:      cfg.Auth.BcryptCost,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h := server.NewHandler(cfg, server.Deps{
		Store:    inf.Store,
		Redis:    inf.Redis,
		Events:   inf.EventBus,
		Mail:     mailer.New(cfg.Mail, log.Named("mailer")),
		Files:    files,
		Payments: gateway,
		Tokens:   issuer,
		Metrics:  metrics.NewMetrics("pocketfiler", reg),
	})

	if err := h.Accounts().EnsureAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		return err
	}

	// 订阅过期扫描
	expirer := h.NewExpirer()
	expirer.Start(ctx)
	defer expirer.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.APIServer.Port,
		Handler:      h.Router(),
		ReadTimeout:  cfg.APIServer.ReadTimeout,
		WriteTimeout: cfg.APIServer.WriteTimeout,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 优雅关闭
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Info("shutting down server", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.APIServer.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown error")
	}
	return nil
}
