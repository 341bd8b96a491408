package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"eboard/api/internal/app"
	"eboard/api/internal/artifacts"
	"eboard/api/internal/config"
	"eboard/api/internal/drafts"
	"eboard/api/internal/email"
	"eboard/api/internal/export"
	"eboard/api/internal/gitrepo"
	"eboard/api/internal/obs"
	"eboard/api/internal/search"
	"eboard/api/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := obs.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	obs.Init()

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL, store.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		logger.Fatal("create repos dir", zap.String("dir", cfg.ReposDir), zap.Error(err))
	}

	deps := app.Deps{
		Store:    store.NewPostgresStore(db),
		Git:      gitrepo.New(cfg.ReposDir),
		Exporter: export.NewService(),
		Mailer: email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		}),
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		draftStore, err := drafts.NewRedisStore(cfg.RedisURL, cfg.DraftTTL)
		if err != nil {
			logger.Warn("drafts disabled", zap.Error(err))
		} else {
			defer draftStore.Close()
			deps.Drafts = draftStore
		}
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		defer meiliClient.Close()
	}
	deps.Search = search.NewService(meiliClient, search.NewPgFTS(db), logger)
	go deps.Search.ReindexAllFromPG(context.Background())

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		artifactStore, err := artifacts.New(artifacts.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err == nil {
			err = artifactStore.EnsureBucket(ctx)
		}
		if err != nil {
			logger.Warn("published pdf storage disabled", zap.Error(err))
		} else {
			deps.Artifacts = artifactStore
		}
	}

	service := app.New(cfg, logger, deps)
	if err := service.EnsureBootstrapAdmin(ctx); err != nil {
		logger.Warn("bootstrap admin failed", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.NewHTTPServer(service).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("eBoard API listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	service.Wait()
}
