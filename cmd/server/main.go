package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/harshsingh9817/datacollection/internal/app"
	"github.com/harshsingh9817/datacollection/internal/config"
	"github.com/harshsingh9817/datacollection/internal/ratelimit"
	"github.com/harshsingh9817/datacollection/internal/server"
	"github.com/harshsingh9817/datacollection/internal/usertoken"
	"github.com/harshsingh9817/datacollection/internal/util"
	"github.com/harshsingh9817/datacollection/pkg/ai"
	"github.com/harshsingh9817/datacollection/pkg/queue"
	"github.com/harshsingh9817/datacollection/pkg/storage"
	"github.com/harshsingh9817/datacollection/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		log.Fatalf("failed to init token verifier: %v", err)
	}

	recordStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init record store: %v", err)
	}

	photoStore, err := storage.New(storage.Config{
		Endpoint:      cfg.MinioEndpoint,
		AccessKey:     cfg.MinioAccessKey,
		SecretKey:     cfg.MinioSecretKey,
		Bucket:        cfg.MinioBucket,
		UseSSL:        cfg.MinioUseSSL,
		PublicBaseURL: cfg.PhotoPublicBaseURL,
	})
	if err != nil {
		log.Fatalf("failed to init photo store: %v", err)
	}

	appCfg := app.Config{
		Store:         recordStore,
		Photos:        photoStore,
		AdminEmail:    cfg.AdminEmail,
		MaxPhotoBytes: cfg.MaxPhotoBytes,
	}

	if cfg.RedisAddr != "" {
		cleanup, err := queue.NewCleanupQueue(queue.CleanupQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Fatalf("failed to init cleanup queue: %v", err)
		}
		cleanup.Start(context.Background(), 1, func(ctx context.Context, task queue.CleanupTask) error {
			return photoStore.Delete(ctx, task.AssetRef)
		})
		appCfg.Cleanup = cleanup
	}

	if cfg.GeminiAPIKey != "" {
		idCards, err := ai.NewIDCardClient(cfg.GeminiAPIKey, cfg.IDCardModel)
		if err != nil {
			log.Fatalf("failed to init id card client: %v", err)
		}
		appCfg.IDCards = idCards
	}

	appCore := app.New(appCfg)

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	var idCardLimiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" && cfg.IDCardRateLimitPerMinute > 0 {
		idCardLimiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "datacollection:ratelimit",
			cfg.IDCardRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		TokenVerifier:  tokenVerifier,
		IDCardLimiter:  idCardLimiter,
		TrustedProxies: trustedProxies,
		MaxUploadBytes: cfg.MaxPhotoBytes * 2,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("datacollection server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
