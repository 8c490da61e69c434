// careerdev is the HTTP gateway: resume store, document uploads, and the
// streaming advisor endpoints, in front of PostgreSQL, blob storage, and the
// Gemini API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/careerdev-ai/careerdev/pkg/advisor"
	"github.com/careerdev-ai/careerdev/pkg/blob"
	"github.com/careerdev-ai/careerdev/pkg/gateway/config"
	"github.com/careerdev-ai/careerdev/pkg/gateway/server"
	"github.com/careerdev-ai/careerdev/pkg/keyselect"
	"github.com/careerdev-ai/careerdev/pkg/store"
)

func main() {
	os.Exit(runMain())
}

func runMain() int {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}

	if cfg.GeminiAPIKey == "" {
		key, err := keyselect.Resolve()
		if err != nil {
			fmt.Fprintln(os.Stderr, "api key:", err)
			return 2
		}
		cfg.GeminiAPIKey = key
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Migrate(ctx, cfg.DatabaseURL); err != nil {
		logger.Error("migrate", "err", err)
		return 1
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("open database pool", "err", err)
		return 1
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database unreachable", "err", err)
		return 1
	}

	adv, err := advisor.New(ctx, cfg.GeminiAPIKey, logger)
	if err != nil {
		logger.Error("advisor client", "err", err)
		return 1
	}

	blobStore := blob.New(blob.Config{
		Bucket:          cfg.BlobBucket,
		Region:          cfg.BlobRegion,
		AccessKeyID:     cfg.BlobAccessKey,
		SecretAccessKey: cfg.BlobSecretKey,
		Endpoint:        cfg.BlobEndpoint,
		PublicBaseURL:   cfg.BlobPublicBaseURL,
	})

	srv := server.New(cfg, server.Deps{
		Advisor: adv,
		Store:   store.NewPostgres(pool),
		Blob:    blobStore,
	}, logger)

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server", "err", err)
		return 1
	}
	return 0
}
