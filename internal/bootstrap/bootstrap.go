// Package bootstrap provides dependency initialization for the SilenceCut API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/silencecut/silencecut-api/internal/admission"
	"github.com/silencecut/silencecut-api/internal/config"
	"github.com/silencecut/silencecut-api/internal/probe"
	"github.com/silencecut/silencecut-api/internal/queue"
	"github.com/silencecut/silencecut-api/internal/runner"
	"github.com/silencecut/silencecut-api/internal/server"
	"github.com/silencecut/silencecut-api/internal/storage"
	"github.com/silencecut/silencecut-api/internal/store"
	"github.com/silencecut/silencecut-api/internal/tier"
	"github.com/silencecut/silencecut-api/internal/trim"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Handlers *server.Handlers
	Queue    *queue.Queue
	Store    store.Store
}

// NewDependencies creates and initializes all dependencies for the
// application. The context bounds the lifetime of background job
// execution.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	st, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fs, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	prober := probe.NewFFprobe(cfg.FFprobePath)
	exec := runner.NewExec()

	processor := trim.NewProcessor(exec, prober, st, logger,
		trim.WithFFmpegPath(cfg.FFmpegPath),
		trim.WithTimeout(cfg.ProcessTimeout),
		trim.WithStorage(fs),
	)

	q := queue.New(ctx,
		func(ctx context.Context, job *trim.Job) { _ = processor.Process(ctx, job) },
		queue.WithWorkers(cfg.WorkerCount),
		queue.WithLogger(logger),
	)

	policy := admission.NewPolicy(admission.Limits{
		FreeMaxFileBytes: cfg.FreeMaxFileBytes,
		ProMaxFileBytes:  cfg.ProMaxFileBytes,
		MaxBatchFiles:    cfg.MaxBatchFiles,
		FreeMaxProjects:  cfg.FreeMaxProjects,
	}, st, logger)

	tiers := tier.NewStatic(cfg.PaidUserIDs)

	handlers := server.NewHandlers(st, fs, policy, tiers, q, processor, logger)

	return &Dependencies{
		Handlers: handlers,
		Queue:    q,
		Store:    st,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3(cfg.UploadDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 mirroring configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("upload_dir", cfg.UploadDir),
	)
	return localStore, nil
}
