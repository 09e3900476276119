package trim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/silencecut/silencecut-api/internal/probe"
	"github.com/silencecut/silencecut-api/internal/runner"
	"github.com/silencecut/silencecut-api/internal/storage"
	"github.com/silencecut/silencecut-api/internal/store"
)

// Static errors for reprocessing.
var (
	// ErrNoSource is returned when reprocessing is requested but the
	// original file is no longer present on disk.
	ErrNoSource = errors.New("no source file available for reprocessing")
	// ErrNotTerminal is returned when reprocessing is requested for a file
	// that is still pending or processing.
	ErrNotTerminal = errors.New("file is not in a terminal state")
)

// Processor runs the silence-removal pipeline for one job at a time and
// drives the file's status record through its lifecycle.
type Processor struct {
	runner  runner.Runner
	prober  probe.Prober
	store   store.Store
	storage storage.Storage
	logger  *slog.Logger

	ffmpegPath string
	timeout    time.Duration
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithFFmpegPath overrides the ffmpeg binary location.
func WithFFmpegPath(path string) ProcessorOption {
	return func(p *Processor) {
		if path != "" {
			p.ffmpegPath = path
		}
	}
}

// WithTimeout overrides the per-invocation wall-clock limit.
func WithTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithStorage enables mirroring of processed files to object storage.
func WithStorage(st storage.Storage) ProcessorOption {
	return func(p *Processor) {
		p.storage = st
	}
}

// NewProcessor creates a Processor.
func NewProcessor(r runner.Runner, pr probe.Prober, st store.Store, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		runner:     r,
		prober:     pr,
		store:      st,
		logger:     logger,
		ffmpegPath: "ffmpeg",
		timeout:    runner.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process executes the full transformation for one job: mark processing,
// extract audio from video sources, probe duration, run the silence-removal
// filter with progress updates, probe the result, and record the terminal
// state. The returned error is informational; failures are already recorded
// on the status record and must not abort the queue.
func (p *Processor) Process(ctx context.Context, job *Job) error {
	start := time.Now()
	log := p.logger.With(
		slog.String("job_id", job.ID),
		slog.Uint64("file_id", uint64(job.FileID)),
	)

	processing := store.StatusProcessing
	zero := 0
	p.updateFile(ctx, job.FileID, store.FileUpdate{
		Status:             &processing,
		ProcessingProgress: &zero,
	})

	log.Info("processing started",
		slog.String("input", job.InputPath),
		slog.Int("threshold_db", job.SilenceThresholdDB),
		slog.Int("min_silence_ms", job.MinSilenceMS),
		slog.String("format", string(job.OutputFormat)),
		slog.Bool("video", job.IsVideo),
	)

	audioPath := job.InputPath
	if job.IsVideo {
		extracted := extractedAudioPath(job.InputPath)
		if err := p.extractAudio(ctx, job.InputPath, extracted); err != nil {
			p.fail(ctx, job.FileID, start)
			log.Error("audio extraction failed", slog.String("error", err.Error()))
			return fmt.Errorf("extract audio: %w", err)
		}
		defer func() { _ = os.Remove(extracted) }()
		audioPath = extracted
	}

	// Duration probe failure is non-fatal: without a total the runner
	// simply skips progress reporting.
	var totalDuration float64
	if d, err := p.prober.Duration(ctx, audioPath); err != nil {
		log.Warn("duration probe failed", slog.String("error", err.Error()))
	} else {
		totalDuration = d
		p.updateFile(ctx, job.FileID, store.FileUpdate{OriginalDurationSec: &d})
	}

	out := outputPath(job.InputPath, job.OutputFormat)
	args := []string{"-y", "-i", audioPath, "-af", filterGraph(job.SilenceThresholdDB, job.MinSilenceMS)}
	args = append(args, codecArgs(job.OutputFormat)...)
	args = append(args, out)

	err := p.runner.Run(ctx, p.ffmpegPath, args, runner.RunOpts{
		TotalDurationSec: totalDuration,
		Timeout:          p.timeout,
		OnProgress: func(pct int) {
			p.updateFile(ctx, job.FileID, store.FileUpdate{ProcessingProgress: &pct})
		},
	})
	if err != nil {
		p.fail(ctx, job.FileID, start)
		log.Error("filter invocation failed", slog.String("error", err.Error()))
		return fmt.Errorf("silence removal: %w", err)
	}

	var processedDuration *float64
	if d, err := p.prober.Duration(ctx, out); err != nil {
		log.Warn("processed duration probe failed", slog.String("error", err.Error()))
	} else {
		processedDuration = &d
	}

	var processedURL *string
	if url, err := p.mirror(ctx, job.FileID, out); err != nil {
		if !errors.Is(err, storage.ErrS3NotConfigured) {
			log.Warn("mirror to object storage failed", slog.String("error", err.Error()))
		}
	} else {
		processedURL = &url
	}

	completed := store.StatusCompleted
	elapsed := time.Since(start).Milliseconds()
	p.updateFile(ctx, job.FileID, store.FileUpdate{
		Status:               &completed,
		ProcessedFilePath:    &out,
		ProcessedURL:         processedURL,
		ProcessedDurationSec: processedDuration,
		ProcessingTimeMS:     &elapsed,
	})

	log.Info("processing completed",
		slog.String("output", out),
		slog.Int64("elapsed_ms", elapsed),
	)
	return nil
}

// extractAudio demuxes and decodes the audio track of a video source to a
// lossless intermediate file with a fixed sample rate and channel layout.
func (p *Processor) extractAudio(ctx context.Context, src, dst string) error {
	args := []string{
		"-y",
		"-i", src,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "44100",
		"-ac", "2",
		dst,
	}
	return p.runner.Run(ctx, p.ffmpegPath, args, runner.RunOpts{Timeout: p.timeout})
}

// mirror uploads the processed file to object storage when configured.
func (p *Processor) mirror(ctx context.Context, fileID uint, path string) (string, error) {
	if p.storage == nil {
		return "", storage.ErrS3NotConfigured
	}
	f, err := os.Open(path) // #nosec G304 - path is derived from the job's own output
	if err != nil {
		return "", fmt.Errorf("open processed file: %w", err)
	}
	defer func() { _ = f.Close() }()

	key := fmt.Sprintf("processed/%d/%s", fileID, filepath.Base(path))
	return p.storage.UploadToS3(ctx, key, f)
}

// fail records the failed state, keeping progress where it got to and the
// elapsed time when measurable.
func (p *Processor) fail(ctx context.Context, fileID uint, start time.Time) {
	failed := store.StatusFailed
	elapsed := time.Since(start).Milliseconds()
	p.updateFile(ctx, fileID, store.FileUpdate{
		Status:           &failed,
		ProcessingTimeMS: &elapsed,
	})
}

// updateFile pushes a status record update. Write failures are logged and
// swallowed: progress reporting is best-effort and must never abort an
// in-flight invocation.
func (p *Processor) updateFile(ctx context.Context, fileID uint, upd store.FileUpdate) {
	if err := p.store.UpdateFile(ctx, fileID, upd); err != nil {
		p.logger.Warn("status record update failed",
			slog.Uint64("file_id", uint64(fileID)),
			slog.String("error", err.Error()),
		)
	}
}

// ReprocessSettings carries optional overrides for a reprocessing run.
// Nil fields fall back to the owning project's current settings, then to
// the file's last-used settings.
type ReprocessSettings struct {
	SilenceThresholdDB *int
	MinSilenceMS       *int
	OutputFormat       *store.OutputFormat
}

// Reprocess resets a terminal file record and enqueues a fresh job for it.
// It requires the original file to still be present on disk, removes any
// prior processed output, and re-derives filter parameters: explicit
// overrides win, then the owning project's current settings, then the
// file's last-used values.
func (p *Processor) Reprocess(ctx context.Context, q Enqueuer, fileID uint, settings ReprocessSettings, priority bool) (*store.File, error) {
	f, err := p.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !f.Status.IsTerminal() {
		return nil, ErrNotTerminal
	}
	if f.OriginalFilePath == "" {
		return nil, ErrNoSource
	}
	if _, err := os.Stat(f.OriginalFilePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSource, f.OriginalFilePath)
	}

	if f.ProcessedFilePath != "" {
		if err := os.Remove(f.ProcessedFilePath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove prior output: %w", err)
		}
	}

	threshold := f.SilenceThresholdDB
	minSilence := f.MinSilenceMS
	format := store.OutputFormat(f.OutputFormat)
	if proj, err := p.store.GetProject(ctx, f.ProjectID); err == nil {
		threshold = proj.SilenceThresholdDB
		minSilence = proj.MinSilenceMS
		if pf := store.OutputFormat(proj.OutputFormat); pf.IsValid() {
			format = pf
		}
	}
	if settings.SilenceThresholdDB != nil {
		threshold = *settings.SilenceThresholdDB
	}
	if settings.MinSilenceMS != nil {
		minSilence = *settings.MinSilenceMS
	}
	if settings.OutputFormat != nil && settings.OutputFormat.IsValid() {
		format = *settings.OutputFormat
	}
	if !format.IsValid() {
		format = store.DefaultFormat
	}

	pending := store.StatusPending
	formatStr := string(format)
	if err := p.store.UpdateFile(ctx, fileID, store.FileUpdate{
		Status:             &pending,
		SilenceThresholdDB: &threshold,
		MinSilenceMS:       &minSilence,
		OutputFormat:       &formatStr,
		ClearProcessed:     true,
	}); err != nil {
		return nil, fmt.Errorf("reset file record: %w", err)
	}

	job := NewJob(fileID, f.OriginalFilePath)
	job.SilenceThresholdDB = threshold
	job.MinSilenceMS = minSilence
	job.OutputFormat = format
	job.IsVideo = f.FileType == store.FileTypeVideo
	job.Priority = priority
	q.Enqueue(job)

	p.logger.Info("reprocessing enqueued",
		slog.Uint64("file_id", uint64(fileID)),
		slog.String("job_id", job.ID),
	)

	return p.store.GetFile(ctx, fileID)
}
