// Package admission implements the tiered upload admission policy: per-tier
// file size ceilings, batch limits, free-tier project eviction, and output
// format entitlement.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/silencecut/silencecut-api/internal/store"
)

// Static errors for admission rejections. Each maps to a synchronous,
// specific rejection of the whole batch before any job is created.
var (
	// ErrFileTooLarge is returned when any file exceeds the tier's ceiling.
	ErrFileTooLarge = errors.New("file exceeds size limit")
	// ErrBatchNotAllowed is returned when a free-tier user submits more
	// than one file; batch upload is a paid capability.
	ErrBatchNotAllowed = errors.New("batch upload requires a paid plan")
	// ErrBatchTooLarge is returned when a batch exceeds the maximum size.
	ErrBatchTooLarge = errors.New("too many files in batch")
	// ErrNoFiles is returned when a request carries no files.
	ErrNoFiles = errors.New("no files uploaded")
)

// Limits holds the admission boundaries.
type Limits struct {
	// FreeMaxFileBytes is the per-file ceiling for unpaid users.
	FreeMaxFileBytes int64
	// ProMaxFileBytes is the per-file ceiling for paid users.
	ProMaxFileBytes int64
	// MaxBatchFiles caps batch size even for paid users.
	MaxBatchFiles int
	// FreeMaxProjects is the stored-project ceiling for unpaid users,
	// above which the oldest project is evicted.
	FreeMaxProjects int
}

// DefaultLimits returns the production admission boundaries.
func DefaultLimits() Limits {
	return Limits{
		FreeMaxFileBytes: 100 * 1024 * 1024,
		ProMaxFileBytes:  500 * 1024 * 1024,
		MaxBatchFiles:    3,
		FreeMaxProjects:  3,
	}
}

// Request carries the inputs of one admission decision.
type Request struct {
	// IsPaid is the requester's tier, looked up once at admission time.
	IsPaid bool
	// FileSizes are the byte sizes of every file in the batch.
	FileSizes []int64
}

// Check applies the admission rules in order and returns the first
// rejection, or nil if the batch is admitted. It is pure: the eviction
// side effect lives on Policy.
func (l Limits) Check(req Request) error {
	if len(req.FileSizes) == 0 {
		return ErrNoFiles
	}

	ceiling := l.FreeMaxFileBytes
	if req.IsPaid {
		ceiling = l.ProMaxFileBytes
	}
	for _, size := range req.FileSizes {
		if size > ceiling {
			return fmt.Errorf("%w: %d bytes over the %d byte limit", ErrFileTooLarge, size, ceiling)
		}
	}

	if len(req.FileSizes) > 1 && !req.IsPaid {
		return ErrBatchNotAllowed
	}
	if len(req.FileSizes) > l.MaxBatchFiles {
		return fmt.Errorf("%w: %d files, maximum is %d", ErrBatchTooLarge, len(req.FileSizes), l.MaxBatchFiles)
	}

	return nil
}

// ResolveFormat returns the output format the requester is entitled to.
// Format selection beyond the default is a paid capability; free users'
// selections are silently overridden.
func (l Limits) ResolveFormat(isPaid bool, requested string) store.OutputFormat {
	if !isPaid {
		return store.DefaultFormat
	}
	if f := store.OutputFormat(requested); f.IsValid() {
		return f
	}
	return store.DefaultFormat
}

// Policy binds the pure limits to the store and filesystem for the
// eviction side effect.
type Policy struct {
	Limits
	store  store.Store
	logger *slog.Logger
}

// NewPolicy creates an admission Policy.
func NewPolicy(limits Limits, st store.Store, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		Limits: limits,
		store:  st,
		logger: logger,
	}
}

// EvictOldestIfNeeded enforces the free-tier stored-project ceiling: when
// an unpaid requester is at or above it, the single oldest project is
// removed before the new upload's project is created. Backing files already
// missing from disk are not an error, so the eviction is idempotent and
// safe to retry.
func (p *Policy) EvictOldestIfNeeded(ctx context.Context, userID string, isPaid bool) error {
	if isPaid {
		return nil
	}

	count, err := p.store.CountProjects(ctx, userID)
	if err != nil {
		return fmt.Errorf("count projects: %w", err)
	}
	if count < int64(p.FreeMaxProjects) {
		return nil
	}

	oldest, err := p.store.OldestProject(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			return nil
		}
		return fmt.Errorf("find oldest project: %w", err)
	}

	for _, f := range oldest.Files {
		removeIfPresent(f.OriginalFilePath)
		removeIfPresent(f.ProcessedFilePath)
	}

	if err := p.store.DeleteProject(ctx, oldest.ID); err != nil && !errors.Is(err, store.ErrProjectNotFound) {
		return fmt.Errorf("delete evicted project: %w", err)
	}

	p.logger.Info("evicted oldest project for free-tier user",
		slog.Uint64("project_id", uint64(oldest.ID)),
		slog.String("user_id", userID),
	)
	return nil
}

// removeIfPresent deletes a file, tolerating empty paths and files already
// missing from disk.
func removeIfPresent(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
