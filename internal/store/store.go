package store

import (
	"context"
	"errors"
)

// Static errors for store lookups.
var (
	// ErrProjectNotFound is returned when a project cannot be found by ID.
	ErrProjectNotFound = errors.New("project not found")
	// ErrFileNotFound is returned when a file record cannot be found by ID.
	ErrFileNotFound = errors.New("file not found")
)

// ProjectUpdate contains the optional fields of a project update.
// Nil fields are left unchanged.
type ProjectUpdate struct {
	Name               *string
	IsFavorite         *bool
	SilenceThresholdDB *int
	MinSilenceMS       *int
	OutputFormat       *string
}

// FileUpdate contains the optional fields of a file record update.
// Nil fields are left unchanged. The processing pipeline is the only writer
// of these fields.
type FileUpdate struct {
	Status               *Status
	ProcessingProgress   *int
	ProcessedFilePath    *string
	ProcessedURL         *string
	OriginalDurationSec  *float64
	ProcessedDurationSec *float64
	ProcessingTimeMS     *int64

	// Settings re-derived at reprocessing time.
	SilenceThresholdDB *int
	MinSilenceMS       *int
	OutputFormat       *string

	// ClearProcessed nulls the processed duration, processing time, and
	// processed path. Used when a file re-enters pending for reprocessing.
	ClearProcessed bool
}

// apply mutates f according to the update, enforcing the progress
// invariants: progress is forced to 100 on completed and reset to 0 when a
// file re-enters pending.
func (u FileUpdate) apply(f *File) {
	if u.ClearProcessed {
		f.ProcessedFilePath = ""
		f.ProcessedURL = ""
		f.ProcessedDurationSec = nil
		f.ProcessingTimeMS = nil
	}
	if u.Status != nil {
		f.Status = *u.Status
		switch *u.Status {
		case StatusCompleted:
			f.ProcessingProgress = 100
		case StatusPending:
			f.ProcessingProgress = 0
		}
	}
	if u.ProcessingProgress != nil {
		f.ProcessingProgress = *u.ProcessingProgress
	}
	if u.ProcessedFilePath != nil {
		f.ProcessedFilePath = *u.ProcessedFilePath
	}
	if u.ProcessedURL != nil {
		f.ProcessedURL = *u.ProcessedURL
	}
	if u.OriginalDurationSec != nil {
		f.OriginalDurationSec = u.OriginalDurationSec
	}
	if u.ProcessedDurationSec != nil {
		f.ProcessedDurationSec = u.ProcessedDurationSec
	}
	if u.ProcessingTimeMS != nil {
		f.ProcessingTimeMS = u.ProcessingTimeMS
	}
	if u.SilenceThresholdDB != nil {
		f.SilenceThresholdDB = *u.SilenceThresholdDB
	}
	if u.MinSilenceMS != nil {
		f.MinSilenceMS = *u.MinSilenceMS
	}
	if u.OutputFormat != nil {
		f.OutputFormat = *u.OutputFormat
	}
}

// Store defines the persistence port for projects, file status records, and
// contact messages. The processing pipeline only ever calls GetFile and
// UpdateFile; the rest serves the HTTP surface and the admission policy.
type Store interface {
	// CreateProject persists a new project and assigns its ID.
	CreateProject(ctx context.Context, p *Project) error

	// GetProject retrieves a project with its files.
	// Returns ErrProjectNotFound if it does not exist.
	GetProject(ctx context.Context, id uint) (*Project, error)

	// ListProjects returns projects, newest first. An empty userID lists
	// all projects.
	ListProjects(ctx context.Context, userID string) ([]*Project, error)

	// UpdateProject applies the non-nil fields of the update.
	// Returns ErrProjectNotFound if the project does not exist.
	UpdateProject(ctx context.Context, id uint, upd ProjectUpdate) (*Project, error)

	// DeleteProject removes a project and its file records.
	// Returns ErrProjectNotFound if the project does not exist.
	DeleteProject(ctx context.Context, id uint) error

	// ListFavorites returns favorite projects, newest first.
	ListFavorites(ctx context.Context, userID string) ([]*Project, error)

	// CountProjects returns the number of stored projects for a user.
	CountProjects(ctx context.Context, userID string) (int64, error)

	// OldestProject returns the user's oldest project with its files, or
	// ErrProjectNotFound when the user has none. Used by the free-tier
	// eviction rule.
	OldestProject(ctx context.Context, userID string) (*Project, error)

	// CreateFile persists a new file record and assigns its ID.
	CreateFile(ctx context.Context, f *File) error

	// GetFile retrieves a file record by ID.
	// Returns ErrFileNotFound if it does not exist.
	GetFile(ctx context.Context, id uint) (*File, error)

	// UpdateFile applies the non-nil fields of the update.
	// Returns ErrFileNotFound if the record does not exist.
	UpdateFile(ctx context.Context, id uint, upd FileUpdate) error

	// DeleteFile removes a file record.
	// Returns ErrFileNotFound if the record does not exist.
	DeleteFile(ctx context.Context, id uint) error

	// CreateContactMessage persists a contact form submission.
	CreateContactMessage(ctx context.Context, m *ContactMessage) error
}
