// Package store provides durable persistence for projects, uploaded files,
// and contact messages. It defines the Store interface (port) for hexagonal
// architecture and implementations backed by SQLite and in-memory maps.
package store

import (
	"time"
)

// Status represents the processing state of an uploaded file.
type Status string

const (
	// StatusPending indicates the file is waiting in the processing queue.
	StatusPending Status = "pending"
	// StatusProcessing indicates the file is being processed.
	StatusProcessing Status = "processing"
	// StatusCompleted indicates processing finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates processing encountered an error.
	StatusFailed Status = "failed"
)

// validTransitions defines which status transitions are allowed.
// A terminal file may re-enter pending through reprocessing.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusPending},
	StatusFailed:     {StatusPending},
}

// CanTransition reports whether a status change from one state to another
// is allowed by the file lifecycle.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FileType describes the container kind of an uploaded file.
type FileType string

const (
	// FileTypeAudio marks an audio-only upload.
	FileTypeAudio FileType = "audio"
	// FileTypeVideo marks a video upload whose audio track is extracted
	// before filtering.
	FileTypeVideo FileType = "video"
)

// OutputFormat selects the container/codec of the processed file.
type OutputFormat string

const (
	// FormatMP3 encodes with libmp3lame at a fixed high bitrate.
	FormatMP3 OutputFormat = "mp3"
	// FormatWAV writes 16-bit PCM.
	FormatWAV OutputFormat = "wav"
	// FormatFLAC writes lossless FLAC.
	FormatFLAC OutputFormat = "flac"

	// DefaultFormat is used when no format is requested or the requester
	// is not entitled to choose one.
	DefaultFormat = FormatMP3
)

// IsValid returns true if the output format is one of the supported values.
func (f OutputFormat) IsValid() bool {
	return f == FormatMP3 || f == FormatWAV || f == FormatFLAC
}

// Project groups uploaded files and carries the silence-removal settings
// applied to new uploads and reprocessing runs.
type Project struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Name               string    `gorm:"not null" json:"name"`
	UserID             string    `gorm:"index" json:"userId,omitempty"`
	IsFavorite         bool      `json:"isFavorite"`
	SilenceThresholdDB int       `gorm:"not null;default:-40" json:"silenceThreshold"`
	MinSilenceMS       int       `gorm:"not null;default:500" json:"minSilenceDuration"`
	OutputFormat       string    `gorm:"not null;default:mp3" json:"outputFormat"`
	CreatedAt          time.Time `json:"createdAt"`

	Files []File `gorm:"constraint:OnDelete:CASCADE" json:"files,omitempty"`
}

// File is the durable status record for one uploaded file. Its state machine
// is driven exclusively by the processing pipeline; CRUD endpoints read it
// as opaque state.
type File struct {
	ID                 uint     `gorm:"primaryKey" json:"id"`
	ProjectID          uint     `gorm:"index;not null" json:"projectId"`
	OriginalFileName   string   `gorm:"not null" json:"originalFileName"`
	OriginalFilePath   string   `json:"originalFilePath,omitempty"`
	ProcessedFilePath  string   `json:"processedFilePath,omitempty"`
	ProcessedURL       string   `json:"processedUrl,omitempty"`
	Status             Status   `gorm:"not null;default:pending" json:"status"`
	SilenceThresholdDB int      `gorm:"not null;default:-40" json:"silenceThreshold"`
	MinSilenceMS       int      `gorm:"not null;default:500" json:"minSilenceDuration"`
	OutputFormat       string   `gorm:"not null;default:mp3" json:"outputFormat"`
	FileType           FileType `gorm:"not null;default:audio" json:"fileType"`
	FileSizeBytes      int64    `json:"fileSizeBytes"`
	ProcessingProgress int      `json:"processingProgress"`

	OriginalDurationSec  *float64 `json:"originalDurationSec,omitempty"`
	ProcessedDurationSec *float64 `json:"processedDurationSec,omitempty"`
	ProcessingTimeMS     *int64   `json:"processingTimeMs,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// ContactMessage is a message submitted through the contact form.
type ContactMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"not null" json:"email"`
	Subject   string    `gorm:"not null" json:"subject"`
	Message   string    `gorm:"not null" json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone creates a deep copy of the file for safe reads.
func (f *File) Clone() *File {
	c := *f
	if f.OriginalDurationSec != nil {
		v := *f.OriginalDurationSec
		c.OriginalDurationSec = &v
	}
	if f.ProcessedDurationSec != nil {
		v := *f.ProcessedDurationSec
		c.ProcessedDurationSec = &v
	}
	if f.ProcessingTimeMS != nil {
		v := *f.ProcessingTimeMS
		c.ProcessingTimeMS = &v
	}
	return &c
}

// Clone creates a deep copy of the project, including its files.
func (p *Project) Clone() *Project {
	c := *p
	c.Files = make([]File, len(p.Files))
	for i := range p.Files {
		c.Files[i] = *p.Files[i].Clone()
	}
	return &c
}
