// Package trim orchestrates the silence-removal pipeline for a single
// uploaded file: optional audio extraction from video, duration probing,
// ffmpeg filter invocation with progress tracking, and status record
// transitions.
package trim

import (
	"github.com/silencecut/silencecut-api/internal/store"
	"github.com/silencecut/silencecut-api/internal/trim/id"
)

// Job is one admitted unit of processing work for a single uploaded file.
// A Job is immutable once enqueued: its parameters are fixed at admission
// time and do not change if the user's tier or project settings change
// while it waits in the queue.
type Job struct {
	// ID identifies the job in logs.
	ID string
	// FileID is the durable status record driven by this job.
	FileID uint
	// InputPath is the uploaded source on disk.
	InputPath string
	// SilenceThresholdDB is the peak-level silence threshold in dB.
	SilenceThresholdDB int
	// MinSilenceMS is the minimum silence run length to trim, in
	// milliseconds.
	MinSilenceMS int
	// OutputFormat selects the processed file's container/codec.
	OutputFormat store.OutputFormat
	// IsVideo marks sources whose audio track must be extracted first.
	IsVideo bool
	// Priority marks jobs from paid-tier users, eligible for queue
	// overtaking. Fixed at creation.
	Priority bool
}

// NewJob creates a Job with a generated ID.
func NewJob(fileID uint, inputPath string) *Job {
	return &Job{
		ID:        id.Generate(),
		FileID:    fileID,
		InputPath: inputPath,
	}
}

// Enqueuer accepts jobs for background execution. Implemented by the
// priority queue; declared here so reprocessing does not depend on it.
type Enqueuer interface {
	Enqueue(job *Job)
}
