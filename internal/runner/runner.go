// Package runner provides subprocess execution with wall-clock timeout
// enforcement and progress tracking parsed from the tool's diagnostic
// stream. It is the single owner of every child process handle: the
// process is terminated on every exit path, including timeout.
package runner

import (
	"context"
	"time"
)

// DefaultTimeout is the hard wall-clock limit for a single invocation.
const DefaultTimeout = 10 * time.Minute

// DefaultProgressInterval is the minimum spacing between progress callbacks.
const DefaultProgressInterval = 500 * time.Millisecond

// RunOpts configures a single subprocess invocation.
type RunOpts struct {
	// TotalDurationSec is the known duration of the media being processed.
	// When zero or negative, progress reporting is skipped entirely rather
	// than reporting misleading numbers.
	TotalDurationSec float64

	// OnProgress receives percentage figures in [0, 99] as timestamp
	// markers appear on the tool's diagnostic stream. Calls are throttled
	// to at most one per ProgressInterval and the reported values are
	// non-decreasing. May be nil.
	OnProgress func(pct int)

	// Timeout is the hard wall-clock limit. Defaults to DefaultTimeout.
	Timeout time.Duration

	// ProgressInterval overrides the progress throttle spacing.
	// Defaults to DefaultProgressInterval.
	ProgressInterval time.Duration
}

// Runner defines the interface for running external media tools.
type Runner interface {
	// Run spawns the named command with the given arguments and blocks
	// until it exits, the context is cancelled, or the timeout fires.
	// A nil return means the process exited with status zero.
	Run(ctx context.Context, name string, args []string, opts RunOpts) error
}
