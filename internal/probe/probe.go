// Package probe provides media inspection through the ffprobe CLI.
package probe

import "context"

// Prober defines the interface for obtaining media metadata.
type Prober interface {
	// Duration returns the duration of a media file in seconds.
	// Callers treat a probe failure as non-fatal: duration-dependent
	// behavior (progress reporting, duration fields) is simply skipped.
	Duration(ctx context.Context, path string) (float64, error)
}
