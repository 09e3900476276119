// Package storage provides file storage for uploaded and processed media.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and optional S3 mirroring.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for media file storage. Uploaded sources
// and processed outputs live on local disk; processed files can optionally
// be mirrored to S3 for delivery.
type Storage interface {
	// SaveUpload streams an uploaded file to the upload directory and
	// returns its path. The original name is kept as a suffix of the
	// stored name for readability.
	SaveUpload(ctx context.Context, originalName string, data io.Reader) (path string, size int64, err error)

	// Open reads a stored file. The caller is responsible for closing the
	// returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes the specified files. Files already missing from disk
	// are not an error; removal continues past individual failures.
	Remove(ctx context.Context, paths []string) error

	// UploadToS3 mirrors data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
