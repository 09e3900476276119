package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// Compile-time check that Local implements Storage.
var _ Storage = (*Local)(nil)

// Local implements the Storage interface using local disk.
// It does not support S3 operations unless wrapped with S3.
type Local struct {
	uploadDir string
}

// NewLocal creates a new Local storage instance rooted at uploadDir.
// If uploadDir is empty, a directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocal(uploadDir string) (*Local, error) {
	if uploadDir == "" {
		uploadDir = filepath.Join(os.TempDir(), "silencecut")
	}

	if err := os.MkdirAll(uploadDir, 0750); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	return &Local{uploadDir: uploadDir}, nil
}

// UploadDir returns the upload directory path.
func (s *Local) UploadDir() string {
	return s.uploadDir
}

// SaveUpload streams data to a uniquely named file in the upload directory.
func (s *Local) SaveUpload(ctx context.Context, originalName string, data io.Reader) (string, int64, error) {
	select {
	case <-ctx.Done():
		return "", 0, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	name := uuid.NewString() + "-" + sanitizeName(originalName)
	path := filepath.Join(s.uploadDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600) // #nosec G304 - path is built from a fresh UUID
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}

	written, err := io.Copy(f, data)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("close upload file: %w", err)
	}

	return path, written, nil
}

// Open reads a stored file. The caller is responsible for closing the
// returned ReadCloser.
func (s *Local) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return f, nil
}

// Remove deletes the specified files, continuing past individual failures
// and ignoring files already missing from disk. The first real error is
// returned.
func (s *Local) Remove(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// UploadToS3 is not supported by Local and returns ErrS3NotConfigured.
func (s *Local) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// sanitizeName strips path separators and leading dots from a client
// supplied filename so it cannot escape the upload directory.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload"
	}
	return name
}
