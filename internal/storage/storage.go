package storage

import (
	"context"
	"fmt"
	"io"

	"reader-backend/internal/config"
)

// FileStorage abstracts file persistence on local disk or in a MinIO/S3 bucket.
type FileStorage interface {
	// Save persists file content and returns the storage path (used for retrieval/deletion).
	Save(ctx context.Context, fileID, filename string, reader io.Reader) (storagePath string, err error)
	// Open returns a reader for the stored file.
	Open(ctx context.Context, storagePath string) (io.ReadCloser, error)
	// Delete removes the file from storage.
	Delete(ctx context.Context, storagePath string) error
}

// File is a row of the _files table.
type File struct {
	ID       string         `json:"id"`
	Filename string         `json:"filename"`
	Path     string         `json:"path"`
	MimeType string         `json:"mime_type"`
	Size     int64          `json:"size"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// New returns the FileStorage selected by storage.driver.
func New(ctx context.Context, cfg config.StorageConfig) (FileStorage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.LocalPath), nil
	case "minio", "s3":
		return NewMinioStorage(ctx, cfg.Minio)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
