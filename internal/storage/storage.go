// Package storage defines the Storage interface for uploaded site logos and the
// registry that maps backend names to constructors.
//
// Backends register themselves from an init() function in their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// cmd/server blank-imports each backend so its init() runs.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when no object exists at the requested path.
	ErrNotFound = errors.New("storage: object not found")

	// ErrNoURL is returned by GetURL when the backend has no URL of its own.
	// Callers stream the object through Download instead.
	ErrNoURL = errors.New("storage: backend has no direct url")
)

// Storage is implemented by every logo storage backend
type Storage interface {
	// Upload stores the object and returns its path, size and checksum
	Upload(ctx context.Context, path string, reader io.Reader, size int64) (*UploadResult, error)

	// Download opens the object for reading
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error

	// GetURL returns a URL the browser can fetch directly, valid for ttl.
	// Backends that cannot produce one return ErrNoURL.
	GetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Exists reports whether an object is stored at path
	Exists(ctx context.Context, path string) (bool, error)
}

// UploadResult describes a stored object
type UploadResult struct {
	// Path is the storage path where the file was stored
	Path string

	// Size is the file size in bytes
	Size int64

	// Checksum is the hex SHA256 of the contents
	Checksum string

	// ContentType is the detected MIME type
	ContentType string
}
