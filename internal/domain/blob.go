package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves settled market data from the database to cold storage.
type Archiver interface {
	// ArchiveSettledPredictions uploads terminal predictions (with their
	// bets) settled before the cutoff and returns the count archived.
	ArchiveSettledPredictions(ctx context.Context, before time.Time) (int64, error)
	// ArchiveTransfers uploads terminal transfer records completed before
	// the cutoff and returns the count archived.
	ArchiveTransfers(ctx context.Context, before time.Time) (int64, error)
}
