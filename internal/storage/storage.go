package storage

import (
	"context"
	"io"
)

// Storage keeps uploaded recordings. Keys returned by UploadFile are the
// audio references carried by jobs.
type Storage interface {
	UploadFile(ctx context.Context, filename string, content io.Reader, contentType string) (*UploadResult, error)
	GetFile(ctx context.Context, key string) (io.ReadCloser, string, error)
	DeleteFile(ctx context.Context, key string) error
}

type UploadResult struct {
	Key string
	URL string
}
