package client

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Download when no blob exists at the key
var ErrObjectNotFound = errors.New("object not found")

// StorageClient defines the interface for blob storage operations
type StorageClient interface {
	// Upload stores body at key and returns the location to persist
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Download(ctx context.Context, location string) ([]byte, error)
	Delete(ctx context.Context, location string) error
}
