package ports

import (
	"context"
	"io"
)

// StoredImage is an open handle on a stored image. Callers must close Body.
type StoredImage struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ImageStore keeps raw upload bytes. It only knows how to store bytes under a
// key, hand them back by the same key and drop them.
type ImageStore interface {
	Save(ctx context.Context, key, contentType string, size int64, body io.Reader) error
	// Open returns domain.ErrImageNotFound for unknown keys.
	Open(ctx context.Context, key string) (*StoredImage, error)
	// Delete removes the image; deleting an unknown key is not an error.
	Delete(ctx context.Context, key string) error
}
