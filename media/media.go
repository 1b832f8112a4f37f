package media

import (
	"context"
	"errors"

	"civictrack/models"
)

var ErrUploadFailed = errors.New("media upload failed")

// Uploaded identifies a stored file.
type Uploaded struct {
	ID  string
	URL string
}

// Store keeps media files and hands back permanent URLs.
type Store interface {
	Upload(ctx context.Context, localPath, folder string) (Uploaded, error)
	Delete(ctx context.Context, id string, kind models.MediaType) error
}
