package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"civictrack/models"

	"github.com/google/uuid"
)

// LocalStore copies uploads under Root and serves them from BaseURL. It is
// used when no Cloudinary credentials are configured.
type LocalStore struct {
	Root    string
	BaseURL string
}

func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{Root: root, BaseURL: baseURL}
}

func (s *LocalStore) Upload(ctx context.Context, localPath, folder string) (Uploaded, error) {
	if err := ctx.Err(); err != nil {
		return Uploaded{}, err
	}
	id := filepath.ToSlash(filepath.Join(folder, uuid.NewString()+filepath.Ext(localPath)))
	dst := filepath.Join(s.Root, filepath.FromSlash(id))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Uploaded{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	in, err := os.Open(localPath)
	if err != nil {
		return Uploaded{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return Uploaded{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return Uploaded{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := out.Close(); err != nil {
		return Uploaded{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return Uploaded{ID: id, URL: s.BaseURL + "/" + id}, nil
}

func (s *LocalStore) Delete(_ context.Context, id string, _ models.MediaType) error {
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(id)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
