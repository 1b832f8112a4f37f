package services

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"civictrack/media"
	"civictrack/metrics"
	"civictrack/models"

	"golang.org/x/sync/errgroup"
)

const (
	MaxMediaFiles = 5
	MediaFolder   = "civictrack/issues"
)

// MediaFile is an uploaded file spooled to local disk.
type MediaFile struct {
	Path string
	Type models.MediaType
}

// MediaUploader pushes local files to the media store. Local files are
// removed once their upload finishes either way.
type MediaUploader struct {
	store   media.Store
	folder  string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewMediaUploader(store media.Store, m *metrics.Metrics, logger *slog.Logger) *MediaUploader {
	return &MediaUploader{store: store, folder: MediaFolder, metrics: m, logger: logger}
}

// UploadAll uploads files concurrently and returns them in input order. If
// any upload fails the ones that succeeded are deleted again, so nothing is
// left behind for a mutation that will not be committed.
func (u *MediaUploader) UploadAll(ctx context.Context, files []MediaFile) ([]models.Media, error) {
	defer u.removeLocal(files)
	if len(files) == 0 {
		return nil, nil
	}

	out := make([]models.Media, len(files))
	done := make([]bool, len(files))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			start := time.Now()
			up, err := u.store.Upload(gctx, f.Path, u.folder)
			u.metrics.ObserveUpload(time.Since(start))
			if err != nil {
				return err
			}
			mu.Lock()
			out[i] = models.Media{Type: f.Type, PublicID: up.ID, URL: up.URL}
			done[i] = true
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var uploaded []models.Media
		for i, ok := range done {
			if ok {
				uploaded = append(uploaded, out[i])
			}
		}
		u.DeleteAll(context.WithoutCancel(ctx), uploaded)
		return nil, err
	}
	return out, nil
}

// DeleteAll removes media from the store. Failures are logged only.
func (u *MediaUploader) DeleteAll(ctx context.Context, items []models.Media) {
	for _, m := range items {
		if err := u.store.Delete(ctx, m.PublicID, m.Type); err != nil {
			u.logger.WarnContext(ctx, "failed to delete media", "public_id", m.PublicID, "error", err)
		}
	}
}

func (u *MediaUploader) removeLocal(files []MediaFile) {
	for _, f := range files {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			u.logger.Warn("failed to remove temp upload", "path", f.Path, "error", err)
		}
	}
}
