package media

import (
	"context"
	"fmt"

	"civictrack/models"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type CloudinaryStore struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStore(cloudName, apiKey, apiSecret string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld}, nil
}

func (s *CloudinaryStore) Upload(ctx context.Context, localPath, folder string) (Uploaded, error) {
	resp, err := s.cld.Upload.Upload(ctx, localPath, uploader.UploadParams{
		Folder:       folder,
		ResourceType: "auto",
	})
	if err != nil {
		return Uploaded{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if resp.Error.Message != "" {
		return Uploaded{}, fmt.Errorf("%w: %s", ErrUploadFailed, resp.Error.Message)
	}
	return Uploaded{ID: resp.PublicID, URL: resp.SecureURL}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, id string, kind models.MediaType) error {
	resourceType := "image"
	if kind == models.MediaVideo {
		resourceType = "video"
	}
	resp, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     id,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("delete %s: %s", id, resp.Error.Message)
	}
	return nil
}
