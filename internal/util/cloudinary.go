package util

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"forumhub/internal/config"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type CloudinaryClient struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryClient(cfg *config.Config) (*CloudinaryClient, error) {
	if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials not configured")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &CloudinaryClient{cld: cld, folder: cfg.CloudinaryFolder}, nil
}

// UploadAvatar uploads a profile picture under a stable public id per user, so a new
// upload replaces the previous one. GIFs keep their animation; other formats are
// delivered as WebP.
func (c *CloudinaryClient) UploadAvatar(ctx context.Context, userID string, data []byte, mimeType string) (string, error) {
	params := uploader.UploadParams{
		Folder:       c.folder,
		PublicID:     "avatar_" + userID,
		Overwrite:    api.Bool(true),
		ResourceType: "image",
	}
	if mimeType != "image/gif" {
		params.Transformation = "c_fill,g_face,w_256,h_256,q_auto,f_webp"
	}

	result, err := c.cld.Upload.Upload(ctx, bytes.NewReader(data), params)
	if err != nil {
		return "", fmt.Errorf("error uploading to cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}

	url := result.SecureURL
	if mimeType != "image/gif" {
		url = strings.Replace(url, "/upload/", "/upload/c_fill,g_face,w_256,h_256,f_webp,q_auto/", 1)
	}
	return url, nil
}
