package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// Cloudinary uploads images through the Cloudinary upload API.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinary creates a Cloudinary store from account credentials.
func NewCloudinary(cloudName, apiKey, apiSecret, folder string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld, folder: folder}, nil
}

// Put uploads data under public id name, replacing any previous image.
func (c *Cloudinary) Put(ctx context.Context, name string, data []byte) (Upload, error) {
	res, err := c.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:  name,
		Folder:    c.folder,
		Overwrite: api.Bool(true),
	})
	if err != nil {
		return Upload{}, fmt.Errorf("cloudinary: upload failed: %w", err)
	}
	if res.Error.Message != "" {
		return Upload{}, errors.New("cloudinary: upload failed: " + res.Error.Message)
	}
	return Upload{URL: res.SecureURL, Key: res.PublicID, Bytes: res.Bytes}, nil
}
