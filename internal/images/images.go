// Package images uploads member profile pictures to blob storage.
package images

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

var ErrEmptyImage = errors.New("image data required")

// MaxBytes caps a single upload.
const MaxBytes = 5 << 20

var ErrTooLarge = errors.New("image exceeds 5 MiB")

// Upload describes a stored image.
type Upload struct {
	URL   string `json:"url"`
	Key   string `json:"key"`
	Bytes int    `json:"bytes"`
}

// Store persists image bytes under name and returns a public URL.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (Upload, error)
}

// DecodeDataURL accepts "data:image/png;base64,..." or bare base64.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyImage
	}
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, errors.New("malformed data url")
		}
		s = s[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return data, Check(data)
}

// Check enforces size and image content type.
func Check(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyImage
	}
	if len(data) > MaxBytes {
		return ErrTooLarge
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return errors.New("not an image")
	}
	return nil
}
