package camera

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpang/sagemaker-vision/internal/vision"
)

// FileCamera re-reads an image file on every GetImage, so an external
// process can keep overwriting it with the latest frame.
type FileCamera struct {
	name string
	path string
}

// NewFileCamera creates a camera backed by the file at path.
func NewFileCamera(name, path string) *FileCamera {
	return &FileCamera{name: name, path: path}
}

// Name returns the camera's dependency name.
func (c *FileCamera) Name() string { return c.name }

// GetImage returns the file contents as an encoded image. The MIME type is
// derived from the extension; unsupported types are rejected later, at the
// endpoint adapter.
func (c *FileCamera) GetImage(ctx context.Context) (vision.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("camera %s: failed to read frame: %w", c.name, err)
	}
	return vision.EncodedImage{Data: data, MimeType: MimeTypeForPath(c.path)}, nil
}

// MimeTypeForPath maps a file extension to a MIME type.
func MimeTypeForPath(path string) string {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg":
		return vision.MimeJPEG
	case ".png":
		return vision.MimePNG
	default:
		return mime.TypeByExtension(ext)
	}
}
