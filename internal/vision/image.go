// Package vision defines the data model and capability contract of the
// SageMaker-backed vision service: the image sum type handed in by callers,
// the two result shapes (classifications and detections), the error taxonomy,
// and the decoders that turn an endpoint's JSON body into typed results.
package vision

import (
	"image"
	"strings"
)

// Supported MIME types for already-encoded images.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
)

// Image is the input to a vision call. It is sealed: the only
// implementations are EncodedImage and DecodedImage, so a type switch over
// the two is exhaustive.
type Image interface {
	isImage()
}

// EncodedImage is an image that is already serialized, e.g. a JPEG frame
// straight from a camera.
type EncodedImage struct {
	Data     []byte
	MimeType string
}

// DecodedImage wraps an in-memory pixel buffer.
type DecodedImage struct {
	Image image.Image
}

func (EncodedImage) isImage() {}
func (DecodedImage) isImage() {}

// NormalizeMimeType lower-cases a MIME type and drops any parameters
// ("image/JPEG; q=1" -> "image/jpeg").
func NormalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// IsSupportedMimeType reports whether the endpoint accepts the MIME type as-is.
func IsSupportedMimeType(mimeType string) bool {
	switch NormalizeMimeType(mimeType) {
	case MimeJPEG, MimePNG:
		return true
	default:
		return false
	}
}
