// Package imaging turns a vision.Image into the byte payload sent to the
// inference endpoint, and reports the pixel size the endpoint's normalized
// coordinates refer to.
//
// Strategy:
//   - Encoded JPEG/PNG: sent unchanged; only the header is decoded for the size
//   - Encoded anything else: rejected before any network call
//   - Decoded pixels: flattened to opaque RGB and JPEG encoded
//   - Either, when MaxDimension is set and exceeded: down-scaled (CatmullRom)
//     and JPEG encoded; the reported size stays the original one
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoder for image.DecodeConfig

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/fpang/sagemaker-vision/internal/vision"
)

// DefaultJPEGQuality matches the quality used for re-encoded frames when the
// service configuration does not set one.
const DefaultJPEGQuality = jpeg.DefaultQuality

// Options controls payload encoding.
type Options struct {
	// MaxDimension caps the longest side of the transmitted image. 0 disables scaling.
	MaxDimension int
	// JPEGQuality is used whenever a JPEG is produced. 0 means DefaultJPEGQuality.
	JPEGQuality int
}

// Payload is an image ready for transmission.
type Payload struct {
	Body     []byte
	MimeType string
	// Width and Height are the caller's image size, used to denormalize boxes.
	Width  int
	Height int
}

// Normalize converts img into a transmittable payload.
func Normalize(img vision.Image, opts Options) (Payload, error) {
	switch v := img.(type) {
	case vision.EncodedImage:
		return normalizeEncoded(v, opts)
	case *vision.EncodedImage:
		if v == nil {
			return Payload{}, vision.NewError(vision.KindInvalidArgument, "nil image", nil)
		}
		return normalizeEncoded(*v, opts)
	case vision.DecodedImage:
		return normalizeDecoded(v.Image, opts)
	case *vision.DecodedImage:
		if v == nil {
			return Payload{}, vision.NewError(vision.KindInvalidArgument, "nil image", nil)
		}
		return normalizeDecoded(v.Image, opts)
	case nil:
		return Payload{}, vision.NewError(vision.KindInvalidArgument, "nil image", nil)
	default:
		return Payload{}, vision.NewError(vision.KindInvalidArgument, fmt.Sprintf("unsupported image type %T", img), nil)
	}
}

func normalizeEncoded(img vision.EncodedImage, opts Options) (Payload, error) {
	mimeType := vision.NormalizeMimeType(img.MimeType)
	if !vision.IsSupportedMimeType(mimeType) {
		return Payload{}, vision.NewError(vision.KindUnsupportedMediaType,
			fmt.Sprintf("unsupported mime type %q: expected %s or %s", img.MimeType, vision.MimeJPEG, vision.MimePNG), nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return Payload{}, vision.NewError(vision.KindUnsupportedMediaType, "failed to decode image header", err)
	}
	if "image/"+format != mimeType {
		return Payload{}, vision.NewError(vision.KindUnsupportedMediaType,
			fmt.Sprintf("declared mime type %s does not match %s data", mimeType, format), nil)
	}

	if !exceeds(cfg.Width, cfg.Height, opts.MaxDimension) {
		return Payload{Body: img.Data, MimeType: mimeType, Width: cfg.Width, Height: cfg.Height}, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Payload{}, vision.NewError(vision.KindUnsupportedMediaType, "failed to decode image", err)
	}
	return encodeJPEG(decoded, opts)
}

func normalizeDecoded(img image.Image, opts Options) (Payload, error) {
	if img == nil {
		return Payload{}, vision.NewError(vision.KindInvalidArgument, "decoded image has no pixel buffer", nil)
	}
	return encodeJPEG(img, opts)
}

// encodeJPEG flattens img to RGB, scales it if needed and encodes it. The
// returned size is img's size before scaling.
func encodeJPEG(img image.Image, opts Options) (Payload, error) {
	bounds := img.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	if origWidth == 0 || origHeight == 0 {
		return Payload{}, vision.NewError(vision.KindInvalidArgument, "image is empty", nil)
	}

	var rgb *image.RGBA
	if exceeds(origWidth, origHeight, opts.MaxDimension) {
		newWidth, newHeight := ScaledDimensions(origWidth, origHeight, opts.MaxDimension)
		rgb = opaqueCanvas(newWidth, newHeight)
		draw.CatmullRom.Scale(rgb, rgb.Bounds(), img, bounds, draw.Over, nil)
		log.Debug().
			Int("orig_width", origWidth).
			Int("orig_height", origHeight).
			Int("new_width", newWidth).
			Int("new_height", newHeight).
			Msg("Scaled image for endpoint payload")
	} else {
		rgb = ToRGB(img)
	}

	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: quality}); err != nil {
		return Payload{}, fmt.Errorf("failed to encode JPEG payload: %w", err)
	}

	return Payload{Body: buf.Bytes(), MimeType: vision.MimeJPEG, Width: origWidth, Height: origHeight}, nil
}

// ToRGB draws img onto an opaque canvas anchored at the origin. Transparent
// pixels come out black, matching an alpha-dropping RGB conversion.
func ToRGB(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := opaqueCanvas(bounds.Dx(), bounds.Dy())
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}

func opaqueCanvas(width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.Black, image.Point{}, draw.Src)
	return dst
}

func exceeds(width, height, maxDimension int) bool {
	return maxDimension > 0 && (width > maxDimension || height > maxDimension)
}

// ScaledDimensions fits width x height inside maxDimension, keeping the
// aspect ratio. Sizes already within bounds are returned unchanged.
func ScaledDimensions(width, height, maxDimension int) (int, int) {
	if !exceeds(width, height, maxDimension) {
		return width, height
	}

	if width > height {
		newHeight := int(float64(height) * float64(maxDimension) / float64(width))
		return maxDimension, max(newHeight, 1)
	}

	newWidth := int(float64(width) * float64(maxDimension) / float64(height))
	return max(newWidth, 1), maxDimension
}
