package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/sagemaker-vision/internal/vision"
)

const (
	// defaultTimeout is the HTTP client timeout for snapshot requests.
	defaultTimeout = 10 * time.Second

	// maxFrameBytes caps a snapshot body.
	maxFrameBytes = 32 << 20
)

// HTTPCamera fetches a snapshot from a URL (e.g. an IP camera's
// /snapshot.jpg) on every GetImage.
type HTTPCamera struct {
	name       string
	url        string
	httpClient *http.Client
}

// NewHTTPCamera creates a snapshot camera. A nil client gets a default one
// with a 10s timeout.
func NewHTTPCamera(name, url string, httpClient *http.Client) *HTTPCamera {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &HTTPCamera{name: name, url: url, httpClient: httpClient}
}

// Name returns the camera's dependency name.
func (c *HTTPCamera) Name() string { return c.name }

// GetImage downloads one snapshot. The MIME type comes from Content-Type.
func (c *HTTPCamera) GetImage(ctx context.Context) (vision.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("camera %s: build request: %w", c.name, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera %s: fetch snapshot: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera %s: snapshot returned status %d", c.name, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes+1))
	if err != nil {
		return nil, fmt.Errorf("camera %s: read snapshot: %w", c.name, err)
	}
	if len(data) > maxFrameBytes {
		return nil, fmt.Errorf("camera %s: snapshot exceeds %d bytes", c.name, maxFrameBytes)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	log.Debug().
		Str("camera", c.name).
		Str("mimeType", mimeType).
		Int("size", len(data)).
		Dur("elapsed", time.Since(start)).
		Msg("Snapshot fetched")

	return vision.EncodedImage{Data: data, MimeType: mimeType}, nil
}
