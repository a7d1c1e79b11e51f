package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/fpang/sagemaker-vision/internal/config"
	"github.com/fpang/sagemaker-vision/internal/vision"
)

// ErrClosed is returned by a Resource after Close.
var ErrClosed = errors.New("vision service is closed")

// Builder constructs a Service from attributes. Build is the default.
type Builder func(ctx context.Context, attrs config.Attributes) (*Service, error)

// Resource is the long-lived handle the host holds. It delegates to the
// current Service and swaps in a freshly built one on Reconfigure. Calls
// already in flight keep using the Service they started with.
type Resource struct {
	build   Builder
	current atomic.Pointer[Service]
	closed  atomic.Bool
	mu      sync.Mutex // serializes Reconfigure and Close
}

var _ vision.Service = (*Resource)(nil)

// NewResource builds the initial Service. A nil build uses Build with opts.
func NewResource(ctx context.Context, attrs config.Attributes, build Builder, opts ...Option) (*Resource, error) {
	if build == nil {
		build = func(ctx context.Context, attrs config.Attributes) (*Service, error) {
			return Build(ctx, attrs, opts...)
		}
	}
	svc, err := build(ctx, attrs)
	if err != nil {
		return nil, err
	}
	r := &Resource{build: build}
	r.current.Store(svc)
	return r, nil
}

// Reconfigure builds a new Service from attrs and makes it current. On
// failure the previous Service stays active and the error is returned.
func (r *Resource) Reconfigure(ctx context.Context, attrs config.Attributes) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Load() {
		return ErrClosed
	}

	next, err := r.build(ctx, attrs)
	if err != nil {
		log.Error().Err(err).Str("endpoint", attrs.EndpointName).Msg("Reconfigure failed, keeping previous configuration")
		return err
	}
	prev := r.current.Swap(next)
	log.Info().
		Str("endpoint", next.EndpointName()).
		Strs("cameras", next.Cameras()).
		Msg("Vision service reconfigured")

	if prev != nil {
		return prev.Close(ctx)
	}
	return nil
}

// Current returns the active Service, or nil after Close.
func (r *Resource) Current() *Service {
	if r.closed.Load() {
		return nil
	}
	return r.current.Load()
}

func (r *Resource) load() (*Service, error) {
	svc := r.Current()
	if svc == nil {
		return nil, ErrClosed
	}
	return svc, nil
}

// GetClassifications delegates to the current Service.
func (r *Resource) GetClassifications(ctx context.Context, img vision.Image, count int) ([]vision.Classification, error) {
	svc, err := r.load()
	if err != nil {
		return nil, err
	}
	return svc.GetClassifications(ctx, img, count)
}

// GetClassificationsFromCamera delegates to the current Service.
func (r *Resource) GetClassificationsFromCamera(ctx context.Context, cameraName string, count int) ([]vision.Classification, error) {
	svc, err := r.load()
	if err != nil {
		return nil, err
	}
	return svc.GetClassificationsFromCamera(ctx, cameraName, count)
}

// GetDetections delegates to the current Service.
func (r *Resource) GetDetections(ctx context.Context, img vision.Image) ([]vision.Detection, error) {
	svc, err := r.load()
	if err != nil {
		return nil, err
	}
	return svc.GetDetections(ctx, img)
}

// GetDetectionsFromCamera delegates to the current Service.
func (r *Resource) GetDetectionsFromCamera(ctx context.Context, cameraName string) ([]vision.Detection, error) {
	svc, err := r.load()
	if err != nil {
		return nil, err
	}
	return svc.GetDetectionsFromCamera(ctx, cameraName)
}

// GetObjectPointClouds delegates to the current Service.
func (r *Resource) GetObjectPointClouds(ctx context.Context, cameraName string) ([]vision.PointCloudObject, error) {
	svc, err := r.load()
	if err != nil {
		return nil, err
	}
	return svc.GetObjectPointClouds(ctx, cameraName)
}

// DoCommand delegates to the current Service.
func (r *Resource) DoCommand(ctx context.Context, cmd map[string]any) (map[string]any, error) {
	svc, err := r.load()
	if err != nil {
		return nil, err
	}
	return svc.DoCommand(ctx, cmd)
}

// Close closes the current Service. Later calls return ErrClosed; closing
// twice is a no-op.
func (r *Resource) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed.Swap(true) {
		return nil
	}
	if svc := r.current.Swap(nil); svc != nil {
		return svc.Close(ctx)
	}
	return nil
}
