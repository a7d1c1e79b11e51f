// Package service implements the SageMaker-backed vision service. A Service
// is immutable once built: reconfiguration builds a new one (see Resource).
package service

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/sagemaker-vision/internal/camera"
	"github.com/fpang/sagemaker-vision/internal/config"
	"github.com/fpang/sagemaker-vision/internal/imaging"
	"github.com/fpang/sagemaker-vision/internal/metrics"
	"github.com/fpang/sagemaker-vision/internal/sagemaker"
	"github.com/fpang/sagemaker-vision/internal/vision"
)

// Invoker sends an image payload to the inference endpoint.
// *sagemaker.Client satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, body []byte) (vision.RawResponse, error)
	EndpointName() string
}

// Option customizes how a Service is built.
type Option func(*options)

type options struct {
	invoker    Invoker
	observer   metrics.Observer
	httpClient *http.Client
}

// WithInvoker uses inv instead of building a SageMaker client from the
// configured credentials.
func WithInvoker(inv Invoker) Option {
	return func(o *options) { o.invoker = inv }
}

// WithObserver reports every completed operation to obs.
func WithObserver(obs metrics.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithHTTPClient sets the client used by HTTP snapshot cameras.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// Service is a configured vision service. All fields are set once by New.
type Service struct {
	invoker  Invoker
	cameras  map[string]camera.Camera
	names    []string // camera dependencies in configured order
	imaging  imaging.Options
	timeout  time.Duration
	observer metrics.Observer
}

var _ vision.Service = (*Service)(nil)

// New validates attrs and builds a Service over the resolved camera
// dependencies. Validation runs before any credentials are read or any
// client is constructed.
func New(ctx context.Context, attrs config.Attributes, deps map[string]camera.Camera, opts ...Option) (*Service, error) {
	o := options{observer: metrics.Discard}
	for _, opt := range opts {
		opt(&o)
	}

	names, err := attrs.Validate()
	if err != nil {
		return nil, err
	}
	cameras := make(map[string]camera.Camera, len(names))
	for _, name := range names {
		cam, ok := deps[name]
		if !ok || cam == nil {
			return nil, vision.NewError(vision.KindConfiguration, fmt.Sprintf("camera dependency %q was not provided", name), nil)
		}
		cameras[name] = cam
	}
	timeout, err := attrs.Timeout()
	if err != nil {
		return nil, err
	}

	invoker := o.invoker
	if invoker == nil {
		creds, err := config.LoadCredentials(attrs.AccessJSON)
		if err != nil {
			return nil, err
		}
		client, err := sagemaker.NewFromCredentials(ctx, attrs.AWSRegion, attrs.EndpointName, creds)
		if err != nil {
			return nil, vision.NewError(vision.KindConfiguration, "failed to build SageMaker client", err)
		}
		invoker = client
	}

	return &Service{
		invoker: invoker,
		cameras: cameras,
		names:   names,
		imaging: imaging.Options{
			MaxDimension: attrs.MaxImageDimension,
			JPEGQuality:  attrs.JPEGQuality,
		},
		timeout:  timeout,
		observer: o.observer,
	}, nil
}

// Build resolves the camera definitions in attrs and builds a Service.
func Build(ctx context.Context, attrs config.Attributes, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	names, err := attrs.Validate()
	if err != nil {
		return nil, err
	}
	deps, err := camera.Resolve(attrs.Cameras, names, o.httpClient)
	if err != nil {
		return nil, err
	}
	return New(ctx, attrs, deps, opts...)
}

// EndpointName returns the SageMaker endpoint this service invokes.
func (s *Service) EndpointName() string {
	return s.invoker.EndpointName()
}

// Cameras returns the names of the configured camera dependencies in the
// order they were configured.
func (s *Service) Cameras() []string {
	return slices.Clone(s.names)
}

// GetClassifications returns up to count classifications of img, highest
// confidence first.
func (s *Service) GetClassifications(ctx context.Context, img vision.Image, count int) ([]vision.Classification, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.classify(ctx, "", img, count)
}

// GetClassificationsFromCamera classifies the current frame of a camera
// dependency.
func (s *Service) GetClassificationsFromCamera(ctx context.Context, cameraName string, count int) ([]vision.Classification, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	img, err := s.frame(ctx, cameraName)
	if err != nil {
		return nil, err
	}
	return s.classify(ctx, cameraName, img, count)
}

// GetDetections returns every object the endpoint detects in img, in
// endpoint order, with boxes in img's pixel coordinates.
func (s *Service) GetDetections(ctx context.Context, img vision.Image) ([]vision.Detection, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.detect(ctx, "", img)
}

// GetDetectionsFromCamera detects objects in the current frame of a camera
// dependency.
func (s *Service) GetDetectionsFromCamera(ctx context.Context, cameraName string) ([]vision.Detection, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	img, err := s.frame(ctx, cameraName)
	if err != nil {
		return nil, err
	}
	return s.detect(ctx, cameraName, img)
}

// GetObjectPointClouds is not supported by image endpoints.
func (s *Service) GetObjectPointClouds(ctx context.Context, cameraName string) ([]vision.PointCloudObject, error) {
	return nil, vision.ErrNotImplemented
}

// DoCommand is not supported.
func (s *Service) DoCommand(ctx context.Context, cmd map[string]any) (map[string]any, error) {
	return nil, vision.ErrNotImplemented
}

// Close releases the service. The SDK client holds no resources that need
// releasing, so this only logs.
func (s *Service) Close(ctx context.Context) error {
	log.Debug().Str("endpoint", s.invoker.EndpointName()).Msg("Vision service closed")
	return nil
}

func (s *Service) classify(ctx context.Context, cameraName string, img vision.Image, count int) (results []vision.Classification, err error) {
	if count < 0 {
		return nil, vision.NewError(vision.KindInvalidArgument, fmt.Sprintf("count must be non-negative, got %d", count), nil)
	}

	start := time.Now()
	var payload imaging.Payload
	defer func() {
		s.observe(metrics.OpClassifications, cameraName, start, len(payload.Body), len(results), err)
	}()

	var raw vision.RawResponse
	payload, raw, err = s.infer(ctx, img)
	if err != nil {
		return nil, err
	}
	results, err = vision.DecodeClassifications(raw, count)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %w", s.invoker.EndpointName(), err)
	}
	return results, nil
}

func (s *Service) detect(ctx context.Context, cameraName string, img vision.Image) (results []vision.Detection, err error) {
	start := time.Now()
	var payload imaging.Payload
	defer func() {
		s.observe(metrics.OpDetections, cameraName, start, len(payload.Body), len(results), err)
	}()

	var raw vision.RawResponse
	payload, raw, err = s.infer(ctx, img)
	if err != nil {
		return nil, err
	}
	results, err = vision.DecodeDetections(raw, payload.Width, payload.Height)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %w", s.invoker.EndpointName(), err)
	}
	return results, nil
}

// infer normalizes img and performs exactly one endpoint round trip.
func (s *Service) infer(ctx context.Context, img vision.Image) (imaging.Payload, vision.RawResponse, error) {
	payload, err := imaging.Normalize(img, s.imaging)
	if err != nil {
		return imaging.Payload{}, nil, err
	}
	raw, err := s.invoker.Invoke(ctx, payload.Body)
	if err != nil {
		return payload, nil, err
	}
	return payload, raw, nil
}

func (s *Service) frame(ctx context.Context, cameraName string) (vision.Image, error) {
	cam, ok := s.cameras[cameraName]
	if !ok {
		return nil, vision.NewError(vision.KindUnknownCamera,
			fmt.Sprintf("camera %q is not a dependency of this service", cameraName), nil)
	}
	img, err := cam.GetImage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get image from camera %s: %w", cameraName, err)
	}
	return img, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) observe(op, cameraName string, start time.Time, payloadBytes, resultCount int, err error) {
	inv := metrics.Invocation{
		Operation:    op,
		Endpoint:     s.invoker.EndpointName(),
		Camera:       cameraName,
		Result:       metrics.ResultOf(err),
		Latency:      time.Since(start),
		PayloadBytes: payloadBytes,
		ResultCount:  resultCount,
	}
	s.observer(inv)

	evt := log.Debug()
	if err != nil {
		evt = log.Warn().Err(err)
	}
	evt.Str("operation", op).
		Str("endpoint", inv.Endpoint).
		Str("camera", cameraName).
		Str("result", inv.Result).
		Int("results", resultCount).
		Dur("elapsed", inv.Latency).
		Msg("Vision operation complete")
}
