// Package httpapi exposes a vision.Service over HTTP. The same router backs
// the standalone server and the Lambda function URL handler.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/fpang/sagemaker-vision/internal/vision"
)

const (
	// DefaultCount is the number of classifications returned when the
	// request does not set count.
	DefaultCount = 5

	defaultMaxBodyBytes = 16 << 20
	maxCommandBytes     = 1 << 20
)

// Options configures the router.
type Options struct {
	// Registry receives the HTTP metrics and is served on /metrics. Nil
	// uses a private registry.
	Registry *prometheus.Registry
	// MaxBodyBytes caps uploaded images. 0 means 16 MiB.
	MaxBodyBytes int64
	// AllowedOrigins enables CORS for browser clients. Empty disables it.
	AllowedOrigins []string
}

type server struct {
	svc          vision.Service
	maxBodyBytes int64
}

// NewRouter builds the HTTP handler for svc.
func NewRouter(svc vision.Service, opts Options) http.Handler {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &server{svc: svc, maxBodyBytes: opts.MaxBodyBytes}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(newHTTPMetrics(reg).middleware)
	r.Use(requestLogger)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/classifications", s.classify)
		r.Post("/detections", s.detect)
		r.Post("/do_command", s.doCommand)
		r.Route("/cameras/{name}", func(r chi.Router) {
			r.Get("/classifications", s.classifyCamera)
			r.Get("/detections", s.detectCamera)
			r.Get("/point_clouds", s.pointClouds)
		})
	})

	return r
}

type classificationsResponse struct {
	Classifications []vision.Classification `json:"classifications"`
}

type detectionsResponse struct {
	Detections []vision.Detection `json:"detections"`
}

func (s *server) classify(w http.ResponseWriter, r *http.Request) {
	count, ok := parseCount(w, r)
	if !ok {
		return
	}
	img, ok := s.readImage(w, r)
	if !ok {
		return
	}
	ctx, cancel, ok := requestContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	results, err := s.svc.GetClassifications(ctx, img, count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classificationsResponse{Classifications: nonNil(results)})
}

func (s *server) classifyCamera(w http.ResponseWriter, r *http.Request) {
	count, ok := parseCount(w, r)
	if !ok {
		return
	}
	ctx, cancel, ok := requestContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	results, err := s.svc.GetClassificationsFromCamera(ctx, chi.URLParam(r, "name"), count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classificationsResponse{Classifications: nonNil(results)})
}

func (s *server) detect(w http.ResponseWriter, r *http.Request) {
	img, ok := s.readImage(w, r)
	if !ok {
		return
	}
	ctx, cancel, ok := requestContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	results, err := s.svc.GetDetections(ctx, img)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detectionsResponse{Detections: nonNil(results)})
}

func (s *server) detectCamera(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, ok := requestContext(w, r)
	if !ok {
		return
	}
	defer cancel()

	results, err := s.svc.GetDetectionsFromCamera(ctx, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detectionsResponse{Detections: nonNil(results)})
}

func (s *server) pointClouds(w http.ResponseWriter, r *http.Request) {
	objects, err := s.svc.GetObjectPointClouds(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": objects})
}

func (s *server) doCommand(w http.ResponseWriter, r *http.Request) {
	var cmd map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBytes)).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	result, err := s.svc.DoCommand(r.Context(), cmd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readImage reads the request body as an encoded image. The MIME type comes
// from Content-Type and is checked by the service.
func (s *server) readImage(w http.ResponseWriter, r *http.Request) (vision.Image, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: fmt.Sprintf("image exceeds %d bytes", tooLarge.Limit),
				Code:  vision.KindInvalidArgument.String(),
			})
			return nil, false
		}
		writeBadRequest(w, "failed to read request body")
		return nil, false
	}
	if len(data) == 0 {
		writeBadRequest(w, "request body must contain an image")
		return nil, false
	}
	return vision.EncodedImage{Data: data, MimeType: r.Header.Get("Content-Type")}, true
}

func parseCount(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("count")
	if v == "" {
		return DefaultCount, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeBadRequest(w, fmt.Sprintf("count must be a non-negative integer, got %q", v))
		return 0, false
	}
	return n, true
}

// requestContext applies the optional ?timeout= duration to the request
// context.
func requestContext(w http.ResponseWriter, r *http.Request) (context.Context, context.CancelFunc, bool) {
	v := r.URL.Query().Get("timeout")
	if v == "" {
		return r.Context(), func() {}, true
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		writeBadRequest(w, fmt.Sprintf("timeout must be a positive duration, got %q", v))
		return nil, nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), d)
	return ctx, cancel, true
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		evt := log.Info()
		if ww.Status() >= http.StatusInternalServerError {
			evt = log.Warn()
		}
		evt.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("requestId", middleware.GetReqID(r.Context())).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	})
}

// nonNil keeps empty result lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
