// Package camera provides the camera dependencies a vision service pulls
// frames from. A Camera returns the latest frame as a vision.Image; the two
// sources here read a file from disk or fetch an HTTP snapshot URL.
package camera

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/sagemaker-vision/internal/config"
	"github.com/fpang/sagemaker-vision/internal/vision"
)

// Camera produces frames on demand.
type Camera interface {
	Name() string
	GetImage(ctx context.Context) (vision.Image, error)
}

// Source types accepted in config.CameraSpec.Type.
const (
	TypeFile = "file"
	TypeHTTP = "http"
)

// FromSpec builds a camera from its configuration.
func FromSpec(spec config.CameraSpec, httpClient *http.Client) (Camera, error) {
	if spec.Name == "" {
		return nil, vision.NewError(vision.KindConfiguration, "camera definition is missing a name", nil)
	}
	switch strings.ToLower(spec.Type) {
	case TypeFile:
		if spec.Path == "" {
			return nil, vision.NewError(vision.KindConfiguration, fmt.Sprintf("file camera %q requires a path", spec.Name), nil)
		}
		return NewFileCamera(spec.Name, spec.Path), nil
	case TypeHTTP:
		if spec.URL == "" {
			return nil, vision.NewError(vision.KindConfiguration, fmt.Sprintf("http camera %q requires a url", spec.Name), nil)
		}
		return NewHTTPCamera(spec.Name, spec.URL, httpClient), nil
	default:
		return nil, vision.NewError(vision.KindConfiguration,
			fmt.Sprintf("camera %q has unsupported type %q (expected %s or %s)", spec.Name, spec.Type, TypeFile, TypeHTTP), nil)
	}
}

// Resolve builds the dependency map for the named cameras from the
// available definitions. Every name must have a definition; definitions
// that no name refers to are ignored.
func Resolve(specs []config.CameraSpec, names []string, httpClient *http.Client) (map[string]Camera, error) {
	byName := make(map[string]config.CameraSpec, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
	}

	deps := make(map[string]Camera, len(names))
	for _, name := range names {
		spec, ok := byName[name]
		if !ok {
			return nil, vision.NewError(vision.KindConfiguration, fmt.Sprintf("camera dependency %q has no definition", name), nil)
		}
		cam, err := FromSpec(spec, httpClient)
		if err != nil {
			return nil, err
		}
		deps[name] = cam
		log.Debug().Str("camera", name).Str("type", spec.Type).Msg("Camera dependency resolved")
	}
	return deps, nil
}
