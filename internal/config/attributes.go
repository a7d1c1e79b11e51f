// Package config loads and validates the attributes of a SageMaker vision
// service, and the access-key file they point to.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/fpang/sagemaker-vision/internal/vision"
)

// Attributes is the service configuration. Required: EndpointName,
// AWSRegion and AccessJSON.
type Attributes struct {
	EndpointName string   `json:"endpoint_name" yaml:"endpoint_name" toml:"endpoint_name"`
	AWSRegion    string   `json:"aws_region" yaml:"aws_region" toml:"aws_region"`
	AccessJSON   string   `json:"access_json" yaml:"access_json" toml:"access_json"`
	CameraName   string   `json:"camera_name,omitempty" yaml:"camera_name,omitempty" toml:"camera_name,omitempty"`
	SourceCams   []string `json:"source_cams,omitempty" yaml:"source_cams,omitempty" toml:"source_cams,omitempty"`

	// MaxImageDimension down-scales payloads whose longest side exceeds it. 0 disables.
	MaxImageDimension int `json:"max_image_dimension,omitempty" yaml:"max_image_dimension,omitempty" toml:"max_image_dimension,omitempty"`
	// JPEGQuality applies to re-encoded images. 0 uses the encoder default.
	JPEGQuality int `json:"jpeg_quality,omitempty" yaml:"jpeg_quality,omitempty" toml:"jpeg_quality,omitempty"`
	// RequestTimeout bounds each endpoint call, e.g. "10s". Empty means no bound.
	RequestTimeout string `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty" toml:"request_timeout,omitempty"`

	// Cameras defines camera sources for hosts that run the service stand-alone.
	Cameras []CameraSpec `json:"cameras,omitempty" yaml:"cameras,omitempty" toml:"cameras,omitempty"`
}

// CameraSpec describes one camera source. Type is "file" (Path) or "http" (URL).
type CameraSpec struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	Type string `json:"type" yaml:"type" toml:"type"`
	Path string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
}

// Load reads attributes from a file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Attributes, error) {
	var attrs Attributes
	if path == "" {
		return attrs, configError("empty config path", nil)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return attrs, configError("failed to read config", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &attrs)
	case ".json":
		err = json.Unmarshal(b, &attrs)
	case ".toml":
		err = toml.Unmarshal(b, &attrs)
	default:
		return attrs, configError(fmt.Sprintf("unsupported config extension: %s", ext), nil)
	}
	if err != nil {
		return attrs, configError(fmt.Sprintf("failed to parse %s", path), err)
	}
	return attrs, nil
}

// Validate checks the attributes and returns the names of the camera
// dependencies the service needs resolved.
func (a Attributes) Validate() ([]string, error) {
	if a.EndpointName == "" {
		return nil, configError("An endpoint name is required as an attribute for an AWS vision service", nil)
	}
	if a.AWSRegion == "" {
		return nil, configError("The AWS region is required as an attribute for an AWS vision service", nil)
	}
	if a.AccessJSON == "" {
		return nil, configError("The location of the access JSON file is required as an attribute for an AWS vision service", nil)
	}
	if !strings.HasSuffix(a.AccessJSON, ".json") {
		return nil, configError("The location of the access JSON must end in '.json'", nil)
	}
	if a.MaxImageDimension < 0 {
		return nil, configError(fmt.Sprintf("max_image_dimension must be non-negative, got %d", a.MaxImageDimension), nil)
	}
	if a.JPEGQuality < 0 || a.JPEGQuality > 100 {
		return nil, configError(fmt.Sprintf("jpeg_quality must be between 0 and 100, got %d", a.JPEGQuality), nil)
	}
	if _, err := a.Timeout(); err != nil {
		return nil, err
	}
	for i, cam := range a.SourceCams {
		if cam == "" {
			return nil, configError(fmt.Sprintf("source_cams[%d] is empty", i), nil)
		}
	}
	return a.Dependencies(), nil
}

// Dependencies lists CameraName (if set) followed by SourceCams, in order
// and without duplicates.
func (a Attributes) Dependencies() []string {
	seen := make(map[string]bool)
	var deps []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		deps = append(deps, name)
	}
	add(a.CameraName)
	for _, name := range a.SourceCams {
		add(name)
	}
	return deps
}

// Timeout parses RequestTimeout. Zero means no per-call bound.
func (a Attributes) Timeout() (time.Duration, error) {
	if a.RequestTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.RequestTimeout)
	if err != nil {
		return 0, configError(fmt.Sprintf("invalid request_timeout %q", a.RequestTimeout), err)
	}
	if d < 0 {
		return 0, configError(fmt.Sprintf("request_timeout must be non-negative, got %s", d), nil)
	}
	return d, nil
}

func configError(msg string, err error) error {
	return vision.NewError(vision.KindConfiguration, msg, err)
}
