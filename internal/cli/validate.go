package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/sagemaker-vision/internal/vision"
)

// ValidateAndResolveFile checks that the path exists and is a regular file,
// then returns the absolute path. Exits fatally on failure.
func ValidateAndResolveFile(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatal().Str("path", path).Msg("File not found")
		}
		log.Fatal().Err(err).Str("path", path).Msg("Failed to access file")
	}
	if info.IsDir() {
		log.Fatal().Str("path", path).Msg("Path is a directory, expected an image file")
	}

	absPath, err := filepath.Abs(path)
	if err == nil {
		path = absPath
	}

	return path
}

// HandleServiceError logs a kind-specific message for err and exits.
func HandleServiceError(err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		log.Fatal().Err(err).Msg("Timed out waiting for the endpoint. Increase --timeout or request_timeout")
	}
	kind, ok := vision.KindOf(err)
	if !ok {
		log.Fatal().Err(err).Msg("Vision request failed")
	}
	switch kind {
	case vision.KindConfiguration:
		log.Fatal().Err(err).Msg("Invalid configuration. Check endpoint_name, aws_region and access_json")
	case vision.KindUnsupportedMediaType:
		log.Fatal().Err(err).Msg("Unsupported image. Only JPEG and PNG are accepted")
	case vision.KindUnknownCamera:
		log.Fatal().Err(err).Msg("Unknown camera. Use camera_name or source_cams to declare it")
	case vision.KindEndpointInvocation:
		log.Fatal().Err(err).Msg("SageMaker endpoint call failed. Check the endpoint name, region and credentials")
	case vision.KindMalformedResponse:
		log.Fatal().Err(err).Msg("Endpoint returned an unexpected response. Is it a JumpStart classification or detection model?")
	case vision.KindNotImplemented:
		log.Fatal().Err(err).Msg("Operation not supported by this service")
	default:
		log.Fatal().Err(err).Msg("Vision request failed")
	}
	os.Exit(1)
}
