package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/sagemaker-vision/internal/config"
	"github.com/fpang/sagemaker-vision/internal/service"
)

// InitService loads the attributes file and builds the vision service.
// Returns the attributes and service ready for use, or exits fatally on
// failure.
func InitService(ctx context.Context, configPath string, opts ...service.Option) (config.Attributes, *service.Service) {
	attrs, err := config.Load(configPath)
	if err != nil {
		HandleServiceError(err)
	}

	svc, err := service.Build(ctx, attrs, opts...)
	if err != nil {
		HandleServiceError(err)
	}

	log.Info().
		Str("endpoint", svc.EndpointName()).
		Str("region", attrs.AWSRegion).
		Strs("cameras", svc.Cameras()).
		Msg("Vision service initialized")

	return attrs, svc
}
