package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/sagemaker-vision/internal/camera"
	"github.com/fpang/sagemaker-vision/internal/cli"
	"github.com/fpang/sagemaker-vision/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the attributes file and credentials without calling the endpoint",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		attrs, err := config.Load(configFlag)
		if err != nil {
			cli.HandleServiceError(err)
		}
		deps, err := attrs.Validate()
		if err != nil {
			cli.HandleServiceError(err)
		}
		if _, err := camera.Resolve(attrs.Cameras, deps, nil); err != nil {
			cli.HandleServiceError(err)
		}
		if _, err := config.LoadCredentials(attrs.AccessJSON); err != nil {
			cli.HandleServiceError(err)
		}

		log.Info().Str("config", configFlag).Msg("Configuration is valid")
		fmt.Printf("Endpoint: %s (%s)\n", attrs.EndpointName, attrs.AWSRegion)
		fmt.Printf("Cameras:  %v\n", deps)
	},
}
