package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/sagemaker-vision/internal/camera"
	"github.com/fpang/sagemaker-vision/internal/cli"
	"github.com/fpang/sagemaker-vision/internal/vision"
)

// Inference flags
var (
	imageFlag  string
	cameraFlag string
	countFlag  int
	outputFlag string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Rank the classes an image most likely belongs to",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()
		_, svc := cli.InitService(ctx, configFlag)
		defer svc.Close(ctx)

		var (
			results []vision.Classification
			err     error
		)
		if cameraFlag != "" {
			results, err = svc.GetClassificationsFromCamera(ctx, cameraFlag, countFlag)
		} else {
			results, err = svc.GetClassifications(ctx, readImage(), countFlag)
		}
		if err != nil {
			cli.HandleServiceError(err)
		}
		if err := cli.WriteClassifications(os.Stdout, outputFlag, results); err != nil {
			log.Fatal().Err(err).Msg("Failed to write results")
		}
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect objects and their bounding boxes in an image",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := commandContext()
		defer cancel()
		_, svc := cli.InitService(ctx, configFlag)
		defer svc.Close(ctx)

		var (
			results []vision.Detection
			err     error
		)
		if cameraFlag != "" {
			results, err = svc.GetDetectionsFromCamera(ctx, cameraFlag)
		} else {
			results, err = svc.GetDetections(ctx, readImage())
		}
		if err != nil {
			cli.HandleServiceError(err)
		}
		if err := cli.WriteDetections(os.Stdout, outputFlag, results); err != nil {
			log.Fatal().Err(err).Msg("Failed to write results")
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{classifyCmd, detectCmd} {
		c.Flags().StringVarP(&imageFlag, "image", "i", "", "JPEG or PNG image to send")
		c.Flags().StringVar(&cameraFlag, "camera", "", "Camera dependency to pull the image from instead of --image")
		c.Flags().StringVarP(&outputFlag, "output", "o", cli.OutputText, "Output format: text or json")
		c.MarkFlagsMutuallyExclusive("image", "camera")
	}
	classifyCmd.Flags().IntVarP(&countFlag, "count", "n", 5, "Maximum number of classifications to return")
}

// commandContext applies --timeout to the whole command.
func commandContext() (context.Context, context.CancelFunc) {
	if timeoutFlag == "" {
		return context.WithCancel(context.Background())
	}
	d, err := time.ParseDuration(timeoutFlag)
	if err != nil || d <= 0 {
		log.Fatal().Str("timeout", timeoutFlag).Msg("--timeout must be a positive duration")
	}
	return context.WithTimeout(context.Background(), d)
}

// readImage loads --image, prompting for a path when neither --image nor
// --camera was given.
func readImage() vision.Image {
	path := imageFlag
	if path == "" {
		path = cli.PromptForImage()
	}
	if path == "" {
		log.Fatal().Msg("No image given. Use --image or --camera")
	}
	path = cli.ValidateAndResolveFile(path)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("Failed to read image")
	}
	log.Debug().Str("path", path).Int("size", len(data)).Msg("Image loaded")
	return vision.EncodedImage{Data: data, MimeType: camera.MimeTypeForPath(path)}
}
