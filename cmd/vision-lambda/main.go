// Package main provides a Lambda entry point for the SageMaker vision
// service, served through a Lambda function URL or API Gateway HTTP API.
//
// The attributes file is named by VISION_CONFIG (default
// /var/task/vision.yaml) and read once at cold start. Routes:
//   - POST /v1/classifications?count=N: image body, Content-Type image/jpeg or image/png
//   - POST /v1/detections: image body
//   - GET  /v1/cameras/{name}/classifications, /v1/cameras/{name}/detections
//   - GET  /healthz
//
// Invocation metrics are written as CloudWatch EMF lines on stdout.
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/fpang/sagemaker-vision/internal/config"
	"github.com/fpang/sagemaker-vision/internal/httpapi"
	"github.com/fpang/sagemaker-vision/internal/logging"
	"github.com/fpang/sagemaker-vision/internal/metrics"
	"github.com/fpang/sagemaker-vision/internal/service"
)

const defaultConfigPath = "/var/task/vision.yaml"

var (
	commitHash = "dev"
	buildTime  = "unknown"
)

var resource *service.Resource

func init() {
	initStart := time.Now()
	logging.Init()

	configPath := logging.EnvOrDefault("VISION_CONFIG", defaultConfigPath)
	attrs, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", configPath).Msg("Failed to load attributes file")
	}

	resource, err = service.NewResource(context.Background(), attrs, nil,
		service.WithObserver(metrics.EMF(os.Stdout)))
	if err != nil {
		log.Fatal().Err(err).Str("endpoint", attrs.EndpointName).Msg("Failed to build vision service")
	}

	svc := resource.Current()
	logging.NewStartupLogger("vision-lambda").
		CommitHash(commitHash).
		BuildTime(buildTime).
		Endpoint(svc.EndpointName(), attrs.AWSRegion).
		AccessFile(attrs.AccessJSON).
		Cameras(svc.Cameras()...).
		Feature("downscale", attrs.MaxImageDimension > 0).
		Feature("requestTimeout", attrs.RequestTimeout != "").
		Config("configPath", configPath).
		InitDuration(time.Since(initStart)).
		Log()
}

func main() {
	router := httpapi.NewRouter(resource, httpapi.Options{Registry: prometheus.NewRegistry()})
	adapter := httpadapter.NewV2(router)
	lambda.Start(adapter.ProxyWithContext)
}
