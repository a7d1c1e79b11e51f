// Package sagemaker invokes a SageMaker real-time inference endpoint with an
// image payload and returns the decoded JSON body.
//
// Each Invoke is exactly one InvokeEndpoint round trip: no caching and no
// retries (the SDK retryer is disabled). Failures surface as
// vision.KindEndpointInvocation errors wrapping the SDK error.
package sagemaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/sagemaker-vision/internal/vision"
)

const (
	// ContentType is the request body type for JumpStart image models.
	ContentType = "application/x-image"
	// Accept asks for the verbose JSON schema that includes label names.
	Accept = "application/json;verbose"
)

// InvokeAPI is the subset of *sagemakerruntime.Client used here.
type InvokeAPI interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// Credentials are static AWS keys.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// Client invokes one named endpoint. It is safe for concurrent use.
type Client struct {
	api          InvokeAPI
	endpointName string
}

// New wraps an existing runtime API (a real client or a test fake).
func New(api InvokeAPI, endpointName string) *Client {
	return &Client{api: api, endpointName: endpointName}
}

// NewFromCredentials builds a SageMaker runtime client for region using
// static credentials.
func NewFromCredentials(ctx context.Context, region, endpointName string, creds Credentials) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, "")),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Str("endpoint", endpointName).Msg("SageMaker runtime client created")
	return New(sagemakerruntime.NewFromConfig(cfg), endpointName), nil
}

// EndpointName returns the endpoint this client invokes.
func (c *Client) EndpointName() string {
	return c.endpointName
}

// Invoke sends body to the endpoint and returns the parsed JSON response.
func (c *Client) Invoke(ctx context.Context, body []byte) (vision.RawResponse, error) {
	inferenceID := uuid.NewString()
	start := time.Now()

	out, err := c.api.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(c.endpointName),
		Body:         body,
		ContentType:  aws.String(ContentType),
		Accept:       aws.String(Accept),
		InferenceId:  aws.String(inferenceID),
	})
	elapsed := time.Since(start)

	if err != nil {
		evt := log.Error().
			Err(err).
			Str("endpoint", c.endpointName).
			Str("inferenceId", inferenceID).
			Dur("elapsed", elapsed)
		if code := StatusCode(err); code != 0 {
			evt = evt.Int("statusCode", code)
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			evt = evt.Str("errorCode", apiErr.ErrorCode())
		}
		evt.Msg("InvokeEndpoint failed")
		return nil, vision.NewError(vision.KindEndpointInvocation,
			fmt.Sprintf("failed to invoke endpoint %s", c.endpointName), err)
	}

	log.Debug().
		Str("endpoint", c.endpointName).
		Str("inferenceId", inferenceID).
		Int("requestSize", len(body)).
		Int("responseSize", len(out.Body)).
		Dur("elapsed", elapsed).
		Msg("InvokeEndpoint complete")

	return vision.ParseRawResponse(out.Body)
}

// StatusCode extracts the HTTP status from an SDK error, or 0 when the
// request never got a response.
func StatusCode(err error) int {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}
