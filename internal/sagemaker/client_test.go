package sagemaker

import (
	"context"
	"errors"
	"net/http"
	"testing"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/fpang/sagemaker-vision/internal/vision"
)

// fakeRuntime records the last request and returns a canned response.
type fakeRuntime struct {
	calls int
	input *sagemakerruntime.InvokeEndpointInput
	body  []byte
	err   error
}

func (f *fakeRuntime) InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	f.calls++
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sagemakerruntime.InvokeEndpointOutput{Body: f.body}, nil
}

func TestInvoke_RequestShape(t *testing.T) {
	fake := &fakeRuntime{body: []byte(`{"labels":["cat"],"probabilities":[1.0]}`)}
	client := New(fake, "my-endpoint")

	raw, err := client.Invoke(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 1 {
		t.Errorf("expected 1 call, got %d", fake.calls)
	}

	in := fake.input
	if got := *in.EndpointName; got != "my-endpoint" {
		t.Errorf("EndpointName = %q", got)
	}
	if got := *in.ContentType; got != "application/x-image" {
		t.Errorf("ContentType = %q", got)
	}
	if got := *in.Accept; got != "application/json;verbose" {
		t.Errorf("Accept = %q", got)
	}
	if in.InferenceId == nil || *in.InferenceId == "" {
		t.Error("InferenceId not set")
	}
	if string(in.Body) != "jpeg-bytes" {
		t.Errorf("Body = %q", in.Body)
	}
	if _, ok := raw[vision.KeyLabels]; !ok {
		t.Errorf("parsed response missing labels: %v", raw)
	}
}

func TestInvoke_NoCaching(t *testing.T) {
	fake := &fakeRuntime{body: []byte(`{}`)}
	client := New(fake, "ep")

	for i := 0; i < 3; i++ {
		if _, err := client.Invoke(context.Background(), []byte("same")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if fake.calls != 3 {
		t.Errorf("expected 3 calls, got %d", fake.calls)
	}
}

func TestInvoke_TransportError(t *testing.T) {
	fake := &fakeRuntime{err: errors.New("dial tcp: connection refused")}
	client := New(fake, "ep")

	_, err := client.Invoke(context.Background(), []byte("x"))
	if !vision.IsKind(err, vision.KindEndpointInvocation) {
		t.Fatalf("expected endpoint invocation error, got %v", err)
	}
	if !errors.Is(err, fake.err) {
		t.Error("transport error not wrapped")
	}
	if fake.calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", fake.calls)
	}
}

func TestInvoke_ErrorStatus(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "ModelError", Message: "model crashed"}
	respErr := &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusFailedDependency}},
			Err:      apiErr,
		},
		RequestID: "req-1",
	}
	client := New(&fakeRuntime{err: respErr}, "ep")

	_, err := client.Invoke(context.Background(), []byte("x"))
	if !vision.IsKind(err, vision.KindEndpointInvocation) {
		t.Fatalf("expected endpoint invocation error, got %v", err)
	}
	if code := StatusCode(err); code != http.StatusFailedDependency {
		t.Errorf("StatusCode = %d, want %d", code, http.StatusFailedDependency)
	}
}

func TestInvoke_MalformedBody(t *testing.T) {
	client := New(&fakeRuntime{body: []byte("<html>oops</html>")}, "ep")

	_, err := client.Invoke(context.Background(), []byte("x"))
	if !vision.IsKind(err, vision.KindMalformedResponse) {
		t.Errorf("expected malformed response error, got %v", err)
	}
}

func TestStatusCode_NoResponse(t *testing.T) {
	if code := StatusCode(errors.New("timeout")); code != 0 {
		t.Errorf("StatusCode = %d, want 0", code)
	}
}
