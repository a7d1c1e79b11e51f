package metrics

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/fpang/sagemaker-vision/internal/vision"
)

// Namespace is the CloudWatch namespace for vision service metrics.
const Namespace = "SageMakerVision"

// Operation names used as the Operation dimension.
const (
	OpClassifications = "classifications"
	OpDetections      = "detections"
)

// ResultOK is the Result dimension of a successful invocation.
const ResultOK = "ok"

// Invocation describes one completed service operation.
type Invocation struct {
	Operation    string
	Endpoint     string
	Camera       string
	Result       string
	Latency      time.Duration
	PayloadBytes int
	ResultCount  int
}

// Observer receives every completed invocation.
type Observer func(Invocation)

// Discard is an Observer that drops everything.
func Discard(Invocation) {}

// Multi fans an invocation out to several observers.
func Multi(observers ...Observer) Observer {
	return func(inv Invocation) {
		for _, o := range observers {
			if o != nil {
				o(inv)
			}
		}
	}
}

// EMF returns an Observer that writes each invocation as an EMF document.
func EMF(w io.Writer) Observer {
	return func(inv Invocation) {
		rec := New(Namespace).
			Output(w).
			Dimension("Operation", inv.Operation).
			Dimension("Result", inv.Result).
			Count("Invocations").
			Metric("InvokeLatencyMs", float64(inv.Latency.Milliseconds()), UnitMilliseconds).
			Metric("PayloadBytes", float64(inv.PayloadBytes), UnitBytes).
			Metric("ResultCount", float64(inv.ResultCount), UnitCount).
			Property("endpoint", inv.Endpoint)
		if inv.Camera != "" {
			rec.Property("camera", inv.Camera)
		}
		rec.Flush()
	}
}

// ResultOf maps an operation error to the Result dimension value.
func ResultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	if kind, ok := vision.KindOf(err); ok {
		return kind.String()
	}
	return "error"
}
