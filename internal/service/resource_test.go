package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fpang/sagemaker-vision/internal/config"
	"github.com/fpang/sagemaker-vision/internal/vision"
)

// fakeBuilder builds services over pre-registered invokers keyed by endpoint.
func fakeBuilder(invokers map[string]*fakeInvoker) Builder {
	return func(ctx context.Context, attrs config.Attributes) (*Service, error) {
		var opts []Option
		if inv, ok := invokers[attrs.EndpointName]; ok {
			opts = append(opts, WithInvoker(inv))
		}
		return New(ctx, attrs, nil, opts...)
	}
}

func TestResource_ReconfigureSwapsInstance(t *testing.T) {
	oldInv := &fakeInvoker{name: "ep-old", body: classificationBody}
	newInv := &fakeInvoker{name: "ep-new", body: classificationBody}
	build := fakeBuilder(map[string]*fakeInvoker{"ep-old": oldInv, "ep-new": newInv})

	attrs := testAttributes()
	attrs.EndpointName = "ep-old"
	res, err := NewResource(context.Background(), attrs, build)
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	first := res.Current()

	attrs.EndpointName = "ep-new"
	if err := res.Reconfigure(context.Background(), attrs); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if res.Current() == first {
		t.Fatal("expected a new instance after reconfigure")
	}
	if got := res.Current().EndpointName(); got != "ep-new" {
		t.Errorf("EndpointName() = %q, want ep-new", got)
	}
	if first.EndpointName() != "ep-old" {
		t.Error("previous instance must not be mutated")
	}

	if _, err := res.GetClassifications(context.Background(), pngImage(t, 4, 4), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oldInv.callCount() != 0 || newInv.callCount() != 1 {
		t.Errorf("calls old=%d new=%d, want 0/1", oldInv.callCount(), newInv.callCount())
	}
}

func TestResource_InFlightCallKeepsOldInstance(t *testing.T) {
	oldInv := &fakeInvoker{name: "ep-old", body: classificationBody, block: make(chan struct{})}
	newInv := &fakeInvoker{name: "ep-new", body: classificationBody}
	build := fakeBuilder(map[string]*fakeInvoker{"ep-old": oldInv, "ep-new": newInv})

	attrs := testAttributes()
	attrs.EndpointName = "ep-old"
	res, err := NewResource(context.Background(), attrs, build)
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}

	img := pngImage(t, 4, 4)
	done := make(chan error, 1)
	go func() {
		_, err := res.GetClassifications(context.Background(), img, 1)
		done <- err
	}()

	// Wait until the call has reached the old endpoint.
	deadline := time.Now().Add(2 * time.Second)
	for oldInv.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("in-flight call never reached the endpoint")
		}
		time.Sleep(time.Millisecond)
	}

	attrs.EndpointName = "ep-new"
	if err := res.Reconfigure(context.Background(), attrs); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	close(oldInv.block)

	if err := <-done; err != nil {
		t.Fatalf("in-flight call failed: %v", err)
	}
	if oldInv.callCount() != 1 || newInv.callCount() != 0 {
		t.Errorf("calls old=%d new=%d, want 1/0", oldInv.callCount(), newInv.callCount())
	}
}

func TestResource_FailedReconfigureKeepsOldInstance(t *testing.T) {
	inv := &fakeInvoker{name: "ep-1", body: classificationBody}
	res, err := NewResource(context.Background(), testAttributes(), fakeBuilder(map[string]*fakeInvoker{"ep-1": inv}))
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	before := res.Current()

	bad := testAttributes()
	bad.AWSRegion = ""
	if err := res.Reconfigure(context.Background(), bad); !vision.IsKind(err, vision.KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if res.Current() != before {
		t.Error("failed reconfigure must keep the previous instance")
	}
	if _, err := res.GetClassifications(context.Background(), pngImage(t, 4, 4), 1); err != nil {
		t.Errorf("previous instance should still serve: %v", err)
	}
}

func TestNewResource_InvalidAttributes(t *testing.T) {
	attrs := testAttributes()
	attrs.EndpointName = ""
	if _, err := NewResource(context.Background(), attrs, nil); !vision.IsKind(err, vision.KindConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestResource_Close(t *testing.T) {
	inv := &fakeInvoker{name: "ep-1", body: classificationBody}
	res, err := NewResource(context.Background(), testAttributes(), fakeBuilder(map[string]*fakeInvoker{"ep-1": inv}))
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}

	if err := res.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := res.Close(context.Background()); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if res.Current() != nil {
		t.Error("Current() should be nil after Close")
	}
	if _, err := res.GetDetections(context.Background(), pngImage(t, 4, 4)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := res.Reconfigure(context.Background(), testAttributes()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Reconfigure, got %v", err)
	}
	if inv.callCount() != 0 {
		t.Error("closed resource must not invoke the endpoint")
	}
}
