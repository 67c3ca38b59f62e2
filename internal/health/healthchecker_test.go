package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeChecker struct {
	name    string
	healthy atomic.Int32
}

func (f *fakeChecker) Name() string                               { return f.name }
func (f *fakeChecker) IsHealthy() bool                            { return f.healthy.Load() == 1 }
func (f *fakeChecker) Start(ctx context.Context, _ time.Duration) {}

func TestServiceHealthChecker_Transitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &fakeChecker{name: "a"}
	b := &fakeChecker{name: "b"}
	a.healthy.Store(1)
	b.healthy.Store(1)

	svc := NewServiceHealthChecker(zerolog.Nop(), a, b)
	go svc.Start(ctx, 10*time.Millisecond)

	waitTrue(t, func() bool { return svc.IsHealthy() })

	b.healthy.Store(0)
	waitTrue(t, func() bool { return !svc.IsHealthy() })
	if got := svc.Components(); got["a"] != true || got["b"] != false {
		t.Fatalf("components = %v", got)
	}

	b.healthy.Store(1)
	waitTrue(t, func() bool { return svc.IsHealthy() })
}

type fakePinger struct{ err atomic.Value }

func (p *fakePinger) HealthPing(context.Context) error {
	if v := p.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func TestStorageHealthChecker(t *testing.T) {
	p := &fakePinger{}
	hc := NewStorageHealthChecker(p, "memory", zerolog.Nop(), 50*time.Millisecond)
	if hc.IsHealthy() {
		t.Fatalf("checker should start unhealthy")
	}
	if !hc.Check(context.Background()) || !hc.IsHealthy() {
		t.Fatalf("expected healthy after successful ping")
	}

	p.err.Store(errors.New("down"))
	if hc.Check(context.Background()) || hc.IsHealthy() {
		t.Fatalf("expected unhealthy after failed ping")
	}
}

func waitTrue(t *testing.T, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}

func TestServiceHealthChecker_EvaluateWithoutStart(t *testing.T) {
	a := &fakeChecker{name: "storage"}
	svc := NewServiceHealthChecker(zerolog.Nop(), a)
	if svc.IsHealthy() {
		t.Fatalf("service should start unhealthy")
	}
	a.healthy.Store(1)
	if !svc.Evaluate() || !svc.IsHealthy() {
		t.Fatalf("expected healthy after evaluate")
	}
	a.healthy.Store(0)
	if svc.Evaluate() {
		t.Fatalf("expected unhealthy after component went down")
	}
}
