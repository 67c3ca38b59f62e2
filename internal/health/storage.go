package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthPinger is implemented by storage backends. HealthPing returns nil
// when the backend answers.
type HealthPinger interface {
	HealthPing(ctx context.Context) error
}

// StorageHealthChecker monitors a storage backend via periodic pings.
type StorageHealthChecker struct {
	pinger       HealthPinger
	driver       string
	healthy      atomic.Int32
	log          zerolog.Logger
	probeTimeout time.Duration
}

// NewStorageHealthChecker creates a checker for a backend that implements HealthPinger.
func NewStorageHealthChecker(pinger HealthPinger, driver string, log zerolog.Logger, probeTimeout time.Duration) *StorageHealthChecker {
	hc := &StorageHealthChecker{
		pinger:       pinger,
		driver:       driver,
		log:          log,
		probeTimeout: probeTimeout,
	}
	hc.healthy.Store(0) // start unhealthy until the first successful check
	return hc
}

// Name returns the checker name.
func (hc *StorageHealthChecker) Name() string {
	return "storage"
}

// IsHealthy returns the cached health status (non-blocking).
func (hc *StorageHealthChecker) IsHealthy() bool {
	return hc.healthy.Load() == 1
}

// Check pings the backend once and records the result.
func (hc *StorageHealthChecker) Check(ctx context.Context) bool {
	to := hc.probeTimeout
	if to <= 0 {
		to = 2 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, to)
	defer cancel()

	if err := hc.pinger.HealthPing(checkCtx); err != nil {
		hc.log.Error().Stack().
			Str("checker", hc.Name()).
			Str("driver", hc.driver).
			Err(err).
			Msg("storage health check failed")
		hc.healthy.Store(0)
		return false
	}
	hc.healthy.Store(1)
	return true
}

// Start begins periodic health checking.
func (hc *StorageHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	hc.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hc.Check(ctx)
		}
	}
}
