// Package health tracks whether the card service's dependencies respond.
package health

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is implemented by component-level checkers.
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// ServiceHealthChecker folds component checkers into one cached flag. The
// service is up only while every component is.
type ServiceHealthChecker struct {
	up   atomic.Bool
	deps []HealthChecker
	log  zerolog.Logger

	// last transition logged; only touched by Evaluate callers
	reported atomic.Int32
}

func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	return &ServiceHealthChecker{deps: deps, log: log}
}

// IsHealthy returns the cached service health.
func (h *ServiceHealthChecker) IsHealthy() bool { return h.up.Load() }

// Components reports the cached health of every dependency by name.
func (h *ServiceHealthChecker) Components() map[string]bool {
	out := make(map[string]bool, len(h.deps))
	for _, c := range h.deps {
		out[c.Name()] = c.IsHealthy()
	}
	return out
}

// Evaluate recomputes the service flag from the components' cached state
// and logs UP/DOWN transitions.
func (h *ServiceHealthChecker) Evaluate() bool {
	var down []string
	for _, c := range h.deps {
		if !c.IsHealthy() {
			down = append(down, c.Name())
		}
	}
	up := len(down) == 0
	h.up.Store(up)

	state := int32(-1)
	if up {
		state = 1
	}
	if h.reported.Swap(state) != state {
		if up {
			h.log.Info().Msg("service health: UP")
		} else {
			slices.Sort(down)
			h.log.Error().Strs("down", down).Msg("service health: DOWN")
		}
	}
	return up
}

// Start evaluates now and then on every tick until ctx is done.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.Evaluate()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Evaluate()
		}
	}
}
