package resilience

import (
	"context"
	"math/rand"
	"time"
)

// Pacer enforces a jittered minimum interval between successive calls.
// It is the politeness mechanism for sequential scraping loops: the first
// Pace call returns immediately, every later call sleeps a uniform random
// duration in [Min, Max). Unlike the token bucket Limiter, a Pacer never
// allows bursts; it exists so an inline sleep loop becomes an injectable,
// testable dependency.
type Pacer struct {
	Min, Max time.Duration

	started bool
	sleep   func(context.Context, time.Duration) error
	randF   func() float64
}

// NewPacer creates a Pacer with the given jitter bounds. Max < Min is
// treated as a fixed interval of Min.
func NewPacer(min, max time.Duration) *Pacer {
	if max < min {
		max = min
	}
	return &Pacer{
		Min:   min,
		Max:   max,
		sleep: sleepCtx,
		randF: rand.Float64,
	}
}

// Pace blocks for the jittered interval, except on the first call.
// Returns early with the context error if ctx is cancelled mid-sleep.
func (p *Pacer) Pace(ctx context.Context) error {
	if !p.started {
		p.started = true
		return nil
	}
	d := p.Min + time.Duration(p.randF()*float64(p.Max-p.Min))
	return p.sleep(ctx, d)
}

// Reset makes the next Pace call free again.
func (p *Pacer) Reset() { p.started = false }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
