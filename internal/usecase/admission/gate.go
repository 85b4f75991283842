// Package admission implements the local rate controller in front of the
// embedding provider and the corpus index. Each guarded resource has a token
// bucket (sustained rate) and a slot pool (concurrency ceiling); a request
// must clear both to proceed.
package admission

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/sentinel/internal/config"
	"github.com/kailas-cloud/sentinel/internal/domain"
	"github.com/kailas-cloud/sentinel/internal/metrics"
)

// Resource names a guarded downstream dependency.
type Resource string

const (
	ResourceEmbedder Resource = "embedder"
	ResourceIndex    Resource = "index"
)

type bucket struct {
	limiter *rate.Limiter
	slots   chan struct{}
}

// Gate hands out admission permits. Safe for concurrent use.
type Gate struct {
	waitTimeout time.Duration
	buckets     map[Resource]*bucket
	logger      *zap.Logger
}

// Permit is a granted admission. Release returns the concurrency slot;
// the rate token is consumed and not returned. Release is idempotent.
type Permit struct {
	release func()
}

// Release frees the permit's concurrency slot. Safe to call multiple times.
func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.release()
	p.release = nil
}

// New builds a gate from admission config.
func New(cfg config.AdmissionConfig, logger *zap.Logger) *Gate {
	return &Gate{
		waitTimeout: time.Duration(cfg.WaitTimeoutMs) * time.Millisecond,
		buckets: map[Resource]*bucket{
			ResourceEmbedder: newBucket(cfg.Embedder),
			ResourceIndex:    newBucket(cfg.Index),
		},
		logger: logger,
	}
}

func newBucket(cfg config.BucketConfig) *bucket {
	return &bucket{
		limiter: rate.NewLimiter(rate.Limit(cfg.RefillPerSec), cfg.Capacity),
		slots:   make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Acquire blocks until a permit for the resource is available or the
// configured wait timeout elapses. A zero wait timeout means no waiting:
// either a token and a slot are free right now, or the call fails.
// On saturation the error wraps domain.ErrAdmissionTimeout.
func (g *Gate) Acquire(ctx context.Context, res Resource) (*Permit, error) {
	b, ok := g.buckets[res]
	if !ok {
		return nil, fmt.Errorf("admission: unknown resource %q", res)
	}

	start := time.Now()

	if g.waitTimeout <= 0 {
		if !b.limiter.Allow() {
			return nil, g.deny(ctx, res)
		}
		select {
		case b.slots <- struct{}{}:
		default:
			return nil, g.deny(ctx, res)
		}
	} else {
		wctx, cancel := context.WithTimeout(ctx, g.waitTimeout)
		defer cancel()

		if err := b.limiter.Wait(wctx); err != nil {
			return nil, g.deny(ctx, res)
		}
		select {
		case b.slots <- struct{}{}:
		case <-wctx.Done():
			return nil, g.deny(ctx, res)
		}
	}

	metrics.AdmissionWaitDuration.WithLabelValues(string(res)).Observe(time.Since(start).Seconds())

	return &Permit{release: func() { <-b.slots }}, nil
}

func (g *Gate) deny(ctx context.Context, res Resource) error {
	metrics.AdmissionTimeoutsTotal.WithLabelValues(string(res)).Inc()
	g.logger.Debug("Admission denied", zap.String("resource", string(res)))

	// Caller cancellation is not saturation; surface it as-is.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("admission %s: %w", res, err)
	}
	return fmt.Errorf("wait for %s permit: %w", res, domain.ErrAdmissionTimeout)
}
