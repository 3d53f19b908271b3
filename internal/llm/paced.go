package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Paced spaces calls to an underlying Completer by a minimum interval.
// It is safe for concurrent use.
type Paced struct {
	next    Completer
	limiter *rate.Limiter
}

// NewPaced wraps next so that consecutive calls start at least minInterval apart.
// A zero interval disables pacing.
func NewPaced(next Completer, minInterval time.Duration) *Paced {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Paced{
		next:    next,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Complete waits for the pacing slot, then delegates.
func (p *Paced) Complete(ctx context.Context, system, user string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return p.next.Complete(ctx, system, user)
}
