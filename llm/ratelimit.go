package llm

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to a backend so a chatty roster does not get
// the account throttled.
type RateLimited struct {
	next    Backend
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limiter allowing perMinute requests.
func NewRateLimited(next Backend, perMinute int) *RateLimited {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Complete waits for a token, then delegates.
func (r *RateLimited) Complete(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &Error{Provider: r.next.Name(), Kind: KindCanceled, Err: err}
	}
	return r.next.Complete(ctx, systemPrompt, history)
}

// Name returns the wrapped backend's name.
func (r *RateLimited) Name() string {
	return r.next.Name()
}
