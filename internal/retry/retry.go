// Package retry wraps unreliable remote calls with bounded exponential
// backoff across multiple functionally-equivalent endpoints.
package retry

import (
	"context"
	"math/rand"
	"time"

	"promoscout/promoworker/logger"
	apperr "promoscout/promoworker/pkg/errors"
)

// Operation is one attempt against a concrete endpoint. HTTP-level error
// statuses and transport failures are both expressed as a non-nil error;
// the controller treats them identically as retryable.
type Operation func(ctx context.Context, endpoint string) error

// Controller retries an operation against a pool of interchangeable
// endpoints. Endpoint choice is uniform and independent per attempt, not
// round-robin, so the same endpoint may be drawn consecutively.
type Controller struct {
	endpoints []string
	tries     int
	rnd       *rand.Rand
	sleep     func(ctx context.Context, d time.Duration) error
	log       *logger.Logger
}

// NewController creates a controller with a maximum attempt budget. rnd is
// the injectable randomness source for endpoint choice and jitter; nil seeds
// one from the clock.
func NewController(endpoints []string, tries int, rnd *rand.Rand) *Controller {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Controller{
		endpoints: endpoints,
		tries:     tries,
		rnd:       rnd,
		sleep:     sleepCtx,
		log:       logger.ForSource(),
	}
}

// Do runs op until one attempt succeeds or the budget is exhausted, waiting
// 2^attempt seconds plus jitter between attempts. The last observed error is
// surfaced only after every attempt failed. A cancellation stops further
// attempts immediately.
func (c *Controller) Do(ctx context.Context, op Operation) error {
	if len(c.endpoints) == 0 {
		return apperr.NewValidation("retry", "no endpoints configured")
	}
	if c.tries < 1 {
		return apperr.NewValidation("retry", "attempt budget must be positive")
	}

	var lastErr error
	for attempt := 0; attempt < c.tries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		endpoint := c.endpoints[c.rnd.Intn(len(c.endpoints))]
		err := op(ctx, endpoint)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == c.tries-1 {
			break
		}

		backoff := (1<<uint(attempt))*time.Second +
			time.Duration(c.rnd.Int63n(int64(time.Second)))
		c.log.Debug().
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msg("Attempt failed, backing off")

		if err := c.sleep(ctx, backoff); err != nil {
			// Cancelled mid-backoff: no further attempts.
			return lastErr
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
