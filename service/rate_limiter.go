package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/nostrauth/core"
	"github.com/layer-3/nostrauth/ports"
)

// RatePolicy is a fixed-window limit
type RatePolicy struct {
	Limit  int64
	Window time.Duration
}

// RateLimiter counts attempts per scope in fixed windows. It fails closed.
type RateLimiter struct {
	store    ports.CounterStore
	policies map[core.Scope]RatePolicy
	now      func() time.Time
}

// NewRateLimiter creates a limiter with one policy per scope
func NewRateLimiter(store ports.CounterStore, caller, account RatePolicy) *RateLimiter {
	return &RateLimiter{
		store: store,
		policies: map[core.Scope]RatePolicy{
			core.ScopeCaller:  caller,
			core.ScopeAccount: account,
		},
		now: time.Now,
	}
}

// Allow records one attempt for identifier in scope. It returns
// core.ErrRateLimited when the window is exhausted or the counter store
// cannot be reached.
func (r *RateLimiter) Allow(ctx context.Context, scope core.Scope, identifier string) (core.Counter, error) {
	policy, ok := r.policies[scope]
	if !ok || policy.Limit <= 0 || policy.Window <= 0 {
		return core.Counter{Scope: scope, Limited: true}, fmt.Errorf("%w: no policy for scope %q", core.ErrRateLimited, scope)
	}
	if identifier == "" {
		identifier = "unknown"
	}

	windowStart := r.now().Truncate(policy.Window)
	counter := core.Counter{
		Key:         counterKey(scope, identifier, windowStart),
		Scope:       scope,
		WindowStart: windowStart,
		Limit:       policy.Limit,
	}

	count, limited, err := r.store.Increment(ctx, counter.Key, policy.Window, policy.Limit)
	if err != nil {
		counter.Limited = true
		return counter, fmt.Errorf("%w: %w: %v", core.ErrRateLimited, core.ErrLimiterUnavailable, err)
	}

	counter.Count = count
	counter.Limited = limited
	if limited {
		return counter, core.ErrRateLimited
	}
	return counter, nil
}

func counterKey(scope core.Scope, identifier string, windowStart time.Time) string {
	return "ratelimit:" + string(scope) + ":" + identifier + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}
