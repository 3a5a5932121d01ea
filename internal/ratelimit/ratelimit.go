// Package ratelimit implements sliding-window request limiting.
//
// Each key keeps the timestamps of its admitted requests. A request is
// admitted while fewer than Limit timestamps fall inside the trailing window;
// rejected requests are not recorded.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Policy names used by the gateway.
const (
	PolicyLogin    = "login"
	PolicyAPI      = "api"
	PolicyPHI      = "phi"
	PolicyMutation = "mutation"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is how long until the oldest in-window request expires.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// Store records and counts timestamps per key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// Policy is a named limit over a window. Limit <= 0 disables the policy.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Limiter applies named policies on top of a Store.
type Limiter struct {
	store    Store
	policies map[string]Policy
}

func NewLimiter(store Store, policies ...Policy) *Limiter {
	l := &Limiter{
		store:    store,
		policies: make(map[string]Policy, len(policies)),
	}
	for _, p := range policies {
		l.policies[p.Name] = p
	}
	return l
}

// Policy returns the configured policy and whether it is enforced.
func (l *Limiter) Policy(name string) (Policy, bool) {
	p, ok := l.policies[name]
	return p, ok && p.Limit > 0 && p.Window > 0
}

// Allow checks client against the named policy. Unknown or disabled policies
// always allow.
func (l *Limiter) Allow(ctx context.Context, policy, client string) (Decision, error) {
	p, enforced := l.Policy(policy)
	if !enforced || l.store == nil {
		return Decision{Allowed: true}, nil
	}
	d, err := l.store.Allow(ctx, Key(policy, client), p.Limit, p.Window)
	if err != nil {
		return Decision{Allowed: true, Limit: p.Limit}, fmt.Errorf("rate limit %s: %w", policy, err)
	}
	return d, nil
}

// Key scopes a client identifier to a policy.
func Key(policy, client string) string {
	if client == "" {
		return policy
	}
	return policy + ":" + client
}
