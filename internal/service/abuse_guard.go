package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// AuthAbuseScope separates cooldown state per credential flow.
type AuthAbuseScope string

const (
	AuthAbuseScopeLogin  AuthAbuseScope = "login"
	AuthAbuseScopeForgot AuthAbuseScope = "forgot"
)

// AuthAbusePolicy shapes the exponential cooldown applied to repeated
// credential failures. FreeAttempts failures carry no delay; each failure
// past that multiplies the previous delay, capped at MaxDelay. State older
// than ResetWindow is discarded.
type AuthAbusePolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   int
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

func (p AuthAbusePolicy) withDefaults() AuthAbusePolicy {
	if p.FreeAttempts <= 0 {
		p.FreeAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.Multiplier < 2 {
		p.Multiplier = 2
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = time.Minute
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = 15 * time.Minute
	}
	return p
}

func (p AuthAbusePolicy) cooldownFor(failures int) time.Duration {
	if failures <= p.FreeAttempts {
		return 0
	}
	delay := p.BaseDelay
	for i := p.FreeAttempts + 1; i < failures; i++ {
		delay *= time.Duration(p.Multiplier)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// AuthAbuseGuard tracks credential failures per identity and per source
// address and answers with the cooldown a caller must wait out before the
// next attempt is considered.
type AuthAbuseGuard interface {
	// Check reports the remaining cooldown, zero when the attempt may
	// proceed.
	Check(ctx context.Context, scope AuthAbuseScope, identity, sourceIP string) (time.Duration, error)
	// RegisterFailure records a failed attempt and returns the cooldown
	// now in force.
	RegisterFailure(ctx context.Context, scope AuthAbuseScope, identity, sourceIP string) (time.Duration, error)
	// Reset clears state after a successful attempt.
	Reset(ctx context.Context, scope AuthAbuseScope, identity, sourceIP string) error
}

func normalizeAuthIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

type abuseState struct {
	failures      int
	lastFailure   time.Time
	cooldownUntil time.Time
}

// LocalAuthAbuseGuard is the in-process fallback used when no Redis
// address is configured. State does not survive restarts and is not
// shared across replicas.
type LocalAuthAbuseGuard struct {
	policy AuthAbusePolicy
	now    func() time.Time

	mu    sync.Mutex
	state map[string]*abuseState
}

func NewLocalAuthAbuseGuard(policy AuthAbusePolicy) *LocalAuthAbuseGuard {
	return &LocalAuthAbuseGuard{
		policy: policy.withDefaults(),
		now:    time.Now,
		state:  make(map[string]*abuseState),
	}
}

func localKey(scope AuthAbuseScope, kind, value string) string {
	return string(scope) + ":" + kind + ":" + value
}

func (g *LocalAuthAbuseGuard) Check(_ context.Context, scope AuthAbuseScope, identity, sourceIP string) (time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	var maxWait time.Duration
	for _, key := range g.keys(scope, identity, sourceIP) {
		st, ok := g.state[key]
		if !ok {
			continue
		}
		if now.Sub(st.lastFailure) > g.policy.ResetWindow {
			delete(g.state, key)
			continue
		}
		if wait := st.cooldownUntil.Sub(now); wait > maxWait {
			maxWait = wait
		}
	}
	return maxWait, nil
}

func (g *LocalAuthAbuseGuard) RegisterFailure(_ context.Context, scope AuthAbuseScope, identity, sourceIP string) (time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	var maxWait time.Duration
	for _, key := range g.keys(scope, identity, sourceIP) {
		st, ok := g.state[key]
		if !ok || now.Sub(st.lastFailure) > g.policy.ResetWindow {
			st = &abuseState{}
			g.state[key] = st
		}
		st.failures++
		st.lastFailure = now
		wait := g.policy.cooldownFor(st.failures)
		st.cooldownUntil = now.Add(wait)
		if wait > maxWait {
			maxWait = wait
		}
	}
	return maxWait, nil
}

func (g *LocalAuthAbuseGuard) Reset(_ context.Context, scope AuthAbuseScope, identity, sourceIP string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, key := range g.keys(scope, identity, sourceIP) {
		delete(g.state, key)
	}
	return nil
}

func (g *LocalAuthAbuseGuard) keys(scope AuthAbuseScope, identity, sourceIP string) []string {
	keys := make([]string, 0, 2)
	if id := normalizeAuthIdentity(identity); id != "" {
		keys = append(keys, localKey(scope, "id", id))
	}
	if ip := strings.TrimSpace(sourceIP); ip != "" {
		keys = append(keys, localKey(scope, "ip", ip))
	}
	return keys
}
