package service

import (
	"context"
	"testing"
	"time"
)

func TestLocalAuthAbuseGuardCooldownAndReset(t *testing.T) {
	ctx := context.Background()
	guard := NewLocalAuthAbuseGuard(AuthAbusePolicy{
		FreeAttempts: 1,
		BaseDelay:    time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		ResetWindow:  time.Minute,
	})

	d1, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "u1@example.com", "10.0.0.1")
	if err != nil {
		t.Fatalf("register first failure: %v", err)
	}
	if d1 != 0 {
		t.Fatalf("expected free attempt, got %v", d1)
	}

	d2, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "u1@example.com", "10.0.0.1")
	if err != nil {
		t.Fatalf("register second failure: %v", err)
	}
	if d2 != time.Second {
		t.Fatalf("expected base delay, got %v", d2)
	}

	d3, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "u1@example.com", "10.0.0.1")
	if err != nil {
		t.Fatalf("register third failure: %v", err)
	}
	if d3 != 2*time.Second {
		t.Fatalf("expected doubled delay, got %v", d3)
	}

	if cooldown, _ := guard.Check(ctx, AuthAbuseScopeLogin, "u1@example.com", "10.0.0.1"); cooldown <= 0 {
		t.Fatalf("expected active cooldown, got %v", cooldown)
	}
	if cooldown, _ := guard.Check(ctx, AuthAbuseScopeLogin, "u2@example.com", "10.0.0.2"); cooldown != 0 {
		t.Fatalf("expected other identity unaffected, got %v", cooldown)
	}

	if err := guard.Reset(ctx, AuthAbuseScopeLogin, "u1@example.com", "10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if cooldown, _ := guard.Check(ctx, AuthAbuseScopeLogin, "u1@example.com", "10.0.0.1"); cooldown != 0 {
		t.Fatalf("expected no cooldown after reset, got %v", cooldown)
	}
}

func TestLocalAuthAbuseGuardResetWindowExpiresState(t *testing.T) {
	ctx := context.Background()
	guard := NewLocalAuthAbuseGuard(AuthAbusePolicy{
		FreeAttempts: 1,
		BaseDelay:    time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		ResetWindow:  time.Minute,
	})
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	guard.now = func() time.Time { return now }

	if _, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "u1@example.com", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "u1@example.com", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if cooldown, _ := guard.Check(ctx, AuthAbuseScopeLogin, "u1@example.com", ""); cooldown != 0 {
		t.Fatalf("expected state expired past reset window, got %v", cooldown)
	}
	d, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "u1@example.com", "")
	if err != nil {
		t.Fatalf("register after expiry: %v", err)
	}
	if d != 0 {
		t.Fatalf("expected counter restarted with a free attempt, got %v", d)
	}
}

func TestLocalAuthAbuseGuardDelayCap(t *testing.T) {
	ctx := context.Background()
	guard := NewLocalAuthAbuseGuard(AuthAbusePolicy{
		FreeAttempts: 1,
		BaseDelay:    time.Second,
		Multiplier:   2,
		MaxDelay:     3 * time.Second,
		ResetWindow:  time.Minute,
	})

	var last time.Duration
	for i := 0; i < 6; i++ {
		d, err := guard.RegisterFailure(ctx, AuthAbuseScopeLogin, "u1@example.com", "")
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		last = d
	}
	if last != 3*time.Second {
		t.Fatalf("expected delay capped at max, got %v", last)
	}
}
