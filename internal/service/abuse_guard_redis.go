package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAuthAbuseGuard keeps failure state in Redis so cooldowns hold
// across restarts and replicas. Each tracked key is a hash holding the
// failure count, the last failure time and the cooldown deadline, expired
// by the policy's reset window.
type RedisAuthAbuseGuard struct {
	client    *redis.Client
	keyPrefix string
	policy    AuthAbusePolicy
	now       func() time.Time
}

func NewRedisAuthAbuseGuard(client *redis.Client, keyPrefix string, policy AuthAbusePolicy) *RedisAuthAbuseGuard {
	return &RedisAuthAbuseGuard{
		client:    client,
		keyPrefix: keyPrefix,
		policy:    policy.withDefaults(),
		now:       time.Now,
	}
}

func (g *RedisAuthAbuseGuard) stateKey(scope AuthAbuseScope, kind, value string) string {
	return fmt.Sprintf("%s:%s:%s:%s", g.keyPrefix, scope, kind, value)
}

func (g *RedisAuthAbuseGuard) keys(scope AuthAbuseScope, identity, sourceIP string) []string {
	keys := make([]string, 0, 2)
	if id := normalizeAuthIdentity(identity); id != "" {
		keys = append(keys, g.stateKey(scope, "id", id))
	}
	if ip := strings.TrimSpace(sourceIP); ip != "" {
		keys = append(keys, g.stateKey(scope, "ip", ip))
	}
	return keys
}

func (g *RedisAuthAbuseGuard) Check(ctx context.Context, scope AuthAbuseScope, identity, sourceIP string) (time.Duration, error) {
	now := g.now()
	var maxWait time.Duration
	for _, key := range g.keys(scope, identity, sourceIP) {
		fields, err := g.client.HGetAll(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("read abuse state %s: %w", key, err)
		}
		if len(fields) == 0 {
			continue
		}
		last, until, _, err := parseAbuseFields(fields)
		if err != nil {
			return 0, fmt.Errorf("decode abuse state %s: %w", key, err)
		}
		if now.Sub(last) > g.policy.ResetWindow {
			continue
		}
		if wait := until.Sub(now); wait > maxWait {
			maxWait = wait
		}
	}
	return maxWait, nil
}

func (g *RedisAuthAbuseGuard) RegisterFailure(ctx context.Context, scope AuthAbuseScope, identity, sourceIP string) (time.Duration, error) {
	now := g.now()
	var maxWait time.Duration
	for _, key := range g.keys(scope, identity, sourceIP) {
		fields, err := g.client.HGetAll(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("read abuse state %s: %w", key, err)
		}
		failures := 0
		if len(fields) > 0 {
			last, _, count, err := parseAbuseFields(fields)
			if err != nil {
				return 0, fmt.Errorf("decode abuse state %s: %w", key, err)
			}
			if now.Sub(last) <= g.policy.ResetWindow {
				failures = count
			}
		}
		failures++
		wait := g.policy.cooldownFor(failures)
		pipe := g.client.TxPipeline()
		pipe.HSet(ctx, key,
			"failures", strconv.Itoa(failures),
			"last_failure_ms", strconv.FormatInt(now.UnixMilli(), 10),
			"cooldown_until_ms", strconv.FormatInt(now.Add(wait).UnixMilli(), 10),
		)
		pipe.Expire(ctx, key, g.policy.ResetWindow)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, fmt.Errorf("write abuse state %s: %w", key, err)
		}
		if wait > maxWait {
			maxWait = wait
		}
	}
	return maxWait, nil
}

func (g *RedisAuthAbuseGuard) Reset(ctx context.Context, scope AuthAbuseScope, identity, sourceIP string) error {
	keys := g.keys(scope, identity, sourceIP)
	if len(keys) == 0 {
		return nil
	}
	if err := g.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("reset abuse state: %w", err)
	}
	return nil
}

func parseAbuseFields(fields map[string]string) (last, until time.Time, failures int, err error) {
	lastMS, err := strconv.ParseInt(fields["last_failure_ms"], 10, 64)
	if err != nil {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("last_failure_ms: %w", err)
	}
	untilMS, err := strconv.ParseInt(fields["cooldown_until_ms"], 10, 64)
	if err != nil {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("cooldown_until_ms: %w", err)
	}
	if raw, ok := fields["failures"]; ok {
		failures, err = strconv.Atoi(raw)
		if err != nil {
			return time.Time{}, time.Time{}, 0, fmt.Errorf("failures: %w", err)
		}
	}
	return time.UnixMilli(lastMS), time.UnixMilli(untilMS), failures, nil
}
