package stabilization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// swapFingerprintScript replaces a fingerprint and returns the previous
// value atomically.
// KEYS[1] = fingerprint key
// ARGV[1] = encoded fingerprint
var swapFingerprintScript = redis.NewScript(`
local prev = redis.call("GET", KEYS[1])
redis.call("SET", KEYS[1], ARGV[1])
if not prev then
    return ""
end
return prev
`)

// redeemOverrideScript consumes a token and clears a rejection atomically.
// KEYS[1] = used token set
// KEYS[2] = rejected set
// ARGV[1] = token id
// ARGV[2] = intent id
var redeemOverrideScript = redis.NewScript(`
if redis.call("SADD", KEYS[1], ARGV[1]) == 0 then
    return 0
end
redis.call("SREM", KEYS[2], ARGV[2])
return 1
`)

// RedisHistory is a HistoryStore backed by Redis, so guard state survives
// kernel restarts.
type RedisHistory struct {
	client *redis.Client
	prefix string
}

// NewRedisHistory connects to Redis. Keys are namespaced under prefix.
func NewRedisHistory(addr, password string, db int, prefix string) *RedisHistory {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisHistoryFromClient(rdb, prefix)
}

// NewRedisHistoryFromClient wraps an existing client.
func NewRedisHistoryFromClient(client *redis.Client, prefix string) *RedisHistory {
	if prefix == "" {
		prefix = "continuum:stabilization"
	}
	return &RedisHistory{client: client, prefix: prefix}
}

// Ping checks connectivity.
func (r *RedisHistory) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *RedisHistory) Close() error {
	return r.client.Close()
}

func (r *RedisHistory) key(parts ...string) string {
	k := r.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (r *RedisHistory) SwapFingerprint(ctx context.Context, fp Fingerprint) (Fingerprint, bool, error) {
	data, err := json.Marshal(fp)
	if err != nil {
		return Fingerprint{}, false, fmt.Errorf("encode fingerprint: %w", err)
	}
	res, err := swapFingerprintScript.Run(ctx, r.client, []string{r.key("fp", fp.IntentID)}, string(data)).Text()
	if err != nil {
		return Fingerprint{}, false, fmt.Errorf("redis history error: %w", err)
	}
	if res == "" {
		return Fingerprint{}, false, nil
	}
	var prev Fingerprint
	if err := json.Unmarshal([]byte(res), &prev); err != nil {
		return Fingerprint{}, false, fmt.Errorf("decode fingerprint: %w", err)
	}
	return prev, true, nil
}

func (r *RedisHistory) Fingerprint(ctx context.Context, intentID string) (Fingerprint, bool, error) {
	res, err := r.client.Get(ctx, r.key("fp", intentID)).Result()
	if errors.Is(err, redis.Nil) {
		return Fingerprint{}, false, nil
	}
	if err != nil {
		return Fingerprint{}, false, fmt.Errorf("redis history error: %w", err)
	}
	var fp Fingerprint
	if err := json.Unmarshal([]byte(res), &fp); err != nil {
		return Fingerprint{}, false, fmt.Errorf("decode fingerprint: %w", err)
	}
	return fp, true, nil
}

func (r *RedisHistory) IncrementNormalizations(ctx context.Context, intentID string) (int, error) {
	n, err := r.client.Incr(ctx, r.key("norm", intentID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis history error: %w", err)
	}
	return int(n), nil
}

func (r *RedisHistory) MarkRejected(ctx context.Context, intentID string) error {
	if err := r.client.SAdd(ctx, r.key("rejected"), intentID).Err(); err != nil {
		return fmt.Errorf("redis history error: %w", err)
	}
	return nil
}

func (r *RedisHistory) IsRejected(ctx context.Context, intentID string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key("rejected"), intentID).Result()
	if err != nil {
		return false, fmt.Errorf("redis history error: %w", err)
	}
	return ok, nil
}

func (r *RedisHistory) RejectedIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.key("rejected")).Result()
	if err != nil {
		return nil, fmt.Errorf("redis history error: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *RedisHistory) RedeemOverride(ctx context.Context, tokenID, intentID string) (bool, error) {
	keys := []string{r.key("tokens"), r.key("rejected")}
	n, err := redeemOverrideScript.Run(ctx, r.client, keys, tokenID, intentID).Int()
	if err != nil {
		return false, fmt.Errorf("redis history error: %w", err)
	}
	return n == 1, nil
}
