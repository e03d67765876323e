package challenge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"attestra/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix = "chal:"

	// Keys outlive ExpiresAt by this much so a late verify can still be told
	// "expired" instead of "not found". Redis GC removes them afterwards.
	expiryGrace = 10 * time.Minute
)

// consumeScript implements compare-and-consume atomically server-side, so the
// single-use guarantee holds across multiple service instances.
//
// Returns:
//
//	"NOT_FOUND" | "EXPIRED" | "USED" | flat HGETALL reply on success
var consumeScript = redis.NewScript(`
local used = redis.call('HGET', KEYS[1], 'used')
if not used then
  return 'NOT_FOUND'
end
local expires_at = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if tonumber(ARGV[1]) > expires_at then
  redis.call('DEL', KEYS[1])
  return 'EXPIRED'
end
if used == '1' then
  return 'USED'
end
redis.call('HSET', KEYS[1], 'used', '1', 'used_at', ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

// RedisStore keeps challenge sessions in Redis hashes. This is the
// production implementation for deployments with more than one instance.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed challenge store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	key := sessionKeyPrefix + session.Token
	fields := map[string]any{
		"nonce":      session.Nonce,
		"vp":         string(session.Presentation),
		"created_at": session.CreatedAt.UnixMilli(),
		"expires_at": session.ExpiresAt.UnixMilli(),
		"used":       "0",
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.ExpireAt(ctx, key, session.ExpiresAt.Add(expiryGrace))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Bind(ctx context.Context, token string, presentation []byte) error {
	key := sessionKeyPrefix + token
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("bind challenge: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("challenge %s: %w", token, sentinel.ErrNotFound)
	}
	if err := s.client.HSet(ctx, key, "vp", string(presentation)).Err(); err != nil {
		return fmt.Errorf("bind challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) VerifyAndConsume(ctx context.Context, token string, now time.Time) (*Session, error) {
	key := sessionKeyPrefix + token
	res, err := consumeScript.Run(ctx, s.client, []string{key}, now.UnixMilli()).Result()
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}

	switch v := res.(type) {
	case string:
		switch v {
		case "NOT_FOUND":
			return nil, fmt.Errorf("challenge %s: %w", token, sentinel.ErrNotFound)
		case "EXPIRED":
			return nil, fmt.Errorf("challenge %s: %w", token, sentinel.ErrExpired)
		case "USED":
			return nil, fmt.Errorf("challenge %s: %w", token, sentinel.ErrAlreadyUsed)
		}
		return nil, fmt.Errorf("consume challenge: unexpected reply %q", v)
	case []any:
		return sessionFromHash(token, v)
	default:
		return nil, fmt.Errorf("consume challenge: unexpected reply type %T", res)
	}
}

func (s *RedisStore) Exists(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("challenge exists: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired is a no-op for Redis: keys expire server-side via TTL.
func (s *RedisStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func sessionFromHash(token string, flat []any) (*Session, error) {
	fields := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		fields[k] = v
	}

	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode challenge %s created_at: %w", token, err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode challenge %s expires_at: %w", token, err)
	}
	usedAt, err := strconv.ParseInt(fields["used_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode challenge %s used_at: %w", token, err)
	}

	usedTime := time.UnixMilli(usedAt)
	return &Session{
		Token:        token,
		Nonce:        fields["nonce"],
		Presentation: []byte(fields["vp"]),
		CreatedAt:    time.UnixMilli(createdAt),
		ExpiresAt:    time.UnixMilli(expiresAt),
		Used:         true,
		UsedAt:       &usedTime,
	}, nil
}
