package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"petapt/internal/domain"
)

const defaultTTL = 30 * 24 * time.Hour

const (
	fieldKind        = "identity_kind"
	fieldAnonToken   = "anonymous_token"
	fieldUserID      = "user_id"
	fieldMarkerToken = "marker_token"
	fieldMarkerID    = "marker_attempt_id"
)

// RedisStore keeps one hash per session and refreshes its TTL on every write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) LoadIdentity(ctx context.Context, sessionID string) (domain.Identity, error) {
	vals, err := s.client.HMGet(ctx, sessionKey(sessionID), fieldKind, fieldAnonToken, fieldUserID).Result()
	if err != nil {
		return domain.Identity{}, fmt.Errorf("redis hmget failed: %w", err)
	}
	kindRaw, _ := vals[0].(string)
	if kindRaw == "" {
		return domain.Identity{}, ErrNoState
	}
	kind, err := strconv.Atoi(kindRaw)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("parse identity kind %q: %w", kindRaw, err)
	}
	id := domain.Identity{Kind: domain.IdentityKind(kind)}
	id.AnonymousToken, _ = vals[1].(string)
	id.UserID, _ = vals[2].(string)
	return id, nil
}

func (s *RedisStore) SaveIdentity(ctx context.Context, sessionID string, identity domain.Identity) error {
	return s.write(ctx, sessionID, func(p redis.Pipeliner, key string) {
		p.HSet(ctx, key,
			fieldKind, strconv.Itoa(int(identity.Kind)),
			fieldAnonToken, identity.AnonymousToken,
			fieldUserID, identity.UserID,
		)
	})
}

func (s *RedisStore) LoadMarker(ctx context.Context, sessionID string) (Marker, error) {
	vals, err := s.client.HMGet(ctx, sessionKey(sessionID), fieldMarkerToken, fieldMarkerID).Result()
	if err != nil {
		return Marker{}, fmt.Errorf("redis hmget failed: %w", err)
	}
	token, _ := vals[0].(string)
	if token == "" {
		return Marker{}, ErrNoState
	}
	attempt, _ := vals[1].(string)
	return Marker{AnonymousToken: token, AttemptID: attempt}, nil
}

func (s *RedisStore) SaveMarker(ctx context.Context, sessionID string, marker Marker) error {
	return s.write(ctx, sessionID, func(p redis.Pipeliner, key string) {
		p.HSet(ctx, key, fieldMarkerToken, marker.AnonymousToken, fieldMarkerID, marker.AttemptID)
	})
}

func (s *RedisStore) DeleteMarker(ctx context.Context, sessionID string) error {
	if err := s.client.HDel(ctx, sessionKey(sessionID), fieldMarkerToken, fieldMarkerID).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("redis hdel failed: %w", err)
	}
	return nil
}

func (s *RedisStore) write(ctx context.Context, sessionID string, fn func(p redis.Pipeliner, key string)) error {
	key := sessionKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		fn(p, key)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write failed: %w", err)
	}
	return nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}
