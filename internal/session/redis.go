package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "macrolog:session:"

// RedisStore persists sessions as JSON with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	sess.ensureDefaults()
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, redisKey(sess.ID), payload, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("session id collision")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	payload, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, err
	}
	sess.ensureDefaults()
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session, seenAt time.Time) error {
	sess.LastSeenAt = seenAt
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, redisKey(sess.ID), payload, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, redisKey(id)).Err()
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}
