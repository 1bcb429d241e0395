package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs conversations with a shared cache so multiple api-server
// replicas see the same dialogue state. Expiry is delegated to the key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    StateTTL,
		now:    time.Now,
	}
}

func conversationKey(phone string) string {
	return "conversation:" + phone
}

func (s *RedisStore) Get(ctx context.Context, phone string) (*State, error) {
	data, err := s.client.Get(ctx, conversationKey(phone)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load conversation state: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode conversation state: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) Set(ctx context.Context, phone string, st *State) error {
	stored := *st
	stored.UpdatedAt = s.now()

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encode conversation state: %w", err)
	}
	if err := s.client.Set(ctx, conversationKey(phone), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store conversation state: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, conversationKey(phone)).Err(); err != nil {
		return fmt.Errorf("clear conversation state: %w", err)
	}
	return nil
}
