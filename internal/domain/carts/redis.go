package carts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"monkibox/internal/cart"
)

// RedisRepository keeps each cart as one JSON value under cart:<userID>.
// TTL 0 keeps carts forever; a positive TTL lets idle carts expire.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func cartKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

func (r *RedisRepository) Load(ctx context.Context, userID int64) ([]cart.Line, error) {
	raw, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var lines []cart.Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *RedisRepository) Save(ctx context.Context, userID int64, lines []cart.Line) error {
	if lines == nil {
		lines = []cart.Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, cartKey(userID), raw, r.ttl).Err()
}
