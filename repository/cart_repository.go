package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/models"

	"github.com/redis/go-redis/v9"
)

// CartRepository stores carts as JSON blobs in Redis, keyed by user.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	DeleteCart(ctx context.Context, userID string) error
}

type redisCartRepo struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartRepo(client *redis.Client, ttl time.Duration) CartRepository {
	return &redisCartRepo{client: client, ttl: ttl}
}

func (r *redisCartRepo) getKey(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

func (r *redisCartRepo) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	data, err := r.client.Get(ctx, r.getKey(userID)).Result()
	if err == redis.Nil {
		// No cart found
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := json.Unmarshal([]byte(data), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *redisCartRepo) SaveCart(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now()

	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.getKey(cart.UserID), data, r.ttl).Err()
}

func (r *redisCartRepo) DeleteCart(ctx context.Context, userID string) error {
	return r.client.Del(ctx, r.getKey(userID)).Err()
}
