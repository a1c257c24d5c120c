package refreshtokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authpipe/internal/common"
	"github.com/dmitrijs2005/authpipe/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "refresh_token:"

// RedisRepository stores each token as JSON under "<prefix><token>" with a
// TTL equal to its remaining lifetime.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a Redis-backed repository. Prefix may be empty.
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRepository{client: client, prefix: prefix}
}

type redisToken struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r *RedisRepository) key(token string) string {
	return r.prefix + token
}

func (r *RedisRepository) encode(userID string, validity time.Duration) ([]byte, time.Duration, error) {
	b, err := json.Marshal(redisToken{UserID: userID, ExpiresAt: time.Now().Add(validity).UTC()})
	if err != nil {
		return nil, 0, err
	}
	if validity <= 0 {
		validity = time.Second
	}
	return b, validity, nil
}

func (r *RedisRepository) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	b, ttl, err := r.encode(userID, validity)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(token), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	b, err := r.client.Get(ctx, r.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var rt redisToken
	if err := json.Unmarshal(b, &rt); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	return &models.RefreshToken{UserID: rt.UserID, Token: token, Expires: rt.ExpiresAt}, nil
}

// Rotate watches oldToken's key so a concurrent rotation of the same token
// aborts the transaction.
func (r *RedisRepository) Rotate(ctx context.Context, oldToken, userID, newToken string, validity time.Duration) error {
	b, ttl, err := r.encode(userID, validity)
	if err != nil {
		return err
	}
	oldKey := r.key(oldToken)

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, oldKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return common.ErrorNotFound
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, oldKey)
			p.Set(ctx, r.key(newToken), b, ttl)
			return nil
		})
		return err
	}, oldKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound):
		return err
	case errors.Is(err, redis.TxFailedErr):
		return common.ErrorNotFound
	default:
		return fmt.Errorf("redis rotate: %w", err)
	}
}

func (r *RedisRepository) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, r.key(token)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
