package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smartbook/backend/logging"
)

const revokedPrefix = "smartbook:revoked:"

// Revocations records logged-out token ids in Redis until the token would have expired.
type Revocations struct {
	rdb *redis.Client
}

func NewRevocations(ctx context.Context, addr, password string, db int) (*Revocations, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	logging.Info().Str("addr", addr).Msg("connected to Redis")
	return &Revocations{rdb: rdb}, nil
}

// Revoke marks jti revoked until exp.
func (r *Revocations) Revoke(ctx context.Context, jti string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	return r.rdb.SetNX(ctx, revokedPrefix+jti, 1, ttl).Err()
}

func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.rdb.Get(ctx, revokedPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Revocations) Close() error {
	return r.rdb.Close()
}
