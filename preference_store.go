package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const preferenceKeyPrefix = "apf:"

// preferenceStore persists each user's preferred second-factor method.
type preferenceStore struct {
	redis redis.UniversalClient
}

func newPreferenceStore(rdb redis.UniversalClient) *preferenceStore {
	return &preferenceStore{redis: rdb}
}

func (s *preferenceStore) key(username string) string {
	return preferenceKeyPrefix + username
}

// Get returns the user's preferred method, or fallback when none is stored.
func (s *preferenceStore) Get(ctx context.Context, username string, fallback Method) (Method, error) {
	value, err := s.redis.Get(ctx, s.key(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fallback, nil
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	switch Method(value) {
	case MethodTOTP, MethodWebAuthn, MethodDuoPush:
		return Method(value), nil
	default:
		return fallback, nil
	}
}

// Save stores the user's preferred method.
func (s *preferenceStore) Save(ctx context.Context, username string, method Method) error {
	if err := s.redis.Set(ctx, s.key(username), string(method), 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
