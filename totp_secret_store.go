package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const totpSecretKeyPrefix = "ats:"

// totpSecretStore persists one TOTP secret per user. Secrets have no TTL;
// a registration stands until replaced or the user is deleted.
type totpSecretStore struct {
	redis redis.UniversalClient
}

func newTOTPSecretStore(rdb redis.UniversalClient) *totpSecretStore {
	return &totpSecretStore{redis: rdb}
}

func (s *totpSecretStore) key(username string) string {
	return totpSecretKeyPrefix + username
}

// Save stores (or replaces) the user's TOTP secret.
func (s *totpSecretStore) Save(ctx context.Context, username string, secret []byte) error {
	if err := s.redis.Set(ctx, s.key(username), secret, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Get returns the user's TOTP secret, or found=false when none is registered.
func (s *totpSecretStore) Get(ctx context.Context, username string) (secret []byte, found bool, err error) {
	secret, err = s.redis.Get(ctx, s.key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return secret, true, nil
}

// Delete removes the user's TOTP registration.
func (s *totpSecretStore) Delete(ctx context.Context, username string) error {
	if err := s.redis.Del(ctx, s.key(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
