package authgate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const deviceKeyPrefix = "adv:"

// deviceStore persists registered WebAuthn/U2F credentials as a JSON
// document keyed by user and relying party, so a credential registered
// while fronting one domain never shadows another domain's. Device records
// are richer and rarer than sessions, so JSON wins over a binary codec
// here.
type deviceStore struct {
	redis redis.UniversalClient
}

func newDeviceStore(rdb redis.UniversalClient) *deviceStore {
	return &deviceStore{redis: rdb}
}

func (s *deviceStore) key(username, appID string) string {
	return deviceKeyPrefix + appID + ":" + username
}

// Get returns the user's devices registered for appID. No registrations
// yields an empty slice, not an error.
func (s *deviceStore) Get(ctx context.Context, username, appID string) ([]DeviceRegistration, error) {
	data, err := s.redis.Get(ctx, s.key(username, appID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var regs []DeviceRegistration
	if err := json.Unmarshal(data, &regs); err != nil {
		return nil, fmt.Errorf("%w: corrupt device record: %v", ErrStoreUnavailable, err)
	}
	return regs, nil
}

// Save replaces the user's registered devices for appID.
func (s *deviceStore) Save(ctx context.Context, username, appID string, regs []DeviceRegistration) error {
	data, err := json.Marshal(regs)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(username, appID), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the user's device registrations for appID.
func (s *deviceStore) Delete(ctx context.Context, username, appID string) error {
	if err := s.redis.Del(ctx, s.key(username, appID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
