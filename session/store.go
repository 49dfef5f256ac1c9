package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBackendUnavailable is returned when Redis cannot be reached. It is the
// only error the store surfaces for infrastructure faults; absent or
// unreadable records degrade to a fresh anonymous session instead.
var ErrBackendUnavailable = errors.New("session backend unavailable")

// Store persists authentication sessions in Redis, keyed by the browser's
// session cookie value.
type Store struct {
	redis    redis.UniversalClient
	prefix   string
	lifetime time.Duration
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix namespaces the Redis keys; lifetime is the TTL applied on every
// save, so activity slides the expiry forward.
func NewStore(redis redis.UniversalClient, prefix string, lifetime time.Duration) *Store {
	return &Store{
		redis:    redis,
		prefix:   prefix,
		lifetime: lifetime,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

// Get retrieves the session bound to sessionID. A missing or unreadable
// record yields a fresh anonymous session, never an error: an expired
// cookie must land the user on the login page, not on an error page.
func (s *Store) Get(ctx context.Context, sessionID string) (*AuthenticationSession, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &AuthenticationSession{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// Corrupt record, likely a format change. Treat as anonymous.
		return &AuthenticationSession{}, nil
	}

	return sess, nil
}

// Save persists the session under sessionID and refreshes its TTL.
func (s *Store) Save(ctx context.Context, sessionID string, sess *AuthenticationSession) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(sessionID), data, s.lifetime).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return nil
}

// Reset replaces the session with a fresh anonymous one. The record is
// overwritten rather than deleted so the cookie keeps working.
func (s *Store) Reset(ctx context.Context, sessionID string) error {
	return s.Save(ctx, sessionID, &AuthenticationSession{})
}

// Delete removes the session record entirely.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
