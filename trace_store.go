package authgate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	traceFailurePrefix = "atr:f:"
	traceSuccessPrefix = "atr:s:"
)

// traceStore records authentication attempt timestamps per user in Redis
// lists, newest first. The regulator reads the failure list; the success
// list exists for operator inspection.
type traceStore struct {
	redis   redis.UniversalClient
	maxKeep int64
	ttl     time.Duration
}

func newTraceStore(rdb redis.UniversalClient, maxKeep int, ttl time.Duration) *traceStore {
	if maxKeep <= 0 {
		maxKeep = 16
	}
	return &traceStore{
		redis:   rdb,
		maxKeep: int64(maxKeep),
		ttl:     ttl,
	}
}

func (t *traceStore) append(ctx context.Context, key string, at time.Time) error {
	_, err := t.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, strconv.FormatInt(at.Unix(), 10))
		pipe.LTrim(ctx, key, 0, t.maxKeep-1)
		pipe.Expire(ctx, key, t.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRegulationUnavailable, err)
	}
	return nil
}

// AppendFailure records a failed authentication attempt for username.
func (t *traceStore) AppendFailure(ctx context.Context, username string, at time.Time) error {
	return t.append(ctx, traceFailurePrefix+username, at)
}

// AppendSuccess records a successful authentication for username.
func (t *traceStore) AppendSuccess(ctx context.Context, username string, at time.Time) error {
	return t.append(ctx, traceSuccessPrefix+username, at)
}

// RecentFailures returns up to limit failure timestamps for username,
// newest first. Unparseable entries are skipped.
func (t *traceStore) RecentFailures(ctx context.Context, username string, limit int) ([]time.Time, error) {
	raw, err := t.redis.LRange(ctx, traceFailurePrefix+username, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegulationUnavailable, err)
	}

	times := make([]time.Time, 0, len(raw))
	for _, entry := range raw {
		unix, convErr := strconv.ParseInt(entry, 10, 64)
		if convErr != nil {
			continue
		}
		times = append(times, time.Unix(unix, 0))
	}
	return times, nil
}

// Clear drops all attempt traces for username.
func (t *traceStore) Clear(ctx context.Context, username string) error {
	if err := t.redis.Del(ctx, traceFailurePrefix+username, traceSuccessPrefix+username).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRegulationUnavailable, err)
	}
	return nil
}
