package authgate

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "avt:"

const tokenRecordVersionCurrent = 1

const consumeMaxRetries = 5

// verificationRecord is the server-side state of an issued identity
// verification token.
type verificationRecord struct {
	Challenge ChallengeKind
	Username  string
	MaxDate   time.Time
}

func encodeVerificationRecord(rec *verificationRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(tokenRecordVersionCurrent)

	if len(rec.Challenge) > 255 {
		return nil, errors.New("challenge too long")
	}
	buf.WriteByte(byte(len(rec.Challenge)))
	buf.WriteString(string(rec.Challenge))

	if len(rec.Username) > 255 {
		return nil, errors.New("username too long")
	}
	buf.WriteByte(byte(len(rec.Username)))
	buf.WriteString(rec.Username)

	if err := binary.Write(&buf, binary.BigEndian, rec.MaxDate.Unix()); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeVerificationRecord(data []byte) (*verificationRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != tokenRecordVersionCurrent {
		return nil, errors.New("invalid token record version")
	}

	rec := &verificationRecord{}

	challengeLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	challenge := make([]byte, challengeLen)
	if _, err := io.ReadFull(reader, challenge); err != nil {
		return nil, err
	}
	rec.Challenge = ChallengeKind(challenge)

	usernameLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	username := make([]byte, usernameLen)
	if _, err := io.ReadFull(reader, username); err != nil {
		return nil, err
	}
	rec.Username = string(username)

	var maxDate int64
	if err := binary.Read(reader, binary.BigEndian, &maxDate); err != nil {
		return nil, err
	}
	rec.MaxDate = time.Unix(maxDate, 0)

	return rec, nil
}

// tokenStore persists identity verification tokens in Redis and consumes
// them at most once.
type tokenStore struct {
	redis redis.UniversalClient
}

func newTokenStore(rdb redis.UniversalClient) *tokenStore {
	return &tokenStore{redis: rdb}
}

func (t *tokenStore) key(token string) string {
	return tokenKeyPrefix + token
}

// Save persists a fresh token record. ttl is the physical retention; it
// exceeds the logical deadline in rec.MaxDate so that a late presentation
// can be answered with an expiry error rather than an unknown-token error.
func (t *tokenStore) Save(ctx context.Context, token string, rec *verificationRecord, ttl time.Duration) error {
	data, err := encodeVerificationRecord(rec)
	if err != nil {
		return err
	}

	if err := t.redis.Set(ctx, t.key(token), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenBackendUnavailable, err)
	}

	return nil
}

// Consume atomically validates and deletes the token. Exactly one of N
// concurrent calls for the same token succeeds; the rest observe
// ErrTokenInvalid. The record is only deleted on success: a challenge
// mismatch or expiry leaves the token in place.
func (t *tokenStore) Consume(ctx context.Context, token string, challenge ChallengeKind, now time.Time) (*verificationRecord, error) {
	key := t.key(token)

	var rec *verificationRecord

	consume := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrTokenInvalid
			}
			return fmt.Errorf("%w: %v", ErrTokenBackendUnavailable, err)
		}

		decoded, err := decodeVerificationRecord(data)
		if err != nil {
			return ErrTokenInvalid
		}

		if decoded.Challenge != challenge {
			return ErrTokenInvalid
		}
		if now.After(decoded.MaxDate) {
			return ErrTokenExpired
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return err
		}

		rec = decoded
		return nil
	}

	for i := 0; i < consumeMaxRetries; i++ {
		err := t.redis.Watch(ctx, consume, key)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenExpired) || errors.Is(err, ErrTokenBackendUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenBackendUnavailable, err)
	}

	// Contention on every attempt means another consumer won the race.
	return nil, ErrTokenInvalid
}
