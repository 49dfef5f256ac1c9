package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/authgate/authgate/internal"
)

const tokenIssuer = "authgate"

// identityTokenClaims is the transport envelope of an identity verification
// token. The authoritative state (single use, deadline, challenge binding)
// lives server-side keyed by the ID claim; the JWT wrapper keeps tokens
// self-describing and tamper-evident in transit.
type identityTokenClaims struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// tokenService mints and consumes identity verification tokens.
type tokenService struct {
	store    *tokenStore
	secret   []byte
	lifetime time.Duration

	now func() time.Time
}

func newTokenService(store *tokenStore, cfg IdentityVerificationConfig) *tokenService {
	return &tokenService{
		store:    store,
		secret:   cfg.TokenSecret,
		lifetime: cfg.TokenLifetime,
		now:      time.Now,
	}
}

// Issue mints a single-use token binding username to the given challenge
// and returns the signed transport form.
func (t *tokenService) Issue(ctx context.Context, challenge ChallengeKind, username string) (string, error) {
	id, err := internal.NewVerificationToken()
	if err != nil {
		return "", err
	}

	now := t.now()
	maxDate := now.Add(t.lifetime)

	rec := &verificationRecord{
		Challenge: challenge,
		Username:  username,
		MaxDate:   maxDate,
	}

	// Retain past the logical deadline so late presentations report expiry
	// instead of an unknown token.
	if err := t.store.Save(ctx, id, rec, 2*t.lifetime); err != nil {
		return "", err
	}

	claims := identityTokenClaims{
		Action:   string(challenge),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(maxDate),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	return signed, nil
}

// Consume validates and spends a token previously minted by [Issue]. The
// envelope signature is checked first; expiry is then judged against the
// server-side record so that clock claims in the token itself carry no
// authority.
func (t *tokenService) Consume(ctx context.Context, signed string, challenge ChallengeKind) (*verificationRecord, error) {
	claims := &identityTokenClaims{}

	_, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	return t.store.Consume(ctx, claims.ID, challenge, t.now())
}
