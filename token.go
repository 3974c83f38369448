package basicauth

import (
	"crypto/rand"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	tokenIssuer     = "basicauth"
	defaultTokenTTL = time.Hour
)

var errInvalidToken = errors.New("invalid token")

// TokenIssuer signs and verifies the bearer tokens handed out by the handshake.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer signing with secret. An empty secret is
// replaced by a random one, so tokens do not survive a restart.
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, errors.Wrap(err, "could not generate token secret")
		}
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for username.
func (t *TokenIssuer) Issue(username string) (string, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "could not sign token")
	}
	return signed, nil
}

// Verify checks raw and returns the user it was issued to.
func (t *TokenIssuer) Verify(raw string) (string, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	var claims jwt.RegisteredClaims
	if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}); err != nil {
		return "", errors.Wrap(errInvalidToken, err.Error())
	}
	return claims.Subject, nil
}
