package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of tokens minted by IssueToken
const Issuer = "chopsticks"

// JWTResolver verifies HS256 bearer tokens and returns their subject
type JWTResolver struct {
	secret []byte
	now    func() time.Time
}

// NewJWTResolver creates a resolver for tokens signed with secret
func NewJWTResolver(secret []byte) *JWTResolver {
	return &JWTResolver{secret: secret, now: time.Now}
}

// WithClock overrides the time used for expiry checks
func (j *JWTResolver) WithClock(now func() time.Time) *JWTResolver {
	j.now = now
	return j
}

func (j *JWTResolver) Resolve(r *http.Request) (string, error) {
	raw := bearerToken(r)
	if raw == "" {
		return "", ErrNoIdentity
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

// IssueToken mints a token for subject valid for ttl from now
func IssueToken(secret []byte, subject string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("token secret is empty")
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("token subject is empty")
	}

	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
