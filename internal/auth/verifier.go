package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/a-essam23/go-collab/pkg/directory"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrUnknownIdentity = errors.New("unknown identity")
)

// Claims accepts the standard subject and the legacy "uid" claim.
type Claims struct {
	UserID string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) subject() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Verifier checks bearer tokens against the shared secret and resolves the
// subject through the identity directory.
type Verifier struct {
	secret []byte
	dir    directory.Directory
	parser *jwt.Parser
	logger *slog.Logger
}

func NewVerifier(logger *slog.Logger, secret string, dir directory.Directory) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		dir:    dir,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{
				jwt.SigningMethodHS256.Alg(),
				jwt.SigningMethodHS384.Alg(),
				jwt.SigningMethodHS512.Alg(),
			}),
			jwt.WithExpirationRequired(),
		),
		logger: logger.With(slog.String("component", "auth")),
	}
}

// Subject validates signature and expiry and returns the identity the token
// was issued for.
func (v *Verifier) Subject(tokenString string) (string, error) {
	token, err := v.parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.subject() == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.subject(), nil
}

// Verify returns the profile of the token's subject.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*directory.User, error) {
	userID, err := v.Subject(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := v.dir.FindUser(ctx, userID)
	if errors.Is(err, directory.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("identity lookup for '%s': %w", userID, err)
	}
	v.logger.Debug("Token verified", slog.String("userID", userID))
	return user, nil
}

// Sign issues an HS256 token for userID. The identity service owns issuance
// in production; this exists for local tooling and tests.
func Sign(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(secret))
}
