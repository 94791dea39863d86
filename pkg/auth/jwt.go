package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	kwakerrors "kwak/pkg/errors"
	"kwak/pkg/protocol"
)

// Verifier validates an opaque credential and returns the identity it
// proves. Implementations must be idempotent and side-effect free.
type Verifier interface {
	Verify(credential string) (protocol.Identity, error)
}

// Claims are the JWT claims carried by kwak tokens
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 tokens. It serves both the REST
// login/registration flow and the websocket authenticate event.
type TokenManager struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewTokenManager creates a token manager with the given secret and lifetime
func NewTokenManager(secret string, tokenTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// Issue signs a token for the given user
func (m *TokenManager) Issue(userID int64, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates a credential. Every failure mode collapses
// into ErrAuthenticationFailed so callers cannot leak why a credential
// was rejected.
func (m *TokenManager) Verify(credential string) (protocol.Identity, error) {
	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, kwakerrors.ErrAuthenticationFailed
		}
		return m.secret, nil
	})
	if err != nil {
		return protocol.Identity{}, kwakerrors.ErrAuthenticationFailed
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 || claims.Username == "" {
		return protocol.Identity{}, kwakerrors.ErrAuthenticationFailed
	}

	return protocol.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
	}, nil
}
