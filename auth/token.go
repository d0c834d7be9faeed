package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs and checks HS256 access and refresh tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

func (i *TokenIssuer) GenerateTokens(userID string) (accessToken string, refreshToken string, err error) {
	accessToken, err = i.sign(userID, TypeAccess, i.accessTTL)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = i.sign(userID, TypeRefresh, i.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (i *TokenIssuer) GenerateAccessToken(userID string) (string, error) {
	return i.sign(userID, TypeAccess, i.accessTTL)
}

func (i *TokenIssuer) sign(userID, typ string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": i.now().Add(ttl).Unix(),
		"typ": typ,
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

// ValidateToken checks signature, expiry and token type and returns the
// subject.
func (i *TokenIssuer) ValidateToken(tokenStr, wantType string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return "", fmt.Errorf("%w: want %s token", ErrInvalidToken, wantType)
	}
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: invalid sub claim", ErrInvalidToken)
	}
	return userID, nil
}
