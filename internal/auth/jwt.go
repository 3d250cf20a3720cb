// Package auth выпускает и проверяет токены участников.
package auth

import (
	"errors"
	"time"

	"github.com/Freeeeeet/tutoring_scheduler/internal/model"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "tutoring-scheduler"

// Типы токенов
const (
	TokenTypeAccess = "access"
	TokenTypeLink   = "link" // одноразовая ссылка /start для привязки Telegram
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Claims struct {
	UserID    int64      `json:"user_id"`
	Role      model.Role `json:"role"`
	TokenType string     `json:"token_type"`
	jwtv5.RegisteredClaims
}

// Actor участник, от имени которого выпущен токен
func (c *Claims) Actor() model.Actor {
	return model.Actor{ID: c.UserID, Role: c.Role}
}

type Manager struct {
	secret    []byte
	accessTTL time.Duration
	linkTTL   time.Duration
}

func NewManager(secret string, accessTTL, linkTTL time.Duration) *Manager {
	return &Manager{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		linkTTL:   linkTTL,
	}
}

func (m *Manager) generate(actor model.Actor, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    actor.ID,
		Role:      actor.Role,
		TokenType: tokenType,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// GenerateAccessToken выпускает токен для HTTP API
func (m *Manager) GenerateAccessToken(actor model.Actor) (string, error) {
	return m.generate(actor, TokenTypeAccess, m.accessTTL)
}

// GenerateLinkToken выпускает короткоживущий токен для команды /start в Telegram.
// Токен должен помещаться в deep link, поэтому в нём только ID и роль.
func (m *Manager) GenerateLinkToken(actor model.Actor) (string, error) {
	return m.generate(actor, TokenTypeLink, m.linkTTL)
}

// ParseToken разбирает и проверяет токен
func (m *Manager) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwtv5.ParseWithClaims(tokenString, &Claims{}, func(t *jwtv5.Token) (any, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	}, jwtv5.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || !claims.Role.Valid() || claims.UserID <= 0 {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
