// Package jwt разбирает access-токены сервиса идентификации.
//
// Parser извлекает из токена идентификатор пользователя, email и срок действия.
// Если задан секрет проекта, подпись проверяется; иначе токен читается без проверки,
// а подлинность остаётся на стороне сервиса идентификации.
package jwt

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims описывает данные из access-токена сервиса идентификации.
type AccessClaims struct {
	Email                string `json:"email"` // Электронная почта пользователя
	Role                 string `json:"role"`  // Роль в сервисе (authenticated, anon)
	jwt.RegisteredClaims        // Subject — идентификатор пользователя, ExpiresAt — срок действия
}

// Parser разбирает access-токены.
type Parser struct {
	secretKey string
}

// NewParser создаёт Parser. Пустой secretKey отключает проверку подписи.
func NewParser(secretKey string) *Parser {
	return &Parser{secretKey: secretKey}
}

// ParseToken разбирает токен и возвращает его claims.
func (p *Parser) ParseToken(tokenStr string) (*AccessClaims, error) {
	const op = "jwt.ParseToken"

	claims := &AccessClaims{}
	if p.secretKey == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return claims, nil
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(p.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
