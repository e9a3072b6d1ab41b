package models

import "time"

// User — пользователь сервиса идентификации.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session — выданная сервисом идентификации пара токенов и её владелец.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired сообщает, истёк ли access-токен к моменту now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
