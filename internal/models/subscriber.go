// Package models содержит доменные структуры подписчика, сессии и ошибок,
// а также вспомогательные типы для приёма данных из форм и JSON-запросов.
package models

import "time"

// Subscriber представляет запись подписчика в удалённом хранилище.
// ID и CreatedAt назначает хранилище, UserID выставляется один раз при создании.
type Subscriber struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Amount    float64   `json:"amount"`
	StartDate Date      `json:"start_date"`
	EndDate   Date      `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName возвращает имя и фамилию через пробел.
func (s Subscriber) FullName() string {
	return s.FirstName + " " + s.LastName
}

// SubscriberForm используется для приёма данных формы добавления,
// прежде чем конвертировать их в Subscriber.
// Все поля приходят строками, чтобы их можно было валидировать и парсить вручную.
type SubscriberForm struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	StartDate string `json:"start_date" validate:"required"` // YYYY-MM-DD
	EndDate   string `json:"end_date" validate:"required"`   // YYYY-MM-DD
}

// Status — вычисляемый статус подписки, никогда не сохраняется.
// EndingSoon является подслучаем Active.
type Status struct {
	Active     bool `json:"active"`
	Expired    bool `json:"expired"`
	EndingSoon bool `json:"ending_soon"`
}

// Summary — агрегаты по полному (нефильтрованному) набору записей.
type Summary struct {
	Count       int     `json:"count"`
	TotalAmount float64 `json:"total_amount"`
}
