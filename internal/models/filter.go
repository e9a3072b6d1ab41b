package models

// FilterMode задаёт режим отображения списка подписчиков.
type FilterMode string

const (
	// FilterAll — все записи в порядке получения.
	FilterAll FilterMode = "all"
	// FilterActive — только неистёкшие записи.
	FilterActive FilterMode = "active"
	// FilterExpired — только истёкшие записи.
	FilterExpired FilterMode = "expired"
)

// AuthMode — режим экрана входа: вход или регистрация.
type AuthMode string

const (
	AuthModeLogin    AuthMode = "login"
	AuthModeRegister AuthMode = "register"
)
