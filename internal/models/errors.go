package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoSession возвращается, когда операция требует активной сессии.
var ErrNoSession = errors.New("no active session")

// AuthError — ошибка сервиса идентификации. Error возвращает сообщение сервиса без изменений.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// DataError — ошибка хранилища записей (вставка, выборка, удаление).
type DataError struct {
	Op  string
	Err error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// ValidationError — ошибка проверки обязательных полей или разбора формы.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}
