// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscriber-desk/internal/models"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (при неуспехе).
// Поле Data — данные ответа (при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

func OK() Response {
	return Response{Status: StatusOK}
}

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) Response {
	return Response{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError собирает человеко‑читаемые сообщения по ошибкам валидатора.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too short", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}
	return Error(strings.Join(errsMsgs, ", "))
}

// Describe подбирает HTTP-код и текст ответа по виду ошибки.
// Для ошибок хранилища вместо причины отдаётся dataMsg.
func Describe(err error, dataMsg string) (int, string) {
	var (
		authErr  *models.AuthError
		validErr *models.ValidationError
		dataErr  *models.DataError
	)
	switch {
	case errors.Is(err, models.ErrNoSession):
		return http.StatusUnauthorized, err.Error()
	case errors.As(err, &authErr):
		return http.StatusUnauthorized, authErr.Message
	case errors.As(err, &validErr):
		return http.StatusUnprocessableEntity, validErr.Error()
	case errors.As(err, &dataErr):
		return http.StatusBadGateway, dataMsg
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
