package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrConfiguration - у разработчика не заданы или испорчены рабочие часы
	ErrConfiguration = errors.New("working hours not configured")

	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict - слот уже занят или статус сессии не подходит
	ErrConflict = errors.New("conflict")

	// ErrInvalidState - переход недопустим в текущей фазе сигналинга
	ErrInvalidState = errors.New("invalid state")

	ErrUpload           = errors.New("recording upload failed")
	ErrNegotiation      = errors.New("negotiation failed")
	ErrMediaAcquisition = errors.New("media acquisition failed")
	ErrPayment          = errors.New("payment not authorized")
)

// HTTPStatus сопоставляет ошибку со статусом ответа
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrPayment):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
