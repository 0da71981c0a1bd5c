package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/qrave1/MentorCall/internal/domain/apperr"
	"github.com/qrave1/MentorCall/internal/infra/appctx"
)

const internalErrorMessage = "internal error"

// publicMessage - текст ошибки для клиента; внутренние причины наружу не отдаются
func publicMessage(err error) string {
	if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		return internalErrorMessage
	}

	return err.Error()
}

func respondError(c echo.Context, log *zap.Logger, msg string, err error) error {
	status := apperr.HTTPStatus(err)

	if status >= http.StatusInternalServerError {
		log.Error(msg, zap.Error(err))
	} else {
		log.Debug(msg, zap.Error(err))
	}

	return c.JSON(status, map[string]string{"error": publicMessage(err)})
}

func currentUserID(c echo.Context) (uuid.UUID, bool) {
	return appctx.UserID(c.Request().Context())
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid user ID in context"})
}

func pathUUID(c echo.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, false
	}

	return id, true
}
