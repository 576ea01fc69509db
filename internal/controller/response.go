package controller

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/studygroups/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondServiceError отдаёт 400 на ошибки валидации, иначе 500 без деталей хранилища
func respondServiceError(c *gin.Context, logger *zap.Logger, code string, err error) {
	if errors.Is(err, service.ErrValidation) {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	logger.Error("Study group operation failed",
		zap.String("operation", code),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	respondError(c, http.StatusInternalServerError, code, errors.New("operation failed"))
}
