package api

import (
	"net/http"

	"celeb-barber/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response оболочка успешного ответа
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByKind = map[string]int{
	"not_found":         http.StatusNotFound,
	"conflict":          http.StatusConflict,
	"invalid_input":     http.StatusBadRequest,
	"unauthorized":      http.StatusUnauthorized,
	"forbidden":         http.StatusForbidden,
	"store_unavailable": http.StatusServiceUnavailable,
}

// fail отвечает кодом, соответствующим виду ошибки
func (s *Server) fail(c *gin.Context, err error) {
	kind := apperr.Kind(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("внутренняя ошибка", zap.String("path", c.FullPath()), zap.Error(err))
		message = "внутренняя ошибка"
	} else if status == http.StatusServiceUnavailable {
		s.logger.Warn("хранилище недоступно", zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.JSON(status, ErrorResponse{Code: kind, Message: message})
}

// respond отвечает успехом с сообщением и данными
func (s *Server) respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

// badRequest отвечает 400 на некорректное тело запроса
func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: "invalid_input", Message: err.Error()})
}
