package api

import (
	"net/http"
	"strings"
	"time"

	"celeb-barber/internal/apperr"
	"celeb-barber/internal/identity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsKey = "claims"

// TokenParser проверяет токен из заголовка Authorization
type TokenParser interface {
	ParseToken(raw string) (*identity.Claims, error)
}

// authRequired пропускает только запросы с действительным Bearer токеном
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			s.fail(c, apperr.Unauthorized("требуется авторизация"))
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.fail(c, apperr.Unauthorized("неверный формат токена"))
			c.Abort()
			return
		}

		claims, err := s.deps.Tokens.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			s.fail(c, err)
			c.Abort()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// adminRequired пропускает только персонал
func (s *Server) adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !claimsFrom(c).IsAdmin() {
			s.fail(c, apperr.Forbidden("доступно только администратору"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *identity.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*identity.Claims); ok {
			return claims
		}
	}
	return &identity.Claims{}
}

// requestLogger пишет каждый запрос в zap
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("запрос завершился ошибкой", fields...)
			return
		}
		s.logger.Debug("запрос обработан", fields...)
	}
}
