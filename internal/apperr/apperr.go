// Package apperr содержит типы ошибок, которые возвращают операции ядра
package apperr

import (
	"errors"
	"fmt"
)

// Виды ошибок ядра. Любая ошибка операции оборачивает ровно один из них.
var (
	ErrNotFound         = errors.New("не найдено")
	ErrConflict         = errors.New("конфликт")
	ErrInvalidInput     = errors.New("некорректные данные")
	ErrStoreUnavailable = errors.New("хранилище недоступно")
	ErrUnauthorized     = errors.New("требуется авторизация")
	ErrForbidden        = errors.New("доступ запрещен")
)

// NotFound оборачивает ErrNotFound с описанием
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflict оборачивает ErrConflict с описанием
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Invalid оборачивает ErrInvalidInput с описанием
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Unauthorized оборачивает ErrUnauthorized с описанием
func Unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

// Forbidden оборачивает ErrForbidden с описанием
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// Unavailable помечает ошибку драйвера как недоступность хранилища
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

// Kind возвращает код вида ошибки для транспортного слоя
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal"
	}
}
