package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Ошибки провайдеров.
var (
	// ErrConfigIncomplete — не заданы обязательные поля конфигурации.
	// Возвращается до любого сетевого вызова.
	ErrConfigIncomplete = errors.New("конфигурация провайдера неполная")
	// ErrTransientUpload — сетевая ошибка или 5xx, повтор не помог.
	ErrTransientUpload = errors.New("временная ошибка загрузки")
	// ErrUnsupportedProvider — провайдер или возможность не поддерживается.
	ErrUnsupportedProvider = errors.New("провайдер не поддерживается")
	// ErrConfigRejected — пользовательская конфигурация указывает
	// на недопустимый адрес хранилища.
	ErrConfigRejected = errors.New("конфигурация провайдера отклонена")
	// ErrSourceBlocked — источник указывает на внутренний адрес.
	ErrSourceBlocked = errors.New("адрес источника запрещён")
)

// ConfigIncompleteError — список отсутствующих полей конфигурации.
type ConfigIncompleteError struct {
	Provider ID
	Missing  []string
}

func (e *ConfigIncompleteError) Error() string {
	return fmt.Sprintf("%s: %s, отсутствуют поля: %s",
		ErrConfigIncomplete.Error(), e.Provider, strings.Join(e.Missing, ", "))
}

// Is позволяет сравнивать через errors.Is(err, ErrConfigIncomplete).
func (e *ConfigIncompleteError) Is(target error) bool {
	return target == ErrConfigIncomplete
}

// StatusError — неуспешный HTTP-ответ хранилища или источника.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsTransient определяет, имеет ли смысл повторить операцию.
// Временными считаются сетевые ошибки, таймаут попытки, 5xx и 429.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientUpload) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrSourceBlocked) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError ||
			se.StatusCode == http.StatusTooManyRequests
	}

	var ne net.Error
	return errors.As(err, &ne)
}
