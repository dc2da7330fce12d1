package matching

import (
	"context"
	"fmt"
)

// ProviderClient интерфейс провайдера языковой модели.
// Ядро зависит только от этой способности, что позволяет подменять
// провайдера детерминированным фейком в тестах.
type ProviderClient interface {
	// GetCompletion выполняет запрос к модели и возвращает текст ответа
	GetCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// GetProviderName возвращает имя провайдера
	GetProviderName() string
	// IsEnabled проверяет, активен ли провайдер
	IsEnabled() bool
}

// ProviderError ошибка транспорта/авторизации провайдера.
// Распространяется наверх, а не маскируется под отсутствие совпадения.
type ProviderError struct {
	Provider string
	Status   int // HTTP-статус, если применимо
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
