package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig конфигурация повторных попыток при транспортных сбоях
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig возвращает конфигурацию повторных попыток по умолчанию
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// OpenAIClientConfig конфигурация OpenAI-совместимого клиента
type OpenAIClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	TopP        *float64
	Timeout     time.Duration
	Retry       RetryConfig
}

// OpenAIClient клиент OpenAI-совместимого chat-completions API.
// Температура удерживается низкой: дизамбигуация должна быть
// воспроизводимой настолько, насколько это возможно для внешней модели.
type OpenAIClient struct {
	config     OpenAIClientConfig
	httpClient *http.Client
}

// chatMessage сообщение чата в формате OpenAI
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewOpenAIClient создает клиент провайдера
func NewOpenAIClient(config OpenAIClientConfig) *OpenAIClient {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.Retry.MaxRetries == 0 {
		config.Retry = DefaultRetryConfig()
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxConnsPerHost:     5,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 5,
	}

	return &OpenAIClient{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// GetProviderName возвращает имя провайдера
func (c *OpenAIClient) GetProviderName() string {
	return "openai-compatible"
}

// IsEnabled проверяет наличие минимальной конфигурации
func (c *OpenAIClient) IsEnabled() bool {
	return c.config.BaseURL != "" && c.config.Model != ""
}

// GetCompletion выполняет запрос chat/completions с повторными попытками.
// Повторяются только транспортные сбои, 429 и 5xx; ошибки клиента (4xx)
// возвращаются сразу как ProviderError.
func (c *OpenAIClient) GetCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	url := fmt.Sprintf("%s/chat/completions", c.config.BaseURL)

	requestBody := map[string]interface{}{
		"model": c.config.Model,
		"messages": []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	if c.config.Temperature != nil {
		requestBody["temperature"] = *c.config.Temperature
	}
	if c.config.TopP != nil {
		requestBody["top_p"] = *c.config.TopP
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", &ProviderError{Provider: c.GetProviderName(), Err: fmt.Errorf("marshal request: %w", err)}
	}

	var lastErr error
	delay := c.config.Retry.InitialDelay

	for attempt := 0; attempt <= c.config.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[OpenAIClient] Retry attempt %d/%d after %v", attempt, c.config.Retry.MaxRetries, delay)
			select {
			case <-ctx.Done():
				return "", &ProviderError{Provider: c.GetProviderName(), Err: ctx.Err()}
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.config.Retry.BackoffMultiplier)
			if delay > c.config.Retry.MaxDelay {
				delay = c.config.Retry.MaxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
		if err != nil {
			return "", &ProviderError{Provider: c.GetProviderName(), Err: fmt.Errorf("create request: %w", err)}
		}
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", &ProviderError{Provider: c.GetProviderName(), Err: ctx.Err()}
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}

		// 429: уважаем Retry-After, если сервер его прислал
		if resp.StatusCode == http.StatusTooManyRequests {
			if retryAfter := parseRetryAfter(resp); retryAfter > 0 {
				delay = retryAfter
			}
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(string(body), 200))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return "", &ProviderError{
				Provider: c.GetProviderName(),
				Status:   resp.StatusCode,
				Err:      fmt.Errorf("API error: %s", truncate(string(body), 200)),
			}
		}

		var response struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
			Error *struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error,omitempty"`
		}
		if err := json.Unmarshal(body, &response); err != nil {
			lastErr = fmt.Errorf("decode response: %w", err)
			continue
		}
		if response.Error != nil {
			return "", &ProviderError{
				Provider: c.GetProviderName(),
				Err:      fmt.Errorf("API error: %s (type: %s)", response.Error.Message, response.Error.Type),
			}
		}
		if len(response.Choices) == 0 {
			return "", &ProviderError{Provider: c.GetProviderName(), Err: fmt.Errorf("no choices in response")}
		}

		return response.Choices[0].Message.Content, nil
	}

	return "", &ProviderError{Provider: c.GetProviderName(), Err: fmt.Errorf("all retry attempts failed: %w", lastErr)}
}

// parseRetryAfter разбирает заголовок Retry-After (в секундах)
func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

// truncate обрезает тело ответа для сообщений об ошибках
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
