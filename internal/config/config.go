package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config конфигурация движка гармонизации. Глобального состояния нет:
// объект собирается один раз и передается в оркестратор явно.
type Config struct {
	// Сервер
	Port string `json:"port"`

	// Справочник
	ReferenceDBPath string `json:"reference_db_path"`

	// Провайдер модели
	ProviderBaseURL     string        `json:"provider_base_url"`
	ProviderAPIKey      string        `json:"provider_api_key"`
	ProviderModel       string        `json:"provider_model"`
	ProviderTemperature float64       `json:"provider_temperature"`
	ProviderTopP        float64       `json:"provider_top_p"`
	ProviderTimeout     time.Duration `json:"provider_timeout"`
	ProviderMaxRetries  int           `json:"provider_max_retries"`

	// Лимитер исходящих запросов
	RequestsPerSecond float64 `json:"requests_per_second"`
	RequestBurst      int     `json:"request_burst"`

	// Конвейер
	Workers        int     `json:"workers"`
	RetrievalK     int     `json:"retrieval_k"`
	RetrievalFloor float64 `json:"retrieval_floor"`
	ProxyFloor     float64 `json:"proxy_floor"`
	// RelaxationOrder порядок ослабления критериев прокси:
	// "location,category" или "category,location"
	RelaxationOrder string `json:"relaxation_order"`

	// Логирование
	LogLevel string `json:"log_level"`
}

// DefaultConfig конфигурация по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Port:                "8080",
		ReferenceDBPath:     "reference.db",
		ProviderModel:       "gpt-4o-mini",
		ProviderTemperature: 0.1,
		ProviderTopP:        1.0,
		ProviderTimeout:     60 * time.Second,
		ProviderMaxRetries:  3,
		RequestsPerSecond:   2.0,
		RequestBurst:        4,
		Workers:             4,
		RetrievalK:          15,
		RetrievalFloor:      0.35,
		ProxyFloor:          0.25,
		RelaxationOrder:     "location,category",
		LogLevel:            "INFO",
	}
}

// LoadConfig загружает конфигурацию: значения по умолчанию, затем JSON-файл
// (если путь не пуст), затем переменные окружения поверх
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Printf("Config loaded from %s", path)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// applyEnv накладывает переменные окружения поверх текущих значений
func (c *Config) applyEnv() {
	c.Port = getEnv("SERVER_PORT", c.Port)
	c.ReferenceDBPath = getEnv("REFERENCE_DB_PATH", c.ReferenceDBPath)

	c.ProviderBaseURL = getEnv("PROVIDER_BASE_URL", c.ProviderBaseURL)
	c.ProviderAPIKey = getEnv("PROVIDER_API_KEY", c.ProviderAPIKey)
	c.ProviderModel = getEnv("PROVIDER_MODEL", c.ProviderModel)
	c.ProviderTemperature = getEnvFloat("PROVIDER_TEMPERATURE", c.ProviderTemperature)
	c.ProviderTopP = getEnvFloat("PROVIDER_TOP_P", c.ProviderTopP)
	c.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", c.ProviderTimeout)
	c.ProviderMaxRetries = getEnvInt("PROVIDER_MAX_RETRIES", c.ProviderMaxRetries)

	c.RequestsPerSecond = getEnvFloat("REQUESTS_PER_SECOND", c.RequestsPerSecond)
	c.RequestBurst = getEnvInt("REQUEST_BURST", c.RequestBurst)

	c.Workers = getEnvInt("WORKERS", c.Workers)
	c.RetrievalK = getEnvInt("RETRIEVAL_K", c.RetrievalK)
	c.RetrievalFloor = getEnvFloat("RETRIEVAL_FLOOR", c.RetrievalFloor)
	c.ProxyFloor = getEnvFloat("PROXY_FLOOR", c.ProxyFloor)
	c.RelaxationOrder = getEnv("RELAXATION_ORDER", c.RelaxationOrder)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.RetrievalK <= 0 {
		return fmt.Errorf("retrieval_k must be positive, got %d", c.RetrievalK)
	}
	if c.RetrievalFloor < 0 || c.RetrievalFloor > 1 {
		return fmt.Errorf("retrieval_floor must be in [0, 1], got %g", c.RetrievalFloor)
	}
	if c.ProxyFloor < 0 || c.ProxyFloor > 1 {
		return fmt.Errorf("proxy_floor must be in [0, 1], got %g", c.ProxyFloor)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %g", c.RequestsPerSecond)
	}
	if err := validateRelaxationOrder(c.RelaxationOrder); err != nil {
		return err
	}
	return nil
}

// RelaxationSteps разбирает порядок ослабления в список шагов
func (c *Config) RelaxationSteps() []string {
	parts := strings.Split(c.RelaxationOrder, ",")
	steps := make([]string, 0, len(parts))
	for _, p := range parts {
		steps = append(steps, strings.TrimSpace(p))
	}
	return steps
}

// ProviderEnabled сообщает, настроен ли внешний провайдер
func (c *Config) ProviderEnabled() bool {
	return c.ProviderBaseURL != "" && c.ProviderModel != ""
}

func validateRelaxationOrder(order string) error {
	for _, step := range strings.Split(order, ",") {
		switch strings.TrimSpace(step) {
		case "location", "category":
		default:
			return fmt.Errorf("unknown relaxation step %q", strings.TrimSpace(step))
		}
	}
	return nil
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает переменную окружения как int или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat получает переменную окружения как float64 или возвращает значение по умолчанию
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как Duration или возвращает значение по умолчанию
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
