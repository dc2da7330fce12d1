package flows

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Role определяет, к какому слою инвентаризации относится запись
type Role int

const (
	// RoleUnrecognized роль не удалось определить из исходных данных
	RoleUnrecognized Role = iota
	// RoleProcess техносферный процесс (активность фоновой базы)
	RoleProcess
	// RoleElementaryFlow элементарный поток (биосфера: выбросы, ресурсы)
	RoleElementaryFlow
)

// String возвращает строковое представление роли
func (r Role) String() string {
	switch r {
	case RoleProcess:
		return "process"
	case RoleElementaryFlow:
		return "elementary_flow"
	default:
		return "unrecognized"
	}
}

// ParseRole разбирает строковое обозначение роли из входной таблицы
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "process", "technosphere", "activity", "production":
		return RoleProcess
	case "elementary_flow", "elementary flow", "biosphere", "emission", "resource":
		return RoleElementaryFlow
	default:
		return RoleUnrecognized
	}
}

// compartmentPattern признаки экологического компартмента в свободном тексте
// категории или происхождения (air, water, soil, natural resource)
var compartmentPattern = regexp.MustCompile(`(?i)\b(air|water|soil|natural|inventory|economic)\b`)

// InferRole выводит роль из свободного текста категории/происхождения,
// когда явная роль во входных данных отсутствует. Записи с экологическим
// компартментом считаются элементарными потоками, остальные - процессами.
func InferRole(category, origin string) Role {
	if compartmentPattern.MatchString(category) || compartmentPattern.MatchString(origin) {
		return RoleElementaryFlow
	}
	if strings.TrimSpace(category) != "" || strings.TrimSpace(origin) != "" {
		return RoleProcess
	}
	return RoleUnrecognized
}

// RawFlowRecord одна запись пользовательской инвентаризации до гармонизации.
// Создается импортером из входной таблицы и далее не изменяется.
type RawFlowRecord struct {
	ID       string  // Уникальный идентификатор записи в рамках запуска
	Name     string  // Исходное название (свободный текст, возможно не на английском)
	Quantity float64 // Количество в исходных единицах
	Unit     string  // Исходная единица измерения (свободный текст)
	Location string  // Исходная локация (свободный текст, может отсутствовать)
	Category string  // Исходная категория/компартмент (свободный текст)
	Role     Role    // Процесс или элементарный поток
}

// NewRawFlowRecord создает запись с присвоенным идентификатором.
// Роль выводится из категории, если не указана явно.
func NewRawFlowRecord(name string, quantity float64, unit, location, category string, role Role) RawFlowRecord {
	if role == RoleUnrecognized {
		role = InferRole(category, location)
	}
	return RawFlowRecord{
		ID:       uuid.NewString(),
		Name:     name,
		Quantity: quantity,
		Unit:     unit,
		Location: location,
		Category: category,
		Role:     role,
	}
}
