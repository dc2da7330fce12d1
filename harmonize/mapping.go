package harmonize

import (
	"time"

	"harmonizer/locations"
	"harmonizer/proxy"
)

// Provenance способ разрешения записи
type Provenance string

const (
	// ProvenanceExact точное совпадение нормализованных названий
	ProvenanceExact Provenance = "exact"
	// ProvenanceLLM запись выбрана дизамбигуатором
	ProvenanceLLM Provenance = "llm-matched"
	// ProvenanceProxy подставлена замещающая запись
	ProvenanceProxy Provenance = "proxy"
	// ProvenanceUnresolved запись осталась неразрешенной
	ProvenanceUnresolved Provenance = "unresolved"
)

// Причины неразрешенности
const (
	ReasonProviderUnavailable = "provider-unavailable"
	ReasonNoMatch             = "no-match"
	ReasonAmbiguous           = "ambiguous"
	ReasonCancelled           = "run-cancelled"
	ReasonIncompatibleUnits   = "incompatible-units"
	ReasonUnknownUnit         = "unknown-unit"
)

// HarmonizedMapping итог обработки одной записи. На каждую входную
// запись приходится ровно одно сопоставление; ни одна запись не
// теряется молча.
type HarmonizedMapping struct {
	RecordID   string     `json:"record_id"`
	RecordName string     `json:"record_name"`
	EntryID    string     `json:"entry_id,omitempty"`
	EntryName  string     `json:"entry_name,omitempty"`
	Provenance Provenance `json:"provenance"`
	Reason     string     `json:"reason,omitempty"`

	// Аудит конверсии единиц: исходное и пересчитанное значения
	// хранятся оба
	OriginalValue    float64 `json:"original_value"`
	ConvertedValue   float64 `json:"converted_value"`
	ConversionFactor float64 `json:"conversion_factor"`
	OriginalUnit     string  `json:"original_unit"`
	TargetUnit       string  `json:"target_unit,omitempty"`

	LocationCode   string           `json:"location_code,omitempty"`
	LocationMethod locations.Method `json:"location_method,omitempty"`

	Confidence   float64 `json:"confidence,omitempty"`
	Rationale    string  `json:"rationale,omitempty"`
	ManualReview bool    `json:"manual_review"`
}

// Resolved сообщает, указывает ли сопоставление на каноническую запись
func (m *HarmonizedMapping) Resolved() bool {
	return m.Provenance != ProvenanceUnresolved
}

// RunResult итог прогона: набор сопоставлений плюс журнал
// прокси-решений для аудита
type RunResult struct {
	RunID      string              `json:"run_id"`
	Mappings   []HarmonizedMapping `json:"mappings"`
	ProxyRules []proxy.ProxyRule   `json:"proxy_rules,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Stats сводка по происхождению сопоставлений
func (r *RunResult) Stats() map[Provenance]int {
	stats := make(map[Provenance]int, 4)
	for i := range r.Mappings {
		stats[r.Mappings[i].Provenance]++
	}
	return stats
}
