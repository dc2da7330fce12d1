package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"harmonizer/flows"
	"harmonizer/locations"
	"harmonizer/reference"
	"harmonizer/retrieval"
)

// Relaxation ослабляемый критерий поиска прокси
type Relaxation string

const (
	// RelaxLocation тот же класс процессов на более широкой географии
	RelaxLocation Relaxation = "location"
	// RelaxCategory родственная категория без фильтра по роли
	RelaxCategory Relaxation = "category"
)

// ProxyRule принятое прокси-решение. Накапливается селектором и
// доступно для аудита после прогона.
type ProxyRule struct {
	RecordID    string    `json:"record_id"`
	RecordName  string    `json:"record_name"`
	EntryID     string    `json:"entry_id"`
	EntryName   string    `json:"entry_name"`
	Relaxations []string  `json:"relaxations"`
	Score       float64   `json:"score"`
	Rationale   string    `json:"rationale"`
	CreatedAt   time.Time `json:"created_at"`
}

// Justifier опциональный второй запрос к модели: обосновать конкретного
// прокси-кандидата. Реализуется matching.Matcher.
type Justifier interface {
	JustifyProxy(ctx context.Context, record flows.RawFlowRecord, proxy *reference.CanonicalEntry, relaxations []string) (string, error)
	IsEnabled() bool
}

// Options политика выбора прокси
type Options struct {
	// Order порядок ослабления критериев; по умолчанию сначала география
	Order []Relaxation
	// MinScore нижний порог близости для прокси; ниже обычного порога
	// ретривера, но не нулевой - селектор не подставляет что попало
	MinScore float64
	// Weights веса близости
	Weights retrieval.SimilarityWeights
	// Stem включает стемминг при сравнении
	Stem bool
}

// DefaultOptions политика по умолчанию
func DefaultOptions() Options {
	return Options{
		Order:    []Relaxation{RelaxLocation, RelaxCategory},
		MinScore: 0.25,
		Weights:  retrieval.DefaultSimilarityWeights(),
		Stem:     true,
	}
}

// Selector ищет ближайшую замещающую каноническую запись, прогрессивно
// ослабляя критерии. Идентификаторы берутся только из справочника;
// селектор никогда не выдумывает несуществующий ID.
type Selector struct {
	index     *reference.Index
	hierarchy *locations.Hierarchy
	justifier Justifier
	opts      Options
	logger    *slog.Logger

	mu    sync.Mutex
	rules []ProxyRule
}

// NewSelector создает селектор прокси. justifier может быть nil: тогда
// обоснование формируется локально из сработавших ослаблений.
func NewSelector(index *reference.Index, hierarchy *locations.Hierarchy, justifier Justifier, opts Options) *Selector {
	if len(opts.Order) == 0 {
		opts.Order = DefaultOptions().Order
	}
	if opts.MinScore <= 0 {
		opts.MinScore = DefaultOptions().MinScore
	}
	return &Selector{
		index:     index,
		hierarchy: hierarchy,
		justifier: justifier,
		opts:      opts,
		logger:    slog.Default().With("component", "proxy-selector"),
	}
}

// SelectProxy подбирает прокси для записи. Возвращает nil, когда ни одно
// ослабление не дало кандидата выше порога - тогда запись остается
// неразрешенной.
func (s *Selector) SelectProxy(ctx context.Context, record flows.RawFlowRecord) *ProxyRule {
	applied := make([]string, 0, len(s.opts.Order))

	for _, step := range s.opts.Order {
		applied = append(applied, string(step))

		candidate, score := s.search(record, stepSet(applied))
		if candidate == nil {
			continue
		}

		rationale := s.justify(ctx, record, candidate, applied, score)
		rule := ProxyRule{
			RecordID:    record.ID,
			RecordName:  record.Name,
			EntryID:     candidate.ID,
			EntryName:   candidate.Name,
			Relaxations: append([]string(nil), applied...),
			Score:       score,
			Rationale:   rationale,
			CreatedAt:   time.Now().UTC(),
		}

		s.mu.Lock()
		s.rules = append(s.rules, rule)
		s.mu.Unlock()

		s.logger.Info("Proxy selected",
			"record_id", record.ID, "entry_id", candidate.ID,
			"relaxations", strings.Join(applied, ","), "score", score)
		return &rule
	}

	s.logger.Info("No proxy found", "record_id", record.ID, "record_name", record.Name)
	return nil
}

// Rules возвращает копию журнала прокси-решений
func (s *Selector) Rules() []ProxyRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProxyRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// search сканирует справочник под текущим набором ослаблений и
// возвращает лучшего кандидата выше порога
func (s *Selector) search(record flows.RawFlowRecord, relaxed map[Relaxation]bool) (*reference.CanonicalEntry, float64) {
	role := record.Role
	if relaxed[RelaxCategory] {
		role = flows.RoleUnrecognized
	}

	retriever := retrieval.NewRetriever(s.index, retrieval.Options{
		K:        25,
		MinScore: s.opts.MinScore,
		Weights:  s.opts.Weights,
		Stem:     s.opts.Stem,
	})
	probe := record
	probe.Role = role
	candidates := retriever.Retrieve(probe)
	if len(candidates) == 0 {
		return nil, 0
	}

	if relaxed[RelaxLocation] && !relaxed[RelaxCategory] {
		// географическое ослабление: предпочитаем кандидатов, чья
		// география объемлет географию записи
		sort.SliceStable(candidates, func(i, j int) bool {
			ei, ej := s.enclosesRecord(candidates[i].Entry, record), s.enclosesRecord(candidates[j].Entry, record)
			if ei != ej {
				return ei
			}
			return candidates[i].Score > candidates[j].Score
		})
	}

	return candidates[0].Entry, candidates[0].Score
}

// enclosesRecord проверяет, объемлет ли география записи справочника
// географию исходной записи
func (s *Selector) enclosesRecord(entry *reference.CanonicalEntry, record flows.RawFlowRecord) bool {
	if entry.Location == "" || record.Location == "" {
		return false
	}
	recordNode, ok := s.hierarchy.Lookup(record.Location)
	if !ok {
		return false
	}
	entryNode, ok := s.hierarchy.Lookup(entry.Location)
	if !ok {
		return false
	}
	return s.hierarchy.Encloses(entryNode.Code, recordNode.Code)
}

// justify запрашивает обоснование у модели, а при ее недоступности или
// сбое формирует локальное
func (s *Selector) justify(ctx context.Context, record flows.RawFlowRecord, candidate *reference.CanonicalEntry, applied []string, score float64) string {
	if s.justifier != nil && s.justifier.IsEnabled() {
		justification, err := s.justifier.JustifyProxy(ctx, record, candidate, applied)
		if err == nil && justification != "" {
			return justification
		}
		if err != nil {
			s.logger.Warn("Proxy justification query failed, using local rationale",
				"record_id", record.ID, "error", err)
		}
	}
	return fmt.Sprintf("nearest reference entry after relaxing %s (similarity %.2f)",
		strings.Join(applied, ", "), score)
}

func stepSet(applied []string) map[Relaxation]bool {
	set := make(map[Relaxation]bool, len(applied))
	for _, a := range applied {
		set[Relaxation(a)] = true
	}
	return set
}
