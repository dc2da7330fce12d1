package harmonize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"harmonizer/flows"
	"harmonizer/locations"
	"harmonizer/matching"
	"harmonizer/proxy"
	"harmonizer/reference"
	"harmonizer/retrieval"
	"harmonizer/units"
)

// Matcher дизамбигуатор как подменяемая в тестах способность
type Matcher interface {
	Match(ctx context.Context, record flows.RawFlowRecord, candidates []retrieval.CandidateMatch) (matching.MatchResult, error)
	IsEnabled() bool
}

// ProxySelector селектор замещающих записей
type ProxySelector interface {
	SelectProxy(ctx context.Context, record flows.RawFlowRecord) *proxy.ProxyRule
	Rules() []proxy.ProxyRule
}

// Options параметры оркестратора
type Options struct {
	// Workers число параллельных конвейеров записей
	Workers int
}

// DefaultOptions параметры оркестратора по умолчанию
func DefaultOptions() Options {
	return Options{Workers: 4}
}

// Orchestrator прогоняет каждую запись через конвейер
// поиск кандидатов -> конверсия/география -> дизамбигуация -> прокси
// и агрегирует сопоставления. Справочник и иерархия локаций -
// разделяемое состояние только для чтения, конвейеры записей
// независимы.
type Orchestrator struct {
	index     *reference.Index
	converter *units.Converter
	resolver  *locations.Resolver
	retriever *retrieval.Retriever
	matcher   Matcher
	selector  ProxySelector
	opts      Options
	logger    *slog.Logger
}

// NewOrchestrator собирает оркестратор из готовых компонентов
func NewOrchestrator(
	index *reference.Index,
	converter *units.Converter,
	resolver *locations.Resolver,
	retriever *retrieval.Retriever,
	matcher Matcher,
	selector ProxySelector,
	opts Options,
) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	return &Orchestrator{
		index:     index,
		converter: converter,
		resolver:  resolver,
		retriever: retriever,
		matcher:   matcher,
		selector:  selector,
		opts:      opts,
		logger:    slog.Default().With("component", "orchestrator"),
	}
}

// Run обрабатывает записи пулом воркеров. Отмена контекста прекращает
// запуск новых конвейеров; уже идущие завершаются или истекают по
// таймауту, необработанные записи помечаются неразрешенными. На каждую
// запись возвращается ровно одно сопоставление, в порядке входа.
func (o *Orchestrator) Run(ctx context.Context, records []flows.RawFlowRecord) *RunResult {
	result := &RunResult{
		RunID:     uuid.NewString(),
		Mappings:  make([]HarmonizedMapping, len(records)),
		StartedAt: time.Now().UTC(),
	}

	o.logger.Info("Harmonization run started",
		"run_id", result.RunID, "records", len(records), "workers", o.opts.Workers)

	type job struct {
		idx    int
		record flows.RawFlowRecord
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < o.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				result.Mappings[j.idx] = o.harmonizeRecord(ctx, j.record)
			}
		}()
	}

feed:
	for i, record := range records {
		select {
		case <-ctx.Done():
			// оставшиеся записи не обрабатываются, но не теряются
			for k := i; k < len(records); k++ {
				result.Mappings[k] = unresolvedMapping(records[k], ReasonCancelled, "")
			}
			break feed
		case jobs <- job{idx: i, record: record}:
		}
	}
	close(jobs)
	wg.Wait()

	o.reviewDuplicateTargets(result.Mappings)

	if o.selector != nil {
		result.ProxyRules = o.selector.Rules()
	}
	result.FinishedAt = time.Now().UTC()

	stats := result.Stats()
	o.logger.Info("Harmonization run finished",
		"run_id", result.RunID,
		"exact", stats[ProvenanceExact],
		"llm_matched", stats[ProvenanceLLM],
		"proxy", stats[ProvenanceProxy],
		"unresolved", stats[ProvenanceUnresolved],
		"duration", result.FinishedAt.Sub(result.StartedAt))
	return result
}

// harmonizeRecord конвейер одной записи
func (o *Orchestrator) harmonizeRecord(ctx context.Context, record flows.RawFlowRecord) HarmonizedMapping {
	if ctx.Err() != nil {
		return unresolvedMapping(record, ReasonCancelled, "")
	}

	candidates := o.retriever.Retrieve(record)

	// Точное совпадение нормализованных названий обходит дизамбигуатор
	if len(candidates) > 0 && candidates[0].Exact {
		entry := o.pickExact(record, candidates)
		return o.finishMapping(record, entry, ProvenanceExact, 1.0, "")
	}

	// Причина на случай, когда и прокси не находится
	failReason, failRationale := ReasonNoMatch, ""

	if len(candidates) > 0 && o.matcher != nil && o.matcher.IsEnabled() {
		matchResult, err := o.matcher.Match(ctx, record, candidates)
		if err != nil {
			// сбой провайдера не маскируется под отсутствие совпадения
			o.logger.Warn("Provider failed for record, marking unresolved",
				"record_id", record.ID, "error", err)
			return unresolvedMapping(record, ReasonProviderUnavailable, err.Error())
		}

		switch matchResult.Kind {
		case matching.MatchSelected:
			entry := candidates[matchResult.SelectedIndex].Entry
			return o.finishMapping(record, entry, ProvenanceLLM, matchResult.Confidence, matchResult.Reasoning)
		case matching.MatchAmbiguous:
			// нечитаемый ответ - не жесткий отказ: прокси еще может
			// подобрать замену
			failReason, failRationale = ReasonAmbiguous, matchResult.Reasoning
		default:
			// MatchNone: штатный триггер выбора прокси
		}
	}

	if o.selector != nil {
		if rule := o.selector.SelectProxy(ctx, record); rule != nil {
			if entry, ok := o.index.EntryByID(rule.EntryID); ok {
				return o.finishMapping(record, entry, ProvenanceProxy, rule.Score, rule.Rationale)
			}
		}
	}

	return unresolvedMapping(record, failReason, failRationale)
}

// finishMapping дополняет разрешенное сопоставление конверсией единиц и
// разрешением географии. Конверсия через несовместимые классы
// размерностей не аппроксимируется: запись становится неразрешенной.
func (o *Orchestrator) finishMapping(record flows.RawFlowRecord, entry *reference.CanonicalEntry, prov Provenance, confidence float64, rationale string) HarmonizedMapping {
	mapping := HarmonizedMapping{
		RecordID:      record.ID,
		RecordName:    record.Name,
		EntryID:       entry.ID,
		EntryName:     entry.Name,
		Provenance:    prov,
		OriginalValue: record.Quantity,
		OriginalUnit:  record.Unit,
		TargetUnit:    entry.Unit,
		Confidence:    confidence,
		Rationale:     rationale,
	}

	converted, factor, err := o.converter.ConvertWithSubstance(record.Quantity, record.Unit, entry.Unit, record.Name)
	if err != nil {
		return conversionFailure(mapping, err)
	}
	mapping.ConvertedValue = converted
	mapping.ConversionFactor = factor

	code, method, locErr := o.resolver.Resolve(record.Location, o.index.Locations())
	if locErr != nil {
		var unresolvable *locations.UnresolvableLocationError
		if errors.As(locErr, &unresolvable) {
			mapping.Provenance = ProvenanceUnresolved
			mapping.Reason = "unresolvable-location"
			mapping.Rationale = locErr.Error()
			return mapping
		}
		mapping.Provenance = ProvenanceUnresolved
		mapping.Reason = fmt.Sprintf("location: %v", locErr)
		return mapping
	}
	mapping.LocationCode = code
	mapping.LocationMethod = method
	return mapping
}

// conversionFailure переводит сопоставление в неразрешенные с причиной
// по таксономии ошибок единиц
func conversionFailure(mapping HarmonizedMapping, err error) HarmonizedMapping {
	mapping.Provenance = ProvenanceUnresolved
	mapping.ConvertedValue = 0
	mapping.ConversionFactor = 0

	var incompatible *units.IncompatibleUnitsError
	var unknown *units.UnknownUnitError
	switch {
	case errors.As(err, &incompatible):
		mapping.Reason = ReasonIncompatibleUnits
	case errors.As(err, &unknown):
		mapping.Reason = ReasonUnknownUnit
	default:
		mapping.Reason = "unit-conversion-failed"
	}
	mapping.Rationale = err.Error()
	return mapping
}

// pickExact выбирает среди точных совпадений запись с подходящей
// географией, если такая есть
func (o *Orchestrator) pickExact(record flows.RawFlowRecord, candidates []retrieval.CandidateMatch) *reference.CanonicalEntry {
	if record.Location != "" {
		for _, c := range candidates {
			if !c.Exact {
				break
			}
			if c.Entry.Location == record.Location {
				return c.Entry
			}
		}
	}
	return candidates[0].Entry
}

// reviewDuplicateTargets пост-проход: две разные записи, разрешенные в
// одну каноническую с существенно разным контекстом единиц или
// географии, помечаются на ручную проверку вместо молчаливого принятия
func (o *Orchestrator) reviewDuplicateTargets(mappings []HarmonizedMapping) {
	byEntry := make(map[string][]int)
	for i := range mappings {
		if mappings[i].Resolved() && mappings[i].EntryID != "" {
			byEntry[mappings[i].EntryID] = append(byEntry[mappings[i].EntryID], i)
		}
	}

	for _, group := range byEntry {
		if len(group) < 2 {
			continue
		}
		for a := 0; a < len(group); a++ {
			for b := a + 1; b < len(group); b++ {
				ma, mb := &mappings[group[a]], &mappings[group[b]]
				if materiallyDifferent(ma, mb) {
					ma.ManualReview = true
					mb.ManualReview = true
				}
			}
		}
	}
}

// materiallyDifferent различие контекста единиц или географии двух
// сопоставлений одной канонической записи
func materiallyDifferent(a, b *HarmonizedMapping) bool {
	if a.LocationCode != b.LocationCode {
		return true
	}
	dimA, errA := units.DimensionOf(a.OriginalUnit)
	dimB, errB := units.DimensionOf(b.OriginalUnit)
	if errA == nil && errB == nil && dimA != dimB {
		return true
	}
	return false
}

// unresolvedMapping сопоставление-заглушка для записи, которую конвейер
// не смог разрешить; аудит исходных значений сохраняется
func unresolvedMapping(record flows.RawFlowRecord, reason, rationale string) HarmonizedMapping {
	return HarmonizedMapping{
		RecordID:      record.ID,
		RecordName:    record.Name,
		Provenance:    ProvenanceUnresolved,
		Reason:        reason,
		OriginalValue: record.Quantity,
		OriginalUnit:  record.Unit,
		Rationale:     rationale,
	}
}
