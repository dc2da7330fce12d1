package retrieval

import (
	"sort"
	"strings"

	"harmonizer/flows"
	"harmonizer/reference"
)

// CandidateMatch пара запись-кандидат со скором лексической близости.
// Транзиентна: производится ретривером, потребляется LLM-матчером.
type CandidateMatch struct {
	Entry *reference.CanonicalEntry
	Score float64
	Exact bool // точное совпадение нормализованных названий
}

// Options параметры ретривера
type Options struct {
	// K верхняя граница размера набора кандидатов
	K int
	// MinScore минимальный порог близости; кандидаты ниже не возвращаются
	MinScore float64
	// Weights веса комбинированной близости
	Weights SimilarityWeights
	// Stem включает стемминг токенов при сравнении
	Stem bool
}

// DefaultOptions параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		K:        15,
		MinScore: 0.35,
		Weights:  DefaultSimilarityWeights(),
		Stem:     true,
	}
}

// Retriever сужает справочник до ограниченного набора кандидатов по
// лексической близости до любых обращений к LLM. Семантической
// дизамбигуации здесь нет осознанно: близкие кандидаты передаются
// дальше все вместе.
type Retriever struct {
	index      *reference.Index
	normalizer *NameNormalizer
	rewriter   *NameRewriter
	opts       Options
}

// NewRetriever создает ретривер над индексом справочника
func NewRetriever(index *reference.Index, opts Options) *Retriever {
	if opts.K <= 0 {
		opts.K = DefaultOptions().K
	}
	return &Retriever{
		index:      index,
		normalizer: NewNameNormalizer(opts.Stem),
		rewriter:   NewNameRewriter(),
		opts:       opts,
	}
}

// Prepare применяет правила замен к названию записи и возвращает
// имя для поиска вместе с меткой сработавшего правила
func (r *Retriever) Prepare(record flows.RawFlowRecord) (string, string) {
	return r.rewriter.Rewrite(record.Name)
}

// Retrieve возвращает упорядоченный по убыванию близости набор кандидатов,
// ограниченный K. Пустой результат - не ошибка: это штатный триггер выбора
// прокси. Если роль записи известна, пул сужается по категории.
func (r *Retriever) Retrieve(record flows.RawFlowRecord) []CandidateMatch {
	searchName, _ := r.Prepare(record)
	return r.RetrieveByName(searchName, record.Role)
}

// RetrieveByName поиск по уже переписанному названию
func (r *Retriever) RetrieveByName(searchName string, role flows.Role) []CandidateMatch {
	normalized := r.normalizer.Normalize(searchName)
	tokens := r.normalizer.TokenSet(searchName)

	// Точное совпадение нормализованных названий - быстрый путь
	if exact := r.exactMatches(searchName, role); len(exact) > 0 {
		return exact
	}

	pool := r.pool(role)

	candidates := make([]CandidateMatch, 0, r.opts.K)
	for _, entry := range pool {
		entryNorm := r.normalizer.Normalize(entry.Name)
		entryTokens := r.normalizer.TokenSet(entry.Name)
		score := CombinedSimilarity(normalized, entryNorm, tokens, entryTokens, r.opts.Weights)
		if score < r.opts.MinScore {
			continue
		}
		candidates = append(candidates, CandidateMatch{Entry: entry, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > r.opts.K {
		candidates = candidates[:r.opts.K]
	}
	return candidates
}

// exactMatches ищет записи с точно совпадающим нормализованным названием
// в пуле роли записи
func (r *Retriever) exactMatches(searchName string, role flows.Role) []CandidateMatch {
	matches := r.index.EntriesByNormalizedName(searchName)
	if len(matches) == 0 {
		return nil
	}
	var result []CandidateMatch
	for _, entry := range matches {
		if !roleCompatible(role, entry.Role) {
			continue
		}
		result = append(result, CandidateMatch{Entry: entry, Score: 1.0, Exact: true})
	}
	return result
}

// pool возвращает пул записей для роли; нераспознанная роль ищет везде
func (r *Retriever) pool(role flows.Role) []*reference.CanonicalEntry {
	all := r.index.Entries()
	pool := make([]*reference.CanonicalEntry, 0, len(all))
	for i := range all {
		if roleCompatible(role, all[i].Role) {
			pool = append(pool, &all[i])
		}
	}
	return pool
}

// roleCompatible проверяет совместимость роли записи и роли канонической записи
func roleCompatible(recordRole, entryRole flows.Role) bool {
	if recordRole == flows.RoleUnrecognized {
		return true
	}
	return recordRole == entryRole
}

// ContainsEntry сообщает, есть ли идентификатор среди кандидатов
func ContainsEntry(candidates []CandidateMatch, id string) bool {
	for _, c := range candidates {
		if c.Entry.ID == id {
			return true
		}
	}
	return false
}

// Describe компактное текстовое описание кандидата для журналов
func (c CandidateMatch) Describe() string {
	parts := []string{c.Entry.Name}
	if c.Entry.Location != "" {
		parts = append(parts, c.Entry.Location)
	}
	parts = append(parts, c.Entry.Unit)
	return strings.Join(parts, " | ")
}
