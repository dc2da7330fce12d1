package reference

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ReferenceLoadError справочник не может быть прочитан или пуст.
// Фатальна для запуска: без референсных данных маппинг невозможен.
type ReferenceLoadError struct {
	Source string
	Err    error
}

func (e *ReferenceLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reference load failed (%s): %v", e.Source, e.Err)
	}
	return fmt.Sprintf("reference load failed (%s): empty reference", e.Source)
}

func (e *ReferenceLoadError) Unwrap() error {
	return e.Err
}

// Index структурированное представление канонических записей целевой базы.
// Строится один раз за запуск; после построения только читается, поэтому
// безопасен для конкурентного доступа без блокировок.
type Index struct {
	entries    []CanonicalEntry
	byID       map[string]*CanonicalEntry
	byCategory map[string][]*CanonicalEntry
	byNormName map[string][]*CanonicalEntry
	locations  []string
}

// NewIndex строит индекс над списком канонических записей.
// Пустой список считается ошибкой загрузки справочника.
func NewIndex(entries []CanonicalEntry) (*Index, error) {
	if len(entries) == 0 {
		return nil, &ReferenceLoadError{Source: "memory"}
	}

	idx := &Index{
		entries:    entries,
		byID:       make(map[string]*CanonicalEntry, len(entries)),
		byCategory: make(map[string][]*CanonicalEntry),
		byNormName: make(map[string][]*CanonicalEntry),
	}

	seenLocations := make(map[string]bool)
	for i := range idx.entries {
		e := &idx.entries[i]
		idx.byID[e.ID] = e

		category := strings.ToLower(strings.TrimSpace(e.Category))
		idx.byCategory[category] = append(idx.byCategory[category], e)

		key := NormalizeName(e.Name)
		idx.byNormName[key] = append(idx.byNormName[key], e)

		if e.Location != "" && !seenLocations[e.Location] {
			seenLocations[e.Location] = true
			idx.locations = append(idx.locations, e.Location)
		}
	}

	return idx, nil
}

// Len возвращает количество записей в индексе
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Entries возвращает все записи индекса
func (idx *Index) Entries() []CanonicalEntry {
	return idx.entries
}

// EntryByID находит запись по идентификатору
func (idx *Index) EntryByID(id string) (*CanonicalEntry, bool) {
	e, ok := idx.byID[id]
	return e, ok
}

// EntriesByCategory возвращает записи категории (регистронезависимо)
func (idx *Index) EntriesByCategory(category string) []*CanonicalEntry {
	return idx.byCategory[strings.ToLower(strings.TrimSpace(category))]
}

// EntriesByNormalizedName возвращает записи с совпадающим нормализованным
// названием (без учета регистра, диакритики и лишних пробелов)
func (idx *Index) EntriesByNormalizedName(name string) []*CanonicalEntry {
	return idx.byNormName[NormalizeName(name)]
}

// Locations возвращает все коды локаций, встречающиеся в справочнике
func (idx *Index) Locations() []string {
	return idx.locations
}

// normTransformer убирает диакритику: NFD-разложение, удаление
// комбинирующих знаков, сборка обратно в NFC
var normTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// NormalizeName приводит название к ключу сравнения: нижний регистр,
// без диакритики, со схлопнутыми пробелами
func NormalizeName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	stripped, _, err := transform.String(normTransformer, lower)
	if err != nil {
		stripped = lower
	}
	return strings.Join(strings.Fields(stripped), " ")
}
