package retrieval

import (
	"strings"
	"sync"
	"unicode"

	"github.com/kljensen/snowball"

	"harmonizer/reference"
)

// NameNormalizer приводит свободный текст названий к сравнимому виду:
// нижний регистр, без диакритики, токенизация, опциональный стемминг
type NameNormalizer struct {
	stem     bool
	language string
	cache    map[string]string
	mu       sync.RWMutex
}

// NewNameNormalizer создает нормализатор. Стемминг использует алгоритм
// Snowball; язык справочника - английский.
func NewNameNormalizer(stem bool) *NameNormalizer {
	return &NameNormalizer{
		stem:     stem,
		language: "english",
		cache:    make(map[string]string),
	}
}

// Normalize возвращает нормализованное название целиком
func (n *NameNormalizer) Normalize(name string) string {
	return reference.NormalizeName(name)
}

// Tokenize разбивает нормализованное название на токены по небуквенным
// символам, отбрасывая пустые
func (n *NameNormalizer) Tokenize(name string) []string {
	normalized := n.Normalize(name)
	tokens := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if !n.stem {
		return tokens
	}
	stemmed := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		stemmed = append(stemmed, n.stemToken(tok))
	}
	return stemmed
}

// stemToken возвращает основу токена с кэшированием
func (n *NameNormalizer) stemToken(token string) string {
	n.mu.RLock()
	if cached, ok := n.cache[token]; ok {
		n.mu.RUnlock()
		return cached
	}
	n.mu.RUnlock()

	stemmed, err := snowball.Stem(token, n.language, true)
	if err != nil {
		// При ошибке стеммера токен остается как есть
		stemmed = token
	}

	n.mu.Lock()
	n.cache[token] = stemmed
	n.mu.Unlock()
	return stemmed
}

// TokenSet возвращает множество токенов названия
func (n *NameNormalizer) TokenSet(name string) map[string]int {
	set := make(map[string]int)
	for _, tok := range n.Tokenize(name) {
		set[tok]++
	}
	return set
}
