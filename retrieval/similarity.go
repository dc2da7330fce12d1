package retrieval

import "strings"

// SimilarityWeights веса компонентов комбинированной лексической похожести
type SimilarityWeights struct {
	DamerauLevenshtein float64
	TokenJaccard       float64
	Trigram            float64
}

// DefaultSimilarityWeights возвращает веса, с которыми работает поиск
// кандидатов. Редакционное расстояние доминирует на коротких названиях,
// пересечение токенов ловит переставленные слова, триграммы гасят
// орфографический шум.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{
		DamerauLevenshtein: 0.5,
		TokenJaccard:       0.3,
		Trigram:            0.2,
	}
}

// DamerauLevenshteinDistance вычисляет редакционное расстояние с учетом
// транспозиций соседних символов
func DamerauLevenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	len1 := len(r1)
	len2 := len(r2)

	if len1 == 0 {
		return len2
	}
	if len2 == 0 {
		return len1
	}

	matrix := make([][]int, len1+1)
	for i := range matrix {
		matrix[i] = make([]int, len2+1)
	}
	for i := 0; i <= len1; i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len2; j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len1; i++ {
		for j := 1; j <= len2; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}

			matrix[i][j] = min3(
				matrix[i-1][j]+1,      // удаление
				matrix[i][j-1]+1,      // вставка
				matrix[i-1][j-1]+cost, // замена
			)

			if i > 1 && j > 1 && r1[i-1] == r2[j-2] && r1[i-2] == r2[j-1] {
				matrix[i][j] = min3(matrix[i][j], matrix[i-2][j-2]+cost, matrix[i][j])
			}
		}
	}

	return matrix[len1][len2]
}

// DamerauLevenshteinSimilarity нормирует расстояние в диапазон [0, 1]
func DamerauLevenshteinSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	maxLen := len([]rune(s1))
	if l2 := len([]rune(s2)); l2 > maxLen {
		maxLen = l2
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(DamerauLevenshteinDistance(s1, s2))/float64(maxLen)
}

// TokenJaccard индекс Жаккара по двум множествам токенов
func TokenJaccard(set1, set2 map[string]int) float64 {
	if len(set1) == 0 && len(set2) == 0 {
		return 1.0
	}
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for key := range set1 {
		if _, exists := set2[key]; exists {
			intersection++
		}
	}
	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// TrigramSimilarity индекс Жаккара по символьным триграммам
func TrigramSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	grams1 := ngrams(s1, 3)
	grams2 := ngrams(s2, 3)
	return TokenJaccard(grams1, grams2)
}

// ngrams строит символьные n-граммы; строка короче n становится
// единственной граммой
func ngrams(text string, n int) map[string]int {
	text = strings.ToLower(strings.TrimSpace(text))
	grams := make(map[string]int)

	runes := []rune(text)
	if len(runes) < n {
		if len(runes) > 0 {
			grams[string(runes)] = 1
		}
		return grams
	}
	for i := 0; i <= len(runes)-n; i++ {
		grams[string(runes[i:i+n])]++
	}
	return grams
}

// CombinedSimilarity взвешенная смесь редакционного расстояния,
// пересечения токенов и триграммной похожести по уже нормализованным
// названиям
func CombinedSimilarity(name1, name2 string, tokens1, tokens2 map[string]int, w SimilarityWeights) float64 {
	total := w.DamerauLevenshtein + w.TokenJaccard + w.Trigram
	if total == 0 {
		return 0.0
	}

	sum := 0.0
	if w.DamerauLevenshtein > 0 {
		sum += w.DamerauLevenshtein * DamerauLevenshteinSimilarity(name1, name2)
	}
	if w.TokenJaccard > 0 {
		sum += w.TokenJaccard * TokenJaccard(tokens1, tokens2)
	}
	if w.Trigram > 0 {
		sum += w.Trigram * TrigramSimilarity(name1, name2)
	}
	return sum / total
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
