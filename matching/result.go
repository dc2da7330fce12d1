package matching

// MatchKind вид результата дизамбигуации
type MatchKind string

const (
	// MatchSelected модель выбрала одного кандидата из списка
	MatchSelected MatchKind = "selected"
	// MatchNone модель заключила, что ни один кандидат не подходит
	MatchNone MatchKind = "no-match"
	// MatchAmbiguous ответ модели не удалось интерпретировать даже после повтора
	MatchAmbiguous MatchKind = "ambiguous"
)

// MatchResult результат дизамбигуации одной записи.
// SelectedIndex осмыслен только при Kind == MatchSelected и всегда
// указывает внутрь переданного списка кандидатов.
type MatchResult struct {
	Kind          MatchKind
	SelectedIndex int
	Confidence    float64
	Reasoning     string
}
