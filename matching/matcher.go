package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"harmonizer/flows"
	"harmonizer/reference"
	"harmonizer/retrieval"
)

// matcherSystemPrompt системный промпт дизамбигуации. Модель обязана
// отвечать строгим JSON без пояснений вокруг.
const matcherSystemPrompt = `You are an expert in life cycle inventory (LCI) databases.
Your task: given one inventory record and a numbered list of candidate reference entries,
pick the single candidate that denotes the same real-world process or elementary flow,
or state that none of them does.

Rules:
- Judge by meaning, not by string similarity: "market for diesel" and "diesel production" are different processes.
- The unit and location of the record are hints, not hard constraints.
- Never invent candidates outside the list.

Respond with ONLY a JSON object, no markdown, no commentary:
{"selected_index": <1-based index or 0>, "no_match": <true|false>, "confidence": <0.0-1.0>, "reasoning": "<one short sentence>"}
If no candidate fits, set no_match to true and selected_index to 0.`

// matcherStrictPrompt добавка ко второй попытке после нечитаемого ответа
const matcherStrictPrompt = `

IMPORTANT: your previous answer could not be parsed. Respond with the raw JSON object only.
Do not wrap it in markdown fences. Do not add any text before or after it.`

// proxySystemPrompt промпт обоснования прокси-подстановки
const proxySystemPrompt = `You are an expert in life cycle inventory (LCI) databases.
A record could not be matched exactly, and a proxy reference entry has been chosen for it
by relaxing some match criteria. Write one short sentence (max 30 words) explaining why
the proxy is an acceptable stand-in for the record. Respond with the sentence only.`

// MatcherConfig конфигурация дизамбигуатора
type MatcherConfig struct {
	// RequestsPerSecond ограничение частоты запросов к провайдеру
	RequestsPerSecond float64
	// Burst размер всплеска лимитера
	Burst int
	// RequestTimeout таймаут одного запроса дизамбигуации
	RequestTimeout time.Duration
}

// DefaultMatcherConfig возвращает конфигурацию дизамбигуатора по умолчанию
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		RequestsPerSecond: 2.0,
		Burst:             4,
		RequestTimeout:    90 * time.Second,
	}
}

// Matcher дизамбигуатор: выбирает канонического кандидата для записи
// через внешнюю модель. Потокобезопасен, частота исходящих запросов
// ограничена общим лимитером.
type Matcher struct {
	client  ProviderClient
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

// matcherResponse ожидаемый JSON-ответ модели
type matcherResponse struct {
	SelectedIndex int     `json:"selected_index"`
	NoMatch       bool    `json:"no_match"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// NewMatcher создает дизамбигуатор поверх клиента провайдера
func NewMatcher(client ProviderClient, config MatcherConfig) *Matcher {
	if config.RequestsPerSecond <= 0 {
		config = DefaultMatcherConfig()
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 90 * time.Second
	}
	return &Matcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		timeout: config.RequestTimeout,
		logger:  slog.Default().With("component", "matcher"),
	}
}

// IsEnabled сообщает, готов ли дизамбигуатор к работе
func (m *Matcher) IsEnabled() bool {
	return m.client != nil && m.client.IsEnabled()
}

// Match выбирает кандидата для записи. Пустой список кандидатов сразу
// дает MatchNone без обращения к провайдеру. Нечитаемый ответ модели
// повторяется один раз с ужесточенным промптом, после чего запись
// помечается как MatchAmbiguous.
func (m *Matcher) Match(ctx context.Context, record flows.RawFlowRecord, candidates []retrieval.CandidateMatch) (MatchResult, error) {
	if len(candidates) == 0 {
		return MatchResult{Kind: MatchNone, Reasoning: "no candidates to choose from"}, nil
	}
	if !m.IsEnabled() {
		return MatchResult{}, &ProviderError{Provider: "matcher", Err: fmt.Errorf("no provider configured")}
	}

	userPrompt := m.buildPrompt(record, candidates)

	response, err := m.complete(ctx, matcherSystemPrompt, userPrompt)
	if err != nil {
		return MatchResult{}, err
	}

	result, parseErr := m.parseResponse(response, len(candidates))
	if parseErr == nil {
		return result, nil
	}

	m.logger.Warn("Unparseable disambiguation response, retrying with strict prompt",
		"record_id", record.ID, "error", parseErr)

	response, err = m.complete(ctx, matcherSystemPrompt+matcherStrictPrompt, userPrompt)
	if err != nil {
		return MatchResult{}, err
	}
	result, parseErr = m.parseResponse(response, len(candidates))
	if parseErr != nil {
		m.logger.Warn("Disambiguation response unparseable after retry, marking ambiguous",
			"record_id", record.ID, "error", parseErr)
		return MatchResult{Kind: MatchAmbiguous, Reasoning: "provider response could not be interpreted"}, nil
	}
	return result, nil
}

// JustifyProxy запрашивает у модели короткое обоснование прокси-подстановки.
// Ошибка провайдера здесь не фатальна для вызывающего: обоснование
// опционально и при сбое остается пустым.
func (m *Matcher) JustifyProxy(ctx context.Context, record flows.RawFlowRecord, proxy *reference.CanonicalEntry, relaxations []string) (string, error) {
	if !m.IsEnabled() {
		return "", &ProviderError{Provider: "matcher", Err: fmt.Errorf("no provider configured")}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Record: %s | location: %s | unit: %s | category: %s\n",
		record.Name, orDash(record.Location), orDash(record.Unit), orDash(record.Category))
	fmt.Fprintf(&sb, "Proxy: %s | location: %s | unit: %s | category: %s\n",
		proxy.Name, orDash(proxy.Location), orDash(proxy.Unit), orDash(proxy.Category))
	fmt.Fprintf(&sb, "Relaxed criteria: %s\n", strings.Join(relaxations, ", "))

	response, err := m.complete(ctx, proxySystemPrompt, sb.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response), nil
}

// complete один запрос к провайдеру под лимитером и таймаутом
func (m *Matcher) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", &ProviderError{Provider: m.client.GetProviderName(), Err: err}
	}
	reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.client.GetCompletion(reqCtx, systemPrompt, userPrompt)
}

// buildPrompt собирает пользовательский промпт с нумерованным списком кандидатов
func (m *Matcher) buildPrompt(record flows.RawFlowRecord, candidates []retrieval.CandidateMatch) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Inventory record:\nname: %s\nlocation: %s\nunit: %s\ncategory: %s\nkind: %s\n\n",
		record.Name, orDash(record.Location), orDash(record.Unit), orDash(record.Category), record.Role)
	sb.WriteString("Candidates:\n")
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. %s | %s | %s | %s\n",
			i+1, c.Entry.Name, orDash(c.Entry.Location), orDash(c.Entry.Unit), orDash(c.Entry.Category))
	}
	return sb.String()
}

// parseResponse очищает ответ от markdown-оберток и валидирует его
func (m *Matcher) parseResponse(response string, candidateCount int) (MatchResult, error) {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
		response = strings.TrimSuffix(response, "```")
		response = strings.TrimSpace(response)
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimSuffix(response, "```")
		response = strings.TrimSpace(response)
	}

	var parsed matcherResponse
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return MatchResult{}, fmt.Errorf("failed to parse disambiguation response: %w, response: %s", err, truncate(response, 200))
	}

	if parsed.NoMatch {
		return MatchResult{
			Kind:       MatchNone,
			Confidence: clampConfidence(parsed.Confidence),
			Reasoning:  parsed.Reasoning,
		}, nil
	}
	if parsed.SelectedIndex < 1 || parsed.SelectedIndex > candidateCount {
		return MatchResult{}, fmt.Errorf("selected_index %d out of range [1, %d]", parsed.SelectedIndex, candidateCount)
	}
	return MatchResult{
		Kind:          MatchSelected,
		SelectedIndex: parsed.SelectedIndex - 1,
		Confidence:    clampConfidence(parsed.Confidence),
		Reasoning:     parsed.Reasoning,
	}, nil
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
