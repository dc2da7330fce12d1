package retrieval

import (
	"regexp"
	"strings"
)

// RewriteRule правило предварительной замены названия: часто встречающиеся
// пользовательские обозначения приводятся к стандартным названиям рынка
// до лексического поиска
type RewriteRule struct {
	Pattern     *regexp.Regexp
	Exclude     *regexp.Regexp // правило не применяется при совпадении
	Replacement string
	Label       string
}

// NameRewriter применяет правила замен к исходным названиям
type NameRewriter struct {
	rules    []RewriteRule
	literals map[string]string // точные подстрочные замены (переименования версий)
}

// NewNameRewriter создает переписчик с таблицами правил по умолчанию
func NewNameRewriter() *NameRewriter {
	return &NameRewriter{
		rules:    defaultRewriteRules(),
		literals: ecoinvent310Renames(),
	}
}

// Rewrite возвращает переписанное название и метку сработавшего правила.
// Если ни одно правило не подошло, название возвращается без изменений.
func (rw *NameRewriter) Rewrite(name string) (string, string) {
	for _, rule := range rw.rules {
		if !rule.Pattern.MatchString(name) {
			continue
		}
		if rule.Exclude != nil && rule.Exclude.MatchString(name) {
			continue
		}
		return rule.Replacement, rule.Label
	}

	rewritten := name
	applied := ""
	for from, to := range rw.literals {
		if strings.Contains(rewritten, from) {
			rewritten = strings.ReplaceAll(rewritten, from, to)
			applied = "rename:" + from
		}
	}
	return rewritten, applied
}

// defaultRewriteRules таблица правил для распространенных пользовательских
// обозначений энергии, газа и стоков
func defaultRewriteRules() []RewriteRule {
	return []RewriteRule{
		{
			Pattern:     regexp.MustCompile(`(?i)#electricity`),
			Replacement: "market group for electricity, medium voltage",
			Label:       "common:electricity",
		},
		{
			Pattern:     regexp.MustCompile(`(?i)process heat|heating|industrial heat`),
			Replacement: "market for heat, from steam, in chemical industry",
			Label:       "common:heat",
		},
		{
			Pattern:     regexp.MustCompile(`(?i)#natural gas`),
			Replacement: "market group for natural gas, high pressure",
			Label:       "common:natural-gas",
		},
		{
			Pattern:     regexp.MustCompile(`(?i)waste water`),
			Replacement: "market for wastewater, average",
			Label:       "common:wastewater",
		},
		{
			Pattern:     regexp.MustCompile(`(?i)CO2, fossil`),
			Replacement: "Carbon dioxide, fossil",
			Label:       "common:co2-fossil",
		},
		{
			Pattern:     regexp.MustCompile(`(?i)CO2, biogenic`),
			Replacement: "Carbon dioxide, from soil or biomass stock",
			Label:       "common:co2-biogenic",
		},
		{
			Pattern:     regexp.MustCompile(`(?i)#cooling`),
			Exclude:     regexp.MustCompile(`(?i)Water, cooling, unspecified natural origin`),
			Replacement: "market for cooling energy",
			Label:       "common:cooling",
		},
	}
}

// ecoinvent310Renames переименования номенклатуры для совместимости
// с ecoinvent 3.10
func ecoinvent310Renames() map[string]string {
	return map[string]string{
		"waste steel":           "scrap steel",
		"waste aluminium":       "scrap aluminium",
		"waste copper":          "scrap copper",
		"market for acetic acid": "market for acetic acid, without water, in 98% solution state",
	}
}
