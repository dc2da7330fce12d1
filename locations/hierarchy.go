package locations

import "strings"

// Node узел иерархии локаций
type Node struct {
	Code     string
	Name     string
	Parent   *Node
	Children []*Node
}

// Hierarchy дерево кодов локаций: город ⊂ страна ⊂ регион ⊂ глобус.
// Только для чтения после построения, безопасно для конкурентного доступа.
type Hierarchy struct {
	root    *Node
	byCode  map[string]*Node
	aliases map[string]string // свободный текст -> код
}

// NewHierarchy строит иерархию из списка отношений ребенок->родитель.
// Корнем считается узел без родителя (обычно GLO).
func NewHierarchy(relations []Relation, aliases map[string]string) *Hierarchy {
	h := &Hierarchy{
		byCode:  make(map[string]*Node),
		aliases: make(map[string]string),
	}

	node := func(code, name string) *Node {
		if n, ok := h.byCode[code]; ok {
			if n.Name == "" {
				n.Name = name
			}
			return n
		}
		n := &Node{Code: code, Name: name}
		h.byCode[code] = n
		return n
	}

	for _, rel := range relations {
		child := node(rel.Code, rel.Name)
		if rel.Parent == "" {
			h.root = child
			continue
		}
		parent := node(rel.Parent, "")
		child.Parent = parent
		parent.Children = append(parent.Children, child)
	}

	for text, code := range aliases {
		h.aliases[normalizeAlias(text)] = code
	}

	return h
}

// Relation отношение код -> родительский код при построении иерархии
type Relation struct {
	Code   string
	Name   string
	Parent string
}

// normalizeAlias приводит свободный текст локации к ключу таблицы алиасов
func normalizeAlias(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(text)), " "))
}

// Lookup находит узел по коду или алиасу свободного текста
func (h *Hierarchy) Lookup(raw string) (*Node, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	if n, ok := h.byCode[s]; ok {
		return n, true
	}
	key := normalizeAlias(s)
	if code, ok := h.aliases[key]; ok {
		if n, ok := h.byCode[code]; ok {
			return n, true
		}
	}
	// Код мог прийти в другом регистре
	upper := strings.ToUpper(s)
	if n, ok := h.byCode[upper]; ok {
		return n, true
	}
	return nil, false
}

// Root возвращает корень иерархии (глобальный код)
func (h *Hierarchy) Root() *Node {
	return h.root
}

// Contains проверяет, что код присутствует в иерархии
func (h *Hierarchy) Contains(code string) bool {
	_, ok := h.byCode[code]
	return ok
}

// PathToRoot возвращает цепочку кодов от узла до корня включительно
func (h *Hierarchy) PathToRoot(code string) []string {
	n, ok := h.byCode[code]
	if !ok {
		return nil
	}
	var path []string
	for n != nil {
		path = append(path, n.Code)
		n = n.Parent
	}
	return path
}

// Encloses проверяет, что outer включает inner (или совпадает с ним)
func (h *Hierarchy) Encloses(outer, inner string) bool {
	for _, code := range h.PathToRoot(inner) {
		if code == outer {
			return true
		}
	}
	return false
}

// DefaultHierarchy строит иерархию географий в духе ecoinvent:
// страны внутри регионов, регионы внутри GLO, плюс RoW как остаточный
// регион и алиасы свободного текста входных таблиц.
func DefaultHierarchy() *Hierarchy {
	relations := []Relation{
		{Code: "GLO", Name: "Global"},
		{Code: "RoW", Name: "Rest-of-World", Parent: "GLO"},
		{Code: "RER", Name: "Europe", Parent: "GLO"},
		{Code: "Europe without Switzerland", Name: "Europe without Switzerland", Parent: "RER"},
		{Code: "RNA", Name: "Northern America", Parent: "GLO"},
		{Code: "RAS", Name: "Asia", Parent: "GLO"},

		{Code: "DE", Name: "Germany", Parent: "Europe without Switzerland"},
		{Code: "FR", Name: "France", Parent: "Europe without Switzerland"},
		{Code: "IT", Name: "Italy", Parent: "Europe without Switzerland"},
		{Code: "ES", Name: "Spain", Parent: "Europe without Switzerland"},
		{Code: "NL", Name: "Netherlands", Parent: "Europe without Switzerland"},
		{Code: "BE", Name: "Belgium", Parent: "Europe without Switzerland"},
		{Code: "LU", Name: "Luxembourg", Parent: "Europe without Switzerland"},
		{Code: "AT", Name: "Austria", Parent: "Europe without Switzerland"},
		{Code: "PL", Name: "Poland", Parent: "Europe without Switzerland"},
		{Code: "SE", Name: "Sweden", Parent: "Europe without Switzerland"},
		{Code: "DK", Name: "Denmark", Parent: "Europe without Switzerland"},
		{Code: "GB", Name: "United Kingdom", Parent: "Europe without Switzerland"},
		{Code: "CH", Name: "Switzerland", Parent: "RER"},

		{Code: "US", Name: "United States", Parent: "RNA"},
		{Code: "CA", Name: "Canada", Parent: "RNA"},
		{Code: "CN", Name: "China", Parent: "RAS"},
		{Code: "JP", Name: "Japan", Parent: "RAS"},
		{Code: "IN", Name: "India", Parent: "RAS"},
	}

	aliases := map[string]string{
		"germany":        "DE",
		"deutschland":    "DE",
		"france":         "FR",
		"italy":          "IT",
		"spain":          "ES",
		"netherlands":    "NL",
		"belgium":        "BE",
		"luxembourg":     "LU",
		"austria":        "AT",
		"poland":         "PL",
		"sweden":         "SE",
		"denmark":        "DK",
		"united kingdom": "GB",
		"uk":             "GB",
		"switzerland":    "CH",
		"schweiz":        "CH",
		"united states":  "US",
		"usa":            "US",
		"canada":         "CA",
		"china":          "CN",
		"japan":          "JP",
		"india":          "IN",
		"europe":         "RER",
		// Входные таблицы используют EUR/EU как обозначение Европы
		"eur":    "RER",
		"eu":     "RER",
		"global": "GLO",
		"world":  "GLO",
		"rest of world": "RoW",
		"rest-of-world": "RoW",
	}

	return NewHierarchy(relations, aliases)
}
