package locations

import "fmt"

// Method способ, которым была разрешена локация
type Method string

const (
	// MethodExact точное совпадение кода с доступной локацией
	MethodExact Method = "exact"
	// MethodBroadened подъем по иерархии до доступного кода
	MethodBroadened Method = "broadened"
	// MethodFallback откат на глобальный/остаточный код
	MethodFallback Method = "fallback"
)

// UnresolvableLocationError локация не может быть размещена в иерархии
type UnresolvableLocationError struct {
	Location string
}

func (e *UnresolvableLocationError) Error() string {
	return fmt.Sprintf("unresolvable location: %q not present in hierarchy", e.Location)
}

// Resolver разрешает несовпадения географической детализации между
// входной записью и доступными локациями справочника
type Resolver struct {
	hierarchy *Hierarchy
}

// NewResolver создает резолвер над иерархией локаций
func NewResolver(h *Hierarchy) *Resolver {
	return &Resolver{hierarchy: h}
}

// Resolve находит код из availableLocations для исходной локации.
// Политика: точное совпадение, иначе подъем по иерархии до доступного
// кода (broadening); локация шире всех доступных кодов получает лучший
// объемлющий суррогат и тоже помечается broadened. Неразмещаемая или
// пустая локация тихо откатывается на глобальный/остаточный код
// (входные таблицы часто не заполняют колонку ORIGIN); достаточно,
// чтобы он существовал в иерархии, присутствие в availableLocations не
// требуется. Ошибка возвращается только для иерархии без корня.
func (r *Resolver) Resolve(rawLocation string, availableLocations []string) (string, Method, error) {
	available := make(map[string]bool, len(availableLocations))
	for _, code := range availableLocations {
		available[code] = true
	}

	node, ok := r.hierarchy.Lookup(rawLocation)
	if !ok {
		// Неразмещаемая (или отсутствующая) локация: тихий откат на
		// глобальный/остаточный код, пока он существует в иерархии
		if code, ok := r.fallback(available); ok {
			return code, MethodFallback, nil
		}
		return "", "", &UnresolvableLocationError{Location: rawLocation}
	}

	// Точное совпадение выигрывает
	if available[node.Code] {
		return node.Code, MethodExact, nil
	}

	// Подъем по иерархии: первый доступный объемлющий код
	for parent := node.Parent; parent != nil; parent = parent.Parent {
		if available[parent.Code] {
			return parent.Code, MethodBroadened, nil
		}
	}

	// Исходная локация шире всех доступных или ветка не представлена:
	// лучший объемлющий суррогат - глобальный/остаточный код, и это
	// все еще расширение, а не откат
	if code, ok := r.fallback(available); ok {
		return code, MethodBroadened, nil
	}

	return "", "", &UnresolvableLocationError{Location: rawLocation}
}

// fallback выбирает глобальный или остаточный код. Порядок предпочтения:
// GLO и RoW среди доступных, затем корень иерархии независимо от того,
// встречается ли он в справочнике.
func (r *Resolver) fallback(available map[string]bool) (string, bool) {
	for _, code := range []string{"GLO", "RoW"} {
		if available[code] && r.hierarchy.Contains(code) {
			return code, true
		}
	}
	if root := r.hierarchy.Root(); root != nil {
		return root.Code, true
	}
	return "", false
}
