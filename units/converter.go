package units

import (
	"fmt"
	"strings"
	"sync"
)

// ConversionFactor скалярный множитель перевода между парой единиц.
// Кэшируется на время запуска.
type ConversionFactor struct {
	From   string
	To     string
	Factor float64
}

// Converter детерминированный конвертер физических единиц.
// Конверсии - чистые мультипликативные скаляры; округление не применяется
// сверх точности IEEE double. Кэш фактор-пар безопасен для конкурентного
// чтения, каждая пара записывается не более одного раза.
type Converter struct {
	bridges map[string][]DensityBridge
	cache   sync.Map // ключ "from|to" -> float64
}

// NewConverter создает конвертер с таблицей мостов плотности по умолчанию
func NewConverter() *Converter {
	return &Converter{bridges: defaultDensityBridges()}
}

// Convert переводит значение из одной единицы в другую.
// Возвращает сконвертированное значение и примененный фактор.
// Единицы разных размерностей без определенного моста дают
// IncompatibleUnitsError, нераспознанные единицы - UnknownUnitError.
func (c *Converter) Convert(value float64, fromUnit, toUnit string) (float64, float64, error) {
	factor, err := c.Factor(fromUnit, toUnit)
	if err != nil {
		return 0, 0, err
	}
	return value * factor, factor, nil
}

// Factor возвращает скалярный множитель перевода fromUnit -> toUnit
func (c *Converter) Factor(fromUnit, toUnit string) (float64, error) {
	key := fromUnit + "|" + toUnit
	if cached, ok := c.cache.Load(key); ok {
		return cached.(float64), nil
	}

	factor, err := c.computeFactor(fromUnit, toUnit)
	if err != nil {
		return 0, err
	}

	c.cache.LoadOrStore(key, factor)
	return factor, nil
}

// computeFactor вычисляет фактор без обращения к кэшу
func (c *Converter) computeFactor(fromUnit, toUnit string) (float64, error) {
	// Составные единицы ("kg/kWh") раскладываются на числитель и знаменатель
	if isCompound(fromUnit) || isCompound(toUnit) {
		return c.compoundFactor(fromUnit, toUnit)
	}

	from, err := lookup(fromUnit)
	if err != nil {
		return 0, err
	}
	to, err := lookup(toUnit)
	if err != nil {
		return 0, err
	}

	if from.Dimension != to.Dimension {
		return 0, &IncompatibleUnitsError{
			From:          fromUnit,
			To:            toUnit,
			FromDimension: from.Dimension,
			ToDimension:   to.Dimension,
		}
	}

	// Валюты переводятся только в самих себя: фиксированного курса нет
	if from.Dimension == DimensionCurrency && from.Canonical != to.Canonical {
		return 0, &IncompatibleUnitsError{
			From:          fromUnit,
			To:            toUnit,
			FromDimension: from.Dimension,
			ToDimension:   to.Dimension,
		}
	}

	return from.ToBase / to.ToBase, nil
}

// isCompound определяет составную единицу вида "числитель/знаменатель"
func isCompound(unit string) bool {
	return strings.Count(unit, "/") == 1
}

// compoundFactor вычисляет фактор для составных единиц.
// Обе стороны должны быть составными с совместимыми числителями и
// знаменателями: factor(a/b -> c/d) = factor(a->c) / factor(b->d).
func (c *Converter) compoundFactor(fromUnit, toUnit string) (float64, error) {
	fromNum, fromDen, err := splitCompound(fromUnit)
	if err != nil {
		return 0, err
	}
	toNum, toDen, err := splitCompound(toUnit)
	if err != nil {
		return 0, err
	}

	numFactor, err := c.computeFactor(fromNum, toNum)
	if err != nil {
		return 0, err
	}
	denFactor, err := c.computeFactor(fromDen, toDen)
	if err != nil {
		return 0, err
	}

	return numFactor / denFactor, nil
}

// splitCompound разбивает составную единицу на числитель и знаменатель
func splitCompound(unit string) (string, string, error) {
	parts := strings.SplitN(unit, "/", 2)
	if len(parts) != 2 {
		return "", "", &UnknownUnitError{Unit: unit}
	}
	num := strings.TrimSpace(parts[0])
	den := strings.TrimSpace(parts[1])
	if num == "" || den == "" {
		return "", "", &UnknownUnitError{Unit: unit}
	}
	return num, den, nil
}

// ConvertWithSubstance переводит значение с учетом вещества записи.
// Если размерности не совпадают, но для вещества определен мост плотности
// (масса <-> объем), применяется он; иначе поведение идентично Convert.
func (c *Converter) ConvertWithSubstance(value float64, fromUnit, toUnit, substanceHint string) (float64, float64, error) {
	converted, factor, err := c.Convert(value, fromUnit, toUnit)
	if err == nil {
		return converted, factor, nil
	}

	var incompatible *IncompatibleUnitsError
	if !asIncompatible(err, &incompatible) {
		return 0, 0, err
	}

	bridge, ok := c.findBridge(substanceHint, incompatible.FromDimension, incompatible.ToDimension)
	if !ok {
		return 0, 0, err
	}

	// Мост определен между базовыми единицами размерностей:
	// сначала в базу источника, затем через мост, затем из базы цели
	from, lookupErr := lookup(fromUnit)
	if lookupErr != nil {
		return 0, 0, lookupErr
	}
	to, lookupErr := lookup(toUnit)
	if lookupErr != nil {
		return 0, 0, lookupErr
	}

	bridgeFactor := from.ToBase * bridge.Factor / to.ToBase
	c.cache.LoadOrStore(fromUnit+"|"+toUnit+"|"+bridge.Substance, bridgeFactor)
	return value * bridgeFactor, bridgeFactor, nil
}

// asIncompatible разворачивает цепочку ошибок до IncompatibleUnitsError
func asIncompatible(err error, target **IncompatibleUnitsError) bool {
	if e, ok := err.(*IncompatibleUnitsError); ok {
		*target = e
		return true
	}
	return false
}

// findBridge ищет мост плотности для вещества по подсказке из названия записи.
// При нескольких совпадениях выбирается самое длинное название вещества
// ("waste water" важнее "water").
func (c *Converter) findBridge(substanceHint string, fromDim, toDim Dimension) (DensityBridge, bool) {
	hint := strings.ToLower(substanceHint)
	bestLen := 0
	var best DensityBridge
	found := false
	for substance, bridges := range c.bridges {
		if !strings.Contains(hint, substance) || len(substance) <= bestLen {
			continue
		}
		for _, b := range bridges {
			if b.FromDimension == fromDim && b.ToDimension == toDim {
				best = b
				bestLen = len(substance)
				found = true
				break
			}
			// Мост обратим: плотность задана в одну сторону
			if b.FromDimension == toDim && b.ToDimension == fromDim {
				best = DensityBridge{
					Substance:     b.Substance,
					FromDimension: fromDim,
					ToDimension:   toDim,
					Factor:        1.0 / b.Factor,
				}
				bestLen = len(substance)
				found = true
				break
			}
		}
	}
	return best, found
}

// String текстовое представление фактора для журнала аудита
func (f ConversionFactor) String() string {
	return fmt.Sprintf("%s -> %s (x%g)", f.From, f.To, f.Factor)
}
