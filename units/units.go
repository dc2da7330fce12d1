package units

import (
	"strings"
)

// Dimension класс физической размерности единицы измерения
type Dimension string

const (
	DimensionMass     Dimension = "mass"
	DimensionEnergy   Dimension = "energy"
	DimensionVolume   Dimension = "volume"
	DimensionArea     Dimension = "area"
	DimensionLength   Dimension = "length"
	DimensionAmount   Dimension = "amount" // количество вещества (моль)
	DimensionCount    Dimension = "count"  // штучные единицы (unit, item)
	DimensionTime     Dimension = "time"
	DimensionCurrency Dimension = "currency"
	DimensionNone     Dimension = "none"
)

// unitDef каноническая единица: размерность и множитель к базовой единице класса.
// Базовые единицы: kilogram, megajoule, cubic meter, square meter, meter,
// mole, unit, hour, EUR.
type unitDef struct {
	Canonical string
	Dimension Dimension
	ToBase    float64
}

// unitTable таблица известных единиц по каноническому имени
var unitTable = map[string]unitDef{
	// Масса
	"kilogram":  {"kilogram", DimensionMass, 1.0},
	"gram":      {"gram", DimensionMass, 1e-3},
	"milligram": {"milligram", DimensionMass, 1e-6},
	"ton":       {"ton", DimensionMass, 1e3},

	// Энергия (база - мегаджоуль, как в ecoinvent)
	"megajoule":     {"megajoule", DimensionEnergy, 1.0},
	"kilojoule":     {"kilojoule", DimensionEnergy, 1e-3},
	"joule":         {"joule", DimensionEnergy, 1e-6},
	"kilowatt hour": {"kilowatt hour", DimensionEnergy, 3.6},
	"megawatt hour": {"megawatt hour", DimensionEnergy, 3600.0},
	"watt hour":     {"watt hour", DimensionEnergy, 0.0036},

	// Объем
	"cubic meter": {"cubic meter", DimensionVolume, 1.0},
	"liter":       {"liter", DimensionVolume, 1e-3},
	"milliliter":  {"milliliter", DimensionVolume, 1e-6},

	// Площадь и длина
	"square meter": {"square meter", DimensionArea, 1.0},
	"hectare":      {"hectare", DimensionArea, 1e4},
	"meter":        {"meter", DimensionLength, 1.0},
	"kilometer":    {"kilometer", DimensionLength, 1e3},

	// Количество вещества
	"mole":      {"mole", DimensionAmount, 1.0},
	"millimole": {"millimole", DimensionAmount, 1e-3},

	// Штучные единицы
	"unit": {"unit", DimensionCount, 1.0},

	// Время
	"hour":   {"hour", DimensionTime, 1.0},
	"day":    {"day", DimensionTime, 24.0},
	"year":   {"year", DimensionTime, 8760.0},
	"second": {"second", DimensionTime, 1.0 / 3600.0},

	// Валюта: фиксированного курса нет, конвертер допускает только
	// идентичное преобразование внутри одной валюты
	"EUR": {"EUR", DimensionCurrency, 1.0},
	"USD": {"USD", DimensionCurrency, 1.0},
}

// unitAliases сокращения, формы множественного числа и локальные варианты
// написания, приводимые к каноническому имени (ср. map_unit исходного
// инструмента: kg -> kilogram, kWh -> kilowatt hour и т.д.)
var unitAliases = map[string]string{
	"kg":          "kilogram",
	"kgs":         "kilogram",
	"kilograms":   "kilogram",
	"kilogramme":  "kilogram",
	"kilogrammes": "kilogram",
	"g":           "gram",
	"grams":       "gram",
	"mg":          "milligram",
	"milligrams":  "milligram",
	"t":           "ton",
	"tonne":       "ton",
	"tonnes":      "ton",
	"tons":        "ton",

	"mj":             "megajoule",
	"megajoules":     "megajoule",
	"kj":             "kilojoule",
	"kilojoules":     "kilojoule",
	"j":              "joule",
	"joules":         "joule",
	"kwh":            "kilowatt hour",
	"kilowatt hours": "kilowatt hour",
	"kilowatt-hour":  "kilowatt hour",
	"kilowatt-hours": "kilowatt hour",
	"mwh":            "megawatt hour",
	"wh":             "watt hour",

	"m3":           "cubic meter",
	"m^3":          "cubic meter",
	"m³":           "cubic meter",
	"cubic meters": "cubic meter",
	"cubic metre":  "cubic meter",
	"cubic metres": "cubic meter",
	"l":            "liter",
	"liters":       "liter",
	"litre":        "liter",
	"litres":       "liter",
	"ml":           "milliliter",
	"milliliters":  "milliliter",
	"millilitre":   "milliliter",
	"millilitres":  "milliliter",

	"m2":            "square meter",
	"m^2":           "square meter",
	"m²":            "square meter",
	"square meters": "square meter",
	"square metre":  "square meter",
	"square metres": "square meter",
	"ha":            "hectare",
	"hectares":      "hectare",
	"m":             "meter",
	"meters":        "meter",
	"metre":         "meter",
	"metres":        "meter",
	"km":            "kilometer",
	"kilometers":    "kilometer",
	"kilometre":     "kilometer",
	"kilometres":    "kilometer",

	"mol":        "mole",
	"moles":      "mole",
	"mmol":       "millimole",
	"millimoles": "millimole",

	"units":  "unit",
	"item":   "unit",
	"items":  "unit",
	"piece":  "unit",
	"pieces": "unit",
	"pc":     "unit",
	"pcs":    "unit",
	"stk":    "unit", // нем. Stück

	"h":       "hour",
	"hr":      "hour",
	"hrs":     "hour",
	"hours":   "hour",
	"d":       "day",
	"days":    "day",
	"a":       "year",
	"yr":      "year",
	"years":   "year",
	"s":       "second",
	"sec":     "second",
	"seconds": "second",

	"eur":  "EUR",
	"euro": "EUR",
	"€":    "EUR",
	"usd":  "USD",
	"$":    "USD",
}

// NormalizeUnit приводит произвольную строку единицы к каноническому имени.
// Возвращает false, если единица не распознана.
func NormalizeUnit(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	// Сначала точное совпадение с каноническим именем
	if _, ok := unitTable[s]; ok {
		return s, true
	}

	lower := strings.ToLower(s)
	if _, ok := unitTable[lower]; ok {
		return lower, true
	}
	if canonical, ok := unitAliases[lower]; ok {
		return canonical, true
	}

	// Схлопываем внутренние пробелы ("kilowatt  hour")
	collapsed := strings.Join(strings.Fields(lower), " ")
	if _, ok := unitTable[collapsed]; ok {
		return collapsed, true
	}
	if canonical, ok := unitAliases[collapsed]; ok {
		return canonical, true
	}

	return "", false
}

// lookup возвращает определение единицы по произвольной строке
func lookup(raw string) (unitDef, error) {
	canonical, ok := NormalizeUnit(raw)
	if !ok {
		return unitDef{}, &UnknownUnitError{Unit: raw}
	}
	return unitTable[canonical], nil
}

// DimensionOf возвращает размерность единицы
func DimensionOf(raw string) (Dimension, error) {
	def, err := lookup(raw)
	if err != nil {
		return DimensionNone, err
	}
	return def.Dimension, nil
}
