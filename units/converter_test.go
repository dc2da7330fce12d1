package units

import (
	"math"
	"sync"
	"testing"
)

// Тесты для нормализации единиц
func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		ok       bool
	}{
		{"kg", "kilogram", true},
		{"KG", "kilogram", true},
		{"kilograms", "kilogram", true},
		{"kWh", "kilowatt hour", true},
		{"kilowatt-hour", "kilowatt hour", true},
		{"m3", "cubic meter", true},
		{"m³", "cubic meter", true},
		{"  l ", "liter", true},
		{"Stk", "unit", true},
		{"t", "ton", true},
		{"mmol", "millimole", true},
		{"", "", false},
		{"furlong", "", false},
	}

	for _, tt := range tests {
		result, ok := NormalizeUnit(tt.input)
		if ok != tt.ok {
			t.Errorf("NormalizeUnit(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if result != tt.expected {
			t.Errorf("NormalizeUnit(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestConverter_Convert(t *testing.T) {
	c := NewConverter()

	tests := []struct {
		value    float64
		from     string
		to       string
		expected float64
	}{
		{1.0, "kWh", "MJ", 3.6},
		{2.0, "t", "kg", 2000.0},
		{500.0, "ml", "l", 0.5},
		{1.0, "kg", "kg", 1.0},
		{1000.0, "l", "m3", 1.0},
		{1.0, "ha", "m2", 10000.0},
	}

	for _, tt := range tests {
		got, factor, err := c.Convert(tt.value, tt.from, tt.to)
		if err != nil {
			t.Errorf("Convert(%v, %q, %q) unexpected error: %v", tt.value, tt.from, tt.to, err)
			continue
		}
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("Convert(%v, %q, %q) = %v, want %v", tt.value, tt.from, tt.to, got, tt.expected)
		}
		if factor == 0 {
			t.Errorf("Convert(%v, %q, %q) returned zero factor", tt.value, tt.from, tt.to)
		}
	}
}

// Конверсия должна быть гомоморфизмом: convert(convert(v, A, B), B, A) == v
func TestConverter_RoundTrip(t *testing.T) {
	c := NewConverter()

	pairs := [][2]string{
		{"kg", "t"},
		{"kWh", "MJ"},
		{"l", "m3"},
		{"ml", "l"},
		{"m2", "ha"},
		{"h", "day"},
	}

	value := 42.5
	for _, p := range pairs {
		forward, _, err := c.Convert(value, p[0], p[1])
		if err != nil {
			t.Fatalf("Convert(%q -> %q): %v", p[0], p[1], err)
		}
		back, _, err := c.Convert(forward, p[1], p[0])
		if err != nil {
			t.Fatalf("Convert(%q -> %q): %v", p[1], p[0], err)
		}
		if math.Abs(back-value) > 1e-9*math.Abs(value) {
			t.Errorf("round trip %q <-> %q: got %v, want %v", p[0], p[1], back, value)
		}
	}
}

// Несовместимые размерности всегда дают IncompatibleUnitsError,
// никогда числовой результат
func TestConverter_IncompatibleDimensions(t *testing.T) {
	c := NewConverter()

	tests := [][2]string{
		{"kg", "kWh"},
		{"m3", "MJ"},
		{"unit", "kg"},
		{"EUR", "USD"}, // фиксированного курса нет
	}

	for _, tt := range tests {
		_, _, err := c.Convert(1.0, tt[0], tt[1])
		if err == nil {
			t.Errorf("Convert(%q, %q) expected error, got nil", tt[0], tt[1])
			continue
		}
		if _, ok := err.(*IncompatibleUnitsError); !ok {
			t.Errorf("Convert(%q, %q) expected IncompatibleUnitsError, got %T: %v", tt[0], tt[1], err, err)
		}
	}
}

func TestConverter_UnknownUnit(t *testing.T) {
	c := NewConverter()

	_, _, err := c.Convert(1.0, "parsec", "kg")
	if err == nil {
		t.Fatal("expected error for unknown unit")
	}
	if _, ok := err.(*UnknownUnitError); !ok {
		t.Errorf("expected UnknownUnitError, got %T: %v", err, err)
	}
}

func TestConverter_CompoundUnits(t *testing.T) {
	c := NewConverter()

	// kg/kWh -> t/MJ: (kg->t) / (kWh->MJ) = 0.001 / 3.6
	got, factor, err := c.Convert(1.0, "kg/kWh", "t/MJ")
	if err != nil {
		t.Fatalf("compound conversion failed: %v", err)
	}
	expected := 0.001 / 3.6
	if math.Abs(got-expected) > 1e-12 {
		t.Errorf("Convert(kg/kWh -> t/MJ) = %v, want %v", got, expected)
	}
	if math.Abs(factor-expected) > 1e-12 {
		t.Errorf("factor = %v, want %v", factor, expected)
	}

	// Несовместимый знаменатель
	_, _, err = c.Convert(1.0, "kg/kWh", "kg/m3")
	if err == nil {
		t.Error("expected error for incompatible compound denominator")
	}
}

// Мост плотности: объем <-> масса через вещество из названия записи
func TestConverter_SubstanceBridge(t *testing.T) {
	c := NewConverter()

	// 1 л этанола -> кг: 0.001 m3 * 789.3 kg/m3
	got, _, err := c.ConvertWithSubstance(1.0, "l", "kg", "ethanol, 96% solution")
	if err != nil {
		t.Fatalf("bridge conversion failed: %v", err)
	}
	if math.Abs(got-0.7893) > 1e-9 {
		t.Errorf("1 l ethanol = %v kg, want 0.7893", got)
	}

	// Обратное направление: кг природного газа -> м3
	got, _, err = c.ConvertWithSubstance(0.735, "kg", "m3", "market group for natural gas, high pressure")
	if err != nil {
		t.Fatalf("reverse bridge conversion failed: %v", err)
	}
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("0.735 kg natural gas = %v m3, want 1.0", got)
	}

	// "waste water" должен выиграть у "water"
	got, _, err = c.ConvertWithSubstance(998.0, "kg", "m3", "waste water from process")
	if err != nil {
		t.Fatalf("waste water bridge failed: %v", err)
	}
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("998 kg waste water = %v m3, want 1.0", got)
	}

	// Без подсказки вещества мост не применяется
	_, _, err = c.ConvertWithSubstance(1.0, "l", "kg", "steel sheet")
	if err == nil {
		t.Error("expected IncompatibleUnitsError without substance bridge")
	}
}

// Кэш факторов безопасен для конкурентного доступа и дает идентичные значения
func TestConverter_ConcurrentCache(t *testing.T) {
	c := NewConverter()

	var wg sync.WaitGroup
	results := make([]float64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, factor, err := c.Convert(1.0, "kWh", "MJ")
			if err != nil {
				t.Errorf("concurrent convert failed: %v", err)
				return
			}
			results[idx] = factor
		}(i)
	}
	wg.Wait()

	for i, factor := range results {
		if factor != 3.6 {
			t.Errorf("goroutine %d got factor %v, want 3.6", i, factor)
		}
	}
}
