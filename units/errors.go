package units

import "fmt"

// UnknownUnitError единица измерения не распознана даже после
// лексической нормализации
type UnknownUnitError struct {
	Unit string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("unknown unit: %q", e.Unit)
}

// IncompatibleUnitsError единицы принадлежат разным физическим размерностям
// и мост (bridge) для них не определен
type IncompatibleUnitsError struct {
	From          string
	To            string
	FromDimension Dimension
	ToDimension   Dimension
}

func (e *IncompatibleUnitsError) Error() string {
	return fmt.Sprintf("incompatible units: cannot convert %q (%s) to %q (%s)",
		e.From, e.FromDimension, e.To, e.ToDimension)
}
