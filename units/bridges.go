package units

// DensityBridge мост между размерностями для конкретного вещества.
// Factor задан как множитель между базовыми единицами размерностей
// (например, кг на кубометр для моста объем -> масса).
type DensityBridge struct {
	Substance     string
	FromDimension Dimension
	ToDimension   Dimension
	Factor        float64
}

// defaultDensityBridges таблица плотностей веществ при нормальных условиях
// (293.15 K), применяемых для перевода объем <-> масса. Значения kg/m3.
func defaultDensityBridges() map[string][]DensityBridge {
	densities := map[string]float64{
		"water":       998.2,
		"wastewater":  998.0,
		"waste water": 998.0,
		"ethanol":     789.3,
		"methanol":    791.8,
		"argon":       1.66,
		"nitrogen":    1.16,
		"toluene":     866.9,
		"acetone":     784.5,
		"hexane":      654.8,
		// Плотность согласно ecoinvent "market group for natural gas, high pressure"
		"natural gas": 0.735,
	}

	bridges := make(map[string][]DensityBridge, len(densities))
	for substance, rho := range densities {
		bridges[substance] = []DensityBridge{{
			Substance:     substance,
			FromDimension: DimensionVolume,
			ToDimension:   DimensionMass,
			Factor:        rho,
		}}
	}
	return bridges
}
