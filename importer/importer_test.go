package importer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"harmonizer/flows"
)

// writeSheet собирает тестовую книгу в форме инженерного LCI-шаблона
func writeSheet(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := "LCI"
	_, err := f.NewSheet(sheet)
	require.NoError(t, err)

	for i, row := range rows {
		for j, v := range row {
			cellName, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cellName, v))
		}
	}

	path := filepath.Join(t.TempDir(), "lci.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func lciRows() [][]interface{} {
	return [][]interface{}{
		{"Process description"},
		{"Some metadata the importer must skip"},
		{"", "FLOW NAME", "QUANTITY", "UNIT", "LOCATION", "COMPARTMENT", "DESCRIPTION"},
		{"PRODUCTS", "refined product", 1.0, "kg", "DE", "", "reference product"},
		{"INPUTS", "electricity, medium voltage", 12.5, "kWh", "DE", "", ""},
		{"", "tap water", 3.0, "l", "", "", ""}, // секция протянута вниз
		{"", "Energy carriers"},                 // подзаголовок без количества
		{"", "natural gas", "0,5", "m3", "DE", "", ""},
		{"EMISSIONS", "Carbon dioxide, fossil", 2.1, "kg", "", "air", ""},
		{"ANNEX"},
		{"", "after annex", 99.0, "kg", "", "", ""},
	}
}

func TestImportSheet(t *testing.T) {
	path := writeSheet(t, lciRows())
	importer := NewImporter(Options{Sheet: "LCI"})

	result, err := importer.ImportFile(path)
	require.NoError(t, err)

	require.Equal(t, []string{"refined product"}, result.Products)
	require.Len(t, result.Records, 5)
	require.Zero(t, result.Skipped)

	names := make([]string, 0, len(result.Records))
	for _, r := range result.Records {
		names = append(names, r.Name)
	}
	require.Equal(t, []string{
		"refined product",
		"electricity, medium voltage",
		"tap water",
		"natural gas",
		"Carbon dioxide, fossil",
	}, names)

	// запятая как десятичный разделитель
	require.InDelta(t, 0.5, result.Records[3].Quantity, 1e-9)
	// строки после ANNEX не читаются
	for _, r := range result.Records {
		require.NotEqual(t, "after annex", r.Name)
	}
}

func TestImportInfersRoles(t *testing.T) {
	path := writeSheet(t, lciRows())
	result, err := NewImporter(Options{Sheet: "LCI"}).ImportFile(path)
	require.NoError(t, err)

	byName := make(map[string]flows.RawFlowRecord)
	for _, r := range result.Records {
		byName[r.Name] = r
	}
	require.Equal(t, flows.RoleProcess, byName["electricity, medium voltage"].Role)
	require.Equal(t, flows.RoleElementaryFlow, byName["Carbon dioxide, fossil"].Role)
}

func TestImportByProducts(t *testing.T) {
	rows := [][]interface{}{
		{"", "FLOW NAME", "QUANTITY", "UNIT", "LOCATION", "COMPARTMENT", "DESCRIPTION"},
		{"PRODUCTS", "main product", 1.0, "kg", "DE", "", ""},
		{"PRODUCTS", "by-product heat", 4.0, "MJ", "DE", "", ""},
		{"PRODUCTS", "discarded residue", 0.2, "kg", "DE", "", "no avoided burden"},
		{"INPUTS", "diesel", 0.1, "kg", "", "", ""},
	}
	path := writeSheet(t, rows)
	result, err := NewImporter(Options{Sheet: "LCI"}).ImportFile(path)
	require.NoError(t, err)

	require.Equal(t, []string{"main product", "by-product heat", "discarded residue"}, result.Products)

	byName := make(map[string]flows.RawFlowRecord)
	for _, r := range result.Records {
		byName[r.Name] = r
	}
	// побочный продукт становится отрицательным входом
	require.InDelta(t, -4.0, byName["by-product heat"].Quantity, 1e-9)
	// строка без избегаемой нагрузки выброшена
	_, ok := byName["discarded residue"]
	require.False(t, ok)
	require.InDelta(t, 1.0, byName["main product"].Quantity, 1e-9)
}

func TestImportSkipsUnreadableQuantity(t *testing.T) {
	rows := [][]interface{}{
		{"", "FLOW NAME", "QUANTITY", "UNIT"},
		{"INPUTS", "good row", 2.0, "kg"},
		{"", "bad row", "n/a", "kg"},
	}
	path := writeSheet(t, rows)
	result, err := NewImporter(Options{Sheet: "LCI"}).ImportFile(path)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	require.Equal(t, 1, result.Skipped)
}

func TestImportMissingHeader(t *testing.T) {
	rows := [][]interface{}{
		{"just"},
		{"prose"},
	}
	path := writeSheet(t, rows)
	_, err := NewImporter(Options{Sheet: "LCI"}).ImportFile(path)
	require.Error(t, err)
}

func TestImportMissingSheet(t *testing.T) {
	path := writeSheet(t, lciRows())
	_, err := NewImporter(Options{Sheet: "NoSuchSheet"}).ImportFile(path)
	require.Error(t, err)
}

func TestRecordIDsAssigned(t *testing.T) {
	path := writeSheet(t, lciRows())
	result, err := NewImporter(Options{Sheet: "LCI"}).ImportFile(path)
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, r := range result.Records {
		require.NotEmpty(t, r.ID)
		require.False(t, seen[r.ID])
		seen[r.ID] = true
	}
}
