package harmonize

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportFormat формат экспорта набора сопоставлений
type ExportFormat string

const (
	FormatJSON  ExportFormat = "json"
	FormatCSV   ExportFormat = "csv"
	FormatExcel ExportFormat = "excel"
)

// Exporter выгружает набор сопоставлений для внешнего адаптера импорта
type Exporter struct {
	result *RunResult
}

// NewExporter создает экспортер поверх результата прогона
func NewExporter(result *RunResult) *Exporter {
	return &Exporter{result: result}
}

// Export выгружает в указанном формате
func (e *Exporter) Export(filename string, format ExportFormat) error {
	switch format {
	case FormatJSON:
		return e.ExportToJSON(filename)
	case FormatCSV:
		return e.ExportToCSV(filename)
	case FormatExcel:
		return e.ExportToExcel(filename)
	default:
		return fmt.Errorf("unknown export format: %s", format)
	}
}

// ExportToJSON выгружает результат в JSON
func (e *Exporter) ExportToJSON(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	payload := map[string]interface{}{
		"exported_at": time.Now().Format(time.RFC3339),
		"run_id":      e.result.RunID,
		"total":       len(e.result.Mappings),
		"mappings":    e.result.Mappings,
		"proxy_rules": e.result.ProxyRules,
	}
	if err := encoder.Encode(payload); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportToCSV выгружает сопоставления в CSV
func (e *Exporter) ExportToCSV(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(exportHeaders()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i := range e.result.Mappings {
		m := &e.result.Mappings[i]
		row := []string{
			m.RecordID,
			m.RecordName,
			m.EntryID,
			m.EntryName,
			string(m.Provenance),
			m.Reason,
			fmt.Sprintf("%g", m.OriginalValue),
			m.OriginalUnit,
			fmt.Sprintf("%g", m.ConvertedValue),
			m.TargetUnit,
			fmt.Sprintf("%g", m.ConversionFactor),
			m.LocationCode,
			string(m.LocationMethod),
			fmt.Sprintf("%.2f", m.Confidence),
			fmt.Sprintf("%t", m.ManualReview),
			m.Rationale,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

// ExportToExcel выгружает сопоставления в XLSX
func (e *Exporter) ExportToExcel(filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Harmonized Mappings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	headers := exportHeaders()
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx := range e.result.Mappings {
		m := &e.result.Mappings[rowIdx]
		row := rowIdx + 2
		values := []interface{}{
			m.RecordID, m.RecordName, m.EntryID, m.EntryName,
			string(m.Provenance), m.Reason,
			m.OriginalValue, m.OriginalUnit,
			m.ConvertedValue, m.TargetUnit, m.ConversionFactor,
			m.LocationCode, string(m.LocationMethod),
			m.Confidence, m.ManualReview, m.Rationale,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	for i := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}
	f.SetActiveSheet(index)

	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func exportHeaders() []string {
	return []string{
		"Record ID", "Record Name", "Entry ID", "Entry Name",
		"Provenance", "Reason",
		"Original Value", "Original Unit",
		"Converted Value", "Target Unit", "Conversion Factor",
		"Location", "Location Method",
		"Confidence", "Manual Review", "Rationale",
	}
}
