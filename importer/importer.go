// Package importer читает инвентарные таблицы LCI из XLSX и превращает
// их в последовательность сырых записей для гармонизации.
package importer

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"harmonizer/flows"
)

// Заголовки колонок инвентарного листа
const (
	headerFlowName    = "FLOW NAME"
	headerQuantity    = "QUANTITY"
	headerUnit        = "UNIT"
	headerLocation    = "LOCATION"
	headerCompartment = "COMPARTMENT"
	headerCategory    = "CATEGORY"
	headerDescription = "DESCRIPTION"

	sectionProducts = "PRODUCTS"
	sectionInputs   = "INPUTS"

	// Маркер конца таблицы: все строки после него игнорируются
	annexMarker = "ANNEX"

	// Пометка листа об отсутствии избегаемой нагрузки у побочного
	// продукта: такие строки отбрасываются
	noAvoidedBurden = "no avoided burden"
)

// Options параметры чтения инвентарного листа
type Options struct {
	// Sheet имя листа; пустое значение читает первый лист книги
	Sheet string
	// MaxHeaderScan сколько первых строк сканировать в поисках
	// строки заголовков
	MaxHeaderScan int
}

// DefaultOptions параметры чтения по умолчанию
func DefaultOptions() Options {
	return Options{MaxHeaderScan: 20}
}

// Result результат импорта одного листа
type Result struct {
	Records []flows.RawFlowRecord
	// Products названия референсных и побочных продуктов листа
	Products []string
	// Skipped строки, отброшенные из-за нечитаемого количества
	Skipped int
}

// Importer преобразует инвентарный лист в сырые записи. Лист устроен
// как у инженерных LCI-шаблонов: шапка, строка заголовков, секции
// PRODUCTS/INPUTS/... в первой колонке с объединенными ячейками,
// подзаголовки без количеств, маркер ANNEX в конце.
type Importer struct {
	opts Options
}

// NewImporter создает импортер
func NewImporter(opts Options) *Importer {
	if opts.MaxHeaderScan <= 0 {
		opts.MaxHeaderScan = DefaultOptions().MaxHeaderScan
	}
	return &Importer{opts: opts}
}

// ImportFile читает книгу и импортирует лист из Options
func (im *Importer) ImportFile(path string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := im.opts.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	return im.ImportSheet(f, sheet)
}

// ImportSheet импортирует один лист открытой книги
func (im *Importer) ImportSheet(f *excelize.File, sheet string) (*Result, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %q not found: %w", sheet, err)
	}

	headerRow, cols, err := im.findHeader(rows)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	section := ""
	productsSeen := 0

	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]

		first := strings.TrimSpace(cell(row, 0))
		if first == annexMarker {
			break
		}
		// объединенные ячейки секции протягиваются вниз
		if first != "" {
			section = first
		}

		name := strings.TrimSpace(cell(row, cols.name))
		if name == "" || strings.EqualFold(name, headerFlowName) {
			continue
		}

		quantityRaw := strings.TrimSpace(cell(row, cols.quantity))
		if quantityRaw == "" {
			// подзаголовок без количества
			continue
		}
		quantity, err := parseQuantity(quantityRaw)
		if err != nil {
			log.Printf("[Importer] Skipping row %d of sheet %q: unreadable quantity %q", i+1, sheet, quantityRaw)
			result.Skipped++
			continue
		}

		description := strings.TrimSpace(cell(row, cols.description))
		effectiveSection := section

		if section == sectionProducts {
			productsSeen++
			result.Products = append(result.Products, name)
			if productsSeen > 1 {
				// побочный продукт: либо явное "no avoided burden"
				// и строка выбрасывается, либо он становится
				// отрицательным входом
				if strings.EqualFold(description, noAvoidedBurden) {
					continue
				}
				effectiveSection = sectionInputs
				quantity = -quantity
			}
		}

		category := strings.TrimSpace(cell(row, cols.category))
		role := flows.InferRole(category, effectiveSection)
		record := flows.NewRawFlowRecord(
			name,
			quantity,
			strings.TrimSpace(cell(row, cols.unit)),
			strings.TrimSpace(cell(row, cols.location)),
			category,
			role,
		)
		result.Records = append(result.Records, record)
	}

	log.Printf("[Importer] Sheet %q: %d records, %d products, %d skipped",
		sheet, len(result.Records), len(result.Products), result.Skipped)
	return result, nil
}

// columnMap позиции известных колонок в строке заголовков
type columnMap struct {
	name        int
	quantity    int
	unit        int
	location    int
	category    int
	description int
}

// findHeader ищет строку заголовков по ячейке FLOW NAME и строит карту
// колонок. Колонки LOCATION/COMPARTMENT/DESCRIPTION опциональны.
func (im *Importer) findHeader(rows [][]string) (int, columnMap, error) {
	limit := im.opts.MaxHeaderScan
	if limit > len(rows) {
		limit = len(rows)
	}

	for i := 0; i < limit; i++ {
		cols := columnMap{name: -1, quantity: -1, unit: -1, location: -1, category: -1, description: -1}
		for j, raw := range rows[i] {
			switch strings.ToUpper(strings.TrimSpace(raw)) {
			case headerFlowName:
				cols.name = j
			case headerQuantity:
				cols.quantity = j
			case headerUnit:
				cols.unit = j
			case headerLocation:
				cols.location = j
			case headerCompartment, headerCategory:
				cols.category = j
			case headerDescription:
				cols.description = j
			}
		}
		if cols.name >= 0 && cols.quantity >= 0 {
			return i, cols, nil
		}
	}
	return 0, columnMap{}, fmt.Errorf("header row with %q and %q not found in first %d rows", headerFlowName, headerQuantity, limit)
}

// cell безопасный доступ: excelize обрезает пустые хвосты строк
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseQuantity числовое значение с поддержкой запятой как
// десятичного разделителя
func parseQuantity(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	return strconv.ParseFloat(cleaned, 64)
}
