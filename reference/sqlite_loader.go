package reference

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"harmonizer/flows"

	_ "github.com/mattn/go-sqlite3"
)

// LoadFromSQLite читает канонические записи из SQLite-экспорта целевой базы.
// Ожидаются две таблицы:
//
//	activities(code TEXT, name TEXT, unit TEXT, location TEXT)
//	biosphere(code TEXT, name TEXT, unit TEXT, categories TEXT)
//
// Экспорт открывается только на чтение. Отсутствующий файл, нечитаемая
// схема или пустой справочник дают ReferenceLoadError.
func LoadFromSQLite(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &ReferenceLoadError{Source: path, Err: err}
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, &ReferenceLoadError{Source: path, Err: err}
	}
	defer db.Close()

	var entries []CanonicalEntry

	activities, err := loadActivities(db)
	if err != nil {
		return nil, &ReferenceLoadError{Source: path, Err: err}
	}
	entries = append(entries, activities...)

	biosphere, err := loadBiosphere(db)
	if err != nil {
		return nil, &ReferenceLoadError{Source: path, Err: err}
	}
	entries = append(entries, biosphere...)

	if len(entries) == 0 {
		return nil, &ReferenceLoadError{Source: path}
	}

	log.Printf("[Reference] Loaded %d activities, %d biosphere flows from %s",
		len(activities), len(biosphere), path)

	return NewIndex(entries)
}

// loadActivities читает техносферные активности
func loadActivities(db *sql.DB) ([]CanonicalEntry, error) {
	rows, err := db.Query(`SELECT code, name, unit, location FROM activities`)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	var entries []CanonicalEntry
	for rows.Next() {
		var e CanonicalEntry
		var location sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &e.Unit, &location); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		e.Location = location.String
		e.Category = "technosphere"
		e.Role = flows.RoleProcess
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return entries, nil
}

// loadBiosphere читает элементарные потоки
func loadBiosphere(db *sql.DB) ([]CanonicalEntry, error) {
	rows, err := db.Query(`SELECT code, name, unit, categories FROM biosphere`)
	if err != nil {
		return nil, fmt.Errorf("query biosphere: %w", err)
	}
	defer rows.Close()

	var entries []CanonicalEntry
	for rows.Next() {
		var e CanonicalEntry
		var categories sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &e.Unit, &categories); err != nil {
			return nil, fmt.Errorf("scan biosphere row: %w", err)
		}
		e.Category = categories.String
		e.Role = flows.RoleElementaryFlow
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate biosphere: %w", err)
	}
	return entries, nil
}
