package reference

import (
	"database/sql"
	"path/filepath"
	"testing"

	"harmonizer/flows"
)

func testEntries() []CanonicalEntry {
	return []CanonicalEntry{
		{ID: "a1", Name: "market group for electricity, medium voltage", Unit: "kilowatt hour", Location: "DE", Category: "technosphere", Role: flows.RoleProcess},
		{ID: "a2", Name: "market group for electricity, medium voltage", Unit: "kilowatt hour", Location: "RER", Category: "technosphere", Role: flows.RoleProcess},
		{ID: "a3", Name: "market for heat, from steam, in chemical industry", Unit: "megajoule", Location: "RER", Category: "technosphere", Role: flows.RoleProcess},
		{ID: "b1", Name: "Carbon dioxide, fossil", Unit: "kilogram", Category: "air", Role: flows.RoleElementaryFlow},
	}
}

func TestNewIndex(t *testing.T) {
	idx, err := NewIndex(testEntries())
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	if idx.Len() != 4 {
		t.Errorf("Len() = %d, want 4", idx.Len())
	}

	e, ok := idx.EntryByID("a3")
	if !ok {
		t.Fatal("EntryByID(a3) not found")
	}
	if e.Unit != "megajoule" {
		t.Errorf("a3 unit = %q, want megajoule", e.Unit)
	}

	if _, ok := idx.EntryByID("missing"); ok {
		t.Error("EntryByID(missing) should not be found")
	}
}

func TestNewIndex_Empty(t *testing.T) {
	_, err := NewIndex(nil)
	if err == nil {
		t.Fatal("expected ReferenceLoadError for empty reference")
	}
	if _, ok := err.(*ReferenceLoadError); !ok {
		t.Errorf("expected ReferenceLoadError, got %T", err)
	}
}

func TestIndex_EntriesByCategory(t *testing.T) {
	idx, err := NewIndex(testEntries())
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}

	techno := idx.EntriesByCategory("Technosphere")
	if len(techno) != 3 {
		t.Errorf("EntriesByCategory(Technosphere) = %d entries, want 3", len(techno))
	}
	air := idx.EntriesByCategory("air")
	if len(air) != 1 {
		t.Errorf("EntriesByCategory(air) = %d entries, want 1", len(air))
	}
}

func TestIndex_EntriesByNormalizedName(t *testing.T) {
	idx, err := NewIndex(testEntries())
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}

	// Регистр и пробелы не влияют на поиск
	matches := idx.EntriesByNormalizedName("  MARKET GROUP for Electricity,   medium voltage ")
	if len(matches) != 2 {
		t.Fatalf("normalized lookup = %d entries, want 2", len(matches))
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Électricité, moyenne tension", "electricite, moyenne tension"},
		{"  Twice  Spaced ", "twice spaced"},
		{"Straße", "straße"}, // ß не диакритика, сохраняется
		{"Müller Prozess", "muller prozess"},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.expected {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadFromSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	setup := []string{
		`CREATE TABLE activities (code TEXT, name TEXT, unit TEXT, location TEXT)`,
		`CREATE TABLE biosphere (code TEXT, name TEXT, unit TEXT, categories TEXT)`,
		`INSERT INTO activities VALUES ('a1', 'market for diesel', 'kilogram', 'RER')`,
		`INSERT INTO biosphere VALUES ('b1', 'Carbon dioxide, fossil', 'kilogram', 'air')`,
	}
	for _, stmt := range setup {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("setup %q: %v", stmt, err)
		}
	}
	db.Close()

	idx, err := LoadFromSQLite(path)
	if err != nil {
		t.Fatalf("LoadFromSQLite failed: %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", idx.Len())
	}

	e, ok := idx.EntryByID("b1")
	if !ok {
		t.Fatal("biosphere entry not loaded")
	}
	if e.Role != flows.RoleElementaryFlow {
		t.Errorf("biosphere role = %v, want elementary flow", e.Role)
	}
	if e.Category != "air" {
		t.Errorf("biosphere category = %q, want air", e.Category)
	}
}

func TestLoadFromSQLite_Missing(t *testing.T) {
	_, err := LoadFromSQLite(filepath.Join(t.TempDir(), "does-not-exist.db"))
	if err == nil {
		t.Fatal("expected ReferenceLoadError for missing file")
	}
	if _, ok := err.(*ReferenceLoadError); !ok {
		t.Errorf("expected ReferenceLoadError, got %T: %v", err, err)
	}
}
