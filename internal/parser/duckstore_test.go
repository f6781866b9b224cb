// duckstore_test.go - Tests for DuckDB-backed table storage
package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/data-explorer/backend/internal/models"
)

// createTestStore creates a temporary DuckStore for testing
func createTestStore(t *testing.T) *DuckStore {
	t.Helper()

	store, err := NewDuckStore(t.TempDir(), "test", DefaultDuckSettings())
	if err != nil {
		t.Fatalf("Failed to create DuckStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// salesTable returns a small table with one column of each type.
func salesTable() *models.Table {
	return &models.Table{
		Columns: []models.Column{
			{Name: "product", Type: models.ColumnTypeString},
			{Name: "units", Type: models.ColumnTypeInteger},
			{Name: "price", Type: models.ColumnTypeDouble},
			{Name: "in stock", Type: models.ColumnTypeBoolean},
		},
		Rows: [][]any{
			{"A", int64(10), 2.5, true},
			{"B", int64(3), 4.0, false},
			{"C", nil, 1.25, true},
		},
	}
}

func TestNewDuckStore(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		tempDir := t.TempDir()

		store, err := NewDuckStore(tempDir, "file_test", DefaultDuckSettings())
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		defer store.Close()

		if err := store.Load(context.Background(), salesTable()); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		dbPath := filepath.Join(tempDir, "table_file_test.duckdb")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("Expected database file to be created")
		}
	})

	t.Run("close removes database file", func(t *testing.T) {
		tempDir := t.TempDir()

		store, err := NewDuckStore(tempDir, "close_test", DefaultDuckSettings())
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		if err := store.Load(context.Background(), salesTable()); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		store.Close()

		dbPath := filepath.Join(tempDir, "table_close_test.duckdb")
		if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
			t.Error("Expected database file to be removed")
		}
	})
}

func TestDuckStore_Load(t *testing.T) {
	store := createTestStore(t)

	if err := store.Load(context.Background(), salesTable()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if store.Len() != 3 {
		t.Errorf("Expected 3 rows, got %d", store.Len())
	}
	if len(store.Schema()) != 4 {
		t.Errorf("Expected 4 columns, got %d", len(store.Schema()))
	}

	if err := store.Load(context.Background(), salesTable()); err == nil {
		t.Error("Expected second Load to fail")
	}
}

func TestDuckStore_Preview(t *testing.T) {
	store := createTestStore(t)
	if err := store.Load(context.Background(), salesTable()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	t.Run("fewer rows than requested", func(t *testing.T) {
		preview, err := store.Preview(context.Background(), 5)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if preview.Len() != 3 {
			t.Errorf("Expected 3 rows, got %d", preview.Len())
		}
	})

	t.Run("keeps file order", func(t *testing.T) {
		preview, err := store.Preview(context.Background(), 2)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if preview.Len() != 2 {
			t.Fatalf("Expected 2 rows, got %d", preview.Len())
		}
		if preview.Rows[0][0] != "A" || preview.Rows[1][0] != "B" {
			t.Errorf("Unexpected order: %v", preview.Rows)
		}
		if preview.Columns[3].Name != "in stock" {
			t.Errorf("Expected quoted column name preserved, got %q", preview.Columns[3].Name)
		}
	})

	t.Run("values round trip", func(t *testing.T) {
		preview, err := store.Preview(context.Background(), 3)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if preview.Rows[0][1] != int64(10) {
			t.Errorf("Expected int64 10, got %v (%T)", preview.Rows[0][1], preview.Rows[0][1])
		}
		if preview.Rows[0][2] != 2.5 {
			t.Errorf("Expected 2.5, got %v (%T)", preview.Rows[0][2], preview.Rows[0][2])
		}
		if preview.Rows[1][3] != false {
			t.Errorf("Expected false, got %v", preview.Rows[1][3])
		}
		if preview.Rows[2][1] != nil {
			t.Errorf("Expected nil, got %v", preview.Rows[2][1])
		}
	})
}

func TestDuckStore_Query(t *testing.T) {
	store := createTestStore(t)
	if err := store.Load(context.Background(), salesTable()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	t.Run("aggregate", func(t *testing.T) {
		result, truncated, err := store.Query(context.Background(),
			`SELECT SUM(units) AS total FROM data`, 100)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if truncated {
			t.Error("Expected no truncation")
		}
		if result.Len() != 1 || len(result.Columns) != 1 {
			t.Fatalf("Expected 1x1 result, got %dx%d", result.Len(), len(result.Columns))
		}
		if result.Columns[0].Name != "total" {
			t.Errorf("Expected column 'total', got %q", result.Columns[0].Name)
		}
		if result.Rows[0][0] != float64(13) && result.Rows[0][0] != int64(13) {
			t.Errorf("Expected 13, got %v (%T)", result.Rows[0][0], result.Rows[0][0])
		}
	})

	t.Run("row cap", func(t *testing.T) {
		result, truncated, err := store.Query(context.Background(),
			`SELECT product FROM data ORDER BY product`, 2)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if !truncated {
			t.Error("Expected truncation")
		}
		if result.Len() != 2 {
			t.Errorf("Expected 2 rows, got %d", result.Len())
		}
	})

	t.Run("external access disabled after load", func(t *testing.T) {
		result, _, err := store.Query(context.Background(),
			`SELECT current_setting('enable_external_access') AS v`, 1)
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if result.Len() != 1 || fmt.Sprint(result.Rows[0][0]) != "false" {
			t.Errorf("Expected enable_external_access=false, got %v", result.Rows)
		}

		csvPath := filepath.Join(t.TempDir(), "outside.csv")
		if err := os.WriteFile(csvPath, []byte("a\n1\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := store.Query(context.Background(),
			fmt.Sprintf(`SELECT * FROM read_csv('%s')`, csvPath), 10); err == nil {
			t.Error("Expected reading an outside file to fail")
		}
	})

	t.Run("bad sql", func(t *testing.T) {
		if _, _, err := store.Query(context.Background(), `SELECT nope FROM data`, 10); err == nil {
			t.Error("Expected error for unknown column")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, _, err := store.Query(ctx, `SELECT * FROM data`, 10); err == nil {
			t.Error("Expected error for cancelled context")
		}
	})
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{"nil", nil, nil},
		{"int32", int32(7), int64(7)},
		{"uint8", uint8(7), int64(7)},
		{"bytes", []byte("hi"), "hi"},
		{"float32", float32(0.5), 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeValue(tt.input); got != tt.expected {
				t.Errorf("normalizeValue(%v) = %v (%T), expected %v", tt.input, got, got, tt.expected)
			}
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	if got := QuoteIdent(`a "b"`); got != `"a ""b"""` {
		t.Errorf("QuoteIdent = %s", got)
	}
}

func TestRemoveStaleStores(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"table_a.duckdb", "table_a.duckdb.wal", "table_b.duckdb", "keep.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := RemoveStaleStores(dir)
	if err != nil {
		t.Fatalf("RemoveStaleStores failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 stores removed, got %d", n)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || entries[0].Name() != "keep.txt" {
		t.Errorf("Expected only keep.txt to remain, got %v", entries)
	}

	if n, err := RemoveStaleStores(filepath.Join(dir, "missing")); err != nil || n != 0 {
		t.Errorf("Expected missing dir to be ignored, got %d, %v", n, err)
	}
}
