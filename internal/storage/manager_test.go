// manager_test.go - Tests for storage layer
package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/data-explorer/backend/internal/models"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		if _, err := NewLocalStore(uploadDir, 0); err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			t.Error("Expected upload directory to be created")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file from reader", func(t *testing.T) {
		store := createTestStore(t)

		content := "a,b\n1,2\n"
		info, err := store.Save("sales.csv", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if info.ID == "" {
			t.Error("Expected ID to be set")
		}
		if info.Name != "sales.csv" {
			t.Errorf("Expected name 'sales.csv', got %v", info.Name)
		}
		if info.Size != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), info.Size)
		}
		if info.Status != models.FileStatusUploaded {
			t.Errorf("Expected status 'uploaded', got %v", info.Status)
		}

		data, err := os.ReadFile(filepath.Join(store.uploadDir, info.ID))
		if err != nil {
			t.Fatalf("Failed to read saved file: %v", err)
		}
		if string(data) != content {
			t.Errorf("Expected content %q, got %q", content, string(data))
		}
	})

	t.Run("strips directories from name", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("../../etc/report.xlsx", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if info.Name != "report.xlsx" {
			t.Errorf("Expected name 'report.xlsx', got %v", info.Name)
		}
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		store, err := NewLocalStore(t.TempDir(), 4)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}

		if _, err := store.Save("big.csv", strings.NewReader("12345")); !errors.Is(err, ErrFileTooLarge) {
			t.Errorf("Expected ErrFileTooLarge, got %v", err)
		}
		if _, err := store.Save("ok.csv", strings.NewReader("1234")); err != nil {
			t.Errorf("Expected file at the limit to be accepted: %v", err)
		}

		entries, err := os.ReadDir(store.uploadDir)
		if err != nil {
			t.Fatalf("Failed to read upload directory: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("Expected only the accepted file on disk, got %d", len(entries))
		}
	})
}

func TestLocalStore_Open(t *testing.T) {
	store := createTestStore(t)

	data := []byte("x,y\n3,4\n")
	info, err := store.Save("open.csv", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	rc, err := store.Open(info.ID)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer rc.Close()

	saved, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if !bytes.Equal(saved, data) {
		t.Error("Saved data doesn't match original")
	}

	if _, err := store.Open("non-existent-id"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store := createTestStore(t)

	info, err := store.Save("test.csv", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}
	filePath := filepath.Join(store.uploadDir, info.ID)

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Failed to delete file: %v", err)
	}

	if _, err := store.Open(info.ID); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound when opening deleted file, got %v", err)
	}
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Error("Physical file should be deleted")
	}
	if err := store.Delete(info.ID); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound on second delete, got %v", err)
	}
}

func TestLocalStore_GetFilePath(t *testing.T) {
	store := createTestStore(t)

	info, err := store.Save("test.csv", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	path, err := store.GetFilePath(info.ID)
	if err != nil {
		t.Fatalf("Failed to get file path: %v", err)
	}
	if expected := filepath.Join(store.uploadDir, info.ID); path != expected {
		t.Errorf("Expected path %s, got %s", expected, path)
	}

	if _, err := store.Open("non-existent-id"); err == nil {
		t.Error("Expected error when opening non-existent file")
	}
}
