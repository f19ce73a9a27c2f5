package prefs_test

import (
	"os"
	"path/filepath"
	"testing"

	"agrivoice/internal/infra/prefs"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "prefs.yaml")
	store := prefs.NewFileStore(path)

	lang, err := store.LoadLanguage()
	if err != nil {
		t.Fatalf("loading missing file: %v", err)
	}
	if lang != "" {
		t.Errorf("language: got %q, want empty", lang)
	}

	if err := store.SaveLanguage("kn"); err != nil {
		t.Fatalf("saving: %v", err)
	}

	lang, err = prefs.NewFileStore(path).LoadLanguage()
	if err != nil {
		t.Fatalf("reloading: %v", err)
	}
	if lang != "kn" {
		t.Errorf("language: got %q, want kn", lang)
	}
}

func TestFileStore_RejectsUnsupportedLanguage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	if err := os.WriteFile(path, []byte("language: xx-unknown-!\n"), 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	if _, err := prefs.NewFileStore(path).LoadLanguage(); err == nil {
		t.Error("expected error for invalid stored language")
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	if err := os.WriteFile(path, []byte("language: [unclosed"), 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	store := prefs.NewFileStore(path)
	if _, err := store.LoadLanguage(); err == nil {
		t.Error("expected parse error")
	}
	if err := store.SaveLanguage("en"); err == nil {
		t.Error("save should not silently overwrite an unreadable file")
	}
}
