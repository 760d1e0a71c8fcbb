package dealpipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSeedSourceReadsSeedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.txt")
	if err := os.WriteFile(path, []byte("B07W6JN8V8\nB08FC6D9WP\n# comment\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSeedSource("", path, "")
	codes, err := s.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(codes) != 2 || codes[0] != "B07W6JN8V8" || codes[1] != "B08FC6D9WP" {
		t.Errorf("codes = %v", codes)
	}
}

func TestSeedSourceCachesUntilMtimeAdvances(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "seeds.txt")
	if err := os.WriteFile(path, []byte("B07W6JN8V8\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSeedSource("", path, "")
	first, err := s.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Rewrite without advancing mtime explicitly beyond resolution — force
	// an mtime bump so the cache must invalidate.
	future := time.Now().Add(time.Minute)
	if err := os.WriteFile(path, []byte("B07W6JN8V8\nB08FC6D9WP\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	second, err := s.Resolve()
	if err != nil {
		t.Fatalf("Resolve (second): %v", err)
	}
	if len(first) == len(second) {
		t.Errorf("expected reparse after mtime advance: first=%v second=%v", first, second)
	}
}

func TestSeedSourcePrefersInlineOverDefaults(t *testing.T) {
	t.Parallel()

	s := NewSeedSource("", "", "B07W6JN8V8,B08FC6D9WP")
	codes, err := s.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(codes) != 2 {
		t.Errorf("codes = %v, want 2 inline codes", codes)
	}
}

func TestSeedSourceFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	s := NewSeedSource("", "", "")
	codes, err := s.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(codes) != len(defaultSeedCodes) {
		t.Errorf("codes = %v, want defaults %v", codes, defaultSeedCodes)
	}
}

func TestSeedSourceTargetsConfigFileTakesPriority(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	targetsPath := filepath.Join(dir, "targets.txt")
	if err := os.WriteFile(targetsPath, []byte("B00000001Z\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSeedSource(targetsPath, "", "B07W6JN8V8,B08FC6D9WP")
	codes, err := s.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(codes) != 1 || codes[0] != "B00000001Z" {
		t.Errorf("codes = %v, want targets-config file content to take priority", codes)
	}
}
