package selectors

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManagerFallsBackToEmbeddedWithoutExternalPath(t *testing.T) {
	m, err := NewManager("", false)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	if m.Current() != Get() {
		t.Error("expected current selectors to be the embedded singleton")
	}
}

func TestManagerLoadsExternalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maps.yaml")
	if err := os.WriteFile(path, []byte("place_url_substring: \"/custom/place\"\n"), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	m, err := NewManager(path, false)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	if got := m.Current().PlaceURLSubstring; got != "/custom/place" {
		t.Errorf("PlaceURLSubstring = %q, want /custom/place", got)
	}
	// Fields absent from the override file keep their embedded values.
	if m.Current().ReviewsURLSubstring != Get().ReviewsURLSubstring {
		t.Error("expected unset fields to retain embedded defaults")
	}
}

func TestManagerHotReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maps.yaml")
	if err := os.WriteFile(path, []byte("place_url_substring: \"/v1\"\n"), 0o644); err != nil {
		t.Fatalf("write initial: %v", err)
	}

	m, err := NewManager(path, true)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	if got := m.Current().PlaceURLSubstring; got != "/v1" {
		t.Fatalf("initial PlaceURLSubstring = %q, want /v1", got)
	}

	if err := os.WriteFile(path, []byte("place_url_substring: \"/v2\"\n"), 0o644); err != nil {
		t.Fatalf("write update: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Current().PlaceURLSubstring == "/v2" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("selectors never hot-reloaded, still %q", m.Current().PlaceURLSubstring)
}
