package geolocate

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewLoadsEmbeddedTable(t *testing.T) {
	l, err := New(0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(l.entries) == 0 {
		t.Fatal("expected a non-empty location table")
	}
}

func TestLookupExactEntry(t *testing.T) {
	l, err := New(0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	loc, ok := l.Lookup("8.8.8.0")
	if !ok {
		t.Fatal("expected a match")
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		t.Errorf("unexpected zero-value location: %+v", loc)
	}
}

func TestLookupRejectsNonIPv4(t *testing.T) {
	l, err := New(0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := l.Lookup("not-an-ip"); ok {
		t.Error("expected lookup to fail for non-IP input")
	}
	if _, ok := l.Lookup("::1"); ok {
		t.Error("expected lookup to fail for IPv6 input")
	}
}

func TestLookupForRequestUsesForwardedForWithTrustDepth(t *testing.T) {
	l, err := New(1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 8.8.8.0")

	loc, ok := l.LookupForRequest(req, "10.0.0.1:12345")
	if !ok {
		t.Fatal("expected a match")
	}
	direct, _ := l.Lookup("8.8.8.0")
	if loc != direct {
		t.Errorf("got %+v, want %+v", loc, direct)
	}
}

func TestLookupForRequestFallsBackToRemoteAddrWithoutProxies(t *testing.T) {
	l, err := New(0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "8.8.8.0")

	loc, ok := l.LookupForRequest(req, "4.0.0.0:9999")
	if !ok {
		t.Fatal("expected a match")
	}
	direct, _ := l.Lookup("4.0.0.0")
	if loc != direct {
		t.Errorf("expected remoteAddr-based lookup to win when numProxies=0, got %+v want %+v", loc, direct)
	}
}
