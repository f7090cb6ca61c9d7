package selectors

import "testing"

func TestGetSelectors(t *testing.T) {
	sel := Get()
	if sel == nil {
		t.Fatal("Get() returned nil")
	}
	if sel.PlaceURLSubstring == "" {
		t.Error("expected a place URL substring")
	}
	if sel.ReviewsURLSubstring == "" {
		t.Error("expected a reviews URL substring")
	}
	if sel.RootURLTemplate == "" {
		t.Error("expected a root URL template")
	}
}

func TestGetSelectorsSingleton(t *testing.T) {
	if Get() != Get() {
		t.Error("expected Get() to return the same instance")
	}
}

func TestDefaultSelectorsMatchEmbedded(t *testing.T) {
	def := defaultSelectors()
	embedded := Get()
	if def.PlaceURLSubstring != embedded.PlaceURLSubstring {
		t.Errorf("fallback place URL substring %q diverges from embedded %q", def.PlaceURLSubstring, embedded.PlaceURLSubstring)
	}
	if def.ReviewsURLSubstring != embedded.ReviewsURLSubstring {
		t.Errorf("fallback reviews URL substring %q diverges from embedded %q", def.ReviewsURLSubstring, embedded.ReviewsURLSubstring)
	}
}
