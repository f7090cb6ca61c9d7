package scrape

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/unixpickle/mapscrape/internal/selectors"
	"github.com/unixpickle/mapscrape/internal/types"
)

// classifyPayload is the JSON shape returned by the classification script
// injected into the page.
type classifyPayload struct {
	Kind      string               `json:"kind"` // "single", "not_found", "multiple", "none"
	Name      string               `json:"name,omitempty"`
	URL       string               `json:"url,omitempty"`
	Locations []types.LocationInfo `json:"locations,omitempty"`
}

const classifyScriptTemplate = `() => {
  const url = window.location.href;
  if (url.includes(%[1]q)) {
    const main = document.querySelector('[role^="%[2]s"]');
    if (main) {
      const label = main.getAttribute('aria-label');
      if (label) return JSON.stringify({kind: "single", name: label, url: url});
    }
    return JSON.stringify({kind: "none"});
  }
  if (document.body.innerText.includes(%[3]q)) {
    return JSON.stringify({kind: "not_found"});
  }
  const containers = Array.from(document.querySelectorAll('[aria-label^="%[4]s"]'));
  if (containers.length > 0) {
    const locations = [];
    for (const c of containers) {
      const anchors = Array.from(c.querySelectorAll('a[href*="%[1]s"]'));
      for (const a of anchors) {
        const name = a.getAttribute('aria-label') || '';
        const extras = Array.from(a.parentElement ? a.parentElement.querySelectorAll('.%[5]s') : [])
          .map(s => (s.textContent || '').trim()).filter(Boolean);
        locations.push({name: name, url: a.href, tags: extras});
      }
    }
    return JSON.stringify({kind: "multiple", locations: locations});
  }
  return JSON.stringify({kind: "none"});
}`

// classify implements the scrape driver's search-result classification:
// auto-navigated single result, "can't find" banner, or a disambiguation
// list. It is one probe attempt; the caller wraps it with retry.
func classify(ctx context.Context, page *rod.Page, sel *selectors.MapSelectors) (types.SearchResult, error) {
	script := fmt.Sprintf(classifyScriptTemplate,
		sel.PlaceURLSubstring, sel.MainRolePrefix, sel.NotFoundBannerText, sel.ResultsForPrefix, sel.SubtitleClass)

	var payload classifyPayload
	if err := evalJSON(page, script, &payload); err != nil {
		return types.SearchResult{}, err
	}

	switch payload.Kind {
	case "single":
		return types.SearchResult{
			Kind:      types.Single,
			Locations: []types.LocationInfo{{Name: payload.Name, URL: payload.URL}},
		}, nil
	case "not_found":
		return types.SearchResult{Kind: types.NotFound}, nil
	case "multiple":
		return types.SearchResult{Kind: types.Multiple, Locations: payload.Locations}, nil
	default:
		return types.SearchResult{}, types.NewParseError("classify", fmt.Errorf("no recognizable search-result state yet"))
	}
}

// evalJSON runs js (which must itself JSON.stringify its return value) and
// decodes the result into out.
func evalJSON(page *rod.Page, js string, out any) error {
	res, err := page.Eval(js)
	if err != nil {
		return types.NewDriverError("eval", err)
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), out); err != nil {
		return types.NewFatalParseError("eval_result", err)
	}
	return nil
}
