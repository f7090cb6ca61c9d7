package scrape

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/unixpickle/mapscrape/internal/selectors"
	"github.com/unixpickle/mapscrape/internal/types"
)

// interceptorGlobal is the well-known array name the injected hook appends
// (absoluteURL, responseBody) pairs to.
const interceptorGlobal = "__mapscrapeReviewResponses"

// interceptorScriptTemplate wraps XMLHttpRequest so that every response
// whose URL contains the reviews substring is captured. It is installed via
// EvalOnNewDocument so it runs before any page script, including the one
// that issues the request we want to observe.
const interceptorScriptTemplate = `() => {
  if (window.%[1]s) return;
  window.%[1]s = [];
  const marker = %[2]q;
  const OrigOpen = XMLHttpRequest.prototype.open;
  const OrigSend = XMLHttpRequest.prototype.send;
  XMLHttpRequest.prototype.open = function(method, url, ...rest) {
    this.__mapscrapeURL = new URL(url, window.location.origin).href;
    return OrigOpen.call(this, method, url, ...rest);
  };
  XMLHttpRequest.prototype.send = function(...args) {
    this.addEventListener('load', () => {
      if (this.__mapscrapeURL && this.__mapscrapeURL.includes(marker)) {
        window.%[1]s.push([this.__mapscrapeURL, this.responseText]);
      }
    });
    return OrigSend.apply(this, args);
  };
}`

// installInterceptor installs the XHR-wrapping hook. It must run before the
// page that issues review requests is navigated to.
func installInterceptor(page *rod.Page, sel *selectors.MapSelectors) error {
	script := fmt.Sprintf(interceptorScriptTemplate, interceptorGlobal, sel.ReviewsURLSubstring)
	if _, err := page.EvalOnNewDocument(script); err != nil {
		return types.NewDriverError("install_interceptor", err)
	}
	return nil
}

// activateMoreReviews locates the button whose action attribute ends with
// the configured "more reviews" suffix and clicks it programmatically
// (never a physical click: the control may be positioned off-screen).
func activateMoreReviews(page *rod.Page, sel *selectors.MapSelectors) error {
	script := fmt.Sprintf(`() => {
  const buttons = Array.from(document.querySelectorAll('button[data-value], button[jsaction]'));
  const btn = buttons.find(b => (b.getAttribute('jsaction') || '').endsWith(%q));
  if (!btn) return JSON.stringify({found: false});
  btn.click();
  return JSON.stringify({found: true});
}`, sel.MoreReviewsActionSuffix)

	var result struct {
		Found bool `json:"found"`
	}
	if err := evalJSON(page, script, &result); err != nil {
		return err
	}
	if !result.Found {
		return types.NewParseError("more_reviews_button", fmt.Errorf("more reviews control not present yet"))
	}
	return nil
}

// interceptedPayload reads the most recently captured (url, body) pair
// matching the reviews substring out of the interceptor's global array.
func interceptedPayload(ctx context.Context, page *rod.Page) (url, body string, err error) {
	script := fmt.Sprintf(`() => {
  const arr = window.%s || [];
  if (arr.length === 0) return JSON.stringify({found: false});
  const [u, b] = arr[arr.length - 1];
  return JSON.stringify({found: true, url: u, body: b});
}`, interceptorGlobal)

	var result struct {
		Found bool   `json:"found"`
		URL   string `json:"url"`
		Body  string `json:"body"`
	}
	if evalErr := evalJSON(page, script, &result); evalErr != nil {
		return "", "", evalErr
	}
	if !result.Found {
		return "", "", types.NewParseError("intercepted_payload", fmt.Errorf("no review response intercepted yet"))
	}
	return result.URL, result.Body, nil
}
