// Package assets provides embedded static files for the application.
// Using Go's embed package allows for single-binary deployment without
// external file dependencies.
package assets

import (
	"bytes"
	"embed"
	"html"
	"html/template"
	"io/fs"
	"regexp"

	"github.com/unixpickle/mapscrape/pkg/version"
)

// Templates embeds all HTML templates.
//
//go:embed templates/*.html
var Templates embed.FS

// GetTemplate parses and returns a named template from the embedded filesystem.
func GetTemplate(name string) (*template.Template, error) {
	return template.ParseFS(Templates, "templates/"+name)
}

// ReadTemplate returns the raw content of a template file.
func ReadTemplate(name string) ([]byte, error) {
	return fs.ReadFile(Templates, "templates/"+name)
}

// versionSanitizer matches any potentially dangerous character in a version string.
// SanitizeVersion strips its matches to prevent XSS via build-time ldflags injection.
// Only allows alphanumeric characters, dots, dashes, underscores, and plus signs.
var versionSanitizer = regexp.MustCompile(`[^a-zA-Z0-9.\-_+]`)

// SanitizeVersion sanitizes a version string to prevent XSS attacks.
// Returns "unknown" if the result is empty after sanitization.
func SanitizeVersion(version string) string {
	// First HTML escape, then remove any remaining suspicious characters
	escaped := html.EscapeString(version)
	sanitized := versionSanitizer.ReplaceAllString(escaped, "")
	if sanitized == "" {
		return "unknown"
	}
	// Limit length to prevent DoS via extremely long version strings
	if len(sanitized) > 100 {
		sanitized = sanitized[:100]
	}
	return sanitized
}

// IndexPageData contains the data for rendering the home page.
type IndexPageData struct {
	Version   string
	GoVersion string
	PoolSize  int
}

var indexPageTemplate = template.Must(GetTemplate("index.html"))

// RenderIndexPage renders the home page describing the service's endpoints.
// Uses html/template for automatic XSS escaping of all values.
func RenderIndexPage(poolSize int) (string, error) {
	data := IndexPageData{
		Version:   SanitizeVersion(version.Full()),
		GoVersion: version.GoVersion(),
		PoolSize:  poolSize,
	}
	var buf bytes.Buffer
	if err := indexPageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
