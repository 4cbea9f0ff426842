package shell

import (
	"net/url"
	"strings"
)

// DefaultSearchEndpoint is where non-URL input is sent as a query.
const DefaultSearchEndpoint = "https://duckduckgo.com/?q="

// ResolveInput classifies free-form address-bar input: anything with an
// explicit scheme is a URL, everything else becomes a search query against
// the configured endpoint.
func ResolveInput(input, searchEndpoint string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	if searchEndpoint == "" {
		searchEndpoint = DefaultSearchEndpoint
	}
	if u, err := url.Parse(trimmed); err == nil && u.Scheme != "" && u.Host != "" {
		return trimmed
	}
	return searchEndpoint + url.QueryEscape(trimmed)
}
