package lookup

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SearchBaseURL is the HTML-only DuckDuckGo endpoint.
const SearchBaseURL = "https://html.duckduckgo.com"

// maxSearchResults caps the results kept from one page.
const maxSearchResults = 8

// SearchResult is one organic web result.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchResults is one web search and what it returned.
type SearchResults struct {
	Query    string
	QueryURL string
	Results  []SearchResult
}

// WebSearch looks businesses up on the web.
type WebSearch struct {
	fetcher *Fetcher
	baseURL string
}

// NewWebSearch returns a WebSearch rooted at baseURL (SearchBaseURL when empty).
func NewWebSearch(f *Fetcher, baseURL string) *WebSearch {
	if baseURL == "" {
		baseURL = SearchBaseURL
	}
	return &WebSearch{fetcher: f, baseURL: strings.TrimRight(baseURL, "/")}
}

// Business searches for "{name} Australia business".
func (s *WebSearch) Business(ctx context.Context, name string) (*SearchResults, error) {
	query := name + " Australia business"
	queryURL := s.baseURL + "/html/?q=" + url.QueryEscape(query)
	page, err := s.fetcher.Get(ctx, queryURL)
	if err != nil {
		return nil, err
	}
	results, err := parseSearchResults(page)
	if err != nil {
		return nil, err
	}
	return &SearchResults{Query: query, QueryURL: queryURL, Results: results}, nil
}

// parseSearchResults pairs result links with snippets by position. Links
// without a title are skipped.
func parseSearchResults(page string) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing search page: %w", err)
	}

	var links, snippets []*html.Node
	walk(doc, func(n *html.Node) {
		switch {
		case n.DataAtom == atom.A && hasClass(n, "result__a"):
			links = append(links, n)
		case hasClass(n, "result__snippet"):
			snippets = append(snippets, n)
		}
	})

	var out []SearchResult
	for i := 0; i < len(links) && i < maxSearchResults; i++ {
		title := textContent(links[i])
		if title == "" {
			continue
		}
		r := SearchResult{
			Title: title,
			URL:   UnwrapSearchURL(attr(links[i], "href")),
		}
		if i < len(snippets) {
			r.Snippet = textContent(snippets[i])
		}
		out = append(out, r)
	}
	return out, nil
}

// UnwrapSearchURL turns a DuckDuckGo redirect link into its target.
// Protocol-relative links gain https. Unparseable input is returned as is.
func UnwrapSearchURL(raw string) string {
	if raw == "" {
		return ""
	}
	value := raw
	if strings.HasPrefix(value, "//") {
		value = "https:" + value
	}
	u, err := url.Parse(value)
	if err != nil {
		return raw
	}
	if strings.Contains(u.Hostname(), "duckduckgo.com") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	return u.String()
}
