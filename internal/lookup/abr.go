package lookup

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/textnorm"
)

// ABRBaseURL is the Australian Business Register lookup site.
const ABRBaseURL = "https://abr.business.gov.au"

// closeRankGap is the rank margin under which the top ABR hit is only medium confidence.
const closeRankGap = 4

// Ranking weights for ABR name search hits.
const (
	similarityWeight     = 25
	hintSimilarityWeight = 45
	containsWeight       = 10
	hintTokenWeight      = 8
	entityNameWeight     = 5
)

var compressedID = regexp.MustCompile(`^Results_NameItems_\d+__Compressed$`)

// legalWords are dropped from the trimmed query variants.
var legalWords = map[string]bool{
	"pty": true, "ltd": true, "limited": true, "company": true, "co": true,
	"the": true, "trustee": true, "for": true, "trust": true, "unit": true,
}

// ABRMatch is the best-ranked business name hit from an ABR search.
type ABRMatch struct {
	ABN        string
	Name       string
	Status     string
	NameType   string
	Location   string
	State      string
	Postcode   string
	Relevance  float64
	Rank       float64
	Confidence model.Confidence
	SearchURL  string
}

// ABRDetails are the fields read from an ABN detail page.
type ABRDetails struct {
	EntityName           string
	ABNStatus            string
	EntityType           string
	GSTStatus            string
	MainBusinessLocation string
	DetailsURL           string
}

// Registry queries the ABR website.
type Registry struct {
	fetcher *Fetcher
	baseURL string
}

// NewRegistry returns a Registry rooted at baseURL (ABRBaseURL when empty).
func NewRegistry(f *Fetcher, baseURL string) *Registry {
	if baseURL == "" {
		baseURL = ABRBaseURL
	}
	return &Registry{fetcher: f, baseURL: strings.TrimRight(baseURL, "/")}
}

// BestMatch tries each query variant of lookupName and keeps the highest
// ranked hit. Failed queries are skipped. It returns nil when nothing matched.
func (r *Registry) BestMatch(ctx context.Context, lookupName string) *ABRMatch {
	var best *ABRMatch
	for _, q := range BuildABRQueries(lookupName) {
		m, err := r.Search(ctx, q, lookupName)
		if err != nil || m == nil {
			continue
		}
		if best == nil || m.Rank > best.Rank {
			best = m
		}
	}
	return best
}

// Search runs one ABR name search and ranks the hits against name and hint.
func (r *Registry) Search(ctx context.Context, name, hint string) (*ABRMatch, error) {
	searchURL := r.baseURL + "/Search/ResultsActive?SearchText=" + url.QueryEscape(name)
	page, err := r.fetcher.Get(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	rows, err := parseABRSearch(page)
	if err != nil {
		return nil, err
	}
	best := rankABR(rows, name, hint)
	if best != nil {
		best.SearchURL = searchURL
	}
	return best, nil
}

// Details fetches the ABN detail page for abn.
func (r *Registry) Details(ctx context.Context, abn string) (*ABRDetails, error) {
	detailsURL := r.baseURL + "/ABN/View?abn=" + url.QueryEscape(abn)
	page, err := r.fetcher.Get(ctx, detailsURL)
	if err != nil {
		return nil, err
	}
	d, err := parseABRDetails(page)
	if err != nil {
		return nil, err
	}
	d.DetailsURL = detailsURL
	return d, nil
}

// BuildABRQueries returns the distinct query variants tried for a name,
// longest first.
func BuildABRQueries(name string) []string {
	tokens := textnorm.Tokens(textnorm.Normalize(name), 1)
	if len(tokens) == 0 {
		return nil
	}
	var trimmed []string
	for _, tok := range tokens {
		if !legalWords[tok] {
			trimmed = append(trimmed, tok)
		}
	}

	candidates := []string{
		strings.Join(tokens, " "),
		strings.Join(head(tokens, 4), " "),
		strings.Join(head(tokens, 3), " "),
		strings.Join(head(tokens, 2), " "),
		tokens[0],
		strings.Join(trimmed, " "),
		strings.Join(head(trimmed, 3), " "),
		strings.Join(head(trimmed, 1), " "),
	}
	return uniqueNonEmpty(candidates)
}

func head(tokens []string, n int) []string {
	if len(tokens) > n {
		return tokens[:n]
	}
	return tokens
}

// parseABRSearch reads the compressed result rows from an ABR search page.
func parseABRSearch(page string) ([]ABRMatch, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing ABR search page: %w", err)
	}
	var rows []ABRMatch
	walk(doc, func(n *html.Node) {
		if n.DataAtom != atom.Input || !compressedID.MatchString(attr(n, "id")) {
			return
		}
		if row, ok := parseCompressedRow(attr(n, "value")); ok {
			rows = append(rows, row)
		}
	})
	return rows, nil
}

// parseCompressedRow splits one comma-joined ABR result. The business name
// may itself contain commas, so it is everything between the fifth field
// and the fixed eight-field tail.
func parseCompressedRow(raw string) (ABRMatch, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) < 14 {
		return ABRMatch{}, false
	}
	tail := parts[len(parts)-8:]
	row := ABRMatch{
		ABN:      strings.Join(strings.Fields(parts[0]), ""),
		Status:   textnorm.CollapseSpaces(parts[3]),
		Name:     textnorm.CollapseSpaces(strings.Join(parts[5:len(parts)-8], ",")),
		NameType: textnorm.CollapseSpaces(tail[2]),
		Location: textnorm.CollapseSpaces(tail[4]),
		State:    textnorm.CollapseSpaces(tail[5]),
		Postcode: textnorm.CollapseSpaces(tail[6]),
	}
	if v, err := strconv.ParseFloat(textnorm.CollapseSpaces(tail[7]), 64); err == nil {
		row.Relevance = v
	}
	if row.ABN == "" || row.Name == "" {
		return ABRMatch{}, false
	}
	return row, true
}

// rankABR scores rows against the query name and the merchant hint and
// returns the best, or nil for no rows.
func rankABR(rows []ABRMatch, name, hint string) *ABRMatch {
	if len(rows) == 0 {
		return nil
	}
	cleaned := textnorm.Normalize(name)
	normalizedHint := textnorm.Normalize(hint)
	var hintToken string
	if fields := strings.Fields(normalizedHint); len(fields) > 0 {
		hintToken = fields[0]
	}

	ranked := make([]ABRMatch, len(rows))
	for i, row := range rows {
		rowName := textnorm.Normalize(row.Name)
		rank := row.Relevance +
			textnorm.Jaccard(cleaned, rowName)*similarityWeight +
			textnorm.Jaccard(normalizedHint, rowName)*hintSimilarityWeight
		if strings.Contains(rowName, cleaned) {
			rank += containsWeight
		}
		if hintToken != "" && strings.Contains(rowName, hintToken) {
			rank += hintTokenWeight
		}
		if row.NameType == "Entity Name" {
			rank += entityNameWeight
		}
		row.Rank = rank
		ranked[i] = row
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rank > ranked[j].Rank })

	best := ranked[0]
	best.Confidence = model.ConfidenceHigh
	if len(ranked) > 1 && best.Rank-ranked[1].Rank < closeRankGap {
		best.Confidence = model.ConfidenceMedium
	}
	return &best
}

// parseABRDetails reads the labelled rows of an ABN detail page.
func parseABRDetails(page string) (*ABRDetails, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing ABN details page: %w", err)
	}
	values := make(map[string]string)
	walk(doc, func(n *html.Node) {
		if n.DataAtom != atom.Th {
			return
		}
		label := strings.ToLower(strings.TrimSuffix(textContent(n), ":"))
		label = strings.TrimSpace(label)
		if _, seen := values[label]; seen {
			return
		}
		if td := nextElement(n); td != nil && td.DataAtom == atom.Td {
			values[label] = textContent(td)
		}
	})
	return &ABRDetails{
		EntityName:           values["entity name"],
		ABNStatus:            values["abn status"],
		EntityType:           values["entity type"],
		GSTStatus:            values["goods & services tax (gst)"],
		MainBusinessLocation: values["main business location"],
	}, nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// textContent returns the whitespace-collapsed text below n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func uniqueNonEmpty(values []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
