package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/enrich"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/model"
)

const abrSearchPage = `<html><body><form>
<input type="hidden" id="Results_NameItems_0__Compressed" value="51 824 753 556,x,x,Active,x,OFFICEWORKS LTD,t0,t1,Entity Name,t3,VIC 3146,VIC,3146,100">
<input type="hidden" id="Results_NameItems_1__Compressed" value="11 222 333 444,x,x,Active,x,OFFICE WORKS CAFE,t0,t1,Business Name,t3,NSW 2000,NSW,2000,98">
<input type="hidden" id="Results_NameItems_1__Other" value="ignored">
</form></body></html>`

const abrDetailsPage = `<html><body><table>
<tr><th>Entity name:</th><td>OFFICEWORKS LTD</td></tr>
<tr><th>ABN status:</th><td>Active from 01 Nov 1999</td></tr>
<tr><th>Entity type:</th><td><a href="#">Australian Private Company</a></td></tr>
<tr><th>Main business location:</th><td><div>VIC&nbsp;3146</div></td></tr>
</table></body></html>`

const searchPage = `<html><body>
<div class="result results_links"><h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.officeworks.com.au%2F&amp;rut=x">Officeworks <b>Stationery</b></a></h2>
<a class="result__snippet" href="#">Office supplies and stationery.</a></div>
<div class="result"><a class="result__a" href="https://example.com/untitled"></a></div>
</body></html>`

type upstream struct {
	srv   *httptest.Server
	calls atomic.Int32
}

func newUpstream(t *testing.T, status int) *upstream {
	t.Helper()
	u := &upstream{}
	mux := http.NewServeMux()
	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			u.calls.Add(1)
			assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
			if status != http.StatusOK {
				w.WriteHeader(status)
				return
			}
			_, _ = w.Write([]byte(body))
		}
	}
	mux.HandleFunc("/Search/ResultsActive", page(abrSearchPage))
	mux.HandleFunc("/ABN/View", page(abrDetailsPage))
	mux.HandleFunc("/html/", page(searchPage))
	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

type memStore struct{ saved []model.MerchantIntel }

func (m *memStore) Save(_ context.Context, items []model.MerchantIntel) error {
	m.saved = append(m.saved, items...)
	return nil
}

type staticSource []model.MerchantIntel

func (s staticSource) All(context.Context) ([]model.MerchantIntel, error) { return s, nil }

var fixedNow = time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)

func newService(u *upstream, store enrich.Saver, maxBatch int) *Service {
	return NewService(Options{
		Fetcher:       NewFetcher(u.srv.Client(), 0, time.Second),
		ABRBaseURL:    u.srv.URL,
		SearchBaseURL: u.srv.URL,
		MaxBatch:      maxBatch,
		Store:         store,
		Now:           func() time.Time { return fixedNow },
	})
}

func TestParseCompressedRow(t *testing.T) {
	row, ok := parseCompressedRow("51 824 753 556,x,x,Active,x,SMITH, JONES & CO,t0,t1,Business Name,t3,VIC 3000,VIC,3000,87")
	require.True(t, ok)
	assert.Equal(t, "51824753556", row.ABN)
	assert.Equal(t, "Active", row.Status)
	assert.Equal(t, "SMITH, JONES & CO", row.Name)
	assert.Equal(t, "Business Name", row.NameType)
	assert.Equal(t, "VIC 3000", row.Location)
	assert.Equal(t, "VIC", row.State)
	assert.Equal(t, "3000", row.Postcode)
	assert.Equal(t, 87.0, row.Relevance)

	_, ok = parseCompressedRow("too,few,parts")
	assert.False(t, ok)
	_, ok = parseCompressedRow(" ,x,x,Active,x,NAME,t0,t1,Entity Name,t3,VIC,VIC,3000,1")
	assert.False(t, ok)
}

func TestParseABRSearch(t *testing.T) {
	rows, err := parseABRSearch(abrSearchPage)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "OFFICEWORKS LTD", rows[0].Name)
	assert.Equal(t, "OFFICE WORKS CAFE", rows[1].Name)
}

func TestRankABR(t *testing.T) {
	rows, err := parseABRSearch(abrSearchPage)
	require.NoError(t, err)

	best := rankABR(rows, "officeworks", "officeworks")
	require.NotNil(t, best)
	assert.Equal(t, "OFFICEWORKS LTD", best.Name)
	assert.InDelta(t, 158.0, best.Rank, 0.001)
	assert.Equal(t, model.ConfidenceHigh, best.Confidence)

	tied := rankABR([]ABRMatch{
		{ABN: "1", Name: "ACME", NameType: "Entity Name", Relevance: 99},
		{ABN: "2", Name: "ACME", NameType: "Entity Name", Relevance: 100},
	}, "acme", "acme")
	require.NotNil(t, tied)
	assert.Equal(t, "2", tied.ABN)
	assert.Equal(t, model.ConfidenceMedium, tied.Confidence)

	assert.Nil(t, rankABR(nil, "acme", "acme"))
}

func TestParseABRDetails(t *testing.T) {
	d, err := parseABRDetails(abrDetailsPage)
	require.NoError(t, err)
	assert.Equal(t, "OFFICEWORKS LTD", d.EntityName)
	assert.Equal(t, "Active from 01 Nov 1999", d.ABNStatus)
	assert.Equal(t, "Australian Private Company", d.EntityType)
	assert.Equal(t, "VIC 3146", d.MainBusinessLocation)
	assert.Empty(t, d.GSTStatus)
}

func TestBuildABRQueries(t *testing.T) {
	assert.Equal(t, []string{
		"the officeworks pty ltd sydney",
		"the officeworks pty ltd",
		"the officeworks pty",
		"the officeworks",
		"the",
		"officeworks sydney",
		"officeworks",
	}, BuildABRQueries("The Officeworks Pty Ltd Sydney"))
	assert.Equal(t, []string{"acme"}, BuildABRQueries("ACME"))
	assert.Nil(t, BuildABRQueries("  "))
}

func TestParseSearchResults(t *testing.T) {
	results, err := parseSearchResults(searchPage)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Officeworks Stationery", results[0].Title)
	assert.Equal(t, "https://www.officeworks.com.au/", results[0].URL)
	assert.Equal(t, "Office supplies and stationery.", results[0].Snippet)
}

func TestParseSearchResults_CapsAtEight(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString(`<a class="result__a" href="https://example.com/">Result</a>`)
	}
	results, err := parseSearchResults(b.String())
	require.NoError(t, err)
	assert.Len(t, results, 8)
}

func TestUnwrapSearchURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.officeworks.com.au%2F&rut=abc", "https://www.officeworks.com.au/"},
		{"https://example.com/a", "https://example.com/a"},
		{"//example.com/b", "https://example.com/b"},
		{"", ""},
		{"://bad", "://bad"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UnwrapSearchURL(tt.in), tt.in)
	}
}

func TestClassify(t *testing.T) {
	cats := DefaultCategories()
	abn := &ABRMatch{ABN: "51824753556", Name: "ZZQ PTY LTD"}

	tests := []struct {
		name       string
		evidence   Evidence
		category   string
		bizType    string
		confidence model.Confidence
		reason     string
	}{
		{
			name:       "no text",
			evidence:   Evidence{},
			category:   model.CategoryUnknown,
			bizType:    "Unknown",
			confidence: model.ConfidenceLow,
			reason:     "No merchant text available for classification.",
		},
		{
			name:       "merchant keyword counts twice",
			evidence:   Evidence{MerchantRaw: "OFFICEWORKS 0123", LookupName: "officeworks"},
			category:   "office_supplies",
			bizType:    "Office supplies / stationery retail",
			confidence: model.ConfidenceMedium,
			reason:     "Matched merchant/profile keywords for Office supplies / stationery retail.",
		},
		{
			name: "search evidence and abn",
			evidence: Evidence{
				MerchantRaw: "OFFICEWORKS 0123",
				LookupName:  "officeworks",
				ABR:         &ABRMatch{ABN: "51824753556", Name: "OFFICEWORKS LTD"},
				Search: &SearchResults{Results: []SearchResult{
					{Title: "Officeworks", Snippet: "Office supplies and stationery."},
				}},
			},
			category:   "office_supplies",
			bizType:    "Office supplies / stationery retail",
			confidence: model.ConfidenceHigh,
			reason:     "Matched merchant/profile keywords for Office supplies / stationery retail. ABN match found in ABR results.",
		},
		{
			name: "abn without keyword",
			evidence: Evidence{
				MerchantRaw: "ZZQ 123",
				LookupName:  "zzq",
				ABR:         abn,
				Details:     &ABRDetails{EntityName: "ZZQ PTY LTD", EntityType: "Australian Private Company"},
			},
			category:   model.CategoryUnknown,
			bizType:    "Australian Private Company",
			confidence: model.ConfidenceMedium,
			reason:     "ABN found but business activity type was not confidently inferred from search text.",
		},
		{
			name:       "nothing matched",
			evidence:   Evidence{MerchantRaw: "QWZX"},
			category:   model.CategoryUnknown,
			bizType:    "Unknown",
			confidence: model.ConfidenceLow,
			reason:     "No reliable keyword match from ABR/web sources.",
		},
		{
			name:       "tie keeps earlier rule",
			evidence:   Evidence{MerchantRaw: "salary hospital"},
			category:   "employment_income",
			bizType:    "Employer payroll source",
			confidence: model.ConfidenceMedium,
			reason:     "Matched merchant/profile keywords for Employer payroll source.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cats.Classify(tt.evidence)
			assert.Equal(t, tt.category, v.Category)
			assert.Equal(t, tt.bizType, v.BusinessType)
			assert.Equal(t, tt.confidence, v.Confidence)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestParseCategories(t *testing.T) {
	_, err := ParseCategories([]byte("version: 2\nrules: []\n"))
	assert.ErrorContains(t, err, "unsupported categories version 2")

	_, err = ParseCategories([]byte("version: 1\nrules:\n  - category: x\n"))
	assert.ErrorContains(t, err, "rule 1")

	cats := DefaultCategories()
	assert.Len(t, cats.Rules, 18)
	assert.Equal(t, 4, cats.Scoring.HighScore)
}

func TestDedupe(t *testing.T) {
	got := Dedupe([]model.MerchantRequest{
		{Merchant: "UBER EATS SYDNEY"},
		{LookupKey: "uber eats", Merchant: "Uber Eats 2"},
		{},
		{LookupKey: " acme "},
	})
	assert.Equal(t, []model.MerchantRequest{
		{LookupKey: "uber eats", Merchant: "UBER EATS SYDNEY"},
		{LookupKey: "acme", Merchant: "acme"},
	}, got)
}

func TestService_Enrich(t *testing.T) {
	u := newUpstream(t, http.StatusOK)
	store := &memStore{}
	svc := newService(u, store, 0)

	items, err := svc.Enrich(context.Background(), []model.MerchantRequest{
		{LookupKey: "officeworks", Merchant: "OFFICEWORKS 0123"},
		{LookupKey: "officeworks", Merchant: "OFFICEWORKS 9999"},
	}, false)
	require.NoError(t, err)
	require.Len(t, items, 1)

	got := items[0]
	assert.Equal(t, "officeworks", got.LookupKey)
	assert.Equal(t, "OFFICEWORKS 0123", got.MerchantRaw)
	assert.Equal(t, "officeworks", got.MerchantLookupName)
	assert.Equal(t, "office_supplies", got.BusinessCategory)
	assert.Equal(t, "high", got.ClassificationConfidence)
	assert.Equal(t, "51824753556", got.ABN)
	assert.Equal(t, "OFFICEWORKS LTD", got.ABNName)
	assert.Equal(t, "Australian Private Company", got.ABNEntityType)
	assert.Equal(t, "Active from 01 Nov 1999", got.ABNStatus)
	assert.Equal(t, "VIC 3146", got.MainPlaceOfBusiness)
	assert.Equal(t, fixedNow, got.UpdatedAt)
	require.Len(t, got.SourceURLs, 4)
	assert.Equal(t, u.srv.URL+"/Search/ResultsActive?SearchText=officeworks", got.SourceURLs[0])
	assert.Equal(t, u.srv.URL+"/ABN/View?abn=51824753556", got.SourceURLs[1])
	assert.Equal(t, "https://www.officeworks.com.au/", got.SourceURLs[3])

	assert.Equal(t, 1, svc.CacheEntries())
	assert.Len(t, store.saved, 1)

	calls := u.calls.Load()
	_, err = svc.Enrich(context.Background(), []model.MerchantRequest{{LookupKey: "officeworks"}}, false)
	require.NoError(t, err)
	assert.Equal(t, calls, u.calls.Load(), "cached merchants are not looked up again")

	_, err = svc.Enrich(context.Background(), []model.MerchantRequest{{LookupKey: "officeworks"}}, true)
	require.NoError(t, err)
	assert.Greater(t, u.calls.Load(), calls)
}

func TestService_UpstreamErrorsStillClassify(t *testing.T) {
	u := newUpstream(t, http.StatusBadGateway)
	svc := newService(u, nil, 0)

	items, err := svc.Enrich(context.Background(), []model.MerchantRequest{{Merchant: "OFFICEWORKS 0123"}}, false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "office_supplies", items[0].BusinessCategory)
	assert.Equal(t, "medium", items[0].ClassificationConfidence)
	assert.Empty(t, items[0].ABN)
	assert.Equal(t, []string{}, items[0].SourceURLs)
}

func TestService_CancelledLookupDegrades(t *testing.T) {
	u := newUpstream(t, http.StatusOK)
	svc := newService(u, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items, err := svc.Enrich(ctx, []model.MerchantRequest{{LookupKey: "acme", Merchant: "ACME"}}, false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "acme", items[0].LookupKey)
	assert.Equal(t, FailedBusinessType, items[0].BusinessType)
	assert.Equal(t, model.CategoryUnknown, items[0].BusinessCategory)
	assert.Equal(t, "low", items[0].ClassificationConfidence)
	assert.Contains(t, items[0].ClassificationReason, "context canceled")
	assert.Equal(t, 0, svc.CacheEntries())
}

func TestService_BatchLimits(t *testing.T) {
	u := newUpstream(t, http.StatusOK)
	svc := newService(u, nil, 2)

	_, err := svc.Enrich(context.Background(), nil, false)
	assert.ErrorIs(t, err, ErrNoMerchants)

	_, err = svc.Enrich(context.Background(), make([]model.MerchantRequest, 3), false)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
	assert.Zero(t, u.calls.Load())
}

func TestService_Warm(t *testing.T) {
	u := newUpstream(t, http.StatusOK)
	svc := newService(u, nil, 0)
	require.NoError(t, svc.Warm(context.Background(), staticSource{
		{LookupKey: "acme", BusinessCategory: "general_retail"},
	}))

	items, err := svc.Enrich(context.Background(), []model.MerchantRequest{{LookupKey: "acme"}}, false)
	require.NoError(t, err)
	assert.Equal(t, "general_retail", items[0].BusinessCategory)
	assert.Zero(t, u.calls.Load())
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler(t *testing.T) {
	u := newUpstream(t, http.StatusOK)
	svc := newService(u, nil, 2)
	require.NoError(t, svc.Warm(context.Background(), staticSource{
		{LookupKey: "acme", BusinessCategory: "general_retail"},
	}))
	h := NewHandler(svc, zerolog.Nop(), nil)

	t.Run("empty batch", func(t *testing.T) {
		rec := serve(t, h, http.MethodPost, enrich.EnrichPath, `{"merchants":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"No merchants supplied."}`, rec.Body.String())
	})

	t.Run("too large", func(t *testing.T) {
		rec := serve(t, h, http.MethodPost, enrich.EnrichPath, `{"merchants":[{"merchant":"a"},{"merchant":"b"},{"merchant":"c"}]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Batch too large. Limit 2 merchants per request."}`, rec.Body.String())
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := serve(t, h, http.MethodPost, enrich.EnrichPath, `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cached item", func(t *testing.T) {
		rec := serve(t, h, http.MethodPost, enrich.EnrichPath, `{"merchants":[{"lookupKey":"acme","merchant":"ACME"}]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

		var resp enrich.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Total)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "general_retail", resp.Items[0].BusinessCategory)
	})

	t.Run("health", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, enrich.HealthPath, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"ok":true,"cacheEntries":1}`, rec.Body.String())
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, enrich.EnrichPath, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHandler_WithHTTPClient(t *testing.T) {
	u := newUpstream(t, http.StatusOK)
	svc := newService(u, nil, 0)
	srv := httptest.NewServer(NewHandler(svc, zerolog.Nop(), nil))
	defer srv.Close()

	client := enrich.NewHTTPClient(srv.URL, 5*time.Second)
	items, err := client.Enrich(context.Background(), []model.MerchantRequest{{LookupKey: "officeworks", Merchant: "OFFICEWORKS 0123"}}, false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "office_supplies", items[0].BusinessCategory)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, enrich.Health{OK: true, CacheEntries: 1}, health)
}
