package lookup

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/enrich"
	"github.com/yanniedog/tax-return-from-pocketsmith-transaction-history/internal/logger"
)

// maxBodyBytes caps an enrichment request body.
const maxBodyBytes = 2 << 20

// DefaultOrigins are the browser origins allowed to call the service.
var DefaultOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// NewHandler routes the enrichment API to svc and wraps it in CORS.
func NewHandler(svc *Service, log zerolog.Logger, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}
	h := &handler{svc: svc, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+enrich.EnrichPath, h.enrich)
	mux.HandleFunc("GET "+enrich.HealthPath, h.health)

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
		},
	})
	return c.Handler(h.withLogger(mux))
}

// NewServer returns an HTTP server for handler on addr, accepting HTTP/2
// without TLS.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type handler struct {
	svc *Service
	log zerolog.Logger
}

func (h *handler) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.WithContext(r.Context(), h.log.With().Str("path", r.URL.Path).Logger())
		next.ServeHTTP(w, r.WithContext(ctx))
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (h *handler) enrich(w http.ResponseWriter, r *http.Request) {
	var req enrich.Request
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	items, err := h.svc.Enrich(r.Context(), req.Merchants, req.ForceRefresh)
	switch {
	case errors.Is(err, ErrNoMerchants):
		writeError(w, http.StatusBadRequest, "No merchants supplied.")
		return
	case errors.Is(err, ErrBatchTooLarge):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Batch too large. Limit %d merchants per request.", h.svc.MaxBatch()))
		return
	case err != nil:
		h.log.Error().Err(err).Msg("enriching merchants")
		writeError(w, http.StatusInternalServerError, "Enrichment failed.")
		return
	}
	writeJSON(w, http.StatusOK, enrich.Response{Items: items, Total: len(items)})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, enrich.Health{OK: true, CacheEntries: h.svc.CacheEntries()})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
