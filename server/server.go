package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"carspotter/models"
	"carspotter/scraper"
	"carspotter/storage"
	"carspotter/utils"
)

// CarFinder serves the ad-hoc listing search. Satisfied by *scraper.Engine.
type CarFinder interface {
	GetCars(ctx context.Context, q scraper.Query) ([]*models.Listing, error)
}

// Scanner runs one subscription scan. Satisfied by *services.Spotter.
type Scanner interface {
	Run(ctx context.Context) (*models.ScanSummary, error)
}

// Server holds dependencies for the HTTP handlers.
type Server struct {
	engine     CarFinder
	spotter    Scanner
	store      storage.Store
	logger     *utils.Logger
	scanSecret string
	mux        *http.ServeMux
}

// New wires up routes and returns a ready-to-use Server.
func New(engine CarFinder, spotter Scanner, store storage.Store, logger *utils.Logger, scanSecret string) *Server {
	srv := &Server{
		engine:     engine,
		spotter:    spotter,
		store:      store,
		logger:     logger,
		scanSecret: scanSecret,
		mux:        http.NewServeMux(),
	}
	srv.routes()
	return srv
}

// ServeHTTP makes Server satisfy the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /listings", s.handleListings)
	s.mux.HandleFunc("GET /scan", s.handleScan)
	s.mux.HandleFunc("GET /stats", s.handleStats)
}

// handleListings is the live aggregated search. Individual source failures
// degrade to fewer results, never to an error response.
func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	q := scraper.Query{
		Country:  valueOr(params.Get("country"), "all"),
		Brand:    params.Get("brand"),
		Model:    params.Get("model"),
		MinPrice: intParam(params.Get("minPrice")),
		MaxPrice: intParam(params.Get("maxPrice")),
		MinYear:  intParam(params.Get("minYear")),
		MaxYear:  intParam(params.Get("maxYear")),
	}

	cars, err := s.engine.GetCars(r.Context(), q)
	if err != nil {
		s.logger.Warn("[server] listing search degraded: %v", err)
		cars = []*models.Listing{}
	}
	if cars == nil {
		cars = []*models.Listing{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"cars": cars})
}

// handleScan triggers a subscription scan. When a scan secret is
// configured, non-manual invocations must present it as a bearer token.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	manual := r.URL.Query().Get("manual") == "true"
	if s.scanSecret != "" && !manual && !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	summary, err := s.spotter.Run(r.Context())
	if err != nil {
		s.logger.Error("[server] scan failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "failed to perform spotting check",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       fmt.Sprintf("Spotting check complete. Found %d new matches.", summary.NewMatches),
		"executionTime": fmt.Sprintf("%dms", summary.Elapsed.Milliseconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	total, err := s.store.CountListings(ctx)
	if err != nil {
		s.logger.Error("[server] stats query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch stats"})
		return
	}

	lastPulse, err := s.store.LatestCheck(ctx)
	if err != nil {
		s.logger.Error("[server] last pulse query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch stats"})
		return
	}

	writeJSON(w, http.StatusOK, models.Stats{
		TotalListings: total,
		LastPulse:     lastPulse,
		SystemStatus:  "Operational",
	})
}

func (s *Server) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return ok && token == s.scanSecret
}

// ---------- Helpers ----------

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func intParam(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
