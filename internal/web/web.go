package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"roomcal/internal/config"
	"roomcal/internal/export"
	appLog "roomcal/internal/log"
	"roomcal/internal/schedule"
	"roomcal/internal/source"
)

// DatasetLoader loads the schedule dataset from a location.
type DatasetLoader interface {
	Load(ctx context.Context, location string) (*source.Dataset, error)
}

// Server exposes the export engine over HTTP.
type Server struct {
	cfg      *config.Config
	loader   DatasetLoader
	exporter *export.Exporter
	router   chi.Router
	now      func() time.Time

	// Decoded dataset, reused until cfg.CacheTTL elapses or Invalidate is
	// called, so that every calendar request does not refetch the feed.
	datasetMu    sync.RWMutex
	datasetCache *datasetCache
}

type datasetCache struct {
	ds        *source.Dataset
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, loader DatasetLoader, exporter *export.Exporter) *Server {
	s := &Server{
		cfg:      cfg,
		loader:   loader,
		exporter: exporter,
		router:   chi.NewRouter(),
		now:      time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="roomcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves HTTP on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Route("/api/terms", func(r chi.Router) {
		r.Get("/", s.handleTerms)
		r.Route("/{term}", func(r chi.Router) {
			r.Get("/rooms", s.handleRooms)
			r.Get("/rooms/{room}", s.handleRoom)
			r.Get("/summary", s.handleSummary)
			r.Get("/bundle.zip", s.handleBundle)
		})
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Invalidate drops the cached dataset so the next request reloads it.
func (s *Server) Invalidate() {
	s.datasetMu.Lock()
	s.datasetCache = nil
	s.datasetMu.Unlock()
}

func (s *Server) dataset(ctx context.Context) (*source.Dataset, error) {
	now := s.now()

	s.datasetMu.RLock()
	dc := s.datasetCache
	s.datasetMu.RUnlock()
	if dc != nil && now.Sub(dc.updatedAt) < s.cfg.CacheTTL {
		return dc.ds, nil
	}

	ds, err := s.loader.Load(ctx, s.cfg.Source)
	if err != nil {
		return nil, err
	}

	s.datasetMu.Lock()
	s.datasetCache = &datasetCache{ds: ds, updatedAt: now}
	s.datasetMu.Unlock()
	return ds, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type termDTO struct {
	Term       string `json:"term"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Exceptions int    `json:"exceptions"`
	Rooms      int    `json:"rooms"`
}

func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	out := make([]termDTO, 0, len(ds.Terms))
	for _, t := range ds.Terms {
		out = append(out, termDTO{
			Term:       t.Term,
			StartDate:  t.StartDate.String(),
			EndDate:    t.EndDate.String(),
			Exceptions: len(t.Exceptions),
			Rooms:      len(ds.Rooms(t.Term)),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type roomsResponse struct {
	Term  string   `json:"term"`
	Rooms []string `json:"rooms"`
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return
	}
	term := urlParam(r, "term")
	if _, err := ds.Term(term); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, roomsResponse{Term: term, Rooms: ds.Rooms(term)})
}

type skipDTO struct {
	Session string `json:"session"`
	Pattern int    `json:"pattern"`
	Slot    string `json:"slot,omitempty"`
	Reason  string `json:"reason"`
}

type roomDTO struct {
	Room        string    `json:"room"`
	Filename    string    `json:"filename,omitempty"`
	Events      int       `json:"events"`
	Occurrences int       `json:"occurrences"`
	Skips       []skipDTO `json:"skips,omitempty"`
}

type summaryResponse struct {
	Term        string    `json:"term"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     string    `json:"summary"`
	Rooms       []roomDTO `json:"rooms"`
	Omitted     []roomDTO `json:"omitted,omitempty"`
}

func skipDTOs(skips []schedule.Skip) []skipDTO {
	if len(skips) == 0 {
		return nil
	}
	out := make([]skipDTO, len(skips))
	for i, sk := range skips {
		out[i] = skipDTO{Session: sk.SessionID, Pattern: sk.Pattern, Slot: sk.Slot, Reason: string(sk.Reason)}
	}
	return out
}

// handleRoom serves GET /api/terms/{term}/rooms/{room}. A room ending in
// ".ics" returns the calendar document; otherwise a JSON report.
func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	room := urlParam(r, "room")
	asCalendar := strings.HasSuffix(room, ".ics")
	room = strings.TrimSuffix(room, ".ics")

	req, ok := s.buildRequest(w, r, []string{room})
	if !ok {
		return
	}
	doc, err := s.exporter.ExportRoom(room, req)
	if err != nil {
		s.writeExportError(w, err)
		return
	}

	if !asCalendar {
		writeJSON(w, http.StatusOK, roomDTO{
			Room:        doc.Room,
			Filename:    doc.Filename,
			Events:      doc.Events,
			Occurrences: doc.Occurrences,
			Skips:       skipDTOs(doc.Skips),
		})
		return
	}
	if doc.Events == 0 {
		writeError(w, http.StatusNotFound, "no events for room "+room)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	res, ok := s.exportTerm(w, r)
	if !ok {
		return
	}
	resp := summaryResponse{
		Term:        res.Term,
		GeneratedAt: res.GeneratedAt,
		Summary:     res.Summary(),
		Rooms:       make([]roomDTO, 0, len(res.Documents)),
	}
	for _, d := range res.Documents {
		resp.Rooms = append(resp.Rooms, roomDTO{
			Room:        d.Room,
			Filename:    d.Filename,
			Events:      d.Events,
			Occurrences: d.Occurrences,
			Skips:       skipDTOs(d.Skips),
		})
	}
	for _, o := range res.Omitted {
		resp.Omitted = append(resp.Omitted, roomDTO{Room: o.Room, Skips: skipDTOs(o.Skips)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleBundle serves every room of the term (or the rooms named by
// repeated ?room= parameters) as one zip archive.
func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	res, ok := s.exportTerm(w, r)
	if !ok {
		return
	}
	if len(res.Documents) == 0 {
		writeError(w, http.StatusNotFound, "no events for the selected rooms")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBundle(&buf, res); err != nil {
		appLog.Error("bundle write failed", err, "term", res.Term)
		writeError(w, http.StatusInternalServerError, "failed to build bundle")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.BundleName(res.Term, res.GeneratedAt)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) exportTerm(w http.ResponseWriter, r *http.Request) (*export.Result, bool) {
	req, ok := s.buildRequest(w, r, r.URL.Query()["room"])
	if !ok {
		return nil, false
	}
	res, err := s.exporter.Export(r.Context(), req)
	if err != nil {
		s.writeExportError(w, err)
		return nil, false
	}
	return res, true
}

func (s *Server) buildRequest(w http.ResponseWriter, r *http.Request, rooms []string) (export.Request, bool) {
	ds, ok := s.loadDataset(w, r)
	if !ok {
		return export.Request{}, false
	}
	req, err := ds.Request(urlParam(r, "term"), rooms)
	if err != nil {
		if errors.Is(err, source.ErrUnknownTerm) {
			writeError(w, http.StatusNotFound, err.Error())
			return export.Request{}, false
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return export.Request{}, false
	}
	return req, true
}

func (s *Server) loadDataset(w http.ResponseWriter, r *http.Request) (*source.Dataset, bool) {
	ds, err := s.dataset(r.Context())
	if err != nil {
		appLog.Error("dataset load failed", err)
		writeError(w, http.StatusBadGateway, "failed to load schedule dataset")
		return nil, false
	}
	return ds, true
}

func (s *Server) writeExportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, export.ErrInvalidTerm), errors.Is(err, export.ErrNoRooms):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		appLog.Error("export failed", err)
		writeError(w, http.StatusInternalServerError, "export failed")
	}
}

func urlParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
