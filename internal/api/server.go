// Package api provides the HTTP API for resolving and drawing bodygraphs.
// GET endpoints are public reference data. Chart endpoints are POSTs
// rate-limited per client IP; cache maintenance requires a bearer token.
package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/bodygraph/internal/bodygraph"
	"github.com/talgya/bodygraph/internal/config"
	"github.com/talgya/bodygraph/internal/persistence"
	"github.com/talgya/bodygraph/internal/render"
	"github.com/talgya/bodygraph/internal/svg"
)

const (
	maxBodyBytes = 1 << 20
	maxWidth     = 8192
)

// Render formats, used as cache and metric labels.
const (
	FormatSVG   = "svg"
	FormatScene = "scene"
)

// Server serves the resolver and the compositor over HTTP.
type Server struct {
	Config     *config.Config
	Compositor *render.Compositor
	Cache      *persistence.DB // nil = caching disabled
	Version    string

	started time.Time
	limiter *RateLimiter
	metrics *metrics
	handler http.Handler
}

// NewServer wires the routes. cache may be nil.
func NewServer(cfg *config.Config, comp *render.Compositor, cache *persistence.DB, version string) *Server {
	s := &Server{
		Config:     cfg,
		Compositor: comp,
		Cache:      cache,
		Version:    version,
		started:    time.Now(),
		limiter:    NewRateLimiter(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window),
		metrics:    newMetrics(),
	}

	mux := http.NewServeMux()

	// Public reference endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/reference", s.handleReference)
	mux.Handle("GET /metrics", s.metrics.handler())

	// Chart endpoints (rate-limited).
	mux.HandleFunc("POST /api/v1/resolve", s.limited(s.handleResolve))
	mux.HandleFunc("POST /api/v1/scene", s.limited(s.handleScene))
	mux.HandleFunc("POST /api/v1/bodygraph.svg", s.limited(s.handleSVG))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/cache/purge", s.adminOnly(s.handlePurge))

	s.handler = requestIDMiddleware(corsMiddleware(cfg.Server.CORSOrigins, mux))
	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr,
		"admin_auth", s.Config.Server.AdminKey != "",
		"cache", s.Cache != nil,
		"render_version", s.Compositor.Version())

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("HTTP API shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close releases background resources. It does not close the cache.
func (s *Server) Close() {
	s.limiter.Close()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		allowedOrigins[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Cache")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestIDMiddleware tags every request with a UUID, reusing a valid
// incoming X-Request-ID, and logs the request at debug level.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", id)
	})
}

func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return RateLimitMiddleware(s.limiter, s.metrics.rateLimited.Inc, next)
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(token), []byte(s.Config.Server.AdminKey)) == 1
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.Config.Server.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no BODYGRAPH_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cache := map[string]any{"enabled": s.Cache != nil}
	if s.Cache != nil {
		st, err := s.Cache.Stats()
		if err != nil {
			slog.Warn("cache stats failed", "error", err, "request_id", RequestID(r.Context()))
		} else {
			cache["entries"] = st.Entries
			cache["size"] = humanize.Bytes(uint64(st.Bytes))
			cache["hits"] = humanize.Comma(st.Hits)
			cache["misses"] = humanize.Comma(st.Misses)
		}
	}

	status := map[string]any{
		"name":           "bodygraph",
		"version":        s.Version,
		"render_version": s.Compositor.Version(),
		"started":        humanize.Time(s.started),
		"uptime":         time.Since(s.started).Round(time.Second).String(),
		"gates":          int(bodygraph.MaxGate),
		"channels":       bodygraph.ChannelCount,
		"centers":        len(bodygraph.AllCenters),
		"cache":          cache,
	}
	writeJSON(w, status)
}

func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, BuildReference(s.Compositor.Geometry))
}

// ResolveResponse is the body of POST /api/v1/resolve.
type ResolveResponse struct {
	Gates          []GateActivation     `json:"gates"`
	Channels       []ActiveChannel      `json:"channels"`
	Centers        []bodygraph.CenterID `json:"centers"`
	Hanging        []bodygraph.Gate     `json:"hanging"`
	CentersDerived bool                 `json:"centers_derived"`
	Dropped        int                  `json:"dropped"`
}

// GateActivation is one active gate.
type GateActivation struct {
	Gate   bodygraph.Gate     `json:"gate"`
	Source bodygraph.Source   `json:"source"`
	Center bodygraph.CenterID `json:"center"`
}

// ActiveChannel is one complete channel with its drawing style.
type ActiveChannel struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Style string `json:"style"` // "mixed" or the single source name
}

func newResolveResponse(res bodygraph.Resolution) ResolveResponse {
	out := ResolveResponse{
		Gates:          []GateActivation{},
		Channels:       []ActiveChannel{},
		Centers:        append([]bodygraph.CenterID{}, res.Centers...),
		Hanging:        append([]bodygraph.Gate{}, res.Hanging...),
		CentersDerived: res.CentersDerived,
		Dropped:        res.Dropped,
	}
	for g := bodygraph.MinGate; g <= bodygraph.MaxGate; g++ {
		src := res.Activations.Source(g)
		if !src.Active() {
			continue
		}
		center, _ := bodygraph.CenterOf(g)
		out.Gates = append(out.Gates, GateActivation{Gate: g, Source: src, Center: center})
	}
	for _, ch := range res.Channels {
		info, _ := bodygraph.LookupChannel(ch)
		style := bodygraph.ChannelStyleOf(res.Activations.Source(ch.A), res.Activations.Source(ch.B))
		name := "mixed"
		if !style.Mixed {
			name = style.Source.String()
		}
		out.Channels = append(out.Channels, ActiveChannel{Key: ch.Key(), Name: info.Name, Style: name})
	}
	return out
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	res, ok := s.decodeChart(w, r)
	if !ok {
		return
	}
	writeJSON(w, newResolveResponse(res))
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	res, ok := s.decodeChart(w, r)
	if !ok {
		return
	}
	body, outcome, err := s.render(FormatScene, 0, res, func() ([]byte, error) {
		return json.Marshal(s.Compositor.Compose(res))
	})
	if err != nil {
		s.renderFailed(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", outcome)
	w.Write(body)
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	width, err := s.outputWidth(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, ok := s.decodeChart(w, r)
	if !ok {
		return
	}
	body, outcome, err := s.render(FormatSVG, width, res, func() ([]byte, error) {
		var buf bytes.Buffer
		if err := svg.Encode(&buf, s.Compositor.Compose(res), svg.Options{Width: width}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		s.renderFailed(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("X-Cache", outcome)
	w.Write(body)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if s.Cache == nil {
		http.Error(w, "render cache disabled", http.StatusConflict)
		return
	}
	n, err := s.Cache.Purge()
	if err != nil {
		slog.Error("cache purge failed", "error", err, "request_id", RequestID(r.Context()))
		http.Error(w, "purge failed", http.StatusInternalServerError)
		return
	}
	slog.Info("render cache purged", "entries", n)
	writeJSON(w, map[string]any{"purged": n})
}

// decodeChart reads a chart body and resolves it. On failure it writes the
// error response and returns false.
func (s *Server) decodeChart(w http.ResponseWriter, r *http.Request) (bodygraph.Resolution, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var chart bodygraph.Chart
	if err := json.NewDecoder(r.Body).Decode(&chart); err != nil {
		http.Error(w, "invalid chart: "+err.Error(), http.StatusBadRequest)
		return bodygraph.Resolution{}, false
	}
	res := bodygraph.Resolve(chart)
	if res.Dropped > 0 {
		s.metrics.dropped.Add(float64(res.Dropped))
	}
	return res, true
}

// outputWidth reads ?width=N, falling back to ?size=screen|export.
func (s *Server) outputWidth(r *http.Request) (int, error) {
	q := r.URL.Query()
	if v := q.Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxWidth {
			return 0, fmt.Errorf("width must be an integer in [1..%d]", maxWidth)
		}
		return n, nil
	}
	switch q.Get("size") {
	case "", "screen":
		return s.Config.Render.ScreenWidth, nil
	case "export":
		return s.Config.Render.ExportWidth, nil
	}
	return 0, fmt.Errorf("size must be screen or export")
}

// render returns the encoded output for res, going through the cache when
// one is configured. The outcome is "hit", "miss" or "bypass".
func (s *Server) render(format string, width int, res bodygraph.Resolution, produce func() ([]byte, error)) ([]byte, string, error) {
	start := time.Now()
	defer func() {
		s.metrics.duration.WithLabelValues(format).Observe(time.Since(start).Seconds())
	}()

	if s.Cache == nil {
		body, err := produce()
		if err != nil {
			return nil, "", err
		}
		s.metrics.renders.WithLabelValues(format, "bypass").Inc()
		return body, "bypass", nil
	}

	key := CacheKey(s.Compositor.Version(), format, width, res)
	body, hit, err := s.Cache.Get(key)
	if err != nil {
		slog.Warn("render cache read failed", "error", err)
	} else if hit {
		s.metrics.renders.WithLabelValues(format, "hit").Inc()
		return body, "hit", nil
	}

	body, err = produce()
	if err != nil {
		return nil, "", err
	}
	if err := s.Cache.Put(key, format, body); err != nil {
		slog.Warn("render cache write failed", "error", err)
	}
	s.metrics.renders.WithLabelValues(format, "miss").Inc()
	return body, "miss", nil
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("render failed", "error", err, "request_id", RequestID(r.Context()))
	http.Error(w, "render failed", http.StatusInternalServerError)
}

// CacheKey hashes everything a render depends on: the compositor version,
// the output format and width, the active gates and the defined centers.
// Charts that differ only in alias spelling or dropped entries share a key.
func CacheKey(version, format string, width int, res bodygraph.Resolution) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d\n", version, format, width)
	for g := bodygraph.MinGate; g <= bodygraph.MaxGate; g++ {
		if src := res.Activations.Source(g); src.Active() {
			fmt.Fprintf(h, "%d:%s;", g, src)
		}
	}
	h.Write([]byte{'\n'})
	centers := slices.Clone(res.Centers)
	slices.Sort(centers)
	for _, c := range centers {
		fmt.Fprintf(h, "%s;", c)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
