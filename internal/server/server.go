// Package server is the HTTP surface of parcelgrid: it serves the plot
// editor's static files, accepts edited documents and takes lead
// submissions from the public site.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/matzehuels/parcelgrid/pkg/buildinfo"
	"github.com/matzehuels/parcelgrid/pkg/errors"
	"github.com/matzehuels/parcelgrid/pkg/notify"
	"github.com/matzehuels/parcelgrid/pkg/parcel"
	"github.com/matzehuels/parcelgrid/pkg/pipeline"
	"github.com/matzehuels/parcelgrid/pkg/store"
)

const (
	// DefaultAddr matches the port the editor is usually opened on.
	DefaultAddr = ":8090"

	// DefaultMaxBodyBytes caps request bodies; a full village document
	// is a few megabytes.
	DefaultMaxBodyBytes int64 = 32 << 20

	shutdownTimeout = 10 * time.Second
)

// Config configures the server. Zero values select the defaults.
type Config struct {
	Addr           string   `toml:"addr"`
	StaticDir      string   `toml:"static_dir"`
	RequestLog     string   `toml:"request_log"`
	AllowedOrigins []string `toml:"allowed_origins"`
	MaxBodyBytes   int64    `toml:"max_body_bytes"`

	// Options are used by the row, classify and align endpoints.
	Options pipeline.Options `toml:"-"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.RequestLog == "" {
		c.RequestLog = notify.DefaultRequestLog
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// Server handles document and lead requests against one document store.
type Server struct {
	cfg      Config
	store    store.Store
	notifier notify.Notifier
	requests *notify.FileNotifier
	runner   *pipeline.Runner
	logger   *log.Logger
	handler  http.Handler

	// mu serializes every write to the document.
	mu sync.Mutex
}

// New creates a server backed by st. notifier may be nil, in which case
// leads are only appended to the request log.
func New(cfg Config, st store.Store, notifier notify.Notifier, logger *log.Logger) *Server {
	cfg.SetDefaults()
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		cfg:      cfg,
		store:    st,
		notifier: notifier,
		requests: notify.NewFileNotifier(cfg.RequestLog),
		runner:   pipeline.NewRunner(logger),
		logger:   logger,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "addr", s.cfg.Addr, "document", s.store.Location(), "static", s.cfg.StaticDir)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errc
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP, requestLogger(s.logger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	// Editor endpoints.
	r.Get("/plotsData.json", s.handleGetPlots)
	r.Post("/save-plots", s.handleSavePlots)
	r.Post("/send-request", s.handleSendRequest)

	r.Route("/api", func(r chi.Router) {
		r.Get("/plots", s.handleGetPlots)
		r.Get("/rows", s.handleRows)
		r.Get("/classify", s.handleClassify)
		r.Post("/align", s.handleAlign)
	})

	if s.cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
	return r
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) handleGetPlots(w http.ResponseWriter, r *http.Request) {
	doc, err := store.Load(r.Context(), s.store)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := parcel.Encode(doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleSavePlots replaces the document with the request body. The body is
// validated as a whole before anything is written.
func (s *Server) handleSavePlots(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := parcel.Decode(body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	err = store.Save(r.Context(), s.store, doc)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("saved document", "parcels", len(doc), "destination", s.store.Location())
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// leadRequest is the payload of the site's contact form. plotId arrives as
// a string or as a number depending on the page that sent it.
type leadRequest struct {
	Name   string          `json:"name"`
	Phone  string          `json:"phone"`
	PlotID json.RawMessage `json:"plotId"`
	Type   string          `json:"type"`
}

// handleSendRequest records a lead and notifies the configured sinks. The
// request log is the record of truth: failing to append to it fails the
// request, while notification failures are only logged.
func (s *Server) handleSendRequest(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req leadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "request body is not a JSON object"))
		return
	}
	plot, err := plotText(req.PlotID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	lead, err := notify.NewLead(req.Name, req.Phone, plot, req.Type)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := notify.Deliver(r.Context(), s.requests, lead); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.notifier != nil {
		if err := notify.Deliver(r.Context(), s.notifier, lead); err != nil {
			s.logger.Error("lead notification failed", "id", lead.ID, "sink", s.notifier.Name(), "err", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Request processed"})
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	rep, err := s.runner.Inspect(r.Context(), s.store, s.cfg.Options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	outcomes, st, err := s.runner.Classify(r.Context(), s.store, s.cfg.Options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": st, "parcels": outcomes})
}

// handleAlign runs the alignment against the served document. With
// ?dry_run=true the result is reported but not saved.
func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "dry_run must be a boolean, got %q", v))
			return
		}
		dryRun = b
	}

	s.mu.Lock()
	res, err := s.runner.Align(r.Context(), s.store, nil, s.cfg.Options, dryRun)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"dryRun":  dryRun,
		"stats":   res.Stats,
		"skipped": res.Skipped(),
	})
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.New(errors.ErrCodeInvalidInput, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read request body")
	}
	return body, nil
}

// plotText renders a plotId value as text: strings are unquoted, numbers
// keep their JSON spelling, null and absent are empty.
func plotText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "plotId")
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "plotId")
		}
		return n.String(), nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "plotId must be a string or a number")
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "code", errors.GetCode(err), "err", errors.UserMessage(err))
	}
	writeJSON(w, status, map[string]string{"status": "error", "message": errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}
