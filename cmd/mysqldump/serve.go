package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ruslano69/tdtp-mysqldump/pkg/audit"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dump"
	"github.com/ruslano69/tdtp-mysqldump/pkg/dumperr"
	"github.com/ruslano69/tdtp-mysqldump/pkg/resilience"
	"github.com/ruslano69/tdtp-mysqldump/pkg/security"
	"github.com/ruslano69/tdtp-mysqldump/pkg/writer"
)

// NewRouter wires the dump server routes.
//
//	GET /healthz
//	GET /metrics
//	GET /audit?dump_id=...&operation=data&status=failure&since=2026-01-02T15:04:05Z&limit=100
//	GET /dump?tables=a,b&exclude=0&schema=1&data=1&triggers=1&procedures=0&max_rows=100&where=users:id>10
func NewRouter(p *Pipeline) http.Handler {
	r := chi.NewRouter()

	r.Use(zerologMiddleware(p.log))
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/healthz", handleHealthz)
		if m := p.Metrics(); m != nil {
			r.Method(http.MethodGet, "/metrics", m.Handler())
		}
		if store := p.AuditStore(); store != nil {
			r.Get("/audit", handleAudit(store))
		}
	})

	r.Get("/dump", handleDump(p))

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAudit serves entries from the audit table, newest first
func handleAudit(store *audit.DatabaseAppender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := audit.QueryFilter{
			DumpID:     q.Get("dump_id"),
			Operation:  audit.Operation(q.Get("operation")),
			Status:     audit.Status(q.Get("status")),
			Object:     q.Get("object"),
			ErrorClass: q.Get("error_class"),
			Limit:      100,
		}
		if v := q.Get("since"); v != "" {
			since, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since: %q", v))
				return
			}
			filter.Since = since
		}
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 1000 {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit: %q", v))
				return
			}
			filter.Limit = n
		}

		entries, err := store.Query(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entries == nil {
			entries = []*audit.Entry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
	}
}

// handleDump streams the dump into the response body.
// The next row is read only after the previous chunk was written to the client.
func handleDump(p *Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := dumpOptionsFromQuery(p.cfg, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx := r.Context()
		if p.cfg.Server.WriteTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.Server.WriteTimeout)
			defer cancel()
		}

		out := &responseStream{w: w, filename: p.cfg.Database.Name() + ".sql"}
		opts.Stream = out

		res, dumpErr := p.Dump(ctx, opts)
		if err := p.Finish(ctx, res, dumpErr); err != nil {
			p.log.Warn().Err(err).Msg("post-dump steps failed")
		}

		if dumpErr == nil {
			if !out.started {
				out.start()
			}
			return
		}

		if !out.started {
			writeError(w, statusFor(dumpErr), dumpErr.Error())
			return
		}
		// Headers are gone; leave a marker the mysql client reports as a comment
		fmt.Fprintf(w, "\n-- dump failed (%s): %v\n", dumperr.Class(dumpErr), dumpErr)
	}
}

// responseStream sends headers on the first chunk and flushes every chunk
type responseStream struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (s *responseStream) start() {
	h := s.w.Header()
	h.Set("Content-Type", "application/sql; charset=utf-8")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.filename))
	h.Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

func (s *responseStream) Write(b []byte) (int, error) {
	if !s.started {
		s.start()
	}
	n, err := s.w.Write(b)
	if err != nil {
		return n, err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, nil
}

// dumpOptionsFromQuery applies query parameters on top of the configured dump
func dumpOptionsFromQuery(cfg *Config, r *http.Request) (dump.Options, error) {
	q := r.URL.Query()
	dc := cfg.Dump

	if v := q.Get("tables"); v != "" {
		dc.Tables = splitList(v)
	}

	toggles := []struct {
		param   string
		section string
	}{
		{"schema", SectionSchema},
		{"data", SectionData},
		{"triggers", SectionTrigger},
		{"procedures", SectionProcedure},
	}
	dc.Sections = append([]string(nil), dc.Sections...)
	for _, t := range toggles {
		v := q.Get(t.param)
		if v == "" {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			return dump.Options{}, fmt.Errorf("invalid %s: %q", t.param, v)
		}
		dc.setSection(t.section, on)
	}
	if v := q.Get("exclude"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return dump.Options{}, fmt.Errorf("invalid exclude: %q", v)
		}
		dc.Exclude = on
	}
	if v := q.Get("max_rows"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return dump.Options{}, fmt.Errorf("invalid max_rows: %q", v)
		}
		dc.Data.MaxRowsPerInsertStatement = n
	}
	if where := q["where"]; len(where) > 0 {
		conds, err := whereFromQuery(dc.Data.Where, where)
		if err != nil {
			return dump.Options{}, err
		}
		dc.Data.Where = conds
	}

	view := *cfg
	view.Dump = dc
	opts := view.DumpOptions()

	// The response body is the only sink
	opts.DumpToFile = ""
	opts.Append = false
	opts.Compress = writer.CodecNone
	if opts.Data != nil {
		opts.Data.ReturnFromFunction = false
	}

	if err := opts.Validate(); err != nil {
		return dump.Options{}, err
	}
	return opts, nil
}

// whereFromQuery merges table:condition pairs over the configured filters.
// Conditions come from the client, so each one goes through the validator.
func whereFromQuery(base map[string]string, params []string) (map[string]string, error) {
	v := security.NewConditionValidator(0)
	conds := make(map[string]string, len(base)+len(params))
	for k, c := range base {
		conds[k] = c
	}
	for _, p := range params {
		table, cond, ok := strings.Cut(p, ":")
		table = strings.TrimSpace(table)
		if !ok || table == "" {
			return nil, fmt.Errorf("invalid where: %q, expected table:condition", p)
		}
		if err := v.Validate(cond); err != nil {
			return nil, fmt.Errorf("invalid where for %s: %w", table, err)
		}
		conds[table] = strings.TrimSpace(cond)
	}
	return conds, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyCalls):
		return http.StatusServiceUnavailable
	case errors.Is(err, dumperr.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, dumperr.ErrConnection):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// zerologMiddleware logs every HTTP request with method, path, status, and latency.
func zerologMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("query", r.URL.RawQuery).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("latency_ms", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("request")
		})
	}
}

// Serve runs the HTTP server until SIGINT/SIGTERM
func Serve(ctx context.Context, p *Pipeline) error {
	p.serving = true
	cfg := p.cfg.Server

	if security.IsPrivileged() {
		p.log.Warn().Msg("serving dumps as root; run the server under an unprivileged account")
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewRouter(p),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		p.log.Info().
			Str("addr", cfg.Addr).
			Str("database", p.cfg.Database.Name()).
			Bool("metrics", p.metrics != nil).
			Msg("mysqldump server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	p.log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	p.log.Info().Msg("stopped")
	return nil
}
