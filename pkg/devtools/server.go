// Package devtools serves an HTTP inspection surface for a running
// observation: Prometheus metrics, the live observer table, store state
// and a websocket stream of flush records.
//
//	dt := devtools.New(ob, devtools.WithStore(cart))
//	ob.Scheduler().AddHook(dt.Stream())
//	go dt.ListenAndServe(ctx, "localhost:7070")
//
// Routes:
//
//	GET  /metrics                          Prometheus exposition
//	GET  /debug/observers                  live observers and kind switches
//	POST /debug/observation/{kind}/enable  instrument a collection kind
//	POST /debug/observation/{kind}/disable make a collection kind native
//	GET  /debug/stores                     registered store names
//	GET  /debug/stores/{name}              store state as JSON
//	GET  /debug/stream                     websocket flush stream
package devtools

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/weave/internal/errors"
	"github.com/vango-dev/weave/pkg/observe"
	"github.com/vango-dev/weave/pkg/resource"
	"github.com/vango-dev/weave/pkg/store"
)

// StoreKind is the resource kind stores are registered under.
const StoreKind resource.Kind = "devtools-store"

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the metrics source for /metrics.
// Default: prometheus.DefaultGatherer
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithStore exposes a store under /debug/stores.
func WithStore(insp store.Inspector) Option {
	return func(s *Server) {
		s.pending = append(s.pending, insp)
	}
}

// WithStreamBuffer sets the per-client flush record buffer.
func WithStreamBuffer(n int) Option {
	return func(s *Server) {
		s.streamBuffer = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server is the devtools HTTP server.
type Server struct {
	ob       *observe.Observation
	stores   *resource.Registry
	stream   *Stream
	gatherer prometheus.Gatherer
	router   chi.Router
	logger   *slog.Logger

	pending      []store.Inspector
	streamBuffer int
}

// New creates a devtools server for ob.
func New(ob *observe.Observation, opts ...Option) *Server {
	s := &Server{
		ob:           ob,
		stores:       resource.NewRegistry(),
		gatherer:     prometheus.DefaultGatherer,
		streamBuffer: 64,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "devtools")
	}
	s.stream = NewStream(s.streamBuffer, s.logger)
	for _, insp := range s.pending {
		if err := s.AddStore(insp); err != nil {
			s.logger.Warn("store not exposed", "store", insp.Name(), "error", err)
		}
	}
	s.pending = nil
	s.router = s.routes()
	return s
}

// Stream returns the flush stream. Register it as a flush hook.
func (s *Server) Stream() *Stream {
	return s.stream
}

// AddStore exposes insp. Names must be unique.
func (s *Server) AddStore(insp store.Inspector) error {
	return s.stores.Register(StoreKind, insp.Name(), insp)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devtools listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/debug", func(r chi.Router) {
		r.Get("/observers", s.handleObservers)
		r.Post("/observation/{kind}/{action}", s.handleToggle)
		r.Get("/stores", s.handleStores)
		r.Get("/stores/{name}", s.handleStore)
		r.Handle("/stream", s.stream)
	})
	return r
}

type observersResponse struct {
	Kinds     map[string]bool        `json:"kinds"`
	Observers []observe.ObserverInfo `json:"observers"`
}

func (s *Server) handleObservers(w http.ResponseWriter, r *http.Request) {
	resp := observersResponse{
		Kinds:     s.kindStates(),
		Observers: s.ob.Observers(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) kindStates() map[string]bool {
	kinds := make(map[string]bool, 3)
	for _, k := range []observe.CollectionKind{observe.KindArray, observe.KindMap, observe.KindSet} {
		kinds[k.String()] = s.ob.Enabled(k)
	}
	return kinds
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "kind")
	kind, ok := observe.ParseKind(name)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("W050").WithSubject(name))
		return
	}

	var changed bool
	switch chi.URLParam(r, "action") {
	case "enable":
		changed = s.ob.Enable(kind)
	case "disable":
		changed = s.ob.Disable(kind)
	default:
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":    kind.String(),
		"enabled": s.ob.Enabled(kind),
		"changed": changed,
	})
}

func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	names := s.stores.Names(StoreKind)
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"stores": names})
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	insp, err := resource.Resolve[store.Inspector](s.stores, StoreKind, chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	state, err := insp.MarshalState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       insp.Name(),
		"dispatched": insp.Dispatched(),
		"state":      json.RawMessage(state),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]string{"error": err.Error()}
	if code := errors.Code(err); code != "" {
		body["code"] = code
	}
	writeJSON(w, status, body)
}
