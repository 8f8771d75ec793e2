package remote

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starrybamboo/chatsync/internal/replica"
)

// ServerOptions configures NewServer.
type ServerOptions struct {
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer // serves /metrics when set
}

// NewServer exposes store over the snapshot HTTP contract understood by
// HTTPStore.
func NewServer(store replica.RemoteStore, opts ServerOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/snapshots/{key}", s.get)
	r.Put("/snapshots/{key}", s.put)
	return r
}

type server struct {
	store  replica.RemoteStore
	logger *slog.Logger
}

func (s *server) get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	res := s.store.Fetch(r.Context(), key)

	switch {
	case res.Status == replica.FetchFound:
		body, err := EncodeEnvelope(res.Snapshot)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	case res.Status == replica.FetchNotFound && res.Err != nil:
		s.logger.Warn("serving corrupt snapshot", "doc", key, "error", res.Err)
		w.Header().Set(versionHeader, strconv.FormatInt(res.Snapshot.Version, 10))
		http.Error(w, "corrupt snapshot", http.StatusUnprocessableEntity)
	case res.Status == replica.FetchNotFound:
		http.NotFound(w, r)
	default:
		s.logger.Warn("snapshot backend unavailable", "doc", key, "error", res.Err)
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
	}
}

func (s *server) put(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res := DecodeEnvelope(body)
	if res.Status != replica.FetchFound {
		http.Error(w, "invalid envelope", http.StatusBadRequest)
		return
	}

	if err := s.store.Persist(r.Context(), key, res.Snapshot); err != nil {
		if errors.Is(err, replica.ErrVersionConflict) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		s.logger.Warn("persist failed", "doc", key, "error", err)
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
