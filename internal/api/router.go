package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"treasurySync/internal/indexer"
	"treasurySync/internal/model"
)

// Syncer runs one treasury sync request.
type Syncer interface {
	Sync(ctx context.Context, req model.SyncRequest) (indexer.Summary, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP surface.
type Options struct {
	Syncer         Syncer
	Health         Pinger
	MetricsEnabled bool
	CORSOrigins    []string
	Logger         *zap.Logger
}

// NewRouter builds the HTTP handler for the sync service.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &handler{syncer: opts.Syncer, health: opts.Health, logger: logger}

	router := mux.NewRouter()
	router.HandleFunc("/sync-treasury-events", h.syncTreasuryEvents).Methods(http.MethodPost)
	router.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	if opts.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
	})
	return c.Handler(router)
}
