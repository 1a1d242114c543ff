// Package httpapi exposes the Manager Facade's introspection and
// configuration surface over REST: queue/cache/adapter snapshots, live
// cache and queue parameter updates, and the shared call timeout.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"syncdal/internal/dal/manager"
	"syncdal/internal/errors"
	"syncdal/internal/observability"
)

// Router builds the chi router serving the introspection/config API.
type Router struct {
	manager *manager.Manager
	metrics *observability.Collector
	log     *zap.Logger
}

// NewRouter builds a Router over m.
func NewRouter(m *manager.Manager, metrics *observability.Collector, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{manager: m, metrics: metrics, log: log.Named("httpapi")}
}

// Setup wires every route and returns the handler.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(rt.log))
	r.Use(errors.Recoverer(rt.log))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", rt.handleHealth)
	if rt.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(rt.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/queues/{kind}", func(r chi.Router) {
			r.Get("/", rt.handleGetQueueInfo)
			r.Get("/params", rt.handleGetQueueParams)
			r.Put("/params", rt.handleSetQueueParams)
		})
		r.Route("/caches/{kind}", func(r chi.Router) {
			r.Get("/", rt.handleGetCachesInfo)
			r.Get("/{adapterID}/params", rt.handleGetCacheParams)
			r.Put("/{adapterID}/params", rt.handleSetCacheParams)
		})
		r.Get("/adapters/{kind}", rt.handleGetAdaptersInfo)
		r.Get("/timeout", rt.handleGetTimeout)
		r.Put("/timeout", rt.handleSetTimeout)
	})

	return r
}

// requestLogger logs one line per request, zap-structured.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
