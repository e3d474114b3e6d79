package service

import (
	"context"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

// HealthChecker reports why its owner is unhealthy, or nil.
type HealthChecker interface {
	Healthy() error
}

// HealthzServer answers health checks with the state of the aggregator:
// 200 once a pass has succeeded and while it keeps running, 503 otherwise.
type HealthzServer struct {
	checker HealthChecker
	log     log.Logger

	mu     sync.Mutex
	ctx    context.Context
	server *http.Server
}

func (h *HealthzServer) Start(ctx context.Context, addr string) error {
	h.mu.Lock()
	h.server = &http.Server{
		Handler: h.handler(),
		Addr:    addr,
	}
	h.ctx = ctx
	srv := h.server
	h.mu.Unlock()
	return srv.ListenAndServe()
}

func (h *HealthzServer) handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(hdlr)
}

func (h *HealthzServer) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(h.ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	if h.checker != nil {
		if err := h.checker.Healthy(); err != nil {
			if h.log != nil {
				h.log.Debug("Health check failed", "path", r.URL.Path, "err", err)
			}
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.Write([]byte("OK")) //nolint:errcheck
}
