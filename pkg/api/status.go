// Package api exposes a read-only status surface for the running daemon:
// liveness, the current fleet snapshot and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arfa79/tailscale/pkg/fleet"
	"github.com/arfa79/tailscale/pkg/model"
)

// Handler builds the status mux over the fleet tracker and metrics registry.
func Handler(tracker *fleet.Tracker, registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/status", handleStatus(tracker))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}

// Serve runs the status server until ctx is cancelled or the listener
// fails. Errors other than a clean close are logged; the status surface is
// never load-bearing for reconciliation.
func Serve(ctx context.Context, addr string, handler http.Handler, log *zap.SugaredLogger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("status server shutdown: %v", err)
		}
	}()
	log.Infof("status server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("status server error: %v", err)
	}
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Tracked int              `json:"tracked"`
	Healthy int              `json:"healthy"`
	Nodes   []model.ExitNode `json:"nodes"`
}

func handleStatus(tracker *fleet.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		nodes := tracker.Snapshot()
		writeJSON(w, http.StatusOK, statusResponse{
			Tracked: len(nodes),
			Healthy: countHealthy(nodes),
			Nodes:   nodes,
		})
	}
}

func countHealthy(nodes []model.ExitNode) int {
	n := 0
	for _, node := range nodes {
		if node.Status == model.StatusHealthy {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
