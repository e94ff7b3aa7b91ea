package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type healthResponse struct {
	Status          string  `json:"status"`
	LiveConnections int     `json:"liveConnections"`
	UptimeSec       int64   `json:"uptimeSec"`
	Stats           *Sample `json:"stats,omitempty"`
}

// Router serves /metrics and /healthz. collector may be nil.
func Router(rec *Recorder, collector *Collector, live func() int, started time.Time) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{
			Status:    "ok",
			UptimeSec: int64(time.Since(started).Seconds()),
		}
		if live != nil {
			resp.LiveConnections = live()
		}
		if collector != nil {
			resp.Stats = collector.Latest()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	return r
}

// Serve runs the diagnostics HTTP server until ctx is cancelled
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.SugaredLogger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infow("🩺 Diagnostics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
