package pipeline

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/filehorizon/filehorizon/internal/logger"
	"github.com/filehorizon/filehorizon/pkg/config"
	"github.com/filehorizon/filehorizon/pkg/metrics"
)

// staleFactor times the poll interval is how long a loop may go silent before
// the health endpoint reports it stalled.
const staleFactor = 3

// healthState tracks the last activity of each loop.
type healthState struct {
	role        string
	lastPoll    atomic.Int64
	lastProcess atomic.Int64
}

func newHealthState(role string) *healthState {
	return &healthState{role: role}
}

func (h *healthState) markPoll()    { h.lastPoll.Store(time.Now().UnixNano()) }
func (h *healthState) markProcess() { h.lastProcess.Store(time.Now().UnixNano()) }

// loopHealth is one loop's entry in the health response.
type loopHealth struct {
	Alive   bool   `json:"alive"`
	LastRun string `json:"lastRun,omitempty"`
}

// healthResponse is the /health payload.
type healthResponse struct {
	Status string                `json:"status"`
	Role   string                `json:"role"`
	Loops  map[string]loopHealth `json:"loops"`
}

// snapshot evaluates loop liveness against the staleness bound. Only the
// loops the role runs count towards overall health.
func (h *healthState) snapshot(maxAge time.Duration) healthResponse {
	now := time.Now()
	resp := healthResponse{
		Status: "ok",
		Role:   h.role,
		Loops:  make(map[string]loopHealth),
	}

	check := func(last int64) loopHealth {
		if last == 0 {
			return loopHealth{Alive: false}
		}
		t := time.Unix(0, last)
		return loopHealth{
			Alive:   now.Sub(t) <= maxAge,
			LastRun: t.UTC().Format(time.RFC3339),
		}
	}

	if h.role != config.RoleWorker {
		lh := check(h.lastPoll.Load())
		resp.Loops["poll"] = lh
		if !lh.Alive {
			resp.Status = "degraded"
		}
	}
	if h.role != config.RolePoller {
		lh := check(h.lastProcess.Load())
		resp.Loops["process"] = lh
		if !lh.Alive {
			resp.Status = "degraded"
		}
	}
	return resp
}

// handler builds the API router: /health plus /metrics when enabled.
func (p *Pipeline) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	maxAge := staleFactor * p.cfg.Polling.Interval
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		resp := p.health.snapshot(maxAge)

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	if p.cfg.Metrics.Enabled {
		r.Handle("/metrics", metrics.Handler())
	}
	return r
}

// startAPIServer serves /health and /metrics in the background.
func (p *Pipeline) startAPIServer() *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", p.cfg.API.Port),
		Handler:           p.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", logger.KeyError, err.Error())
		}
	}()
	return srv
}
