// Package server exposes a Simulation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/san-kum/gravsim/internal/app"
	"github.com/san-kum/gravsim/internal/gravity"
	"github.com/san-kum/gravsim/internal/health"
	"github.com/san-kum/gravsim/internal/logging"
)

// RequestIDHeader carries the correlation ID in and out of every request.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 8 << 20

type Options struct {
	StaticDir string
}

type Server struct {
	sim     *app.Simulation
	log     *logging.Logger
	hub     *Hub
	checker *health.Checker
	opts    Options
}

// New wires sim to a stream hub and health checks. Every snapshot sim
// installs from then on is published to stream subscribers.
func New(sim *app.Simulation, log *logging.Logger, opts Options) *Server {
	s := &Server{
		sim:     sim,
		log:     log,
		hub:     NewHub(log),
		checker: health.NewChecker(),
		opts:    opts,
	}
	sim.AddListener(s.hub.Publish)
	s.checker.AddCheck(health.NewSnapshotCheck(func() bool {
		return sim.Snapshot().IsValid()
	}))
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /gravity", s.handleSetup)
	mux.HandleFunc("GET /gravity", s.handleSnapshot)
	mux.HandleFunc("POST /gravity/step_naive", s.handleStep)
	mux.HandleFunc("GET /gravity/stream", s.handleStream)
	mux.HandleFunc("GET /health", s.checker.LivenessHandler)
	mux.HandleFunc("GET /ready", s.checker.ReadinessHandler)
	if s.opts.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.opts.StaticDir))))
	}
	return s.withRequestID(mux)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithCorrelationID(r.Context(), r.Header.Get(RequestIDHeader))
		w.Header().Set(RequestIDHeader, logging.GetCorrelationID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var in gravity.State
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		s.log.Warn(r.Context(), "rejecting setup body", "error", err.Error())
		writeError(w, http.StatusBadRequest, logging.WrapError(err, "decode state"))
		return
	}

	out := s.sim.Setup(in)
	s.log.Info(r.Context(), "simulation setup",
		"entities", len(out.Entities),
		"step_s", out.StepS,
		"time_s", out.TimeS,
	)
	for _, err := range gravity.Validate(out) {
		s.log.Warn(r.Context(), "setup state will not step cleanly", "reason", err.Error())
	}
	s.writeState(w, r, out)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	out := s.sim.Step()
	s.log.Info(r.Context(), "simulation stepped",
		"entities", len(out.Entities),
		"time_s", out.TimeS,
		"elapsed", time.Since(start),
	)
	if !out.IsValid() {
		s.log.Warn(r.Context(), "snapshot contains non-finite values", "time_s", out.TimeS)
	}
	s.writeState(w, r, out)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, r, s.sim.Snapshot())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r, s.sim.WithSnapshot)
}

// writeState encodes st before touching the response so an encoding failure
// becomes a 500 instead of an empty 200.
func (s *Server) writeState(w http.ResponseWriter, r *http.Request, st gravity.State) {
	data, err := json.Marshal(st)
	if err != nil {
		s.log.Error(r.Context(), "encode response", err, "time_s", st.TimeS)
		writeError(w, http.StatusInternalServerError, logging.WrapError(err, "encode state"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(append(data, '\n'))
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorBody{Error: err.Error()})
}

// ListenAndServe runs the HTTP server on addr until ctx is cancelled, then
// shuts it down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "starting server", "address", addr, "static_dir", s.opts.StaticDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info(context.Background(), "shutting down server")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
