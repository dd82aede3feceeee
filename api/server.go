// Package api serves the control endpoints and the browser client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/matt-g-everett/ledtick/schedule"
	"github.com/matt-g-everett/ledtick/stream"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 2 * time.Second

// Caller runs fn on the scheduler's goroutine and waits for it.
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

// Status is the body of every /api response.
type Status struct {
	Scheduler  schedule.Snapshot       `json:"scheduler"`
	Controller stream.ControllerStatus `json:"controller"`
	Streamer   stream.StreamerStats    `json:"streamer"`
	Viewers    int                     `json:"viewers"`
}

// Api exposes the controller over HTTP. Everything it touches on the
// scheduler goroutine goes through caller.
type Api struct {
	caller     Caller
	sched      *schedule.Scheduler
	controller *stream.Controller
	streamer   *stream.Streamer
	hub        *Hub
	static     string
	log        zerolog.Logger
}

// NewApi creates an Api serving static files from the static directory.
// An empty static disables the file server.
func NewApi(caller Caller, sched *schedule.Scheduler, controller *stream.Controller,
	streamer *stream.Streamer, static string, log zerolog.Logger) *Api {

	a := new(Api)
	a.caller = caller
	a.sched = sched
	a.controller = controller
	a.streamer = streamer
	a.hub = NewHub(log)
	a.static = static
	a.log = log
	return a
}

// Hub returns the frame preview hub, which should be added to the
// streamer's sinks.
func (a *Api) Hub() *Hub {
	return a.hub
}

// Handler returns the HTTP routes.
func (a *Api) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/pause", a.action(a.controller.Pause))
	mux.HandleFunc("/api/resume", a.action(a.controller.Resume))
	mux.HandleFunc("/api/cycle", a.action(a.controller.Cycle))
	mux.Handle("/api/frames", a.hub)
	if a.static != "" {
		mux.Handle("/", http.FileServer(http.Dir(a.static)))
	}
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (a *Api) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return a.serve(ctx, ln)
}

func (a *Api) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn().Err(err).Msg("api shutdown")
		}
	}()

	a.log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *Api) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	a.respond(w, r, nil)
}

func (a *Api) action(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		a.respond(w, r, fn)
	}
}

// respond runs fn, if any, then reports the status in the same turn of the
// loop.
func (a *Api) respond(w http.ResponseWriter, r *http.Request, fn func()) {
	var st Status
	err := a.caller.Call(r.Context(), func() {
		if fn != nil {
			fn()
		}
		st.Scheduler = a.sched.Snapshot()
		st.Controller = a.controller.Status()
		st.Streamer = a.streamer.Stats()
	})
	if err != nil {
		a.log.Warn().Err(err).Str("path", r.URL.Path).Msg("loop unavailable")
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	st.Viewers = a.hub.Len()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		a.log.Debug().Err(err).Msg("write status")
	}
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
