package webhost

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wilhg/y8bridge/pkg/bridge"
	"github.com/wilhg/y8bridge/pkg/errmodel"
	"github.com/wilhg/y8bridge/pkg/session"
)

const (
	maxBody     = 1 << 20
	maxPollWait = time.Minute
)

// Display tracks the page's display mode.
type Display struct{ fullscreen atomic.Bool }

// Fullscreen reports the last mode posted by the page. It is the probe passed
// to bridge.WithFullscreen.
func (d *Display) Fullscreen() bool { return d.fullscreen.Load() }

func (d *Display) Set(fullscreen bool) { d.fullscreen.Store(fullscreen) }

// Server serves the SDK endpoints for one bridge.
type Server struct {
	b        *bridge.Bridge
	out      *Outbox
	display  *Display
	pollWait time.Duration
	log      *slog.Logger
}

type Option func(*Server)

// WithPollWait sets the default long-poll duration of GET /sdk/commands.
func WithPollWait(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollWait = min(d, maxPollWait)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func NewServer(b *bridge.Bridge, out *Outbox, display *Display, opts ...Option) *Server {
	s := &Server{b: b, out: out, display: display, pollWait: 25 * time.Second, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.display == nil {
		s.display = &Display{}
	}
	return s
}

// Register adds the SDK and session routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /sdk/commands", s.handleCommands)
	mux.HandleFunc("POST /sdk/ready", s.handleReady)
	mux.HandleFunc("POST /sdk/response", s.handleResponse)
	mux.HandleFunc("POST /sdk/auth", s.handleAuth)
	mux.HandleFunc("POST /sdk/display", s.handleDisplay)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// Handler returns the routes wrapped with otelhttp.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return otelhttp.NewHandler(mux, "y8bridge.webhost")
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	wait := s.pollWait
	if v := r.URL.Query().Get("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			errmodel.WriteHTTP(w, r, errmodel.Validation("invalid_wait", "wait must be a non-negative duration", map[string]any{"wait": v}))
			return
		}
		wait = min(d, maxPollWait)
	}
	cmds, err := s.out.Drain(r.Context(), wait)
	if err != nil {
		if errors.Is(err, ErrClosed) {
			errmodel.WriteHTTP(w, r, errmodel.Transport(errmodel.CodeSDKUnavailable, "bridge is shutting down", nil, err))
			return
		}
		// Client went away; nothing to write.
		return
	}
	if cmds == nil {
		cmds = []Command{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": cmds})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.b.Ready()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := s.b.DeliverResponse(r.Context(), body); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := s.b.DeliverAuth(r.Context(), body); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fullscreen *bool `json:"fullscreen"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&req); err != nil || req.Fullscreen == nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("invalid_json", "expected {\"fullscreen\": bool}", nil))
		return
	}
	s.display.Set(*req.Fullscreen)
	s.log.Debug("display mode", "fullscreen", *req.Fullscreen)
	w.WriteHeader(http.StatusNoContent)
}

// SessionView is the body of GET /api/session.
// Queued counts commands the page has not collected yet.
type SessionView struct {
	Ready   bool            `json:"ready"`
	Pending int             `json:"pending"`
	Queued  int             `json:"queued"`
	Profile session.Profile `json:"profile"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionView{
		Ready:   s.b.IsReady(),
		Pending: s.b.Pending(),
		Queued:  s.out.Len(),
		Profile: s.b.Session().Profile(),
	})
}

func readBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("body_too_large", "request body could not be read", nil))
		return "", false
	}
	return string(b), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
