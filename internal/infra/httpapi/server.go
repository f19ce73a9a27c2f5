package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"agrivoice/internal/application"
	"agrivoice/internal/domain"
)

// Controller is the subset of *application.Controller the API binds to.
type Controller interface {
	Toggle(ctx context.Context) error
	Reset()
	UpdateDraft(draft domain.ProductDraft) error
	Save(ctx context.Context) error
	SetLanguage(tag string) error
	Language() domain.Language
	Snapshot() application.Snapshot
}

// Server exposes the recording controller to a local UI over HTTP.
type Server struct {
	addr        string
	server      *http.Server
	ctrl        Controller
	board       *Board
	logger      *slog.Logger
	mu          sync.Mutex
	running     bool
	mux         *http.ServeMux
	rateLimiter *RateLimiter
	authToken   string
}

func NewServer(addr, authToken string, ctrl Controller, board *Board, logger *slog.Logger) *Server {
	s := &Server{
		addr:        addr,
		ctrl:        ctrl,
		board:       board,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(60, time.Minute),
		authToken:   authToken,
	}
	s.mux.HandleFunc("POST /capture/toggle", s.guard(s.handleToggle))
	s.mux.HandleFunc("POST /capture/reset", s.guard(s.handleReset))
	s.mux.HandleFunc("PUT /draft", s.guard(s.handleUpdateDraft))
	s.mux.HandleFunc("POST /draft/save", s.guard(s.handleSave))
	s.mux.HandleFunc("PUT /language", s.guard(s.handleSetLanguage))
	s.mux.HandleFunc("GET /language", s.handleGetLanguage)
	s.mux.HandleFunc("GET /session", s.handleSession)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// Stopping a recording waits for the transcription round-trip.
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("control API starting", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			if err := s.server.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
	}

	s.running = false
	return nil
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// guard applies rate limiting and, when configured, token auth.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return s.rateLimiter.Middleware(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			token := r.Header.Get("X-Auth-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token != s.authToken {
				s.logger.Warn("unauthorized request", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "unauthorized"})
				return
			}
		}
		next(w, r)
	})
}

type sessionView struct {
	application.Snapshot
	Status  *StatusEntry  `json:"status,omitempty"`
	History []StatusEntry `json:"history,omitempty"`
}

type errorBody struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Session *sessionView `json:"session,omitempty"`
}

type languageBody struct {
	Language string `json:"language"`
}

func (s *Server) view() *sessionView {
	v := &sessionView{Snapshot: s.ctrl.Snapshot()}
	if st, ok := s.board.Latest(); ok {
		v.Status = &st
	}
	return v
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	// A dropped client must not abort an upload the session depends on.
	ctx := context.WithoutCancel(r.Context())
	if err := s.ctrl.Toggle(ctx); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Reset()
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var draft domain.ProductDraft
	if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&draft); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "invalid draft body"})
		return
	}
	if err := s.ctrl.UpdateDraft(draft); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if err := s.ctrl.Save(ctx); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view())
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var body languageBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 1024)).Decode(&body); err != nil || body.Language == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "language is required"})
		return
	}
	if err := s.ctrl.SetLanguage(body.Language); err != nil {
		if errors.Is(err, application.ErrPreferences) {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "storage", Message: "Could not save language preference"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, languageBody{Language: s.ctrl.Language().String()})
}

func (s *Server) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, languageBody{Language: s.ctrl.Language().String()})
}

// handleSession also returns recent status lines so a UI that reconnects
// can show what happened meanwhile.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	v := s.view()
	v.History = s.board.History()
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	status := "ok"
	statusCode := http.StatusOK

	if !running {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]any{
		"status":  status,
		"running": running,
		"state":   s.ctrl.Snapshot().State,
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code, body := http.StatusInternalServerError, errorBody{Error: "internal", Message: "Something went wrong"}

	switch {
	case errors.Is(err, application.ErrBusy):
		code, body = http.StatusConflict, errorBody{Error: "busy", Message: "Please wait for the current step to finish"}
	case errors.Is(err, application.ErrInvalidTransition):
		code, body = http.StatusConflict, errorBody{Error: "invalid_transition", Message: err.Error()}
	case errors.Is(err, application.ErrSuperseded):
		code, body = http.StatusConflict, errorBody{Error: "superseded", Message: "The recording was reset"}
	default:
		if kind := domain.KindOf(err); kind != "" {
			code, body = statusForKind(kind), errorBody{Error: string(kind), Message: domain.UserMessage(err)}
			// The controller already published the precise status line.
			if st, ok := s.board.Latest(); ok && st.Level == application.StatusError {
				body.Message = st.Message
			}
		} else {
			s.logger.Error("unexpected controller error", "error", err)
		}
	}

	body.Session = s.view()
	writeJSON(w, code, body)
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNetworkFailure, domain.KindServerRejected, domain.KindMalformedResponse:
		return http.StatusBadGateway
	case domain.KindInvalidDraft:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
