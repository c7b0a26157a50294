package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/busgate/server/internal/busgate/service"
	"github.com/busgate/server/internal/busgate/token"
	"github.com/busgate/server/internal/busgate/types"
)

type Dependencies struct {
	Logger           *log.Logger
	Addr             string
	Verifier         TokenVerifier
	AuthService      *service.AuthService
	BoardingService  *service.BoardingService
	HeartbeatService *service.HeartbeatService
}

type Server struct {
	httpServer       *http.Server
	logger           *log.Logger
	mux              *http.ServeMux
	verifier         TokenVerifier
	authService      *service.AuthService
	boardingService  *service.BoardingService
	heartbeatService *service.HeartbeatService
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:           d.Logger,
		mux:              mux,
		verifier:         d.Verifier,
		authService:      d.AuthService,
		boardingService:  d.BoardingService,
		heartbeatService: d.HeartbeatService,
	}

	// Liveness probes are deliberately outside the guard: a monitor
	// must be able to check the process without credentials.
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /v1/auth/device", s.handleDeviceAuth)
	mux.HandleFunc("POST /v1/auth/user", s.handleUserAuth)

	mux.Handle("POST /v1/heartbeat",
		s.requireScope(token.SubjectDevice, token.ScopeHeartbeat, s.handleHeartbeat))
	mux.Handle("POST /v1/boarding_events",
		s.requireScope(token.SubjectDevice, token.ScopeLogEvent, s.handleLogEvent))
	mux.Handle("GET /v1/boarding_events/chain",
		s.requireScope(token.SubjectUser, token.ScopeReadEvents, s.handleVerifyChain))

	handler := loggingMiddleware(d.Logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDeviceAuth(w http.ResponseWriter, r *http.Request) {
	var req types.DeviceAuthRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.authService.IssueDeviceToken(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidDeviceID), errors.Is(err, service.ErrInvalidAPIKey):
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		case errors.Is(err, service.ErrAuthentication):
			// One message for unknown id, inactive credential, and bad
			// key: responses must not reveal which device ids exist.
			writeError(w, http.StatusUnauthorized, "authentication_failed", "authentication failed")
			return
		default:
			s.logger.Printf("device auth error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUserAuth(w http.ResponseWriter, r *http.Request) {
	var req types.UserAuthRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.authService.IssueUserToken(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidUserID) {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		s.logger.Printf("user auth error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req types.HeartbeatRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.heartbeatService.Record(r.Context(), claims.Subject, req)
	if err != nil {
		s.logger.Printf("heartbeat error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	var req types.LogEventRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.boardingService.LogEvent(r.Context(), claims.Subject, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStudentRef), errors.Is(err, service.ErrInvalidDirection):
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		case errors.Is(err, service.ErrAuthentication):
			writeError(w, http.StatusUnauthorized, "authentication_failed", "authentication failed")
			return
		case errors.Is(err, service.ErrNoActiveRoute):
			writeError(w, http.StatusConflict, "bus_unrouted", "bus has no active route")
			return
		default:
			s.logger.Printf("log_event error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
	}

	// Rejections are 200s: the event was recorded, the caller retries
	// nothing.
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	resp, err := s.boardingService.VerifyChain(r.Context())
	if err != nil {
		s.logger.Printf("chain verify error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}
