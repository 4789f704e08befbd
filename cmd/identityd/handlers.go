package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/cartstack/identity"
	"github.com/cartstack/identity/middleware"
)

type apiServer struct {
	engine *identity.Engine
	logger *slog.Logger
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *apiServer) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	pair, err := s.engine.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeEngineError(w, r, "register", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, pair)
}

func (s *apiServer) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	pair, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeEngineError(w, r, "login", err)
		return
	}
	s.writeJSON(w, http.StatusOK, pair)
}

func (s *apiServer) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decode(w, r, &req) {
		return
	}

	pair, err := s.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeEngineError(w, r, "refresh", err)
		return
	}
	s.writeJSON(w, http.StatusOK, pair)
}

func (s *apiServer) logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.Logout(r.Context(), req.RefreshToken); err != nil {
		s.writeEngineError(w, r, "logout", err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (s *apiServer) currentUser(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	info, err := s.engine.CurrentUser(r.Context(), id.Email)
	if err != nil {
		s.writeEngineError(w, r, "me", err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *apiServer) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req changePasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		s.writeError(w, http.StatusBadRequest, "new password is required")
		return
	}

	if err := s.engine.ChangePassword(r.Context(), id.Email, req.OldPassword, req.NewPassword); err != nil {
		s.writeEngineError(w, r, "change-password", err)
		return
	}
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "password changed"})
}

func (s *apiServer) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeEngineError maps engine errors onto the response code taxonomy.
// 5xx causes are logged server-side; the body stays generic.
func (s *apiServer) writeEngineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := identity.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("operation failed", "op", op, "path", r.URL.Path, "error", err)
		s.writeError(w, status, "internal error")
		return
	}
	s.writeError(w, status, publicErrorMessage(err))
}

// publicErrorMessage returns the user-facing error string. Sentinel
// messages are part of the API contract; anything else is generic.
func publicErrorMessage(err error) string {
	for _, sentinel := range []error{
		identity.ErrEmailTaken,
		identity.ErrInvalidCredentials,
		identity.ErrInvalidRefresh,
		identity.ErrPasswordUnchanged,
		identity.ErrUserNotFound,
		identity.ErrForbidden,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "request failed"
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// clientIPMiddleware records the caller's address for audit events,
// honouring the leftmost X-Forwarded-For entry when present.
func clientIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		next.ServeHTTP(w, r.WithContext(identity.WithClientIP(r.Context(), ip)))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
