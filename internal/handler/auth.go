package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/notebox/internal/payload"
)

// maxJSONBody caps register/login bodies.
const maxJSONBody = 1 << 20

// AuthService is what AuthHandler needs from the service layer.
type AuthService interface {
	Register(ctx context.Context, req payload.RegisterRequest) (string, error)
	Login(ctx context.Context, req payload.LoginRequest) (string, error)
}

// AuthHandler serves /api/auth.
//
//   - HandleRegister → POST /api/auth/register
//   - HandleLogin    → POST /api/auth/login
type AuthHandler struct {
	auth   AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// TokenResponse is returned by register and login.
type TokenResponse struct {
	Token string `json:"token"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
// Body: {"username": "...", "email": "...", "password": "..."}
// Response: 201 {"token": "..."} | 400 | 409
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req payload.RegisterRequest
	if err := payload.DecodeJSON(http.MaxBytesReader(w, r.Body, maxJSONBody), &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, TokenResponse{Token: token})
}

// HandleLogin exchanges credentials for a token.
//
// HTTP: POST /api/auth/login
// Body: {"username": "...", "password": "..."}
// Response: 200 {"token": "..."} | 400 | 401
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req payload.LoginRequest
	if err := payload.DecodeJSON(http.MaxBytesReader(w, r.Body, maxJSONBody), &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}
