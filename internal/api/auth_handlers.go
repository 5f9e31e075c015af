package api

import (
	"net/http"

	"github.com/onnwee/pixelclaim/internal/auth"
)

// maxAuthBody bounds the login request body.
const maxAuthBody = 8 << 10

// LoginService exchanges a signed login message for a session token.
// *auth.Authenticator satisfies it.
type LoginService interface {
	Login(req auth.LoginRequest) (string, error)
}

// AuthHandlers serves wallet login.
type AuthHandlers struct {
	login LoginService
}

// NewAuthHandlers creates AuthHandlers.
func NewAuthHandlers(login LoginService) *AuthHandlers {
	return &AuthHandlers{login: login}
}

// LoginResponse is returned after a successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Wallet string `json:"wallet"`
}

// Login verifies a wallet's signature over a message and issues a token.
// POST /api/auth
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeJSON(w, r, maxAuthBody, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	token, err := h.login.Login(req)
	if err != nil {
		writeDomainError(w, r, "login", err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, LoginResponse{Token: token, Wallet: req.Wallet})
}
