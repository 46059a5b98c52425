package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/oldrefery/summit-backend-sub001/internal/auth"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/oldrefery/summit-backend-sub001/internal/services"
	pkghttp "github.com/oldrefery/summit-backend-sub001/pkg/http"
)

// Messages of the login contract
const (
	msgInvalidCredentials = "Invalid credentials"
	msgTooManyAttempts    = "Too many login attempts. Please try again later."
	msgInternalError      = "Internal server error"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, clientKey string) (*services.LoginResult, error)
	Logout(ctx context.Context, session *models.Session, clientKey string)
}

// RetryAfterProvider reports how long a client key stays rate limited
type RetryAfterProvider interface {
	RetryAfter(ctx context.Context, key string) time.Duration
}

// AuthHandler handles the operator sign-in endpoints
type AuthHandler struct {
	service      AuthServiceInterface
	sessions     *auth.SessionManager
	limiter      RetryAfterProvider
	cookieConfig auth.CookieConfig
	logger       *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. limiter may be nil, in which
// case 429 responses carry no Retry-After header.
func NewAuthHandler(
	service AuthServiceInterface,
	sessions *auth.SessionManager,
	limiter RetryAfterProvider,
	cookieConfig auth.CookieConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		service:      service,
		sessions:     sessions,
		limiter:      limiter,
		cookieConfig: cookieConfig,
		logger:       logger,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginResponse is returned on successful sign-in
type LoginResponse struct {
	Success bool `json:"success"`
}

// Login handles operator sign-in
// @Summary Operator login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 401 {object} pkghttp.ErrorResponse
// @Failure 429 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		pkghttp.WriteInternalError(w, msgInternalError)
		return
	}

	// Malformed credentials still go through the service so they are
	// counted as a failed attempt.
	if err := ValidateRequest(req); err != nil {
		h.logger.Debug("login request failed validation", slog.String("error", err.Error()))
		req.Password = ""
	}

	clientKey := pkghttp.ClientKey(r)
	result, err := h.service.Login(r.Context(), req.Email, req.Password, clientKey)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRateLimitExceeded):
			h.setRetryAfter(r.Context(), w, clientKey)
			pkghttp.WriteTooManyRequests(w, msgTooManyAttempts)
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, msgInvalidCredentials)
		default:
			pkghttp.WriteInternalError(w, msgInternalError)
		}
		return
	}

	auth.SetSessionCookie(w, result.Token, result.Session.Expires, h.cookieConfig)
	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{Success: true})
}

func (h *AuthHandler) setRetryAfter(ctx context.Context, w http.ResponseWriter, clientKey string) {
	if h.limiter == nil {
		return
	}
	if d := h.limiter.RetryAfter(ctx, clientKey); d > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
	}
}

// Logout clears the session cookie. It succeeds with or without a valid
// session so an expired cookie can always be removed.
// @Summary Operator logout
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var session *models.Session
	if token, err := auth.GetSessionCookie(r); err == nil && h.sessions != nil {
		session, _ = h.sessions.Parse(token)
	}

	h.service.Logout(r.Context(), session, pkghttp.ClientKey(r))
	auth.ClearSessionCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// Session returns the session of the signed-in operator
// @Summary Current session
// @Produce json
// @Success 200 {object} models.Session
// @Failure 401 {object} pkghttp.ErrorResponse
// @Router /auth/session [get]
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, session)
}

// actorFromRequest names the operator for audit records
func actorFromRequest(r *http.Request) string {
	if session, ok := auth.SessionFromContext(r.Context()); ok {
		return session.Email
	}
	return ""
}
