package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"viewsphere/internal/errs"
	"viewsphere/internal/web"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		web.Error(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	body.Email = strings.TrimSpace(body.Email)
	if body.Username == "" && body.Email == "" {
		web.Error(w, http.StatusBadRequest, "username or email is required")
		return
	}
	if body.Password == "" {
		web.Error(w, http.StatusBadRequest, "password is required")
		return
	}

	pair, u, err := h.service.Login(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		h.failLogin(w, err)
		return
	}

	SetTokenCookies(w, pair, h.service.Issuer().AccessTTL(), h.service.Issuer().RefreshTTL())
	web.JSON(w, http.StatusOK, map[string]any{
		"user":   u.Profile(),
		"tokens": pair,
	}, "logged in successfully")
}

func (h *Handler) failLogin(w http.ResponseWriter, err error) {
	var locked ErrLoginLocked
	switch {
	case errors.As(err, &locked):
		retryAfter := int(time.Until(locked.Until).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		web.Error(w, http.StatusTooManyRequests, "login temporarily locked")
	case errors.Is(err, errs.ErrNotFound):
		web.Error(w, http.StatusNotFound, "user not found")
	case errors.Is(err, errs.ErrUnauthorized):
		web.Error(w, http.StatusUnauthorized, "invalid credentials")
	default:
		web.Fail(w, err)
	}
}

// Refresh rotates the session. The incoming token comes from the
// refreshToken cookie, falling back to the request body for non-cookie
// clients.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := ""
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		presented = cookie.Value
	}
	if presented == "" {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		var body refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			presented = strings.TrimSpace(body.RefreshToken)
		}
	}

	pair, err := h.service.Refresh(r.Context(), presented)
	if err != nil {
		web.Fail(w, err)
		return
	}

	SetTokenCookies(w, pair, h.service.Issuer().AccessTTL(), h.service.Issuer().RefreshTTL())
	web.JSON(w, http.StatusOK, pair, "access token regenerated successfully")
}

// Logout clears the server-side session and drops both cookies. Cookies are
// cleared even when the store write fails so the client never retains stale
// credentials.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.service.Logout(r.Context(), web.UserID(r.Context()))

	ClearTokenCookies(w)

	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		web.Fail(w, err)
		return
	}
	web.JSON(w, http.StatusOK, struct{}{}, "logged out successfully")
}
