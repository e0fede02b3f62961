package httpapi

import (
	"errors"
	"net/http"
	"time"

	"societyos.org/internal/audit"
	"societyos.org/internal/auth"
	"societyos.org/internal/obs"
)

// refreshCookie is the session cookie carrying the refresh token. HttpOnly
// keeps it away from page scripts; SameSite=Strict keeps it off cross-site
// requests.
const refreshCookie = "refreshToken"

type registerRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string     `json:"accessToken"`
	User        *auth.User `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.auth.Register(r.Context(), auth.Profile{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
		Role:     auth.Role(req.Role),
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := a.auth.Login(r.Context(), req.Phone, req.Password)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	a.setRefreshCookie(w, sess.RefreshToken, sess.RefreshExpiresAt)
	obs.ObserveSessionIssued()
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": sess.User.ID,
	})
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: sess.AccessToken,
		User:        sess.User,
	})
}

func (a *API) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		return
	}
	cookie, err := r.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, r, http.StatusUnauthorized, "missing refresh token")
		return
	}

	access, err := a.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrStaleToken):
			writeError(w, r, http.StatusForbidden, "invalid refresh token")
		case errors.Is(err, auth.ErrMissingToken):
			writeError(w, r, http.StatusUnauthorized, "missing refresh token")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: access})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	cookie, err := r.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, r, http.StatusBadRequest, "no active session")
		return
	}

	if err := a.auth.Logout(r.Context(), cookie.Value); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	a.clearRefreshCookie(w)
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(a.auth.RefreshTTL() / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
