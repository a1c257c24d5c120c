package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/authpipe/internal/common"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type accessResponse struct {
	Access string `json:"access"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshCookieName,
		Value:    token,
		Path:     cookiePath,
		MaxAge:   int(a.refreshTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     common.RefreshCookieName,
		Value:    "",
		Path:     cookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshCookie(r *http.Request) string {
	c, err := r.Cookie(common.RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return c, false
	}
	return c, true
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	u, err := a.users.Register(r.Context(), c.Username, []byte(c.Password))
	switch {
	case errors.Is(err, common.ErrorInvalidInput):
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "username and password required")
		return
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusConflict, "CONFLICT", "username taken")
		return
	case err != nil:
		a.logger.Error(r.Context(), "register", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": u.ID, "username": u.UserName})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	pair, err := a.users.Login(r.Context(), c.Username, []byte(c.Password))
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
			return
		}
		a.logger.Error(r.Context(), "login", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	a.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, accessResponse{Access: pair.AccessToken})
}

func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	pair, err := a.users.RefreshToken(r.Context(), refreshCookie(r))
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) || errors.Is(err, common.ErrRefreshTokenExpired) {
			a.metrics.refreshes.WithLabelValues("rejected").Inc()
			clearRefreshCookie(w)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}
		a.metrics.refreshes.WithLabelValues("error").Inc()
		a.logger.Error(r.Context(), "refresh", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	a.metrics.refreshes.WithLabelValues("rotated").Inc()
	a.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, accessResponse{Access: pair.AccessToken})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.users.Logout(r.Context(), refreshCookie(r)); err != nil {
		a.logger.Error(r.Context(), "logout", "error", err)
	}
	clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type service struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
}

func (a *API) listServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []service{
		{Name: "Exterior wash", Price: 15},
		{Name: "Interior detailing", Price: 40},
		{Name: "Full service", Price: 50},
	})
}

func (a *API) listTeam(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]string{
		{"name": "Sam", "role": "manager"},
		{"name": "Kim", "role": "detailer"},
	})
}

func (a *API) listReviews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]any{
		{"author": "Lee", "rating": 5, "text": "Spotless."},
	})
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         u.ID,
		"username":   u.UserName,
		"created_at": u.CreatedAt,
	})
}

func (a *API) bookings(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	writeJSON(w, http.StatusOK, []map[string]any{
		{"id": 1, "user": u.UserName, "service": "Full service", "status": "confirmed"},
	})
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"username":          u.UserName,
		"upcoming_bookings": 1,
	})
}
