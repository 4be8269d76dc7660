// auth.go — вход, выход и текущий сотрудник.
package handlers

import (
	"net/http"
	"strings"
	"time"

	apierrors "github.com/nkrecruitment/portal/internal/api/errors"
	"github.com/nkrecruitment/portal/internal/api/middleware"
	"github.com/nkrecruitment/portal/internal/domain/rbac"
)

const accountNotFound = "Пользователь не найден"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userJSON  `json:"user"`
}

// Login — POST /api/v1/auth/login.
// Выдаёт сессионный токен в теле ответа и в HttpOnly cookie.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		apierrors.ValidationError(w, "Необходимо указать email и пароль")
		return
	}

	id, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleServiceError(w, r, err, accountNotFound)
		return
	}

	token, expiresAt, err := h.tokens.Issue(id)
	if err != nil {
		h.handleServiceError(w, r, err, accountNotFound)
		return
	}

	http.SetCookie(w, h.sessionCookie(token, expiresAt))
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      identityJSON(id),
	})
}

// Logout — POST /api/v1/auth/logout. Удаляет сессионную cookie.
// Токен без состояния, поэтому сервер ничего не отзывает.
func (h *APIHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	cookie := h.sessionCookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

// Me — GET /api/v1/auth/me. Возвращает учётную запись текущего сотрудника.
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Get(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err, accountNotFound)
		return
	}
	writeJSON(w, http.StatusOK, mapAccount(account))
}

func (h *APIHandler) sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func identityJSON(id *rbac.Identity) userJSON {
	return userJSON{ID: id.ID, Email: id.Email, Name: id.Name, Role: id.Role}
}
