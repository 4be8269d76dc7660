// users.go — обработчики /api/v1/admin/users. Доступ: admin.
// Хэш пароля в ответы не попадает.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nkrecruitment/portal/internal/api/middleware"
	"github.com/nkrecruitment/portal/internal/service"
)

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// updateUserRequest — пустые или отсутствующие поля не меняются.
type updateUserRequest struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

type userResponse struct {
	Message string   `json:"message"`
	User    userJSON `json:"user"`
}

// ListUsers — GET /api/v1/admin/users.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err, accountNotFound)
		return
	}
	items := make([]userJSON, len(accounts))
	for i, a := range accounts {
		items[i] = mapAccount(a)
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateUser — POST /api/v1/admin/users.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.Create(r.Context(), middleware.IdentityFromContext(r.Context()), service.CreateAccountInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		h.handleServiceError(w, r, err, accountNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{Message: "User created successfully", User: mapAccount(account)})
}

// UpdateUser — PUT /api/v1/admin/users/{id}.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.Update(r.Context(), middleware.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), service.UpdateAccountInput{
		Name:     emptyToNil(req.Name),
		Role:     emptyToNil(req.Role),
		Password: emptyToNil(req.Password),
	})
	if err != nil {
		h.handleServiceError(w, r, err, accountNotFound)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: "User updated successfully", User: mapAccount(account)})
}

// DeleteUser — DELETE /api/v1/admin/users/{id}.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Delete(r.Context(), middleware.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err, accountNotFound)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "User removed"})
}

// emptyToNil — пустая строка означает «не менять».
func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
