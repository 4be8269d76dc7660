// handler.go — основной обработчик API портала.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
// Проверка ролей выполняется в сервисах, здесь только разбор запроса
// и отображение ошибок в HTTP-ответ.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/nkrecruitment/portal/internal/api/errors"
	"github.com/nkrecruitment/portal/internal/domain/model"
	"github.com/nkrecruitment/portal/internal/domain/rbac"
	"github.com/nkrecruitment/portal/internal/service"
)

// ApplicationService — операции над заявками (реализуется service.ApplicationService).
type ApplicationService interface {
	Submit(ctx context.Context, in service.SubmitInput) (*model.Application, error)
	List(ctx context.Context, id *rbac.Identity, q service.ListQuery) (*service.ListResult, error)
	Get(ctx context.Context, id *rbac.Identity, appID string) (*model.Application, error)
	ChangeStatus(ctx context.Context, id *rbac.Identity, appID, status string) (*model.Application, error)
	AddNote(ctx context.Context, id *rbac.Identity, appID, text string) (*model.Note, error)
	Remove(ctx context.Context, id *rbac.Identity, appID string) error
	OpenCV(ctx context.Context, id *rbac.Identity, appID string) (*service.CVFile, error)
}

// AccountService — учётные записи сотрудников (реализуется service.AccountService).
type AccountService interface {
	Authenticate(ctx context.Context, email, password string) (*rbac.Identity, error)
	Get(ctx context.Context, id *rbac.Identity) (*model.Account, error)
	List(ctx context.Context, id *rbac.Identity) ([]*model.Account, error)
	Create(ctx context.Context, id *rbac.Identity, in service.CreateAccountInput) (*model.Account, error)
	Update(ctx context.Context, id *rbac.Identity, accountID string, in service.UpdateAccountInput) (*model.Account, error)
	Delete(ctx context.Context, id *rbac.Identity, accountID string) error
}

// DashboardService — сводная статистика (реализуется service.DashboardService).
type DashboardService interface {
	Stats(ctx context.Context, id *rbac.Identity) (*model.DashboardStats, error)
}

// TokenIssuer выпускает сессионные токены (реализуется auth.TokenManager).
type TokenIssuer interface {
	Issue(id *rbac.Identity) (string, time.Time, error)
}

var (
	_ ApplicationService = (*service.ApplicationService)(nil)
	_ AccountService     = (*service.AccountService)(nil)
	_ DashboardService   = (*service.DashboardService)(nil)
)

// Options — параметры HTTP-слоя.
type Options struct {
	// MaxCVSize — максимальный размер CV; тело запроса ограничивается с запасом на поля формы
	MaxCVSize int64
	// CookieSecure — выставлять флаг Secure у сессионной cookie
	CookieSecure bool
}

// APIHandler — основной обработчик API портала.
type APIHandler struct {
	health       *HealthHandler
	applications ApplicationService
	accounts     AccountService
	dashboard    DashboardService
	tokens       TokenIssuer
	opts         Options
	logger       *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	applications ApplicationService,
	accounts AccountService,
	dashboard DashboardService,
	tokens TokenIssuer,
	opts Options,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:       health,
		applications: applications,
		accounts:     accounts,
		dashboard:    dashboard,
		tokens:       tokens,
		opts:         opts,
		logger:       logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — проверка живости (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — проверка готовности (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// messageResponse — ответ с текстовым сообщением.
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса. При ошибке пишет 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}

// handleServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// notFound — сообщение для 404 в терминах ресурса.
func (h *APIHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrSelfDelete):
		apierrors.ValidationError(w, "Cannot delete your own account")
	case errors.Is(err, rbac.ErrUnauthenticated):
		apierrors.Unauthorized(w, "Требуется аутентификация")
	case errors.Is(err, service.ErrInvalidCredentials):
		apierrors.Unauthorized(w, "Неверный email или пароль")
	case errors.Is(err, rbac.ErrForbidden):
		apierrors.Forbidden(w, "Недостаточно прав для выполнения операции")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, notFound)
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, "User already exists")
	default:
		h.logger.Error("Ошибка обработки запроса",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
