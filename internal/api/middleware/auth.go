// auth.go — middleware аутентификации сотрудников.
// Извлекает сессионный токен (Bearer или cookie), проверяет его и помещает
// Identity в контекст запроса. Проверка ролей выполняется в сервисах.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/nkrecruitment/portal/internal/api/errors"
	"github.com/nkrecruitment/portal/internal/domain/rbac"
)

// SessionCookieName — имя HttpOnly cookie с сессионным токеном.
const SessionCookieName = "nk_session"

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyIdentity — Identity сотрудника в контексте запроса.
const ContextKeyIdentity contextKey = "identity"

// TokenParser проверяет сессионный токен (реализуется auth.TokenManager).
type TokenParser interface {
	Parse(token string) (*rbac.Identity, error)
}

// IdentityFromContext возвращает Identity из контекста или nil.
func IdentityFromContext(ctx context.Context) *rbac.Identity {
	id, _ := ctx.Value(ContextKeyIdentity).(*rbac.Identity)
	return id
}

// WithIdentity помещает Identity в контекст.
func WithIdentity(ctx context.Context, id *rbac.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, id)
}

// Authenticate возвращает middleware аутентификации.
// Запрос без токена проходит без Identity (публичные операции, дальше решает сервис).
// Невалидный Bearer-токен — 401. Невалидная cookie (ротация секрета, истёкшая
// сессия) не мешает публичным маршрутам: запрос идёт дальше как анонимный.
func Authenticate(parser TokenParser, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, source, ok := extractToken(r)
			if !ok {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := parser.Parse(token)
			if err != nil {
				logger.Debug("Сессионный токен отклонён",
					slog.String("source", string(source)),
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				if source == tokenFromCookie {
					next.ServeHTTP(w, r)
					return
				}
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// tokenSource — откуда взят токен.
type tokenSource string

const (
	tokenFromHeader tokenSource = "header"
	tokenFromCookie tokenSource = "cookie"
)

// extractToken достаёт токен из Authorization, а при его отсутствии — из cookie.
// false — заголовок Authorization задан, но имеет неверный формат.
func extractToken(r *http.Request) (string, tokenSource, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", tokenFromHeader, false
		}
		return token, tokenFromHeader, true
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value, tokenFromCookie, true
	}
	return "", "", true
}
