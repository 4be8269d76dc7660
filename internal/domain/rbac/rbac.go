// Пакет rbac — роли сотрудников и проверка доступа.
// Все функции чистые: решение принимается только по переданной Identity.
package rbac

import "errors"

// Роли сотрудников.
const (
	RoleViewer    = "viewer"
	RoleRecruiter = "recruiter"
	RoleAdmin     = "admin"
)

// Ошибки авторизации.
var (
	// ErrUnauthenticated — личность не установлена (нет или невалидный токен).
	ErrUnauthenticated = errors.New("требуется аутентификация")
	// ErrForbidden — роль не допускает операцию.
	ErrForbidden = errors.New("недостаточно прав")
)

var validRoles = map[string]struct{}{
	RoleViewer:    {},
	RoleRecruiter: {},
	RoleAdmin:     {},
}

// Identity — аутентифицированный сотрудник, полученный из сессионного токена.
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  string
}

// Predicate — правило доступа к операции.
type Predicate func(id *Identity) bool

// IsAdmin сообщает, является ли сотрудник администратором.
func IsAdmin(id *Identity) bool {
	return id != nil && id.Role == RoleAdmin
}

// IsRecruiterOrAdmin сообщает, может ли сотрудник работать с заявками.
func IsRecruiterOrAdmin(id *Identity) bool {
	return id != nil && (id.Role == RoleRecruiter || id.Role == RoleAdmin)
}

// Authorize проверяет, что личность установлена и удовлетворяет allow.
// nil allow — любой аутентифицированный сотрудник.
func Authorize(id *Identity, allow Predicate) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if allow != nil && !allow(id) {
		return ErrForbidden
	}
	return nil
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := validRoles[role]
	return ok
}
