// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrInvalidRole — некорректная роль.
	ErrInvalidRole = fmt.Errorf("%w: допустимые роли — admin, recruiter, viewer", ErrValidation)
	// ErrSelfDelete — попытка удалить собственную учётную запись.
	ErrSelfDelete = errors.New("нельзя удалить собственную учётную запись")
	// ErrInvalidCredentials — неверный email или пароль (без уточнения, что именно).
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	// ErrStorage — сбой хранилища файлов.
	ErrStorage = errors.New("ошибка хранилища файлов")
)

// validationError оборачивает ErrValidation с пояснением для клиента.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
