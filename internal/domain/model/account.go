// Пакет model — доменные модели портала NK Recruitment.
package model

import "time"

// Account — учётная запись сотрудника (admin, recruiter, viewer).
// Хранится в таблице accounts.
type Account struct {
	// ID — UUID учётной записи
	ID string
	// Email — адрес, нормализованный (trim + lower); уникален без учёта регистра
	Email string
	// PasswordHash — bcrypt-хэш пароля. Никогда не отдаётся наружу.
	PasswordHash string
	// Name — отображаемое имя
	Name string
	// Role — роль (admin, recruiter, viewer)
	Role string
	// CreatedAt — время создания
	CreatedAt time.Time
	// LastLogin — время последнего успешного входа (nil, если входа не было)
	LastLogin *time.Time
}
