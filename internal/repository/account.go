package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkrecruitment/portal/internal/domain/model"
)

// AccountRepository — интерфейс CRUD для таблицы accounts.
type AccountRepository interface {
	// Create создаёт учётную запись. Дубликат email (без учёта регистра) — ErrConflict.
	Create(ctx context.Context, a *model.Account) error
	// GetByID возвращает учётную запись по UUID.
	GetByID(ctx context.Context, id string) (*model.Account, error)
	// GetByEmail ищет учётную запись по email без учёта регистра.
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	// List возвращает все учётные записи, новые первыми.
	List(ctx context.Context) ([]*model.Account, error)
	// Update сохраняет имя, роль и хэш пароля.
	Update(ctx context.Context, a *model.Account) error
	// Delete удаляет учётную запись.
	Delete(ctx context.Context, id string) error
	// TouchLastLogin фиксирует время успешного входа.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

const accountColumns = `id, email, password_hash, name, role, created_at, last_login`

// accountRepo — реализация AccountRepository.
type accountRepo struct {
	db DBTX
}

// NewAccountRepository создаёт репозиторий учётных записей.
func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepo{db: db}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	a := &model.Account{}
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Role, &a.CreatedAt, &a.LastLogin); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *accountRepo) Create(ctx context.Context, a *model.Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query, a.ID, a.Email, a.PasswordHash, a.Name, a.Role).Scan(&a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: учётная запись с email %s уже существует", ErrConflict, a.Email)
		}
		return fmt.Errorf("ошибка создания учётной записи: %w", err)
	}
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения учётной записи: %w", err)
	}
	return a, nil
}

func (r *accountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`

	a, err := scanAccount(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска учётной записи по email: %w", err)
	}
	return a, nil
}

func (r *accountRepo) List(ctx context.Context) ([]*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка учётных записей: %w", err)
	}
	defer rows.Close()

	var result []*model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования учётной записи: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *accountRepo) Update(ctx context.Context, a *model.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, role = $3, password_hash = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, a.ID, a.Name, a.Role, a.PasswordHash)
	if err != nil {
		return fmt.Errorf("ошибка обновления учётной записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления учётной записи: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accountRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("ошибка обновления времени входа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
