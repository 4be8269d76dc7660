// accounts.go — сервис учётных записей сотрудников: создание, вход,
// изменение, удаление. Пароли хранятся только в виде bcrypt-хэша.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkrecruitment/portal/internal/auth"
	"github.com/nkrecruitment/portal/internal/domain/model"
	"github.com/nkrecruitment/portal/internal/domain/rbac"
	"github.com/nkrecruitment/portal/internal/repository"
)

// CreateAccountInput — данные новой учётной записи.
type CreateAccountInput struct {
	Email    string
	Password string
	Name     string
	// Role — пусто означает viewer
	Role string
}

// UpdateAccountInput — изменяемые поля. nil — поле не меняется.
type UpdateAccountInput struct {
	Name     *string
	Role     *string
	Password *string
}

// AccountService — сервис учётных записей сотрудников.
type AccountService struct {
	repo   repository.AccountRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewAccountService создаёт сервис учётных записей.
func NewAccountService(repo repository.AccountRepository, logger *slog.Logger) *AccountService {
	return &AccountService{
		repo:   repo,
		logger: logger.With(slog.String("component", "account_service")),
		now:    time.Now,
	}
}

// NormalizeEmail приводит email к каноническому виду (trim + lowercase).
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return validationError("email обязателен")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validationError("некорректный email %q", email)
	}
	return nil
}

// Create создаёт учётную запись. Только для администраторов.
func (s *AccountService) Create(ctx context.Context, id *rbac.Identity, in CreateAccountInput) (*model.Account, error) {
	if err := rbac.Authorize(id, rbac.IsAdmin); err != nil {
		return nil, err
	}
	return s.create(ctx, in)
}

func (s *AccountService) create(ctx context.Context, in CreateAccountInput) (*model.Account, error) {
	email := NormalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError("имя обязательно")
	}
	role := in.Role
	if role == "" {
		role = rbac.RoleViewer
	}
	if !rbac.IsValidRole(role) {
		return nil, ErrInvalidRole
	}

	// Быстрая проверка; окончательно уникальность гарантирует индекс по lower(email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: учётная запись %s уже существует", ErrConflict, email)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	a := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: учётная запись %s уже существует", ErrConflict, email)
		}
		return nil, err
	}

	s.logger.Info("Учётная запись создана",
		slog.String("account_id", a.ID),
		slog.String("email", a.Email),
		slog.String("role", a.Role),
	)
	return a, nil
}

// Authenticate проверяет email и пароль. Неизвестный email и неверный
// пароль дают одну и ту же ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*rbac.Identity, error) {
	a, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			auth.BurnCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := auth.CheckPassword(a.PasswordHash, password)
	if err != nil {
		s.logger.Error("Повреждённый хэш пароля",
			slog.String("account_id", a.ID),
			slog.String("error", err.Error()),
		)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.TouchLastLogin(ctx, a.ID, s.now().UTC()); err != nil {
		return nil, err
	}

	return &rbac.Identity{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}, nil
}

// Get возвращает учётную запись текущего сотрудника.
func (s *AccountService) Get(ctx context.Context, id *rbac.Identity) (*model.Account, error) {
	if err := rbac.Authorize(id, nil); err != nil {
		return nil, err
	}
	return s.get(ctx, id.ID)
}

func (s *AccountService) get(ctx context.Context, accountID string) (*model.Account, error) {
	if !isUUID(accountID) {
		return nil, ErrNotFound
	}
	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List возвращает все учётные записи. Только для администраторов.
func (s *AccountService) List(ctx context.Context, id *rbac.Identity) ([]*model.Account, error) {
	if err := rbac.Authorize(id, rbac.IsAdmin); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Update меняет имя, роль и пароль. Пароль перехэшируется только если задан.
func (s *AccountService) Update(ctx context.Context, id *rbac.Identity, accountID string, in UpdateAccountInput) (*model.Account, error) {
	if err := rbac.Authorize(id, rbac.IsAdmin); err != nil {
		return nil, err
	}

	a, err := s.get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, validationError("имя не может быть пустым")
		}
		a.Name = name
	}
	if in.Role != nil {
		if !rbac.IsValidRole(*in.Role) {
			return nil, ErrInvalidRole
		}
		a.Role = *in.Role
	}
	if in.Password != nil && *in.Password != "" {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		a.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.logger.Info("Учётная запись обновлена",
		slog.String("account_id", a.ID),
		slog.String("role", a.Role),
		slog.Bool("password_changed", in.Password != nil && *in.Password != ""),
		slog.String("by", id.Email),
	)
	return a, nil
}

// Delete удаляет учётную запись. Удалить себя нельзя.
func (s *AccountService) Delete(ctx context.Context, id *rbac.Identity, accountID string) error {
	if err := rbac.Authorize(id, rbac.IsAdmin); err != nil {
		return err
	}
	if accountID == id.ID {
		return ErrSelfDelete
	}
	if !isUUID(accountID) {
		return ErrNotFound
	}

	if err := s.repo.Delete(ctx, accountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	s.logger.Info("Учётная запись удалена",
		slog.String("account_id", accountID),
		slog.String("by", id.Email),
	)
	return nil
}

// EnsureAccount создаёт учётную запись, если email ещё не занят.
// Возвращает false, если запись уже существовала. Используется seed-утилитой.
func (s *AccountService) EnsureAccount(ctx context.Context, in CreateAccountInput) (bool, error) {
	_, err := s.repo.GetByEmail(ctx, NormalizeEmail(in.Email))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	if _, err := s.create(ctx, in); err != nil {
		if errors.Is(err, ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// validatePassword проверяет, что пароль задан и укладывается в предел bcrypt.
func validatePassword(password string) error {
	if password == "" {
		return validationError("пароль обязателен")
	}
	if len(password) > auth.MaxPasswordBytes {
		return validationError("пароль не должен быть длиннее %d байт", auth.MaxPasswordBytes)
	}
	return nil
}

// isUUID сообщает, что id — UUID в канонической форме. Иные идентификаторы
// не могут существовать в БД и обрабатываются как «не найдено».
func isUUID(id string) bool {
	return len(id) == 36 && uuid.Validate(id) == nil
}
