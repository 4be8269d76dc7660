// applications.go — приём заявок кандидатов и операции рекрутеров над ними.
//
// Порядок приёма заявки: проверка файла → проверка полей → сохранение файла
// → запись в БД → постановка писем в очередь. Ошибки отправки писем
// на ответ не влияют.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkrecruitment/portal/internal/domain/model"
	"github.com/nkrecruitment/portal/internal/domain/rbac"
	"github.com/nkrecruitment/portal/internal/notify"
	"github.com/nkrecruitment/portal/internal/repository"
	"github.com/nkrecruitment/portal/internal/storage/filestore"
)

// FilterAll — значение фильтра из UI, означающее «без ограничения».
const FilterAll = "All"

// Значения по умолчанию для списка заявок.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Notifier — очередь уведомлений. Submit не блокирует.
type Notifier interface {
	Submit(job notify.NotificationJob) bool
}

// SubmitInput — данные формы подачи заявки.
type SubmitInput struct {
	FullName   string
	Email      string
	Phone      string
	Education  string
	Experience string
	Skills     string
	Position   string
	Message    string
	// CV — загруженный файл; nil, если файл не приложен
	CV *filestore.Upload
}

// ListQuery — параметры списка заявок в том виде, в каком они пришли из запроса.
type ListQuery struct {
	Search    string
	Status    string
	Position  string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// Pagination — параметры страницы в ответе.
type Pagination struct {
	Total int
	Page  int
	Limit int
	Pages int
}

// ListResult — страница заявок с вариантами фильтров.
type ListResult struct {
	Applications []*model.Application
	Pagination   Pagination
	Filters      FilterOptions
}

// ApplicationService — сервис заявок.
type ApplicationService struct {
	repo      repository.ApplicationRepository
	store     filestore.Store
	notifier  Notifier
	cache     *FilterCache
	maxCVSize int64
	logger    *slog.Logger
	now       func() time.Time
}

// NewApplicationService создаёт сервис заявок.
func NewApplicationService(
	repo repository.ApplicationRepository,
	store filestore.Store,
	notifier Notifier,
	cache *FilterCache,
	maxCVSize int64,
	logger *slog.Logger,
) *ApplicationService {
	if cache == nil {
		cache = NewFilterCache(0)
	}
	return &ApplicationService{
		repo:      repo,
		store:     store,
		notifier:  notifier,
		cache:     cache,
		maxCVSize: maxCVSize,
		logger:    logger.With(slog.String("component", "application_service")),
		now:       time.Now,
	}
}

// requiredField — обязательное поле формы.
type requiredField struct {
	name  string
	value string
}

// Submit принимает заявку кандидата. Доступно без аутентификации.
func (s *ApplicationService) Submit(ctx context.Context, in SubmitInput) (*model.Application, error) {
	// 1. Файл
	if in.CV == nil || in.CV.Reader == nil {
		return nil, validationError("необходимо приложить CV")
	}
	if err := filestore.Validate(in.CV.ContentType, in.CV.Size, s.maxCVSize); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	// 2. Обязательные поля, первое пустое — в ответе
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	for _, f := range []requiredField{
		{"fullName", in.FullName},
		{"email", in.Email},
		{"phone", in.Phone},
		{"education", strings.TrimSpace(in.Education)},
		{"skills", strings.TrimSpace(in.Skills)},
		{"position", strings.TrimSpace(in.Position)},
	} {
		if f.value == "" {
			return nil, validationError("не заполнено обязательное поле %s", f.name)
		}
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}

	// 3. Сохранение файла
	cv, err := s.store.Save(ctx, *in.CV)
	if err != nil {
		if errors.Is(err, filestore.ErrInvalidFile) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	// 4. Запись в БД
	now := s.now().UTC()
	app := &model.Application{
		ID:          uuid.New().String(),
		FullName:    in.FullName,
		Email:       in.Email,
		Phone:       in.Phone,
		Education:   in.Education,
		Experience:  in.Experience,
		Skills:      in.Skills,
		Position:    strings.TrimSpace(in.Position),
		Message:     in.Message,
		CVFile:      *cv,
		Status:      model.StatusNew,
		Notes:       []model.Note{},
		SubmittedAt: now,
		LastUpdated: now,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		if delErr := s.store.Delete(ctx, cv.Path); delErr != nil {
			s.logger.Warn("Не удалось удалить файл после ошибки записи заявки",
				slog.String("path", cv.Path),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, err
	}
	s.cache.Invalidate()

	s.logger.Info("Заявка принята",
		slog.String("application_id", app.ID),
		slog.String("position", app.Position),
		slog.Int64("cv_size", app.CVFile.Size),
	)

	// 5. Письма
	snapshot := *app
	s.notifier.Submit(notify.NotificationJob{Kind: notify.KindConfirmation, Application: &snapshot})
	s.notifier.Submit(notify.NotificationJob{Kind: notify.KindNewApplication, Application: &snapshot})

	return app, nil
}

// buildFilter переводит параметры запроса в фильтр репозитория.
// Пустые значения и FilterAll ограничений не задают.
func buildFilter(q ListQuery) (model.ApplicationFilter, error) {
	var f model.ApplicationFilter
	if search := strings.TrimSpace(q.Search); search != "" {
		f.Search = &search
	}
	if q.Status != "" && q.Status != FilterAll {
		st, err := model.ParseStatus(q.Status)
		if err != nil {
			return f, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		f.Status = &st
	}
	if q.Position != "" && q.Position != FilterAll {
		position := q.Position
		f.Position = &position
	}
	return f, nil
}

// buildSort проверяет поле и направление сортировки.
func buildSort(q ListQuery) (model.ApplicationSort, error) {
	sort := model.DefaultApplicationSort
	if q.SortBy != "" {
		if !repository.IsSortField(q.SortBy) {
			return sort, validationError("недопустимое поле сортировки %q", q.SortBy)
		}
		sort.Field = q.SortBy
	}
	switch strings.ToLower(q.SortOrder) {
	case "", "desc":
		sort.Desc = true
	case "asc":
		sort.Desc = false
	default:
		return sort, validationError("недопустимый порядок сортировки %q", q.SortOrder)
	}
	return sort, nil
}

// PageCount возвращает количество страниц: ceil(total/limit).
func PageCount(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// List возвращает страницу заявок с вариантами фильтров.
func (s *ApplicationService) List(ctx context.Context, id *rbac.Identity, q ListQuery) (*ListResult, error) {
	if err := rbac.Authorize(id, rbac.IsRecruiterOrAdmin); err != nil {
		return nil, err
	}

	filter, err := buildFilter(q)
	if err != nil {
		return nil, err
	}
	sort, err := buildSort(q)
	if err != nil {
		return nil, err
	}
	page := q.Page
	if page < 1 {
		page = DefaultPage
	}
	limit := q.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	items, total, err := s.repo.Find(ctx, filter, sort, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	filters, err := s.filterOptions(ctx)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Applications: items,
		Pagination: Pagination{
			Total: total,
			Page:  page,
			Limit: limit,
			Pages: PageCount(total, limit),
		},
		Filters: *filters,
	}, nil
}

func (s *ApplicationService) filterOptions(ctx context.Context) (*FilterOptions, error) {
	if opts, ok := s.cache.Get(); ok {
		return opts, nil
	}
	positions, err := s.repo.DistinctPositions(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := s.repo.DistinctStatuses(ctx)
	if err != nil {
		return nil, err
	}
	opts := &FilterOptions{Positions: positions, Statuses: statuses}
	s.cache.Set(opts)
	return opts, nil
}

// Get возвращает заявку по идентификатору.
func (s *ApplicationService) Get(ctx context.Context, id *rbac.Identity, appID string) (*model.Application, error) {
	if err := rbac.Authorize(id, rbac.IsRecruiterOrAdmin); err != nil {
		return nil, err
	}
	return s.get(ctx, appID)
}

func (s *ApplicationService) get(ctx context.Context, appID string) (*model.Application, error) {
	if !isUUID(appID) {
		return nil, ErrNotFound
	}
	app, err := s.repo.GetByID(ctx, appID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return app, nil
}

// ChangeStatus меняет статус заявки и ставит в очередь письмо кандидату.
// Повторная установка того же статуса — тоже изменение.
func (s *ApplicationService) ChangeStatus(ctx context.Context, id *rbac.Identity, appID, status string) (*model.Application, error) {
	if err := rbac.Authorize(id, rbac.IsRecruiterOrAdmin); err != nil {
		return nil, err
	}
	st, err := model.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if !isUUID(appID) {
		return nil, ErrNotFound
	}

	app, err := s.repo.UpdateStatus(ctx, appID, st, id.Email, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, repository.ErrInvalidStatus):
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, err
	}
	s.cache.Invalidate()

	s.logger.Info("Статус заявки изменён",
		slog.String("application_id", app.ID),
		slog.String("status", string(app.Status)),
		slog.String("by", id.Email),
	)

	snapshot := *app
	s.notifier.Submit(notify.NotificationJob{Kind: notify.KindStatusUpdate, Application: &snapshot})
	return app, nil
}

// AddNote добавляет заметку к заявке. Пустой текст отклоняется.
func (s *ApplicationService) AddNote(ctx context.Context, id *rbac.Identity, appID, text string) (*model.Note, error) {
	if err := rbac.Authorize(id, rbac.IsRecruiterOrAdmin); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("текст заметки обязателен")
	}
	if !isUUID(appID) {
		return nil, ErrNotFound
	}

	note := model.Note{Text: text, CreatedBy: id.Email, CreatedAt: s.now().UTC()}
	if err := s.repo.AppendNote(ctx, appID, note); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &note, nil
}

// Remove удаляет заявку вместе с файлом CV. Сначала удаляется файл:
// при сбое хранилища запись остаётся и удаление можно повторить.
func (s *ApplicationService) Remove(ctx context.Context, id *rbac.Identity, appID string) error {
	if err := rbac.Authorize(id, rbac.IsRecruiterOrAdmin); err != nil {
		return err
	}
	app, err := s.get(ctx, appID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, app.CVFile.Path); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if err := s.repo.Delete(ctx, app.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.cache.Invalidate()

	s.logger.Info("Заявка удалена",
		slog.String("application_id", app.ID),
		slog.String("by", id.Email),
	)
	return nil
}

// CVFile — открытый файл резюме для отдачи клиенту.
type CVFile struct {
	io.ReadCloser
	Meta model.CVFile
}

// OpenCV открывает файл резюме заявки. Вызывающий обязан закрыть файл.
func (s *ApplicationService) OpenCV(ctx context.Context, id *rbac.Identity, appID string) (*CVFile, error) {
	if err := rbac.Authorize(id, rbac.IsRecruiterOrAdmin); err != nil {
		return nil, err
	}
	app, err := s.get(ctx, appID)
	if err != nil {
		return nil, err
	}
	rc, err := s.store.Open(ctx, app.CVFile.Path)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл CV отсутствует в хранилище", ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return &CVFile{ReadCloser: rc, Meta: app.CVFile}, nil
}
