package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkrecruitment/portal/internal/domain/model"
)

// ApplicationRepository — интерфейс доступа к таблице applications.
type ApplicationRepository interface {
	// Create сохраняет новую заявку.
	Create(ctx context.Context, a *model.Application) error
	// GetByID возвращает заявку по UUID.
	GetByID(ctx context.Context, id string) (*model.Application, error)
	// Find возвращает страницу заявок и общее количество подходящих под фильтр.
	Find(ctx context.Context, filter model.ApplicationFilter, sort model.ApplicationSort, limit, offset int) ([]*model.Application, int, error)
	// UpdateStatus меняет статус и возвращает обновлённую заявку.
	UpdateStatus(ctx context.Context, id string, status model.Status, actor string, at time.Time) (*model.Application, error)
	// AppendNote атомарно добавляет заметку в конец списка.
	AppendNote(ctx context.Context, id string, note model.Note) error
	// Delete удаляет заявку.
	Delete(ctx context.Context, id string) error
	// DistinctPositions возвращает все позиции, на которые есть заявки.
	DistinctPositions(ctx context.Context) ([]string, error)
	// DistinctStatuses возвращает все статусы, встречающиеся в заявках.
	DistinctStatuses(ctx context.Context) ([]string, error)

	// Count возвращает общее количество заявок.
	Count(ctx context.Context) (int, error)
	// CountByStatus группирует заявки по статусу.
	CountByStatus(ctx context.Context) ([]model.Count, error)
	// CountByPosition возвращает limit самых популярных позиций.
	CountByPosition(ctx context.Context, limit int) ([]model.Count, error)
	// Recent возвращает limit последних заявок.
	Recent(ctx context.Context, limit int) ([]*model.Application, error)
	// CountByDay группирует заявки, поданные начиная с since, по дням (UTC).
	CountByDay(ctx context.Context, since time.Time) ([]model.DailyCount, error)
}

const applicationColumns = `id, full_name, email, phone, education, experience, skills, position, message,
	cv_filename, cv_original_name, cv_path, cv_size, cv_mimetype,
	status, notes, submitted_at, last_updated, last_updated_by`

// sortColumns — допустимые поля сортировки и соответствующие колонки.
var sortColumns = map[string]string{
	model.SortSubmittedAt: "submitted_at",
	model.SortLastUpdated: "last_updated",
	model.SortFullName:    "full_name",
	model.SortEmail:       "email",
	model.SortPosition:    "position",
	model.SortStatus:      "status",
}

// IsSortField сообщает, поддерживается ли поле сортировки.
func IsSortField(field string) bool {
	_, ok := sortColumns[field]
	return ok
}

// applicationRepo — реализация ApplicationRepository.
type applicationRepo struct {
	db DBTX
}

// NewApplicationRepository создаёт репозиторий заявок.
func NewApplicationRepository(db DBTX) ApplicationRepository {
	return &applicationRepo{db: db}
}

func scanApplication(row pgx.Row) (*model.Application, error) {
	a := &model.Application{}
	var status string
	var notes []byte
	if err := row.Scan(
		&a.ID, &a.FullName, &a.Email, &a.Phone, &a.Education, &a.Experience, &a.Skills, &a.Position, &a.Message,
		&a.CVFile.Filename, &a.CVFile.OriginalName, &a.CVFile.Path, &a.CVFile.Size, &a.CVFile.MimeType,
		&status, &notes, &a.SubmittedAt, &a.LastUpdated, &a.LastUpdatedBy,
	); err != nil {
		return nil, err
	}
	a.Status = model.Status(status)
	a.Notes = []model.Note{}
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &a.Notes); err != nil {
			return nil, fmt.Errorf("ошибка разбора заметок: %w", err)
		}
	}
	return a, nil
}

func (r *applicationRepo) Create(ctx context.Context, a *model.Application) error {
	if !a.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}
	notes, err := json.Marshal(notesOrEmpty(a.Notes))
	if err != nil {
		return fmt.Errorf("ошибка сериализации заметок: %w", err)
	}

	query := `
		INSERT INTO applications (id, full_name, email, phone, education, experience, skills, position, message,
			cv_filename, cv_original_name, cv_path, cv_size, cv_mimetype,
			status, notes, submitted_at, last_updated, last_updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err = r.db.Exec(ctx, query,
		a.ID, a.FullName, a.Email, a.Phone, a.Education, a.Experience, a.Skills, a.Position, a.Message,
		a.CVFile.Filename, a.CVFile.OriginalName, a.CVFile.Path, a.CVFile.Size, a.CVFile.MimeType,
		string(a.Status), string(notes), a.SubmittedAt, a.LastUpdated, a.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: заявка с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return nil
}

func (r *applicationRepo) GetByID(ctx context.Context, id string) (*model.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	a, err := scanApplication(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return a, nil
}

// buildApplicationWhere строит WHERE-условие и аргументы для фильтрации заявок.
func buildApplicationWhere(filter model.ApplicationFilter, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	if filter.Search != nil && *filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(full_name ILIKE $%d OR email ILIKE $%d OR position ILIKE $%d)", argNum, argNum, argNum))
		args = append(args, containsPattern(*filter.Search))
		argNum++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, string(*filter.Status))
		argNum++
	}
	if filter.Position != nil {
		conditions = append(conditions, fmt.Sprintf("position = $%d", argNum))
		args = append(args, *filter.Position)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// orderBy возвращает ORDER BY по белому списку колонок.
// id добавляется для стабильной пагинации при равных значениях.
func orderBy(sort model.ApplicationSort) string {
	col, ok := sortColumns[sort.Field]
	if !ok {
		col = sortColumns[model.SortSubmittedAt]
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", col, dir, dir)
}

func (r *applicationRepo) Find(ctx context.Context, filter model.ApplicationFilter, sort model.ApplicationSort, limit, offset int) ([]*model.Application, int, error) {
	where, args := buildApplicationWhere(filter, 1)

	var total int
	countQuery := `SELECT count(*) FROM applications ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта заявок: %w", err)
	}

	argNum := len(args) + 1
	query := fmt.Sprintf(`
		SELECT %s
		FROM applications
		%s
		%s
		LIMIT $%d OFFSET $%d`, applicationColumns, where, orderBy(sort), argNum, argNum+1)

	args = append(args, limit, offset)

	items, err := r.queryApplications(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *applicationRepo) queryApplications(ctx context.Context, query string, args ...any) ([]*model.Application, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заявок: %w", err)
	}
	defer rows.Close()

	result := []*model.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заявки: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *applicationRepo) UpdateStatus(ctx context.Context, id string, status model.Status, actor string, at time.Time) (*model.Application, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	query := `
		UPDATE applications
		SET status = $2, last_updated = $3, last_updated_by = $4
		WHERE id = $1
		RETURNING ` + applicationColumns

	a, err := scanApplication(r.db.QueryRow(ctx, query, id, string(status), at, actor))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка обновления статуса заявки: %w", err)
	}
	return a, nil
}

func (r *applicationRepo) AppendNote(ctx context.Context, id string, note model.Note) error {
	payload, err := json.Marshal([]model.Note{note})
	if err != nil {
		return fmt.Errorf("ошибка сериализации заметки: %w", err)
	}

	query := `
		UPDATE applications
		SET notes = notes || $2::jsonb, last_updated = $3, last_updated_by = $4
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, string(payload), note.CreatedAt, note.CreatedBy)
	if err != nil {
		return fmt.Errorf("ошибка добавления заметки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *applicationRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления заявки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *applicationRepo) DistinctPositions(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT position FROM applications ORDER BY position`)
}

func (r *applicationRepo) DistinctStatuses(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT status FROM applications ORDER BY status`)
}

func (r *applicationRepo) queryStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения уникальных значений: %w", err)
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("ошибка сканирования значения: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *applicationRepo) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM applications`).Scan(&total); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта заявок: %w", err)
	}
	return total, nil
}

func (r *applicationRepo) CountByStatus(ctx context.Context) ([]model.Count, error) {
	return r.queryCounts(ctx, `
		SELECT status, count(*) FROM applications
		GROUP BY status
		ORDER BY count(*) DESC, status`)
}

func (r *applicationRepo) CountByPosition(ctx context.Context, limit int) ([]model.Count, error) {
	return r.queryCounts(ctx, `
		SELECT position, count(*) FROM applications
		GROUP BY position
		ORDER BY count(*) DESC, position
		LIMIT $1`, limit)
}

func (r *applicationRepo) queryCounts(ctx context.Context, query string, args ...any) ([]model.Count, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка группировки заявок: %w", err)
	}
	defer rows.Close()

	result := []model.Count{}
	for rows.Next() {
		var c model.Count
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования группы: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *applicationRepo) Recent(ctx context.Context, limit int) ([]*model.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications ORDER BY submitted_at DESC, id DESC LIMIT $1`
	return r.queryApplications(ctx, query, limit)
}

func (r *applicationRepo) CountByDay(ctx context.Context, since time.Time) ([]model.DailyCount, error) {
	query := `
		SELECT date_trunc('day', submitted_at AT TIME ZONE 'UTC') AS day, count(*)
		FROM applications
		WHERE submitted_at >= $1
		GROUP BY day
		ORDER BY day`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("ошибка группировки заявок по дням: %w", err)
	}
	defer rows.Close()

	result := []model.DailyCount{}
	for rows.Next() {
		var d model.DailyCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, fmt.Errorf("ошибка сканирования дня: %w", err)
		}
		d.Date = d.Date.UTC()
		result = append(result, d)
	}
	return result, rows.Err()
}

func notesOrEmpty(notes []model.Note) []model.Note {
	if notes == nil {
		return []model.Note{}
	}
	return notes
}
