package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkrecruitment/portal/internal/domain/model"
)

var applicationCols = []string{
	"id", "full_name", "email", "phone", "education", "experience", "skills", "position", "message",
	"cv_filename", "cv_original_name", "cv_path", "cv_size", "cv_mimetype",
	"status", "notes", "submitted_at", "last_updated", "last_updated_by",
}

func applicationRow(rows *pgxmock.Rows, id, status string, notes string, actor *string) *pgxmock.Rows {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return rows.AddRow(
		id, "Jane Doe", "jane@x.com", "123", "BSc", "", "Go", "Engineer", "",
		"f.pdf", "cv.pdf", "/data/uploads/f.pdf", int64(1024), "application/pdf",
		status, []byte(notes), now, now, actor,
	)
}

func TestAccountRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewAccountRepository(mock)
	ctx := context.Background()
	created := time.Now()

	t.Run("успех", func(t *testing.T) {
		a := &model.Account{ID: "acc-1", Email: "a@x.com", PasswordHash: "hash", Name: "A", Role: "viewer"}
		mock.ExpectQuery("INSERT INTO accounts").
			WithArgs(a.ID, a.Email, a.PasswordHash, a.Name, a.Role).
			WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))

		require.NoError(t, r.Create(ctx, a))
		assert.Equal(t, created, a.CreatedAt)
	})

	t.Run("дубликат email", func(t *testing.T) {
		a := &model.Account{ID: "acc-2", Email: "A@x.com", PasswordHash: "hash", Name: "A", Role: "viewer"}
		mock.ExpectQuery("INSERT INTO accounts").
			WithArgs(a.ID, a.Email, a.PasswordHash, a.Name, a.Role).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := r.Create(ctx, a)
		assert.ErrorIs(t, err, ErrConflict)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_GetByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewAccountRepository(mock)
	ctx := context.Background()
	cols := []string{"id", "email", "password_hash", "name", "role", "created_at", "last_login"}
	lastLogin := time.Now()

	t.Run("успех", func(t *testing.T) {
		mock.ExpectQuery("FROM accounts WHERE lower").
			WithArgs("Admin@X.com").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("acc-1", "admin@x.com", "hash", "Admin", "admin", time.Now(), &lastLogin))

		a, err := r.GetByEmail(ctx, "Admin@X.com")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", a.ID)
		assert.Equal(t, "admin", a.Role)
	})

	t.Run("не найдена", func(t *testing.T) {
		mock.ExpectQuery("FROM accounts WHERE lower").
			WithArgs("nobody@x.com").
			WillReturnError(pgx.ErrNoRows)

		_, err := r.GetByEmail(ctx, "nobody@x.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ошибка БД", func(t *testing.T) {
		mock.ExpectQuery("FROM accounts WHERE lower").
			WithArgs("x@x.com").
			WillReturnError(fmt.Errorf("db error"))

		_, err := r.GetByEmail(ctx, "x@x.com")
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrNotFound))
	})
}

func TestAccountRepository_DeleteAndUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewAccountRepository(mock)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM accounts").
		WithArgs("acc-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	assert.NoError(t, r.Delete(ctx, "acc-1"))

	mock.ExpectExec("DELETE FROM accounts").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, r.Delete(ctx, "missing"), ErrNotFound)

	a := &model.Account{ID: "acc-1", Name: "New", Role: "recruiter", PasswordHash: "h2"}
	mock.ExpectExec("UPDATE accounts").
		WithArgs(a.ID, a.Name, a.Role, a.PasswordHash).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	assert.NoError(t, r.Update(ctx, a))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_CreateRejectsInvalidStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewApplicationRepository(mock)
	err = r.Create(context.Background(), &model.Application{ID: "app-1", Status: "Archived"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
	// Запросов к БД быть не должно
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewApplicationRepository(mock)
	now := time.Now()
	a := &model.Application{
		ID: "app-1", FullName: "Jane Doe", Email: "jane@x.com", Phone: "123",
		Education: "BSc", Skills: "Go", Position: "Engineer",
		CVFile: model.CVFile{Filename: "f.pdf", OriginalName: "cv.pdf", Path: "/data/f.pdf", Size: 10, MimeType: "application/pdf"},
		Status: model.StatusNew, SubmittedAt: now, LastUpdated: now,
	}

	mock.ExpectExec("INSERT INTO applications").
		WithArgs(
			a.ID, a.FullName, a.Email, a.Phone, a.Education, "", a.Skills, a.Position, "",
			"f.pdf", "cv.pdf", "/data/f.pdf", int64(10), "application/pdf",
			"New", "[]", now, now, a.LastUpdatedBy,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Create(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewApplicationRepository(mock)
	ctx := context.Background()
	actor := "rec@x.com"

	mock.ExpectQuery("FROM applications WHERE id").
		WithArgs("app-1").
		WillReturnRows(applicationRow(pgxmock.NewRows(applicationCols), "app-1", "Reviewed",
			`[{"text":"Strong","createdBy":"rec@x.com","createdAt":"2026-03-01T11:00:00Z"}]`, &actor))

	a, err := r.GetByID(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReviewed, a.Status)
	require.Len(t, a.Notes, 1)
	assert.Equal(t, "Strong", a.Notes[0].Text)
	assert.Equal(t, "/data/uploads/f.pdf", a.CVFile.Path)

	mock.ExpectQuery("FROM applications WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplicationRepository_Find(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewApplicationRepository(mock)
	search := "50%_off"
	status := model.StatusNew
	filter := model.ApplicationFilter{Search: &search, Status: &status}
	actor := "rec@x.com"

	mock.ExpectQuery(`SELECT count\(\*\) FROM applications WHERE`).
		WithArgs(`%50\%\_off%`, "New").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("ORDER BY full_name ASC").
		WithArgs(`%50\%\_off%`, "New", 2, 2).
		WillReturnRows(applicationRow(pgxmock.NewRows(applicationCols), "app-3", "New", `[]`, &actor))

	items, total, err := r.Find(context.Background(), filter,
		model.ApplicationSort{Field: model.SortFullName}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "app-3", items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewApplicationRepository(mock)
	ctx := context.Background()
	at := time.Now()
	actor := "rec@x.com"

	_, err = r.UpdateStatus(ctx, "app-1", "Archived", actor, at)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	mock.ExpectQuery("UPDATE applications").
		WithArgs("app-1", "Hired", at, actor).
		WillReturnRows(applicationRow(pgxmock.NewRows(applicationCols), "app-1", "Hired", `[]`, &actor))
	a, err := r.UpdateStatus(ctx, "app-1", model.StatusHired, actor, at)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHired, a.Status)

	mock.ExpectQuery("UPDATE applications").
		WithArgs("missing", "Hired", at, actor).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.UpdateStatus(ctx, "missing", model.StatusHired, actor, at)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_AppendNote(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewApplicationRepository(mock)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	note := model.Note{Text: "Call back", CreatedBy: "rec@x.com", CreatedAt: at}

	mock.ExpectExec(`SET notes = notes \|\|`).
		WithArgs("app-1", `[{"text":"Call back","createdBy":"rec@x.com","createdAt":"2026-03-01T12:00:00Z"}]`, at, "rec@x.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.AppendNote(context.Background(), "app-1", note))

	mock.ExpectExec(`SET notes = notes \|\|`).
		WithArgs("missing", pgxmock.AnyArg(), at, "rec@x.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, r.AppendNote(context.Background(), "missing", note), ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_Distinct(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewApplicationRepository(mock)

	mock.ExpectQuery("SELECT DISTINCT position").
		WillReturnRows(pgxmock.NewRows([]string{"position"}).AddRow("Designer").AddRow("Engineer"))
	positions, err := r.DistinctPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Designer", "Engineer"}, positions)

	mock.ExpectQuery("SELECT DISTINCT status").
		WillReturnRows(pgxmock.NewRows([]string{"status"}))
	statuses, err := r.DistinctStatuses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestTxRunner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runner := NewTxRunner(mock)
	ctx := context.Background()

	t.Run("коммит", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT count\(\*\) FROM applications`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
		mock.ExpectCommit()

		var total int
		err := runner.RunInTx(ctx, func(tx pgx.Tx) error {
			var err error
			total, err = NewApplicationRepository(tx).Count(ctx)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 7, total)
	})

	t.Run("откат", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := runner.RunInTx(ctx, func(pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
	})

	t.Run("снимок только для чтения", func(t *testing.T) {
		mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
		mock.ExpectQuery(`SELECT count\(\*\) FROM applications`).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectCommit()

		err := runner.RunInSnapshot(ctx, func(tx pgx.Tx) error {
			_, err := NewApplicationRepository(tx).Count(ctx)
			return err
		})
		require.NoError(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContainsPattern(t *testing.T) {
	tests := []struct{ in, want string }{
		{"jane", "%jane%"},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c:\dir`, `%c:\\dir%`},
	}
	for _, tt := range tests {
		if got := containsPattern(tt.in); got != tt.want {
			t.Errorf("containsPattern(%q) = %q, хотели %q", tt.in, got, tt.want)
		}
	}
}

func TestOrderBy(t *testing.T) {
	tests := []struct {
		sort model.ApplicationSort
		want string
	}{
		{model.DefaultApplicationSort, "ORDER BY submitted_at DESC, id DESC"},
		{model.ApplicationSort{Field: model.SortEmail}, "ORDER BY email ASC, id ASC"},
		{model.ApplicationSort{Field: "password; DROP TABLE", Desc: true}, "ORDER BY submitted_at DESC, id DESC"},
	}
	for _, tt := range tests {
		if got := orderBy(tt.sort); got != tt.want {
			t.Errorf("orderBy(%+v) = %q, хотели %q", tt.sort, got, tt.want)
		}
	}
}
