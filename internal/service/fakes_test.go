package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nkrecruitment/portal/internal/domain/model"
	"github.com/nkrecruitment/portal/internal/domain/rbac"
	"github.com/nkrecruitment/portal/internal/notify"
	"github.com/nkrecruitment/portal/internal/repository"
	"github.com/nkrecruitment/portal/internal/storage/filestore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	adminID     = &rbac.Identity{ID: "11111111-1111-1111-1111-111111111111", Email: "admin@nk.com", Name: "Admin", Role: rbac.RoleAdmin}
	recruiterID = &rbac.Identity{ID: "22222222-2222-2222-2222-222222222222", Email: "rec@nk.com", Name: "Rec", Role: rbac.RoleRecruiter}
	viewerID    = &rbac.Identity{ID: "33333333-3333-3333-3333-333333333333", Email: "view@nk.com", Name: "View", Role: rbac.RoleViewer}
)

// --- Учётные записи ---

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: map[string]*model.Account{}}
}

func (m *memAccounts) Create(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.accounts {
		if strings.EqualFold(x.Email, a.Email) {
			return repository.ErrConflict
		}
	}
	a.CreatedAt = time.Now()
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccounts) List(context.Context) ([]*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Account
	for _, a := range m.accounts {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memAccounts) Update(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *a
	m.accounts[a.ID] = &cp
	return nil
}

func (m *memAccounts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *memAccounts) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.LastLogin = &at
	return nil
}

// --- Заявки ---

type memApplications struct {
	mu        sync.Mutex
	apps      map[string]*model.Application
	createErr error
	distinct  int // количество вызовов DistinctPositions
}

func newMemApplications() *memApplications {
	return &memApplications{apps: map[string]*model.Application{}}
}

func (m *memApplications) Create(_ context.Context, a *model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *a
	m.apps[a.ID] = &cp
	return nil
}

func (m *memApplications) GetByID(_ context.Context, id string) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	cp.Notes = append([]model.Note(nil), a.Notes...)
	return &cp, nil
}

func (m *memApplications) Find(_ context.Context, f model.ApplicationFilter, _ model.ApplicationSort, limit, offset int) ([]*model.Application, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*model.Application
	for _, a := range m.apps {
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Position != nil && a.Position != *f.Position {
			continue
		}
		if f.Search != nil {
			q := strings.ToLower(*f.Search)
			if !strings.Contains(strings.ToLower(a.FullName+" "+a.Email+" "+a.Position), q) {
				continue
			}
		}
		cp := *a
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].SubmittedAt.After(matched[j].SubmittedAt) })
	total := len(matched)
	if offset >= total {
		return []*model.Application{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (m *memApplications) UpdateStatus(_ context.Context, id string, status model.Status, actor string, at time.Time) (*model.Application, error) {
	if !status.IsValid() {
		return nil, repository.ErrInvalidStatus
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.Status = status
	a.LastUpdated = at
	a.LastUpdatedBy = &actor
	cp := *a
	return &cp, nil
}

func (m *memApplications) AppendNote(_ context.Context, id string, note model.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Notes = append(a.Notes, note)
	a.LastUpdated = note.CreatedAt
	a.LastUpdatedBy = &note.CreatedBy
	return nil
}

func (m *memApplications) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.apps, id)
	return nil
}

func (m *memApplications) DistinctPositions(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.distinct++
	set := map[string]bool{}
	for _, a := range m.apps {
		set[a.Position] = true
	}
	out := []string{}
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memApplications) DistinctStatuses(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := map[string]bool{}
	for _, a := range m.apps {
		set[string(a.Status)] = true
	}
	out := []string{}
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memApplications) Count(context.Context) (int, error) { return len(m.apps), nil }

func (m *memApplications) CountByStatus(context.Context) ([]model.Count, error) { return nil, nil }

func (m *memApplications) CountByPosition(context.Context, int) ([]model.Count, error) {
	return nil, nil
}

func (m *memApplications) Recent(context.Context, int) ([]*model.Application, error) {
	return nil, nil
}

func (m *memApplications) CountByDay(context.Context, time.Time) ([]model.DailyCount, error) {
	return nil, nil
}

func (m *memApplications) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.apps)
}

// --- Хранилище файлов ---

type memStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	saveErr   error
	deleteErr error
	deletes   int
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (s *memStore) Save(_ context.Context, u filestore.Upload) (*model.CVFile, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	data, err := io.ReadAll(u.Reader)
	if err != nil {
		return nil, err
	}
	name := filestore.GenerateName(u.OriginalName)
	path := "/uploads/" + name
	s.mu.Lock()
	s.files[path] = data
	s.mu.Unlock()
	return &model.CVFile{
		Filename:     name,
		OriginalName: u.OriginalName,
		Path:         path,
		Size:         int64(len(data)),
		MimeType:     u.ContentType,
	}, nil
}

func (s *memStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.files, path)
	return nil
}

func (s *memStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, filestore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// --- Очередь уведомлений ---

type recordingNotifier struct {
	mu   sync.Mutex
	jobs []notify.NotificationJob
}

func (n *recordingNotifier) Submit(job notify.NotificationJob) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return true
}

func (n *recordingNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Kind, 0, len(n.jobs))
	for _, j := range n.jobs {
		out = append(out, j.Kind)
	}
	return out
}

var errBoom = errors.New("boom")
