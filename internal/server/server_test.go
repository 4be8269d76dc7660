package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nkrecruitment/portal/internal/api/handlers"
	"github.com/nkrecruitment/portal/internal/api/middleware"
	"github.com/nkrecruitment/portal/internal/auth"
	"github.com/nkrecruitment/portal/internal/domain/model"
	"github.com/nkrecruitment/portal/internal/domain/rbac"
	"github.com/nkrecruitment/portal/internal/notify"
	"github.com/nkrecruitment/portal/internal/repository"
	"github.com/nkrecruitment/portal/internal/service"
	"github.com/nkrecruitment/portal/internal/storage/filestore"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// memApplications — хранилище заявок в памяти. Статистика панели не нужна
// и не реализована (вызов приведёт к панике встроенного nil-интерфейса).
type memApplications struct {
	repository.ApplicationRepository

	mu   sync.Mutex
	apps map[string]*model.Application
}

func newMemApplications() *memApplications {
	return &memApplications{apps: map[string]*model.Application{}}
}

func clone(a *model.Application) *model.Application {
	cp := *a
	cp.Notes = append([]model.Note{}, a.Notes...)
	return &cp
}

func (m *memApplications) Create(_ context.Context, a *model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.apps[a.ID] = clone(a)
	return nil
}

func (m *memApplications) GetByID(_ context.Context, id string) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(a), nil
}

func (m *memApplications) Find(_ context.Context, f model.ApplicationFilter, _ model.ApplicationSort, limit, offset int) ([]*model.Application, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Application
	for _, a := range m.apps {
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Position != nil && a.Position != *f.Position {
			continue
		}
		all = append(all, clone(a))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SubmittedAt.After(all[j].SubmittedAt) })
	total := len(all)
	if offset >= total {
		return []*model.Application{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (m *memApplications) UpdateStatus(_ context.Context, id string, status model.Status, actor string, at time.Time) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.Status = status
	a.LastUpdated = at
	a.LastUpdatedBy = &actor
	return clone(a), nil
}

func (m *memApplications) AppendNote(_ context.Context, id string, note model.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Notes = append(a.Notes, note)
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

func (m *memApplications) distinct(field func(*model.Application) string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, a := range m.apps {
		if v := field(a); !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func (m *memApplications) DistinctPositions(context.Context) ([]string, error) {
	return m.distinct(func(a *model.Application) string { return a.Position }), nil
}

func (m *memApplications) DistinctStatuses(context.Context) ([]string, error) {
	return m.distinct(func(a *model.Application) string { return string(a.Status) }), nil
}

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
	out := make([]notify.Kind, len(n.jobs))
	for i, j := range n.jobs {
		out[i] = j.Kind
	}
	return out
}

// testEnv — маршрутизатор поверх настоящих сервисов и файлового хранилища.
type testEnv struct {
	router   http.Handler
	tokens   *auth.TokenManager
	repo     *memApplications
	notifier *recordingNotifier
	dataDir  string
}

func newTestEnv(t *testing.T, rc RouterConfig) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dataDir := t.TempDir()
	store, err := filestore.New(dataDir, filestore.DefaultMaxSize, logger)
	if err != nil {
		t.Fatalf("filestore.New() ошибка: %v", err)
	}

	env := &testEnv{
		tokens:   auth.NewTokenManager(testSecret, "nk-recruitment", time.Hour),
		repo:     newMemApplications(),
		notifier: &recordingNotifier{},
		dataDir:  dataDir,
	}
	apps := service.NewApplicationService(env.repo, store, env.notifier, service.NewFilterCache(0), filestore.DefaultMaxSize, logger)
	h := handlers.NewAPIHandler(handlers.NewHealthHandler(nil, nil), apps,
		service.NewAccountService(nil, logger), service.NewDashboardService(nil, logger),
		env.tokens, handlers.Options{MaxCVSize: filestore.DefaultMaxSize}, logger)

	rc.Tokens = env.tokens
	env.router = NewRouter(h, rc, logger)
	return env
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	tok, _, err := e.tokens.Issue(&rbac.Identity{
		ID:    "44444444-4444-4444-4444-444444444444",
		Email: role + "@nkrecruitment.com",
		Name:  role,
		Role:  role,
	})
	if err != nil {
		t.Fatalf("Issue() ошибка: %v", err)
	}
	return tok
}

func (e *testEnv) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) filesOnDisk(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(e.dataDir)
	if err != nil {
		t.Fatalf("ReadDir() ошибка: %v", err)
	}
	return len(entries)
}

func submitRequest(t *testing.T, name, position string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := map[string]string{
		"fullName":  name,
		"email":     "Jane@Example.com",
		"phone":     "+44 20 7946 0000",
		"education": "BSc Computer Science",
		"skills":    "Go, PostgreSQL",
		"position":  position,
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="cvFile"; filename="jane.pdf"`)
	hdr.Set("Content-Type", "application/pdf")
	part, _ := mw.CreatePart(hdr)
	_, _ = part.Write(bytes.Repeat([]byte("p"), 2048))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/applications", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "198.51.100.7:40000"
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("ответ не JSON: %v (%s)", err, w.Body.String())
	}
}

func TestJaneDoeScenario(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(submitRequest(t, "Jane Doe", "Software Engineer"), "")
	if w.Code != http.StatusCreated {
		t.Fatalf("подача: статус %d, тело %s", w.Code, w.Body.String())
	}
	var submitted struct {
		Message       string `json:"message"`
		ApplicationID string `json:"applicationId"`
	}
	decode(t, w, &submitted)
	if submitted.Message != "Application submitted successfully" || submitted.ApplicationID == "" {
		t.Fatalf("ответ = %+v", submitted)
	}
	if env.filesOnDisk(t) != 1 {
		t.Error("файл CV не сохранён")
	}

	// Рекрутер видит заявку со статусом New
	recruiter := env.token(t, rbac.RoleRecruiter)
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/applications/"+submitted.ApplicationID, nil), recruiter)
	if w.Code != http.StatusOK {
		t.Fatalf("получение: статус %d", w.Code)
	}
	var app map[string]any
	decode(t, w, &app)
	if app["status"] != "New" || app["email"] != "jane@example.com" || app["submittedAt"] != app["lastUpdated"] {
		t.Errorf("заявка = %v", app)
	}
	if cv := app["cvFile"].(map[string]any); cv["path"] != nil || cv["originalName"] != "jane.pdf" {
		t.Errorf("cvFile = %v", cv)
	}

	// Смена статуса
	req := httptest.NewRequest(http.MethodPut, "/api/v1/applications/"+submitted.ApplicationID+"/status", strings.NewReader(`{"status":"Interviewed"}`))
	w = env.do(req, recruiter)
	if w.Code != http.StatusOK {
		t.Fatalf("статус: код %d, тело %s", w.Code, w.Body.String())
	}

	want := []notify.Kind{notify.KindConfirmation, notify.KindNewApplication, notify.KindStatusUpdate}
	if got := env.notifier.kinds(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("уведомления = %v, ожидались %v", got, want)
	}

	// Скачивание CV
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/applications/"+submitted.ApplicationID+"/cv", nil), recruiter)
	if w.Code != http.StatusOK || w.Body.Len() != 2048 {
		t.Errorf("CV: статус %d, размер %d", w.Code, w.Body.Len())
	}

	// Удаление убирает и запись, и файл
	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/applications/"+submitted.ApplicationID, nil), env.token(t, rbac.RoleAdmin))
	if w.Code != http.StatusOK {
		t.Fatalf("удаление: статус %d", w.Code)
	}
	if env.filesOnDisk(t) != 0 {
		t.Error("файл CV не удалён")
	}
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/applications/"+submitted.ApplicationID, nil), recruiter)
	if w.Code != http.StatusNotFound {
		t.Errorf("после удаления: статус %d, ожидался 404", w.Code)
	}
}

func TestStatusChange_RoleCheck(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	w := env.do(submitRequest(t, "Jane Doe", "Engineer"), "")
	var submitted struct {
		ApplicationID string `json:"applicationId"`
	}
	decode(t, w, &submitted)
	path := "/api/v1/applications/" + submitted.ApplicationID + "/status"

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"без токена", "", http.StatusUnauthorized},
		{"viewer", env.token(t, rbac.RoleViewer), http.StatusForbidden},
		{"admin", env.token(t, rbac.RoleAdmin), http.StatusOK},
		{"recruiter", env.token(t, rbac.RoleRecruiter), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, path, strings.NewReader(`{"status":"Reviewed"}`))
			if w := env.do(req, tt.token); w.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d (тело %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}

	// Последнее изменение внёс recruiter
	app, err := env.repo.GetByID(context.Background(), submitted.ApplicationID)
	if err != nil {
		t.Fatal(err)
	}
	if app.LastUpdatedBy == nil || *app.LastUpdatedBy != "recruiter@nkrecruitment.com" {
		t.Errorf("LastUpdatedBy = %v", app.LastUpdatedBy)
	}
}

func TestListApplications_Pagination(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 23; i++ {
		_ = env.repo.Create(context.Background(), &model.Application{
			ID:          fmt.Sprintf("00000000-0000-0000-0000-%012d", i),
			FullName:    fmt.Sprintf("Candidate %02d", i),
			Position:    "Engineer",
			Status:      model.StatusNew,
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
			LastUpdated: base.Add(time.Duration(i) * time.Minute),
		})
	}

	var resp struct {
		Applications []map[string]any `json:"applications"`
		Pagination   struct {
			Total int `json:"total"`
			Page  int `json:"page"`
			Limit int `json:"limit"`
			Pages int `json:"pages"`
		} `json:"pagination"`
		Filters struct {
			Positions []string `json:"positions"`
			Statuses  []string `json:"statuses"`
		} `json:"filters"`
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/applications?page=3&limit=10&status=All&position=All", nil), env.token(t, rbac.RoleRecruiter))
	if w.Code != http.StatusOK {
		t.Fatalf("статус = %d, тело %s", w.Code, w.Body.String())
	}
	decode(t, w, &resp)
	if len(resp.Applications) != 3 {
		t.Errorf("на третьей странице %d заявок, ожидалось 3", len(resp.Applications))
	}
	if resp.Pagination.Total != 23 || resp.Pagination.Pages != 3 || resp.Pagination.Page != 3 || resp.Pagination.Limit != 10 {
		t.Errorf("pagination = %+v", resp.Pagination)
	}
	if len(resp.Filters.Positions) != 1 || resp.Filters.Positions[0] != "Engineer" {
		t.Errorf("filters = %+v", resp.Filters)
	}

	// По умолчанию: первая страница, 10 записей, новые первыми
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil), env.token(t, rbac.RoleAdmin))
	decode(t, w, &resp)
	if len(resp.Applications) != 10 || resp.Applications[0]["fullName"] != "Candidate 22" {
		t.Errorf("первая страница: %d записей, первая %v", len(resp.Applications), resp.Applications[0]["fullName"])
	}

	// Viewer к списку не допускается
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil), env.token(t, rbac.RoleViewer))
	if w.Code != http.StatusForbidden {
		t.Errorf("viewer: статус %d, ожидался 403", w.Code)
	}
}

func TestDeleteUnknownApplication(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	admin := env.token(t, rbac.RoleAdmin)

	for _, id := range []string{"5f0c6c1e-8d1b-4d5e-9d7a-0c8f2b1a3e4f", "not-a-uuid"} {
		w := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/applications/"+id, nil), admin)
		if w.Code != http.StatusNotFound {
			t.Errorf("DELETE %s: статус %d, ожидался 404", id, w.Code)
		}
	}
}

func TestSubmit_RateLimited(t *testing.T) {
	env := newTestEnv(t, RouterConfig{
		Limiter:      middleware.NewRateLimiter(),
		SubmitLimit:  2,
		SubmitWindow: time.Hour,
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, env.do(submitRequest(t, fmt.Sprintf("Candidate %d", i), "Engineer"), "").Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated || codes[2] != http.StatusTooManyRequests {
		t.Errorf("коды = %v", codes)
	}
	if env.filesOnDisk(t) != 2 {
		t.Errorf("файлов на диске %d, ожидалось 2", env.filesOnDisk(t))
	}
}

func TestHealthEndpointsWithoutAuth(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})

	for _, path := range []string{"/health/live", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer garbage")
		if w := env.do(req, ""); w.Code != http.StatusOK {
			t.Errorf("%s: статус %d", path, w.Code)
		}
	}
}

// Устаревшая cookie (ротация секрета, истёкшая сессия) не должна закрывать
// публичные маршруты: вход, выход и подачу заявки.
func TestStaleSessionCookie(t *testing.T) {
	env := newTestEnv(t, RouterConfig{})
	stale := &http.Cookie{Name: middleware.SessionCookieName, Value: "expired.or.rotated"}

	t.Run("подача заявки", func(t *testing.T) {
		req := submitRequest(t, "Jane Doe", "Engineer")
		req.AddCookie(stale)
		if w := env.do(req, ""); w.Code != http.StatusCreated {
			t.Fatalf("статус = %d, ожидался 201 (тело %s)", w.Code, w.Body.String())
		}
	})

	t.Run("вход", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
		req.AddCookie(stale)
		// До обработчика запрос доходит: пустые учётные данные дают 400, а не 401
		if w := env.do(req, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("статус = %d, ожидался 400 (тело %s)", w.Code, w.Body.String())
		}
	})

	t.Run("выход", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.AddCookie(stale)
		w := env.do(req, "")
		if w.Code != http.StatusOK {
			t.Fatalf("статус = %d, ожидался 200", w.Code)
		}
		cleared := false
		for _, c := range w.Result().Cookies() {
			if c.Name == middleware.SessionCookieName && c.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Errorf("cookie %s не сброшена: %v", middleware.SessionCookieName, w.Header().Values("Set-Cookie"))
		}
	})

	t.Run("маршрут сотрудников", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/applications", nil)
		req.AddCookie(stale)
		if w := env.do(req, ""); w.Code != http.StatusUnauthorized {
			t.Fatalf("статус = %d, ожидался 401", w.Code)
		}
	})

	t.Run("невалидный Bearer", func(t *testing.T) {
		req := submitRequest(t, "Jane Doe", "Engineer")
		if w := env.do(req, "expired.or.rotated"); w.Code != http.StatusUnauthorized {
			t.Fatalf("статус = %d, ожидался 401", w.Code)
		}
	})
}
