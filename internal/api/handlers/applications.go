// applications.go — обработчики /api/v1/applications.
// Подача заявки публична, остальные операции требуют роли recruiter или admin.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/nkrecruitment/portal/internal/api/errors"
	"github.com/nkrecruitment/portal/internal/api/middleware"
	"github.com/nkrecruitment/portal/internal/domain/model"
	"github.com/nkrecruitment/portal/internal/service"
	"github.com/nkrecruitment/portal/internal/storage/filestore"
)

const (
	// formOverhead — запас к размеру CV на текстовые поля формы.
	formOverhead = 1 << 20
	// multipartMemory — часть формы, которая держится в памяти, остальное во временных файлах.
	multipartMemory = 1 << 20

	applicationNotFound = "Заявка не найдена"
)

type submitResponse struct {
	Message       string `json:"message"`
	ApplicationID string `json:"applicationId"`
}

// SubmitApplication — POST /api/v1/applications.
// multipart/form-data: поля анкеты и файл cvFile.
func (h *APIHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	maxCV := h.opts.MaxCVSize
	if maxCV <= 0 {
		maxCV = filestore.DefaultMaxSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxCV+formOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			// Сообщение совпадает с проверкой размера в сервисе
			h.handleServiceError(w, r, fmt.Errorf("%w: %w", service.ErrValidation, filestore.ErrTooLarge), applicationNotFound)
			return
		}
		apierrors.ValidationError(w, "Некорректная multipart-форма: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := service.SubmitInput{
		FullName:   r.FormValue("fullName"),
		Email:      r.FormValue("email"),
		Phone:      r.FormValue("phone"),
		Education:  r.FormValue("education"),
		Experience: r.FormValue("experience"),
		Skills:     r.FormValue("skills"),
		Position:   r.FormValue("position"),
		Message:    r.FormValue("message"),
	}

	file, header, err := r.FormFile("cvFile")
	switch {
	case err == nil:
		defer file.Close()
		in.CV = &filestore.Upload{
			Reader:       file,
			OriginalName: header.Filename,
			ContentType:  header.Header.Get("Content-Type"),
			Size:         header.Size,
		}
	case errors.Is(err, http.ErrMissingFile):
		// Сервис вернёт ошибку валидации
	default:
		apierrors.ValidationError(w, "Некорректный файл CV: "+err.Error())
		return
	}

	app, err := h.applications.Submit(r.Context(), in)
	if err != nil {
		h.handleServiceError(w, r, err, applicationNotFound)
		return
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		Message:       "Application submitted successfully",
		ApplicationID: app.ID,
	})
}

// ListApplications — GET /api/v1/applications.
// Параметры: search, status, position, page, limit, sortBy, sortOrder.
func (h *APIHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	res, err := h.applications.List(r.Context(), middleware.IdentityFromContext(r.Context()), service.ListQuery{
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		Position:  q.Get("position"),
		Page:      page,
		Limit:     limit,
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	})
	if err != nil {
		h.handleServiceError(w, r, err, applicationNotFound)
		return
	}

	writeJSON(w, http.StatusOK, mapApplicationList(res))
}

// GetApplication — GET /api/v1/applications/{id}.
func (h *APIHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.applications.Get(r.Context(), middleware.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err, applicationNotFound)
		return
	}
	writeJSON(w, http.StatusOK, mapApplication(app))
}

// DownloadCV — GET /api/v1/applications/{id}/cv.
// Отдаёт файл резюме под исходным именем.
func (h *APIHandler) DownloadCV(w http.ResponseWriter, r *http.Request) {
	cv, err := h.applications.OpenCV(r.Context(), middleware.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err, applicationNotFound)
		return
	}
	defer cv.Close()

	contentType := cv.Meta.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": cv.Meta.OriginalName,
	}))
	if cv.Meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(cv.Meta.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, cv); err != nil {
		h.logger.Warn("Ошибка отдачи файла CV",
			slog.String("application_id", chi.URLParam(r, "id")),
			slog.String("error", err.Error()),
		)
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Message     string `json:"message"`
	Application struct {
		ID          string       `json:"id"`
		Status      model.Status `json:"status"`
		LastUpdated time.Time    `json:"lastUpdated"`
	} `json:"application"`
}

// UpdateApplicationStatus — PUT /api/v1/applications/{id}/status.
func (h *APIHandler) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	app, err := h.applications.ChangeStatus(r.Context(), middleware.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.handleServiceError(w, r, err, applicationNotFound)
		return
	}

	var resp statusResponse
	resp.Message = "Application status updated"
	resp.Application.ID = app.ID
	resp.Application.Status = app.Status
	resp.Application.LastUpdated = app.LastUpdated
	writeJSON(w, http.StatusOK, resp)
}

type noteRequest struct {
	Text string `json:"text"`
}

type noteResponse struct {
	Message string      `json:"message"`
	Note    *model.Note `json:"note"`
}

// AddApplicationNote — POST /api/v1/applications/{id}/notes.
func (h *APIHandler) AddApplicationNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	note, err := h.applications.AddNote(r.Context(), middleware.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.handleServiceError(w, r, err, applicationNotFound)
		return
	}
	writeJSON(w, http.StatusOK, noteResponse{Message: "Note added", Note: note})
}

// DeleteApplication — DELETE /api/v1/applications/{id}.
// Удаляет файл CV и запись.
func (h *APIHandler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := h.applications.Remove(r.Context(), middleware.IdentityFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err, applicationNotFound)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Application removed"})
}
