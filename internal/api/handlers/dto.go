// dto.go — JSON-представления доменных моделей.
// Путь к файлу CV и хэш пароля наружу не отдаются.
package handlers

import (
	"time"

	"github.com/nkrecruitment/portal/internal/domain/model"
	"github.com/nkrecruitment/portal/internal/service"
)

type cvFileJSON struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType"`
}

type applicationJSON struct {
	ID            string       `json:"id"`
	FullName      string       `json:"fullName"`
	Email         string       `json:"email"`
	Phone         string       `json:"phone"`
	Education     string       `json:"education"`
	Experience    string       `json:"experience"`
	Skills        string       `json:"skills"`
	Position      string       `json:"position"`
	Message       string       `json:"message"`
	CVFile        cvFileJSON   `json:"cvFile"`
	Status        model.Status `json:"status"`
	Notes         []model.Note `json:"notes"`
	SubmittedAt   time.Time    `json:"submittedAt"`
	LastUpdated   time.Time    `json:"lastUpdated"`
	LastUpdatedBy *string      `json:"lastUpdatedBy,omitempty"`
}

func mapApplication(a *model.Application) applicationJSON {
	notes := a.Notes
	if notes == nil {
		notes = []model.Note{}
	}
	return applicationJSON{
		ID:         a.ID,
		FullName:   a.FullName,
		Email:      a.Email,
		Phone:      a.Phone,
		Education:  a.Education,
		Experience: a.Experience,
		Skills:     a.Skills,
		Position:   a.Position,
		Message:    a.Message,
		CVFile: cvFileJSON{
			Filename:     a.CVFile.Filename,
			OriginalName: a.CVFile.OriginalName,
			Size:         a.CVFile.Size,
			MimeType:     a.CVFile.MimeType,
		},
		Status:        a.Status,
		Notes:         notes,
		SubmittedAt:   a.SubmittedAt,
		LastUpdated:   a.LastUpdated,
		LastUpdatedBy: a.LastUpdatedBy,
	}
}

type paginationJSON struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

type filtersJSON struct {
	Positions []string `json:"positions"`
	Statuses  []string `json:"statuses"`
}

type applicationListJSON struct {
	Applications []applicationJSON `json:"applications"`
	Pagination   paginationJSON    `json:"pagination"`
	Filters      filtersJSON       `json:"filters"`
}

func mapApplicationList(res *service.ListResult) applicationListJSON {
	items := make([]applicationJSON, len(res.Applications))
	for i, a := range res.Applications {
		items[i] = mapApplication(a)
	}
	return applicationListJSON{
		Applications: items,
		Pagination: paginationJSON{
			Total: res.Pagination.Total,
			Page:  res.Pagination.Page,
			Limit: res.Pagination.Limit,
			Pages: res.Pagination.Pages,
		},
		Filters: filtersJSON{
			Positions: nonNil(res.Filters.Positions),
			Statuses:  nonNil(res.Filters.Statuses),
		},
	}
}

// nonNil — пустой список вместо null в JSON.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type userJSON struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      string     `json:"role"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func mapAccount(a *model.Account) userJSON {
	u := userJSON{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		Role:      a.Role,
		LastLogin: a.LastLogin,
	}
	if !a.CreatedAt.IsZero() {
		created := a.CreatedAt
		u.CreatedAt = &created
	}
	return u
}

type countJSON struct {
	ID    string `json:"_id"`
	Count int    `json:"count"`
}

type recentJSON struct {
	ID          string       `json:"id"`
	FullName    string       `json:"fullName"`
	Email       string       `json:"email"`
	Position    string       `json:"position"`
	Status      model.Status `json:"status"`
	SubmittedAt time.Time    `json:"submittedAt"`
}

type dailyJSON struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type dashboardJSON struct {
	TotalApplications      int          `json:"totalApplications"`
	ApplicationsByStatus   []countJSON  `json:"applicationsByStatus"`
	ApplicationsByPosition []countJSON  `json:"applicationsByPosition"`
	RecentApplications     []recentJSON `json:"recentApplications"`
	ApplicationsByDate     []dailyJSON  `json:"applicationsByDate"`
}

func mapCounts(counts []model.Count) []countJSON {
	out := make([]countJSON, len(counts))
	for i, c := range counts {
		out[i] = countJSON{ID: c.Key, Count: c.Count}
	}
	return out
}

func mapDashboard(s *model.DashboardStats) dashboardJSON {
	recent := make([]recentJSON, len(s.Recent))
	for i, a := range s.Recent {
		recent[i] = recentJSON{
			ID:          a.ID,
			FullName:    a.FullName,
			Email:       a.Email,
			Position:    a.Position,
			Status:      a.Status,
			SubmittedAt: a.SubmittedAt,
		}
	}
	daily := make([]dailyJSON, len(s.Daily))
	for i, d := range s.Daily {
		daily[i] = dailyJSON{Date: d.Date.Format(time.DateOnly), Count: d.Count}
	}
	return dashboardJSON{
		TotalApplications:      s.TotalApplications,
		ApplicationsByStatus:   mapCounts(s.ByStatus),
		ApplicationsByPosition: mapCounts(s.TopPositions),
		RecentApplications:     recent,
		ApplicationsByDate:     daily,
	}
}
