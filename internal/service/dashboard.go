// dashboard.go — сводная статистика по заявкам для панели рекрутера.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkrecruitment/portal/internal/domain/model"
	"github.com/nkrecruitment/portal/internal/domain/rbac"
	"github.com/nkrecruitment/portal/internal/repository"
)

// Параметры сводки.
const (
	dashboardTopPositions = 5
	dashboardRecent       = 5
	dashboardDays         = 30
)

// DashboardService — статистика по заявкам.
// Все запросы читают один снимок данных (read-only, REPEATABLE READ).
type DashboardService struct {
	tx     *repository.TxRunner
	logger *slog.Logger
	now    func() time.Time
}

// NewDashboardService создаёт сервис статистики.
func NewDashboardService(tx *repository.TxRunner, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		tx:     tx,
		logger: logger.With(slog.String("component", "dashboard_service")),
		now:    time.Now,
	}
}

// Stats возвращает общее число заявок, разбивку по статусам, популярные
// позиции, последние заявки и подачи по дням за 30 дней.
func (s *DashboardService) Stats(ctx context.Context, id *rbac.Identity) (*model.DashboardStats, error) {
	if err := rbac.Authorize(id, rbac.IsRecruiterOrAdmin); err != nil {
		return nil, err
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(dashboardDays - 1))

	stats := &model.DashboardStats{}
	err := s.tx.RunInSnapshot(ctx, func(tx pgx.Tx) error {
		repo := repository.NewApplicationRepository(tx)

		var err error
		if stats.TotalApplications, err = repo.Count(ctx); err != nil {
			return err
		}
		if stats.ByStatus, err = repo.CountByStatus(ctx); err != nil {
			return err
		}
		if stats.TopPositions, err = repo.CountByPosition(ctx, dashboardTopPositions); err != nil {
			return err
		}
		if stats.Recent, err = repo.Recent(ctx, dashboardRecent); err != nil {
			return err
		}
		daily, err := repo.CountByDay(ctx, since)
		if err != nil {
			return err
		}
		stats.Daily = fillDays(daily, since, dashboardDays)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// fillDays дополняет ряд нулями для дней без заявок.
func fillDays(counts []model.DailyCount, since time.Time, days int) []model.DailyCount {
	byDay := make(map[time.Time]int, len(counts))
	for _, c := range counts {
		byDay[c.Date.UTC().Truncate(24*time.Hour)] += c.Count
	}
	result := make([]model.DailyCount, 0, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i)
		result = append(result, model.DailyCount{Date: day, Count: byDay[day]})
	}
	return result
}
