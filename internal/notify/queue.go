package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nkrecruitment/portal/internal/domain/model"
)

// Kind — тип уведомления.
type Kind string

const (
	// KindConfirmation — подтверждение кандидату о получении заявки.
	KindConfirmation Kind = "confirmation"
	// KindNewApplication — оповещение сотрудников о новой заявке.
	KindNewApplication Kind = "new_application"
	// KindStatusUpdate — письмо кандидату о смене статуса.
	KindStatusUpdate Kind = "status_update"
)

// Результаты обработки задания (метка result).
const (
	resultSent    = "sent"
	resultSkipped = "skipped"
	resultFailed  = "failed"
	resultDropped = "dropped"
)

// jobTimeout — предельное время отправки одного письма.
const jobTimeout = 30 * time.Second

var notificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "nk_notifications_total",
		Help: "Количество заданий на отправку уведомлений по типу и результату.",
	},
	[]string{"kind", "result"},
)

// NotificationJob — задание на отправку уведомления.
// Application — снимок заявки на момент постановки в очередь.
type NotificationJob struct {
	Kind        Kind
	Application *model.Application
}

// Sender — отправитель уведомлений (реализуется Dispatcher).
type Sender interface {
	SendConfirmation(ctx context.Context, email, name string) (bool, error)
	SendNewApplicationAlert(ctx context.Context, app *model.Application) (bool, error)
	SendStatusUpdate(ctx context.Context, app *model.Application) (bool, error)
}

// Queue — ограниченная очередь уведомлений с пулом воркеров.
// Submit не блокирует вызывающего; ошибки отправки только логируются.
// Каждое задание обрабатывается не более одного раза.
type Queue struct {
	sender  Sender
	jobs    chan NotificationJob
	workers int
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue создаёт очередь ёмкостью size с workers воркерами.
func NewQueue(sender Sender, size, workers int, logger *slog.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		sender:  sender,
		jobs:    make(chan NotificationJob, size),
		workers: workers,
		logger:  logger.With(slog.String("component", "notify_queue")),
	}
}

// Start запускает воркеры. ctx — базовый контекст для отправки писем.
func (q *Queue) Start(ctx context.Context) {
	q.logger.Info("Очередь уведомлений запущена",
		slog.Int("workers", q.workers),
		slog.Int("capacity", cap(q.jobs)),
	)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for job := range q.jobs {
				q.process(ctx, job)
			}
		}()
	}
}

// Submit ставит задание в очередь. Возвращает false, если очередь
// переполнена или остановлена; задание при этом отбрасывается.
func (q *Queue) Submit(job NotificationJob) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(job, "очередь остановлена")
		return false
	}

	select {
	case q.jobs <- job:
		return true
	default:
		q.drop(job, "очередь переполнена")
		return false
	}
}

// Stop прекращает приём заданий, дожидается обработки уже поставленных
// и завершения воркеров.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("Очередь уведомлений остановлена")
}

func (q *Queue) drop(job NotificationJob, reason string) {
	notificationsTotal.WithLabelValues(string(job.Kind), resultDropped).Inc()
	q.logger.Warn("Уведомление отброшено",
		slog.String("kind", string(job.Kind)),
		slog.String("reason", reason),
	)
}

func (q *Queue) process(ctx context.Context, job NotificationJob) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	sent, err := q.dispatch(ctx, job)

	result := resultSkipped
	switch {
	case err != nil:
		result = resultFailed
		q.logger.Error("Ошибка отправки уведомления",
			slog.String("kind", string(job.Kind)),
			slog.String("application_id", applicationID(job)),
			slog.String("error", err.Error()),
		)
	case sent:
		result = resultSent
	}
	notificationsTotal.WithLabelValues(string(job.Kind), result).Inc()
}

func (q *Queue) dispatch(ctx context.Context, job NotificationJob) (bool, error) {
	if job.Application == nil {
		return false, fmt.Errorf("задание %s без заявки", job.Kind)
	}
	switch job.Kind {
	case KindConfirmation:
		return q.sender.SendConfirmation(ctx, job.Application.Email, job.Application.FullName)
	case KindNewApplication:
		return q.sender.SendNewApplicationAlert(ctx, job.Application)
	case KindStatusUpdate:
		return q.sender.SendStatusUpdate(ctx, job.Application)
	default:
		return false, fmt.Errorf("неизвестный тип уведомления %q", job.Kind)
	}
}

func applicationID(job NotificationJob) string {
	if job.Application == nil {
		return ""
	}
	return job.Application.ID
}
