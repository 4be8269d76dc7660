// Пакет notify — уведомления по email: шаблоны, SMTP-транспорт,
// диспетчер и фоновая очередь отправки.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nkrecruitment/portal/internal/domain/model"
)

// DispatcherConfig — параметры диспетчера уведомлений.
type DispatcherConfig struct {
	// Enabled — заданы SMTP-хост и пользователь
	Enabled bool
	// AdminEmail — адрес для оповещений о новых заявках (пусто — не отправлять)
	AdminEmail string
	// AdminURL — ссылка на админ-панель в оповещениях
	AdminURL string
}

// Dispatcher формирует письма по шаблонам и отправляет их через Mailer.
// Методы возвращают true, если письмо отправлено; false без ошибки —
// если отправка не настроена или для случая нет шаблона.
type Dispatcher struct {
	mailer  Mailer
	catalog *Catalog
	cfg     DispatcherConfig
	logger  *slog.Logger
}

// NewDispatcher создаёт диспетчер уведомлений.
func NewDispatcher(mailer Mailer, catalog *Catalog, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:  mailer,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "notify_dispatcher")),
	}
}

// SendConfirmation отправляет кандидату подтверждение получения заявки.
func (d *Dispatcher) SendConfirmation(ctx context.Context, email, name string) (bool, error) {
	if !d.cfg.Enabled {
		d.logger.Info("Почта не настроена, подтверждение не отправлено")
		return false, nil
	}
	r, err := d.catalog.Confirmation(name)
	if err != nil {
		return false, err
	}
	return d.send(ctx, d.catalog.senderName, email, r)
}

// SendNewApplicationAlert оповещает сотрудников о новой заявке.
func (d *Dispatcher) SendNewApplicationAlert(ctx context.Context, app *model.Application) (bool, error) {
	if !d.cfg.Enabled || d.cfg.AdminEmail == "" {
		d.logger.Info("Почта или адрес оповещений не настроены, оповещение не отправлено")
		return false, nil
	}
	r, err := d.catalog.NewApplication(app, d.cfg.AdminURL)
	if err != nil {
		return false, err
	}
	return d.send(ctx, d.catalog.alertSenderName, d.cfg.AdminEmail, r)
}

// SendStatusUpdate сообщает кандидату о смене статуса заявки.
// Для статуса New письмо не отправляется.
func (d *Dispatcher) SendStatusUpdate(ctx context.Context, app *model.Application) (bool, error) {
	if !d.cfg.Enabled {
		d.logger.Info("Почта не настроена, уведомление о статусе не отправлено")
		return false, nil
	}
	r, err := d.catalog.StatusUpdate(app)
	if err != nil {
		return false, err
	}
	if r == nil {
		return false, nil
	}
	return d.send(ctx, d.catalog.senderName, app.Email, r)
}

func (d *Dispatcher) send(ctx context.Context, fromName, to string, r *Rendered) (bool, error) {
	err := d.mailer.Send(ctx, Message{
		FromName: fromName,
		To:       to,
		Subject:  r.Subject,
		HTML:     r.HTML,
	})
	if err != nil {
		return false, fmt.Errorf("письмо %q: %w", r.Subject, err)
	}
	d.logger.Info("Письмо отправлено",
		slog.String("to", to),
		slog.String("subject", r.Subject),
	)
	return true, nil
}
