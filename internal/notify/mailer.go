package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// Message — письмо для отправки.
type Message struct {
	FromName string
	To       string
	Subject  string
	HTML     string
}

// Mailer — транспорт отправки писем.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig — параметры SMTP-сервера.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPMailer — отправка через SMTP (go-mail).
// Порт 465 — неявный TLS, иначе STARTTLS при поддержке сервером.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer создаёт SMTP-транспорт.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
	}
	if m.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}

// Send формирует и отправляет HTML-письмо.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	mm := mail.NewMsg()
	if err := mm.FromFormat(msg.FromName, m.cfg.From); err != nil {
		return fmt.Errorf("некорректный адрес отправителя %s: %w", m.cfg.From, err)
	}
	if err := mm.To(msg.To); err != nil {
		return fmt.Errorf("некорректный адрес получателя %s: %w", msg.To, err)
	}
	mm.Subject(msg.Subject)
	mm.SetBodyString(mail.TypeTextHTML, msg.HTML)

	client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("ошибка создания SMTP-клиента: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, mm); err != nil {
		return fmt.Errorf("ошибка отправки письма через %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
	}
	return nil
}
