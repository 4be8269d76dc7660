package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"gopkg.in/yaml.v3"

	"github.com/nkrecruitment/portal/internal/domain/model"
)

//go:embed templates.yaml
var defaultTemplates []byte

// rawTemplate — шаблон письма в YAML.
type rawTemplate struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// rawCatalog — структура templates.yaml.
type rawCatalog struct {
	SenderName      string                 `yaml:"sender_name"`
	AlertSenderName string                 `yaml:"alert_sender_name"`
	Confirmation    rawTemplate            `yaml:"confirmation"`
	NewApplication  rawTemplate            `yaml:"new_application"`
	StatusLayout    string                 `yaml:"status_layout"`
	Statuses        map[string]rawTemplate `yaml:"statuses"`
}

// mailTemplate — разобранный шаблон.
type mailTemplate struct {
	subject string
	body    *template.Template
}

// Catalog — набор шаблонов писем.
type Catalog struct {
	senderName      string
	alertSenderName string
	confirmation    mailTemplate
	newApplication  mailTemplate
	statusLayout    *template.Template
	statuses        map[model.Status]mailTemplate
}

// Rendered — готовое письмо.
type Rendered struct {
	Subject string
	HTML    string
}

// LoadCatalog разбирает встроенный templates.yaml.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(defaultTemplates)
}

// ParseCatalog разбирает каталог шаблонов из YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ошибка разбора шаблонов писем: %w", err)
	}

	c := &Catalog{
		senderName:      raw.SenderName,
		alertSenderName: raw.AlertSenderName,
		statuses:        make(map[model.Status]mailTemplate, len(raw.Statuses)),
	}

	var err error
	if c.confirmation, err = parseTemplate("confirmation", raw.Confirmation); err != nil {
		return nil, err
	}
	if c.newApplication, err = parseTemplate("new_application", raw.NewApplication); err != nil {
		return nil, err
	}
	if c.statusLayout, err = template.New("status_layout").Parse(raw.StatusLayout); err != nil {
		return nil, fmt.Errorf("шаблон status_layout: %w", err)
	}

	for name, t := range raw.Statuses {
		status, err := model.ParseStatus(name)
		if err != nil {
			return nil, fmt.Errorf("шаблон статуса: %w", err)
		}
		if c.statuses[status], err = parseTemplate("status_"+name, t); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func parseTemplate(name string, raw rawTemplate) (mailTemplate, error) {
	if raw.Subject == "" {
		return mailTemplate{}, fmt.Errorf("шаблон %s: пустая тема", name)
	}
	body, err := template.New(name).Parse(raw.Body)
	if err != nil {
		return mailTemplate{}, fmt.Errorf("шаблон %s: %w", name, err)
	}
	return mailTemplate{subject: raw.Subject, body: body}, nil
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("ошибка рендеринга шаблона %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// Confirmation — письмо кандидату о получении заявки.
func (c *Catalog) Confirmation(name string) (*Rendered, error) {
	html, err := execute(c.confirmation.body, struct{ Name string }{name})
	if err != nil {
		return nil, err
	}
	return &Rendered{Subject: c.confirmation.subject, HTML: html}, nil
}

// NewApplication — оповещение сотрудников о новой заявке.
func (c *Catalog) NewApplication(app *model.Application, adminURL string) (*Rendered, error) {
	html, err := execute(c.newApplication.body, struct {
		Application *model.Application
		AdminURL    string
	}{app, adminURL})
	if err != nil {
		return nil, err
	}
	return &Rendered{Subject: c.newApplication.subject, HTML: html}, nil
}

// StatusUpdate — письмо кандидату о смене статуса.
// Для статусов без шаблона (New) возвращает nil без ошибки.
func (c *Catalog) StatusUpdate(app *model.Application) (*Rendered, error) {
	t, ok := c.statuses[app.Status]
	if !ok {
		return nil, nil
	}
	content, err := execute(t.body, app)
	if err != nil {
		return nil, err
	}
	html, err := execute(c.statusLayout, struct {
		Application *model.Application
		Content     template.HTML
	}{app, template.HTML(content)}) //nolint:gosec // содержимое — встроенный шаблон
	if err != nil {
		return nil, err
	}
	return &Rendered{Subject: t.subject, HTML: html}, nil
}
