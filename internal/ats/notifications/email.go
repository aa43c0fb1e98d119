// Уведомления об отчетах ATS: письмо супервайзеру с PDF вложением и сообщение в Telegram.
//
// Основные возможности:
//   - Выбор получателей по справочнику супервайзеров с адресом по умолчанию и копиями.
//   - HTML письмо из встроенного шаблона с текстовой альтернативой.
//   - Ограничение времени отправки по SMTP_TIMEOUT.
//   - Отправка документа в чат Telegram.
package notifications

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
	"gopkg.in/gomail.v2"

	"github.com/cicsa-sst/ats/internal/ats/config"
	"github.com/cicsa-sst/ats/internal/ats/types"
)

var htmlStripPolicy *bluemonday.Policy = bluemonday.StrictPolicy()
var minifier *minify.M = minify.New()

//go:embed templates/*
var defaultTemplates embed.FS

var reportTemplate = template.Must(template.ParseFS(defaultTemplates, "templates/report.html"))

const mailSignature = "CICSA – Sistema de Reportes ATS"

var (
	ErrEmailNotConfigured = errors.New("SMTP_USER / SMTP_PASS not configured")
	ErrNoDocument         = errors.New("no report document to attach")
	ErrSendTimeout        = errors.New("email send timeout")
)

func init() {
	minifier.AddFunc("text/html", html.Minify)
}

// Sender отправка готовых сообщений. Реализуется *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailService struct {
	d   Sender
	cfg *config.Config
}

func NewEmailService(cfg *config.Config) *EmailService {
	if !cfg.MailEnabled() {
		slog.Warn("Report emails disabled, SMTP credentials not set")
	}
	return &EmailService{
		d:   gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		cfg: cfg,
	}
}

// NewEmailServiceWithSender используется в тестах и для альтернативных транспортов.
func NewEmailServiceWithSender(cfg *config.Config, sender Sender) *EmailService {
	return &EmailService{d: sender, cfg: cfg}
}

// ReportSubject тема письма с отчетом: супервайзер, бригада в верхнем регистре и дата отправки.
func ReportSubject(supervisor, crew string, now time.Time) string {
	crew = strings.TrimSpace(crew)
	if crew == "" {
		crew = types.NoCrew
	}
	return fmt.Sprintf("Reporte ATS – %s – %s – %s", supervisor, strings.ToUpper(crew), now.Format(types.DateLayout))
}

// SendReport отправляет PDF отчет супервайзеру, на адрес по умолчанию и копии.
// Без SMTP учетных данных возвращает ErrEmailNotConfigured, ничего не отправляя.
func (es *EmailService) SendReport(ctx context.Context, doc *types.RenderedDocument, supervisor, crew string, now time.Time) error {
	if !es.cfg.MailEnabled() {
		return ErrEmailNotConfigured
	}

	to, cc, err := ResolveRecipients(supervisor, es.cfg.SupervisorEmails, es.cfg.MailToDefault, es.cfg.MailCC)
	if err != nil {
		return err
	}

	if doc == nil || len(doc.Data) == 0 {
		return ErrNoDocument
	}

	subject := ReportSubject(supervisor, crew, now)
	content, text, err := es.getHTML(subject, supervisor, crew, now)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	from := es.cfg.MailFrom
	if from == "" {
		from = es.cfg.SMTPUser
	}
	m.SetHeader("From", from)
	if len(to) > 0 {
		m.SetHeader("To", to...)
	}
	if len(cc) > 0 {
		m.SetHeader("Cc", cc...)
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)
	m.AddAlternative("text/html", content)

	data := doc.Data
	m.Attach(doc.Name,
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}),
		gomail.SetHeader(map[string][]string{"Content-Type": {types.ContentTypePDF}}),
	)

	if err := es.send(ctx, m); err != nil {
		return err
	}
	slog.Info("Report email sent", "to", to, "cc", cc, "file", doc.Name)
	return nil
}

// send ограничивает отправку таймаутом из конфигурации. gomail не принимает контекст,
// поэтому по истечении времени горутина отправки продолжает работу в фоне.
func (es *EmailService) send(ctx context.Context, m *gomail.Message) error {
	ctx, cancel := context.WithTimeout(ctx, es.cfg.SMTPTimeoutDuration())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- es.d.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send report email: %w", err)
		}
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrSendTimeout
		}
		return ctx.Err()
	}
}

// getHTML возвращает минифицированное письмо и его текстовую версию.
func (es *EmailService) getHTML(subject, supervisor, crew string, now time.Time) (string, string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, struct {
		Subject    string
		Supervisor string
		Crew       string
		Date       string
		Signature  string
	}{
		Subject:    subject,
		Supervisor: strings.TrimSpace(supervisor),
		Crew:       strings.ToUpper(strings.TrimSpace(crew)),
		Date:       now.Format(types.DateLayout),
		Signature:  mailSignature,
	}); err != nil {
		return "", "", fmt.Errorf("execute report template: %w", err)
	}
	text := textContent(buf.String())

	res, err := minifier.String("text/html", buf.String())
	if err != nil {
		slog.Warn("Minify report email", "err", err)
		return buf.String(), text, nil
	}
	return res, text, nil
}

func textContent(content string) string {
	content = strings.NewReplacer("<br>", "\n", "</p>", "\n").Replace(content)
	var lines []string
	for _, line := range strings.Split(htmlStripPolicy.Sanitize(content), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
