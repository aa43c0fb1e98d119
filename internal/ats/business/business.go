// Обработка заполненной заявки ATS: формирование PDF и рассылка по всем каналам.
//
// Формирование документа единственный обязательный шаг. Письмо, Telegram, хранилище,
// загрузка по ссылке и запись в реестр выполняются независимо, их ошибки попадают в отчет
// обработки и не отменяют уже сформированный документ.
package business

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/cicsa-sst/ats/internal/ats/dao"
	filestorage "github.com/cicsa-sst/ats/internal/ats/file-storage"
	"github.com/cicsa-sst/ats/internal/ats/notifications"
	"github.com/cicsa-sst/ats/internal/ats/types"
)

const (
	StepRender     = "render"
	StepEmail      = "email"
	StepTelegram   = "telegram"
	StepStorage    = "storage"
	StepLinkUpload = "link_upload"
	StepRegistry   = "registry"
	StepCleanup    = "cleanup"
)

var stepsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ats",
	Name:      "report_steps_total",
	Help:      "Report processing steps by outcome",
}, []string{"step", "outcome"})

var renderDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Namespace: "ats",
	Name:      "report_render_seconds",
	Help:      "Time spent rendering ATS reports",
	Buckets:   prometheus.DefBuckets,
})

func init() {
	prometheus.MustRegister(stepsCounter, renderDuration)
}

type Renderer interface {
	Render(sub types.Submission) (*types.RenderedDocument, error)
}

type Mailer interface {
	SendReport(ctx context.Context, doc *types.RenderedDocument, supervisor, crew string, now time.Time) error
}

type DocumentNotifier interface {
	SendReport(ctx context.Context, doc *types.RenderedDocument, caption string) error
}

type LinkUploader interface {
	Upload(ctx context.Context, supervisor, date, name string, data []byte) error
}

// Deps зависимости обработки. Пустые каналы считаются отключенными.
type Deps struct {
	DB       *gorm.DB
	Renderer Renderer
	Mailer   Mailer
	Telegram DocumentNotifier
	Storage  filestorage.ObjectStorage
	Uploader LinkUploader
	Now      func() time.Time
}

type Business struct {
	db       *gorm.DB
	renderer Renderer
	mailer   Mailer
	telegram DocumentNotifier
	storage  filestorage.ObjectStorage
	uploader LinkUploader
	now      func() time.Time
}

func NewBL(deps Deps) *Business {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Business{
		db:       deps.DB,
		renderer: deps.Renderer,
		mailer:   deps.Mailer,
		telegram: deps.Telegram,
		storage:  deps.Storage,
		uploader: deps.Uploader,
		now:      deps.Now,
	}
}

// StepResult результат одного шага обработки.
type StepResult struct {
	Step    string
	Skipped bool
	Err     error
}

func (s StepResult) Outcome() string {
	switch {
	case s.Skipped:
		return "skipped"
	case s.Err != nil:
		return "failed"
	}
	return "ok"
}

type ProcessReport struct {
	Document   *types.RenderedDocument
	StorageKey string
	PublicURL  string
	Steps      []StepResult
}

// Step результат шага по имени.
func (r *ProcessReport) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Step == name {
			return s, true
		}
	}
	return StepResult{}, false
}

func (r *ProcessReport) add(res StepResult) {
	stepsCounter.WithLabelValues(res.Step, res.Outcome()).Inc()
	switch res.Outcome() {
	case "failed":
		slog.Warn("Report step failed", "step", res.Step, "err", res.Err)
	case "skipped":
		slog.Info("Report step skipped", "step", res.Step, "reason", res.Err)
	}
	r.Steps = append(r.Steps, res)
}

// skippedErrors признаки отключенного канала, такие шаги не считаются ошибкой.
var skippedErrors = []error{
	notifications.ErrEmailNotConfigured,
	notifications.ErrNoRecipients,
	notifications.ErrTelegramDisabled,
	filestorage.ErrStorageDisabled,
	filestorage.ErrUploadLinkNotConfigured,
}

func newResult(step string, err error) StepResult {
	for _, skip := range skippedErrors {
		if errors.Is(err, skip) {
			return StepResult{Step: step, Skipped: true, Err: err}
		}
	}
	return StepResult{Step: step, Err: err}
}

// ProcessSubmission формирует PDF и выполняет все последующие шаги.
// Возвращает ошибку только если документ не удалось сформировать.
// Временные изображения заявки удаляются при любом исходе.
func (b *Business) ProcessSubmission(ctx context.Context, sub types.Submission) (report *ProcessReport, err error) {
	report = &ProcessReport{}
	tempFiles := sub.TempFiles()
	defer func() {
		report.add(cleanupLeftovers(tempFiles))
	}()

	start := time.Now()
	doc, err := b.renderer.Render(sub)
	renderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		report.add(StepResult{Step: StepRender, Err: err})
		return report, fmt.Errorf("render report: %w", err)
	}
	report.Document = doc
	report.add(StepResult{Step: StepRender})
	slog.Info("ATS report rendered", "file", doc.Name, "crew", sub.Crew, "participants", len(sub.Participants))

	now := b.now()
	report.add(b.sendEmail(ctx, doc, sub, now))
	report.add(b.sendTelegram(ctx, doc, sub, now))
	report.add(b.saveToStorage(ctx, doc, sub, report))
	report.add(b.uploadByLink(ctx, doc, sub))
	report.add(b.register(sub, report))

	return report, nil
}

func (b *Business) sendEmail(ctx context.Context, doc *types.RenderedDocument, sub types.Submission, now time.Time) StepResult {
	if b.mailer == nil {
		return StepResult{Step: StepEmail, Skipped: true}
	}
	return newResult(StepEmail, b.mailer.SendReport(ctx, doc, sub.Supervisor, sub.Crew, now))
}

func (b *Business) sendTelegram(ctx context.Context, doc *types.RenderedDocument, sub types.Submission, now time.Time) StepResult {
	if b.telegram == nil {
		return StepResult{Step: StepTelegram, Skipped: true}
	}
	caption := notifications.ReportSubject(sub.Supervisor, sub.Crew, now)
	return newResult(StepTelegram, b.telegram.SendReport(ctx, doc, caption))
}

func (b *Business) saveToStorage(ctx context.Context, doc *types.RenderedDocument, sub types.Submission, report *ProcessReport) StepResult {
	if b.storage == nil {
		return StepResult{Step: StepStorage, Skipped: true}
	}
	key := filestorage.ReportKey(sub.Date, sub.Crew, doc.Name)
	if err := b.storage.Save(ctx, key, doc.Data, types.ContentTypePDF); err != nil {
		return newResult(StepStorage, err)
	}
	report.StorageKey = key
	report.PublicURL = b.storage.PublicURL(key)
	slog.Info("Report saved to storage", "key", key)
	return StepResult{Step: StepStorage}
}

func (b *Business) uploadByLink(ctx context.Context, doc *types.RenderedDocument, sub types.Submission) StepResult {
	if b.uploader == nil {
		return StepResult{Step: StepLinkUpload, Skipped: true}
	}
	return newResult(StepLinkUpload, b.uploader.Upload(ctx, sub.Supervisor, sub.Date, doc.Name, doc.Data))
}

func (b *Business) register(sub types.Submission, report *ProcessReport) StepResult {
	if b.db == nil {
		return StepResult{Step: StepRegistry, Skipped: true}
	}
	rec := dao.DailyRecord{
		Date:             sub.Date,
		Crew:             sub.Crew,
		Zone:             sub.Zone,
		Contractor:       sub.Contractor,
		RegisteringUser:  sub.RegisteringUser,
		Supervisor:       sub.Supervisor,
		TechniciansCount: len(sub.Participants),
		Completed:        true,
		PDFPath:          report.StorageKey,
		PDFURL:           report.PublicURL,
	}
	return newResult(StepRegistry, dao.UpsertDailyRecord(b.db, &rec))
}

// cleanupLeftovers удаляет временные файлы, оставшиеся после рендера.
func cleanupLeftovers(paths []string) StepResult {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return StepResult{Step: StepCleanup, Err: errors.Join(errs...)}
}
