package business

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cicsa-sst/ats/internal/ats/dao"
	"github.com/cicsa-sst/ats/internal/ats/export"
	filestorage "github.com/cicsa-sst/ats/internal/ats/file-storage"
	"github.com/cicsa-sst/ats/internal/ats/notifications"
	"github.com/cicsa-sst/ats/internal/ats/types"
)

var fixedNow = time.Date(2025, 3, 4, 8, 30, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(dao.AllModels()...))
	return db
}

type fakeMailer struct {
	calls      int
	supervisor string
	crew       string
	err        error
}

func (f *fakeMailer) SendReport(ctx context.Context, doc *types.RenderedDocument, supervisor, crew string, now time.Time) error {
	f.calls++
	f.supervisor, f.crew = supervisor, crew
	return f.err
}

type fakeTelegram struct {
	caption string
	err     error
}

func (f *fakeTelegram) SendReport(ctx context.Context, doc *types.RenderedDocument, caption string) error {
	f.caption = caption
	return f.err
}

type fakeStorage struct {
	saved map[string][]byte
	err   error
}

func (f *fakeStorage) Save(ctx context.Context, key string, data []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[key] = data
	return nil
}

func (f *fakeStorage) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

type fakeUploader struct {
	supervisor, date, name string
	err                    error
}

func (f *fakeUploader) Upload(ctx context.Context, supervisor, date, name string, data []byte) error {
	f.supervisor, f.date, f.name = supervisor, date, name
	return f.err
}

type failingRenderer struct{}

func (failingRenderer) Render(sub types.Submission) (*types.RenderedDocument, error) {
	return nil, errors.New("broken layout")
}

func sampleSubmission(t *testing.T) types.Submission {
	dir := t.TempDir()
	photo := filepath.Join(dir, "foto_general_1.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("not really a jpeg"), 0644))
	return types.Submission{
		Date:            "2025-03-04",
		StartTime:       "08:00",
		EndTime:         "09:00",
		Activity:        "Empalme de fibra",
		Location:        "Av. Arequipa 123",
		Supervisor:      "JUAN PEREZ",
		Hazards:         []string{"Caída a distinto nivel"},
		Crew:            "BRIGADA 7",
		Zone:            "Lima Norte",
		Contractor:      "CONTRATA SAC",
		RegisteringUser: "jperez",
		Participants: []types.Participant{
			{ItemNumber: 1, Login: "jperez", Name: "Juan Perez", EquipmentTags: []string{"Casco"}},
			{ItemNumber: 3, Login: "aramos", Name: "Ana Ramos"},
		},
		GeneralPhotoPath: photo,
	}
}

func newRenderer() *export.Renderer {
	return export.NewRenderer(export.LayoutOptions{}, func() time.Time { return fixedNow }, nil)
}

func TestProcessSubmission(t *testing.T) {
	db := setupTestDB(t)
	mailer := &fakeMailer{}
	tg := &fakeTelegram{}
	storage := &fakeStorage{}
	uploader := &fakeUploader{}

	bl := NewBL(Deps{
		DB:       db,
		Renderer: newRenderer(),
		Mailer:   mailer,
		Telegram: tg,
		Storage:  storage,
		Uploader: uploader,
		Now:      func() time.Time { return fixedNow },
	})

	sub := sampleSubmission(t)
	report, err := bl.ProcessSubmission(context.Background(), sub)
	require.NoError(t, err)
	require.NotNil(t, report.Document)
	assert.Equal(t, "ATS_20250304_083000.pdf", report.Document.Name)
	assert.Equal(t, "%PDF-", string(report.Document.Data[:5]))

	for _, step := range []string{StepRender, StepEmail, StepTelegram, StepStorage, StepLinkUpload, StepRegistry, StepCleanup} {
		res, ok := report.Step(step)
		require.True(t, ok, step)
		assert.Equal(t, "ok", res.Outcome(), step)
	}

	assert.Equal(t, 1, mailer.calls)
	assert.Equal(t, "JUAN PEREZ", mailer.supervisor)
	assert.Equal(t, "BRIGADA 7", mailer.crew)
	assert.Equal(t, "Reporte ATS – JUAN PEREZ – BRIGADA 7 – 2025-03-04", tg.caption)

	key := "ats/2025-03-04/BRIGADA_7/ATS_20250304_083000.pdf"
	assert.Contains(t, storage.saved, key)
	assert.Equal(t, key, report.StorageKey)
	assert.Equal(t, "https://cdn.example.com/"+key, report.PublicURL)

	assert.Equal(t, "JUAN PEREZ", uploader.supervisor)
	assert.Equal(t, "2025-03-04", uploader.date)

	rec, err := dao.GetDailyRecord(db, "2025-03-04", "BRIGADA 7", "CONTRATA SAC")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TechniciansCount)
	assert.True(t, rec.Completed)
	assert.Equal(t, key, rec.PDFPath)
	assert.Equal(t, "jperez", rec.RegisteringUser)

	_, err = os.Stat(sub.GeneralPhotoPath)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessSubmissionDownstreamFailures(t *testing.T) {
	db := setupTestDB(t)
	bl := NewBL(Deps{
		DB:       db,
		Renderer: newRenderer(),
		Mailer:   &fakeMailer{err: errors.New("smtp down")},
		Telegram: &fakeTelegram{err: notifications.ErrTelegramDisabled},
		Storage:  &fakeStorage{err: errors.New("bucket missing")},
		Uploader: &fakeUploader{err: filestorage.ErrUploadLinkNotConfigured},
	})

	sub := sampleSubmission(t)
	report, err := bl.ProcessSubmission(context.Background(), sub)
	require.NoError(t, err)
	require.NotNil(t, report.Document)

	email, _ := report.Step(StepEmail)
	assert.Equal(t, "failed", email.Outcome())
	tg, _ := report.Step(StepTelegram)
	assert.Equal(t, "skipped", tg.Outcome())
	storage, _ := report.Step(StepStorage)
	assert.Equal(t, "failed", storage.Outcome())
	link, _ := report.Step(StepLinkUpload)
	assert.Equal(t, "skipped", link.Outcome())

	rec, err := dao.GetDailyRecord(db, "2025-03-04", "BRIGADA 7", "CONTRATA SAC")
	require.NoError(t, err)
	assert.Empty(t, rec.PDFPath)
	assert.Empty(t, rec.PDFURL)
	assert.Empty(t, report.StorageKey)

	_, err = os.Stat(sub.GeneralPhotoPath)
	assert.True(t, os.IsNotExist(err))
}

func TestProcessSubmissionRenderFailure(t *testing.T) {
	db := setupTestDB(t)
	mailer := &fakeMailer{}
	bl := NewBL(Deps{DB: db, Renderer: failingRenderer{}, Mailer: mailer})

	sub := sampleSubmission(t)
	report, err := bl.ProcessSubmission(context.Background(), sub)
	require.Error(t, err)
	assert.Nil(t, report.Document)
	assert.Zero(t, mailer.calls)

	render, ok := report.Step(StepRender)
	require.True(t, ok)
	assert.Equal(t, "failed", render.Outcome())
	_, ok = report.Step(StepRegistry)
	assert.False(t, ok)

	cleanup, ok := report.Step(StepCleanup)
	require.True(t, ok)
	assert.Equal(t, "ok", cleanup.Outcome())
	_, err = os.Stat(sub.GeneralPhotoPath)
	assert.True(t, os.IsNotExist(err))

	var count int64
	db.Model(&dao.DailyRecord{}).Count(&count)
	assert.Zero(t, count)
}

func TestProcessSubmissionOptionalChannels(t *testing.T) {
	bl := NewBL(Deps{Renderer: newRenderer()})

	report, err := bl.ProcessSubmission(context.Background(), sampleSubmission(t))
	require.NoError(t, err)
	for _, step := range []string{StepEmail, StepTelegram, StepStorage, StepLinkUpload, StepRegistry} {
		res, ok := report.Step(step)
		require.True(t, ok, step)
		assert.True(t, res.Skipped, step)
	}
}

func TestProcessSubmissionRegistryUpsert(t *testing.T) {
	db := setupTestDB(t)
	bl := NewBL(Deps{DB: db, Renderer: newRenderer()})

	sub := sampleSubmission(t)
	_, err := bl.ProcessSubmission(context.Background(), sub)
	require.NoError(t, err)

	sub = sampleSubmission(t)
	sub.Supervisor = "OTRO SUPERVISOR"
	sub.Participants = sub.Participants[:1]
	_, err = bl.ProcessSubmission(context.Background(), sub)
	require.NoError(t, err)

	var count int64
	db.Model(&dao.DailyRecord{}).Count(&count)
	assert.Equal(t, int64(1), count)

	rec, err := dao.GetDailyRecord(db, "2025-03-04", "BRIGADA 7", "CONTRATA SAC")
	require.NoError(t, err)
	assert.Equal(t, "OTRO SUPERVISOR", rec.Supervisor)
	assert.Equal(t, 1, rec.TechniciansCount)
}
