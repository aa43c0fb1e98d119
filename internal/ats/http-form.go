// Форма ATS: данные для заполнения и прием заполненной заявки.
package ats

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"

	"github.com/cicsa-sst/ats/internal/ats/apierrors"
	"github.com/cicsa-sst/ats/internal/ats/business"
	"github.com/cicsa-sst/ats/internal/ats/dao"
	"github.com/cicsa-sst/ats/internal/ats/intake"
	"github.com/cicsa-sst/ats/internal/ats/types"
)

// Сообщение пользователю после обработки. Возвращается при любом исходе шагов после формирования PDF.
const SubmissionSuccessMessage = "✅ Reporte ATS generado, enviado por correo y registrado correctamente."

func (s *Services) AddFormServices(g *echo.Group) {
	g.GET("form/", s.getFormPage)
	g.POST("form/", s.submitForm)
}

type FormPageResponse struct {
	User            types.SessionUser     `json:"usuario"`
	Technicians     []types.Technician    `json:"tecnicos"`
	Talks           []types.ScheduledTalk `json:"charlas"`
	MaxParticipants int                   `json:"max_participantes"`
}

// SubmissionRequest общие поля формы. Поля слотов техников читаются отдельно.
// Лимиты max совпадают с types.MaxTextFieldLength и types.MaxRecommendationsLength.
type SubmissionRequest struct {
	Date            string   `form:"fecha_dia" validate:"omitempty,isodate"`
	StartTime       string   `form:"hora_inicio" validate:"omitempty,clock"`
	EndTime         string   `form:"hora_fin" validate:"omitempty,clock"`
	WorkType        string   `form:"trabajo" validate:"max=300"`
	WorkTypeOther   string   `form:"trabajo_otro" validate:"max=300"`
	Location        string   `form:"lugar_trabajo" validate:"max=300"`
	Recommendations string   `form:"recomendaciones" validate:"max=2000"`
	Supervisor      string   `form:"supervisor" validate:"max=300"`
	TalkItem        string   `form:"charla" validate:"max=300"`
	PresenterManual string   `form:"expositor_charla" validate:"max=300"`
	Hazards         []string `form:"riesgos[]" validate:"dive,max=300"`
	HazardOther     string   `form:"riesgos_otro" validate:"max=300"`
}

type StepStatus struct {
	Step   string `json:"paso"`
	Status string `json:"estado"`
	Error  string `json:"error,omitempty"`
}

type SubmissionResponse struct {
	Message string       `json:"mensaje"`
	File    string       `json:"archivo"`
	PDFURL  string       `json:"pdf_url,omitempty"`
	Steps   []StepStatus `json:"pasos"`
}

func (s *Services) getFormPage(c echo.Context) error {
	user := c.(AuthContext).User
	technicians, talks := s.loadDirectory()
	return c.JSON(http.StatusOK, FormPageResponse{
		User:            user,
		Technicians:     technicians,
		Talks:           talks,
		MaxParticipants: s.cfg.MaxParticipants,
	})
}

// loadDirectory ошибки чтения справочников логируются, форма работает с пустыми списками.
func (s *Services) loadDirectory() ([]types.Technician, []types.ScheduledTalk) {
	technicians := []types.Technician{}
	if users, err := dao.ActiveTechnicians(s.db); err != nil {
		slog.Warn("Load active technicians", "err", err)
	} else {
		for _, u := range users {
			technicians = append(technicians, u.ToTechnician())
		}
	}

	talks := []types.ScheduledTalk{}
	if rows, err := dao.ScheduledTalks(s.db); err != nil {
		slog.Warn("Load scheduled talks", "err", err)
	} else {
		for _, t := range rows {
			talks = append(talks, t.ToDTO())
		}
	}
	return technicians, talks
}

func (s *Services) submitForm(c echo.Context) error {
	user := c.(AuthContext).User

	var req SubmissionRequest
	if err := c.Bind(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormParse)
	}
	if err := c.Validate(&req); err != nil {
		return EErrorDefined(c, apierrors.ErrFormValidation.WithFormattedMessage(validationFields(err)))
	}

	in := intake.FormInput{
		Date:            strings.TrimSpace(req.Date),
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		WorkType:        req.WorkType,
		WorkTypeOther:   req.WorkTypeOther,
		Location:        req.Location,
		Recommendations: req.Recommendations,
		Supervisor:      req.Supervisor,
		TalkItem:        req.TalkItem,
		PresenterManual: req.PresenterManual,
		Hazards:         req.Hazards,
		HazardOther:     req.HazardOther,
	}

	params, err := c.FormParams()
	if err != nil {
		return EErrorDefined(c, apierrors.ErrFormParse)
	}

	var files []io.Closer
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	var tooLong []string
	for i := 1; i <= s.cfg.MaxParticipants; i++ {
		if utf8.RuneCountInString(strings.TrimSpace(c.FormValue(fmt.Sprintf("obs%d", i)))) > types.MaxObservationLength {
			tooLong = append(tooLong, fmt.Sprintf("obs%d", i))
		}
	}
	if len(tooLong) > 0 {
		return EErrorDefined(c, apierrors.ErrFormValidation.WithFormattedMessage(strings.Join(tooLong, ", ")))
	}

	for i := 1; i <= s.cfg.MaxParticipants; i++ {
		slot := intake.SlotInput{
			TechnicianKey: c.FormValue(fmt.Sprintf("tec%d", i)),
			Observation:   c.FormValue(fmt.Sprintf("obs%d", i)),
			Signature:     c.FormValue(fmt.Sprintf("firma%d", i)),
			Equipment:     params[fmt.Sprintf("epp%d[]", i)],
		}
		if upload, f := openUpload(c, fmt.Sprintf("foto_tec%d", i)); upload != nil {
			files = append(files, f)
			slot.Photo = upload
		}
		in.Slots = append(in.Slots, slot)
	}
	if upload, f := openUpload(c, "foto_epp"); upload != nil {
		files = append(files, f)
		in.GeneralPhoto = upload
	}

	technicians, talks := s.loadDirectory()
	sub, err := intake.Build(in, user, technicians, talks, s.assets, intake.Options{
		Now:             time.Now(),
		MaxParticipants: s.cfg.MaxParticipants,
		Area:            s.cfg.WorkArea,
	})
	if err != nil {
		if errors.Is(err, intake.ErrNoSession) {
			return EErrorDefined(c, apierrors.ErrSessionRequired)
		}
		return EError(c, err)
	}

	report, err := s.business.ProcessSubmission(c.Request().Context(), sub)
	if err != nil {
		slog.Error("Generate ATS report", "user", user.Login, "err", err)
		return EErrorDefined(c, apierrors.ErrReportRender)
	}

	if c.QueryParam("download") == "true" {
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", report.Document.Name))
		return c.Blob(http.StatusOK, types.ContentTypePDF, report.Document.Data)
	}

	return c.JSON(http.StatusOK, newSubmissionResponse(report))
}

func newSubmissionResponse(report *business.ProcessReport) SubmissionResponse {
	resp := SubmissionResponse{
		Message: SubmissionSuccessMessage,
		File:    report.Document.Name,
		PDFURL:  report.PublicURL,
	}
	for _, step := range report.Steps {
		st := StepStatus{Step: step.Step, Status: step.Outcome()}
		if step.Err != nil {
			st.Error = step.Err.Error()
		}
		resp.Steps = append(resp.Steps, st)
	}
	return resp
}

// openUpload открывает файл формы. Для отсутствующего или пустого поля возвращает nil.
func openUpload(c echo.Context, name string) (*intake.Upload, multipart.File) {
	fh, err := c.FormFile(name)
	if err != nil || fh.Filename == "" {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		slog.Warn("Open form upload", "field", name, "err", err)
		return nil, nil
	}
	return &intake.Upload{Name: fh.Filename, Reader: f}, f
}

func validationFields(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var fields []string
	for _, fe := range ve {
		fields = append(fields, fe.Field())
	}
	return strings.Join(fields, ", ")
}
