// Типы данных отчета ATS (Análisis de Trabajo Seguro): заявка бригады, участники и готовый документ.
//
// Основные возможности:
//   - Описание заявки, формируемой из полей формы.
//   - Описание участника бригады с отметками EPP.
//   - Контекст авторизованного пользователя, передаваемый явно в обработку формы.
//   - Готовый PDF документ с именем файла.
package types

import (
	"strings"
	"time"
)

const (
	// Значение по умолчанию для поля supervisor
	NoSupervisor = "SIN SUPERVISOR"
	// Значение по умолчанию для бригады
	NoCrew = "SIN BRIGADA"
	// Литерал селектора вида работ, при котором используется свободный текст
	OtherWorkType = "OTRO"
	// Английский вариант того же литерала
	OtherWorkTypeEN = "OTHER"
	// Строка матрицы рисков при пустом списке опасностей
	NoHazards = "Sin riesgos registrados"

	DefaultMaxParticipants = 3

	// Ограничения длины свободного текста формы, в символах. Строка отчета с текстом такой длины помещается на страницу.
	MaxObservationLength     = 800
	MaxRecommendationsLength = 2000
	MaxTextFieldLength       = 300

	DateLayout = "2006-01-02"
)

// SessionUser данные авторизованного пользователя, из которых берутся организационные поля заявки.
type SessionUser struct {
	ID         string `json:"id"`
	Login      string `json:"usuario"`
	Name       string `json:"nombre"`
	Role       string `json:"cargo"`
	Crew       string `json:"brigada"`
	Zone       string `json:"zona"`
	Contractor string `json:"contrata"`
	NationalID string `json:"dni"`
}

// CrewOrDefault возвращает бригаду пользователя или NoCrew.
func (u SessionUser) CrewOrDefault() string {
	if strings.TrimSpace(u.Crew) == "" {
		return NoCrew
	}
	return u.Crew
}

type Participant struct {
	// Номер слота формы (1..MaxParticipants)
	ItemNumber int    `json:"item"`
	Login      string `json:"usuario"`
	Name       string `json:"nombre"`
	Role       string `json:"cargo"`
	NationalID string `json:"dni"`
	Crew       string `json:"brigada"`
	Zone       string `json:"zona"`
	Contractor string `json:"contrata"`

	EquipmentTags []string `json:"epp"`
	Observation   string   `json:"obs"`

	// Пути к временным файлам, пусто если изображения нет
	SignaturePath string `json:"firma_path,omitempty"`
	PhotoPath     string `json:"foto_path,omitempty"`
}

// Submission заполненная форма ATS. После сборки не изменяется.
type Submission struct {
	Date      string `json:"fecha_dia"`
	StartTime string `json:"hora_inicio"`
	EndTime   string `json:"hora_fin"`

	Activity        string `json:"actividad"`
	Location        string `json:"lugar_trabajo"`
	Recommendations string `json:"recomendaciones"`
	Supervisor      string `json:"supervisor"`

	BriefingTopic     string `json:"tema_charla"`
	BriefingPresenter string `json:"expositor_charla"`

	Hazards      []string      `json:"riesgos"`
	Participants []Participant `json:"tecnicos"`

	GeneralPhotoPath string `json:"foto_path,omitempty"`

	Crew            string `json:"brigada"`
	Zone            string `json:"zona_usuario"`
	Contractor      string `json:"contrata"`
	RegisteringUser string `json:"usuario_registro"`
	Area            string `json:"area"`
}

// TempFiles возвращает все временные файлы изображений, на которые ссылается заявка.
func (s *Submission) TempFiles() []string {
	var files []string
	if s.GeneralPhotoPath != "" {
		files = append(files, s.GeneralPhotoPath)
	}
	for _, p := range s.Participants {
		if p.SignaturePath != "" {
			files = append(files, p.SignaturePath)
		}
		if p.PhotoPath != "" {
			files = append(files, p.PhotoPath)
		}
	}
	return files
}

// RenderedDocument готовый PDF отчет.
type RenderedDocument struct {
	Name      string
	Data      []byte
	CreatedAt time.Time
}

const ContentTypePDF = "application/pdf"

// Technician запись справочника активных техников.
type Technician struct {
	Login      string `json:"usuario"`
	Name       string `json:"nombre"`
	Role       string `json:"cargo"`
	Crew       string `json:"brigada"`
	Zone       string `json:"zona"`
	Contractor string `json:"contrata"`
	NationalID string `json:"dni"`
}

// ScheduledTalk запланированная пятиминутная беседа.
type ScheduledTalk struct {
	Item      int    `json:"item"`
	Topic     string `json:"tema"`
	Presenter string `json:"expositor"`
}
