// DAO (Data Access Object) - модели и запросы к таблицам бригад, запланированных бесед и ежедневного реестра ATS.
//
// Основные возможности:
//   - Модели, совпадающие с существующими таблицами usuarios_brigadas, charlas_programadas, ats_registros_diarios.
//   - Авторизация пользователя бригады по логину и паролю.
//   - Справочник активных техников и список бесед для формы.
//   - Upsert записи реестра по ключу (fecha, brigada, contrata).
package dao

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/cicsa-sst/ats/internal/ats/types"
)

func GenUUID() uuid.UUID {
	u2, _ := uuid.NewV4()
	return u2
}

// Все модели для AutoMigrate
func AllModels() []any {
	return []any{&BrigadeUser{}, &ScheduledTalk{}, &DailyRecord{}}
}

// Пользователи бригад. Одновременно справочник техников.
type BrigadeUser struct {
	ID         uuid.UUID `gorm:"column:id;primaryKey;type:text" json:"id"`
	Login      string    `gorm:"column:usuario;uniqueIndex" json:"usuario"`
	Name       string    `gorm:"column:nombre;index" json:"nombre"`
	Role       string    `gorm:"column:cargo" json:"cargo"`
	Crew       string    `gorm:"column:brigada" json:"brigada"`
	Zone       string    `gorm:"column:zona" json:"zona"`
	Contractor string    `gorm:"column:contrata" json:"contrata"`
	NationalID string    `gorm:"column:dni" json:"dni"`
	Password   string    `gorm:"column:clave" json:"-"`
	Active     bool      `gorm:"column:activo;index" json:"activo"`
}

func (BrigadeUser) TableName() string { return "usuarios_brigadas" }

func (u *BrigadeUser) BeforeCreate(tx *gorm.DB) error {
	if u.ID.IsNil() {
		u.ID = GenUUID()
	}
	return nil
}

func (u BrigadeUser) ToSession() types.SessionUser {
	return types.SessionUser{
		ID:         u.ID.String(),
		Login:      u.Login,
		Name:       u.Name,
		Role:       u.Role,
		Crew:       u.Crew,
		Zone:       u.Zone,
		Contractor: u.Contractor,
		NationalID: u.NationalID,
	}
}

func (u BrigadeUser) ToTechnician() types.Technician {
	return types.Technician{
		Login:      u.Login,
		Name:       u.Name,
		Role:       u.Role,
		Crew:       u.Crew,
		Zone:       u.Zone,
		Contractor: u.Contractor,
		NationalID: u.NationalID,
	}
}

// Запланированные беседы
type ScheduledTalk struct {
	Item      int    `gorm:"column:item;primaryKey;autoIncrement:false" json:"item"`
	Topic     string `gorm:"column:tema" json:"tema"`
	Presenter string `gorm:"column:expositor" json:"expositor"`
}

func (ScheduledTalk) TableName() string { return "charlas_programadas" }

func (t ScheduledTalk) ToDTO() types.ScheduledTalk {
	return types.ScheduledTalk{Item: t.Item, Topic: t.Topic, Presenter: t.Presenter}
}

// Ежедневный реестр выполнения ATS. Одна запись на дату, бригаду и подрядчика.
type DailyRecord struct {
	ID               uuid.UUID `gorm:"column:id;primaryKey;type:text" json:"id"`
	Date             string    `gorm:"column:fecha;type:date;uniqueIndex:ats_registro_unico" json:"fecha"`
	Crew             string    `gorm:"column:brigada;uniqueIndex:ats_registro_unico" json:"brigada"`
	Contractor       string    `gorm:"column:contrata;uniqueIndex:ats_registro_unico" json:"contrata"`
	Zone             string    `gorm:"column:zona" json:"zona"`
	RegisteringUser  string    `gorm:"column:usuario_registro" json:"usuario_registro"`
	Supervisor       string    `gorm:"column:supervisor" json:"supervisor"`
	TechniciansCount int       `gorm:"column:tecnicos_count" json:"tecnicos_count"`
	Completed        bool      `gorm:"column:completado" json:"completado"`
	PDFPath          string    `gorm:"column:pdf_path" json:"pdf_path"`
	PDFURL           string    `gorm:"column:pdf_url" json:"pdf_url"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (DailyRecord) TableName() string { return "ats_registros_diarios" }

func (r *DailyRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID.IsNil() {
		r.ID = GenUUID()
	}
	return nil
}
