package dao

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScheduledTalks возвращает беседы, отсортированные по номеру.
func ScheduledTalks(db *gorm.DB) ([]ScheduledTalk, error) {
	var talks []ScheduledTalk
	if err := db.Order("item").Find(&talks).Error; err != nil {
		return nil, fmt.Errorf("list scheduled talks: %w", err)
	}
	return talks, nil
}

func CreateScheduledTalk(db *gorm.DB, talk *ScheduledTalk) error {
	talk.Topic = strings.TrimSpace(talk.Topic)
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(talk).Error
}

// UpsertDailyRecord создает запись реестра или перезаписывает существующую с тем же ключом (fecha, brigada, contrata).
func UpsertDailyRecord(db *gorm.DB, rec *DailyRecord) error {
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "fecha"}, {Name: "brigada"}, {Name: "contrata"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"zona",
			"usuario_registro",
			"supervisor",
			"tecnicos_count",
			"completado",
			"pdf_path",
			"pdf_url",
			"updated_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("upsert daily record: %w", err)
	}
	return nil
}

func GetDailyRecord(db *gorm.DB, date, crew, contractor string) (*DailyRecord, error) {
	var rec DailyRecord
	if err := db.Where("fecha = ? AND brigada = ? AND contrata = ?", date, crew, contractor).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
