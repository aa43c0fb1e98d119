package maintenance

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/cicsa-sst/ats/internal/ats/dao"
	"github.com/cicsa-sst/ats/internal/ats/types"
)

type DailySummary struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDailySummary(db *gorm.DB) *DailySummary {
	return &DailySummary{db: db, now: time.Now}
}

type SummaryResult struct {
	Date         string
	Completed    int64
	Technicians  int64
	Crews        []string
	ActiveCrews  []string
	MissingCrews []string
}

// Summarize сравнивает записи реестра за день с бригадами активных пользователей.
func (ds *DailySummary) Summarize() (*SummaryResult, error) {
	date := ds.now().Format(types.DateLayout)
	res := &SummaryResult{Date: date}

	var records []dao.DailyRecord
	if err := ds.db.Where("fecha = ? AND completado = ?", date, true).Order("brigada").Find(&records).Error; err != nil {
		return nil, err
	}
	done := make(map[string]bool)
	for _, rec := range records {
		res.Completed++
		res.Technicians += int64(rec.TechniciansCount)
		if !done[rec.Crew] {
			res.Crews = append(res.Crews, rec.Crew)
		}
		done[rec.Crew] = true
	}

	if err := ds.db.Model(&dao.BrigadeUser{}).
		Where("activo = ? AND brigada <> ''", true).
		Distinct().
		Order("brigada").
		Pluck("brigada", &res.ActiveCrews).Error; err != nil {
		return nil, err
	}
	for _, crew := range res.ActiveCrews {
		if !done[crew] {
			res.MissingCrews = append(res.MissingCrews, crew)
		}
	}
	return res, nil
}

func (ds *DailySummary) LogSummary() {
	res, err := ds.Summarize()
	if err != nil {
		slog.Error("Daily ATS summary", "err", err)
		return
	}
	slog.Info("Daily ATS summary",
		"date", res.Date,
		"reports", res.Completed,
		"technicians", res.Technicians,
		"crews", res.Crews,
		"missing", res.MissingCrews,
	)
}
