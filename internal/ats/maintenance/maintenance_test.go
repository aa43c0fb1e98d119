package maintenance

import (
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
)

func TestTempCleaner(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "firma_tec1_old.png")
	fresh := filepath.Join(dir, "foto_general_new.jpg")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	tc := NewTempCleaner(dir, time.Hour)
	removed, err := tc.clean()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "sub"))
	assert.NoError(t, err)
}

func TestTempCleanerMissingDir(t *testing.T) {
	tc := NewTempCleaner(filepath.Join(t.TempDir(), "missing"), time.Hour)
	removed, err := tc.clean()
	assert.NoError(t, err)
	assert.Zero(t, removed)
	tc.Clean()
}

func TestDailySummary(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(dao.AllModels()...))

	for _, u := range []dao.BrigadeUser{
		{Login: "a", Name: "A", Crew: "B-01", Password: "x", Active: true},
		{Login: "b", Name: "B", Crew: "B-02", Password: "x", Active: true},
		{Login: "c", Name: "C", Crew: "B-02", Password: "x", Active: true},
		{Login: "d", Name: "D", Crew: "B-03", Password: "x", Active: false},
	} {
		require.NoError(t, dao.CreateBrigadeUser(db, &u))
	}
	require.NoError(t, dao.UpsertDailyRecord(db, &dao.DailyRecord{Date: "2025-03-04", Crew: "B-01", Contractor: "C1", TechniciansCount: 3, Completed: true}))
	require.NoError(t, dao.UpsertDailyRecord(db, &dao.DailyRecord{Date: "2025-03-03", Crew: "B-02", Contractor: "C1", TechniciansCount: 2, Completed: true}))

	ds := NewDailySummary(db)
	ds.now = func() time.Time { return time.Date(2025, 3, 4, 20, 0, 0, 0, time.UTC) }

	res, err := ds.Summarize()
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Completed)
	assert.Equal(t, int64(3), res.Technicians)
	assert.Equal(t, []string{"B-01"}, res.Crews)
	assert.Equal(t, []string{"B-01", "B-02"}, res.ActiveCrews)
	assert.Equal(t, []string{"B-02"}, res.MissingCrews)
	ds.LogSummary()
}
