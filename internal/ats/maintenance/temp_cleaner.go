// Package maintenance содержит фоновые задачи, запускаемые по cron-расписанию.
//
// Задачи:
//   - TempCleaner удаляет из TEMP_DIR изображения, оставшиеся после прерванных запросов
//   - DailySummary пишет в лог сводку реестра за день
package maintenance

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type TempCleaner struct {
	dir    string
	maxAge time.Duration
	now    func() time.Time
}

func NewTempCleaner(dir string, maxAge time.Duration) *TempCleaner {
	return &TempCleaner{dir: dir, maxAge: maxAge, now: time.Now}
}

// Clean удаляет файлы старше maxAge. Подкаталоги не обходятся.
func (tc *TempCleaner) Clean() {
	removed, err := tc.clean()
	if err != nil {
		slog.Error("Clean temp dir", "dir", tc.dir, "err", err)
		return
	}
	if removed > 0 {
		slog.Info("Temp files removed", "dir", tc.dir, "count", removed)
	}
}

func (tc *TempCleaner) clean() (int, error) {
	entries, err := os.ReadDir(tc.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := tc.now().Add(-tc.maxAge)
	var removed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(tc.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("Remove temp file", "path", path, "err", err)
			continue
		}
		removed++
	}
	return removed, nil
}
