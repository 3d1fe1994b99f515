package logging

import (
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/models"
	"gorm.io/gorm"
)

// StartCleanup runs a daily goroutine that deletes system_logs older than
// retentionDays.
func StartCleanup(db *gorm.DB, retentionDays int, done chan struct{}) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -retentionDays)
				purge("system_logs", db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{}))
			case <-done:
				return
			}
		}
	}()
}

func purge(table string, result *gorm.DB) {
	if result.Error != nil {
		slog.Error("retention cleanup failed", "table", table, "error", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		slog.Info("retention cleanup completed", "table", table, "deleted", result.RowsAffected)
	}
}
