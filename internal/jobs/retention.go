package jobs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"tracklet/internal/timeframe"
	"tracklet/internal/visits"
)

const retentionBatchSize = 1000

// RetentionJob deletes visits older than the configured retention period.
type RetentionJob struct {
	dbManager     cartridge.DBManager
	logger        *slog.Logger
	retentionDays int
	batchPause    time.Duration

	Clock timeframe.TimeProvider
}

// NewRetentionJob creates the job. A retention of zero or less keeps visits forever.
func NewRetentionJob(dbManager cartridge.DBManager, logger *slog.Logger, retentionDays int) *RetentionJob {
	return &RetentionJob{
		dbManager:     dbManager,
		logger:        logger,
		retentionDays: retentionDays,
		batchPause:    100 * time.Millisecond,
		Clock:         &timeframe.DefaultTimeProvider{},
	}
}

// Enabled reports whether the job has anything to do.
func (j *RetentionJob) Enabled() bool {
	return j.retentionDays > 0
}

// Run deletes expired visits in batches and returns how many rows went away.
func (j *RetentionJob) Run() (int64, error) {
	if !j.Enabled() {
		j.logger.Debug("Visit retention disabled, skipping cleanup")
		return 0, nil
	}

	db := j.dbManager.GetConnection()
	cutoff := j.Clock.Now(time.UTC).AddDate(0, 0, -j.retentionDays)

	j.logger.Info("Starting cleanup of expired visits",
		slog.Int("retention_days", j.retentionDays),
		slog.Time("cutoff_date", cutoff))

	var totalDeleted int64
	for {
		var deleted int64
		err := sqlite.PerformWrite(j.logger, db, func(tx *gorm.DB) error {
			expired := tx.Model(&visits.Visit{}).
				Select("id").
				Where("visited_at < ?", cutoff).
				Limit(retentionBatchSize)
			result := tx.Where("id IN (?)", expired).Delete(&visits.Visit{})
			deleted = result.RowsAffected
			return result.Error
		})
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to delete expired visits: %w", err)
		}

		totalDeleted += deleted
		if deleted < retentionBatchSize {
			break
		}

		time.Sleep(j.batchPause)
	}

	if totalDeleted > 0 {
		j.logger.Info("Cleaned up expired visits",
			slog.Int64("deleted_count", totalDeleted),
			slog.Int("retention_days", j.retentionDays))
	}
	return totalDeleted, nil
}
