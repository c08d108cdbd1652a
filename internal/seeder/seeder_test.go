package seeder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracklet/internal/pages"
	"tracklet/internal/seeder"
	"tracklet/internal/testsupport"
	"tracklet/internal/visits"
)

func TestSeederRun(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	s := seeder.NewSeeder(dbManager, logger, 40)
	s.Now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	created, err := s.Run(context.Background(), "https://demo.example")
	require.NoError(t, err)
	assert.Equal(t, 40, created)

	var count int64
	require.NoError(t, db.Model(&visits.Visit{}).Count(&count).Error)
	assert.Equal(t, int64(40), count)

	var outside int64
	require.NoError(t, db.Model(&visits.Visit{}).
		Where("visited_at > ? OR visited_at < ?", s.Now, s.Now.AddDate(0, 0, -s.Days)).
		Count(&outside).Error)
	assert.Zero(t, outside)

	summaries, err := pages.ListWithTotals(db)
	require.NoError(t, err)
	assert.NotEmpty(t, summaries)
	for _, summary := range summaries {
		assert.Contains(t, summary.URL, "https://demo.example/")
	}
}

func TestSeederStopsOnCancelledContext(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	testsupport.CleanAllTables(dbManager.GetConnection())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	created, err := seeder.NewSeeder(dbManager, logger, 10).Run(ctx, "https://demo.example")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, created)
}
