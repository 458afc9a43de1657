package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/chartharvest/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "charts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(runID string) (domain.RunReport, []domain.HarvestRecord) {
	d := domain.ChartDate{Year: 2025, Month: 1, Day: 5}
	rr := domain.RunReport{
		RunID:      runID,
		Chart:      "hot100",
		Start:      "2025-01",
		End:        "2025-02",
		StartedAt:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 3, 1, 0, 1, 0, 0, time.UTC),
		Items: []domain.ItemResult{
			{Period: "2025-01", Date: "2025-01-05", Status: domain.StatusOK, Entries: 2},
			{Period: "2025-02", Status: domain.StatusNoDates, ErrorCode: domain.ErrCodeNoDates, ErrorMsg: "无可用日期"},
		},
	}
	rr.Finalize()
	recs := []domain.HarvestRecord{
		{Date: d, Entry: domain.ChartEntry{Rank: 1, Peak: 1, Title: "Plazma", Artist: "米津玄師", Prev: domain.RankedPrev(2), Weeks: domain.Text("12"), Trend: domain.TrendUp, ImageURL: domain.Text("https://example.com/1.jpg")}},
		{Date: d, Entry: domain.ChartEntry{Rank: 2, Peak: 2, Title: "新曲", Artist: "新人", Prev: domain.PrevRank{Kind: domain.PrevNew}}},
	}
	return rr, recs
}

func TestMigrationRunner_Idempotent(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, NewMigrationRunner(db).Run())
	require.NoError(t, NewMigrationRunner(db).Run())

	for _, table := range []string{"harvests", "harvest_items", "chart_entries", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestSaveHarvest_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rr, recs := sampleReport("run-1")

	require.NoError(t, s.SaveHarvest(ctx, rr, recs))

	h, err := s.GetHarvest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "hot100", h.Chart)
	assert.Equal(t, 1, h.Succeeded)
	assert.Equal(t, 1, h.Failed)
	assert.Equal(t, 2, h.Records)
	assert.False(t, h.Canceled)

	got, err := s.EntriesByDate(ctx, "hot100", domain.ChartDate{Year: 2025, Month: 1, Day: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, recs[0].Entry, got[0])
	assert.Equal(t, domain.PrevNew, got[1].Prev.Kind)
	assert.False(t, got[1].Weeks.Valid)
	assert.Equal(t, domain.TrendUnavailable, got[1].Trend)
}

func TestSaveHarvest_DuplicateRunIDRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rr, recs := sampleReport("run-dup")

	require.NoError(t, s.SaveHarvest(ctx, rr, recs))
	require.Error(t, s.SaveHarvest(ctx, rr, recs))

	got, err := s.EntriesByDate(ctx, "hot100", domain.ChartDate{Year: 2025, Month: 1, Day: 5})
	require.NoError(t, err)
	assert.Len(t, got, 2, "失败的事务不应留下条目")
}

func TestSaveHarvest_RequiresRunID(t *testing.T) {
	s := openTestStore(t)
	rr, recs := sampleReport("")
	require.Error(t, s.SaveHarvest(context.Background(), rr, recs))
}

func TestGetHarvest_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetHarvest(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(" ")
	require.Error(t, err)
}
