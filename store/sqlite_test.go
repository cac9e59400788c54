package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/escrow-tf/trackmmr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, location *time.Location) *SQLite {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "trackmmr.db"), Options{
		Location: location,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveRecordsIgnoresDuplicates(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, time.UTC)

	record := trackmmr.RatingRecord{
		Timestamp:    time.Date(2026, 10, 1, 18, 30, 0, 0, time.UTC),
		MatchID:      7_000_000_001,
		Rating:       3525,
		RatingChange: 25,
		HeroID:       14,
		Won:          true,
	}

	inserted, err := store.SaveRecords(ctx, []trackmmr.RatingRecord{record})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)

	changed := record
	changed.Rating = 1
	inserted, err = store.SaveRecords(ctx, []trackmmr.RatingRecord{changed})
	require.NoError(t, err)
	require.Equal(t, 0, inserted)

	history, err := store.GetHistory(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []trackmmr.RatingRecord{record}, history)
}

func TestGetHistoryFiltersByDays(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, time.UTC)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	records := []trackmmr.RatingRecord{
		{Timestamp: now.AddDate(0, 0, -10), MatchID: 1, Rating: 3000, RatingChange: -25},
		{Timestamp: now.AddDate(0, 0, -2), MatchID: 2, Rating: 3025, RatingChange: 25, Won: true},
		{Timestamp: now.Add(-time.Hour), MatchID: 3, Rating: 3050, RatingChange: 25, Won: true},
	}
	inserted, err := store.SaveRecords(ctx, records)
	require.NoError(t, err)
	require.Equal(t, 3, inserted)

	recent, err := store.GetHistory(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, uint64(3), recent[0].MatchID, "newest first")
	require.Equal(t, uint64(2), recent[1].MatchID)

	all, err := store.GetHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, uint64(1), all[2].MatchID)
}

func TestGetHistoryUsesStoreLocation(t *testing.T) {
	ctx := context.Background()
	location := time.FixedZone("UTC+3", 3*60*60)
	store := openTestStore(t, location)

	at := time.Date(2026, 10, 1, 21, 0, 0, 0, time.UTC)
	_, err := store.SaveRecords(ctx, []trackmmr.RatingRecord{{Timestamp: at, MatchID: 9}})
	require.NoError(t, err)

	history, err := store.GetHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, location, history[0].Timestamp.Location())
	require.True(t, at.Equal(history[0].Timestamp))
	require.Equal(t, 0, history[0].Timestamp.Hour())
}

func TestFetchRuns(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, time.UTC)

	_, found, err := store.LastRun(ctx)
	require.NoError(t, err)
	require.False(t, found)

	started := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	first, err := store.RecordRun(ctx, FetchRun{StartedAt: started, FinishedAt: started.Add(time.Second), Fetched: 20, Inserted: 3})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := store.RecordRun(ctx, FetchRun{
		StartedAt:  started.Add(time.Hour),
		FinishedAt: started.Add(time.Hour + time.Second),
		Error:      "LogonFailed while Authenticating",
	})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	last, found, err := store.LastRun(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, second, last)
	require.False(t, last.Succeeded())
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trackmmr.db")

	first, err := Open(ctx, path, Options{Location: time.UTC, Logger: zerolog.Nop()})
	require.NoError(t, err)
	_, err = first.SaveRecords(ctx, []trackmmr.RatingRecord{{Timestamp: time.Now(), MatchID: 1}})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(ctx, path, Options{Location: time.UTC, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	history, err := second.GetHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
}
