package stats

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/hub/internal/metadata"
)

type fakeStats struct {
	metadata.StatsRepository

	rows []metadata.DailyRepoStats
}

func (f *fakeStats) TrendingCandidates(context.Context, string) ([]metadata.DailyRepoStats, error) {
	return f.rows, nil
}

type fakeStore struct {
	metadata.Store

	stats *fakeStats
}

func (f *fakeStore) Stats() metadata.StatsRepository { return f.stats }

func TestTrending_RanksHigherRecentDownloadsFirst(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{stats: &fakeStats{rows: []metadata.DailyRepoStats{
		{RepositoryID: 1, Date: "2026-07-30", DownloadSessions: 100},
		{RepositoryID: 2, Date: "2026-07-24", DownloadSessions: 100},
	}}}

	ranked, err := Trending(context.Background(), store, nil, "", DefaultWindowDays, now)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(1), ranked[0].RepositoryID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestTrending_AppliesExactDecayFormula(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{stats: &fakeStats{rows: []metadata.DailyRepoStats{
		{RepositoryID: 1, Date: "2026-07-29", DownloadSessions: 9},
	}}}

	ranked, err := Trending(context.Background(), store, nil, "", DefaultWindowDays, now)
	require.NoError(t, err)
	require.Len(t, ranked, 1)

	expected := math.Log(1+9) * math.Pow(0.8, 1)
	assert.InDelta(t, expected, ranked[0].Score, 1e-9)
}

func TestTrending_FiltersByRepoType(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{stats: &fakeStats{rows: []metadata.DailyRepoStats{
		{RepositoryID: 1, Date: "2026-07-30", DownloadSessions: 50},
		{RepositoryID: 2, Date: "2026-07-30", DownloadSessions: 50},
	}}}
	repos := map[int64]metadata.RepoType{1: metadata.RepoTypeModel, 2: metadata.RepoTypeDataset}

	ranked, err := Trending(context.Background(), store, repos, metadata.RepoTypeDataset, DefaultWindowDays, now)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, int64(2), ranked[0].RepositoryID)
}

func TestTrending_IgnoresRowsOutsideWindow(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{stats: &fakeStats{rows: []metadata.DailyRepoStats{
		{RepositoryID: 1, Date: "2026-06-01", DownloadSessions: 1000},
	}}}

	ranked, err := Trending(context.Background(), store, nil, "", DefaultWindowDays, now)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
