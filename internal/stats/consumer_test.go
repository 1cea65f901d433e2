package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/hub/internal/metadata"
)

type fakeStatsRepo struct {
	metadata.StatsRepository

	incremented int
}

func (f *fakeStatsRepo) IncrementDownload(context.Context, int64, string, bool) error {
	f.incremented++
	return nil
}

type fakeConsumerStore struct {
	metadata.Store

	stats *fakeStatsRepo
}

func (f *fakeConsumerStore) Stats() metadata.StatsRepository { return f.stats }

func TestConsumer_Fold_DeduplicatesWithinSameSessionAndDay(t *testing.T) {
	store := &fakeConsumerStore{stats: &fakeStatsRepo{}}
	c := NewConsumer(nil, store, nil)

	event := DownloadEvent{RepositoryID: 5, Date: "2026-07-30", SessionKey: "sess-1"}

	require.NoError(t, c.Fold(context.Background(), event))
	require.NoError(t, c.Fold(context.Background(), event))

	assert.Equal(t, 1, store.stats.incremented)
}

func TestConsumer_Fold_DistinctSessionsBothCount(t *testing.T) {
	store := &fakeConsumerStore{stats: &fakeStatsRepo{}}
	c := NewConsumer(nil, store, nil)

	require.NoError(t, c.Fold(context.Background(), DownloadEvent{RepositoryID: 5, Date: "2026-07-30", SessionKey: "sess-1"}))
	require.NoError(t, c.Fold(context.Background(), DownloadEvent{RepositoryID: 5, Date: "2026-07-30", SessionKey: "sess-2"}))

	assert.Equal(t, 2, store.stats.incremented)
}
