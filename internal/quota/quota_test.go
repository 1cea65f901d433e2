package quota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/hub/internal/metadata"
)

type fakeUsers struct {
	metadata.UserRepository

	byID map[int64]*metadata.User
}

func (f *fakeUsers) FindByID(_ context.Context, id int64) (*metadata.User, error) {
	return f.byID[id], nil
}

func (f *fakeUsers) ApplyUsageDelta(_ context.Context, id int64, privateDelta, publicDelta int64) error {
	u := f.byID[id]
	u.PrivateUsedBytes += privateDelta
	u.PublicUsedBytes += publicDelta

	return nil
}

type fakeRepos struct {
	metadata.RepositoryRepository

	byID  map[int64]*metadata.Repository
	byOwn map[string][]metadata.Repository
}

func (f *fakeRepos) ApplyUsageDelta(_ context.Context, id int64, delta int64) error {
	f.byID[id].UsedBytes += delta

	return nil
}

func (f *fakeRepos) Update(_ context.Context, r *metadata.Repository) (*metadata.Repository, error) {
	f.byID[r.ID] = r

	return r, nil
}

func (f *fakeRepos) List(_ context.Context, filter metadata.RepositoryFilter) ([]metadata.Repository, error) {
	return f.byOwn[filter.Author], nil
}

type fakeFiles struct {
	metadata.FileRepository

	files []metadata.File
}

func (f *fakeFiles) ListByPrefix(_ context.Context, _ int64, _ string, _ string, after string, limit int) ([]metadata.File, error) {
	if after != "" {
		return nil, nil
	}

	return f.files, nil
}

type fakeStore struct {
	metadata.Store

	users *fakeUsers
	repos *fakeRepos
	files *fakeFiles
}

func (f *fakeStore) Users() metadata.UserRepository               { return f.users }
func (f *fakeStore) Repositories() metadata.RepositoryRepository   { return f.repos }
func (f *fakeStore) Files() metadata.FileRepository                { return f.files }

func quota64(n int64) *int64 { return &n }

func TestCheckCommit_RejectsWhenOwnerBudgetExceeded(t *testing.T) {
	store := &fakeStore{
		users: &fakeUsers{byID: map[int64]*metadata.User{
			1: {ID: 1, Username: "alice", PrivateQuotaBytes: quota64(100), PrivateUsedBytes: 90},
		}},
	}
	repo := &metadata.Repository{ID: 5, FullID: "alice/x", Private: true}

	err := CheckCommit(context.Background(), store, 1, 5, BucketPrivate, repo, Delta(20))
	require.Error(t, err)
}

func TestCheckCommit_AllowsWhenQuotaIsNil(t *testing.T) {
	store := &fakeStore{
		users: &fakeUsers{byID: map[int64]*metadata.User{
			1: {ID: 1, Username: "bob"},
		}},
	}
	repo := &metadata.Repository{ID: 5, FullID: "bob/x"}

	err := CheckCommit(context.Background(), store, 1, 5, BucketPublic, repo, Delta(1<<40))
	assert.NoError(t, err)
}

func TestApplyCommit_UpdatesOwnerAndRepoCounters(t *testing.T) {
	store := &fakeStore{
		users: &fakeUsers{byID: map[int64]*metadata.User{1: {ID: 1}}},
		repos: &fakeRepos{byID: map[int64]*metadata.Repository{5: {ID: 5}}},
	}

	err := ApplyCommit(context.Background(), store, 1, 5, BucketPublic, Delta(42))
	require.NoError(t, err)
	assert.EqualValues(t, 42, store.users.byID[1].PublicUsedBytes)
	assert.EqualValues(t, 42, store.repos.byID[5].UsedBytes)
}

func TestRecalculate_SumsLiveFilesDedupingLFSBySHA(t *testing.T) {
	store := &fakeStore{
		repos: &fakeRepos{byID: map[int64]*metadata.Repository{
			5: {ID: 5, FullID: "alice/x"},
		}},
		files: &fakeFiles{files: []metadata.File{
			{PathInRepo: "a.bin", Size: 100, LFS: true, SHA256: "same"},
			{PathInRepo: "b.bin", Size: 100, LFS: true, SHA256: "same"},
			{PathInRepo: "c.txt", Size: 10},
			{PathInRepo: "d.txt", Size: 999, IsDeleted: true},
		}},
	}
	repo := &metadata.Repository{ID: 5, DefaultBranch: "main", FullID: "alice/x"}

	total, err := Recalculate(context.Background(), store, repo)
	require.NoError(t, err)
	assert.EqualValues(t, 110, total)
}
