package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/hub/internal/metadata"
	"github.com/kohakuhub/hub/internal/storage/vos"
)

type fakeCommits struct {
	metadata.CommitRepository

	existing map[string]bool
	created  []metadata.Commit
}

func (f *fakeCommits) Exists(_ context.Context, _ int64, commitID string) (bool, error) {
	return f.existing[commitID], nil
}

func (f *fakeCommits) Create(_ context.Context, c *metadata.Commit) (*metadata.Commit, error) {
	f.created = append(f.created, *c)
	if f.existing == nil {
		f.existing = map[string]bool{}
	}

	f.existing[c.CommitID] = true

	return c, nil
}

type fakeFiles struct {
	metadata.FileRepository

	upserted []metadata.File
}

func (f *fakeFiles) Upsert(_ context.Context, file *metadata.File) error {
	f.upserted = append(f.upserted, *file)
	return nil
}

type fakeStore struct {
	metadata.Store

	commits *fakeCommits
	files   *fakeFiles
}

func (f *fakeStore) Commits() metadata.CommitRepository { return f.commits }
func (f *fakeStore) Files() metadata.FileRepository     { return f.files }

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx metadata.Store) error) error {
	return fn(ctx, f)
}

type fakeVOS struct {
	vos.Store

	commits []vos.CommitResult
	objects []vos.ObjectRef
}

func (f *fakeVOS) LogCommits(_ context.Context, _, _ string, after string, _ int) ([]vos.CommitResult, error) {
	if after != "" {
		return nil, nil
	}

	return f.commits, nil
}

func (f *fakeVOS) ListObjects(_ context.Context, _, _, _, after string, _ int) ([]vos.ObjectRef, error) {
	if after != "" {
		return nil, nil
	}

	return f.objects, nil
}

func TestReconcileRepo_SkipsCommitsAlreadyInIndex(t *testing.T) {
	store := &fakeStore{commits: &fakeCommits{existing: map[string]bool{"c1": true}}, files: &fakeFiles{}}
	vosFake := &fakeVOS{commits: []vos.CommitResult{{ID: "c1"}}}
	r := &Reconciler{Store: store, VOS: vosFake}
	repo := &metadata.Repository{ID: 5, VOSRepoName: "v-x", DefaultBranch: "main"}

	require.NoError(t, r.ReconcileRepo(context.Background(), repo))
	assert.Empty(t, store.commits.created)
	assert.Empty(t, store.files.upserted)
}

func TestReconcileRepo_RederivesMissingCommitAndFiles(t *testing.T) {
	store := &fakeStore{commits: &fakeCommits{}, files: &fakeFiles{}}
	vosFake := &fakeVOS{
		commits: []vos.CommitResult{{ID: "c2", Message: "fix", Committer: "alice"}},
		objects: []vos.ObjectRef{{Path: "a.txt", SizeBytes: 10, Checksum: "h"}},
	}
	r := &Reconciler{Store: store, VOS: vosFake}
	repo := &metadata.Repository{ID: 5, VOSRepoName: "v-x", DefaultBranch: "main"}

	require.NoError(t, r.ReconcileRepo(context.Background(), repo))
	require.Len(t, store.commits.created, 1)
	assert.Equal(t, "c2", store.commits.created[0].CommitID)
	require.Len(t, store.files.upserted, 1)
	assert.Equal(t, "a.txt", store.files.upserted[0].PathInRepo)
}
