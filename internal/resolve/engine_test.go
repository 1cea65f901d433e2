package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
	"github.com/kohakuhub/hub/internal/storage/ros"
	"github.com/kohakuhub/hub/internal/storage/vos"
)

type fakeVOS struct {
	vos.Store

	objects map[string]vos.ObjectRef
}

func (f *fakeVOS) GetObject(_ context.Context, _, ref, path string) (*vos.ObjectRef, error) {
	if obj, ok := f.objects[ref+"/"+path]; ok {
		return &obj, nil
	}

	return nil, apperr.NewNotFound(apperr.EntityFile, "EntryNotFound", "object not found")
}

type fakeROS struct {
	ros.Store
}

func (f *fakeROS) PresignGet(_ context.Context, key string, _ int64, _ string) (string, error) {
	return "https://example/presigned/" + key, nil
}

type fakeFiles struct {
	metadata.FileRepository

	byPath map[string]*metadata.File
}

func (f *fakeFiles) Find(_ context.Context, _ int64, branch, path string) (*metadata.File, error) {
	if file, ok := f.byPath[branch+"/"+path]; ok {
		return file, nil
	}

	return nil, apperr.NewNotFound(apperr.EntityFile, "", "not found")
}

func (f *fakeFiles) ListByPrefix(_ context.Context, _ int64, _ string, _ string, after string, _ int) ([]metadata.File, error) {
	if after != "" {
		return nil, nil
	}

	var out []metadata.File
	for _, file := range f.byPath {
		out = append(out, *file)
	}

	return out, nil
}

func (f *fakeFiles) FindAnyBySHA256(_ context.Context, sha256 string) (*metadata.File, error) {
	for _, file := range f.byPath {
		if file.SHA256 == sha256 {
			return file, nil
		}
	}

	return nil, apperr.NewNotFound(apperr.EntityFile, "EntryNotFound", "no file with that hash")
}

type fakeRepos struct {
	metadata.RepositoryRepository

	downloads int64
	byID      map[int64]*metadata.Repository
}

func (f *fakeRepos) IncrementDownloads(_ context.Context, _ int64, by int64) error {
	f.downloads += by
	return nil
}

func (f *fakeRepos) FindByID(_ context.Context, id int64) (*metadata.Repository, error) {
	if repo, ok := f.byID[id]; ok {
		return repo, nil
	}

	return nil, apperr.NewNotFound(apperr.EntityRepository, "RepoNotFound", "repository not found")
}

type fakeStats struct {
	metadata.StatsRepository

	incremented int
}

func (f *fakeStats) IncrementDownload(context.Context, int64, string, bool) error {
	f.incremented++
	return nil
}

type fakeStore struct {
	metadata.Store

	files *fakeFiles
	repos *fakeRepos
	stats *fakeStats
}

func (f *fakeStore) Files() metadata.FileRepository          { return f.files }
func (f *fakeStore) Repositories() metadata.RepositoryRepository { return f.repos }
func (f *fakeStore) Stats() metadata.StatsRepository          { return f.stats }

func TestResolve_ReturnsPresignedRedirectForLiveFile(t *testing.T) {
	store := &fakeStore{
		files: &fakeFiles{byPath: map[string]*metadata.File{
			"main/README.md": {PathInRepo: "README.md", Branch: "main", SHA256: "h1", Size: 13},
		}},
	}
	vosFake := &fakeVOS{objects: map[string]vos.ObjectRef{
		"main/README.md": {Path: "README.md", PhysicalAddress: "raw/h1", SizeBytes: 13, Checksum: "h1"},
	}}
	engine := &Engine{Store: store, VOS: vosFake, ROS: &fakeROS{}}
	repo := &metadata.Repository{ID: 5, VOSRepoName: "v-u1-t1"}

	redirect, err := engine.Resolve(context.Background(), repo, "main", "README.md")
	require.NoError(t, err)
	assert.Equal(t, "h1", redirect.ETag)
	assert.EqualValues(t, 13, redirect.ContentLength)
	assert.Contains(t, redirect.URL, "raw/h1")
}

func TestResolve_FallsBackWhenVOSMisses(t *testing.T) {
	store := &fakeStore{files: &fakeFiles{}}
	vosFake := &fakeVOS{}
	called := false
	engine := &Engine{Store: store, VOS: vosFake, ROS: &fakeROS{}, Fallback: fallbackFunc(func(ctx context.Context, repo *metadata.Repository, revision, path string) (string, string, error) {
		called = true
		return "https://mirror/config.json", "hf-mirror", nil
	})}
	repo := &metadata.Repository{ID: 5, VOSRepoName: "v-foreign-bar"}

	redirect, err := engine.Resolve(context.Background(), repo, "main", "config.json")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "hf-mirror", redirect.Source)
}

func TestResolve_MarksLFSHeadersForLFSFiles(t *testing.T) {
	store := &fakeStore{
		files: &fakeFiles{byPath: map[string]*metadata.File{
			"main/big.bin": {PathInRepo: "big.bin", Branch: "main", SHA256: "h2", Size: 1000, LFS: true},
		}},
	}
	vosFake := &fakeVOS{objects: map[string]vos.ObjectRef{
		"main/big.bin": {Path: "big.bin", PhysicalAddress: "raw/h2", SizeBytes: 1000, Checksum: "h2"},
	}}
	engine := &Engine{Store: store, VOS: vosFake, ROS: &fakeROS{}}
	repo := &metadata.Repository{ID: 5, VOSRepoName: "v-u1-t1"}

	redirect, err := engine.Resolve(context.Background(), repo, "main", "big.bin")
	require.NoError(t, err)
	assert.True(t, redirect.IsLFS)
	assert.EqualValues(t, 1000, redirect.LinkedSize)
	assert.Equal(t, "h2", redirect.LinkedETag)
}

func TestRecordDownload_SkipsStatsWhenSessionAlreadySeen(t *testing.T) {
	store := &fakeStore{repos: &fakeRepos{}, stats: &fakeStats{}}
	engine := &Engine{Store: store}
	repo := &metadata.Repository{ID: 5}

	require.NoError(t, engine.RecordDownload(context.Background(), repo, true, true))
	assert.EqualValues(t, 1, store.repos.downloads)
	assert.Equal(t, 0, store.stats.incremented)
}

func TestRecordDownload_IncrementsStatsOnFirstSessionHit(t *testing.T) {
	store := &fakeStore{repos: &fakeRepos{}, stats: &fakeStats{}}
	engine := &Engine{Store: store}
	repo := &metadata.Repository{ID: 5}

	require.NoError(t, engine.RecordDownload(context.Background(), repo, false, false))
	assert.Equal(t, 1, store.stats.incremented)
}

func TestLookupBySHA256AndReconstruct_FindsFileGloballyAndBuildsManifest(t *testing.T) {
	repo := &metadata.Repository{ID: 5, VOSRepoName: "v-u1-t1"}
	store := &fakeStore{
		files: &fakeFiles{byPath: map[string]*metadata.File{
			"main/a.bin": {RepositoryID: 5, PathInRepo: "a.bin", Branch: "main", SHA256: "hash-x", Size: 10},
		}},
		repos: &fakeRepos{byID: map[int64]*metadata.Repository{5: repo}},
	}
	vosFake := &fakeVOS{objects: map[string]vos.ObjectRef{
		"main/a.bin": {Path: "a.bin", PhysicalAddress: "raw/hash-x", SizeBytes: 10, Checksum: "hash-x"},
	}}
	engine := &Engine{Store: store, VOS: vosFake, ROS: &fakeROS{}}

	foundRepo, file, err := engine.LookupBySHA256(context.Background(), "hash-x")
	require.NoError(t, err)
	assert.Equal(t, repo, foundRepo)

	manifest, err := engine.Reconstruct(context.Background(), foundRepo, file)
	require.NoError(t, err)
	require.Len(t, manifest.Terms, 1)
	assert.Equal(t, "hash-x", manifest.Terms[0].Hash)
}

func TestLookupBySHA256_NotFoundWhenNoFileMatchesHash(t *testing.T) {
	store := &fakeStore{files: &fakeFiles{}}
	engine := &Engine{Store: store, VOS: &fakeVOS{}, ROS: &fakeROS{}}

	_, _, err := engine.LookupBySHA256(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, 404, apperr.StatusCode(err))
}

type fallbackFunc func(ctx context.Context, repo *metadata.Repository, revision, path string) (string, string, error)

func (f fallbackFunc) Resolve(ctx context.Context, repo *metadata.Repository, revision, path string) (string, string, error) {
	return f(ctx, repo, revision, path)
}
