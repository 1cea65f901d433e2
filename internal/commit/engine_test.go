package commit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/hub/internal/apperr"
	"github.com/kohakuhub/hub/internal/metadata"
	"github.com/kohakuhub/hub/internal/storage/ros"
	"github.com/kohakuhub/hub/internal/storage/vos"
)

// --- metadata.Store fakes ---

type fakeUsers struct {
	metadata.UserRepository

	byID map[int64]*metadata.User
}

func (f *fakeUsers) FindByID(_ context.Context, id int64) (*metadata.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, apperr.NewNotFound(apperr.EntityUser, "", "user not found")
	}

	return u, nil
}

func (f *fakeUsers) ApplyUsageDelta(_ context.Context, id int64, privateDelta, publicDelta int64) error {
	u := f.byID[id]
	u.PrivateUsedBytes += privateDelta
	u.PublicUsedBytes += publicDelta

	return nil
}

type fakeRepos struct {
	metadata.RepositoryRepository

	byID map[int64]*metadata.Repository
}

func (f *fakeRepos) ApplyUsageDelta(_ context.Context, id int64, delta int64) error {
	f.byID[id].UsedBytes += delta
	return nil
}

type fakeFiles struct {
	metadata.FileRepository

	byPath  map[string]*metadata.File
	deleted map[string]bool
}

func key(repoID int64, branch, path string) string {
	return branch + "/" + path
}

func (f *fakeFiles) Find(_ context.Context, _ int64, branch, path string) (*metadata.File, error) {
	if file, ok := f.byPath[key(0, branch, path)]; ok && !f.deleted[key(0, branch, path)] {
		return file, nil
	}

	return nil, apperr.NewNotFound(apperr.EntityFile, "", "file not found")
}

func (f *fakeFiles) Upsert(_ context.Context, file *metadata.File) error {
	if f.byPath == nil {
		f.byPath = map[string]*metadata.File{}
	}

	k := key(0, file.Branch, file.PathInRepo)
	f.byPath[k] = file

	if f.deleted != nil {
		delete(f.deleted, k)
	}

	return nil
}

func (f *fakeFiles) MarkDeleted(_ context.Context, _ int64, branch, path string) error {
	if f.deleted == nil {
		f.deleted = map[string]bool{}
	}

	f.deleted[key(0, branch, path)] = true

	return nil
}

func (f *fakeFiles) ListByPrefix(_ context.Context, _ int64, _ string, _ string, after string, _ int) ([]metadata.File, error) {
	if after != "" {
		return nil, nil
	}

	var out []metadata.File

	for k, file := range f.byPath {
		if !f.deleted[k] {
			out = append(out, *file)
		}
	}

	return out, nil
}

type fakeCommits struct {
	metadata.CommitRepository

	created []metadata.Commit
}

func (f *fakeCommits) Create(_ context.Context, c *metadata.Commit) (*metadata.Commit, error) {
	f.created = append(f.created, *c)
	return c, nil
}

type fakeLFS struct {
	metadata.LFSRepository

	touched map[string]int64
}

func (f *fakeLFS) Touch(_ context.Context, sha256 string, size int64) error {
	if f.touched == nil {
		f.touched = map[string]int64{}
	}

	f.touched[sha256] = size

	return nil
}

type fakeEngineStore struct {
	metadata.Store

	users   *fakeUsers
	repos   *fakeRepos
	files   *fakeFiles
	commits *fakeCommits
	lfs     *fakeLFS
}

func (f *fakeEngineStore) Users() metadata.UserRepository     { return f.users }
func (f *fakeEngineStore) Repositories() metadata.RepositoryRepository { return f.repos }
func (f *fakeEngineStore) Files() metadata.FileRepository     { return f.files }
func (f *fakeEngineStore) Commits() metadata.CommitRepository { return f.commits }
func (f *fakeEngineStore) LFS() metadata.LFSRepository        { return f.lfs }

func (f *fakeEngineStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx metadata.Store) error) error {
	return fn(ctx, f)
}

// --- vos.Store fake ---

type fakeVOS struct {
	vos.Store

	staged  map[string]vos.ObjectRef
	deleted []string
	commits int
	objects map[string]vos.ObjectRef
	conflictOnce bool
}

func (f *fakeVOS) StageObject(_ context.Context, _, _, path, physAddr string, size int64, checksum string) error {
	if f.staged == nil {
		f.staged = map[string]vos.ObjectRef{}
	}

	f.staged[path] = vos.ObjectRef{Path: path, PhysicalAddress: physAddr, SizeBytes: size, Checksum: checksum}

	return nil
}

func (f *fakeVOS) DeleteObject(_ context.Context, _, _, path string) error {
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *fakeVOS) Commit(_ context.Context, _, _, message string, _ map[string]string) (*vos.CommitResult, error) {
	if f.conflictOnce {
		f.conflictOnce = false
		return nil, apperr.NewConflict(apperr.EntityCommit, "EntityConflict", "branch advanced")
	}

	f.commits++

	return &vos.CommitResult{ID: "c1", Message: message, Committer: "tester"}, nil
}

func (f *fakeVOS) GetObject(_ context.Context, _, _, path string) (*vos.ObjectRef, error) {
	if obj, ok := f.objects[path]; ok {
		return &obj, nil
	}

	return nil, apperr.NewNotFound(apperr.EntityFile, "", "object not found")
}

// --- ros.Store fake ---

type fakeROS struct {
	ros.Store

	existing map[string]int64
	put      map[string][]byte
	deleted  []string
}

func (f *fakeROS) Head(_ context.Context, key string) (int64, bool, error) {
	size, ok := f.existing[key]
	return size, ok, nil
}

func (f *fakeROS) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	if f.put == nil {
		f.put = map[string][]byte{}
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(r); err != nil {
		return err
	}

	f.put[key] = buf.Bytes()

	return nil
}

func (f *fakeROS) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newEngine() (*Engine, *fakeEngineStore, *fakeVOS, *fakeROS) {
	store := &fakeEngineStore{
		users:   &fakeUsers{byID: map[int64]*metadata.User{1: {ID: 1, Username: "alice"}}},
		repos:   &fakeRepos{byID: map[int64]*metadata.Repository{5: {ID: 5, OwnerID: 1, FullID: "alice/x", VOSRepoName: "v-alice-x", DefaultBranch: "main"}}},
		files:   &fakeFiles{},
		commits: &fakeCommits{},
		lfs:     &fakeLFS{},
	}
	e := &Engine{
		Store:            store,
		VOS:              &fakeVOS{},
		ROS:              &fakeROS{},
		Locker:           NewMutexLocker(),
		DefaultThreshold: 10 << 20,
		BaseURL:          "https://hub.example",
	}

	return e, store, e.VOS.(*fakeVOS), e.ROS.(*fakeROS)
}

func authorID() *int64 {
	id := int64(1)
	return &id
}

func TestRun_CommitsInlineFile(t *testing.T) {
	e, store, vosFake, _ := newEngine()

	content := []byte("hi")
	ops, err := ParseNDJSON(bytesReader(
		`{"header":{"summary":"add a.txt"}}` + "\n" +
			`{"file":{"path":"a.txt","content_b64":"aGk=","size":2,"sha256":"` + sha("hi") + `"}}` + "\n",
	))
	require.NoError(t, err)

	res, err := e.Run(context.Background(), Request{
		Repo: store.repos.byID[5], Branch: "main", Operations: ops, AuthorID: authorID(), Username: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", res.CommitID)
	assert.Equal(t, 1, vosFake.commits)
	assert.Contains(t, store.files.byPath, key(0, "main", "a.txt"))
	assert.EqualValues(t, len(content), store.repos.byID[5].UsedBytes)
}

func TestRun_RejectsFileOverLFSThreshold(t *testing.T) {
	e, store, _, _ := newEngine()

	ops, err := ParseNDJSON(bytesReader(
		`{"header":{"summary":"too big"}}` + "\n" +
			`{"file":{"path":"big.txt","content_b64":"aGk=","size":2,"sha256":"` + sha("hi") + `"}}` + "\n",
	))
	require.NoError(t, err)

	e.DefaultThreshold = 1 // force ineligibility for any non-trivial content

	_, err = e.Run(context.Background(), Request{
		Repo: store.repos.byID[5], Branch: "main", Operations: ops, Username: "alice",
	})
	require.Error(t, err)
	assert.Equal(t, 400, apperr.StatusCode(err))
}

func TestRun_LFSFileRequiresPriorUpload(t *testing.T) {
	e, store, _, _ := newEngine()

	oid := sha("big content")
	ops, err := ParseNDJSON(bytesReader(
		`{"header":{"summary":"add big"}}` + "\n" +
			`{"lfsFile":{"path":"big.bin","oid":"` + oid + `","size":100}}` + "\n",
	))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), Request{
		Repo: store.repos.byID[5], Branch: "main", Operations: ops, Username: "alice",
	})
	require.Error(t, err)
	assert.Equal(t, 422, apperr.StatusCode(err))
}

func TestRun_LFSFileSucceedsWhenObjectExists(t *testing.T) {
	e, store, _, rosFake := newEngine()

	oid := sha("big content")
	rosFake.existing = map[string]int64{ros.LFSKey(oid): 100}

	ops, err := ParseNDJSON(bytesReader(
		`{"header":{"summary":"add big"}}` + "\n" +
			`{"lfsFile":{"path":"big.bin","oid":"` + oid + `","size":100}}` + "\n",
	))
	require.NoError(t, err)

	res, err := e.Run(context.Background(), Request{
		Repo: store.repos.byID[5], Branch: "main", Operations: ops, Username: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", res.CommitID)
	assert.EqualValues(t, 100, store.lfs.touched[oid])
	assert.EqualValues(t, 100, store.repos.byID[5].UsedBytes)
}

func TestRun_DeletedFileAppliesNegativeDelta(t *testing.T) {
	e, store, _, _ := newEngine()
	store.files.byPath = map[string]*metadata.File{
		key(0, "main", "old.txt"): {PathInRepo: "old.txt", Branch: "main", Size: 50},
	}
	store.repos.byID[5].UsedBytes = 50

	ops, err := ParseNDJSON(bytesReader(
		`{"header":{"summary":"remove old"}}` + "\n" +
			`{"deletedFile":{"path":"old.txt"}}` + "\n",
	))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), Request{
		Repo: store.repos.byID[5], Branch: "main", Operations: ops, Username: "alice",
	})
	require.NoError(t, err)
	assert.True(t, store.files.deleted[key(0, "main", "old.txt")])
	assert.EqualValues(t, 0, store.repos.byID[5].UsedBytes)
}

func TestRun_RetriesOnceOnVOSConflictThenSucceeds(t *testing.T) {
	e, store, vosFake, _ := newEngine()
	vosFake.conflictOnce = true

	ops, err := ParseNDJSON(bytesReader(
		`{"header":{"summary":"retry me"}}` + "\n" +
			`{"file":{"path":"a.txt","content_b64":"aGk=","size":2,"sha256":"` + sha("hi") + `"}}` + "\n",
	))
	require.NoError(t, err)

	res, err := e.Run(context.Background(), Request{
		Repo: store.repos.byID[5], Branch: "main", Operations: ops, Username: "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", res.CommitID)
	assert.Equal(t, 1, vosFake.commits)
}

func TestRun_RejectsQuotaOverflow(t *testing.T) {
	e, store, _, _ := newEngine()
	q := int64(1)
	store.users.byID[1].PublicQuotaBytes = &q

	ops, err := ParseNDJSON(bytesReader(
		`{"header":{"summary":"too much"}}` + "\n" +
			`{"file":{"path":"a.txt","content_b64":"aGk=","size":2,"sha256":"` + sha("hi") + `"}}` + "\n",
	))
	require.NoError(t, err)

	_, err = e.Run(context.Background(), Request{
		Repo: store.repos.byID[5], Branch: "main", Operations: ops, Username: "alice",
	})
	require.Error(t, err)
	assert.Equal(t, 413, apperr.StatusCode(err))
}

func bytesReader(s string) *bytes.Reader {
	return bytes.NewReader([]byte(s))
}
