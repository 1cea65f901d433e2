package lfs

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohakuhub/hub/internal/metadata"
	"github.com/kohakuhub/hub/internal/storage/ros"
)

type fakeLFSRepo struct {
	metadata.LFSRepository

	touched map[string]int64
}

func (f *fakeLFSRepo) Touch(_ context.Context, sha256 string, size int64) error {
	if f.touched == nil {
		f.touched = map[string]int64{}
	}

	f.touched[sha256] = size

	return nil
}

type fakeStore struct {
	metadata.Store

	lfs *fakeLFSRepo
}

func (f *fakeStore) LFS() metadata.LFSRepository { return f.lfs }

// fakeRawStore implements ros.Store entirely in memory.
type fakeRawStore struct {
	existing map[string]int64
	parts    map[string][]int32
}

func (f *fakeRawStore) Head(_ context.Context, key string) (int64, bool, error) {
	size, ok := f.existing[key]
	return size, ok, nil
}

func (f *fakeRawStore) Get(context.Context, string, string) (io.ReadCloser, error) { return nil, nil }
func (f *fakeRawStore) Put(context.Context, string, io.Reader, int64) error        { return nil }

func (f *fakeRawStore) PresignGet(context.Context, string, int64, string) (string, error) {
	return "https://example/get", nil
}

func (f *fakeRawStore) PresignPut(context.Context, string, int64) (string, error) {
	return "https://example/put", nil
}

func (f *fakeRawStore) Copy(context.Context, string, string) error { return nil }
func (f *fakeRawStore) Delete(context.Context, string) error      { return nil }

func (f *fakeRawStore) List(context.Context, string, string) ([]string, string, error) {
	return nil, "", nil
}

func (f *fakeRawStore) MultipartCreate(_ context.Context, key string) (string, error) {
	return "upload-" + key, nil
}

func (f *fakeRawStore) MultipartPresignPart(_ context.Context, key, uploadID string, partNumber int32, _ int64) (string, error) {
	if f.parts == nil {
		f.parts = map[string][]int32{}
	}

	f.parts[uploadID] = append(f.parts[uploadID], partNumber)

	return "https://example/part", nil
}

func (f *fakeRawStore) MultipartComplete(context.Context, string, string, []ros.PartETag) error { return nil }
func (f *fakeRawStore) MultipartAbort(context.Context, string, string) error                    { return nil }

var _ ros.Store = (*fakeRawStore)(nil)

func TestNegotiate_ExistingObjectNeedsNoUpload(t *testing.T) {
	oid := repeatHex(64)
	raw := &fakeRawStore{existing: map[string]int64{ros.LFSKey(oid): 10}}
	store := &fakeStore{lfs: &fakeLFSRepo{}}
	repo := &metadata.Repository{}

	resp, err := Negotiate(context.Background(), store, raw, repo, BatchRequest{
		Operation: "upload",
		Objects:   []BatchObject{{OID: oid, Size: 10}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Objects, 1)
	assert.Empty(t, resp.Objects[0].Actions)
	assert.Equal(t, int64(10), store.lfs.touched[oid])
}

func TestNegotiate_MissingObjectGetsSinglePutAction(t *testing.T) {
	oid := repeatHex(64)
	raw := &fakeRawStore{existing: map[string]int64{}}
	store := &fakeStore{lfs: &fakeLFSRepo{}}
	repo := &metadata.Repository{}

	resp, err := Negotiate(context.Background(), store, raw, repo, BatchRequest{
		Operation: "upload",
		Objects:   []BatchObject{{OID: oid, Size: 1000}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Objects, 1)
	assert.Contains(t, resp.Objects[0].Actions, "upload")
	assert.Nil(t, resp.Objects[0].Multipart)
}

func TestNegotiate_LargeObjectGetsMultipartPlan(t *testing.T) {
	oid := repeatHex(64)
	raw := &fakeRawStore{existing: map[string]int64{}}
	store := &fakeStore{lfs: &fakeLFSRepo{}}
	repo := &metadata.Repository{}

	resp, err := Negotiate(context.Background(), store, raw, repo, BatchRequest{
		Operation: "upload",
		Objects:   []BatchObject{{OID: oid, Size: maxSinglePutBytes + 1}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Objects, 1)
	require.NotNil(t, resp.Objects[0].Multipart)
	assert.Len(t, resp.Objects[0].Multipart.PartURLs, PartPlan(maxSinglePutBytes+1))
}

func TestNegotiate_MissingDownloadObjectReturnsNotFoundError(t *testing.T) {
	oid := repeatHex(64)
	raw := &fakeRawStore{existing: map[string]int64{}}
	store := &fakeStore{lfs: &fakeLFSRepo{}}
	repo := &metadata.Repository{}

	resp, err := Negotiate(context.Background(), store, raw, repo, BatchRequest{
		Operation: "download",
		Objects:   []BatchObject{{OID: oid, Size: 10}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Objects, 1)
	require.NotNil(t, resp.Objects[0].Error)
	assert.Equal(t, 404, resp.Objects[0].Error.Code)
}

func TestNegotiate_InvalidOIDReportsObjectError(t *testing.T) {
	raw := &fakeRawStore{existing: map[string]int64{}}
	store := &fakeStore{lfs: &fakeLFSRepo{}}
	repo := &metadata.Repository{}

	resp, err := Negotiate(context.Background(), store, raw, repo, BatchRequest{
		Operation: "upload",
		Objects:   []BatchObject{{OID: "not-a-sha", Size: 10}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Objects[0].Error)
}

func TestVerify_RejectsSizeMismatch(t *testing.T) {
	oid := repeatHex(64)
	raw := &fakeRawStore{existing: map[string]int64{ros.LFSKey(oid): 5}}
	store := &fakeStore{lfs: &fakeLFSRepo{}}

	err := Verify(context.Background(), store, raw, oid, 10)
	require.Error(t, err)
}

func TestVerify_RecordsDedupOnMatch(t *testing.T) {
	oid := repeatHex(64)
	raw := &fakeRawStore{existing: map[string]int64{ros.LFSKey(oid): 10}}
	store := &fakeStore{lfs: &fakeLFSRepo{}}

	err := Verify(context.Background(), store, raw, oid, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), store.lfs.touched[oid])
}
