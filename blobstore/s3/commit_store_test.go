package s3

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/silo/blobstore"
)

func newTestCommitStore(ddb *mockDDBClient, baseURI string) (*CommitStore, *MockS3Client) {
	client := new(MockS3Client)
	return NewCommitStore(NewStore(client, "test-bucket", "test/"), ddb, "silo-commits", baseURI), client
}

func readCurrent(t *testing.T, store blobstore.BlobStore) string {
	t.Helper()
	data, err := blobstore.ReadAll(context.Background(), store, CurrentName)
	require.NoError(t, err)
	return string(data)
}

func TestCommitStoreFirstCommit(t *testing.T) {
	ctx := context.Background()
	store, client := newTestCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	require.NoError(t, store.Put(ctx, CurrentName, []byte("snapshots/1")))
	assert.Equal(t, "snapshots/1", readCurrent(t, store))

	blob, err := store.Open(ctx, CurrentName)
	require.NoError(t, err)
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 10, 5)
	require.NoError(t, err)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "1", string(data))

	// CURRENT never touches S3.
	client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "HeadObject", mock.Anything, mock.Anything)
}

func TestCommitStoreMultipleCommits(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	for i := 1; i <= 12; i++ {
		require.NoError(t, store.Put(ctx, CurrentName, []byte(fmt.Sprintf("snapshots/%d", i))))
	}
	assert.Equal(t, "snapshots/12", readCurrent(t, store))
}

func TestCommitStoreConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestCommitStore(newMockDDBClient(), "s3://test-bucket/test/")
	require.NoError(t, store.Put(ctx, CurrentName, []byte("snapshots/1")))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Put(ctx, CurrentName, []byte(fmt.Sprintf("snapshots/%d", i+2)))
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				successes++
			case ErrConcurrentModification:
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Positive(t, successes)
}

func TestCommitStoreNotFoundBeforeCommit(t *testing.T) {
	store, _ := newTestCommitStore(newMockDDBClient(), "s3://test-bucket/test/")

	_, err := store.Open(context.Background(), CurrentName)
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestCommitStoreIsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()

	store1, _ := newTestCommitStore(ddb, "s3://bucket-a/path/")
	store2, _ := newTestCommitStore(ddb, "s3://bucket-b/path/")

	require.NoError(t, store1.Put(ctx, CurrentName, []byte("snapshots/a")))
	require.NoError(t, store2.Put(ctx, CurrentName, []byte("snapshots/b")))

	assert.Equal(t, "snapshots/a", readCurrent(t, store1))
	assert.Equal(t, "snapshots/b", readCurrent(t, store2))
}
