package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/phrazzld/todo-api/internal/mocks"
	"github.com/phrazzld/todo-api/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBroadcaster(t *testing.T, connStore *mocks.MockConnectionStore, gw pipeline.Gateway) *pipeline.Broadcaster {
	t.Helper()
	registry, err := pipeline.NewRegistry(connStore, nil, discardLogger())
	require.NoError(t, err)
	b, err := pipeline.NewBroadcaster(registry, gw, 4, discardLogger())
	require.NoError(t, err)
	return b
}

func TestNewBroadcaster_Validation(t *testing.T) {
	registry, err := pipeline.NewRegistry(mocks.NewMockConnectionStore(), nil, nil)
	require.NoError(t, err)

	_, err = pipeline.NewBroadcaster(nil, &mocks.MockGateway{}, 1, nil)
	assert.Error(t, err)
	_, err = pipeline.NewBroadcaster(registry, nil, 1, nil)
	assert.Error(t, err)
}

// c2 is gone: it is pruned and c1 keeps its registration. Both received the
// same payload.
func TestBroadcast_GoneConnectionPruned(t *testing.T) {
	connStore := mocks.NewMockConnectionStore("c1", "c2")
	gw := &mocks.MockGateway{Results: map[string]domain.PushResult{"c2": domain.Gone()}}

	result, err := newBroadcaster(t, connStore, gw).Broadcast(context.Background(), batchOf("shortU1/task42"))

	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, connStore.IDs())
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 1, result.Gone)
	assert.Equal(t, []string{"c2"}, result.Removed)

	want := `{"imageId":"shortU1/task42"}`
	for _, id := range []string{"c1", "c2"} {
		payloads := gw.PushesTo(id)
		require.Len(t, payloads, 1, id)
		assert.JSONEq(t, want, string(payloads[0]))
	}
}

func TestBroadcast_TransportErrorRetainsConnection(t *testing.T) {
	connStore := mocks.NewMockConnectionStore("c1", "c2")
	gw := &mocks.MockGateway{Results: map[string]domain.PushResult{
		"c1": domain.TransportFailure(errors.New("503 from gateway")),
	}}

	result, err := newBroadcaster(t, connStore, gw).Broadcast(context.Background(), batchOf("u1/t1", "u1/t2"))

	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, connStore.IDs())
	assert.Empty(t, connStore.Deleted())
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 2, result.Delivered)
	// No retry within the invocation: one push per entry.
	assert.Len(t, gw.PushesTo("c1"), 2)
}

func TestBroadcast_SnapshotTakenOncePerBatch(t *testing.T) {
	connStore := mocks.NewMockConnectionStore("c1", "c2", "c3")
	gw := &mocks.MockGateway{}

	result, err := newBroadcaster(t, connStore, gw).Broadcast(context.Background(), batchOf("u/1", "u/2", "u/3"))

	require.NoError(t, err)
	assert.Equal(t, 1, connStore.ScanCount())
	assert.Equal(t, 9, result.Delivered)
	assert.Len(t, gw.Pushes(), 9)
}

func TestBroadcast_GoneSkippedForRestOfBatch(t *testing.T) {
	connStore := mocks.NewMockConnectionStore("c1", "c2")
	gw := &mocks.MockGateway{Results: map[string]domain.PushResult{"c2": domain.Gone()}}

	result, err := newBroadcaster(t, connStore, gw).Broadcast(context.Background(), batchOf("u/1", "u/2", "u/3"))

	require.NoError(t, err)
	assert.Len(t, gw.PushesTo("c2"), 1)
	assert.Len(t, gw.PushesTo("c1"), 3)
	assert.Equal(t, 1, result.Gone)
	assert.Equal(t, []string{"c2"}, connStore.Deleted())
}

func TestBroadcast_RemoveFailureDoesNotAbort(t *testing.T) {
	connStore := mocks.NewMockConnectionStore("c1", "c2", "c3")
	connStore.DeleteFn = func(context.Context, string) error { return errors.New("throttled") }
	gw := &mocks.MockGateway{Results: map[string]domain.PushResult{
		"c1": domain.Gone(),
		"c2": domain.Gone(),
	}}

	result, err := newBroadcaster(t, connStore, gw).Broadcast(context.Background(), batchOf("u/1", "u/2"))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Gone)
	assert.Empty(t, result.Removed)
	assert.ElementsMatch(t, []string{"c1", "c2"}, connStore.Deleted())
	assert.Len(t, gw.PushesTo("c3"), 2)
}

func TestBroadcast_SnapshotFailureIsReturned(t *testing.T) {
	scanErr := errors.New("table unavailable")
	connStore := mocks.NewMockConnectionStore()
	connStore.ScanAllFn = func(context.Context) ([]string, error) { return nil, scanErr }
	gw := &mocks.MockGateway{}

	err := newBroadcaster(t, connStore, gw).HandleUploadBatch(context.Background(), batchOf("u/1"))

	assert.ErrorIs(t, err, scanErr)
	assert.Empty(t, gw.Pushes())
}

func TestBroadcast_NoConnections(t *testing.T) {
	gw := &mocks.MockGateway{}

	result, err := newBroadcaster(t, mocks.NewMockConnectionStore(), gw).Broadcast(context.Background(), batchOf("u/1"))

	require.NoError(t, err)
	assert.Zero(t, result.Delivered)
	assert.Empty(t, gw.Pushes())
}

// A second delivery of the same batch pushes again; clients re-fetch, so
// duplicates are harmless.
func TestBroadcast_RedeliveryPushesAgain(t *testing.T) {
	connStore := mocks.NewMockConnectionStore("c1")
	gw := &mocks.MockGateway{}
	b := newBroadcaster(t, connStore, gw)
	batch := batchOf("u1/t1")

	require.NoError(t, b.HandleUploadBatch(context.Background(), batch))
	require.NoError(t, b.HandleUploadBatch(context.Background(), batch))

	payloads := gw.PushesTo("c1")
	require.Len(t, payloads, 2)
	assert.Equal(t, payloads[0], payloads[1])
}

// Records left unpushed when the invocation is cancelled surface as an error
// so the batch is redelivered.
func TestBroadcast_CancelledMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	connStore := mocks.NewMockConnectionStore("c1")
	gw := &mocks.MockGateway{
		PushToFn: func(context.Context, string, []byte) domain.PushResult {
			cancel()
			return domain.Delivered()
		},
	}

	result, err := newBroadcaster(t, connStore, gw).Broadcast(ctx, batchOf("u1/t1", "u1/t2"))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Delivered)
	assert.Len(t, gw.Pushes(), 1)
	assert.Equal(t, []string{"c1"}, connStore.IDs())
}
