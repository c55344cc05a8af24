// Package mocks provides in-memory implementations of the store, blob,
// gateway and auth interfaces shared by tests across packages.
//
// Each mock keeps enough state to assert on afterwards (stored records,
// recorded calls) and exposes Fn fields to script failures:
//
//	gw := &mocks.MockGateway{
//	    Results: map[string]domain.PushResult{"c2": domain.Gone()},
//	}
//	tasks := mocks.NewMockTaskStore()
//	tasks.UpdateThumbnailReferenceFn = func(ctx context.Context, owner, task, url string) (*domain.TaskRecord, error) {
//	    return nil, store.ErrTaskNotFound
//	}
package mocks
