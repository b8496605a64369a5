package flow_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quailbot/quail/pkg/adapters/memory"
	"github.com/quailbot/quail/pkg/adapters/sqlite"
	"github.com/quailbot/quail/pkg/domain"
	"github.com/quailbot/quail/pkg/flow"
	"github.com/quailbot/quail/pkg/persist"
)

func newTestStore(t *testing.T, opts ...flow.Option) *flow.Store {
	t.Helper()

	factory, err := sqlite.Open("file:" + filepath.Join(t.TempDir(), "quail.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = factory.Close() })

	mgr := persist.NewManager(memory.New(), factory,
		persist.WithLocker(memory.NewLocker()),
	)
	require.NoError(t, mgr.Initialize(context.Background()))
	t.Cleanup(func() { _ = mgr.Close() })

	return flow.NewStore(mgr, opts...)
}

func TestFlowStore_SaveLoadClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "fresh conversation has no state")

	state := domain.NewState("onboarding:ask_name")
	state.Context["lang"] = "ru"
	require.NoError(t, store.Save(ctx, "u1", state))

	loaded, ok, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "onboarding:ask_name", loaded.Step)
	assert.Equal(t, "ru", loaded.Context["lang"])

	require.NoError(t, store.Clear(ctx, "u1"))
	_, ok, err = store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Clear(ctx, "u1"), "clearing absent state is fine")
}

func TestFlowStore_UpdateCreatesAtStartStep(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, "u2", "start", func(state *domain.State) error {
		assert.Equal(t, "start", state.Step)
		state.Step = "menu"
		return nil
	})
	require.NoError(t, err)

	loaded, ok, err := store.Load(ctx, "u2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "menu", loaded.Step)
}

func TestFlowStore_UpdateDoesNotLoseWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	const events = 40
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, "u3", "start", func(state *domain.State) error {
				n, _ := state.Context["count"].(float64)
				state.Context["count"] = n + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, ok, err := store.Load(ctx, "u3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(events), loaded.Context["count"])
}

func TestFlowStore_UpdateErrorDiscardsChanges(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u4", domain.NewState("menu")))

	err := store.Update(ctx, "u4", "start", func(state *domain.State) error {
		state.Step = "never-persisted"
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	loaded, ok, err := store.Load(ctx, "u4")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "menu", loaded.Step)
}

func TestFlowStore_TTL(t *testing.T) {
	// TTL is enforced by the backend; here we only verify it is passed on.
	var (
		mu      sync.Mutex
		current = time.Now()
	)
	mem := memory.New(memory.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}))

	factory, err := sqlite.Open("file:" + filepath.Join(t.TempDir(), "quail.db"))
	require.NoError(t, err)
	defer factory.Close()

	mgr := persist.NewManager(mem, factory)
	ctx := context.Background()
	require.NoError(t, mgr.Initialize(ctx))
	defer mgr.Close()

	store := flow.NewStore(mgr, flow.WithTTL(time.Hour))
	require.NoError(t, store.Save(ctx, "u5", domain.NewState("menu")))

	mu.Lock()
	current = current.Add(2 * time.Hour)
	mu.Unlock()

	_, ok, err := store.Load(ctx, "u5")
	require.NoError(t, err)
	assert.False(t, ok, "idle conversation state must expire")
}
