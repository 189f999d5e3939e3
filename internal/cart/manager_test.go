package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockUserStore struct {
	m     sync.Mutex
	carts map[int64][]Line
	loads map[int64]int
	err   error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{carts: make(map[int64][]Line), loads: make(map[int64]int)}
}

func (m *mockUserStore) Load(_ context.Context, userID int64) ([]Line, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.loads[userID]++
	if m.err != nil {
		return nil, m.err
	}
	return m.carts[userID], nil
}

func (m *mockUserStore) Save(_ context.Context, userID int64, lines []Line) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[userID] = lines
	return nil
}

type mockUserHistory struct {
	m         sync.Mutex
	purchases map[int64][]*Purchase
}

func (m *mockUserHistory) Append(_ context.Context, userID int64, p *Purchase) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.purchases == nil {
		m.purchases = make(map[int64][]*Purchase)
	}
	m.purchases[userID] = append(m.purchases[userID], p)
	return nil
}

func newTestManager(store *mockUserStore) *Manager {
	return NewManager(store, &mockUserHistory{}, DefaultPricing(), zap.NewNop().Sugar())
}

func TestManagerReturnsSameEnginePerUser(t *testing.T) {
	m := newTestManager(newMockUserStore())
	defer m.Close()

	a, err := m.Engine(context.Background(), 1)
	require.NoError(t, err)
	b, err := m.Engine(context.Background(), 1)
	require.NoError(t, err)
	other, err := m.Engine(context.Background(), 2)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
}

func TestManagerCollapsesConcurrentLoads(t *testing.T) {
	store := newMockUserStore()
	m := newTestManager(store)
	defer m.Close()

	var wg sync.WaitGroup
	engines := make([]*Engine, 20)
	for i := range engines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := m.Engine(context.Background(), 7)
			assert.NoError(t, err)
			engines[i] = e
		}(i)
	}
	wg.Wait()

	for _, e := range engines[1:] {
		assert.Same(t, engines[0], e)
	}
}

func TestManagerPropagatesLoadErrors(t *testing.T) {
	store := newMockUserStore()
	store.err = errors.New("db down")
	m := newTestManager(store)
	defer m.Close()

	_, err := m.Engine(context.Background(), 1)
	require.Error(t, err)
}

func TestManagerClose(t *testing.T) {
	m := newTestManager(newMockUserStore())

	_, err := m.Engine(context.Background(), 1)
	require.NoError(t, err)

	m.Close()

	_, err = m.Engine(context.Background(), 1)
	require.ErrorIs(t, err, errManagerClosed)
}

func TestManagerEnginePersistsThroughBoundStore(t *testing.T) {
	store := newMockUserStore()
	history := &mockUserHistory{}
	m := NewManager(store, history, DefaultPricing(), zap.NewNop().Sugar())

	e, err := m.Engine(context.Background(), 42)
	require.NoError(t, err)

	e.AddItem(product(1, 100), 2)
	m.Close() // flushes pending saves

	store.m.Lock()
	defer store.m.Unlock()
	require.Len(t, store.carts[42], 1)
	assert.Equal(t, 2, store.carts[42][0].Quantity)
}
