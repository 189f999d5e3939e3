package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	m       sync.Mutex
	initial []Line
	saved   [][]Line
	loadErr error
	saveErr error
	savedCh chan []Line
}

func newMockStore(initial ...Line) *mockStore {
	return &mockStore{initial: initial, savedCh: make(chan []Line, 16)}
}

func (m *mockStore) Load(context.Context) ([]Line, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.initial, nil
}

func (m *mockStore) Save(_ context.Context, lines []Line) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, lines)
	select {
	case m.savedCh <- lines:
	default:
	}
	return nil
}

// waitForSave blocks until the next save lands or the test times out.
func (m *mockStore) waitForSave(t *testing.T) []Line {
	t.Helper()
	select {
	case lines := <-m.savedCh:
		return lines
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a cart save")
		return nil
	}
}

func (m *mockStore) lastSaved() []Line {
	m.m.Lock()
	defer m.m.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}

type mockHistory struct {
	m         sync.Mutex
	purchases []*Purchase
	err       error
}

func (m *mockHistory) Append(_ context.Context, p *Purchase) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.purchases = append(m.purchases, p)
	return nil
}

func (m *mockHistory) all() []*Purchase {
	m.m.Lock()
	defer m.m.Unlock()
	return m.purchases
}

func product(id int64, price int64) Product {
	return Product{ID: id, Name: "product", Price: decimal.NewFromInt(price), Stock: 10}
}

func newTestEngine(t *testing.T, store *mockStore, history *mockHistory) *Engine {
	t.Helper()
	e, err := NewEngine(store, history)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestNewEngineLoadsPersistedLines(t *testing.T) {
	seed := Line{ID: "line-1", Product: product(1, 100), Quantity: 2}
	store := newMockStore(seed)
	e := newTestEngine(t, store, &mockHistory{})

	lines := e.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, seed, lines[0])
}

func TestNewEngineLoadFailure(t *testing.T) {
	store := newMockStore()
	store.loadErr = errors.New("malformed blob")

	_, err := NewEngine(store, &mockHistory{})
	require.Error(t, err)
}

func TestAddItemMergesSameProduct(t *testing.T) {
	store := newMockStore()
	e := newTestEngine(t, store, &mockHistory{})

	e.AddItem(product(1, 1000), 2)
	first := e.Lines()
	require.Len(t, first, 1)

	e.AddItem(product(1, 1000), 3)
	lines := e.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, first[0].ID, lines[0].ID, "merging must keep the line id")
}

func TestAddItemPreservesInsertionOrder(t *testing.T) {
	store := newMockStore()
	e := newTestEngine(t, store, &mockHistory{})

	e.AddItem(product(1, 100), 1)
	e.AddItem(product(2, 200), 1)
	e.AddItem(product(3, 300), 1)
	e.AddItem(product(1, 100), 1) // merge, must not move

	lines := e.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, int64(1), lines[0].Product.ID)
	assert.Equal(t, int64(2), lines[1].Product.ID)
	assert.Equal(t, int64(3), lines[2].Product.ID)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestAddItemIgnoresNonPositiveQuantity(t *testing.T) {
	store := newMockStore()
	e := newTestEngine(t, store, &mockHistory{})

	e.AddItem(product(1, 100), 0)
	e.AddItem(product(1, 100), -4)

	assert.Empty(t, e.Lines())
	assert.True(t, e.Totals().Subtotal.IsZero())
}

func TestUpdateQuantityInPlace(t *testing.T) {
	store := newMockStore()
	e := newTestEngine(t, store, &mockHistory{})

	e.AddItem(product(1, 100), 1)
	e.AddItem(product(2, 200), 1)
	id := e.Lines()[0].ID

	e.UpdateQuantity(id, 7)

	lines := e.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, id, lines[0].ID)
	assert.Equal(t, 7, lines[0].Quantity)
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	store := newMockStore()
	e := newTestEngine(t, store, &mockHistory{})

	e.AddItem(product(1, 1000), 2)
	e.AddItem(product(2, 500), 1)
	id := e.Lines()[0].ID

	e.UpdateQuantity(id, 0)

	lines := e.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].Product.ID)
	assert.True(t, e.Totals().Subtotal.Equal(decimal.NewFromInt(500)))
}

func TestUpdateQuantityUnknownIDIsNoOp(t *testing.T) {
	store := newMockStore()
	e := newTestEngine(t, store, &mockHistory{})

	e.AddItem(product(1, 100), 2)
	before := e.Lines()

	e.UpdateQuantity("no-such-line", 9)

	assert.Equal(t, before, e.Lines())
}

func TestRemoveItem(t *testing.T) {
	store := newMockStore()
	e := newTestEngine(t, store, &mockHistory{})

	e.AddItem(product(1, 100), 1)
	id := e.Lines()[0].ID

	e.RemoveItem(id)
	assert.Empty(t, e.Lines())

	// Unknown id: nothing happens, nothing is persisted again.
	e.RemoveItem(id)
	assert.Empty(t, e.Lines())
}

func TestTotals(t *testing.T) {
	store := newMockStore()
	e := newTestEngine(t, store, &mockHistory{})

	// Empty cart: everything is zero, including shipping.
	totals := e.Totals()
	assert.True(t, totals.Subtotal.IsZero())
	assert.True(t, totals.Shipping.IsZero())
	assert.True(t, totals.Taxes.IsZero())
	assert.True(t, totals.Total.IsZero())

	e.AddItem(product(1, 1000), 2)

	totals = e.Totals()
	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(2000)), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.Shipping.Equal(decimal.NewFromInt(50)), "shipping %s", totals.Shipping)
	assert.True(t, totals.Taxes.Equal(decimal.NewFromInt(380)), "taxes %s", totals.Taxes)
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(2430)), "total %s", totals.Total)
}

func TestTotalsTaxIsExact(t *testing.T) {
	lines := []Line{{ID: "l1", Product: Product{ID: 1, Price: decimal.RequireFromString("19.99")}, Quantity: 3}}
	totals := ComputeTotals(lines, DefaultPricing())

	assert.True(t, totals.Subtotal.Equal(decimal.RequireFromString("59.97")))
	assert.True(t, totals.Taxes.Equal(totals.Subtotal.Mul(decimal.NewFromFloat(0.19))))
}

func TestMutationsArePersisted(t *testing.T) {
	store := newMockStore()
	e := newTestEngine(t, store, &mockHistory{})

	e.AddItem(product(1, 100), 1)
	saved := store.waitForSave(t)
	require.Len(t, saved, 1)
	assert.Equal(t, 1, saved[0].Quantity)
}

func TestSaveOrderingLastWriteWins(t *testing.T) {
	store := newMockStore()
	e, err := NewEngine(store, &mockHistory{})
	require.NoError(t, err)

	e.AddItem(product(1, 10), 1)
	id := e.Lines()[0].ID
	for i := 2; i <= 50; i++ {
		e.UpdateQuantity(id, i)
	}
	e.Close() // flushes the final pending save

	last := store.lastSaved()
	require.Len(t, last, 1)
	assert.Equal(t, 50, last[0].Quantity)
}

func TestCheckout(t *testing.T) {
	store := newMockStore()
	history := &mockHistory{}
	e, err := NewEngine(store, history)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	e.AddItem(product(1, 1000), 2)
	saved := store.waitForSave(t)
	require.Len(t, saved, 1)

	p, err := e.Checkout(context.Background())
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
	require.Len(t, p.Items, 1)
	assert.Equal(t, 2, p.Items[0].Quantity)
	assert.True(t, p.Subtotal.Equal(decimal.NewFromInt(2000)))
	assert.True(t, p.Shipping.Equal(decimal.NewFromInt(50)))
	assert.True(t, p.Taxes.Equal(decimal.NewFromInt(380)))
	assert.True(t, p.Total.Equal(decimal.NewFromInt(2430)))

	require.Len(t, history.all(), 1)
	assert.Empty(t, e.Lines())
	assert.True(t, e.Totals().Total.IsZero())

	// The cleared cart must be what ends up persisted.
	saved = store.waitForSave(t)
	assert.Empty(t, saved)
}

func TestCheckoutEmptyCartIsDeclined(t *testing.T) {
	store := newMockStore()
	history := &mockHistory{}
	e := newTestEngine(t, store, history)

	p, err := e.Checkout(context.Background())
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Nil(t, p)
	assert.Empty(t, history.all())
}

func TestCheckoutHistoryFailureLeavesCartIntact(t *testing.T) {
	store := newMockStore()
	history := &mockHistory{err: errors.New("history unavailable")}
	e, err := NewEngine(store, history)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	e.AddItem(product(1, 1000), 2)

	_, err = e.Checkout(context.Background())
	require.Error(t, err)

	lines := e.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestSubscribersSeeEveryMutation(t *testing.T) {
	store := newMockStore()
	e := newTestEngine(t, store, &mockHistory{})

	var snaps []Snapshot
	e.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	e.AddItem(product(1, 1000), 2)
	e.UpdateQuantity(e.Lines()[0].ID, 3)
	e.RemoveItem(e.Lines()[0].ID)

	require.Len(t, snaps, 3)
	assert.Equal(t, 2, snaps[0].Lines[0].Quantity)
	assert.Equal(t, 3, snaps[1].Lines[0].Quantity)
	assert.Empty(t, snaps[2].Lines)
	assert.True(t, snaps[2].Totals.Shipping.IsZero())
}

func TestSaveFailureKeepsSessionState(t *testing.T) {
	store := newMockStore()
	store.saveErr = errors.New("store unreachable")
	e := newTestEngine(t, store, &mockHistory{})

	e.AddItem(product(1, 100), 1)

	// In-memory state stays authoritative even though nothing persisted.
	require.Len(t, e.Lines(), 1)
}
