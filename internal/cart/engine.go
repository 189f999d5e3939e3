package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	loadTimeout = 10 * time.Second
	saveTimeout = 5 * time.Second
)

// Engine owns the cart state for one user session. All mutations go
// through it, totals are re-derived on every change, and every new
// state is written through to the persistent store.
//
// Mutation saves are fire-and-forget: the caller never blocks on the
// store. A single writer goroutine drains the latest snapshot, so saves
// can never land out of call order no matter how slow the store is.
type Engine struct {
	store   PersistentStore
	history HistoryStore
	pricing Pricing
	logger  *zap.SugaredLogger

	mu        sync.Mutex
	lines     []Line
	listeners []func(Snapshot)

	pending chan []Line // capacity 1, always holds the newest unsaved state
	quit    chan struct{}
	done    chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithPricing overrides the default shipping fee and tax rate.
func WithPricing(p Pricing) Option {
	return func(e *Engine) { e.pricing = p }
}

// WithLogger attaches a logger for persistence failures.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine loads the persisted line list and starts the save loop.
// An empty store yields an empty cart; a load error aborts construction.
func NewEngine(store PersistentStore, history HistoryStore, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:   store,
		history: history,
		pricing: DefaultPricing(),
		logger:  zap.NewNop().Sugar(),
		pending: make(chan []Line, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	lines, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	e.lines = lines

	go e.saveLoop()
	return e, nil
}

// Subscribe registers fn to be called with a fresh snapshot after every
// mutation. Subscribers see the state the mutation produced, never a
// stale one.
func (e *Engine) Subscribe(fn func(Snapshot)) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// Lines returns a copy of the current line list in insertion order.
func (e *Engine) Lines() []Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyLines(e.lines)
}

// Totals derives the current totals from the line list.
func (e *Engine) Totals() Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeTotals(e.lines, e.pricing)
}

// Snapshot returns the current lines and totals together.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		Lines:  copyLines(e.lines),
		Totals: ComputeTotals(e.lines, e.pricing),
	}
}

// AddItem puts quantity units of product in the cart. If a line for the
// product already exists its quantity grows in place, keeping the line's
// id and position; otherwise a new line is appended. Quantities below 1
// are ignored.
func (e *Engine) AddItem(product Product, quantity int) {
	if quantity < 1 {
		return
	}

	e.mu.Lock()
	merged := false
	for i := range e.lines {
		if e.lines[i].Product.ID == product.ID {
			e.lines[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		e.lines = append(e.lines, Line{
			ID:       uuid.NewString(),
			Product:  product,
			Quantity: quantity,
		})
	}
	snap := e.snapshotLocked()
	e.scheduleSave(snap.Lines)
	e.mu.Unlock()

	e.notify(snap)
}

// UpdateQuantity sets the quantity of the line with the given id. A
// quantity of zero or less removes the line. Unknown ids are ignored.
func (e *Engine) UpdateQuantity(lineID string, quantity int) {
	if quantity <= 0 {
		e.RemoveItem(lineID)
		return
	}

	e.mu.Lock()
	idx := -1
	for i := range e.lines {
		if e.lines[i].ID == lineID {
			idx = i
			break
		}
	}
	if idx == -1 {
		e.mu.Unlock()
		return
	}
	e.lines[idx].Quantity = quantity
	snap := e.snapshotLocked()
	e.scheduleSave(snap.Lines)
	e.mu.Unlock()

	e.notify(snap)
}

// RemoveItem deletes the line with the given id. Unknown ids are ignored.
func (e *Engine) RemoveItem(lineID string) {
	e.mu.Lock()
	kept := e.lines[:0]
	removed := false
	for _, l := range e.lines {
		if l.ID == lineID {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	if !removed {
		e.mu.Unlock()
		return
	}
	e.lines = kept
	snap := e.snapshotLocked()
	e.scheduleSave(snap.Lines)
	e.mu.Unlock()

	e.notify(snap)
}

// Checkout converts the current cart into a Purchase. The purchase is
// appended to the history store before anything changes; if that write
// fails the cart is left untouched and the error is returned. On success
// the cart is cleared and the empty list persisted.
func (e *Engine) Checkout(ctx context.Context) (*Purchase, error) {
	e.mu.Lock()
	if len(e.lines) == 0 {
		e.mu.Unlock()
		return nil, ErrEmptyCart
	}

	totals := ComputeTotals(e.lines, e.pricing)
	purchase := &Purchase{
		ID:        uuid.NewString(),
		Items:     copyLines(e.lines),
		Subtotal:  totals.Subtotal,
		Shipping:  totals.Shipping,
		Taxes:     totals.Taxes,
		Total:     totals.Total,
		CreatedAt: time.Now().UTC(),
	}
	e.mu.Unlock()

	if err := e.history.Append(ctx, purchase); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.lines = nil
	snap := e.snapshotLocked()
	e.scheduleSave(snap.Lines)
	e.mu.Unlock()

	e.notify(snap)
	return purchase, nil
}

// Close stops the save loop, flushing any pending write first.
func (e *Engine) Close() {
	close(e.quit)
	<-e.done
}

func (e *Engine) notify(snap Snapshot) {
	e.mu.Lock()
	listeners := make([]func(Snapshot), len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// scheduleSave replaces whatever is queued with the newest state.
// Intermediate states may be skipped; the last one never is.
func (e *Engine) scheduleSave(lines []Line) {
	for {
		select {
		case e.pending <- lines:
			return
		default:
			select {
			case <-e.pending:
			default:
			}
		}
	}
}

func (e *Engine) saveLoop() {
	defer close(e.done)
	for {
		select {
		case lines := <-e.pending:
			e.save(lines)
		case <-e.quit:
			// Flush the final state, if any, before exiting.
			select {
			case lines := <-e.pending:
				e.save(lines)
			default:
			}
			return
		}
	}
}

func (e *Engine) save(lines []Line) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := e.store.Save(ctx, lines); err != nil {
		// In-memory state stays authoritative for the session; the
		// next successful save catches the store up.
		e.logger.Errorw("cart save failed", "error", err)
	}
}

func copyLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
