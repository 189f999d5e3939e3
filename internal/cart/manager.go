package cart

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var errManagerClosed = errors.New("cart manager is closed")

// UserCartStore persists the full line list of a single user's cart.
type UserCartStore interface {
	Load(ctx context.Context, userID int64) ([]Line, error)
	Save(ctx context.Context, userID int64, lines []Line) error
}

// UserHistoryStore records completed purchases per user.
type UserHistoryStore interface {
	Append(ctx context.Context, userID int64, p *Purchase) error
}

// Manager hands out at most one Engine per user and keeps it alive for
// the rest of the process. Concurrent first requests for the same user
// collapse into a single load.
type Manager struct {
	carts   UserCartStore
	history UserHistoryStore
	pricing Pricing
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	engines map[int64]*Engine
	sfg     singleflight.Group
	closed  bool
}

func NewManager(carts UserCartStore, history UserHistoryStore, pricing Pricing, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		carts:   carts,
		history: history,
		pricing: pricing,
		logger:  logger,
		engines: make(map[int64]*Engine),
	}
}

// Engine returns the user's cart engine, constructing it from the
// persisted cart on first use.
func (m *Manager) Engine(ctx context.Context, userID int64) (*Engine, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errManagerClosed
	}
	if e, ok := m.engines[userID]; ok {
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	v, err, _ := m.sfg.Do(engineKey(userID), func() (interface{}, error) {
		e, err := NewEngine(
			&boundCartStore{carts: m.carts, userID: userID},
			&boundHistoryStore{history: m.history, userID: userID},
			WithPricing(m.pricing),
			WithLogger(m.logger),
		)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if existing, ok := m.engines[userID]; ok {
			e.Close()
			return existing, nil
		}
		m.engines[userID] = e
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Engine), nil
}

// Close flushes and stops every engine. The manager is unusable after.
func (m *Manager) Close() {
	m.mu.Lock()
	engines := m.engines
	m.engines = make(map[int64]*Engine)
	m.closed = true
	m.mu.Unlock()

	for _, e := range engines {
		e.Close()
	}
}

func engineKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// boundCartStore narrows a UserCartStore to one user, matching the
// engine's store contract.
type boundCartStore struct {
	carts  UserCartStore
	userID int64
}

func (s *boundCartStore) Load(ctx context.Context) ([]Line, error) {
	return s.carts.Load(ctx, s.userID)
}

func (s *boundCartStore) Save(ctx context.Context, lines []Line) error {
	return s.carts.Save(ctx, s.userID, lines)
}

type boundHistoryStore struct {
	history UserHistoryStore
	userID  int64
}

func (s *boundHistoryStore) Append(ctx context.Context, p *Purchase) error {
	return s.history.Append(ctx, s.userID, p)
}
