package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pedrogk/msgmux/internal/commands"
	"github.com/pedrogk/msgmux/internal/config"
	"github.com/pedrogk/msgmux/internal/core"
	"github.com/pedrogk/msgmux/internal/credentials"
	"github.com/pedrogk/msgmux/internal/db"
	"github.com/pedrogk/msgmux/internal/events"
	"github.com/pedrogk/msgmux/internal/metrics"
	"github.com/pedrogk/msgmux/internal/transport"
)

// SnapshotStore is the slice of the repository the session core writes
// through on every checkpoint.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, s *db.Snapshot) error
}

// Manager is the surface exposed to the outer system (API layer, admin
// tooling). It owns the registry and the shared collaborators every
// controller uses.
type Manager struct {
	registry  *Registry
	factory   transport.Factory
	credStore credentials.Store
	store     SnapshotStore
	publisher events.Publisher
	collector *metrics.Collector
	router    *commands.Router
	logger    *zap.Logger

	reconnectDelay time.Duration
	sendBurst      int

	createMu sync.Mutex
}

func NewManager(
	factory transport.Factory,
	credStore credentials.Store,
	store SnapshotStore,
	publisher events.Publisher,
	collector *metrics.Collector,
	logger *zap.Logger,
	cfg config.SessionsConfig,
) *Manager {
	return &Manager{
		registry:       NewRegistry(),
		factory:        factory,
		credStore:      credStore,
		store:          store,
		publisher:      publisher,
		collector:      collector,
		router:         commands.NewRouter(logger),
		logger:         logger,
		reconnectDelay: cfg.ReconnectDelay,
		sendBurst:      cfg.SendBurst,
	}
}

// Registry exposes the session table for read-mostly collaborators
// such as the heartbeat.
func (m *Manager) Registry() *Registry { return m.registry }

// CreateOrGetSession returns the tenant's live controller, creating and
// initializing one when absent. On initialization failure the tenant is
// removed again so a later call can retry cleanly. Creation holds
// createMu through Initialize: a concurrent call for the same tenant
// waits and never sees a controller whose initialization then fails and
// un-registers it.
func (m *Manager) CreateOrGetSession(ctx context.Context, tenantID string, profile core.Profile) (*Controller, error) {
	m.createMu.Lock()
	defer m.createMu.Unlock()

	if c, ok := m.registry.Get(tenantID); ok {
		return c, nil
	}

	// Registered before Initialize so connection events arriving during
	// startup pass the registry membership checks.
	c := newController(tenantID, profile, m)
	m.registry.Put(tenantID, c)

	if err := c.Initialize(ctx); err != nil {
		m.registry.Remove(tenantID)
		return nil, err
	}

	m.collector.SetActiveSessions(m.registry.Len())
	return c, nil
}

func (m *Manager) RequestPairingCode(ctx context.Context, tenantID, phoneNumber string) PairingResult {
	c, ok := m.registry.Get(tenantID)
	if !ok {
		return PairingResult{Success: false, Error: ErrSessionNotFound.Error()}
	}
	return c.RequestPairingCode(ctx, phoneNumber)
}

func (m *Manager) GetSnapshot(tenantID string) (core.SessionView, error) {
	c, ok := m.registry.Get(tenantID)
	if !ok {
		return core.SessionView{}, ErrSessionNotFound
	}
	return c.Snapshot(), nil
}

// TerminateSession runs cleanup for the tenant. Terminating an absent
// tenant is a no-op, matching cleanup's idempotency.
func (m *Manager) TerminateSession(ctx context.Context, tenantID string) {
	c, ok := m.registry.Get(tenantID)
	if !ok {
		return
	}
	c.Cleanup(ctx)
	m.collector.SetActiveSessions(m.registry.Len())
}

// Shutdown drops every live connection without logging out, leaving
// credentials intact for the next process start.
func (m *Manager) Shutdown() {
	m.registry.ForEach(func(c *Controller) {
		c.Shutdown()
	})
	m.logger.Info("All sessions shut down", zap.Int("count", m.registry.Len()))
}
