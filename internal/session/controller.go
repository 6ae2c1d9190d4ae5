package session

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pedrogk/msgmux/internal/commands"
	"github.com/pedrogk/msgmux/internal/core"
	"github.com/pedrogk/msgmux/internal/credentials"
	"github.com/pedrogk/msgmux/internal/db"
	"github.com/pedrogk/msgmux/internal/events"
	"github.com/pedrogk/msgmux/internal/transport"
)

// Controller owns one tenant's connection state machine. Handlers for a
// single tenant never run concurrently: the connection delivers events
// on one channel consumed by a single pump goroutine, and the
// controller mutex also serializes re-entry from reconnect timers and
// external API calls.
type Controller struct {
	tenantID string
	profile  core.Profile
	m        *Manager
	logger   *zap.Logger
	limiter  *rate.Limiter

	mu           sync.Mutex
	state        core.ConnectionState
	connectedAt  time.Time
	lastActivity time.Time
	metrics      core.Metrics
	device       core.DeviceInfo
	credHandle   credentials.Handle
	conn         transport.Connection
	cleanedUp    bool
}

func newController(tenantID string, profile core.Profile, m *Manager) *Controller {
	if profile.Limits == (core.Limits{}) {
		profile.Limits = core.DefaultLimits(profile.Plan)
	}

	// Outbound sends trickle at the plan's daily allowance, with a
	// burst so conversational replies are never delayed.
	perSecond := rate.Limit(float64(profile.Limits.MessagesPerDay) / (24 * 60 * 60))

	return &Controller{
		tenantID:     tenantID,
		profile:      profile,
		m:            m,
		logger:       m.logger.With(zap.String("tenant_id", tenantID)),
		limiter:      rate.NewLimiter(perSecond, m.sendBurst),
		state:        core.StateDisconnected,
		lastActivity: time.Now(),
	}
}

func (c *Controller) TenantID() string { return c.tenantID }

func (c *Controller) Profile() core.Profile { return c.profile }

// Initialize ensures credential storage exists, opens a connection
// bound to it and starts consuming its events. Idempotent: a live
// connection makes it a no-op.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeLocked(ctx)
}

func (c *Controller) initializeLocked(ctx context.Context) error {
	if c.state == core.StateExpired || c.cleanedUp {
		return ErrSessionExpired
	}
	if c.conn != nil && c.state != core.StateDisconnected {
		return nil
	}

	handle, err := c.m.credStore.Ensure(c.tenantID)
	if err != nil {
		return &InitializationError{TenantID: c.tenantID, Err: err}
	}
	c.credHandle = handle

	conn, err := c.m.factory.Open(ctx, handle)
	if err != nil {
		return &InitializationError{TenantID: c.tenantID, Err: err}
	}

	c.conn = conn
	c.state = core.StateConnecting
	go c.pump(conn)

	c.checkpointLocked(ctx)
	c.logger.Info("Session initializing")
	return nil
}

// pump consumes one connection's event stream until it closes.
func (c *Controller) pump(conn transport.Connection) {
	for ev := range conn.Events() {
		switch ev.Kind {
		case transport.EventQR:
			c.handleQR(ev.QR)
		case transport.EventOpened:
			c.handleOpened(ev.Device)
		case transport.EventClosed:
			c.handleClosed(conn, ev.Code)
		case transport.EventMessage:
			c.handleMessage(ev.Message)
		}
	}
}

func (c *Controller) handleQR(qr string) {
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()

	// The gateway can re-challenge a live session when the remote side
	// unpairs without a close frame. connectedAt only holds while
	// Connected.
	if c.state == core.StateConnected {
		c.connectedAt = time.Time{}
		c.m.collector.SetConnected(c.tenantID, false)
	}
	c.state = core.StateAwaitingQR
	c.lastActivity = time.Now()

	payload := map[string]interface{}{"qr": qr}
	if png, err := qrcode.Encode(qr, qrcode.Medium, 256); err == nil {
		payload["qr_png"] = base64.StdEncoding.EncodeToString(png)
	} else {
		c.logger.Warn("Failed to render QR image", zap.Error(err))
	}

	c.logger.Info("QR challenge received")
	c.m.publisher.Publish(ctx, c.tenantID, events.QRGenerated, payload)
	c.checkpointLocked(ctx)
}

func (c *Controller) handleOpened(device core.DeviceInfo) {
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = core.StateConnected
	c.connectedAt = time.Now()
	c.lastActivity = time.Now()
	c.device = device
	c.m.collector.SetConnected(c.tenantID, true)

	c.logger.Info("Session connected",
		zap.String("platform", device.Platform),
	)
	c.m.publisher.Publish(ctx, c.tenantID, events.Connected, nil)
	c.checkpointLocked(ctx)
}

func (c *Controller) handleClosed(conn transport.Connection, code int) {
	ctx := context.Background()

	c.mu.Lock()
	if c.conn != conn {
		// A stale pump racing a newer connection must not touch state.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connectedAt = time.Time{}
	c.m.collector.SetConnected(c.tenantID, false)

	if code == transport.CloseAuthFailure {
		c.state = core.StateExpired
		c.m.collector.RecordExpired(c.tenantID)
		c.checkpointLocked(ctx)
		c.mu.Unlock()

		c.logger.Info("Session expired by remote logout", zap.Int("close_code", code))
		c.m.publisher.Publish(ctx, c.tenantID, events.Expired, nil)
		c.Cleanup(ctx)
		return
	}

	c.state = core.StateDisconnected
	c.checkpointLocked(ctx)
	c.m.collector.RecordReconnect(c.tenantID)
	delay := c.m.reconnectDelay
	c.mu.Unlock()

	c.logger.Info("Connection closed, scheduling reconnect",
		zap.Int("close_code", code),
		zap.Duration("delay", delay),
	)
	time.AfterFunc(delay, c.reconnect)
}

// reconnect is timer-fired. A tenant removed from the registry since
// the timer was armed must not be resurrected.
func (c *Controller) reconnect() {
	if cur, ok := c.m.registry.Get(c.tenantID); !ok || cur != c {
		return
	}
	if err := c.Initialize(context.Background()); err != nil {
		c.logger.Error("Reconnect attempt failed", zap.Error(err))
		time.AfterFunc(c.m.reconnectDelay, c.reconnect)
	}
}

func (c *Controller) handleMessage(msg *transport.Message) {
	if msg == nil || msg.FromSelf {
		return
	}
	ctx := context.Background()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastActivity = time.Now()
	c.metrics.MessagesReceived++
	c.m.collector.RecordMessageReceived(c.tenantID)

	if msg.Content != "" {
		c.metrics.CommandsExecuted++
		c.dispatchLocked(ctx, msg)
	}

	c.checkpointLocked(ctx)
}

func (c *Controller) dispatchLocked(ctx context.Context, msg *transport.Message) {
	req, ok := commands.Parse(msg.Content, msg.Sender)
	if !ok {
		return
	}

	env := commands.Env{
		TenantID:     c.tenantID,
		Profile:      c.profile,
		State:        c.state,
		LastActivity: c.lastActivity,
		Metrics:      c.metrics,
		Send:         c.sendHeld,
	}
	if !c.connectedAt.IsZero() {
		t := c.connectedAt
		env.ConnectedAt = &t
	}

	c.m.collector.RecordCommand(c.tenantID, req.Command)

	reply, err := c.m.router.Dispatch(ctx, req, env)
	if err != nil {
		// Local recovery: the conversation gets a generic failure
		// reply, the error goes no further.
		if sendErr := c.sendHeld(ctx, msg.Sender, "⚠️ Error while executing the command."); sendErr != nil {
			c.logger.Warn("Failed to send failure reply", zap.Error(sendErr))
		}
		return
	}
	if reply == "" {
		return
	}

	if err := c.sendHeld(ctx, msg.Sender, reply); err != nil {
		c.logger.Warn("Failed to send reply",
			zap.String("command", req.Command),
			zap.Error(err),
		)
		_ = c.sendHeld(ctx, msg.Sender, "⚠️ Error while executing the command.")
	}
}

// sendHeld performs an outbound send. Callers must hold c.mu.
func (c *Controller) sendHeld(ctx context.Context, recipient, content string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if !c.limiter.Allow() {
		c.logger.Warn("Send dropped by rate limit", zap.String("recipient", recipient))
		return ErrRateLimited
	}
	if err := c.conn.Send(ctx, recipient, content); err != nil {
		return err
	}
	c.metrics.MessagesSent++
	c.lastActivity = time.Now()
	c.m.collector.RecordMessageSent(c.tenantID)
	return nil
}

// RequestPairingCode opens a connection first when none exists, then
// asks the gateway for a pairing code for the given phone number.
func (c *Controller) RequestPairingCode(ctx context.Context, phoneNumber string) PairingResult {
	c.mu.Lock()
	if c.conn == nil {
		if err := c.initializeLocked(ctx); err != nil {
			c.mu.Unlock()
			return PairingResult{Success: false, Error: err.Error()}
		}
	}
	conn := c.conn
	c.mu.Unlock()

	normalized := strings.Join(strings.Fields(phoneNumber), "")
	code, err := conn.RequestPairingCode(ctx, normalized)
	if err != nil {
		return PairingResult{Success: false, Error: err.Error()}
	}
	return PairingResult{Success: true, Code: code}
}

// Cleanup logs out best-effort, removes the tenant from the registry
// and deletes its credential storage. Safe to call multiple times.
// Credentials are only deleted after the connection is closed.
func (c *Controller) Cleanup(ctx context.Context) {
	c.mu.Lock()
	if c.cleanedUp {
		c.mu.Unlock()
		return
	}
	c.cleanedUp = true
	conn := c.conn
	c.conn = nil
	c.state = core.StateExpired
	c.connectedAt = time.Time{}
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Logout(ctx); err != nil {
			c.logger.Warn("Logout failed", zap.Error(err))
		}
		if err := conn.Close(); err != nil {
			c.logger.Warn("Connection close failed", zap.Error(err))
		}
	}

	c.m.registry.Remove(c.tenantID)

	if err := c.m.credStore.Delete(c.tenantID); err != nil {
		c.logger.Warn("Credential cleanup failed", zap.Error(err))
	}

	c.m.collector.RemoveTenant(c.tenantID)
	c.logger.Info("Session cleaned up")
}

// Shutdown drops the connection without logging out or deleting
// credentials, so the session can resume on the next process start.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.cleanedUp = true
	conn := c.conn
	c.conn = nil
	c.connectedAt = time.Time{}
	if c.state != core.StateExpired {
		c.state = core.StateDisconnected
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Checkpoint refreshes the persisted snapshot. Used by the heartbeat
// to keep uptime current between inbound events.
func (c *Controller) Checkpoint(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == core.StateConnected {
		c.checkpointLocked(ctx)
	}
}

// Snapshot returns a point-in-time copy of the session's state.
func (c *Controller) Snapshot() core.SessionView {
	c.mu.Lock()
	defer c.mu.Unlock()

	view := core.SessionView{
		TenantID:     c.tenantID,
		State:        c.state,
		LastActivity: c.lastActivity,
		Metrics:      c.uptimeMetricsLocked(),
		Device:       c.device,
	}
	if !c.connectedAt.IsZero() {
		t := c.connectedAt
		view.ConnectedAt = &t
	}
	return view
}

func (c *Controller) uptimeMetricsLocked() core.Metrics {
	m := c.metrics
	if !c.connectedAt.IsZero() {
		m.UptimeSeconds = int64(time.Since(c.connectedAt).Seconds())
	} else {
		m.UptimeSeconds = 0
	}
	return m
}

// checkpointLocked upserts the durable snapshot. Always running under
// c.mu serializes writes per tenant: two checkpoints for the same
// tenant never interleave.
func (c *Controller) checkpointLocked(ctx context.Context) {
	m := c.uptimeMetricsLocked()
	c.metrics.UptimeSeconds = m.UptimeSeconds

	snap := &db.Snapshot{
		TenantID:     c.tenantID,
		IsConnected:  c.state == core.StateConnected,
		LastActivity: c.lastActivity,
		Metrics:      db.Metrics(m),
		DeviceInfo:   db.DeviceInfo(c.device),
	}
	if !c.connectedAt.IsZero() {
		t := c.connectedAt
		snap.ConnectionTime = &t
	}

	if err := c.m.store.UpsertSnapshot(ctx, snap); err != nil {
		c.m.collector.RecordCheckpointError(c.tenantID)
		c.logger.Warn("Checkpoint failed", zap.Error(err))
	}
}
