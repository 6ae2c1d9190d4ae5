package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pedrogk/msgmux/internal/core"
	"github.com/pedrogk/msgmux/internal/credentials"
)

const (
	wsBufferSize     = 32 * 1024
	maxWSMessageSize = 1024 * 1024
	eventBuffer      = 64
)

// frame is the JSON envelope the gateway speaks on the websocket.
type frame struct {
	Type        string           `json:"type"`
	QR          string           `json:"qr,omitempty"`
	Code        int              `json:"code,omitempty"`
	Device      *core.DeviceInfo `json:"device,omitempty"`
	Message     *Message         `json:"message,omitempty"`
	RequestID   string           `json:"request_id,omitempty"`
	PhoneNumber string           `json:"phone_number,omitempty"`
	PairingCode string           `json:"pairing_code,omitempty"`
	Recipient   string           `json:"recipient,omitempty"`
	Content     string           `json:"content,omitempty"`
	Token       string           `json:"token,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// WSFactory opens websocket connections to the messaging gateway.
type WSFactory struct {
	gatewayURL       string
	handshakeTimeout time.Duration
	logger           *zap.Logger
}

func NewWSFactory(gatewayURL string, handshakeTimeout time.Duration, logger *zap.Logger) *WSFactory {
	return &WSFactory{
		gatewayURL:       gatewayURL,
		handshakeTimeout: handshakeTimeout,
		logger:           logger,
	}
}

func (f *WSFactory) Open(ctx context.Context, creds credentials.Handle) (Connection, error) {
	token, err := creds.Token()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := &websocket.Dialer{
		ReadBufferSize:   wsBufferSize,
		WriteBufferSize:  wsBufferSize,
		HandshakeTimeout: f.handshakeTimeout,
	}

	wsURL := fmt.Sprintf("%s/v1/connect?tenant_id=%s",
		strings.TrimRight(f.gatewayURL, "/"), url.QueryEscape(creds.TenantID))

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("gateway returned %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial gateway: %w", err)
	}
	conn.SetReadLimit(maxWSMessageSize)

	c := &wsConnection{
		conn:    conn,
		creds:   creds,
		events:  make(chan Event, eventBuffer),
		done:    make(chan struct{}),
		pending: make(map[string]chan frame),
		logger:  f.logger.With(zap.String("tenant_id", creds.TenantID)),
	}
	go c.readLoop()

	return c, nil
}

type wsConnection struct {
	conn   *websocket.Conn
	creds  credentials.Handle
	events chan Event
	done   chan struct{}
	logger *zap.Logger

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan frame

	closeOnce sync.Once
}

func (c *wsConnection) Events() <-chan Event { return c.events }

func (c *wsConnection) readLoop() {
	defer func() {
		c.pendingMu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
		close(c.done)
		close(c.events)
	}()

	sawClose := false
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if !sawClose {
				code := 0
				if ce, ok := err.(*websocket.CloseError); ok {
					code = ce.Code
				}
				c.events <- Event{Kind: EventClosed, Code: code}
			}
			return
		}

		switch f.Type {
		case "qr":
			c.events <- Event{Kind: EventQR, QR: f.QR}
		case "open":
			ev := Event{Kind: EventOpened}
			if f.Device != nil {
				ev.Device = *f.Device
			}
			c.events <- ev
		case "close":
			// The gateway announces the reason before dropping the
			// socket; the subsequent read error is not re-reported.
			sawClose = true
			c.events <- Event{Kind: EventClosed, Code: f.Code}
		case "message":
			if f.Message != nil {
				c.events <- Event{Kind: EventMessage, Message: f.Message}
			}
		case "creds":
			if err := c.creds.SaveToken(f.Token); err != nil {
				c.logger.Warn("Failed to persist refreshed credentials", zap.Error(err))
			}
		case "pairing_code":
			c.pendingMu.Lock()
			if ch, ok := c.pending[f.RequestID]; ok {
				ch <- f
				delete(c.pending, f.RequestID)
			}
			c.pendingMu.Unlock()
		default:
			c.logger.Debug("Ignoring unknown frame", zap.String("frame_type", f.Type))
		}
	}
}

func (c *wsConnection) write(ctx context.Context, f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return c.conn.WriteJSON(f)
}

func (c *wsConnection) Send(ctx context.Context, recipient, content string) error {
	err := c.write(ctx, frame{Type: "send", Recipient: recipient, Content: content})
	if err != nil {
		return fmt.Errorf("send to %s: %w", recipient, err)
	}
	return nil
}

func (c *wsConnection) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	id := uuid.New().String()
	ch := make(chan frame, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := c.write(ctx, frame{Type: "pair", RequestID: id, PhoneNumber: phoneNumber}); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return "", fmt.Errorf("request pairing code: %w", err)
	}

	select {
	case f, ok := <-ch:
		if !ok {
			return "", ErrConnectionClosed
		}
		if f.Error != "" {
			return "", fmt.Errorf("pairing rejected: %s", f.Error)
		}
		return f.PairingCode, nil
	case <-c.done:
		return "", ErrConnectionClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *wsConnection) Logout(ctx context.Context) error {
	return c.write(ctx, frame{Type: "logout"})
}

func (c *wsConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}
