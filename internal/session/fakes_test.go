package session_test

import (
	"context"
	"errors"
	"sync"

	"github.com/pedrogk/msgmux/internal/credentials"
	"github.com/pedrogk/msgmux/internal/db"
	"github.com/pedrogk/msgmux/internal/transport"
)

type sentMessage struct {
	Recipient string
	Content   string
}

type fakeConn struct {
	events chan transport.Event

	mu           sync.Mutex
	sent         []sentMessage
	failSends    int
	pairingCode  string
	pairingErr   error
	pairingCalls []string
	loggedOut    bool
	closed       bool
	closedEmit   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		events:      make(chan transport.Event, 16),
		pairingCode: "ABCD-1234",
	}
}

func (c *fakeConn) Events() <-chan transport.Event { return c.events }

func (c *fakeConn) Send(_ context.Context, recipient, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSends > 0 {
		c.failSends--
		return transport.ErrConnectionClosed
	}
	c.sent = append(c.sent, sentMessage{Recipient: recipient, Content: content})
	return nil
}

func (c *fakeConn) RequestPairingCode(_ context.Context, phoneNumber string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairingCalls = append(c.pairingCalls, phoneNumber)
	if c.pairingErr != nil {
		return "", c.pairingErr
	}
	return c.pairingCode, nil
}

func (c *fakeConn) Logout(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) emit(ev transport.Event) {
	c.events <- ev
}

func (c *fakeConn) emitClosed(code int) {
	c.mu.Lock()
	already := c.closedEmit
	c.closedEmit = true
	c.mu.Unlock()
	if already {
		return
	}
	c.events <- transport.Event{Kind: transport.EventClosed, Code: code}
	close(c.events)
}

func (c *fakeConn) sentMessages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

type fakeFactory struct {
	mu        sync.Mutex
	conns     []*fakeConn
	openErr   error
	failOpens int
}

func (f *fakeFactory) Open(context.Context, credentials.Handle) (transport.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOpens > 0 {
		f.failOpens--
		return nil, errors.New("gateway unreachable")
	}
	if f.openErr != nil {
		return nil, f.openErr
	}
	conn := newFakeConn()
	f.conns = append(f.conns, conn)
	return conn, nil
}

func (f *fakeFactory) opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeFactory) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		return nil
	}
	return f.conns[len(f.conns)-1]
}

type fakeCredStore struct {
	mu      sync.Mutex
	ensured map[string]bool
	deleted map[string]bool
	err     error
}

func newFakeCredStore() *fakeCredStore {
	return &fakeCredStore{
		ensured: make(map[string]bool),
		deleted: make(map[string]bool),
	}
}

func (s *fakeCredStore) Ensure(tenantID string) (credentials.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return credentials.Handle{}, s.err
	}
	s.ensured[tenantID] = true
	s.deleted[tenantID] = false
	return credentials.Handle{TenantID: tenantID, Dir: "/tmp/" + tenantID}, nil
}

func (s *fakeCredStore) Delete(tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[tenantID] = true
	return nil
}

func (s *fakeCredStore) isDeleted(tenantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleted[tenantID]
}

type fakeStore struct {
	mu        sync.Mutex
	snapshots []db.Snapshot
	err       error
}

func (s *fakeStore) UpsertSnapshot(_ context.Context, snap *db.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.snapshots = append(s.snapshots, *snap)
	return nil
}

func (s *fakeStore) last() (db.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return db.Snapshot{}, false
	}
	return s.snapshots[len(s.snapshots)-1], true
}

type publishedEvent struct {
	TenantID string
	Event    string
	Payload  map[string]interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(_ context.Context, tenantID, event string, payload map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{TenantID: tenantID, Event: event, Payload: payload})
}

func (p *fakePublisher) byName(event string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, ev := range p.events {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}
