package commands_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pedrogk/msgmux/internal/commands"
	"github.com/pedrogk/msgmux/internal/core"
)

type sendRecorder struct {
	mu   sync.Mutex
	sent map[string]string
	err  error
}

func (r *sendRecorder) send(_ context.Context, recipient, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.sent == nil {
		r.sent = make(map[string]string)
	}
	r.sent[recipient] = content
	return nil
}

func testEnv(profile core.Profile) (commands.Env, *sendRecorder) {
	rec := &sendRecorder{}
	return commands.Env{
		TenantID:     "u1",
		Profile:      profile,
		State:        core.StateConnected,
		LastActivity: time.Now(),
		Metrics:      core.Metrics{MessagesSent: 3, MessagesReceived: 7, CommandsExecuted: 5},
		Send:         rec.send,
	}, rec
}

func memberProfile() core.Profile {
	return core.Profile{Username: "alice", Plan: core.PlanStarter, Role: core.RoleMember}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    commands.Request
		wantOK  bool
	}{
		{
			name:   "simple command",
			text:   "!ping",
			want:   commands.Request{Command: "ping", Args: []string{}, Sender: "s"},
			wantOK: true,
		},
		{
			name:   "case folded with args",
			text:   "!Broadcast A,B Hello",
			want:   commands.Request{Command: "broadcast", Args: []string{"a,b", "hello"}, Sender: "s"},
			wantOK: true,
		},
		{
			name:   "no marker",
			text:   "hello there",
			wantOK: false,
		},
		{
			name:   "marker only",
			text:   "!",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok := commands.Parse(tt.text, "s")
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.want.Command, req.Command)
			assert.ElementsMatch(t, tt.want.Args, req.Args)
			assert.Equal(t, tt.want.Sender, req.Sender)
		})
	}
}

func TestPingReply(t *testing.T) {
	router := commands.NewRouter(zap.NewNop())
	env, _ := testEnv(memberProfile())

	reply, err := router.Dispatch(context.Background(), commands.Request{Command: "ping"}, env)
	require.NoError(t, err)
	assert.Equal(t, "🏓 Pong! Bot service active", reply)
}

func TestMenuReportsUptimeAndProfile(t *testing.T) {
	router := commands.NewRouter(zap.NewNop())
	env, _ := testEnv(memberProfile())
	connectedAt := time.Now().Add(-2 * time.Minute)
	env.ConnectedAt = &connectedAt

	reply, err := router.Dispatch(context.Background(), commands.Request{Command: "menu"}, env)
	require.NoError(t, err)
	assert.Contains(t, reply, "Uptime: 2 minutes")
	assert.Contains(t, reply, "alice")
	assert.Contains(t, reply, "starter")
	assert.Contains(t, reply, "Messages sent: 3")
}

func TestStatsReportsCounters(t *testing.T) {
	router := commands.NewRouter(zap.NewNop())
	env, _ := testEnv(memberProfile())

	reply, err := router.Dispatch(context.Background(), commands.Request{Command: "stats"}, env)
	require.NoError(t, err)
	assert.Contains(t, reply, "🟢 Connected")
	assert.Contains(t, reply, "Messages sent: 3")
	assert.Contains(t, reply, "Messages received: 7")
	assert.Contains(t, reply, "Commands executed: 5")
}

func TestStatsWhileDisconnected(t *testing.T) {
	router := commands.NewRouter(zap.NewNop())
	env, _ := testEnv(memberProfile())
	env.State = core.StateDisconnected
	env.ConnectedAt = nil

	reply, err := router.Dispatch(context.Background(), commands.Request{Command: "stats"}, env)
	require.NoError(t, err)
	assert.Contains(t, reply, "🔴 Disconnected")
	assert.Contains(t, reply, "Uptime: 0 minutes")
}

func TestBroadcastSilentlyIgnoredForMembers(t *testing.T) {
	router := commands.NewRouter(zap.NewNop())
	env, rec := testEnv(memberProfile())

	reply, err := router.Dispatch(context.Background(),
		commands.Request{Command: "broadcast", Args: []string{"a,b", "hi"}}, env)
	require.NoError(t, err)
	assert.Empty(t, reply)
	assert.Empty(t, rec.sent)
}

func TestBroadcastFansOutForAdmins(t *testing.T) {
	router := commands.NewRouter(zap.NewNop())
	profile := memberProfile()
	profile.Role = core.RoleAdmin
	env, rec := testEnv(profile)

	reply, err := router.Dispatch(context.Background(),
		commands.Request{Command: "broadcast", Args: []string{"a,b", "hi", "all"}}, env)
	require.NoError(t, err)
	assert.Contains(t, reply, "2 recipients")
	assert.Equal(t, "hi all", rec.sent["a"])
	assert.Equal(t, "hi all", rec.sent["b"])
}

func TestBroadcastSendFailureSurfacesError(t *testing.T) {
	router := commands.NewRouter(zap.NewNop())
	profile := memberProfile()
	profile.Role = core.RoleAdmin
	env, rec := testEnv(profile)
	rec.err = errors.New("network down")

	_, err := router.Dispatch(context.Background(),
		commands.Request{Command: "broadcast", Args: []string{"a", "hi"}}, env)
	require.Error(t, err)
}

func TestUnknownCommandFallback(t *testing.T) {
	router := commands.NewRouter(zap.NewNop())
	env, _ := testEnv(memberProfile())

	reply, err := router.Dispatch(context.Background(), commands.Request{Command: "frobnicate"}, env)
	require.NoError(t, err)
	assert.Contains(t, reply, "Unknown command")
	assert.Contains(t, reply, "!menu")
}
