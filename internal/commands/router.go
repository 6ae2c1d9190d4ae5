// Package commands maps inbound text commands to handlers. The router
// is stateless apart from its handler table; everything a handler needs
// arrives through the Env.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pedrogk/msgmux/internal/core"
)

const marker = "!"

// Request is one parsed command invocation.
type Request struct {
	Command string
	Args    []string
	Sender  string
}

// Env carries the session state a handler may read plus the outbound
// send capability used by side-effecting commands.
type Env struct {
	TenantID     string
	Profile      core.Profile
	State        core.ConnectionState
	ConnectedAt  *time.Time
	LastActivity time.Time
	Metrics      core.Metrics
	Send         func(ctx context.Context, recipient, content string) error
}

// HandlerFunc produces the reply text for one command. An empty reply
// with a nil error means no-op (nothing is sent back).
type HandlerFunc func(ctx context.Context, req Request, env Env) (string, error)

type Router struct {
	handlers map[string]HandlerFunc
	fallback HandlerFunc
	logger   *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	r := &Router{
		handlers: make(map[string]HandlerFunc),
		fallback: handleUnknown,
		logger:   logger,
	}
	r.Register("ping", handlePing)
	r.Register("menu", handleMenu)
	r.Register("stats", handleStats)
	r.Register("broadcast", handleBroadcast)
	return r
}

func (r *Router) Register(command string, h HandlerFunc) {
	r.handlers[strings.ToLower(command)] = h
}

// Parse splits raw message text into a command request. Returns false
// when the text does not carry the command marker.
func Parse(text, sender string) (Request, bool) {
	if !strings.HasPrefix(text, marker) {
		return Request{}, false
	}
	fields := strings.Fields(strings.ToLower(strings.TrimPrefix(text, marker)))
	if len(fields) == 0 {
		return Request{}, false
	}
	return Request{Command: fields[0], Args: fields[1:], Sender: sender}, true
}

// Dispatch runs the handler for req.Command, falling back to the
// unknown-command reply when no handler is registered.
func (r *Router) Dispatch(ctx context.Context, req Request, env Env) (string, error) {
	h, ok := r.handlers[req.Command]
	if !ok {
		h = r.fallback
	}

	reply, err := h(ctx, req, env)
	if err != nil {
		r.logger.Warn("Command handler failed",
			zap.String("tenant_id", env.TenantID),
			zap.String("command", req.Command),
			zap.Error(err),
		)
		return "", err
	}
	return reply, nil
}

func uptimeMinutes(connectedAt *time.Time) int {
	if connectedAt == nil {
		return 0
	}
	return int(time.Since(*connectedAt).Minutes())
}

func handlePing(_ context.Context, _ Request, _ Env) (string, error) {
	return "🏓 Pong! Bot service active", nil
}

func handleMenu(_ context.Context, _ Request, env Env) (string, error) {
	return fmt.Sprintf(`🤖 *%s* 🤖

📊 *Statistics:*
• Messages sent: %d
• Commands executed: %d
• Uptime: %d minutes

🛠 *Commands:*
!ping - Liveness check
!menu - Show this menu
!stats - Detailed statistics
!broadcast - Fan-out send (admin)

👤 *User:* %s
📧 *Plan:* %s`,
		"MsgMux Bot",
		env.Metrics.MessagesSent,
		env.Metrics.CommandsExecuted,
		uptimeMinutes(env.ConnectedAt),
		env.Profile.Username,
		env.Profile.Plan,
	), nil
}

func handleStats(_ context.Context, _ Request, env Env) (string, error) {
	status := "🔴 Disconnected"
	if env.State == core.StateConnected {
		status = "🟢 Connected"
	}

	return fmt.Sprintf(`📊 *DETAILED STATISTICS*

👤 User: %s
🔗 Status: %s
⏰ Uptime: %d minutes

📨 Messages sent: %d
📩 Messages received: %d
⚡ Commands executed: %d

🕒 Last activity: %s`,
		env.Profile.Username,
		status,
		uptimeMinutes(env.ConnectedAt),
		env.Metrics.MessagesSent,
		env.Metrics.MessagesReceived,
		env.Metrics.CommandsExecuted,
		env.LastActivity.Format(time.Kitchen),
	), nil
}

// handleBroadcast fans one message out to a recipient list. Gated on
// the admin role; non-admin invocations are silently ignored.
func handleBroadcast(ctx context.Context, req Request, env Env) (string, error) {
	if !env.Profile.IsAdmin() {
		return "", nil
	}
	if len(req.Args) < 2 {
		return "Usage: !broadcast <recipient,recipient,...> <message>", nil
	}

	recipients := strings.Split(req.Args[0], ",")
	message := strings.Join(req.Args[1:], " ")

	sent := 0
	for _, recipient := range recipients {
		recipient = strings.TrimSpace(recipient)
		if recipient == "" {
			continue
		}
		if err := env.Send(ctx, recipient, message); err != nil {
			return "", fmt.Errorf("broadcast to %s: %w", recipient, err)
		}
		sent++
	}

	return fmt.Sprintf("📣 Broadcast delivered to %d recipients", sent), nil
}

func handleUnknown(_ context.Context, _ Request, _ Env) (string, error) {
	return "❌ Unknown command. Type !menu to see available commands.", nil
}
