package core

import "time"

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateAwaitingQR   ConnectionState = "awaiting_qr"
	StateConnected    ConnectionState = "connected"
	StateExpired      ConnectionState = "expired"
)

// Metrics are the per-session counters. All counters are monotonic
// except UptimeSeconds, which is recomputed from the connection time.
type Metrics struct {
	MessagesSent     int64 `json:"messages_sent"`
	MessagesReceived int64 `json:"messages_received"`
	CommandsExecuted int64 `json:"commands_executed"`
	UptimeSeconds    int64 `json:"uptime"`
}

// DeviceInfo describes the remote device a connection is paired with.
type DeviceInfo struct {
	Platform string `json:"platform,omitempty"`
	Browser  string `json:"browser,omitempty"`
	Version  string `json:"version,omitempty"`
}

// SessionView is a point-in-time copy of a session's observable state.
type SessionView struct {
	TenantID     string          `json:"tenant_id"`
	State        ConnectionState `json:"connection_state"`
	ConnectedAt  *time.Time      `json:"connected_at,omitempty"`
	LastActivity time.Time       `json:"last_activity"`
	Metrics      Metrics         `json:"metrics"`
	Device       DeviceInfo      `json:"device_info"`
}
