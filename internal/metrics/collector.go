package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes process-level session metrics for scraping. The
// authoritative per-session counters live on each controller; these
// series mirror them for dashboards and alerting.
type Collector struct {
	messagesReceived *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	commandsExecuted *prometheus.CounterVec
	sessionConnected *prometheus.GaugeVec
	reconnectsTotal  *prometheus.CounterVec
	sessionsExpired  *prometheus.CounterVec
	checkpointErrors *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		messagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "msgmux_messages_received_total",
				Help: "Total number of inbound messages per tenant",
			},
			[]string{"tenant_id"},
		),

		messagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "msgmux_messages_sent_total",
				Help: "Total number of outbound messages per tenant",
			},
			[]string{"tenant_id"},
		),

		commandsExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "msgmux_commands_executed_total",
				Help: "Total number of commands dispatched per tenant",
			},
			[]string{"tenant_id", "command"},
		),

		sessionConnected: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "msgmux_session_connected",
				Help: "Whether the tenant session is connected (1) or not (0)",
			},
			[]string{"tenant_id"},
		),

		reconnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "msgmux_reconnects_total",
				Help: "Total number of reconnect attempts scheduled per tenant",
			},
			[]string{"tenant_id"},
		),

		sessionsExpired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "msgmux_sessions_expired_total",
				Help: "Total number of sessions terminated by credential invalidation",
			},
			[]string{"tenant_id"},
		),

		checkpointErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "msgmux_checkpoint_errors_total",
				Help: "Total number of failed snapshot checkpoints",
			},
			[]string{"tenant_id"},
		),

		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "msgmux_sessions_active",
				Help: "Number of live session controllers in the registry",
			},
		),
	}
}

func (c *Collector) RecordMessageReceived(tenantID string) {
	c.messagesReceived.WithLabelValues(tenantID).Inc()
}

func (c *Collector) RecordMessageSent(tenantID string) {
	c.messagesSent.WithLabelValues(tenantID).Inc()
}

func (c *Collector) RecordCommand(tenantID, command string) {
	c.commandsExecuted.WithLabelValues(tenantID, command).Inc()
}

func (c *Collector) SetConnected(tenantID string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	c.sessionConnected.WithLabelValues(tenantID).Set(v)
}

func (c *Collector) RecordReconnect(tenantID string) {
	c.reconnectsTotal.WithLabelValues(tenantID).Inc()
}

func (c *Collector) RecordExpired(tenantID string) {
	c.sessionsExpired.WithLabelValues(tenantID).Inc()
}

func (c *Collector) RecordCheckpointError(tenantID string) {
	c.checkpointErrors.WithLabelValues(tenantID).Inc()
}

func (c *Collector) SetActiveSessions(n int) {
	c.sessionsActive.Set(float64(n))
}

// RemoveTenant drops a cleaned-up tenant's labelled series so expired
// sessions do not linger in scrapes.
func (c *Collector) RemoveTenant(tenantID string) {
	labels := prometheus.Labels{"tenant_id": tenantID}
	c.messagesReceived.DeletePartialMatch(labels)
	c.messagesSent.DeletePartialMatch(labels)
	c.commandsExecuted.DeletePartialMatch(labels)
	c.sessionConnected.DeletePartialMatch(labels)
	c.reconnectsTotal.DeletePartialMatch(labels)
	c.sessionsExpired.DeletePartialMatch(labels)
	c.checkpointErrors.DeletePartialMatch(labels)
}
