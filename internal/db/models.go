package db

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pedrogk/msgmux/internal/core"
)

// Snapshot is the durable record of a tenant session, upserted on every
// checkpoint. One row per tenant.
type Snapshot struct {
	TenantID       string     `json:"tenant_id" db:"tenant_id"`
	IsConnected    bool       `json:"is_connected" db:"is_connected"`
	ConnectionTime *time.Time `json:"connection_time,omitempty" db:"connection_time"`
	LastActivity   time.Time  `json:"last_activity" db:"last_activity"`
	Metrics        Metrics    `json:"metrics" db:"metrics"`
	DeviceInfo     DeviceInfo `json:"device_info" db:"device_info"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Custom types for PostgreSQL JSONB columns
type Metrics core.Metrics

func (m Metrics) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metrics) Scan(value interface{}) error {
	if value == nil {
		*m = Metrics{}
		return nil
	}
	return json.Unmarshal(value.([]byte), m)
}

type DeviceInfo core.DeviceInfo

func (d DeviceInfo) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *DeviceInfo) Scan(value interface{}) error {
	if value == nil {
		*d = DeviceInfo{}
		return nil
	}
	return json.Unmarshal(value.([]byte), d)
}
