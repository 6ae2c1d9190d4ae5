package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewConnection(databaseURL string, maxConns, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Ping() error {
	return r.db.Ping()
}

// Snapshot operations
func (r *Repository) UpsertSnapshot(ctx context.Context, s *Snapshot) error {
	s.UpdatedAt = time.Now()
	query := `
        INSERT INTO session_snapshots (
            tenant_id, is_connected, connection_time, last_activity,
            metrics, device_info, updated_at
        ) VALUES (
            :tenant_id, :is_connected, :connection_time, :last_activity,
            :metrics, :device_info, :updated_at
        ) ON CONFLICT (tenant_id) DO UPDATE SET
            is_connected = EXCLUDED.is_connected,
            connection_time = EXCLUDED.connection_time,
            last_activity = EXCLUDED.last_activity,
            metrics = EXCLUDED.metrics,
            device_info = EXCLUDED.device_info,
            updated_at = EXCLUDED.updated_at`

	_, err := r.db.NamedExecContext(ctx, query, s)
	if err != nil {
		return fmt.Errorf("upsert snapshot for %s: %w", s.TenantID, err)
	}
	return nil
}

func (r *Repository) GetSnapshot(ctx context.Context, tenantID string) (*Snapshot, error) {
	var s Snapshot
	query := `SELECT * FROM session_snapshots WHERE tenant_id = $1`
	err := r.db.GetContext(ctx, &s, query, tenantID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot not found for %s", tenantID)
	}
	return &s, err
}

func (r *Repository) DeleteSnapshot(ctx context.Context, tenantID string) error {
	query := `DELETE FROM session_snapshots WHERE tenant_id = $1`
	_, err := r.db.ExecContext(ctx, query, tenantID)
	return err
}

func (r *Repository) ListConnected(ctx context.Context) ([]*Snapshot, error) {
	snapshots := []*Snapshot{}
	query := `
        SELECT * FROM session_snapshots
        WHERE is_connected = true
        ORDER BY last_activity DESC`

	err := r.db.SelectContext(ctx, &snapshots, query)
	return snapshots, err
}
