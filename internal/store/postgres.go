package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	infraconfig "github.com/jonesrussell/seoscan/infrastructure/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

const pingTimeout = 5 * time.Second

// OpenPostgres connects with the pool settings from cfg and pings.
func OpenPostgres(ctx context.Context, cfg infraconfig.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// PostgresBackend stores scans and snapshots as JSONB rows.
type PostgresBackend struct {
	db *sqlx.DB
}

// NewPostgresBackend wraps db.
func NewPostgresBackend(db *sqlx.DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (p *PostgresBackend) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		body, readErr := migrations.ReadFile(name)
		if readErr != nil {
			return fmt.Errorf("read migration %s: %w", name, readErr)
		}
		if _, execErr := p.db.ExecContext(ctx, string(body)); execErr != nil {
			return fmt.Errorf("apply migration %s: %w", name, execErr)
		}
	}
	return nil
}

func (p *PostgresBackend) GetScan(ctx context.Context, id string) (*Scan, error) {
	var raw []byte
	err := p.db.GetContext(ctx, &raw, `SELECT data FROM scans WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select scan %s: %w", id, err)
	}

	var scan Scan
	if err = json.Unmarshal(raw, &scan); err != nil {
		return nil, fmt.Errorf("decode scan %s: %w", id, err)
	}
	return &scan, nil
}

func (p *PostgresBackend) PutScan(ctx context.Context, scan *Scan) error {
	raw, err := json.Marshal(scan)
	if err != nil {
		return fmt.Errorf("encode scan %s: %w", scan.ID, err)
	}

	query := `
		INSERT INTO scans (id, hostname, status, created_at, updated_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at, data = EXCLUDED.data
	`
	_, err = p.db.ExecContext(ctx, query,
		scan.ID, scan.Hostname, string(scan.Status), scan.CreatedAt, scan.UpdatedAt, raw)
	if err != nil {
		return fmt.Errorf("upsert scan %s: %w", scan.ID, err)
	}
	return nil
}

func (p *PostgresBackend) GetSnapshot(ctx context.Context, key Key) (*Snapshot, error) {
	var raw []byte
	query := `
		SELECT data FROM opportunity_snapshots
		WHERE hostname = $1 AND mode = $2 AND allow_subdomains = $3
	`
	err := p.db.GetContext(ctx, &raw, query, key.Hostname, string(key.Mode), key.AllowSubdomains)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot %s: %w", key, err)
	}

	var snap Snapshot
	if err = json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return &snap, nil
}

func (p *PostgresBackend) PutSnapshot(ctx context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	query := `
		INSERT INTO opportunity_snapshots (hostname, mode, allow_subdomains, scan_id, updated_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (hostname, mode, allow_subdomains) DO UPDATE
		SET scan_id = EXCLUDED.scan_id, updated_at = EXCLUDED.updated_at, data = EXCLUDED.data
	`
	_, err = p.db.ExecContext(ctx, query,
		snap.Hostname, string(snap.Mode), snap.AllowSubdomains, snap.ScanID, snap.UpdatedAt, raw)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", snap.Key(), err)
	}
	return nil
}

func (p *PostgresBackend) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	snaps, err := p.db.ExecContext(ctx, `DELETE FROM opportunity_snapshots WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep snapshots: %w", err)
	}
	scans, err := p.db.ExecContext(ctx,
		`DELETE FROM scans WHERE updated_at < $1 AND status IN ('complete', 'failed')`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep scans: %w", err)
	}

	removedSnaps, _ := snaps.RowsAffected()
	removedScans, _ := scans.RowsAffected()
	return int(removedSnaps + removedScans), nil
}

func (p *PostgresBackend) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
