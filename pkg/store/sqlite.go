package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arfa79/tailscale/pkg/model"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS exit_nodes(
	droplet_id   TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	public_ip    TEXT NOT NULL,
	tailscale_ip TEXT NOT NULL,
	region       TEXT NOT NULL,
	status       TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	last_checked TEXT NOT NULL
);`

// SQLiteStore keeps the fleet snapshot in a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load() ([]model.ExitNode, error) {
	rows, err := s.db.Query(`SELECT droplet_id, name, public_ip, tailscale_ip, region, status, created_at, last_checked FROM exit_nodes`)
	if err != nil {
		return nil, fmt.Errorf("sqlite load: %w", err)
	}
	defer rows.Close()

	var nodes []model.ExitNode
	for rows.Next() {
		var n model.ExitNode
		var status, createdAt, lastChecked string
		if err := rows.Scan(&n.DropletID, &n.Name, &n.PublicIP, &n.TailscaleIP, &n.Region, &status, &createdAt, &lastChecked); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		n.Status = model.Status(status)
		if n.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("sqlite parse created_at: %w", err)
		}
		if n.LastChecked, err = time.Parse(time.RFC3339Nano, lastChecked); err != nil {
			return nil, fmt.Errorf("sqlite parse last_checked: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// Save replaces the snapshot in one transaction.
func (s *SQLiteStore) Save(nodes []model.ExitNode) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM exit_nodes`); err != nil {
		return fmt.Errorf("sqlite clear: %w", err)
	}
	for _, n := range nodes {
		_, err := tx.Exec(
			`INSERT INTO exit_nodes(droplet_id, name, public_ip, tailscale_ip, region, status, created_at, last_checked) VALUES(?,?,?,?,?,?,?,?)`,
			n.DropletID, n.Name, n.PublicIP, n.TailscaleIP, n.Region, string(n.Status),
			n.CreatedAt.Format(time.RFC3339Nano), n.LastChecked.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("sqlite insert %s: %w", n.DropletID, err)
		}
	}
	return tx.Commit()
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
