package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

type AssetSnapshot struct {
	TS        int64   `json:"ts"`
	AssetID   string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	WinRate   float64 `json:"win_rate"`
	MarketCap float64 `json:"market_cap"`
	Volume    float64 `json:"volume"`
	Changed   bool    `json:"changed"`
	CreatedAt string  `json:"created_at"`
}

type RefreshRun struct {
	ID           int64  `json:"id"`
	TS           int64  `json:"ts"`
	OK           bool   `json:"ok"`
	Error        string `json:"error"`
	QuoteCount   int    `json:"quote_count"`
	ChangedCount int    `json:"changed_count"`
	CreatedAt    string `json:"created_at"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		path = "data/dashboard.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS asset_snapshot (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			asset_id TEXT NOT NULL,
			symbol TEXT,
			price REAL,
			change_pct REAL,
			win_rate REAL,
			market_cap REAL,
			volume REAL,
			changed INTEGER,
			created_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_asset_snapshot_ts ON asset_snapshot(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_asset_snapshot_asset ON asset_snapshot(asset_id);`,
		`CREATE TABLE IF NOT EXISTS refresh_run (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			ok INTEGER,
			error TEXT,
			quote_count INTEGER,
			changed_count INTEGER,
			created_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_run_ts ON refresh_run(ts);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// InsertAssetSnapshots writes one poll cycle in a single transaction.
func (s *Store) InsertAssetSnapshots(items []AssetSnapshot) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO asset_snapshot (ts, asset_id, symbol, price, change_pct, win_rate, market_cap, volume, changed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare asset snapshot: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Format(time.RFC3339)
	for _, it := range items {
		if it.CreatedAt == "" {
			it.CreatedAt = now
		}
		if _, err := stmt.Exec(it.TS, it.AssetID, it.Symbol, it.Price, it.ChangePct, it.WinRate, it.MarketCap, it.Volume, boolInt(it.Changed), it.CreatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert asset snapshot: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit asset snapshot: %w", err)
	}
	return nil
}

// QueryAssetSnapshots returns snapshots newest first. An empty assetID matches
// every asset.
func (s *Store) QueryAssetSnapshots(assetID string, limit int, offset int) ([]AssetSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	limit, offset = clampPage(limit, offset)
	rows, err := s.db.Query(
		`SELECT ts, asset_id, symbol, price, change_pct, win_rate, market_cap, volume, changed, created_at
		FROM asset_snapshot WHERE (? = '' OR asset_id = ?)
		ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?`,
		assetID, assetID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query asset snapshot: %w", err)
	}
	defer rows.Close()

	var out []AssetSnapshot
	for rows.Next() {
		var a AssetSnapshot
		var changed int
		if err := rows.Scan(&a.TS, &a.AssetID, &a.Symbol, &a.Price, &a.ChangePct, &a.WinRate, &a.MarketCap, &a.Volume, &changed, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan asset snapshot: %w", err)
		}
		a.Changed = changed == 1
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows asset snapshot: %w", err)
	}
	return out, nil
}

func (s *Store) InsertRefreshRun(r RefreshRun) error {
	if s == nil || s.db == nil {
		return nil
	}
	if r.CreatedAt == "" {
		r.CreatedAt = time.Now().Format(time.RFC3339)
	}
	_, err := s.db.Exec(
		`INSERT INTO refresh_run (ts, ok, error, quote_count, changed_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.TS, boolInt(r.OK), r.Error, r.QuoteCount, r.ChangedCount, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh run: %w", err)
	}
	return nil
}

func (s *Store) QueryRefreshRuns(limit int, offset int) ([]RefreshRun, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	limit, offset = clampPage(limit, offset)
	rows, err := s.db.Query(
		`SELECT id, ts, ok, error, quote_count, changed_count, created_at
		FROM refresh_run ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query refresh run: %w", err)
	}
	defer rows.Close()

	var out []RefreshRun
	for rows.Next() {
		var r RefreshRun
		var ok int
		if err := rows.Scan(&r.ID, &r.TS, &ok, &r.Error, &r.QuoteCount, &r.ChangedCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan refresh run: %w", err)
		}
		r.OK = ok == 1
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows refresh run: %w", err)
	}
	return out, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
