// Package catalogdb persists catalog indexes and run records in
// SQLite, so repeat runs over the same directory skip the probe scan
// and every engine run leaves an auditable row behind.
package catalogdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/lascatalog/internal/catalog"
	"github.com/banshee-data/lascatalog/internal/geom"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS catalog_entries (
			catalog           TEXT NOT NULL,
			seq               INTEGER NOT NULL,
			path              TEXT NOT NULL,
			min_x             DOUBLE NOT NULL,
			min_y             DOUBLE NOT NULL,
			max_x             DOUBLE NOT NULL,
			max_y             DOUBLE NOT NULL,
			points            BIGINT NOT NULL,
			PRIMARY KEY (catalog, seq)
		);
		CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			catalog           TEXT NOT NULL,
			func_name         TEXT NOT NULL,
			resolution        DOUBLE NOT NULL,
			buffer            DOUBLE NOT NULL,
			tile_count        INTEGER NOT NULL,
			failed_tiles      TEXT,
			status            TEXT NOT NULL,
			started_at        TIMESTAMP NOT NULL,
			completed_at      TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{db}, nil
}

// SaveCatalog stores the entries under a catalog name, replacing any
// previous index with that name.
func (d *DB) SaveCatalog(name string, entries []catalog.Entry) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM catalog_entries WHERE catalog = ?`, name); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO catalog_entries (catalog, seq, path, min_x, min_y, max_x, max_y, points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, e := range entries {
		if _, err := stmt.Exec(name, i, e.Path,
			e.Bounds.MinX, e.Bounds.MinY, e.Bounds.MaxX, e.Bounds.MaxY, e.Points); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadCatalog rebuilds a saved catalog index in its original entry
// order. A missing name returns an error.
func (d *DB) LoadCatalog(name string) (*catalog.Catalog, error) {
	rows, err := d.Query(`
		SELECT path, min_x, min_y, max_x, max_y, points
		FROM catalog_entries WHERE catalog = ? ORDER BY seq`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		var e catalog.Entry
		var b geom.BBox
		if err := rows.Scan(&e.Path, &b.MinX, &b.MinY, &b.MaxX, &b.MaxY, &e.Points); err != nil {
			return nil, err
		}
		e.Bounds = b
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog %q not found", name)
	}
	return catalog.New(entries)
}

// Run statuses, mirrored into the runs table.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
	RunStatusAborted  = "aborted"
)

// Run is one engine invocation's record.
type Run struct {
	ID          string
	Catalog     string
	FuncName    string
	Resolution  float64
	Buffer      float64
	TileCount   int
	FailedTiles []int
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// InsertRun records a newly started run.
func (d *DB) InsertRun(r *Run) error {
	_, err := d.Exec(`
		INSERT INTO runs (run_id, catalog, func_name, resolution, buffer, tile_count, failed_tiles, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		r.ID, r.Catalog, r.FuncName, r.Resolution, r.Buffer, r.TileCount, r.Status, r.StartedAt)
	return err
}

// FinishRun marks a run's terminal status and failed tile indexes.
func (d *DB) FinishRun(id, status string, failed []int) error {
	var failedJSON *string
	if len(failed) > 0 {
		data, err := json.Marshal(failed)
		if err != nil {
			return err
		}
		s := string(data)
		failedJSON = &s
	}
	res, err := d.Exec(`
		UPDATE runs SET status = ?, failed_tiles = ?, completed_at = ? WHERE run_id = ?`,
		status, failedJSON, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %q not found", id)
	}
	return nil
}

// GetRun loads one run record by id.
func (d *DB) GetRun(id string) (*Run, error) {
	row := d.QueryRow(`
		SELECT run_id, catalog, func_name, resolution, buffer, tile_count, failed_tiles, status, started_at, completed_at
		FROM runs WHERE run_id = ?`, id)
	var r Run
	var failedJSON sql.NullString
	var completed sql.NullTime
	err := row.Scan(&r.ID, &r.Catalog, &r.FuncName, &r.Resolution, &r.Buffer,
		&r.TileCount, &failedJSON, &r.Status, &r.StartedAt, &completed)
	if err != nil {
		return nil, err
	}
	if failedJSON.Valid {
		if err := json.Unmarshal([]byte(failedJSON.String), &r.FailedTiles); err != nil {
			return nil, fmt.Errorf("run %q: bad failed_tiles: %w", id, err)
		}
	}
	if completed.Valid {
		r.CompletedAt = &completed.Time
	}
	return &r, nil
}
