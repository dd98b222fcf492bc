package progress

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"codedojo/internal/outcome"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the snapshot in three tables. Save rewrites every row
// inside one transaction so a crash leaves the previous snapshot intact.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS progress_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS unit_progress (
			unit_id TEXT PRIMARY KEY,
			last_seq INTEGER NOT NULL DEFAULT 0,
			last_run_ts TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS test_progress (
			unit_id TEXT NOT NULL,
			test_name TEXT NOT NULL,
			outcome TEXT NOT NULL DEFAULT 'not_run',
			message TEXT NOT NULL DEFAULT '',
			hints INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY(unit_id, test_name)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, *Warning) {
	if err := s.EnsureSchema(ctx); err != nil {
		return NewSnapshot(), &Warning{Kind: WarnCorrupt, Path: s.path, Err: err}
	}
	meta, err := s.loadMeta(ctx)
	if err != nil {
		return NewSnapshot(), &Warning{Kind: WarnCorrupt, Path: s.path, Err: err}
	}
	rawVersion, ok := meta["format_version"]
	if !ok {
		return NewSnapshot(), &Warning{Kind: WarnMissing, Path: s.path}
	}
	version, err := strconv.Atoi(rawVersion)
	if err != nil {
		return NewSnapshot(), &Warning{Kind: WarnCorrupt, Path: s.path, Err: fmt.Errorf("format_version %q: %w", rawVersion, err)}
	}
	if version != FormatVersion {
		return NewSnapshot(), &Warning{Kind: WarnVersionMismatch, Path: s.path, Err: fmt.Errorf("found version %d, want %d", version, FormatVersion)}
	}

	snap := NewSnapshot()
	snap.Resume = Resume{UnitID: meta["resume_unit"], TestName: meta["resume_test"]}
	if err := s.loadUnits(ctx, &snap); err != nil {
		return NewSnapshot(), &Warning{Kind: WarnCorrupt, Path: s.path, Err: err}
	}
	if err := s.loadTests(ctx, &snap); err != nil {
		return NewSnapshot(), &Warning{Kind: WarnCorrupt, Path: s.path, Err: err}
	}
	snap.normalize()
	return snap, nil
}

func (s *SQLiteStore) loadMeta(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM progress_meta`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) loadUnits(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT unit_id, last_seq, last_run_ts FROM unit_progress`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			unitID  string
			lastSeq int64
			lastRun string
			runTS   time.Time
		)
		if err := rows.Scan(&unitID, &lastSeq, &lastRun); err != nil {
			return err
		}
		if t, err := time.Parse(timeLayout, lastRun); err == nil {
			runTS = t.UTC()
		}
		snap.SetRun(unitID, uint64(lastSeq), runTS)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadTests(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT unit_id, test_name, outcome, message, hints FROM test_progress`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			unitID, name, kind, message string
			hints                       int
		)
		if err := rows.Scan(&unitID, &name, &kind, &message, &hints); err != nil {
			return err
		}
		k, err := outcome.ParseKind(kind)
		if err != nil {
			return err
		}
		snap.SetTest(unitID, name, TestProgress{Outcome: outcome.Outcome{Kind: k, Message: message}, Hints: hints})
	}
	return rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) (err error) {
	if err = s.EnsureSchema(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM test_progress`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM unit_progress`); err != nil {
		return err
	}
	for unitID, up := range snap.Units {
		runTS := ""
		if !up.LastRun.IsZero() {
			runTS = up.LastRun.UTC().Format(timeLayout)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO unit_progress(unit_id, last_seq, last_run_ts) VALUES(?, ?, ?)`,
			unitID, int64(up.LastSeq), runTS,
		); err != nil {
			return err
		}
		for name, tp := range up.Tests {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO test_progress(unit_id, test_name, outcome, message, hints) VALUES(?, ?, ?, ?, ?)`,
				unitID, name, tp.Outcome.Kind.String(), tp.Outcome.Message, tp.Hints,
			); err != nil {
				return err
			}
		}
	}
	meta := map[string]string{
		"format_version": strconv.Itoa(snap.Version),
		"resume_unit":    snap.Resume.UnitID,
		"resume_test":    snap.Resume.TestName,
	}
	for k, v := range meta {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO progress_meta(key, value) VALUES(?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, k, v); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
