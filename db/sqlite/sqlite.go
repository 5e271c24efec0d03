package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/fixkme/robustimer/timer"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5000

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options 表名和列名都可以配置, 兼容已有的表
type Options struct {
	Path             string `json:"path" yaml:"path"`
	Table            string `json:"table" yaml:"table"`                             // 默认timers
	NameColumn       string `json:"name_column" yaml:"name_column"`                 // 默认name, 需要唯一约束
	LastFireAtColumn string `json:"last_fire_at_column" yaml:"last_fire_at_column"` // 默认last_fire_at, 毫秒
	IsOnceColumn     string `json:"is_once_column" yaml:"is_once_column"`           // 默认is_once
	ActiveColumn     string `json:"active_column" yaml:"active_column"`             // 默认active
	BusyTimeout      int    `json:"busy_timeout" yaml:"busy_timeout"`               // 毫秒
	SkipMigrate      bool   `json:"skip_migrate" yaml:"skip_migrate"`               // 表由外部维护
}

func (o *Options) defaults() {
	if o.Table == "" {
		o.Table = "timers"
	}
	if o.NameColumn == "" {
		o.NameColumn = "name"
	}
	if o.LastFireAtColumn == "" {
		o.LastFireAtColumn = "last_fire_at"
	}
	if o.IsOnceColumn == "" {
		o.IsOnceColumn = "is_once"
	}
	if o.ActiveColumn == "" {
		o.ActiveColumn = "active"
	}
	if o.BusyTimeout == 0 {
		o.BusyTimeout = defaultBusyTimeout
	}
}

func (o *Options) validate() error {
	if o.Path == "" {
		return fmt.Errorf("sqlite: path is required")
	}
	for _, id := range []string{o.Table, o.NameColumn, o.LastFireAtColumn, o.IsOnceColumn, o.ActiveColumn} {
		if !identRe.MatchString(id) {
			return fmt.Errorf("sqlite: invalid identifier %q", id)
		}
	}
	if o.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", o.BusyTimeout)
	}
	return nil
}

type Adapter struct {
	db        *sql.DB
	upsertSQL string
	selectSQL string
}

// Open 打开数据库并建表, 调用方负责Close
func Open(opt Options) (*Adapter, error) {
	opt.defaults()
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(opt.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", opt.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", opt.Path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.TODO()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", opt.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}
	if !opt.SkipMigrate {
		if err := migrate(ctx, db, &opt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	t, n, l, o, a := quote(opt.Table), quote(opt.NameColumn), quote(opt.LastFireAtColumn), quote(opt.IsOnceColumn), quote(opt.ActiveColumn)
	return &Adapter{
		db: db,
		upsertSQL: fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s) VALUES (?, ?, ?, ?)
			ON CONFLICT(%s) DO UPDATE SET %s = excluded.%s, %s = excluded.%s, %s = excluded.%s`,
			t, n, l, o, a, n, l, l, o, o, a, a),
		selectSQL: fmt.Sprintf(`SELECT %s, %s, %s, %s FROM %s`, n, l, o, a, t),
	}, nil
}

func migrate(ctx context.Context, db *sql.DB, opt *Options) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s TEXT    PRIMARY KEY,
		%s INTEGER NULL,
		%s INTEGER NOT NULL DEFAULT 0,
		%s INTEGER NOT NULL DEFAULT 1
	)`, quote(opt.Table), quote(opt.NameColumn), quote(opt.LastFireAtColumn), quote(opt.IsOnceColumn), quote(opt.ActiveColumn))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
	}
	return nil
}

func quote(id string) string {
	return `"` + id + `"`
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

// Save 一个事务内逐条upsert
func (a *Adapter) Save(ctx context.Context, snap timer.Snapshot) (err error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, a.upsertSQL)
	if err != nil {
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, st := range snap.Timers() {
		var last sql.NullInt64
		if st.LastFireAt != 0 {
			last = sql.NullInt64{Int64: st.LastFireAt, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, st.Name, last, boolInt(st.IsOnce), boolInt(st.Active)); err != nil {
			return fmt.Errorf("sqlite: upsert %s: %w", st.Name, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (a *Adapter) Restore(ctx context.Context, snap timer.Snapshot) error {
	rows, err := a.db.QueryContext(ctx, a.selectSQL)
	if err != nil {
		return fmt.Errorf("sqlite: select: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			st     timer.State
			last   sql.NullInt64
			isOnce int64
			active int64
		)
		if err := rows.Scan(&st.Name, &last, &isOnce, &active); err != nil {
			return fmt.Errorf("sqlite: scan: %w", err)
		}
		st.LastFireAt = last.Int64
		st.IsOnce = isOnce != 0
		st.Active = active != 0
		snap.Update(st)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: rows: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
