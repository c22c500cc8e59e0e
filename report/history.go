package report

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// History は実行結果を SQLite に貯める
type History struct {
	conn *sqlx.DB
}

// Run は runs テーブルの1行。NaN は NULL で保存し、読むときに NaN に戻す。
type Run struct {
	ID        string    `db:"id"`
	Kind      string    `db:"kind"`
	CreatedAt time.Time `db:"created_at"`
	Method    string    `db:"method"`
	Status    string    `db:"status"`
	Converged bool      `db:"converged"`
	Objective float64   `db:"-"`

	NullObjective sql.NullFloat64 `db:"objective"`
}

// nullable: SQLite は NaN を NULL として束縛するので、こちらで明示する
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// OpenHistory は path の DB を開く（なければ作る）
func OpenHistory(path string) (*History, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	h := &History{conn: conn}
	if err := h.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return h, nil
}

func (h *History) Close() error {
	return h.conn.Close()
}

func (h *History) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		converged INTEGER NOT NULL,
		objective REAL
	);

	CREATE TABLE IF NOT EXISTS quantities (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		label TEXT NOT NULL,
		value REAL,
		unit TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS samples (
		run_id TEXT NOT NULL REFERENCES runs(id),
		table_name TEXT NOT NULL,
		row_idx INTEGER NOT NULL,
		col_name TEXT NOT NULL,
		value REAL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id, table_name);
	`
	_, err := h.conn.Exec(schema)
	return err
}

// Record は Report をまるごと1トランザクションで保存する
func (h *History) Record(ctx context.Context, r *Report) error {
	tx, err := h.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	converged := 0
	if r.Converged {
		converged = 1
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, kind, created_at, method, status, converged, objective)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Kind), r.CreatedAt.UTC(), r.Method, r.Status, converged, nullable(r.Objective),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	for i, q := range r.Summary {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO quantities (run_id, seq, label, value, unit) VALUES (?, ?, ?, ?, ?)",
			r.ID, i, q.Label, nullable(q.Value), q.Unit,
		)
		if err != nil {
			return fmt.Errorf("insert quantity %q: %w", q.Label, err)
		}
	}

	stmt, err := tx.PreparexContext(ctx,
		"INSERT INTO samples (run_id, table_name, row_idx, col_name, value) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, t := range r.Tables {
		for i, row := range t.Rows {
			for j, v := range row {
				if _, err := stmt.ExecContext(ctx, r.ID, t.Name, i, t.Columns[j], nullable(v)); err != nil {
					return fmt.Errorf("insert sample %s[%d]: %w", t.Name, i, err)
				}
			}
		}
	}

	return tx.Commit()
}

// Runs は新しい順に最大 limit 件
func (h *History) Runs(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := h.conn.SelectContext(ctx, &runs,
		"SELECT id, kind, created_at, method, status, converged, objective FROM runs ORDER BY created_at DESC LIMIT ?",
		limit,
	)
	for i := range runs {
		runs[i].Objective = orNaN(runs[i].NullObjective)
	}
	return runs, err
}

// Quantities は実行 id の設計値を保存順に返す
func (h *History) Quantities(ctx context.Context, id string) ([]Quantity, error) {
	var qs []Quantity
	rows, err := h.conn.QueryxContext(ctx,
		"SELECT label, value, unit FROM quantities WHERE run_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var q Quantity
		var v sql.NullFloat64
		if err := rows.Scan(&q.Label, &v, &q.Unit); err != nil {
			return nil, err
		}
		q.Value = orNaN(v)
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// Series は保存した表の1列を行順に返す
func (h *History) Series(ctx context.Context, id, table, column string) ([]float64, error) {
	var ns []sql.NullFloat64
	err := h.conn.SelectContext(ctx, &ns,
		"SELECT value FROM samples WHERE run_id = ? AND table_name = ? AND col_name = ? ORDER BY row_idx",
		id, table, column,
	)
	if err != nil {
		return nil, err
	}
	vs := make([]float64, len(ns))
	for i, n := range ns {
		vs[i] = orNaN(n)
	}
	return vs, nil
}
