// Package report は最適化結果（表と数値の一覧）を保持し、
// コンソール・CSV・xlsx・PNG・SQLite に書き出す。
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Table は列ごとに並んだ数値の表。1 列目が横軸（z [m]）、残りがデータ系列。
type Table struct {
	Name    string // ファイル名（拡張子なし）
	Title   string
	XLabel  string
	YLabel  string
	Columns []string
	Rows    [][]float64
}

// NewTable は列ベクトルを横に並べて表にする。列の長さは揃っていること。
func NewTable(name, title, xlabel, ylabel string, columns []string, cols ...[]float64) Table {
	if len(columns) != len(cols) {
		panic(fmt.Sprintf("report: %d column names for %d columns", len(columns), len(cols)))
	}
	t := Table{Name: name, Title: title, XLabel: xlabel, YLabel: ylabel, Columns: columns}
	if len(cols) == 0 {
		return t
	}
	n := len(cols[0])
	for _, c := range cols {
		if len(c) != n {
			panic("report: columns differ in length")
		}
	}
	t.Rows = make([][]float64, n)
	for i := range t.Rows {
		row := make([]float64, len(cols))
		for j, c := range cols {
			row[j] = c[i]
		}
		t.Rows[i] = row
	}
	return t
}

// Column は j 列目を取り出す
func (t Table) Column(j int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out
}

// Quantity は設計値1個
type Quantity struct {
	Label string
	Value float64
	Unit  string
}

func (q Quantity) String() string {
	s := q.Label + " = " + strconv.FormatFloat(q.Value, 'g', -1, 64)
	if q.Unit != "" {
		s += " " + q.Unit
	}
	return s
}

// Kind は最適化の種類
type Kind string

const (
	Current  Kind = "current"
	Turns    Kind = "turns"
	Solenoid Kind = "solenoid" // 合成磁場の確認用（最適化なし）
)

// Report は1回の実行結果
type Report struct {
	ID        string
	Kind      Kind
	CreatedAt time.Time
	Method    string
	Status    string
	Converged bool
	Objective float64

	Summary []Quantity
	Tables  []Table
}

// New は実行 ID（UUID）付きの空の Report
func New(kind Kind) *Report {
	return &Report{
		ID:        uuid.NewString(),
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// Add は設計値を1行追加する（順序は保つ）
func (r *Report) Add(label string, value float64, unit string) {
	r.Summary = append(r.Summary, Quantity{Label: label, Value: value, Unit: unit})
}

func (r *Report) AddTable(t Table) {
	r.Tables = append(r.Tables, t)
}

// Table は名前で表を探す
func (r *Report) Table(name string) (Table, bool) {
	for _, t := range r.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Quantity はラベルで設計値を探す
func (r *Report) Quantity(label string) (Quantity, bool) {
	for _, q := range r.Summary {
		if q.Label == label {
			return q, true
		}
	}
	return Quantity{}, false
}

// SummaryName は設計値テキストのファイル名（拡張子なし）
func (r *Report) SummaryName() string {
	switch r.Kind {
	case Current:
		return "design_parameters_for_currents"
	case Solenoid:
		return "solenoid_parameters"
	}
	return "design_parameters_for_turns"
}

// Options は書き出し先。空・false のものは書かない。
type Options struct {
	Dir   string // 出力ディレクトリ（"" ならカレント）
	CSV   bool   // 表ごとの CSV と設計値テキスト
	Comma rune   // CSV の区切り文字（0 なら ','）
	XLSX  string // xlsx のファイル名
	PNG   bool   // 表ごとのグラフ
}

// Write は Options に従ってファイルを書き、書いたパスを返す
func Write(r *Report, o Options) ([]string, error) {
	if o.Dir != "" {
		if err := os.MkdirAll(o.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("output dir: %w", err)
		}
	}
	var paths []string
	if o.CSV {
		for _, t := range r.Tables {
			p := filepath.Join(o.Dir, t.Name+".csv")
			if err := SaveTableCSV(p, t, o.Comma); err != nil {
				return paths, err
			}
			paths = append(paths, p)
		}
		p := filepath.Join(o.Dir, r.SummaryName()+".txt")
		if err := SaveSummaryText(p, r); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	if o.XLSX != "" {
		p := filepath.Join(o.Dir, o.XLSX)
		if err := SaveToXLSX(p, r); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}
	if o.PNG {
		for _, t := range r.Tables {
			p := filepath.Join(o.Dir, t.Name+".png")
			if err := SavePlotPNG(p, t); err != nil {
				return paths, err
			}
			paths = append(paths, p)
		}
	}
	return paths, nil
}
