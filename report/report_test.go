package report

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleReport() *Report {
	r := New(Turns)
	r.Method = "Newton-CG"
	r.Status = "converged"
	r.Converged = true
	r.Objective = 1.5e-9
	r.Add("total current through all spiral coils", 0.16, "A")
	r.Add("adjusted internal radius", 0.0105, "m")
	r.AddTable(NewTable("turns_profile", "Turns profile", "z0, m", "Full turns",
		[]string{"z0(m)", "turns"},
		[]float64{-0.02, 0, 0.02}, []float64{3, 5, 3}))
	r.AddTable(NewTable("induction_profile", "Induction profile before and after optimization", "z0, m", "Induction, T",
		[]string{"z0(m)", "B0", "B0 + Bz"},
		[]float64{-0.02, 0, 0.02}, []float64{-1e-4, -1.2e-4, -1e-4}, []float64{1e-6, -2e-6, 1e-6}))
	return r
}

func TestNewTable(t *testing.T) {
	tb := NewTable("x", "X", "z", "y", []string{"a", "b"}, []float64{1, 2}, []float64{3, 4})
	assert.Equal(t, [][]float64{{1, 3}, {2, 4}}, tb.Rows)
	assert.Equal(t, []float64{3, 4}, tb.Column(1))

	assert.Panics(t, func() { NewTable("x", "", "", "", []string{"a"}, []float64{1}, []float64{2}) })
	assert.Panics(t, func() { NewTable("x", "", "", "", []string{"a", "b"}, []float64{1}, []float64{2, 3}) })
}

func TestReportLookup(t *testing.T) {
	r := sampleReport()
	assert.NotEmpty(t, r.ID)
	tb, ok := r.Table("turns_profile")
	require.True(t, ok)
	assert.Len(t, tb.Rows, 3)
	_, ok = r.Table("nope")
	assert.False(t, ok)

	q, ok := r.Quantity("adjusted internal radius")
	require.True(t, ok)
	assert.Equal(t, "adjusted internal radius = 0.0105 m", q.String())
	assert.Equal(t, "design_parameters_for_turns", r.SummaryName())
	assert.Equal(t, "design_parameters_for_currents", New(Current).SummaryName())
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	r := sampleReport()
	tb, _ := r.Table("induction_profile")
	PrintTable(&buf, tb, 2)
	out := buf.String()
	assert.Contains(t, out, "=== Induction profile before and after optimization ===")
	assert.Contains(t, out, "-0.0001")
	assert.Contains(t, out, "... 1 more rows")

	buf.Reset()
	PrintTable(&buf, Table{Title: "empty"}, 0)
	assert.Contains(t, buf.String(), "(none)")
}

func TestPrintSummaryWarnsWhenNotConverged(t *testing.T) {
	var buf bytes.Buffer
	r := sampleReport()
	PrintSummary(&buf, r)
	assert.NotContains(t, buf.String(), "WARNING")

	r.Converged = false
	buf.Reset()
	PrintSummary(&buf, r)
	assert.Contains(t, buf.String(), "WARNING")
	assert.Contains(t, buf.String(), "total current through all spiral coils = 0.16 A")
}

func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport()
	tb, _ := r.Table("induction_profile")
	for _, comma := range []rune{0, '\t'} {
		p := filepath.Join(dir, "t.csv")
		require.NoError(t, SaveTableCSV(p, tb, comma))
		got, err := LoadTableCSV(p, comma)
		require.NoError(t, err)
		assert.Equal(t, tb.Columns, got.Columns)
		assert.Equal(t, tb.Rows, got.Rows)
	}
}

func TestWriteAllSinks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r := sampleReport()
	r.Converged = false
	paths, err := Write(r, Options{Dir: dir, CSV: true, XLSX: "result.xlsx", PNG: true})
	require.NoError(t, err)

	for _, name := range []string{
		"turns_profile.csv", "induction_profile.csv", "design_parameters_for_turns.txt",
		"result.xlsx", "turns_profile.png", "induction_profile.png",
	} {
		p := filepath.Join(dir, name)
		assert.Contains(t, paths, p)
		st, err := os.Stat(p)
		require.NoError(t, err, name)
		assert.Positive(t, st.Size(), name)
	}

	txt, err := os.ReadFile(filepath.Join(dir, "design_parameters_for_turns.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(txt)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "WARNING"))
	assert.Equal(t, "total current through all spiral coils = 0.16 A", lines[1])

	f, err := excelize.OpenFile(filepath.Join(dir, "result.xlsx"))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "turns_profile", "induction_profile"}, f.GetSheetList())
	v, err := f.GetCellValue("turns_profile", "B3")
	require.NoError(t, err)
	assert.Equal(t, "5", v)
	v, err = f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, r.ID, v)
}

func TestPlotNeedsTwoColumns(t *testing.T) {
	err := SavePlotPNG(filepath.Join(t.TempDir(), "x.png"), Table{Name: "x", Columns: []string{"z"}})
	assert.Error(t, err)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer h.Close()

	r1 := sampleReport()
	require.NoError(t, h.Record(ctx, r1))
	r2 := sampleReport()
	r2.Kind = Current
	r2.Converged = false
	r2.CreatedAt = r1.CreatedAt.Add(1e9)
	require.NoError(t, h.Record(ctx, r2))

	runs, err := h.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, r2.ID, runs[0].ID)
	assert.False(t, runs[0].Converged)
	assert.True(t, runs[1].Converged)
	assert.Equal(t, "turns", runs[1].Kind)

	qs, err := h.Quantities(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, r1.Summary, qs)

	s, err := h.Series(ctx, r1.ID, "induction_profile", "B0 + Bz")
	require.NoError(t, err)
	assert.Equal(t, []float64{1e-6, -2e-6, 1e-6}, s)

	// 同じ ID は二重に入らない
	assert.Error(t, h.Record(ctx, r1))
}

func TestHistoryKeepsNaN(t *testing.T) {
	ctx := context.Background()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer h.Close()

	// 発散した実行も記録できること
	r := sampleReport()
	r.Converged = false
	r.Status = "objective not finite"
	r.Objective = math.NaN()
	r.Add("optimal current", math.NaN(), "A")
	tb, _ := r.Table("induction_profile")
	tb.Rows[1][2] = math.NaN()
	require.NoError(t, h.Record(ctx, r))

	runs, err := h.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, math.IsNaN(runs[0].Objective))
	assert.False(t, runs[0].NullObjective.Valid)

	qs, err := h.Quantities(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.Equal(t, 0.16, qs[0].Value)
	assert.True(t, math.IsNaN(qs[2].Value))

	s, err := h.Series(ctx, r.ID, "induction_profile", "B0 + Bz")
	require.NoError(t, err)
	require.Len(t, s, 3)
	assert.Equal(t, 1e-6, s[0])
	assert.True(t, math.IsNaN(s[1]))
}
