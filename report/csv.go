package report

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// SaveTableCSV は表を CSV（comma=0 なら ','、'\t' なら TSV）で保存する。
// 1 行目は列名、数値は丸めずに書く。
func SaveTableCSV(filename string, t Table, comma rune) error {
	fp, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	defer fp.Close()

	w := csv.NewWriter(fp)
	if comma != 0 {
		w.Comma = comma
	}
	if err := w.Write(t.Columns); err != nil {
		return err
	}
	for _, r := range t.Rows {
		row := make([]string, len(r))
		for j, v := range r {
			row[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// LoadTableCSV は SaveTableCSV で書いたファイルを読み戻す
func LoadTableCSV(filename string, comma rune) (Table, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return Table{}, err
	}
	defer fp.Close()

	r := csv.NewReader(fp)
	if comma != 0 {
		r.Comma = comma
	}
	recs, err := r.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", filename, err)
	}
	if len(recs) == 0 {
		return Table{}, fmt.Errorf("read %s: empty file", filename)
	}
	t := Table{Columns: recs[0]}
	for i, rec := range recs[1:] {
		row := make([]float64, len(rec))
		for j, s := range rec {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Table{}, fmt.Errorf("read %s: row %d col %d: %w", filename, i+2, j+1, err)
			}
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// SaveSummaryText は設計値を "label = value unit" の行で保存する
func SaveSummaryText(filename string, r *Report) error {
	fp, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create %s: %w", filename, err)
	}
	defer fp.Close()

	bw := bufio.NewWriter(fp)
	if !r.Converged {
		fmt.Fprintf(bw, "WARNING: optimization did not converge (%s, %s)\n", r.Method, r.Status)
	}
	for _, q := range r.Summary {
		fmt.Fprintln(bw, q.String())
	}
	return bw.Flush()
}
