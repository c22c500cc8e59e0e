package report

import (
	"fmt"
	"io"
	"strings"
)

func fmt4(x float64) string { return fmt.Sprintf("%.4g", x) }

// PrintSummary は実行状態と設計値を表示する
func PrintSummary(w io.Writer, r *Report) {
	fmt.Fprintf(w, "\nrun=%s  kind=%s\n", r.ID, r.Kind)
	fmt.Fprintf(w, "method=%s  status=%s  converged=%t  fun=%s\n\n", r.Method, r.Status, r.Converged, fmt4(r.Objective))
	if !r.Converged {
		fmt.Fprintln(w, "WARNING: optimization did not converge; results below are the last iterate")
		fmt.Fprintln(w)
	}
	for _, q := range r.Summary {
		fmt.Fprintln(w, q.String())
	}
	fmt.Fprintln(w)
}

// PrintTable は表を罫線付きで表示する。maxRows > 0 なら先頭 maxRows 行まで。
func PrintTable(w io.Writer, t Table, maxRows int) {
	fmt.Fprintf(w, "=== %s ===\n", t.Title)
	if len(t.Rows) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}

	// ヘッダ（No + 列）
	headers := make([]string, 0, len(t.Columns)+1)
	headers = append(headers, "No")
	headers = append(headers, t.Columns...)

	list := t.Rows
	if maxRows > 0 && len(list) > maxRows {
		list = list[:maxRows]
	}

	// 各セルの文字列を先に作る
	rows := make([][]string, len(list))
	for i, r := range list {
		row := make([]string, 0, len(headers))
		row = append(row, fmt.Sprintf("%d", i+1))
		for _, v := range r {
			row = append(row, fmt4(v))
		}
		rows[i] = row
	}

	PrintBox(w, headers, rows)
	if len(list) < len(t.Rows) {
		fmt.Fprintf(w, "... %d more rows\n", len(t.Rows)-len(list))
	}
	fmt.Fprintln(w)
}

// PrintBox は文字列のセルを罫線付きで表示する。ヘッダは左寄せ、セルは右寄せ。
func PrintBox(w io.Writer, headers []string, rows [][]string) {
	// 列幅（ヘッダ or 中身の最大）
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len([]rune(h))
	}
	for _, row := range rows {
		for j, cell := range row {
			if n := len([]rune(cell)); n > widths[j] {
				widths[j] = n
			}
		}
	}

	line := func() {
		fmt.Fprint(w, "+")
		for _, wd := range widths {
			fmt.Fprint(w, strings.Repeat("-", wd+2)+"+")
		}
		fmt.Fprintln(w)
	}

	line()
	fmt.Fprint(w, "|")
	for i, h := range headers {
		fmt.Fprintf(w, " %-*s |", widths[i], h)
	}
	fmt.Fprintln(w)
	line()

	for _, row := range rows {
		fmt.Fprint(w, "|")
		for j, cell := range row {
			fmt.Fprintf(w, " %*s |", widths[j], cell) // 右寄せ
		}
		fmt.Fprintln(w)
	}
	line()
}
