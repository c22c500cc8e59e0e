package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SaveToXLSX は Summary シート（実行情報と設計値）と、表ごとのシートを持つブックを保存する
func SaveToXLSX(filename string, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	// Summary
	summary := "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return err
	}

	set := func(sheet string, col, row int, v interface{}) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, v)
	}

	head := [][2]interface{}{
		{"Run", r.ID},
		{"Kind", string(r.Kind)},
		{"Created", r.CreatedAt.Format("2006-01-02 15:04:05")},
		{"Method", r.Method},
		{"Status", r.Status},
		{"Converged", r.Converged},
		{"Objective", r.Objective},
	}
	row := 1
	for _, kv := range head {
		if err := set(summary, 1, row, kv[0]); err != nil {
			return err
		}
		if err := set(summary, 2, row, kv[1]); err != nil {
			return err
		}
		row++
	}

	row++
	for j, h := range []string{"Quantity", "Value", "Unit"} {
		if err := set(summary, j+1, row, h); err != nil {
			return err
		}
	}
	for _, q := range r.Summary {
		row++
		if err := set(summary, 1, row, q.Label); err != nil {
			return err
		}
		if err := set(summary, 2, row, q.Value); err != nil {
			return err
		}
		if err := set(summary, 3, row, q.Unit); err != nil {
			return err
		}
	}

	// 表（シート名は 31 文字まで）
	for _, t := range r.Tables {
		sheet := t.Name
		if len(sheet) > 31 {
			sheet = sheet[:31]
		}
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
		for j, c := range t.Columns {
			if err := set(sheet, j+1, 1, c); err != nil {
				return err
			}
		}
		for i, vals := range t.Rows {
			for j, v := range vals {
				if err := set(sheet, j+1, i+2, v); err != nil {
					return err
				}
			}
		}
	}

	return f.SaveAs(filename)
}
