// Package export writes chart states as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dgnsrekt/yieldview/internal/apperr"
	"github.com/dgnsrekt/yieldview/internal/chartsync"
)

const (
	emptySheet   = "Chart"
	maxSheetName = 31
)

var (
	bondHeader  = []any{"ISIN", "TTM (Years)", "Yield (%)", "Coupon (%)", "Maturity", "Description"}
	curveHeader = []any{"TTM (Years)", "Zero Rate (%)"}
)

// WriteXLSX writes one sheet per visible series of state to w. Scatter
// sheets list bonds; overlay sheets list curve points.
func WriteXLSX(w io.Writer, state chartsync.ChartState) error {
	f := excelize.NewFile()
	defer f.Close()

	const defaultSheet = "Sheet1"
	used := map[string]bool{}
	first := ""

	if state.Empty() {
		if err := f.SetSheetName(defaultSheet, emptySheet); err != nil {
			return apperr.New(apperr.CodeRender, "rename sheet", err)
		}
		if err := f.SetSheetRow(emptySheet, "A1", &[]any{"No datasets visible"}); err != nil {
			return apperr.New(apperr.CodeRender, "write sheet", err)
		}
		return write(f, w)
	}

	for _, d := range state.Datasets {
		name := uniqueSheetName(d.Label, used)
		if _, err := f.NewSheet(name); err != nil {
			return apperr.New(apperr.CodeRender, "create sheet "+name, err)
		}
		if first == "" {
			first = name
		}
		var err error
		if d.Kind == chartsync.KindLine {
			err = writeCurve(f, name, d.Curve)
		} else {
			err = writeBonds(f, name, d.Points)
		}
		if err != nil {
			return apperr.New(apperr.CodeRender, "write sheet "+name, err)
		}
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		return apperr.New(apperr.CodeRender, "drop default sheet", err)
	}
	if idx, err := f.GetSheetIndex(first); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	return write(f, w)
}

func write(f *excelize.File, w io.Writer) error {
	if _, err := f.WriteTo(w); err != nil {
		return apperr.New(apperr.CodeRender, "write workbook", err)
	}
	return nil
}

func writeBonds(f *excelize.File, sheet string, pts []chartsync.BondPoint) error {
	if err := f.SetSheetRow(sheet, "A1", &bondHeader); err != nil {
		return err
	}
	for i, p := range pts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{p.ISIN, p.X, p.Y, p.Coupon, p.MaturityDate, p.Description}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeCurve(f *excelize.File, sheet string, pts []chartsync.CurvePoint) error {
	if err := f.SetSheetRow(sheet, "A1", &curveHeader); err != nil {
		return err
	}
	for i, p := range pts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{p.X, p.Y}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// uniqueSheetName strips characters Excel rejects, caps the length and
// suffixes duplicates.
func uniqueSheetName(label string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(label))
	base = strings.Trim(base, "'")
	if base == "" {
		base = "Series"
	}
	base = truncateRunes(base, maxSheetName)

	name := base
	for n := 2; used[strings.ToLower(name)] || strings.EqualFold(name, "Sheet1"); n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
