package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"bimschedule/internal"
)

var scheduleHeaders = []string{
	"Code", "Area", "Location of Finish", "Finish", "Supplier and Contact",
	"Price per sqm (Low)", "Price per sqm (Mid)", "Price per sqm (High)",
}

type Sheet struct {
	Name    string
	Records []internal.MaterialRecord
}

func WriteCSV(w io.Writer, records []internal.MaterialRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(scheduleHeaders); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.Code, r.Area, r.Location, r.FinishDescription, r.SupplierContact,
			strconv.Itoa(r.PricePerSqm.Low), strconv.Itoa(r.PricePerSqm.Mid), strconv.Itoa(r.PricePerSqm.High),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summary is the plain-text copy of a schedule, one line per record.
func Summary(records []internal.MaterialRecord) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, strings.Join([]string{
			r.Code, r.Area, r.Location, r.FinishDescription, r.SupplierContact,
			fmt.Sprintf("Low: £%d Mid: £%d High: £%d", r.PricePerSqm.Low, r.PricePerSqm.Mid, r.PricePerSqm.High),
		}, " - "))
	}
	return strings.Join(lines, "\n")
}

func WriteWorkbook(w io.Writer, sheets ...Sheet) error {
	f, err := buildWorkbook(sheets)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

func ExportXLSX(outputPath string, sheets ...Sheet) error {
	f, err := buildWorkbook(sheets)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func buildWorkbook(sheets []Sheet) (*excelize.File, error) {
	if len(sheets) == 0 {
		sheets = []Sheet{{Name: "Schedule"}}
	}

	f := excelize.NewFile()
	used := map[string]struct{}{}
	for i, s := range sheets {
		name := sheetName(s.Name, i, used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
		writeSheet(f, name, s.Records)
	}
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, records []internal.MaterialRecord) {
	for i, h := range scheduleHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, rec := range records {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, rec.Code)
		set(2, rec.Area)
		set(3, rec.Location)
		set(4, rec.FinishDescription)
		set(5, rec.SupplierContact)
		set(6, rec.PricePerSqm.Low)
		set(7, rec.PricePerSqm.Mid)
		set(8, rec.PricePerSqm.High)
	}
}

var sheetNameReplacer = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", " ", "]", " ")

func sheetName(name string, idx int, used map[string]struct{}) string {
	clean := strings.TrimSpace(sheetNameReplacer.Replace(name))
	if clean == "" {
		clean = fmt.Sprintf("Schedule %d", idx+1)
	}
	if r := []rune(clean); len(r) > 31 {
		clean = string(r[:31])
	}
	base := clean
	for n := idx + 1; ; n++ {
		if _, dup := used[strings.ToLower(clean)]; !dup {
			break
		}
		suffix := fmt.Sprintf(" (%d)", n)
		r := []rune(base)
		if len(r)+len(suffix) > 31 {
			r = r[:31-len(suffix)]
		}
		clean = string(r) + suffix
	}
	used[strings.ToLower(clean)] = struct{}{}
	return clean
}
