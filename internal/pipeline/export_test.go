package pipeline

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"bimschedule/internal"
)

func sampleRecords() []internal.MaterialRecord {
	return Normalize([]internal.Candidate{
		{FinishDescription: "Grade A Oak Flooring", Area: "Kitchen", Location: "Floor", PricePerSqm: internal.RawPrices{Low: fp(45), Mid: fp(65), High: fp(85)}},
		{FinishDescription: "Porcelain, matt \"stone\" effect", Area: "Bathroom", Location: "Walls"},
	}, DefaultTables())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRecords()); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows=%d", len(rows))
	}
	if strings.Join(rows[0], "|") != "Code|Area|Location of Finish|Finish|Supplier and Contact|Price per sqm (Low)|Price per sqm (Mid)|Price per sqm (High)" {
		t.Fatalf("header=%v", rows[0])
	}
	if rows[1][0] != "CT-01" || rows[1][3] != `Porcelain, matt "stone" effect` || rows[1][5] != "50" {
		t.Fatalf("row1=%v", rows[1])
	}
	if rows[2][0] != "WD-01" || rows[2][7] != "85" {
		t.Fatalf("row2=%v", rows[2])
	}
}

func TestSummary(t *testing.T) {
	lines := strings.Split(Summary(sampleRecords()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d", len(lines))
	}
	want := "WD-01 - Kitchen - Floor - Grade A Oak Flooring - Jewson (enquiries@jewson.co.uk, 0800 539 766) - Low: £45 Mid: £65 High: £85"
	if lines[1] != want {
		t.Fatalf("got  %q\nwant %q", lines[1], want)
	}
	if Summary(nil) != "" {
		t.Fatal("empty summary should be empty")
	}
}

func TestExportXLSX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "schedule.xlsx")
	records := sampleRecords()
	err := ExportXLSX(out,
		Sheet{Name: "kitchen/photo", Records: records},
		Sheet{Name: "kitchen/photo", Records: records[:1]},
		Sheet{Name: "", Records: nil},
	)
	if err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 3 {
		t.Fatalf("sheets=%v", sheets)
	}
	if sheets[0] != "kitchen photo" || sheets[1] != "kitchen photo (2)" || sheets[2] != "Schedule 3" {
		t.Fatalf("sheets=%v", sheets)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[0][0] != "Code" || rows[2][0] != "WD-01" || rows[2][5] != "45" {
		t.Fatalf("rows=%v", rows)
	}

	second, _ := f.GetRows(sheets[1])
	if len(second) != 2 {
		t.Fatalf("second sheet rows=%d", len(second))
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, Sheet{Name: "Schedule", Records: sampleRecords()}); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	v, err := f.GetCellValue("Schedule", "E2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(v, "Travis Perkins (") {
		t.Fatalf("E2=%q", v)
	}
}

func TestSheetNameTruncates(t *testing.T) {
	used := map[string]struct{}{}
	long := strings.Repeat("a", 40)
	first := sheetName(long, 0, used)
	second := sheetName(long, 1, used)
	if len([]rune(first)) != 31 || len([]rune(second)) != 31 || first == second {
		t.Fatalf("first=%q second=%q", first, second)
	}
}

func TestWriteWorkbookSuffixDoesNotReuseEarlierName(t *testing.T) {
	sheet := func(name, code string) Sheet {
		return Sheet{Name: name, Records: []internal.MaterialRecord{{Code: code}}}
	}

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, sheet("Kitchen (3)", "WD-01"), sheet("Kitchen", "CT-01"), sheet("Kitchen", "PT-01")); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	want := map[string]string{"Kitchen (3)": "WD-01", "Kitchen": "CT-01", "Kitchen (4)": "PT-01"}
	if got := f.GetSheetList(); len(got) != len(want) {
		t.Fatalf("sheets=%v", got)
	}
	for name, code := range want {
		v, err := f.GetCellValue(name, "A2")
		if err != nil || v != code {
			t.Fatalf("%s!A2=%q err=%v", name, v, err)
		}
	}
}
