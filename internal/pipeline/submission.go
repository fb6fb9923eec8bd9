package pipeline

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"bimschedule/internal/util"
)

type SubmissionImage struct {
	Name     string
	MimeType string
	Data     []byte
}

// Submission is an e-mail reduced to what the schedule service needs.
type Submission struct {
	Subject string
	Text    string
	HTML    string
	Images  []SubmissionImage
	// Hints lists area/location rows found in HTML tables, spreadsheet or
	// PDF attachments, one "area - location" per line.
	Hints string
}

var imageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var (
	areaHeaders     = []string{"area", "room", "space", "zone"}
	locationHeaders = []string{"location", "surface", "element", "position"}
	finishHeaders   = []string{"finish", "material", "spec"}
)

func ParseSubmission(raw []byte) (Submission, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Submission{}, err
	}

	sub := Submission{
		Subject: env.GetHeader("Subject"),
		Text:    env.Text,
		HTML:    env.HTML,
	}

	hints := []string{}
	if env.HTML != "" {
		hints = append(hints, parseHTMLHints(env.HTML)...)
	}

	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)
	for i, part := range parts {
		name := strings.TrimSpace(part.FileName)
		if name == "" {
			name = fmt.Sprintf("image-%d", i+1)
		}
		if mime := imageMimeType(part.ContentType, name); mime != "" {
			sub.Images = append(sub.Images, SubmissionImage{Name: name, MimeType: mime, Data: part.Content})
			continue
		}
		switch {
		case strings.EqualFold(filepath.Ext(name), ".xlsx"):
			if extra, err := parseXLSXHints(part.Content); err == nil {
				hints = append(hints, extra...)
			}
		case strings.EqualFold(filepath.Ext(name), ".pdf"), strings.EqualFold(part.ContentType, "application/pdf"):
			if extra, err := parsePDFHints(part.Content); err == nil {
				hints = append(hints, extra...)
			}
		}
	}

	sub.Hints = strings.Join(dedupeStrings(hints), "\n")
	return sub, nil
}

func imageMimeType(contentType, name string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

func parseHTMLHints(html string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []string{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, util.NormalizeKey(cell.Text()))
		})
		cols := findHintColumns(headers)
		if cols.area < 0 && cols.location < 0 {
			return
		}

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if hint := cols.hint(cells); hint != "" {
				out = append(out, hint)
			}
		})
	})
	return out
}

func parseXLSXHints(content []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []string{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}
		headers := make([]string, len(rows[0]))
		for i, h := range rows[0] {
			headers[i] = util.NormalizeKey(h)
		}
		cols := findHintColumns(headers)
		if cols.area < 0 && cols.location < 0 {
			continue
		}
		for _, row := range rows[1:] {
			cells := make([]string, len(row))
			for i, c := range row {
				cells[i] = util.NormalizeSpaces(c)
			}
			if hint := cols.hint(cells); hint != "" {
				out = append(out, hint)
			}
		}
	}
	return out, nil
}

// PDF text loses the table grid, so columns are recovered from pipes, tabs,
// semicolons or runs of spaces.
var pdfColumnSep = regexp.MustCompile(`\s*[|;\t]\s*|\s{2,}`)

func parsePDFHints(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []string{}
	cols := hintColumns{area: -1, location: -1, finish: -1}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			cells := []string{}
			for _, c := range pdfColumnSep.Split(line, -1) {
				cells = append(cells, util.NormalizeSpaces(c))
			}
			if len(cells) < 2 {
				continue
			}
			if cols.area < 0 && cols.location < 0 {
				headers := make([]string, len(cells))
				for j, c := range cells {
					headers[j] = util.NormalizeKey(c)
				}
				cols = findHintColumns(headers)
				continue
			}
			if hint := cols.hint(cells); hint != "" {
				out = append(out, hint)
			}
		}
	}
	return out, nil
}

type hintColumns struct {
	area, location, finish int
}

func findHintColumns(headers []string) hintColumns {
	return hintColumns{
		area:     findHeaderIndex(headers, areaHeaders),
		location: findHeaderIndex(headers, locationHeaders),
		finish:   findHeaderIndex(headers, finishHeaders),
	}
}

func (c hintColumns) hint(cells []string) string {
	parts := []string{}
	used := map[int]bool{}
	for _, idx := range []int{c.area, c.location, c.finish} {
		if idx >= 0 && idx < len(cells) && cells[idx] != "" && !used[idx] {
			used[idx] = true
			parts = append(parts, cells[idx])
		}
	}
	return strings.Join(parts, " - ")
}

func findHeaderIndex(headers []string, variants []string) int {
	for i, h := range headers {
		if util.ContainsAny(h, variants) {
			return i
		}
	}
	return -1
}

func dedupeStrings(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
