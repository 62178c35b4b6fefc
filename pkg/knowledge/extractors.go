package knowledge

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// maxCellsPerSheet bounds xlsx output for huge spreadsheets.
const maxCellsPerSheet = 1000

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// textExtractor reads plain text formats as-is.
type textExtractor struct{}

func (e *textExtractor) CanExtract(path string) bool { return hasExt(path, e.Extensions()) }

func (e *textExtractor) Extensions() []string { return []string{".txt", ".md"} }

func (e *textExtractor) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// pdfExtractor pulls text page by page, skipping pages that fail to decode.
type pdfExtractor struct{}

func (e *pdfExtractor) CanExtract(path string) bool { return hasExt(path, e.Extensions()) }

func (e *pdfExtractor) Extensions() []string { return []string{".pdf"} }

func (e *pdfExtractor) Extract(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	var pages []string
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("no extractable text in %s", path)
	}
	return strings.Join(pages, "\n\n"), nil
}

// docxExtractor reads Word documents. The docx library returns the raw
// document XML, so paragraph tags become newlines and the rest is stripped.
type docxExtractor struct{}

var xmlTagPattern = regexp.MustCompile(`<[^>]*>`)

func (e *docxExtractor) CanExtract(path string) bool { return hasExt(path, e.Extensions()) }

func (e *docxExtractor) Extensions() []string { return []string{".docx"} }

func (e *docxExtractor) Extract(_ context.Context, path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = xmlTagPattern.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("no extractable text in %s", path)
	}
	return content, nil
}

// xlsxExtractor flattens spreadsheets into "cell: value" lines per sheet.
type xlsxExtractor struct{}

func (e *xlsxExtractor) CanExtract(path string) bool { return hasExt(path, e.Extensions()) }

func (e *xlsxExtractor) Extensions() []string { return []string{".xlsx"} }

func (e *xlsxExtractor) Extract(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer f.Close()

	var sheets []string
	for _, sheetName := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Sheet: %s\n", sheetName)

		cells := 0
		for rowIndex, row := range rows {
			if cells >= maxCellsPerSheet {
				b.WriteString("... (truncated)\n")
				break
			}
			for colIndex, cell := range row {
				if cells >= maxCellsPerSheet {
					break
				}
				if text := strings.TrimSpace(cell); text != "" {
					fmt.Fprintf(&b, "%s%d: %s\n", columnLetter(colIndex), rowIndex+1, text)
					cells++
				}
			}
		}

		if cells > 0 {
			sheets = append(sheets, strings.TrimRight(b.String(), "\n"))
		}
	}

	if len(sheets) == 0 {
		return "", fmt.Errorf("no extractable text in %s", path)
	}
	return strings.Join(sheets, "\n\n"), nil
}

// columnLetter converts a 0-based column index to its spreadsheet letter
// (A, B, ..., Z, AA, AB, ...).
func columnLetter(index int) string {
	letter := ""
	for {
		letter = string(rune('A'+index%26)) + letter
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return letter
}
