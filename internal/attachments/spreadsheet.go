package attachments

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// decodeSpreadsheet summarises every sheet; the first row of a sheet is its
// header. Empty sheets are skipped.
func decodeSpreadsheet(content []byte, headRows int) (Summary, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return Summary{}, fmt.Errorf("spreadsheet: %w", err)
	}
	defer f.Close()

	out := &SpreadsheetSummary{Sheets: make(map[string]*Table)}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return Summary{}, fmt.Errorf("sheet %q: %w", name, err)
		}
		if len(rows) == 0 {
			continue
		}
		t, err := buildTable(rows[0], rows[1:], headRows, false)
		if err != nil {
			continue
		}
		out.Sheets[name] = t
	}
	return Summary{Kind: KindSpreadsheet, Spreadsheet: out}, nil
}
