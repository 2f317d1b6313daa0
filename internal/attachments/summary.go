package attachments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies the decoder that produced a Summary.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindCSV         Kind = "csv"
	KindSpreadsheet Kind = "spreadsheet"
	KindJSON        Kind = "json"
	KindText        Kind = "text"
	KindUnknown     Kind = "unknown"
	KindError       Kind = "error"
)

// ErrUnknownType is the message recorded for attachments with no decoder.
const ErrUnknownType = "Unknown file type"

// Summary is the structured rendering of one attachment. Kind selects which
// payload is set; KindError carries only Error.
type Summary struct {
	Kind        Kind
	PDF         *PDFSummary
	CSV         *Table
	Spreadsheet *SpreadsheetSummary
	JSON        *JSONSummary
	Text        *TextSummary
	Error       string
}

// PDFSummary holds the text of every page in order.
type PDFSummary struct {
	NumPages int       `json:"num_pages"`
	Pages    []PDFPage `json:"pages"`
}

type PDFPage struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// SpreadsheetSummary holds one table per sheet.
type SpreadsheetSummary struct {
	Sheets map[string]*Table `json:"sheets"`
}

type JSONSummary struct {
	Data json.RawMessage `json:"data"`
}

type TextSummary struct {
	Content string `json:"content"`
	Lines   int    `json:"lines"`
}

func errorSummary(format string, args ...any) Summary {
	return Summary{Kind: KindError, Error: fmt.Sprintf(format, args...)}
}

// OK reports whether the attachment decoded.
func (s Summary) OK() bool { return s.Kind != KindError && s.Kind != KindUnknown }

// MarshalJSON writes the payload fields flattened next to a "type" key, or
// {"error": ...} for failures.
func (s Summary) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindPDF:
		return flatten(s.Kind, s.PDF)
	case KindCSV:
		return flatten(s.Kind, s.CSV)
	case KindSpreadsheet:
		return flatten(s.Kind, s.Spreadsheet)
	case KindJSON:
		return flatten(s.Kind, s.JSON)
	case KindText:
		return flatten(s.Kind, s.Text)
	default:
		msg := s.Error
		if msg == "" {
			msg = ErrUnknownType
		}
		return json.Marshal(map[string]string{"error": msg})
	}
}

// flatten prepends the type key to the payload object, keeping field order.
func flatten(kind Kind, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) < 2 || b[0] != '{' {
		return nil, fmt.Errorf("%s summary is not an object", kind)
	}
	var out bytes.Buffer
	out.WriteString(`{"type":`)
	out.WriteString(strconv.Quote(string(kind)))
	if inner := bytes.TrimSpace(b[1 : len(b)-1]); len(inner) > 0 {
		out.WriteByte(',')
		out.Write(inner)
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}
