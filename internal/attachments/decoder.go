package attachments

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"unicode/utf8"
)

const defaultHeadRows = 10

// Decoder turns downloaded bytes into summaries keyed by source URL.
type Decoder struct {
	Logger   *log.Logger
	HeadRows int
}

func NewDecoder(logger *log.Logger) *Decoder {
	if logger == nil {
		logger = log.New(os.Stdout, "[ATTACH] ", log.LstdFlags)
	}
	return &Decoder{Logger: logger, HeadRows: defaultHeadRows}
}

// DecodeAll decodes every resource independently; a failure in one never
// affects the others.
func (d *Decoder) DecodeAll(files map[string][]byte) map[string]Summary {
	out := make(map[string]Summary, len(files))
	for u, content := range files {
		out[u] = d.Decode(u, content)
	}
	return out
}

// Decode picks a decoder from the URL suffix. Errors and panics inside a
// decoder become an error summary.
func (d *Decoder) Decode(rawURL string, content []byte) (s Summary) {
	defer func() {
		if r := recover(); r != nil {
			d.logf("decode %s panicked: %v", rawURL, r)
			s = errorSummary("%v", r)
		}
	}()

	var err error
	switch DetectType(rawURL) {
	case KindPDF:
		s, err = decodePDF(content)
	case KindCSV:
		s, err = decodeCSV(content, d.headRows())
	case KindSpreadsheet:
		s, err = decodeSpreadsheet(content, d.headRows())
	case KindJSON:
		s, err = decodeJSON(content)
	case KindText:
		s, err = decodeText(content)
	default:
		return Summary{Kind: KindError, Error: ErrUnknownType}
	}
	if err != nil {
		d.logf("error processing %s: %v", rawURL, err)
		return errorSummary("%v", err)
	}
	return s
}

func (d *Decoder) headRows() int {
	if d.HeadRows <= 0 {
		return defaultHeadRows
	}
	return d.HeadRows
}

func (d *Decoder) logf(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
	}
}

func decodeJSON(content []byte) (Summary, error) {
	if !json.Valid(content) {
		var probe any
		if err := json.Unmarshal(content, &probe); err != nil {
			return Summary{}, fmt.Errorf("json: %w", err)
		}
		return Summary{}, fmt.Errorf("json: invalid document")
	}
	return Summary{Kind: KindJSON, JSON: &JSONSummary{Data: json.RawMessage(content)}}, nil
}

func decodeText(content []byte) (Summary, error) {
	if !utf8.Valid(content) {
		return Summary{}, fmt.Errorf("text: content is not valid utf-8")
	}
	text := string(content)
	return Summary{Kind: KindText, Text: &TextSummary{
		Content: text,
		Lines:   strings.Count(text, "\n") + 1,
	}}, nil
}
