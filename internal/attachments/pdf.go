package attachments

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

func decodePDF(content []byte) (Summary, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Summary{}, fmt.Errorf("pdf: %w", err)
	}
	n := r.NumPage()
	out := &PDFSummary{NumPages: n, Pages: make([]PDFPage, 0, n)}
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			out.Pages = append(out.Pages, PDFPage{Page: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return Summary{}, fmt.Errorf("pdf page %d: %w", i, err)
		}
		out.Pages = append(out.Pages, PDFPage{Page: i, Text: text})
	}
	return Summary{Kind: KindPDF, PDF: out}, nil
}
