package attachments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func quietDecoder() *Decoder {
	return NewDecoder(log.New(io.Discard, "", 0))
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		url  string
		want Kind
	}{
		{"https://x.y/report.PDF", KindPDF},
		{"https://x.y/data.csv?token=1", KindCSV},
		{"https://x.y/book.xlsx", KindSpreadsheet},
		{"https://x.y/book.xls#sheet", KindSpreadsheet},
		{"https://x.y/a.json", KindJSON},
		{"https://x.y/notes.txt", KindText},
		{"https://x.y/image.png", KindUnknown},
		{"https://x.y/", KindUnknown},
	}
	for _, tt := range tests {
		if got := DetectType(tt.url); got != tt.want {
			t.Errorf("DetectType(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDecodeCSVSummary(t *testing.T) {
	csv := "name,score,age\nann,10,30\nbob,20,\ncat,30,40\n"
	s := quietDecoder().Decode("https://x.y/data.csv", []byte(csv))
	if s.Kind != KindCSV {
		t.Fatalf("expected csv summary, got %+v", s)
	}
	tbl := s.CSV
	if tbl.Shape != [2]int{3, 3} {
		t.Fatalf("unexpected shape %v", tbl.Shape)
	}
	if strings.Join(tbl.Summary.NumericColumns, ",") != "score,age" {
		t.Fatalf("unexpected numeric columns %v", tbl.Summary.NumericColumns)
	}
	score := tbl.Summary.Statistics["score"]
	if score.Count != 3 || score.Mean != 20 || score.Min != 10 || score.Max != 30 || score.P50 != 20 || score.P25 != 15 {
		t.Fatalf("unexpected score stats %+v", score)
	}
	if score.Std == nil || math.Abs(*score.Std-10) > 1e-9 {
		t.Fatalf("unexpected std %v", score.Std)
	}
	if tbl.Data[1].Get("age") != nil {
		t.Fatalf("expected empty cell to be null")
	}
	if tbl.Data[0].Get("name") != "ann" {
		t.Fatalf("unexpected name cell %v", tbl.Data[0].Get("name"))
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.HasPrefix(string(b), `{"type":"csv","shape":[3,3],"columns":["name","score","age"],"head":[{"name":"ann","score":10,"age":30}`) {
		t.Fatalf("unexpected encoding %s", b)
	}
}

func TestDecodeCSVHeadLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("n\n")
	for i := 0; i < 25; i++ {
		sb.WriteString("1\n")
	}
	s := quietDecoder().Decode("https://x.y/n.csv", []byte(sb.String()))
	if len(s.CSV.Head) != 10 || len(s.CSV.Data) != 25 {
		t.Fatalf("head=%d data=%d", len(s.CSV.Head), len(s.CSV.Data))
	}
	if s.CSV.Summary.Statistics["n"].Std == nil || *s.CSV.Summary.Statistics["n"].Std != 0 {
		t.Fatalf("expected zero std")
	}
}

func TestDecodeSingleValueStdIsNull(t *testing.T) {
	s := quietDecoder().Decode("https://x.y/one.csv", []byte("v\n7\n"))
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"std":null`) {
		t.Fatalf("expected null std in %s", b)
	}
}

func TestDecodeSpreadsheet(t *testing.T) {
	f := excelize.NewFile()
	_ = f.SetCellValue("Sheet1", "A1", "city")
	_ = f.SetCellValue("Sheet1", "B1", "pop")
	_ = f.SetCellValue("Sheet1", "A2", "Oslo")
	_ = f.SetCellValue("Sheet1", "B2", 700000)
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	s := quietDecoder().Decode("https://x.y/cities.xlsx", buf.Bytes())
	if s.Kind != KindSpreadsheet {
		t.Fatalf("expected spreadsheet, got %+v", s)
	}
	sheet := s.Spreadsheet.Sheets["Sheet1"]
	if sheet == nil || sheet.Shape != [2]int{1, 2} {
		t.Fatalf("unexpected sheet %+v", sheet)
	}
	if got := sheet.Data[0].Get("pop"); got != json.Number("700000") {
		t.Fatalf("unexpected pop cell %v", got)
	}
}

func TestDecodeJSONAndText(t *testing.T) {
	d := quietDecoder()
	js := d.Decode("https://x.y/a.json", []byte(`{"k":[1,2]}`))
	b, _ := json.Marshal(js)
	if string(b) != `{"type":"json","data":{"k":[1,2]}}` {
		t.Fatalf("unexpected json summary %s", b)
	}
	txt := d.Decode("https://x.y/a.txt", []byte("one\ntwo\n"))
	if txt.Kind != KindText || txt.Text.Lines != 3 {
		t.Fatalf("unexpected text summary %+v", txt)
	}
	bad := d.Decode("https://x.y/b.json", []byte(`{"k":`))
	if bad.Kind != KindError || bad.Error == "" {
		t.Fatalf("expected error summary, got %+v", bad)
	}
}

func TestDecodeInvalidPDF(t *testing.T) {
	s := quietDecoder().Decode("https://x.y/broken.pdf", []byte("not a pdf"))
	if s.OK() {
		t.Fatalf("expected pdf failure, got %+v", s)
	}
}

// One good, one malformed, one unknown: three entries, each decoded on its own.
func TestDecodeAllIsolatesFailures(t *testing.T) {
	files := map[string][]byte{
		"https://x.y/good.csv":   []byte("a\n1\n"),
		"https://x.y/bad.json":   []byte("{oops"),
		"https://x.y/photo.jpeg": []byte{0xff, 0xd8},
	}
	out := quietDecoder().DecodeAll(files)
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	if !out["https://x.y/good.csv"].OK() {
		t.Fatalf("good csv should decode")
	}
	if out["https://x.y/bad.json"].Kind != KindError {
		t.Fatalf("bad json should fail")
	}
	b, _ := json.Marshal(out["https://x.y/photo.jpeg"])
	if string(b) != `{"error":"Unknown file type"}` {
		t.Fatalf("unexpected unknown summary %s", b)
	}
}

type stubFetcher map[string][]byte

func (s stubFetcher) Get(_ context.Context, url string) ([]byte, error) {
	b, ok := s[url]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return b, nil
}

func TestCollectRecordsDownloadFailures(t *testing.T) {
	f := stubFetcher{"https://x.y/a.txt": []byte("hi")}
	out, downloaded := Collect(context.Background(), f, quietDecoder(), []string{
		"https://x.y/a.txt",
		"https://x.y/missing.csv",
		"https://x.y/a.txt",
	})
	if downloaded != 1 {
		t.Fatalf("expected 1 download, got %d", downloaded)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(out))
	}
	if miss := out["https://x.y/missing.csv"]; miss.Kind != KindError || !strings.Contains(miss.Error, "404") {
		t.Fatalf("unexpected failure summary %+v", miss)
	}
}

// A CSV that decodes, a download that fails and an unknown extension each
// keep their own entry.
func TestCollectMixedBatch(t *testing.T) {
	f := stubFetcher{
		"https://x.y/data.csv":  []byte("name,score\nann,3\nbob,5\n"),
		"https://x.y/photo.bmp": []byte("BM"),
	}
	urls := []string{"https://x.y/data.csv", "https://x.y/missing.pdf", "https://x.y/photo.bmp"}
	out, downloaded := Collect(context.Background(), f, quietDecoder(), urls)
	if downloaded != 2 {
		t.Fatalf("expected 2 downloads, got %d", downloaded)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(out), out)
	}

	csv := out["https://x.y/data.csv"]
	if csv.Kind != KindCSV || csv.CSV == nil || csv.CSV.Shape != [2]int{2, 2} {
		t.Fatalf("unexpected csv summary %+v", csv)
	}
	b, _ := json.Marshal(csv)
	if !strings.HasPrefix(string(b), `{"type":"csv",`) {
		t.Fatalf("unexpected csv encoding %s", b)
	}

	b, _ = json.Marshal(out["https://x.y/missing.pdf"])
	if !strings.HasPrefix(string(b), `{"error":"download: `) {
		t.Fatalf("unexpected download failure encoding %s", b)
	}

	b, _ = json.Marshal(out["https://x.y/photo.bmp"])
	if string(b) != `{"error":"Unknown file type"}` {
		t.Fatalf("unexpected unknown summary %s", b)
	}
}
