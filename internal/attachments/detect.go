package attachments

import (
	"net/url"
	"path"
	"strings"
)

var suffixKinds = []struct {
	suffix string
	kind   Kind
}{
	{".pdf", KindPDF},
	{".csv", KindCSV},
	{".xlsx", KindSpreadsheet},
	{".xls", KindSpreadsheet},
	{".json", KindJSON},
	{".txt", KindText},
}

// DetectType classifies a URL by the suffix of its path, ignoring case, query
// and fragment.
func DetectType(rawURL string) Kind {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	for _, sk := range suffixKinds {
		if ext == sk.suffix {
			return sk.kind
		}
	}
	return KindUnknown
}

// IsAttachment reports whether DetectType recognises the URL.
func IsAttachment(rawURL string) bool {
	return DetectType(rawURL) != KindUnknown
}
