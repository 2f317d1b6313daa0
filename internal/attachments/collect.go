package attachments

import (
	"context"
)

// Fetcher downloads the raw bytes of a URL.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Collect downloads and decodes each URL. Download failures are logged and
// recorded as error summaries; the returned count is the number of successful
// downloads.
func Collect(ctx context.Context, f Fetcher, d *Decoder, urls []string) (map[string]Summary, int) {
	files := make(map[string][]byte, len(urls))
	failed := make(map[string]Summary)
	for _, u := range urls {
		if _, seen := files[u]; seen {
			continue
		}
		if _, seen := failed[u]; seen {
			continue
		}
		content, err := f.Get(ctx, u)
		if err != nil {
			d.logf("failed to download %s: %v", u, err)
			failed[u] = errorSummary("download: %v", err)
			continue
		}
		files[u] = content
	}

	out := d.DecodeAll(files)
	for u, s := range failed {
		out[u] = s
	}
	return out, len(files)
}
