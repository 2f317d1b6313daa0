package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/quizchain/internal/attachments"
)

// DefaultMaxAttachmentChars caps the attachment section of a prompt.
const DefaultMaxAttachmentChars = 5000

const answerInstructions = `
Analyze this question and provide ONLY the final answer in the appropriate format:
- For numbers: return just the number (e.g., 12345)
- For text: return just the text without quotes
- For boolean: return true or false
- For JSON objects: return valid JSON
- For images/files: return base64 data URI

Think step by step but end with "FINAL_ANSWER:" followed by just the answer.
`

// ContextBuilder assembles the prompt for one quiz page.
type ContextBuilder struct {
	Fetcher  attachments.Fetcher
	Decoder  *attachments.Decoder
	MaxChars int
	Metrics  *Metrics
}

// Build never fails on attachments; download and decode problems end up in
// the rendered summaries or are skipped.
func (b *ContextBuilder) Build(ctx context.Context, page Page) (string, error) {
	var sb strings.Builder
	sb.WriteString("You are solving a data analysis quiz. Here's the question:\n\n")
	sb.WriteString(page.Question)
	sb.WriteString("\n\n")

	if len(page.Links) > 0 {
		sb.WriteString("\nAvailable links/files:\n")
		for _, l := range page.Links {
			fmt.Fprintf(&sb, "- %s: %s\n", l.Label, l.Href)
		}
	}
	sb.WriteString(answerInstructions)

	section, err := b.attachmentSection(ctx, page.Links)
	if err != nil {
		return "", err
	}
	sb.WriteString(section)
	return sb.String(), nil
}

func (b *ContextBuilder) attachmentSection(ctx context.Context, links []Link) (string, error) {
	if b.Fetcher == nil {
		return "", nil
	}
	var urls []string
	for _, l := range links {
		if attachments.IsAttachment(l.Href) {
			urls = append(urls, l.Href)
		}
	}
	if len(urls) == 0 {
		return "", nil
	}
	dec := b.Decoder
	if dec == nil {
		dec = attachments.NewDecoder(nil)
	}
	summaries, downloaded := attachments.Collect(ctx, b.Fetcher, dec, urls)
	b.Metrics.recordAttachments(ctx, summaries)
	if downloaded == 0 {
		return "", nil
	}
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode attachment summaries: %w", err)
	}
	limit := b.MaxChars
	if limit <= 0 || limit > DefaultMaxAttachmentChars {
		limit = DefaultMaxAttachmentChars
	}
	return "\n\nProcessed file data:\n" + excerpt(string(data), limit), nil
}
