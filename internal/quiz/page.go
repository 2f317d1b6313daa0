package quiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/quizchain/tools/web_fetch/models"
)

// Renderer is the part of a browser session the extractor needs.
type Renderer interface {
	Render(ctx context.Context, url string) (models.Result, error)
}

// PageExtractor turns a rendered URL into a Page.
type PageExtractor struct {
	Renderer Renderer
}

func (p *PageExtractor) Extract(ctx context.Context, url string) (Page, error) {
	if p.Renderer == nil {
		return Page{}, errors.New("no renderer configured")
	}
	res, err := p.Renderer.Render(ctx, url)
	if err != nil {
		return Page{}, fmt.Errorf("render %s: %w", url, err)
	}
	page := Page{
		URL:      url,
		Question: res.Text,
		HTML:     res.HTML,
		Links:    make([]Link, 0, len(res.Links)),
	}
	for _, l := range res.Links {
		page.Links = append(page.Links, Link{Href: l.Href, Label: l.Text})
	}
	if submit, ok := ExtractSubmitURL(page.Question); ok {
		page.SubmitURL = submit
	}
	return page, nil
}
