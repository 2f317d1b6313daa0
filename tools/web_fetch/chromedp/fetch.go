package chromedp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"
	"github.com/mohammad-safakhou/quizchain/tools/web_fetch/models"
)

const (
	textScript  = `document.body ? document.body.innerText : ""`
	linksScript = `Array.from(document.querySelectorAll('a')).map(a => ({href: a.href, text: a.innerText}))`
)

// Launcher starts a headless Chrome per Launch call.
type Launcher struct {
	Headless        bool
	ExecPath        string
	UserAgent       string
	NavigateTimeout time.Duration
	SettleDelay     time.Duration
	Logger          *log.Logger
}

// Session owns one browser process. It is safe to Render sequentially; the
// chain never renders two pages at once.
type Session struct {
	browserCtx      context.Context
	cancelBrowser   context.CancelFunc
	cancelAlloc     context.CancelFunc
	navigateTimeout time.Duration
	settleDelay     time.Duration
	closeOnce       sync.Once
	closeErr        error
}

func (l *Launcher) Launch(ctx context.Context) (*Session, error) {
	logger := l.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[BROWSER] ", log.LstdFlags)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.Headless),
	)
	if l.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.ExecPath))
	}
	if l.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.UserAgent))
	}

	// the browser outlives the caller's deadline; Close releases it
	actx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	bctx, cancelBrowser := chromedp.NewContext(actx, chromedp.WithErrorf(logger.Printf))
	if err := chromedp.Run(bctx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &Session{
		browserCtx:      bctx,
		cancelBrowser:   cancelBrowser,
		cancelAlloc:     cancelAlloc,
		navigateTimeout: l.NavigateTimeout,
		settleDelay:     l.SettleDelay,
	}, nil
}

// Render opens a tab, waits for the page to settle and reads its content.
// The tab is closed before returning.
func (s *Session) Render(ctx context.Context, rawURL string) (models.Result, error) {
	if strings.TrimSpace(rawURL) == "" {
		return models.Result{}, errors.New("invalid url")
	}
	t0 := time.Now()

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()
	if err := chromedp.Run(tabCtx); err != nil {
		return models.Result{}, fmt.Errorf("open tab: %w", err)
	}

	// lifecycle events from the blank tab arrive too; only the navigated
	// document's loader counts
	idle := make(chan cdp.LoaderID, idleBuffer)
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
			select {
			case idle <- e.LoaderID:
			default:
			}
		}
	})

	navCtx, cancelNav := context.WithTimeout(tabCtx, s.navigateTimeout)
	defer cancelNav()
	var loaderID cdp.LoaderID
	err := chromedp.Run(navCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(rawURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			loaderID = tree.Frame.LoaderID
			return nil
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return models.Result{URL: rawURL, RenderMS: since(t0)}, fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	if err := waitNetworkIdle(navCtx, idle, loaderID); err != nil {
		if ctx.Err() != nil {
			return models.Result{URL: rawURL, RenderMS: since(t0)}, ctx.Err()
		}
		return models.Result{URL: rawURL, RenderMS: since(t0)}, fmt.Errorf("navigate %s: %w", rawURL, err)
	}

	var (
		text  string
		html  string
		links []models.Link
	)
	err = chromedp.Run(tabCtx,
		chromedp.Sleep(s.settleDelay),
		chromedp.Evaluate(textScript, &text),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Evaluate(linksScript, &links),
	)
	if err != nil {
		return models.Result{URL: rawURL, RenderMS: since(t0)}, fmt.Errorf("read %s: %w", rawURL, err)
	}

	if strings.TrimSpace(text) == "" && html != "" {
		if article, rerr := readability.FromReader(strings.NewReader(html), mustParseURL(rawURL)); rerr == nil {
			text = strings.TrimSpace(article.TextContent)
		}
	}

	return models.Result{
		URL:      rawURL,
		Text:     text,
		HTML:     html,
		Links:    links,
		RenderMS: since(t0),
	}, nil
}

// ErrNetworkNotIdle is returned when the page keeps the network busy past the
// navigation timeout.
var ErrNetworkNotIdle = errors.New("network never went idle")

const idleBuffer = 16

// waitNetworkIdle blocks until a networkIdle event for loaderID arrives.
// Events of other loaders are discarded.
func waitNetworkIdle(ctx context.Context, idle <-chan cdp.LoaderID, loaderID cdp.LoaderID) error {
	for {
		select {
		case id := <-idle:
			if id == loaderID {
				return nil
			}
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNetworkNotIdle, ctx.Err())
		}
	}
}

// Close shuts the browser down. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.browserCtx)
		s.cancelBrowser()
		s.cancelAlloc()
	})
	return s.closeErr
}

func since(t0 time.Time) int { return int(time.Since(t0) / time.Millisecond) }

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
