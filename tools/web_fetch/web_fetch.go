package web_fetch

import (
	"context"
	"log"
	"time"

	"github.com/mohammad-safakhou/quizchain/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/quizchain/tools/web_fetch/models"
)

const (
	DefaultNavigateTimeout = 30 * time.Second
	DefaultSettleDelay     = 2 * time.Second
)

// Session is one browser context. Pages rendered through it share the
// browser process; each Render uses its own tab.
type Session interface {
	Render(ctx context.Context, url string) (models.Result, error)
	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

type FetcherType string

const (
	ChromedpFetcherType FetcherType = "chromedp"
)

// Options configures a Launcher.
type Options struct {
	Headless        bool
	ExecPath        string
	UserAgent       string
	NavigateTimeout time.Duration
	SettleDelay     time.Duration
	Logger          *log.Logger
}

// Error reports an unusable fetcher configuration.
type Error struct {
	Msg string
}

func (e *Error) Error() string { return "web_fetch: " + e.Msg }

func NewLauncher(fetcherType FetcherType, opts Options) (Launcher, error) {
	if opts.NavigateTimeout <= 0 {
		opts.NavigateTimeout = DefaultNavigateTimeout
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = DefaultSettleDelay
	}

	switch fetcherType {
	case ChromedpFetcherType:
		return chromedpLauncher{&chromedp.Launcher{
			Headless:        opts.Headless,
			ExecPath:        opts.ExecPath,
			UserAgent:       opts.UserAgent,
			NavigateTimeout: opts.NavigateTimeout,
			SettleDelay:     opts.SettleDelay,
			Logger:          opts.Logger,
		}}, nil
	default:
		return nil, &Error{"unsupported fetcher type " + string(fetcherType)}
	}
}

type chromedpLauncher struct {
	l *chromedp.Launcher
}

func (c chromedpLauncher) Launch(ctx context.Context) (Session, error) {
	s, err := c.l.Launch(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}
