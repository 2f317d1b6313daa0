package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/quizchain/config"
	"github.com/mohammad-safakhou/quizchain/internal/queue/streams"
	"github.com/mohammad-safakhou/quizchain/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// Options wires the HTTP surface to the rest of the process. Runs and
// Metrics are optional.
type Options struct {
	Credentials config.Credentials
	Registry    *streams.SchemaRegistry
	Dispatcher  worker.Dispatcher
	Runs        RunStore
	Metrics     http.Handler
	Logger      *log.Logger
}

// New builds the echo instance with every route mounted.
func New(opts Options) (*echo.Echo, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("server: dispatcher required")
	}
	if opts.Registry == nil {
		reg, err := streams.NewBaseRegistry()
		if err != nil {
			return nil, fmt.Errorf("schema registry: %w", err)
		}
		opts.Registry = reg
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = errorHandler(logger)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/health", health)
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}

	sh := &SolveHandler{
		Credentials: opts.Credentials,
		Registry:    opts.Registry,
		Dispatcher:  opts.Dispatcher,
		Runs:        opts.Runs,
		Logger:      logger,
	}
	e.POST("/solve", sh.solve)

	rh := &RunsHandler{Store: opts.Runs}
	rh.Register(e.Group("/api/runs"))
	return e, nil
}

// errorHandler renders every error as JSON. HTTPErrors carrying a structured
// message are written as is; everything else becomes {"detail": "..."}.
func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		var body interface{} = errorResponse{Detail: "Internal error: " + err.Error()}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			switch m := he.Message.(type) {
			case nil:
				body = errorResponse{Detail: http.StatusText(code)}
			case string:
				body = errorResponse{Detail: m}
			case errorResponse, validationResponse:
				body = m
			default:
				body = errorResponse{Detail: fmt.Sprint(m)}
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if c.Response().Committed {
			return
		}
		if req.Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "healthy"})
}

// Run serves e on addr until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errCh <- e.Start(addr)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
