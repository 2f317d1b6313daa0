package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/quizchain/internal/store"
)

// RunStore is the slice of *store.Store the HTTP layer needs.
type RunStore interface {
	CreateRun(ctx context.Context, id, startURL string) error
	MarkRunStatus(ctx context.Context, id, status string) error
	GetRun(ctx context.Context, id string) (store.Run, error)
}

// RunsHandler exposes persisted chain runs. Without a store every lookup is 404.
type RunsHandler struct {
	Store RunStore
}

func (h *RunsHandler) Register(g *echo.Group) {
	g.GET("/:id", h.get)
}

func (h *RunsHandler) get(c echo.Context) error {
	if h.Store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run persistence disabled")
	}
	run, err := h.Store.GetRun(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}
