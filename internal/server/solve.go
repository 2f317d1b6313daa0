package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mohammad-safakhou/quizchain/config"
	"github.com/mohammad-safakhou/quizchain/internal/queue/streams"
	"github.com/mohammad-safakhou/quizchain/internal/store"
	"github.com/mohammad-safakhou/quizchain/internal/worker"
)

const maxSolveBody = 1 << 20

// SolveHandler accepts solve requests and hands them to the dispatcher. The
// response never waits for the chain.
type SolveHandler struct {
	Credentials config.Credentials
	Registry    *streams.SchemaRegistry
	Dispatcher  worker.Dispatcher
	Runs        RunStore
	Logger      *log.Logger
}

func (h *SolveHandler) solve(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxSolveBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("read body: %v", err)})
	}
	if !json.Valid(body) {
		return echo.NewHTTPError(http.StatusBadRequest, validationResponse{
			Detail: "Invalid request body",
			Errors: []string{"body: invalid JSON"},
		})
	}
	if err := h.Registry.Validate(streams.RequestSolve, streams.VersionV1, body); err != nil {
		var verr *streams.ValidationError
		if errors.As(err, &verr) {
			return echo.NewHTTPError(http.StatusBadRequest, validationResponse{
				Detail: "Invalid request body",
				Errors: verr.Issues,
			})
		}
		return err
	}
	var req solveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Detail: err.Error()})
	}

	if !h.Credentials.SecretMatches(req.Secret) {
		return echo.NewHTTPError(http.StatusForbidden, "Invalid secret")
	}
	if !h.Credentials.EmailMatches(req.Email) {
		return echo.NewHTTPError(http.StatusForbidden, "Invalid email")
	}

	ctx := c.Request().Context()
	job := worker.Job{RunID: uuid.NewString(), URL: req.URL, RequestedAt: time.Now().UTC()}
	if h.Runs != nil {
		if err := h.Runs.CreateRun(ctx, job.RunID, job.URL); err != nil {
			return fmt.Errorf("create run: %w", err)
		}
	}
	if err := h.Dispatcher.Dispatch(ctx, job); err != nil {
		if h.Runs != nil {
			_ = h.Runs.MarkRunStatus(ctx, job.RunID, store.RunStatusFailed)
		}
		if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrDispatcherClosed) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return fmt.Errorf("dispatch run %s: %w", job.RunID, err)
	}
	if h.Logger != nil {
		h.Logger.Printf("accepted run %s for %s", job.RunID, job.URL)
	}
	return c.JSON(http.StatusOK, solveResponse{
		Status:  "success",
		Message: "Quiz processing started in background",
		RunID:   job.RunID,
	})
}
