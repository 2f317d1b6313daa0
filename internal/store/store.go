package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/mohammad-safakhou/quizchain/internal/quiz"
)

type Store struct {
	DB *sql.DB
}

// Run statuses persisted in chain_runs.
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// Run is a chain_runs row together with its trace.
type Run struct {
	ID          string            `json:"id"`
	StartURL    string            `json:"url"`
	Status      string            `json:"status"`
	TotalSolved int               `json:"total_solved"`
	Results     []quiz.StepRecord `json:"results"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// CreateRun records an accepted solve request.
func (s *Store) CreateRun(ctx context.Context, id, startURL string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO chain_runs (id, start_url, status) VALUES ($1, $2, $3)`,
		id, startURL, RunStatusQueued)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}
	return nil
}

// MarkRunStatus moves a run to status.
func (s *Store) MarkRunStatus(ctx context.Context, id, status string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE chain_runs SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteRun stores the trace and final status of a run in one transaction.
func (s *Store) CompleteRun(ctx context.Context, id string, result quiz.ChainResult) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	status := RunStatusCompleted
	if n := len(result.Results); n > 0 && result.Results[n-1].Failed() {
		status = RunStatusFailed
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE chain_runs SET status=$2, total_solved=$3, updated_at=NOW(), finished_at=NOW() WHERE id=$1`,
		id, status, result.TotalSolved); err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	for i, step := range result.Results {
		if err = insertStep(ctx, tx, id, i, step); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertStep(ctx context.Context, tx *sql.Tx, runID string, pos int, step quiz.StepRecord) error {
	// answer is sent as text; lib/pq would encode []byte as bytea
	var (
		question, answer, reason, stepErr sql.NullString
		correct                           sql.NullBool
	)
	if step.Failed() {
		stepErr = sql.NullString{String: step.Error, Valid: true}
	} else {
		a, err := json.Marshal(step.Answer)
		if err != nil {
			return fmt.Errorf("encode answer: %w", err)
		}
		answer = sql.NullString{String: string(a), Valid: true}
		question = sql.NullString{String: step.Question, Valid: true}
		correct = sql.NullBool{Bool: step.Correct, Valid: true}
		if step.Reason != nil {
			reason = sql.NullString{String: *step.Reason, Valid: true}
		}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO chain_steps (run_id, position, url, question, answer, correct, reason, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		runID, pos, step.URL, question, answer, correct, reason, stepErr)
	if err != nil {
		return fmt.Errorf("insert step %d of %s: %w", pos, runID, err)
	}
	return nil
}

// GetRun loads a run and its ordered trace.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	var finished sql.NullTime
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, start_url, status, total_solved, created_at, updated_at, finished_at FROM chain_runs WHERE id=$1`, id).
		Scan(&r.ID, &r.StartURL, &r.Status, &r.TotalSolved, &r.CreatedAt, &r.UpdatedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("select run %s: %w", id, err)
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT url, question, answer, correct, reason, error FROM chain_steps WHERE run_id=$1 ORDER BY position`, id)
	if err != nil {
		return Run{}, fmt.Errorf("select steps %s: %w", id, err)
	}
	defer rows.Close()
	r.Results = []quiz.StepRecord{}
	for rows.Next() {
		var (
			step                      quiz.StepRecord
			question, reason, stepErr sql.NullString
			answer                    []byte
			correct                   sql.NullBool
		)
		if err := rows.Scan(&step.URL, &question, &answer, &correct, &reason, &stepErr); err != nil {
			return Run{}, fmt.Errorf("scan step: %w", err)
		}
		if stepErr.Valid && stepErr.String != "" {
			step.Error = stepErr.String
		} else {
			step.Question = question.String
			step.Correct = correct.Bool
			if reason.Valid {
				rs := reason.String
				step.Reason = &rs
			}
			if len(answer) > 0 {
				if err := step.Answer.UnmarshalJSON(answer); err != nil {
					return Run{}, fmt.Errorf("decode answer: %w", err)
				}
			}
		}
		r.Results = append(r.Results, step)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	return r, nil
}

// ClaimIdempotency attempts to register a processed event. It returns false if the key already exists.
func (s *Store) ClaimIdempotency(ctx context.Context, scope, key string) (bool, error) {
	if scope == "" || key == "" {
		return false, fmt.Errorf("scope and key must be provided")
	}
	var inserted bool
	err := s.DB.QueryRowContext(ctx, `INSERT INTO idempotency_keys (scope, key) VALUES ($1,$2) ON CONFLICT DO NOTHING RETURNING true`, scope, key).Scan(&inserted)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return inserted, nil
}
