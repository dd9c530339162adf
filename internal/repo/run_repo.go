package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/conveyor/internal/domain"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
)

// RunRepo — репозиторий истории run'ов.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `id, task, status, plan, steps, options, trigger,
	started_at, finished_at, failed_step, error, created_at`

// Create сохраняет новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	rec, err := encodeRun(run)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO runs (id, task, status, plan, steps, options, trigger, started_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.Task,
		run.Status,
		rec.plan,
		rec.steps,
		rec.options,
		nullString(run.Trigger),
		run.StartedAt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Update сохраняет текущее состояние run.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	rec, err := encodeRun(run)
	if err != nil {
		return err
	}

	query := `
		UPDATE runs
		SET status = $2, steps = $3, started_at = $4, finished_at = $5,
		    failed_step = $6, error = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		rec.steps,
		run.StartedAt,
		run.FinishedAt,
		nullString(run.FailedStep),
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// List возвращает историю run'ов, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	filter = filter.normalize()

	query := `SELECT ` + runColumns + `
		FROM runs
		WHERE ($1::text IS NULL OR task = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Task),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Count возвращает число run'ов под фильтром без учёта Limit и Offset.
func (r *RunRepo) Count(ctx context.Context, filter RunFilter) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM runs
		WHERE ($1::text IS NULL OR task = $1)
		  AND ($2::text IS NULL OR status = $2)
	`,
		nullString(filter.Task),
		nullString(string(filter.Status)),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return total, nil
}

// --- Helpers ---

// RunFilter — параметры фильтрации истории.
type RunFilter struct {
	Task   string
	Status domain.RunStatus
	Limit  int
	Offset int
}

// normalize подставляет лимит по умолчанию и ограничивает максимум.
func (f RunFilter) normalize() RunFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// runRecord — JSON-колонки run.
type runRecord struct {
	plan    []byte
	steps   []byte
	options []byte
}

func encodeRun(run *domain.Run) (*runRecord, error) {
	plan := run.Plan
	if plan == nil {
		plan = []string{}
	}
	stepsResults := run.Steps
	if stepsResults == nil {
		stepsResults = []domain.StepResult{}
	}
	options := run.Options
	if options == nil {
		options = map[string]string{}
	}

	var rec runRecord
	var err error
	if rec.plan, err = json.Marshal(plan); err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	if rec.steps, err = json.Marshal(stepsResults); err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}
	if rec.options, err = json.Marshal(options); err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	return &rec, nil
}

func (rec *runRecord) decode(run *domain.Run) error {
	if rec.plan != nil {
		if err := json.Unmarshal(rec.plan, &run.Plan); err != nil {
			return fmt.Errorf("unmarshal plan: %w", err)
		}
	}
	if rec.steps != nil {
		if err := json.Unmarshal(rec.steps, &run.Steps); err != nil {
			return fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	if rec.options != nil {
		if err := json.Unmarshal(rec.options, &run.Options); err != nil {
			return fmt.Errorf("unmarshal options: %w", err)
		}
	}
	return nil
}

// scanRun сканирует строку в Run. pgx.Rows тоже реализует pgx.Row.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var rec runRecord
	var trigger, failedStep, runError *string

	err := row.Scan(
		&run.ID,
		&run.Task,
		&run.Status,
		&rec.plan,
		&rec.steps,
		&rec.options,
		&trigger,
		&run.StartedAt,
		&run.FinishedAt,
		&failedStep,
		&runError,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if err := rec.decode(&run); err != nil {
		return nil, err
	}
	run.Trigger = deref(trigger)
	run.FailedStep = deref(failedStep)
	run.Error = deref(runError)

	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
