package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/trial-screener/internal/common"
	"github.com/joseph-ayodele/trial-screener/internal/entity"
)

type RunRepository interface {
	Save(ctx context.Context, run *entity.Run) (*entity.Run, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Run, error)
	// List returns the newest runs first; limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*entity.Run, error)
}

type runRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepository{db: db, logger: logger}
}

// runRow is the stored shape of an entity.Run; the field order matches so
// the two convert directly.
type runRow struct {
	ID            uuid.UUID `sql:"id"`
	CriteriaPath  string    `sql:"criteria_path"`
	CriteriaPages string    `sql:"criteria_pages"`
	CasePath      string    `sql:"case_path"`
	Criteria      string    `sql:"criteria_text"`
	Case          string    `sql:"case_text"`
	Verdict       string    `sql:"verdict"`
	Success       bool      `sql:"success"`
	Notices       string    `sql:"notices"`
	Model         string    `sql:"model"`
	RequestID     string    `sql:"request_id"`
	CreatedAt     time.Time `sql:"created_at"`
}

func (r runRow) entity() *entity.Run {
	run := entity.Run(r)
	run.CreatedAt = run.CreatedAt.UTC()
	return &run
}

func (r *runRepository) Save(ctx context.Context, run *entity.Run) (*entity.Run, error) {
	out := *run
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now()
	}
	// postgres keeps microseconds
	out.CreatedAt = out.CreatedAt.UTC().Truncate(time.Microsecond)

	q, args := r.db.builder().Insert(runsTableName).
		Columns(runColumns()...).
		Values(out.ID, out.CreatedAt, out.CriteriaPath, out.CriteriaPages, out.CasePath,
			out.Criteria, out.Case, out.Verdict, out.Success, out.Notices, out.Model, out.RequestID).
		Query()
	if _, err := r.db.drv.DB().ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("store.run.save_failed", "run_id", out.ID, "error", err)
		return nil, common.StoreError("save run", err)
	}
	r.logger.Info("store.run.saved", "run_id", out.ID, "success", out.Success)
	return &out, nil
}

func (r *runRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Run, error) {
	b := r.db.builder()
	q, args := b.Select(runColumns()...).
		From(b.Table(runsTableName)).
		Where(entsql.EQ("id", id)).
		Query()
	rows, err := r.query(ctx, q, args)
	if err != nil {
		r.logger.Error("store.run.get_failed", "run_id", id, "error", err)
		return nil, common.StoreError("get run", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	return rows[0].entity(), nil
}

func (r *runRepository) List(ctx context.Context, limit int) ([]*entity.Run, error) {
	b := r.db.builder()
	sel := b.Select(runColumns()...).
		From(b.Table(runsTableName)).
		OrderBy(entsql.Desc("created_at"), "id")
	if limit > 0 {
		sel.Limit(limit)
	}
	q, args := sel.Query()
	rows, err := r.query(ctx, q, args)
	if err != nil {
		r.logger.Error("store.run.list_failed", "error", err)
		return nil, common.StoreError("list runs", err)
	}
	out := make([]*entity.Run, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.entity())
	}
	return out, nil
}

func (r *runRepository) query(ctx context.Context, q string, args []any) ([]runRow, error) {
	rows, err := r.db.drv.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.logger.Warn("store.rows_close_failed", "error", err)
		}
	}(rows)

	var out []runRow
	if err := entsql.ScanSlice(rows, &out); err != nil {
		return nil, err
	}
	return out, rows.Err()
}
