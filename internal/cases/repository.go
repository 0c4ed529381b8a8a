package cases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/query"
	"github.com/JaimeStill/triage/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a Postgres-backed case store.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "cases"),
		pagination: pagination,
	}
}

func (r *repo) Insert(ctx context.Context, cmd CreateCommand) (*Case, error) {
	if !cmd.Severity.Escalates() {
		return nil, ErrInvalidSeverity
	}

	q := fmt.Sprintf(`
		INSERT INTO public.cases AS c (patient_id, patient_email, prompt, image, ai_response, severity)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s`, projection.Columns())

	args := []any{
		cmd.PatientID,
		cmd.PatientEmail,
		cmd.Prompt,
		cmd.Image,
		cmd.AIResponse,
		string(cmd.Severity),
	}

	c, err := repository.QueryOne(ctx, r.db, q, args, scanCase)
	if err != nil {
		return nil, fmt.Errorf("insert case: %w", errMap.Map(err))
	}

	r.logger.Info("case created", "id", c.ID, "patient_id", c.PatientID)
	return &c, nil
}

func (r *repo) Select(
	ctx context.Context,
	filter Filter,
	page pagination.PageRequest,
) (*pagination.PageResult[Case], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection).
		OrderByFields(append([]query.SortField{defaultSort}, page.Sort...)).
		WhereSearch(page.Search, "Prompt", "PatientEmail", "AIResponse")

	filter.Apply(qb)

	countSQL, countArgs := qb.BuildCount()
	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)

	var (
		total int
		data  []Case
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := r.db.QueryRowContext(gctx, countSQL, countArgs...).Scan(&total); err != nil {
			return fmt.Errorf("count cases: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		var err error
		data, err = repository.QueryMany(gctx, r.db, pageSQL, pageArgs, scanCase)
		if err != nil {
			return fmt.Errorf("select cases: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	result := pagination.NewPageResult(data, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Case, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	c, err := repository.QueryOne(ctx, r.db, q, args, scanCase)
	if err != nil {
		if mapped := errMap.Map(err); errors.Is(mapped, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: find case: %w", ErrQueryFailed, err)
	}
	return &c, nil
}

func (r *repo) Respond(ctx context.Context, id uuid.UUID, cmd RespondCommand) (*Case, error) {
	q := fmt.Sprintf(`
		UPDATE public.cases AS c
		SET doctor_response = $1, doctor_id = $2
		WHERE c.id = $3 AND c.doctor_response IS NULL
		RETURNING %s`, projection.Columns())

	args := []any{cmd.DoctorResponse, cmd.DoctorID, id}

	c, err := repository.QueryOne(ctx, r.db, q, args, scanCase)
	if err == nil {
		r.logger.Info("case resolved", "id", c.ID, "doctor_id", cmd.DoctorID)
		return &c, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("respond to case %s: %w", id, err)
	}

	if _, err := r.Find(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrAlreadyResolved
}
