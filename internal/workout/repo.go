package workout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrWorkoutNotFound = errors.New("workout not found")

// Workout is a saved submission.
type Workout struct {
	ID        int                 `json:"id"`
	DraftID   string              `json:"draftId"`
	Date      time.Time           `json:"date"`
	Duration  int                 `json:"duration"`
	Exercises []SubmittedExercise `json:"exercises"`
	CreatedAt time.Time           `json:"createdAt"`
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Add saves a submission. Submitting the same draft again returns the
// workout saved the first time.
func (r *Repo) Add(ctx context.Context, draftID string, submission Submission) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("draft_id", draftID))

	exercisesJson, err := json.Marshal(submission.Exercises)
	if err != nil {
		return nil, fmt.Errorf("marshal exercises: %w", err)
	}

	var id int
	var createdAt time.Time
	err = r.db.QueryRow(
		ctx,
		`INSERT INTO workout
				(draft_id, date, duration, exercises)
				VALUES ($1, $2, $3, $4)
			RETURNING id, created_at;`,
		draftID, submission.Date, submission.Duration, exercisesJson,
	).Scan(&id, &createdAt)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			span.AddEvent("draft already saved")
			return r.GetByDraftID(ctx, draftID)
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("workout.id", id))

	return &Workout{
		ID:        id,
		DraftID:   draftID,
		Date:      submission.Date,
		Duration:  submission.Duration,
		Exercises: submission.Exercises,
		CreatedAt: createdAt,
	}, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, draft_id, date, duration, exercises, created_at FROM workout WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.single(rows)
}

func (r *Repo) GetByDraftID(ctx context.Context, draftID string) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.getbydraft")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("draft_id", draftID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, draft_id, date, duration, exercises, created_at FROM workout WHERE draft_id = $1;`,
		draftID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.single(rows)
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(ctx, `DELETE FROM workout WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

// List returns one page of workouts, newest first.
func (r *Repo) List(ctx context.Context, page, size int) (_ []Workout, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("page", page))
	span.SetAttributes(attribute.Int("size", size))

	if page < 1 {
		return nil, -1, errors.New("page must be greater than 0")
	}
	if size < 1 {
		return nil, -1, errors.New("size must be greater than 0")
	}

	countAll, err := r.Count(ctx)
	if err != nil {
		return nil, -1, err
	}

	limit, offset := pageBounds(countAll, page, size)
	span.SetAttributes(attribute.Int("count_all", countAll))
	span.SetAttributes(attribute.Int("limit", limit))
	span.SetAttributes(attribute.Int("offset", offset))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, draft_id, date, duration, exercises, created_at
			FROM workout
			ORDER BY date DESC, id DESC
			LIMIT $1
			OFFSET $2;`,
		limit, offset,
	)
	if err != nil {
		return nil, -1, err
	}
	defer rows.Close()

	workouts, err := rows2workouts(rows)
	if err != nil {
		return nil, -1, err
	}
	return workouts, countAll, nil
}

// ListAll returns every saved workout, oldest first.
func (r *Repo) ListAll(ctx context.Context) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT id, draft_id, date, duration, exercises, created_at FROM workout ORDER BY id ASC;`,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return rows2workouts(rows)
}

func (r *Repo) Count(ctx context.Context) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workout.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM workout;`).Scan(&count); err != nil {
		return -1, fmt.Errorf("count workouts: %w", err)
	}
	return count, nil
}

func (r *Repo) single(rows pgx.Rows) (*Workout, error) {
	workouts, err := rows2workouts(rows)
	if err != nil {
		return nil, err
	}
	if len(workouts) != 1 {
		return nil, ErrWorkoutNotFound
	}
	return &workouts[0], nil
}

// pageBounds clamps the last page so it is always full, like the gym stats list.
func pageBounds(countAll, page, size int) (limit, offset int) {
	limit = size
	offset = (page - 1) * size
	if countAll <= limit {
		return countAll, 0
	}
	if countAll-offset < limit {
		offset = countAll - limit
	}
	return limit, offset
}

func rows2workouts(rows pgx.Rows) ([]Workout, error) {
	workouts := make([]Workout, 0)
	for rows.Next() {
		var w Workout
		var exercisesBytes []byte
		if err := rows.Scan(&w.ID, &w.DraftID, &w.Date, &w.Duration, &exercisesBytes, &w.CreatedAt); err != nil {
			return nil, err
		}
		if len(exercisesBytes) > 0 {
			if err := json.Unmarshal(exercisesBytes, &w.Exercises); err != nil {
				return nil, fmt.Errorf("unmarshal exercises for workout %d: %w", w.ID, err)
			}
		}
		if w.Exercises == nil {
			w.Exercises = make([]SubmittedExercise, 0)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return workouts, nil
}
