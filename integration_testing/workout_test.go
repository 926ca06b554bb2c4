package integration_testing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2beens/fittrack/internal/db"
	"github.com/2beens/fittrack/internal/workout"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestWorkoutSubmitListDelete() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	status, body := s.do(ctx, "POST", "/workout/draft/exercises", workout.ExerciseRef{Name: "Bench Press", ExternalID: "0025"})
	require.Equal(t, http.StatusCreated, status, string(body))
	var exercise workout.DraftExercise
	require.NoError(t, json.Unmarshal(body, &exercise))

	status, body = s.do(ctx, "POST", fmt.Sprintf("/workout/draft/exercises/%s/sets", exercise.LocalID), map[string]any{
		"reps":   "8",
		"weight": "60,5",
	})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = s.do(ctx, "POST", "/workout/draft/submit", workout.SubmitRequest{Duration: 1800})
	require.Equal(t, http.StatusCreated, status, string(body))
	var saved workout.Workout
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.Positive(t, saved.ID)
	assert.Equal(t, 1800, saved.Duration)
	require.Len(t, saved.Exercises, 1)
	assert.Equal(t, "0025", saved.Exercises[0].ExerciseRef)
	require.Len(t, saved.Exercises[0].Sets, 1)
	assert.Equal(t, 60.5, *saved.Exercises[0].Sets[0].Weight)

	var rows int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM workout WHERE id = $1`, saved.ID).Scan(&rows))
	assert.Equal(t, 1, rows)

	// the draft is empty again
	status, body = s.do(ctx, "GET", "/workout/draft", nil)
	require.Equal(t, http.StatusOK, status)
	var draft workout.Draft
	require.NoError(t, json.Unmarshal(body, &draft))
	assert.Empty(t, draft.Exercises)

	status, body = s.do(ctx, "GET", "/workout/list/page/1/size/10", nil)
	require.Equal(t, http.StatusOK, status)
	var list workout.ListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.GreaterOrEqual(t, list.Total, 1)

	status, body = s.do(ctx, "GET", fmt.Sprintf("/workout/%d", saved.ID), nil)
	require.Equal(t, http.StatusOK, status)
	var fetched workout.Workout
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, saved.DraftID, fetched.DraftID)
	assert.Equal(t, saved.Exercises, fetched.Exercises)

	status, _ = s.do(ctx, "DELETE", fmt.Sprintf("/workout/%d", saved.ID), nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.do(ctx, "GET", fmt.Sprintf("/workout/%d", saved.ID), nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func (s *IntegrationTestSuite) TestWorkoutRepo_AddIsIdempotent() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost: "localhost",
		DBPort: s.pgPort,
		DBName: testDBName,
	})
	require.NoError(t, err)
	defer dbPool.Close()

	repo := workout.NewRepo(dbPool)
	reps := 5
	submission, err := workout.BuildSubmission([]workout.DraftExercise{
		{
			LocalID:     "ex-1",
			DisplayName: "Deadlift",
			Sets:        []workout.DraftSet{{LocalID: "s-1", Reps: &reps, WeightUnit: workout.WeightUnitKg}},
		},
	}, time.Now().UTC().Truncate(time.Second), 900)
	require.NoError(t, err)

	draftID := uuid.NewString()
	first, err := repo.Add(ctx, draftID, submission)
	require.NoError(t, err)
	second, err := repo.Add(ctx, draftID, submission)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Deadlift", second.Exercises[0].ExerciseRef)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, count)
}
