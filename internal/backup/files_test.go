package backup

import (
	"testing"
	"time"

	"github.com/2beens/fittrack/internal/workout"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
)

func testWorkouts(n int, firstCreated time.Time) []workout.Workout {
	workouts := make([]workout.Workout, 0, n)
	for i := 0; i < n; i++ {
		workouts = append(workouts, workout.Workout{
			ID:        i + 1,
			DraftID:   "draft",
			CreatedAt: firstCreated.Add(time.Duration(i) * time.Hour),
		})
	}
	return workouts
}

func TestChunk(t *testing.T) {
	assert.Empty(t, chunk(nil, 200))

	chunks := chunk(testWorkouts(450, time.Now()), 200)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 200)
	assert.Len(t, chunks[1], 200)
	assert.Len(t, chunks[2], 50)
	assert.Equal(t, 201, chunks[1][0].ID)
	assert.Equal(t, 450, chunks[2][49].ID)

	chunks = chunk(testWorkouts(200, time.Now()), 200)
	require.Len(t, chunks, 1)
	assert.Len(t, chunks[0], 200)
}

func TestNextBackupFileName(t *testing.T) {
	baseTime := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "workouts-14-3-2026", nextBackupFileName(baseTime, nil))
	assert.Equal(t, "workouts-14-3-2026", nextBackupFileName(baseTime, []string{"initial-14-3-2026_1.json"}))
	assert.Equal(t, "workouts-14-3-2026-2", nextBackupFileName(baseTime, []string{
		"workouts-14-3-2026_1.json",
		"workouts-14-3-2026_2.json",
	}))
	assert.Equal(t, "workouts-14-3-2026-3", nextBackupFileName(baseTime, []string{
		"workouts-14-3-2026_1.json",
		"workouts-14-3-2026-2_1.json",
	}))
}

func TestLastBackupTimeAndCreatedAfter(t *testing.T) {
	files := []*drive.File{
		{Name: "initial-1-3-2026_1.json", CreatedTime: "2026-03-01T08:00:00Z"},
		{Name: "workouts-8-3-2026_1.json", CreatedTime: "2026-03-08T08:00:00Z"},
		{Name: "broken.json", CreatedTime: "yesterday"},
	}
	last := lastBackupTime(files)
	assert.Equal(t, time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC), last.UTC())
	assert.True(t, lastBackupTime(nil).IsZero())

	workouts := testWorkouts(5, time.Date(2026, 3, 8, 6, 0, 0, 0, time.UTC))
	newer := createdAfter(workouts, last)
	require.Len(t, newer, 2)
	assert.Equal(t, 4, newer[0].ID)
	assert.Equal(t, 5, newer[1].ID)

	assert.Len(t, createdAfter(workouts, time.Time{}), 5)
}
