package program

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrograms = `
programs:
  - id: ppl
    name: Push Pull Legs
    days:
      - day: 1
        name: Push
        exercises:
          - name: Bench Press
            external_id: "0025"
            sets: 4
            reps: 8
            weight: 60
            weight_unit: kg
          - name: Dips
            sets: 3
      - day: 3
        name: Pull
        exercises:
          - name: Barbell Row
            external_id: "0027"
            sets: 4
  - id: full-body
    name: Full Body
    days: []
`

func TestParse(t *testing.T) {
	catalog, err := Parse([]byte(testPrograms))
	require.NoError(t, err)

	programs := catalog.Programs()
	require.Len(t, programs, 2)
	assert.Equal(t, "full-body", programs[0].ID)
	assert.Equal(t, "ppl", programs[1].ID)

	exercises, err := catalog.DayExercises("ppl", 1)
	require.NoError(t, err)
	require.Len(t, exercises, 2)
	assert.Equal(t, "Bench Press", exercises[0].Name)
	assert.Equal(t, "0025", exercises[0].ExternalID)
	assert.Equal(t, 4, exercises[0].Sets)
	require.NotNil(t, exercises[0].Reps)
	assert.Equal(t, 8, *exercises[0].Reps)
	require.NotNil(t, exercises[0].Weight)
	assert.Equal(t, 60.0, *exercises[0].Weight)
	assert.Equal(t, "kg", exercises[0].WeightUnit)
	assert.Nil(t, exercises[1].Reps)
	assert.Nil(t, exercises[1].Weight)

	_, err = catalog.DayExercises("ppl", 2)
	assert.ErrorIs(t, err, ErrDayNotFound)
	_, err = catalog.DayExercises("bro-split", 1)
	assert.ErrorIs(t, err, ErrProgramNotFound)
}

func TestParse_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{name: "NotYaml", yaml: "programs: [: oops"},
		{name: "UnknownField", yaml: "programs:\n  - id: a\n    colour: red\n"},
		{name: "MissingID", yaml: "programs:\n  - name: a\n"},
		{name: "DayOutOfRange", yaml: "programs:\n  - id: a\n    days:\n      - day: 8\n"},
		{name: "DuplicateDay", yaml: "programs:\n  - id: a\n    days:\n      - day: 1\n      - day: 1\n"},
		{name: "EmptyExerciseName", yaml: "programs:\n  - id: a\n    days:\n      - day: 1\n        exercises:\n          - sets: 3\n"},
		{name: "DuplicateProgram", yaml: "programs:\n  - id: a\n  - id: a\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "programs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testPrograms), 0o600))

	catalog, err := Load(path)
	require.NoError(t, err)
	_, err = catalog.Get("ppl")
	assert.NoError(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDayExercises_ReturnsCopy(t *testing.T) {
	catalog, err := Parse([]byte(testPrograms))
	require.NoError(t, err)

	exercises, err := catalog.DayExercises("ppl", 3)
	require.NoError(t, err)
	exercises[0].Name = "changed"

	again, err := catalog.DayExercises("ppl", 3)
	require.NoError(t, err)
	assert.Equal(t, "Barbell Row", again[0].Name)
}

func TestEmpty(t *testing.T) {
	_, err := Empty().Get("ppl")
	assert.ErrorIs(t, err, ErrProgramNotFound)
	assert.Empty(t, Empty().Programs())
}
