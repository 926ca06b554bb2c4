package workout

import (
	"github.com/2beens/fittrack/internal/program"
)

func draftFromTemplates(templates []program.ExerciseTemplate, newID func() string, preferred WeightUnit) []DraftExercise {
	exercises := make([]DraftExercise, 0, len(templates))
	for _, t := range templates {
		unit := preferred
		if t.WeightUnit != "" {
			if parsed, err := ParseWeightUnit(t.WeightUnit); err == nil {
				unit = parsed
			}
		}

		sets := make([]DraftSet, 0, t.Sets)
		for i := 0; i < t.Sets; i++ {
			sets = append(sets, applyPatch(DraftSet{
				LocalID:    newID(),
				WeightUnit: unit,
			}, SetPatch{Reps: t.Reps, Weight: t.Weight}))
		}

		exercises = append(exercises, DraftExercise{
			LocalID:            newID(),
			ExternalExerciseID: t.ExternalID,
			DisplayName:        t.Name,
			Sets:               sets,
			Thumbnail:          t.Thumbnail,
		})
	}
	return exercises
}

// LoadProgramDay replaces the draft exercises with the ones planned for a program day.
func (s *DraftStore) LoadProgramDay(templates []program.ExerciseTemplate) ([]DraftExercise, error) {
	var loaded []DraftExercise
	err := s.UpdateWorkoutExercises(func(_ []DraftExercise) []DraftExercise {
		loaded = draftFromTemplates(templates, s.newID, s.weightUnit)
		return loaded
	})
	if err != nil {
		return nil, err
	}
	return cloneExercises(loaded), nil
}
