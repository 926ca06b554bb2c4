package workout

import (
	"errors"
	"time"
)

var ErrEmptyDraft = errors.New("workout draft has no exercises")

type SubmittedSet struct {
	Reps       *int       `json:"reps"`
	Weight     *float64   `json:"weight"`
	WeightUnit WeightUnit `json:"weightUnit"`
}

type SubmittedExercise struct {
	ExerciseRef string         `json:"exerciseRef"`
	Sets        []SubmittedSet `json:"sets"`
}

// Submission is the document a finished draft is turned into before it is saved.
type Submission struct {
	Date      time.Time           `json:"date"`
	Duration  int                 `json:"duration"`
	Exercises []SubmittedExercise `json:"exercises"`
}

// exerciseRef points to the external exercise, custom exercises are saved by name.
func exerciseRef(e DraftExercise) string {
	if e.ExternalExerciseID != "" {
		return e.ExternalExerciseID
	}
	return e.DisplayName
}

func BuildSubmission(exercises []DraftExercise, date time.Time, durationSeconds int) (Submission, error) {
	if len(exercises) == 0 {
		return Submission{}, ErrEmptyDraft
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	submission := Submission{
		Date:      date,
		Duration:  durationSeconds,
		Exercises: make([]SubmittedExercise, 0, len(exercises)),
	}
	for _, e := range exercises {
		sets := make([]SubmittedSet, 0, len(e.Sets))
		for _, s := range e.Sets {
			c := s.clone()
			sets = append(sets, SubmittedSet{
				Reps:       c.Reps,
				Weight:     c.Weight,
				WeightUnit: c.WeightUnit,
			})
		}
		submission.Exercises = append(submission.Exercises, SubmittedExercise{
			ExerciseRef: exerciseRef(e),
			Sets:        sets,
		})
	}
	return submission, nil
}
