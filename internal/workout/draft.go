package workout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExerciseNotFound  = errors.New("draft exercise not found")
	ErrSetNotFound       = errors.New("draft set not found")
	ErrInvalidWeightUnit = errors.New("invalid weight unit")
	ErrEmptyExerciseName = errors.New("exercise name empty")
	ErrDuplicateLocalID  = errors.New("duplicate local id in draft")
)

type WeightUnit string

const (
	WeightUnitKg  WeightUnit = "kg"
	WeightUnitLbs WeightUnit = "lbs"

	DefaultWeightUnit = WeightUnitKg
)

func ParseWeightUnit(s string) (WeightUnit, error) {
	switch WeightUnit(strings.ToLower(strings.TrimSpace(s))) {
	case WeightUnitKg:
		return WeightUnitKg, nil
	case WeightUnitLbs:
		return WeightUnitLbs, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWeightUnit, s)
	}
}

type DraftSet struct {
	LocalID     string     `json:"localId"`
	Reps        *int       `json:"reps"`
	Weight      *float64   `json:"weight"`
	WeightUnit  WeightUnit `json:"weightUnit"`
	IsCompleted bool       `json:"isCompleted"`
}

type DraftExercise struct {
	LocalID            string     `json:"localId"`
	ExternalExerciseID string     `json:"externalExerciseId"`
	DisplayName        string     `json:"displayName"`
	Sets               []DraftSet `json:"sets"`
	Thumbnail          string     `json:"thumbnail,omitempty"`
}

// ExerciseRef is what a client picks from the exercise database.
type ExerciseRef struct {
	Name       string `json:"name"`
	ExternalID string `json:"externalId"`
	Thumbnail  string `json:"thumbnail,omitempty"`
}

// SetPatch changes only the fields it carries. Nil reps, weight or
// completion and an empty unit leave the current values; ClearReps and
// ClearWeight empty those fields.
type SetPatch struct {
	Reps        *int
	Weight      *float64
	WeightUnit  WeightUnit
	IsCompleted *bool
	ClearReps   bool
	ClearWeight bool
}

func (s DraftSet) clone() DraftSet {
	c := s
	if s.Reps != nil {
		reps := *s.Reps
		c.Reps = &reps
	}
	if s.Weight != nil {
		weight := *s.Weight
		c.Weight = &weight
	}
	return c
}

func (e DraftExercise) clone() DraftExercise {
	c := e
	c.Sets = make([]DraftSet, len(e.Sets))
	for i := range e.Sets {
		c.Sets[i] = e.Sets[i].clone()
	}
	return c
}

func cloneExercises(exercises []DraftExercise) []DraftExercise {
	out := make([]DraftExercise, len(exercises))
	for i := range exercises {
		out[i] = exercises[i].clone()
	}
	return out
}

// The functions below never modify their input, they return a rebuilt list.

func withSetAdded(exercises []DraftExercise, exerciseID string, set DraftSet) ([]DraftExercise, error) {
	return mapExercise(exercises, exerciseID, func(e DraftExercise) (DraftExercise, error) {
		e.Sets = append(e.Sets, set.clone())
		return e, nil
	})
}

func withSetUpdated(exercises []DraftExercise, exerciseID, setID string, patch SetPatch) ([]DraftExercise, error) {
	return mapExercise(exercises, exerciseID, func(e DraftExercise) (DraftExercise, error) {
		found := false
		for i := range e.Sets {
			if e.Sets[i].LocalID != setID {
				continue
			}
			found = true
			e.Sets[i] = applyPatch(e.Sets[i], patch)
		}
		if !found {
			return e, ErrSetNotFound
		}
		return e, nil
	})
}

func withSetDeleted(exercises []DraftExercise, exerciseID, setID string) ([]DraftExercise, error) {
	return mapExercise(exercises, exerciseID, func(e DraftExercise) (DraftExercise, error) {
		kept := make([]DraftSet, 0, len(e.Sets))
		for _, s := range e.Sets {
			if s.LocalID != setID {
				kept = append(kept, s)
			}
		}
		if len(kept) == len(e.Sets) {
			return e, ErrSetNotFound
		}
		e.Sets = kept
		return e, nil
	})
}

func withExerciseRemoved(exercises []DraftExercise, exerciseID string) ([]DraftExercise, error) {
	out := make([]DraftExercise, 0, len(exercises))
	for _, e := range exercises {
		if e.LocalID != exerciseID {
			out = append(out, e.clone())
		}
	}
	if len(out) == len(exercises) {
		return nil, ErrExerciseNotFound
	}
	return out, nil
}

// withLocalIDs copies the list, giving entries without a local id a fresh one.
// Exercise ids must be unique in the draft and set ids within their exercise.
func withLocalIDs(exercises []DraftExercise, newID func() string) ([]DraftExercise, error) {
	out := cloneExercises(exercises)
	exerciseIDs := make(map[string]bool, len(out))
	for i := range out {
		if out[i].LocalID == "" {
			out[i].LocalID = newID()
		}
		if exerciseIDs[out[i].LocalID] {
			return nil, fmt.Errorf("%w: exercise %s", ErrDuplicateLocalID, out[i].LocalID)
		}
		exerciseIDs[out[i].LocalID] = true

		setIDs := make(map[string]bool, len(out[i].Sets))
		for j := range out[i].Sets {
			if out[i].Sets[j].LocalID == "" {
				out[i].Sets[j].LocalID = newID()
			}
			if setIDs[out[i].Sets[j].LocalID] {
				return nil, fmt.Errorf("%w: set %s", ErrDuplicateLocalID, out[i].Sets[j].LocalID)
			}
			setIDs[out[i].Sets[j].LocalID] = true
		}
	}
	return out, nil
}

// mapExercise copies the list and applies fn to a copy of the matching exercise.
func mapExercise(
	exercises []DraftExercise,
	exerciseID string,
	fn func(DraftExercise) (DraftExercise, error),
) ([]DraftExercise, error) {
	out := cloneExercises(exercises)
	for i := range out {
		if out[i].LocalID != exerciseID {
			continue
		}
		updated, err := fn(out[i])
		if err != nil {
			return nil, err
		}
		out[i] = updated
		return out, nil
	}
	return nil, ErrExerciseNotFound
}

func applyPatch(s DraftSet, patch SetPatch) DraftSet {
	if patch.ClearReps {
		s.Reps = nil
	}
	if patch.Reps != nil {
		reps := *patch.Reps
		s.Reps = &reps
	}
	if patch.ClearWeight {
		s.Weight = nil
	}
	if patch.Weight != nil {
		weight := *patch.Weight
		s.Weight = &weight
	}
	if patch.WeightUnit != "" {
		s.WeightUnit = patch.WeightUnit
	}
	if patch.IsCompleted != nil {
		s.IsCompleted = *patch.IsCompleted
	}
	return s
}
