package workout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const StoreKey = "workout-store"

type persistedPreferences struct {
	WeightUnit WeightUnit `json:"weightUnit"`
}

// Draft is a copy of the in-progress workout.
type Draft struct {
	DraftID    string          `json:"draftId"`
	StartedAt  time.Time       `json:"startedAt"`
	WeightUnit WeightUnit      `json:"weightUnit"`
	Exercises  []DraftExercise `json:"exercises"`
}

// DraftStore holds the single in-progress workout. Only the weight unit
// preference is persisted, the draft itself lives in memory until submitted.
type DraftStore struct {
	mu         sync.Mutex
	draftID    string
	startedAt  time.Time
	exercises  []DraftExercise
	weightUnit WeightUnit

	store          kvstore.Store
	now            func() time.Time
	newID          func() string
	metricsManager *metrics.Manager
}

type DraftStoreOption func(*DraftStore)

func WithClock(now func() time.Time) DraftStoreOption {
	return func(s *DraftStore) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) DraftStoreOption {
	return func(s *DraftStore) {
		s.newID = newID
	}
}

func WithMetrics(metricsManager *metrics.Manager) DraftStoreOption {
	return func(s *DraftStore) {
		s.metricsManager = metricsManager
	}
}

func NewDraftStore(ctx context.Context, store kvstore.Store, opts ...DraftStoreOption) *DraftStore {
	s := &DraftStore{
		store:      store,
		now:        time.Now,
		newID:      uuid.NewString,
		weightUnit: DefaultWeightUnit,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.weightUnit = s.loadWeightUnit(ctx)
	s.resetLocked()
	return s
}

func (s *DraftStore) loadWeightUnit(ctx context.Context) WeightUnit {
	data, err := s.store.Load(ctx, StoreKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Errorf("workout: load preferences: %s", err)
		}
		return DefaultWeightUnit
	}

	var prefs persistedPreferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		log.Warnf("workout: malformed preferences, using defaults: %s", err)
		return DefaultWeightUnit
	}
	unit, err := ParseWeightUnit(string(prefs.WeightUnit))
	if err != nil {
		return DefaultWeightUnit
	}
	return unit
}

func (s *DraftStore) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftLocked()
}

func (s *DraftStore) draftLocked() Draft {
	return Draft{
		DraftID:    s.draftID,
		StartedAt:  s.startedAt,
		WeightUnit: s.weightUnit,
		Exercises:  cloneExercises(s.exercises),
	}
}

func (s *DraftStore) Exercises() []DraftExercise {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneExercises(s.exercises)
}

func (s *DraftStore) WeightUnit() WeightUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weightUnit
}

// AddExerciseToWorkout appends a new exercise with no sets.
func (s *DraftStore) AddExerciseToWorkout(ref ExerciseRef) (DraftExercise, error) {
	name := strings.TrimSpace(ref.Name)
	if name == "" {
		return DraftExercise{}, ErrEmptyExerciseName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exercise := DraftExercise{
		LocalID:            s.newID(),
		ExternalExerciseID: ref.ExternalID,
		DisplayName:        name,
		Sets:               []DraftSet{},
		Thumbnail:          ref.Thumbnail,
	}
	next := cloneExercises(s.exercises)
	next = append(next, exercise)
	s.setExercisesLocked(next)

	return exercise.clone(), nil
}

// SetWorkoutExercises replaces the whole list. Entries without a local id get
// one; duplicate ids are rejected and leave the draft as it was.
func (s *DraftStore) SetWorkoutExercises(exercises []DraftExercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := withLocalIDs(exercises, s.newID)
	if err != nil {
		return err
	}
	s.setExercisesLocked(next)
	return nil
}

// UpdateWorkoutExercises replaces the list with what update returns. update
// gets a copy of the current list and runs with the store locked.
func (s *DraftStore) UpdateWorkoutExercises(update func(current []DraftExercise) []DraftExercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := withLocalIDs(update(cloneExercises(s.exercises)), s.newID)
	if err != nil {
		return err
	}
	s.setExercisesLocked(next)
	return nil
}

func (s *DraftStore) RemoveExercise(exerciseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := withExerciseRemoved(s.exercises, exerciseID)
	if err != nil {
		return err
	}
	s.setExercisesLocked(next)
	return nil
}

// AddSet appends a set to an exercise. A set without a unit gets the preferred one.
func (s *DraftStore) AddSet(exerciseID string, patch SetPatch) (DraftSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := applyPatch(DraftSet{
		LocalID:    s.newID(),
		WeightUnit: s.weightUnit,
	}, patch)

	next, err := withSetAdded(s.exercises, exerciseID, set)
	if err != nil {
		return DraftSet{}, err
	}
	s.setExercisesLocked(next)
	return set.clone(), nil
}

func (s *DraftStore) UpdateSet(exerciseID, setID string, patch SetPatch) (DraftSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := withSetUpdated(s.exercises, exerciseID, setID, patch)
	if err != nil {
		return DraftSet{}, err
	}
	s.setExercisesLocked(next)

	for _, e := range next {
		if e.LocalID != exerciseID {
			continue
		}
		for _, set := range e.Sets {
			if set.LocalID == setID {
				return set.clone(), nil
			}
		}
	}
	return DraftSet{}, ErrSetNotFound
}

func (s *DraftStore) DeleteSet(exerciseID, setID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := withSetDeleted(s.exercises, exerciseID, setID)
	if err != nil {
		return err
	}
	s.setExercisesLocked(next)
	return nil
}

// SetWeightUnit changes and persists the preferred unit. Existing sets keep theirs.
func (s *DraftStore) SetWeightUnit(ctx context.Context, unit WeightUnit) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workout.draft.weightunit")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("unit", string(unit)))

	if _, err := ParseWeightUnit(string(unit)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.weightUnit = unit
	data, err := json.Marshal(persistedPreferences{WeightUnit: unit})
	if err != nil {
		return fmt.Errorf("marshal workout preferences: %w", err)
	}
	if err := s.store.Save(ctx, StoreKey, data); err != nil {
		return fmt.Errorf("persist workout preferences: %w", err)
	}
	return nil
}

// ResetWorkout discards the draft and starts an empty one.
func (s *DraftStore) ResetWorkout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *DraftStore) resetLocked() {
	s.draftID = s.newID()
	s.startedAt = s.now()
	s.setExercisesLocked([]DraftExercise{})
}

func (s *DraftStore) setExercisesLocked(exercises []DraftExercise) {
	s.exercises = exercises
	if s.metricsManager != nil {
		s.metricsManager.GaugeDraftExercises.Set(float64(len(exercises)))
	}
}

type workoutSaver interface {
	Add(ctx context.Context, draftID string, submission Submission) (*Workout, error)
}

// Submit saves a snapshot of the draft. The store is not locked while the
// saver runs. The draft is cleared after a successful save unless it was reset
// in the meantime; on failure it stays as it is so the client can retry.
func (s *DraftStore) Submit(ctx context.Context, saver workoutSaver, durationSeconds int) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workout.draft.submit")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mu.Lock()
	draftID := s.draftID
	submission, err := BuildSubmission(s.exercises, s.now(), durationSeconds)
	s.mu.Unlock()

	span.SetAttributes(attribute.String("draft_id", draftID))
	if err != nil {
		s.countSubmission("rejected")
		return nil, err
	}

	saved, err := saver.Add(ctx, draftID, submission)
	if err != nil {
		s.countSubmission("failed")
		return nil, fmt.Errorf("save workout: %w", err)
	}

	log.Debugf("workout draft %s saved as workout %d", draftID, saved.ID)
	s.countSubmission("saved")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draftID == draftID {
		s.resetLocked()
	}
	return saved, nil
}

func (s *DraftStore) countSubmission(result string) {
	if s.metricsManager != nil {
		s.metricsManager.CounterDraftSubmissions.With(prometheus.Labels{"result": result}).Inc()
	}
}
