package workout

//go:generate mockgen -source=$GOFILE -destination=workout_mocks_test.go -package=workout_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/fittrack/internal/program"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type workoutsRepo interface {
	Add(ctx context.Context, draftID string, submission Submission) (*Workout, error)
	Get(ctx context.Context, id int) (*Workout, error)
	List(ctx context.Context, page, size int) (_ []Workout, total int, err error)
	Delete(ctx context.Context, id int) error
}

type programSource interface {
	DayExercises(programID string, day int) ([]program.ExerciseTemplate, error)
}

type SubmitRequest struct {
	// Duration of the workout in seconds.
	Duration int `json:"duration"`
}

type WeightUnitRequest struct {
	WeightUnit string `json:"weightUnit"`
}

type WeightUnitResponse struct {
	WeightUnit WeightUnit `json:"weightUnit"`
}

type ListResponse struct {
	Workouts []Workout `json:"workouts"`
	Total    int       `json:"total"`
}

type DeleteWorkoutResponse struct {
	DeletedID int `json:"deletedId"`
}

type Handler struct {
	drafts   *DraftStore
	repo     workoutsRepo
	programs programSource
}

func NewHandler(drafts *DraftStore, repo workoutsRepo, programs programSource) *Handler {
	return &Handler{
		drafts:   drafts,
		repo:     repo,
		programs: programs,
	}
}

func (h *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/workout/draft", h.HandleGetDraft).Methods("GET", "OPTIONS").Name("get-draft")
	r.HandleFunc("/workout/draft", h.HandleResetDraft).Methods("DELETE", "OPTIONS").Name("reset-draft")
	r.HandleFunc("/workout/draft/exercises", h.HandleAddExercise).Methods("POST", "OPTIONS").Name("draft-add-exercise")
	r.HandleFunc("/workout/draft/exercises/{exid}", h.HandleRemoveExercise).Methods("DELETE", "OPTIONS").Name("draft-remove-exercise")
	r.HandleFunc("/workout/draft/exercises/{exid}/sets", h.HandleAddSet).Methods("POST", "OPTIONS").Name("draft-add-set")
	r.HandleFunc("/workout/draft/exercises/{exid}/sets/{setid}", h.HandleUpdateSet).Methods("PUT", "OPTIONS").Name("draft-update-set")
	r.HandleFunc("/workout/draft/exercises/{exid}/sets/{setid}", h.HandleDeleteSet).Methods("DELETE", "OPTIONS").Name("draft-delete-set")
	r.HandleFunc("/workout/draft/program/{programId}/day/{day:[0-9]+}", h.HandleLoadProgramDay).Methods("POST", "OPTIONS").Name("draft-load-program")
	r.HandleFunc("/workout/draft/submit", h.HandleSubmit).Methods("POST", "OPTIONS").Name("draft-submit")
	r.HandleFunc("/workout/unit", h.HandleGetWeightUnit).Methods("GET", "OPTIONS").Name("get-weight-unit")
	r.HandleFunc("/workout/unit", h.HandleSetWeightUnit).Methods("PUT", "OPTIONS").Name("set-weight-unit")
	r.HandleFunc("/workout/list/page/{page}/size/{size}", h.HandleList).Methods("GET", "OPTIONS").Name("list-workouts")
	r.HandleFunc("/workout/{id:[0-9]+}", h.HandleGet).Methods("GET", "OPTIONS").Name("get-workout")
	r.HandleFunc("/workout/{id:[0-9]+}", h.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-workout")
}

func (h *Handler) HandleGetDraft(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.drafts.Draft(), http.StatusOK)
}

func (h *Handler) HandleResetDraft(w http.ResponseWriter, _ *http.Request) {
	h.drafts.ResetWorkout()
	writeJSON(w, h.drafts.Draft(), http.StatusOK)
}

func (h *Handler) HandleAddExercise(w http.ResponseWriter, r *http.Request) {
	var ref ExerciseRef
	if !decodeJSON(w, r, &ref) {
		return
	}

	exercise, err := h.drafts.AddExerciseToWorkout(ref)
	if err != nil {
		http.Error(w, "error, exercise name empty", http.StatusBadRequest)
		return
	}

	log.Debugf("draft: exercise [%s] added as %s", exercise.DisplayName, exercise.LocalID)
	writeJSON(w, exercise, http.StatusCreated)
}

func (h *Handler) HandleRemoveExercise(w http.ResponseWriter, r *http.Request) {
	exerciseID := mux.Vars(r)["exid"]
	if err := h.drafts.RemoveExercise(exerciseID); err != nil {
		writeDraftError(w, err)
		return
	}
	writeJSON(w, h.drafts.Draft(), http.StatusOK)
}

func (h *Handler) HandleAddSet(w http.ResponseWriter, r *http.Request) {
	var req SetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	set, err := h.drafts.AddSet(mux.Vars(r)["exid"], patch)
	if err != nil {
		writeDraftError(w, err)
		return
	}
	writeJSON(w, set, http.StatusCreated)
}

func (h *Handler) HandleUpdateSet(w http.ResponseWriter, r *http.Request) {
	var req SetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	set, err := h.drafts.UpdateSet(vars["exid"], vars["setid"], patch)
	if err != nil {
		writeDraftError(w, err)
		return
	}
	writeJSON(w, set, http.StatusOK)
}

func (h *Handler) HandleDeleteSet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.drafts.DeleteSet(vars["exid"], vars["setid"]); err != nil {
		writeDraftError(w, err)
		return
	}
	writeJSON(w, h.drafts.Draft(), http.StatusOK)
}

func (h *Handler) HandleLoadProgramDay(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	day, err := strconv.Atoi(vars["day"])
	if err != nil {
		http.Error(w, "error, day NaN", http.StatusBadRequest)
		return
	}

	templates, err := h.programs.DayExercises(vars["programId"], day)
	if err != nil {
		if errors.Is(err, program.ErrProgramNotFound) || errors.Is(err, program.ErrDayNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Errorf("load program [%s] day %d: %s", vars["programId"], day, err)
		http.Error(w, "failed to load program", http.StatusInternalServerError)
		return
	}

	if _, err := h.drafts.LoadProgramDay(templates); err != nil {
		writeDraftError(w, err)
		return
	}
	writeJSON(w, h.drafts.Draft(), http.StatusOK)
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.submit")
	defer span.End()

	var req SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Duration < 0 {
		http.Error(w, "error, negative duration", http.StatusBadRequest)
		return
	}

	saved, err := h.drafts.Submit(ctx, h.repo, req.Duration)
	if err != nil {
		if errors.Is(err, ErrEmptyDraft) {
			http.Error(w, "error, workout has no exercises", http.StatusBadRequest)
			return
		}
		log.Errorf("submit workout draft: %s", err)
		http.Error(w, "failed to save workout, draft kept", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.Int("workout.id", saved.ID))
	writeJSON(w, saved, http.StatusCreated)
}

func (h *Handler) HandleGetWeightUnit(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, WeightUnitResponse{WeightUnit: h.drafts.WeightUnit()}, http.StatusOK)
}

func (h *Handler) HandleSetWeightUnit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.unit")
	defer span.End()

	var req WeightUnitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	unit, err := ParseWeightUnit(req.WeightUnit)
	if err != nil {
		http.Error(w, "error, weight unit must be kg or lbs", http.StatusBadRequest)
		return
	}

	if err := h.drafts.SetWeightUnit(ctx, unit); err != nil {
		// the new unit is in use even if saving it failed
		log.Errorf("set weight unit %s: %s", unit, err)
		http.Error(w, "failed to save weight unit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, WeightUnitResponse{WeightUnit: unit}, http.StatusOK)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.get")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	workout, err := h.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get workout %d: %s", id, err)
		http.Error(w, "failed to get workout", http.StatusInternalServerError)
		return
	}
	writeJSON(w, workout, http.StatusOK)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.delete")
	defer span.End()

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, id NaN", http.StatusBadRequest)
		return
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete workout %d: %s", id, err)
		http.Error(w, "failed to delete workout", http.StatusInternalServerError)
		return
	}
	writeJSON(w, DeleteWorkoutResponse{DeletedID: id}, http.StatusOK)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workout.list")
	defer span.End()

	vars := mux.Vars(r)
	page, err := strconv.Atoi(vars["page"])
	if err != nil || page < 1 {
		http.Error(w, "error, invalid page", http.StatusBadRequest)
		return
	}
	size, err := strconv.Atoi(vars["size"])
	if err != nil || size < 1 {
		http.Error(w, "error, invalid size", http.StatusBadRequest)
		return
	}

	workouts, total, err := h.repo.List(ctx, page, size)
	if err != nil {
		log.Errorf("failed to list workouts: %s", err)
		http.Error(w, "failed to list workouts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, ListResponse{Workouts: workouts, Total: total}, http.StatusOK)
}

func writeDraftError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrExerciseNotFound):
		http.Error(w, "exercise not found in draft", http.StatusNotFound)
	case errors.Is(err, ErrSetNotFound):
		http.Error(w, "set not found in draft", http.StatusNotFound)
	case errors.Is(err, ErrDuplicateLocalID):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Errorf("draft edit: %s", err)
		http.Error(w, "draft edit failed", http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if !pkg.IsJSONRequest(r) {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Tracef("workout, unmarshal json params [%s]: %s", r.URL.Path, err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	respJson, err := json.Marshal(v)
	if err != nil {
		log.Errorf("failed to marshal workout response: %s", err)
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, status)
}
