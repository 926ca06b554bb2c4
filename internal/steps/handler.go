package steps

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2beens/fittrack/internal/middleware"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"
	"github.com/2beens/fittrack/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type stepsAccumulator interface {
	State() DailyStepState
	SetCurrentSteps(ctx context.Context, steps int) (DailyStepState, error)
	SetDailyGoal(ctx context.Context, goal int) (DailyStepState, error)
	ResetSteps(ctx context.Context) (DailyStepState, error)
	CheckAndResetForNewDay(ctx context.Context) (bool, error)
}

type trackingBridge interface {
	Start(ctx context.Context) (BridgeStatus, error)
	Stop() BridgeStatus
	Status() BridgeStatus
}

type sensorFeed interface {
	ReportStatus(available, permissionGranted bool)
	ReportHistory(steps int, reportedAt time.Time)
	Push(ctx context.Context, cumulative int) int
}

type StepsResponse struct {
	DailyStepState
	Progress float64 `json:"progress"`
}

type GoalRequest struct {
	DailyGoal int `json:"dailyGoal"`
}

type CurrentStepsRequest struct {
	Steps int `json:"steps"`
}

type SensorStatusRequest struct {
	Available         bool `json:"available"`
	PermissionGranted bool `json:"permissionGranted"`
}

type SensorSampleRequest struct {
	Cumulative *int `json:"cumulative"`
}

type SensorSampleResponse struct {
	Delivered int          `json:"delivered"`
	Tracking  BridgeStatus `json:"tracking"`
}

type TrackingResponse struct {
	BridgeStatus
	Error string `json:"error,omitempty"`
}

type Handler struct {
	accumulator stepsAccumulator
	bridge      trackingBridge
	sensor      sensorFeed
	now         func() time.Time
}

func NewHandler(accumulator stepsAccumulator, bridge trackingBridge, sensor sensorFeed) *Handler {
	return &Handler{
		accumulator: accumulator,
		bridge:      bridge,
		sensor:      sensor,
		now:         time.Now,
	}
}

func (h *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	samplesPerMinute int,
	metricsManager *metrics.Manager,
) {
	mainRouter.HandleFunc("/steps", h.HandleGet).Methods("GET", "OPTIONS").Name("get-steps")
	mainRouter.HandleFunc("/steps/goal", h.HandleSetGoal).Methods("POST", "OPTIONS").Name("set-steps-goal")
	mainRouter.HandleFunc("/steps/reset", h.HandleReset).Methods("POST", "OPTIONS").Name("reset-steps")
	mainRouter.HandleFunc("/steps/current", h.HandleSetCurrent).Methods("POST", "OPTIONS").Name("set-current-steps")
	mainRouter.HandleFunc("/steps/tracking", h.HandleTrackingStatus).Methods("GET", "OPTIONS").Name("tracking-status")
	mainRouter.HandleFunc("/steps/tracking/start", h.HandleTrackingStart).Methods("POST", "OPTIONS").Name("tracking-start")
	mainRouter.HandleFunc("/steps/tracking/stop", h.HandleTrackingStop).Methods("POST", "OPTIONS").Name("tracking-stop")

	mainRouter.HandleFunc("/steps/sensor/status", h.HandleSensorStatus).Methods("POST", "OPTIONS").Name("sensor-status")
	mainRouter.HandleFunc("/steps/sensor/history", h.HandleSensorHistory).Methods("POST", "OPTIONS").Name("sensor-history")

	rateLimit := middleware.RateLimit(rateLimiter, "sensor-samples", samplesPerMinute, metricsManager)
	mainRouter.
		Handle("/steps/sensor/samples", rateLimit(http.HandlerFunc(h.HandleSensorSample))).
		Methods("POST", "OPTIONS").Name("sensor-samples")
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.steps.get")
	defer span.End()

	if _, err := h.accumulator.CheckAndResetForNewDay(ctx); err != nil {
		// state is still valid in memory
		log.Errorf("steps get, rollover check: %s", err)
	}

	h.writeState(w, h.accumulator.State(), http.StatusOK)
}

func (h *Handler) HandleSetGoal(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.steps.goal")
	defer span.End()

	var req GoalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !ValidDailyGoal(req.DailyGoal) {
		http.Error(w, "daily goal must be between 100 and 100000", http.StatusBadRequest)
		return
	}

	state, err := h.accumulator.SetDailyGoal(ctx, req.DailyGoal)
	if err != nil {
		log.Errorf("set daily goal %d: %s", req.DailyGoal, err)
		http.Error(w, "failed to save daily goal", http.StatusInternalServerError)
		return
	}

	h.writeState(w, state, http.StatusOK)
}

func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.steps.reset")
	defer span.End()

	state, err := h.accumulator.ResetSteps(ctx)
	if err != nil {
		log.Errorf("reset steps: %s", err)
		http.Error(w, "failed to save step reset", http.StatusInternalServerError)
		return
	}

	h.writeState(w, state, http.StatusOK)
}

func (h *Handler) HandleSetCurrent(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.steps.current")
	defer span.End()

	var req CurrentStepsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	state, err := h.accumulator.SetCurrentSteps(ctx, req.Steps)
	if err != nil {
		if errors.Is(err, ErrNegativeSteps) {
			http.Error(w, "steps must not be negative", http.StatusBadRequest)
			return
		}
		log.Errorf("set current steps %d: %s", req.Steps, err)
		http.Error(w, "failed to save current steps", http.StatusInternalServerError)
		return
	}

	h.writeState(w, state, http.StatusOK)
}

func (h *Handler) HandleTrackingStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, TrackingResponse{BridgeStatus: h.bridge.Status()}, http.StatusOK)
}

func (h *Handler) HandleTrackingStart(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.steps.tracking.start")
	defer span.End()

	status, err := h.bridge.Start(ctx)
	if err != nil {
		// availability and permission problems are reported, not failed
		switch {
		case errors.Is(err, ErrSensorUnavailable), errors.Is(err, ErrPermissionDenied):
			writeJSON(w, TrackingResponse{BridgeStatus: status, Error: err.Error()}, http.StatusOK)
		default:
			log.Errorf("tracking start: %s", err)
			writeJSON(w, TrackingResponse{BridgeStatus: status, Error: "failed to start tracking"}, http.StatusBadGateway)
		}
		return
	}

	writeJSON(w, TrackingResponse{BridgeStatus: status}, http.StatusOK)
}

func (h *Handler) HandleTrackingStop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, TrackingResponse{BridgeStatus: h.bridge.Stop()}, http.StatusOK)
}

func (h *Handler) HandleSensorStatus(w http.ResponseWriter, r *http.Request) {
	var req SensorStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.sensor.ReportStatus(req.Available, req.PermissionGranted)
	log.Debugf("sensor status reported: available=%t permission=%t", req.Available, req.PermissionGranted)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSensorHistory(w http.ResponseWriter, r *http.Request) {
	var req CurrentStepsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Steps < 0 {
		http.Error(w, "steps must not be negative", http.StatusBadRequest)
		return
	}

	h.sensor.ReportHistory(req.Steps, h.now())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSensorSample(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.steps.sensor.sample")
	defer span.End()

	var req SensorSampleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Cumulative == nil {
		http.Error(w, "cumulative missing", http.StatusBadRequest)
		return
	}

	delivered := h.sensor.Push(ctx, *req.Cumulative)
	writeJSON(w, SensorSampleResponse{
		Delivered: delivered,
		Tracking:  h.bridge.Status(),
	}, http.StatusOK)
}

func (h *Handler) writeState(w http.ResponseWriter, state DailyStepState, status int) {
	writeJSON(w, StepsResponse{
		DailyStepState: state,
		Progress:       state.Progress(),
	}, status)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if !pkg.IsJSONRequest(r) {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Tracef("steps, unmarshal json params [%s]: %s", r.URL.Path, err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	respJson, err := json.Marshal(v)
	if err != nil {
		log.Errorf("failed to marshal steps response: %s", err)
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respJson, status)
}
