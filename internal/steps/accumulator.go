package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var ErrNegativeSteps = errors.New("steps must not be negative")

// Accumulator owns today's step counter and the daily goal. Every mutation
// is persisted, the in-memory state stays authoritative if saving fails.
type Accumulator struct {
	mu    sync.Mutex
	state DailyStepState

	store          kvstore.Store
	location       *time.Location
	now            func() time.Time
	metricsManager *metrics.Manager
}

type AccumulatorOption func(*Accumulator)

func WithClock(now func() time.Time) AccumulatorOption {
	return func(a *Accumulator) {
		a.now = now
	}
}

func WithLocation(loc *time.Location) AccumulatorOption {
	return func(a *Accumulator) {
		if loc != nil {
			a.location = loc
		}
	}
}

func WithMetrics(metricsManager *metrics.Manager) AccumulatorOption {
	return func(a *Accumulator) {
		a.metricsManager = metricsManager
	}
}

// NewAccumulator restores the persisted state, or starts from defaults.
func NewAccumulator(ctx context.Context, store kvstore.Store, opts ...AccumulatorOption) *Accumulator {
	a := &Accumulator{
		store:    store,
		location: time.Local,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	today := a.today()
	data, err := store.Load(ctx, StoreKey)
	switch {
	case err == nil:
		a.state = decodeState(data, today)
	case errors.Is(err, kvstore.ErrNotFound):
		log.Debugf("steps: no persisted state, starting with defaults")
		a.state = DefaultState(today)
	default:
		log.Errorf("steps: load persisted state: %s", err)
		a.state = DefaultState(today)
	}
	a.reportGauge()

	return a
}

func (a *Accumulator) today() string {
	return dateOf(a.now(), a.location)
}

func (a *Accumulator) State() DailyStepState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Accumulator) SetCurrentSteps(ctx context.Context, steps int) (DailyStepState, error) {
	if steps < 0 {
		return a.State(), ErrNegativeSteps
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.CurrentSteps = steps
	return a.state, a.persist(ctx)
}

// AddSteps ignores non-positive deltas, the counter never goes down within a day.
func (a *Accumulator) AddSteps(ctx context.Context, delta int) (DailyStepState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if delta <= 0 {
		log.Tracef("steps: ignoring non-positive delta %d", delta)
		return a.state, nil
	}

	a.state.CurrentSteps += delta
	if a.metricsManager != nil {
		a.metricsManager.CounterStepsAdded.Add(float64(delta))
	}
	return a.state, a.persist(ctx)
}

// SetDailyGoal stores the goal as given. Range checks belong to the caller.
func (a *Accumulator) SetDailyGoal(ctx context.Context, goal int) (DailyStepState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.DailyGoal = goal
	return a.state, a.persist(ctx)
}

func (a *Accumulator) ResetSteps(ctx context.Context) (DailyStepState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.resetLocked()
	return a.state, a.persist(ctx)
}

// CheckAndResetForNewDay resets the counter when the stored date is not today.
// Calling it again on the same day does nothing.
func (a *Accumulator) CheckAndResetForNewDay(ctx context.Context) (reset bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	today := a.today()
	if a.state.LastResetDate == today {
		return false, nil
	}

	log.Debugf("steps: day changed [%s] -> [%s], resetting %d steps", a.state.LastResetDate, today, a.state.CurrentSteps)
	a.resetLocked()
	if a.metricsManager != nil {
		a.metricsManager.CounterStepRollovers.Inc()
	}
	return true, a.persist(ctx)
}

func (a *Accumulator) resetLocked() {
	a.state.CurrentSteps = 0
	a.state.LastResetDate = a.today()
}

// persist must be called with a.mu held.
func (a *Accumulator) persist(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "steps.accumulator.persist")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("current_steps", a.state.CurrentSteps))

	a.reportGauge()

	data, err := json.Marshal(a.state)
	if err != nil {
		return fmt.Errorf("marshal step state: %w", err)
	}
	if err := a.store.Save(ctx, StoreKey, data); err != nil {
		log.Errorf("steps: persist state: %s", err)
		return fmt.Errorf("persist step state: %w", err)
	}
	return nil
}

func (a *Accumulator) reportGauge() {
	if a.metricsManager != nil {
		a.metricsManager.GaugeCurrentSteps.Set(float64(a.state.CurrentSteps))
	}
}

// RunRolloverChecks checks for a new day on every tick until ctx is done.
func (a *Accumulator) RunRolloverChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debugln("steps: rollover checks stopped")
			return
		case <-ticker.C:
			if _, err := a.CheckAndResetForNewDay(ctx); err != nil {
				log.Errorf("steps: rollover check: %s", err)
			}
		}
	}
}
