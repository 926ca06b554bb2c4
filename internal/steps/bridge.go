package steps

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/fittrack/internal/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

type State int

const (
	StateIdle State = iota
	StateAwaitingBaseline
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingBaseline:
		return "awaiting_baseline"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{StateIdle, StateAwaitingBaseline, StateStreaming} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown tracking state %q", text)
}

type Availability int

const (
	AvailabilityChecking Availability = iota
	AvailabilityAvailable
	AvailabilityUnavailable
)

func (a Availability) String() string {
	switch a {
	case AvailabilityChecking:
		return "checking"
	case AvailabilityAvailable:
		return "available"
	case AvailabilityUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("availability(%d)", int(a))
	}
}

func (a Availability) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Availability) UnmarshalText(text []byte) error {
	for _, candidate := range []Availability{AvailabilityChecking, AvailabilityAvailable, AvailabilityUnavailable} {
		if candidate.String() == string(text) {
			*a = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown sensor availability %q", text)
}

// tracking is the pure part of the bridge: the state and the baseline.
type tracking struct {
	state    State
	baseline int
}

// advance applies one cumulative sensor reading and returns the new tracking
// state and the delta to add (zero when nothing should be added).
func advance(t tracking, cumulative int) (tracking, int) {
	switch t.state {
	case StateAwaitingBaseline:
		return tracking{state: StateStreaming, baseline: cumulative}, 0
	case StateStreaming:
		delta := cumulative - t.baseline
		if delta <= 0 {
			return t, 0
		}
		return tracking{state: StateStreaming, baseline: cumulative}, delta
	default:
		return t, 0
	}
}

type stepCounter interface {
	SetCurrentSteps(ctx context.Context, steps int) (DailyStepState, error)
	AddSteps(ctx context.Context, delta int) (DailyStepState, error)
}

type BridgeStatus struct {
	State        State        `json:"state"`
	Availability Availability `json:"availability"`
	IsTracking   bool         `json:"isTracking"`
	Baseline     *int         `json:"baseline,omitempty"`
}

// Bridge turns the cumulative sensor feed into step deltas for the counter.
// Nothing here is persisted, each start establishes a fresh baseline.
type Bridge struct {
	mu           sync.Mutex
	tracking     tracking
	availability Availability
	session      uint64
	subscription Subscription

	sensor         Sensor
	counter        stepCounter
	location       *time.Location
	now            func() time.Time
	metricsManager *metrics.Manager
}

func NewBridge(
	sensor Sensor,
	counter stepCounter,
	location *time.Location,
	now func() time.Time,
	metricsManager *metrics.Manager,
) *Bridge {
	if location == nil {
		location = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Bridge{
		tracking:       tracking{state: StateIdle},
		availability:   AvailabilityChecking,
		sensor:         sensor,
		counter:        counter,
		location:       location,
		now:            now,
		metricsManager: metricsManager,
	}
}

func (b *Bridge) Status() BridgeStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked()
}

func (b *Bridge) statusLocked() BridgeStatus {
	status := BridgeStatus{
		State:        b.tracking.state,
		Availability: b.availability,
		IsTracking:   b.tracking.state != StateIdle,
	}
	if b.tracking.state == StateStreaming {
		baseline := b.tracking.baseline
		status.Baseline = &baseline
	}
	return status
}

// Start begins tracking. Availability or permission problems leave the bridge
// idle with the sensor reported unavailable. Starting while already
// tracking keeps the live subscription.
func (b *Bridge) Start(ctx context.Context) (BridgeStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tracking.state != StateIdle {
		return b.statusLocked(), nil
	}

	b.availability = AvailabilityChecking
	available, err := b.sensor.IsAvailable(ctx)
	if err != nil || !available {
		b.availability = AvailabilityUnavailable
		if err != nil {
			log.Debugf("step bridge: availability check: %s", err)
		}
		return b.statusLocked(), ErrSensorUnavailable
	}
	b.availability = AvailabilityAvailable

	granted, err := b.sensor.RequestPermission(ctx)
	if err != nil {
		b.availability = AvailabilityUnavailable
		return b.statusLocked(), fmt.Errorf("request permission: %w", err)
	}
	if !granted {
		b.availability = AvailabilityUnavailable
		return b.statusLocked(), ErrPermissionDenied
	}

	b.readHistoryLocked(ctx)

	b.session++
	session := b.session
	sub, err := b.sensor.WatchStepCount(func(ctx context.Context, cumulative int) {
		b.onSample(ctx, session, cumulative)
	})
	if err != nil {
		log.Errorf("step bridge: subscribe: %s", err)
		return b.statusLocked(), fmt.Errorf("watch step count: %w", err)
	}

	b.subscription = sub
	b.tracking = tracking{state: StateAwaitingBaseline}
	b.reportTracking(true)
	log.Debugf("step bridge: tracking started, session %d", session)

	return b.statusLocked(), nil
}

// readHistoryLocked seeds the counter with the platform since-midnight count, best effort.
func (b *Bridge) readHistoryLocked(ctx context.Context) {
	now := b.now().In(b.location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.location)

	steps, err := b.sensor.StepCountSince(ctx, midnight, now)
	if err != nil {
		if !errors.Is(err, ErrHistoryUnsupported) {
			log.Warnf("step bridge: read history: %s", err)
		}
		return
	}
	if _, err := b.counter.SetCurrentSteps(ctx, steps); err != nil {
		log.Errorf("step bridge: set steps from history: %s", err)
	}
}

// Stop removes the subscription first and then clears the baseline.
// Samples from the stopped session that are still in flight get dropped.
func (b *Bridge) Stop() BridgeStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscription != nil {
		b.subscription.Remove()
		b.subscription = nil
	}
	b.tracking = tracking{state: StateIdle}
	b.session++
	b.reportTracking(false)
	log.Debugln("step bridge: tracking stopped")

	return b.statusLocked()
}

func (b *Bridge) onSample(ctx context.Context, session uint64, cumulative int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if session != b.session || b.tracking.state == StateIdle {
		b.countSample("stale")
		return
	}

	prevState := b.tracking.state
	next, delta := advance(b.tracking, cumulative)
	b.tracking = next

	switch {
	case prevState == StateAwaitingBaseline:
		b.countSample("baseline")
	case delta > 0:
		b.countSample("delta")
		if _, err := b.counter.AddSteps(ctx, delta); err != nil {
			log.Errorf("step bridge: add %d steps: %s", delta, err)
		}
	default:
		b.countSample("ignored")
	}
}

func (b *Bridge) countSample(outcome string) {
	if b.metricsManager != nil {
		b.metricsManager.CounterSensorSamples.With(prometheus.Labels{"outcome": outcome}).Inc()
	}
}

func (b *Bridge) reportTracking(active bool) {
	if b.metricsManager == nil {
		return
	}
	if active {
		b.metricsManager.GaugeTrackingActive.Set(1)
	} else {
		b.metricsManager.GaugeTrackingActive.Set(0)
	}
}
