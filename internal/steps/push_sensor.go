package steps

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// PushSensor is a Sensor fed by the device over HTTP: the app reports sensor
// status, since-midnight history and every cumulative reading.
type PushSensor struct {
	mu sync.Mutex

	statusKnown       bool
	available         bool
	permissionGranted bool

	historySteps      int
	historyReportedAt time.Time
	hasHistory        bool

	watchers      map[uint64]SampleFunc
	nextWatcherID uint64
}

type SensorStatus struct {
	Known             bool `json:"known"`
	Available         bool `json:"available"`
	PermissionGranted bool `json:"permissionGranted"`
}

func NewPushSensor() *PushSensor {
	return &PushSensor{
		watchers: make(map[uint64]SampleFunc),
	}
}

func (s *PushSensor) ReportStatus(available, permissionGranted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusKnown = true
	s.available = available
	s.permissionGranted = permissionGranted
}

func (s *PushSensor) Status() SensorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SensorStatus{
		Known:             s.statusKnown,
		Available:         s.available,
		PermissionGranted: s.permissionGranted,
	}
}

// ReportHistory stores the platform "steps since midnight" count, as read at reportedAt.
func (s *PushSensor) ReportHistory(steps int, reportedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historySteps = steps
	s.historyReportedAt = reportedAt
	s.hasHistory = true
}

func (s *PushSensor) RequestPermission(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permissionGranted, nil
}

func (s *PushSensor) IsAvailable(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.statusKnown {
		return false, ErrSensorUnavailable
	}
	return s.available, nil
}

func (s *PushSensor) StepCountSince(_ context.Context, start, end time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasHistory || s.historyReportedAt.Before(start) || s.historyReportedAt.After(end) {
		return 0, ErrHistoryUnsupported
	}
	return s.historySteps, nil
}

func (s *PushSensor) WatchStepCount(onSample SampleFunc) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.statusKnown || !s.available {
		return nil, ErrSensorUnavailable
	}

	id := s.nextWatcherID
	s.nextWatcherID++
	s.watchers[id] = onSample
	log.Tracef("push sensor: watcher %d added", id)

	return &pushSubscription{sensor: s, id: id}, nil
}

// Push delivers one cumulative reading to all watchers, in registration order.
// It returns the number of watchers reached.
func (s *PushSensor) Push(ctx context.Context, cumulative int) int {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.watchers))
	for id := range s.watchers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	callbacks := make([]SampleFunc, 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, s.watchers[id])
	}
	s.mu.Unlock()

	// callbacks run outside the lock, they may call back into the sensor
	for _, cb := range callbacks {
		cb(ctx, cumulative)
	}
	return len(callbacks)
}

func (s *PushSensor) WatchersCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *PushSensor) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, id)
	log.Tracef("push sensor: watcher %d removed", id)
}

type pushSubscription struct {
	sensor *PushSensor
	id     uint64
	once   sync.Once
}

func (p *pushSubscription) Remove() {
	p.once.Do(func() {
		p.sensor.remove(p.id)
	})
}
