package steps

//go:generate mockgen -source=$GOFILE -destination=sensor_mocks_test.go -package=steps

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSensorUnavailable  = errors.New("step sensor unavailable")
	ErrPermissionDenied   = errors.New("step sensor permission denied")
	ErrHistoryUnsupported = errors.New("step history not available")
)

// SampleFunc receives the cumulative step count reported by the sensor.
type SampleFunc func(ctx context.Context, cumulative int)

type Subscription interface {
	Remove()
}

// Sensor is the device motion sensor as seen from the service.
type Sensor interface {
	RequestPermission(ctx context.Context) (bool, error)
	IsAvailable(ctx context.Context) (bool, error)
	WatchStepCount(onSample SampleFunc) (Subscription, error)
	// StepCountSince returns ErrHistoryUnsupported when the platform has no history.
	StepCountSince(ctx context.Context, start, end time.Time) (int, error)
}
