package steps

import (
	"encoding/json"
	"time"
)

const (
	StoreKey = "step-store"

	DefaultDailyGoal = 10000
	MinDailyGoal     = 100
	MaxDailyGoal     = 100000

	dateLayout = "2006-01-02"
)

type DailyStepState struct {
	CurrentSteps  int    `json:"currentSteps"`
	DailyGoal     int    `json:"dailyGoal"`
	LastResetDate string `json:"lastResetDate"`
}

func DefaultState(today string) DailyStepState {
	return DailyStepState{
		CurrentSteps:  0,
		DailyGoal:     DefaultDailyGoal,
		LastResetDate: today,
	}
}

// Progress is the share of the daily goal reached, capped at 1.
func (s DailyStepState) Progress() float64 {
	if s.DailyGoal <= 0 {
		return 0
	}
	p := float64(s.CurrentSteps) / float64(s.DailyGoal)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

func ValidDailyGoal(goal int) bool {
	return goal >= MinDailyGoal && goal <= MaxDailyGoal
}

func dateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

// decodeState reads a persisted state field by field. Missing or malformed
// fields fall back to their defaults, a broken document yields the default state.
func decodeState(data []byte, today string) DailyStepState {
	state := DefaultState(today)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return state
	}

	if raw, ok := fields["currentSteps"]; ok {
		var steps int
		if err := json.Unmarshal(raw, &steps); err == nil && steps >= 0 {
			state.CurrentSteps = steps
		}
	}
	if raw, ok := fields["dailyGoal"]; ok {
		var goal int
		if err := json.Unmarshal(raw, &goal); err == nil {
			state.DailyGoal = goal
		}
	}
	if raw, ok := fields["lastResetDate"]; ok {
		var date string
		if err := json.Unmarshal(raw, &date); err == nil {
			if _, err := time.Parse(dateLayout, date); err == nil {
				state.LastResetDate = date
			}
		}
	}

	return state
}
