package workout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidNumber = errors.New("invalid number")

// NumberInput keeps what the client typed into a reps or weight field. Both
// JSON strings and numbers are accepted, parsing happens later. Set tells an
// absent field apart from an explicit null or empty string.
type NumberInput struct {
	Raw string
	Set bool
}

func (n *NumberInput) UnmarshalJSON(data []byte) error {
	n.Set = true
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		n.Raw = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n.Raw = s
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidNumber, data)
	}
	n.Raw = num.String()
	return nil
}

func ParseReps(in NumberInput) (*int, error) {
	raw := strings.TrimSpace(in.Raw)
	if raw == "" {
		return nil, nil
	}
	reps, err := strconv.Atoi(raw)
	if err != nil || reps < 0 {
		return nil, fmt.Errorf("%w: reps %q", ErrInvalidNumber, in.Raw)
	}
	return &reps, nil
}

// ParseWeight accepts a decimal comma, as typed on many phone keyboards.
func ParseWeight(in NumberInput) (*float64, error) {
	raw := strings.TrimSpace(in.Raw)
	if raw == "" {
		return nil, nil
	}
	weight, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return nil, fmt.Errorf("%w: weight %q", ErrInvalidNumber, in.Raw)
	}
	return &weight, nil
}

type SetRequest struct {
	Reps        NumberInput `json:"reps"`
	Weight      NumberInput `json:"weight"`
	WeightUnit  string      `json:"weightUnit"`
	IsCompleted *bool       `json:"isCompleted"`
}

// toPatch leaves out fields the request did not carry; a null or empty
// reps or weight clears that field.
func (r SetRequest) toPatch() (SetPatch, error) {
	reps, err := ParseReps(r.Reps)
	if err != nil {
		return SetPatch{}, err
	}
	weight, err := ParseWeight(r.Weight)
	if err != nil {
		return SetPatch{}, err
	}
	patch := SetPatch{
		Reps:        reps,
		Weight:      weight,
		IsCompleted: r.IsCompleted,
		ClearReps:   r.Reps.Set && reps == nil,
		ClearWeight: r.Weight.Set && weight == nil,
	}
	if strings.TrimSpace(r.WeightUnit) != "" {
		unit, err := ParseWeightUnit(r.WeightUnit)
		if err != nil {
			return SetPatch{}, err
		}
		patch.WeightUnit = unit
	}
	return patch, nil
}
