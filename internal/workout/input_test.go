package workout

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetRequest_Decode(t *testing.T) {
	testCases := []struct {
		name           string
		body           string
		expectedReps   *int
		expectedWeight *float64
		expectedUnit   WeightUnit
		expectedClear  [2]bool // reps, weight
		expectErr      bool
	}{
		{
			name:           "Strings",
			body:           `{"reps":"8","weight":"62.5","weightUnit":"kg"}`,
			expectedReps:   intPtr(8),
			expectedWeight: floatPtr(62.5),
			expectedUnit:   WeightUnitKg,
		},
		{
			name:           "Numbers",
			body:           `{"reps":10,"weight":135}`,
			expectedReps:   intPtr(10),
			expectedWeight: floatPtr(135),
		},
		{
			name:           "DecimalComma",
			body:           `{"weight":"22,5","weightUnit":"lbs"}`,
			expectedWeight: floatPtr(22.5),
			expectedUnit:   WeightUnitLbs,
		},
		{
			name:          "EmptyAndNull",
			body:          `{"reps":"","weight":null}`,
			expectedClear: [2]bool{true, true},
		},
		{
			name:         "RepsOnly",
			body:         `{"reps":"6"}`,
			expectedReps: intPtr(6),
		},
		{
			name: "Missing",
			body: `{}`,
		},
		{
			name:      "RepsNotANumber",
			body:      `{"reps":"eight"}`,
			expectErr: true,
		},
		{
			name:      "FractionalReps",
			body:      `{"reps":"8.5"}`,
			expectErr: true,
		},
		{
			name:      "NegativeWeight",
			body:      `{"weight":"-5"}`,
			expectErr: true,
		},
		{
			name:      "BadUnit",
			body:      `{"weightUnit":"stone"}`,
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var req SetRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))

			patch, err := req.toPatch()
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedReps, patch.Reps)
			assert.Equal(t, tc.expectedWeight, patch.Weight)
			assert.Equal(t, tc.expectedUnit, patch.WeightUnit)
			assert.Equal(t, tc.expectedClear, [2]bool{patch.ClearReps, patch.ClearWeight})
		})
	}
}

func TestNumberInput_RejectsObjects(t *testing.T) {
	var req SetRequest
	assert.Error(t, json.Unmarshal([]byte(`{"reps":{"value":8}}`), &req))
}
