package integration_testing

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/2beens/fittrack/internal/kvstore"
	"github.com/2beens/fittrack/internal/steps"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestStepsTracking() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	status, _ := s.do(ctx, "POST", "/steps/current", steps.CurrentStepsRequest{Steps: 0})
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(ctx, "POST", "/steps/sensor/status", steps.SensorStatusRequest{Available: true, PermissionGranted: true})
	require.Equal(t, http.StatusNoContent, status)

	status, body := s.do(ctx, "POST", "/steps/tracking/start", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var tracking steps.TrackingResponse
	require.NoError(t, json.Unmarshal(body, &tracking))
	assert.Empty(t, tracking.Error)
	assert.Equal(t, steps.StateAwaitingBaseline, tracking.State)

	for _, cumulative := range []int{1000, 1010, 1025} {
		c := cumulative
		status, body = s.do(ctx, "POST", "/steps/sensor/samples", steps.SensorSampleRequest{Cumulative: &c})
		require.Equal(t, http.StatusOK, status, string(body))
	}

	status, body = s.do(ctx, "GET", "/steps", nil)
	require.Equal(t, http.StatusOK, status)
	var stepsResp steps.StepsResponse
	require.NoError(t, json.Unmarshal(body, &stepsResp))
	assert.Equal(t, 25, stepsResp.CurrentSteps)

	stored, err := s.redisClient.Get(ctx, kvstore.RedisKey(steps.StoreKey)).Bytes()
	require.NoError(t, err)
	var persisted steps.DailyStepState
	require.NoError(t, json.Unmarshal(stored, &persisted))
	assert.Equal(t, 25, persisted.CurrentSteps)

	status, body = s.do(ctx, "POST", "/steps/tracking/stop", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &tracking))
	assert.Equal(t, steps.StateIdle, tracking.State)

	// samples after stop are not counted
	late := 2000
	status, _ = s.do(ctx, "POST", "/steps/sensor/samples", steps.SensorSampleRequest{Cumulative: &late})
	require.Equal(t, http.StatusOK, status)
	status, body = s.do(ctx, "GET", "/steps", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &stepsResp))
	assert.Equal(t, 25, stepsResp.CurrentSteps)
}
