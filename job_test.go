package chaosmonkey

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeJob(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	cron, err := NewCronTrigger("0 30 10 * * *", madrid)
	require.NoError(t, err)

	runAt := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		trigger Trigger
	}{
		{"date", NewDateTrigger(runAt)},
		{"cron", cron},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &Job{
				ID:          NewID(),
				Name:        "plan-1",
				Func:        "attack",
				PlanID:      NewID(),
				Args:        json.RawMessage(`{"ref":"api_request:ApiRequest","args":{"method":"GET"}}`),
				Trigger:     tt.trigger,
				NextRunTime: runAt,
			}

			data, err := EncodeJob(job)
			require.NoError(t, err)
			got, err := DecodeJob(data)
			require.NoError(t, err)

			assert.Equal(t, job.ID, got.ID)
			assert.Equal(t, job.Name, got.Name)
			assert.Equal(t, job.Func, got.Func)
			assert.Equal(t, job.PlanID, got.PlanID)
			assert.JSONEq(t, string(job.Args), string(got.Args))
			assert.True(t, job.NextRunTime.Equal(got.NextRunTime))
			assert.Equal(t, job.Trigger.String(), got.Trigger.String())
		})
	}
}

func TestEncodeJobWithoutTrigger(t *testing.T) {
	_, err := EncodeJob(&Job{ID: NewID()})
	assert.ErrorIs(t, err, ErrInvalidTrigger)
}

func TestDecodeJobRejectsBadState(t *testing.T) {
	_, err := DecodeJob([]byte(`{"version":99,"id":"x","trigger":{"kind":"date"}}`))
	assert.ErrorIs(t, err, ErrUnsupportedJobState)

	_, err = DecodeJob([]byte(`{"version":1,"id":"x","trigger":{"kind":"interval"}}`))
	assert.ErrorIs(t, err, ErrInvalidTrigger)

	_, err = DecodeJob([]byte("garbage"))
	assert.Error(t, err)
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 32)
	assert.NotEqual(t, id, NewID())
}
