package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/logger"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/metrics"
	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	m, err := NewManager(&types.CronConfig{Enabled: true, Timezone: "Asia/Ho_Chi_Minh"}, logger.NewNop(), metrics.NewNoop())
	require.NoError(t, err)
	return m
}

func TestManager_AddValidation(t *testing.T) {
	m := newTestManager(t)
	noop := func(context.Context) error { return nil }

	assert.ErrorIs(t, m.Add("", "* * * * * *", noop), types.ErrCronJobNameIsEmpty)
	assert.ErrorIs(t, m.Add("sweep", "", noop), types.ErrCronExpressionInvalid)
	assert.ErrorIs(t, m.Add("sweep", "* * * * * *", nil), types.ErrCronJobIsNil)
	assert.ErrorIs(t, m.Add("sweep", "not a spec", noop), types.ErrCronExpressionInvalid)

	require.NoError(t, m.Add("sweep", "0 */5 * * * *", noop))
	assert.ErrorIs(t, m.Add("sweep", "0 */5 * * * *", noop), types.ErrCronJobExists)

	jobs := m.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "sweep", jobs[0].Name)

	require.NoError(t, m.Remove("sweep"))
	assert.ErrorIs(t, m.Remove("sweep"), types.ErrCronJobNotFound)
}

func TestManager_TriggerRecordsRun(t *testing.T) {
	m := newTestManager(t)

	calls := 0
	require.NoError(t, m.Add("retention", "0 0 3 * * *", func(ctx context.Context) error {
		calls++
		return nil
	}))
	require.NoError(t, m.Add("broken", "0 0 3 * * *", func(ctx context.Context) error {
		return errors.New("disk full")
	}))
	require.NoError(t, m.Add("panics", "0 0 3 * * *", func(ctx context.Context) error {
		panic("boom")
	}))

	require.NoError(t, m.Trigger("retention"))
	assert.Equal(t, 1, calls)

	assert.EqualError(t, m.Trigger("broken"), "disk full")
	assert.ErrorIs(t, m.Trigger("panics"), types.ErrCronJobFailed)
	assert.ErrorIs(t, m.Trigger("missing"), types.ErrCronJobNotFound)

	jobs := m.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, "disk full", jobs[0].LastError)
	assert.Equal(t, int64(1), jobs[2].RunCount)
	assert.Empty(t, jobs[2].LastError)
}

func TestManager_Lifecycle(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start())
	assert.True(t, m.IsRunning())
	assert.ErrorIs(t, m.Start(), types.ErrCronIsRunning)

	require.NoError(t, m.Stop())
	assert.False(t, m.IsRunning())
	assert.ErrorIs(t, m.Stop(), types.ErrCronIsNotRunning)
}

func TestNewManager_BadTimezone(t *testing.T) {
	_, err := NewManager(&types.CronConfig{Timezone: "Mars/Olympus"}, logger.NewNop(), metrics.NewNoop())
	assert.ErrorIs(t, err, types.ErrInvalidParameter)
}
