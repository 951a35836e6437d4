package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/TrongNghianeee/Fraud-Creaditcard-Model-Detection-App/types"
)

type State int32

const (
	StateStopped State = iota
	StateRunning
)

const (
	defaultJobTimeout      = 10 * time.Minute
	defaultShutdownTimeout = 10 * time.Second
)

type jobState struct {
	entry   types.JobEntry
	job     types.Job
	running atomic.Bool
}

// Manager schedules maintenance jobs with six-field (seconds) cron specs.
// A job never overlaps with itself; a tick that finds it still running is
// skipped.
type Manager struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	metrics         types.MetricsManager
	cron            *cron.Cron
	timezone        *time.Location
	jobs            map[string]*jobState
	mu              sync.RWMutex
	state           atomic.Value
	jobTimeout      time.Duration
	shutdownTimeout time.Duration
}

func NewManager(config *types.CronConfig, logger types.Logger, metrics types.MetricsManager) (*Manager, error) {
	timezone := time.UTC
	if config != nil && config.Timezone != "" {
		location, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, types.Errorf(types.ErrInvalidParameter, "cron timezone %q: %v", config.Timezone, err)
		}
		timezone = location
	}

	ctx, cancel := context.WithCancel(context.Background())

	manager := &Manager{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		metrics: metrics,
		cron: cron.New(
			cron.WithLocation(timezone),
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger{logger: logger})),
			cron.WithLogger(cronLogger{logger: logger}),
		),
		timezone:        timezone,
		jobs:            make(map[string]*jobState),
		jobTimeout:      defaultJobTimeout,
		shutdownTimeout: defaultShutdownTimeout,
	}

	manager.state.Store(StateStopped)

	return manager, nil
}

func (m *Manager) Add(jobName, spec string, job types.Job) error {
	if jobName == "" {
		return types.ErrCronJobNameIsEmpty
	}
	if spec == "" {
		return types.ErrCronExpressionInvalid
	}
	if job == nil {
		return types.ErrCronJobIsNil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[jobName]; exists {
		return types.Errorf(types.ErrCronJobExists, "%s", jobName)
	}

	state := &jobState{job: job}
	entryID, err := m.cron.AddFunc(spec, func() { m.run(jobName, state) })
	if err != nil {
		return types.Errorf(types.ErrCronExpressionInvalid, "%s: %v", spec, err)
	}

	state.entry = types.JobEntry{
		ID:      entryID,
		Name:    jobName,
		Spec:    spec,
		AddedAt: time.Now(),
		NextRun: m.cron.Entry(entryID).Next,
	}
	m.jobs[jobName] = state

	m.logger.Info("Cron job added", zap.String("job_name", jobName), zap.String("spec", spec))

	return nil
}

func (m *Manager) Remove(jobName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.jobs[jobName]
	if !exists {
		return types.Errorf(types.ErrCronJobNotFound, "%s", jobName)
	}

	m.cron.Remove(state.entry.ID)
	delete(m.jobs, jobName)

	m.logger.Info("Cron job removed", zap.String("job_name", jobName))

	return nil
}

// Trigger runs a job immediately on the calling goroutine.
func (m *Manager) Trigger(jobName string) error {
	m.mu.RLock()
	state, exists := m.jobs[jobName]
	m.mu.RUnlock()

	if !exists {
		return types.Errorf(types.ErrCronJobNotFound, "%s", jobName)
	}

	return m.run(jobName, state)
}

func (m *Manager) Jobs() []types.JobEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]types.JobEntry, 0, len(m.jobs))
	for _, state := range m.jobs {
		entries = append(entries, state.entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return entries
}

func (m *Manager) Start() error {
	if !m.state.CompareAndSwap(StateStopped, StateRunning) {
		return types.ErrCronIsRunning
	}

	m.cron.Start()
	m.metrics.Gauge("cron_scheduler_running", nil).Set(1)

	m.mu.Lock()
	for _, state := range m.jobs {
		state.entry.NextRun = m.cron.Entry(state.entry.ID).Next
	}
	m.mu.Unlock()

	m.logger.Info("Cron manager started", zap.String("timezone", m.timezone.String()))

	return nil
}

// Stop waits for running jobs up to the shutdown timeout, then cancels
// their context.
func (m *Manager) Stop() error {
	if !m.state.CompareAndSwap(StateRunning, StateStopped) {
		return types.ErrCronIsNotRunning
	}

	stopped := m.cron.Stop()
	defer m.cancel()

	m.metrics.Gauge("cron_scheduler_running", nil).Set(0)

	select {
	case <-stopped.Done():
		m.logger.Info("Cron scheduler stopped gracefully")
	case <-time.After(m.shutdownTimeout):
		m.logger.Warn("Cron manager stop timeout, cancelling running jobs")
	}

	return nil
}

func (m *Manager) IsRunning() bool {
	return m.state.Load().(State) == StateRunning
}

func (m *Manager) run(jobName string, state *jobState) error {
	if !state.running.CompareAndSwap(false, true) {
		m.logger.Warn("Cron job still running, skipping", zap.String("job_name", jobName))
		return types.Errorf(types.ErrCronJobFailed, "%s is already running", jobName)
	}
	defer state.running.Store(false)

	ctx, cancel := context.WithTimeout(m.ctx, m.jobTimeout)
	defer cancel()

	m.metrics.Gauge("cron_active_jobs", nil).Inc()
	defer m.metrics.Gauge("cron_active_jobs", nil).Dec()

	start := time.Now()
	err := m.invoke(ctx, state.job)
	duration := time.Since(start)

	if err == nil && ctx.Err() != nil {
		err = types.Errorf(types.ErrCronJobTimeout, "after %s", duration)
	}

	result := "success"
	if err != nil {
		result = "error"
	}

	m.metrics.Counter("cron_job_executions_total", map[string]string{"job_name": jobName, "result": result}).Inc()
	m.metrics.Histogram("cron_job_duration_seconds", []float64{0.01, 0.1, 1, 10, 60, 300}, map[string]string{"job_name": jobName}).Observe(duration.Seconds())

	m.mu.Lock()
	state.entry.LastRun = start
	state.entry.LastDuration = duration
	state.entry.RunCount++
	state.entry.LastError = ""
	if err != nil {
		state.entry.LastError = err.Error()
	}
	if state.entry.ID != 0 {
		state.entry.NextRun = m.cron.Entry(state.entry.ID).Next
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Cron job failed", zap.String("job_name", jobName), zap.Duration("duration", duration), zap.Error(err))
		return err
	}

	m.logger.Debug("Cron job completed", zap.String("job_name", jobName), zap.Duration("duration", duration))

	return nil
}

func (m *Manager) invoke(ctx context.Context, job types.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.Errorf(types.ErrCronJobFailed, "panic: %v", r)
		}
	}()

	return job(ctx)
}

type cronLogger struct {
	logger types.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	result := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		result = append(result, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
	}
	return result
}
