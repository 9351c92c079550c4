package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dqmon/adapters/stats/isolation"
	"dqmon/domain/core"
	"dqmon/domain/quality"
	"dqmon/internal/engine"
	"dqmon/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Load(ctx context.Context) (*quality.Dataset, error) {
	args := m.Called(ctx)
	ds, _ := args.Get(0).(*quality.Dataset)
	return ds, args.Error(1)
}

func (m *MockSource) Name() string { return "mock" }

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Save(ctx context.Context, rec *quality.ReportRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRepository) Latest(ctx context.Context) (*quality.ReportRecord, error) {
	args := m.Called(ctx)
	rec, _ := args.Get(0).(*quality.ReportRecord)
	return rec, args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, limit int) ([]*quality.ReportRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*quality.ReportRecord), args.Error(1)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, rec *quality.ReportRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockSender) Channel() string { return "mock" }

type MockThresholds struct {
	mock.Mock
}

func (m *MockThresholds) Thresholds() (quality.ThresholdConfig, error) {
	args := m.Called()
	return args.Get(0).(quality.ThresholdConfig), args.Error(1)
}

type recordingObserver struct {
	mu      sync.Mutex
	cycles  int
	failed  []bool
	alerts  []error
	reports []*quality.Report
}

func (o *recordingObserver) ObserveCycle(r *quality.Report, _ time.Duration, failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cycles++
	o.failed = append(o.failed, failed)
	o.reports = append(o.reports, r)
}

func (o *recordingObserver) ObserveAlert(_ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.alerts = append(o.alerts, err)
}

func dataset(t *testing.T, revenue ...int64) *quality.Dataset {
	t.Helper()
	vals := make([]quality.Value, len(revenue))
	for i, r := range revenue {
		vals[i] = quality.NewIntValue(r)
	}
	ds, err := quality.FromColumns([]string{"revenue"}, map[string][]quality.Value{"revenue": vals})
	require.NoError(t, err)
	return ds
}

func thresholds() quality.ThresholdConfig {
	cfg := quality.DefaultThresholdConfig()
	cfg.Contamination = 0.01
	cfg.CustomRules = []quality.CustomRule{{Column: "revenue", Condition: quality.ConditionMax, Threshold: 5000}}
	return cfg
}

func newService(src ports.DatasetSource, th ports.ThresholdProvider, repo ports.ReportRepository, sender ports.AlertSender, obs CycleObserver) *MonitorService {
	eng := engine.New(nil, isolation.NewForest(isolation.Options{Seed: 42}, nil))
	return NewMonitorService(src, th, eng, repo, sender, obs, nil)
}

func TestRunCycle_AlertsOnIssues(t *testing.T) {
	src, th, repo, sender, obs := &MockSource{}, &MockThresholds{}, &MockRepository{}, &MockSender{}, &recordingObserver{}
	th.On("Thresholds").Return(thresholds(), nil)
	src.On("Load", mock.Anything).Return(dataset(t, 100, 200, 10000), nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*quality.ReportRecord")).Return(nil)
	sender.On("Send", mock.Anything, mock.AnythingOfType("*quality.ReportRecord")).Return(nil)

	res, err := newService(src, th, repo, sender, obs).RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Alerted)
	assert.Equal(t, "mock", res.Record.Source)
	require.NotEmpty(t, res.Record.Report.ByKind(quality.KindCustomRule))

	repo.AssertNumberOfCalls(t, "Save", 1)
	sender.AssertNumberOfCalls(t, "Send", 1)
	assert.Equal(t, 1, obs.cycles)
	assert.Equal(t, []error{nil}, obs.alerts)
}

func TestRunCycle_NoIssuesNoAlert(t *testing.T) {
	src, th, repo, sender := &MockSource{}, &MockThresholds{}, &MockRepository{}, &MockSender{}
	th.On("Thresholds").Return(thresholds(), nil)
	src.On("Load", mock.Anything).Return(dataset(t, 100), nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	res, err := newService(src, th, repo, sender, nil).RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Alerted)
	assert.False(t, res.Record.HasIssues())
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRunCycle_LoadErrorIsReported(t *testing.T) {
	src, th, repo, sender := &MockSource{}, &MockThresholds{}, &MockRepository{}, &MockSender{}
	th.On("Thresholds").Return(thresholds(), nil)
	src.On("Load", mock.Anything).Return(nil, core.NewLoadError("mock", errors.New("connection refused")))
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil)

	res, err := newService(src, th, repo, sender, nil).RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Record.Report.Len())
	assert.Equal(t, quality.KindLoadError, res.Record.Report.Findings[0].Kind)
	assert.True(t, res.Alerted)
}

func TestRunCycle_DeliveryAndSaveFailuresAreReturned(t *testing.T) {
	src, th, repo, sender, obs := &MockSource{}, &MockThresholds{}, &MockRepository{}, &MockSender{}, &recordingObserver{}
	saveErr := errors.New("disk full")
	sendErr := errors.New("smtp down")
	th.On("Thresholds").Return(thresholds(), nil)
	src.On("Load", mock.Anything).Return(dataset(t, 10000), nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(saveErr)
	sender.On("Send", mock.Anything, mock.Anything).Return(sendErr)

	res, err := newService(src, th, repo, sender, obs).RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, saveErr)
	assert.ErrorIs(t, err, sendErr)
	require.NotNil(t, res)
	assert.False(t, res.Alerted)
	assert.Equal(t, []bool{true}, obs.failed)
}

func TestRunCycle_ThresholdReloadFailureUsesLastValues(t *testing.T) {
	src, th, repo := &MockSource{}, &MockThresholds{}, &MockRepository{}
	th.On("Thresholds").Return(thresholds(), errors.New("config file vanished"))
	src.On("Load", mock.Anything).Return(dataset(t, 10000), nil)
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	res, err := newService(src, th, repo, nil, nil).RunCycle(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Record.Report.ByKind(quality.KindCustomRule))
}

type blockingSource struct {
	started chan struct{}
	release chan struct{}
	ds      *quality.Dataset
}

func (b *blockingSource) Name() string { return "blocking" }

func (b *blockingSource) Load(context.Context) (*quality.Dataset, error) {
	close(b.started)
	<-b.release
	return b.ds, nil
}

func TestRunCycle_RejectsOverlap(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{}), ds: dataset(t, 1)}
	th := &MockThresholds{}
	th.On("Thresholds").Return(thresholds(), nil)
	svc := NewMonitorService(src, th, engine.New(nil, nil), nil, nil, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunCycle(context.Background())
		done <- err
	}()
	<-src.started

	_, err := svc.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(src.release)
	assert.NoError(t, <-done)
}

func TestReports_WithoutRepository(t *testing.T) {
	svc := NewMonitorService(&MockSource{}, &MockThresholds{}, engine.New(nil, nil), nil, nil, nil, nil)

	_, err := svc.LatestReport(context.Background())
	assert.True(t, core.IsNotFoundError(err))
	list, err := svc.Reports(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestObservers_FanOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	obs := Observers{a, b}

	obs.ObserveCycle(quality.NewReport(), time.Second, false)
	obs.ObserveAlert("email", nil)

	for _, o := range []*recordingObserver{a, b} {
		assert.Equal(t, 1, o.cycles)
		assert.Len(t, o.alerts, 1)
	}
}
