package operations

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/kebairia/deployctl/internal/backup"
	"github.com/kebairia/deployctl/internal/health"
	"github.com/kebairia/deployctl/internal/history"
	"github.com/kebairia/deployctl/internal/metrics"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Build(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockService) Stop(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockService) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockService) RunVerification(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockBackups struct {
	mock.Mock
}

func (m *MockBackups) Create(ctx context.Context, reason string) (backup.Record, error) {
	args := m.Called(ctx, reason)
	return args.Get(0).(backup.Record), args.Error(1)
}

func (m *MockBackups) Cleanup(policy backup.RetentionPolicy) (backup.CleanupReport, error) {
	args := m.Called(policy)
	return args.Get(0).(backup.CleanupReport), args.Error(1)
}

func (m *MockBackups) Latest() (backup.Record, error) {
	args := m.Called()
	return args.Get(0).(backup.Record), args.Error(1)
}

func (m *MockBackups) Verify(rec backup.Record) error {
	return m.Called(rec).Error(0)
}

func (m *MockBackups) Restore(rec backup.Record) error {
	return m.Called(rec).Error(0)
}

type MockPoller struct {
	mock.Mock
}

func (m *MockPoller) PollUntilReady(ctx context.Context) (health.Report, error) {
	args := m.Called(ctx)
	return args.Get(0).(health.Report), args.Error(1)
}

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Check(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingHistory struct {
	entries []history.Entry
	health  []health.Result
}

func (r *recordingHistory) RecordAttempt(e history.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingHistory) SaveHealth(res health.Result) error {
	r.health = append(r.health, res)
	return nil
}

type recordingMetrics struct {
	deploys   []metrics.Deploy
	rollbacks []bool
	flushes   int
}

func (r *recordingMetrics) ObserveDeploy(d metrics.Deploy) {
	r.deploys = append(r.deploys, d)
}

func (r *recordingMetrics) ObserveRollback(_ string, success bool) {
	r.rollbacks = append(r.rollbacks, success)
}

func (r *recordingMetrics) Flush() error {
	r.flushes++
	return nil
}
