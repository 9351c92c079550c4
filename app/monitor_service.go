package app

import (
	"context"
	stderrors "errors"
	"time"

	"dqmon/domain/core"
	"dqmon/domain/quality"
	"dqmon/internal"
	"dqmon/internal/engine"
	"dqmon/ports"
)

// ErrCycleInProgress is returned when a cycle is requested while one is running
var ErrCycleInProgress = stderrors.New("a monitoring cycle is already running")

// CycleObserver receives cycle and delivery outcomes. Metrics implement it.
type CycleObserver interface {
	ObserveCycle(report *quality.Report, d time.Duration, failed bool)
	ObserveAlert(channel string, err error)
}

// Observers fans outcomes out to several observers
type Observers []CycleObserver

func (o Observers) ObserveCycle(report *quality.Report, d time.Duration, failed bool) {
	for _, obs := range o {
		obs.ObserveCycle(report, d, failed)
	}
}

func (o Observers) ObserveAlert(channel string, err error) {
	for _, obs := range o {
		obs.ObserveAlert(channel, err)
	}
}

// MonitorService runs one monitoring cycle at a time: load, evaluate,
// persist, alert
type MonitorService struct {
	source     ports.DatasetSource
	thresholds ports.ThresholdProvider
	engine     *engine.Engine
	repo       ports.ReportRepository
	alerts     ports.AlertSender
	observer   CycleObserver
	log        *internal.Logger

	running chan struct{}
}

// CycleResult is the outcome of one cycle
type CycleResult struct {
	Record   *quality.ReportRecord `json:"record"`
	Alerted  bool                  `json:"alerted"`
	Duration time.Duration         `json:"duration"`
}

// NewMonitorService creates a monitor service. repo, alerts and observer may be nil.
func NewMonitorService(
	source ports.DatasetSource,
	thresholds ports.ThresholdProvider,
	eng *engine.Engine,
	repo ports.ReportRepository,
	alerts ports.AlertSender,
	observer CycleObserver,
	log *internal.Logger,
) *MonitorService {
	if log == nil {
		log = internal.Nop()
	}
	return &MonitorService{
		source:     source,
		thresholds: thresholds,
		engine:     eng,
		repo:       repo,
		alerts:     alerts,
		observer:   observer,
		log:        log,
		running:    make(chan struct{}, 1),
	}
}

// RunCycle evaluates the current dataset and alerts when the report has
// issues. Load failures become a LOAD_ERROR report, not an error. The
// returned error joins persistence and delivery failures; the result is
// still set in that case.
func (s *MonitorService) RunCycle(ctx context.Context) (*CycleResult, error) {
	select {
	case s.running <- struct{}{}:
		defer func() { <-s.running }()
	default:
		return nil, ErrCycleInProgress
	}

	start := time.Now()
	s.log.Info("Starting data quality check...")

	th, err := s.thresholds.Thresholds()
	if err != nil {
		s.log.Warn("Failed to reload thresholds, using last known values: %v", err)
	}

	ds, loadErr := s.source.Load(ctx)
	if loadErr == nil {
		s.log.Info("Data loaded successfully: (%d, %d)", ds.Len(), len(ds.Columns()))
	}
	report := s.engine.Evaluate(ds, loadErr, th)
	record := quality.NewReportRecord(s.source.Name(), report)
	result := &CycleResult{Record: record}

	var errs []error
	if s.repo != nil {
		if err := s.repo.Save(ctx, record); err != nil {
			s.log.Error("Failed to save report %s: %v", record.ID, err)
			errs = append(errs, err)
		}
	}

	if record.HasIssues() {
		if s.alerts != nil {
			err := s.alerts.Send(ctx, record)
			if s.observer != nil {
				s.observer.ObserveAlert(s.alerts.Channel(), err)
			}
			if err != nil {
				s.log.Error("Failed to deliver alert for report %s: %v", record.ID, err)
				errs = append(errs, err)
			} else {
				result.Alerted = true
			}
		}
	} else {
		s.log.Info("No data quality issues found.")
	}

	result.Duration = time.Since(start)
	cycleErr := stderrors.Join(errs...)
	if s.observer != nil {
		s.observer.ObserveCycle(report, result.Duration, cycleErr != nil)
	}
	s.log.Info("Cycle %s finished in %s (%d findings, fingerprint %s)",
		record.ID, result.Duration, report.Len(), record.Fingerprint.Short())
	return result, cycleErr
}

// LatestReport returns the most recent persisted report
func (s *MonitorService) LatestReport(ctx context.Context) (*quality.ReportRecord, error) {
	if s.repo == nil {
		return nil, core.ErrReportNotFound
	}
	return s.repo.Latest(ctx)
}

// Reports returns up to limit persisted reports, newest first
func (s *MonitorService) Reports(ctx context.Context, limit int) ([]*quality.ReportRecord, error) {
	if s.repo == nil {
		return []*quality.ReportRecord{}, nil
	}
	return s.repo.List(ctx, limit)
}

// SourceName returns the name of the monitored source
func (s *MonitorService) SourceName() string {
	return s.source.Name()
}
