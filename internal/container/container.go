package container

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"

	"dqmon/adapters/alert"
	"dqmon/adapters/excel"
	"dqmon/adapters/sqlsource"
	"dqmon/adapters/sqlstore"
	"dqmon/adapters/stats/isolation"
	"dqmon/app"
	"dqmon/internal"
	"dqmon/internal/api"
	"dqmon/internal/checks"
	"dqmon/internal/config"
	"dqmon/internal/engine"
	"dqmon/internal/metrics"
	"dqmon/internal/migration"
	"dqmon/internal/scheduler"
	"dqmon/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config     *config.Config
	ConfigPath string
	Log        *internal.Logger

	// Infrastructure
	StoreDB *sqlx.DB
	closers []func() error

	// Adapters
	Source     ports.DatasetSource
	Reports    ports.ReportRepository
	Thresholds ports.ThresholdProvider
	Alerts     ports.AlertSender

	// Evaluation
	Forest *isolation.Forest
	Engine *engine.Engine

	// Observability
	Metrics *metrics.Metrics
	Events  *api.EventHub

	Monitor *app.MonitorService
}

// Options selects optional parts of the container
type Options struct {
	// WithoutStore skips the report history database
	WithoutStore bool
	// WithoutAlerts skips alert delivery
	WithoutAlerts bool
}

// New creates a new dependency injection container
func New(cfg *config.Config, configPath string, log *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if log == nil {
		log = internal.Nop()
	}
	return &Container{Config: cfg, ConfigPath: configPath, Log: log}, nil
}

type initStep struct {
	name string
	fn   func(context.Context) error
}

// Init builds every component. On error, resources opened so far are released.
func (c *Container) Init(ctx context.Context, opts Options) error {
	steps := []initStep{
		{"source", c.initSource},
		{"engine", c.initEngine},
		{"thresholds", c.initThresholds},
	}
	if !opts.WithoutStore {
		steps = append(steps, initStep{"report store", c.initStore})
	}
	if !opts.WithoutAlerts {
		steps = append(steps, initStep{"alerts", c.initAlerts})
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			_ = c.Shutdown(ctx)
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
	}

	c.Metrics = metrics.New()
	c.Engine.Runner().WithObserver(c.Metrics)
	c.Events = api.NewEventHub(c.Log)
	c.Monitor = app.NewMonitorService(
		c.Source,
		c.Thresholds,
		c.Engine,
		c.Reports,
		c.Alerts,
		app.Observers{c.Metrics, c.Events},
		c.Log,
	)

	c.Log.Info("Container initialized: source %s", c.Source.Name())
	return nil
}

// initSource prefers a configured file over the database query
func (c *Container) initSource(context.Context) error {
	if c.Config.Source.File != "" {
		c.Source = excel.NewDataReader(excel.FileConfig{
			FilePath: c.Config.Source.File,
			Sheet:    c.Config.Source.Sheet,
		}, c.Log)
		return nil
	}

	src, err := sqlsource.Open(sqlsource.Config{
		Driver:           c.Config.Database.Driver,
		ConnectionString: c.Config.Database.ConnectionString,
		Query:            c.Config.Database.Query,
	})
	if err != nil {
		return err
	}
	c.Source = src
	c.closers = append(c.closers, src.Close)
	return nil
}

func (c *Container) initEngine(context.Context) error {
	workers := c.Config.Anomaly.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	c.Forest = isolation.NewForest(isolation.Options{
		Trees:       c.Config.Anomaly.Trees,
		Seed:        c.Config.Anomaly.Seed,
		Workers:     workers,
		ScoreCutoff: c.Config.Anomaly.ScoreCutoff,
	}, nil)
	c.Engine = engine.NewWithRunner(c.Log, checks.NewRunner(c.Log, checks.DefaultChecks(c.Log, c.Forest)...))
	return nil
}

// initThresholds re-reads the config file each cycle when there is one
func (c *Container) initThresholds(context.Context) error {
	if c.ConfigPath != "" {
		c.Thresholds = config.NewFileThresholds(c.ConfigPath, c.Config)
		return nil
	}
	c.Thresholds = config.StaticThresholds(c.Config.ThresholdConfig())
	return nil
}

func (c *Container) initStore(ctx context.Context) error {
	if c.Config.Store.DSN == "" {
		c.Log.Info("No report store configured, reports will not be persisted")
		return nil
	}
	db, err := sqlx.ConnectContext(ctx, sqlsource.DriverName(c.Config.Store.Driver), c.Config.Store.DSN)
	if err != nil {
		return fmt.Errorf("report store connection failed: %w", err)
	}
	c.closers = append(c.closers, db.Close)
	if err := migration.NewRunner(c.Log).Run(ctx, db); err != nil {
		return err
	}
	c.StoreDB = db
	c.Reports = sqlstore.NewReportRepository(db)
	return nil
}

// initAlerts fans out to every configured channel, falling back to the log
func (c *Container) initAlerts(context.Context) error {
	retry := alert.RetryConfig{
		MaxAttempts: c.Config.Alert.MaxAttempts,
		RetryWait:   c.Config.Alert.RetryWait,
	}

	var senders []ports.AlertSender
	email := alert.EmailConfig{
		Sender:   c.Config.Email.Sender,
		Receiver: c.Config.Email.Receiver,
		Password: c.Config.Email.Password,
		SMTPHost: c.Config.Email.SMTPHost,
		SMTPPort: c.Config.Email.SMTPPort,
	}
	if email.Enabled() {
		senders = append(senders, alert.WithRetry(alert.NewEmailSender(email, c.Log), retry, c.Log))
	}
	if c.Config.Webhook.URL != "" {
		hook := alert.NewWebhookSender(alert.WebhookConfig{URL: c.Config.Webhook.URL, Timeout: c.Config.Webhook.Timeout})
		senders = append(senders, alert.WithRetry(hook, retry, c.Log))
	}

	switch len(senders) {
	case 0:
		c.Log.Warn("No alert channel configured, alerts will only be logged")
		c.Alerts = alert.NewLogSender(c.Log)
	case 1:
		c.Alerts = senders[0]
	default:
		c.Alerts = alert.NewMultiSender(senders...)
	}
	return nil
}

// Scheduler creates the periodic runner for the monitor
func (c *Container) Scheduler() (*scheduler.Scheduler, error) {
	if c.Monitor == nil {
		return nil, fmt.Errorf("container not initialized")
	}
	job := func(ctx context.Context) error {
		_, err := c.Monitor.RunCycle(ctx)
		return err
	}
	return scheduler.New(job, scheduler.Options{
		Interval:   c.Config.Interval(),
		Timeout:    c.Config.Schedule.Timeout,
		RunOnStart: c.Config.Schedule.RunOnStart,
	}, c.Log)
}

// Server creates the status API
func (c *Container) Server() *api.Server {
	return api.NewServer(c.Monitor, c.Metrics.Handler(), c.Events, c.Log)
}

// Shutdown releases database connections
func (c *Container) Shutdown(context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return stderrors.Join(errs...)
}
