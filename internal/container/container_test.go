package container

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dqmon/domain/quality"
	"dqmon/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `id,revenue,region
1,100,north
2,110,south
3,95,east
3,95,east
5,10000,west
`

func csvConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(file, []byte(sampleCSV), 0o644))

	cfg := config.Default()
	cfg.Source.File = file
	cfg.Store.DSN = filepath.Join(dir, "reports.db")
	cfg.Anomaly.Contamination = 0.2
	cfg.CustomRules = []quality.CustomRule{{Column: "revenue", Condition: quality.ConditionMax, Threshold: 5000}}
	return &cfg
}

func TestInit_RunsCycleEndToEnd(t *testing.T) {
	c, err := New(csvConfig(t), "", nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Init(ctx, Options{}))
	defer c.Shutdown(ctx)

	assert.Equal(t, "csv:data.csv", c.Source.Name())
	assert.Equal(t, "log", c.Alerts.Channel())

	res, err := c.Monitor.RunCycle(ctx)
	require.NoError(t, err)
	assert.True(t, res.Alerted)
	assert.NotEmpty(t, res.Record.Report.ByKind(quality.KindDuplicate))
	assert.NotEmpty(t, res.Record.Report.ByKind(quality.KindCustomRule))

	latest, err := c.Reports.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.Record.ID, latest.ID)
}

func TestInit_WithoutStore(t *testing.T) {
	c, err := New(csvConfig(t), "", nil)
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background(), Options{WithoutStore: true, WithoutAlerts: true}))

	assert.Nil(t, c.Reports)
	assert.Nil(t, c.Alerts)
	assert.Nil(t, c.StoreDB)
}

func TestInitAlerts_ChannelSelection(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		channel string
	}{
		{"none configured", func(*config.Config) {}, "log"},
		{"email only", func(c *config.Config) {
			c.Email.Sender, c.Email.Receiver = "dq@example.com", "ops@example.com"
		}, "email"},
		{"webhook only", func(c *config.Config) { c.Webhook.URL = "http://localhost/hook" }, "webhook"},
		{"both", func(c *config.Config) {
			c.Email.Sender, c.Email.Receiver = "dq@example.com", "ops@example.com"
			c.Webhook.URL = "http://localhost/hook"
		}, "email+webhook"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := csvConfig(t)
			tt.mutate(cfg)
			c, err := New(cfg, "", nil)
			require.NoError(t, err)
			require.NoError(t, c.initAlerts(context.Background()))
			assert.Equal(t, tt.channel, c.Alerts.Channel())
		})
	}
}

func TestInit_ThresholdsFollowConfigFile(t *testing.T) {
	cfg := csvConfig(t)
	c, err := New(cfg, filepath.Join(t.TempDir(), "data_quality_config.json"), nil)
	require.NoError(t, err)
	require.NoError(t, c.initThresholds(context.Background()))
	_, ok := c.Thresholds.(*config.FileThresholds)
	assert.True(t, ok)

	c, err = New(cfg, "", nil)
	require.NoError(t, err)
	require.NoError(t, c.initThresholds(context.Background()))
	th, err := c.Thresholds.Thresholds()
	require.NoError(t, err)
	assert.Equal(t, 0.2, th.Contamination)
}

func TestScheduler_UsesConfiguredInterval(t *testing.T) {
	cfg := csvConfig(t)
	cfg.Schedule.IntervalMinutes = 15
	c, err := New(cfg, "", nil)
	require.NoError(t, err)

	_, err = c.Scheduler()
	assert.Error(t, err, "scheduler needs an initialized container")

	require.NoError(t, c.Init(context.Background(), Options{WithoutStore: true}))
	s, err := c.Scheduler()
	require.NoError(t, err)
	assert.Equal(t, "@every "+(15*time.Minute).String(), s.Spec())
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, "", nil)
	assert.Error(t, err)
}
