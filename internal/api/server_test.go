package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dqmon/app"
	"dqmon/domain/core"
	"dqmon/domain/quality"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubMonitor struct {
	latest    *quality.ReportRecord
	records   []*quality.ReportRecord
	gotLimit  int
	cycle     *app.CycleResult
	cycleErr  error
	latestErr error
}

func (m *stubMonitor) RunCycle(context.Context) (*app.CycleResult, error) {
	return m.cycle, m.cycleErr
}

func (m *stubMonitor) LatestReport(context.Context) (*quality.ReportRecord, error) {
	return m.latest, m.latestErr
}

func (m *stubMonitor) Reports(_ context.Context, limit int) ([]*quality.ReportRecord, error) {
	m.gotLimit = limit
	return m.records, nil
}

func (m *stubMonitor) SourceName() string { return "csv:data.csv" }

func record() *quality.ReportRecord {
	r := quality.NewReport()
	r.Add(quality.NewFinding(quality.KindDuplicate, "Duplicates Exceed Threshold: 1", 1, []int{3}))
	return quality.NewReportRecord("csv:data.csv", r)
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := NewServer(&stubMonitor{}, nil, nil, nil)

	w := do(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "csv:data.csv", body["source"])
}

func TestLatestReport(t *testing.T) {
	rec := record()

	t.Run("found", func(t *testing.T) {
		w := do(t, NewServer(&stubMonitor{latest: rec}, nil, nil, nil), http.MethodGet, "/reports/latest")
		require.Equal(t, http.StatusOK, w.Code)

		var got quality.ReportRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.Fingerprint, got.Fingerprint)
		require.Len(t, got.Report.Findings, 1)
		assert.Equal(t, []int{3}, got.Report.Findings[0].RowIndices)
	})

	t.Run("none yet", func(t *testing.T) {
		w := do(t, NewServer(&stubMonitor{latestErr: core.ErrReportNotFound}, nil, nil, nil), http.MethodGet, "/reports/latest")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		w := do(t, NewServer(&stubMonitor{latestErr: errors.New("db down")}, nil, nil, nil), http.MethodGet, "/reports/latest")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestListReports(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
	}{
		{"default limit", "/reports", http.StatusOK, 0},
		{"explicit limit", "/reports?limit=5", http.StatusOK, 5},
		{"non-numeric limit", "/reports?limit=abc", http.StatusBadRequest, 0},
		{"negative limit", "/reports?limit=-1", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &stubMonitor{records: []*quality.ReportRecord{record(), record()}}
			w := do(t, NewServer(m, nil, nil, nil), http.MethodGet, tt.query)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantLimit, m.gotLimit)
				assert.Contains(t, w.Body.String(), `"count":2`)
			}
		})
	}
}

func TestRunCycle(t *testing.T) {
	res := &app.CycleResult{Record: record(), Alerted: true, Duration: time.Second}

	tests := []struct {
		name     string
		monitor  *stubMonitor
		wantCode int
		wantBody string
	}{
		{"success", &stubMonitor{cycle: res}, http.StatusOK, `"alerted":true`},
		{"already running", &stubMonitor{cycleErr: app.ErrCycleInProgress}, http.StatusConflict, "already running"},
		{"delivery failed", &stubMonitor{cycle: res, cycleErr: errors.New("smtp down")}, http.StatusOK, "smtp down"},
		{"no result", &stubMonitor{cycleErr: errors.New("boom")}, http.StatusInternalServerError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, NewServer(tt.monitor, nil, nil, nil), http.MethodPost, "/cycles")
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("dq_cycles_total 1\n"))
	})

	w := do(t, NewServer(&stubMonitor{}, metrics, nil, nil), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "dq_cycles_total"))

	w = do(t, NewServer(&stubMonitor{}, nil, nil, nil), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventHub_BroadcastsCycles(t *testing.T) {
	hub := NewEventHub(nil)
	ch := hub.subscribe()
	assert.Equal(t, 1, hub.ClientCount())

	hub.ObserveCycle(record().Report, 1500*time.Millisecond, false)
	ev := <-ch
	assert.Equal(t, EventCycleCompleted, ev.EventType)
	assert.True(t, ev.HasIssues)
	assert.Equal(t, 1, ev.Findings)
	assert.Equal(t, int64(1500), ev.DurationMS)
	assert.Equal(t, 1, ev.ByKind[quality.KindDuplicate])

	hub.ObserveAlert("email", errors.New("smtp down"))
	ev = <-ch
	assert.Equal(t, EventAlertFailed, ev.EventType)
	assert.Equal(t, "smtp down", ev.Error)

	hub.unsubscribe(ch)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestEventHub_DropsForSlowClients(t *testing.T) {
	hub := NewEventHub(nil)
	ch := hub.subscribe()

	for i := 0; i < 25; i++ {
		hub.ObserveAlert("log", nil)
	}
	assert.Len(t, ch, cap(ch))
}

func TestEventHub_StreamsOverHTTP(t *testing.T) {
	hub := NewEventHub(nil)
	srv := httptest.NewServer(NewServer(&stubMonitor{}, nil, hub, nil).Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.ObserveAlert("webhook", nil)

	buf := make([]byte, 512)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "event:"+EventAlertDelivered)
}
