package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"dqmon/domain/quality"
	"dqmon/internal"

	"github.com/gin-gonic/gin"
)

// CycleEvent is streamed to subscribers after every cycle and alert attempt
type CycleEvent struct {
	EventType  string                      `json:"event_type"`
	HasIssues  bool                        `json:"has_issues"`
	Findings   int                         `json:"findings"`
	ByKind     map[quality.FindingKind]int `json:"by_kind,omitempty"`
	DurationMS int64                       `json:"duration_ms,omitempty"`
	Failed     bool                        `json:"failed"`
	Channel    string                      `json:"channel,omitempty"`
	Error      string                      `json:"error,omitempty"`
	Timestamp  time.Time                   `json:"timestamp"`
}

const (
	EventCycleCompleted = "cycle_completed"
	EventAlertDelivered = "alert_delivered"
	EventAlertFailed    = "alert_failed"
)

// EventHub fans cycle events out to Server-Sent Events clients. It implements
// the monitor's cycle observer.
type EventHub struct {
	mu        sync.RWMutex
	clients   map[chan CycleEvent]struct{}
	keepAlive time.Duration
	log       *internal.Logger
}

// NewEventHub creates an event hub
func NewEventHub(log *internal.Logger) *EventHub {
	if log == nil {
		log = internal.Nop()
	}
	return &EventHub{
		clients:   make(map[chan CycleEvent]struct{}),
		keepAlive: 30 * time.Second,
		log:       log,
	}
}

// ObserveCycle broadcasts a cycle_completed event
func (h *EventHub) ObserveCycle(report *quality.Report, d time.Duration, failed bool) {
	h.Broadcast(CycleEvent{
		EventType:  EventCycleCompleted,
		HasIssues:  report.HasIssues(),
		Findings:   report.Len(),
		ByKind:     report.CountByKind(),
		DurationMS: d.Milliseconds(),
		Failed:     failed,
		Timestamp:  time.Now(),
	})
}

// ObserveAlert broadcasts the outcome of one alert delivery
func (h *EventHub) ObserveAlert(channel string, err error) {
	ev := CycleEvent{EventType: EventAlertDelivered, Channel: channel, Timestamp: time.Now()}
	if err != nil {
		ev.EventType = EventAlertFailed
		ev.Failed = true
		ev.Error = err.Error()
	}
	h.Broadcast(ev)
}

// Broadcast sends an event to every client. Slow clients miss events rather
// than block the cycle.
func (h *EventHub) Broadcast(event CycleEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
			h.log.Warn("[SSE] Client channel full, dropping %s event", event.EventType)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) subscribe() chan CycleEvent {
	ch := make(chan CycleEvent, 10)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("[SSE] Client registered (total clients: %d)", n)
	return ch
}

func (h *EventHub) unsubscribe(ch chan CycleEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("[SSE] Client unregistered (remaining clients: %d)", n)
}

// HandleEvents streams cycle events until the client disconnects
func (h *EventHub) HandleEvents(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	ctx := c.Request.Context()
	c.Status(http.StatusOK)
	c.Writer.Flush()
	c.Stream(func(w io.Writer) bool {
		select {
		case event := <-ch:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error("[SSE] Failed to marshal event: %v", err)
				return true
			}
			c.SSEvent(event.EventType, string(data))
			return true
		case <-time.After(h.keepAlive):
			c.SSEvent("ping", `{"status":"alive"}`)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
