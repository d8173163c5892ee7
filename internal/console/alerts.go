package console

import (
	"context"
	"sync"
)

// AlertLevel classifies an operator alert.
type AlertLevel string

// Alert levels.
const (
	AlertInfo    AlertLevel = "info"
	AlertWarning AlertLevel = "warning"
	AlertError   AlertLevel = "error"
)

// Alert is a notification the operator has to acknowledge.
type Alert struct {
	Level AlertLevel `json:"level"`
	Text  string     `json:"text"`
}

// Alerter delivers alerts to the operator.
type Alerter interface {
	Alert(ctx context.Context, alert Alert)
}

// NopAlerter drops every alert.
type NopAlerter struct{}

// Alert implements Alerter.
func (NopAlerter) Alert(context.Context, Alert) {}

// AlertQueue holds alerts until a renderer drains them.
type AlertQueue struct {
	mu     sync.Mutex
	alerts []Alert
}

// NewAlertQueue creates an empty queue.
func NewAlertQueue() *AlertQueue {
	return &AlertQueue{}
}

// Alert implements Alerter.
func (q *AlertQueue) Alert(_ context.Context, alert Alert) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.alerts = append(q.alerts, alert)
}

// Drain returns the pending alerts in arrival order and empties the queue.
func (q *AlertQueue) Drain() []Alert {
	q.mu.Lock()
	defer q.mu.Unlock()
	alerts := q.alerts
	q.alerts = nil
	return alerts
}

// Len returns the number of pending alerts.
func (q *AlertQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.alerts)
}
