// Package alerting delivers critical alerts. The durable alert log is always
// written first; external sinks and in-process subscribers are best-effort on
// top of it, so "deliver or durably log for retry" holds even when a sink is
// down.
package alerting

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/telecheck/zonewatch/internal/models"
	"github.com/telecheck/zonewatch/internal/repository"
)

// Sink is an outbound alert channel (e.g. a Kafka topic feeding the paging
// system). Delivery failures are logged, never fatal: the store row is the
// source of truth for retry.
type Sink interface {
	Deliver(ctx context.Context, alert models.CriticalAlert) error
}

type Dispatcher struct {
	repo  repository.AlertRepository
	sinks []Sink

	mu          sync.RWMutex
	subscribers map[uint64]chan models.CriticalAlert
	nextID      uint64
}

func NewDispatcher(repo repository.AlertRepository, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		repo:        repo,
		sinks:       sinks,
		subscribers: make(map[uint64]chan models.CriticalAlert),
	}
}

// Dispatch persists the alert and then pushes it to sinks and subscribers.
// The returned error reflects only the durable write; everything after it is
// best-effort.
func (d *Dispatcher) Dispatch(ctx context.Context, alert models.CriticalAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}

	if err := d.repo.AddAlert(ctx, &alert); err != nil {
		return err
	}

	slog.Warn("critical alert raised",
		"alert_id", alert.ID,
		"type", alert.Type,
		"severity", alert.Severity,
		"message", alert.Message,
	)

	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, alert); err != nil {
			slog.Error("alert sink delivery failed", "alert_id", alert.ID, "error", err)
		}
	}

	d.mu.RLock()
	for _, ch := range d.subscribers {
		select {
		case ch <- alert:
		default:
			// Skip slow subscribers; the store row is the durable copy.
		}
	}
	d.mu.RUnlock()

	return nil
}

// Subscribe returns a channel receiving future alerts, for in-process
// consumers such as the status endpoint's event feed.
func (d *Dispatcher) Subscribe() (uint64, chan models.CriticalAlert) {
	ch := make(chan models.CriticalAlert, 16)

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subscribers[id] = ch
	d.mu.Unlock()

	return id, ch
}

func (d *Dispatcher) Unsubscribe(id uint64) {
	d.mu.Lock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
}
