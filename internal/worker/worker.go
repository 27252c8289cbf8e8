// Package worker dispatches reports requested over the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Sender dispatches one report request.
type Sender interface {
	Send(ctx context.Context, req domain.ReportRequest) domain.DispatchResult
}

// Worker consumes report requests from the EventBus.
type Worker struct {
	bus    domain.EventBus
	sender Sender

	mu            sync.Mutex
	subscriptions []domain.Subscription
	stopped       bool
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new report worker.
func NewWorker(bus domain.EventBus, sender Sender) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		sender: sender,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to report requests.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicReportRequested, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicReportRequested, err)
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("report worker started",
		"topic", domain.TopicReportRequested,
	)
	return nil
}

// handleMessage decodes a report request and dispatches it.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		slog.Warn("report request dropped, worker stopped", "message_id", msg.ID)
		return nil
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	start := time.Now()

	var req domain.ReportRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse report request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	result := w.sender.Send(ctx, req)

	slog.Info("report request processed",
		"message_id", msg.ID,
		"report_id", result.ID,
		"success", result.Success,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Stop unsubscribes and waits for in-flight dispatches.
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.stopped = true
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	w.wg.Wait()
	w.cancel()

	slog.Info("report worker stopped")
	return nil
}

// Enqueue publishes a report request for a worker to dispatch.
func Enqueue(ctx context.Context, bus domain.EventBus, req domain.ReportRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal report request: %w", err)
	}
	return bus.Publish(ctx, domain.TopicReportRequested, payload)
}
