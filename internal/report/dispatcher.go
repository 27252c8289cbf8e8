package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/harrier/internal/alerts"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/pipeline"
)

// ErrResultNotFound is returned for unknown or expired dispatch ids.
var ErrResultNotFound = errors.New("dispatch result not found")

const (
	throttleKey  = "report:dispatches"
	resultPrefix = "report:result:"
)

// Dispatch outcomes, used as the metrics label.
const (
	OutcomeSent      = "sent"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeThrottled = "throttled"
)

// Runner runs the dashboard pipeline for a filter.
type Runner interface {
	Run(ctx context.Context, filter domain.Filter, opts alerts.Options) (*pipeline.Dashboard, error)
}

// Dispatcher composes reports from pipeline results and sends them.
// Every dispatch is attempted once; failures are reported, never retried.
type Dispatcher struct {
	runner    Runner
	transport Transport
	cache     domain.Cache
	bus       domain.EventBus
	metrics   *metrics.Collector
	cfg       domain.ReportConfig
	now       func() time.Time
}

// NewDispatcher creates a report dispatcher. A nil transport rejects every
// dispatch as unconfigured; cache, bus and m are optional.
func NewDispatcher(runner Runner, transport Transport, c domain.Cache, bus domain.EventBus, m *metrics.Collector, cfg domain.ReportConfig) *Dispatcher {
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &Dispatcher{
		runner:    runner,
		transport: transport,
		cache:     c,
		bus:       bus,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Preview returns the summary a report for filter would carry.
func (d *Dispatcher) Preview(ctx context.Context, filter domain.Filter, highRiskOnly bool) (domain.Summary, error) {
	dash, err := d.runner.Run(ctx, filter, alerts.Options{HighRiskOnly: highRiskOnly})
	if err != nil {
		return domain.Summary{}, err
	}
	return Summarize(dash.KPIs, dash.AlertCount, d.now()), nil
}

// Send runs the pipeline for req and e-mails the report. The outcome is
// returned, stored for later lookup and published on the bus.
func (d *Dispatcher) Send(ctx context.Context, req domain.ReportRequest) domain.DispatchResult {
	now := d.now()
	result := domain.DispatchResult{
		ID:     uuid.New().String(),
		SentAt: now.UTC(),
	}

	requested := req.Recipients
	if len(requested) == 0 {
		requested = d.cfg.Recipients
	}
	result.Recipients = CleanRecipients(requested)

	if len(result.Recipients) == 0 {
		return d.finish(ctx, result, OutcomeRejected, errors.New("no valid recipients"))
	}
	if d.transport == nil {
		return d.finish(ctx, result, OutcomeRejected, ErrMailNotConfigured)
	}
	if err := d.throttle(ctx); err != nil {
		return d.finish(ctx, result, OutcomeThrottled, err)
	}

	dash, err := d.runner.Run(ctx, req.Filter, alerts.Options{HighRiskOnly: req.HighRiskOnly})
	if err != nil {
		return d.finish(ctx, result, OutcomeFailed, fmt.Errorf("failed to compute report: %w", err))
	}
	result.AlertCount = dash.AlertCount

	email, err := d.compose(req, dash, now)
	if err != nil {
		return d.finish(ctx, result, OutcomeFailed, err)
	}
	email.To = result.Recipients
	result.Subject = email.Subject
	if email.Attachment != nil {
		result.Attachment = email.Attachment.Name
	}

	if err := d.transport.Send(ctx, email); err != nil {
		return d.finish(ctx, result, OutcomeFailed, err)
	}

	result.Success = true
	result.Message = fmt.Sprintf("report sent to %d recipient(s)", len(result.Recipients))
	return d.finish(ctx, result, OutcomeSent, nil)
}

// Result returns a stored dispatch result.
func (d *Dispatcher) Result(ctx context.Context, id string) (domain.DispatchResult, error) {
	var result domain.DispatchResult
	if d.cache == nil {
		return result, ErrResultNotFound
	}
	found, err := cache.GetJSON(ctx, d.cache, resultPrefix+id, &result)
	if err != nil {
		return result, err
	}
	if !found {
		return result, ErrResultNotFound
	}
	return result, nil
}

func (d *Dispatcher) compose(req domain.ReportRequest, dash *pipeline.Dashboard, now time.Time) (Email, error) {
	summary := Summarize(dash.KPIs, dash.AlertCount, now)
	if s := strings.TrimSpace(req.Subject); s != "" {
		summary.Subject = s
	}

	html, err := RenderHTML(dash.KPIs, dash.Alerts, now)
	if err != nil {
		return Email{}, err
	}

	email := Email{
		Subject: summary.Subject,
		Text:    summary.Body,
		HTML:    html,
	}

	if req.WantsCSV() && len(dash.Alerts) > 0 {
		var buf bytes.Buffer
		if err := WriteAlertsCSV(&buf, dash.Alerts); err != nil {
			return Email{}, fmt.Errorf("failed to build attachment: %w", err)
		}
		email.Attachment = &Attachment{Name: AttachmentName(now), Data: buf.Bytes()}
	}

	return email, nil
}

// throttle counts the dispatch against the hourly cap. A cache failure
// lets the dispatch through.
func (d *Dispatcher) throttle(ctx context.Context) error {
	if d.cfg.MaxPerHour <= 0 || d.cache == nil {
		return nil
	}
	n, err := d.cache.IncrementCounter(ctx, throttleKey, time.Hour)
	if err != nil {
		slog.Warn("report throttle unavailable", "error", err)
		return nil
	}
	if n > int64(d.cfg.MaxPerHour) {
		return fmt.Errorf("report limit of %d per hour reached", d.cfg.MaxPerHour)
	}
	return nil
}

func (d *Dispatcher) finish(ctx context.Context, result domain.DispatchResult, outcome string, err error) domain.DispatchResult {
	if err != nil {
		result.Success = false
		result.Message = err.Error()
		slog.Error("report dispatch failed",
			"report_id", result.ID,
			"outcome", outcome,
			"recipients", len(result.Recipients),
			"error", err,
		)
	} else {
		slog.Info("report dispatched",
			"report_id", result.ID,
			"recipients", len(result.Recipients),
			"alert_count", result.AlertCount,
			"attachment", result.Attachment,
		)
	}

	if d.metrics != nil {
		d.metrics.ReportsDispatched.WithLabelValues(outcome).Inc()
	}

	if d.cache != nil {
		if err := cache.SetJSON(ctx, d.cache, resultPrefix+result.ID, result, d.cfg.ResultTTL); err != nil {
			slog.Warn("failed to store dispatch result", "report_id", result.ID, "error", err)
		}
	}

	if d.bus != nil {
		payload, _ := json.Marshal(result)
		if err := d.bus.Publish(ctx, domain.TopicReportDispatched, payload); err != nil {
			slog.Warn("failed to publish dispatch result", "report_id", result.ID, "error", err)
		}
	}

	return result
}

// CleanRecipients trims addresses and drops empty entries.
func CleanRecipients(recipients []string) []string {
	clean := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	return clean
}
