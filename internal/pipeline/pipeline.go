// Package pipeline runs the full filter, indicator, scoring and aggregation
// pass over the transaction snapshot.
package pipeline

import (
	"context"
	"time"

	"github.com/opensource-finance/harrier/internal/alerts"
	"github.com/opensource-finance/harrier/internal/dataset"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/indicators"
	"github.com/opensource-finance/harrier/internal/kpi"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/viz"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("harrier-pipeline")

// Dashboard is the result of one pipeline run.
type Dashboard struct {
	Filter        domain.Filter        `json:"filter"`
	KPIs          domain.KPIs          `json:"kpis"`
	Indeterminate domain.Indeterminate `json:"indeterminate"`
	Charts        domain.Charts        `json:"charts"`
	Alerts        []domain.Alert       `json:"alerts"`
	AlertCount    int                  `json:"alertCount"`
	GeneratedAt   time.Time            `json:"generatedAt"`
}

// Service owns the snapshot and the scoring engine. Every call works on its
// own filtered copy, so concurrent calls need no coordination.
type Service struct {
	snapshot *dataset.Snapshot
	engine   *rules.Engine
	selector *alerts.Selector
	metrics  *metrics.Collector
}

// NewService creates a pipeline service. metrics may be nil.
func NewService(snapshot *dataset.Snapshot, engine *rules.Engine, m *metrics.Collector) *Service {
	if m != nil {
		m.RecordsLoaded.Set(float64(snapshot.Len()))
		m.RulesLoaded.Set(float64(engine.RulesCount()))
	}
	return &Service{
		snapshot: snapshot,
		engine:   engine,
		selector: alerts.NewSelector(engine),
		metrics:  m,
	}
}

// Snapshot returns the dataset the service works on.
func (s *Service) Snapshot() *dataset.Snapshot {
	return s.snapshot
}

// Engine returns the scoring engine.
func (s *Service) Engine() *rules.Engine {
	return s.engine
}

// ReloadRules replaces the engine's risk rules. On error the previous
// rules stay active.
func (s *Service) ReloadRules(configs []*domain.RiskRule) error {
	if err := s.engine.ReloadRules(configs); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RulesLoaded.Set(float64(s.engine.RulesCount()))
	}
	return nil
}

// Options returns the filter values available in the snapshot.
func (s *Service) Options() domain.FilterOptions {
	return s.snapshot.Options()
}

// Run computes KPIs, chart tables and alerts for the filter.
// AlertCount is the number of alerts before opts.Limit is applied.
func (s *Service) Run(ctx context.Context, filter domain.Filter, opts alerts.Options) (*Dashboard, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	records, sets := s.prepare(ctx, filter)

	var d Dashboard
	d.Filter = filter
	s.stage(ctx, "kpis", func() {
		d.KPIs, d.Indeterminate = kpi.Compute(records, sets)
	})
	s.stage(ctx, "charts", func() {
		d.Charts = viz.Build(records, sets)
	})

	all, err := s.selectAlerts(ctx, records, sets, alerts.Options{HighRiskOnly: opts.HighRiskOnly})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.count("error")
		return nil, err
	}
	d.AlertCount = len(all)
	d.Alerts = all
	if opts.Limit > 0 && len(all) > opts.Limit {
		d.Alerts = all[:opts.Limit]
	}
	d.GeneratedAt = time.Now().UTC()

	span.SetAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("alerts", d.AlertCount),
	)
	s.count("ok")
	return &d, nil
}

// KPIs computes only the KPI bundle for the filter.
func (s *Service) KPIs(ctx context.Context, filter domain.Filter) (domain.KPIs, domain.Indeterminate) {
	ctx, span := tracer.Start(ctx, "pipeline.KPIs")
	defer span.End()

	records, sets := s.prepare(ctx, filter)

	var (
		k   domain.KPIs
		ind domain.Indeterminate
	)
	s.stage(ctx, "kpis", func() {
		k, ind = kpi.Compute(records, sets)
	})
	return k, ind
}

// Charts computes only the chart tables for the filter.
func (s *Service) Charts(ctx context.Context, filter domain.Filter) domain.Charts {
	ctx, span := tracer.Start(ctx, "pipeline.Charts")
	defer span.End()

	records, sets := s.prepare(ctx, filter)

	var charts domain.Charts
	s.stage(ctx, "charts", func() {
		charts = viz.Build(records, sets)
	})
	return charts
}

// Alerts selects the ranked alerts for the filter.
func (s *Service) Alerts(ctx context.Context, filter domain.Filter, opts alerts.Options) ([]domain.Alert, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Alerts")
	defer span.End()

	records, sets := s.prepare(ctx, filter)
	out, err := s.selectAlerts(ctx, records, sets, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (s *Service) prepare(ctx context.Context, filter domain.Filter) ([]domain.Record, []domain.IndicatorSet) {
	var (
		records []domain.Record
		sets    []domain.IndicatorSet
	)
	s.stage(ctx, "filter", func() {
		records = s.snapshot.Filter(filter)
	})
	s.stage(ctx, "indicators", func() {
		sets = indicators.EvaluateAll(records)
	})
	return records, sets
}

func (s *Service) selectAlerts(ctx context.Context, records []domain.Record, sets []domain.IndicatorSet, opts alerts.Options) ([]domain.Alert, error) {
	var (
		out []domain.Alert
		err error
	)
	s.stage(ctx, "alerts", func() {
		out, err = s.selector.Select(ctx, records, sets, opts)
	})
	if err == nil && s.metrics != nil {
		s.metrics.AlertsSelected.Observe(float64(len(out)))
	}
	return out, err
}

// stage runs fn inside a child span and records its duration.
func (s *Service) stage(ctx context.Context, name string, fn func()) {
	_, span := tracer.Start(ctx, "pipeline."+name, trace.WithAttributes(attribute.String("stage", name)))
	start := time.Now()
	fn()
	span.End()

	if s.metrics != nil {
		s.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.PipelineRuns.WithLabelValues(outcome).Inc()
	}
}
