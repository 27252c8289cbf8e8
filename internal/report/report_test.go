package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/alerts"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/dataset"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/metrics"
	"github.com/opensource-finance/harrier/internal/pipeline"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 5, 14, 7, 0, 0, time.UTC)

type fakeTransport struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (f *fakeTransport) Send(ctx context.Context, email Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

type failingRunner struct{}

func (failingRunner) Run(ctx context.Context, filter domain.Filter, opts alerts.Options) (*pipeline.Dashboard, error) {
	return nil, errors.New("scoring failed")
}

func record(id string, flagged, fraud bool) domain.Record {
	ts := time.Date(2016, 7, 14, 9, 30, 0, 0, time.UTC)
	r := domain.Record{
		TransactionID:            id,
		CustomerID:               "cust-" + id,
		TransactionDateTime:      ts,
		TransactionDate:          domain.TruncateDate(ts),
		TransactionAmount:        decimal.RequireFromString("75.5"),
		MerchantName:             "Shop " + id,
		MerchantCountryCode:      "US",
		MerchantCategoryCode:     "online_retail",
		AcqCountry:               "US",
		CardCVV:                  "321",
		EnteredCVV:               "321",
		ExpirationDateKeyInMatch: true,
		CardPresent:              true,
		AmountRange:              domain.AmountRange51To200,
	}
	if flagged {
		r.CardPresent = false
		r.EnteredCVV = "999"
		r.AcqCountry = "RU"
	}
	if fraud {
		r.IsFraud = 1
	}
	return r
}

func newPipeline(t *testing.T, records []domain.Record) *pipeline.Service {
	t.Helper()
	engine, err := rules.NewEngine(2)
	require.NoError(t, err)
	require.NoError(t, engine.LoadRules(rules.DefaultRiskRules()))
	t.Cleanup(func() { engine.Close() })
	return pipeline.NewService(dataset.FromRecords(records), engine, nil)
}

func sampleRecords() []domain.Record {
	return []domain.Record{
		record("a", true, true),
		record("b", true, false),
		record("c", false, false),
		record("d", false, true),
	}
}

func newDispatcher(t *testing.T, runner Runner, tr Transport, cfg domain.ReportConfig) (*Dispatcher, *cache.LRUCache, *metrics.Collector) {
	t.Helper()
	c := cache.NewLRUCache(100)
	m := metrics.NewCollector()
	d := NewDispatcher(runner, tr, c, nil, m, cfg)
	d.now = func() time.Time { return fixedNow }
	return d, c, m
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "ALERTA DE SEGURIDAD - 3 transacciones sospechosas detectadas - 05/03/2026", Subject(3, fixedNow))
	assert.Equal(t, "Reporte de Seguridad - Sin alertas detectadas - 05/03/2026", Subject(0, fixedNow))
}

func TestSummarize(t *testing.T) {
	k := domain.KPIs{
		TotalTransactions:           12345,
		FraudTransactions:           200,
		FraudRate:                   1.62,
		PotentialIdentityTheftCount: 42,
		PotentialIdentityTheftRate:  0.34,
		CVVMismatchCount:            1001,
	}

	t.Run("WithAlerts", func(t *testing.T) {
		s := Summarize(k, 42, fixedNow)
		assert.Equal(t, Subject(42, fixedNow), s.Subject)
		assert.Contains(t, s.Body, "Generado el 05 de marzo de 2026 a las 14:07")
		assert.Contains(t, s.Body, "- Total de transacciones: 12,345")
		assert.Contains(t, s.Body, "- Fraudes detectados: 200 (1.62%)")
		assert.Contains(t, s.Body, "- Posible robo de identidad: 42 (0.34%)")
		assert.Contains(t, s.Body, "- CVV incorrectos: 1,001")
		assert.Contains(t, s.Body, "Se detectaron 42 transacciones")
	})

	t.Run("NoAlerts", func(t *testing.T) {
		s := Summarize(domain.KPIs{}, 0, fixedNow)
		assert.Contains(t, s.Subject, "Sin alertas detectadas")
		assert.Contains(t, s.Body, "No se detectaron alertas de alto riesgo")
		assert.NotContains(t, s.Body, "Se detectaron")
	})
}

func TestThousands(t *testing.T) {
	tests := map[int]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		123456:   "123,456",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
	}
	for n, want := range tests {
		assert.Equal(t, want, thousands(n))
	}
}

func TestWriteAlertsCSV(t *testing.T) {
	alert := domain.Alert{Record: record("a", true, true), RiskScore: 6}

	var buf bytes.Buffer
	require.NoError(t, WriteAlertsCSV(&buf, []domain.Alert{alert}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.AlertCSVColumns, rows[0])
	assert.Equal(t, []string{
		"cust-a", "2016-07-14 09:30:00", "75.5", "Shop a", "US", "6",
		"321", "999", "true", "RU", "false",
	}, rows[1])

	assert.Equal(t, "alertas_seguridad_20260305_1407.csv", AttachmentName(fixedNow))
}

func TestRenderHTML(t *testing.T) {
	t.Run("WithAlerts", func(t *testing.T) {
		set := domain.IndicatorSet{CVVMismatch: true, CardNotPresent: true}
		alert := domain.Alert{
			Record:    record("a", true, true),
			RiskScore: 6,
			Labels:    set.Labels(),
			Severity:  domain.SeverityFor(6),
		}
		alert.MerchantName = "<script>alert(1)</script>"

		html, err := RenderHTML(domain.KPIs{TotalTransactions: 5000}, []domain.Alert{alert}, fixedNow)
		require.NoError(t, err)
		assert.Contains(t, html, "5,000")
		assert.Contains(t, html, "risk-high")
		assert.Contains(t, html, "badge-cvv")
		assert.Contains(t, html, "$75.50")
		assert.NotContains(t, html, "<script>")
		assert.NotContains(t, html, "No se detectaron alertas")
	})

	t.Run("NoAlerts", func(t *testing.T) {
		html, err := RenderHTML(domain.KPIs{}, nil, fixedNow)
		require.NoError(t, err)
		assert.Contains(t, html, "No se detectaron alertas de alto riesgo")
		assert.NotContains(t, html, "alert-table\">")
	})
}

func TestCleanRecipients(t *testing.T) {
	got := CleanRecipients([]string{" a@example.com ", "", "   ", "b@example.com"})
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got)
	assert.Empty(t, CleanRecipients(nil))
}

func TestDispatcherSend(t *testing.T) {
	ctx := context.Background()

	t.Run("Sent", func(t *testing.T) {
		tr := &fakeTransport{}
		d, _, m := newDispatcher(t, newPipeline(t, sampleRecords()), tr, domain.ReportConfig{})

		res := d.Send(ctx, domain.ReportRequest{Recipients: []string{" sec@example.com "}})
		require.True(t, res.Success, res.Message)
		assert.Equal(t, 2, res.AlertCount)
		assert.Equal(t, []string{"sec@example.com"}, res.Recipients)
		assert.Equal(t, "alertas_seguridad_20260305_1407.csv", res.Attachment)
		assert.NotEmpty(t, res.ID)

		require.Len(t, tr.sent, 1)
		email := tr.sent[0]
		assert.Equal(t, Subject(2, fixedNow), email.Subject)
		assert.Equal(t, []string{"sec@example.com"}, email.To)
		assert.Contains(t, email.Text, "Se detectaron 2 transacciones")
		require.NotNil(t, email.Attachment)
		rows, err := csv.NewReader(bytes.NewReader(email.Attachment.Data)).ReadAll()
		require.NoError(t, err)
		assert.Len(t, rows, 3)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsDispatched.WithLabelValues(OutcomeSent)))
	})

	t.Run("CustomSubjectWithoutCSV", func(t *testing.T) {
		tr := &fakeTransport{}
		d, _, _ := newDispatcher(t, newPipeline(t, sampleRecords()), tr, domain.ReportConfig{})
		noCSV := false

		res := d.Send(ctx, domain.ReportRequest{
			Recipients: []string{"sec@example.com"},
			Subject:    "  Weekly  ",
			AttachCSV:  &noCSV,
		})
		require.True(t, res.Success)
		assert.Equal(t, "Weekly", res.Subject)
		assert.Empty(t, res.Attachment)
		assert.Nil(t, tr.sent[0].Attachment)
	})

	t.Run("NoAlertsHasNoAttachment", func(t *testing.T) {
		tr := &fakeTransport{}
		d, _, _ := newDispatcher(t, newPipeline(t, []domain.Record{record("c", false, false)}), tr, domain.ReportConfig{})

		res := d.Send(ctx, domain.ReportRequest{Recipients: []string{"sec@example.com"}})
		require.True(t, res.Success)
		assert.Zero(t, res.AlertCount)
		assert.Contains(t, res.Subject, "Sin alertas detectadas")
		assert.Nil(t, tr.sent[0].Attachment)
	})

	t.Run("DefaultRecipients", func(t *testing.T) {
		tr := &fakeTransport{}
		d, _, _ := newDispatcher(t, newPipeline(t, sampleRecords()), tr, domain.ReportConfig{
			Recipients: []string{"team@example.com"},
		})

		res := d.Send(ctx, domain.ReportRequest{})
		require.True(t, res.Success)
		assert.Equal(t, []string{"team@example.com"}, res.Recipients)
	})

	t.Run("NoRecipients", func(t *testing.T) {
		tr := &fakeTransport{}
		d, _, m := newDispatcher(t, newPipeline(t, sampleRecords()), tr, domain.ReportConfig{})

		res := d.Send(ctx, domain.ReportRequest{Recipients: []string{" ", ""}})
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "no valid recipients")
		assert.Empty(t, tr.sent)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsDispatched.WithLabelValues(OutcomeRejected)))
	})

	t.Run("NotConfigured", func(t *testing.T) {
		d, _, _ := newDispatcher(t, newPipeline(t, sampleRecords()), nil, domain.ReportConfig{})

		res := d.Send(ctx, domain.ReportRequest{Recipients: []string{"sec@example.com"}})
		assert.False(t, res.Success)
		assert.Equal(t, ErrMailNotConfigured.Error(), res.Message)
	})

	t.Run("TransportFailure", func(t *testing.T) {
		tr := &fakeTransport{err: errors.New("535 authentication failed")}
		d, _, m := newDispatcher(t, newPipeline(t, sampleRecords()), tr, domain.ReportConfig{})

		res := d.Send(ctx, domain.ReportRequest{Recipients: []string{"sec@example.com"}})
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "authentication failed")
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsDispatched.WithLabelValues(OutcomeFailed)))
	})

	t.Run("PipelineFailure", func(t *testing.T) {
		tr := &fakeTransport{}
		d, _, _ := newDispatcher(t, failingRunner{}, tr, domain.ReportConfig{})

		res := d.Send(ctx, domain.ReportRequest{Recipients: []string{"sec@example.com"}})
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "scoring failed")
		assert.Empty(t, tr.sent)
	})

	t.Run("Throttled", func(t *testing.T) {
		tr := &fakeTransport{}
		d, _, m := newDispatcher(t, newPipeline(t, sampleRecords()), tr, domain.ReportConfig{MaxPerHour: 2})
		req := domain.ReportRequest{Recipients: []string{"sec@example.com"}}

		assert.True(t, d.Send(ctx, req).Success)
		assert.True(t, d.Send(ctx, req).Success)
		res := d.Send(ctx, req)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "2 per hour")
		assert.Len(t, tr.sent, 2)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ReportsDispatched.WithLabelValues(OutcomeThrottled)))
	})
}

func TestDispatcherResult(t *testing.T) {
	ctx := context.Background()
	tr := &fakeTransport{}
	d, _, _ := newDispatcher(t, newPipeline(t, sampleRecords()), tr, domain.ReportConfig{})

	sent := d.Send(ctx, domain.ReportRequest{Recipients: []string{"sec@example.com"}})
	require.True(t, sent.Success)

	got, err := d.Result(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, sent.AlertCount, got.AlertCount)
	assert.True(t, got.Success)

	_, err = d.Result(ctx, "missing")
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestDispatcherPublishesResult(t *testing.T) {
	ctx := context.Background()
	b := bus.NewChannelBus(10)
	defer b.Close()

	got := make(chan domain.DispatchResult, 1)
	_, err := b.Subscribe(ctx, domain.TopicReportDispatched, func(ctx context.Context, msg *domain.Message) error {
		var res domain.DispatchResult
		if err := json.Unmarshal(msg.Payload, &res); err != nil {
			return err
		}
		got <- res
		return nil
	})
	require.NoError(t, err)

	d := NewDispatcher(newPipeline(t, sampleRecords()), &fakeTransport{}, nil, b, nil, domain.ReportConfig{})
	sent := d.Send(ctx, domain.ReportRequest{Recipients: []string{"sec@example.com"}})

	select {
	case res := <-got:
		assert.Equal(t, sent.ID, res.ID)
		assert.True(t, res.Success)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for dispatched event")
	}
}

func TestDispatcherPreview(t *testing.T) {
	d, _, _ := newDispatcher(t, newPipeline(t, sampleRecords()), &fakeTransport{}, domain.ReportConfig{})

	s, err := d.Preview(context.Background(), domain.Filter{}, false)
	require.NoError(t, err)
	assert.Equal(t, Subject(2, fixedNow), s.Subject)
	assert.Contains(t, s.Body, "- Total de transacciones: 4")

	_, err = NewDispatcher(failingRunner{}, nil, nil, nil, nil, domain.ReportConfig{}).Preview(context.Background(), domain.Filter{}, false)
	assert.Error(t, err)
}

func TestSMTPTransport(t *testing.T) {
	t.Run("RequiresCredentials", func(t *testing.T) {
		_, err := NewSMTPTransport(domain.MailConfig{Address: "bot@example.com"})
		assert.ErrorIs(t, err, ErrMailNotConfigured)
	})

	t.Run("Defaults", func(t *testing.T) {
		tr, err := NewSMTPTransport(domain.MailConfig{Address: "bot@example.com", Password: "secret"})
		require.NoError(t, err)
		assert.Equal(t, "smtp.gmail.com", tr.cfg.SMTPServer)
		assert.Equal(t, 587, tr.cfg.SMTPPort)
	})

	t.Run("Compose", func(t *testing.T) {
		tr, err := NewSMTPTransport(domain.MailConfig{Address: "bot@example.com", Password: "secret", FromName: "Dashboard de Seguridad"})
		require.NoError(t, err)

		msg, err := tr.compose(Email{
			To:         []string{"sec@example.com"},
			Subject:    "Subject",
			Text:       "body",
			HTML:       "<p>body</p>",
			Attachment: &Attachment{Name: "alertas.csv", Data: []byte("a,b\n")},
		})
		require.NoError(t, err)
		assert.NotNil(t, msg)

		_, err = tr.compose(Email{To: []string{"not an address"}})
		assert.Error(t, err)
	})

	t.Run("SubjectIsNotInjected", func(t *testing.T) {
		s := Subject(1, fixedNow)
		assert.False(t, strings.ContainsAny(s, "\r\n"))
	})
}
