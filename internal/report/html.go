package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/shopspring/decimal"
)

var badgeClass = map[string]string{
	domain.AlertLabelCVV:     "badge-cvv",
	domain.AlertLabelExpDate: "badge-exp",
	domain.AlertLabelGeo:     "badge-country",
	domain.AlertLabelCard:    "badge-card",
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"thousands": thousands,
	"money": func(d decimal.Decimal) string {
		return "$" + d.StringFixed(2)
	},
	"rate": func(f float64) string {
		return fmt.Sprintf("%.2f%%", f)
	},
	"timestamp": func(t time.Time) string {
		return t.Format("2006-01-02 15:04:05")
	},
	"badge": func(label string) string {
		return badgeClass[label]
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
.container { max-width: 800px; margin: 0 auto; background-color: white; padding: 30px; border-radius: 10px; }
.header { text-align: center; border-bottom: 3px solid #007bff; padding-bottom: 20px; margin-bottom: 30px; }
.header h1 { color: #007bff; margin: 0; font-size: 24px; }
.stat-card { display: inline-block; min-width: 160px; margin: 5px; padding: 20px; border-radius: 8px; text-align: center; background-color: #667eea; color: white; }
.stat-number { font-size: 28px; font-weight: bold; }
.alert-table { width: 100%; border-collapse: collapse; margin-top: 15px; }
.alert-table th { background-color: #f8f9fa; padding: 12px; text-align: left; border-bottom: 2px solid #dee2e6; }
.alert-table td { padding: 10px 12px; border-bottom: 1px solid #dee2e6; }
.risk-score { padding: 4px 8px; border-radius: 4px; color: white; font-weight: bold; }
.risk-high { background-color: #dc3545; }
.risk-medium { background-color: #fd7e14; }
.risk-low { background-color: #ffc107; color: #333; }
.badge { display: inline-block; padding: 2px 6px; margin: 1px; border-radius: 3px; font-size: 11px; color: white; }
.badge-cvv { background-color: #dc3545; }
.badge-exp { background-color: #fd7e14; }
.badge-country { background-color: #6610f2; }
.badge-card { background-color: #20c997; }
.no-alerts { text-align: center; padding: 40px; background-color: #d4edda; color: #155724; border-radius: 8px; }
.footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #dee2e6; text-align: center; color: #666; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<div class="header">
<h1>Reporte de Seguridad - Dashboard de Robo de Identidad</h1>
<p>Generado el {{.Generated}}</p>
</div>
<div class="stats">
<div class="stat-card"><div class="stat-number">{{thousands .KPIs.TotalTransactions}}</div><div>Total Transacciones</div></div>
<div class="stat-card"><div class="stat-number">{{thousands .KPIs.FraudTransactions}}</div><div>Fraudes Detectados ({{rate .KPIs.FraudRate}})</div></div>
<div class="stat-card"><div class="stat-number">{{thousands .KPIs.PotentialIdentityTheftCount}}</div><div>Posible Robo Identidad ({{rate .KPIs.PotentialIdentityTheftRate}})</div></div>
<div class="stat-card"><div class="stat-number">{{thousands .KPIs.CVVMismatchCount}}</div><div>CVV Incorrectos</div></div>
</div>
{{if .Alerts}}
<div class="alerts-section">
<h2>Alertas de Alto Riesgo Detectadas</h2>
<p>Se han identificado <strong>{{.AlertCount}}</strong> transacciones con indicadores de posible robo de identidad:</p>
<table class="alert-table">
<thead><tr><th>Cliente ID</th><th>Fecha/Hora</th><th>Monto</th><th>Comercio</th><th>País</th><th>Score Riesgo</th><th>Indicadores</th></tr></thead>
<tbody>
{{range .Alerts}}<tr>
<td>{{.CustomerID}}</td>
<td>{{timestamp .TransactionDateTime}}</td>
<td>{{money .TransactionAmount}}</td>
<td>{{.MerchantName}}</td>
<td>{{.MerchantCountryCode}}</td>
<td><span class="risk-score risk-{{.Severity}}">{{.RiskScore}}</span></td>
<td>{{range .Labels}}<span class="badge {{badge .}}">{{.}}</span>{{end}}</td>
</tr>
{{end}}</tbody>
</table>
</div>
{{else}}
<div class="no-alerts">
<h3>No se detectaron alertas de alto riesgo</h3>
<p>Todas las transacciones del período analizado están dentro de los parámetros normales de seguridad.</p>
</div>
{{end}}
<div class="footer">
<p>Este reporte fue generado automáticamente por el Sistema de Detección de Robo de Identidad.</p>
<p><strong>Confidencial:</strong> Este documento contiene información sensible y debe ser tratado con la debida confidencialidad.</p>
</div>
</div>
</body>
</html>
`))

type htmlData struct {
	Generated  string
	KPIs       domain.KPIs
	Alerts     []domain.Alert
	AlertCount int
}

// RenderHTML renders the HTML alternative of the report.
func RenderHTML(k domain.KPIs, alerts []domain.Alert, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, htmlData{
		Generated:  longDate(now),
		KPIs:       k,
		Alerts:     alerts,
		AlertCount: len(alerts),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
