// Package report builds and dispatches the security e-mail report.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/opensource-finance/harrier/internal/domain"
)

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// Subject returns the generated subject line for a report with alertCount alerts.
func Subject(alertCount int, now time.Time) string {
	date := now.Format("02/01/2006")
	if alertCount > 0 {
		return fmt.Sprintf("ALERTA DE SEGURIDAD - %d transacciones sospechosas detectadas - %s", alertCount, date)
	}
	return "Reporte de Seguridad - Sin alertas detectadas - " + date
}

// Summarize builds the plain-text report from the KPI bundle and alert count.
func Summarize(k domain.KPIs, alertCount int, now time.Time) domain.Summary {
	var b strings.Builder

	b.WriteString("Reporte de Seguridad - Dashboard de Robo de Identidad\n")
	b.WriteString("Generado el " + longDate(now) + "\n\n")

	b.WriteString("RESUMEN EJECUTIVO:\n")
	fmt.Fprintf(&b, "- Total de transacciones: %s\n", thousands(k.TotalTransactions))
	fmt.Fprintf(&b, "- Fraudes detectados: %s (%.2f%%)\n", thousands(k.FraudTransactions), k.FraudRate)
	fmt.Fprintf(&b, "- Posible robo de identidad: %s (%.2f%%)\n", thousands(k.PotentialIdentityTheftCount), k.PotentialIdentityTheftRate)
	fmt.Fprintf(&b, "- CVV incorrectos: %s\n\n", thousands(k.CVVMismatchCount))

	b.WriteString("ALERTAS:\n")
	if alertCount > 0 {
		fmt.Fprintf(&b, "Se detectaron %d transacciones con riesgo de robo de identidad.\n\n", alertCount)
	} else {
		b.WriteString("No se detectaron alertas de alto riesgo en este período.\n\n")
	}

	b.WriteString("Este reporte fue generado automáticamente por el Sistema de Detección de Robo de Identidad.\n")
	b.WriteString("Para más información, consulte el dashboard completo.\n")

	return domain.Summary{
		Subject: Subject(alertCount, now),
		Body:    b.String(),
	}
}

func longDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d a las %s", t.Day(), monthNames[t.Month()-1], t.Year(), t.Format("15:04"))
}

// thousands formats n with comma digit grouping.
func thousands(n int) string {
	return humanize.Comma(int64(n))
}
