package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

// AttachmentName returns the file name of the alert export created at now.
func AttachmentName(now time.Time) string {
	return "alertas_seguridad_" + now.Format("20060102_1504") + ".csv"
}

// WriteAlertsCSV writes alerts in domain.AlertCSVColumns order.
func WriteAlertsCSV(w io.Writer, alerts []domain.Alert) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.AlertCSVColumns); err != nil {
		return err
	}

	for _, a := range alerts {
		row := []string{
			a.CustomerID,
			a.TransactionDateTime.Format("2006-01-02 15:04:05"),
			a.TransactionAmount.String(),
			a.MerchantName,
			a.MerchantCountryCode,
			strconv.Itoa(a.RiskScore),
			a.CardCVV,
			a.EnteredCVV,
			strconv.FormatBool(a.ExpirationDateKeyInMatch),
			a.AcqCountry,
			strconv.FormatBool(a.CardPresent),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
