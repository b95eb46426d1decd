package billing

import (
	"strings"
	"time"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// MarkBilledRequest identifies one invoicing unit and its invoice metadata.
type MarkBilledRequest struct {
	Client        string
	CyclePeriod   string
	InvoiceNumber string

	// InvoiceDate defaults to today (UTC) when nil.
	InvoiceDate *time.Time

	Notes string
}

// markBilled moves every aggregate and record of (client, cycle) to Billed
// with the given invoice metadata. changed is false when nothing matched or
// everything already carried exactly these values.
func (s *state) markBilled(req MarkBilledRequest, invoiceDate time.Time) (aggregates, records int, changed bool) {
	key := types.ClientCycle{Client: req.Client, CyclePeriod: req.CyclePeriod}
	number := strings.TrimSpace(req.InvoiceNumber)

	for i := range s.aggregates {
		a := &s.aggregates[i]
		if a.Client != key.Client || a.CyclePeriod != key.CyclePeriod {
			continue
		}
		aggregates++
		if a.InvoiceStatus == types.StatusBilled && a.InvoiceNumber == number &&
			sameDate(a.InvoiceDate, invoiceDate) && a.Notes == req.Notes {
			continue
		}
		a.InvoiceStatus = types.StatusBilled
		a.InvoiceNumber = number
		d := invoiceDate
		a.InvoiceDate = &d
		a.Notes = req.Notes
		changed = true
	}

	for i := range s.shipments {
		r := &s.shipments[i]
		if r.ClientCycle() != key {
			continue
		}
		records++
		if r.InvoiceStatus == types.StatusBilled && r.InvoiceNumber == number && sameDate(r.InvoiceDate, invoiceDate) {
			continue
		}
		r.InvoiceStatus = types.StatusBilled
		r.InvoiceNumber = number
		d := invoiceDate
		r.InvoiceDate = &d
		changed = true
	}

	return aggregates, records, changed
}

func sameDate(a *time.Time, b time.Time) bool {
	return a != nil && a.Equal(b)
}

// dateOnly truncates to a UTC calendar date.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
