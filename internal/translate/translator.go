// Package translate maps log reader records to RowsData rows.
package translate

import (
	"time"

	"github.com/PratikDhanave/eventlog-export-service/internal/models"
	"github.com/PratikDhanave/eventlog-export-service/internal/presentation"
)

// Translator converts SourceRecords into EventRows. It holds no mutable
// state, so the same record always produces the same row.
type Translator struct {
	table *presentation.Table
}

// New returns a Translator using table for categorical fields.
// A nil table selects presentation.Default().
func New(table *presentation.Table) *Translator {
	if table == nil {
		table = presentation.Default()
	}
	return &Translator{table: table}
}

// Row translates one record for the given information system.
func (t *Translator) Row(system string, r models.SourceRecord) models.EventRow {
	return models.EventRow{
		InformationSystem: system,
		ID:                r.RowID,
		Period:            models.NormalizePeriod(r.Period),
		Severity:          t.table.Severity(r.Severity),
		ConnectID:         intOrZero(r.ConnectID),
		Session:           intOrZero(r.Session),
		TransactionStatus: t.table.TransactionStatus(r.TransactionStatus),
		TransactionDate:   timeOrMin(r.TransactionDate),
		TransactionID:     intOrZero(r.TransactionID),
		User:              refName(r.User),
		Computer:          refName(r.Computer),
		Application:       t.table.Application(refName(r.Application)),
		Event:             t.table.Event(refName(r.Event)),
		Comment:           strOrEmpty(r.Comment),
		Metadata:          refName(r.Metadata),
		Data:              strOrEmpty(r.Data),
		DataUUID:          strOrEmpty(r.DataUUID),
		DataPresentation:  strOrEmpty(r.DataPresentation),
		WorkServer:        refName(r.WorkServer),
		PrimaryPort:       refName(r.PrimaryPort),
		SecondaryPort:     refName(r.SecondaryPort),
	}
}

// Rows translates a batch, preserving order.
func (t *Translator) Rows(system string, records []models.SourceRecord) []models.EventRow {
	out := make([]models.EventRow, len(records))
	for i, r := range records {
		out[i] = t.Row(system, r)
	}
	return out
}

func intOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func timeOrMin(v *time.Time) time.Time {
	if v == nil {
		return models.MinPeriod
	}
	return models.NormalizePeriod(*v)
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func refName(r *models.Reference) string {
	if r == nil {
		return ""
	}
	return r.Name
}
