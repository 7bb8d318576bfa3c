package models

import (
	"fmt"
	"strings"
	"time"
)

// MinPeriod is the "no timestamp" value stored for absent dates and returned
// when a system has no rows yet. It is the smallest instant every backend can
// round-trip (ClickHouse DateTime starts at the Unix epoch).
var MinPeriod = time.Unix(0, 0).UTC()

// NormalizePeriod converts t to the storage form: UTC, whole seconds.
// Times before MinPeriod are clamped to it.
func NormalizePeriod(t time.Time) time.Time {
	t = t.UTC().Truncate(time.Second)
	if t.Before(MinPeriod) {
		return MinPeriod
	}
	return t
}

// Severity is the event-log level of a record.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityInformation
	SeverityWarning
	SeverityError
	SeverityNote
)

var severityNames = map[Severity]string{
	SeverityUnknown:     "Unknown",
	SeverityInformation: "Information",
	SeverityWarning:     "Warning",
	SeverityError:       "Error",
	SeverityNote:        "Note",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts a severity name (case-insensitive). Empty means unknown.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := parseEnum(string(b), severityNames)
	if err != nil {
		return fmt.Errorf("severity: %w", err)
	}
	*s = v
	return nil
}

// TransactionStatus is the state of the transaction a record belongs to.
type TransactionStatus int

const (
	TransactionUnknown TransactionStatus = iota
	TransactionNotApplicable
	TransactionCommitted
	TransactionUnfinished
	TransactionRolledBack
)

var transactionNames = map[TransactionStatus]string{
	TransactionUnknown:       "Unknown",
	TransactionNotApplicable: "NotApplicable",
	TransactionCommitted:     "Committed",
	TransactionUnfinished:    "Unfinished",
	TransactionRolledBack:    "RolledBack",
}

func (s TransactionStatus) String() string {
	if n, ok := transactionNames[s]; ok {
		return n
	}
	return fmt.Sprintf("TransactionStatus(%d)", int(s))
}

// MarshalText encodes the status by name.
func (s TransactionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts a status name (case-insensitive). Empty means unknown.
func (s *TransactionStatus) UnmarshalText(b []byte) error {
	v, err := parseEnum(string(b), transactionNames)
	if err != nil {
		return fmt.Errorf("transaction status: %w", err)
	}
	*s = v
	return nil
}

func parseEnum[T comparable](raw string, names map[T]string) (T, error) {
	var zero T
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zero, nil
	}
	for v, n := range names {
		if strings.EqualFold(n, raw) {
			return v, nil
		}
	}
	return zero, fmt.Errorf("unknown value %q", raw)
}

// Reference is a named entry of the event log's reference tables
// (users, computers, applications, events, metadata, servers, ports).
// Only the name is exported; RowsData has no column for reference keys.
type Reference struct {
	Name string `json:"name"`
}

// SourceRecord is one event as produced by the log reader.
// Pointer fields are optional and may be absent in the source.
type SourceRecord struct {
	RowID             int64             `json:"row_id"`
	Period            time.Time         `json:"period"`
	Severity          Severity          `json:"severity"`
	ConnectID         *int64            `json:"connect_id,omitempty"`
	Session           *int64            `json:"session,omitempty"`
	TransactionStatus TransactionStatus `json:"transaction_status"`
	TransactionDate   *time.Time        `json:"transaction_date,omitempty"`
	TransactionID     *int64            `json:"transaction_id,omitempty"`
	User              *Reference        `json:"user,omitempty"`
	Computer          *Reference        `json:"computer,omitempty"`
	Application       *Reference        `json:"application,omitempty"`
	Event             *Reference        `json:"event,omitempty"`
	Comment           *string           `json:"comment,omitempty"`
	Metadata          *Reference        `json:"metadata,omitempty"`
	Data              *string           `json:"data,omitempty"`
	DataUUID          *string           `json:"data_uuid,omitempty"`
	DataPresentation  *string           `json:"data_presentation,omitempty"`
	WorkServer        *Reference        `json:"work_server,omitempty"`
	PrimaryPort       *Reference        `json:"primary_port,omitempty"`
	SecondaryPort     *Reference        `json:"secondary_port,omitempty"`
}

// EventRow is the storage shape of an ingested record. Every column is
// populated; there are no NULLs.
//
// (InformationSystem, ID, Period) identifies a row. ID alone is only unique
// within a system and period.
type EventRow struct {
	InformationSystem string
	ID                int64
	Period            time.Time
	Severity          string
	ConnectID         int64
	Session           int64
	TransactionStatus string
	TransactionDate   time.Time
	TransactionID     int64
	User              string
	Computer          string
	Application       string
	Event             string
	Comment           string
	Metadata          string
	Data              string
	DataUUID          string
	DataPresentation  string
	WorkServer        string
	PrimaryPort       string
	SecondaryPort     string
}

// Values returns the row in RowsData column order.
func (r EventRow) Values() []any {
	return []any{
		r.InformationSystem,
		r.ID,
		r.Period,
		r.Severity,
		r.ConnectID,
		r.Session,
		r.TransactionStatus,
		r.TransactionDate,
		r.TransactionID,
		r.User,
		r.Computer,
		r.Application,
		r.Event,
		r.Comment,
		r.Metadata,
		r.Data,
		r.DataUUID,
		r.DataPresentation,
		r.WorkServer,
		r.PrimaryPort,
		r.SecondaryPort,
	}
}

// EventRowColumns lists RowsData columns in the order of EventRow.Values.
var EventRowColumns = []string{
	"InformationSystem",
	"Id",
	"Period",
	"Severity",
	"ConnectId",
	"Session",
	"TransactionStatus",
	"TransactionDate",
	"TransactionId",
	"User",
	"Computer",
	"Application",
	"Event",
	"Comment",
	"Metadata",
	"Data",
	"DataUUID",
	"DataPresentation",
	"WorkServer",
	"PrimaryPort",
	"SecondaryPort",
}
