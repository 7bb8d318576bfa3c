package translate

import (
	"reflect"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/eventlog-export-service/internal/models"
	"github.com/PratikDhanave/eventlog-export-service/internal/presentation"
)

// fakeRecord builds a fully populated record from a deterministic seed.
func fakeRecord(seed int64) models.SourceRecord {
	f := gofakeit.New(seed)
	ref := func() *models.Reference {
		return &models.Reference{Name: f.Username()}
	}
	i64 := func() *int64 {
		v := f.Int64()
		return &v
	}
	str := func() *string {
		v := f.Sentence(8)
		return &v
	}
	txDate := f.DateRange(time.Unix(0, 0), time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	uuid := f.UUID()

	return models.SourceRecord{
		RowID:             f.Int64(),
		Period:            f.DateRange(time.Unix(0, 0), time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
		Severity:          models.Severity(f.Number(0, 4)),
		ConnectID:         i64(),
		Session:           i64(),
		TransactionStatus: models.TransactionStatus(f.Number(0, 4)),
		TransactionDate:   &txDate,
		TransactionID:     i64(),
		User:              ref(),
		Computer:          ref(),
		Application:       &models.Reference{Name: f.RandomString([]string{"1CV8C", "Designer", "BackgroundJob", "Custom"})},
		Event:             &models.Reference{Name: f.RandomString([]string{"_$Data$_.New", "_$Session$_.Start", "Custom"})},
		Comment:           str(),
		Metadata:          ref(),
		Data:              str(),
		DataUUID:          &uuid,
		DataPresentation:  str(),
		WorkServer:        ref(),
		PrimaryPort:       ref(),
		SecondaryPort:     ref(),
	}
}

func TestProperty_TranslatorDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	tr := New(nil)

	properties.Property("translating a record twice yields identical rows", prop.ForAll(
		func(seed int64) bool {
			rec := fakeRecord(seed)
			return reflect.DeepEqual(tr.Row("ERP", rec), tr.Row("ERP", rec))
		},
		gen.Int64(),
	))

	properties.Property("two translators over the same table agree", prop.ForAll(
		func(seed int64) bool {
			rec := fakeRecord(seed)
			return reflect.DeepEqual(New(nil).Row("ERP", rec), tr.Row("ERP", rec))
		},
		gen.Int64(),
	))

	properties.Property("periods are stored in UTC with whole seconds", prop.ForAll(
		func(seed int64) bool {
			row := tr.Row("ERP", fakeRecord(seed))
			return row.Period.Location() == time.UTC && row.Period.Nanosecond() == 0 &&
				!row.Period.Before(models.MinPeriod)
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestRow_DefaultSubstitution(t *testing.T) {
	tr := New(nil)
	period := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	row := tr.Row("ERP", models.SourceRecord{RowID: 1, Period: period})

	assert.Equal(t, models.EventRow{
		InformationSystem: "ERP",
		ID:                1,
		Period:            period,
		Severity:          presentation.Unknown,
		TransactionStatus: presentation.Unknown,
		TransactionDate:   models.MinPeriod,
		Application:       presentation.Unknown,
		Event:             presentation.Unknown,
	}, row)
	assert.Equal(t, "", row.User)
	assert.Equal(t, "", row.Comment)
	assert.Zero(t, row.ConnectID)
	assert.Zero(t, row.TransactionID)
}

func TestRow_MapsEveryField(t *testing.T) {
	tr := New(nil)
	rec := fakeRecord(42)
	rec.Severity = models.SeverityError
	rec.TransactionStatus = models.TransactionCommitted
	rec.Application = &models.Reference{Name: "1CV8C"}
	rec.Event = &models.Reference{Name: "_$Data$_.Update"}

	row := tr.Row("HR", rec)

	assert.Equal(t, "HR", row.InformationSystem)
	assert.Equal(t, rec.RowID, row.ID)
	assert.Equal(t, "Error", row.Severity)
	assert.Equal(t, "Committed", row.TransactionStatus)
	assert.Equal(t, "Thin client", row.Application)
	assert.Equal(t, "Data. Update", row.Event)
	assert.Equal(t, *rec.ConnectID, row.ConnectID)
	assert.Equal(t, *rec.Session, row.Session)
	assert.Equal(t, *rec.TransactionID, row.TransactionID)
	assert.Equal(t, models.NormalizePeriod(*rec.TransactionDate), row.TransactionDate)
	assert.Equal(t, rec.User.Name, row.User)
	assert.Equal(t, rec.Computer.Name, row.Computer)
	assert.Equal(t, *rec.Comment, row.Comment)
	assert.Equal(t, rec.Metadata.Name, row.Metadata)
	assert.Equal(t, *rec.Data, row.Data)
	assert.Equal(t, *rec.DataUUID, row.DataUUID)
	assert.Equal(t, *rec.DataPresentation, row.DataPresentation)
	assert.Equal(t, rec.WorkServer.Name, row.WorkServer)
	assert.Equal(t, rec.PrimaryPort.Name, row.PrimaryPort)
	assert.Equal(t, rec.SecondaryPort.Name, row.SecondaryPort)
	assert.Len(t, row.Values(), len(models.EventRowColumns))
}

// sourceColumns names the EventRow field each SourceRecord field lands in.
var sourceColumns = map[string]string{
	"RowID":             "ID",
	"Period":            "Period",
	"Severity":          "Severity",
	"ConnectID":         "ConnectID",
	"Session":           "Session",
	"TransactionStatus": "TransactionStatus",
	"TransactionDate":   "TransactionDate",
	"TransactionID":     "TransactionID",
	"User":              "User",
	"Computer":          "Computer",
	"Application":       "Application",
	"Event":             "Event",
	"Comment":           "Comment",
	"Metadata":          "Metadata",
	"Data":              "Data",
	"DataUUID":          "DataUUID",
	"DataPresentation":  "DataPresentation",
	"WorkServer":        "WorkServer",
	"PrimaryPort":       "PrimaryPort",
	"SecondaryPort":     "SecondaryPort",
}

// A field added to SourceRecord without a destination column fails here.
func TestRow_EverySourceFieldHasAColumn(t *testing.T) {
	rec := fakeRecord(7)
	rec.Severity = models.SeverityWarning
	rec.TransactionStatus = models.TransactionRolledBack
	src := reflect.ValueOf(rec)
	row := reflect.ValueOf(New(nil).Row("ERP", rec))

	for i := 0; i < src.NumField(); i++ {
		field := src.Type().Field(i)
		t.Run(field.Name, func(t *testing.T) {
			require.False(t, src.Field(i).IsZero(), "fixture must populate SourceRecord.%s", field.Name)

			column, ok := sourceColumns[field.Name]
			require.True(t, ok, "SourceRecord.%s has no destination column", field.Name)

			dst := row.FieldByName(column)
			require.True(t, dst.IsValid(), "EventRow has no field %s", column)
			assert.False(t, dst.IsZero(), "SourceRecord.%s is not carried into EventRow.%s", field.Name, column)
		})
	}

	// Reference fields collapse into a single column each, so a Reference
	// may carry nothing but its name.
	ref := reflect.TypeOf(models.Reference{})
	for i := 0; i < ref.NumField(); i++ {
		assert.Equal(t, "Name", ref.Field(i).Name, "Reference.%s has no destination column", ref.Field(i).Name)
	}
}

func TestRows_PreservesOrder(t *testing.T) {
	tr := New(nil)
	recs := []models.SourceRecord{fakeRecord(1), fakeRecord(2), fakeRecord(3)}

	rows := tr.Rows("ERP", recs)

	if assert.Len(t, rows, 3) {
		for i := range recs {
			assert.Equal(t, recs[i].RowID, rows[i].ID)
		}
	}
	assert.Empty(t, tr.Rows("ERP", nil))
}
