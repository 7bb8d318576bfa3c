package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/eventlog-export-service/internal/models"
)

const sample = `{"row_id":1,"period":"2024-01-01T00:00:00Z","severity":"Information","event":{"name":"_$Session$_.Start"}}
{"row_id":2,"period":"2024-01-01T00:00:05Z","severity":"error","transaction_status":"Committed","comment":"C:\\temp\\x"}

{"row_id":3,"period":"2024-01-01T00:00:09Z","user":{"name":"admin","uuid":"8d1f0e9a-4c3b-4f7a-9b0e-1a2b3c4d5e6f"}}
`

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func readAll(t *testing.T, r Reader) []models.SourceRecord {
	t.Helper()
	var out []models.SourceRecord
	for {
		rec, err := r.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestJSONLReader_ReadsRecords(t *testing.T) {
	path := writeSource(t, sample)
	r, err := OpenJSONL(path, "refs.lgf")
	require.NoError(t, err)
	defer r.Close()

	recs := readAll(t, r)
	require.Len(t, recs, 3)

	assert.Equal(t, int64(1), recs[0].RowID)
	assert.Equal(t, models.SeverityInformation, recs[0].Severity)
	assert.Equal(t, "_$Session$_.Start", recs[0].Event.Name)
	assert.True(t, recs[0].Period.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	assert.Equal(t, models.SeverityError, recs[1].Severity)
	assert.Equal(t, models.TransactionCommitted, recs[1].TransactionStatus)
	assert.Equal(t, `C:\temp\x`, *recs[1].Comment)
	assert.Nil(t, recs[1].User)

	assert.Equal(t, "admin", recs[2].User.Name)

	pos := r.Position()
	assert.Equal(t, int64(3), pos.EventNumber)
	assert.Equal(t, int64(len(sample)), pos.StreamPosition)
	assert.Equal(t, path, pos.CurrentFileData)
	assert.Equal(t, "refs.lgf", pos.CurrentFileReferences)
	assert.Equal(t, "events.jsonl", r.FileInfo().Name)
}

func TestJSONLReader_SeekResumesAfterPosition(t *testing.T) {
	path := writeSource(t, sample)

	first, err := OpenJSONL(path, "")
	require.NoError(t, err)
	_, err = first.Next(context.Background())
	require.NoError(t, err)
	saved := first.Position()
	require.NoError(t, first.Close())

	second, err := OpenJSONL(path, "")
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Seek(saved))

	recs := readAll(t, second)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].RowID)
	assert.Equal(t, int64(3), second.Position().EventNumber)
}

func TestJSONLReader_SeekRejectsForeignPosition(t *testing.T) {
	path := writeSource(t, sample)
	r, err := OpenJSONL(path, "")
	require.NoError(t, err)
	defer r.Close()

	err = r.Seek(models.Position{CurrentFileData: "/elsewhere.jsonl"})
	assert.ErrorIs(t, err, ErrPositionMismatch)

	err = r.Seek(models.Position{CurrentFileData: path, StreamPosition: int64(len(sample)) + 1})
	assert.ErrorIs(t, err, ErrPositionMismatch)
}

func TestJSONLReader_InvalidLineKeepsPosition(t *testing.T) {
	content := strings.SplitAfter(sample, "\n")[0] + "{not json}\n"
	path := writeSource(t, content)
	r, err := OpenJSONL(path, "")
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next(context.Background())
	require.NoError(t, err)
	before := r.Position()

	_, err = r.Next(context.Background())
	require.Error(t, err)
	assert.Equal(t, before, r.Position(), "a bad line is never counted as consumed")
}

func TestJSONLReader_TrailingLineWithoutNewline(t *testing.T) {
	content := `{"row_id":9,"period":"2024-01-01T00:00:00Z"}`
	r, err := OpenJSONL(writeSource(t, content), "")
	require.NoError(t, err)
	defer r.Close()

	recs := readAll(t, r)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(len(content)), r.Position().StreamPosition)
}

func TestJSONLReader_Cancelled(t *testing.T) {
	r, err := OpenJSONL(writeSource(t, sample), "")
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenJSONL_Missing(t *testing.T) {
	_, err := OpenJSONL(filepath.Join(t.TempDir(), "missing.jsonl"), "")
	assert.Error(t, err)
}
