package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marshallshelly/fenceorders/pkg/migration"
)

func records() []migration.MigrationRecord {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := "syntax error"
	return []migration.MigrationRecord{
		{Version: "0001", Name: "init", Status: migration.StatusApplied, AppliedAt: &at},
		{Version: "0002", Name: "indexes", Status: migration.StatusFailed, Error: &msg},
		{Version: "0003", Name: "audit", Status: migration.StatusPending},
	}
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, Summary{Applied: 1, Pending: 1, Failed: 1}, Summarize(records()))
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestMigrationStatus_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(&buf, false).MigrationStatus(records()))

	out := buf.String()
	assert.Contains(t, out, "VERSION")
	assert.Contains(t, out, "0001")
	assert.Contains(t, out, "2026-03-01 12:00:00")
	assert.Contains(t, out, "Summary: 1 applied, 1 pending, 1 failed")
}

func TestMigrationStatus_JSON(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, true)
	p.Info("hidden in json mode")
	require.NoError(t, p.MigrationStatus(records()))

	var doc struct {
		Migrations []migration.MigrationRecord `json:"migrations"`
		Summary    Summary                     `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Len(t, doc.Migrations, 3)
	assert.Equal(t, 1, doc.Summary.Failed)
}

func TestMessages(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, false)
	p.Success("applied %d migration(s)", 2)
	p.Section("Migrations")
	assert.Contains(t, buf.String(), "applied 2 migration(s)")
	assert.Contains(t, buf.String(), "Migrations")
}
