package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dispatch-cli/internal/model"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"ingest", "ingests", "issues", "routemap", "invoice", "verify", "serve"}

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, w := range want {
		assert.True(t, names[w], "command %q not registered", w)
	}
}

func TestFormatIngestList(t *testing.T) {
	runs := []model.IngestRun{
		{
			ID:         "ing-1",
			SourceFile: "orders.csv",
			Status:     model.IngestStatusComplete,
			Stats:      &model.IngestStats{Orders: 12, Issues: 3, InvoiceTotal: 345.67},
			CreatedAt:  time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
		},
		{
			ID:         "ing-2",
			SourceFile: "broken.csv",
			Status:     model.IngestStatusFailed,
			CreatedAt:  time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	formatIngestList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "ing-1")
	assert.Contains(t, out, "$345.67")
	assert.Contains(t, out, "failed")
	// Failed run without stats renders placeholders.
	require.True(t, strings.Contains(out, "-"))
}

func TestFormatIssues(t *testing.T) {
	found := []model.Issue{
		{OrderID: "order-1", Driver: "Alice", Message: "Exceptionally long route", Severity: model.SeverityWarning},
		{OrderID: model.IssueOrderMultiple, Driver: "Bob", Message: "High driver load", Severity: model.SeverityWarning},
	}

	var buf bytes.Buffer
	formatIssues(&buf, found)

	assert.Contains(t, buf.String(), "Exceptionally long route")
	assert.Contains(t, buf.String(), "multiple")
}
