package errors

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReporter struct {
	enabled bool
	count   int
}

func (r *countingReporter) ReportError(ee *EnhancedError) {
	r.count++
	ee.MarkReported()
}

func (r *countingReporter) IsEnabled() bool { return r.enabled }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
}

func TestBuilderContext(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := Newf("write failed").
		Component("metadata").
		Category(CategoryCommandExecution).
		Priority("bogus").
		Context("operation", "write_tags").
		FileContext("/tmp/a/cat.JPG", 2048).
		Build()

	ctx := ee.GetContext()
	assert.Equal(t, "metadata", ee.GetComponent())
	assert.Equal(t, PriorityMedium, ee.GetPriority())
	assert.Equal(t, "write_tags", ctx["operation"])
	assert.Equal(t, "jpg", ctx["file_extension"])
	assert.Equal(t, "small", ctx["file_size_category"])

	// returned context is a copy
	ctx["operation"] = "changed"
	assert.Equal(t, "write_tags", ee.GetContext()["operation"])
}

func TestSentinelMatching(t *testing.T) {
	SetTelemetryReporter(nil)
	sentinel := NewStd("directory not found")

	wrapped := New(fmt.Errorf("%w: /nope", sentinel)).Category(CategoryNotFound).Build()

	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsCategory(wrapped, CategoryDatabase))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}

func TestReporterReceivesErrors(t *testing.T) {
	reporter := &countingReporter{enabled: true}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(fmt.Errorf("connection refused")).Component("inference").Build()

	assert.Equal(t, 1, reporter.count)
	assert.True(t, ee.IsReported())
	assert.Equal(t, CategoryNetwork, ee.Category, "category detected from message")
}

func TestDisabledReporterKeepsFastPath(t *testing.T) {
	reporter := &countingReporter{enabled: false}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	New(fmt.Errorf("boom")).Build()
	assert.Zero(t, reporter.count)
}

func TestScrubMessage(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	msg := ScrubMessage("POST http://localhost:11434/api/generate?token=abc failed for " + filepath.Join(home, "Pictures", "cat.jpg"))

	assert.NotContains(t, msg, "token=abc")
	assert.Contains(t, msg, "[REDACTED]")
	if home != "/" {
		assert.NotContains(t, msg, home)
	}
}
