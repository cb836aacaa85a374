package ui

import (
	"strings"
	"testing"

	"tessera/internal/pipeline"
)

func TestProgressModelTracksSentences(t *testing.T) {
	lines := []string{"a b c", "x y", "z"}
	m := NewProgressModel("decoding", lines, nil).(*progressModel)

	m.applyEvent(pipeline.Event{Index: 0, Stage: pipeline.StageDecode, Status: pipeline.StatusWorking})
	m.applyEvent(pipeline.Event{Index: 1, Stage: pipeline.StageDecode, Status: pipeline.StatusFailed})
	m.applyEvent(pipeline.Event{Index: 2, Stage: pipeline.StageLookup, Status: pipeline.StatusCached})
	m.applyEvent(pipeline.Event{Index: 2, Stage: pipeline.StageLookup, Status: pipeline.StatusCached})
	m.applyEvent(pipeline.Event{Index: 9, Stage: pipeline.StageDecode, Status: pipeline.StatusDone})

	if m.finished != 2 || m.failed != 1 {
		t.Fatalf("finished=%d failed=%d", m.finished, m.failed)
	}
	view := m.View()
	for _, want := range []string{"decoding 2/3, 1 failed", "#0 a b c", "decoding", "failed", "cached"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestVisibleRowsBounded(t *testing.T) {
	lines := make([]string, 40)
	for i := range lines {
		lines[i] = "w"
	}
	m := NewProgressModel("t", lines, nil).(*progressModel)
	for i := range 30 {
		m.applyEvent(pipeline.Event{Index: i, Stage: pipeline.StageDecode, Status: pipeline.StatusDone})
	}
	m.applyEvent(pipeline.Event{Index: 35, Stage: pipeline.StageDecode, Status: pipeline.StatusWorking})
	rows := m.visibleRows()
	if len(rows) != maxRows {
		t.Fatalf("rows = %d", len(rows))
	}
	found := false
	for i, r := range rows {
		if i > 0 && rows[i-1] >= r {
			t.Fatalf("rows not sorted: %v", rows)
		}
		if r == 35 {
			found = true
		}
	}
	if !found {
		t.Fatalf("running sentence hidden: %v", rows)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefghij", 8); got != "ab..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
}
