package history

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"recipe-lab/models"
)

// setupTestHistory creates an in-memory SQLite run log for testing
func setupTestHistory(t *testing.T, maxRuns int) *History {
	t.Helper()

	h := &History{path: ":memory:", maxRuns: maxRuns}
	var err error
	h.DB, err = openDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := h.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	t.Cleanup(func() { h.Close() })

	return h
}

func testEntry(action string, success bool) models.RunEntry {
	return models.RunEntry{
		ID:         uuid.NewString(),
		Timestamp:  "2026-08-29T12:00:00Z",
		Action:     action,
		DatasetDir: "testdata/dataset",
		ModelPath:  "artifacts/line_classifier.bin",
		Success:    success,
		Stages:     map[string]int{"validate": 0, "train": 0},
	}
}

func TestAppendAndRecent(t *testing.T) {
	h := setupTestHistory(t, 10)

	entry := testEntry("retrain", true)
	entry.Thresholds = &models.ThresholdReport{MacroF1: true, Overall: true}
	if err := h.Append(entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := h.Append(testEntry("metrics", false)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := h.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Action != "metrics" || entries[1].Action != "retrain" {
		t.Errorf("order = %q, %q; want metrics, retrain", entries[0].Action, entries[1].Action)
	}
	if entries[1].Thresholds == nil || !entries[1].Thresholds.Overall {
		t.Errorf("thresholds not round-tripped: %+v", entries[1].Thresholds)
	}
	if entries[0].Thresholds != nil {
		t.Errorf("thresholds = %+v, want nil when the run recorded none", entries[0].Thresholds)
	}
	if entries[1].Stages["validate"] != 0 || len(entries[1].Stages) != 2 {
		t.Errorf("stages = %+v", entries[1].Stages)
	}
}

func TestRetentionCap(t *testing.T) {
	h := setupTestHistory(t, 3)

	for i := 0; i < 5; i++ {
		entry := testEntry("retrain", true)
		entry.DatasetDir = fmt.Sprintf("dataset-%d", i)
		if err := h.Append(entry); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	entries, err := h.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Recent returned %d entries, want retention cap 3", len(entries))
	}
	// Oldest rows trimmed: runs 2, 3, 4 survive.
	if entries[0].DatasetDir != "dataset-4" || entries[2].DatasetDir != "dataset-2" {
		t.Errorf("surviving runs = %q .. %q", entries[0].DatasetDir, entries[2].DatasetDir)
	}
}

func TestRecentLimit(t *testing.T) {
	h := setupTestHistory(t, 10)
	for i := 0; i < 4; i++ {
		if err := h.Append(testEntry("metrics", true)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	entries, err := h.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Recent(2) returned %d entries", len(entries))
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	path := t.TempDir() + "/history.db"
	h, err := Open(path, 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	if h.Path() != path {
		t.Errorf("Path() = %q, want %q", h.Path(), path)
	}
	if err := h.Append(testEntry("retrain", true)); err != nil {
		t.Errorf("Append after Open: %v", err)
	}

	// Reopen against the same file; schema check must not reinitialize.
	h2, err := Open(path, 10)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer h2.Close()
	entries, err := h2.Recent(10)
	if err != nil {
		t.Fatalf("Recent after reopen: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries after reopen = %d, want 1", len(entries))
	}
}
