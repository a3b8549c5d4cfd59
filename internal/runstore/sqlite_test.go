package runstore

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewRunsMigrations(t *testing.T) {
	s := newTestStore(t)

	run := &WalkRun{Provider: "example", Mode: "mirror", StartTime: time.Now(), Status: "running"}
	if err := s.CreateWalkRun(run); err != nil {
		t.Fatalf("CreateWalkRun() failed: %v", err)
	}
	if run.ID == 0 {
		t.Error("expected ID to be set after CreateWalkRun")
	}
	if run.RunUUID == "" {
		t.Error("expected RunUUID to be set after CreateWalkRun")
	}
}

func TestCreateAndGetWalkRun(t *testing.T) {
	s := newTestStore(t)

	run := &WalkRun{
		Provider:       "example",
		Mode:           "mirror",
		StartTime:      time.Now().Truncate(time.Second),
		DocsDiscovered: 10,
		DocsStored:     8,
		DocsSkipped:    2,
		Status:         "running",
	}
	if err := s.CreateWalkRun(run); err != nil {
		t.Fatalf("CreateWalkRun() failed: %v", err)
	}

	got, err := s.GetWalkRun(run.ID)
	if err != nil {
		t.Fatalf("GetWalkRun() failed: %v", err)
	}
	if got.Provider != "example" || got.DocsDiscovered != 10 || got.DocsStored != 8 {
		t.Errorf("GetWalkRun() = %+v, want matching fields of %+v", got, run)
	}
}

func TestUpdateWalkRun(t *testing.T) {
	s := newTestStore(t)

	run := &WalkRun{Provider: "example", Mode: "mirror", StartTime: time.Now(), Status: "running"}
	if err := s.CreateWalkRun(run); err != nil {
		t.Fatalf("CreateWalkRun() failed: %v", err)
	}

	run.Status = "success"
	run.EndTime = time.Now()
	run.DocsStored = 5
	if err := s.UpdateWalkRun(run); err != nil {
		t.Fatalf("UpdateWalkRun() failed: %v", err)
	}

	got, err := s.GetWalkRun(run.ID)
	if err != nil {
		t.Fatalf("GetWalkRun() failed: %v", err)
	}
	if got.Status != "success" || got.DocsStored != 5 {
		t.Errorf("GetWalkRun() after update = %+v", got)
	}
}

func TestUpdateWalkRunNotFound(t *testing.T) {
	s := newTestStore(t)

	run := &WalkRun{ID: 999, Provider: "example", Status: "success"}
	if err := s.UpdateWalkRun(run); err == nil {
		t.Error("UpdateWalkRun() for nonexistent run succeeded, want error")
	}
}

func TestListWalkRuns(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		run := &WalkRun{Provider: "example", Mode: "mirror", StartTime: time.Now().Add(time.Duration(i) * time.Minute), Status: "success"}
		if err := s.CreateWalkRun(run); err != nil {
			t.Fatalf("CreateWalkRun() failed: %v", err)
		}
	}
	other := &WalkRun{Provider: "other", Mode: "mirror", StartTime: time.Now(), Status: "success"}
	if err := s.CreateWalkRun(other); err != nil {
		t.Fatalf("CreateWalkRun() failed: %v", err)
	}

	runs, err := s.ListWalkRuns("example", 10)
	if err != nil {
		t.Fatalf("ListWalkRuns() failed: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("ListWalkRuns() returned %d runs, want 3", len(runs))
	}
}

func TestRecordAndListDocumentOutcomes(t *testing.T) {
	s := newTestStore(t)

	run := &WalkRun{Provider: "example", Mode: "validate", StartTime: time.Now(), Status: "running"}
	if err := s.CreateWalkRun(run); err != nil {
		t.Fatalf("CreateWalkRun() failed: %v", err)
	}

	outcomes := []*DocumentOutcome{
		{RunID: run.ID, URL: "https://example.com/a.json", ValidationResult: "ok", Stored: true},
		{RunID: run.ID, URL: "https://example.com/b.json", ValidationResult: "digest_mismatch", Stored: false},
	}
	for _, o := range outcomes {
		if err := s.RecordDocumentOutcome(o); err != nil {
			t.Fatalf("RecordDocumentOutcome() failed: %v", err)
		}
		if o.ID == 0 {
			t.Error("expected ID to be set after RecordDocumentOutcome")
		}
	}

	got, err := s.ListDocumentOutcomes(run.ID)
	if err != nil {
		t.Fatalf("ListDocumentOutcomes() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListDocumentOutcomes() returned %d outcomes, want 2", len(got))
	}
	if got[1].ValidationResult != "digest_mismatch" || got[1].Stored {
		t.Errorf("ListDocumentOutcomes()[1] = %+v", got[1])
	}
}

func TestClose(t *testing.T) {
	s, err := New(":memory:", slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if _, err := s.ListWalkRuns("example", 10); err == nil {
		t.Error("expected error when using closed store")
	}
}
