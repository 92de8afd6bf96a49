package storage

import (
	"testing"
	"time"
)

func TestLogEventAndQuery(t *testing.T) {
	store := newTestStore(t)

	if err := store.LogEvent("decrypt_failed", SeverityWarning, "message 1000"); err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}
	if err := store.LogEvent("message_delivered", "", "message 1000"); err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}

	events, err := store.GetEngineEvents(EngineEventFilter{})
	if err != nil {
		t.Fatalf("GetEngineEvents returned error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	// Empty severity defaults to info.
	byType, err := store.GetEngineEvents(EngineEventFilter{EventType: "message_delivered"})
	if err != nil {
		t.Fatalf("GetEngineEvents returned error: %v", err)
	}
	if len(byType) != 1 {
		t.Fatalf("got %d filtered events, want 1", len(byType))
	}
	if byType[0].Severity != SeverityInfo {
		t.Errorf("severity = %q, want default %q", byType[0].Severity, SeverityInfo)
	}
}

func TestLogEventValidation(t *testing.T) {
	store := newTestStore(t)

	if err := store.LogEvent("  ", SeverityInfo, "x"); err == nil {
		t.Error("LogEvent with blank type succeeded, want error")
	}
	if err := store.LogEvent("x", "fatal", "x"); err == nil {
		t.Error("LogEvent with unknown severity succeeded, want error")
	}
}

func TestGetEngineEventsSeverityFilter(t *testing.T) {
	store := newTestStore(t)

	if err := store.LogEvent("a", SeverityInfo, ""); err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}
	if err := store.LogEvent("b", SeverityWarning, ""); err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}

	warnings, err := store.GetEngineEvents(EngineEventFilter{Severity: SeverityWarning})
	if err != nil {
		t.Fatalf("GetEngineEvents returned error: %v", err)
	}
	if len(warnings) != 1 || warnings[0].EventType != "b" {
		t.Errorf("warnings = %+v, want single event b", warnings)
	}

	if _, err := store.GetEngineEvents(EngineEventFilter{Severity: "loud"}); err == nil {
		t.Error("GetEngineEvents with unknown severity succeeded, want error")
	}
}

func TestPruneEngineEvents(t *testing.T) {
	store := newTestStore(t)

	if err := store.LogEvent("old", SeverityInfo, ""); err != nil {
		t.Fatalf("LogEvent returned error: %v", err)
	}

	pruned, err := store.PruneEngineEvents(time.Now().Add(time.Hour).UnixMilli())
	if err != nil {
		t.Fatalf("PruneEngineEvents returned error: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}

	if _, err := store.PruneEngineEvents(0); err == nil {
		t.Error("PruneEngineEvents with zero cutoff succeeded, want error")
	}
}
