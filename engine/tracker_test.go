package engine

import (
	"testing"
	"time"

	"arc/models"
)

func TestTrackerClassifiesByPair(t *testing.T) {
	tracker := newOutboundTracker(0)
	now := time.Now()

	tracker.record(models.MessageKey{Sender: "0xaa", ID: 1000}, now)

	if !tracker.isSelf(models.MessageKey{Sender: "0xaa", ID: 1000}) {
		t.Error("recorded key classified foreign, want self")
	}
	// A different sender reusing the same millisecond is foreign.
	if tracker.isSelf(models.MessageKey{Sender: "0xbb", ID: 1000}) {
		t.Error("other sender with same timestamp classified self, want foreign")
	}
	if tracker.isSelf(models.MessageKey{Sender: "0xaa", ID: 2000}) {
		t.Error("unrecorded timestamp classified self, want foreign")
	}
}

func TestTrackerDuplicateEchoStaysSelf(t *testing.T) {
	tracker := newOutboundTracker(0)
	key := models.MessageKey{Sender: "0xaa", ID: 1000}
	tracker.record(key, time.Now())

	// The transport may duplicate deliveries; each copy classifies self.
	for i := 0; i < 3; i++ {
		if !tracker.isSelf(key) {
			t.Fatalf("echo %d classified foreign, want self", i)
		}
	}
}

func TestTrackerPruneEvictsOldRecords(t *testing.T) {
	tracker := newOutboundTracker(10 * time.Minute)
	base := time.Now()

	tracker.record(models.MessageKey{Sender: "0xaa", ID: 1000}, base.Add(-20*time.Minute))
	tracker.record(models.MessageKey{Sender: "0xaa", ID: 2000}, base.Add(-time.Minute))

	pruned := tracker.prune(base)
	if pruned != 1 {
		t.Errorf("pruned %d records, want 1", pruned)
	}
	if tracker.isSelf(models.MessageKey{Sender: "0xaa", ID: 1000}) {
		t.Error("expired record still classifies self")
	}
	if !tracker.isSelf(models.MessageKey{Sender: "0xaa", ID: 2000}) {
		t.Error("fresh record no longer classifies self")
	}
	if tracker.size() != 1 {
		t.Errorf("tracker size = %d, want 1", tracker.size())
	}
}
