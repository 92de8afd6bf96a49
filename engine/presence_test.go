package engine

import (
	"testing"

	"arc/models"
)

func TestPresenceLastWriteWinsByArrival(t *testing.T) {
	presence := newPresenceMap()

	// The second observation wins even though its embedded timestamp is
	// older: arrival order decides.
	presence.observe(models.LocationUpdate{Sender: "0xaa", Latitude: 1, Timestamp: 2000}, 100)
	presence.observe(models.LocationUpdate{Sender: "0xaa", Latitude: 2, Timestamp: 1000}, 200)

	locations := presence.locations()
	if len(locations) != 1 {
		t.Fatalf("locations has %d entries, want 1", len(locations))
	}
	if locations[0].Latitude != 2 {
		t.Errorf("latitude = %v, want latest arrival's 2", locations[0].Latitude)
	}
	if locations[0].Timestamp != 1000 {
		t.Errorf("timestamp = %d, want latest arrival's 1000", locations[0].Timestamp)
	}
}

func TestPresenceTracksOneEntryPerSender(t *testing.T) {
	presence := newPresenceMap()

	presence.observe(models.LocationUpdate{Sender: "0xbb", Nickname: "bob"}, 100)
	presence.observe(models.LocationUpdate{Sender: "0xaa", Nickname: "alice"}, 200)
	presence.observe(models.LocationUpdate{Sender: "0xbb", Nickname: "bobby"}, 300)

	users := presence.activeUsers()
	if len(users) != 2 {
		t.Fatalf("activeUsers has %d entries, want 2", len(users))
	}
	// Sorted by sender for stable output.
	if users[0].Sender != "0xaa" || users[1].Sender != "0xbb" {
		t.Errorf("senders = %q, %q, want 0xaa, 0xbb", users[0].Sender, users[1].Sender)
	}
	if users[1].Nickname != "bobby" {
		t.Errorf("nickname = %q, want latest %q", users[1].Nickname, "bobby")
	}
	if users[1].LastSeenAt != 300 {
		t.Errorf("lastSeenAt = %d, want 300", users[1].LastSeenAt)
	}
}
