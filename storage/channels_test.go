package storage

import (
	"errors"
	"testing"
)

func TestChannelSaveAndGet(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveChannel("room-1", "friends"); err != nil {
		t.Fatalf("SaveChannel returned error: %v", err)
	}

	channel, err := store.GetChannel("room-1")
	if err != nil {
		t.Fatalf("GetChannel returned error: %v", err)
	}
	if channel.Label != "friends" {
		t.Errorf("label = %q, want %q", channel.Label, "friends")
	}
	if channel.LastJoinedAt != nil {
		t.Error("lastJoinedAt set before any join")
	}
}

func TestChannelTouchRecordsJoinAndCondition(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveChannel("room-1", ""); err != nil {
		t.Fatalf("SaveChannel returned error: %v", err)
	}
	if err := store.TouchChannel("room-1", `{"kind":"time"}`); err != nil {
		t.Fatalf("TouchChannel returned error: %v", err)
	}

	channel, err := store.GetChannel("room-1")
	if err != nil {
		t.Fatalf("GetChannel returned error: %v", err)
	}
	if channel.LastJoinedAt == nil {
		t.Fatal("lastJoinedAt not set after touch")
	}
	if channel.LastCondition != `{"kind":"time"}` {
		t.Errorf("lastCondition = %q, want stored condition", channel.LastCondition)
	}
}

func TestChannelTouchUnknownDomain(t *testing.T) {
	store := newTestStore(t)

	if err := store.TouchChannel("nope", ""); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("TouchChannel error = %v, want ErrChannelNotFound", err)
	}
}

func TestChannelListOrdersByRecency(t *testing.T) {
	store := newTestStore(t)

	for _, domain := range []string{"a", "b", "c"} {
		if err := store.SaveChannel(domain, ""); err != nil {
			t.Fatalf("SaveChannel returned error: %v", err)
		}
	}
	if err := store.TouchChannel("b", ""); err != nil {
		t.Fatalf("TouchChannel returned error: %v", err)
	}

	channels, err := store.ListChannels()
	if err != nil {
		t.Fatalf("ListChannels returned error: %v", err)
	}
	if len(channels) != 3 {
		t.Fatalf("got %d channels, want 3", len(channels))
	}
	if channels[0].ChannelDomain != "b" {
		t.Errorf("first channel = %q, want most recently joined %q", channels[0].ChannelDomain, "b")
	}
}

func TestChannelDelete(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveChannel("room-1", ""); err != nil {
		t.Fatalf("SaveChannel returned error: %v", err)
	}
	if err := store.DeleteChannel("room-1"); err != nil {
		t.Fatalf("DeleteChannel returned error: %v", err)
	}

	if _, err := store.GetChannel("room-1"); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("GetChannel after delete error = %v, want ErrChannelNotFound", err)
	}
	if err := store.DeleteChannel("room-1"); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("second DeleteChannel error = %v, want ErrChannelNotFound", err)
	}
}

func TestChannelRejectsEmptyDomain(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveChannel("  ", ""); err == nil {
		t.Error("SaveChannel with blank domain succeeded, want error")
	}
}
