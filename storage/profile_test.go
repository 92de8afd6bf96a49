package storage

import "testing"

func TestProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetProfileValue(ProfileKeyNickname, "alice"); err != nil {
		t.Fatalf("SetProfileValue returned error: %v", err)
	}

	got, err := store.GetProfileValue(ProfileKeyNickname)
	if err != nil {
		t.Fatalf("GetProfileValue returned error: %v", err)
	}
	if got != "alice" {
		t.Errorf("value = %q, want %q", got, "alice")
	}
}

func TestProfileOverwrite(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetProfileValue(ProfileKeyNickname, "alice"); err != nil {
		t.Fatalf("SetProfileValue returned error: %v", err)
	}
	if err := store.SetProfileValue(ProfileKeyNickname, "alicia"); err != nil {
		t.Fatalf("SetProfileValue returned error: %v", err)
	}

	got, err := store.GetProfileValue(ProfileKeyNickname)
	if err != nil {
		t.Fatalf("GetProfileValue returned error: %v", err)
	}
	if got != "alicia" {
		t.Errorf("value = %q, want %q", got, "alicia")
	}
}

func TestProfileMissingKeyReadsEmpty(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetProfileValue("missing")
	if err != nil {
		t.Fatalf("GetProfileValue returned error: %v", err)
	}
	if got != "" {
		t.Errorf("value = %q, want empty", got)
	}
}

func TestProfileRejectsEmptyKey(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetProfileValue("  ", "x"); err == nil {
		t.Error("SetProfileValue with blank key succeeded, want error")
	}
}

func TestProfileListsAllKeys(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetProfileValue(ProfileKeyNickname, "alice"); err != nil {
		t.Fatalf("SetProfileValue returned error: %v", err)
	}
	if err := store.SetProfileValue(ProfileKeyAddress, "0xaa"); err != nil {
		t.Fatalf("SetProfileValue returned error: %v", err)
	}

	profile, err := store.Profile()
	if err != nil {
		t.Fatalf("Profile returned error: %v", err)
	}
	if len(profile) != 2 {
		t.Fatalf("profile has %d keys, want 2", len(profile))
	}
	if profile[ProfileKeyAddress] != "0xaa" {
		t.Errorf("address = %q, want %q", profile[ProfileKeyAddress], "0xaa")
	}
}
