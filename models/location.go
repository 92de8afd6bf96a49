package models

// LocationUpdate is an ephemeral presence ping from one peer.
type LocationUpdate struct {
	Sender    string  `json:"sender"`
	Nickname  string  `json:"nickname"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	// Timestamp is the sender-reported authoring time in milliseconds.
	Timestamp int64 `json:"timestamp"`
	// IsLive distinguishes a continuous watch stream from a one-shot share.
	IsLive bool `json:"isLive"`
}

// ActiveUser is the presence projection exposed to the UI: who is around
// and when they last pinged. Staleness cutoffs are a presentation concern.
type ActiveUser struct {
	Sender     string `json:"sender"`
	Nickname   string `json:"nickname"`
	LastSeenAt int64  `json:"lastSeenAt"`
}
