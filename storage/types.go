package storage

import "time"

// Event severities for engine events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Channel is one known channel domain with its sticky send condition.
type Channel struct {
	ChannelDomain string `json:"channelDomain"`
	Label         string `json:"label"`
	// LastCondition is the serialized access condition last used on the
	// channel, restored as the default on rejoin.
	LastCondition string `json:"lastCondition,omitempty"`
	AddedAt       int64  `json:"addedAt"`
	LastJoinedAt  *int64 `json:"lastJoinedAt,omitempty"`
}

// EngineEvent is one durable engine log entry.
type EngineEvent struct {
	ID        int64  `json:"id"`
	EventType string `json:"eventType"`
	Severity  string `json:"severity"`
	Details   string `json:"details"`
	Timestamp int64  `json:"timestamp"`
}

// EngineEventFilter narrows event queries.
type EngineEventFilter struct {
	EventType     string
	Severity      string
	FromTimestamp *int64
	ToTimestamp   *int64
	Limit         int
	Offset        int
}

type scanner interface {
	Scan(dest ...any) error
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
