package storage

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SetEngineEventRetention configures the automatic event pruning horizon.
func (s *Store) SetEngineEventRetention(retention time.Duration) {
	if retention <= 0 {
		retention = DefaultEngineEventRetention
	}
	s.engineEventRetention = retention
}

// LogEvent inserts one engine event and applies retention pruning. It
// satisfies the engine's event logger interface.
func (s *Store) LogEvent(eventType, severity, details string) error {
	if strings.TrimSpace(eventType) == "" {
		return errors.New("event_type is required")
	}
	if severity == "" {
		severity = SeverityInfo
	}
	if err := validateSeverity(severity); err != nil {
		return err
	}

	_, err := s.db.Exec(
		`INSERT INTO engine_events (event_type, severity, details, timestamp)
		 VALUES (?, ?, ?, ?)`,
		eventType, severity, details, nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert engine event %q: %w", eventType, err)
	}

	if s.engineEventRetention > 0 {
		cutoff := time.Now().Add(-s.engineEventRetention).UnixMilli()
		if _, err := s.PruneEngineEvents(cutoff); err != nil {
			return fmt.Errorf("prune engine events: %w", err)
		}
	}

	return nil
}

// GetEngineEvents returns recent events with optional filtering.
func (s *Store) GetEngineEvents(filter EngineEventFilter) ([]EngineEvent, error) {
	if filter.Severity != "" {
		if err := validateSeverity(filter.Severity); err != nil {
			return nil, err
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := strings.Builder{}
	query.WriteString(`SELECT id, event_type, severity, details, timestamp FROM engine_events`)

	where := make([]string, 0, 4)
	args := make([]any, 0, 6)

	if filter.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, filter.EventType)
	}
	if filter.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, filter.Severity)
	}
	if filter.FromTimestamp != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, *filter.FromTimestamp)
	}
	if filter.ToTimestamp != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, *filter.ToTimestamp)
	}

	if len(where) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(where, " AND "))
	}
	query.WriteString(" ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := s.db.Query(query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("get engine events: %w", err)
	}
	defer rows.Close()

	events := make([]EngineEvent, 0)
	for rows.Next() {
		var event EngineEvent
		if err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.Severity,
			&event.Details,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan engine event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engine event rows: %w", err)
	}

	return events, nil
}

// PruneEngineEvents removes events older than cutoffTimestamp.
func (s *Store) PruneEngineEvents(cutoffTimestamp int64) (int64, error) {
	if cutoffTimestamp <= 0 {
		return 0, errors.New("cutoff timestamp must be > 0")
	}

	res, err := s.db.Exec(`DELETE FROM engine_events WHERE timestamp < ?`, cutoffTimestamp)
	if err != nil {
		return 0, fmt.Errorf("prune engine events: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for engine event prune: %w", err)
	}

	return rowsAffected, nil
}

func validateSeverity(severity string) error {
	switch severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return nil
	default:
		return fmt.Errorf("invalid severity %q", severity)
	}
}
