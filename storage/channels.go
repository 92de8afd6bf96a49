package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrChannelNotFound indicates an unknown channel domain.
var ErrChannelNotFound = errors.New("storage: channel not found")

// SaveChannel adds a channel to the book or updates its label.
func (s *Store) SaveChannel(channelDomain, label string) error {
	if strings.TrimSpace(channelDomain) == "" {
		return errors.New("channel domain is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO channels (channel_domain, label, added_at) VALUES (?, ?, ?)
		 ON CONFLICT(channel_domain) DO UPDATE SET label = excluded.label`,
		channelDomain, label, nowUnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save channel %q: %w", channelDomain, err)
	}
	return nil
}

// TouchChannel marks a channel as joined now and remembers the serialized
// condition used on it.
func (s *Store) TouchChannel(channelDomain, lastCondition string) error {
	res, err := s.db.Exec(
		`UPDATE channels SET last_joined_at = ?, last_condition = ? WHERE channel_domain = ?`,
		nowUnixMilli(), lastCondition, channelDomain,
	)
	if err != nil {
		return fmt.Errorf("touch channel %q: %w", channelDomain, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for channel touch: %w", err)
	}
	if affected == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// GetChannel returns one channel book entry.
func (s *Store) GetChannel(channelDomain string) (*Channel, error) {
	row := s.db.QueryRow(
		`SELECT channel_domain, label, last_condition, added_at, last_joined_at
		 FROM channels WHERE channel_domain = ?`,
		channelDomain,
	)

	channel, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %q: %w", channelDomain, err)
	}
	return channel, nil
}

// ListChannels returns the channel book, most recently joined first.
func (s *Store) ListChannels() ([]Channel, error) {
	rows, err := s.db.Query(
		`SELECT channel_domain, label, last_condition, added_at, last_joined_at
		 FROM channels
		 ORDER BY last_joined_at IS NULL, last_joined_at DESC, added_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := make([]Channel, 0)
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		channels = append(channels, *channel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel rows: %w", err)
	}
	return channels, nil
}

// DeleteChannel removes a channel from the book.
func (s *Store) DeleteChannel(channelDomain string) error {
	res, err := s.db.Exec(`DELETE FROM channels WHERE channel_domain = ?`, channelDomain)
	if err != nil {
		return fmt.Errorf("delete channel %q: %w", channelDomain, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for channel delete: %w", err)
	}
	if affected == 0 {
		return ErrChannelNotFound
	}
	return nil
}

func scanChannel(row scanner) (*Channel, error) {
	var (
		channel      Channel
		lastJoinedAt sql.NullInt64
	)
	if err := row.Scan(
		&channel.ChannelDomain,
		&channel.Label,
		&channel.LastCondition,
		&channel.AddedAt,
		&lastJoinedAt,
	); err != nil {
		return nil, err
	}

	if lastJoinedAt.Valid {
		value := lastJoinedAt.Int64
		channel.LastJoinedAt = &value
	}
	return &channel, nil
}
