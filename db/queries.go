package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

// Session is one heating cycle from StartedHeating to its ending event.
type Session struct {
	ID        int64        `json:"id"`
	Target    model.Preset `json:"target"`
	Source    string       `json:"source"`
	StartedAt time.Time    `json:"started_at"`
	StartTemp float64      `json:"start_temp"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
	EndReason string       `json:"end_reason,omitempty"`
	EndTemp   *float64     `json:"end_temp,omitempty"`
}

func (s Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// EventRecord is a journaled event row.
type EventRecord struct {
	Seq         int64   `json:"seq"`
	EventID     string  `json:"event_id"`
	Type        string  `json:"type"`
	At          string  `json:"at"`
	Mode        string  `json:"mode"`
	Target      *int    `json:"target,omitempty"`
	Temperature float64 `json:"temperature"`
	Source      string  `json:"source,omitempty"`
	Reason      string  `json:"reason,omitempty"`
}

// ListSessions returns the most recent sessions, newest first.
func ListSessions(db *sql.DB, limit int) ([]Session, error) {
	rows, err := db.Query(`SELECT id, target, source, started_at, start_temp, ended_at, end_reason, end_temp
		FROM heat_sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		var startedAt string
		var startTemp sql.NullFloat64
		var endedAt, endReason sql.NullString
		var endTemp sql.NullFloat64
		if err := rows.Scan(&s.ID, &s.Target, &s.Source, &startedAt, &startTemp, &endedAt, &endReason, &endTemp); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		s.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("session %d: bad started_at: %w", s.ID, err)
		}
		s.StartTemp = startTemp.Float64
		if endedAt.Valid {
			t, err := time.Parse(timeLayout, endedAt.String)
			if err != nil {
				return nil, fmt.Errorf("session %d: bad ended_at: %w", s.ID, err)
			}
			s.EndedAt = &t
		}
		s.EndReason = endReason.String
		if endTemp.Valid {
			v := endTemp.Float64
			s.EndTemp = &v
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return sessions, nil
}

// ListEvents returns the most recent journaled events, newest first. An
// empty eventType matches every type.
func ListEvents(db *sql.DB, eventType string, limit int) ([]EventRecord, error) {
	query := `SELECT seq, event_id, type, at, mode, target, temperature, source, reason FROM events`
	args := []interface{}{}
	if eventType != "" {
		query += ` WHERE type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	records := []EventRecord{}
	for rows.Next() {
		var r EventRecord
		var target sql.NullInt64
		var temp sql.NullFloat64
		var source, reason sql.NullString
		if err := rows.Scan(&r.Seq, &r.EventID, &r.Type, &r.At, &r.Mode, &target, &temp, &source, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if target.Valid {
			v := int(target.Int64)
			r.Target = &v
		}
		r.Temperature = temp.Float64
		r.Source = source.String
		r.Reason = reason.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return records, nil
}

func CountCommands(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM commands`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count commands: %w", err)
	}
	return n, nil
}
