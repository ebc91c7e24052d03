package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

const timeLayout = time.RFC3339Nano

func InsertCommand(db *sql.DB, cmd model.Command) error {
	_, err := db.Exec(`INSERT INTO commands (command_id, queue_seq, kind, preset, source, issued_at) VALUES (?, ?, ?, ?, ?, ?)`,
		cmd.ID, cmd.Seq, string(cmd.Kind), nullPreset(cmd.Preset), string(cmd.Source), cmd.IssuedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// RecordEvent appends ev to the events table and keeps heat_sessions in step:
// StartedHeating opens a session, any cycle ending closes the open one.
func RecordEvent(db *sql.DB, ev model.Event) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}

	at := ev.At.UTC().Format(timeLayout)
	_, err = tx.Exec(`INSERT INTO events (event_id, type, at, mode, target, temperature, source, reason) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Type), at, ev.Mode.String(), nullPreset(ev.Target), ev.Temperature, string(ev.Source), ev.Reason)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert event: %w", err)
	}

	switch ev.Type {
	case model.EventStartedHeating:
		_, err = tx.Exec(`INSERT INTO heat_sessions (target, source, started_at, start_temp) VALUES (?, ?, ?, ?)`,
			int(ev.Target), string(ev.Source), at, ev.Temperature)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("open heat session: %w", err)
		}
	case model.EventCompleted, model.EventStopped, model.EventSafetyCutoff, model.EventRelayFault:
		_, err = tx.Exec(`UPDATE heat_sessions SET ended_at = ?, end_reason = ?, end_temp = ? WHERE ended_at IS NULL`,
			at, string(ev.Type), ev.Temperature)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("close heat session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// CloseOpenSessions ends sessions left open by a crash or power loss.
func CloseOpenSessions(db *sql.DB, at time.Time, reason string) (int64, error) {
	res, err := db.Exec(`UPDATE heat_sessions SET ended_at = ?, end_reason = ? WHERE ended_at IS NULL`,
		at.UTC().Format(timeLayout), reason)
	if err != nil {
		return 0, fmt.Errorf("close open sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func nullPreset(p model.Preset) interface{} {
	if p == 0 {
		return nil
	}
	return int(p)
}
