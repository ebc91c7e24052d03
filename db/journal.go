package db

import (
	"database/sql"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

// Journal appends commands and events to the database. Handle writes
// synchronously and is meant to sit behind events.Async; accepted commands
// are buffered and written by the journal's own worker.
type Journal struct {
	db *sql.DB

	commands chan model.Command
	done     chan struct{}
	mu       sync.RWMutex
	closed   bool
	dropped  atomic.Uint64
}

func NewJournal(db *sql.DB, buffer int) *Journal {
	if buffer <= 0 {
		buffer = 64
	}
	j := &Journal{
		db:       db,
		commands: make(chan model.Command, buffer),
		done:     make(chan struct{}),
	}
	go j.run()
	return j
}

func (j *Journal) run() {
	defer close(j.done)
	for cmd := range j.commands {
		if err := InsertCommand(j.db, cmd); err != nil {
			log.Error().Err(err).Str("command_id", cmd.ID).Msg("Failed to journal command")
		}
	}
}

// Handle records one non-periodic event.
func (j *Journal) Handle(ev model.Event) {
	if ev.Periodic() {
		return
	}
	if err := RecordEvent(j.db, ev); err != nil {
		log.Error().Err(err).Str("event", string(ev.Type)).Msg("Failed to journal event")
	}
}

// ObserveCommand queues cmd for journaling without blocking.
func (j *Journal) ObserveCommand(cmd model.Command) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.commands <- cmd:
	default:
		log.Warn().
			Str("command_id", cmd.ID).
			Uint64("dropped_total", j.dropped.Add(1)).
			Msg("Journal backlog full, dropping command")
	}
}

// Close flushes buffered commands. It does not close the database.
func (j *Journal) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.commands)
	j.mu.Unlock()
	<-j.done
}

func (j *Journal) Dropped() uint64 { return j.dropped.Load() }
