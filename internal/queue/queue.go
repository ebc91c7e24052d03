// Package queue is the single write path into device state. Request handlers
// and the local input path push commands; only the controller drains them.
package queue

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/kettle-controller/internal/datadog"
	"github.com/thatsimonsguy/kettle-controller/internal/model"
)

const DefaultDepth = 4

var ErrQueueFull = errors.New("command queue full")

// Queue is a bounded FIFO, safe for many producers and one consumer.
// Push never blocks.
type Queue struct {
	mu       sync.Mutex // orders seq assignment with the channel send
	ch       chan model.Command
	seq      uint64
	rejected atomic.Uint64
	observer func(model.Command)
}

func New(depth int) *Queue {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Queue{ch: make(chan model.Command, depth)}
}

// OnAccept registers fn to be called with every accepted command. It must be
// set before producers start and fn must not block.
func (q *Queue) OnAccept(fn func(model.Command)) {
	q.observer = fn
}

// Push enqueues cmd and returns it with its arrival sequence number set. When
// the queue is full the command is rejected, counted and reported, and no
// sequence number is consumed.
func (q *Queue) Push(cmd model.Command) (model.Command, error) {
	q.mu.Lock()
	cmd.Seq = q.seq + 1
	select {
	case q.ch <- cmd:
		q.seq++
		q.mu.Unlock()
		if q.observer != nil {
			q.observer(cmd)
		}
		return cmd, nil
	default:
		q.mu.Unlock()
		cmd.Seq = 0
		total := q.rejected.Add(1)
		log.Warn().
			Str("command", string(cmd.Kind)).
			Str("source", string(cmd.Source)).
			Str("command_id", cmd.ID).
			Uint64("rejected_total", total).
			Msg("Command queue full, rejecting command")
		datadog.Incr("queue.rejected", "source:"+string(cmd.Source), "command:"+string(cmd.Kind))
		return cmd, ErrQueueFull
	}
}

// Drain returns the commands queued at the time of the call in arrival order.
// Commands pushed while draining are left for the next call.
func (q *Queue) Drain() []model.Command {
	n := len(q.ch)
	if n == 0 {
		return nil
	}
	out := make([]model.Command, 0, n)
	for i := 0; i < n; i++ {
		select {
		case cmd := <-q.ch:
			out = append(out, cmd)
		default:
			return out
		}
	}
	return out
}

func (q *Queue) Len() int { return len(q.ch) }

func (q *Queue) Cap() int { return cap(q.ch) }

func (q *Queue) Rejected() uint64 { return q.rejected.Load() }
