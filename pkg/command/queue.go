package command

import (
	"errors"
	"fmt"
)

// DefaultCapacity is the queue bound used when none is configured.
const DefaultCapacity = 512

var (
	ErrQueueFull  = errors.New("command: maximum number of commands exceeded")
	ErrEmptyQueue = errors.New("command: no device commands specified")
)

// Queue is an ordered, bounded list of commands.
type Queue struct {
	cmds []Command
	cap  int
}

// NewQueue returns an empty queue holding at most capacity commands.
// A non-positive capacity selects DefaultCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{cap: capacity}
}

// Append adds c at the end. A full queue is left unchanged.
func (q *Queue) Append(c Command) error {
	if len(q.cmds) >= q.cap {
		return fmt.Errorf("%w (limit %d)", ErrQueueFull, q.cap)
	}
	q.cmds = append(q.cmds, c)
	return nil
}

func (q *Queue) Len() int { return len(q.cmds) }

func (q *Queue) Cap() int { return q.cap }

// Commands returns a copy of the queued commands in order.
func (q *Queue) Commands() []Command {
	return append([]Command(nil), q.cmds...)
}
