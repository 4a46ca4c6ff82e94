package dnd

import (
	"image"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/google/uuid"
)

// OpKind is the kind of a drag and drop operation.
type OpKind int

const (
	OpEnter OpKind = iota
	OpDragOver
	OpDrop
	OpLeave
)

func (k OpKind) String() string {
	switch k {
	case OpEnter:
		return "Enter"
	case OpDragOver:
		return "DragOver"
	case OpDrop:
		return "Drop"
	case OpLeave:
		return "Leave"
	}
	return "Unknown"
}

// Op is a decoded drag and drop operation. Ops are never modified once
// queued.
type Op struct {
	Kind OpKind
	// Target is the zero Handle when the target must be resolved from
	// Window and Pos at dispatch time.
	Target  Handle
	Window  xproto.Window
	Pos     image.Point
	Files   []string
	Session uuid.UUID
}

// Event is what drop target callbacks receive.
type Event struct {
	Kind    OpKind
	Target  Handle
	Pos     image.Point
	Files   []string // only set for OpDrop; must not be modified
	Session uuid.UUID
}

// opQueue is written by the protocol goroutine and drained by Update.
// It has no depth limit; Update is expected to keep up.
type opQueue struct {
	mu  sync.Mutex
	ops []Op
}

func (q *opQueue) push(op Op) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.mu.Unlock()
}

// drain takes the queued ops, leaving the queue empty.
func (q *opQueue) drain() []Op {
	q.mu.Lock()
	ops := q.ops
	q.ops = nil
	q.mu.Unlock()
	return ops
}

func (q *opQueue) reset() {
	q.mu.Lock()
	q.ops = nil
	q.mu.Unlock()
}

func (q *opQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}
