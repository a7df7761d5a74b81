package modes

import (
	"context"
	"fmt"
	"sync"

	"github.com/slotpaste/agent/internal/keys"
)

// EventType identifies what produced an Event.
type EventType uint8

const (
	EvArmSave EventType = iota + 1
	EvArmPaste
	EvKeyDown
	EvKeyUp
	EvFlagsChanged
	EvChosen
	EvCancel
	EvTimeout
	EvQuit
)

var eventNames = map[EventType]string{
	EvArmSave:      "arm_save",
	EvArmPaste:     "arm_paste",
	EvKeyDown:      "key_down",
	EvKeyUp:        "key_up",
	EvFlagsChanged: "flags_changed",
	EvChosen:       "chosen",
	EvCancel:       "cancel",
	EvTimeout:      "timeout",
	EvQuit:         "quit",
}

func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return fmt.Sprintf("event(%d)", uint8(t))
}

// Event is one input to the state machine. Fields not used by Type are zero.
type Event struct {
	Type   EventType
	Token  string
	Slot   int // transport slot number, 1..6
	Reason string
	Key    keys.Key
	Flags  uint64
}

func ArmSave() Event  { return Event{Type: EvArmSave} }
func ArmPaste() Event { return Event{Type: EvArmPaste} }
func Quit() Event     { return Event{Type: EvQuit} }

func KeyDown(k keys.Key, flags uint64) Event {
	return Event{Type: EvKeyDown, Key: k, Flags: flags}
}

func KeyUp(k keys.Key, flags uint64) Event {
	return Event{Type: EvKeyUp, Key: k, Flags: flags}
}

func FlagsChanged(flags uint64) Event {
	return Event{Type: EvFlagsChanged, Flags: flags}
}

// Chosen is the chooser's reply naming a slot.
func Chosen(token string, slot int) Event {
	return Event{Type: EvChosen, Token: token, Slot: slot}
}

// Cancel is the chooser's reply dismissing without a choice.
func Cancel(token, reason string) Event {
	return Event{Type: EvCancel, Token: token, Reason: reason}
}

// Timeout is generated locally when an armed chooser's window elapses.
func Timeout(token string) Event {
	return Event{Type: EvTimeout, Token: token}
}

// Queue is an unbounded FIFO of events. Push never blocks; Pop is for the
// single consumer.
type Queue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
}

func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends ev and wakes the consumer.
func (q *Queue) Push(ev Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop returns the oldest event, blocking until one is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Event, error) {
	for {
		if ev, ok := q.TryPop(); ok {
			return ev, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// TryPop returns the oldest event without blocking.
func (q *Queue) TryPop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false
	}
	ev := q.items[0]
	q.items[0] = Event{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return ev, true
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
