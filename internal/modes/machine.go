package modes

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/slotpaste/agent/internal/keys"
	"github.com/slotpaste/agent/internal/logging"
)

var log = logging.L("modes")

const (
	DefaultWindow        = 3 * time.Second
	DefaultClipboardWait = 300 * time.Millisecond
)

// Resolution outcomes reported to the Recorder.
const (
	OutcomeSaved   = "saved"
	OutcomeNoText  = "no_text"
	OutcomePasted  = "pasted"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
	OutcomeCancel  = "cancel"
	OutcomeTimeout = "timeout"
)

// Chooser drives the remote slot chooser. Both calls are fire-and-forget.
type Chooser interface {
	Show(flow Flow, token string, timeout time.Duration)
	Hide(token string)
}

// Bridge is the clipboard side of a resolution.
type Bridge interface {
	ReadWithRetry(maxWait time.Duration) (string, bool)
	PasteFromSlot(text string) error
}

// SlotStore is the slot cache the machine owns.
type SlotStore interface {
	Save(slot keys.SlotId, content string)
	Get(slot keys.SlotId) (string, bool)
}

// Recorder observes transitions. Implementations must not block.
type Recorder interface {
	Armed(flow Flow)
	Resolved(flow Flow, outcome string)
	Stale(t EventType)
}

type nopRecorder struct{}

func (nopRecorder) Armed(Flow)            {}
func (nopRecorder) Resolved(Flow, string) {}
func (nopRecorder) Stale(EventType)       {}

// Option configures a Machine.
type Option func(*Machine)

// WithWindow sets how long a chooser stays armed.
func WithWindow(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithClipboardWait bounds the settle-retry read on save.
func WithClipboardWait(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.clipWait = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithScheduler replaces time.AfterFunc for arming timeouts.
func WithScheduler(after func(d time.Duration, f func())) Option {
	return func(m *Machine) {
		m.after = after
	}
}

// WithRecorder attaches a transition observer.
func WithRecorder(r Recorder) Option {
	return func(m *Machine) {
		if r != nil {
			m.rec = r
		}
	}
}

// Machine is the single consumer of the event queue and the only writer of
// the published mode, the slot store and the chooser transport.
type Machine struct {
	queue   *Queue
	cell    *Cell
	store   SlotStore
	chooser Chooser
	bridge  Bridge
	rec     Recorder

	window   time.Duration
	clipWait time.Duration
	now      func() time.Time
	after    func(d time.Duration, f func())

	mode      Mode
	lastToken uint64
	mods      keys.Modifiers
}

// NewMachine returns an Idle machine reading from q and publishing to cell.
func NewMachine(q *Queue, cell *Cell, store SlotStore, chooser Chooser, bridge Bridge, opts ...Option) *Machine {
	m := &Machine{
		queue:    q,
		cell:     cell,
		store:    store,
		chooser:  chooser,
		bridge:   bridge,
		rec:      nopRecorder{},
		window:   DefaultWindow,
		clipWait: DefaultClipboardWait,
		now:      time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		mode: Mode{Kind: Idle},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cell.Store(m.mode)
	return m
}

// Run processes events until Quit is received or ctx is done.
func (m *Machine) Run(ctx context.Context) error {
	lg := logging.FromContext(ctx).With(logging.KeyComponent, "modes")
	lg.Info("state machine running", "window", m.window.String())
	for {
		ev, err := m.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				lg.Info("state machine stopped", "reason", "context done")
				return nil
			}
			return err
		}
		if !m.Dispatch(ev) {
			lg.Info("state machine stopped", "reason", "quit")
			return nil
		}
	}
}

// Dispatch applies one event and publishes the resulting mode. It returns
// false for Quit. Only the goroutine running the machine may call it.
func (m *Machine) Dispatch(ev Event) bool {
	if ev.Type == EvQuit {
		return false
	}
	m.handle(ev)
	m.cell.Store(m.mode)
	return true
}

// Mode returns the machine's own view of the current mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Modifiers returns the modifier keys held as of the last key event.
func (m *Machine) Modifiers() keys.Modifiers {
	return m.mods
}

func (m *Machine) handle(ev Event) {
	switch ev.Type {
	case EvArmSave:
		m.arm(SaveChooserPending)
	case EvArmPaste:
		m.arm(PasteChooserActive)
	case EvChosen:
		if !m.current(ev) {
			return
		}
		slot, ok := keys.SlotFromNumber(ev.Slot)
		if !ok {
			log.Debug("chosen slot out of range", logging.KeyToken, ev.Token, "slotNumber", ev.Slot)
			return
		}
		m.choose(slot)
	case EvCancel:
		if !m.current(ev) {
			return
		}
		reason := ev.Reason
		if reason == "" {
			reason = "timeout"
		}
		m.cancel(reason)
	case EvTimeout:
		if !m.current(ev) {
			return
		}
		m.cancel("timeout")
	case EvKeyDown:
		m.mods = keys.ModifiersFromFlags(ev.Flags)
		m.keyDown(ev.Key)
	case EvKeyUp, EvFlagsChanged:
		m.mods = keys.ModifiersFromFlags(ev.Flags)
	default:
		log.Debug("ignoring event", "event", ev.Type.String())
	}
}

// current reports whether ev carries the token of the open chooser.
// Anything else is a stale reply or timeout from an earlier chooser.
func (m *Machine) current(ev Event) bool {
	if m.mode.Kind.Pending() && ev.Token != "" && ev.Token == m.mode.Token {
		return true
	}
	log.Debug("dropping stale chooser event",
		"event", ev.Type.String(),
		logging.KeyToken, ev.Token,
		"currentToken", m.mode.Token,
		logging.KeyMode, m.mode.Kind.String())
	m.rec.Stale(ev.Type)
	return false
}

func (m *Machine) arm(kind Kind) {
	if m.mode.Kind != Idle {
		log.Debug("hotkey ignored, chooser already open", logging.KeyMode, m.mode.Kind.String(), logging.KeyToken, m.mode.Token)
		return
	}

	m.lastToken++
	token := strconv.FormatUint(m.lastToken, 10)
	m.mode = Mode{Kind: kind, Token: token, Deadline: m.now().Add(m.window)}
	m.cell.Store(m.mode)

	q := m.queue
	m.after(m.window, func() {
		q.Push(Timeout(token))
	})

	flow := kind.Flow()
	m.chooser.Show(flow, token, m.window)
	m.rec.Armed(flow)
	log.Debug("chooser armed", logging.KeyMode, kind.String(), logging.KeyToken, token)
}

// keyDown handles the chooser's own keys forwarded while it is open.
func (m *Machine) keyDown(k keys.Key) {
	if !m.mode.Kind.Pending() || !k.IsSlotOrEscape() {
		return
	}
	if m.mode.Expired(m.now()) {
		m.cancel("timeout")
		return
	}
	switch k.Kind {
	case keys.KindSlot:
		m.choose(k.Slot)
	case keys.KindEscape:
		m.cancel("esc")
	}
}

func (m *Machine) choose(slot keys.SlotId) {
	flow := m.mode.Kind.Flow()
	var outcome string

	switch m.mode.Kind {
	case SaveChooserPending:
		text, ok := m.bridge.ReadWithRetry(m.clipWait)
		if !ok {
			log.Info("clipboard has no text, slot unchanged", logging.KeySlot, slot.Label())
			outcome = OutcomeNoText
			break
		}
		m.store.Save(slot, text)
		log.Info("saved slot", logging.KeySlot, slot.Label(), "preview", logging.Preview(text))
		outcome = OutcomeSaved

	case PasteChooserActive:
		text, _ := m.store.Get(slot)
		if text == "" {
			log.Info("slot empty", logging.KeySlot, slot.Label())
			outcome = OutcomeEmpty
			break
		}
		if err := m.bridge.PasteFromSlot(text); err != nil {
			log.Warn("paste failed", logging.KeySlot, slot.Label(), logging.KeyError, err)
			outcome = OutcomeFailed
			break
		}
		log.Info("pasted slot", logging.KeySlot, slot.Label(), "preview", logging.Preview(text))
		outcome = OutcomePasted
	}

	m.resolve(flow, outcome)
}

func (m *Machine) cancel(reason string) {
	log.Info("chooser cancelled", logging.KeyMode, m.mode.Kind.String(), logging.KeyToken, m.mode.Token, logging.KeyReason, reason)
	outcome := OutcomeCancel
	if reason == "timeout" {
		outcome = OutcomeTimeout
	}
	m.resolve(m.mode.Kind.Flow(), outcome)
}

// resolve hides the open chooser and returns to Idle.
func (m *Machine) resolve(flow Flow, outcome string) {
	token := m.mode.Token
	m.mode = Mode{Kind: Idle}
	m.chooser.Hide(token)
	m.rec.Resolved(flow, outcome)
}
