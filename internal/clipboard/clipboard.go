// Package clipboard reads and writes the OS text clipboard and synthesizes
// the paste keystroke.
package clipboard

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/slotpaste/agent/internal/logging"
)

var log = logging.L("clipboard")

// ErrUnsupported is returned on platforms without a clipboard implementation.
var ErrUnsupported = errors.New("clipboard: unsupported on this platform")

const (
	DefaultRetryInterval = 50 * time.Millisecond
	DefaultRestoreDelay  = 250 * time.Millisecond
	maxReadAttempts      = 6
)

// Provider is plain-text clipboard access.
type Provider interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// Paster posts the platform paste chord to the foreground application.
type Paster interface {
	Paste() error
}

// Bridge combines a Provider and a Paster with settle-retry reads and a
// delayed clipboard restore after pasting.
type Bridge struct {
	provider      Provider
	paster        Paster
	retryInterval time.Duration
	restoreDelay  time.Duration
	sleep         func(time.Duration)

	// restoring tracks pending restore timers so Wait can drain them.
	restoring sync.WaitGroup
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRestoreDelay sets how long after a paste the previous clipboard is put back.
func WithRestoreDelay(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.restoreDelay = d
		}
	}
}

// WithRetryInterval sets the poll interval for ReadWithRetry.
func WithRetryInterval(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.retryInterval = d
		}
	}
}

// NewBridge wraps provider and paster.
func NewBridge(provider Provider, paster Paster, opts ...Option) *Bridge {
	b := &Bridge{
		provider:      provider,
		paster:        paster,
		retryInterval: DefaultRetryInterval,
		restoreDelay:  DefaultRestoreDelay,
		sleep:         time.Sleep,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewSystemBridge uses the platform clipboard and paste chord.
func NewSystemBridge(opts ...Option) *Bridge {
	return NewBridge(NewSystemClipboard(), NewSystemPaster(), opts...)
}

// Attempts returns how many reads ReadWithRetry makes for maxWait.
func (b *Bridge) Attempts(maxWait time.Duration) int {
	n := int(maxWait / b.retryInterval)
	if n < 1 {
		n = 1
	}
	if n > maxReadAttempts {
		n = maxReadAttempts
	}
	return n
}

// ReadWithRetry polls the clipboard until it holds non-blank text. The
// clipboard can lag a copy shortcut by tens of milliseconds.
func (b *Bridge) ReadWithRetry(maxWait time.Duration) (string, bool) {
	attempts := b.Attempts(maxWait)
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			b.sleep(b.retryInterval)
		}
		text, err := b.provider.ReadText()
		if err != nil {
			log.Debug("clipboard read failed", "attempt", attempt+1, logging.KeyError, err)
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			log.Debug("clipboard read succeeded", "attempt", attempt+1)
			return trimmed, true
		}
	}
	return "", false
}

// Write overwrites the clipboard.
func (b *Bridge) Write(text string) error {
	return b.provider.WriteText(text)
}

// PasteFromSlot puts text on the clipboard, posts the paste chord, then
// restores whatever text was there before once restoreDelay has passed.
func (b *Bridge) PasteFromSlot(text string) error {
	start := time.Now()
	backup, err := b.provider.ReadText()
	hasBackup := err == nil && strings.TrimSpace(backup) != ""
	log.Debug("paste backup", "backupMs", time.Since(start).Milliseconds(), "hasBackup", hasBackup)

	if err := b.provider.WriteText(text); err != nil {
		log.Warn("paste: failed to set clipboard", logging.KeyError, err)
		return err
	}
	if err := b.paster.Paste(); err != nil {
		log.Warn("paste: posting paste chord failed", logging.KeyError, err)
		return err
	}

	if !hasBackup {
		return nil
	}
	b.restoring.Add(1)
	time.AfterFunc(b.restoreDelay, func() {
		defer b.restoring.Done()
		if err := b.provider.WriteText(backup); err != nil {
			log.Warn("clipboard restore failed, pasted text left in place", logging.KeyError, err)
		}
	})
	return nil
}

// Wait blocks until pending clipboard restores have run.
func (b *Bridge) Wait() {
	b.restoring.Wait()
}
