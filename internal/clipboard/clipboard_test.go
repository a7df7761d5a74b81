package clipboard

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeProvider struct {
	mu       sync.Mutex
	reads    []string // successive ReadText results; last one repeats
	readErr  error
	readN    int
	text     string
	writes   []string
	writeErr error
}

func (f *fakeProvider) ReadText() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readN++
	if f.readErr != nil {
		return "", f.readErr
	}
	if len(f.reads) > 0 {
		v := f.reads[0]
		if len(f.reads) > 1 {
			f.reads = f.reads[1:]
		}
		return v, nil
	}
	return f.text, nil
}

func (f *fakeProvider) WriteText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, text)
	f.text = text
	return nil
}

func (f *fakeProvider) snapshot() (string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, append([]string(nil), f.writes...)
}

type fakePaster struct {
	calls int
	err   error
}

func (f *fakePaster) Paste() error {
	f.calls++
	return f.err
}

func newTestBridge(p Provider, paster Paster, opts ...Option) *Bridge {
	b := NewBridge(p, paster, opts...)
	b.sleep = func(time.Duration) {}
	return b
}

func TestAttemptsClamped(t *testing.T) {
	b := newTestBridge(&fakeProvider{}, &fakePaster{})
	tests := []struct {
		wait time.Duration
		want int
	}{
		{0, 1},
		{10 * time.Millisecond, 1},
		{100 * time.Millisecond, 2},
		{300 * time.Millisecond, 6},
		{5 * time.Second, 6},
	}
	for _, tt := range tests {
		if got := b.Attempts(tt.wait); got != tt.want {
			t.Fatalf("Attempts(%v) = %d, want %d", tt.wait, got, tt.want)
		}
	}
}

func TestReadWithRetrySettles(t *testing.T) {
	p := &fakeProvider{reads: []string{"", "  ", "  hello\n"}}
	b := newTestBridge(p, &fakePaster{})

	got, ok := b.ReadWithRetry(300 * time.Millisecond)
	if !ok || got != "hello" {
		t.Fatalf("ReadWithRetry = %q, %v; want hello, true", got, ok)
	}
	if p.readN != 3 {
		t.Fatalf("expected 3 reads, got %d", p.readN)
	}
}

func TestReadWithRetryGivesUp(t *testing.T) {
	p := &fakeProvider{readErr: errors.New("pasteboard busy")}
	b := newTestBridge(p, &fakePaster{})

	if got, ok := b.ReadWithRetry(300 * time.Millisecond); ok {
		t.Fatalf("expected no text, got %q", got)
	}
	if p.readN != maxReadAttempts {
		t.Fatalf("expected %d reads, got %d", maxReadAttempts, p.readN)
	}
}

func TestWriteReportsFailure(t *testing.T) {
	p := &fakeProvider{writeErr: errors.New("rejected")}
	b := newTestBridge(p, &fakePaster{})
	if err := b.Write("x"); err == nil {
		t.Fatal("expected write error")
	}
}

func TestPasteFromSlotRestoresBackup(t *testing.T) {
	p := &fakeProvider{text: "previous"}
	paster := &fakePaster{}
	b := newTestBridge(p, paster, WithRestoreDelay(10*time.Millisecond))

	if err := b.PasteFromSlot("slot text"); err != nil {
		t.Fatalf("PasteFromSlot: %v", err)
	}
	if paster.calls != 1 {
		t.Fatalf("expected one paste chord, got %d", paster.calls)
	}
	b.Wait()

	text, writes := p.snapshot()
	if text != "previous" {
		t.Fatalf("clipboard after restore = %q, want previous", text)
	}
	if len(writes) != 2 || writes[0] != "slot text" || writes[1] != "previous" {
		t.Fatalf("unexpected write sequence %v", writes)
	}
}

func TestPasteFromSlotNoBackupLeavesText(t *testing.T) {
	p := &fakeProvider{}
	b := newTestBridge(p, &fakePaster{}, WithRestoreDelay(time.Millisecond))

	if err := b.PasteFromSlot("only"); err != nil {
		t.Fatalf("PasteFromSlot: %v", err)
	}
	b.Wait()
	text, writes := p.snapshot()
	if text != "only" || len(writes) != 1 {
		t.Fatalf("clipboard = %q writes = %v", text, writes)
	}
}

func TestPasteFromSlotWriteFailureSkipsPaste(t *testing.T) {
	p := &fakeProvider{text: "previous", writeErr: errors.New("rejected")}
	paster := &fakePaster{}
	b := newTestBridge(p, paster)

	if err := b.PasteFromSlot("x"); err == nil {
		t.Fatal("expected error")
	}
	if paster.calls != 0 {
		t.Fatal("paste chord must not be posted when the clipboard write fails")
	}
}
