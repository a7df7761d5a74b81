package chooser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotpaste/agent/internal/keys"
	"github.com/slotpaste/agent/internal/logging"
	"github.com/slotpaste/agent/internal/modes"
	"github.com/slotpaste/agent/internal/slots"
	"github.com/slotpaste/agent/internal/workerpool"
)

type countRecorder struct {
	mu      sync.Mutex
	sent    map[string]int
	failed  map[string]int
	recv    map[string]int
	dropped int
}

func newCountRecorder() *countRecorder {
	return &countRecorder{sent: map[string]int{}, failed: map[string]int{}, recv: map[string]int{}}
}

func (r *countRecorder) Sent(t string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[t]++
}

func (r *countRecorder) SendFailed(t string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[t]++
}

func (r *countRecorder) Received(t string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recv[t]++
}

func (r *countRecorder) Dropped(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

func (r *countRecorder) droppedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// fakeSurface is a chooser surface listening on an ephemeral UI port.
type fakeSurface struct {
	conn *net.UDPConn
}

func newFakeSurface(t *testing.T) *fakeSurface {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &fakeSurface{conn: conn}
}

func (s *fakeSurface) port() int {
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

func (s *fakeSurface) read(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, maxDatagram)
	require.NoError(t, s.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := s.conn.ReadFromUDP(buf)
	require.NoError(t, err)
	return bytes.TrimSpace(buf[:n])
}

func newPool(t *testing.T) *workerpool.Pool {
	t.Helper()
	p := workerpool.New("chooser-test", 1, 16)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		p.Shutdown(ctx)
	})
	return p
}

func sendTo(t *testing.T, addr *net.UDPAddr, payload string) {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)
}

func TestTransportDeliversShowAndHide(t *testing.T) {
	surface := newFakeSurface(t)
	rec := newCountRecorder()
	tr, err := NewTransport(surface.port(), newPool(t), rec)
	require.NoError(t, err)
	defer tr.Close()

	tr.Show(modes.FlowPaste, "42", 3*time.Second)
	show, err := DecodeShow(surface.read(t))
	require.NoError(t, err)
	assert.Equal(t, Show{Type: TypeShow, Mode: "paste", Token: "42", TimeoutMs: 3000, Anchor: AnchorMouse}, show)

	tr.Hide("42")
	tr.Hide("42")
	assert.JSONEq(t, `{"type":"hide","token":"42"}`, string(surface.read(t)))
	assert.JSONEq(t, `{"type":"hide","token":"42"}`, string(surface.read(t)))
}

func TestTransportWithoutSurfaceDoesNotBlock(t *testing.T) {
	// Grab a free port and release it so nothing is listening there.
	free, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	port := free.LocalAddr().(*net.UDPAddr).Port
	free.Close()

	tr, err := NewTransport(port, newPool(t), nil)
	require.NoError(t, err)
	defer tr.Close()

	done := make(chan struct{})
	go func() {
		tr.Show(modes.FlowSave, "1", time.Second)
		tr.Hide("1")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Show/Hide blocked")
	}
}

func TestTransportKeepsOrderAcrossWorkers(t *testing.T) {
	surface := newFakeSurface(t)
	pool := workerpool.New("chooser-order", 4, 64)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pool.Shutdown(ctx)
	})
	rec := newCountRecorder()
	tr, err := NewTransport(surface.port(), pool, rec)
	require.NoError(t, err)
	defer tr.Close()

	const rounds = 50
	for i := range rounds {
		token := fmt.Sprint(i)
		tr.Show(modes.FlowSave, token, time.Second)
		tr.Hide(token)
	}

	for i := range rounds {
		token := fmt.Sprint(i)
		show, err := DecodeShow(surface.read(t))
		require.NoError(t, err)
		require.Equal(t, token, show.Token, "show %d out of order", i)
		require.JSONEq(t, fmt.Sprintf(`{"type":"hide","token":%q}`, token), string(surface.read(t)))
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, rounds, rec.sent[TypeShow])
	assert.Equal(t, rounds, rec.sent[TypeHide])
}

func TestListenerDecodesDatagramLines(t *testing.T) {
	q := modes.NewQueue()
	rec := newCountRecorder()
	l, err := Listen(0, q, rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	sendTo(t, l.Addr(), "{\"type\":\"chosen\",\"token\":\"1\",\"slot\":2}\n"+
		"garbage\n"+
		"{\"type\":\"chosen\",\"token\":\"1\",\"slot\":9}\n"+
		"{\"type\":\"cancel\",\"token\":\"2\"}\n")

	require.Eventually(t, func() bool { return q.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	ev, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, modes.Chosen("1", 2), ev)
	ev, ok = q.TryPop()
	require.True(t, ok)
	assert.Equal(t, modes.Cancel("2", "timeout"), ev)
	assert.Equal(t, 2, rec.droppedCount())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestListenerReadsLargeDatagram(t *testing.T) {
	q := modes.NewQueue()
	rec := newCountRecorder()
	l, err := Listen(0, q, rec)
	require.NoError(t, err)

	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.NewContext(ctx, slog.New(slog.NewTextHandler(&buf, nil)).With(logging.KeyRunID, "run-7"))
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	// Blank padding pushes the reply well past 4 KiB.
	payload := strings.Repeat(" \n", 3000) + "{\"type\":\"chosen\",\"token\":\"5\",\"slot\":6}\n"
	require.Greater(t, len(payload), 4096)
	sendTo(t, l.Addr(), payload)

	require.Eventually(t, func() bool { return q.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	ev, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, modes.Chosen("5", 6), ev)
	assert.Equal(t, 0, rec.droppedCount())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
	assert.Contains(t, buf.String(), "chooser listener started")
	assert.Contains(t, buf.String(), "runId=run-7")
	assert.Contains(t, buf.String(), "component=chooser")
}

type nopBridge struct{}

func (nopBridge) ReadWithRetry(time.Duration) (string, bool) { return "from clipboard", true }
func (nopBridge) PasteFromSlot(string) error                 { return nil }

// TestRoundTripWithDuplicatesAndDrops drives a machine through the real
// transport: a duplicated chosen reply saves once, and a dropped reply
// falls back to the local timeout.
func TestRoundTripWithDuplicatesAndDrops(t *testing.T) {
	surface := newFakeSurface(t)
	tr, err := NewTransport(surface.port(), newPool(t), nil)
	require.NoError(t, err)
	defer tr.Close()

	q := modes.NewQueue()
	l, err := Listen(0, q, nil)
	require.NoError(t, err)

	store := slots.NewMemory()
	m := modes.NewMachine(q, modes.NewCell(), store, tr, nopBridge{}, modes.WithWindow(500*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)
	machineDone := make(chan error, 1)
	go func() { machineDone <- m.Run(ctx) }()

	q.Push(modes.ArmSave())
	show, err := DecodeShow(surface.read(t))
	require.NoError(t, err)
	require.Equal(t, "1", show.Token)

	reply, err := EncodeChosen(show.Token, 1)
	require.NoError(t, err)
	sendTo(t, l.Addr(), string(reply))
	sendTo(t, l.Addr(), string(reply))

	assert.JSONEq(t, `{"type":"hide","token":"1"}`, string(surface.read(t)))
	got, _ := store.Get(keys.SlotJ)
	assert.Equal(t, "from clipboard", got)

	// Second chooser: the surface never answers.
	q.Push(modes.ArmPaste())
	show, err = DecodeShow(surface.read(t))
	require.NoError(t, err)
	require.Equal(t, "2", show.Token)
	assert.JSONEq(t, `{"type":"hide","token":"2"}`, string(surface.read(t)))

	// A late duplicate of the first reply changes nothing.
	sendTo(t, l.Addr(), string(reply))
	require.NoError(t, surface.conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = surface.conn.ReadFromUDP(make([]byte, maxDatagram))
	assert.Error(t, err, "no further chooser traffic expected")

	q.Push(modes.Quit())
	select {
	case err := <-machineDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("machine did not stop")
	}
}
