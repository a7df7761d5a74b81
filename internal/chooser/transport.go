package chooser

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/slotpaste/agent/internal/logging"
	"github.com/slotpaste/agent/internal/modes"
	"github.com/slotpaste/agent/internal/workerpool"
)

var log = logging.L("chooser")

const (
	DefaultUIPort    = 45454
	DefaultAgentPort = 45455

	loopback     = "127.0.0.1"
	writeTimeout = 500 * time.Millisecond
)

// Recorder observes transport traffic. Implementations must not block.
type Recorder interface {
	Sent(msgType string)
	SendFailed(msgType string)
	Received(msgType string)
	Dropped(reason string)
}

type nopRecorder struct{}

func (nopRecorder) Sent(string)       {}
func (nopRecorder) SendFailed(string) {}
func (nopRecorder) Received(string)   {}
func (nopRecorder) Dropped(string)    {}

// Transport sends show and hide to the chooser surface. Sends run on the
// worker pool; callers never wait on delivery. Messages reach the socket in
// call order whatever the pool size.
type Transport struct {
	conn *net.UDPConn
	ui   *net.UDPAddr
	pool *workerpool.Pool
	rec  Recorder

	mu     sync.Mutex
	outbox []outbound
	queued int // flushes submitted but not yet started

	writeMu sync.Mutex
}

type outbound struct {
	msgType string
	token   string
	b       []byte
}

// NewTransport opens an ephemeral loopback socket for sending to uiPort.
func NewTransport(uiPort int, pool *workerpool.Pool, rec Recorder) (*Transport, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP(loopback)})
	if err != nil {
		return nil, fmt.Errorf("open chooser send socket: %w", err)
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Transport{
		conn: conn,
		ui:   &net.UDPAddr{IP: net.ParseIP(loopback), Port: uiPort},
		pool: pool,
		rec:  rec,
	}, nil
}

// Show implements modes.Chooser.
func (t *Transport) Show(flow modes.Flow, token string, timeout time.Duration) {
	b, err := EncodeShow(flow, token, timeout)
	if err != nil {
		log.Warn("encode show failed", logging.KeyToken, token, logging.KeyError, err)
		return
	}
	t.send(TypeShow, token, b)
}

// Hide implements modes.Chooser.
func (t *Transport) Hide(token string) {
	b, err := EncodeHide(token)
	if err != nil {
		log.Warn("encode hide failed", logging.KeyToken, token, logging.KeyError, err)
		return
	}
	t.send(TypeHide, token, b)
}

func (t *Transport) send(msgType, token string, b []byte) {
	t.mu.Lock()
	t.outbox = append(t.outbox, outbound{msgType: msgType, token: token, b: append(b, '\n')})
	if t.queued > 0 {
		t.mu.Unlock()
		return
	}
	t.queued++
	t.mu.Unlock()

	if t.pool.Submit(t.flush) {
		return
	}

	t.mu.Lock()
	t.queued--
	dropped := t.outbox
	t.outbox = nil
	t.mu.Unlock()
	for _, m := range dropped {
		log.Debug("chooser send dropped, pool unavailable", "type", m.msgType, logging.KeyToken, m.token)
		t.rec.SendFailed(m.msgType)
	}
}

// flush writes everything in the outbox. writeMu keeps two flushes on
// different workers from interleaving.
func (t *Transport) flush(ctx context.Context) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	t.queued--
	batch := t.outbox
	t.outbox = nil
	t.mu.Unlock()

	for _, m := range batch {
		if ctx.Err() != nil {
			t.rec.SendFailed(m.msgType)
			continue
		}
		_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := t.conn.WriteToUDP(m.b, t.ui); err != nil {
			log.Debug("chooser send failed (surface may not be running)",
				"type", m.msgType, logging.KeyToken, m.token, logging.KeyError, err)
			t.rec.SendFailed(m.msgType)
			continue
		}
		t.rec.Sent(m.msgType)
	}
}

// Close releases the send socket. Drain the pool first.
func (t *Transport) Close() error {
	return t.conn.Close()
}
