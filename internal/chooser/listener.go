package chooser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/slotpaste/agent/internal/logging"
	"github.com/slotpaste/agent/internal/modes"
)

// maxDatagram is the largest UDP payload over IPv4, so reads never truncate.
const maxDatagram = 65507

// Pusher accepts decoded replies without blocking.
type Pusher interface {
	Push(ev modes.Event)
}

// Listener receives chosen and cancel replies on the agent port.
type Listener struct {
	conn *net.UDPConn
	out  Pusher
	rec  Recorder
}

// Listen binds 127.0.0.1:port. Port 0 picks an ephemeral port.
func Listen(port int, out Pusher, rec Recorder) (*Listener, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP(loopback), Port: port})
	if err != nil {
		return nil, fmt.Errorf("bind chooser listener on %s:%d: %w", loopback, port, err)
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Listener{conn: conn, out: out, rec: rec}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() *net.UDPAddr {
	return l.conn.LocalAddr().(*net.UDPAddr)
}

// Run reads datagrams until ctx is done, then closes the socket.
func (l *Listener) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = l.conn.Close()
	})
	defer stop()

	lg := logging.FromContext(ctx).With(logging.KeyComponent, "chooser")
	lg.Info("chooser listener started", "addr", l.Addr().String())
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				lg.Info("chooser listener stopped")
				return nil
			}
			lg.Warn("chooser recv error", logging.KeyError, err)
			continue
		}
		l.HandleDatagram(buf[:n])
	}
}

// HandleDatagram decodes every line of one datagram and forwards the
// well-formed replies. Malformed lines are dropped.
func (l *Listener) HandleDatagram(b []byte) {
	for _, line := range bytes.Split(b, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		ev, err := Decode(line)
		if err != nil {
			log.Debug("dropping chooser message", logging.KeyError, err)
			l.rec.Dropped("malformed")
			continue
		}
		l.rec.Received(ev.Type.String())
		l.out.Push(ev)
	}
}

// Close releases the socket without waiting for Run.
func (l *Listener) Close() error {
	return l.conn.Close()
}
