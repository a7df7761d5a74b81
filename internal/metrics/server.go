package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slotpaste/agent/internal/health"
	"github.com/slotpaste/agent/internal/keys"
	"github.com/slotpaste/agent/internal/logging"
)

var log = logging.L("metrics")

// SlotSource is the read side of the slot store.
type SlotSource interface {
	Snapshot() map[keys.SlotId]string
}

// SlotInfo describes one slot without its content.
type SlotInfo struct {
	Slot   string `json:"slot"`
	Number int    `json:"number"`
	Length int    `json:"length"`
	Empty  bool   `json:"empty"`
}

// NewRouter builds the status endpoint routes.
func NewRouter(c *Collector, mon *health.Monitor, slots SlotSource) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		summary := mon.Summary()
		status := http.StatusOK
		if summary["status"] == string(health.Unhealthy) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, summary)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))

	r.Get("/slots", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, DescribeSlots(slots.Snapshot()))
	})

	return r
}

// DescribeSlots lists every slot in J K L U I O order with its length in
// characters.
func DescribeSlots(snapshot map[keys.SlotId]string) []SlotInfo {
	out := make([]SlotInfo, 0, len(keys.AllSlots))
	for _, slot := range keys.AllSlots {
		n := utf8.RuneCountInString(snapshot[slot])
		out = append(out, SlotInfo{
			Slot:   slot.Label(),
			Number: slot.Number(),
			Length: n,
			Empty:  n == 0,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("status response encode failed", logging.KeyError, err)
	}
}

// Server is the loopback status endpoint.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Start binds addr and serves h in the background.
func Start(addr string, h http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("status server listen on %s: %w", addr, err)
	}
	s := &Server{
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln: ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("status server stopped", logging.KeyError, err)
		}
	}()
	log.Info("status server listening", "addr", ln.Addr().String())
	return s, nil
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
