// Package agent wires the slotpaste components together and runs them until
// the context is cancelled.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slotpaste/agent/internal/agentlock"
	"github.com/slotpaste/agent/internal/capture"
	"github.com/slotpaste/agent/internal/chooser"
	"github.com/slotpaste/agent/internal/clipboard"
	"github.com/slotpaste/agent/internal/config"
	"github.com/slotpaste/agent/internal/health"
	"github.com/slotpaste/agent/internal/logging"
	"github.com/slotpaste/agent/internal/metrics"
	"github.com/slotpaste/agent/internal/modes"
	"github.com/slotpaste/agent/internal/slots"
	"github.com/slotpaste/agent/internal/workerpool"
)

var log = logging.L("agent")

const (
	shutdownTimeout = 2 * time.Second
	sendPoolName    = "chooser-send"
)

// Source delivers keyboard events to a gate between Start and Stop.
type Source interface {
	Start() error
	Stop()
}

// Options replaces the platform pieces. Zero fields use the system
// implementation.
type Options struct {
	Permission func() error
	NewSource  func(*capture.Gate) (Source, error)
	Bridge     modes.Bridge
	LockDir    string
}

func (o Options) withDefaults() Options {
	if o.Permission == nil {
		o.Permission = capture.CheckPermission
	}
	if o.NewSource == nil {
		o.NewSource = func(g *capture.Gate) (Source, error) {
			return capture.NewTap(g)
		}
	}
	if o.LockDir == "" {
		o.LockDir = config.DataDir()
	}
	return o
}

// OpenBacking opens the durable slot backing named by cfg. It returns nil
// for the memory-only backend.
func OpenBacking(cfg *config.Config) (slots.Backing, error) {
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		db, err := slots.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.BackendRedis:
		return slots.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	case config.BackendNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// Run starts the agent and blocks until ctx is done or the machine stops.
// cfg must already be validated. Startup failures are returned before any
// keyboard event is intercepted.
func Run(ctx context.Context, cfg *config.Config, opts Options) error {
	opts = opts.withDefaults()
	runID := uuid.NewString()
	runLog := log.With(logging.KeyRunID, runID)
	ctx = logging.NewContext(ctx, slog.Default().With(logging.KeyRunID, runID))

	save, paste, err := cfg.Hotkeys()
	if err != nil {
		return err
	}

	lock, err := agentlock.Acquire(opts.LockDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := opts.Permission(); err != nil {
		return fmt.Errorf("input capture: %w", err)
	}

	mon := health.NewMonitor()
	col := metrics.New()
	mon.OnChange(col.ObserveHealth)

	store := openStore(ctx, cfg, mon)
	defer func() {
		if err := store.Close(); err != nil {
			runLog.Warn("closing slot store", logging.KeyError, err)
		}
	}()

	pool := workerpool.New(sendPoolName, cfg.SendWorkers, cfg.SendQueueSize,
		workerpool.WithRejectHook(col.SendRejected))
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		pool.Shutdown(drainCtx)
	}()

	transport, err := chooser.NewTransport(cfg.UIPort, pool, col)
	if err != nil {
		return err
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		pool.Drain(drainCtx)
		transport.Close()
	}()

	queue := modes.NewQueue()
	listener, err := chooser.Listen(cfg.AgentPort, queue, col)
	if err != nil {
		return err
	}
	defer listener.Close()
	mon.Update(health.Chooser, health.Healthy, "")

	bridge := opts.Bridge
	if bridge == nil {
		bridge = clipboard.NewSystemBridge(clipboard.WithRestoreDelay(cfg.RestoreDelay()))
	}

	cell := modes.NewCell()
	machine := modes.NewMachine(queue, cell, store, transport, bridge,
		modes.WithWindow(cfg.ChooserWindow()),
		modes.WithClipboardWait(cfg.ClipboardMaxWait()),
		modes.WithRecorder(col))

	listenCtx, stopListener := context.WithCancel(ctx)
	defer stopListener()

	// The machine outlives ctx so Quit is handled in order behind any
	// events already queued.
	machineCtx, stopMachine := context.WithCancel(context.WithoutCancel(ctx))
	defer stopMachine()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Run(listenCtx); err != nil {
			runLog.Warn("chooser listener failed", logging.KeyError, err)
			mon.Update(health.Listener, health.Unhealthy, err.Error())
		}
	}()
	mon.Update(health.Listener, health.Healthy, "")

	machineDone := make(chan error, 1)
	go func() {
		machineDone <- machine.Run(machineCtx)
	}()

	gate := capture.NewGate(cell, capture.Hotkeys{Save: save, Paste: paste, CopyOnSave: cfg.CopyOnSave}, queue, col)
	src, err := opts.NewSource(gate)
	if err == nil {
		err = src.Start()
	}
	if err != nil {
		mon.Update(health.Capture, health.Unhealthy, err.Error())
		queue.Push(modes.Quit())
		<-machineDone
		stopListener()
		wg.Wait()
		return fmt.Errorf("start keyboard capture: %w", err)
	}
	mon.Update(health.Capture, health.Healthy, "")

	var status *metrics.Server
	if cfg.StatusAddr != "" {
		status, err = metrics.Start(cfg.StatusAddr, metrics.NewRouter(col, mon, store))
		if err != nil {
			runLog.Warn("status server disabled", logging.KeyError, err)
		}
	}

	runLog.Info("slotpaste agent running",
		"save", save.String(),
		"paste", paste.String(),
		"storage", cfg.StorageBackend,
		"persistent", store.Persistent(),
		"uiPort", cfg.UIPort,
		"agentPort", cfg.AgentPort)

	var runErr error
	select {
	case <-ctx.Done():
		runLog.Info("shutting down")
		src.Stop()
		queue.Push(modes.Quit())
		select {
		case runErr = <-machineDone:
		case <-time.After(shutdownTimeout):
			runLog.Warn("state machine did not stop in time")
			stopMachine()
			runErr = <-machineDone
		}
	case runErr = <-machineDone:
		src.Stop()
	}

	stopListener()
	wg.Wait()

	if status != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := status.Shutdown(shutCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			runLog.Debug("status server shutdown", logging.KeyError, err)
		}
		cancel()
	}
	if b, ok := bridge.(*clipboard.Bridge); ok {
		b.Wait()
	}
	runLog.Info("slotpaste agent stopped")
	return runErr
}

// openStore never fails: a backing that cannot be opened or loaded leaves the
// agent running on memory with the store component degraded.
func openStore(ctx context.Context, cfg *config.Config, mon *health.Monitor) *slots.Store {
	degrade := slots.WithErrorHook(func(op string, err error) {
		mon.Update(health.Store, health.Degraded, op+": "+err.Error())
	})

	backing, err := OpenBacking(cfg)
	if err != nil {
		log.Warn("persistence unavailable, using in-memory only", "backend", cfg.StorageBackend, logging.KeyError, err)
		mon.Update(health.Store, health.Degraded, err.Error())
		return slots.NewMemory(degrade)
	}

	mon.Update(health.Store, health.Healthy, "")
	return slots.Open(ctx, backing, degrade)
}
