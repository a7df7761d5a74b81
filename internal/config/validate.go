package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/slotpaste/agent/internal/keys"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validBackends = map[string]bool{
	BackendSQLite: true,
	BackendRedis:  true,
	BackendNone:   true,
}

// ValidationResult separates problems that must stop startup from values
// that were corrected or ignored.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r ValidationResult) HasFatals() bool {
	return len(r.Fatals) > 0
}

func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	return append(all, r.Warnings...)
}

// Validate returns every problem found. Out-of-range values are clamped.
func (c *Config) Validate() []error {
	return c.ValidateTiered().AllErrors()
}

// ValidateTiered checks the config, clamping unsafe values to their range.
// Clamped or ignorable values are warnings and are logged; anything the agent
// cannot run with is fatal.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	backend := strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if !validBackends[backend] {
		r.Fatals = append(r.Fatals, fmt.Errorf("storage_backend %q is not valid (use sqlite, redis, none)", c.StorageBackend))
	} else {
		c.StorageBackend = backend
	}
	if backend == BackendSQLite && c.DBPath == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("db_path is required for the sqlite backend"))
	}
	if backend == BackendRedis && c.RedisAddr == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("redis_addr is required for the redis backend"))
	}

	c.UIPort = clampInt(&r, "ui_port", c.UIPort, 1024, 65535)
	c.AgentPort = clampInt(&r, "agent_port", c.AgentPort, 1024, 65535)
	if c.UIPort == c.AgentPort {
		r.Fatals = append(r.Fatals, fmt.Errorf("ui_port and agent_port must differ, both are %d", c.UIPort))
	}

	c.ChooserWindowMs = clampInt(&r, "chooser_window_ms", c.ChooserWindowMs, 200, 60000)
	c.ClipboardMaxWaitMs = clampInt(&r, "clipboard_max_wait_ms", c.ClipboardMaxWaitMs, 50, 2000)
	c.RestoreDelayMs = clampInt(&r, "restore_delay_ms", c.RestoreDelayMs, 50, 5000)
	c.SendWorkers = clampInt(&r, "send_workers", c.SendWorkers, 1, 16)
	c.SendQueueSize = clampInt(&r, "send_queue_size", c.SendQueueSize, 1, 1024)

	save, saveErr := keys.ParseChord(c.SaveHotkey)
	if saveErr != nil {
		r.Fatals = append(r.Fatals, fmt.Errorf("save_hotkey: %w", saveErr))
	}
	paste, pasteErr := keys.ParseChord(c.PasteHotkey)
	if pasteErr != nil {
		r.Fatals = append(r.Fatals, fmt.Errorf("paste_hotkey: %w", pasteErr))
	}
	if saveErr == nil && pasteErr == nil && save == paste {
		r.Fatals = append(r.Fatals, fmt.Errorf("save_hotkey and paste_hotkey are both %s", save))
	}

	if c.StatusAddr != "" {
		host, _, err := net.SplitHostPort(c.StatusAddr)
		if err != nil {
			r.Fatals = append(r.Fatals, fmt.Errorf("status_addr %q: %w", c.StatusAddr, err))
		} else if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
			r.Fatals = append(r.Fatals, fmt.Errorf("status_addr %q must be a loopback address", c.StatusAddr))
		}
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}
	if c.LogFile != "" {
		c.LogMaxSizeMB = clampInt(&r, "log_max_size_mb", c.LogMaxSizeMB, 1, 1024)
		c.LogMaxBackups = clampInt(&r, "log_max_backups", c.LogMaxBackups, 0, 20)
	}

	for _, err := range r.Warnings {
		slog.Warn("config validation", "error", err)
	}
	return r
}

func clampInt(r *ValidationResult, name string, v, lo, hi int) int {
	if v < lo {
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %d is below minimum %d, clamping", name, v, lo))
		return lo
	}
	if v > hi {
		r.Warnings = append(r.Warnings, fmt.Errorf("%s %d exceeds maximum %d, clamping", name, v, hi))
		return hi
	}
	return v
}

// Hotkeys parses the configured chords. Call after ValidateTiered reports no
// fatals.
func (c *Config) Hotkeys() (save, paste keys.Chord, err error) {
	if save, err = keys.ParseChord(c.SaveHotkey); err != nil {
		return save, paste, fmt.Errorf("save_hotkey: %w", err)
	}
	if paste, err = keys.ParseChord(c.PasteHotkey); err != nil {
		return save, paste, fmt.Errorf("paste_hotkey: %w", err)
	}
	return save, paste, nil
}
