// Package doctor checks the local setup the agent depends on and reports
// what to fix. It never changes system settings.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/slotpaste/agent/internal/capture"
	"github.com/slotpaste/agent/internal/config"
)

// SystemSettingsURL opens the Accessibility pane of System Settings.
const SystemSettingsURL = "x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility"

type Severity string

const (
	OK   Severity = "ok"
	Warn Severity = "warn"
	Fail Severity = "fail"
)

// Finding is the result of one check.
type Finding struct {
	Check    string
	Severity Severity
	Detail   string
	Hint     []string
}

type Report struct {
	Findings []Finding
}

// Ready reports whether the agent can start. Warnings do not block.
func (r Report) Ready() bool {
	for _, f := range r.Findings {
		if f.Severity == Fail {
			return false
		}
	}
	return true
}

// Write prints the report for a terminal.
func (r Report) Write(w io.Writer) {
	for _, f := range r.Findings {
		fmt.Fprintf(w, "%-20s %-4s  %s\n", f.Check+":", strings.ToUpper(string(f.Severity)), f.Detail)
		for _, line := range f.Hint {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// Probes are the system calls doctor makes. Tests replace them.
type Probes struct {
	Permission  func() error
	Connections func(kind string) ([]psnet.ConnectionStat, error)
	ProcessName func(pid int32) string
	Stat        func(path string) (os.FileInfo, error)
}

func SystemProbes() Probes {
	return Probes{
		Permission:  capture.CheckPermission,
		Connections: psnet.Connections,
		ProcessName: processName,
		Stat:        os.Stat,
	}
}

func processName(pid int32) string {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return ""
	}
	name, err := proc.Name()
	if err != nil {
		return ""
	}
	return name
}

// Run performs every check against cfg.
func Run(cfg *config.Config, p Probes) Report {
	var r Report
	r.Findings = append(r.Findings, checkPermission(p.Permission()))

	conns, err := p.Connections("udp")
	if err != nil {
		r.Findings = append(r.Findings,
			Finding{Check: "chooser surface", Severity: Warn, Detail: fmt.Sprintf("could not list sockets: %v", err)},
			Finding{Check: "agent port", Severity: Warn, Detail: fmt.Sprintf("could not list sockets: %v", err)})
	} else {
		r.Findings = append(r.Findings,
			checkSurface(cfg.UIPort, conns, p.ProcessName),
			checkAgentPort(cfg.AgentPort, conns, p.ProcessName))
	}

	r.Findings = append(r.Findings, checkStorage(cfg, p.Stat))
	return r
}

func checkPermission(err error) Finding {
	f := Finding{Check: "input capture"}
	switch {
	case err == nil:
		f.Severity = OK
		f.Detail = "Accessibility permission granted"
	case errors.Is(err, capture.ErrPermissionDenied):
		f.Severity = Fail
		f.Detail = "Accessibility permission not granted"
		f.Hint = []string{
			"Slotpaste needs Accessibility permission for its keyboard event tap.",
			"No keystrokes are logged or sent anywhere; slot text stays local.",
			"To enable:",
			"  1. Open System Settings > Privacy & Security > Accessibility",
			"     (open \"" + SystemSettingsURL + "\")",
			"  2. Add this app (or your terminal) to the list and enable it.",
			"  3. Run 'slotpaste doctor' again to verify.",
		}
	case errors.Is(err, capture.ErrCaptureUnsupported):
		f.Severity = Fail
		f.Detail = "keyboard capture is only available on macOS builds with cgo"
	default:
		f.Severity = Fail
		f.Detail = err.Error()
	}
	return f
}

func boundTo(port int, conns []psnet.ConnectionStat) (psnet.ConnectionStat, bool) {
	for _, c := range conns {
		if int(c.Laddr.Port) == port {
			return c, true
		}
	}
	return psnet.ConnectionStat{}, false
}

func owner(c psnet.ConnectionStat, name func(int32) string) string {
	if c.Pid <= 0 {
		return ""
	}
	if n := name(c.Pid); n != "" {
		return fmt.Sprintf(" by %s (pid %d)", n, c.Pid)
	}
	return fmt.Sprintf(" by pid %d", c.Pid)
}

func checkSurface(port int, conns []psnet.ConnectionStat, name func(int32) string) Finding {
	f := Finding{Check: "chooser surface"}
	if c, ok := boundTo(port, conns); ok {
		f.Severity = OK
		f.Detail = fmt.Sprintf("listening on udp %d%s", port, owner(c, name))
		return f
	}
	f.Severity = Warn
	f.Detail = fmt.Sprintf("nothing listening on udp %d", port)
	f.Hint = []string{"Start the chooser app. Without it the agent runs but no chooser appears and every flow times out."}
	return f
}

func checkAgentPort(port int, conns []psnet.ConnectionStat, name func(int32) string) Finding {
	f := Finding{Check: "agent port"}
	if c, ok := boundTo(port, conns); ok {
		f.Severity = Warn
		f.Detail = fmt.Sprintf("udp %d already bound%s", port, owner(c, name))
		f.Hint = []string{"Another agent may be running. 'slotpaste start' will fail until it exits."}
		return f
	}
	f.Severity = OK
	f.Detail = fmt.Sprintf("udp %d free", port)
	return f
}

func checkStorage(cfg *config.Config, stat func(string) (os.FileInfo, error)) Finding {
	f := Finding{Check: "storage", Severity: OK}
	switch cfg.StorageBackend {
	case config.BackendSQLite:
		if _, err := stat(cfg.DBPath); err == nil {
			f.Detail = "sqlite " + cfg.DBPath
		} else if errors.Is(err, os.ErrNotExist) {
			f.Detail = "sqlite " + cfg.DBPath + " (created on first start)"
		} else {
			f.Severity = Warn
			f.Detail = fmt.Sprintf("sqlite %s: %v", cfg.DBPath, err)
			f.Hint = []string{"The agent will fall back to in-memory slots."}
		}
	case config.BackendRedis:
		f.Detail = fmt.Sprintf("redis %s db %d", cfg.RedisAddr, cfg.RedisDB)
	default:
		f.Detail = "in-memory only, slots are lost on exit"
	}
	return f
}
