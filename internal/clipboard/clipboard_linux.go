//go:build linux

package clipboard

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// SystemClipboard shells out to xclip, falling back to xsel.
type SystemClipboard struct{}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{}
}

func (s *SystemClipboard) ReadText() (string, error) {
	if path, err := exec.LookPath("xclip"); err == nil {
		out, err := exec.Command(path, "-selection", "clipboard", "-o").Output()
		if err != nil {
			return "", fmt.Errorf("xclip read: %w", err)
		}
		return string(out), nil
	}
	if path, err := exec.LookPath("xsel"); err == nil {
		out, err := exec.Command(path, "--clipboard", "--output").Output()
		if err != nil {
			return "", fmt.Errorf("xsel read: %w", err)
		}
		return string(out), nil
	}
	return "", fmt.Errorf("%w: neither xclip nor xsel found", ErrUnsupported)
}

func (s *SystemClipboard) WriteText(text string) error {
	var cmd *exec.Cmd
	if path, err := exec.LookPath("xclip"); err == nil {
		cmd = exec.Command(path, "-selection", "clipboard", "-i")
	} else if path, err := exec.LookPath("xsel"); err == nil {
		cmd = exec.Command(path, "--clipboard", "--input")
	} else {
		return fmt.Errorf("%w: neither xclip nor xsel found", ErrUnsupported)
	}
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard write: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// SystemPaster sends ctrl+v with xdotool.
type SystemPaster struct{}

func NewSystemPaster() *SystemPaster {
	return &SystemPaster{}
}

func (p *SystemPaster) Paste() error {
	return exec.Command("xdotool", "key", "--clearmodifiers", "ctrl+v").Run()
}
