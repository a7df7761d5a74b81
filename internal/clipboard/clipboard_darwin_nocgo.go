//go:build darwin && !cgo

package clipboard

import "errors"

var errNoCgo = errors.New("clipboard: unavailable (built without CGO)")

// SystemClipboard is the no-CGO stub; NSPasteboard needs cgo.
type SystemClipboard struct{}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{}
}

func (s *SystemClipboard) ReadText() (string, error) {
	return "", errNoCgo
}

func (s *SystemClipboard) WriteText(text string) error {
	return errNoCgo
}

type SystemPaster struct{}

func NewSystemPaster() *SystemPaster {
	return &SystemPaster{}
}

func (p *SystemPaster) Paste() error {
	return errNoCgo
}
