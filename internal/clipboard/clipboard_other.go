//go:build !darwin && !linux

package clipboard

type SystemClipboard struct{}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{}
}

func (s *SystemClipboard) ReadText() (string, error) {
	return "", ErrUnsupported
}

func (s *SystemClipboard) WriteText(text string) error {
	return ErrUnsupported
}

type SystemPaster struct{}

func NewSystemPaster() *SystemPaster {
	return &SystemPaster{}
}

func (p *SystemPaster) Paste() error {
	return ErrUnsupported
}
