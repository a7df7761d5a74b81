//go:build !darwin || !cgo

package capture

// CheckPermission always fails: there is no global event source in this build.
func CheckPermission() error {
	return ErrCaptureUnsupported
}

// Tap is unavailable outside macOS cgo builds.
type Tap struct{}

func NewTap(gate *Gate) (*Tap, error) {
	return nil, ErrCaptureUnsupported
}

func (t *Tap) Start() error {
	return ErrCaptureUnsupported
}

func (t *Tap) Stop() {}
