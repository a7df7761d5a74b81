//go:build darwin && cgo

package capture

/*
#cgo darwin LDFLAGS: -framework ApplicationServices -framework CoreFoundation
#include <ApplicationServices/ApplicationServices.h>

extern int goTapEvent(int type, int code, unsigned long long flags, int *outCode, unsigned long long *outFlags);
extern void goTapDisabled(int type);

static CFMachPortRef tapPort = NULL;
static CFRunLoopRef tapLoop = NULL;

enum { tapPass = 0, tapSwallow = 1, tapSubstitute = 2 };

static CGEventRef tapCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon) {
	if (type == kCGEventTapDisabledByTimeout || type == kCGEventTapDisabledByUserInput) {
		if (tapPort) {
			CGEventTapEnable(tapPort, true);
		}
		goTapDisabled((int)type);
		return event;
	}

	int code = (int)CGEventGetIntegerValueField(event, kCGKeyboardEventKeycode);
	int outCode = code;
	unsigned long long outFlags = 0;
	switch (goTapEvent((int)type, code, (unsigned long long)CGEventGetFlags(event), &outCode, &outFlags)) {
	case tapSwallow:
		return NULL;
	case tapSubstitute:
		CGEventSetIntegerValueField(event, kCGKeyboardEventKeycode, (int64_t)outCode);
		CGEventSetFlags(event, (CGEventFlags)outFlags);
		return event;
	default:
		return event;
	}
}

static int tapCreate(void) {
	CGEventMask mask = CGEventMaskBit(kCGEventKeyDown) |
		CGEventMaskBit(kCGEventKeyUp) |
		CGEventMaskBit(kCGEventFlagsChanged);
	tapPort = CGEventTapCreate(kCGHIDEventTap, kCGHeadInsertEventTap, kCGEventTapOptionDefault,
		mask, tapCallback, NULL);
	if (!tapPort) {
		return 0;
	}
	CFRunLoopSourceRef src = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tapPort, 0);
	tapLoop = CFRunLoopGetCurrent();
	CFRunLoopAddSource(tapLoop, src, kCFRunLoopCommonModes);
	CFRelease(src);
	CGEventTapEnable(tapPort, true);
	return 1;
}

static void tapRun(void) {
	CFRunLoopRun();
}

static void tapStop(void) {
	if (tapLoop) {
		CFRunLoopStop(tapLoop);
	}
}

static void tapRelease(void) {
	if (tapPort) {
		CGEventTapEnable(tapPort, false);
		CFMachPortInvalidate(tapPort);
		CFRelease(tapPort);
		tapPort = NULL;
	}
	tapLoop = NULL;
}

static int axTrusted(void) {
	return AXIsProcessTrusted() ? 1 : 0;
}
*/
import "C"

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

const (
	cgEventKeyDown      = 10
	cgEventKeyUp        = 11
	cgEventFlagsChanged = 12
)

// activeGate receives events from the C callback. There is one tap per process.
var activeGate atomic.Pointer[Gate]

// CheckPermission reports whether the process is trusted for accessibility,
// which CGEventTap requires.
func CheckPermission() error {
	if C.axTrusted() == 0 {
		return ErrPermissionDenied
	}
	return nil
}

// Tap is the CGEventTap event source. It runs on its own locked OS thread.
type Tap struct {
	gate    *Gate
	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func NewTap(gate *Gate) (*Tap, error) {
	if gate == nil {
		return nil, errors.New("capture: nil gate")
	}
	return &Tap{gate: gate}, nil
}

// Start creates the tap on a dedicated thread and returns once it is
// installed, or with the reason it could not be.
func (t *Tap) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return errors.New("capture: tap already running")
	}
	if !activeGate.CompareAndSwap(nil, t.gate) {
		return errors.New("capture: another tap is active")
	}

	ready := make(chan error, 1)
	t.done = make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(t.done)

		if C.tapCreate() == 0 {
			activeGate.Store(nil)
			ready <- ErrPermissionDenied
			return
		}
		ready <- nil
		log.Info("event tap installed")
		C.tapRun()
		C.tapRelease()
		activeGate.Store(nil)
		log.Info("event tap stopped")
	}()

	if err := <-ready; err != nil {
		return err
	}
	t.running = true
	return nil
}

// Stop ends the tap's run loop and waits for its thread to exit.
func (t *Tap) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	C.tapStop()
	<-t.done
	t.running = false
}
