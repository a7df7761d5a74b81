//go:build darwin && cgo

package clipboard

/*
#cgo darwin CFLAGS: -x objective-c -fobjc-arc
#cgo darwin LDFLAGS: -framework Cocoa -framework CoreGraphics
#import <Cocoa/Cocoa.h>
#include <CoreGraphics/CoreGraphics.h>

static int clipboard_get_text(char **out, int *length) {
	@autoreleasepool {
		NSPasteboard *pb = [NSPasteboard generalPasteboard];
		NSString *value = [pb stringForType:NSPasteboardTypeString];
		if (!value) {
			return 0;
		}
		const char *utf8 = [value UTF8String];
		if (!utf8) {
			return 0;
		}
		int len = (int)strlen(utf8);
		char *buffer = (char *)malloc(len + 1);
		memcpy(buffer, utf8, len);
		*out = buffer;
		*length = len;
		return 1;
	}
}

static int clipboard_set_text(const char *text, int length) {
	@autoreleasepool {
		NSPasteboard *pb = [NSPasteboard generalPasteboard];
		[pb clearContents];
		NSString *value = [[NSString alloc] initWithBytes:text length:length encoding:NSUTF8StringEncoding];
		if (!value) {
			return 0;
		}
		return [pb setString:value forType:NSPasteboardTypeString] ? 1 : 0;
	}
}

static int post_key(CGEventSourceRef src, int keycode, bool down, CGEventFlags flags) {
	CGEventRef event = CGEventCreateKeyboardEvent(src, (CGKeyCode)keycode, down);
	if (!event) {
		return 0;
	}
	CGEventSetFlags(event, flags);
	CGEventPost(kCGHIDEventTap, event);
	CFRelease(event);
	return 1;
}

// Cmd down, V down, V up, Cmd up: the order a physical chord produces.
static int post_paste_chord(int cmdKey, int vKey) {
	CGEventSourceRef src = CGEventSourceCreate(kCGEventSourceStateCombinedSessionState);
	if (!src) {
		return 0;
	}
	int ok = post_key(src, cmdKey, true, kCGEventFlagMaskCommand) &&
		post_key(src, vKey, true, kCGEventFlagMaskCommand) &&
		post_key(src, vKey, false, kCGEventFlagMaskCommand) &&
		post_key(src, cmdKey, false, 0);
	CFRelease(src);
	return ok;
}

*/
import "C"

import (
	"errors"
	"unsafe"

	"github.com/slotpaste/agent/internal/keys"
)

// SystemClipboard is NSPasteboard plain-text access.
type SystemClipboard struct{}

func NewSystemClipboard() *SystemClipboard {
	return &SystemClipboard{}
}

func (s *SystemClipboard) ReadText() (string, error) {
	var out *C.char
	var length C.int
	if C.clipboard_get_text(&out, &length) == 0 {
		return "", nil
	}
	defer C.free(unsafe.Pointer(out))
	return C.GoStringN(out, length), nil
}

func (s *SystemClipboard) WriteText(text string) error {
	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))
	if C.clipboard_set_text(cText, C.int(len(text))) == 0 {
		return errors.New("clipboard: failed to set text")
	}
	return nil
}

// SystemPaster posts Cmd+V through CoreGraphics.
type SystemPaster struct{}

func NewSystemPaster() *SystemPaster {
	return &SystemPaster{}
}

func (p *SystemPaster) Paste() error {
	if C.post_paste_chord(C.int(keys.CodeCmd), C.int(keys.CodeV)) == 0 {
		return errors.New("clipboard: failed to post paste chord")
	}
	return nil
}
