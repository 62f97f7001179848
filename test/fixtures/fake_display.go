// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

// FakeRoot is the root window of every FakeDisplay.
const FakeRoot domain.Window = 1

// SentKey is one synthesized key event recorded by FakeDisplay.
type SentKey struct {
	Target domain.Window
	Key    domain.Key
	Type   domain.EventType
}

// Grab is one GrabKey call recorded by FakeDisplay.
type Grab struct {
	Sym  domain.Keysym
	Mods domain.Modifier
}

// FakeDisplay is an in-memory domain.Display with a US-like keyboard.
// Keycodes are assigned on first use, starting at 10.
type FakeDisplay struct {
	mu       sync.Mutex
	focused  domain.Window
	focusErr error
	classes  map[domain.Window]string
	codes    map[domain.Keysym]domain.Keycode
	syms     map[domain.Keycode]domain.Keysym
	unmapped map[domain.Keysym]bool
	sent     []SentKey
	grabs    []Grab
	events   chan domain.KeyEvent
	closed   chan struct{}
	once     sync.Once
}

// NewFakeDisplay creates a display focused on no window.
func NewFakeDisplay() *FakeDisplay {
	return &FakeDisplay{
		classes:  make(map[domain.Window]string),
		codes:    make(map[domain.Keysym]domain.Keycode),
		syms:     make(map[domain.Keycode]domain.Keysym),
		unmapped: make(map[domain.Keysym]bool),
		events:   make(chan domain.KeyEvent, 64),
		closed:   make(chan struct{}),
	}
}

// AddWindow registers a window with a WM_CLASS class ("" means unreadable).
func (f *FakeDisplay) AddWindow(w domain.Window, class string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if class != "" {
		f.classes[w] = class
	}
}

// Focus moves input focus to w.
func (f *FakeDisplay) Focus(w domain.Window) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focused = w
}

// FailFocus makes FocusedWindow return err (nil restores normal behavior).
func (f *FakeDisplay) FailFocus(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focusErr = err
}

// Unmap removes sym from the keyboard mapping.
func (f *FakeDisplay) Unmap(sym domain.Keysym) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmapped[sym] = true
}

func (f *FakeDisplay) codeLocked(sym domain.Keysym) domain.Keycode {
	if code, ok := f.codes[sym]; ok {
		return code
	}
	code := domain.Keycode(10 + len(f.codes))
	f.codes[sym] = code
	f.syms[code] = sym
	return code
}

// Event builds a raw event for sym as the server would deliver it.
func (f *FakeDisplay) Event(typ domain.EventType, sym domain.Keysym, state domain.Modifier) domain.KeyEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.KeyEvent{
		Type:       typ,
		Code:       f.codeLocked(sym),
		State:      state,
		Time:       1000,
		Root:       FakeRoot,
		Event:      FakeRoot,
		Child:      f.focused,
		SameScreen: true,
	}
}

// Press queues a KeyPress followed by a KeyRelease for NextEvent.
func (f *FakeDisplay) Press(sym domain.Keysym, state domain.Modifier) {
	f.events <- f.Event(domain.KeyPress, sym, state)
	f.events <- f.Event(domain.KeyRelease, sym, state)
}

// Sent returns the synthesized events so far.
func (f *FakeDisplay) Sent() []SentKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentKey(nil), f.sent...)
}

// Grabs returns the grabs registered so far.
func (f *FakeDisplay) Grabs() []Grab {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Grab(nil), f.grabs...)
}

// FocusedWindow implements domain.Display.
func (f *FakeDisplay) FocusedWindow() (domain.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.focusErr != nil {
		return domain.NoWindow, f.focusErr
	}
	return f.focused, nil
}

// WindowClass implements domain.Display.
func (f *FakeDisplay) WindowClass(w domain.Window) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	class, ok := f.classes[w]
	return class, ok
}

// KeysymOf implements domain.Display.
func (f *FakeDisplay) KeysymOf(code domain.Keycode) domain.Keysym {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.syms[code]
}

// KeycodeOf implements domain.Display.
func (f *FakeDisplay) KeycodeOf(sym domain.Keysym) (domain.Keycode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unmapped[sym] {
		return 0, false
	}
	return f.codeLocked(sym), true
}

// GrabKey implements domain.Display.
func (f *FakeDisplay) GrabKey(sym domain.Keysym, mods domain.Modifier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unmapped[sym] {
		return domain.ErrNoKeycode
	}
	f.grabs = append(f.grabs, Grab{Sym: sym, Mods: mods})
	return nil
}

// SendKey implements domain.Display.
func (f *FakeDisplay) SendKey(target domain.Window, key domain.Key, template domain.KeyEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unmapped[key.Sym] {
		return domain.ErrNoKeycode
	}
	f.sent = append(f.sent, SentKey{Target: target, Key: key, Type: template.Type})
	return nil
}

// NextEvent implements domain.Display. Queued events drain before Close
// takes effect.
func (f *FakeDisplay) NextEvent() (domain.KeyEvent, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	default:
	}
	select {
	case ev := <-f.events:
		return ev, nil
	case <-f.closed:
		return domain.KeyEvent{}, domain.ErrDisplayClosed
	}
}

// Close implements domain.Display.
func (f *FakeDisplay) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// IsClosed reports whether Close has been called.
func (f *FakeDisplay) IsClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// ErrFocusLost is a canned focus-query failure.
var ErrFocusLost = errors.New("fake: connection to focus broker lost")

// Ensure FakeDisplay implements domain.Display.
var _ domain.Display = (*FakeDisplay)(nil)
