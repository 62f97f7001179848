// Package infra implements infrastructure concerns (display, process, registry, history).
package infra

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

// wmClassMaxLen is the WM_CLASS read length, in 32-bit units.
const wmClassMaxLen = 256

// sentKeysCap bounds how many synthesized events are remembered for echo
// suppression.
const sentKeysCap = 64

// keyServer is the subset of the X connection the key path needs.
type keyServer interface {
	keyboardMapping(first xproto.Keycode, count byte) (*xproto.GetKeyboardMappingReply, error)
	grabKey(code xproto.Keycode, mods uint16) error
	ungrabKeys() error
	sendEvent(target xproto.Window, event []byte)
	waitForEvent() (xgb.Event, xgb.Error)
}

// xgbServer implements keyServer on a live connection. Grabs are passive
// grabs on the root window.
type xgbServer struct {
	conn *xgb.Conn
	root xproto.Window
}

func (s *xgbServer) keyboardMapping(first xproto.Keycode, count byte) (*xproto.GetKeyboardMappingReply, error) {
	return xproto.GetKeyboardMapping(s.conn, first, count).Reply()
}

func (s *xgbServer) grabKey(code xproto.Keycode, mods uint16) error {
	return xproto.GrabKeyChecked(s.conn, false, s.root, mods, code,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
}

func (s *xgbServer) ungrabKeys() error {
	return xproto.UngrabKeyChecked(s.conn, xproto.GrabAny, s.root, xproto.ModMaskAny).Check()
}

func (s *xgbServer) sendEvent(target xproto.Window, event []byte) {
	xproto.SendEvent(s.conn, true, target, xproto.EventMaskKeyPress, string(event))
}

func (s *xgbServer) waitForEvent() (xgb.Event, xgb.Error) {
	return s.conn.WaitForEvent()
}

// grab is a trigger requested through GrabKey, kept for re-grabbing after
// a keyboard mapping change.
type grab struct {
	sym  domain.Keysym
	mods domain.Modifier
}

// keySignature identifies a key event on the wire. xgb clears the
// send_event bit, so a synthesized event that comes back is recognized by
// its fields instead.
type keySignature struct {
	release bool
	code    xproto.Keycode
	state   uint16
	time    xproto.Timestamp
	window  xproto.Window
}

// sentKeys is a fixed ring of recently synthesized events.
type sentKeys struct {
	ring [sentKeysCap]keySignature
	live [sentKeysCap]bool
	next int
}

func (s *sentKeys) add(sig keySignature) {
	s.ring[s.next] = sig
	s.live[s.next] = true
	s.next = (s.next + 1) % sentKeysCap
}

// take reports whether sig was sent by us and forgets it.
func (s *sentKeys) take(sig keySignature) bool {
	for i := range s.ring {
		if s.live[i] && s.ring[i] == sig {
			s.live[i] = false
			return true
		}
	}
	return false
}

// X11Display implements domain.Display on top of the X protocol.
//
// Key events reach the daemon only through its passive grabs; nothing is
// selected on the root window, so keys it synthesizes (including keys sent
// to the root itself) are not delivered back to it. MappingNotify needs no
// selection and triggers a keymap reload plus a re-grab.
//
// All methods except Close are called from the event loop goroutine.
type X11Display struct {
	conn   *xgb.Conn
	server keyServer
	root   xproto.Window
	logger *zap.Logger

	minKeycode        xproto.Keycode
	maxKeycode        xproto.Keycode
	keysymsPerKeycode int
	keysyms           []xproto.Keysym

	grabs []grab
	sent  sentKeys

	closeOnce sync.Once
}

// NewX11Display connects to displayName ("" means $DISPLAY) and loads the
// keyboard mapping.
func NewX11Display(displayName string, logger *zap.Logger) (*X11Display, error) {
	conn, err := xgb.NewConnDisplay(displayName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X display %q: %w", displayName, err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	d, err := newX11Display(&xgbServer{conn: conn, root: screen.Root},
		screen.Root, setup.MinKeycode, setup.MaxKeycode, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	d.conn = conn

	logger.Info("connected to X display",
		zap.String("display", displayName),
		zap.Uint32("root", uint32(d.root)),
		zap.Int("keysyms_per_keycode", d.keysymsPerKeycode))

	return d, nil
}

func newX11Display(server keyServer, root xproto.Window, minKeycode, maxKeycode xproto.Keycode, logger *zap.Logger) (*X11Display, error) {
	d := &X11Display{
		server:     server,
		root:       root,
		logger:     logger,
		minKeycode: minKeycode,
		maxKeycode: maxKeycode,
	}
	if err := d.loadKeyboardMapping(); err != nil {
		return nil, err
	}
	return d, nil
}

// loadKeyboardMapping fetches the keycode->keysym table for the whole
// keycode range.
func (d *X11Display) loadKeyboardMapping() error {
	count := byte(d.maxKeycode - d.minKeycode + 1)
	reply, err := d.server.keyboardMapping(d.minKeycode, count)
	if err != nil {
		return fmt.Errorf("failed to read keyboard mapping: %w", err)
	}
	d.keysymsPerKeycode = int(reply.KeysymsPerKeycode)
	d.keysyms = reply.Keysyms
	return nil
}

// handleMappingNotify reloads the keymap after a keyboard mapping change
// (setxkbmap, xmodmap) and re-establishes every grab on the new keycodes.
// Modifier and pointer mapping changes are ignored.
func (d *X11Display) handleMappingNotify(e xproto.MappingNotifyEvent) {
	if e.Request != xproto.MappingKeyboard {
		return
	}
	if err := d.loadKeyboardMapping(); err != nil {
		d.logger.Warn("keeping previous keyboard mapping", zap.Error(err))
		return
	}
	if len(d.grabs) == 0 {
		return
	}

	if err := d.server.ungrabKeys(); err != nil {
		d.logger.Warn("failed to release key grabs", zap.Error(err))
	}
	var failed int
	for _, g := range d.grabs {
		if err := d.grabSym(g.sym, g.mods); err != nil {
			failed++
			d.logger.Warn("re-grab failed", zap.Error(err))
		}
	}
	d.logger.Info("keyboard mapping changed",
		zap.Int("grabs", len(d.grabs)),
		zap.Int("failed", failed))
}

// FocusedWindow returns the input focus window (GetInputFocus).
func (d *X11Display) FocusedWindow() (domain.Window, error) {
	reply, err := xproto.GetInputFocus(d.conn).Reply()
	if err != nil {
		return domain.NoWindow, fmt.Errorf("GetInputFocus: %w", err)
	}
	return domain.Window(reply.Focus), nil
}

// WindowClass reads WM_CLASS and returns its class (second) field.
func (d *X11Display) WindowClass(w domain.Window) (string, bool) {
	reply, err := xproto.GetProperty(d.conn, false, xproto.Window(w),
		xproto.AtomWmClass, xproto.AtomString, 0, wmClassMaxLen).Reply()
	if err != nil {
		d.logger.Debug("failed to read WM_CLASS",
			zap.Uint32("window", uint32(w)),
			zap.Error(err))
		return "", false
	}
	return parseWMClass(reply.Value)
}

// parseWMClass splits "instance\x00class\x00".
func parseWMClass(value []byte) (string, bool) {
	parts := bytes.Split(bytes.TrimRight(value, "\x00"), []byte{0})
	if len(parts) < 2 {
		return "", false
	}
	return string(parts[1]), true
}

// KeysymOf returns the first keysym bound to code (group 0, unshifted).
func (d *X11Display) KeysymOf(code domain.Keycode) domain.Keysym {
	return keysymAt(d.keysyms, d.keysymsPerKeycode, d.minKeycode, xproto.Keycode(code), 0)
}

// KeycodeOf searches column by column, lowest keycode first, like
// XKeysymToKeycode.
func (d *X11Display) KeycodeOf(sym domain.Keysym) (domain.Keycode, bool) {
	return keycodeOf(d.keysyms, d.keysymsPerKeycode, d.minKeycode, sym)
}

func keysymAt(table []xproto.Keysym, per int, first, code xproto.Keycode, col int) domain.Keysym {
	if per == 0 || code < first {
		return 0
	}
	idx := int(code-first)*per + col
	if idx >= len(table) {
		return 0
	}
	return domain.Keysym(table[idx])
}

func keycodeOf(table []xproto.Keysym, per int, first xproto.Keycode, sym domain.Keysym) (domain.Keycode, bool) {
	if per == 0 || sym == 0 {
		return 0, false
	}
	codes := len(table) / per
	for col := 0; col < per; col++ {
		for i := 0; i < codes; i++ {
			if domain.Keysym(table[i*per+col]) == sym {
				return domain.Keycode(int(first) + i), true
			}
		}
	}
	return 0, false
}

// GrabKey grabs sym+mods on the root window in async mode. The request is
// remembered even when it fails, since a later keymap may give sym a keycode.
func (d *X11Display) GrabKey(sym domain.Keysym, mods domain.Modifier) error {
	d.grabs = append(d.grabs, grab{sym: sym, mods: mods})
	return d.grabSym(sym, mods)
}

func (d *X11Display) grabSym(sym domain.Keysym, mods domain.Modifier) error {
	code, ok := d.KeycodeOf(sym)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNoKeycode, domain.KeysymName(sym))
	}
	if err := d.server.grabKey(xproto.Keycode(code), uint16(mods)); err != nil {
		return fmt.Errorf("GrabKey %s: %w", domain.KeysymName(sym), err)
	}
	return nil
}

// SendKey delivers a synthetic key event to target. The request is not
// checked; a vanished target surfaces as an asynchronous error in NextEvent.
func (d *X11Display) SendKey(target domain.Window, key domain.Key, template domain.KeyEvent) error {
	code, ok := d.KeycodeOf(key.Sym)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNoKeycode, key)
	}
	buf := encodeKeyEvent(target, code, key.Mods, template)
	d.sent.add(keySignature{
		release: template.Type == domain.KeyRelease,
		code:    xproto.Keycode(code),
		state:   uint16(key.Mods),
		time:    xproto.Timestamp(template.Time),
		window:  xproto.Window(target),
	})
	d.server.sendEvent(xproto.Window(target), buf)
	return nil
}

// encodeKeyEvent builds the 32-byte wire event. The press/release type is
// taken from the template; everything but the keycode, state and target
// window is copied verbatim.
func encodeKeyEvent(target domain.Window, code domain.Keycode, mods domain.Modifier, t domain.KeyEvent) []byte {
	ev := xproto.KeyPressEvent{
		Detail:     xproto.Keycode(code),
		Time:       xproto.Timestamp(t.Time),
		Root:       xproto.Window(t.Root),
		Event:      xproto.Window(target),
		Child:      xproto.Window(t.Child),
		RootX:      t.RootX,
		RootY:      t.RootY,
		EventX:     t.EventX,
		EventY:     t.EventY,
		State:      uint16(mods),
		SameScreen: t.SameScreen,
	}
	buf := ev.Bytes()
	if t.Type == domain.KeyRelease {
		buf[0] = xproto.KeyRelease
	} else {
		buf[0] = xproto.KeyPress
	}
	return buf
}

// NextEvent blocks for the next KeyPress/KeyRelease. Protocol errors are
// logged and skipped, like an Xlib error handler that returns. Events this
// display synthesized itself are dropped.
func (d *X11Display) NextEvent() (domain.KeyEvent, error) {
	for {
		ev, xerr := d.server.waitForEvent()
		if ev == nil && xerr == nil {
			return domain.KeyEvent{}, domain.ErrDisplayClosed
		}
		if xerr != nil {
			d.logger.Warn("X protocol error", zap.String("error", xerr.Error()))
			continue
		}

		switch e := ev.(type) {
		case xproto.KeyPressEvent:
			if d.isEcho(false, e) {
				continue
			}
			return toKeyEvent(domain.KeyPress, e), nil
		case xproto.KeyReleaseEvent:
			if d.isEcho(true, xproto.KeyPressEvent(e)) {
				continue
			}
			return toKeyEvent(domain.KeyRelease, xproto.KeyPressEvent(e)), nil
		case xproto.MappingNotifyEvent:
			d.handleMappingNotify(e)
		default:
			d.logger.Debug("ignoring event", zap.String("event", ev.String()))
		}
	}
}

func (d *X11Display) isEcho(release bool, e xproto.KeyPressEvent) bool {
	echo := d.sent.take(keySignature{
		release: release,
		code:    e.Detail,
		state:   e.State,
		time:    e.Time,
		window:  e.Event,
	})
	if echo {
		d.logger.Debug("dropping synthesized key event",
			zap.Uint8("code", uint8(e.Detail)),
			zap.Uint32("window", uint32(e.Event)))
	}
	return echo
}

func toKeyEvent(typ domain.EventType, e xproto.KeyPressEvent) domain.KeyEvent {
	return domain.KeyEvent{
		Type:       typ,
		Code:       domain.Keycode(e.Detail),
		State:      domain.Modifier(e.State),
		Time:       uint32(e.Time),
		Root:       domain.Window(e.Root),
		Event:      domain.Window(e.Event),
		Child:      domain.Window(e.Child),
		RootX:      e.RootX,
		RootY:      e.RootY,
		EventX:     e.EventX,
		EventY:     e.EventY,
		SameScreen: e.SameScreen,
	}
}

// Close shuts the connection down; safe to call more than once.
func (d *X11Display) Close() error {
	d.closeOnce.Do(func() {
		if d.conn != nil {
			d.conn.Close()
		}
	})
	return nil
}

// Ensure X11Display implements domain.Display.
var _ domain.Display = (*X11Display)(nil)
