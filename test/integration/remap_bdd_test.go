//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/remapd/internal/daemon"
	"github.com/eliteGoblin/focusd/remapd/internal/domain"
	"github.com/eliteGoblin/focusd/remapd/internal/infra"
	"github.com/eliteGoblin/focusd/remapd/internal/policy"
	"github.com/eliteGoblin/focusd/remapd/internal/usecase"
	"github.com/eliteGoblin/focusd/remapd/test/fixtures"
)

const (
	keyF1     domain.Keysym = 0xffbe
	keyF2     domain.Keysym = 0xffbf
	keyDown   domain.Keysym = 0xff54
	keyReturn domain.Keysym = 0xff0d

	browser  domain.Window = 0x2a00001
	terminal domain.Window = 0x2a00002
	editor   domain.Window = 0x2a00003
)

// spawnLog records commands instead of running them.
type spawnLog struct {
	mu       sync.Mutex
	commands []string
}

func (s *spawnLog) Spawn(command string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, command)
	return 1000 + len(s.commands), nil
}

func (s *spawnLog) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// harness runs a Remapper over a FakeDisplay for one scenario.
type harness struct {
	display *fixtures.FakeDisplay
	cancel  context.CancelFunc
	errCh   chan error
}

func startRemapper(policyFile string, runner domain.CommandRunner, registry domain.DaemonRegistry) *harness {
	p, err := policy.LoadFile(filepath.Join("testdata", policyFile))
	Expect(err).NotTo(HaveOccurred())

	display := fixtures.NewFakeDisplay()
	display.AddWindow(browser, "Firefox")
	display.AddWindow(terminal, "Terminal")
	display.AddWindow(editor, "Emacs")

	logger := zap.NewNop()
	dispatcher := usecase.NewDispatcher(display, runner, p, logger)
	d := domain.Daemon{PID: os.Getpid(), SessionID: "integration", StartedAt: time.Now()}
	r := daemon.NewRemapper(display, dispatcher, registry, d, logger)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{display: display, cancel: cancel, errCh: make(chan error, 1)}
	go func() { h.errCh <- r.Run(ctx) }()

	Eventually(display.Grabs).ShouldNot(BeEmpty())
	return h
}

func (h *harness) stop() {
	h.cancel()
	var err error
	Eventually(h.errCh).Should(Receive(&err))
	Expect(err).To(MatchError(context.Canceled))
}

func sent(target domain.Window, sym domain.Keysym, mods domain.Modifier, typ domain.EventType) fixtures.SentKey {
	return fixtures.SentKey{Target: target, Key: domain.NewKey(sym, mods), Type: typ}
}

var _ = Describe("Remapper", func() {
	var (
		runner *spawnLog
		h      *harness
	)

	BeforeEach(func() {
		runner = &spawnLog{}
	})

	AfterEach(func() {
		if h != nil {
			h.stop()
			h = nil
		}
	})

	Describe("startup grabs", func() {
		It("should grab every distinct trigger with each lock variant", func() {
			h = startRemapper("first_match.yaml", runner, nil)

			Eventually(h.display.Grabs).Should(HaveLen(2 * len(domain.LockVariants)))
			grabs := h.display.Grabs()
			Expect(grabs[0]).To(Equal(fixtures.Grab{Sym: 'n', Mods: domain.ControlMask}))
			Expect(grabs[len(domain.LockVariants)]).To(Equal(fixtures.Grab{Sym: 'j', Mods: domain.ControlMask}))
		})
	})

	Describe("forwarding Control+F1 as F1", func() {
		BeforeEach(func() {
			h = startRemapper("forward_f1.yaml", runner, nil)
			h.display.Focus(editor)
		})

		It("should synthesize a plain F1 to the focused window", func() {
			h.display.Press(keyF1, domain.ControlMask)

			Eventually(h.display.Sent).Should(Equal([]fixtures.SentKey{
				sent(editor, keyF1, 0, domain.KeyPress),
				sent(editor, keyF1, 0, domain.KeyRelease),
			}))
		})

		It("should ignore NumLock and CapsLock when matching", func() {
			h.display.Press(keyF1, domain.ControlMask|domain.Mod2Mask|domain.LockMask)

			Eventually(h.display.Sent).Should(Equal([]fixtures.SentKey{
				sent(editor, keyF1, 0, domain.KeyPress),
				sent(editor, keyF1, 0, domain.KeyRelease),
			}))
		})

		It("should pass Control+F2 through unchanged", func() {
			h.display.Press(keyF2, domain.ControlMask)

			Eventually(h.display.Sent).Should(Equal([]fixtures.SentKey{
				sent(editor, keyF2, domain.ControlMask, domain.KeyPress),
				sent(editor, keyF2, domain.ControlMask, domain.KeyRelease),
			}))
			Expect(runner.Commands()).To(BeEmpty())
		})
	})

	Describe("running a command for a terminal", func() {
		BeforeEach(func() {
			h = startRemapper("terminal_command.yaml", runner, nil)
		})

		Context("when a terminal is focused", func() {
			It("should run the command once, on press only", func() {
				h.display.Focus(terminal)
				h.display.Press('t', domain.ControlMask|domain.ShiftMask)
				h.display.Press('x', 0)

				Eventually(h.display.Sent).Should(HaveLen(2))
				Expect(runner.Commands()).To(Equal([]string{"tmux new"}))
			})
		})

		Context("when another window is focused", func() {
			It("should not run the command and pass the key through", func() {
				h.display.Focus(browser)
				h.display.Press('t', domain.ControlMask|domain.ShiftMask)

				Eventually(h.display.Sent).Should(Equal([]fixtures.SentKey{
					sent(browser, 't', domain.ControlMask|domain.ShiftMask, domain.KeyPress),
					sent(browser, 't', domain.ControlMask|domain.ShiftMask, domain.KeyRelease),
				}))
				Consistently(runner.Commands, 100*time.Millisecond).Should(BeEmpty())
			})
		})

		Context("when focus moves between events", func() {
			It("should resolve the focused window per event", func() {
				h.display.Focus(browser)
				h.display.Press('t', domain.ControlMask|domain.ShiftMask)
				Eventually(h.display.Sent).Should(HaveLen(2))

				h.display.Focus(terminal)
				h.display.Press('t', domain.ControlMask|domain.ShiftMask)
				Eventually(runner.Commands).Should(Equal([]string{"tmux new"}))
			})
		})
	})

	Describe("group selection", func() {
		Context("with the default first-match semantics", func() {
			BeforeEach(func() {
				h = startRemapper("first_match.yaml", runner, nil)
				h.display.Focus(browser)
			})

			It("should apply the first matching group's rule", func() {
				h.display.Press('n', domain.ControlMask)

				Eventually(h.display.Sent).Should(Equal([]fixtures.SentKey{
					sent(browser, keyDown, 0, domain.KeyPress),
					sent(browser, keyDown, 0, domain.KeyRelease),
				}))
			})

			It("should not fall through to a later group", func() {
				h.display.Press('j', domain.ControlMask)

				Eventually(h.display.Sent).Should(Equal([]fixtures.SentKey{
					sent(browser, 'j', domain.ControlMask, domain.KeyPress),
					sent(browser, 'j', domain.ControlMask, domain.KeyRelease),
				}))
			})

			It("should use the catch-all group for other windows", func() {
				h.display.Focus(editor)
				h.display.Press('j', domain.ControlMask)

				Eventually(h.display.Sent).Should(Equal([]fixtures.SentKey{
					sent(editor, keyReturn, 0, domain.KeyPress),
					sent(editor, keyReturn, 0, domain.KeyRelease),
				}))
			})
		})

		Context("with fallthrough enabled", func() {
			BeforeEach(func() {
				h = startRemapper("first_match_fallthrough.yaml", runner, nil)
				h.display.Focus(browser)
			})

			It("should continue to the catch-all group", func() {
				h.display.Press('j', domain.ControlMask)

				Eventually(h.display.Sent).Should(Equal([]fixtures.SentKey{
					sent(browser, keyReturn, 0, domain.KeyPress),
					sent(browser, keyReturn, 0, domain.KeyRelease),
				}))
			})
		})
	})

	Describe("failures", func() {
		It("should stop the loop when the focused window cannot be queried", func() {
			h = startRemapper("forward_f1.yaml", runner, nil)
			h.display.FailFocus(fixtures.ErrFocusLost)
			h.display.Press(keyF1, domain.ControlMask)

			var err error
			Eventually(h.errCh).Should(Receive(&err))
			Expect(err).To(MatchError(ContainSubstring("failed to query focused window")))
			h = nil
		})

		It("should keep running when a forwarded key has no keycode", func() {
			h = startRemapper("first_match.yaml", runner, nil)
			h.display.Focus(browser)
			h.display.Unmap(keyDown)

			h.display.Press('n', domain.ControlMask)
			h.display.Press('x', 0)

			Eventually(h.display.Sent).Should(Equal([]fixtures.SentKey{
				sent(browser, 'x', 0, domain.KeyPress),
				sent(browser, 'x', 0, domain.KeyRelease),
			}))
		})
	})
})

var _ = Describe("Launching commands with history", func() {
	var (
		dataDir string
		marker  string
		history *infra.EncryptedHistory
		h       *harness
	)

	BeforeEach(func() {
		var err error
		dataDir, err = os.MkdirTemp("", "remapd-integration-*")
		Expect(err).NotTo(HaveOccurred())

		marker = filepath.Join(dataDir, "marker")
		os.Setenv("REMAPD_TEST_MARKER", marker)

		history, err = infra.OpenHistory(dataDir)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if h != nil {
			h.stop()
		}
		history.Close()
		os.Unsetenv("REMAPD_TEST_MARKER")
		os.RemoveAll(dataDir)
	})

	It("should run the shell command and record it in the encrypted history", func() {
		logger := zap.NewNop()
		runner := infra.NewRecordingRunner(infra.NewShellRunnerWith("/bin/sh", logger), history, "integration", logger)
		pm := infra.NewProcessManager()
		registry := infra.NewFileRegistry(infra.PathsFor(dataDir), pm)

		h = startRemapper("launcher.yaml", runner, registry)
		h.display.Focus(editor)

		alive, err := registry.IsAlive()
		Expect(err).NotTo(HaveOccurred())
		Expect(alive).To(BeTrue())

		h.display.Press(keyReturn, domain.Mod4Mask)
		h.display.Press('q', domain.ControlMask)

		Eventually(func() string {
			data, _ := os.ReadFile(marker)
			return string(data)
		}, 5*time.Second).Should(Equal("launched\n"))

		records, err := history.Recent(10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].SessionID).To(Equal("integration"))
		Expect(strings.HasPrefix(records[0].Command, "echo launched")).To(BeTrue())
		Expect(records[0].PID).To(BeNumerically(">", 0))

		// The ignored key is consumed; nothing is synthesized.
		Consistently(h.display.Sent, 100*time.Millisecond).Should(BeEmpty())

		h.stop()
		h = nil

		entry, err := registry.Get()
		Expect(err).NotTo(HaveOccurred())
		Expect(entry).To(BeNil())
	})
})
