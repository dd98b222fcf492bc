// Package runner spawns the toolchain's test command for one unit at a time.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager runs at most one subprocess. Starting a run cancels the active one,
// and the new process is not spawned until the old one has been reaped.
type Manager struct {
	cfg    Config
	logger *log.Logger
	events chan Event

	mu     sync.Mutex
	active *Handle
}

func NewManager(cfg Config, logger *log.Logger) *Manager {
	def := DefaultConfig()
	if len(cfg.Command) == 0 {
		cfg.Command = def.Command
	}
	if len(cfg.VersionArgs) == 0 {
		cfg.VersionArgs = def.VersionArgs
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = def.MaxOutputBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = def.WaitDelay
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Manager{
		cfg:    cfg,
		logger: logger,
		events: make(chan Event, 256),
	}
}

func (m *Manager) Events() <-chan Event { return m.events }

// Start returns immediately. A command that cannot be spawned is reported as
// a Finished event with Result.SpawnErr set; the returned error only covers
// an unusable command template.
func (m *Manager) Start(ctx context.Context, req Request) (*Handle, error) {
	args, err := ExpandCommand(m.cfg.Command, req)
	if err != nil {
		return nil, err
	}
	h := newHandle(ctx, req, m.events)

	m.mu.Lock()
	prev := m.active
	m.active = h
	m.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
	go m.run(h, prev, args)
	return h, nil
}

// Active returns the most recently started handle, finished or not.
func (m *Manager) Active() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Close cancels the active run and waits for its process to be reaped.
func (m *Manager) Close(ctx context.Context) error {
	h := m.Active()
	if h == nil {
		return nil
	}
	h.Cancel()
	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run(h *Handle, prev *Handle, args []string) {
	defer close(h.done)
	if prev != nil {
		<-prev.done
	}

	res := &Result{StartedAt: time.Now(), ExitCode: -1}
	if h.ctx.Err() != nil {
		res.Cancelled = true
		h.finish(res)
		return
	}

	out := newTailBuffer(m.cfg.MaxOutputBytes)
	activity := make(chan struct{}, 1)
	w := &streamWriter{h: h, buf: out, activity: activity}

	cmd := exec.CommandContext(h.ctx, args[0], args[1:]...)
	cmd.Dir = m.cfg.Dir
	if len(m.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), m.cfg.Env...)
	}
	cmd.Stdout = w
	cmd.Stderr = w
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = m.cfg.WaitDelay

	m.logger.Debug("run.spawn", "seq", h.seq, "unit", h.unitID, "argv", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		res.SpawnErr = fmt.Errorf("start %s: %w", args[0], err)
		res.Duration = time.Since(res.StartedAt)
		m.logger.Warn("run.spawn_failed", "seq", h.seq, "unit", h.unitID, "error", err)
		h.finish(res)
		return
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var (
		idle  <-chan time.Time
		timer *time.Timer
	)
	if m.cfg.IdleTimeout > 0 {
		timer = time.NewTimer(m.cfg.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	var waitErr error
loop:
	for {
		select {
		case waitErr = <-waitCh:
			break loop
		case <-activity:
			if timer != nil && idle != nil {
				timer.Reset(m.cfg.IdleTimeout)
			}
		case <-idle:
			res.TimedOut = true
			idle = nil
			m.logger.Warn("run.idle_timeout", "seq", h.seq, "unit", h.unitID, "after", m.cfg.IdleTimeout)
			h.cancel()
		}
	}

	res.Duration = time.Since(res.StartedAt)
	res.Output = out.Bytes()
	res.Truncated = out.Truncated()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if !res.TimedOut && h.ctx.Err() != nil {
		res.Cancelled = true
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !res.TimedOut && !res.Cancelled {
		res.Err = waitErr
	}
	m.logger.Debug("run.exit", "seq", h.seq, "unit", h.unitID, "exit", res.ExitCode, "duration", res.Duration, "cancelled", res.Cancelled)
	h.finish(res)
}

type streamWriter struct {
	h        *Handle
	buf      *tailBuffer
	activity chan struct{}
}

func (w *streamWriter) Write(p []byte) (int, error) {
	n, _ := w.buf.Write(p)
	select {
	case w.activity <- struct{}{}:
	default:
	}
	w.h.emitOutput(p)
	return n, nil
}

// ExpandCommand substitutes {package} and {unit} in every argument.
func ExpandCommand(tmpl []string, req Request) ([]string, error) {
	if len(tmpl) == 0 || strings.TrimSpace(tmpl[0]) == "" {
		return nil, errors.New("toolchain command is empty")
	}
	r := strings.NewReplacer("{package}", req.Package, "{unit}", req.UnitID)
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}
	return out, nil
}

// Detect checks the toolchain binary is on PATH and reads its version.
func (m *Manager) Detect(ctx context.Context) (ToolchainInfo, error) {
	name := m.cfg.Command[0]
	info := ToolchainInfo{Name: name}
	path, err := exec.LookPath(name)
	if err != nil {
		return info, fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	info.Path = path
	out, err := exec.CommandContext(ctx, path, m.cfg.VersionArgs...).CombinedOutput()
	if err != nil {
		return info, fmt.Errorf("%s %s failed: %s", name, strings.Join(m.cfg.VersionArgs, " "), strings.TrimSpace(string(out)))
	}
	info.Version = strings.TrimSpace(string(out))
	return info, nil
}
