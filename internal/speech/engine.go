package speech

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
)

// Engine synthesizes and plays one unit of text, blocking until playback
// ends. Implementations need not be safe for concurrent Say calls; Stop may
// be called from any goroutine.
type Engine interface {
	Say(ctx context.Context, text string) error
	Stop()
}

// DefaultCommand returns the platform speech command.
func DefaultCommand() (string, []string) {
	if runtime.GOOS == "darwin" {
		return "say", nil
	}
	return "espeak", nil
}

// process tracks the single child process an engine is waiting on so Stop
// can kill it from another goroutine.
type process struct {
	mu      sync.Mutex
	cmd     *exec.Cmd
	stopped bool
}

func (p *process) run(ctx context.Context, cmd *exec.Cmd) error {
	p.mu.Lock()
	p.stopped = false
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	p.cmd = cmd
	p.mu.Unlock()

	err := cmd.Wait()

	p.mu.Lock()
	stopped := p.stopped
	p.cmd = nil
	p.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case stopped:
		return ErrStopped
	case err != nil:
		return fmt.Errorf("run %s: %w", cmd.Path, err)
	}
	return nil
}

func (p *process) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	p.stopped = true
	_ = p.cmd.Process.Kill()
}

// CommandEngine speaks by running a local TTS program with the text as its
// last argument, e.g. say or espeak.
type CommandEngine struct {
	name string
	args []string
	proc process
}

func NewCommandEngine(name string, args ...string) *CommandEngine {
	return &CommandEngine{name: name, args: args}
}

func (e *CommandEngine) Say(ctx context.Context, text string) error {
	args := append(append([]string(nil), e.args...), text)
	return e.proc.run(ctx, exec.CommandContext(ctx, e.name, args...))
}

func (e *CommandEngine) Stop() {
	e.proc.kill()
}
