// Package executor runs shell commands for the session store, either in
// process or through the execution endpoint of a running server.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"pkt.systems/nextvm/core"
	"pkt.systems/nextvm/schema"
	"pkt.systems/pslog"
)

// DefaultShell is the interpreter used for commands.
const DefaultShell = "zsh"

const fallbackShell = "sh"

const waitDelay = 2 * time.Second

// ShellConfig configures in-process command execution.
type ShellConfig struct {
	// Shell is the interpreter invoked as "<shell> -c <command>".
	Shell string
	// WorkingDir is the directory commands run in. Empty means the
	// current directory.
	WorkingDir string
	// Timeout bounds a single command. Zero disables the bound.
	Timeout time.Duration
	// KillPrevious kills the process groups of commands that are still
	// running when a new command starts.
	KillPrevious bool
	// DisableAuditLogging disables audit trail debug logs for commands.
	DisableAuditLogging bool
}

// Shell executes commands with a local shell.
type Shell struct {
	cfg   ShellConfig
	shell string

	mu      sync.Mutex
	running map[int]struct{}
}

// NewShell resolves the configured shell and returns an executor. When the
// configured shell is the default and not installed, sh is used instead.
func NewShell(cfg ShellConfig) (*Shell, error) {
	name := strings.TrimSpace(cfg.Shell)
	if name == "" {
		name = DefaultShell
	}
	path, err := exec.LookPath(name)
	if err != nil && name == DefaultShell {
		path, err = exec.LookPath(fallbackShell)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve shell %q: %w", name, err)
	}
	return &Shell{cfg: cfg, shell: path, running: make(map[int]struct{})}, nil
}

// Path returns the resolved interpreter path.
func (s *Shell) Path() string {
	return s.shell
}

// Execute implements core.Executor.
func (s *Shell) Execute(ctx context.Context, req core.ExecRequest) (core.ExecResult, error) {
	out, err := s.Run(ctx, req.Command)
	if err != nil {
		return core.ExecResult{}, err
	}
	return core.ExecResult{Output: out}, nil
}

// Run executes command and returns its standard output. A start or exit
// failure yields an ExecutionError prefixed "Execution failed: ", and any
// standard error output yields an ExecutionError prefixed "stderr: ".
func (s *Shell) Run(ctx context.Context, command string) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", schema.ErrEmptyCommand
	}
	log := pslog.Ctx(ctx).With("shell", s.shell)
	if s.cfg.KillPrevious {
		s.killRunning(log)
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, s.shell, "-c", command)
	if s.cfg.WorkingDir != "" {
		cmd.Dir = s.cfg.WorkingDir
	}
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	if !s.cfg.DisableAuditLogging {
		log.Debug("audit command", "command_type", "shell", "command", command)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("executor command start failed", "err", err)
		return "", &schema.ExecutionError{Message: "Execution failed: " + err.Error()}
	}
	pid := cmd.Process.Pid
	s.track(pid)
	err := cmd.Wait()
	s.untrack(pid)
	log = log.With("pid", pid, "duration", time.Since(started))

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log = log.With("exit_code", exitErr.ExitCode())
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		log.Info("executor command failed", "err", err)
		return "", &schema.ExecutionError{Message: executionFailedMessage(err, stderr.String())}
	}
	if stderr.Len() > 0 {
		log.Info("executor command wrote stderr", "stderr_len", stderr.Len())
		return "", &schema.ExecutionError{Message: "stderr: " + stderr.String()}
	}
	log.Debug("executor command completed", "stdout_len", stdout.Len())
	return stdout.String(), nil
}

func executionFailedMessage(err error, stderr string) string {
	msg := "Execution failed: " + err.Error()
	if trimmed := strings.TrimSpace(stderr); trimmed != "" {
		msg += "\n" + trimmed
	}
	return msg
}

func (s *Shell) track(pid int) {
	s.mu.Lock()
	s.running[pid] = struct{}{}
	s.mu.Unlock()
}

func (s *Shell) untrack(pid int) {
	s.mu.Lock()
	delete(s.running, pid)
	s.mu.Unlock()
}

func (s *Shell) killRunning(log pslog.Logger) {
	s.mu.Lock()
	pids := make([]int, 0, len(s.running))
	for pid := range s.running {
		pids = append(pids, pid)
	}
	s.mu.Unlock()
	for _, pid := range pids {
		if err := killProcessGroup(pid); err != nil {
			log.Warn("executor kill previous failed", "pid", pid, "err", err)
			continue
		}
		log.Info("executor previous command killed", "pid", pid)
	}
}
