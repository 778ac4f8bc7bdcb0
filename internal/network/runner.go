package network

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultCommandTimeout bounds a single external command invocation.
const DefaultCommandTimeout = 30 * time.Second

// Policy controls how the Runner treats a failed command.
type Policy int

const (
	// MustSucceed propagates command failures to the caller.
	MustSucceed Policy = iota
	// BestEffort logs command failures and discards them. Used for cleanup
	// steps that may act on already-absent state.
	BestEffort
)

// Executor runs a single external command and returns its combined output.
type Executor interface {
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execExecutor shells out through os/exec.
type execExecutor struct{}

func (execExecutor) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 - argv is validated against the runner allowlist before execution
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Commands the runner is willing to execute
var allowedCommands = map[string]bool{
	"tc":       true,
	"ip":       true,
	"modprobe": true,
}

// Runner executes traffic control command lines with a per-command timeout.
// It is the single shell-out point for the whole package.
type Runner struct {
	log      logrus.FieldLogger
	executor Executor
	timeout  time.Duration
}

// NewRunner creates a runner that executes commands through os/exec.
func NewRunner(log logrus.FieldLogger, timeout time.Duration) *Runner {
	return NewRunnerWithExecutor(log, timeout, execExecutor{})
}

// NewRunnerWithExecutor creates a runner backed by a custom executor.
func NewRunnerWithExecutor(log logrus.FieldLogger, timeout time.Duration, executor Executor) *Runner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	return &Runner{
		log:      log.WithField("package", "network.runner"),
		executor: executor,
		timeout:  timeout,
	}
}

// Run executes a single command line under the given policy. Commands outside
// the allowlist are rejected regardless of policy. Under BestEffort a failed
// execution is logged at debug level and nil is returned.
func (r *Runner) Run(ctx context.Context, policy Policy, argv ...string) error {
	if len(argv) == 0 {
		return errors.New("command cannot be empty")
	}

	if !allowedCommands[argv[0]] {
		return fmt.Errorf("command not allowed: %s", argv[0])
	}

	cmdline := strings.Join(argv, " ")
	r.log.WithField("command", cmdline).Info("Executing traffic control command")

	ctxWithTimeout, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	output, err := r.executor.CombinedOutput(ctxWithTimeout, argv[0], argv[1:]...)
	if err != nil {
		if policy == BestEffort {
			r.log.WithFields(logrus.Fields{
				"command": cmdline,
				"output":  strings.TrimSpace(string(output)),
				"error":   err,
			}).Debug("Ignoring failed best-effort command")
			return nil
		}
		return fmt.Errorf("command %q failed: %w, output: %s", cmdline, err, strings.TrimSpace(string(output)))
	}

	return nil
}

// RunAll executes command lines in order, stopping at the first failure
// under MustSucceed.
func (r *Runner) RunAll(ctx context.Context, policy Policy, batch [][]string) error {
	for _, argv := range batch {
		if err := r.Run(ctx, policy, argv...); err != nil {
			return err
		}
	}
	return nil
}
