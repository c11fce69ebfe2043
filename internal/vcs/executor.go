package vcs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Executor abstracts command execution for testability.
type Executor interface {
	// Run launches binary with args and streams every line of combined
	// stdout/stderr output to onLine. It returns once the process exits.
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Option adjusts how a client invokes its underlying tool.
type Option func(*tool)

// WithBinary overrides the tool binary path.
func WithBinary(binary string) Option {
	return func(t *tool) {
		if strings.TrimSpace(binary) != "" {
			t.binary = binary
		}
	}
}

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(t *tool) {
		if exec != nil {
			t.exec = exec
		}
	}
}

// tool carries the binary path and executor shared by every client.
type tool struct {
	binary string
	exec   Executor
}

func newTool(binary string, opts []Option) tool {
	t := tool{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// run executes one tool invocation, retaining an output tail so failures
// surface the tool's own complaint instead of a bare exit status.
func (t tool) run(ctx context.Context, verb string, args []string) error {
	var tail outputTail
	if err := t.exec.Run(ctx, t.binary, args, tail.add); err != nil {
		if hint := tail.String(); hint != "" {
			return fmt.Errorf("%s: %w (%s)", verb, err, hint)
		}
		return fmt.Errorf("%s: %w", verb, err)
	}
	return nil
}

const tailLimit = 4

// outputTail retains the last few non-empty output lines of a tool run.
type outputTail struct {
	lines []string
}

func (t *outputTail) add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > tailLimit {
		t.lines = t.lines[len(t.lines)-tailLimit:]
	}
}

func (t *outputTail) String() string {
	return strings.Join(t.lines, "; ")
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
