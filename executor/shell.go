package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shelvick/quoracle/action"
	"github.com/shelvick/quoracle/dispatch"
	"github.com/shelvick/quoracle/errtag"
)

// ShellConfig bounds execute_shell: a command allowlist, a working
// directory, the sync threshold after which a running command goes async,
// and the max execution time after which it is killed.
type ShellConfig struct {
	AllowedCommands []string
	WorkingDirectory string
	SyncThreshold    time.Duration // commands finishing within this window report synchronously
	MaxExecutionTime time.Duration // hard cap before the process is killed
}

func DefaultShellConfig() ShellConfig {
	return ShellConfig{
		AllowedCommands: []string{
			"cat", "head", "tail", "ls", "find", "grep", "wc", "pwd",
			"git", "go", "echo", "date",
		},
		WorkingDirectory: "./",
		SyncThreshold:    100 * time.Millisecond,
		MaxExecutionTime: 5 * time.Minute,
	}
}

type shellRun struct {
	cmd      *exec.Cmd
	output   bytes.Buffer
	mu       sync.Mutex
	done     chan struct{}
	exitCode int
	runErr   error
	finished bool
}

// ShellExecutor implements execute_shell's three modes (start/check/
// terminate): command validation plus process setup, extended with a live
// process table so check/terminate calls — which arrive as separate, later
// actions — can find the command a start call kicked off. Commands
// finishing inside SyncThreshold report their result immediately ("short
// commands complete
// synchronously"); longer-running ones return a check_id and keep running
// under OS process monitoring until checked or terminated.
type ShellExecutor struct {
	Config ShellConfig

	mu   sync.Mutex
	runs map[string]*shellRun
}

func NewShellExecutor(cfg ShellConfig) *ShellExecutor {
	return &ShellExecutor{Config: cfg, runs: make(map[string]*shellRun)}
}

func (e *ShellExecutor) ExecuteShell(ctx context.Context, _ action.Kind, params map[string]any, _ dispatch.Scope) (dispatch.Result, error) {
	checkID, _ := params["check_id"].(string)
	terminate, _ := params["terminate"].(bool)

	if checkID != "" {
		if terminate {
			return e.terminate(checkID)
		}
		return e.check(checkID)
	}
	return e.start(ctx, params)
}

func (e *ShellExecutor) start(ctx context.Context, params map[string]any) (dispatch.Result, error) {
	command, _ := params["command"].(string)
	if command == "" {
		return dispatch.Result{}, errtag.New(errtag.KindMissingRequiredParam, "execute_shell requires command")
	}
	if err := e.validateCommand(command); err != nil {
		return dispatch.Result{}, err
	}

	runCtx, cancel := context.WithTimeout(context.Background(), e.Config.MaxExecutionTime)
	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = e.Config.WorkingDirectory

	run := &shellRun{cmd: cmd, done: make(chan struct{})}
	cmd.Stdout = &run.output
	cmd.Stderr = &run.output

	if err := cmd.Start(); err != nil {
		cancel()
		return dispatch.Result{}, errtag.Wrap(errtag.KindInvalidParam, "failed to start command", err)
	}

	go func() {
		defer cancel()
		err := cmd.Wait()
		run.mu.Lock()
		run.finished = true
		run.runErr = err
		if cmd.ProcessState != nil {
			run.exitCode = cmd.ProcessState.ExitCode()
		}
		run.mu.Unlock()
		close(run.done)
	}()

	select {
	case <-run.done:
		return dispatch.Result{Data: e.snapshot(run)}, nil
	case <-time.After(e.Config.SyncThreshold):
		checkID := uuid.NewString()
		e.mu.Lock()
		e.runs[checkID] = run
		e.mu.Unlock()
		return dispatch.Result{
			CheckID: checkID,
			Async:   true,
			Data:    map[string]any{"check_id": checkID, "status": "running"},
		}, nil
	}
}

func (e *ShellExecutor) check(checkID string) (dispatch.Result, error) {
	run, ok := e.lookup(checkID)
	if !ok {
		return dispatch.Result{}, errtag.New(errtag.KindNotFound, fmt.Sprintf("unknown check_id %q", checkID))
	}
	data := e.snapshot(run)
	if data["status"] == "completed" {
		e.mu.Lock()
		delete(e.runs, checkID)
		e.mu.Unlock()
	}
	return dispatch.Result{Data: data}, nil
}

func (e *ShellExecutor) terminate(checkID string) (dispatch.Result, error) {
	run, ok := e.lookup(checkID)
	if !ok {
		return dispatch.Result{}, errtag.New(errtag.KindNotFound, fmt.Sprintf("unknown check_id %q", checkID))
	}

	run.mu.Lock()
	finished := run.finished
	run.mu.Unlock()

	if !finished {
		_ = run.cmd.Process.Kill()
		select {
		case <-run.done:
		case <-time.After(2 * time.Second):
		}
	}

	e.mu.Lock()
	delete(e.runs, checkID)
	e.mu.Unlock()

	data := e.snapshot(run)
	data["terminated"] = true
	return dispatch.Result{Data: data}, nil
}

func (e *ShellExecutor) lookup(checkID string) (*shellRun, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.runs[checkID]
	return run, ok
}

func (e *ShellExecutor) snapshot(run *shellRun) map[string]any {
	run.mu.Lock()
	defer run.mu.Unlock()
	status := "running"
	if run.finished {
		status = "completed"
	}
	return map[string]any{
		"status":    status,
		"output":    run.output.String(),
		"exit_code": run.exitCode,
	}
}

func (e *ShellExecutor) validateCommand(command string) error {
	if len(e.Config.AllowedCommands) == 0 {
		return nil
	}
	base := baseCommand(command)
	for _, allowed := range e.Config.AllowedCommands {
		if base == allowed {
			return nil
		}
	}
	return errtag.New(errtag.KindForbidden, fmt.Sprintf("command not allowed: %s", base))
}

func baseCommand(command string) string {
	parts := strings.FieldsFunc(command, func(r rune) bool {
		return r == '|' || r == '>' || r == '<' || r == ';'
	})
	if len(parts) == 0 {
		return ""
	}
	fields := strings.Fields(strings.TrimSpace(parts[0]))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Shutdown kills every still-running command immediately, without a
// graceful stop first, and empties the process table.
func (e *ShellExecutor) Shutdown() {
	e.mu.Lock()
	runs := make([]*shellRun, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	e.runs = make(map[string]*shellRun)
	e.mu.Unlock()

	for _, run := range runs {
		run.mu.Lock()
		finished := run.finished
		run.mu.Unlock()
		if !finished {
			_ = run.cmd.Process.Kill()
		}
	}
}
