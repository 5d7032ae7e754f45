package procmgr

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/openmined/rclonebox/internal/utils"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	ErrAlreadyRunning = errors.New("process already running")
	ErrNotRunning     = errors.New("process not running")
)

type Status string

const (
	StatusNew     Status = "new"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// Exit is the final state of a supervised process
type Exit struct {
	Code  int
	Error error
}

// Handle supervises one long-running subprocess and its children
type Handle struct {
	ID      string // not PID!
	name    string
	args    []string
	envs    []string
	dir     string
	stdout  io.Writer
	stderr  io.Writer
	onStart func(pid int32)

	proc     *exec.Cmd
	procInfo *process.Process
	procMu   sync.RWMutex

	state   Status
	stateMu sync.RWMutex

	exit     chan Exit
	done     chan struct{}
	exitVal  Exit
	exitOnce sync.Once
}

// NewHandle creates a handle for `name args...`; nothing runs until Start
func NewHandle(name string, args ...string) *Handle {
	return &Handle{
		ID:    utils.TokenHex(3),
		name:  name,
		args:  args,
		state: StatusNew,
		done:  make(chan struct{}),
		exit:  make(chan Exit, 1),
	}
}

func (h *Handle) SetID(id string) *Handle {
	h.ID = id
	return h
}

func (h *Handle) SetEnvs(envs map[string]string) *Handle {
	for key, value := range envs {
		h.envs = append(h.envs, fmt.Sprintf("%s=%s", key, value))
	}
	return h
}

func (h *Handle) SetWorkingDir(path string) *Handle {
	h.dir = path
	return h
}

func (h *Handle) SetStdout(w io.Writer) *Handle {
	h.stdout = w
	return h
}

func (h *Handle) SetStderr(w io.Writer) *Handle {
	h.stderr = w
	return h
}

// Start launches the process. A handle runs at most once.
func (h *Handle) Start() error {
	if h.Status() != StatusNew {
		if h.Status() == StatusRunning {
			return ErrAlreadyRunning
		}
		return fmt.Errorf("handle %s already used", h.ID)
	}

	h.procMu.Lock()
	defer h.procMu.Unlock()

	h.proc = exec.Command(h.name, h.args...)
	if h.dir != "" {
		h.proc.Dir = h.dir
	}
	h.proc.SysProcAttr = SysProcAttr()
	h.proc.Env = append(os.Environ(), h.envs...)
	h.proc.Stdin = nil
	h.proc.Stdout = h.stdout
	h.proc.Stderr = h.stderr
	// grandchildren holding our pipes must not block Wait forever
	h.proc.WaitDelay = 2 * time.Second

	if err := h.proc.Start(); err != nil {
		h.setStatus(StatusStopped)
		h.finish(Exit{Code: -1, Error: err})
		return fmt.Errorf("failed to start process: %w", err)
	}

	h.setStatus(StatusRunning)

	// process info is best effort; Stop falls back to the direct child
	if procInfo, err := process.NewProcess(int32(h.proc.Process.Pid)); err == nil {
		h.procInfo = procInfo
	}

	go h.monitor(h.proc)

	return nil
}

// Stop terminates the process tree bottom-up, waiting up to grace for a
// clean exit before killing survivors
func (h *Handle) Stop(grace time.Duration) error {
	if h.Status() != StatusRunning {
		return ErrNotRunning
	}

	if err := h.killProcessGroup(grace); err != nil {
		return fmt.Errorf("failed to kill process: %w", err)
	}

	return nil
}

// Wait blocks until the process exits and returns its exit code
func (h *Handle) Wait() (int, error) {
	if h.Status() == StatusNew {
		return -1, ErrNotRunning
	}
	<-h.done
	return h.exitVal.Code, h.exitVal.Error
}

// Done is closed once the process has exited
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited delivers the exit value once; use Done/Wait for multiple observers
func (h *Handle) Exited() <-chan Exit {
	return h.exit
}

func (h *Handle) PID() int32 {
	h.procMu.RLock()
	defer h.procMu.RUnlock()
	if h.proc == nil || h.proc.Process == nil {
		return 0
	}
	return int32(h.proc.Process.Pid)
}

func (h *Handle) Process() *process.Process {
	h.procMu.RLock()
	defer h.procMu.RUnlock()
	return h.procInfo
}

func (h *Handle) Status() Status {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.state
}

func (h *Handle) setStatus(s Status) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	h.state = s
}

func (h *Handle) monitor(cmd *exec.Cmd) {
	err := cmd.Wait()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	h.setStatus(StatusStopped)
	h.finish(Exit{Code: exitCode, Error: err})
}

func (h *Handle) finish(exit Exit) {
	h.exitOnce.Do(func() {
		h.exitVal = exit
		h.exit <- exit
		close(h.exit)
		close(h.done)
	})
}

// killProcessGroup terminates the process and all its children
func (h *Handle) killProcessGroup(grace time.Duration) error {
	h.procMu.RLock()
	proc := h.proc
	procInfo := h.procInfo
	h.procMu.RUnlock()

	if proc == nil || proc.Process == nil {
		return fmt.Errorf("process is nil")
	}

	pid := proc.Process.Pid

	var descendants []*process.Process
	if procInfo != nil {
		tree, err := processTreeBottomUp(procInfo)
		if err != nil {
			tree = []*process.Process{procInfo}
		}
		descendants = tree
	}

	if len(descendants) == 0 {
		// no process info, signal the direct child only
		if err := proc.Process.Signal(os.Interrupt); err != nil {
			_ = proc.Process.Kill()
		}
	}

	slog.Debug("kill process group: SIGTERM", "id", h.ID, "pid", pid, "subprocs", len(descendants))
	for _, child := range descendants {
		if err := child.Terminate(); err != nil {
			slog.Debug("kill process group: SIGTERM", "id", h.ID, "pid", child.Pid, "ppid", pid, "err", err)
		}
	}

	timeout := time.NewTimer(grace)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Debug("kill process group: process completed", "id", h.ID, "pid", pid)
		return nil
	case <-timeout.C:
		slog.Debug("kill process group: timed out", "id", h.ID, "pid", pid)
	}

	slog.Debug("kill process group: SIGKILL", "id", h.ID, "pid", pid, "subprocs", len(descendants))
	if len(descendants) == 0 {
		_ = proc.Process.Kill()
	}
	for _, child := range descendants {
		exists, err := process.PidExists(child.Pid)
		if err != nil || !exists {
			continue
		}
		if err := child.Kill(); err != nil {
			slog.Warn("kill process group: SIGKILL", "id", h.ID, "pid", child.Pid, "ppid", pid, "err", err)
		}
	}

	return nil
}

// processTreeBottomUp returns proc and its descendants, children before parents
func processTreeBottomUp(proc *process.Process) ([]*process.Process, error) {
	var tree []*process.Process
	children, err := proc.Children()
	if err != nil && !errors.Is(err, process.ErrorNoChildren) {
		return nil, fmt.Errorf("failed to list children for pid %d: %w", proc.Pid, err)
	}

	for _, child := range children {
		// errors in a subtree must not stop us from killing the rest
		subtree, _ := processTreeBottomUp(child)
		tree = append(tree, subtree...)
	}

	tree = append(tree, proc)
	return tree, nil
}
