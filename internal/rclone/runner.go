package rclone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/rclonebox/internal/procmgr"
)

// CommandTimeout bounds every synchronous rclone invocation
const CommandTimeout = 300 * time.Second

const stderrLogLimit = 300

var (
	ErrCommandFailed = errors.New("rclone command failed")
	ErrDecode        = errors.New("rclone output decode failed")
)

// Result is the outcome of one rclone invocation. Code is -1 when the
// process could not be run to completion (launch failure, timeout).
type Result struct {
	Success bool   `json:"success"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	Code    int    `json:"code"`
}

// Err converts a failed result into an error wrapping ErrCommandFailed
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%w (code %d): %s", ErrCommandFailed, r.Code, truncate(strings.TrimSpace(r.Stderr), stderrLogLimit))
}

// Option is a named rclone flag. Underscores in Key become dashes.
// A true value emits `--key`, false or nil emit nothing, anything else
// emits `--key value`.
type Option struct {
	Key   string
	Value any
}

func Opt(key string, value any) Option {
	return Option{Key: key, Value: value}
}

// Runner executes rclone synchronously
type Runner struct {
	binPath    string
	configPath string
	timeout    time.Duration
	logger     *slog.Logger
}

func New(binPath, configPath string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		binPath:    binPath,
		configPath: configPath,
		timeout:    CommandTimeout,
		logger:     logger.With("component", "rclone"),
	}
}

func (r *Runner) BinPath() string    { return r.binPath }
func (r *Runner) ConfigPath() string { return r.configPath }

// BuildArgs returns the full argv: binary, --config, positional args, then options
func (r *Runner) BuildArgs(args []string, opts ...Option) []string {
	argv := make([]string, 0, len(args)+2*len(opts)+3)
	argv = append(argv, r.binPath)
	if r.configPath != "" {
		argv = append(argv, "--config", r.configPath)
	}
	argv = append(argv, args...)

	for _, opt := range opts {
		flag := "--" + strings.ReplaceAll(opt.Key, "_", "-")
		switch v := opt.Value.(type) {
		case nil:
		case bool:
			if v {
				argv = append(argv, flag)
			}
		default:
			argv = append(argv, flag, fmt.Sprint(v))
		}
	}

	return argv
}

// Run executes rclone and never returns an error; failures are reported in the Result
func (r *Runner) Run(ctx context.Context, args []string, opts ...Option) *Result {
	argv := r.BuildArgs(args, opts...)
	r.logger.Info("rclone exec", "cmd", strings.Join(RedactArgs(argv), " "))

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.SysProcAttr = procmgr.SysProcAttr()
	cmd.Stdin = nil
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg := fmt.Sprintf("command timed out after %s", r.timeout)
		r.logger.Error("rclone timeout", "timeout", r.timeout)
		return &Result{Success: false, Stdout: "", Stderr: msg, Code: -1}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res := &Result{
				Success: false,
				Stdout:  stdout.String(),
				Stderr:  stderr.String(),
				Code:    exitErr.ExitCode(),
			}
			r.logger.Error("rclone failed", "code", res.Code, "stderr", truncate(res.Stderr, stderrLogLimit))
			return res
		}

		var msg string
		var execErr *exec.Error
		var pathErr *os.PathError
		if errors.As(err, &execErr) || errors.As(err, &pathErr) {
			msg = fmt.Sprintf("system error: %v", err)
		} else {
			msg = fmt.Sprintf("subprocess error: %v", err)
		}
		r.logger.Error("rclone exec error", "error", err)
		return &Result{Success: false, Stdout: "", Stderr: msg, Code: -1}
	}

	res := &Result{
		Success: true,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Code:    0,
	}
	r.logger.Info("rclone ok", "stdout", humanize.Bytes(uint64(stdout.Len())))
	return res
}

// RunJSON runs rclone and decodes stdout into v. Stdout is only decoded when
// the command succeeded and printed something; a successful run with blank
// output leaves v untouched.
func (r *Runner) RunJSON(ctx context.Context, v any, args []string, opts ...Option) (*Result, error) {
	res := r.Run(ctx, args, opts...)
	if !res.Success {
		return res, res.Err()
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return res, nil
	}
	if err := jsonUnmarshal([]byte(res.Stdout), v); err != nil {
		return res, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
