package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Neruzzz/toolchat/internal/errorsx"
)

// ProcessRunner runs the interpreter as a child process in a scratch
// directory, under ulimit CPU, memory and file-size limits. With bwrap
// confinement the child sees the system directories read-only, a private
// /tmp and the scratch dir, and nothing else of the host filesystem.
type ProcessRunner struct {
	cfg    Config
	policy Policy
}

func NewProcessRunner(cfg Config, policy Policy) *ProcessRunner {
	return &ProcessRunner{cfg: cfg.withDefaults(), policy: policy}
}

func (r *ProcessRunner) Mode() string { return ModeProcess }

func (r *ProcessRunner) Run(ctx context.Context, job Job) (Result, error) {
	if err := r.policy.Check(job.Code); err != nil {
		return Result{}, err
	}

	scratch, script, err := prepare(job)
	if err != nil {
		return Result{}, err
	}
	if !r.cfg.KeepScratch {
		defer os.RemoveAll(scratch)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	name, args := r.Command(scratch, script)
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = scratch
	cmd.Env = scrubbedEnv(scratch)
	cmd.WaitDelay = 2 * time.Second

	stdout := newCappedBuffer(r.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(r.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	slog.InfoContext(ctx, "Running sandboxed script", "mode", ModeProcess, "confine", r.cfg.Confine, "interpreter", r.cfg.Interpreter, "dir", scratch)
	start := time.Now()
	runErr := cmd.Run()

	res := Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  time.Since(start),
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err := classify(runCtx, runErr, res); err != nil {
		return res, err
	}

	res.Collected, err = collect(scratch, job)
	return res, err
}

// Command returns the program and arguments that run script from scratch.
func (r *ProcessRunner) Command(scratch, script string) (string, []string) {
	// sh applies the limits, then execs the interpreter with the script as $1.
	shell := []string{"/bin/sh", "-c", ulimitPrefix(r.cfg) + `exec "$0" "$1"`, r.cfg.Interpreter, script}
	if r.cfg.Confine != ConfineBwrap {
		return shell[0], shell[1:]
	}
	return "bwrap", append(bwrapArgs(scratch), shell...)
}

// bwrapArgs confines the child to read-only system directories and a
// writable scratch dir. The network stays shared: scripts download prices.
func bwrapArgs(scratch string) []string {
	args := []string{"--unshare-all", "--share-net", "--die-with-parent", "--new-session"}
	for _, dir := range []string{"/usr", "/usr/local", "/bin", "/lib", "/lib64", "/sbin", "/etc/alternatives", "/etc/ssl", "/etc/pki", "/etc/ca-certificates"} {
		args = append(args, "--ro-bind-try", dir, dir)
	}
	for _, file := range []string{"/etc/resolv.conf", "/etc/hosts", "/etc/nsswitch.conf", "/etc/ld.so.cache", "/etc/localtime"} {
		args = append(args, "--ro-bind-try", file, file)
	}
	return append(args,
		"--proc", "/proc",
		"--dev", "/dev",
		"--tmpfs", "/tmp",
		"--bind", scratch, scratch,
		"--chdir", scratch,
	)
}

// prepare creates the scratch directory and writes the script into it.
func prepare(job Job) (dir, script string, err error) {
	name := job.Filename
	if name == "" {
		name = "script.py"
	}
	if filepath.Base(name) != name {
		return "", "", errorsx.Wrap(fmt.Errorf("%w: script name %q must not contain a path", ErrPolicy, name), errorsx.ReasonSandbox)
	}
	dir, err = os.MkdirTemp("", "toolchat-sandbox-*")
	if err != nil {
		return "", "", errorsx.Wrap(fmt.Errorf("create scratch dir: %w", err), errorsx.ReasonSandbox)
	}
	script = filepath.Join(dir, name)
	if err := os.WriteFile(script, []byte(job.Code), 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", errorsx.Wrap(fmt.Errorf("write script: %w", err), errorsx.ReasonSandbox)
	}
	return dir, script, nil
}

func classify(runCtx context.Context, runErr error, res Result) error {
	if runErr == nil {
		return nil
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return errorsx.Wrap(ErrTimeout, errorsx.ReasonSandbox)
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return errorsx.Wrap(fmt.Errorf("%w (exit code %d)", ErrExit, res.ExitCode), errorsx.ReasonSandbox)
	}
	return errorsx.Wrap(fmt.Errorf("start interpreter: %w", runErr), errorsx.ReasonSandbox)
}

// collect copies the declared outputs from the scratch dir to job.OutputDir.
// Missing outputs are skipped; the caller decides whether that is an error.
func collect(scratch string, job Job) ([]string, error) {
	if job.OutputDir == "" || len(job.Outputs) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("create output dir: %w", err), errorsx.ReasonSandbox)
	}
	var got []string
	for _, name := range job.Outputs {
		if filepath.Base(name) != name {
			continue
		}
		data, err := os.ReadFile(filepath.Join(scratch, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return got, errorsx.Wrap(fmt.Errorf("read output %s: %w", name, err), errorsx.ReasonSandbox)
		}
		dst := filepath.Join(job.OutputDir, name)
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return got, errorsx.Wrap(fmt.Errorf("write output %s: %w", name, err), errorsx.ReasonSandbox)
		}
		got = append(got, dst)
	}
	return got, nil
}

func ulimitPrefix(cfg Config) string {
	var b strings.Builder
	if cfg.CPUSeconds > 0 {
		fmt.Fprintf(&b, "ulimit -t %d || exit 125; ", cfg.CPUSeconds)
	}
	if cfg.MemoryMB > 0 {
		fmt.Fprintf(&b, "ulimit -v %d || exit 125; ", cfg.MemoryMB*1024)
	}
	if cfg.FileSizeMB > 0 {
		// ulimit -f counts 512-byte blocks in POSIX sh.
		fmt.Fprintf(&b, "ulimit -f %d || exit 125; ", cfg.FileSizeMB*2048)
	}
	return b.String()
}

func scrubbedEnv(home string) []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = "/usr/local/bin:/usr/bin:/bin"
	}
	return []string{
		"PATH=" + path,
		"HOME=" + home,
		"TMPDIR=" + home,
		"LANG=C.UTF-8",
		"MPLBACKEND=Agg",
		"MPLCONFIGDIR=" + home,
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONNOUSERSITE=1",
	}
}
