package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DockerRunner runs the script in a throwaway container with a read-only
// root filesystem, memory, CPU and process caps, and the scratch dir as the
// only writable mount. Containers are named so that a timed out run can be
// killed on the daemon side; killing the docker CLI alone leaves it running.
// The default network is bridge since scripts fetch market data.
type DockerRunner struct {
	cfg    Config
	policy Policy
}

func NewDockerRunner(cfg Config, policy Policy) *DockerRunner {
	return &DockerRunner{cfg: cfg.withDefaults(), policy: policy}
}

func (r *DockerRunner) Mode() string { return ModeDocker }

// Args returns the docker command line for a script in scratch, run in a
// container called name.
func (r *DockerRunner) Args(name, scratch, script string) []string {
	args := []string{
		"run", "--rm",
		"--name", name,
		"--network", r.cfg.DockerNetwork,
		"--cpus", r.cfg.DockerCPUs,
		"--read-only",
		"--tmpfs", "/tmp",
		"--security-opt", "no-new-privileges",
		"--cap-drop", "ALL",
		"-e", "MPLBACKEND=Agg",
		"-e", "MPLCONFIGDIR=/tmp",
		"-e", "HOME=/tmp",
		"-v", scratch + ":/work",
		"-w", "/work",
	}
	if r.cfg.MemoryMB > 0 {
		args = append(args, "--memory", strconv.Itoa(r.cfg.MemoryMB)+"m")
	}
	if r.cfg.PidsLimit > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(r.cfg.PidsLimit))
	}
	if r.cfg.CPUSeconds > 0 {
		args = append(args, "--ulimit", fmt.Sprintf("cpu=%d", r.cfg.CPUSeconds))
	}
	return append(args, r.cfg.DockerImage, r.cfg.Interpreter, filepath.Base(script))
}

func (r *DockerRunner) Run(ctx context.Context, job Job) (Result, error) {
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
	// The container user may differ from ours.
	_ = os.Chmod(scratch, 0o777)
	_ = os.Chmod(script, 0o644)

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	name := "toolchat-" + uuid.NewString()
	cmd := exec.CommandContext(runCtx, "docker", r.Args(name, scratch, script)...)
	cmd.WaitDelay = 5 * time.Second
	stdout := newCappedBuffer(r.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(r.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	slog.InfoContext(ctx, "Running sandboxed script", "mode", ModeDocker, "image", r.cfg.DockerImage, "container", name)
	start := time.Now()
	runErr := cmd.Run()
	if runCtx.Err() != nil {
		killContainer(ctx, name)
	}

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

// killContainer stops name on the daemon. The container may already be gone.
func killContainer(ctx context.Context, name string) {
	killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(killCtx, "docker", "kill", name).CombinedOutput(); err != nil {
		slog.WarnContext(ctx, "Could not kill timed out container", "container", name, "error", err, "output", string(out))
		return
	}
	slog.WarnContext(ctx, "Killed timed out container", "container", name)
}
