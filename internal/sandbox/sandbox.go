// Package sandbox runs model-generated scripts behind explicit limits:
// a static policy check, a scratch working directory, a scrubbed
// environment, a wall-clock timeout, capped output and, depending on the
// mode, process rlimits or a locked-down container.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Neruzzz/toolchat/internal/errorsx"
)

const (
	ModeDisabled = "disabled"
	ModeProcess  = "process"
	ModeDocker   = "docker"

	// ConfineBwrap runs process-mode scripts inside bubblewrap with only the
	// system directories read-only and the scratch dir writable.
	ConfineBwrap = "bwrap"
	// ConfineNone runs them directly as the server user.
	ConfineNone = "none"
)

var (
	ErrDisabled   = errors.New("code execution is disabled (set finance.sandbox.mode to \"process\" or \"docker\")")
	ErrPolicy     = errors.New("code rejected by sandbox policy")
	ErrTimeout    = errors.New("execution timed out")
	ErrExit       = errors.New("script exited with an error")
	ErrUnconfined = errors.New("process mode without confinement can read and write anything the server user can " +
		"(set finance.sandbox.allow_unconfined to accept this)")
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Interpreter    string        `mapstructure:"interpreter"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes"`
	CPUSeconds     int           `mapstructure:"cpu_seconds"`
	MemoryMB       int           `mapstructure:"memory_mb"`
	FileSizeMB     int           `mapstructure:"file_size_mb"`
	DockerImage    string        `mapstructure:"docker_image"`
	DockerNetwork  string        `mapstructure:"docker_network"`
	DockerCPUs     string        `mapstructure:"docker_cpus"`
	PidsLimit      int           `mapstructure:"pids_limit"`
	KeepScratch    bool          `mapstructure:"keep_scratch"`
	// Confine selects process-mode filesystem confinement: bwrap or none.
	Confine string `mapstructure:"confine"`
	// AllowUnconfined must be set for Confine none to be accepted.
	AllowUnconfined bool `mapstructure:"allow_unconfined"`
}

func (c Config) withDefaults() Config {
	if c.Interpreter == "" {
		c.Interpreter = "python3"
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = 64 << 10
	}
	if c.DockerImage == "" {
		c.DockerImage = "python:3.12-slim"
	}
	if c.DockerNetwork == "" {
		c.DockerNetwork = "bridge"
	}
	if c.DockerCPUs == "" {
		c.DockerCPUs = "1"
	}
	c.Confine = strings.ToLower(strings.TrimSpace(c.Confine))
	if c.Confine == "" {
		c.Confine = ConfineBwrap
	}
	return c
}

// Validate checks the mode and refuses unconfined process execution unless
// it was explicitly allowed.
func (c Config) Validate() error {
	mode := strings.ToLower(strings.TrimSpace(c.Mode))
	switch mode {
	case "", ModeDisabled, ModeDocker:
		return nil
	case ModeProcess:
	default:
		return fmt.Errorf("unknown sandbox mode %q", c.Mode)
	}
	switch c.withDefaults().Confine {
	case ConfineBwrap:
		return nil
	case ConfineNone:
		if !c.AllowUnconfined {
			return ErrUnconfined
		}
		return nil
	}
	return fmt.Errorf("unknown sandbox confinement %q, want bwrap or none", c.Confine)
}

// Job is one script execution.
type Job struct {
	// Code is the script body.
	Code string
	// Filename is the script's name inside the scratch directory.
	Filename string
	// OutputDir receives the declared Outputs after a successful run.
	OutputDir string
	// Outputs are files the script is expected to produce.
	Outputs []string
}

type Result struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	Duration  time.Duration
	Truncated bool
	// Collected lists the outputs copied to the job's OutputDir.
	Collected []string
}

// Runner executes jobs.
type Runner interface {
	Run(ctx context.Context, job Job) (Result, error)
	Mode() string
}

// New returns the runner for cfg.Mode. Unknown modes are an error; an
// empty mode means disabled. Process mode needs bwrap on PATH unless
// unconfined execution was allowed.
func New(cfg Config, policy Policy) (Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonSandbox)
	}
	cfg = cfg.withDefaults()
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", ModeDisabled:
		return Disabled{}, nil
	case ModeProcess:
		if cfg.Confine == ConfineBwrap {
			if _, err := lookPath("bwrap"); err != nil {
				return nil, errorsx.Wrap(fmt.Errorf("process mode needs bubblewrap (bwrap) on PATH: %w", err), errorsx.ReasonSandbox)
			}
		}
		return &ProcessRunner{cfg: cfg, policy: policy}, nil
	case ModeDocker:
		return &DockerRunner{cfg: cfg, policy: policy}, nil
	}
	return nil, fmt.Errorf("unknown sandbox mode %q", cfg.Mode)
}

// Disabled refuses every job.
type Disabled struct{}

func (Disabled) Mode() string { return ModeDisabled }

func (Disabled) Run(context.Context, Job) (Result, error) {
	return Result{}, errorsx.Wrap(ErrDisabled, errorsx.ReasonSandbox)
}
