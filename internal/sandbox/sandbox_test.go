package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Neruzzz/toolchat/internal/errorsx"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("/bin/sh"); err != nil {
		t.Skip("skipping: /bin/sh not available")
	}
}

func shellRunner(cfg Config) *ProcessRunner {
	cfg.Interpreter = "/bin/sh"
	cfg.Confine = ConfineNone
	return NewProcessRunner(cfg, Policy{})
}

func TestNew_Modes(t *testing.T) {
	tests := []struct {
		mode string
		want string
	}{
		{"", ModeDisabled},
		{"disabled", ModeDisabled},
		{"process", ModeProcess},
		{"Docker", ModeDocker},
	}
	for _, tt := range tests {
		r, err := New(Config{Mode: tt.mode, Confine: ConfineNone, AllowUnconfined: true}, Policy{})
		if err != nil {
			t.Fatalf("New(%q): %v", tt.mode, err)
		}
		if r.Mode() != tt.want {
			t.Errorf("New(%q).Mode() = %q, want %q", tt.mode, r.Mode(), tt.want)
		}
	}
	if _, err := New(Config{Mode: "chroot"}, Policy{}); err == nil {
		t.Errorf("expected an error for an unknown mode")
	}
}

func TestNew_RefusesUnconfinedProcess(t *testing.T) {
	_, err := New(Config{Mode: ModeProcess, Confine: ConfineNone}, Policy{})
	if !errors.Is(err, ErrUnconfined) {
		t.Fatalf("expected ErrUnconfined, got %v", err)
	}
	if err := (Config{Mode: ModeProcess, Confine: "chroot"}).Validate(); err == nil {
		t.Fatalf("expected an error for an unknown confinement")
	}
}

func TestNew_ProcessNeedsBwrap(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	defer func() { lookPath = orig }()

	_, err := New(Config{Mode: ModeProcess}, Policy{})
	if err == nil || !strings.Contains(err.Error(), "bwrap") {
		t.Fatalf("expected a missing bwrap error, got %v", err)
	}
}

func TestProcessRunner_Command(t *testing.T) {
	name, args := NewProcessRunner(Config{}, Policy{}).Command("/tmp/s", "/tmp/s/job.py")
	joined := strings.Join(args, " ")
	if name != "bwrap" {
		t.Fatalf("confined command = %q, want bwrap", name)
	}
	for _, want := range []string{
		"--unshare-all --share-net", "--ro-bind-try /usr /usr", "--tmpfs /tmp",
		"--bind /tmp/s /tmp/s", "--chdir /tmp/s", `exec "$0" "$1" python3 /tmp/s/job.py`,
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("bwrap args %q missing %q", joined, want)
		}
	}
	if strings.Contains(joined, "--bind / ") || strings.Contains(joined, "/home") {
		t.Errorf("bwrap args expose the host filesystem: %q", joined)
	}

	name, args = NewProcessRunner(Config{Confine: ConfineNone}, Policy{}).Command("/tmp/s", "/tmp/s/job.py")
	if name != "/bin/sh" || args[0] != "-c" {
		t.Fatalf("unconfined command = %q %q", name, args)
	}
}

func TestProcessRunner_BwrapConfinesFilesystem(t *testing.T) {
	if _, err := exec.LookPath("bwrap"); err != nil {
		t.Skip("skipping: bwrap not available")
	}
	outside := filepath.Join(t.TempDir(), "escaped.txt")
	r := NewProcessRunner(Config{Interpreter: "/bin/sh", Timeout: 10 * time.Second}, Policy{})

	res, _ := r.Run(context.Background(), Job{Code: "P=" + outside + "\necho escaped > \"$P\"\ncat /etc/hostname\n"})
	if _, err := os.Stat(outside); !os.IsNotExist(err) {
		t.Fatalf("script wrote outside its scratch dir (stat err %v)", err)
	}
	if host, err := os.ReadFile("/etc/hostname"); err == nil && strings.TrimSpace(string(host)) != "" {
		if strings.Contains(res.Stdout, strings.TrimSpace(string(host))) {
			t.Fatalf("script read /etc/hostname: %q", res.Stdout)
		}
	}
}

func TestDisabled_RefusesToRun(t *testing.T) {
	_, err := Disabled{}.Run(context.Background(), Job{Code: "print(1)"})
	if !errors.Is(err, ErrDisabled) || !errorsx.HasReason(err, errorsx.ReasonSandbox) {
		t.Fatalf("expected ErrDisabled with sandbox reason, got %v", err)
	}
}

func TestProcessRunner_CollectsOutputs(t *testing.T) {
	requireShell(t)
	out := t.TempDir()

	res, err := shellRunner(Config{}).Run(context.Background(), Job{
		Code:      "echo plotting\necho fake-png > stock_plot.png\necho $HOME > home.txt\n",
		Filename:  "job.sh",
		OutputDir: out,
		Outputs:   []string{"stock_plot.png", "missing.png", "home.txt"},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "plotting" || res.ExitCode != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	want := []string{filepath.Join(out, "stock_plot.png"), filepath.Join(out, "home.txt")}
	if diff := cmp.Diff(want, res.Collected); diff != "" {
		t.Fatalf("collected mismatch (-want +got):\n%s", diff)
	}
	home, _ := os.ReadFile(filepath.Join(out, "home.txt"))
	if strings.TrimSpace(string(home)) == os.Getenv("HOME") && os.Getenv("HOME") != "" {
		t.Fatalf("script saw the caller's HOME, environment was not scrubbed")
	}
}

func TestProcessRunner_NonZeroExit(t *testing.T) {
	requireShell(t)
	res, err := shellRunner(Config{}).Run(context.Background(), Job{Code: "echo broken >&2\nexit 3\n"})
	if !errors.Is(err, ErrExit) {
		t.Fatalf("expected ErrExit, got %v", err)
	}
	if res.ExitCode != 3 || strings.TrimSpace(res.Stderr) != "broken" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestProcessRunner_Timeout(t *testing.T) {
	requireShell(t)
	start := time.Now()
	_, err := shellRunner(Config{Timeout: 200 * time.Millisecond}).Run(context.Background(), Job{Code: "sleep 5\n"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > 4*time.Second {
		t.Fatalf("timeout was not enforced promptly")
	}
}

func TestProcessRunner_CapsOutput(t *testing.T) {
	requireShell(t)
	res, err := shellRunner(Config{MaxOutputBytes: 10}).Run(context.Background(), Job{Code: "echo 0123456789abcdefghij\n"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !res.Truncated || len(res.Stdout) != 10 {
		t.Fatalf("expected 10 bytes and truncation, got %q truncated=%v", res.Stdout, res.Truncated)
	}
}

func TestProcessRunner_PolicyBlocksBeforeRunning(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran")
	r := NewProcessRunner(Config{Interpreter: "/bin/sh"}, Policy{Deny: []string{"touch"}})

	_, err := r.Run(context.Background(), Job{Code: "touch " + marker + "\n"})
	if !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy, got %v", err)
	}
	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Fatalf("script ran despite the policy rejection")
	}
}

func TestProcessRunner_RejectsPathInFilename(t *testing.T) {
	_, err := shellRunner(Config{}).Run(context.Background(), Job{Code: "true", Filename: "../escape.sh"})
	if !errors.Is(err, ErrPolicy) {
		t.Fatalf("expected ErrPolicy, got %v", err)
	}
}

func TestUlimitPrefix(t *testing.T) {
	got := ulimitPrefix(Config{CPUSeconds: 30, MemoryMB: 512, FileSizeMB: 10})
	want := "ulimit -t 30 || exit 125; ulimit -v 524288 || exit 125; ulimit -f 20480 || exit 125; "
	if got != want {
		t.Fatalf("ulimitPrefix() = %q, want %q", got, want)
	}
	if ulimitPrefix(Config{}) != "" {
		t.Fatalf("no limits should yield no prefix")
	}
}

func TestDockerRunner_Args(t *testing.T) {
	r := NewDockerRunner(Config{MemoryMB: 256, DockerNetwork: "none", PidsLimit: 64}, Policy{})
	args := strings.Join(r.Args("toolchat-1", "/tmp/scratch", "/tmp/scratch/job.py"), " ")
	for _, want := range []string{
		"run --rm --name toolchat-1", "--network none", "--pids-limit 64", "--read-only", "--memory 256m",
		"-v /tmp/scratch:/work", "python:3.12-slim python3 job.py",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("docker args %q missing %q", args, want)
		}
	}
}

func TestDockerRunner_KillsContainerOnTimeout(t *testing.T) {
	requireShell(t)
	bin := t.TempDir()
	killed := filepath.Join(bin, "killed")
	fake := "#!/bin/sh\nif [ \"$1\" = kill ]; then echo \"$2\" >> " + killed + "; exit 0; fi\nexec sleep 5\n"
	if err := os.WriteFile(filepath.Join(bin, "docker"), []byte(fake), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	_, err := NewDockerRunner(Config{Timeout: 200 * time.Millisecond}, Policy{}).Run(context.Background(), Job{Code: "print(1)"})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	got, err := os.ReadFile(killed)
	if err != nil {
		t.Fatalf("container was not killed: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(got)), "toolchat-") {
		t.Fatalf("killed %q, want a toolchat- container", got)
	}
}
