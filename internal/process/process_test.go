package process

import (
	"context"
	"testing"
	"time"

	"github.com/recnode/recnode/internal/logging"
)

// newTestProcess creates a Process with short timeouts for testing.
func newTestProcess(command string) *Process {
	p := NewProcess("test", command, logging.GetLogger("test"))
	p.gracefulTimeout = 100 * time.Millisecond
	p.killTimeout = 100 * time.Millisecond
	return p
}

// runAsync runs the process in a goroutine and returns an exit code channel.
func runAsync(ctx context.Context, p *Process) <-chan int {
	done := make(chan int, 1)
	go func() {
		done <- p.Run(ctx)
	}()
	return done
}

// waitForExit waits for exit code with timeout, fails test on timeout.
func waitForExit(t *testing.T, done <-chan int, timeout time.Duration) int {
	t.Helper()
	select {
	case exitCode := <-done:
		return exitCode
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}

func TestGracefulShutdown(t *testing.T) {
	// Process that handles SIGINT
	p := newTestProcess(`sh -c "trap 'exit 0' INT TERM; while :; do sleep 0.1; done"`)
	p.gracefulTimeout = 500 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)
	time.Sleep(100 * time.Millisecond)
	cancel()

	if exitCode := waitForExit(t, done, time.Second); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	// Process that ignores SIGINT
	p := newTestProcess(`sh -c "trap '' INT; sleep 10"`)
	p.gracefulTimeout = 50 * time.Millisecond
	p.killTimeout = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)
	time.Sleep(50 * time.Millisecond)
	cancel()

	// Process was killed, expect 137 (128 + 9 for SIGKILL)
	if exitCode := waitForExit(t, done, 500*time.Millisecond); exitCode != 137 {
		t.Errorf("expected exit code 137, got %d", exitCode)
	}
}

func TestProcessExitWithError(t *testing.T) {
	p := newTestProcess("sh -c 'exit 42'")
	if exitCode := p.Run(context.Background()); exitCode != 42 {
		t.Errorf("expected exit code 42, got %d", exitCode)
	}
}

func TestRunWithInvalidCommand(t *testing.T) {
	p := newTestProcess(`echo "unclosed`)
	if exitCode := p.Run(context.Background()); exitCode != 1 {
		t.Errorf("expected exit code 1 for parse error, got %d", exitCode)
	}
}

func TestRunWithEmptyCommand(t *testing.T) {
	p := newTestProcess("")
	if exitCode := p.Run(context.Background()); exitCode != 1 {
		t.Errorf("expected exit code 1 for empty command, got %d", exitCode)
	}
}

func TestRunWithNonExistentCommand(t *testing.T) {
	p := newTestProcess("/nonexistent/command/that/does/not/exist")
	if exitCode := p.Run(context.Background()); exitCode != 1 {
		t.Errorf("expected exit code 1 for start error, got %d", exitCode)
	}
}

func TestRunInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	p := newTestProcess(`sh -c "pwd > where.txt"`)
	p.SetDir(dir)
	if exitCode := p.Run(context.Background()); exitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", exitCode)
	}
}

func TestOutputHandler(t *testing.T) {
	lines := make(chan string, 8)
	p := newTestProcess(`sh -c "echo line1; echo line2"`)
	p.SetOutputHandler(chanHandler(lines))

	if exitCode := p.Run(context.Background()); exitCode != 0 {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	if got := len(lines); got < 2 {
		t.Errorf("expected at least 2 lines, got %d", got)
	}
}

type chanHandler chan string

func (h chanHandler) HandleLine(_, line string) {
	select {
	case h <- line:
	default:
	}
}

func TestParseCommandWithEscapes(t *testing.T) {
	args, err := parseCommand(`echo hello\ world`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 2 || args[1] != "hello world" {
		t.Errorf("expected ['echo', 'hello world'], got %v", args)
	}
}

func TestParseCommandQuoting(t *testing.T) {
	tests := []struct {
		command string
		want    []string
		wantErr bool
	}{
		{`ffmpeg -i "in put.bin" out.mp4`, []string{"ffmpeg", "-i", "in put.bin", "out.mp4"}, false},
		{`a 'b c' d`, []string{"a", "b c", "d"}, false},
		{`a "nested 'quote'"`, []string{"a", "nested 'quote'"}, false},
		{`broken "quote`, nil, true},
	}
	for _, tt := range tests {
		args, err := parseCommand(tt.command)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseCommand(%q) succeeded, want error", tt.command)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCommand(%q) error: %v", tt.command, err)
			continue
		}
		if len(args) != len(tt.want) {
			t.Errorf("parseCommand(%q) = %v, want %v", tt.command, args, tt.want)
			continue
		}
		for i := range args {
			if args[i] != tt.want[i] {
				t.Errorf("parseCommand(%q)[%d] = %q, want %q", tt.command, i, args[i], tt.want[i])
			}
		}
	}
}
