package lifecycle

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ShellRunner runs control scripts with bash
type ShellRunner struct {
	Shell string
}

// NewShellRunner creates a runner using bash
func NewShellRunner() *ShellRunner {
	return &ShellRunner{Shell: "bash"}
}

// Run executes script inside dir, it is killed once timeout expires
func (r *ShellRunner) Run(ctx context.Context, dir, script string, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Shell, script)
	cmd.Dir = dir
	// the node is started in the background and may keep inherited pipes open
	cmd.WaitDelay = 2 * time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := out.String()

	if ctx.Err() == context.DeadlineExceeded {
		return output, errors.Errorf("%s timed out after %s", script, timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return output, errors.Errorf("%s exited with code %d: %s", script, exitErr.ExitCode(), strings.TrimSpace(output))
	}

	if errors.Is(err, exec.ErrWaitDelay) {
		return output, nil
	}

	if err != nil {
		return output, errors.Wrapf(err, "failed to run %s", script)
	}

	return output, nil
}
