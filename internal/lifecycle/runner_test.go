package lifecycle

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/bash\n"+body), 0755))
}

func TestShellRunner(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash is not available")
	}

	runner := NewShellRunner()

	t.Run("output is returned", func(t *testing.T) {
		dir := t.TempDir()
		writeScript(t, dir, "start.sh", "echo \"started in $(basename $PWD)\"\necho warn >&2\n")

		out, err := runner.Run(context.Background(), dir, "start.sh", time.Second)
		require.NoError(t, err)
		assert.Contains(t, out, "started in "+filepath.Base(dir))
		assert.Contains(t, out, "warn")
	})

	t.Run("exit code is reported", func(t *testing.T) {
		dir := t.TempDir()
		writeScript(t, dir, "stop.sh", "echo nope\nexit 3\n")

		out, err := runner.Run(context.Background(), dir, "stop.sh", time.Second)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exited with code 3")
		assert.Contains(t, out, "nope")
	})

	t.Run("timeout kills the script", func(t *testing.T) {
		dir := t.TempDir()
		writeScript(t, dir, "start.sh", "sleep 10\n")

		started := time.Now()
		_, err := runner.Run(context.Background(), dir, "start.sh", 200*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out")
		assert.Less(t, time.Since(started), 5*time.Second)
	})
}
