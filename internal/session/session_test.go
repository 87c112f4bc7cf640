package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession(t *testing.T) {
	t.Run("starts empty", func(t *testing.T) {
		s := New()
		assert.False(t, s.Snapshot().Deployed())
		assert.Zero(t, s.PID())
	})

	t.Run("deployment keeps the process handle", func(t *testing.T) {
		s := New()
		s.SetPID(42)
		s.SetDeployment("/srv/node", "abc")

		snap := s.Snapshot()
		assert.True(t, snap.Deployed())
		assert.Equal(t, "/srv/node", snap.NodeDir)
		assert.Equal(t, "abc", snap.NodeID)
		assert.Equal(t, 42, snap.PID)
		assert.False(t, snap.DeployedAt.IsZero())
	})

	t.Run("reconfigure is refused while the process lives", func(t *testing.T) {
		s := New()
		s.SetDeployment("/srv/node", "abc")
		s.SetPID(42)

		err := s.Reconfigure("/srv/other", func(int) bool { return true })
		assert.True(t, errors.Is(err, ErrProcessRunning))
		assert.Equal(t, "/srv/node", s.NodeDir())

		err = s.Reconfigure("/srv/other", func(int) bool { return false })
		assert.NoError(t, err)
		assert.Equal(t, "/srv/other", s.NodeDir())
		assert.Zero(t, s.PID())
		assert.Empty(t, s.Snapshot().NodeID)
	})

	t.Run("concurrent access", func(t *testing.T) {
		s := New()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				s.SetPID(i)
			}(i)
			go func() {
				defer wg.Done()
				_ = s.Snapshot()
			}()
		}
		wg.Wait()
		s.ClearPID()
		assert.Zero(t, s.PID())
	})
}

func TestStore(t *testing.T) {
	t.Run("missing file gives an empty session", func(t *testing.T) {
		s, err := Load(filepath.Join(t.TempDir(), "last_session.json"))
		require.NoError(t, err)
		assert.False(t, s.Snapshot().Deployed())
	})

	t.Run("saved state is restored", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "last_session.json")

		s := New()
		s.SetDeployment("/srv/node/lightnode", "abc")
		s.SetPID(42)
		require.NoError(t, s.Save(path))

		restored, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/srv/node/lightnode", restored.NodeDir())
		assert.Equal(t, 42, restored.PID())
		assert.Equal(t, "abc", restored.Snapshot().NodeID)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "last_session.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}
