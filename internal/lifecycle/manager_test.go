package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/JeseKi/fisco-autolight-client/internal/mocks"
	"github.com/JeseKi/fisco-autolight-client/internal/session"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) Publish(source, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, source+": "+line)
}

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func testConfig() Config {
	return Config{
		StartTimeout:    time.Second,
		StopTimeout:     time.Second,
		ConfirmWindow:   50 * time.Millisecond,
		ConfirmInterval: 10 * time.Millisecond,
		StopWait:        300 * time.Millisecond,
	}
}

type fixture struct {
	manager *Manager
	runner  *mocks.MockScriptRunner
	prober  *mocks.MockStatusProber
	pub     *recorder
	sess    *session.Session
	dir     string
	alive   atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &fixture{
		runner: mocks.NewMockScriptRunner(ctrl),
		prober: mocks.NewMockStatusProber(ctrl),
		pub:    &recorder{},
		sess:   session.New(),
		dir:    t.TempDir(),
	}

	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "conf"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, startScript), []byte("#!/bin/bash\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, stopScript), []byte("#!/bin/bash\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, nodeIDFile), []byte("abc123\n"), 0644))
	f.sess.SetDeployment(f.dir, "0123456789abcdef")

	f.manager = NewManager(f.sess, f.runner, f.prober, f.pub, testConfig(), zerolog.Nop())
	f.manager.alive = func(pid int) bool { return f.alive.Load() }
	return f
}

func TestStart(t *testing.T) {
	t.Run("start confirms the process", func(t *testing.T) {
		f := newFixture(t)
		f.alive.Store(true)
		f.runner.EXPECT().Run(gomock.Any(), f.dir, startScript, time.Second).Return("try to start lightnode\n lightnode start successfully pid=1234\n", nil)

		require.NoError(t, f.manager.Start(context.Background()))
		assert.Equal(t, Running, f.manager.State())
		assert.Equal(t, 1234, f.sess.PID())
		assert.Contains(t, f.pub.Lines(), "node: lightnode start successfully pid=1234")
	})

	t.Run("start falls back to the pid file", func(t *testing.T) {
		f := newFixture(t)
		f.alive.Store(true)
		require.NoError(t, os.WriteFile(filepath.Join(f.dir, pidFile), []byte("4321\n"), 0644))
		f.runner.EXPECT().Run(gomock.Any(), f.dir, startScript, gomock.Any()).Return("started\n", nil)

		require.NoError(t, f.manager.Start(context.Background()))
		assert.Equal(t, 4321, f.sess.PID())
	})

	t.Run("process exiting during the window fails", func(t *testing.T) {
		f := newFixture(t)
		f.runner.EXPECT().Run(gomock.Any(), f.dir, startScript, gomock.Any()).Return("pid=1234", nil)

		err := f.manager.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exited during startup")
		assert.Equal(t, errs.Lifecycle, errs.KindOf(err))
		assert.Equal(t, Failed, f.manager.State())
		assert.Zero(t, f.sess.PID())
	})

	t.Run("unknown pid fails", func(t *testing.T) {
		f := newFixture(t)
		f.alive.Store(true)
		f.runner.EXPECT().Run(gomock.Any(), f.dir, startScript, gomock.Any()).Return("started\n", nil)

		err := f.manager.Start(context.Background())
		require.Error(t, err)
		assert.Equal(t, Failed, f.manager.State())
	})

	t.Run("script failure fails", func(t *testing.T) {
		f := newFixture(t)
		f.runner.EXPECT().Run(gomock.Any(), f.dir, startScript, gomock.Any()).Return("boom\n", errors.New("start.sh exited with code 1"))

		err := f.manager.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "start script failed")
		assert.Equal(t, Failed, f.manager.State())
		assert.Contains(t, f.pub.Lines(), "node: boom")
	})

	t.Run("already running makes no call", func(t *testing.T) {
		f := newFixture(t)
		f.alive.Store(true)
		f.sess.SetPID(99)

		err := f.manager.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already running")
		assert.Equal(t, Running, f.manager.State())
	})

	t.Run("process surviving a failed stop is not started again", func(t *testing.T) {
		f := newFixture(t)
		f.alive.Store(true)
		f.sess.SetPID(1234)
		f.runner.EXPECT().Run(gomock.Any(), f.dir, stopScript, gomock.Any()).Return("", nil)
		require.Error(t, f.manager.Stop(context.Background()))
		require.Equal(t, Failed, f.manager.State())

		err := f.manager.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already running")
		assert.True(t, errs.Is(err, errs.Lifecycle))
		assert.Equal(t, 1234, f.sess.PID())
	})

	t.Run("missing start script makes no call", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, os.Remove(filepath.Join(f.dir, startScript)))

		err := f.manager.Start(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), startScript)
		assert.Equal(t, Stopped, f.manager.State())
	})

	t.Run("nothing deployed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		m := NewManager(session.New(), mocks.NewMockScriptRunner(ctrl), nil, &recorder{}, testConfig(), zerolog.Nop())

		err := m.Start(context.Background())
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.Lifecycle))
	})
}

func TestStop(t *testing.T) {
	t.Run("stopping a stopped node does nothing", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.manager.Stop(context.Background()))
		require.NoError(t, f.manager.Stop(context.Background()))
		assert.Equal(t, Stopped, f.manager.State())
	})

	t.Run("stop waits for the process to exit", func(t *testing.T) {
		f := newFixture(t)
		f.alive.Store(true)
		f.sess.SetPID(1234)

		f.runner.EXPECT().Run(gomock.Any(), f.dir, stopScript, time.Second).DoAndReturn(
			func(ctx context.Context, dir, script string, timeout time.Duration) (string, error) {
				go func() {
					time.Sleep(50 * time.Millisecond)
					f.alive.Store(false)
				}()
				return "stop lightnode successfully\n", nil
			})

		require.NoError(t, f.manager.Stop(context.Background()))
		assert.Equal(t, Stopped, f.manager.State())
		assert.Zero(t, f.sess.PID())
		assert.Contains(t, f.pub.Lines(), "node: node stopped")
	})

	t.Run("process surviving the stop fails", func(t *testing.T) {
		f := newFixture(t)
		f.alive.Store(true)
		f.sess.SetPID(1234)
		f.runner.EXPECT().Run(gomock.Any(), f.dir, stopScript, gomock.Any()).Return("", nil)

		err := f.manager.Stop(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "did not exit")
		assert.Equal(t, Failed, f.manager.State())
		assert.Equal(t, 1234, f.sess.PID())
	})

	t.Run("stop script failure", func(t *testing.T) {
		f := newFixture(t)
		f.alive.Store(true)
		f.sess.SetPID(1234)
		f.runner.EXPECT().Run(gomock.Any(), f.dir, stopScript, gomock.Any()).Return("", errors.New("stop.sh timed out"))

		err := f.manager.Stop(context.Background())
		require.Error(t, err)
		assert.Equal(t, Failed, f.manager.State())
	})

	t.Run("failed node with a dead process is reset", func(t *testing.T) {
		f := newFixture(t)
		f.runner.EXPECT().Run(gomock.Any(), f.dir, startScript, gomock.Any()).Return("pid=1234", nil)
		require.Error(t, f.manager.Start(context.Background()))

		require.NoError(t, f.manager.Stop(context.Background()))
		assert.Equal(t, Stopped, f.manager.State())
	})
}

func TestStatus(t *testing.T) {
	t.Run("stopped node is not probed", func(t *testing.T) {
		f := newFixture(t)

		status := f.manager.Status(context.Background())
		assert.False(t, status.Running)
		assert.Equal(t, Stopped, status.State)
		assert.Equal(t, int64(-1), status.BlockHeight)
		assert.Equal(t, "abc123", status.NodeID)
	})

	t.Run("unreachable node reports no height", func(t *testing.T) {
		f := newFixture(t)
		f.alive.Store(true)
		f.sess.SetPID(1234)
		f.prober.EXPECT().BlockNumber(gomock.Any()).Return(int64(0), errors.New("connection refused"))

		status := f.manager.Status(context.Background())
		assert.True(t, status.Running)
		assert.False(t, status.Reachable)
		assert.Equal(t, int64(-1), status.BlockHeight)
		assert.Equal(t, Running, status.State)
	})

	t.Run("reachable node is enriched and cached", func(t *testing.T) {
		f := newFixture(t)
		f.alive.Store(true)
		f.sess.SetPID(1234)
		f.prober.EXPECT().BlockNumber(gomock.Any()).Return(int64(42), nil).Times(1)
		f.prober.EXPECT().PeerCount(gomock.Any()).Return(3, nil).Times(1)

		status := f.manager.Status(context.Background())
		assert.True(t, status.Reachable)
		assert.Equal(t, int64(42), status.BlockHeight)
		assert.Equal(t, 3, status.PeerCount)
		assert.Equal(t, 1234, status.PID)

		assert.Equal(t, status, f.manager.Status(context.Background()))
	})

	t.Run("exited process is reconciled", func(t *testing.T) {
		f := newFixture(t)
		f.alive.Store(true)
		f.runner.EXPECT().Run(gomock.Any(), f.dir, startScript, gomock.Any()).Return("pid=1234", nil)
		require.NoError(t, f.manager.Start(context.Background()))

		f.alive.Store(false)
		status := f.manager.Status(context.Background())
		assert.False(t, status.Running)
		assert.Equal(t, Stopped, status.State)
		assert.Zero(t, f.sess.PID())
		assert.Contains(t, f.pub.Lines(), "node: node process exited")
	})
}

func TestWatch(t *testing.T) {
	f := newFixture(t)
	f.alive.Store(true)
	f.sess.SetPID(1234)
	f.prober.EXPECT().BlockNumber(gomock.Any()).Return(int64(7), nil).MinTimes(2)
	f.prober.EXPECT().PeerCount(gomock.Any()).Return(1, nil).MinTimes(2)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	f.manager.Watch(ctx, 20*time.Millisecond)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestParsePID(t *testing.T) {
	cases := map[string]int{
		"lightnode start successfully pid=5678": 5678,
		"started with pid 91":                   91,
		"pid=":                                  0,
		"":                                      0,
		"no identifier here":                    0,
	}

	for out, pid := range cases {
		assert.Equal(t, pid, parsePID(out), out)
	}
}
