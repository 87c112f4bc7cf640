// Package session holds the currently configured deployment and node process handle
package session

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrProcessRunning is returned when the session is reconfigured while a node process is alive
var ErrProcessRunning = errors.New("node process is still running")

// Snapshot is a copy of the session state
type Snapshot struct {
	NodeDir    string    `json:"node_dir"`
	NodeID     string    `json:"node_id"`
	PID        int       `json:"pid"`
	DeployedAt time.Time `json:"deployed_at"`
}

// Deployed reports whether a deployment was recorded
func (s Snapshot) Deployed() bool {
	return s.NodeDir != ""
}

// Session is the single piece of mutable shared state, every access goes through its lock
type Session struct {
	mu    sync.RWMutex
	state Snapshot
}

// New creates an empty session
func New() *Session {
	return &Session{}
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// NodeDir returns the configured node directory
func (s *Session) NodeDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.NodeDir
}

// SetDeployment records a successful deployment. The process handle is kept
// since a redeploy does not touch a running node.
func (s *Session) SetDeployment(nodeDir, nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.NodeDir = nodeDir
	s.state.NodeID = nodeID
	s.state.DeployedAt = time.Now()
}

// SetPID records the running node process
func (s *Session) SetPID(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.PID = pid
}

// PID returns the recorded node process, zero if none
func (s *Session) PID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state.PID
}

// ClearPID forgets the node process
func (s *Session) ClearPID() {
	s.SetPID(0)
}

// Reconfigure points the session at another node directory. It is refused while
// a process handle is live, alive reports whether a pid still runs.
func (s *Session) Reconfigure(nodeDir string, alive func(pid int) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.PID != 0 && alive != nil && alive(s.state.PID) {
		return errors.Wrapf(ErrProcessRunning, "cannot switch to %s, pid %d", nodeDir, s.state.PID)
	}

	s.state = Snapshot{NodeDir: nodeDir}
	return nil
}
