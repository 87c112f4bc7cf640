// Package lifecycle starts, stops and watches the deployed light node process
package lifecycle

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/JeseKi/fisco-autolight-client/internal/fsutil"
	"github.com/JeseKi/fisco-autolight-client/internal/session"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// State of the node process
type State string

const (
	// Stopped no process
	Stopped State = "stopped"
	// Starting start script ran, waiting for the process to settle
	Starting State = "starting"
	// Running process confirmed alive
	Running State = "running"
	// Stopping stop script is running
	Stopping State = "stopping"
	// Failed a control script failed
	Failed State = "failed"
)

const (
	startScript = "start.sh"
	stopScript  = "stop.sh"
	pidFile     = "node.pid"
	nodeIDFile  = "conf/node.nodeid"

	source      = "node"
	statusKey   = "status"
	statusTTL   = 2 * time.Second
	probeBudget = 3 * time.Second
)

var pidPattern = regexp.MustCompile(`pid[=\s]+(\d+)`)

var errStillAlive = errors.New("node process is still alive")

// ScriptRunner runs a node control script inside dir and returns its combined output
type ScriptRunner interface {
	Run(ctx context.Context, dir, script string, timeout time.Duration) (string, error)
}

// StatusProber queries the status surface of the running node
type StatusProber interface {
	BlockNumber(ctx context.Context) (int64, error)
	PeerCount(ctx context.Context) (int, error)
}

// Publisher receives node output lines
type Publisher interface {
	Publish(source, line string)
}

// Config of the manager timeouts
type Config struct {
	StartTimeout    time.Duration
	StopTimeout     time.Duration
	ConfirmWindow   time.Duration
	ConfirmInterval time.Duration
	StopWait        time.Duration
}

// DefaultConfig returns the default timeouts
func DefaultConfig() Config {
	return Config{
		StartTimeout:    30 * time.Second,
		StopTimeout:     10 * time.Second,
		ConfirmWindow:   2 * time.Second,
		ConfirmInterval: 200 * time.Millisecond,
		StopWait:        5 * time.Second,
	}
}

// NodeStatus is a point in time snapshot of the node
type NodeStatus struct {
	Running     bool      `json:"running"`
	State       State     `json:"state"`
	NodeID      string    `json:"node_id"`
	PID         int       `json:"pid,omitempty"`
	BlockHeight int64     `json:"block_height"`
	PeerCount   int       `json:"p2p_connection_count"`
	Reachable   bool      `json:"reachable"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Manager owns the node process state machine
type Manager struct {
	session   *session.Session
	runner    ScriptRunner
	prober    StatusProber
	publisher Publisher
	cfg       Config
	logger    zerolog.Logger

	alive func(pid int) bool
	cache *cache.Cache

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	stateMu sync.RWMutex
	state   State
}

// NewManager creates a lifecycle manager for the node recorded in sess
func NewManager(
	sess *session.Session,
	runner ScriptRunner,
	prober StatusProber,
	publisher Publisher,
	cfg Config,
	logger zerolog.Logger,
) *Manager {
	return &Manager{
		session:   sess,
		runner:    runner,
		prober:    prober,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		alive:     ProcessAlive,
		cache:     cache.New(statusTTL, time.Minute),
		locks:     map[string]*sync.Mutex{},
		state:     Stopped,
	}
}

// State returns the current state
func (m *Manager) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	return m.state
}

func (m *Manager) setState(s State) {
	m.stateMu.Lock()
	prev := m.state
	m.state = s
	m.stateMu.Unlock()

	m.cache.Delete(statusKey)
	if prev != s {
		m.logger.Debug().Str("from", string(prev)).Str("to", string(s)).Msg("node state changed")
	}
}

// lockFor serializes operations against the same node directory
func (m *Manager) lockFor(dir string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	l, ok := m.locks[dir]
	if !ok {
		l = &sync.Mutex{}
		m.locks[dir] = l
	}
	return l
}

func (m *Manager) nodeDir() (string, error) {
	dir := m.session.NodeDir()
	if dir == "" {
		return "", errs.New(errs.Lifecycle, "no light node is deployed yet")
	}
	return dir, nil
}

// reconcile aligns the recorded state with the process table
func (m *Manager) reconcile() {
	pid := m.session.PID()
	alive := pid != 0 && m.alive(pid)

	switch state := m.State(); {
	case state == Running && !alive:
		m.session.ClearPID()
		m.setState(Stopped)
		m.publisher.Publish(source, "node process exited")
	case state == Stopped && alive:
		m.setState(Running)
	}
}

// Start runs the start script and waits until the process survived the confirmation window
func (m *Manager) Start(ctx context.Context) error {
	dir, err := m.nodeDir()
	if err != nil {
		return err
	}

	lock := m.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	m.reconcile()
	if state := m.State(); state == Running || state == Starting || state == Stopping {
		return errs.New(errs.Lifecycle, "already running")
	}
	// a failed stop keeps the pid of a process that is still alive
	if pid := m.session.PID(); pid != 0 && m.alive(pid) {
		return errs.New(errs.Lifecycle, "already running with pid %d", pid)
	}

	if !fsutil.Exists(filepath.Join(dir, startScript)) {
		return errs.New(errs.Lifecycle, "%s not found in %s", startScript, dir)
	}

	m.logger.Info().Str("dir", dir).Msg("starting node")
	m.setState(Starting)

	out, err := m.runner.Run(ctx, dir, startScript, m.cfg.StartTimeout)
	m.forward(out)
	if err != nil {
		m.setState(Failed)
		return errs.Wrap(errs.Lifecycle, err, "start script failed")
	}

	pid := parsePID(out)
	if pid == 0 {
		pid = readPIDFile(dir)
	}
	if pid == 0 {
		m.setState(Failed)
		return errs.New(errs.Lifecycle, "could not determine the node pid from the start script output")
	}

	if err := m.confirm(ctx, pid); err != nil {
		m.setState(Failed)
		return err
	}

	m.session.SetPID(pid)
	m.setState(Running)
	m.publisher.Publish(source, "node running with pid "+strconv.Itoa(pid))
	m.logger.Info().Int("pid", pid).Msg("node running")
	return nil
}

// confirm checks that pid stays alive for the whole confirmation window
func (m *Manager) confirm(ctx context.Context, pid int) error {
	deadline := time.Now().Add(m.cfg.ConfirmWindow)
	interval := m.cfg.ConfirmInterval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	for {
		if !m.alive(pid) {
			return errs.New(errs.Lifecycle, "node process %d exited during startup", pid)
		}
		if !time.Now().Before(deadline) {
			return nil
		}

		select {
		case <-ctx.Done():
			return errs.Wrap(errs.Lifecycle, ctx.Err(), "start interrupted")
		case <-time.After(interval):
		}
	}
}

// Stop runs the stop script and waits for the process to exit.
// Stopping a stopped node does nothing.
func (m *Manager) Stop(ctx context.Context) error {
	dir, err := m.nodeDir()
	if err != nil {
		return err
	}

	lock := m.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	m.reconcile()
	pid := m.session.PID()
	alive := pid != 0 && m.alive(pid)

	switch m.State() {
	case Stopped:
		return nil
	case Failed:
		if !alive {
			m.session.ClearPID()
			m.setState(Stopped)
			return nil
		}
	}

	m.logger.Info().Str("dir", dir).Int("pid", pid).Msg("stopping node")
	m.setState(Stopping)

	out, err := m.runner.Run(ctx, dir, stopScript, m.cfg.StopTimeout)
	m.forward(out)
	if err != nil {
		m.setState(Failed)
		return errs.Wrap(errs.Lifecycle, err, "stop script failed")
	}

	if pid != 0 {
		backoff := retry.WithMaxDuration(m.cfg.StopWait, retry.NewConstant(100*time.Millisecond))
		err = retry.Do(ctx, backoff, func(ctx context.Context) error {
			if m.alive(pid) {
				return retry.RetryableError(errStillAlive)
			}
			return nil
		})
		if err != nil {
			m.setState(Failed)
			return errs.Wrap(errs.Lifecycle, err, "node process %d did not exit", pid)
		}
	}

	m.session.ClearPID()
	m.setState(Stopped)
	m.publisher.Publish(source, "node stopped")
	return nil
}

// Status returns the node status, it never fails. Running follows the process,
// an unreachable rpc only leaves the block height at -1.
func (m *Manager) Status(ctx context.Context) NodeStatus {
	if cached, ok := m.cache.Get(statusKey); ok {
		return cached.(NodeStatus)
	}

	status := m.probe(ctx)
	m.cache.SetDefault(statusKey, status)
	return status
}

func (m *Manager) probe(ctx context.Context) NodeStatus {
	dir := m.session.NodeDir()
	if dir != "" {
		lock := m.lockFor(dir)
		lock.Lock()
		m.reconcile()
		lock.Unlock()
	}

	pid := m.session.PID()
	status := NodeStatus{
		State:       m.State(),
		NodeID:      readNodeID(dir),
		BlockHeight: -1,
		CheckedAt:   time.Now(),
	}

	if pid == 0 || !m.alive(pid) {
		return status
	}
	status.Running = true
	status.PID = pid

	if m.prober == nil {
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, probeBudget)
	defer cancel()

	height, err := m.prober.BlockNumber(ctx)
	if err != nil {
		m.logger.Debug().Err(err).Msg("node status surface unreachable")
		return status
	}
	status.Reachable = true
	status.BlockHeight = height

	peers, err := m.prober.PeerCount(ctx)
	if err != nil {
		m.logger.Debug().Err(err).Msg("failed to query node peers")
		return status
	}
	status.PeerCount = peers

	return status
}

func (m *Manager) forward(out string) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), " \r"); line != "" {
			m.publisher.Publish(source, line)
		}
	}
}

func parsePID(out string) int {
	match := pidPattern.FindStringSubmatch(out)
	if match == nil {
		return 0
	}

	pid, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return pid
}

func readPIDFile(dir string) int {
	content, err := os.ReadFile(filepath.Join(dir, pidFile))
	if err != nil {
		return 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0
	}
	return pid
}

func readNodeID(dir string) string {
	if dir == "" {
		return ""
	}

	content, err := os.ReadFile(filepath.Join(dir, nodeIDFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}
