// Package terminal bridges interactive console processes to websocket clients
package terminal

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"github.com/pkg/errors"
)

// DefaultPrompt is printed by the console once it is ready for commands
const DefaultPrompt = "[group0]: /apps>"

// Config of a console session
type Config struct {
	// Command is run with bash -c
	Command string
	// Dir is the working directory of the command
	Dir string
	// InitCommand is written once the prompt first shows up, empty disables it
	InitCommand string
	Prompt      string
	Rows        uint16
	Cols        uint16
}

// Console is a command running inside its own pty
type Console struct {
	cmd *exec.Cmd
	pty *os.File

	prompt   []byte
	init     string
	inited   bool
	carry    []byte
	readMu   sync.Mutex
	closeMu  sync.Once
	closeErr error
}

// Spawn starts cfg.Command inside a new pty
func Spawn(cfg Config) (*Console, error) {
	if cfg.Command == "" {
		return nil, errors.New("console command is required")
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.Rows == 0 {
		cfg.Rows = 100
	}
	if cfg.Cols == 0 {
		cfg.Cols = 500
	}

	cmd := exec.Command("bash", "-c", cfg.Command)
	cmd.Dir = cfg.Dir
	cmd.Env = append(os.Environ(), "TERM=xterm")

	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: cfg.Rows, Cols: cfg.Cols})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to start %q", cfg.Command)
	}

	return &Console{
		cmd:    cmd,
		pty:    f,
		prompt: []byte(cfg.Prompt),
		init:   cfg.InitCommand,
		inited: cfg.InitCommand == "",
	}, nil
}

// Read reads console output. The init command is sent the first time the prompt is seen,
// a failure to send it is returned along with the bytes read.
func (c *Console) Read(p []byte) (int, error) {
	n, err := c.pty.Read(p)
	if errors.Is(err, syscall.EIO) {
		// linux reports EIO on the master once the child side is gone
		err = io.EOF
	}

	if n > 0 {
		c.readMu.Lock()
		initErr := c.watchPrompt(p[:n], c.pty)
		c.readMu.Unlock()
		if err == nil {
			err = initErr
		}
	}
	return n, err
}

// watchPrompt writes the init command to w once the prompt shows up in the output
func (c *Console) watchPrompt(chunk []byte, w io.Writer) error {
	if c.inited {
		return nil
	}

	window := make([]byte, 0, len(c.carry)+len(chunk))
	window = append(append(window, c.carry...), chunk...)
	if bytes.Contains(window, c.prompt) {
		c.inited = true
		c.carry = nil
		if _, err := w.Write([]byte(c.init + "\n")); err != nil {
			return errors.Wrap(err, "failed to send the console init command")
		}
		return nil
	}

	keep := len(c.prompt) - 1
	if len(window) > keep {
		window = window[len(window)-keep:]
	}
	c.carry = window
	return nil
}

// Write sends input to the console
func (c *Console) Write(p []byte) (int, error) {
	return c.pty.Write(p)
}

// Resize changes the pty window size
func (c *Console) Resize(rows, cols uint16) error {
	return pty.Setsize(c.pty, &pty.Winsize{Rows: rows, Cols: cols})
}

// Close kills the console process and releases the pty
func (c *Console) Close() error {
	c.closeMu.Do(func() {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		c.closeErr = c.pty.Close()
		_ = c.cmd.Wait()
	})
	return c.closeErr
}
