// Package builder runs the chain build procedure and shapes its output into a node directory
package builder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/JeseKi/fisco-autolight-client/internal/fsutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	// ScriptName is the build procedure inside the target directory
	ScriptName = "build_chain.sh"
	// NodeBinary is the chain binary passed with -e
	NodeBinary = "bin/fisco-bcos"
	// LightnodeBinary is the light node binary passed with -L
	LightnodeBinary = "fisco-bcos-lightnode"

	// DefaultPorts p2p and rpc ports
	DefaultPorts = "30300,20200"
	// DefaultLayout ip and node count
	DefaultLayout = "127.0.0.1:4"

	defaultTimeout = 10 * time.Minute
	outputTail     = 40
	source         = "build"
)

// Publisher receives output lines
type Publisher interface {
	Publish(source, line string)
}

// Options for a single build run
type Options struct {
	Ports  string
	Layout string
	Env    map[string]string
}

// Builder runs build procedures
type Builder struct {
	publisher Publisher
	logger    zerolog.Logger
	timeout   time.Duration
	shell     string
}

// NewBuilder creates a builder streaming output to publisher
func NewBuilder(publisher Publisher, logger zerolog.Logger, timeout time.Duration) *Builder {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Builder{
		publisher: publisher,
		logger:    logger,
		timeout:   timeout,
		shell:     "bash",
	}
}

// Args returns the build procedure arguments for opts
func Args(opts Options) []string {
	ports := opts.Ports
	if ports == "" {
		ports = DefaultPorts
	}

	layout := opts.Layout
	if layout == "" {
		layout = DefaultLayout
	}

	return []string{"-p", ports, "-l", layout, "-e", "./" + NodeBinary, "-L", "./" + LightnodeBinary}
}

// RunBuild invokes the build procedure inside dir, every output line is published as it is produced
func (b *Builder) RunBuild(ctx context.Context, dir string, opts Options) error {
	for _, input := range []string{ScriptName, NodeBinary, LightnodeBinary} {
		path := filepath.Join(dir, input)
		if !fsutil.Exists(path) {
			return errs.New(errs.Build, "build input %s is missing", input)
		}
		if err := fsutil.MakeExecutable(path); err != nil {
			return errs.Wrap(errs.Build, err, "failed to mark %s executable", input)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	args := append([]string{ScriptName}, Args(opts)...)
	cmd := exec.CommandContext(ctx, b.shell, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), environ(opts.Env)...)
	cmd.WaitDelay = 5 * time.Second

	b.logger.Info().Str("dir", dir).Strs("args", args).Msg("running build")

	reader, writer := io.Pipe()
	cmd.Stdout = writer
	cmd.Stderr = writer

	out := newTail(outputTail)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.forward(reader, out)
	}()

	err := cmd.Start()
	if err == nil {
		err = cmd.Wait()
	}
	_ = writer.Close()
	wg.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		return errs.New(errs.Build, "build timed out after %s\n%s", b.timeout, out)
	}
	if ctx.Err() != nil {
		return errs.Wrap(errs.Build, ctx.Err(), "build interrupted")
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return errs.New(errs.Build, "build failed with exit code %d\n%s", exitErr.ExitCode(), out)
	}

	if err != nil {
		return errs.Wrap(errs.Build, err, "failed to run build")
	}

	return nil
}

func (b *Builder) forward(r io.Reader, out *tail) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		out.add(line)
		b.publisher.Publish(source, line)
	}

	if err := scanner.Err(); err != nil {
		b.logger.Warn().Err(err).Msg("build output interrupted")
		// keep the process from blocking on a full pipe
		_, _ = io.Copy(io.Discard, r)
	}
}

func environ(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make([]string, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return vars
}

type tail struct {
	mu    sync.Mutex
	size  int
	lines []string
}

func newTail(size int) *tail {
	return &tail{size: size}
}

func (t *tail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines = append(t.lines, line)
	if len(t.lines) > t.size {
		t.lines = t.lines[len(t.lines)-t.size:]
	}
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return strings.Join(t.lines, "\n")
}
