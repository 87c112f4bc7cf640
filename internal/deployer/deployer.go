// Package deployer sequences certificate issuance, asset retrieval, build and overlay into one deployment
package deployer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/JeseKi/fisco-autolight-client/internal/builder"
	"github.com/JeseKi/fisco-autolight-client/internal/certs"
	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/JeseKi/fisco-autolight-client/internal/fsutil"
	"github.com/JeseKi/fisco-autolight-client/internal/session"
	"github.com/JeseKi/fisco-autolight-client/internal/transfer"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/validator.v2"
)

const source = "deploy"

// ErrInProgress is returned when a deployment is requested while another one runs
var ErrInProgress = errors.New("a deployment is already in progress")

// CertIssuer issues the node certificate into <nodeDir>/conf
type CertIssuer interface {
	IssueCertificate(ctx context.Context, nodeDir, nodeID string) (certs.Bundle, error)
}

// AssetFetcher retrieves remote artifacts
type AssetFetcher interface {
	Download(ctx context.Context, asset transfer.Asset) error
	FetchStructured(ctx context.Context, path string, v interface{}) error
}

// NodeBuilder runs the build procedure and promotes its output
type NodeBuilder interface {
	RunBuild(ctx context.Context, dir string, opts builder.Options) error
	PromoteAndCleanup(dir string) error
}

// Publisher receives progress lines
type Publisher interface {
	Publish(source, line string)
}

// Options of a single deployment
type Options struct {
	Dir          string            `json:"dir" validate:"nonzero"`
	Ports        string            `json:"ports"`
	Layout       string            `json:"layout"`
	ForceRebuild bool              `json:"force_rebuild"`
	Env          map[string]string `json:"env"`
	NodeID       string            `json:"node_id"`
	// Platform overrides the detected platform, linux or macos
	Platform string `json:"platform"`
}

// Result of a deployment
type Result struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	NodeDir    string    `json:"node_dir,omitempty"`
	NodeID     string    `json:"node_id,omitempty"`
	FailedStep string    `json:"failed_step,omitempty"`
	Kind       errs.Kind `json:"kind,omitempty"`
	Err        error     `json:"-"`
}

// Deployer runs deployments one at a time
type Deployer struct {
	certs     CertIssuer
	assets    AssetFetcher
	builder   NodeBuilder
	publisher Publisher
	session   *session.Session
	paths     Paths

	running atomic.Bool
	logger  zerolog.Logger
}

// Option configures a deployer
type Option func(*Deployer)

// WithPaths overrides the remote asset paths
func WithPaths(paths Paths) Option {
	return func(d *Deployer) {
		d.paths = paths
	}
}

// NewDeployer creates a deployer
func NewDeployer(
	certIssuer CertIssuer,
	assets AssetFetcher,
	nodeBuilder NodeBuilder,
	publisher Publisher,
	sess *session.Session,
	logger zerolog.Logger,
	opts ...Option,
) *Deployer {
	d := &Deployer{
		certs:     certIssuer,
		assets:    assets,
		builder:   nodeBuilder,
		publisher: publisher,
		session:   sess,
		paths:     DefaultPaths(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Running reports whether a deployment is in flight
func (d *Deployer) Running() bool {
	return d.running.Load()
}

// Deploy runs the whole pipeline. It stops at the first failing step and leaves
// what was written so far on disk.
func (d *Deployer) Deploy(ctx context.Context, opts Options) Result {
	if !d.running.CompareAndSwap(false, true) {
		return d.fail(errs.Wrap(errs.Lifecycle, ErrInProgress, ""), "")
	}
	defer d.running.Store(false)

	p, err := d.prepare(opts)
	if err != nil {
		return d.fail(err, "")
	}

	lightnode := filepath.Join(p.dir, builder.LightnodeDir)
	if fsutil.IsDir(lightnode) && !opts.ForceRebuild {
		msg := fmt.Sprintf("%s already holds a deployment, enable force rebuild to replace it", p.dir)
		d.publisher.Publish(source, msg)
		d.logger.Info().Str("dir", p.dir).Msg("deployment exists, skipping")
		return Result{Success: false, Message: msg, Kind: errs.Layout}
	}

	d.logger.Info().Str("dir", p.dir).Str("node_id", p.nodeID).Str("platform", p.platform).Msg("starting deployment")
	d.publisher.Publish(source, fmt.Sprintf("deploying light node %s into %s", p.nodeID, p.dir))

	steps := d.steps()
	for i, s := range steps {
		tag := fmt.Sprintf("[%d/%d] %s", i+1, len(steps), s.name)
		d.publisher.Publish(source, tag+": started")

		if err := s.run(ctx, p); err != nil {
			stepErr := &StepError{Step: s.name, Index: i + 1, Total: len(steps), Err: err}
			d.publisher.Publish(source, fmt.Sprintf("%s: failed: %s", tag, err))
			d.logger.Error().Err(err).Str("step", s.name).Msg("deployment failed")
			return d.fail(stepErr, s.name)
		}

		d.publisher.Publish(source, tag+": done")
	}

	msg := fmt.Sprintf("light node deployed to %s", p.lightnode)
	d.publisher.Publish(source, msg)
	d.logger.Info().Str("dir", p.lightnode).Msg("deployment succeeded")

	return Result{Success: true, Message: msg, NodeDir: p.lightnode, NodeID: p.nodeID}
}

func (d *Deployer) fail(err error, step string) Result {
	return Result{
		Success:    false,
		Message:    err.Error(),
		FailedStep: step,
		Kind:       errs.KindOf(err),
		Err:        err,
	}
}

// plan is the resolved input of a deployment run
type plan struct {
	opts      Options
	dir       string
	lightnode string
	nodeID    string
	platform  string
}

func (d *Deployer) prepare(opts Options) (*plan, error) {
	if err := validator.Validate(opts); err != nil {
		return nil, errs.Wrap(errs.Layout, err, "invalid deployment options")
	}

	if !filepath.IsAbs(opts.Dir) {
		return nil, errs.New(errs.Layout, "target directory %q must be absolute", opts.Dir)
	}

	if err := validatePorts(opts.Ports); err != nil {
		return nil, err
	}

	platform := opts.Platform
	if platform == "" {
		var err error
		platform, err = Platform(runtime.GOOS)
		if err != nil {
			return nil, err
		}
	} else if platform != "linux" && platform != "macos" {
		return nil, errs.New(errs.UnsupportedPlatform, "unsupported platform %q", platform)
	}

	dir := filepath.Clean(opts.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.Layout, err, "failed to create target directory")
	}
	if err := writable(dir); err != nil {
		return nil, errs.Wrap(errs.Layout, err, "target directory %s is not writable", dir)
	}

	nodeID := opts.NodeID
	if nodeID == "" {
		nodeID = NewNodeID()
	}

	return &plan{
		opts:      opts,
		dir:       dir,
		lightnode: filepath.Join(dir, builder.LightnodeDir),
		nodeID:    nodeID,
		platform:  platform,
	}, nil
}

// NewNodeID returns a fresh node identifier, a uuid in hex without dashes
func NewNodeID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Platform maps a GOOS value to the name used by the asset service
func Platform(goos string) (string, error) {
	switch goos {
	case "linux":
		return "linux", nil
	case "darwin":
		return "macos", nil
	default:
		return "", errs.New(errs.UnsupportedPlatform, "unsupported platform %q, only linux and macos are supported", goos)
	}
}

func validatePorts(ports string) error {
	if ports == "" {
		return nil
	}

	parts := strings.Split(ports, ",")
	if len(parts) != 2 {
		return errs.New(errs.Layout, "ports %q must be a p2p,rpc pair", ports)
	}

	for _, part := range parts {
		port, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || port <= 0 || port > 65535 {
			return errs.New(errs.Layout, "invalid port %q in %q", part, ports)
		}
	}

	return nil
}

// StepError tags a failure with the pipeline step that produced it
type StepError struct {
	Step  string
	Index int
	Total int
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d/%d %s failed: %s", e.Index, e.Total, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Kind of the underlying failure
func (e *StepError) Kind() errs.Kind {
	return errs.KindOf(e.Err)
}
