// Package app for the light node control backend
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/JeseKi/fisco-autolight-client/config"
	"github.com/JeseKi/fisco-autolight-client/internal/builder"
	"github.com/JeseKi/fisco-autolight-client/internal/certs"
	"github.com/JeseKi/fisco-autolight-client/internal/deployer"
	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/JeseKi/fisco-autolight-client/internal/fsutil"
	"github.com/JeseKi/fisco-autolight-client/internal/lifecycle"
	"github.com/JeseKi/fisco-autolight-client/internal/session"
	"github.com/JeseKi/fisco-autolight-client/internal/stream"
	"github.com/JeseKi/fisco-autolight-client/internal/transfer"
	"github.com/JeseKi/fisco-autolight-client/middlewares"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// App for all dependencies of backend server
type App struct {
	config    config.Configuration
	logger    zerolog.Logger
	session   *session.Session
	bus       *stream.Broadcaster
	authority *certs.Client
	deployer  *deployer.Deployer
	manager   *lifecycle.Manager
	upgrader  websocket.Upgrader

	// terminals are bound to ctx so a shutdown ends them
	ctx       context.Context
	cancel    context.CancelFunc
	terminals sync.WaitGroup
}

// NewApp wires every component from the configuration
func NewApp(cfg config.Configuration, logger zerolog.Logger) (*App, error) {
	sess, err := session.Load(cfg.SessionFile)
	if err != nil {
		return nil, err
	}

	switchNodeDir(sess, cfg.NodeDir, logger)

	assets, err := transfer.NewClient(
		cfg.APIURL,
		transfer.WithTimeout(cfg.FetchTimeout),
		transfer.WithDownloadTimeout(cfg.DownloadTimeout),
		transfer.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	authority, err := certs.NewClient(cfg.APIURL, certs.WithTimeout(cfg.AuthorityTimeout), certs.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	bus := stream.NewBroadcaster(cfg.LogWindow, 0)

	lcfg := lifecycle.DefaultConfig()
	lcfg.StartTimeout = cfg.StartTimeout
	lcfg.StopTimeout = cfg.StopTimeout
	lcfg.ConfirmWindow = cfg.ConfirmWindow

	ctx, cancel := context.WithCancel(context.Background())

	return &App{
		config:    cfg,
		logger:    logger,
		session:   sess,
		bus:       bus,
		authority: authority,
		deployer: deployer.NewDeployer(
			authority,
			assets,
			builder.NewBuilder(bus, logger, cfg.BuildTimeout),
			bus,
			sess,
			logger,
		),
		manager: lifecycle.NewManager(
			sess,
			lifecycle.NewShellRunner(),
			lifecycle.NewRPCProber(cfg.NodeRPCURL),
			bus,
			lcfg,
			logger,
		),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Broadcaster returns the live line feed
func (a *App) Broadcaster() *stream.Broadcaster {
	return a.bus
}

// Start serves the control surface until SIGINT, SIGTERM or ctx is done
func (a *App) Start(ctx context.Context) (err error) {
	srv := &http.Server{
		Addr:              a.config.ListenAddr,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go a.manager.Watch(watchCtx, a.config.PollInterval)

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", a.config.ListenAddr).Msg("server is listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		a.logger.Info().Msg("stopped serving new connections")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
	case <-ctx.Done():
	case err := <-serveErr:
		return err
	}

	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()

	a.cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.terminals.Wait()
	a.logger.Info().Msg("graceful shutdown complete")

	return nil
}

func (a *App) router() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/deploy", wrapFunc(a.deployHandler)).Methods("POST", "OPTIONS")
	api.HandleFunc("/start", wrapFunc(a.startHandler)).Methods("POST", "OPTIONS")
	api.HandleFunc("/stop", wrapFunc(a.stopHandler)).Methods("POST", "OPTIONS")
	api.HandleFunc("/sdk-cert", wrapFunc(a.sdkCertHandler)).Methods("POST", "OPTIONS")
	api.HandleFunc("/status", wrapFunc(a.statusHandler)).Methods("GET", "OPTIONS")
	api.HandleFunc("/session", wrapFunc(a.sessionHandler)).Methods("GET", "OPTIONS")
	api.HandleFunc("/logs", wrapFunc(a.logsHandler)).Methods("GET", "OPTIONS")
	api.HandleFunc("/logs/stream", a.logStreamHandler).Methods("GET")

	r.HandleFunc("/ws/terminal", a.terminalHandler).Methods("GET")

	// middlewares
	r.Use(middlewares.EnableCors)
	r.Use(middlewares.Logger(a.logger))
	return r
}

// DeployInput overrides the configured deployment options
type DeployInput struct {
	Ports        string            `json:"ports"`
	Layout       string            `json:"layout"`
	ForceRebuild *bool             `json:"force_rebuild"`
	NodeID       string            `json:"node_id" validate:"max=64"`
	Env          map[string]string `json:"env"`
}

// Deploy runs one deployment into the configured node directory
func (a *App) Deploy(ctx context.Context, input DeployInput) deployer.Result {
	opts := deployer.Options{
		Dir:          a.config.NodeDir,
		Ports:        a.config.Ports,
		Layout:       a.config.Layout,
		ForceRebuild: a.config.ForceRebuild,
		Env:          input.Env,
		NodeID:       input.NodeID,
	}
	if input.Ports != "" {
		opts.Ports = input.Ports
	}
	if input.Layout != "" {
		opts.Layout = input.Layout
	}
	if input.ForceRebuild != nil {
		opts.ForceRebuild = *input.ForceRebuild
	}

	if opts.ForceRebuild && a.manager.Status(ctx).Running {
		err := errs.New(errs.Lifecycle, "the node is running, stop it before rebuilding")
		return deployer.Result{Message: err.Error(), Kind: errs.Lifecycle, Err: err}
	}

	result := a.deployer.Deploy(ctx, opts)
	if result.Success {
		a.saveSession()
	}
	return result
}

// StartNode starts the deployed node
func (a *App) StartNode(ctx context.Context) error {
	defer a.saveSession()
	return a.manager.Start(ctx)
}

// StopNode stops the deployed node
func (a *App) StopNode(ctx context.Context) error {
	defer a.saveSession()
	return a.manager.Stop(ctx)
}

// Status returns the node status
func (a *App) Status(ctx context.Context) lifecycle.NodeStatus {
	return a.manager.Status(ctx)
}

// IssueSDKCertificate issues a console sdk certificate into dir. Empty arguments
// fall back to the console conf directory and the deployed node id.
func (a *App) IssueSDKCertificate(ctx context.Context, dir, nodeID string) (certs.Bundle, error) {
	if dir == "" {
		dir = filepath.Join(a.config.ConsoleDir, "conf")
	}
	if nodeID == "" {
		nodeID = a.session.Snapshot().NodeID
	}
	if nodeID == "" {
		nodeID = deployer.NewNodeID()
	}

	return a.authority.IssueSDKCertificate(ctx, dir, nodeID)
}

// switchNodeDir points a session loaded for another NODE_DIR at the configured one.
// A session whose node still runs is kept so that node can be stopped.
func switchNodeDir(sess *session.Session, nodeDir string, logger zerolog.Logger) {
	dir := sess.NodeDir()
	target := filepath.Join(nodeDir, builder.LightnodeDir)
	if dir == "" || filepath.Clean(dir) == target {
		return
	}

	next := ""
	if fsutil.IsDir(target) {
		next = target
	}

	if err := sess.Reconfigure(next, lifecycle.ProcessAlive); err != nil {
		logger.Warn().Err(err).Str("session_dir", dir).Msg("keeping the previous node directory until its node is stopped")
		return
	}
	logger.Info().Str("from", dir).Str("to", nodeDir).Msg("node directory changed")
}

func (a *App) saveSession() {
	if err := a.session.Save(a.config.SessionFile); err != nil {
		a.logger.Warn().Err(err).Str("path", a.config.SessionFile).Msg("failed to save session")
	}
}
