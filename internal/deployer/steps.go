package deployer

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JeseKi/fisco-autolight-client/internal/builder"
	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/JeseKi/fisco-autolight-client/internal/fsutil"
	"github.com/JeseKi/fisco-autolight-client/internal/overlay"
	"github.com/JeseKi/fisco-autolight-client/internal/transfer"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	// GenesisFile inside the light node directory
	GenesisFile = "config.genesis"
	// PeersFile inside the light node directory
	PeersFile = "nodes.json"
)

// Paths of the remote assets relative to the asset service
type Paths struct {
	BuildScript string
	// NodeBinary and LightnodeBinary may contain %s, replaced by the platform
	NodeBinary      string
	LightnodeBinary string
	Genesis         string
	Peers           string
}

// DefaultPaths used by the asset service
func DefaultPaths() Paths {
	return Paths{
		BuildScript:     "lightnode/build_chain.sh",
		NodeBinary:      "lightnode/executions/%s",
		LightnodeBinary: "lightnode/executions/%s",
		Genesis:         "lightnode/genesis",
		Peers:           "lightnode/nodes",
	}
}

type step struct {
	name string
	run  func(ctx context.Context, p *plan) error
}

func (d *Deployer) steps() []step {
	return []step{
		{name: "issue-certificate", run: d.issueCertificate},
		{name: "fetch-build-inputs", run: d.fetchBuildInputs},
		{name: "run-build", run: d.runBuild},
		{name: "promote", run: d.promote},
		{name: "overlay-certificates", run: d.overlayCertificates},
		{name: "fetch-node-config", run: d.fetchNodeConfig},
		{name: "finalize", run: d.finalize},
	}
}

func (d *Deployer) issueCertificate(ctx context.Context, p *plan) error {
	_, err := d.certs.IssueCertificate(ctx, p.dir, p.nodeID)
	return err
}

// buildInputs groups destinations by remote path so a payload shared by both
// binaries is only downloaded once
func (d *Deployer) buildInputs(p *plan) []transfer.Asset {
	binaries := map[string][]string{}
	for _, b := range []struct{ path, dest string }{
		{d.platformPath(d.paths.NodeBinary, p.platform), builder.NodeBinary},
		{d.platformPath(d.paths.LightnodeBinary, p.platform), builder.LightnodeBinary},
	} {
		binaries[b.path] = append(binaries[b.path], filepath.Join(p.dir, b.dest))
	}

	paths := make([]string, 0, len(binaries))
	for path := range binaries {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	assets := []transfer.Asset{{
		Name:  "build script",
		Path:  d.paths.BuildScript,
		Kind:  transfer.Script,
		Dests: []string{filepath.Join(p.dir, builder.ScriptName)},
	}}
	for _, path := range paths {
		assets = append(assets, transfer.Asset{
			Name:  "binary " + path,
			Path:  path,
			Kind:  transfer.Binary,
			Dests: binaries[path],
		})
	}

	return assets
}

func (d *Deployer) platformPath(path, platform string) string {
	if strings.Contains(path, "%s") {
		return fmt.Sprintf(path, platform)
	}
	return path
}

func (d *Deployer) fetchBuildInputs(ctx context.Context, p *plan) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, asset := range d.buildInputs(p) {
		asset := asset
		g.Go(func() error {
			d.publisher.Publish(source, fmt.Sprintf("downloading %s", asset.Name))
			return d.assets.Download(ctx, asset)
		})
	}

	return g.Wait()
}

func (d *Deployer) runBuild(ctx context.Context, p *plan) error {
	return d.builder.RunBuild(ctx, p.dir, builder.Options{
		Ports:  p.opts.Ports,
		Layout: p.opts.Layout,
		Env:    p.opts.Env,
	})
}

func (d *Deployer) promote(_ context.Context, p *plan) error {
	return d.builder.PromoteAndCleanup(p.dir)
}

func (d *Deployer) overlayCertificates(_ context.Context, p *plan) error {
	return overlay.Overlay(filepath.Join(p.dir, "conf"), filepath.Join(p.lightnode, "conf"))
}

func (d *Deployer) fetchNodeConfig(ctx context.Context, p *plan) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.assets.Download(ctx, transfer.Asset{
			Name:  "genesis",
			Path:  d.paths.Genesis,
			Kind:  transfer.Config,
			Dests: []string{filepath.Join(p.lightnode, GenesisFile)},
		})
	})

	g.Go(func() error {
		var peers PeerList
		if err := d.assets.FetchStructured(ctx, d.paths.Peers, &peers); err != nil {
			return errors.Wrap(err, "failed to fetch peer list")
		}
		if len(peers.Nodes) == 0 {
			return errs.New(errs.Transport, "peer list from %s is empty", d.paths.Peers)
		}

		data, err := json.MarshalIndent(peers, "", "  ")
		if err != nil {
			return err
		}

		return fsutil.WriteFileAtomic(filepath.Join(p.lightnode, PeersFile), data, 0o644)
	})

	return g.Wait()
}

func (d *Deployer) finalize(_ context.Context, p *plan) error {
	if !fsutil.IsDir(p.lightnode) {
		return errs.New(errs.Layout, "light node directory %s disappeared", p.lightnode)
	}

	d.session.SetDeployment(p.lightnode, p.nodeID)
	return nil
}

// PeerList accepts a bare list of peers or an object with a nodes field
type PeerList struct {
	Nodes []string `json:"nodes"`
}

// UnmarshalJSON implements json.Unmarshaler
func (l *PeerList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		l.Nodes = list
		return nil
	}

	var wrapped struct {
		Nodes []string `json:"nodes"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return errors.Wrap(err, "peer list must be a list or an object with nodes")
	}

	l.Nodes = wrapped.Nodes
	return nil
}
