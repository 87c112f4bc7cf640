package builder

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/JeseKi/fisco-autolight-client/internal/fsutil"
)

const (
	// NodesDir is the build output root
	NodesDir = "nodes"
	// LightnodeDir is the canonical node directory after promotion
	LightnodeDir = "lightnode"
)

// executables inside the promoted directory
var executables = []string{"start.sh", "stop.sh", LightnodeBinary}

// PromoteAndCleanup moves nodes/lightnode to lightnode and removes nodes.
// A second call without a build in between fails since there is nothing left to promote.
func (b *Builder) PromoteAndCleanup(dir string) error {
	nodes := filepath.Join(dir, NodesDir)
	if !fsutil.IsDir(nodes) {
		return errs.New(errs.Layout, "build produced no output: %s not found", nodes)
	}

	src, err := findLightnode(nodes)
	if err != nil {
		return err
	}

	dst := filepath.Join(dir, LightnodeDir)
	if fsutil.Exists(dst) {
		b.logger.Info().Str("path", dst).Msg("replacing existing light node directory")
		if err := os.RemoveAll(dst); err != nil {
			return errs.Wrap(errs.Layout, err, "failed to remove previous %s", dst)
		}
	}

	if err := os.Rename(src, dst); err != nil {
		return errs.Wrap(errs.Layout, err, "failed to promote %s", src)
	}

	if sdk := findDir(nodes, "sdk"); sdk != "" && !fsutil.Exists(filepath.Join(dst, "sdk")) {
		if err := fsutil.CopyDir(sdk, filepath.Join(dst, "sdk")); err != nil {
			return errs.Wrap(errs.Layout, err, "failed to copy sdk certificates from %s", sdk)
		}
	}

	for _, name := range executables {
		path := filepath.Join(dst, name)
		if !fsutil.Exists(path) {
			continue
		}
		if err := fsutil.MakeExecutable(path); err != nil {
			return errs.Wrap(errs.Layout, err, "failed to mark %s executable", path)
		}
	}

	if err := os.RemoveAll(nodes); err != nil {
		return errs.Wrap(errs.Layout, err, "failed to clean up %s", nodes)
	}

	b.logger.Info().Str("path", dst).Msg("light node directory promoted")
	return nil
}

func findLightnode(nodes string) (string, error) {
	expected := filepath.Join(nodes, LightnodeDir)
	if fsutil.IsDir(expected) {
		return expected, nil
	}

	if found := findDir(nodes, LightnodeDir); found != "" {
		return found, nil
	}

	return "", errs.New(errs.Layout, "build produced no output: %s not found", expected)
}

// findDir returns the first directory named name below root
func findDir(root, name string) string {
	var found string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == name && path != root {
			found = path
			return fs.SkipAll
		}
		return nil
	})

	return found
}
