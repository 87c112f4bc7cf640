// Package overlay replaces the certificates generated by the build with the issued ones
package overlay

import (
	"os"
	"path/filepath"

	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/JeseKi/fisco-autolight-client/internal/fsutil"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Mapping of an issued artifact to the name the node expects
type Mapping struct {
	Source string
	Target string
	Perm   os.FileMode
}

// Mappings used by the light node
var Mappings = []Mapping{
	{Source: "node.key", Target: "ssl.key", Perm: 0o600},
	{Source: "node.crt", Target: "ssl.crt", Perm: 0o644},
	{Source: "ca.crt", Target: "ca.crt", Perm: 0o644},
}

// MissingFileError names a certificate artifact that could not be found
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return "missing certificate file " + e.Path
}

// Overlay copies the issued artifacts in sourceDir into targetConfDir under the node file names.
// Every source is checked before anything is copied, all missing files are reported.
func Overlay(sourceDir, targetConfDir string) error {
	var missing *multierror.Error
	contents := make([][]byte, len(Mappings))

	for i, m := range Mappings {
		path := filepath.Join(sourceDir, m.Source)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
			missing = multierror.Append(missing, &MissingFileError{Path: path})
			continue
		}
		if err != nil {
			return errs.Wrap(errs.Overlay, err, "failed to read %s", path)
		}
		contents[i] = data
	}

	if err := missing.ErrorOrNil(); err != nil {
		return errs.Wrap(errs.Overlay, err, "certificate overlay failed")
	}

	for i, m := range Mappings {
		target := filepath.Join(targetConfDir, m.Target)
		if err := fsutil.WriteFileAtomic(target, contents[i], m.Perm); err != nil {
			return errs.Wrap(errs.Overlay, err, "failed to write %s", target)
		}
	}

	return nil
}
