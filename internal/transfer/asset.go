package transfer

import (
	"context"
	"os"

	"github.com/JeseKi/fisco-autolight-client/internal/errs"
	"github.com/JeseKi/fisco-autolight-client/internal/fsutil"
	"github.com/pkg/errors"
)

// AssetKind is the expected content of an asset
type AssetKind int

const (
	// Binary executable payload, written as is
	Binary AssetKind = iota
	// Script text, normalized and marked executable
	Script
	// Config text, normalized
	Config
)

func (k AssetKind) String() string {
	switch k {
	case Binary:
		return "binary"
	case Script:
		return "script"
	case Config:
		return "config"
	default:
		return "unknown"
	}
}

func (k AssetKind) perm() os.FileMode {
	if k == Config {
		return 0o644
	}
	return 0o755
}

// Asset is a named remote artifact and where it lands on disk
type Asset struct {
	Name  string
	Path  string
	Kind  AssetKind
	Dests []string
}

// Fetch returns the normalized content of an asset
func (c *Client) Fetch(ctx context.Context, asset Asset) ([]byte, error) {
	if asset.Kind == Binary {
		return c.FetchBinary(ctx, asset.Path)
	}

	text, err := c.FetchText(ctx, asset.Path)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// Download fetches an asset and writes it to every destination.
// Nothing is written unless the whole body was received.
func (c *Client) Download(ctx context.Context, asset Asset) error {
	if len(asset.Dests) == 0 {
		return errors.Errorf("asset %s has no destination", asset.Name)
	}

	data, err := c.Fetch(ctx, asset)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch %s", asset.Name)
	}

	for _, dest := range asset.Dests {
		if err := fsutil.WriteFileAtomic(dest, data, asset.Kind.perm()); err != nil {
			return errs.Wrap(errs.Transport, err, "failed to store %s", asset.Name)
		}
		c.logger.Debug().Str("asset", asset.Name).Str("path", dest).Int("size", len(data)).Msg("asset stored")
	}

	return nil
}
