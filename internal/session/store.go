package session

import (
	"encoding/json"
	"os"

	"github.com/JeseKi/fisco-autolight-client/internal/fsutil"
	"github.com/pkg/errors"
)

// Load restores a session saved at path. A missing file gives an empty session.
func Load(path string) (*Session, error) {
	s := New()

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to read session file")
	}

	if err := json.Unmarshal(content, &s.state); err != nil {
		return nil, errors.Wrapf(err, "invalid session file %s", path)
	}

	return s, nil
}

// Save writes the current state to path
func (s *Session) Save(path string) error {
	content, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return err
	}

	return fsutil.WriteFileAtomic(path, content, 0644)
}
