package session

import (
	"os"
	"path/filepath"
)

// ReconnectMarker is the only durable client-local state the daemon owns: a
// boolean that gates the silent reconnection attempt on startup.
type ReconnectMarker struct {
	path string
}

func NewReconnectMarker(dataDir string) *ReconnectMarker {
	return &ReconnectMarker{path: filepath.Join(dataDir, "connected")}
}

func (m *ReconnectMarker) Get() bool {
	if m == nil || m.path == "" {
		return false
	}
	_, err := os.Stat(m.path)
	return err == nil
}

func (m *ReconnectMarker) Set(connected bool) error {
	if m == nil || m.path == "" {
		return nil
	}
	if !connected {
		err := os.Remove(m.path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(m.path, []byte("1\n"), 0o600)
}
