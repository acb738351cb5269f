package buildinfo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// systemIDFile is the per-installation identity file, kept next to the
// configuration so reinstalls keep their identity and reflashes get a
// fresh one.
const systemIDFile = "system_id"

// LoadOrCreateSystemID returns the installation's stable identifier,
// minting and persisting a new UUID on first run. A read-only filesystem
// degrades to an ephemeral ID rather than failing startup.
func LoadOrCreateSystemID(configDir string) string {
	path := filepath.Join(configDir, systemIDFile)
	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	id := uuid.New().String()
	if err := os.MkdirAll(configDir, 0o755); err == nil {
		_ = os.WriteFile(path, []byte(id+"\n"), 0o644)
	}
	return id
}
