package runfacade

import (
	"fmt"
	"os"
	"path/filepath"
)

// openAppend opens path for append, creating its parent directory and the
// file itself if either is missing.
func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("runfacade: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runfacade: open log file %s: %w", path, err)
	}
	return f, nil
}
