package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Disk stores documents on the local filesystem. The directory is served by
// the router under the configured base URL (default /uploads/).
type Disk struct {
	dir     string
	baseURL string
}

func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Disk{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *Disk) Save(_ context.Context, name, _ string, data []byte) error {
	// Base keeps a crafted name from escaping the upload directory.
	return os.WriteFile(filepath.Join(d.dir, filepath.Base(name)), data, 0o644)
}

func (d *Disk) PublicURL(name string) string {
	return d.baseURL + "/" + filepath.Base(name)
}
