package files

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

// ErrNotFound is returned for operations on artifacts that do not exist.
var ErrNotFound = errors.New("files: artifact not found")

// Info describes one generated artifact.
type Info struct {
	Filename string  `json:"filename"`
	Size     int64   `json:"size"`
	Created  float64 `json:"created"`
	Modified float64 `json:"modified"`
}

// Usage summarizes artifact storage consumption.
type Usage struct {
	UsedBytes      int64   `json:"used_bytes"`
	UsedMB         float64 `json:"used_mb"`
	AvailableBytes uint64  `json:"available_bytes"`
	AvailableMB    float64 `json:"available_mb"`
	FileCount      int     `json:"file_count"`
}

// Manager handles the generated-artifact folder: listing, sidecar metadata,
// age-based cleanup, and disk accounting. Artifact bytes are never
// inspected.
type Manager struct {
	dir string
	ext string
}

func NewManager(dir, ext string) *Manager {
	return &Manager{dir: dir, ext: ext}
}

func (m *Manager) Dir() string {
	return m.dir
}

// List returns all artifacts, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), m.ext) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Filename: e.Name(),
			Size:     fi.Size(),
			Created:  unixSeconds(fi.ModTime()),
			Modified: unixSeconds(fi.ModTime()),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Modified > infos[j].Modified
	})
	return infos, nil
}

// Count returns the number of artifacts on disk, 0 on error.
func (m *Manager) Count() int {
	infos, err := m.List()
	if err != nil {
		return 0
	}
	return len(infos)
}

// Path resolves filename inside the artifact folder, rejecting anything that
// would escape it.
func (m *Manager) Path(filename string) (string, error) {
	if filename != filepath.Base(filename) || filename == "." || filename == ".." || filename == "" {
		return "", fmt.Errorf("files: invalid filename %q", filename)
	}
	path := filepath.Join(m.dir, filename)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return path, nil
}

// Delete removes one artifact and its metadata sidecar if present.
func (m *Manager) Delete(filename string) error {
	path, err := m.Path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return err
	}
	os.Remove(path + ".meta.json") // best effort
	return nil
}

// SaveMetadata writes the sidecar metadata file for an artifact.
func (m *Manager) SaveMetadata(filename string, meta map[string]any) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.dir, filename+".meta.json"), data, 0o644)
}

// LoadMetadata reads an artifact's sidecar metadata; ErrNotFound when the
// sidecar does not exist.
func (m *Manager) LoadMetadata(filename string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, filename+".meta.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// CleanupOld deletes artifacts older than maxAge, returning how many were
// removed.
func (m *Manager) CleanupOld(maxAge time.Duration) (int, error) {
	infos, err := m.List()
	if err != nil {
		return 0, err
	}

	cutoff := unixSeconds(time.Now().Add(-maxAge))
	removed := 0
	for _, info := range infos {
		if info.Modified >= cutoff {
			continue
		}
		if err := m.Delete(info.Filename); err != nil {
			log.Printf("cleanup: removing %s: %v", info.Filename, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("cleanup: removed %d artifacts older than %s", removed, maxAge)
	}
	return removed, nil
}

// RunCleanup removes old artifacts on a fixed interval until ctx ends.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := m.CleanupOld(maxAge); err != nil {
				log.Printf("cleanup error: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// DiskUsage reports bytes consumed by artifacts and space left on the
// underlying filesystem.
func (m *Manager) DiskUsage() (Usage, error) {
	infos, err := m.List()
	if err != nil {
		return Usage{}, err
	}

	var used int64
	for _, info := range infos {
		used += info.Size
	}

	u := Usage{
		UsedBytes: used,
		UsedMB:    mb(float64(used)),
		FileCount: len(infos),
	}
	if stat, err := disk.Usage(m.dir); err == nil {
		u.AvailableBytes = stat.Free
		u.AvailableMB = mb(float64(stat.Free))
	} else {
		log.Printf("disk usage for %s: %v", m.dir, err)
	}
	return u, nil
}

func mb(bytes float64) float64 {
	return float64(int(bytes/1024/1024*100)) / 100
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
