// Package history keeps a bounded per-file stack of prior file contents for
// undo support. Snapshots live in the disk cache, one entry per generation,
// with a small metadata record per file tracking which generations remain.
package history

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kvit-s/kvit-editor/internal/cache"
)

// DefaultMaxPerFile is the history depth used when none is configured.
const DefaultMaxPerFile = 10

// Metadata records which snapshot generations are retained for one file.
// Entries is ordered oldest first; Counter is the next generation to assign.
type Metadata struct {
	Entries []int `json:"entries"`
	Counter int   `json:"counter"`
}

// Manager stores and retrieves file history snapshots.
type Manager struct {
	cache      *cache.Cache
	maxPerFile int
	logger     *zap.Logger
}

// NewManager creates a history manager backed by c. maxPerFile bounds the
// number of snapshots retained per path; values below 1 fall back to
// DefaultMaxPerFile.
func NewManager(c *cache.Cache, maxPerFile int, logger *zap.Logger) *Manager {
	if maxPerFile < 1 {
		maxPerFile = DefaultMaxPerFile
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cache:      c,
		maxPerFile: maxPerFile,
		logger:     logger,
	}
}

func metadataKey(path string) string {
	return path + ".metadata"
}

func snapshotKey(path string, generation int) string {
	return fmt.Sprintf("%s.%d", path, generation)
}

func (m *Manager) loadMetadata(path string) (Metadata, error) {
	var meta Metadata
	if _, err := m.cache.Get(metadataKey(path), &meta); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// AddHistory appends content as the newest snapshot for path. When the depth
// bound is exceeded the oldest snapshot is deleted before the metadata is
// persisted.
func (m *Manager) AddHistory(path, content string) error {
	meta, err := m.loadMetadata(path)
	if err != nil {
		return err
	}

	generation := meta.Counter
	if err := m.cache.Set(snapshotKey(path, generation), content); err != nil {
		return err
	}

	meta.Entries = append(meta.Entries, generation)
	meta.Counter++

	for len(meta.Entries) > m.maxPerFile {
		oldest := meta.Entries[0]
		meta.Entries = meta.Entries[1:]
		if err := m.cache.Delete(snapshotKey(path, oldest)); err != nil {
			return err
		}
	}

	if err := m.cache.Set(metadataKey(path), meta); err != nil {
		return err
	}

	m.logger.Debug("history snapshot added",
		zap.String("path", path),
		zap.Int("generation", generation),
		zap.Int("retained", len(meta.Entries)),
	)
	return nil
}

// PopLastHistory removes and returns the most recent snapshot for path.
// It reports false when no history exists. A metadata entry pointing at a
// missing snapshot is logged and reported as no content, not an error.
func (m *Manager) PopLastHistory(path string) (string, bool, error) {
	meta, err := m.loadMetadata(path)
	if err != nil {
		return "", false, err
	}
	if len(meta.Entries) == 0 {
		return "", false, nil
	}

	last := meta.Entries[len(meta.Entries)-1]
	meta.Entries = meta.Entries[:len(meta.Entries)-1]

	key := snapshotKey(path, last)
	content, ok, err := m.cache.GetString(key)
	if err != nil {
		return "", false, err
	}
	if !ok {
		m.logger.Warn("history snapshot missing",
			zap.String("path", path),
			zap.Int("generation", last),
		)
	} else if err := m.cache.Delete(key); err != nil {
		return "", false, err
	}

	if err := m.cache.Set(metadataKey(path), meta); err != nil {
		return "", false, err
	}
	return content, ok, nil
}

// ClearHistory deletes all snapshots for path and resets its metadata.
func (m *Manager) ClearHistory(path string) error {
	meta, err := m.loadMetadata(path)
	if err != nil {
		return err
	}
	for _, generation := range meta.Entries {
		if err := m.cache.Delete(snapshotKey(path, generation)); err != nil {
			return err
		}
	}
	return m.cache.Set(metadataKey(path), Metadata{})
}

// GetAllHistory returns every retained snapshot for path, oldest first.
// Generations whose content is missing from the cache are skipped.
func (m *Manager) GetAllHistory(path string) ([]string, error) {
	meta, err := m.loadMetadata(path)
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, generation := range meta.Entries {
		content, ok, err := m.cache.GetString(snapshotKey(path, generation))
		if err != nil {
			return nil, err
		}
		if ok {
			snapshots = append(snapshots, content)
		}
	}
	return snapshots, nil
}

// GetMetadata returns the current metadata record for path.
func (m *Manager) GetMetadata(path string) (Metadata, error) {
	return m.loadMetadata(path)
}
