// Package encoding detects and memoizes text encodings so that reads and
// writes of the same file stay consistent across editor operations.
package encoding

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"
)

const (
	// DefaultEncoding is returned when detection fails or the file does
	// not exist yet.
	DefaultEncoding = "utf-8"

	// DefaultMaxCacheEntries bounds the in-memory detection cache.
	DefaultMaxCacheEntries = 1000

	// DefaultConfidenceThreshold is the minimum detector confidence (in
	// percent) required to trust a statistical detection result.
	DefaultConfidenceThreshold = 90

	// sampleLimit caps how much of a file is read for detection.
	sampleLimit = 1 << 20 // 1 MiB
)

// cacheEntry memoizes one detection result. The file's modification time at
// detection invalidates the entry; detectedAt orders the eviction sweep.
type cacheEntry struct {
	encoding   string
	mtime      time.Time
	detectedAt time.Time
}

// Manager resolves file encodings with an mtime-keyed cache.
type Manager struct {
	mu                  sync.Mutex
	entries             map[string]cacheEntry
	maxEntries          int
	confidenceThreshold int
	detector            *chardet.Detector
	logger              *zap.Logger
}

// NewManager creates an encoding manager. maxEntries bounds the cache;
// values below 1 fall back to DefaultMaxCacheEntries.
func NewManager(maxEntries int, logger *zap.Logger) *Manager {
	if maxEntries < 1 {
		maxEntries = DefaultMaxCacheEntries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		entries:             make(map[string]cacheEntry),
		maxEntries:          maxEntries,
		confidenceThreshold: DefaultConfidenceThreshold,
		detector:            chardet.NewTextDetector(),
		logger:              logger,
	}
}

// GetEncoding returns the encoding for the file at path. Non-existent paths
// resolve to the default encoding without touching the cache. Cached results
// are reused while the file's modification time is unchanged.
func (m *Manager) GetEncoding(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return DefaultEncoding
	}
	mtime := info.ModTime()

	m.mu.Lock()
	if cached, ok := m.entries[path]; ok && cached.mtime.Equal(mtime) {
		m.mu.Unlock()
		return cached.encoding
	}
	m.mu.Unlock()

	enc := m.DetectEncoding(path)

	m.mu.Lock()
	m.entries[path] = cacheEntry{encoding: enc, mtime: mtime, detectedAt: time.Now()}
	if len(m.entries) > m.maxEntries {
		m.sweepLocked()
	}
	m.mu.Unlock()

	return enc
}

// sweepLocked removes the oldest 10% of entries by detection time, at least
// one. Caller holds the mutex.
func (m *Manager) sweepLocked() {
	type aged struct {
		path       string
		detectedAt time.Time
	}
	all := make([]aged, 0, len(m.entries))
	for p, e := range m.entries {
		all = append(all, aged{path: p, detectedAt: e.detectedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].detectedAt.Before(all[j].detectedAt)
	})

	remove := len(all) / 10
	if remove < 1 {
		remove = 1
	}
	for _, a := range all[:remove] {
		delete(m.entries, a.path)
	}
	m.logger.Debug("encoding cache swept",
		zap.Int("removed", remove),
		zap.Int("remaining", len(m.entries)),
	)
}

// DetectEncoding detects the encoding of the file at path without consulting
// the cache. Detection reads at most a 1 MiB prefix. Low-confidence results
// fall through an ordered candidate list; the default encoding is the final
// fallback.
func (m *Manager) DetectEncoding(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return DefaultEncoding
	}
	defer f.Close()

	sample := make([]byte, sampleLimit)
	n, err := f.Read(sample)
	if err != nil && n == 0 {
		return DefaultEncoding
	}
	sample = sample[:n]
	if len(sample) == 0 {
		return DefaultEncoding
	}

	if result, err := m.detector.DetectBest(sample); err == nil &&
		result != nil && result.Confidence >= m.confidenceThreshold {
		m.logger.Debug("encoding detected",
			zap.String("path", path),
			zap.String("encoding", result.Charset),
			zap.Int("confidence", result.Confidence),
		)
		return result.Charset
	}

	return fallbackDetect(sample)
}

// fallbackDetect walks an ordered candidate list, accepting the first
// encoding that decodes the sample without error.
func fallbackDetect(sample []byte) string {
	candidates := []struct {
		name    string
		decodes func([]byte) bool
	}{
		{"utf-8", utf8.Valid},
		{"ISO-8859-1", func([]byte) bool { return true }},
		{"ascii", isASCII},
		{"UTF-16", decodesVia("UTF-16")},
		{"UTF-32", decodesVia("UTF-32")},
	}
	for _, c := range candidates {
		if c.decodes(sample) {
			return c.name
		}
	}
	return DefaultEncoding
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

func decodesVia(name string) func([]byte) bool {
	return func(data []byte) bool {
		enc, err := ianaindex.IANA.Encoding(name)
		if err != nil || enc == nil {
			return false
		}
		_, err = enc.NewDecoder().Bytes(data)
		return err == nil
	}
}

// isPassthrough reports whether raw bytes can be used directly as a Go
// string for the named encoding.
func isPassthrough(name string) bool {
	switch name {
	case "", "utf-8", "UTF-8", "ascii", "ASCII", "US-ASCII":
		return true
	}
	return false
}

// DecodeBytes converts raw file bytes in the named encoding to a string.
func DecodeBytes(data []byte, encodingName string) (string, error) {
	if isPassthrough(encodingName) {
		return string(data), nil
	}
	enc, err := ianaindex.IANA.Encoding(encodingName)
	if err != nil || enc == nil {
		// Unknown to the IANA registry: treat bytes as-is.
		return string(data), nil
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode as %s: %w", encodingName, err)
	}
	return string(decoded), nil
}

// EncodeString converts a string to raw bytes in the named encoding.
func EncodeString(s, encodingName string) ([]byte, error) {
	if isPassthrough(encodingName) {
		return []byte(s), nil
	}
	enc, err := ianaindex.IANA.Encoding(encodingName)
	if err != nil || enc == nil {
		return []byte(s), nil
	}
	encoded, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encode as %s: %w", encodingName, err)
	}
	return encoded, nil
}

// CacheLen returns the number of memoized detection results.
func (m *Manager) CacheLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
