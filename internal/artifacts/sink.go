// Package artifacts persists debugging output from automation runs:
// checkpoint screenshots and structured JSON dumps. Saving is always
// best effort. A failed write is logged and swallowed so an artifact
// problem can never fail the flow that produced it.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/webpilot9/webpilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DirSink writes artifacts under a base directory, one timestamped file
// per save.
type DirSink struct {
	dir    string
	logger *zap.Logger

	mu  sync.Mutex
	seq int
}

var _ schemas.ArtifactSink = (*DirSink)(nil)

// NewDirSink creates the base directory and returns a sink writing into
// it.
func NewDirSink(dir string, logger *zap.Logger) (*DirSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory %q: %w", dir, err)
	}
	return &DirSink{dir: dir, logger: logger.Named("artifacts")}, nil
}

// Dir returns the base directory artifacts are written to.
func (s *DirSink) Dir() string {
	return s.dir
}

// SaveScreenshot writes a PNG capture.
func (s *DirSink) SaveScreenshot(name string, png []byte) {
	if len(png) == 0 {
		return
	}
	path := s.nextPath(name, "png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		s.logger.Warn("Failed to save screenshot.", zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Debug("Saved screenshot.", zap.String("path", path), zap.Int("bytes", len(png)))
}

// SaveJSON writes an indented JSON dump of v.
func (s *DirSink) SaveJSON(name string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Warn("Failed to encode artifact.", zap.String("name", name), zap.Error(err))
		return
	}
	path := s.nextPath(name, "json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Warn("Failed to save artifact.", zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Debug("Saved artifact.", zap.String("path", path))
}

// nextPath builds a unique, sortable filename for one artifact. The
// sequence number keeps saves within the same second in order.
func (s *DirSink) nextPath(name, ext string) string {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()

	stamp := time.Now().Format("20060102-150405")
	return filepath.Join(s.dir, fmt.Sprintf("%s_%03d_%s.%s", stamp, n, sanitizeName(name), ext))
}

// sanitizeName strips path separators and other hostile characters from
// a caller-provided artifact name.
func sanitizeName(name string) string {
	if name == "" {
		return "artifact"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// NopSink discards everything. Used when artifact capture is disabled.
type NopSink struct{}

var _ schemas.ArtifactSink = NopSink{}

func (NopSink) SaveScreenshot(string, []byte) {}
func (NopSink) SaveJSON(string, any)          {}
