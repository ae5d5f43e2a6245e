// Package download stores redacted results on the local filesystem.
package download

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DirSaver writes each result into a fixed directory. An existing file with
// the same name is replaced.
type DirSaver struct {
	dir    string
	logger *zap.SugaredLogger
}

// NewDirSaver creates a saver rooted at dir, creating the directory if needed.
func NewDirSaver(dir string, logger *zap.SugaredLogger) (*DirSaver, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create output directory %s", dir)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DirSaver{dir: dir, logger: logger}, nil
}

// Dir returns the output directory.
func (s *DirSaver) Dir() string { return s.dir }

// Path returns where filename would be written.
func (s *DirSaver) Path(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

// Save writes data under filename. The write goes through a temp file in the
// same directory so a reader never sees a partial result.
func (s *DirSaver) Save(filename string, data []byte) error {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
		return errors.Errorf("invalid filename %q", filename)
	}
	if len(data) == 0 {
		return errors.New("refusing to save empty result")
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write result")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close result")
	}
	dst := s.Path(name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return errors.Wrapf(err, "rename to %s", dst)
	}
	s.logger.Infow("saved redacted image", "path", dst, "bytes", len(data))
	return nil
}
