package pathenv

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/coding-agent-search/cass-installer/internal/shell"
	"github.com/pkg/errors"
)

// ProfileStore keeps PATH additions as marked lines in a shell startup file.
// Its entries are the process PATH plus every directory exported by a
// marked line, so a rerun before the shell restarts stays idempotent.
type ProfileStore struct {
	Path  string
	Shell shell.Kind
	// PathEnv is the process PATH; nil means read $PATH.
	PathEnv *string
}

// NewProfileStore returns a store for the current user's shell.
func NewProfileStore() (*ProfileStore, error) {
	rc, kind, err := shell.DefaultRCFile()
	if err != nil {
		return nil, err
	}
	return &ProfileStore{Path: rc, Shell: kind}, nil
}

// Location implements Store.
func (s *ProfileStore) Location() string { return s.Path }

// Entries implements Store.
func (s *ProfileStore) Entries() ([]string, error) {
	pathEnv := os.Getenv("PATH")
	if s.PathEnv != nil {
		pathEnv = *s.PathEnv
	}

	marked, err := s.marked()
	if err != nil {
		return nil, err
	}
	return append(SplitList(pathEnv), marked...), nil
}

// Persisted implements SessionStore. Only marked lines in the startup file
// count; the process PATH does not.
func (s *ProfileStore) Persisted(dir string) (bool, error) {
	marked, err := s.marked()
	if err != nil {
		return false, err
	}
	return Contains(marked, dir), nil
}

// marked returns the directories exported by marked lines of the file.
func (s *ProfileStore) marked() ([]string, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to open %s", s.Path)
	}
	defer file.Close()

	var dirs []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if dir, ok := shell.ParsePathLine(scanner.Text()); ok {
			dirs = append(dirs, dir)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", s.Path)
	}
	return dirs, nil
}

// Append implements Store. One marked line is appended at the end of the
// file; existing content is never rewritten.
func (s *ProfileStore) Append(dir string) error {
	line, err := shell.PathLine(s.Shell, dir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return errors.Wrap(err, "failed to create parent directory")
	}

	prefix := ""
	if content, err := os.ReadFile(s.Path); err == nil && len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		prefix = "\n"
	}

	file, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", s.Path)
	}

	if _, err := file.WriteString(prefix + line + "\n"); err != nil {
		file.Close()
		return errors.Wrapf(err, "failed to write %s", s.Path)
	}
	return errors.Wrapf(file.Close(), "failed to close %s", s.Path)
}
