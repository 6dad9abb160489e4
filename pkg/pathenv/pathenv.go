// Package pathenv makes an install directory reachable through the user's
// persistent PATH setting without ever rewriting existing entries.
package pathenv

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/apex/log"
)

// Outcome is the result of a PATH integration.
type Outcome string

const (
	Added          Outcome = "added"
	AlreadyPresent Outcome = "already-present"
	NotAdded       Outcome = "not-added"
)

// Store is a persistent PATH setting.
type Store interface {
	// Entries returns the directories currently on the path.
	Entries() ([]string, error)
	// Append adds dir after the existing entries.
	Append(dir string) error
	// Location names where the setting lives, for messages.
	Location() string
}

// SessionStore is implemented by stores whose entries include directories
// that are only on the PATH of the running session.
type SessionStore interface {
	// Persisted reports whether dir is kept by the store itself.
	Persisted(dir string) (bool, error)
}

// Warning reports a failed PATH integration. It never aborts an install.
type Warning struct {
	Dir      string
	Location string
	Err      error
}

func (w *Warning) Error() string {
	return fmt.Sprintf("could not add %s to PATH in %s: %v", w.Dir, w.Location, w.Err)
}

func (w *Warning) Unwrap() error { return w.Err }

// Integrate ensures dir is on the path held by store. It reports
// AlreadyPresent without writing when dir is found, NotAdded when autoAdd is
// false, and Added after a single append. Failures come back as *Warning
// together with NotAdded.
func Integrate(store Store, dir string, autoAdd bool) (Outcome, error) {
	entries, err := store.Entries()
	if err != nil {
		return NotAdded, &Warning{Dir: dir, Location: store.Location(), Err: err}
	}

	if Contains(entries, dir) {
		if s, ok := store.(SessionStore); ok {
			if persisted, err := s.Persisted(dir); err == nil && !persisted {
				log.WithFields(log.Fields{"dir": dir, "location": store.Location()}).
					Info("install directory is on the current session PATH only; not persisted")
				return AlreadyPresent, nil
			}
		}
		log.WithField("dir", dir).Debug("install directory already on PATH")
		return AlreadyPresent, nil
	}

	if !autoAdd {
		return NotAdded, nil
	}

	if err := store.Append(dir); err != nil {
		return NotAdded, &Warning{Dir: dir, Location: store.Location(), Err: err}
	}

	log.WithFields(log.Fields{"dir": dir, "location": store.Location()}).Info("added install directory to PATH")
	return Added, nil
}

// Contains reports whether dir equals one of entries. Entries are compared
// as whole cleaned paths, never as substrings, and case-insensitively on
// Windows.
func Contains(entries []string, dir string) bool {
	want := normalize(dir)
	if want == "" {
		return false
	}
	for _, e := range entries {
		if normalize(e) == want {
			return true
		}
	}
	return false
}

// SplitList splits a PATH value into entries, dropping empty ones.
func SplitList(value string) []string {
	var out []string
	for _, e := range filepath.SplitList(value) {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func normalize(p string) string {
	p = strings.Trim(strings.TrimSpace(p), `"`)
	if p == "" {
		return ""
	}
	p = os.ExpandEnv(p)
	p = filepath.Clean(p)
	if runtime.GOOS == "windows" {
		p = strings.ToLower(p)
	}
	return p
}
