package archive

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Variant tells which of the accepted binary names was found.
type Variant int

const (
	Canonical Variant = iota
	Alias
)

func (v Variant) String() string {
	if v == Alias {
		return "alias"
	}
	return "canonical"
}

// Match is the located binary.
type Match struct {
	Path    string
	Variant Variant
}

// NotFoundError reports that none of the accepted names exist in the tree.
type NotFoundError struct {
	Root  string
	Names []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("binary not found in extracted artifact: searched for %s under %s",
		strings.Join(e.Names, ", "), e.Root)
}

// Locate searches root recursively for a regular file named name or alias,
// with or without an ".exe" suffix. A symlink with an accepted name counts
// when it resolves to a regular file inside root; the match then points at
// that file. The canonical name is preferred over the alias; among equal
// names the shallowest path wins, then lexical order.
func Locate(root, name, alias string) (Match, error) {
	type candidate struct {
		path  string
		depth int
	}
	var found [2]*candidate

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return Match{}, errors.Wrapf(err, "failed to search %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		file := path
		switch {
		case d.Type().IsRegular():
		case d.Type()&fs.ModeSymlink != 0:
			resolved, ok := resolveLink(realRoot, path)
			if !ok {
				return nil
			}
			file = resolved
		default:
			return nil
		}

		base := strings.TrimSuffix(d.Name(), ".exe")
		var v Variant
		switch {
		case base == name:
			v = Canonical
		case alias != "" && base == alias:
			v = Alias
		default:
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		depth := strings.Count(filepath.ToSlash(rel), "/")
		if c := found[v]; c == nil || depth < c.depth {
			found[v] = &candidate{path: file, depth: depth}
		}
		return nil
	})
	if err != nil {
		return Match{}, errors.Wrapf(err, "failed to search %s", root)
	}

	for _, v := range []Variant{Canonical, Alias} {
		if c := found[v]; c != nil {
			return Match{Path: c.path, Variant: v}, nil
		}
	}

	names := []string{name, name + ".exe"}
	if alias != "" {
		names = append(names, alias, alias+".exe")
	}
	return Match{}, &NotFoundError{Root: root, Names: names}
}

// resolveLink returns the regular file a symlink points at, provided it lies
// inside realRoot.
func resolveLink(realRoot, path string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil || !within(realRoot, resolved) {
		return "", false
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return resolved, true
}
