//go:build windows

package pathenv

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows/registry"
)

const (
	environmentKey = `Environment`
	pathValue      = "Path"
)

// RegistryStore is the per-user Path value under HKCU\Environment.
type RegistryStore struct {
	root registry.Key
	key  string
}

// NewRegistryStore returns the store for the current user's Path.
func NewRegistryStore() *RegistryStore {
	return &RegistryStore{root: registry.CURRENT_USER, key: environmentKey}
}

// Location implements Store.
func (s *RegistryStore) Location() string {
	return `HKCU\` + s.key + `\` + pathValue
}

// Entries implements Store.
func (s *RegistryStore) Entries() ([]string, error) {
	value, _, err := s.read()
	if err != nil {
		return nil, err
	}
	return splitRegistryPath(value), nil
}

// Append implements Store. The value keeps its type, so an
// expandable Path stays REG_EXPAND_SZ.
func (s *RegistryStore) Append(dir string) error {
	value, valType, err := s.read()
	if err != nil {
		return err
	}

	k, _, err := registry.CreateKey(s.root, s.key, registry.SET_VALUE)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s for writing", s.Location())
	}
	defer k.Close()

	value = joinRegistryPath(value, dir)
	if valType == registry.SZ {
		err = k.SetStringValue(pathValue, value)
	} else {
		err = k.SetExpandStringValue(pathValue, value)
	}
	return errors.Wrapf(err, "failed to write %s", s.Location())
}

func (s *RegistryStore) read() (string, uint32, error) {
	k, err := registry.OpenKey(s.root, s.key, registry.QUERY_VALUE)
	if err != nil {
		if err == registry.ErrNotExist {
			return "", registry.EXPAND_SZ, nil
		}
		return "", 0, errors.Wrapf(err, "failed to open %s", s.Location())
	}
	defer k.Close()

	value, valType, err := k.GetStringValue(pathValue)
	if err != nil {
		if err == registry.ErrNotExist {
			return "", registry.EXPAND_SZ, nil
		}
		return "", 0, errors.Wrapf(err, "failed to read %s", s.Location())
	}
	return value, valType, nil
}

func splitRegistryPath(value string) []string {
	var out []string
	for _, e := range strings.Split(value, ";") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if expanded, err := registry.ExpandString(e); err == nil {
			e = expanded
		}
		out = append(out, e)
	}
	return out
}

func joinRegistryPath(value, dir string) string {
	value = strings.TrimRight(value, ";")
	if value == "" {
		return dir
	}
	return value + ";" + dir
}
