//go:build windows

package pathenv

// DefaultStore returns the PATH store of the current user.
func DefaultStore() (Store, error) {
	return NewRegistryStore(), nil
}
