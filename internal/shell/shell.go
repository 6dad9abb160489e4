// Package shell knows where each supported shell reads its startup
// configuration and how to write a PATH entry into it.
package shell

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Kind is a shell family.
type Kind string

const (
	Bash  Kind = "bash"
	Zsh   Kind = "zsh"
	Fish  Kind = "fish"
	POSIX Kind = "sh"
)

// Detect maps a shell binary path such as $SHELL to a Kind. Unknown or
// empty values map to POSIX.
func Detect(shellPath string) Kind {
	switch strings.ToLower(filepath.Base(shellPath)) {
	case "bash":
		return Bash
	case "zsh":
		return Zsh
	case "fish":
		return Fish
	default:
		return POSIX
	}
}

// DetectFromEnv detects the login shell from $SHELL.
func DetectFromEnv() Kind {
	return Detect(os.Getenv("SHELL"))
}

// RCFile returns the startup file for k under home.
func RCFile(home string, k Kind) string {
	switch k {
	case Bash:
		return filepath.Join(home, ".bashrc")
	case Zsh:
		return filepath.Join(home, ".zshrc")
	case Fish:
		return filepath.Join(home, ".config", "fish", "config.fish")
	default:
		return filepath.Join(home, ".profile")
	}
}

// DefaultRCFile returns the startup file of the current user's shell.
func DefaultRCFile() (string, Kind, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", errors.Wrap(err, "failed to determine home directory")
	}
	k := DetectFromEnv()
	return RCFile(home, k), k, nil
}
