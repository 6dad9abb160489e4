package install

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// EnvInstallDir overrides the default install directory.
const EnvInstallDir = "CASS_INSTALL_DIR"

// Error reports a failure to place the binary at its destination. The
// previous binary, if any, is left untouched.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("install %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ResolveInstallDir resolves the installation directory, handling defaults and expansions
func ResolveInstallDir(binDir string) (string, error) {
	if binDir == "" {
		if envBin := os.Getenv(EnvInstallDir); envBin != "" {
			binDir = envBin
		} else if home, err := os.UserHomeDir(); err == nil && home != "" {
			binDir = filepath.Join(home, ".local", "bin")
		} else {
			return "", fmt.Errorf("could not determine install directory: no home directory")
		}
	}

	// Expand path (handles ~ and environment variables)
	binDir = expandPath(binDir)

	absPath, err := filepath.Abs(binDir)
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve install directory")
	}

	return absPath, nil
}

// TargetPath is where InstallBinary places a binary called targetName.
func TargetPath(targetDir, targetName string) string {
	// Add .exe extension on Windows if not present
	if runtime.GOOS == "windows" && !strings.HasSuffix(targetName, ".exe") {
		targetName += ".exe"
	}
	return filepath.Join(targetDir, targetName)
}

// InstallBinary installs a binary from source to the target directory under
// targetName, whatever the source file was called.
func InstallBinary(sourcePath, targetDir, targetName string) (string, error) {
	targetPath := TargetPath(targetDir, targetName)

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", &Error{Path: targetPath, Err: errors.Wrap(err, "failed to create install directory")}
	}

	source, err := os.Open(sourcePath)
	if err != nil {
		return "", &Error{Path: targetPath, Err: errors.Wrap(err, "failed to open source file")}
	}
	defer source.Close()

	// Create temporary file in target directory for atomic replacement
	tmpFile, err := os.CreateTemp(targetDir, "."+filepath.Base(targetPath)+"-*")
	if err != nil {
		return "", &Error{Path: targetPath, Err: errors.Wrap(err, "failed to create temporary file")}
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, source); err != nil {
		tmpFile.Close()
		return "", &Error{Path: targetPath, Err: errors.Wrap(err, "failed to copy binary")}
	}

	if err := tmpFile.Chmod(0755); err != nil {
		tmpFile.Close()
		return "", &Error{Path: targetPath, Err: errors.Wrap(err, "failed to set permissions")}
	}

	if err := tmpFile.Close(); err != nil {
		return "", &Error{Path: targetPath, Err: errors.Wrap(err, "failed to close temporary file")}
	}

	if err := atomicInstall(tmpPath, targetPath); err != nil {
		return "", &Error{Path: targetPath, Err: err}
	}

	success = true
	log.WithField("path", targetPath).Debug("binary installed")
	return targetPath, nil
}

// atomicInstall performs an atomic file replacement
func atomicInstall(sourcePath, targetPath string) error {
	// On Unix, rename is atomic
	if err := os.Rename(sourcePath, targetPath); err != nil {
		// On Windows a running or existing target blocks the rename
		if runtime.GOOS == "windows" || os.IsExist(err) {
			if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
				return errors.Wrap(err, "failed to remove existing file")
			}
			if err := os.Rename(sourcePath, targetPath); err != nil {
				return errors.Wrap(err, "failed to install binary")
			}
		} else {
			return errors.Wrap(err, "failed to install binary")
		}
	}
	return nil
}

// expandPath expands ~ and environment variables in a path
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}

	return os.ExpandEnv(path)
}

// DryRunOutput returns the message to display for a dry run
func DryRunOutput(sourceURL, targetPath string) string {
	return fmt.Sprintf("Would install %s to %s", sourceURL, targetPath)
}
