package install

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveInstallDir(t *testing.T) {
	tests := []struct {
		name     string
		binDir   string
		setupEnv map[string]string
		want     string
		wantErr  bool
	}{
		{
			name:   "explicit directory",
			binDir: "/usr/local/bin",
			want:   "/usr/local/bin",
		},
		{
			name:   "expand home directory",
			binDir: "~/bin",
			setupEnv: map[string]string{
				"HOME": "/home/user",
			},
			want: "/home/user/bin",
		},
		{
			name:   "expand environment variable",
			binDir: "${CUSTOM_BIN}/tools",
			setupEnv: map[string]string{
				"CUSTOM_BIN": "/opt/bin",
			},
			want: "/opt/bin/tools",
		},
		{
			name:   "default with CASS_INSTALL_DIR set",
			binDir: "",
			setupEnv: map[string]string{
				"CASS_INSTALL_DIR": "/custom/bin",
			},
			want: "/custom/bin",
		},
		{
			name:   "default with HOME set",
			binDir: "",
			setupEnv: map[string]string{
				"HOME":             "/home/user",
				"CASS_INSTALL_DIR": "",
			},
			want: "/home/user/.local/bin",
		},
		{
			name:   "default with no HOME",
			binDir: "",
			setupEnv: map[string]string{
				"HOME":             "", // Explicitly set HOME to empty
				"CASS_INSTALL_DIR": "",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.setupEnv {
				t.Setenv(k, v)
			}

			got, err := ResolveInstallDir(tt.binDir)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstallBinary(t *testing.T) {
	tests := []struct {
		name           string
		setupSource    func(t *testing.T) string
		setupTarget    func(t *testing.T) string
		targetName     string
		wantErr        bool
		validateResult func(t *testing.T, targetPath string)
	}{
		{
			name: "install new binary",
			setupSource: func(t *testing.T) string {
				source := filepath.Join(t.TempDir(), "source-binary")
				require.NoError(t, os.WriteFile(source, []byte("binary content"), 0755))
				return source
			},
			setupTarget: func(t *testing.T) string {
				return t.TempDir()
			},
			targetName: "mybinary",
			validateResult: func(t *testing.T, targetPath string) {
				assert.FileExists(t, targetPath)

				info, err := os.Stat(targetPath)
				require.NoError(t, err)

				// Check permissions
				if runtime.GOOS != "windows" {
					assert.Equal(t, os.FileMode(0755), info.Mode()&0777)
				}

				// Check content
				content, err := os.ReadFile(targetPath)
				require.NoError(t, err)
				assert.Equal(t, "binary content", string(content))
			},
		},
		{
			name: "overwrite existing binary",
			setupSource: func(t *testing.T) string {
				source := filepath.Join(t.TempDir(), "new-binary")
				require.NoError(t, os.WriteFile(source, []byte("new content"), 0755))
				return source
			},
			setupTarget: func(t *testing.T) string {
				dir := t.TempDir()
				existing := filepath.Join(dir, "mybinary")
				require.NoError(t, os.WriteFile(existing, []byte("old content"), 0755))
				return dir
			},
			targetName: "mybinary",
			validateResult: func(t *testing.T, targetPath string) {
				content, err := os.ReadFile(targetPath)
				require.NoError(t, err)
				assert.Equal(t, "new content", string(content))
			},
		},
		{
			name: "add .exe extension on Windows",
			setupSource: func(t *testing.T) string {
				source := filepath.Join(t.TempDir(), "source.exe")
				require.NoError(t, os.WriteFile(source, []byte("exe content"), 0755))
				return source
			},
			setupTarget: func(t *testing.T) string {
				return t.TempDir()
			},
			targetName: "tool",
			validateResult: func(t *testing.T, targetPath string) {
				if runtime.GOOS == "windows" {
					assert.True(t, strings.HasSuffix(targetPath, ".exe"))
				}
				assert.FileExists(t, targetPath)
			},
		},
		{
			name: "create target directory if missing",
			setupSource: func(t *testing.T) string {
				source := filepath.Join(t.TempDir(), "binary")
				require.NoError(t, os.WriteFile(source, []byte("content"), 0755))
				return source
			},
			setupTarget: func(t *testing.T) string {
				// Return a non-existent directory
				return filepath.Join(t.TempDir(), "new", "bin", "dir")
			},
			targetName: "tool",
			validateResult: func(t *testing.T, targetPath string) {
				assert.FileExists(t, targetPath)
				assert.DirExists(t, filepath.Dir(targetPath))
			},
		},
		{
			name: "alias binary installed under canonical name",
			setupSource: func(t *testing.T) string {
				source := filepath.Join(t.TempDir(), "coding-agent-search")
				require.NoError(t, os.WriteFile(source, []byte("alias build"), 0755))
				return source
			},
			setupTarget: func(t *testing.T) string {
				return t.TempDir()
			},
			targetName: "cass",
			validateResult: func(t *testing.T, targetPath string) {
				assert.Equal(t, "cass", strings.TrimSuffix(filepath.Base(targetPath), ".exe"))
				assert.NoFileExists(t, filepath.Join(filepath.Dir(targetPath), "coding-agent-search"))
			},
		},
		{
			name: "source file not found",
			setupSource: func(t *testing.T) string {
				return "/nonexistent/file"
			},
			setupTarget: func(t *testing.T) string {
				return t.TempDir()
			},
			targetName: "tool",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sourcePath := tt.setupSource(t)
			targetDir := tt.setupTarget(t)

			targetPath, err := InstallBinary(sourcePath, targetDir, tt.targetName)
			if tt.wantErr {
				var installErr *Error
				require.True(t, errors.As(err, &installErr), "got %v", err)
				assert.Equal(t, TargetPath(targetDir, tt.targetName), installErr.Path)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, targetDir, filepath.Dir(targetPath))

			if tt.validateResult != nil {
				tt.validateResult(t, targetPath)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		setupEnv map[string]string
		want     string
	}{
		{
			name: "expand tilde to home",
			path: "~/bin",
			setupEnv: map[string]string{
				"HOME": "/home/user",
			},
			want: "/home/user/bin",
		},
		{
			name: "expand environment variable",
			path: "${GOPATH}/bin",
			setupEnv: map[string]string{
				"GOPATH": "/go",
			},
			want: "/go/bin",
		},
		{
			name: "expand multiple variables",
			path: "${HOME}/.local/${APP_NAME}/bin",
			setupEnv: map[string]string{
				"HOME":     "/home/user",
				"APP_NAME": "myapp",
			},
			want: "/home/user/.local/myapp/bin",
		},
		{
			name: "no expansion needed",
			path: "/usr/local/bin",
			want: "/usr/local/bin",
		},
		{
			name: "empty path",
			path: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.setupEnv {
				t.Setenv(k, v)
			}

			got := expandPath(tt.path)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAtomicInstall(t *testing.T) {
	t.Run("atomic replacement", func(t *testing.T) {
		dir := t.TempDir()
		targetPath := filepath.Join(dir, "binary")

		// Create existing file
		require.NoError(t, os.WriteFile(targetPath, []byte("old"), 0755))

		// Create new content in temp file
		tmpFile := filepath.Join(dir, "new.tmp")
		require.NoError(t, os.WriteFile(tmpFile, []byte("new"), 0755))

		// Perform atomic install
		err := atomicInstall(tmpFile, targetPath)
		require.NoError(t, err)

		// Verify content
		content, err := os.ReadFile(targetPath)
		require.NoError(t, err)
		assert.Equal(t, "new", string(content))

		// Temp file should be gone
		assert.NoFileExists(t, tmpFile)
	})
}

func TestDryRunOutput(t *testing.T) {
	tests := []struct {
		name       string
		sourcePath string
		targetPath string
		want       string
	}{
		{
			name:       "basic dry run message",
			sourcePath: "https://github.com/o/r/releases/download/v1/cass.tar.gz",
			targetPath: "/usr/local/bin/cass",
			want:       "Would install https://github.com/o/r/releases/download/v1/cass.tar.gz to /usr/local/bin/cass",
		},
		{
			name:       "with home directory",
			sourcePath: "/tmp/cass",
			targetPath: "~/bin/cass",
			want:       "Would install /tmp/cass to ~/bin/cass",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DryRunOutput(tt.sourcePath, tt.targetPath)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstallLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(t.TempDir(), "cass")
	require.NoError(t, os.WriteFile(source, []byte("v1"), 0755))

	_, err := InstallBinary(source, dir, "cass")
	require.NoError(t, err)
	_, err = InstallBinary(source, dir, "cass")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(TargetPath(dir, "cass")), entries[0].Name())
}

func TestInstallIntoFileFails(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	source := filepath.Join(t.TempDir(), "cass")
	require.NoError(t, os.WriteFile(source, []byte("v1"), 0755))

	_, err := InstallBinary(source, blocker, "cass")
	var installErr *Error
	require.True(t, errors.As(err, &installErr))
	assert.Contains(t, err.Error(), "failed to create install directory")
}
