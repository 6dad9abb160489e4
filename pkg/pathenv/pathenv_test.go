package pathenv

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/apex/log/handlers/memory"
	"github.com/coding-agent-search/cass-installer/internal/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	entries   []string
	appends   []string
	readErr   error
	appendErr error
}

func (m *memoryStore) Entries() ([]string, error) { return m.entries, m.readErr }
func (m *memoryStore) Location() string           { return "memory" }

func (m *memoryStore) Append(dir string) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.appends = append(m.appends, dir)
	m.entries = append(m.entries, dir)
	return nil
}

func TestIntegrate(t *testing.T) {
	dir := filepath.Join(string(filepath.Separator), "home", "user", ".local", "bin")

	tests := []struct {
		name        string
		entries     []string
		autoAdd     bool
		want        Outcome
		wantAppends int
	}{
		{
			name:    "already present performs no write",
			entries: []string{"/usr/bin", dir},
			autoAdd: true,
			want:    AlreadyPresent,
		},
		{
			name:    "already present with trailing separator",
			entries: []string{dir + string(filepath.Separator)},
			autoAdd: true,
			want:    AlreadyPresent,
		},
		{
			name:        "missing and auto add",
			entries:     []string{"/usr/bin"},
			autoAdd:     true,
			want:        Added,
			wantAppends: 1,
		},
		{
			name:    "missing without auto add",
			entries: []string{"/usr/bin"},
			want:    NotAdded,
		},
		{
			name:        "substring of an existing entry is not a match",
			entries:     []string{dir + "-extra", filepath.Dir(dir)},
			autoAdd:     true,
			want:        Added,
			wantAppends: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryStore{entries: tt.entries}

			got, err := Integrate(store, dir, tt.autoAdd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, store.appends, tt.wantAppends)
		})
	}
}

func TestIntegrateIsIdempotent(t *testing.T) {
	store := &memoryStore{entries: []string{"/usr/bin"}}

	first, err := Integrate(store, "/opt/cass/bin", true)
	require.NoError(t, err)
	second, err := Integrate(store, "/opt/cass/bin", true)
	require.NoError(t, err)

	assert.Equal(t, Added, first)
	assert.Equal(t, AlreadyPresent, second)
	assert.Equal(t, []string{"/opt/cass/bin"}, store.appends)
}

func TestIntegrateFailuresAreWarnings(t *testing.T) {
	boom := errors.New("access denied")

	for _, store := range []*memoryStore{
		{readErr: boom},
		{appendErr: boom},
	} {
		got, err := Integrate(store, "/opt/cass/bin", true)
		assert.Equal(t, NotAdded, got)

		var warning *Warning
		require.True(t, errors.As(err, &warning))
		assert.Equal(t, "/opt/cass/bin", warning.Dir)
		assert.Equal(t, "memory", warning.Location)
		assert.ErrorIs(t, err, boom)
	}
}

func TestSplitList(t *testing.T) {
	sep := string(os.PathListSeparator)
	got := SplitList(strings.Join([]string{"/usr/bin", "", " /bin ", ""}, sep))
	assert.Equal(t, []string{"/usr/bin", "/bin"}, got)
	assert.Nil(t, SplitList(""))
}

func TestProfileStore(t *testing.T) {
	if filepath.Separator != '/' {
		t.Skip("profile store is used on unix-like systems")
	}

	dir := "/home/user/.local/bin"

	t.Run("scenario already on process PATH", func(t *testing.T) {
		rc := filepath.Join(t.TempDir(), ".bashrc")
		pathEnv := "/usr/bin:" + dir
		store := &ProfileStore{Path: rc, Shell: shell.Bash, PathEnv: &pathEnv}

		handler := memory.New()
		log.SetHandler(handler)
		t.Cleanup(func() { log.SetHandler(discard.New()) })

		got, err := Integrate(store, dir, true)
		require.NoError(t, err)
		assert.Equal(t, AlreadyPresent, got)
		assert.NoFileExists(t, rc)

		persisted, err := store.Persisted(dir)
		require.NoError(t, err)
		assert.False(t, persisted)

		require.Len(t, handler.Entries, 1)
		assert.Contains(t, handler.Entries[0].Message, "not persisted")
		assert.Equal(t, rc, handler.Entries[0].Fields["location"])
	})

	t.Run("marked line counts as persisted", func(t *testing.T) {
		rc := filepath.Join(t.TempDir(), ".bashrc")
		line, err := shell.PathLine(shell.Bash, dir)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(rc, []byte(line+"\n"), 0644))
		pathEnv := "/usr/bin:" + dir
		store := &ProfileStore{Path: rc, Shell: shell.Bash, PathEnv: &pathEnv}

		persisted, err := store.Persisted(dir)
		require.NoError(t, err)
		assert.True(t, persisted)

		got, err := Integrate(store, dir, true)
		require.NoError(t, err)
		assert.Equal(t, AlreadyPresent, got)
	})

	t.Run("appends a single marked line", func(t *testing.T) {
		rc := filepath.Join(t.TempDir(), ".zshrc")
		original := "alias ll='ls -l'"
		require.NoError(t, os.WriteFile(rc, []byte(original), 0644))

		pathEnv := "/usr/bin"
		store := &ProfileStore{Path: rc, Shell: shell.Zsh, PathEnv: &pathEnv}

		got, err := Integrate(store, dir, true)
		require.NoError(t, err)
		assert.Equal(t, Added, got)

		got, err = Integrate(store, dir, true)
		require.NoError(t, err)
		assert.Equal(t, AlreadyPresent, got)

		content, err := os.ReadFile(rc)
		require.NoError(t, err)
		line, err := shell.PathLine(shell.Zsh, dir)
		require.NoError(t, err)
		assert.Equal(t, original+"\n"+line+"\n", string(content))
	})

	t.Run("creates fish config with parents", func(t *testing.T) {
		rc := filepath.Join(t.TempDir(), ".config", "fish", "config.fish")
		pathEnv := ""
		store := &ProfileStore{Path: rc, Shell: shell.Fish, PathEnv: &pathEnv}

		got, err := Integrate(store, dir, true)
		require.NoError(t, err)
		assert.Equal(t, Added, got)

		entries, err := store.Entries()
		require.NoError(t, err)
		assert.Equal(t, []string{dir}, entries)
	})

	t.Run("not added leaves profile alone", func(t *testing.T) {
		rc := filepath.Join(t.TempDir(), ".profile")
		pathEnv := "/usr/bin"
		store := &ProfileStore{Path: rc, Shell: shell.POSIX, PathEnv: &pathEnv}

		got, err := Integrate(store, dir, false)
		require.NoError(t, err)
		assert.Equal(t, NotAdded, got)
		assert.NoFileExists(t, rc)
	})

	t.Run("unwritable profile is a warning", func(t *testing.T) {
		parent := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(parent, nil, 0644))
		pathEnv := "/usr/bin"
		store := &ProfileStore{Path: filepath.Join(parent, ".profile"), Shell: shell.POSIX, PathEnv: &pathEnv}

		got, err := Integrate(store, dir, true)
		assert.Equal(t, NotAdded, got)
		var warning *Warning
		assert.True(t, errors.As(err, &warning))
	})
}
