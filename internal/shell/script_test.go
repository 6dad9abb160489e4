package shell

import (
	"path/filepath"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		shellPath string
		want      Kind
	}{
		{"/bin/bash", Bash},
		{"/usr/bin/zsh", Zsh},
		{"/usr/local/bin/fish", Fish},
		{"/bin/dash", POSIX},
		{"", POSIX},
		{"/opt/homebrew/bin/ZSH", Zsh},
	}

	for _, tt := range tests {
		if got := Detect(tt.shellPath); got != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.shellPath, got, tt.want)
		}
	}
}

func TestRCFile(t *testing.T) {
	home := filepath.FromSlash("/home/user")
	tests := map[Kind]string{
		Bash:  filepath.Join(home, ".bashrc"),
		Zsh:   filepath.Join(home, ".zshrc"),
		Fish:  filepath.Join(home, ".config", "fish", "config.fish"),
		POSIX: filepath.Join(home, ".profile"),
	}

	for k, want := range tests {
		if got := RCFile(home, k); got != want {
			t.Errorf("RCFile(%q) = %q, want %q", k, got, want)
		}
	}
}

func TestPathLine(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
		dir  string
		want string
	}{
		{
			name: "bash",
			kind: Bash,
			dir:  "/home/user/.local/bin",
			want: `export PATH="$PATH":'/home/user/.local/bin' # added by cass-installer`,
		},
		{
			name: "posix with quote in path",
			kind: POSIX,
			dir:  "/home/o'neil/bin",
			want: `export PATH="$PATH":'/home/o'\''neil/bin' # added by cass-installer`,
		},
		{
			name: "dollar sign is not expanded",
			kind: Zsh,
			dir:  "/tmp/$HOME/bin",
			want: `export PATH="$PATH":'/tmp/$HOME/bin' # added by cass-installer`,
		},
		{
			name: "fish",
			kind: Fish,
			dir:  "/home/user/.local/bin",
			want: `set -gx PATH $PATH '/home/user/.local/bin' # added by cass-installer`,
		},
		{
			name: "fish with quote in path",
			kind: Fish,
			dir:  "/home/o'neil/bin",
			want: `set -gx PATH $PATH '/home/o\'neil/bin' # added by cass-installer`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PathLine(tt.kind, tt.dir)
			if err != nil {
				t.Fatalf("PathLine() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("PathLine() = %q, want %q", got, tt.want)
			}

			dir, ok := ParsePathLine(got)
			if !ok {
				t.Fatalf("ParsePathLine(%q) did not recognise the line", got)
			}
			if dir != tt.dir {
				t.Errorf("ParsePathLine() = %q, want %q", dir, tt.dir)
			}
		})
	}
}

func TestPathLineRejectsLineBreaks(t *testing.T) {
	if _, err := PathLine(Bash, "/tmp/a\nrm -rf ~"); err == nil {
		t.Fatal("expected error for directory containing a newline")
	}
}

func TestParsePathLineIgnoresForeignLines(t *testing.T) {
	lines := []string{
		`export PATH="$HOME/bin:$PATH"`,
		`# added by cass-installer`,
		`alias ll='ls -l'`,
		`export PATH=/opt/bin:$PATH # added by cass-installer`,
		`export PATH='/opt/bin':"$PATH" # added by cass-installer`,
		`set -gx PATH '/opt/bin' $PATH # added by cass-installer`,
	}

	for _, line := range lines {
		if dir, ok := ParsePathLine(line); ok {
			t.Errorf("ParsePathLine(%q) = %q, want no match", line, dir)
		}
	}
}
