package shell

import (
	"bytes"
	"regexp"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// Marker tags every line the installer writes so it can recognise them later.
const Marker = "# added by cass-installer"

var pathTemplates = map[Kind]string{
	POSIX: `export PATH="$PATH":{{ squote .Dir }} {{ .Marker }}`,
	Bash:  `export PATH="$PATH":{{ squote .Dir }} {{ .Marker }}`,
	Zsh:   `export PATH="$PATH":{{ squote .Dir }} {{ .Marker }}`,
	Fish:  `set -gx PATH $PATH {{ fishquote .Dir }} {{ .Marker }}`,
}

var (
	posixLine = regexp.MustCompile(`^export PATH="\$PATH":'((?:[^']|'\\'')*)'\s+` + regexp.QuoteMeta(Marker) + `$`)
	fishLine  = regexp.MustCompile(`^set -gx PATH \$PATH '((?:[^'\\]|\\.)*)'\s+` + regexp.QuoteMeta(Marker) + `$`)
)

// templateData holds the values available to a PATH line template.
type templateData struct {
	Dir    string
	Marker string
}

// PathLine renders the startup-file line that appends dir to PATH for k, so
// directories the user already has keep their precedence.
func PathLine(k Kind, dir string) (string, error) {
	if strings.ContainsAny(dir, "\n\r") {
		return "", errors.Errorf("directory %q contains a line break", dir)
	}

	text, ok := pathTemplates[k]
	if !ok {
		text = pathTemplates[POSIX]
	}

	tmpl, err := template.New("path").Funcs(createFuncMap()).Parse(text)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse path template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{Dir: dir, Marker: Marker}); err != nil {
		return "", errors.Wrap(err, "failed to execute path template")
	}
	return buf.String(), nil
}

// ParsePathLine returns the directory of a line previously written by
// PathLine. Lines without the marker are ignored.
func ParsePathLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasSuffix(line, Marker) {
		return "", false
	}
	if m := posixLine.FindStringSubmatch(line); m != nil {
		return strings.ReplaceAll(m[1], `'\''`, `'`), true
	}
	if m := fishLine.FindStringSubmatch(line); m != nil {
		return fishUnquote(m[1]), true
	}
	return "", false
}

// createFuncMap defines the functions available to the templates.
func createFuncMap() template.FuncMap {
	return template.FuncMap{
		// squote quotes s for POSIX shells.
		"squote": func(s string) string {
			return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
		},
		// fishquote quotes s for fish, where only \ and ' are special
		// inside single quotes.
		"fishquote": func(s string) string {
			r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
			return "'" + r.Replace(s) + "'"
		},
	}
}

func fishUnquote(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
