// Package postinstall runs a freshly installed binary to confirm it starts.
package postinstall

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/apex/log"
	goversion "github.com/hashicorp/go-version"
)

// DefaultTimeout bounds a single version check.
const DefaultTimeout = 10 * time.Second

var versionPattern = regexp.MustCompile(`v?\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?`)

// Result is what the binary reported.
type Result struct {
	// Output is the trimmed standard output, verbatim.
	Output string
	// Version is the first version-looking token of Output, if any.
	Version *goversion.Version
}

// Error reports a binary that could not be run or exited unsuccessfully.
type Error struct {
	Path   string
	Output string
	Err    error
}

func (e *Error) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("post-install check of %s failed: %v: %s", e.Path, e.Err, e.Output)
	}
	return fmt.Sprintf("post-install check of %s failed: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Run executes path with arg and returns its output. ctx without a deadline
// gets DefaultTimeout.
func Run(ctx context.Context, path, arg string) (*Result, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, arg)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	log.WithField("path", path).Debugf("running %s", arg)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, &Error{Path: path, Output: strings.TrimSpace(stderr.String()), Err: err}
	}

	out := strings.TrimSpace(stdout.String())
	res := &Result{Output: out}
	if m := versionPattern.FindString(out); m != "" {
		if v, err := goversion.NewVersion(m); err == nil {
			res.Version = v
		}
	}
	return res, nil
}

// Matches reports whether the reported version equals tag. A result without
// a parseable version, or an unparseable tag, never matches.
func (r *Result) Matches(tag string) bool {
	if r == nil || r.Version == nil {
		return false
	}
	want, err := goversion.NewVersion(tag)
	if err != nil {
		return false
	}
	return r.Version.Equal(want)
}
