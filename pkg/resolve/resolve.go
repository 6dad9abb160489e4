package resolve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/apex/log"
	"github.com/coding-agent-search/cass-installer/pkg/httpclient"
	"github.com/coding-agent-search/cass-installer/pkg/spec"
)

// Source records how a release version was obtained.
type Source string

const (
	SourceRedirect Source = "redirect"
	SourceExplicit Source = "explicit"
	SourceFallback Source = "fallback"
)

// Release is the version the rest of the install run works with.
// Version is never empty.
type Release struct {
	Version string
	Source  Source
	// Warning is a *DegradedError when Source is SourceFallback.
	Warning error
}

// Reason explains why redirect resolution degraded to the fallback version.
type Reason string

const (
	ReasonRequestFailed Reason = "request failed"
	ReasonNoFinalURL    Reason = "no final URL"
	ReasonNotTagURL     Reason = "final URL is not a release tag URL"
	ReasonOtherRepo     Reason = "final URL is a release tag of another repository"
)

// DegradedError is the non-fatal warning attached to a fallback Release.
type DegradedError struct {
	URL      string
	Final    string
	Reason   Reason
	Fallback string
	Err      error
}

func (e *DegradedError) Error() string {
	msg := fmt.Sprintf("could not infer latest release from %s: %s", e.URL, e.Reason)
	if e.Final != "" {
		msg += fmt.Sprintf(" (%s)", e.Final)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + fmt.Sprintf("; using %s", e.Fallback)
}

func (e *DegradedError) Unwrap() error { return e.Err }

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// tagPath matches /<owner>/<repo>/releases/tag/<tag>
var tagPath = regexp.MustCompile(`^/([^/]+/[^/]+)/releases/tag/([^/]+)/?$`)

// Resolver infers the latest release tag from where the release host's
// "latest release" page redirects to. No API and no response body is used.
type Resolver struct {
	Client   Doer
	BaseURL  string
	Fallback string
}

// NewResolver creates a Resolver for the project's release host.
func NewResolver(p *spec.Project) *Resolver {
	return &Resolver{
		Client:   httpclient.NewClient(httpclient.DefaultTimeout),
		BaseURL:  p.BaseURL,
		Fallback: p.FallbackVersion,
	}
}

// LatestURL returns the canonical "latest release" URL for repo.
func (r *Resolver) LatestURL(repo string) string {
	return fmt.Sprintf("%s/%s/releases/latest", r.BaseURL, repo)
}

// Resolve issues a single GET against the latest release URL and reads the
// tag from the final URL after redirects. Every failure degrades to the
// fallback version with a warning; there are no retries.
func (r *Resolver) Resolve(ctx context.Context, repo string) Release {
	latest := r.LatestURL(repo)
	log.WithField("url", latest).Debug("resolving latest release via redirect")

	req, err := httpclient.NewRequest(ctx, latest)
	if err != nil {
		return r.fallback(&DegradedError{URL: latest, Reason: ReasonRequestFailed, Err: err})
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return r.fallback(&DegradedError{URL: latest, Reason: ReasonRequestFailed, Err: err})
	}
	defer resp.Body.Close()
	// The body is never parsed; drain a little so the connection can be reused
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)

	if resp.Request == nil || resp.Request.URL == nil {
		return r.fallback(&DegradedError{URL: latest, Reason: ReasonNoFinalURL})
	}

	final := resp.Request.URL
	tagRepo, tag, ok := TagFromURL(final)
	if !ok {
		return r.fallback(&DegradedError{URL: latest, Final: final.String(), Reason: ReasonNotTagURL})
	}
	// Owner and repository names are case-insensitive on the release host
	if !strings.EqualFold(tagRepo, repo) {
		return r.fallback(&DegradedError{URL: latest, Final: final.String(), Reason: ReasonOtherRepo})
	}

	log.WithField("tag", tag).Debug("latest release resolved")
	return Release{Version: tag, Source: SourceRedirect}
}

// TagFromURL splits a release tag URL into the "owner/repo" it belongs to
// and its trailing tag segment.
func TagFromURL(u *url.URL) (repo, tag string, ok bool) {
	if u == nil {
		return "", "", false
	}
	m := tagPath.FindStringSubmatch(u.EscapedPath())
	if m == nil {
		return "", "", false
	}
	repo, err := url.PathUnescape(m[1])
	if err != nil {
		return "", "", false
	}
	tag, err = url.PathUnescape(m[2])
	if err != nil || tag == "" {
		return "", "", false
	}
	return repo, tag, true
}

func (r *Resolver) fallback(w *DegradedError) Release {
	w.Fallback = r.Fallback
	if w.Fallback == "" {
		w.Fallback = spec.FallbackVersion
	}
	log.WithError(w).Warn("latest release unavailable, falling back")
	return Release{Version: w.Fallback, Source: SourceFallback, Warning: w}
}

// ResolveVersion returns the explicit version when one was given and
// otherwise asks the resolver.
func ResolveVersion(ctx context.Context, r *Resolver, repo, version string) Release {
	req := spec.InstallRequest{Version: version}
	if !req.WantsLatest() {
		return Release{Version: version, Source: SourceExplicit}
	}
	return r.Resolve(ctx, repo)
}
