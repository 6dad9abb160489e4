package checksums

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/apex/log"
	"github.com/coding-agent-search/cass-installer/pkg/httpclient"
	"github.com/pkg/errors"
)

// maxChecksumSize caps how much of a checksum resource is read.
const maxChecksumSize = 1 << 20

// ErrNotConfigured is returned by a Source that has nothing to offer, which
// lets the Chain move on to the next one.
var ErrNotConfigured = errors.New("checksum source not configured")

// Origin names where a checksum came from.
type Origin string

const (
	OriginExplicitValue Origin = "explicit value"
	OriginExplicitURL   Origin = "explicit URL"
	OriginDerivedURL    Origin = "derived URL"
)

// Result is a checksum together with its origin.
type Result struct {
	Value  string
	Origin Origin
	URL    string
}

// Source produces the expected checksum for an artifact file name.
type Source interface {
	Checksum(ctx context.Context, filename string) (Result, error)
}

// UnavailableError means a configured checksum source could not produce a
// value. Installing without a checksum is refused.
type UnavailableError struct {
	URL        string
	Filename   string
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	switch {
	case e.URL == "":
		return fmt.Sprintf("no checksum available for %s", e.Filename)
	case e.StatusCode != 0:
		return fmt.Sprintf("checksum for %s unavailable: %s returned HTTP %d", e.Filename, e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("checksum for %s unavailable from %s: %v", e.Filename, e.URL, e.Err)
	}
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Chain tries its sources in order. Sources returning ErrNotConfigured are
// skipped; the first configured source decides, and a configured source
// that fails aborts the chain instead of falling through to a weaker one.
type Chain []Source

// Checksum resolves the expected checksum for filename.
func (c Chain) Checksum(ctx context.Context, filename string) (Result, error) {
	for _, src := range c {
		res, err := src.Checksum(ctx, filename)
		if errors.Is(err, ErrNotConfigured) {
			continue
		}
		if err != nil {
			return Result{}, err
		}
		log.WithField("origin", res.Origin).Debugf("expected checksum %s", res.Value)
		return res, nil
	}
	return Result{}, &UnavailableError{Filename: filename}
}

// NewChain builds the standard priority chain: explicit value, then explicit
// checksum URL, then the URL derived from the artifact URL.
func NewChain(client *http.Client, value, explicitURL, derivedURL string) Chain {
	return Chain{
		Value(value),
		&URLSource{URL: explicitURL, Origin: OriginExplicitURL, Client: client},
		&URLSource{URL: derivedURL, Origin: OriginDerivedURL, Client: client},
	}
}

// Value is an operator supplied checksum.
type Value string

// Checksum implements Source.
func (v Value) Checksum(ctx context.Context, filename string) (Result, error) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return Result{}, ErrNotConfigured
	}
	if !IsHex(s) {
		return Result{}, &UnavailableError{Filename: filename, Err: fmt.Errorf("explicit checksum %q is not hexadecimal", s)}
	}
	return Result{Value: strings.ToLower(s), Origin: OriginExplicitValue}, nil
}

// URLSource fetches a checksum resource over HTTP.
type URLSource struct {
	URL    string
	Origin Origin
	Client *http.Client
}

// Checksum implements Source. A single GET is made; there are no retries.
func (s *URLSource) Checksum(ctx context.Context, filename string) (Result, error) {
	if s.URL == "" {
		return Result{}, ErrNotConfigured
	}

	client := s.Client
	if client == nil {
		client = httpclient.NewGitHubClient()
	}

	log.WithField("url", s.URL).Info("fetching checksum")
	req, err := httpclient.NewRequest(ctx, s.URL)
	if err != nil {
		return Result{}, &UnavailableError{URL: s.URL, Filename: filename, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, &UnavailableError{URL: s.URL, Filename: filename, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, &UnavailableError{URL: s.URL, Filename: filename, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxChecksumSize))
	if err != nil {
		return Result{}, &UnavailableError{URL: s.URL, Filename: filename, Err: errors.Wrap(err, "failed to read checksum resource")}
	}

	value, err := FindChecksum(string(body), filename)
	if err != nil {
		return Result{}, &UnavailableError{URL: s.URL, Filename: filename, Err: err}
	}

	return Result{Value: value, Origin: s.Origin, URL: s.URL}, nil
}
