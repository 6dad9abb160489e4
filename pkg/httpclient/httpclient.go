package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultTimeout bounds every single request made by the installer.
const DefaultTimeout = 30 * time.Second

// UserAgent identifies the installer to the release host. main overrides the
// version part at startup.
var UserAgent = "cass-installer/dev"

// SetVersion sets the version reported in the User-Agent header.
func SetVersion(version string) {
	if version != "" {
		UserAgent = "cass-installer/" + version
	}
}

// NewClient creates an HTTP client with the given timeout that identifies
// itself and adds the GitHub token from GITHUB_TOKEN to GitHub requests.
// Redirects are followed as usual.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &gitHubTransport{
			Base: http.DefaultTransport,
		},
	}
}

// NewGitHubClient creates a client with the default timeout.
func NewGitHubClient() *http.Client {
	return NewClient(DefaultTimeout)
}

// gitHubTransport is a custom RoundTripper that adds the User-Agent and GitHub authentication
type gitHubTransport struct {
	Base http.RoundTripper
}

// RoundTrip implements the http.RoundTripper interface
func (t *gitHubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	req2 := req.Clone(req.Context())

	if req2.Header.Get("User-Agent") == "" {
		req2.Header.Set("User-Agent", UserAgent)
	}

	// Redirect targets on other hosts never see the token
	if isGitHubURL(req2.URL) && req2.Header.Get("Authorization") == "" {
		if token := os.Getenv("GITHUB_TOKEN"); token != "" {
			req2.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return t.Base.RoundTrip(req2)
}

// NewRequest creates a GET request bound to ctx with the installer's User-Agent.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	return req, nil
}

// isGitHubURL checks if a URL points at a GitHub owned host
func isGitHubURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "github.com" || strings.HasSuffix(host, ".github.com") ||
		host == "githubusercontent.com" || strings.HasSuffix(host, ".githubusercontent.com")
}
