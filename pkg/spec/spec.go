package spec

import (
	"strings"
	"time"
)

const (
	// DefaultRepo is the GitHub repository that publishes cass releases.
	DefaultRepo = "Dicklesworthstone/coding_agent_session_search"
	// DefaultName is the canonical installed name of the executable.
	DefaultName = "cass"
	// DefaultAlias is the historical executable name shipped by older archives.
	DefaultAlias = "coding-agent-search"
	// DefaultAssetTemplate matches the file names produced by the release workflow.
	DefaultAssetTemplate = "${NAME}-${TAG}-${ARCH}-${OS}.${EXT}"
	// DefaultBaseURL is the release host.
	DefaultBaseURL = "https://github.com"
	// DefaultChecksumSuffix is appended to the artifact URL to locate its checksum.
	DefaultChecksumSuffix = ".sha256"
	// DefaultSignatureSuffix is appended to the artifact URL to locate its detached signature.
	DefaultSignatureSuffix = ".sig"
	// DefaultVersionArg makes the installed binary report its version.
	DefaultVersionArg = "--version"

	// FallbackVersion is used when the latest release cannot be inferred.
	// It goes stale; bump it with every release.
	FallbackVersion = "v0.1.55"

	// DefaultTimeout bounds a whole install run.
	DefaultTimeout = 5 * time.Minute
)

// Project describes where releases of the tool live and how they are named.
type Project struct {
	Repo            string `yaml:"repo"`
	Name            string `yaml:"name"`
	Alias           string `yaml:"alias"`
	AssetTemplate   string `yaml:"asset_template"`
	BaseURL         string `yaml:"base_url"`
	ChecksumSuffix  string `yaml:"checksum_suffix"`
	SignatureSuffix string `yaml:"signature_suffix"`
	FallbackVersion string `yaml:"fallback_version"`
	VersionArg      string `yaml:"version_arg"`
}

// DefaultProject returns the compiled-in project description.
func DefaultProject() *Project {
	p := &Project{}
	p.SetDefaults()
	return p
}

// SetDefaults fills every empty field with its compiled-in default.
func (p *Project) SetDefaults() {
	if p.Repo == "" {
		p.Repo = DefaultRepo
	}
	if p.Name == "" {
		p.Name = DefaultName
	}
	if p.Alias == "" {
		p.Alias = DefaultAlias
	}
	if p.AssetTemplate == "" {
		p.AssetTemplate = DefaultAssetTemplate
	}
	if p.BaseURL == "" {
		p.BaseURL = DefaultBaseURL
	}
	p.BaseURL = strings.TrimRight(p.BaseURL, "/")
	if p.ChecksumSuffix == "" {
		p.ChecksumSuffix = DefaultChecksumSuffix
	}
	if p.SignatureSuffix == "" {
		p.SignatureSuffix = DefaultSignatureSuffix
	}
	if p.FallbackVersion == "" {
		p.FallbackVersion = FallbackVersion
	}
	if p.VersionArg == "" {
		p.VersionArg = DefaultVersionArg
	}
}

// InstallRequest is the operator supplied configuration for one install run.
type InstallRequest struct {
	// Version is an explicit release tag. Empty or "latest" means resolve it.
	Version string
	// BinDir is the destination directory. Empty means the per-user default.
	BinDir string
	// Checksum is an explicit SHA-256 value for the artifact.
	Checksum string
	// ChecksumURL points at an explicit checksum resource.
	ChecksumURL string
	// ArtifactURL replaces the derived download URL entirely.
	ArtifactURL string
	// SignatureKeyFile is an armored OpenPGP public key. When set the
	// artifact's detached signature must verify against it.
	SignatureKeyFile string
	// SignatureURL points at an explicit detached signature.
	SignatureURL string
	// AddToPath appends BinDir to the persistent user path when missing.
	AddToPath bool
	// Verify runs the installed binary's version command afterwards.
	Verify bool
	// DryRun stops once the artifact reference is known.
	DryRun bool
	// Timeout is the overall deadline for the run. Zero disables it.
	Timeout time.Duration
}

// WantsLatest reports whether the version must be resolved from the release host.
func (r InstallRequest) WantsLatest() bool {
	return r.Version == "" || strings.EqualFold(r.Version, "latest")
}
