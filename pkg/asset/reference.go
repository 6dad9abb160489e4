package asset

import (
	"fmt"
	"net/url"
	"path"

	"github.com/coding-agent-search/cass-installer/pkg/spec"
)

// Reference locates one release artifact and its verification resources.
type Reference struct {
	FileName    string `yaml:"file_name"`
	DownloadURL string `yaml:"download_url"`
	ChecksumURL string `yaml:"checksum_url"`
	// SignatureURL is the detached signature location, used only when a
	// signature key is configured.
	SignatureURL string `yaml:"signature_url,omitempty"`
	// Overridden is true when the operator supplied the artifact URL.
	Overridden bool `yaml:"overridden"`
	// Warnings collects non-fatal notes such as a defaulted architecture.
	Warnings []string `yaml:"warnings,omitempty"`
}

// Overrides are operator supplied URLs that replace derived ones.
type Overrides struct {
	ArtifactURL  string
	ChecksumURL  string
	SignatureURL string
}

// Build derives the artifact reference for version on platform p. A full
// artifact URL override is used verbatim and skips name derivation.
func Build(p *spec.Project, version string, plat Platform, o Overrides) (*Reference, error) {
	ref := &Reference{}

	if o.ArtifactURL != "" {
		u, err := url.Parse(o.ArtifactURL)
		if err != nil {
			return nil, fmt.Errorf("invalid artifact URL %q: %w", o.ArtifactURL, err)
		}
		name := path.Base(u.Path)
		if name == "." || name == "/" || name == "" {
			return nil, fmt.Errorf("artifact URL %q has no file name", o.ArtifactURL)
		}
		ref.FileName = name
		ref.DownloadURL = o.ArtifactURL
		ref.Overridden = true
	} else {
		if version == "" {
			return nil, fmt.Errorf("cannot build artifact reference without a version")
		}
		if _, _, warning := plat.Tokens(); warning != nil {
			ref.Warnings = append(ref.Warnings, warning.Error())
		}

		name, err := NewFilenameGenerator(p, version).GenerateFilename(plat)
		if err != nil {
			return nil, err
		}
		ref.FileName = name
		ref.DownloadURL = DownloadURL(p, version, name)
	}

	ref.ChecksumURL = o.ChecksumURL
	if ref.ChecksumURL == "" {
		ref.ChecksumURL = ref.DownloadURL + p.ChecksumSuffix
	}
	ref.SignatureURL = o.SignatureURL
	if ref.SignatureURL == "" {
		ref.SignatureURL = ref.DownloadURL + p.SignatureSuffix
	}

	return ref, nil
}

// DownloadURL returns the release download URL for a file of a tag.
func DownloadURL(p *spec.Project, tag, filename string) string {
	return fmt.Sprintf("%s/%s/releases/download/%s/%s",
		p.BaseURL, p.Repo, url.PathEscape(tag), url.PathEscape(filename))
}
