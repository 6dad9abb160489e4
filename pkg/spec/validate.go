package spec

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateAssetTemplate validates that an asset template produces a plain file
// name: no path separators, no parent references and no URL syntax.
func ValidateAssetTemplate(template string) error {
	if strings.TrimSpace(template) == "" {
		return fmt.Errorf("asset template is empty")
	}
	if !strings.Contains(template, "${OS}") && !strings.Contains(template, "${ARCH}") {
		return fmt.Errorf("asset template must reference ${OS} or ${ARCH}: %s", template)
	}

	dangerous := []struct {
		char string
		desc string
	}{
		{"..", "parent reference"},
		{"/", "path separator"},
		{"\\", "path separator"},
		{"?", "query"},
		{"#", "fragment"},
		{"\n", "newline"},
	}

	for _, dc := range dangerous {
		if strings.Contains(template, dc.char) {
			return fmt.Errorf("asset template contains forbidden %s %q: %s", dc.desc, dc.char, template)
		}
	}

	return nil
}

// ValidateRepo checks the owner/name form of a repository identity.
func ValidateRepo(repo string) error {
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid repository format: %q (want owner/name)", repo)
	}
	return nil
}

// Validate checks a project description after defaults are applied.
func (p *Project) Validate() error {
	if err := ValidateRepo(p.Repo); err != nil {
		return err
	}
	if p.Name == "" {
		return fmt.Errorf("binary name is empty")
	}
	if strings.ContainsAny(p.Name, `/\`) || strings.ContainsAny(p.Alias, `/\`) {
		return fmt.Errorf("binary names must not contain path separators")
	}
	if err := ValidateAssetTemplate(p.AssetTemplate); err != nil {
		return err
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base URL: %q", p.BaseURL)
	}
	if p.FallbackVersion == "" {
		return fmt.Errorf("fallback version is empty")
	}
	return nil
}

// Validate checks the operator supplied overrides.
func (r InstallRequest) Validate() error {
	for name, raw := range map[string]string{
		"artifact URL":  r.ArtifactURL,
		"checksum URL":  r.ChecksumURL,
		"signature URL": r.SignatureURL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid %s: %q", name, raw)
		}
	}
	if r.Checksum != "" && !isHex(r.Checksum) {
		return fmt.Errorf("checksum must be hexadecimal: %q", r.Checksum)
	}
	if r.SignatureURL != "" && r.SignatureKeyFile == "" {
		return fmt.Errorf("signature URL given without a signature key")
	}
	if r.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
