package asset

import (
	"fmt"
	"strings"

	"github.com/buildkite/interpolate"
	"github.com/coding-agent-search/cass-installer/pkg/spec"
)

// FilenameGenerator generates artifact file names from the project's template
type FilenameGenerator struct {
	Project *spec.Project
	Version string
}

// NewFilenameGenerator creates a new filename generator
func NewFilenameGenerator(project *spec.Project, version string) *FilenameGenerator {
	return &FilenameGenerator{
		Project: project,
		Version: version,
	}
}

// GenerateFilename creates an artifact file name for a platform
func (g *FilenameGenerator) GenerateFilename(p Platform) (string, error) {
	if g.Project == nil || g.Project.AssetTemplate == "" {
		return "", fmt.Errorf("asset template not defined")
	}

	osToken, archToken, _ := p.Tokens()

	vars := map[string]string{
		"OS":   osToken,
		"ARCH": archToken,
		"EXT":  p.Extension(),
	}

	filename, err := g.interpolateTemplate(g.Project.AssetTemplate, vars)
	if err != nil {
		return "", fmt.Errorf("failed to interpolate asset template: %w", err)
	}
	if filename == "" {
		return "", fmt.Errorf("asset template %q produced an empty file name", g.Project.AssetTemplate)
	}

	return filename, nil
}

// interpolateTemplate performs variable substitution in a template string
func (g *FilenameGenerator) interpolateTemplate(template string, additionalVars map[string]string) (string, error) {
	envMap := map[string]string{
		"NAME": g.Project.Name,
		"TAG":  g.Version, // Original tag with 'v' prefix if present
	}

	// VERSION is the tag without its 'v' prefix
	envMap["VERSION"] = strings.TrimPrefix(g.Version, "v")

	for k, v := range additionalVars {
		envMap[k] = v
	}

	env := interpolate.NewMapEnv(envMap)
	return interpolate.Interpolate(env, template)
}
