package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/coding-agent-search/cass-installer/pkg/pipeline"
	"github.com/goccy/go-yaml"
)

const (
	outputText = "text"
	outputYAML = "yaml"
)

// Style definitions
var (
	// Color profile detection
	profile = colorprofile.Detect(os.Stdout, os.Environ())

	headerStyle = func() lipgloss.Style {
		if profile == colorprofile.TrueColor || profile == colorprofile.ANSI256 {
			return lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))
		}
		return lipgloss.NewStyle().Bold(true)
	}()

	labelStyle = func() lipgloss.Style {
		if profile == colorprofile.TrueColor || profile == colorprofile.ANSI256 {
			return lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
		}
		return lipgloss.NewStyle().Faint(true)
	}()

	warningStyle = func() lipgloss.Style {
		if profile == colorprofile.TrueColor || profile == colorprofile.ANSI256 {
			return lipgloss.NewStyle().
				Foreground(lipgloss.Color("214"))
		}
		return lipgloss.NewStyle()
	}()
)

func validateOutput(format string) error {
	switch format {
	case outputText, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want %s or %s)", format, outputText, outputYAML)
	}
}

// writeYAML marshals v with goccy/go-yaml.
func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// writeOutcome prints a finished run or a dry-run plan.
func writeOutcome(w io.Writer, out *pipeline.Outcome, format string) error {
	if format == outputYAML {
		return writeYAML(w, out)
	}

	if out.Plan != nil {
		plan := out.Plan
		fmt.Fprintln(w, headerStyle.Render("Install plan (dry run)"))
		writeField(w, "version", versionLabel(plan.Version, plan.VersionSource))
		writeField(w, "platform", plan.Platform)
		writeField(w, "artifact", plan.Artifact.DownloadURL)
		writeField(w, "checksum", plan.ChecksumSource)
		if plan.Signature {
			writeField(w, "signature", plan.Artifact.SignatureURL)
		}
		writeField(w, "install to", plan.InstallPath)
		writeWarnings(w, out.Warnings)
		return nil
	}

	fmt.Fprintln(w, headerStyle.Render("cass installed"))
	writeField(w, "version", versionLabel(out.Version, out.VersionSource))
	writeField(w, "path", out.InstalledPath)
	writeField(w, "checksum", fmt.Sprintf("%s (%s)", out.Checksum, out.ChecksumOrigin))
	if out.Signed {
		writeField(w, "signature", "verified")
	}
	writeField(w, "PATH", string(out.PathOutcome))
	if out.VerifyOutput != "" {
		writeField(w, "reports", out.VerifyOutput)
	}
	writeWarnings(w, out.Warnings)
	return nil
}

func writeField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label)), value)
}

func writeWarnings(w io.Writer, warnings []string) {
	for _, warning := range warnings {
		fmt.Fprintln(w, warningStyle.Render("  warning: "+strings.TrimSpace(warning)))
	}
}

func versionLabel(version, source string) string {
	return version + " (" + source + ")"
}
