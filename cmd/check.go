package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"

	"github.com/apex/log"
	"github.com/coding-agent-search/cass-installer/pkg/asset"
	"github.com/coding-agent-search/cass-installer/pkg/config"
	"github.com/coding-agent-search/cass-installer/pkg/httpclient"
	"github.com/coding-agent-search/cass-installer/pkg/resolve"
	"github.com/coding-agent-search/cass-installer/pkg/spec"
	"github.com/spf13/cobra"
)

var (
	// Flags for check command
	checkCheckAssets bool
)

// releasePlatforms are the platforms cass publishes artifacts for.
var releasePlatforms = []asset.Platform{
	{OS: "linux", Arch: "amd64"},
	{OS: "linux", Arch: "arm64"},
	{OS: "darwin", Arch: "amd64"},
	{OS: "darwin", Arch: "arm64"},
	{OS: "windows", Arch: "amd64"},
}

// CheckCommand represents the check command
var CheckCommand = &cobra.Command{
	Use:   "check [VERSION]",
	Short: "Show artifact names for every platform and check they exist",
	Long: `Checks the effective configuration by:
- Validating the release description
- Resolving the version (explicit, or latest via the release redirect)
- Generating the artifact and checksum URL for every published platform
- Checking that each artifact exists on the release host (default: enabled)

This makes it easy to validate an asset template or mirror before running an
install.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := config.LoadOrDiscover(configFile)
		if err != nil {
			log.WithError(err).Error("Failed to load config")
			return err
		}

		version := ""
		if len(args) > 0 {
			version = args[0]
		}

		c := &checker{
			Project:  &cfg.Project,
			Client:   httpclient.NewGitHubClient(),
			Resolver: resolve.NewResolver(&cfg.Project),
		}
		return c.Run(cmd.Context(), version, checkCheckAssets, cmd.OutOrStdout())
	},
}

func init() {
	CheckCommand.Flags().BoolVar(&checkCheckAssets, "check-assets", true, "Check that the artifacts exist on the release host")
}

// checker previews the artifacts a release provides for each platform.
type checker struct {
	Project  *spec.Project
	Client   *http.Client
	Resolver *resolve.Resolver
}

// assetRow is one line of the check table.
type assetRow struct {
	Platform asset.Platform
	Ref      *asset.Reference
	Status   string
}

// Run validates the project, resolves version and writes one row per platform.
// It fails when any artifact is missing.
func (c *checker) Run(ctx context.Context, version string, checkAssets bool, w io.Writer) error {
	if err := c.Project.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	log.Info("✓ configuration is valid")

	release := resolve.ResolveVersion(ctx, c.Resolver, c.Project.Repo, version)
	log.Infof("Checking assets for version: %s (%s)", release.Version, release.Source)

	rows, err := c.rows(release.Version)
	if err != nil {
		return err
	}

	missing := 0
	if checkAssets {
		for i := range rows {
			rows[i].Status = c.status(ctx, rows[i].Ref.DownloadURL)
			if rows[i].Status != statusExists {
				missing++
			}
		}
	}

	displayAssetRows(w, rows, checkAssets)

	if missing > 0 {
		return fmt.Errorf("%d of %d artifacts are not available for %s", missing, len(rows), release.Version)
	}
	log.Info("✓ Check completed successfully")
	return nil
}

func (c *checker) rows(version string) ([]assetRow, error) {
	rows := make([]assetRow, 0, len(releasePlatforms))
	for _, p := range releasePlatforms {
		ref, err := asset.Build(c.Project, version, p, asset.Overrides{})
		if err != nil {
			return nil, fmt.Errorf("failed to generate asset filename for %s: %w", p, err)
		}
		rows = append(rows, assetRow{Platform: p, Ref: ref})
	}
	return rows, nil
}

const (
	statusExists  = "✓ EXISTS"
	statusMissing = "✗ MISSING"
)

// status issues a HEAD request for url; redirects to the storage host are followed.
func (c *checker) status(ctx context.Context, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "✗ " + err.Error()
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		log.WithError(err).Debugf("HEAD %s failed", url)
		return "✗ UNREACHABLE"
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return statusExists
	case resp.StatusCode == http.StatusNotFound:
		return statusMissing
	default:
		return fmt.Sprintf("✗ HTTP %d", resp.StatusCode)
	}
}

// displayAssetRows displays the generated asset filenames in a table format
func displayAssetRows(out io.Writer, rows []assetRow, withStatus bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if withStatus {
		fmt.Fprintln(w, "PLATFORM\tASSET FILENAME\tSTATUS")
		fmt.Fprintln(w, "--------\t--------------\t------")
	} else {
		fmt.Fprintln(w, "PLATFORM\tASSET FILENAME")
		fmt.Fprintln(w, "--------\t--------------")
	}

	for _, row := range rows {
		if withStatus {
			fmt.Fprintf(w, "%s\t%s\t%s\n", row.Platform, row.Ref.FileName, row.Status)
		} else {
			fmt.Fprintf(w, "%s\t%s\n", row.Platform, row.Ref.FileName)
		}
	}

	w.Flush()
}
