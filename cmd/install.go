package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/apex/log"
	"github.com/coding-agent-search/cass-installer/pkg/config"
	"github.com/coding-agent-search/cass-installer/pkg/install"
	"github.com/coding-agent-search/cass-installer/pkg/pipeline"
	"github.com/coding-agent-search/cass-installer/pkg/spec"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// installOptions holds the install flags. The root command and the install
// subcommand share one instance.
type installOptions struct {
	binDir       string
	checksum     string
	checksumURL  string
	artifactURL  string
	signatureKey string
	signatureURL string
	addToPath    bool
	verify       bool
	dryRun       bool
	timeout      time.Duration
	output       string
}

var installOpts installOptions

// newPipeline builds the pipeline for a project. Tests replace it to point
// the pipeline at a fake release host.
var newPipeline = pipeline.New

// InstallCommand represents the install command
var InstallCommand = &cobra.Command{
	Use:   "install [VERSION]",
	Short: "Download, verify and install cass",
	Long: `Installs cass from its GitHub releases.

Without VERSION (or with "latest") the newest release is inferred from the
release host's "latest" redirect; when that fails a pinned fallback version is
used and a warning is printed. The artifact is verified against a SHA-256
checksum before anything is extracted, and nothing is written to the install
directory unless every check passes.`,
	Example: `  # Install latest version
  cass-installer install

  # Install specific version
  cass-installer install v0.1.55

  # Install to custom directory and add it to PATH
  cass-installer install --bin-dir=/opt/cass/bin --add-to-path

  # Pin the expected checksum
  cass-installer install v0.1.55 --checksum=<sha256>

  # Dry run mode (show the plan without downloading)
  cass-installer install --dry-run --output=yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstall,
}

func init() {
	addInstallFlags(InstallCommand)
}

func addInstallFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&installOpts.binDir, "bin-dir", "b", "", "Installation directory (default: $"+install.EnvInstallDir+" or ~/.local/bin)")
	f.StringVar(&installOpts.checksum, "checksum", "", "Expected SHA-256 of the artifact")
	f.StringVar(&installOpts.checksumURL, "checksum-url", "", "URL of a checksum file to verify against")
	f.StringVar(&installOpts.artifactURL, "url", "", "Download this artifact instead of the derived one")
	f.StringVar(&installOpts.signatureKey, "signature-key", "", "Armored OpenPGP public key; requires a valid detached signature")
	f.StringVar(&installOpts.signatureURL, "signature-url", "", "URL of the detached signature (default: artifact URL + .sig)")
	f.BoolVar(&installOpts.addToPath, "add-to-path", false, "Add the install directory to your PATH when missing")
	f.BoolVar(&installOpts.verify, "verify", false, "Run the installed binary with --version afterwards")
	f.BoolVarP(&installOpts.dryRun, "dry-run", "n", false, "Resolve and print the plan without downloading")
	f.DurationVar(&installOpts.timeout, "timeout", 0, "Deadline for the whole install (default: from config, or "+spec.DefaultTimeout.String()+")")
	f.StringVarP(&installOpts.output, "output", "o", outputText, "Output format: text or yaml")
}

// request turns the parsed flags and arguments into an install request.
func (o *installOptions) request(args []string) spec.InstallRequest {
	req := spec.InstallRequest{
		BinDir:           o.binDir,
		Checksum:         o.checksum,
		ChecksumURL:      o.checksumURL,
		ArtifactURL:      o.artifactURL,
		SignatureKeyFile: o.signatureKey,
		SignatureURL:     o.signatureURL,
		AddToPath:        o.addToPath,
		Verify:           o.verify,
		DryRun:           o.dryRun,
		Timeout:          o.timeout,
	}
	if len(args) > 0 {
		req.Version = args[0]
	}
	return req
}

func runInstall(cmd *cobra.Command, args []string) error {
	if err := validateOutput(installOpts.output); err != nil {
		return err
	}

	cfg, cfgPath, err := config.LoadOrDiscover(configFile)
	if err != nil {
		log.WithError(err).Error("Failed to load config")
		return err
	}
	if cfgPath != "" {
		log.Debugf("Using config file: %s", cfgPath)
	}

	req := installOpts.request(args)
	cfg.Apply(&req)
	if req.Timeout == 0 {
		req.Timeout = spec.DefaultTimeout
	}

	p := newPipeline(&cfg.Project)
	if !quiet && installOpts.output == outputText {
		p.Progress = progressPrinter(cmd.ErrOrStderr())
	}

	out, err := p.Run(cmd.Context(), req)
	if err != nil {
		fields := log.Fields{"kind": pipeline.Kind(err)}
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			fields["stage"] = stageErr.Stage
		}
		log.WithFields(fields).WithError(err).Error("install failed")
		return err
	}

	return writeOutcome(cmd.OutOrStdout(), out, installOpts.output)
}

// progressPrinter reports download progress on a single rewritten line.
func progressPrinter(w io.Writer) func(downloaded, total int64) {
	return func(downloaded, total int64) {
		if total > 0 {
			percentage := float64(downloaded) * 100.0 / float64(total)
			fmt.Fprintf(w, "\r%.1f%% (%d/%d bytes)", percentage, downloaded, total)
			if downloaded >= total {
				fmt.Fprintln(w)
			}
			return
		}
		fmt.Fprintf(w, "\r%d bytes downloaded", downloaded)
	}
}
