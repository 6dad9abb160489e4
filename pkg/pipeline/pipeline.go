// Package pipeline runs an install end to end: resolve the release, build
// the artifact reference, download and verify, extract, locate the binary,
// install it and integrate the install directory with PATH.
package pipeline

import (
	"context"
	"net/http"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/apex/log"
	"github.com/coding-agent-search/cass-installer/pkg/archive"
	"github.com/coding-agent-search/cass-installer/pkg/asset"
	"github.com/coding-agent-search/cass-installer/pkg/checksums"
	"github.com/coding-agent-search/cass-installer/pkg/fetch"
	"github.com/coding-agent-search/cass-installer/pkg/httpclient"
	"github.com/coding-agent-search/cass-installer/pkg/install"
	"github.com/coding-agent-search/cass-installer/pkg/pathenv"
	"github.com/coding-agent-search/cass-installer/pkg/postinstall"
	"github.com/coding-agent-search/cass-installer/pkg/resolve"
	"github.com/coding-agent-search/cass-installer/pkg/spec"
	"github.com/coding-agent-search/cass-installer/pkg/verify"
	"github.com/pkg/errors"
)

// Plan is what a dry run reports.
type Plan struct {
	Version        string           `yaml:"version"`
	VersionSource  string           `yaml:"version_source"`
	Platform       string           `yaml:"platform"`
	Artifact       *asset.Reference `yaml:"artifact"`
	ChecksumSource string           `yaml:"checksum_source"`
	Signature      bool             `yaml:"signature"`
	InstallPath    string           `yaml:"install_path"`
	Summary        string           `yaml:"summary"`
}

// Outcome describes a finished run. Non-fatal problems are listed in
// Warnings and kept as typed errors in Issues.
type Outcome struct {
	Version        string           `yaml:"version"`
	VersionSource  string           `yaml:"version_source"`
	ArtifactURL    string           `yaml:"artifact_url,omitempty"`
	Checksum       string           `yaml:"checksum,omitempty"`
	ChecksumOrigin checksums.Origin `yaml:"checksum_origin,omitempty"`
	Signed         bool             `yaml:"signed,omitempty"`
	BinaryVariant  string           `yaml:"binary_variant,omitempty"`
	InstalledPath  string           `yaml:"installed_path,omitempty"`
	PathOutcome    pathenv.Outcome  `yaml:"path,omitempty"`
	VerifyOutput   string           `yaml:"verify_output,omitempty"`
	Warnings       []string         `yaml:"warnings,omitempty"`
	Plan           *Plan            `yaml:"plan,omitempty"`

	Issues []error `yaml:"-"`
}

func (o *Outcome) warn(err error) {
	o.Issues = append(o.Issues, err)
	o.Warnings = append(o.Warnings, err.Error())
}

// Pipeline holds the collaborators of an install run. Zero-valued fields
// get production defaults.
type Pipeline struct {
	Project *spec.Project
	// Client is used for artifact, checksum and signature downloads.
	Client   *http.Client
	Resolver *resolve.Resolver
	// Platform overrides host detection when set.
	Platform *asset.Platform
	// PathStore overrides the user's persistent PATH setting.
	PathStore pathenv.Store
	// ScratchDir is the parent of per-run scratch directories.
	ScratchDir string
	Progress   fetch.ProgressFunc
}

// New returns a Pipeline for project with default collaborators.
func New(project *spec.Project) *Pipeline {
	if project == nil {
		project = spec.DefaultProject()
	}
	return &Pipeline{
		Project:  project,
		Client:   httpclient.NewGitHubClient(),
		Resolver: resolve.NewResolver(project),
	}
}

// Run executes one install. Fatal failures are returned as *StageError and
// leave the install directory untouched.
func (p *Pipeline) Run(ctx context.Context, req spec.InstallRequest) (*Outcome, error) {
	if p.Project == nil {
		p.Project = spec.DefaultProject()
	}
	project := p.Project

	if err := req.Validate(); err != nil {
		return nil, &StageError{Stage: StageRequest, Err: err}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	binDir, err := install.ResolveInstallDir(req.BinDir)
	if err != nil {
		return nil, &StageError{Stage: StageInstall, Err: &install.Error{Path: req.BinDir, Err: err}}
	}

	out := &Outcome{}

	// resolve
	release := p.resolve(ctx, req)
	out.Version = release.Version
	out.VersionSource = string(release.Source)
	if release.Warning != nil {
		out.warn(release.Warning)
	}
	log.WithFields(log.Fields{"version": out.Version, "source": out.VersionSource}).Info("release selected")

	// reference
	plat := p.platform(ctx)
	ref, err := asset.Build(project, release.Version, plat, asset.Overrides{
		ArtifactURL:  req.ArtifactURL,
		ChecksumURL:  req.ChecksumURL,
		SignatureURL: req.SignatureURL,
	})
	if err != nil {
		return nil, &StageError{Stage: StageReference, Err: err}
	}
	for _, w := range ref.Warnings {
		log.Warn(w)
		out.Warnings = append(out.Warnings, w)
	}
	out.ArtifactURL = ref.DownloadURL
	log.WithFields(log.Fields{"platform": plat, "file": ref.FileName}).Info("artifact selected")

	installPath := install.TargetPath(binDir, project.Name)
	if req.DryRun {
		out.Plan = &Plan{
			Version:        out.Version,
			VersionSource:  out.VersionSource,
			Platform:       plat.String(),
			Artifact:       ref,
			ChecksumSource: checksumSource(req, ref),
			Signature:      req.SignatureKeyFile != "",
			InstallPath:    installPath,
			Summary:        install.DryRunOutput(ref.DownloadURL, installPath),
		}
		log.Info(out.Plan.Summary)
		return out, nil
	}

	var keyring openpgp.EntityList
	if req.SignatureKeyFile != "" {
		keyring, err = verify.LoadKeyring(req.SignatureKeyFile)
		if err != nil {
			return nil, &StageError{Stage: StageSignature, Err: &verify.SignatureError{File: ref.FileName, Err: err}}
		}
	}

	scratch, err := os.MkdirTemp(p.ScratchDir, "cass-install-*")
	if err != nil {
		return nil, &StageError{Stage: StageDownload, Err: errors.Wrap(err, "failed to create scratch directory")}
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.WithError(err).Debug("failed to remove scratch directory")
		}
	}()

	// download + checksum (+ signature)
	fetcher := &fetch.Fetcher{
		Client:     p.client(),
		ScratchDir: scratch,
		Checksums: checksums.NewChain(p.client(), req.Checksum, req.ChecksumURL,
			ref.DownloadURL+project.ChecksumSuffix),
		Keyring:  keyring,
		Progress: p.Progress,
	}
	artifact, err := fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, &StageError{Stage: fetchStage(err), Err: err}
	}
	out.Checksum = artifact.Checksum
	out.ChecksumOrigin = artifact.ChecksumOrigin
	out.Signed = artifact.Signed

	// extract
	extractor := archive.NewExtractor(0)
	extractor.TempDir = scratch
	tree, err := extractor.ExtractToScratch(artifact.Path)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}
	defer tree.Cleanup()

	// locate
	match, err := archive.Locate(tree.Root, project.Name, project.Alias)
	if err != nil {
		return nil, &StageError{Stage: StageLocate, Err: err}
	}
	out.BinaryVariant = match.Variant.String()
	if match.Variant == archive.Alias {
		w := errors.Errorf("archive ships the binary as %q; installing it as %q", project.Alias, project.Name)
		log.Warn(w.Error())
		out.Warnings = append(out.Warnings, w.Error())
	}

	// install
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageInstall, Err: err}
	}
	installed, err := install.InstallBinary(match.Path, binDir, project.Name)
	if err != nil {
		return nil, &StageError{Stage: StageInstall, Err: err}
	}
	out.InstalledPath = installed
	log.WithField("path", installed).Info("installed")

	// From here on nothing is fatal
	p.integratePath(out, binDir, req.AddToPath)

	if req.Verify {
		p.verifyInstalled(ctx, out, installed)
	}

	return out, nil
}

func (p *Pipeline) resolve(ctx context.Context, req spec.InstallRequest) resolve.Release {
	if !req.WantsLatest() {
		return resolve.Release{Version: req.Version, Source: resolve.SourceExplicit}
	}
	r := p.Resolver
	if r == nil {
		r = resolve.NewResolver(p.Project)
	}
	return r.Resolve(ctx, p.Project.Repo)
}

func (p *Pipeline) platform(ctx context.Context) asset.Platform {
	if p.Platform != nil {
		return *p.Platform
	}
	return asset.DetectPlatform(ctx)
}

func (p *Pipeline) client() *http.Client {
	if p.Client == nil {
		p.Client = httpclient.NewGitHubClient()
	}
	return p.Client
}

func (p *Pipeline) integratePath(out *Outcome, binDir string, autoAdd bool) {
	store := p.PathStore
	if store == nil {
		var err error
		store, err = pathenv.DefaultStore()
		if err != nil {
			out.PathOutcome = pathenv.NotAdded
			out.warn(&pathenv.Warning{Dir: binDir, Location: "PATH", Err: err})
			return
		}
	}

	outcome, err := pathenv.Integrate(store, binDir, autoAdd)
	out.PathOutcome = outcome
	if err != nil {
		log.WithError(err).Warn("PATH not updated")
		out.warn(err)
		return
	}
	if outcome == pathenv.NotAdded {
		log.Infof("%s is not on your PATH; add it or rerun with --add-to-path", binDir)
	}
}

func (p *Pipeline) verifyInstalled(ctx context.Context, out *Outcome, installed string) {
	res, err := postinstall.Run(ctx, installed, p.Project.VersionArg)
	if err != nil {
		log.WithError(err).Warn("installed binary did not run")
		out.warn(err)
		return
	}
	out.VerifyOutput = res.Output
	log.WithField("output", res.Output).Info("installed binary runs")

	if res.Version != nil && out.Version != "" && !res.Matches(out.Version) {
		w := errors.Errorf("installed binary reports version %s, expected %s", res.Version, out.Version)
		log.Warn(w.Error())
		out.Warnings = append(out.Warnings, w.Error())
	}
}

func checksumSource(req spec.InstallRequest, ref *asset.Reference) string {
	switch {
	case req.Checksum != "":
		return string(checksums.OriginExplicitValue)
	case req.ChecksumURL != "":
		return string(checksums.OriginExplicitURL) + " " + req.ChecksumURL
	default:
		return string(checksums.OriginDerivedURL) + " " + ref.ChecksumURL
	}
}
