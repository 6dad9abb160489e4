package fetch

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/apex/log"
	"github.com/coding-agent-search/cass-installer/pkg/asset"
	"github.com/coding-agent-search/cass-installer/pkg/checksums"
	"github.com/coding-agent-search/cass-installer/pkg/verify"
)

// VerifiedArtifact is a downloaded artifact whose checksum matched. Values of
// this type are only produced by a successful Fetch.
type VerifiedArtifact struct {
	Path           string
	FileName       string
	Algorithm      string
	Checksum       string
	ChecksumOrigin checksums.Origin
	ChecksumURL    string
	Signed         bool
}

// Fetcher downloads an artifact into a scratch directory and refuses to hand
// it on unless its checksum (and, when a keyring is set, its signature) verifies.
type Fetcher struct {
	Client     *http.Client
	ScratchDir string
	// Checksums yields the expected checksum. It is required.
	Checksums checksums.Source
	// Keyring enables detached signature verification when non-empty.
	Keyring  openpgp.EntityList
	Progress ProgressFunc
}

// Fetch runs download, checksum lookup, hash comparison and the optional
// signature check strictly in that order. Any failure removes the download.
func (f *Fetcher) Fetch(ctx context.Context, ref *asset.Reference) (va *VerifiedArtifact, err error) {
	dest := filepath.Join(f.ScratchDir, ref.FileName)
	defer func() {
		if err != nil {
			os.Remove(dest)
		}
	}()

	log.WithField("url", ref.DownloadURL).Info("downloading artifact")
	if err := DownloadWithProgress(ctx, f.Client, ref.DownloadURL, dest, f.Progress); err != nil {
		return nil, err
	}

	if f.Checksums == nil {
		return nil, &checksums.UnavailableError{Filename: ref.FileName}
	}
	expected, err := f.Checksums.Checksum(ctx, ref.FileName)
	if err != nil {
		return nil, err
	}

	actual, err := verify.VerifyChecksum(dest, expected.Value)
	if err != nil {
		return nil, err
	}
	log.WithField("sha256", actual).Info("checksum verified")

	va = &VerifiedArtifact{
		Path:           dest,
		FileName:       ref.FileName,
		Algorithm:      verify.Algorithm,
		Checksum:       actual,
		ChecksumOrigin: expected.Origin,
		ChecksumURL:    expected.URL,
	}

	if len(f.Keyring) > 0 {
		if err := f.verifySignature(ctx, ref, dest); err != nil {
			return nil, err
		}
		va.Signed = true
		log.Info("signature verified")
	}

	return va, nil
}

func (f *Fetcher) verifySignature(ctx context.Context, ref *asset.Reference, artifactPath string) error {
	sigPath := artifactPath + ".sig"
	defer os.Remove(sigPath)

	log.WithField("url", ref.SignatureURL).Info("fetching signature")
	if err := Download(ctx, f.Client, ref.SignatureURL, sigPath); err != nil {
		return &verify.SignatureError{File: ref.FileName, URL: ref.SignatureURL, Err: err}
	}

	if err := verify.VerifySignature(f.Keyring, artifactPath, sigPath); err != nil {
		if se, ok := err.(*verify.SignatureError); ok {
			se.URL = ref.SignatureURL
		}
		return err
	}
	return nil
}
