package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/coding-agent-search/cass-installer/pkg/archive"
	"github.com/coding-agent-search/cass-installer/pkg/checksums"
	"github.com/coding-agent-search/cass-installer/pkg/fetch"
	"github.com/coding-agent-search/cass-installer/pkg/install"
	"github.com/coding-agent-search/cass-installer/pkg/pathenv"
	"github.com/coding-agent-search/cass-installer/pkg/postinstall"
	"github.com/coding-agent-search/cass-installer/pkg/resolve"
	"github.com/coding-agent-search/cass-installer/pkg/verify"
)

// Stage names a step of an install run.
type Stage string

const (
	StageRequest   Stage = "request"
	StageResolve   Stage = "resolve"
	StageReference Stage = "reference"
	StageDownload  Stage = "download"
	StageChecksum  Stage = "checksum"
	StageSignature Stage = "signature"
	StageExtract   Stage = "extract"
	StageLocate    Stage = "locate"
	StageInstall   Stage = "install"
)

// StageError is a fatal failure. Nothing has been written to the install
// directory when it is returned.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Error kinds reported by Kind.
const (
	KindVersionResolutionDegraded = "VersionResolutionDegraded"
	KindDownload                  = "DownloadError"
	KindChecksumUnavailable       = "ChecksumUnavailableError"
	KindChecksumMismatch          = "ChecksumMismatchError"
	KindSignature                 = "SignatureError"
	KindExtraction                = "ExtractionError"
	KindBinaryNotFound            = "BinaryNotFoundError"
	KindInstall                   = "InstallError"
	KindPostInstallVerify         = "PostInstallVerifyError"
	KindPathIntegration           = "PathIntegrationWarning"
	KindInvalidRequest            = "InvalidRequest"
	KindCanceled                  = "Canceled"
	KindUnknown                   = "Unknown"
)

// Kind classifies err by the failure it carries.
func Kind(err error) string {
	var (
		degraded    *resolve.DegradedError
		download    *fetch.DownloadError
		unavailable *checksums.UnavailableError
		mismatch    *verify.MismatchError
		signature   *verify.SignatureError
		extraction  *archive.ExtractionError
		notFound    *archive.NotFoundError
		installErr  *install.Error
		postErr     *postinstall.Error
		pathWarning *pathenv.Warning
		stageErr    *StageError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &mismatch):
		return KindChecksumMismatch
	case errors.As(err, &unavailable):
		return KindChecksumUnavailable
	case errors.As(err, &signature):
		return KindSignature
	case errors.As(err, &download):
		return KindDownload
	case errors.As(err, &extraction):
		return KindExtraction
	case errors.As(err, &notFound):
		return KindBinaryNotFound
	case errors.As(err, &installErr):
		return KindInstall
	case errors.As(err, &postErr):
		return KindPostInstallVerify
	case errors.As(err, &pathWarning):
		return KindPathIntegration
	case errors.As(err, &degraded):
		return KindVersionResolutionDegraded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.As(err, &stageErr) && stageErr.Stage == StageRequest:
		return KindInvalidRequest
	default:
		return KindUnknown
	}
}

// fetchStage maps a Fetcher failure to the stage that produced it.
func fetchStage(err error) Stage {
	var (
		unavailable *checksums.UnavailableError
		mismatch    *verify.MismatchError
		signature   *verify.SignatureError
	)
	switch {
	case errors.As(err, &signature):
		return StageSignature
	case errors.As(err, &unavailable), errors.As(err, &mismatch):
		return StageChecksum
	default:
		return StageDownload
	}
}
