package asset

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/apex/log"
	"github.com/shirou/gopsutil/v4/host"
)

// Platform is the host operating system and architecture in Go naming.
type Platform struct {
	OS   string
	Arch string
}

func (p Platform) String() string {
	return p.OS + "/" + p.Arch
}

// IsWindows reports whether executables need the .exe suffix.
func (p Platform) IsWindows() bool {
	return p.OS == "windows"
}

// DefaultArchToken is used for architectures the release template does not know.
const DefaultArchToken = "x86_64"

var osTokens = map[string]string{
	"linux":   "unknown-linux-gnu",
	"darwin":  "apple-darwin",
	"windows": "pc-windows-msvc",
	"freebsd": "unknown-freebsd",
}

var archTokens = map[string]string{
	"amd64": "x86_64",
	"arm64": "aarch64",
}

// kernelArchNames maps uname style machine names onto Go architectures.
var kernelArchNames = map[string]string{
	"x86_64":  "amd64",
	"amd64":   "amd64",
	"aarch64": "arm64",
	"arm64":   "arm64",
	"armv7l":  "arm",
	"i386":    "386",
	"i686":    "386",
}

// DetectPlatform inspects the host. The kernel architecture wins over the
// architecture this binary was built for, so a 32-bit or emulated installer
// still picks the native artifact. Detection never touches the network.
func DetectPlatform(ctx context.Context) Platform {
	p := Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		log.WithError(err).Debug("kernel architecture unavailable, using build architecture")
		return p
	}

	if arch, ok := kernelArchNames[strings.ToLower(info.KernelArch)]; ok && arch != p.Arch {
		log.Debugf("kernel reports %s, overriding build architecture %s", info.KernelArch, p.Arch)
		p.Arch = arch
	}
	return p
}

// Tokens returns the OS and architecture tokens used in artifact names.
// An unknown architecture maps to DefaultArchToken and returns a warning.
func (p Platform) Tokens() (osToken, archToken string, warning error) {
	osToken, ok := osTokens[p.OS]
	if !ok {
		osToken = "unknown-" + p.OS
	}

	archToken, ok = archTokens[p.Arch]
	if !ok {
		archToken = DefaultArchToken
		warning = fmt.Errorf("unrecognized architecture %q, defaulting to %s", p.Arch, DefaultArchToken)
	}
	return osToken, archToken, warning
}

// Extension returns the archive extension published for the platform.
func (p Platform) Extension() string {
	if p.IsWindows() {
		return "zip"
	}
	return "tar.gz"
}
