package checksums

import (
	"bufio"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/apex/log"
)

// bsdLine matches the "SHA256 (file) = hash" format written by shasum --tag.
var bsdLine = regexp.MustCompile(`^SHA256 \((.+)\) = ([0-9a-fA-F]+)$`)

// Entry is one line of a checksum file. Filename is empty for a bare hash.
type Entry struct {
	Hash     string
	Filename string
}

// ParseChecksumFile parses checksum file content.
// Supports formats like:
// - "abc123" (bare hash, companion .sha256 files)
// - "abc123  filename.tar.gz" (two spaces)
// - "abc123 *filename.tar.gz" (binary mode marker)
// - "SHA256 (filename.tar.gz) = abc123"
func ParseChecksumFile(content string) []Entry {
	var entries []Entry

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := bsdLine.FindStringSubmatch(line); m != nil {
			entries = append(entries, Entry{Hash: strings.ToLower(m[2]), Filename: path.Base(m[1])})
			continue
		}

		parts := strings.Fields(line)
		if !IsHex(parts[0]) {
			log.Debugf("Ignoring invalid checksum line: %s", line)
			continue
		}

		entry := Entry{Hash: strings.ToLower(parts[0])}
		if len(parts) > 1 {
			// If the filename starts with *, remove it (common in standard checksums)
			entry.Filename = path.Base(strings.TrimPrefix(parts[1], "*"))
		}
		entries = append(entries, entry)
	}

	return entries
}

// FindChecksum picks the checksum for filename out of checksum file content.
// A line naming the file wins. A file holding a single entry is taken as the
// checksum of the artifact it accompanies whatever name it records.
func FindChecksum(content, filename string) (string, error) {
	entries := ParseChecksumFile(content)
	if len(entries) == 0 {
		return "", fmt.Errorf("no checksums found in file")
	}

	for _, e := range entries {
		if e.Filename == filename {
			return e.Hash, nil
		}
	}

	if len(entries) == 1 {
		return entries[0].Hash, nil
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}

// IsHex reports whether s is a non-empty hexadecimal string.
func IsHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
