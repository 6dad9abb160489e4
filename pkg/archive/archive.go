package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Format represents the archive format
type Format string

const (
	FormatTarGz Format = "tar.gz"
	FormatTarXz Format = "tar.xz"
	FormatTar   Format = "tar"
	FormatZip   Format = "zip"
	FormatGz    Format = "gz"
	FormatXz    Format = "xz"
	FormatRaw   Format = "raw"
)

// DetectFormat detects the archive format based on the filename
func DetectFormat(filename string) Format {
	lower := strings.ToLower(filename)

	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatTarXz
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".gz"):
		return FormatGz
	case strings.HasSuffix(lower, ".xz"):
		return FormatXz
	}

	// Default to raw for unknown formats or no extension
	return FormatRaw
}

// ExtractionError reports an artifact that could not be unpacked. It is
// fatal: nothing is installed from a partially extracted tree.
type ExtractionError struct {
	Archive string
	Format  Format
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s (%s): %v", filepath.Base(e.Archive), e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Tree is a scratch directory holding extracted artifact contents.
type Tree struct {
	Root   string
	Format Format
}

// Cleanup removes the scratch directory and everything in it.
func (t *Tree) Cleanup() error {
	if t == nil || t.Root == "" {
		return nil
	}
	return os.RemoveAll(t.Root)
}

// Extractor unpacks release artifacts.
type Extractor struct {
	stripComponents int
	// TempDir is the parent for scratch trees; empty means os.TempDir.
	TempDir string
}

// NewExtractor returns an Extractor removing stripComponents leading path
// elements from every archive entry.
func NewExtractor(stripComponents int) *Extractor {
	return &Extractor{stripComponents: stripComponents}
}

// ExtractToScratch unpacks archivePath into a fresh, uniquely named scratch
// directory. The caller owns the returned Tree and must Cleanup it.
func (e *Extractor) ExtractToScratch(archivePath string) (*Tree, error) {
	format := DetectFormat(archivePath)

	root, err := os.MkdirTemp(e.TempDir, "cass-extract-*")
	if err != nil {
		return nil, &ExtractionError{Archive: archivePath, Format: format, Err: errors.Wrap(err, "failed to create scratch directory")}
	}

	if err := e.Extract(archivePath, root); err != nil {
		os.RemoveAll(root)
		return nil, err
	}

	log.WithFields(log.Fields{"format": format, "dir": root}).Debug("extracted artifact")
	return &Tree{Root: root, Format: format}, nil
}

// Extract extracts an archive to the destination directory
func (e *Extractor) Extract(archivePath, destDir string) error {
	format := DetectFormat(archivePath)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return &ExtractionError{Archive: archivePath, Format: format, Err: errors.Wrap(err, "failed to create destination directory")}
	}

	var err error
	switch format {
	case FormatTarGz, FormatTarXz, FormatTar:
		err = e.extractTarFile(archivePath, destDir, format)
	case FormatZip:
		err = e.extractZip(archivePath, destDir)
	case FormatGz, FormatXz:
		err = decompressFile(archivePath, destDir, format)
	case FormatRaw:
		// Raw binaries are copied as-is
		err = copyFile(archivePath, filepath.Join(destDir, filepath.Base(archivePath)), 0755)
	default:
		err = fmt.Errorf("unsupported archive format: %s", format)
	}
	if err != nil {
		return &ExtractionError{Archive: archivePath, Format: format, Err: err}
	}
	return nil
}

// openDecompressed opens path and layers the decompressor for format on top.
func openDecompressed(path string, format Format) (io.Reader, func() error, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open archive")
	}

	switch format {
	case FormatTarGz, FormatGz:
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, errors.Wrap(err, "failed to create gzip reader")
		}
		return gzReader, func() error {
			gzReader.Close()
			return file.Close()
		}, nil
	case FormatTarXz, FormatXz:
		xzReader, err := xz.NewReader(file)
		if err != nil {
			file.Close()
			return nil, nil, errors.Wrap(err, "failed to create xz reader")
		}
		return xzReader, file.Close, nil
	default:
		return file, file.Close, nil
	}
}

func (e *Extractor) extractTarFile(archivePath, destDir string, format Format) error {
	r, closeFn, err := openDecompressed(archivePath, format)
	if err != nil {
		return err
	}
	defer closeFn()

	return e.extractTarReader(r, destDir)
}

// extractTarReader extracts from a tar reader
func (e *Extractor) extractTarReader(r io.Reader, destDir string) error {
	tarReader := tar.NewReader(r)

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "failed to read tar header")
		}

		path := e.stripPath(header.Name)
		if path == "" {
			continue
		}

		target, err := securePath(destDir, path)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrap(err, "failed to create directory")
			}
		case tar.TypeReg:
			if err := writeFile(target, tarReader, fileMode(os.FileMode(header.Mode))); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := createSymlink(destDir, target, header.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			linkTarget, err := securePath(destDir, e.stripPath(header.Linkname))
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return errors.Wrap(err, "failed to create parent directory")
			}
			if err := os.Link(linkTarget, target); err != nil {
				return errors.Wrap(err, "failed to create hard link")
			}
		default:
			log.WithField("entry", header.Name).Debug("skipping unsupported tar entry")
		}
	}

	return nil
}

// extractZip extracts a zip archive
func (e *Extractor) extractZip(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrap(err, "failed to open zip archive")
	}
	defer reader.Close()

	for _, file := range reader.File {
		path := e.stripPath(file.Name)
		if path == "" {
			continue
		}

		target, err := securePath(destDir, path)
		if err != nil {
			return err
		}

		mode := file.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return errors.Wrap(err, "failed to create directory")
			}
		case mode&os.ModeSymlink != 0:
			linkname, err := readZipEntry(file)
			if err != nil {
				return err
			}
			if err := createSymlink(destDir, target, linkname); err != nil {
				return err
			}
		default:
			if err := extractZipEntry(file, target); err != nil {
				return err
			}
		}
	}

	return nil
}

func extractZipEntry(file *zip.File, target string) error {
	rc, err := file.Open()
	if err != nil {
		return errors.Wrap(err, "failed to open file in archive")
	}
	defer rc.Close()

	return writeFile(target, rc, fileMode(file.Mode()))
}

func readZipEntry(file *zip.File) (string, error) {
	rc, err := file.Open()
	if err != nil {
		return "", errors.Wrap(err, "failed to open file in archive")
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", errors.Wrap(err, "failed to read symlink target")
	}
	return string(b), nil
}

// decompressFile handles single-file .gz and .xz artifacts.
func decompressFile(archivePath, destDir string, format Format) error {
	r, closeFn, err := openDecompressed(archivePath, format)
	if err != nil {
		return err
	}
	defer closeFn()

	name := filepath.Base(archivePath)
	name = name[:len(name)-len(filepath.Ext(name))]
	return writeFile(filepath.Join(destDir, name), r, 0755)
}

// stripPath removes the configured number of leading path components. An
// empty result means the entry is skipped.
func (e *Extractor) stripPath(path string) string {
	path = strings.TrimPrefix(filepath.ToSlash(path), "./")
	if e.stripComponents == 0 {
		return path
	}

	parts := strings.Split(path, "/")
	if len(parts) <= e.stripComponents {
		return ""
	}

	return strings.Join(parts[e.stripComponents:], "/")
}

// securePath joins name onto root and rejects results outside root, either
// lexically or through a symlink an earlier entry created.
func securePath(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("invalid path in archive: %s", name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	if !within(root, target) {
		return "", fmt.Errorf("invalid path in archive: %s", name)
	}
	if err := checkParents(root, target); err != nil {
		return "", err
	}
	return target, nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// checkParents refuses a target whose existing parent directories include a
// symlink. target must already be lexically within root.
func checkParents(root, target string) error {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return errors.Wrap(err, "invalid path in archive")
	}
	parts := strings.Split(rel, string(filepath.Separator))
	cur := root
	for _, part := range parts[:len(parts)-1] {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to inspect archive path")
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("path in archive passes through a symlink: %s", filepath.ToSlash(rel))
		}
	}
	return nil
}

// checkLinkTarget follows linkname component by component from dir. Every
// step must stay within root and no intermediate component may be a symlink,
// so the link resolves where it lexically appears to.
func checkLinkTarget(root, dir, linkname string) error {
	parts := strings.Split(filepath.ToSlash(linkname), "/")
	cur := dir
	for i, part := range parts {
		cur = filepath.Join(cur, part)
		if !within(root, cur) {
			return fmt.Errorf("symlink escapes archive root: %s", linkname)
		}
		if i == len(parts)-1 {
			break
		}
		if info, err := os.Lstat(cur); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("symlink target passes through a symlink: %s", linkname)
		}
	}
	return nil
}

// createSymlink creates target pointing at linkname, provided the link
// resolves inside root.
func createSymlink(root, target, linkname string) error {
	if linkname == "" || filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") {
		return fmt.Errorf("invalid symlink in archive: %s -> %s", target, linkname)
	}
	if err := checkLinkTarget(root, filepath.Dir(target), linkname); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrap(err, "failed to create parent directory")
	}
	if err := os.Symlink(linkname, target); err != nil {
		return errors.Wrap(err, "failed to create symlink")
	}
	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrap(err, "failed to create parent directory")
	}

	// Never write through a link left by an earlier entry
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return errors.Wrap(err, "failed to replace symlink")
		}
	}

	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}

	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return errors.Wrap(err, "failed to extract file")
	}

	return errors.Wrap(file.Close(), "failed to close file")
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "failed to open source file")
	}
	defer in.Close()

	return writeFile(dst, in, mode)
}

// fileMode keeps permission bits and guarantees the owner can read and write.
func fileMode(m os.FileMode) os.FileMode {
	return m.Perm() | 0600
}
