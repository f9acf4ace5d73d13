// Package archive unpacks downloaded containers. Notice containers are
// ZIP; attachment-document containers may also be RAR or 7Z.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"
)

// ExtractionError reports a corrupt or unsupported container. The failing
// archive is skipped and never retried: a broken file stays broken.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("extract %s: %v", e.Path, e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor unpacks containers into a destination directory.
type Extractor struct {
	log zerolog.Logger
}

// New constructs an Extractor.
func New(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract unpacks archivePath into destDir and returns the paths of all
// extracted files. The container format is chosen by extension; anything
// else is an ExtractionError.
func (e *Extractor) Extract(archivePath, destDir string) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", destDir, err)
	}

	var (
		files []string
		err   error
	)
	switch strings.ToLower(filepath.Ext(archivePath)) {
	case ".zip":
		files, err = e.extractZip(archivePath, destDir)
	case ".rar":
		files, err = e.extractRar(archivePath, destDir)
	case ".7z":
		files, err = e.extract7z(archivePath, destDir)
	default:
		err = fmt.Errorf("unsupported container format")
	}
	if err != nil {
		return nil, &ExtractionError{Path: archivePath, Err: err}
	}

	e.log.Debug().Str("archive", archivePath).Int("files", len(files)).Msg("container unpacked")
	return files, nil
}

func (e *Extractor) extractZip(archivePath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []string
	for _, f := range r.File {
		name := memberName(f.Name, f.NonUTF8)
		if f.FileInfo().IsDir() {
			continue
		}

		dest, err := securePath(destDir, name)
		if err != nil {
			return nil, err
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		if err := writeFile(dest, rc); err != nil {
			rc.Close()
			return nil, err
		}
		rc.Close()
		out = append(out, dest)
	}

	return out, nil
}

func (e *Extractor) extractRar(archivePath, destDir string) ([]string, error) {
	r, err := rardecode.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []string
	for {
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.IsDir {
			continue
		}

		dest, err := securePath(destDir, memberName(hdr.Name, false))
		if err != nil {
			return nil, err
		}
		if err := writeFile(dest, r); err != nil {
			return nil, err
		}
		out = append(out, dest)
	}

	return out, nil
}

func (e *Extractor) extract7z(archivePath, destDir string) ([]string, error) {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}

		dest, err := securePath(destDir, memberName(f.Name, false))
		if err != nil {
			return nil, err
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		if err := writeFile(dest, rc); err != nil {
			rc.Close()
			return nil, err
		}
		rc.Close()
		out = append(out, dest)
	}

	return out, nil
}

// memberName recovers the real member filename. The origin system writes
// ZIP member names in CP866 (Cyrillic DOS) without the UTF-8 flag; the
// raw bytes come through in Name and must be re-decoded, otherwise
// Cyrillic filenames extract as mojibake.
func memberName(name string, nonUTF8 bool) string {
	if !nonUTF8 && utf8.ValidString(name) {
		return name
	}
	decoded, err := charmap.CodePage866.NewDecoder().String(name)
	if err != nil {
		return name
	}
	return decoded
}

// securePath joins a member name onto destDir, rejecting traversal.
func securePath(destDir, name string) (string, error) {
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return "", fmt.Errorf("illegal member path %q", name)
		}
	}
	dest := filepath.Join(destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal member path %q", name)
	}
	return dest, nil
}

func writeFile(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return err
	}
	return f.Close()
}

// MoveLooseDocuments moves plain .pdf/.docx/.xlsx/.doc files sitting next
// to the archives into destDir. Attachment links sometimes point at bare
// documents rather than containers.
func (e *Extractor) MoveLooseDocuments(srcDir, destDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pdf", ".docx", ".xlsx", ".doc":
			src := filepath.Join(srcDir, entry.Name())
			if err := os.Rename(src, filepath.Join(destDir, entry.Name())); err != nil {
				e.log.Warn().Str("file", src).Err(err).Msg("could not move document")
			}
		}
	}

	return nil
}
