// Package docs implements the follow-up stages over persisted notices:
// downloading the referenced attachment documents and scanning them for
// keyword matches.
package docs

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/charmap"

	"zakupki/ingest-service/internal/model"
)

const httpTimeout = 60 * time.Second

// Browser-like UA: the document host rejects default Go client strings.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// LinkSource yields persisted notices with documentation links.
// Implemented by store.ContractStore.
type LinkSource interface {
	PendingAttachmentLinks(ctx context.Context) ([]model.AttachmentBatch, error)
}

// Unpacker opens attachment containers and relocates loose documents.
// Implemented by archive.Extractor.
type Unpacker interface {
	Extract(archivePath, destDir string) ([]string, error)
	MoveLooseDocuments(srcDir, destDir string) error
}

// Downloader fetches attachment documents referenced by persisted notices
// into the documents directory. Attachments arrive either as bare
// documents or as ZIP/RAR/7Z containers; containers are unpacked in
// place.
type Downloader struct {
	source LinkSource
	unpack Unpacker
	dir    string
	client *http.Client
	log    zerolog.Logger
}

// NewDownloader constructs a Downloader with a shared HTTP client.
func NewDownloader(source LinkSource, unpack Unpacker, dir string, log zerolog.Logger) *Downloader {
	return &Downloader{
		source: source,
		unpack: unpack,
		dir:    dir,
		client: &http.Client{Timeout: httpTimeout},
		log:    log,
	}
}

// Run downloads every pending attachment link into a staging directory,
// unpacks containers and moves loose documents into the documents
// directory. Per-link failures are logged and skipped; one dead link
// never stops the batch.
func (d *Downloader) Run(ctx context.Context) error {
	batches, err := d.source.PendingAttachmentLinks(ctx)
	if err != nil {
		return fmt.Errorf("load pending links: %w", err)
	}

	staging := filepath.Join(d.dir, "incoming")
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", staging, err)
	}
	defer os.RemoveAll(staging)

	var downloaded, failed int
	for _, batch := range batches {
		for _, link := range batch.Links {
			// Notice pages and other non-document URLs are mixed into the
			// link list; only direct file endpoints are fetched.
			if !strings.Contains(link, "file") {
				continue
			}
			if err := d.download(ctx, staging, link); err != nil {
				failed++
				d.log.Warn().Int64("notice_id", batch.NoticeID).Str("link", link).Err(err).Msg("attachment download failed")
				continue
			}
			downloaded++
		}
	}

	d.unpackStaged(staging)

	d.log.Info().Int("downloaded", downloaded).Int("failed", failed).Msg("attachment batch complete")
	return nil
}

// unpackStaged opens every downloaded container into the documents
// directory and moves bare documents alongside them. A corrupt container
// is dropped: the link can be re-fetched manually if it matters.
func (d *Downloader) unpackStaged(staging string) {
	entries, err := os.ReadDir(staging)
	if err != nil {
		d.log.Warn().Err(err).Msg("could not read staging dir")
		return
	}

	for _, entry := range entries {
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".zip", ".rar", ".7z":
			src := filepath.Join(staging, entry.Name())
			if _, err := d.unpack.Extract(src, d.dir); err != nil {
				d.log.Warn().Str("file", src).Err(err).Msg("corrupt attachment container dropped")
			}
			os.Remove(src)
		}
	}

	if err := d.unpack.MoveLooseDocuments(staging, d.dir); err != nil {
		d.log.Warn().Err(err).Msg("could not move loose documents")
	}
}

func (d *Downloader) download(ctx context.Context, destDir, link string) error {
	// Probe before streaming: the host answers HEAD cheaply and a dead
	// link is rejected without opening a transfer.
	if err := d.probe(ctx, link); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("host returned %d", resp.StatusCode)
	}

	name := attachmentFilename(resp.Header.Get("Content-Disposition"), link)
	dest := filepath.Join(destDir, name)
	tmp := dest + ".part"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}

	d.log.Debug().Str("file", dest).Msg("attachment downloaded")
	return nil
}

func (d *Downloader) probe(ctx context.Context, link string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("http HEAD: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe returned %d", resp.StatusCode)
	}
	return nil
}

// attachmentFilename derives a local filename from the Content-Disposition
// header: percent-decode, then latin1→UTF-8 recovery, falling back to the
// URL base name.
func attachmentFilename(disposition, link string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				if decoded, err := url.PathUnescape(name); err == nil {
					name = decoded
				}
				return filepath.Base(recoverLatin1(name))
			}
		}
	}

	if u, err := url.Parse(link); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		return path.Base(u.Path)
	}
	return "attachment.bin"
}

// recoverLatin1 undoes the host's header encoding: UTF-8 filename bytes
// are served as latin1, arriving as mojibake ("Ð¡Ð¼ÐµÑ‚Ð°..."). Mapping
// each rune back to its latin1 byte restores the UTF-8 name. Names that
// do not round-trip (true Unicode, plain ASCII stays identical) are
// returned unchanged.
func recoverLatin1(name string) string {
	raw, err := charmap.ISO8859_1.NewEncoder().String(name)
	if err != nil || !utf8.ValidString(raw) {
		return name
	}
	return raw
}
