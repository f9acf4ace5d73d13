// Package pipeline drives the full ingest cycle: listing, date filtering,
// ledger checks, download, extraction, parsing, classification filtering,
// persistence and cleanup — with per-file error isolation.
package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"zakupki/ingest-service/internal/archive"
	"zakupki/ingest-service/internal/ftpclient"
	"zakupki/ingest-service/internal/metrics"
	"zakupki/ingest-service/internal/model"
	"zakupki/ingest-service/internal/parser"
	"zakupki/ingest-service/internal/store"
)

// RemoteSource is the FTP side of the pipeline.
type RemoteSource interface {
	Connect() error
	Close()
	ListAfter(root, cutoff string) ([]model.RemotePath, error)
	Fetch(remotePath, localDir string) (string, error)
}

// LedgerStore gates re-downloading and re-processing of containers.
type LedgerStore interface {
	Exists(ctx context.Context, filename string) (bool, error)
	Record(ctx context.Context, filename string) error
}

// NoticeStore persists accepted notices.
type NoticeStore interface {
	InsertArchiveEntry(ctx context.Context, fileName, archiveName string) (int64, bool, error)
	InsertNotice(ctx context.Context, archiveEntryID int64, n *model.Notice) (bool, error)
}

// Extractor unpacks downloaded containers.
type Extractor interface {
	Extract(archivePath, destDir string) ([]string, error)
}

// NoticeParser parses one XML notice document.
type NoticeParser interface {
	Parse(xmlBytes []byte) (*model.Notice, error)
}

// Options configure an Orchestrator run.
type Options struct {
	Roots        map[string]string // label -> remote root path
	CutoffDate   string            // YYYYMMDD
	ArchiveDir   string
	XMLDir       string
	PositiveDir  string
	FetchRetries int
}

// Orchestrator runs the per-remote-file state machine. Processing is
// sequential: the listing and transfer connections share one FTP session.
type Orchestrator struct {
	src     RemoteSource
	ledger  LedgerStore
	store   NoticeStore
	extract Extractor
	parse   NoticeParser
	codes   parser.CodeSet
	opts    Options
	met     *metrics.Metrics
	log     zerolog.Logger

	// backoff base, overridable in tests
	retryDelay time.Duration
}

// New constructs an Orchestrator.
func New(
	src RemoteSource,
	ledger LedgerStore,
	noticeStore NoticeStore,
	extractor Extractor,
	noticeParser NoticeParser,
	codes parser.CodeSet,
	opts Options,
	met *metrics.Metrics,
	log zerolog.Logger,
) *Orchestrator {
	if opts.FetchRetries < 1 {
		opts.FetchRetries = 1
	}
	return &Orchestrator{
		src:        src,
		ledger:     ledger,
		store:      noticeStore,
		extract:    extractor,
		parse:      noticeParser,
		codes:      codes,
		opts:       opts,
		met:        met,
		log:        log,
		retryDelay: time.Second,
	}
}

// RunOnce executes one full ingest cycle over all configured roots.
// Only a failure to establish the FTP connection is fatal to the run;
// every other error is contained at the per-file granularity.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	if err := o.src.Connect(); err != nil {
		return err
	}
	defer o.src.Close()

	// Stable root order across runs.
	labels := make([]string, 0, len(o.opts.Roots))
	for label := range o.opts.Roots {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		root := o.opts.Roots[label]
		log := o.log.With().Str("root_label", label).Str("root", root).Logger()

		candidates, err := o.src.ListAfter(root, o.opts.CutoffDate)
		if err != nil {
			// Already-ledgered files are skipped downstream, so the root is
			// simply retried on the next cycle.
			o.met.TransportErrors.Inc()
			log.Error().Err(err).Msg("listing failed, root skipped this cycle")
			continue
		}

		for _, candidate := range candidates {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := o.processFile(ctx, candidate); err != nil {
				log.Error().Str("file", candidate.Path).Err(err).Msg("file failed, continuing with next")
			}
		}
	}

	return nil
}

// processFile walks one remote file through the state machine:
// LedgerChecked → Fetched → Extracted → Parsed → Filtered → Persisted →
// CleanedUp → Ledgered. Local temp artifacts are deleted on every exit
// path so incremental runs do not grow the disk.
func (o *Orchestrator) processFile(ctx context.Context, rp model.RemotePath) error {
	log := o.log.With().Str("file", rp.Name).Logger()

	ingested, err := o.ledger.Exists(ctx, rp.Name)
	if err != nil {
		return err
	}
	if ingested {
		o.met.FilesSkipped.Inc()
		log.Debug().Msg("already ledgered, skipping")
		return nil
	}

	archivePath, err := o.fetchWithRetry(ctx, rp)
	if err != nil {
		o.met.TransportErrors.Inc()
		return err
	}

	destDir := filepath.Join(o.opts.XMLDir, strings.TrimSuffix(rp.Name, filepath.Ext(rp.Name)))
	defer func() {
		// Best-effort cleanup, success or failure: the container and its
		// extracted children (.xml, .sig) are never kept locally.
		if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("could not remove container")
		}
		if err := os.RemoveAll(destDir); err != nil {
			log.Warn().Err(err).Msg("could not remove extraction dir")
		}
	}()

	extracted, err := o.extract.Extract(archivePath, destDir)
	if err != nil {
		var extractErr *archive.ExtractionError
		if errors.As(err, &extractErr) {
			// Corrupt container: skip it, do not ledger — it is retried on
			// the next cycle in case the remote copy was mid-replacement.
			o.met.ExtractErrors.Inc()
			log.Warn().Err(err).Msg("corrupt container skipped")
			return nil
		}
		return err
	}
	log.Info().Int("entries", len(extracted)).Msg("container extracted")

	var archiveEntryID int64 // lazily created on first accepted notice
	for _, xmlPath := range extracted {
		if !strings.EqualFold(filepath.Ext(xmlPath), ".xml") {
			continue
		}
		archiveEntryID = o.handleEntry(ctx, rp.Name, xmlPath, archiveEntryID, log)
	}

	if err := o.ledger.Record(ctx, rp.Name); err != nil {
		return err
	}
	o.met.FilesIngested.Inc()
	log.Info().Msg("container ingested and ledgered")

	return nil
}

// handleEntry processes one extracted XML notice. Errors are contained
// here: a malformed or rejected entry never fails the container. Returns
// the archive entry id, creating it on the first accepted notice.
func (o *Orchestrator) handleEntry(ctx context.Context, containerName, xmlPath string, archiveEntryID int64, log zerolog.Logger) int64 {
	data, err := os.ReadFile(xmlPath)
	if err != nil {
		log.Error().Str("xml", xmlPath).Err(err).Msg("could not read extracted entry")
		return archiveEntryID
	}

	notice, err := o.parse.Parse(data)
	if err != nil {
		var parseErr *parser.ParseError
		if errors.As(err, &parseErr) {
			// Malformed XML never parses on retry; delete rather than requeue.
			o.met.ParseErrors.Inc()
			log.Warn().Str("xml", xmlPath).Err(err).Msg("malformed notice deleted")
			os.Remove(xmlPath)
			return archiveEntryID
		}
		log.Error().Str("xml", xmlPath).Err(err).Msg("notice extraction failed, continuing")
		return archiveEntryID
	}

	if !o.codes.Matches(notice.AllCodes) {
		o.met.NoticesRejected.Inc()
		log.Debug().
			Str("purchase_number", notice.PurchaseNumber).
			Strs("codes", notice.AllCodes).
			Msg("notice rejected by OKPD2 allow-set")
		return archiveEntryID
	}

	if archiveEntryID == 0 {
		id, created, err := o.store.InsertArchiveEntry(ctx, containerName, containerName)
		if err != nil {
			o.logPersistenceFailure(notice, err, log)
			return archiveEntryID
		}
		if !created {
			log.Debug().Str("archive", containerName).Msg("archive entry already existed")
		}
		archiveEntryID = id
	}

	if err := o.keepPositive(xmlPath); err != nil {
		log.Warn().Str("xml", xmlPath).Err(err).Msg("could not copy accepted notice to audit dir")
	}

	inserted, err := o.store.InsertNotice(ctx, archiveEntryID, notice)
	if err != nil {
		o.logPersistenceFailure(notice, err, log)
		return archiveEntryID
	}
	if !inserted {
		o.met.NoticesDuplicate.Inc()
		return archiveEntryID
	}

	o.met.NoticesInserted.Inc()
	log.Info().
		Str("purchase_number", notice.PurchaseNumber).
		Str("okpd2", notice.OKPD2Code).
		Msg("notice persisted")

	return archiveEntryID
}

// logPersistenceFailure records a dropped notice for manual review.
func (o *Orchestrator) logPersistenceFailure(n *model.Notice, err error, log zerolog.Logger) {
	var perr *store.PersistenceError
	errors.As(err, &perr)
	log.Error().
		Str("purchase_number", n.PurchaseNumber).
		Err(err).
		Msg("persistence failed, notice dropped (data loss candidate)")
}

// fetchWithRetry downloads one remote file, retrying transport failures a
// bounded number of times with doubling backoff.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, rp model.RemotePath) (string, error) {
	delay := o.retryDelay
	var lastErr error

	for attempt := 1; attempt <= o.opts.FetchRetries; attempt++ {
		path, err := o.src.Fetch(rp.Path, o.opts.ArchiveDir)
		if err == nil {
			return path, nil
		}
		lastErr = err

		var terr *ftpclient.TransportError
		if !errors.As(err, &terr) {
			return "", err // local filesystem failure, not retryable
		}
		if attempt == o.opts.FetchRetries {
			break
		}

		o.log.Warn().
			Str("file", rp.Path).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(err).
			Msg("fetch failed, retrying")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return "", lastErr
}

// keepPositive copies an accepted notice XML into the audit directory
// before the extraction dir is cleaned up.
func (o *Orchestrator) keepPositive(xmlPath string) error {
	if err := os.MkdirAll(o.opts.PositiveDir, 0o755); err != nil {
		return err
	}

	src, err := os.Open(xmlPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(o.opts.PositiveDir, filepath.Base(xmlPath)))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
