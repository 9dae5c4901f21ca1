// Package downloader runs one batch transfer over catalog entries: discover,
// select, claim, fetch, verify, sink, advance. Every invocation is a
// short-lived job; the catalog is the only coordination point between
// concurrent runs.
package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/anaishowland/oasive-db-sub000/internal/catalog"
	"github.com/anaishowland/oasive-db-sub000/internal/config"
	"github.com/anaishowland/oasive-db-sub000/internal/observability"
	"github.com/anaishowland/oasive-db-sub000/internal/remote"
	"github.com/anaishowland/oasive-db-sub000/internal/storage"
)

// Mode selects which catalog entries a run transfers.
type Mode string

const (
	// ModeCatalog discovers and catalogs remote files without transferring.
	ModeCatalog Mode = "catalog"

	// ModeIncremental transfers pending entries newer than each family's
	// processed watermark.
	ModeIncremental Mode = "incremental"

	// ModeBackfill transfers all pending entries and retries entries in
	// error state.
	ModeBackfill Mode = "backfill"
)

// ParseMode validates a mode flag value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCatalog, ModeIncremental, ModeBackfill:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q (want catalog, incremental or backfill)", s)
}

// Options narrows the entry selection for one run.
type Options struct {
	Mode            Mode
	Families        []catalog.FileFamily
	FilenamePattern string
	MaxFiles        int
}

// Summary reports the outcome of one run.
type Summary struct {
	Discovered int    `json:"discovered"`
	Cataloged  int    `json:"cataloged"`
	Selected   int    `json:"selected"`
	Downloaded int    `json:"downloaded"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Bytes      int64  `json:"bytes"`
	Elapsed    string `json:"elapsed"`
}

// Catalog is the catalog surface the downloader drives. Satisfied by
// *catalog.Repository.
type Catalog interface {
	SelectForDownload(ctx context.Context, f catalog.Filter) ([]catalog.Entry, error)
	Claim(ctx context.Context, id int64, from []catalog.State, to catalog.State) (bool, error)
	MarkDownloaded(ctx context.Context, id int64, sinkLocation string) error
	MarkError(ctx context.Context, id int64, errMsg string) error
	Watermark(ctx context.Context, family catalog.FileFamily) (*time.Time, error)
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Reconciler folds a remote listing into the catalog. Satisfied by
// *catalog.Reconciler.
type Reconciler interface {
	Reconcile(ctx context.Context, listing []remote.FileInfo) (catalog.ReconcileResult, error)
}

// Service executes one download batch.
type Service struct {
	entries    Catalog
	reconciler Reconciler
	client     remote.Client
	sink       storage.ObjectStorage
	rootDir    string
	cfg        config.DownloaderConfig
	logger     observability.Logger
	metrics    observability.Metrics
}

// NewService wires a download batch service.
func NewService(
	entries Catalog,
	reconciler Reconciler,
	client remote.Client,
	sink storage.ObjectStorage,
	rootDir string,
	cfg config.DownloaderConfig,
	logger observability.Logger,
	metrics observability.Metrics,
) *Service {
	return &Service{
		entries:    entries,
		reconciler: reconciler,
		client:     client,
		sink:       sink,
		rootDir:    rootDir,
		cfg:        cfg,
		logger:     observability.Scoped(logger, "downloader"),
		metrics:    metrics,
	}
}

// Run performs one batch: requeue stale claims, reconcile the remote listing,
// then transfer the selected entries. A failed file is marked error and the
// batch continues; the summary carries the count. Run stops early, without
// error, when the context deadline approaches.
func (s *Service) Run(ctx context.Context, opts Options) (Summary, error) {
	start := time.Now()
	var summary Summary

	if s.cfg.StaleClaimAge > 0 {
		if _, err := s.entries.RequeueStale(ctx, s.cfg.StaleClaimAge); err != nil {
			return summary, fmt.Errorf("requeue stale: %w", err)
		}
	}

	listing, err := s.client.List(ctx, s.rootDir)
	if err != nil {
		return summary, fmt.Errorf("list remote: %w", err)
	}
	summary.Discovered = len(listing)

	result, err := s.reconciler.Reconcile(ctx, listing)
	if err != nil {
		return summary, fmt.Errorf("reconcile: %w", err)
	}
	summary.Cataloged = result.New

	if opts.Mode == ModeCatalog {
		summary.Elapsed = time.Since(start).String()
		s.logger.Info("Catalog run complete",
			"discovered", summary.Discovered, "cataloged", summary.Cataloged)
		return summary, nil
	}

	selected, err := s.selectEntries(ctx, opts)
	if err != nil {
		return summary, err
	}
	summary.Selected = len(selected)

	claimFrom := []catalog.State{catalog.StatePending}
	if opts.Mode == ModeBackfill {
		claimFrom = append(claimFrom, catalog.StateError)
	}

	sinceReconnect := 0
	for _, entry := range selected {
		if ctx.Err() != nil {
			s.logger.Warn("Run budget exhausted; leaving remaining entries for the next run",
				"remaining", summary.Selected-summary.Downloaded-summary.Failed-summary.Skipped)
			break
		}

		claimed, err := s.entries.Claim(ctx, entry.ID, claimFrom, catalog.StateDownloading)
		if err != nil {
			return summary, fmt.Errorf("claim %s: %w", entry.RemotePath, err)
		}
		if !claimed {
			summary.Skipped++
			continue
		}

		n, err := s.download(ctx, &entry)
		if err != nil {
			summary.Failed++
			s.logger.Error("Download failed", "remote_path", entry.RemotePath, "error", err)
			s.metrics.IncrementCounter("downloader.file.failed",
				map[string]string{"file_type": string(entry.FileType)})
			if markErr := s.entries.MarkError(ctx, entry.ID, err.Error()); markErr != nil {
				return summary, fmt.Errorf("mark error %s: %w", entry.RemotePath, markErr)
			}
			continue
		}

		summary.Downloaded++
		summary.Bytes += n
		s.metrics.IncrementCounter("downloader.file.downloaded",
			map[string]string{"file_type": string(entry.FileType)})
		s.metrics.RecordHistogram("downloader.file.bytes", float64(n), nil)

		// Cycle the connection periodically; long SFTP sessions on this
		// server degrade after a few hundred transfers.
		sinceReconnect++
		if s.cfg.BatchSize > 0 && sinceReconnect >= s.cfg.BatchSize {
			if err := s.client.Reconnect(); err != nil {
				return summary, fmt.Errorf("reconnect: %w", err)
			}
			sinceReconnect = 0
		}
	}

	summary.Elapsed = time.Since(start).String()
	s.logger.Info("Download run complete",
		"mode", string(opts.Mode),
		"selected", summary.Selected,
		"downloaded", summary.Downloaded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"bytes", summary.Bytes,
		"elapsed", summary.Elapsed)
	return summary, nil
}

// selectEntries builds the selection for the run mode. Incremental runs bound
// each family by its own processed watermark, so families advance
// independently.
func (s *Service) selectEntries(ctx context.Context, opts Options) ([]catalog.Entry, error) {
	base := catalog.Filter{
		Families:        opts.Families,
		FilenamePattern: opts.FilenamePattern,
		MaxFiles:        opts.MaxFiles,
		IncludeError:    opts.Mode == ModeBackfill,
	}

	if opts.Mode != ModeIncremental {
		return s.entries.SelectForDownload(ctx, base)
	}

	families := opts.Families
	if len(families) == 0 {
		families = catalog.KnownFamilies
	}

	var selected []catalog.Entry
	for _, family := range families {
		mark, err := s.entries.Watermark(ctx, family)
		if err != nil {
			return nil, fmt.Errorf("watermark %s: %w", family, err)
		}

		f := base
		f.Families = []catalog.FileFamily{family}
		f.NewerThan = mark
		if opts.MaxFiles > 0 {
			remaining := opts.MaxFiles - len(selected)
			if remaining <= 0 {
				break
			}
			f.MaxFiles = remaining
		}

		entries, err := s.entries.SelectForDownload(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", family, err)
		}
		selected = append(selected, entries...)
	}
	return selected, nil
}

// download fetches one claimed entry with bounded retries, verifies the
// transferred size against the cataloged remote size, and writes the bytes to
// the sink. Returns the byte count on success.
func (s *Service) download(ctx context.Context, entry *catalog.Entry) (int64, error) {
	var lastErr error
	delay := s.cfg.InitialBackoff

	attempts := s.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, delay); err != nil {
				return 0, fmt.Errorf("%w (last transfer error: %v)", err, lastErr)
			}
			delay = nextBackoff(delay, s.cfg.BackoffMultiplier, s.cfg.MaxBackoff)
			if err := s.client.Reconnect(); err != nil {
				lastErr = fmt.Errorf("reconnect: %w", err)
				continue
			}
		}

		n, err := s.transfer(ctx, entry)
		if err == nil {
			return n, nil
		}
		lastErr = err
		s.logger.Warn("Transfer attempt failed",
			"remote_path", entry.RemotePath, "attempt", attempt, "error", err)
	}

	return 0, fmt.Errorf("transfer failed after %d attempts: %w", attempts, lastErr)
}

// transfer performs a single fetch-verify-sink cycle. Files above the
// configured threshold spill through a temp file instead of memory.
func (s *Service) transfer(ctx context.Context, entry *catalog.Entry) (int64, error) {
	large := entry.RemoteSize.Valid && s.cfg.LargeFileThreshold > 0 &&
		entry.RemoteSize.Int64 > s.cfg.LargeFileThreshold

	var (
		n      int64
		reader io.Reader
		err    error
	)

	if large {
		tmp, tmpErr := os.CreateTemp("", "disclosure-*.part")
		if tmpErr != nil {
			return 0, fmt.Errorf("temp file: %w", tmpErr)
		}
		defer os.Remove(tmp.Name())
		defer tmp.Close()

		n, err = s.client.Fetch(ctx, entry.RemotePath, tmp)
		if err != nil {
			return 0, fmt.Errorf("fetch: %w", err)
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return 0, fmt.Errorf("rewind temp file: %w", err)
		}
		reader = tmp
	} else {
		var buf bytes.Buffer
		n, err = s.client.Fetch(ctx, entry.RemotePath, &buf)
		if err != nil {
			return 0, fmt.Errorf("fetch: %w", err)
		}
		reader = &buf
	}

	// A short or long read against the cataloged size means a truncated or
	// mid-update transfer; treat it like any other transient failure.
	if entry.RemoteSize.Valid && n != entry.RemoteSize.Int64 {
		return 0, fmt.Errorf("size mismatch: transferred %d, remote reports %d",
			n, entry.RemoteSize.Int64)
	}

	key := storage.SinkKey(string(entry.FileType), sinkDate(entry), entry.Filename)
	meta := storage.ObjectMetadata{
		ContentType:   "application/octet-stream",
		ContentLength: n,
	}
	if err := s.sink.Put(ctx, key, reader, meta); err != nil {
		return 0, fmt.Errorf("sink put: %w", err)
	}

	if err := s.entries.MarkDownloaded(ctx, entry.ID, key); err != nil {
		return 0, fmt.Errorf("mark downloaded: %w", err)
	}
	return n, nil
}

// sinkDate picks the date that keys the sink location: the file's own date
// when the filename carried one, the remote modified time otherwise. Both
// are stable across re-downloads.
func sinkDate(entry *catalog.Entry) time.Time {
	if entry.FileDate.Valid {
		return entry.FileDate.Time
	}
	if entry.RemoteModifiedAt.Valid {
		return entry.RemoteModifiedAt.Time
	}
	return entry.CreatedAt
}

func nextBackoff(current time.Duration, multiplier float64, max time.Duration) time.Duration {
	if multiplier <= 1 {
		return current
	}
	next := time.Duration(float64(current) * multiplier)
	if max > 0 && next > max {
		return max
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
