package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ndjsonconv/internal/annotation"
	"ndjsonconv/internal/archive"
	"ndjsonconv/internal/config"
	"ndjsonconv/internal/fetch"
	"ndjsonconv/internal/fileutil"
	"ndjsonconv/internal/formats"
	"ndjsonconv/internal/ingest"
	"ndjsonconv/internal/logging"
	"ndjsonconv/internal/preflight"
)

// Converter runs conversion jobs with a shared configuration.
type Converter struct {
	cfg     *config.Config
	base    *slog.Logger
	logger  *slog.Logger
	fetcher *fetch.Fetcher
	now     func() time.Time
	newID   func() string
}

// Option configures a Converter.
type Option func(*Converter)

// WithFetcher replaces the fetcher built from configuration.
func WithFetcher(f *fetch.Fetcher) Option {
	return func(c *Converter) {
		if f != nil {
			c.fetcher = f
		}
	}
}

// WithClock pins the time written into generated documents.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) {
		if now != nil {
			c.now = now
		}
	}
}

// New builds a Converter from cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Converter {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Converter{
		cfg:    cfg,
		base:   logger,
		logger: logging.NewComponentLogger(logger, "convert"),
		fetcher: fetch.New(fetch.Config{
			Concurrency:       cfg.Download.Concurrency,
			Timeout:           cfg.DownloadTimeout(),
			MaxBytes:          cfg.MaxImageBytes(),
			AllowPrivateHosts: cfg.Download.AllowPrivateHosts,
			UserAgent:         cfg.Download.UserAgent,
		}, fetch.WithLogger(logging.NewComponentLogger(logger, "fetch"))),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run is a convenience wrapper that builds a Converter and runs req.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, req Request, progress chan<- ProgressEvent) (*Result, error) {
	return New(cfg, logger).Run(ctx, req, progress)
}

// job is the state of one conversion. Only the goroutine running Run
// mutates it.
type job struct {
	id       string
	req      Request
	encoder  formats.Encoder
	base     *slog.Logger
	logger   *slog.Logger
	progress *reporter

	parsed     *ingest.Result
	spool      *fileutil.SpoolDir
	writer     *archive.Writer
	downloaded map[int]string
	attempted  int
	failed     int
	zipTotal   int
}

// Run converts req.FilePath into an archive at req.OutputPath. Progress
// events are sent on progress when it is non-nil; the channel is not closed.
func (c *Converter) Run(ctx context.Context, req Request, progress chan<- ProgressEvent) (*Result, error) {
	j := &job{id: c.newID(), req: req, downloaded: make(map[int]string)}
	ctx = logging.WithJobID(ctx, j.id)
	j.base = logging.WithContext(ctx, c.base)
	j.logger = logging.WithContext(ctx, c.logger)
	j.progress = newReporter(ctx, progress)

	enc, err := formats.Lookup(req.Format)
	if err != nil {
		return nil, err
	}
	j.encoder = enc
	if err := preflight.FirstFailure(preflight.ForConversion(req.FilePath, req.OutputPath)); err != nil {
		return nil, err
	}

	start := time.Now()
	j.logger.Info("conversion started",
		logging.String("input", req.FilePath),
		logging.String("output", req.OutputPath),
		logging.String(logging.FieldFormat, string(enc.Format())),
		logging.Bool("include_images", req.IncludeImages),
	)

	result, err := c.run(ctx, j)
	j.cleanup(err)
	if err != nil {
		if ctx.Err() != nil {
			j.logger.Info("conversion cancelled", logging.Duration("elapsed", time.Since(start)))
			return nil, ErrCancelled
		}
		logging.ErrorWithContext(j.logger, "conversion failed", "conversion_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, errorHint(err)),
		)
		return nil, err
	}

	j.logger.Info("conversion completed",
		logging.String("archive", result.ArchivePath),
		logging.Int("file_count", result.FileCount),
		logging.Int("image_count", result.ImageCount),
		logging.Int("failed_downloads", j.failed),
		logging.Int("dropped_annotations", result.DroppedAnnotations),
		logging.Duration("elapsed", time.Since(start)),
	)
	if result.AllDownloadsFailed() {
		logging.WarnWithContext(j.logger, "every image download failed", "downloads_all_failed",
			logging.Int("download_total", *result.DownloadTotal),
			logging.String(logging.FieldErrorHint, "check network access to the image host or re-export with fresh URLs"),
			logging.String(logging.FieldImpact, "archive contains labels only"),
		)
	}
	return result, nil
}

func (c *Converter) run(ctx context.Context, j *job) (*Result, error) {
	if err := c.parse(ctx, j); err != nil {
		return nil, err
	}
	ds := j.parsed.Dataset

	writer, err := archive.Create(j.req.OutputPath, archive.Options{
		CompressionLevel: c.cfg.Archive.CompressionLevel,
		Logger:           logging.NewComponentLogger(j.base, "archive"),
		OnEntry: func(handled int, name string) {
			j.progress.emit(PhaseZipping, handled, j.zipTotal, name)
		},
	})
	if err != nil {
		return nil, err
	}
	j.writer = writer

	if j.req.IncludeImages {
		if err := c.download(ctx, j); err != nil {
			return nil, err
		}
	}

	records := j.included()
	labels, err := c.encodeLabels(ctx, j, records)
	if err != nil {
		return nil, err
	}
	configEntries, err := j.encoder.EncodeConfig(ds, records, formats.Meta{Created: c.now()})
	if err != nil {
		return nil, fmt.Errorf("encode %s config: %w", j.encoder.Format(), err)
	}

	imageCount, err := c.zip(ctx, j, records, labels, configEntries)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ArchivePath:        j.req.OutputPath,
		FileCount:          j.writer.Written(),
		ImageCount:         imageCount,
		DroppedAnnotations: len(j.parsed.Dropped),
		Format:             j.encoder.Format(),
		Task:               ds.Task,
		JobID:              j.id,
	}
	if j.req.IncludeImages {
		failed, total := j.failed, j.attempted
		result.FailedDownloads = &failed
		result.DownloadTotal = &total
	}
	return result, nil
}

func (c *Converter) parse(ctx context.Context, j *job) error {
	j.progress.emit(PhaseParsing, 0, 0, "")
	res, err := ingest.ParseFile(ctx, j.req.FilePath, ingest.Options{
		OnDataset: func(ds annotation.Dataset) error {
			return formats.CheckTask(j.encoder, ds.Task)
		},
		OnLine: func(line int) {
			j.progress.emit(PhaseParsing, line, line, "")
		},
		Logger: logging.WithContext(logging.WithPhase(ctx, string(PhaseParsing)), c.base),
	})
	if err != nil {
		return err
	}
	j.parsed = res

	if n := len(res.Dropped); n > 0 {
		logging.WarnWithContext(j.logger, "annotations dropped", "annotations_dropped",
			logging.Int("count", n),
			logging.String("first", res.Dropped[0].Error()),
			logging.String(logging.FieldErrorHint, "fix the malformed geometry in the source export"),
			logging.String(logging.FieldImpact, "dropped annotations are missing from the archive"),
		)
	}
	j.logger.Debug("ndjson parsed",
		logging.Int("lines", res.Lines),
		logging.Int("images", len(res.Images)),
		logging.String("task", string(res.Dataset.Task)),
	)
	return nil
}

// download fetches every placed image that has a URL. Failures are counted
// and the image is left out of the archive together with its label.
func (c *Converter) download(ctx context.Context, j *job) error {
	ds := j.parsed.Dataset
	var reqs []fetch.Request
	for _, rec := range j.parsed.Images {
		if !rec.HasURL() {
			continue
		}
		if _, placed := j.encoder.ImagePath(ds, rec); !placed {
			continue
		}
		reqs = append(reqs, fetch.Request{Index: rec.Index, URL: rec.URL, File: rec.File})
	}
	j.attempted = len(reqs)
	if len(reqs) == 0 {
		return nil
	}

	spool, err := fileutil.NewSpoolDir(c.cfg.Paths.SpoolDir, j.id)
	if err != nil {
		return err
	}
	j.spool = spool
	j.logger.Debug("spool directory created", logging.String("path", spool.Path()), logging.Int("requests", len(reqs)))

	j.progress.emit(PhaseDownloading, 0, len(reqs), "")
	done := 0
	for res := range c.fetcher.Run(ctx, spool, reqs) {
		done++
		if res.Err != nil {
			if ctx.Err() != nil {
				continue
			}
			j.failed++
			logging.WarnWithContext(c.phaseLogger(ctx, PhaseDownloading), "image download failed", "image_download_failed",
				logging.String("file", res.Request.File),
				logging.Error(res.Err),
				logging.String(logging.FieldErrorHint, "check that the image URL is reachable and public"),
				logging.String(logging.FieldImpact, "image and its label are left out of the archive"),
			)
		} else {
			j.downloaded[res.Request.Index] = res.Path
		}
		j.progress.emit(PhaseDownloading, done, len(reqs), res.Request.File)
	}
	return ctx.Err()
}

func (c *Converter) phaseLogger(ctx context.Context, phase Phase) *slog.Logger {
	return logging.WithContext(logging.WithPhase(ctx, string(phase)), c.logger)
}

// included returns the records that belong in the archive: every record in
// a label-only export, otherwise those that were fetched or had no URL to
// fetch.
func (j *job) included() []annotation.ImageRecord {
	if !j.req.IncludeImages {
		return j.parsed.Images
	}
	out := make([]annotation.ImageRecord, 0, len(j.parsed.Images))
	for _, rec := range j.parsed.Images {
		if _, ok := j.downloaded[rec.Index]; ok || !rec.HasURL() {
			out = append(out, rec)
		}
	}
	return out
}

type encodedLabel struct {
	pos   int
	entry formats.Entry
	ok    bool
}

// encodeLabels renders per-image labels on a pool sized to GOMAXPROCS. The
// returned slice is indexed like records.
func (c *Converter) encodeLabels(ctx context.Context, j *job, records []annotation.ImageRecord) ([]*formats.Entry, error) {
	ds := j.parsed.Dataset
	labels := make([]*formats.Entry, len(records))
	total := len(records)
	j.progress.emit(PhaseConverting, 0, total, "")
	if total == 0 {
		return labels, nil
	}

	out := make(chan encodedLabel)
	waitErr := make(chan error, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	go func() {
		for pos, rec := range records {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				entry, ok, err := j.encoder.EncodeLabel(ds, rec)
				if err != nil {
					return fmt.Errorf("encode label for %s: %w", rec.File, err)
				}
				select {
				case out <- encodedLabel{pos: pos, entry: entry, ok: ok}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		waitErr <- g.Wait()
		close(out)
	}()

	done := 0
	for res := range out {
		done++
		if res.ok {
			entry := res.entry
			labels[res.pos] = &entry
		}
		j.progress.emit(PhaseConverting, done, total, records[res.pos].File)
	}
	if err := <-waitErr; err != nil {
		return nil, err
	}
	return labels, ctx.Err()
}

// zip queues config entries first, then each record's image and label in
// input order, and finalizes the archive.
func (c *Converter) zip(ctx context.Context, j *job, records []annotation.ImageRecord, labels []*formats.Entry, configEntries []formats.Entry) (int, error) {
	ds := j.parsed.Dataset
	entries := make([]archive.Entry, 0, len(configEntries)+2*len(records))
	for _, e := range configEntries {
		entries = append(entries, archive.Entry{Name: e.Name, Data: e.Data})
	}
	images := 0
	for pos, rec := range records {
		if spooled, ok := j.downloaded[rec.Index]; ok {
			if name, placed := j.encoder.ImagePath(ds, rec); placed {
				entries = append(entries, archive.Entry{Name: name, SourcePath: spooled})
				images++
			}
		}
		if labels[pos] != nil {
			entries = append(entries, archive.Entry{Name: labels[pos].Name, Data: labels[pos].Data})
		}
	}

	j.zipTotal = len(entries)
	j.progress.emit(PhaseZipping, 0, j.zipTotal, "")
	for _, entry := range entries {
		if err := j.writer.Add(ctx, entry); err != nil {
			return 0, err
		}
	}
	if err := j.writer.Close(); err != nil {
		return 0, err
	}
	return images, nil
}

// cleanup removes the spool and, when the job failed, the partial archive.
func (j *job) cleanup(runErr error) {
	if j.writer != nil && runErr != nil {
		if err := j.writer.Abort(); err != nil {
			j.logger.Debug("archive abort failed", logging.Error(err))
		}
	}
	if err := j.spool.Remove(); err != nil {
		logging.WarnWithContext(j.logger, "spool cleanup failed", "spool_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the spool directory manually"),
			logging.String(logging.FieldImpact, "downloaded images remain on disk"),
		)
	}
}

func errorHint(err error) string {
	var schemaErr *ingest.SchemaError
	var taskErr *formats.UnsupportedTaskError
	var writeErr *archive.ArchiveWriteError
	switch {
	case errors.As(err, &schemaErr):
		return "fix the reported line in the NDJSON export"
	case errors.As(err, &taskErr):
		return "choose a format that supports the dataset task"
	case errors.Is(err, archive.ErrLocked):
		return "another conversion is writing the same output path"
	case errors.As(err, &writeErr):
		return "check free space and permissions of the output directory"
	default:
		return "check logs for details"
	}
}
