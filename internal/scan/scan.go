// =============================================================================
// Freight Billing Reconciler - Folder Scanner
// =============================================================================
//
// The scanner ingests every new carrier file of one input folder.
//
// SCAN LOOP:
//   1. List *.csv and *.xlsx files in the folder
//   2. Skip paths already recorded as processed
//   3. Infer (carrier, cycle) from each file name
//   4. Run the ingestion pipeline, one file at a time
//   5. Archive ingested files when configured
//   6. Return (and optionally write) a summary
//
// Files are processed strictly in sequence. The processed path is recorded in
// the same commit as the ingestion, so a crash never loses or repeats a file.
// A file whose exact content is already in the ledger is recorded as
// processed too; every other failure leaves the file for the next scan.
//
// =============================================================================

package scan

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/billing"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/columnmap"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/filename"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/ingest"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/standardize"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/store"
	"github.com/ginjaninja78/freight-billing-reconciler/pkg/utils"
)

// Extensions are the file types a scan picks up.
var Extensions = []string{".csv", ".xlsx"}

// Options configures a Scanner.
type Options struct {
	// Mode is the filename mode; empty uses the saved settings.
	Mode string

	// WriteSummary writes the summary log to the file manager's OutputDir.
	WriteSummary bool

	Logger *zap.Logger
}

// Scanner runs folder scans.
type Scanner struct {
	pipeline *ingest.Pipeline
	billing  *billing.Service
	files    *utils.FileManager
	opts     Options
	logger   *zap.Logger
}

// New creates a Scanner.
func New(pipeline *ingest.Pipeline, svc *billing.Service, files *utils.FileManager, opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{pipeline: pipeline, billing: svc, files: files, opts: opts, logger: logger}
}

// Summary is the outcome of one scan.
type Summary struct {
	utils.ProcessingSummary

	// Results holds the pipeline result of every file that was attempted.
	Results []ingest.Result

	// SummaryPath is set when the summary log was written.
	SummaryPath string
}

// Run scans the folder once.
//
// RETURNS:
//   - The summary. Per-file failures are reported in it, not as an error.
//   - An error only when the folder cannot be listed or ctx is done.
func (s *Scanner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	summary.StartTime = time.Now()

	mode := s.opts.Mode
	if mode == "" {
		mode = s.billing.Settings().FilenameMode
	}

	paths, err := s.files.DiscoverInputFiles(Extensions...)
	if err != nil {
		return nil, err
	}
	summary.TotalFiles = len(paths)
	s.logger.Info("scan started", zap.String("folder", s.files.InputDir), zap.Int("files", len(paths)))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			summary.EndTime = time.Now()
			return summary, err
		}

		if s.billing.IsProcessed(path) {
			summary.SkippedFiles++
			summary.SkippedList = append(summary.SkippedList, path)
			continue
		}

		s.scanFile(ctx, path, mode, summary)
	}

	summary.EndTime = time.Now()

	if s.opts.WriteSummary && s.files.OutputDir != "" {
		p, err := utils.WriteSummaryLog(summary.ProcessingSummary, s.files.OutputDir)
		if err != nil {
			s.logger.Warn("could not write scan summary", zap.Error(err))
		} else {
			summary.SummaryPath = p
		}
	}

	s.logger.Info("scan finished",
		zap.Int("ingested", summary.SuccessfulFiles),
		zap.Int("failed", summary.FailedFiles),
		zap.Int("skipped", summary.SkippedFiles),
		zap.Int("records", summary.TotalRecords))
	return summary, nil
}

func (s *Scanner) scanFile(ctx context.Context, path, mode string, summary *Summary) {
	key, err := filename.Parse(path, mode)
	if err != nil {
		s.fail(summary, path, err)
		return
	}

	res := s.pipeline.Run(ctx, ingest.Request{
		Path:        path,
		Carrier:     key.Carrier,
		CyclePeriod: key.CyclePeriod,
		SourcePath:  path,
	})
	summary.Results = append(summary.Results, res)

	if !res.Success {
		s.fail(summary, path, res.Error)
		var dup *billing.DuplicateFileError
		if errors.As(res.Error, &dup) {
			if err := s.billing.MarkProcessed(ctx, path); err != nil {
				s.logger.Warn("could not record duplicate as processed", zap.String("path", path), zap.Error(err))
			}
		}
		return
	}

	info := utils.ProcessedFileInfo{
		InputFile:   path,
		Carrier:     key.Carrier,
		CyclePeriod: key.CyclePeriod,
		Records:     res.Counts.Valid,
		Dropped:     res.Counts.Dropped(),
		ProcessTime: res.Duration,
	}
	if s.files.ArchiveOnSuccess && s.files.ArchiveDir != "" {
		archived, err := s.files.ArchiveInputFile(path)
		if err != nil {
			s.logger.Warn("could not archive file", zap.String("path", path), zap.Error(err))
		} else {
			info.ArchivePath = archived
		}
	}

	summary.SuccessfulFiles++
	summary.TotalRecords += res.Counts.Valid
	summary.DroppedRows += res.Counts.Dropped()
	summary.ProcessedFiles = append(summary.ProcessedFiles, info)
}

func (s *Scanner) fail(summary *Summary, path string, err error) {
	s.logger.Warn("file not ingested", zap.String("path", path), zap.Error(err))
	summary.FailedFiles++
	summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
		InputFile:    path,
		ErrorType:    errorType(err),
		ErrorMessage: err.Error(),
	})
}

// errorType classifies a failure for the summary log.
func errorType(err error) string {
	var (
		nameErr     *filename.FilenameFormatError
		formatErr   *ingest.UnsupportedFormatError
		notFound    *ingest.FileNotFoundError
		tooLarge    *ingest.FileTooLargeError
		missingCols *columnmap.MissingColumnsError
		noRecords   *standardize.NoValidRecordsError
		dupFile     *billing.DuplicateFileError
		dupKey      *billing.DuplicateLogicalKeyError
		storageErr  *store.StorageIOError
	)
	switch {
	case errors.As(err, &nameErr):
		return "FilenameFormatError"
	case errors.As(err, &formatErr):
		return "UnsupportedFormatError"
	case errors.As(err, &notFound):
		return "FileNotFoundError"
	case errors.As(err, &tooLarge):
		return "FileTooLargeError"
	case errors.As(err, &missingCols):
		return "MissingColumnsError"
	case errors.As(err, &noRecords):
		return "NoValidRecordsError"
	case errors.As(err, &dupFile):
		return "DuplicateFileError"
	case errors.As(err, &dupKey):
		return "DuplicateLogicalKeyError"
	case errors.As(err, &storageErr):
		return "StorageIOError"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, ingest.ErrPanic):
		return "InternalError"
	}
	return "Error"
}
