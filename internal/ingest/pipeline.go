// =============================================================================
// Freight Billing Reconciler - Ingestion Pipeline
// =============================================================================
//
// The pipeline takes one carrier file from bytes on disk to a committed batch
// in the billing ledger.
//
// PIPELINE:
//   1. Read the file, bounded by max_file_mb
//   2. Hash the content (xxhash) and run the dedup precheck
//   3. Parse CSV or XLSX into a raw table
//   4. Apply the carrier profile's value rules
//   5. Resolve headers to canonical fields
//   6. Standardize rows into shipment records
//   7. Commit the batch through the billing service
//
// Every failure, including a panic, comes back as a Result. Run never returns
// an error and never panics.
//
// =============================================================================

package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/billing"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/columnmap"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/config"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/csvparser"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/standardize"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/xlsxparser"
)

// =============================================================================
// REQUEST & RESULT
// =============================================================================

// Request describes one file to ingest.
type Request struct {
	// Path is the file on disk. Either Path or Reader must be set.
	Path string

	// Reader supplies the content when the file is not on disk. Filename
	// is then required to pick the format.
	Reader io.Reader

	// Filename overrides filepath.Base(Path) in the ledger.
	Filename string

	Carrier     string
	CyclePeriod string

	// Replace deletes the existing data of (Carrier, CyclePeriod) first.
	Replace bool

	// Overrides map raw headers to canonical fields and win over both the
	// carrier profile and the synonym table.
	Overrides map[string]columnmap.Field

	// SourcePath marks the file as processed in the same commit. Set by the
	// folder scanner.
	SourcePath string
}

func (r Request) filename() string {
	if r.Filename != "" {
		return r.Filename
	}
	return filepath.Base(r.Path)
}

// Result represents the outcome of ingesting a single file.
type Result struct {
	Filename    string
	Carrier     string
	CyclePeriod string

	// FileHash is the hex xxhash of the content, empty if the file was not read.
	FileHash string

	// Success indicates whether the batch was committed.
	Success bool

	// Message is a one-line outcome for display.
	Message string

	// Error contains the cause when Success is false.
	Error error

	// Counts are the before/after row counts of standardization.
	Counts standardize.Counts

	// Mapping is the resolved header mapping, for diagnostics.
	Mapping columnmap.Mapping

	// Stats are the ledger effects of the commit.
	Stats billing.Stats

	Duration time.Duration
}

// =============================================================================
// PIPELINE
// =============================================================================

// Options configures a Pipeline.
type Options struct {
	// Config defaults to config.Default().
	Config *config.MainConfig

	// Profiles are the per-carrier reader settings and rules.
	Profiles config.Profiles

	// Synonyms defaults to columnmap.DefaultSynonyms().
	Synonyms columnmap.SynonymTable

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs ingestions against one billing service. It holds no
// per-file state and is safe for concurrent use.
type Pipeline struct {
	billing  *billing.Service
	cfg      *config.MainConfig
	profiles config.Profiles
	synonyms columnmap.SynonymTable
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Pipeline.
func New(svc *billing.Service, opts Options) *Pipeline {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Synonyms == nil {
		opts.Synonyms = columnmap.DefaultSynonyms()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		billing:  svc,
		cfg:      opts.Config,
		profiles: opts.Profiles,
		synonyms: opts.Synonyms,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// Run executes the pipeline for one file.
//
// PARAMETERS:
//   - ctx: Cancels parsing and the commit. ingest_timeout is applied on top.
//   - req: The file and its (carrier, cycle) key.
//
// RETURNS:
//   - A Result. Error supports errors.As for every typed error of
//     ingest, columnmap, standardize, billing and store.
func (p *Pipeline) Run(ctx context.Context, req Request) (result Result) {
	start := time.Now()
	result = Result{
		Filename:    req.filename(),
		Carrier:     strings.TrimSpace(req.Carrier),
		CyclePeriod: strings.TrimSpace(req.CyclePeriod),
	}
	log := p.logger.With(
		zap.String("filename", result.Filename),
		zap.String("carrier", result.Carrier),
		zap.String("cycle_period", result.CyclePeriod))

	defer func() {
		if r := recover(); r != nil {
			log.Error("ingestion panicked", zap.Any("panic", r), zap.Stack("stack"))
			result.Success = false
			result.Error = fmt.Errorf("%w: %v", ErrPanic, r)
			result.Message = result.Error.Error()
		}
		result.Duration = time.Since(start)
	}()

	fail := func(err error) Result {
		log.Warn("ingestion failed", zap.Error(err))
		result.Success = false
		result.Error = err
		result.Message = err.Error()
		return result
	}

	if result.Carrier == "" || result.CyclePeriod == "" {
		return fail(billing.ErrMissingKey)
	}

	if timeout := p.cfg.IngestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// =========================================================================
	// STEP 1-2: READ, HASH, PRECHECK
	// =========================================================================

	format, err := detectFormat(result.Filename)
	if err != nil {
		return fail(err)
	}

	data, err := p.read(req, result.Filename)
	if err != nil {
		return fail(err)
	}
	result.FileHash = Hash(data)

	key := types.CarrierCycle{Carrier: result.Carrier, CyclePeriod: result.CyclePeriod}
	if err := p.billing.Precheck(key, result.FileHash, req.Replace); err != nil {
		return fail(err)
	}

	// =========================================================================
	// STEP 3-4: PARSE AND CLEAN
	// =========================================================================

	profile := p.profiles.Lookup(result.Carrier)

	table, err := p.parse(ctx, format, data, profile)
	if err != nil {
		return fail(fmt.Errorf("failed to read %s: %w", result.Filename, err))
	}
	table.SourceFile = result.Filename
	log.Debug("file parsed", zap.Int("rows", table.RowCount()), zap.Strings("headers", table.Headers))

	if profile != nil && len(profile.ValueRules) > 0 {
		transformer, err := NewTransformer(profile.ValueRules)
		if err != nil {
			return fail(fmt.Errorf("carrier profile %s: %w", profile.Carrier, err))
		}
		for _, row := range table.Rows {
			transformer.Apply(row)
		}
	}

	// =========================================================================
	// STEP 5-6: MAP AND STANDARDIZE
	// =========================================================================

	overrides, err := mergeOverrides(profile, req.Overrides)
	if err != nil {
		return fail(err)
	}

	mapping, err := columnmap.Resolve(table.Headers, p.synonyms, overrides)
	if err != nil {
		return fail(err)
	}
	result.Mapping = mapping

	records, counts, err := standardize.Standardize(table, mapping, standardize.Params{
		Carrier:     result.Carrier,
		CyclePeriod: result.CyclePeriod,
		FileHash:    result.FileHash,
		UploadTime:  p.now().UTC(),
	})
	result.Counts = counts
	if err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// =========================================================================
	// STEP 7: COMMIT
	// =========================================================================

	res := p.billing.Ingest(ctx, billing.Batch{
		Filename:    result.Filename,
		FileHash:    result.FileHash,
		Carrier:     result.Carrier,
		CyclePeriod: result.CyclePeriod,
		SourcePath:  req.SourcePath,
		Records:     records,
		Replace:     req.Replace,
	})
	result.Stats = res.Stats
	if !res.Success {
		return fail(res.Error)
	}

	result.Success = true
	result.Message = res.Message
	if dropped := counts.Dropped(); dropped > 0 {
		result.Message += fmt.Sprintf("; skipped %d of %d rows (%d missing amounts, %d zero amounts)",
			dropped, counts.RowsRead, counts.MissingAmounts, counts.ZeroAmounts)
	}

	log.Info("file ingested",
		zap.Int("rows_read", counts.RowsRead),
		zap.Int("records", counts.Valid),
		zap.Int("dropped", counts.Dropped()),
		zap.String("ledger_id", res.Stats.LedgerID))
	return result
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

type fileFormat int

const (
	formatCSV fileFormat = iota
	formatXLSX
)

func detectFormat(filename string) (fileFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv", ".txt":
		return formatCSV, nil
	case ".xlsx", ".xlsm":
		return formatXLSX, nil
	}
	return 0, &UnsupportedFormatError{Filename: filename, Ext: ext}
}

// IsSupported reports whether the pipeline can read filename.
func IsSupported(filename string) bool {
	_, err := detectFormat(filename)
	return err == nil
}

// read loads the whole file, refusing anything past the size ceiling.
func (p *Pipeline) read(req Request, filename string) ([]byte, error) {
	limit := p.cfg.MaxFileBytes()

	r := req.Reader
	if r == nil {
		info, err := os.Stat(req.Path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, &FileNotFoundError{Path: req.Path}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", req.Path, err)
		}
		if limit > 0 && info.Size() > limit {
			return nil, &FileTooLargeError{Filename: filename, Limit: limit}
		}

		f, err := os.Open(req.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", req.Path, err)
		}
		defer f.Close()
		r = f
	}

	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, &FileTooLargeError{Filename: filename, Limit: limit}
	}
	return data, nil
}

func (p *Pipeline) parse(ctx context.Context, format fileFormat, data []byte, profile *config.CarrierProfile) (*types.RawTable, error) {
	switch format {
	case formatXLSX:
		opts := xlsxparser.Options{ChunkRows: p.cfg.ChunkRows, Raw: true}
		if profile != nil {
			opts.Sheet = profile.Sheet
		}
		return xlsxparser.Parse(ctx, bytes.NewReader(data), opts)
	default:
		return csvparser.Parse(ctx, bytes.NewReader(data), p.cfg.CSVFor(profile), p.cfg.ChunkRows)
	}
}

// mergeOverrides layers request overrides over the profile's.
func mergeOverrides(profile *config.CarrierProfile, request map[string]columnmap.Field) (map[string]columnmap.Field, error) {
	out := make(map[string]columnmap.Field)
	if profile != nil {
		for header, field := range profile.ColumnOverrides {
			f := columnmap.Field(strings.TrimSpace(field))
			if !columnmap.IsKnown(f) {
				return nil, fmt.Errorf("carrier profile %s: column %q targets unknown field %q", profile.Carrier, header, field)
			}
			out[header] = f
		}
	}
	for header, field := range request {
		out[header] = field
	}
	return out, nil
}

// Hash returns the content hash recorded in the ledger.
func Hash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
