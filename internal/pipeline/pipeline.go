// =============================================================================
// Ledger Normalizer - Pipeline Module
// =============================================================================
//
// This module orchestrates a complete normalization run, from file discovery
// to the written artifacts.
//
// PIPELINE:
//   1. Load the reference mapping table (a missing table means no rules)
//   2. Discover input files (xlsx, then xls, then csv)
//   3. Load every file into raw records tagged with file name and client;
//      a file that cannot be loaded is skipped, the run continues
//   4. Transpose the configured wide ledgers and add their records
//   5. Normalize the combined records into the canonical table
//   6. Validate: sum checks, financial column types, client summary
//   7. Write the configured artifacts and the summary log
//
// CONCURRENCY:
//   A run is sequential. Record IDs follow discovery order, which keeps
//   reruns on the same input byte-identical.
//
// =============================================================================

package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/csvparser"
	"github.com/ginjaninja78/ledger-normalizer/internal/mapping"
	"github.com/ginjaninja78/ledger-normalizer/internal/normalizer"
	"github.com/ginjaninja78/ledger-normalizer/internal/schema"
	"github.com/ginjaninja78/ledger-normalizer/internal/table"
	"github.com/ginjaninja78/ledger-normalizer/internal/transposer"
	"github.com/ginjaninja78/ledger-normalizer/internal/validation"
	"github.com/ginjaninja78/ledger-normalizer/internal/writer"
	"github.com/ginjaninja78/ledger-normalizer/internal/xlsxparser"
	"github.com/ginjaninja78/ledger-normalizer/pkg/utils"
)

var (
	// ErrNoLoadableFiles means no input file could be loaded and no ledger
	// was transposed, so there is nothing to normalize.
	ErrNoLoadableFiles = errors.New("no loadable input files")

	// ErrUnsupportedFormat is recorded for inputs the loaders cannot read,
	// such as legacy .xls workbooks.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// LoadedFile describes one input file that was loaded.
type LoadedFile struct {
	Path   string
	Client string

	// Sheet is the worksheet read, empty for delimited files.
	Sheet string

	Rows int
}

// SkippedFile is an input file that could not be loaded.
type SkippedFile struct {
	Path string
	Err  error
}

// LedgerRun is one wide ledger transposed during the run.
type LedgerRun struct {
	Source config.LedgerSource
	Sheet  string
	Result *transposer.Result
	Checks []transposer.TotalCheck
}

// Result represents the outcome of a run.
type Result struct {
	// RunID identifies the run in logs and the summary.
	RunID string

	StartTime time.Time
	EndTime   time.Time

	// ReferenceFound is false when the reference table does not exist.
	ReferenceFound bool
	Rules          int

	Files   []LoadedFile
	Skipped []SkippedFile
	Ledgers []LedgerRun

	// Records are the combined raw records, in record-id order.
	Records []table.RawRecord

	Table      *table.Table
	Report     *normalizer.Report
	Validation *validation.ValidationResult

	// OutputFiles are the artifacts written. Empty on a dry run.
	OutputFiles []string
	SummaryFile string
}

// =============================================================================
// PIPELINE STRUCTURE
// =============================================================================

// Pipeline runs normalization for one configuration.
type Pipeline struct {
	cfg        *config.MainConfig
	schema     *config.SchemaData
	registry   *schema.Registry
	resolver   *mapping.Resolver
	transposer *transposer.Transposer
	validator  *validation.Validator
	files      *utils.FileManager
	logger     *slog.Logger
}

// New creates a pipeline.
//
// PARAMETERS:
//   - cfg: The main configuration.
//   - schemaData: The schema data (canonical columns, overrides, suffixes).
//   - logger: The run logger. May be nil.
//
// RETURNS:
//   - A new Pipeline, or an error for an invalid matcher or ledger setting.
func New(cfg *config.MainConfig, schemaData *config.SchemaData, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := schema.New(schemaData)

	matcher, err := mapping.NewMatcher(cfg.Matcher)
	if err != nil {
		return nil, err
	}

	tr, err := transposer.New(cfg.Ledger, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:        cfg,
		schema:     schemaData,
		registry:   registry,
		resolver:   mapping.NewResolver(registry, matcher, schemaData.ManualOverrides, logger),
		transposer: tr,
		validator:  validation.NewValidator(registry),
		files:      utils.NewFileManager(cfg.InputDir, cfg.OutputDir),
		logger:     logger,
	}, nil
}

// Registry returns the canonical schema the pipeline normalizes into.
func (p *Pipeline) Registry() *schema.Registry {
	return p.registry
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline. With dryRun nothing is written.
//
// RETURNS:
//   - The Result. On ErrNoLoadableFiles it still lists the skipped files.
//   - An error if the reference table is unreadable, nothing could be
//     loaded, or an artifact cannot be written.
func (p *Pipeline) Run(dryRun bool) (*Result, error) {
	result := &Result{
		RunID:     uuid.New().String(),
		StartTime: time.Now(),
	}
	logger := p.logger.With(slog.String("run_id", result.RunID))

	// =========================================================================
	// STEP 1: LOAD REFERENCE TABLE
	// =========================================================================

	rules, found, err := mapping.LoadRules(p.cfg.ReferenceTable, p.cfg.CSVSettings)
	if err != nil {
		return result, err
	}
	result.ReferenceFound = found
	result.Rules = len(rules)
	if !found {
		logger.Warn("reference table not found, only manual overrides apply",
			slog.String("path", p.cfg.ReferenceTable))
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	outputName := utils.GenerateOutputFileName(p.cfg.OutputName, map[string]string{"run": result.RunID})
	paths, err := p.files.DiscoverInputFiles(p.outputBaseNames(outputName)...)
	if err != nil {
		return result, err
	}
	logger.Info("discovered input files", slog.Int("count", len(paths)))

	// =========================================================================
	// STEP 3: LOAD FILES
	// =========================================================================

	for _, path := range paths {
		loaded, records, err := p.LoadFile(path)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedFile{Path: path, Err: err})
			logger.Warn("skipping file", slog.String("file", filepath.Base(path)), slog.String("error", err.Error()))
			continue
		}
		result.Files = append(result.Files, loaded)
		result.Records = append(result.Records, records...)
		logger.Info("loaded file",
			slog.String("file", filepath.Base(path)),
			slog.String("client", loaded.Client),
			slog.Int("rows", loaded.Rows))
	}

	// =========================================================================
	// STEP 4: TRANSPOSE LEDGERS
	// =========================================================================

	for _, source := range p.cfg.Ledgers {
		run, err := p.TransposeLedger(source)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedFile{Path: source.File, Err: err})
			logger.Warn("skipping ledger", slog.String("file", filepath.Base(source.File)), slog.String("error", err.Error()))
			continue
		}
		result.Ledgers = append(result.Ledgers, *run)
		result.Records = append(result.Records, run.Result.Table.Records(filepath.Base(source.File), source.Client)...)
		rules = append(identityRules(source.Client, run.Result, p.registry), rules...)
	}

	if len(result.Files) == 0 && len(result.Ledgers) == 0 {
		result.EndTime = time.Now()
		return result, fmt.Errorf("%w: %d discovered, %d skipped", ErrNoLoadableFiles, len(paths), len(result.Skipped))
	}

	// =========================================================================
	// STEP 5: NORMALIZE
	// =========================================================================

	norm := normalizer.New(p.registry, p.resolver, rules, logger)
	tbl, report, err := norm.Normalize(result.Records)
	if err != nil {
		return result, err
	}
	result.Table = tbl
	result.Report = report

	// =========================================================================
	// STEP 6: VALIDATE
	// =========================================================================

	result.Validation = p.validator.ValidateAll(result.Records, tbl, p.cfg.SumChecks)
	for _, ledger := range result.Ledgers {
		result.Validation.Merge(p.validator.ValidateLedger(ledger.Source.Client, ledger.Checks))
	}
	for _, finding := range result.Validation.Errors {
		logger.Warn("validation finding", slog.String("finding", finding.Error()))
	}

	// =========================================================================
	// STEP 7: WRITE OUTPUT
	// =========================================================================

	result.EndTime = time.Now()
	if dryRun {
		logger.Info("dry run, nothing written")
		return result, nil
	}

	opts := writer.DefaultOptions()
	opts.Delimiter = csvparser.Delimiter(p.cfg.CSVSettings.Delimiter)
	result.OutputFiles, err = writer.WriteAll(p.cfg.OutputDir, outputName, p.cfg.OutputFormats, tbl, opts)
	if err != nil {
		return result, err
	}

	result.SummaryFile, err = utils.WriteSummaryLog(Summary(result), p.cfg.OutputDir)
	if err != nil {
		return result, err
	}

	logger.Info("run complete",
		slog.Int("records", tbl.Len()),
		slog.Int("cleaned", report.TotalCleaned()),
		slog.Int("skipped_files", len(result.Skipped)),
		slog.String("summary", result.SummaryFile))

	return result, nil
}

// =============================================================================
// LOADING
// =============================================================================

// ClientName derives the client key of an input file.
func (p *Pipeline) ClientName(path string) string {
	return utils.ExtractClientName(path, p.schema.FileExtensions, p.schema.ClientSuffixes)
}

// LoadFile reads one input file into raw records.
//
// RETURNS:
//   - What was loaded and the records.
//   - ErrUnsupportedFormat for .xls and unknown extensions, or the loader's
//     error.
func (p *Pipeline) LoadFile(path string) (LoadedFile, []table.RawRecord, error) {
	loaded := LoadedFile{Path: path, Client: p.ClientName(path)}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		sheet, err := xlsxparser.ReadRawData(path, p.schema.RawDataSheets)
		if err != nil {
			return loaded, nil, err
		}
		loaded.Sheet = sheet.Name
		loaded.Rows = len(sheet.Rows)
		return loaded, sheet.Records(loaded.Client), nil

	case ".csv":
		data, err := csvparser.Parse(path, p.cfg.CSVSettings)
		if err != nil {
			return loaded, nil, err
		}
		loaded.Rows = len(data.Rows)
		return loaded, data.Records(loaded.Client), nil

	case ".xls":
		return loaded, nil, fmt.Errorf("%w: legacy .xls workbooks must be saved as .xlsx", ErrUnsupportedFormat)

	default:
		return loaded, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// TransposeLedger reads a wide ledger and transposes it. The total check is
// run on the result.
func (p *Pipeline) TransposeLedger(source config.LedgerSource) (*LedgerRun, error) {
	sheet := source.Sheet
	if sheet == "" {
		sheet = p.cfg.Ledger.Sheet
	}

	matrix, err := xlsxparser.ReadMatrix(source.File, sheet)
	if err != nil {
		return nil, err
	}

	result, err := p.transposer.Transpose(matrix)
	if err != nil {
		return nil, fmt.Errorf("failed to transpose %s: %w", filepath.Base(source.File), err)
	}

	return &LedgerRun{
		Source: source,
		Sheet:  sheet,
		Result: result,
		Checks: transposer.CheckTotals(result.Table, p.cfg.Ledger),
	}, nil
}

// WriteLedger writes a transposed ledger as "<Client><suffix>" in every
// configured format, with the xlsx sheet named "Raw Data" so the next run
// loads it like any client export.
func (p *Pipeline) WriteLedger(run *LedgerRun, dir string) ([]string, error) {
	opts := writer.DefaultOptions()
	opts.SheetName = xlsxparser.PrimaryRawDataSheet
	opts.Delimiter = csvparser.Delimiter(p.cfg.CSVSettings.Delimiter)

	formats := []string{config.FormatXLSX, config.FormatCSV}
	return writer.WriteAll(dir, run.Source.Client+p.cfg.Ledger.OutputSuffix, formats, run.Result.Table, opts)
}

// identityRules maps every transposed category that is already a canonical
// column onto itself. They go before the reference rules so a reference row
// for the same column still wins.
func identityRules(client string, result *transposer.Result, registry *schema.Registry) []mapping.Rule {
	var rules []mapping.Rule
	seen := make(map[string]bool)
	for _, c := range result.Categories {
		if seen[c.Label] || !registry.IsCanonical(c.Label) {
			continue
		}
		seen[c.Label] = true
		rules = append(rules, mapping.Rule{Client: client, Original: c.Label, Canonical: c.Label})
	}
	return rules
}

// outputBaseNames lists the file names this run writes, so that an output
// directory shared with the input directory is not read back.
func (p *Pipeline) outputBaseNames(outputName string) []string {
	var names []string
	for _, format := range p.cfg.OutputFormats {
		if w, err := writer.New(format, writer.DefaultOptions()); err == nil {
			names = append(names, outputName+w.Extension())
		}
	}
	return names
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary converts a run result into the summary log layout.
func Summary(result *Result) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		RunID:        result.RunID,
		StartTime:    result.StartTime,
		EndTime:      result.EndTime,
		TotalFiles:   len(result.Files) + len(result.Skipped) + len(result.Ledgers),
		LoadedFiles:  len(result.Files) + len(result.Ledgers),
		SkippedFiles: len(result.Skipped),
		OutputFiles:  result.OutputFiles,
	}

	if result.Table != nil {
		summary.TotalRecords = result.Table.Len()
	}
	if result.Report != nil {
		summary.CleanedValues = result.Report.TotalCleaned()
	}

	for _, f := range result.Files {
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile: filepath.Base(f.Path),
			Client:    f.Client,
			Sheet:     f.Sheet,
			Rows:      f.Rows,
		})
	}
	for _, l := range result.Ledgers {
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile: filepath.Base(l.Source.File),
			Client:    l.Source.Client,
			Sheet:     l.Sheet,
			Rows:      l.Result.Table.Len(),
		})
	}
	for _, s := range result.Skipped {
		summary.SkippedFilesList = append(summary.SkippedFilesList, utils.SkippedFileInfo{
			InputFile:    filepath.Base(s.Path),
			ErrorMessage: s.Err.Error(),
		})
	}

	if result.Validation != nil {
		summary.ValidationErrors = result.Validation.ErrorCount
		for _, finding := range result.Validation.Errors {
			summary.Findings = append(summary.Findings, finding.Error())
		}
		for _, check := range result.Validation.SumChecks {
			status := "MATCH"
			if !check.Matches {
				status = "MISMATCH"
			}
			summary.Findings = append(summary.Findings, fmt.Sprintf("[SUM] %s '%s' -> '%s': %s vs %s %s",
				check.Client, check.Original, check.Canonical,
				check.SourceSum.StringFixed(2), check.NormalizedSum.StringFixed(2), status))
		}
	}

	return summary
}
