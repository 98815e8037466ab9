// =============================================================================
// Ledger Normalizer - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the normalizer:
//   - Input discovery (workbooks first, then delimited files)
//   - Client-name extraction from file names
//   - Output file naming
//   - The run summary log
//
// DISCOVERY ORDER:
//   *.xlsx sorted by name, then *.xls sorted by name, then *.csv sorted by
//   name. Record IDs follow this order, so it must stay stable across runs.
//   Excel lock files ("~$Book.xlsx") are never inputs.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DiscoveryExtensions are the input extensions in discovery order.
var DiscoveryExtensions = []string{".xlsx", ".xls", ".csv"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the normalizer.
type FileManager struct {
	// InputDir is the directory scanned for raw client files.
	InputDir string

	// OutputDir is the directory where artifacts and logs are written.
	OutputDir string
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir string) *FileManager {
	return &FileManager{
		InputDir:  inputDir,
		OutputDir: outputDir,
	}
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the input files in discovery order.
//
// PARAMETERS:
//   - exclude: Base names to leave out, e.g. the run's own output files when
//              the input and output directories are the same.
//
// A .csv whose name matches a discovered workbook apart from the extension
// is its twin (transpose writes both) and is left out, so the same records
// are not loaded twice.
//
// RETURNS:
//   - A slice of file paths.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverInputFiles(exclude ...string) ([]string, error) {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	workbooks := make(map[string]bool)
	var result []string
	for _, ext := range DiscoveryExtensions {
		files, err := fm.discover(ext)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if skip[filepath.Base(file)] {
				continue
			}
			stem := strings.ToLower(fileStem(file))
			if ext == ".csv" {
				if workbooks[stem] {
					continue
				}
			} else {
				workbooks[stem] = true
			}
			result = append(result, file)
		}
	}

	return result, nil
}

// fileStem is the base name of path without its extension.
func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// discover returns the regular files in InputDir with extension ext
// (case-insensitive), sorted by name.
func (fm *FileManager) discover(ext string) ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "~$") {
			continue
		}
		if strings.EqualFold(filepath.Ext(name), ext) {
			files = append(files, filepath.Join(fm.InputDir, name))
		}
	}

	sort.Strings(files)
	return files, nil
}

// =============================================================================
// CLIENT NAMES
// =============================================================================

// ExtractClientName derives the client key from a file name: the first
// matching extension is stripped, then the first matching suffix, then the
// result is trimmed.
//
// EXAMPLE:
//   "Mint Med Hat Car Wash Raw Data.xlsx" -> "Mint Med Hat Car Wash"
//   "Dreams Car Wash Dashboard_01292025.xlsx" -> "Dreams Car Wash"
func ExtractClientName(fileName string, extensions, suffixes []string) string {
	name := filepath.Base(fileName)

	for _, ext := range extensions {
		if strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
			name = name[:len(name)-len(ext)]
			break
		}
	}

	for _, suffix := range suffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	return strings.TrimSpace(name)
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName expands the placeholders of an output base name.
// The extension is added by the writer.
//
// PARAMETERS:
//   - format: The base name. Placeholders:
//               {uuid}      - A random UUID
//               {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//               {date}      - Current date (YYYYMMDD)
//               {time}      - Current time (HHMMSS)
//   - params: Extra placeholder values, e.g. {"run": runID}.
//
// EXAMPLE:
//   format: "normalized_{date}"
//   output: "normalized_20250115"
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
		"{time}":      now.Format("150405"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	return result
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	RunID            string
	StartTime        time.Time
	EndTime          time.Time
	TotalFiles       int
	LoadedFiles      int
	SkippedFiles     int
	TotalRecords     int
	CleanedValues    int
	ValidationErrors int
	OutputFiles      []string
	ProcessedFiles   []ProcessedFileInfo
	SkippedFilesList []SkippedFileInfo
	Findings         []string
}

// ProcessedFileInfo contains information about a loaded file.
type ProcessedFileInfo struct {
	InputFile string
	Client    string
	Sheet     string
	Rows      int
}

// SkippedFileInfo contains information about a file that could not be loaded.
type SkippedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes a processing summary to the output directory.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	timestamp := summary.StartTime.Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("processing_summary_%s.txt", timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "Ledger Normalizer - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:        %d\n"+
		"  Loaded:             %d\n"+
		"  Skipped:            %d\n"+
		"  Total Records:      %d\n"+
		"  Cleaned Values:     %d\n"+
		"  Validation Errors:  %d\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.TotalFiles,
		summary.LoadedFiles,
		summary.SkippedFiles,
		summary.TotalRecords,
		summary.CleanedValues,
		summary.ValidationErrors)

	if len(summary.OutputFiles) > 0 {
		writer.WriteString("Output Files:\n")
		for _, out := range summary.OutputFiles {
			fmt.Fprintf(writer, "  %s\n", out)
		}
		writer.WriteString("\n")
	}

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Loaded Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:   %s\n", pf.InputFile)
			fmt.Fprintf(writer, "  Client:  %s\n", pf.Client)
			if pf.Sheet != "" {
				fmt.Fprintf(writer, "  Sheet:   %s\n", pf.Sheet)
			}
			fmt.Fprintf(writer, "  Rows:    %d\n\n", pf.Rows)
		}
	}

	if len(summary.SkippedFilesList) > 0 {
		writer.WriteString("Skipped Files:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, sf := range summary.SkippedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", sf.InputFile)
			fmt.Fprintf(writer, "  Error: %s\n\n", sf.ErrorMessage)
		}
	}

	if len(summary.Findings) > 0 {
		writer.WriteString("Validation Findings:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, finding := range summary.Findings {
			fmt.Fprintf(writer, "  %s\n", finding)
		}
		writer.WriteString("\n")
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
