// =============================================================================
// MDF-e Converter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, the main command of the tool.
//
// COMMAND USAGE:
//   converter convert [flags]
//
// FLAGS:
//   --file     : Convert only this file instead of scanning the input directory
//   --dry-run  : Convert and report, but write nothing and archive nothing
//
// PROCESSING PIPELINE:
//   1. Load configuration, layouts and the key registry
//   2. Discover manifest files in the input directory
//   3. Convert each file concurrently:
//      a. Decode the text (encoding, cleanup)
//      b. Split the batch and convert every document
//      c. Write one XML per document
//   4. Archive fully converted files
//   5. Write the error log and the summary
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/mdfe-converter/internal/config"
	"github.com/ginjaninja78/mdfe-converter/internal/converter"
	"github.com/ginjaninja78/mdfe-converter/internal/registry"
	"github.com/ginjaninja78/mdfe-converter/internal/txtparser"
	"github.com/ginjaninja78/mdfe-converter/internal/validation"
	"github.com/ginjaninja78/mdfe-converter/internal/xmlwriter"
	"github.com/ginjaninja78/mdfe-converter/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun converts without writing output files.
var dryRun bool

// filePath is a single file to convert.
var filePath string

// =============================================================================
// CONVERT COMMAND DEFINITION
// =============================================================================

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert manifest text files to MDF-e XML",
	Long: `The convert command scans the input directory for manifest text files and
converts every manifest they carry into an MDF-e XML document.

Files are processed concurrently. Each file is independent, and errors in one
file do not affect the others.

On success:
  - One XML per manifest is placed in the output directory
  - The input file is moved to the input archive

On error:
  - An error log naming the document and line is created in the output directory
  - The input file remains in the input directory
  - With continue_on_error, the manifests that did convert are still written`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert()
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Convert and report without writing or archiving anything",
	)

	convertCmd.Flags().StringVar(
		&filePath,
		"file",
		"",
		"Path to a specific file to convert",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runConvert() error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	fmt.Println("=== MDF-e Converter ===")
	fmt.Println("Loading configuration...")

	mainConfig, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	conv, err := newConverter(mainConfig, logger)
	if err != nil {
		return err
	}

	var keys converter.KeyRecorder
	if mainConfig.RegistryPath != "" && !dryRun {
		store, err := registry.Open(mainConfig.RegistryPath)
		if err != nil {
			return err
		}
		defer store.Close()
		keys = store
	}

	files := utils.NewFileManager(
		mainConfig.InputDir,
		mainConfig.OutputDir,
		mainConfig.InputArchiveDir,
		mainConfig.OutputArchiveDir,
	)
	if !dryRun {
		if err := files.EnsureDirectories(); err != nil {
			return fmt.Errorf("failed to create directories: %w", err)
		}
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if filePath != "" {
		inputFiles = []string{filePath}
	} else {
		inputFiles, err = files.DiscoverInputFiles(mainConfig.InputPattern)
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}

	if len(inputFiles) == 0 {
		fmt.Println("No manifest files found in the input directory.")
		return nil
	}

	fmt.Printf("Found %d file(s) to process\n", len(inputFiles))

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================

	fmt.Println("Processing files...")

	var wg sync.WaitGroup
	results := make(chan converter.Result, len(inputFiles))

	for _, file := range inputFiles {
		wg.Add(1)

		go func(path string) {
			defer wg.Done()
			if dryRun {
				results <- dryRunFile(conv, mainConfig, path)
				return
			}
			results <- converter.NewFileProcessor(mainConfig, conv, files, keys).Run(path)
		}(file)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// =========================================================================
	// STEP 4: COLLECT RESULTS
	// =========================================================================

	summary := utils.ProcessingSummary{
		StartTime:  startTime,
		TotalFiles: len(inputFiles),
	}
	var errorEntries []utils.ErrorLogEntry

	for result := range results {
		name := filepath.Base(result.FilePath)
		summary.TotalDocuments += len(result.Documents)
		summary.FailedDocuments += result.Stats.DocumentsFailed

		if result.Success {
			summary.SuccessfulFiles++
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   result.FilePath,
				OutputFiles: result.OutputFiles,
				ArchivePath: result.ArchivePath,
				Documents:   result.Stats.DocumentsConverted,
				ProcessTime: result.Stats.ProcessingTime,
			})
			fmt.Printf("  ✓ %s -> %d document(s)\n", name, len(result.Documents))
			if verbose {
				for _, d := range result.Documents {
					if len(d.Findings) > 0 {
						fmt.Printf("    document %d: %s", d.Index, validation.FormatErrors(d.Findings))
					}
				}
			}
			continue
		}

		summary.FailedFiles++
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    result.FilePath,
			ErrorMessage: fmt.Sprint(result.Error),
			ErrorType:    converter.ErrorKind(result.Error),
		})
		errorEntries = append(errorEntries, result.ErrorLogEntries(time.Now())...)
		fmt.Printf("  ✗ %s: %v\n", name, result.Error)
	}
	summary.EndTime = time.Now()

	// =========================================================================
	// STEP 5: PRINT SUMMARY
	// =========================================================================

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:     %d\n", summary.TotalFiles)
	fmt.Printf("Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Printf("Errors:          %d\n", summary.FailedFiles)
	fmt.Printf("Documents:       %d (%d failed)\n", summary.TotalDocuments, summary.FailedDocuments)
	fmt.Printf("Time elapsed:    %s\n", summary.EndTime.Sub(startTime))

	if dryRun {
		return nil
	}

	if logPath, err := utils.WriteErrorLog(errorEntries, mainConfig.OutputDir); err != nil {
		logger.Warn("Failed to write error log: %v", err)
	} else if logPath != "" {
		fmt.Printf("\nErrors have been logged to %s\n", logPath)
	}
	if _, err := utils.WriteSummaryLog(summary, mainConfig.OutputDir); err != nil {
		logger.Warn("Failed to write summary: %v", err)
	}

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// newConverter builds the converter the configuration describes.
func newConverter(mainConfig *config.MainConfig, logger converter.Logger) (*converter.Converter, error) {
	layouts, err := loadLayouts(mainConfig)
	if err != nil {
		return nil, err
	}
	loc, err := mainConfig.Location()
	if err != nil {
		return nil, err
	}

	output := xmlwriter.DefaultGenerateOptions()
	output.Indent = mainConfig.Indent

	return converter.New(converter.Options{
		Layouts:        layouts,
		Location:       loc,
		Marker:         mainConfig.DocumentMarker,
		MaxConcurrency: mainConfig.MaxConcurrency,
		Output:         output,
		Fields:         validation.NewValidator(),
		Logger:         logger,
	})
}

// dryRunFile converts path without touching the file system.
func dryRunFile(conv *converter.Converter, mainConfig *config.MainConfig, path string) converter.Result {
	result := converter.Result{FilePath: path}

	text, err := txtparser.ReadFile(path, mainConfig.Encoding)
	if err != nil {
		result.Error = err
		return result
	}
	docs, err := conv.ConvertEach(text)
	if err != nil {
		result.Error = err
		return result
	}

	result.Documents = docs
	var errs []error
	for _, d := range docs {
		if !d.OK() {
			result.Stats.DocumentsFailed++
			errs = append(errs, d.Err)
			continue
		}
		result.Stats.DocumentsConverted++
	}
	result.Error = errors.Join(errs...)
	result.Success = result.Error == nil
	return result
}
