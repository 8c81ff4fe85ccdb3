// =============================================================================
// MDF-e Converter - File Manager Utility
// =============================================================================
//
// Everything the converter does on disk goes through this file:
//   - finding the manifest text files of a run
//   - writing one XML per converted manifest
//   - archiving inputs and outputs
//   - the error log and the run summary
//
// ARCHIVAL STRATEGY:
//   - An input file is moved to input_archive only when every manifest in it
//     was written
//   - Each XML is copied to output_archive and stays in output
//   - A file with any failed manifest stays in input for the next run
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const ruler = "================================================================================"

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager owns the four directories of a run.
type FileManager struct {
	InputDir         string
	OutputDir        string
	InputArchiveDir  string
	OutputArchiveDir string

	// UseTimestampSubdirs files archives under year/month/day.
	// Example: input_archive/2024/05/15/lote.txt
	UseTimestampSubdirs bool

	// ArchiveOnSuccess turns archiving on. When false the Archive methods
	// return the path they were given.
	ArchiveOnSuccess bool

	// Now is the clock used for archive subdirectories. nil means time.Now.
	Now func() time.Time
}

// NewFileManager returns a FileManager that archives into flat directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		OutputArchiveDir: outputArchiveDir,
		ArchiveOnSuccess: true,
	}
}

// EnsureDirectories creates the four directories.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir, fm.OutputArchiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (fm *FileManager) now() time.Time {
	if fm.Now != nil {
		return fm.Now()
	}
	return time.Now()
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the regular files of the input directory that
// match pattern.
//
// PARAMETERS:
//   - pattern: A glob relative to InputDir. Empty means "*.txt".
//
// RETURNS:
//   - The matching paths in lexical order, so batches run in a stable order.
//   - An error if the pattern is malformed.
func (fm *FileManager) DiscoverInputFiles(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.txt"
	}

	matches, err := filepath.Glob(filepath.Join(fm.InputDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	files := lo.Filter(matches, func(path string, _ int) bool {
		info, err := os.Stat(path)
		return err == nil && info.Mode().IsRegular()
	})
	sort.Strings(files)
	return files, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

// WriteOutput stores data as name in the output directory and returns the
// full path.
func (fm *FileManager) WriteOutput(name string, data []byte) (string, error) {
	path := filepath.Join(fm.OutputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves a processed input file into the input archive.
//
// RETURNS:
//   - The archived path.
//   - An error if the file could be neither renamed nor copied.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	target, err := fm.archiveTarget(fm.InputArchiveDir, filePath)
	if err != nil {
		return "", err
	}
	if err := os.Rename(filePath, target); err == nil {
		return target, nil
	}

	// Rename fails across devices.
	if err := copyFile(filePath, target); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}
	if err := os.Remove(filePath); err != nil {
		return "", fmt.Errorf("failed to remove original file: %w", err)
	}
	return target, nil
}

// ArchiveOutputFile copies a written XML into the output archive.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	target, err := fm.archiveTarget(fm.OutputArchiveDir, filePath)
	if err != nil {
		return "", err
	}
	if err := copyFile(filePath, target); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}
	return target, nil
}

// archiveTarget returns where filePath lands inside archiveDir, creating the
// directories on the way.
func (fm *FileManager) archiveTarget(archiveDir, filePath string) (string, error) {
	dir := archiveDir
	if fm.UseTimestampSubdirs {
		dir = filepath.Join(archiveDir, filepath.FromSlash(fm.now().Format("2006/01/02")))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	return filepath.Join(dir, filepath.Base(filePath)), nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName expands the placeholders of format.
//
// PARAMETERS:
//   - format: The file name template. Built-in placeholders:
//       {uuid}      - A random UUID
//       {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//       {date}      - Current date (YYYYMMDD)
//       {time}      - Current time (HHMMSS)
//     Any key of params is a placeholder too, e.g. {key}, {index}, {source}.
//   - params: Values for the extra placeholders.
//
// EXAMPLE:
//   format: "{key}-mdfe.xml"
//   params: {"key": "31240511222333000181580010000001231123456787"}
//   output: "31240511222333000181580010000001231123456787-mdfe.xml"
//
// A name without the .xml extension gets it appended.
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	pairs := []string{
		"{timestamp}", now.Format("20060102_150405"),
		"{date}", now.Format("20060102"),
		"{time}", now.Format("150405"),
	}
	if strings.Contains(format, "{uuid}") {
		pairs = append(pairs, "{uuid}", uuid.NewString())
	}
	for _, key := range lo.Keys(params) {
		pairs = append(pairs, "{"+key+"}", params[key])
	}

	name := strings.NewReplacer(pairs...).Replace(format)
	if !strings.EqualFold(filepath.Ext(name), ".xml") {
		name += ".xml"
	}
	return name
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry is one failure of a run.
type ErrorLogEntry struct {
	Timestamp    time.Time
	FileName     string
	ErrorType    string
	ErrorMessage string
	Document     int // 1-based position in the batch, 0 for file-level errors
	LineNumber   int // 1-based line of the input, 0 when unknown
}

// WriteErrorLog writes entries to error_log_<timestamp>.txt in outputDir.
//
// RETURNS:
//   - The log path, or "" when entries is empty and nothing was written.
//   - An error if the log could not be written.
func WriteErrorLog(entries []ErrorLogEntry, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	now := time.Now()
	path := filepath.Join(outputDir, "error_log_"+now.Format("20060102_150405")+".txt")

	err := writeReport(path, func(w *bufio.Writer) {
		fmt.Fprintf(w, "MDF-e Converter - Error Log\nGenerated: %s\nTotal Errors: %d\n%s\n\n",
			now.Format(time.DateTime), len(entries), ruler)

		for i, e := range entries {
			fmt.Fprintf(w, "Error #%d\n", i+1)
			field(w, "Timestamp", e.Timestamp.Format(time.DateTime))
			field(w, "File", e.FileName)
			if e.Document > 0 {
				field(w, "Document", e.Document)
			}
			if e.LineNumber > 0 {
				field(w, "Line Number", e.LineNumber)
			}
			field(w, "Error Type", e.ErrorType)
			field(w, "Message", e.ErrorMessage)
			w.WriteString("\n")
		}

		fmt.Fprintf(w, "%s\nEnd of Error Log\n", ruler)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write error log: %w", err)
	}
	return path, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary describes one run of the convert command.
type ProcessingSummary struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalFiles      int
	SuccessfulFiles int
	FailedFiles     int
	TotalDocuments  int
	FailedDocuments int
	ProcessedFiles  []ProcessedFileInfo
	FailedFilesList []FailedFileInfo
}

// ProcessedFileInfo is an input whose manifests were all written.
type ProcessedFileInfo struct {
	InputFile   string
	OutputFiles []string
	ArchivePath string
	Documents   int
	ProcessTime time.Duration
}

// FailedFileInfo is an input left in place.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
	ErrorType    string
}

// WriteSummaryLog writes processing_summary_<timestamp>.txt in outputDir.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	path := filepath.Join(outputDir, "processing_summary_"+time.Now().Format("20060102_150405")+".txt")

	err := writeReport(path, func(w *bufio.Writer) {
		fmt.Fprintf(w, "MDF-e Converter - Processing Summary\n%s\n\nRun Information:\n", ruler)
		field(w, "Start Time", summary.StartTime.Format(time.DateTime))
		field(w, "End Time", summary.EndTime.Format(time.DateTime))
		field(w, "Duration", summary.EndTime.Sub(summary.StartTime))

		w.WriteString("\nStatistics:\n")
		field(w, "Total Files", summary.TotalFiles)
		field(w, "Successful", summary.SuccessfulFiles)
		field(w, "Failed", summary.FailedFiles)
		field(w, "Total Documents", summary.TotalDocuments)
		field(w, "Failed Documents", summary.FailedDocuments)
		w.WriteString("\n")

		if len(summary.ProcessedFiles) > 0 {
			fmt.Fprintf(w, "Successful Files:\n%s\n", strings.Repeat("-", len(ruler)))
			for _, pf := range summary.ProcessedFiles {
				field(w, "Input", pf.InputFile)
				for _, out := range pf.OutputFiles {
					field(w, "Output", out)
				}
				if pf.ArchivePath != "" {
					field(w, "Archived", pf.ArchivePath)
				}
				field(w, "Documents", pf.Documents)
				field(w, "Process Time", pf.ProcessTime)
				w.WriteString("\n")
			}
		}

		if len(summary.FailedFilesList) > 0 {
			fmt.Fprintf(w, "Failed Files:\n%s\n", strings.Repeat("-", len(ruler)))
			for _, ff := range summary.FailedFilesList {
				field(w, "File", ff.InputFile)
				field(w, "Type", ff.ErrorType)
				field(w, "Error", ff.ErrorMessage)
				w.WriteString("\n")
			}
		}

		fmt.Fprintf(w, "%s\nEnd of Summary\n", ruler)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}
	return path, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// writeReport creates path and fills it through body.
func writeReport(path string, body func(w *bufio.Writer)) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	body(w)
	return w.Flush()
}

// field writes an indented "Name: value" line with values aligned.
func field(w *bufio.Writer, name string, value any) {
	fmt.Fprintf(w, "  %-18s%v\n", name+":", value)
}

// copyFile copies src to dst, replacing dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
