package converter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/ginjaninja78/mdfe-converter/internal/config"
	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
	"github.com/ginjaninja78/mdfe-converter/internal/registry"
	"github.com/ginjaninja78/mdfe-converter/internal/txtparser"
	"github.com/ginjaninja78/mdfe-converter/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// OutputFiles are the generated XML files, one per converted document.
	OutputFiles []string

	// ArchivePath is where the input file went, empty when it stayed.
	ArchivePath string

	// Success is true when every document of the file converted.
	Success bool

	// Error is the batch-level error, or the join of the failed documents.
	Error error

	// Documents holds the per-document outcomes, XML omitted.
	Documents []DocumentResult

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// DocumentsConverted is the number of XML files written.
	DocumentsConverted int

	// DocumentsFailed is the number of documents that did not convert.
	DocumentsFailed int

	// FieldWarnings is the number of field-format findings.
	FieldWarnings int

	// DuplicateKeys counts keys already present in the registry.
	DuplicateKeys int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// KeyRecorder remembers emitted access keys.
type KeyRecorder interface {
	Record(key, source string) (registry.Entry, bool, error)
}

// =============================================================================
// FILE PROCESSOR
// =============================================================================

// FileProcessor converts manifest files found on disk.
type FileProcessor struct {
	cfg   *config.MainConfig
	conv  *Converter
	files *utils.FileManager
	keys  KeyRecorder
	log   Logger
}

// NewFileProcessor creates a processor. keys may be nil.
func NewFileProcessor(cfg *config.MainConfig, conv *Converter, files *utils.FileManager, keys KeyRecorder) *FileProcessor {
	return &FileProcessor{
		cfg:   cfg,
		conv:  conv,
		files: files,
		keys:  keys,
		log:   conv.opts.Logger,
	}
}

// Run converts one file.
//
// PROCESSING STEPS:
//  1. Read and decode the file
//  2. Convert every document
//  3. Write one XML per converted document (all or none unless
//     ContinueOnError is set)
//  4. Record the keys
//  5. Archive the input when every document converted
func (p *FileProcessor) Run(path string) (result Result) {
	startTime := time.Now()
	result = Result{FilePath: path}
	defer func() { result.Stats.ProcessingTime = time.Since(startTime) }()

	p.log.Info("Processing file: %s", path)

	text, err := txtparser.ReadFile(path, p.cfg.Encoding)
	if err != nil {
		result.Error = err
		return result
	}

	docs, err := p.conv.ConvertEach(text)
	if err != nil {
		result.Error = err
		return result
	}

	failed := lo.Filter(docs, func(r DocumentResult, _ int) bool { return !r.OK() })
	result.Stats.DocumentsFailed = len(failed)
	if len(failed) > 0 {
		result.Error = errors.Join(lo.Map(failed, func(r DocumentResult, _ int) error { return r.Err })...)
		if !p.cfg.ContinueOnError {
			result.Documents = stripXML(docs)
			return result
		}
	}

	source := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, doc := range docs {
		if !doc.OK() {
			continue
		}
		result.Stats.FieldWarnings += len(doc.Findings)

		name := utils.GenerateOutputFileName(p.cfg.UUIDFormat, map[string]string{
			"key":    doc.Key,
			"index":  strconv.Itoa(doc.Index),
			"source": source,
		})
		out, err := p.files.WriteOutput(name, []byte(doc.XML))
		if err != nil {
			result.Error = errors.Join(result.Error, fmt.Errorf("document %d: %w", doc.Index, err))
			result.Documents = stripXML(docs)
			return result
		}
		result.OutputFiles = append(result.OutputFiles, out)
		result.Stats.DocumentsConverted++
		p.log.Debug("Document %d written to %s", doc.Index, out)

		if _, err := p.files.ArchiveOutputFile(out); err != nil {
			p.log.Warn("Failed to archive %s: %v", out, err)
		}

		if p.keys != nil {
			prev, seen, err := p.keys.Record(doc.Key, filepath.Base(path))
			switch {
			case err != nil:
				p.log.Warn("Failed to record key %s: %v", doc.Key, err)
			case seen:
				result.Stats.DuplicateKeys++
				p.log.Warn("Key %s was already emitted from %s on %s",
					doc.Key, prev.Source, prev.RecordedAt.Format(time.RFC3339))
			}
		}
	}
	result.Documents = stripXML(docs)

	if result.Stats.DocumentsFailed > 0 {
		return result
	}

	archived, err := p.files.ArchiveInputFile(path)
	if err != nil {
		p.log.Warn("Failed to archive input file: %v", err)
	} else {
		result.ArchivePath = archived
	}

	result.Success = true
	return result
}

// ErrorLogEntries turns the failures of result into error log lines.
func (r Result) ErrorLogEntries(at time.Time) []utils.ErrorLogEntry {
	name := filepath.Base(r.FilePath)

	var entries []utils.ErrorLogEntry
	for _, d := range r.Documents {
		if d.Err != nil {
			entries = append(entries, newLogEntry(at, name, d.Index, d.Err))
		}
	}
	if len(entries) == 0 && r.Error != nil {
		entries = append(entries, newLogEntry(at, name, 0, r.Error))
	}
	return entries
}

func newLogEntry(at time.Time, name string, index int, err error) utils.ErrorLogEntry {
	entry := utils.ErrorLogEntry{
		Timestamp:    at,
		FileName:     name,
		ErrorType:    ErrorKind(err),
		ErrorMessage: err.Error(),
		Document:     index,
	}
	var (
		malformed *mdfe.MalformedLineError
		violation *mdfe.SchemaViolationError
	)
	switch {
	case errors.As(err, &malformed):
		entry.LineNumber = malformed.Line
	case errors.As(err, &violation):
		entry.LineNumber = violation.Line
	}
	return entry
}

func stripXML(docs []DocumentResult) []DocumentResult {
	return lo.Map(docs, func(d DocumentResult, _ int) DocumentResult {
		d.XML = ""
		return d
	})
}
