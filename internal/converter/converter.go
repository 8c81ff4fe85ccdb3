// =============================================================================
// MDF-e Converter - Converter Module
// =============================================================================
//
// This module contains the core conversion logic. It turns one flat-text
// payload into one XML string per manifest.
//
// CONVERSION PIPELINE:
//   1. Clean the text and split it into per-document groups
//   2. Pick the layout named by each group's A line
//   3. Decode every line and feed it to a fresh document builder
//   4. Reconcile the access key against the document's fields
//   5. Check field formats (findings are logged, never fatal)
//   6. Serialize the document
//
// CONCURRENCY:
//   Documents are independent. They run through a bounded worker pool and
//   results are returned in batch order. A Converter is safe for concurrent
//   use; builders are never shared.
//
// =============================================================================

package converter

import (
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/ginjaninja78/mdfe-converter/internal/batch"
	"github.com/ginjaninja78/mdfe-converter/internal/concurrent"
	"github.com/ginjaninja78/mdfe-converter/internal/layout"
	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
	"github.com/ginjaninja78/mdfe-converter/internal/txtparser"
	"github.com/ginjaninja78/mdfe-converter/internal/validation"
	"github.com/ginjaninja78/mdfe-converter/internal/xmlwriter"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Converter. The zero value converts with the embedded
// 3.00 layout, UTC and compact output.
type Options struct {
	// Layouts selects a layout by the versao of each document. nil means the
	// embedded layout only.
	Layouts *layout.Registry

	// Location fills an empty dhEmi and reads dhEmi values without offset.
	Location *time.Location

	// Now is the clock used for an empty dhEmi.
	Now func() time.Time

	// Marker is the label that opens every document of a batch.
	// Default: "A"
	Marker string

	// MaxConcurrency bounds the documents converted at once. 0 means one
	// worker per document.
	MaxConcurrency int

	// Output controls the serializer.
	Output xmlwriter.GenerateOptions

	// Fields checks field formats. nil disables the check.
	Fields *validation.Validator

	Logger Logger
}

// =============================================================================
// RESULT STRUCTURES
// =============================================================================

// DocumentResult is the outcome of one document of a batch.
type DocumentResult struct {
	// Index is the 1-based position of the document in the batch.
	Index int

	// Key is the 44-digit access key. Empty if the document failed before
	// its Id was read.
	Key string

	// XML is the serialized document. Empty on failure.
	XML string

	// Findings are the field-format problems of a successful document.
	Findings []*validation.ValidationError

	// Err is a DocumentError wrapping one of the mdfe error kinds.
	Err error
}

// OK reports whether the document converted.
func (r DocumentResult) OK() bool { return r.Err == nil }

// =============================================================================
// CONVERTER
// =============================================================================

// Converter converts flat-text payloads.
type Converter struct {
	opts Options
}

// New creates a Converter, loading the embedded layout when opts carries
// none.
func New(opts Options) (*Converter, error) {
	if opts.Layouts == nil {
		reg, err := layout.NewRegistry()
		if err != nil {
			return nil, err
		}
		opts.Layouts = reg
	}
	if err := opts.Layouts.CheckAgainst(mdfe.Labels()); err != nil {
		return nil, err
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Marker == "" {
		opts.Marker = batch.DefaultMarker
	}
	if opts.Output == (xmlwriter.GenerateOptions{}) {
		opts.Output = xmlwriter.DefaultGenerateOptions()
	}
	if opts.Logger == nil {
		opts.Logger = NopLogger()
	}
	return &Converter{opts: opts}, nil
}

// ToXML converts text with the default options.
func ToXML(text string) ([]string, error) {
	c, err := New(Options{})
	if err != nil {
		return nil, err
	}
	return c.ToXML(text)
}

// ToXML converts every document of text. It is all-or-nothing: when any
// document fails no XML is returned and the error joins one DocumentError
// per failed document.
//
// RETURNS:
//   - One XML string per document, in batch order.
//   - A MalformedLineError or CountMismatchError for a bad batch header.
func (c *Converter) ToXML(text string) ([]string, error) {
	results, err := c.ConvertEach(text)
	if err != nil {
		return nil, err
	}

	failed := lo.Filter(results, func(r DocumentResult, _ int) bool { return !r.OK() })
	if len(failed) > 0 {
		return nil, errors.Join(lo.Map(failed, func(r DocumentResult, _ int) error { return r.Err })...)
	}

	return lo.Map(results, func(r DocumentResult, _ int) string { return r.XML }), nil
}

// ConvertEach converts every document of text and reports each one on its
// own, so a bad document does not discard the others.
//
// RETURNS:
//   - One DocumentResult per document, in batch order.
//   - An error only when the batch itself cannot be split.
func (c *Converter) ConvertEach(text string) ([]DocumentResult, error) {
	b, err := batch.SplitText(txtparser.Clean(text), c.opts.Marker)
	if err != nil {
		return nil, err
	}
	c.opts.Logger.Debug("Batch declares %d document(s)", b.Declared)

	runner := concurrent.NewRunner[batch.Group, DocumentResult](concurrent.RunnerConfig{
		MaxConcurrency: c.opts.MaxConcurrency,
		LogPrefix:      "convert",
		Logger:         loggerAsZap(c.opts.Logger),
	})

	run := runner.Run(b.Groups, func(_ int, g batch.Group, messages chan<- string) (DocumentResult, error) {
		r := c.ConvertGroup(g)
		if r.OK() {
			messages <- fmt.Sprintf("document %d converted (%s)", r.Index, r.Key)
		}
		return r, r.Err
	})

	for _, r := range run.Results {
		if !r.OK() {
			c.opts.Logger.Warn("Document %d failed: %v", r.Index, r.Err)
			continue
		}
		for _, f := range r.Findings {
			c.opts.Logger.Warn("Document %d: %s", r.Index, f.Error())
		}
	}
	return run.Results, nil
}

// ConvertGroup runs the per-document pipeline on one group of lines.
func (c *Converter) ConvertGroup(g batch.Group) DocumentResult {
	result := DocumentResult{Index: g.Index}

	doc, err := c.build(g)
	if doc != nil {
		result.Key = doc.Key()
	}
	if err == nil {
		doc, err = mdfe.Reconcile(doc, c.opts.Location)
	}
	if err == nil && c.opts.Fields != nil {
		result.Findings = c.opts.Fields.ValidateDocument(doc).Errors
	}
	if err == nil {
		result.XML, err = xmlwriter.GenerateWithOptions(doc, c.opts.Output)
	}

	if err != nil {
		result.Err = &mdfe.DocumentError{Index: g.Index, Err: err}
		result.XML = ""
		result.Findings = nil
	}
	return result
}

// build decodes and feeds every line of g.
func (c *Converter) build(g batch.Group) (*mdfe.Document, error) {
	if len(g.Lines) == 0 {
		return nil, &mdfe.MalformedLineError{Reason: "document has no lines"}
	}

	version := g.Version()
	if version == "" {
		version = layout.DefaultVersion
	}
	l, ok := c.opts.Layouts.Get(version)
	if !ok {
		first := g.Lines[0]
		return nil, &mdfe.MalformedLineError{
			Line:    first.Number,
			Content: first.Text,
			Reason:  fmt.Sprintf("no layout for version %s (have %v)", version, c.opts.Layouts.Versions()),
		}
	}

	b := mdfe.NewBuilder(mdfe.Options{Location: c.opts.Location, Now: c.opts.Now})
	for _, raw := range g.Lines {
		line, err := txtparser.DecodeLine(raw.Number, raw.Text, l)
		if err != nil {
			return nil, err
		}
		if err := b.Feed(line.Label, line.Fields); err != nil {
			var v *mdfe.SchemaViolationError
			if errors.As(err, &v) {
				v.Line, v.Content = raw.Number, raw.Text
				return nil, v
			}
			return nil, fmt.Errorf("line %d: %w", line.Number, err)
		}
	}

	return b.Finish()
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// ErrorKind names the mdfe error kind of err, for logs and error reports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, mdfe.ErrMalformedLine):
		return "MalformedLine"
	case errors.Is(err, mdfe.ErrSchemaViolation):
		return "SchemaViolation"
	case errors.Is(err, mdfe.ErrMissingRequiredField):
		return "MissingRequiredField"
	case errors.Is(err, mdfe.ErrKeyMismatch):
		return "KeyMismatch"
	case errors.Is(err, mdfe.ErrDocumentCountMismatch):
		return "DocumentCountMismatch"
	default:
		return "Error"
	}
}
