// =============================================================================
// MDF-e Converter - Document Tree Builder
// =============================================================================
//
// The builder consumes decoded lines one at a time, in file order, and routes
// each to its attach point in the document tree. Nesting is implicit in the
// flat text, so the builder keeps a small set of "current" pointers:
//
//   - pending ide            flushed when the issuer (C) opens, or at Finish
//   - issuer                 write-once
//   - discharge index        advanced by every E line
//   - open fiscal reference  F/H/J up to F99/H99/J99, tagged with the
//                            discharge index that was current when it opened
//   - transport/cargo unit   most recent x01 / x03 of the open reference
//
// A line with nowhere to go is a SchemaViolation and aborts the document.
// Field coherence (key, dates, required values) is not checked here; that
// belongs to Reconcile and the serializer.
//
// =============================================================================

package mdfe

import (
	"strings"
	"time"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a Builder.
type Options struct {
	// Location is the timezone used to fill an empty dhEmi. nil means UTC.
	Location *time.Location

	// Now is the clock used to fill an empty dhEmi. nil means time.Now.
	Now func() time.Time
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder assembles one Document. It is not safe for concurrent use and is
// not reusable: create one per document.
type Builder struct {
	opts     Options
	doc      Document
	acc      accumulator
	opened   bool
	finished bool
}

// accumulator holds every open nesting context of the document in progress.
type accumulator struct {
	ide    *Identification
	issuer *Issuer

	discharge int

	ref      *FiscalRef
	refLabel string
	refAt    int
	unit     int
	cargo    int

	insurance *Insurance
	road      *RoadModal
}

// NewBuilder creates a Builder ready for the document's first line.
func NewBuilder(opts Options) *Builder {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Builder{
		opts: opts,
		acc: accumulator{
			discharge: -1,
			unit:      -1,
			cargo:     -1,
		},
	}
}

// Feed routes one decoded line. Labels are matched case-insensitively.
func (b *Builder) Feed(label string, fields Fields) error {
	key := strings.ToUpper(strings.TrimSpace(label))

	if b.finished {
		return violation(key, "document already finished")
	}

	h, ok := handlers[key]
	if !ok {
		return violation(key, "label has no place in the document")
	}

	if !b.opened && key != "A" {
		return violation(key, "infMDFe (A) must be the first line of a document")
	}

	return h(b, fields)
}

// Finish closes the document and hands it to the caller. Groups left open
// (reference, seg, rodo) are a SchemaViolation; a pending ide is attached.
// The builder accepts no input afterwards.
func (b *Builder) Finish() (*Document, error) {
	if b.finished {
		return nil, violation("A", "document already finished")
	}
	if !b.opened {
		return nil, violation("A", "no infMDFe line in document")
	}
	if b.acc.ref != nil {
		return nil, violation(b.acc.refLabel+"99", "%s opened by %s was never closed", b.acc.ref.Kind, b.acc.refLabel)
	}
	if b.acc.insurance != nil {
		return nil, violation("K03", "seg opened by K was never closed")
	}
	if b.acc.road != nil {
		return nil, violation("P99", "rodo opened by O01 was never closed")
	}

	if b.acc.ide != nil {
		b.doc.Ide = b.acc.ide
		b.acc.ide = nil
	}

	b.finished = true
	doc := b.doc
	b.doc = Document{}
	return &doc, nil
}

// now renders the builder clock in dhEmi format.
func (b *Builder) now() string {
	return b.opts.Now().In(b.opts.Location).Format(DateTimeLayout)
}
