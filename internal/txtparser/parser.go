// =============================================================================
// MDF-e Converter - Flat-Text Parser Module
// =============================================================================
//
// This module turns the raw bytes of a manifest file into decoded lines. It
// handles the quirks of the files produced by legacy ERPs:
//   - Latin-1 / Windows-1252 encodings
//   - CR/LF line endings and stray TAB characters
//   - Padding spaces around the "|" separators
//
// LINE FORMAT:
//   LABEL|field1|field2|...|
//
//   Token 0 is the label. The layout for the document's version names the
//   field at every other position. Missing trailing tokens decode as "",
//   extra tokens are ignored.
//
// =============================================================================

package txtparser

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/ginjaninja78/mdfe-converter/internal/layout"
	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
)

// Separator splits the tokens of a line.
const Separator = "|"

// Supported input encodings.
const (
	EncodingUTF8        = "UTF-8"
	EncodingLatin1      = "ISO-8859-1"
	EncodingWindows1252 = "Windows-1252"
)

// =============================================================================
// LINE STRUCTURE
// =============================================================================

// Line is one decoded field-group.
type Line struct {
	// Number is the 1-based line number inside the payload.
	Number int

	// Label is the upper-case label (token 0).
	Label string

	// Fields maps the layout's field names to their tokens.
	Fields mdfe.Fields

	// Raw is the line as read, for error messages.
	Raw string
}

// =============================================================================
// READING AND CLEANUP
// =============================================================================

// ReadFile reads path, converts it to UTF-8 and cleans it.
//
// PARAMETERS:
//   - path: The manifest file.
//   - enc: One of the Encoding* constants. Empty means UTF-8.
func ReadFile(path, enc string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	text, err := Decode(raw, enc)
	if err != nil {
		return "", err
	}
	return Clean(text), nil
}

// Decode converts raw to UTF-8 in NFC form.
//
// CUSTOMIZATION:
//   Add more charmaps to getDecoder when new sources appear.
func Decode(raw []byte, enc string) (string, error) {
	decoder, err := getDecoder(enc)
	if err != nil {
		return "", err
	}

	text := raw
	if decoder != nil {
		text, err = decoder.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("failed to decode %s input: %w", enc, err)
		}
	}

	// A UTF-8 BOM would otherwise stick to the header label.
	return norm.NFC.String(strings.TrimPrefix(string(text), "\uFEFF")), nil
}

// getDecoder returns nil for UTF-8.
func getDecoder(enc string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(enc)) {
	case "", "UTF-8", "UTF8":
		return nil, nil
	case "ISO-8859-1", "ISO8859-1", "LATIN1":
		return charmap.ISO8859_1, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}
}

var (
	multiSpace     = regexp.MustCompile(` {2,}`)
	separatorSpace = regexp.MustCompile(` *\| *`)
)

// Clean strips carriage returns and tabs, collapses runs of spaces and removes
// the spaces around separators. Line breaks are kept.
func Clean(text string) string {
	text = strings.NewReplacer("\r", "", "\t", "").Replace(text)
	text = multiSpace.ReplaceAllString(text, " ")
	text = separatorSpace.ReplaceAllString(text, Separator)
	return strings.TrimSpace(text)
}

// SplitLines splits cleaned text on line breaks.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// =============================================================================
// LINE DECODING
// =============================================================================

// LabelOf returns the upper-case label of a raw line, ignoring spaces.
func LabelOf(raw string) string {
	token, _, _ := strings.Cut(raw, Separator)
	return strings.ToUpper(strings.ReplaceAll(token, " ", ""))
}

// DecodeLine turns one raw line into a Line using l.
//
// RETURNS:
//   - A MalformedLineError when the line has no label or the label is not
//     declared by the layout.
func DecodeLine(number int, raw string, l *layout.Layout) (Line, error) {
	tokens := strings.Split(raw, Separator)
	label := LabelOf(raw)
	if label == "" {
		return Line{}, &mdfe.MalformedLineError{Line: number, Content: raw, Reason: "line has no label"}
	}

	names, ok := l.Fields(label)
	if !ok {
		return Line{}, &mdfe.MalformedLineError{
			Line:    number,
			Content: raw,
			Reason:  fmt.Sprintf("label %s is not defined in layout %s", label, l.Version),
		}
	}

	fields := make(mdfe.Fields, len(names))
	for i, name := range names {
		if name == "" {
			continue
		}
		value := ""
		if i+1 < len(tokens) {
			value = tokens[i+1]
		}
		fields[name] = value
	}

	return Line{
		Number: number,
		Label:  label,
		Fields: fields,
		Raw:    raw,
	}, nil
}
