// =============================================================================
// MDF-e Converter - Batch Splitter
// =============================================================================
//
// A manifest file carries one or more documents behind a batch header:
//
//   MANIFESTO|2|
//   A|3.00|MDFe3118...|
//   B|31|2|...
//   ...
//   A|3.00|MDFe3118...|
//   ...
//
// With a count of 1 everything after the header is the document. Otherwise a
// new document starts at every marker line (A by default). The number of
// groups found must equal the declared count before any document is decoded.
//
// =============================================================================

package batch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/ginjaninja78/mdfe-converter/internal/mdfe"
	"github.com/ginjaninja78/mdfe-converter/internal/txtparser"
)

// HeaderLabel is token 0 of the batch header line.
const HeaderLabel = "MANIFESTO"

// DefaultMarker is the label that opens every document.
const DefaultMarker = "A"

// RawLine is an undecoded line with its position in the payload.
type RawLine struct {
	Number int
	Text   string
}

// Group is the lines of one document.
type Group struct {
	// Index is the 1-based position of the document in the batch.
	Index int
	Lines []RawLine
}

// Batch is a split payload.
type Batch struct {
	Declared int
	Groups   []Group
}

// Split cuts lines (the whole payload, header included) into one group per
// document.
//
// RETURNS:
//   - A MalformedLineError when the header is missing or its count is not a
//     positive integer, or when content precedes the first marker.
//   - A CountMismatchError when the number of groups differs from the header.
func Split(lines []string, marker string) (*Batch, error) {
	if marker == "" {
		marker = DefaultMarker
	}
	marker = strings.ToUpper(marker)

	numbered := lo.FilterMap(lines, func(text string, i int) (RawLine, bool) {
		return RawLine{Number: i + 1, Text: text}, strings.TrimSpace(text) != ""
	})
	if len(numbered) == 0 {
		return nil, &mdfe.MalformedLineError{Reason: "empty payload"}
	}

	declared, err := parseHeader(numbered[0])
	if err != nil {
		return nil, err
	}
	body := numbered[1:]

	b := &Batch{Declared: declared}
	if declared == 1 {
		if len(body) > 0 {
			b.Groups = []Group{{Index: 1, Lines: body}}
		}
	} else {
		b.Groups, err = splitOnMarker(body, marker)
		if err != nil {
			return nil, err
		}
	}

	if len(b.Groups) != declared {
		return nil, &mdfe.CountMismatchError{Declared: declared, Detected: len(b.Groups)}
	}
	return b, nil
}

// SplitText is Split over a cleaned payload.
func SplitText(text, marker string) (*Batch, error) {
	return Split(txtparser.SplitLines(text), marker)
}

func parseHeader(line RawLine) (int, error) {
	tokens := strings.Split(line.Text, txtparser.Separator)
	if txtparser.LabelOf(line.Text) != HeaderLabel {
		return 0, &mdfe.MalformedLineError{
			Line:    line.Number,
			Content: line.Text,
			Reason:  fmt.Sprintf("payload must start with a %s header", HeaderLabel),
		}
	}
	if len(tokens) < 2 {
		return 0, &mdfe.MalformedLineError{Line: line.Number, Content: line.Text, Reason: "header has no document count"}
	}

	n, err := strconv.Atoi(strings.TrimSpace(tokens[1]))
	if err != nil || n <= 0 {
		return 0, &mdfe.MalformedLineError{
			Line:    line.Number,
			Content: line.Text,
			Reason:  fmt.Sprintf("invalid document count %q", tokens[1]),
		}
	}
	return n, nil
}

func splitOnMarker(body []RawLine, marker string) ([]Group, error) {
	var groups []Group
	for _, line := range body {
		if txtparser.LabelOf(line.Text) == marker {
			groups = append(groups, Group{Index: len(groups) + 1})
		}
		if len(groups) == 0 {
			return nil, &mdfe.MalformedLineError{
				Line:    line.Number,
				Content: line.Text,
				Reason:  fmt.Sprintf("line precedes the first document marker %s", marker),
			}
		}
		last := &groups[len(groups)-1]
		last.Lines = append(last.Lines, line)
	}
	return groups, nil
}

// Version returns the versao of the group's infMDFe (A) line, or "" when the
// group has none.
func (g Group) Version() string {
	for _, line := range g.Lines {
		if txtparser.LabelOf(line.Text) != DefaultMarker {
			continue
		}
		tokens := strings.Split(line.Text, txtparser.Separator)
		if len(tokens) > 1 {
			return strings.TrimSpace(tokens[1])
		}
		return ""
	}
	return ""
}
