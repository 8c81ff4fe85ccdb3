// =============================================================================
// MDF-e Converter - Flat-Text Layout
// =============================================================================
//
// A layout maps every line label of the flat-text dialect to the ordered list
// of field names its tokens carry. Layouts are versioned (the versao of the A
// line selects one) and are data, not code: the 3.00 layout ships embedded,
// and operators can supply their own as YAML or as an XLSX workbook.
//
// YAML LAYOUT:
//   version: "3.00"
//   labels:
//     A: [versao, Id]
//     B01: [cMunCarrega, xMunCarrega]
//
// XLSX LAYOUT:
//   One sheet per version, named after it. Column A holds the label,
//   columns B.. hold the field names in order. Row 1 is a header.
//
//   | Label | Field 1     | Field 2     | ... |
//   |-------|-------------|-------------|-----|
//   | A     | versao      | Id          |     |
//   | B01   | cMunCarrega | xMunCarrega |     |
//
// =============================================================================

package layout

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed mdfe_300.yaml
var defaultLayout []byte

// DefaultVersion is the layout version shipped with the converter.
const DefaultVersion = "3.00"

// =============================================================================
// LAYOUT
// =============================================================================

// Layout is one version of the label table.
type Layout struct {
	// Version is the layout version, matched against the A line's versao.
	Version string `yaml:"version"`

	// Labels maps an upper-case label to its ordered field names.
	Labels map[string][]string `yaml:"labels"`

	// Source is where the layout was loaded from, for messages.
	Source string `yaml:"-"`
}

// Fields returns the field names of label. Labels are case-insensitive.
func (l *Layout) Fields(label string) ([]string, bool) {
	fields, ok := l.Labels[strings.ToUpper(label)]
	return fields, ok
}

// LabelNames returns the layout's labels, sorted.
func (l *Layout) LabelNames() []string {
	names := lo.Keys(l.Labels)
	sort.Strings(names)
	return names
}

// CheckAgainst verifies the layout and the builder agree on the label set:
// every label the builder routes has a layout entry and every layout entry
// has somewhere to go.
func (l *Layout) CheckAgainst(handled []string) error {
	declared := l.LabelNames()

	noLayout, noHandler := lo.Difference(handled, declared)
	sort.Strings(noLayout)
	sort.Strings(noHandler)

	var problems []string
	if len(noLayout) > 0 {
		problems = append(problems, "labels without layout: "+strings.Join(noLayout, ", "))
	}
	if len(noHandler) > 0 {
		problems = append(problems, "labels without handler: "+strings.Join(noHandler, ", "))
	}
	if len(problems) > 0 {
		return fmt.Errorf("layout %s (%s) does not match the builder: %s",
			l.Version, l.Source, strings.Join(problems, "; "))
	}
	return nil
}

// normalize upper-cases labels and trims field names.
func (l *Layout) normalize() error {
	if strings.TrimSpace(l.Version) == "" {
		return fmt.Errorf("layout has no version")
	}
	l.Version = strings.TrimSpace(l.Version)

	labels := make(map[string][]string, len(l.Labels))
	for label, fields := range l.Labels {
		key := strings.ToUpper(strings.TrimSpace(label))
		if key == "" {
			return fmt.Errorf("layout %s has an empty label", l.Version)
		}
		if _, dup := labels[key]; dup {
			return fmt.Errorf("layout %s declares label %s twice", l.Version, key)
		}
		labels[key] = lo.Map(fields, func(f string, _ int) string { return strings.TrimSpace(f) })
	}
	l.Labels = labels
	return nil
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns the embedded 3.00 layout.
func Default() (*Layout, error) {
	l, err := Parse(defaultLayout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded layout: %w", err)
	}
	l.Source = "embedded"
	return l, nil
}

// Parse reads a YAML layout.
func Parse(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}
	if err := l.normalize(); err != nil {
		return nil, err
	}
	return &l, nil
}

// LoadFile loads every layout in path. YAML files hold one layout, XLSX
// workbooks one per sheet.
func LoadFile(path string) ([]*Layout, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return LoadXLSX(path)
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read layout file: %w", err)
		}
		l, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		l.Source = path
		return []*Layout{l}, nil
	default:
		return nil, fmt.Errorf("unsupported layout file %s (want .yaml, .yml or .xlsx)", path)
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds layouts by version.
type Registry struct {
	layouts map[string]*Layout
}

// NewRegistry creates a registry seeded with the embedded layout.
func NewRegistry() (*Registry, error) {
	def, err := Default()
	if err != nil {
		return nil, err
	}
	r := &Registry{layouts: make(map[string]*Layout)}
	r.Add(def)
	return r, nil
}

// Add registers l, replacing any layout of the same version.
func (r *Registry) Add(l *Layout) {
	r.layouts[l.Version] = l
}

// LoadFile adds every layout found in path.
func (r *Registry) LoadFile(path string) error {
	layouts, err := LoadFile(path)
	if err != nil {
		return err
	}
	for _, l := range layouts {
		r.Add(l)
	}
	return nil
}

// Get returns the layout for version.
func (r *Registry) Get(version string) (*Layout, bool) {
	l, ok := r.layouts[strings.TrimSpace(version)]
	return l, ok
}

// Versions lists the registered versions, sorted.
func (r *Registry) Versions() []string {
	versions := lo.Keys(r.layouts)
	sort.Strings(versions)
	return versions
}

// CheckAgainst runs Layout.CheckAgainst on every registered layout.
func (r *Registry) CheckAgainst(handled []string) error {
	for _, v := range r.Versions() {
		if err := r.layouts[v].CheckAgainst(handled); err != nil {
			return err
		}
	}
	return nil
}
