package completion

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goliatone/go-wizard"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSchema wraps every schema validation failure.
var ErrInvalidSchema = errors.New("completion: invalid schema")

// Field is one required state path. When, if set, is a rule expression; the
// field is only required while it evaluates true.
type Field struct {
	Path string `yaml:"path" json:"path"`
	When string `yaml:"when,omitempty" json:"when,omitempty"`
}

// UnmarshalYAML accepts either a bare path string or a {path, when} mapping.
func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.Path = strings.TrimSpace(node.Value)
		f.When = ""
		return nil
	}
	type plain Field
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*f = Field(decoded)
	f.Path = strings.TrimSpace(f.Path)
	return nil
}

// Tab is a subdivision of a section with its own required fields. A tab whose
// When evaluates false is left out of its section's average.
type Tab struct {
	ID     string  `yaml:"id" json:"id"`
	Label  string  `yaml:"label" json:"label"`
	Fields []Field `yaml:"fields" json:"fields"`
	When   string  `yaml:"when,omitempty" json:"when,omitempty"`
}

// Section is one wizard step.
type Section struct {
	ID               string                  `yaml:"id" json:"id"`
	Label            string                  `yaml:"label" json:"label"`
	Order            int                     `yaml:"order" json:"order"`
	Tabs             []Tab                   `yaml:"tabs,omitempty" json:"tabs,omitempty"`
	Fields           []Field                 `yaml:"fields,omitempty" json:"fields,omitempty"`
	TrackProgress    bool                    `yaml:"trackProgress" json:"trackProgress"`
	CelebrationLevel wizard.CelebrationLevel `yaml:"celebrationLevel,omitempty" json:"celebrationLevel,omitempty"`
	AnimationType    string                  `yaml:"animationType,omitempty" json:"animationType,omitempty"`
	DefaultTab       string                  `yaml:"defaultTab,omitempty" json:"defaultTab,omitempty"`
}

// Tab looks up a tab by id.
func (s Section) Tab(id string) (Tab, bool) {
	for _, tab := range s.Tabs {
		if tab.ID == id {
			return tab, true
		}
	}
	return Tab{}, false
}

// Schema lists the wizard sections in display order.
type Schema struct {
	Sections []Section `yaml:"sections" json:"sections"`
}

// Section looks up a section by id.
func (s Schema) Section(id string) (Section, bool) {
	for _, section := range s.Sections {
		if section.ID == id {
			return section, true
		}
	}
	return Section{}, false
}

// TrackedSections returns the sections that count toward overall progress.
func (s Schema) TrackedSections() []Section {
	out := make([]Section, 0, len(s.Sections))
	for _, section := range s.Sections {
		if section.TrackProgress {
			out = append(out, section)
		}
	}
	return out
}

// Paths lists every distinct field path in the schema, sorted.
func (s Schema) Paths() []string {
	seen := map[string]struct{}{}
	add := func(fields []Field) {
		for _, field := range fields {
			seen[field.Path] = struct{}{}
		}
	}
	for _, section := range s.Sections {
		add(section.Fields)
		for _, tab := range section.Tabs {
			add(tab.Fields)
		}
	}
	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Validate rejects duplicate ids, empty paths, unparsable paths and unknown
// celebration levels.
func (s Schema) Validate() error {
	var errs []error
	sections := map[string]bool{}
	for i, section := range s.Sections {
		if section.ID == "" {
			errs = append(errs, fmt.Errorf("section %d has no id", i))
			continue
		}
		if sections[section.ID] {
			errs = append(errs, fmt.Errorf("duplicate section %q", section.ID))
		}
		sections[section.ID] = true

		switch section.CelebrationLevel {
		case "", wizard.CelebrationNone, wizard.CelebrationMinor, wizard.CelebrationMajor, wizard.CelebrationGrand:
		default:
			errs = append(errs, fmt.Errorf("section %q: unknown celebration level %q", section.ID, section.CelebrationLevel))
		}
		if len(section.Tabs) > 0 && len(section.Fields) > 0 {
			errs = append(errs, fmt.Errorf("section %q: declare fields on its tabs or on the section, not both", section.ID))
		}
		errs = append(errs, validateFields(section.ID, section.Fields)...)

		tabs := map[string]bool{}
		for j, tab := range section.Tabs {
			if tab.ID == "" {
				errs = append(errs, fmt.Errorf("section %q: tab %d has no id", section.ID, j))
				continue
			}
			if tabs[tab.ID] {
				errs = append(errs, fmt.Errorf("section %q: duplicate tab %q", section.ID, tab.ID))
			}
			tabs[tab.ID] = true
			errs = append(errs, validateFields(section.ID+"/"+tab.ID, tab.Fields)...)
		}
		if section.DefaultTab != "" && !tabs[section.DefaultTab] {
			errs = append(errs, fmt.Errorf("section %q: default tab %q does not exist", section.ID, section.DefaultTab))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSchema, errors.Join(errs...))
}

func validateFields(owner string, fields []Field) []error {
	var errs []error
	for i, field := range fields {
		if field.Path == "" {
			errs = append(errs, fmt.Errorf("%s: field %d has an empty path", owner, i))
			continue
		}
		if _, err := parsePath(field.Path); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", owner, err))
		}
	}
	return errs
}

// ParseSchema decodes a YAML schema document and validates it.
func ParseSchema(raw []byte) (Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(raw, &schema); err != nil {
		return Schema{}, fmt.Errorf("completion: parse schema: %w", err)
	}
	if err := schema.Validate(); err != nil {
		return Schema{}, err
	}
	return schema, nil
}

// LoadSchemaFile reads and parses the schema at path.
func LoadSchemaFile(path string) (Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("completion: read schema: %w", err)
	}
	schema, err := ParseSchema(raw)
	if err != nil {
		return Schema{}, fmt.Errorf("%s: %w", path, err)
	}
	return schema, nil
}
