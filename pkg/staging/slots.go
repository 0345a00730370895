package staging

import (
	"context"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/goliatone/go-wizard"
)

// Slot is a named place in the photo record that holds exactly one photo.
type Slot struct {
	ID       string   `yaml:"id" json:"id"`
	Label    string   `yaml:"label" json:"label"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// SlotCatalog is an ordered set of slots.
type SlotCatalog []Slot

// DefaultSlots is the catalog used for residential and commercial reports.
func DefaultSlots() SlotCatalog {
	return SlotCatalog{
		{ID: "front-exterior", Label: "Front Exterior", Keywords: []string{"front", "facade", "exterior"}},
		{ID: "rear-exterior", Label: "Rear Exterior", Keywords: []string{"rear", "back", "backyard"}},
		{ID: "street-view", Label: "Street View", Keywords: []string{"street", "road"}},
		{ID: "kitchen", Label: "Kitchen", Keywords: []string{"kitchen", "pantry"}},
		{ID: "living-room", Label: "Living Room", Keywords: []string{"living", "lounge", "family"}},
		{ID: "bathroom", Label: "Bathroom", Keywords: []string{"bath", "bathroom", "shower"}},
		{ID: "bedroom", Label: "Bedroom", Keywords: []string{"bed", "bedroom"}},
		{ID: "garage", Label: "Garage", Keywords: []string{"garage", "carport"}},
		{ID: "roof", Label: "Roof", Keywords: []string{"roof", "aerial"}},
	}
}

// Lookup returns the slot with id.
func (c SlotCatalog) Lookup(id string) (Slot, bool) {
	for _, slot := range c {
		if slot.ID == id {
			return slot, true
		}
	}
	return Slot{}, false
}

// Label returns the display label for id, or id itself when unknown.
func (c SlotCatalog) Label(id string) string {
	if slot, ok := c.Lookup(id); ok {
		return slot.Label
	}
	return id
}

// KeywordClassifier scores slots by matching file name tokens against slot
// keywords. It never fails and is deterministic, which makes it a useful
// stand-in for a vision service.
type KeywordClassifier struct {
	Catalog SlotCatalog
}

// NewKeywordClassifier returns a classifier over catalog, or DefaultSlots
// when catalog is empty.
func NewKeywordClassifier(catalog SlotCatalog) *KeywordClassifier {
	if len(catalog) == 0 {
		catalog = DefaultSlots()
	}
	return &KeywordClassifier{Catalog: catalog}
}

func (k *KeywordClassifier) Classify(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	name := req.FileName
	if name == "" {
		name = filepath.Base(req.SourcePath)
	}
	tokens := tokenize(strings.TrimSuffix(name, filepath.Ext(name)))
	if len(tokens) == 0 {
		return Result{Success: false, Error: "no recognizable words in file name"}, nil
	}

	var suggestions []wizard.Suggestion
	for _, slot := range k.Catalog {
		hits := 0
		for _, keyword := range slot.Keywords {
			if slices.Contains(tokens, strings.ToLower(keyword)) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		confidence := 50 + 40*float64(hits)/float64(len(tokens))
		if slices.Contains(req.UsedSlots, slot.ID) {
			confidence /= 2
		}
		suggestions = append(suggestions, wizard.Suggestion{
			SlotID:     slot.ID,
			SlotLabel:  slot.Label,
			Confidence: min(confidence, 99),
		})
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if limit := req.Options.MaxSuggestions; limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return Result{Success: true, Suggestions: suggestions}, nil
}

func tokenize(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, field := range fields {
		if !isNumber(field) {
			out = append(out, field)
		}
	}
	return out
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
