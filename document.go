package wizard

import (
	"encoding/json"
	"fmt"
)

// Document is the persisted form of State: the JSON object tree with the
// transient celebration slice left out.
type Document = map[string]any

// ToDocument converts s into its persisted form.
func ToDocument(s State) (Document, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("wizard: encode state: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("wizard: encode state: %w", err)
	}
	return doc, nil
}
