// Package staging runs the photo staging workflow on top of a wizard store:
// photos are added in pending status, classified concurrently, and assigned
// to slots so that no slot ever holds more than one photo.
package staging

import (
	"context"

	"github.com/goliatone/go-wizard"
)

// ClassifyOptions tunes a single classification call.
type ClassifyOptions struct {
	MaxSuggestions int
	PropertyType   string
}

// Request is what a Classifier receives for one photo. UsedSlots is a
// snapshot taken when the call was issued and may be stale by the time the
// result arrives.
type Request struct {
	PhotoID    string
	FileName   string
	SourcePath string
	Image      []byte
	UsedSlots  []string
	Options    ClassifyOptions
}

// Result is the classifier's answer. Success false with Error set marks a
// failed classification; the photo can still be assigned by hand.
type Result struct {
	Success            bool
	Suggestions        []wizard.Suggestion
	DetectedComponents []wizard.DetectedComponent
	Error              string
}

// Classifier suggests slots for a photo.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Result, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, req Request) (Result, error)

func (fn ClassifierFunc) Classify(ctx context.Context, req Request) (Result, error) {
	return fn(ctx, req)
}
