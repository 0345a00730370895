package celebration

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-wizard"
)

// Kind says what a celebration is for.
type Kind string

const (
	KindSection  Kind = "section"
	KindScenario Kind = "scenario"
	KindFinale   Kind = "finale"
)

// Trigger is a detected milestone.
type Trigger struct {
	Kind       Kind
	SectionID  string
	ScenarioID string
	// Label is the section label or scenario name.
	Label         string
	Level         wizard.CelebrationLevel
	AnimationType string
}

// Descriptor is everything needed to render one celebration.
type Descriptor struct {
	Level         wizard.CelebrationLevel
	AnimationType string
	Duration      time.Duration
	Title         string
	Subtitle      string
}

// Visible reports whether the descriptor should be shown at all.
func (d Descriptor) Visible() bool {
	return d.Level != "" && d.Level != wizard.CelebrationNone
}

// Message is a title and subtitle pair. Subtitle may contain one %s, filled
// with the trigger label.
type Message struct {
	Title    string
	Subtitle string
}

// DefaultDurations maps levels to auto-dismiss delays.
func DefaultDurations() map[wizard.CelebrationLevel]time.Duration {
	return map[wizard.CelebrationLevel]time.Duration{
		wizard.CelebrationMinor: 2500 * time.Millisecond,
		wizard.CelebrationMajor: 4 * time.Second,
		wizard.CelebrationGrand: 6 * time.Second,
	}
}

var defaultAnimations = map[wizard.CelebrationLevel]string{
	wizard.CelebrationMinor: "confetti-burst",
	wizard.CelebrationMajor: "fireworks",
	wizard.CelebrationGrand: "grand-finale",
}

// DefaultSectionMessages covers the sections of the default schema. Sections
// not listed fall back to a generic message built from their label.
func DefaultSectionMessages() map[string]Message {
	return map[string]Message{
		"setup":          {Title: "Assignment set up", Subtitle: "Template, property type and scenarios are in place."},
		"subject":        {Title: "Subject property documented", Subtitle: "Location, site, ownership and improvements are captured."},
		"components":     {Title: "Components catalogued", Subtitle: "Every property component has been recorded."},
		"income":         {Title: "Income approach ready", Subtitle: "Rent roll and expenses are complete."},
		"reconciliation": {Title: "Values reconciled", Subtitle: "The final value and effective date are set."},
		"photos":         {Title: "Photo record complete", Subtitle: "All required views have a photo."},
	}
}

var (
	genericSection = Message{Title: "Section complete", Subtitle: "%s is done. Keep going!"}
	scenarioDone   = Message{Title: "Scenario concluded", Subtitle: "%s has a concluded value for every approach."}
	finaleDone     = Message{Title: "Appraisal complete", Subtitle: "Every scenario is concluded and ready for review."}
)

// describe resolves the descriptor for t.
func (m *Machine) describe(t Trigger) Descriptor {
	level := t.Level
	var msg Message
	switch t.Kind {
	case KindSection:
		if level == "" {
			level = wizard.CelebrationMinor
		}
		var ok bool
		if msg, ok = m.sectionMessages[t.SectionID]; !ok {
			msg = genericSection
		}
	case KindScenario:
		if level == "" {
			level = wizard.CelebrationMajor
		}
		msg = scenarioDone
	case KindFinale:
		level = wizard.CelebrationGrand
		msg = finaleDone
	}

	animation := t.AnimationType
	if animation == "" {
		animation = defaultAnimations[level]
	}
	subtitle := msg.Subtitle
	if strings.Contains(subtitle, "%s") {
		label := t.Label
		if label == "" {
			label = "This " + string(t.Kind)
		}
		subtitle = fmt.Sprintf(subtitle, label)
	}
	return Descriptor{
		Level:         level,
		AnimationType: animation,
		Duration:      m.durations[level],
		Title:         msg.Title,
		Subtitle:      subtitle,
	}
}
