// Package activity fans wizard milestones out to external hooks: section and
// scenario completions, the finale, and photo slot assignments.
package activity

import (
	"strings"
	"time"
)

const (
	VerbSectionCompleted  = "wizard.section.completed"
	VerbScenarioCompleted = "wizard.scenario.completed"
	VerbWizardCompleted   = "wizard.completed"
	VerbPhotoAssigned     = "wizard.photo.assigned"
	VerbPhotosCommitted   = "wizard.photos.committed"
)

const (
	ObjectSection  = "wizard.section"
	ObjectScenario = "wizard.scenario"
	ObjectSession  = "wizard.session"
	ObjectPhoto    = "wizard.photo"
	ObjectPhotos   = "wizard.photos"
)

// Object is what an event is about. An empty ID on a session-level object is
// filled in with the session by the Emitter.
type Object struct {
	Type string
	ID   string
}

// Event is one wizard milestone. Identity fields are plain strings; hooks
// decide how to parse them.
type Event struct {
	Verb       string
	Object     Object
	ActorID    string
	UserID     string
	TenantID   string
	Session    string
	Channel    string
	Data       map[string]any
	OccurredAt time.Time
}

// SectionCompleted is emitted the first time a section reaches 100%.
func SectionCompleted(sectionID, level string) Event {
	return Event{
		Verb:   VerbSectionCompleted,
		Object: Object{Type: ObjectSection, ID: sectionID},
		Data:   map[string]any{"level": level},
	}
}

// ScenarioCompleted is emitted when every approach of a scenario has a
// concluded value.
func ScenarioCompleted(scenarioID, name, level string) Event {
	return Event{
		Verb:   VerbScenarioCompleted,
		Object: Object{Type: ObjectScenario, ID: scenarioID},
		Data:   map[string]any{"level": level, "name": name},
	}
}

// WizardCompleted is emitted once per session for the finale.
func WizardCompleted(level string) Event {
	return Event{
		Verb:   VerbWizardCompleted,
		Object: Object{Type: ObjectSession},
		Data:   map[string]any{"level": level},
	}
}

// PhotoAssigned records a photo committed to a slot. Mode is "manual" or
// "bulk".
func PhotoAssigned(photoID, slotID, mode string) Event {
	return Event{
		Verb:   VerbPhotoAssigned,
		Object: Object{Type: ObjectPhoto, ID: photoID},
		Data:   map[string]any{"slot": slotID, "mode": mode},
	}
}

func PhotosCommitted(slots []string) Event {
	return Event{
		Verb:   VerbPhotosCommitted,
		Object: Object{Type: ObjectPhotos},
		Data:   map[string]any{"slots": append([]string(nil), slots...), "count": len(slots)},
	}
}

// By sets the actor.
func (e Event) By(actorID string) Event {
	e.ActorID = actorID
	return e
}

// At sets the occurrence time.
func (e Event) At(t time.Time) Event {
	e.OccurredAt = t
	return e
}

// With adds one data entry without touching the receiver's map.
func (e Event) With(key string, value any) Event {
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}

// Valid reports whether e names a verb and an object. Hooks never see
// invalid events.
func (e Event) Valid() bool {
	return e.Verb != "" && e.Object.Type != "" && e.Object.ID != ""
}

// Normalized trims identifiers, copies Data and stamps OccurredAt when unset.
func (e Event) Normalized(now func() time.Time) Event {
	e.Verb = strings.TrimSpace(e.Verb)
	e.Object.Type = strings.TrimSpace(e.Object.Type)
	e.Object.ID = strings.TrimSpace(e.Object.ID)
	e.ActorID = strings.TrimSpace(e.ActorID)
	e.UserID = strings.TrimSpace(e.UserID)
	e.TenantID = strings.TrimSpace(e.TenantID)
	e.Session = strings.TrimSpace(e.Session)
	e.Channel = strings.TrimSpace(e.Channel)
	if len(e.Data) == 0 {
		e.Data = nil
	} else {
		data := make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			data[k] = v
		}
		e.Data = data
	}
	if e.OccurredAt.IsZero() {
		if now == nil {
			now = time.Now
		}
		e.OccurredAt = now()
	}
	return e
}
