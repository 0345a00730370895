package wizard

import "time"

// Approach names a valuation approach a scenario can apply.
const (
	ApproachSales  = "sales"
	ApproachIncome = "income"
	ApproachCost   = "cost"
)

// DefaultScenarioID identifies the scenario every new session starts with.
const DefaultScenarioID = "as-is"

// Scenario is a named valuation case with its own set of approaches.
type Scenario struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Approaches    []string `json:"approaches"`
	EffectiveDate string   `json:"effectiveDate,omitempty"`
	IsRequired    bool     `json:"isRequired"`
}

// HasApproach reports whether the scenario applies approach.
func (s Scenario) HasApproach(approach string) bool {
	for _, candidate := range s.Approaches {
		if candidate == approach {
			return true
		}
	}
	return false
}

// ApproachConclusion is the value a scenario reached under one approach.
type ApproachConclusion struct {
	Value     *float64  `json:"value"`
	Concluded bool      `json:"concluded"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// HasValue reports whether the conclusion counts toward scenario completion.
func (c ApproachConclusion) HasValue() bool {
	return c.Concluded && c.Value != nil
}

type Owner struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	OwnershipType string  `json:"ownershipType,omitempty"`
	Percentage    float64 `json:"percentage,omitempty"`
}

type PropertyComponent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Label      string         `json:"label"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type IncomeApproachInstance struct {
	ID         string         `json:"id"`
	ScenarioID string         `json:"scenarioId"`
	Name       string         `json:"name"`
	Data       map[string]any `json:"data,omitempty"`
}

type Improvement struct {
	ID          string  `json:"id"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
	Condition   string  `json:"condition,omitempty"`
}

type ImprovementsInventory struct {
	Items []Improvement `json:"items"`
}

// ItemStatus tracks an uploaded document or staging photo through
// classification: pending → classifying → classified | error, and then
// assigned once committed to a slot.
type ItemStatus string

const (
	StatusPending     ItemStatus = "pending"
	StatusClassifying ItemStatus = "classifying"
	StatusClassified  ItemStatus = "classified"
	StatusError       ItemStatus = "error"
	StatusAssigned    ItemStatus = "assigned"
)

// ClassificationInterrupted is the error a restored session records for
// photos whose classification never finished.
const ClassificationInterrupted = "classification interrupted"

// Valid reports whether s is one of the known statuses.
func (s ItemStatus) Valid() bool {
	switch s {
	case StatusPending, StatusClassifying, StatusClassified, StatusError, StatusAssigned:
		return true
	}
	return false
}

type UploadedDocument struct {
	ID           string         `json:"id"`
	FileName     string         `json:"fileName"`
	ContentType  string         `json:"contentType,omitempty"`
	DocumentType string         `json:"documentType,omitempty"`
	Status       ItemStatus     `json:"status"`
	Extracted    map[string]any `json:"extracted,omitempty"`
	Error        string         `json:"error,omitempty"`
	UploadedAt   time.Time      `json:"uploadedAt,omitempty"`
}

// Suggestion is one ranked slot candidate returned by the classifier.
// Confidence is a percentage in [0, 100].
type Suggestion struct {
	SlotID     string  `json:"slotId"`
	SlotLabel  string  `json:"slotLabel"`
	Confidence float64 `json:"confidence"`
}

type DetectedComponent struct {
	Type       string  `json:"type"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// StagingPhoto is an uploaded image awaiting classification and slot
// assignment. Seq records arrival order across batches.
type StagingPhoto struct {
	ID                 string              `json:"id"`
	Seq                int                 `json:"seq"`
	FileName           string              `json:"fileName"`
	ContentType        string              `json:"contentType,omitempty"`
	Size               int64               `json:"size,omitempty"`
	SourcePath         string              `json:"sourcePath,omitempty"`
	Status             ItemStatus          `json:"status"`
	Suggestions        []Suggestion        `json:"suggestions,omitempty"`
	DetectedComponents []DetectedComponent `json:"detectedComponents,omitempty"`
	Error              string              `json:"error,omitempty"`
	AssignedSlot       string              `json:"assignedSlot,omitempty"`
	AddedAt            time.Time           `json:"addedAt,omitempty"`
	ClassifiedAt       time.Time           `json:"classifiedAt,omitempty"`
}

// TopSuggestion returns the highest ranked suggestion, if any.
func (p StagingPhoto) TopSuggestion() (Suggestion, bool) {
	if len(p.Suggestions) == 0 {
		return Suggestion{}, false
	}
	return p.Suggestions[0], true
}

// Settled reports whether classification has finished, successfully or not.
func (p StagingPhoto) Settled() bool {
	return p.Status == StatusClassified || p.Status == StatusError || p.Status == StatusAssigned
}

// PhotoRecord is a photo committed to the permanent record under a slot.
type PhotoRecord struct {
	PhotoID     string    `json:"photoId"`
	SlotID      string    `json:"slotId"`
	FileName    string    `json:"fileName"`
	SourcePath  string    `json:"sourcePath,omitempty"`
	CommittedAt time.Time `json:"committedAt"`
}

// PageTab remembers where the user was inside a section.
type PageTab struct {
	LastActiveTab string `json:"lastActiveTab"`
	HasInteracted bool   `json:"hasInteracted"`
}

// CelebrationLevel grades how loud a completion notification is.
type CelebrationLevel string

const (
	CelebrationNone  CelebrationLevel = "none"
	CelebrationMinor CelebrationLevel = "minor"
	CelebrationMajor CelebrationLevel = "major"
	CelebrationGrand CelebrationLevel = "grand"
)

// Celebration is the transient overlay slice. It is not persisted.
type Celebration struct {
	IsVisible     bool             `json:"isVisible"`
	SectionID     string           `json:"sectionId,omitempty"`
	ScenarioID    string           `json:"scenarioId,omitempty"`
	Level         CelebrationLevel `json:"level,omitempty"`
	AnimationType string           `json:"animationType,omitempty"`
	Title         string           `json:"title,omitempty"`
	Subtitle      string           `json:"subtitle,omitempty"`
	Duration      time.Duration    `json:"duration,omitempty"`
	Token         uint64           `json:"token,omitempty"`
}

// State is the whole wizard session. It is only ever replaced, never mutated
// in place, and only by the reducer.
type State struct {
	Template        *string `json:"template"`
	PropertyType    *string `json:"propertyType"`
	PropertySubtype *string `json:"propertySubtype"`

	Scenarios        []Scenario `json:"scenarios"`
	ActiveScenarioID string     `json:"activeScenarioId"`

	SubjectData             map[string]any                           `json:"subjectData"`
	PropertyComponents      []PropertyComponent                      `json:"propertyComponents"`
	IncomeApproachInstances []IncomeApproachInstance                 `json:"incomeApproachInstances"`
	ApproachValues          map[string]map[string]ApproachConclusion `json:"approachValues"`
	ReconciliationData      map[string]any                           `json:"reconciliationData"`
	ImprovementsInventory   ImprovementsInventory                    `json:"improvementsInventory"`
	Owners                  []Owner                                  `json:"owners"`

	UploadedDocuments map[string]UploadedDocument `json:"uploadedDocuments"`
	StagingPhotos     map[string]StagingPhoto     `json:"stagingPhotos"`
	Photos            map[string]PhotoRecord      `json:"photos"`
	NextPhotoSeq      int                         `json:"nextPhotoSeq"`

	PageTabs           map[string]PageTab   `json:"pageTabs"`
	SectionCompletedAt map[string]time.Time `json:"sectionCompletedAt"`

	Celebration Celebration `json:"-"`

	IsFullscreen bool      `json:"isFullscreen"`
	LastModified time.Time `json:"lastModified"`
	Version      uint64    `json:"version"`
}

// Defaults returns the state a brand new session starts from.
func Defaults() State {
	return State{
		Scenarios: []Scenario{{
			ID:         DefaultScenarioID,
			Name:       "As Is",
			Approaches: []string{ApproachSales},
			IsRequired: true,
		}},
		ActiveScenarioID:        DefaultScenarioID,
		SubjectData:             map[string]any{},
		PropertyComponents:      []PropertyComponent{},
		IncomeApproachInstances: []IncomeApproachInstance{},
		ApproachValues:          map[string]map[string]ApproachConclusion{},
		ReconciliationData:      map[string]any{},
		ImprovementsInventory:   ImprovementsInventory{Items: []Improvement{}},
		Owners:                  []Owner{},
		UploadedDocuments:       map[string]UploadedDocument{},
		StagingPhotos:           map[string]StagingPhoto{},
		Photos:                  map[string]PhotoRecord{},
		PageTabs:                map[string]PageTab{},
		SectionCompletedAt:      map[string]time.Time{},
	}
}
