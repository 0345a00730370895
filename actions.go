package wizard

import "time"

// Action is a closed set of state transitions. Only types declared in this
// package satisfy it; the reducer handles every one of them.
type Action interface {
	ActionType() string
	isAction()
}

type action struct{}

func (action) isAction() {}

type SetTemplate struct {
	action
	Template string
}

type SetPropertyType struct {
	action
	PropertyType    string
	PropertySubtype string
}

type AddScenario struct {
	action
	Scenario Scenario
}

// UpdateScenario patches a scenario; nil fields are left unchanged.
type UpdateScenario struct {
	action
	ID            string
	Name          *string
	Approaches    []string
	EffectiveDate *string
	IsRequired    *bool
}

type RemoveScenario struct {
	action
	ID string
}

type SetActiveScenario struct {
	action
	ID string
}

// UpdateSubjectData merges Values into the subject tree. Keys may be dotted
// paths; a nil value deletes the key.
type UpdateSubjectData struct {
	action
	Values map[string]any
}

// UpdateReconciliationData merges Values into the reconciliation tree with the
// same rules as UpdateSubjectData.
type UpdateReconciliationData struct {
	action
	Values map[string]any
}

type AddOwner struct {
	action
	Owner Owner
}

type UpdateOwner struct {
	action
	Owner Owner
}

type RemoveOwner struct {
	action
	ID string
}

// AddIncomeApproachInstance appends an instance; an empty ScenarioID binds it
// to the active scenario.
type AddIncomeApproachInstance struct {
	action
	Instance IncomeApproachInstance
}

type UpdateIncomeApproachInstance struct {
	action
	Instance IncomeApproachInstance
}

type RemoveIncomeApproachInstance struct {
	action
	ID string
}

type AddPropertyComponent struct {
	action
	Component PropertyComponent
}

type RemovePropertyComponent struct {
	action
	ID string
}

type SetImprovementsInventory struct {
	action
	Inventory ImprovementsInventory
}

// SetApproachMap records the concluded value of one approach in a scenario.
type SetApproachMap struct {
	action
	ScenarioID string
	Approach   string
	Value      *float64
	Concluded  bool
	At         time.Time
}

// RemoveApproachMap drops one approach conclusion, or all of a scenario's
// conclusions when Approach is empty.
type RemoveApproachMap struct {
	action
	ScenarioID string
	Approach   string
}

type AddUploadedDocument struct {
	action
	Document UploadedDocument
}

// UpdateUploadedDocument patches a document; nil fields are left unchanged.
type UpdateUploadedDocument struct {
	action
	ID           string
	Status       *ItemStatus
	DocumentType *string
	Extracted    map[string]any
	Error        *string
}

type RemoveUploadedDocument struct {
	action
	ID string
}

// AddStagingPhotos appends photos in pending status, in the given order.
type AddStagingPhotos struct {
	action
	Photos []StagingPhoto
}

type MarkPhotoClassifying struct {
	action
	ID string
}

type ApplyClassification struct {
	action
	ID                 string
	Suggestions        []Suggestion
	DetectedComponents []DetectedComponent
	At                 time.Time
}

type FailClassification struct {
	action
	ID      string
	Message string
	At      time.Time
}

// AssignPhotoSlot commits a photo to a slot, or releases its slot when SlotID
// is empty. The slot must be free at commit time.
type AssignPhotoSlot struct {
	action
	PhotoID string
	SlotID  string
}

type RemoveStagingPhoto struct {
	action
	ID string
}

type ClearStagingPhotos struct {
	action
}

// CommitStagedPhotos moves every assigned staging photo into the permanent
// photo record.
type CommitStagedPhotos struct {
	action
	At time.Time
}

type RemovePhotoRecord struct {
	action
	SlotID string
}

// SetPageTab records the visible tab of a section and marks it interacted.
type SetPageTab struct {
	action
	SectionID string
	TabID     string
}

type MarkSectionInteracted struct {
	action
	SectionID string
}

// MarkSectionCompleted stamps the first time a section reached 100%. Later
// dispatches for the same section are no-ops.
type MarkSectionCompleted struct {
	action
	SectionID string
	At        time.Time
}

type ShowCelebration struct {
	action
	Celebration Celebration
}

// HideCelebration hides the overlay. A non-zero Token only hides the
// celebration it names, so a stale auto-dismiss timer cannot hide a newer one.
type HideCelebration struct {
	action
	Token uint64
}

type SetFullscreen struct {
	action
	Enabled bool
}

// ResetWizard returns the session to its defaults. Section completion
// stamps survive, so a section is never celebrated twice in one session.
type ResetWizard struct {
	action
}

func (SetTemplate) ActionType() string                  { return "set_template" }
func (SetPropertyType) ActionType() string              { return "set_property_type" }
func (AddScenario) ActionType() string                  { return "add_scenario" }
func (UpdateScenario) ActionType() string               { return "update_scenario" }
func (RemoveScenario) ActionType() string               { return "remove_scenario" }
func (SetActiveScenario) ActionType() string            { return "set_active_scenario" }
func (UpdateSubjectData) ActionType() string            { return "update_subject_data" }
func (UpdateReconciliationData) ActionType() string     { return "update_reconciliation_data" }
func (AddOwner) ActionType() string                     { return "add_owner" }
func (UpdateOwner) ActionType() string                  { return "update_owner" }
func (RemoveOwner) ActionType() string                  { return "remove_owner" }
func (AddIncomeApproachInstance) ActionType() string    { return "add_income_approach_instance" }
func (UpdateIncomeApproachInstance) ActionType() string { return "update_income_approach_instance" }
func (RemoveIncomeApproachInstance) ActionType() string { return "remove_income_approach_instance" }
func (AddPropertyComponent) ActionType() string         { return "add_property_component" }
func (RemovePropertyComponent) ActionType() string      { return "remove_property_component" }
func (SetImprovementsInventory) ActionType() string     { return "set_improvements_inventory" }
func (SetApproachMap) ActionType() string               { return "set_approach_map" }
func (RemoveApproachMap) ActionType() string            { return "remove_approach_map" }
func (AddUploadedDocument) ActionType() string          { return "add_uploaded_document" }
func (UpdateUploadedDocument) ActionType() string       { return "update_uploaded_document" }
func (RemoveUploadedDocument) ActionType() string       { return "remove_uploaded_document" }
func (AddStagingPhotos) ActionType() string             { return "add_staging_photos" }
func (MarkPhotoClassifying) ActionType() string         { return "mark_photo_classifying" }
func (ApplyClassification) ActionType() string          { return "apply_classification" }
func (FailClassification) ActionType() string           { return "fail_classification" }
func (AssignPhotoSlot) ActionType() string              { return "assign_photo_slot" }
func (RemoveStagingPhoto) ActionType() string           { return "remove_staging_photo" }
func (ClearStagingPhotos) ActionType() string           { return "clear_staging_photos" }
func (CommitStagedPhotos) ActionType() string           { return "commit_staged_photos" }
func (RemovePhotoRecord) ActionType() string            { return "remove_photo_record" }
func (SetPageTab) ActionType() string                   { return "set_page_tab" }
func (MarkSectionInteracted) ActionType() string        { return "mark_section_interacted" }
func (MarkSectionCompleted) ActionType() string         { return "mark_section_completed" }
func (ShowCelebration) ActionType() string              { return "show_celebration" }
func (HideCelebration) ActionType() string              { return "hide_celebration" }
func (SetFullscreen) ActionType() string                { return "set_fullscreen" }
func (ResetWizard) ActionType() string                  { return "reset_wizard" }
