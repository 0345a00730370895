package wizard

import (
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/goliatone/go-wizard/layering"
)

// Reduce applies action to prev and returns the next state. It never mutates
// prev. Rejected actions return prev unchanged together with an *ActionError;
// accepted actions that change nothing return prev and ErrUnchanged.
// Reduce does not stamp LastModified or Version; the store does.
func Reduce(prev State, act Action) (State, error) {
	if act == nil {
		return prev, &ActionError{Action: "<nil>", Err: ErrUnknownAction}
	}
	next := layering.Clone(prev)
	var err error

	switch a := act.(type) {
	case SetTemplate:
		next.Template = optionalString(a.Template)
	case SetPropertyType:
		next.PropertyType = optionalString(a.PropertyType)
		next.PropertySubtype = optionalString(a.PropertySubtype)
		if next.PropertyType == nil {
			next.PropertySubtype = nil
		}
	case AddScenario:
		err = reduceAddScenario(&next, a)
	case UpdateScenario:
		err = reduceUpdateScenario(&next, a)
	case RemoveScenario:
		err = reduceRemoveScenario(&next, a)
	case SetActiveScenario:
		if scenarioIndex(next.Scenarios, a.ID) < 0 {
			return prev, rejected(a, ErrNotFound, "scenario %q", a.ID)
		}
		next.ActiveScenarioID = a.ID
	case UpdateSubjectData:
		if len(a.Values) == 0 {
			return prev, malformed(a, "no values")
		}
		next.SubjectData, err = mergeTree(a, next.SubjectData, a.Values)
	case UpdateReconciliationData:
		if len(a.Values) == 0 {
			return prev, malformed(a, "no values")
		}
		next.ReconciliationData, err = mergeTree(a, next.ReconciliationData, a.Values)
	case AddOwner:
		err = reduceAddOwner(&next, a)
	case UpdateOwner:
		idx := slices.IndexFunc(next.Owners, func(o Owner) bool { return o.ID == a.Owner.ID })
		if a.Owner.ID == "" || idx < 0 {
			return prev, rejected(a, ErrNotFound, "owner %q", a.Owner.ID)
		}
		next.Owners[idx] = layering.Clone(a.Owner)
	case RemoveOwner:
		idx := slices.IndexFunc(next.Owners, func(o Owner) bool { return o.ID == a.ID })
		if idx < 0 {
			return prev, rejected(a, ErrNotFound, "owner %q", a.ID)
		}
		next.Owners = slices.Delete(next.Owners, idx, idx+1)
	case AddIncomeApproachInstance:
		err = reduceAddIncomeInstance(&next, a)
	case UpdateIncomeApproachInstance:
		idx := slices.IndexFunc(next.IncomeApproachInstances, func(i IncomeApproachInstance) bool { return i.ID == a.Instance.ID })
		if a.Instance.ID == "" || idx < 0 {
			return prev, rejected(a, ErrNotFound, "income approach instance %q", a.Instance.ID)
		}
		instance := layering.Clone(a.Instance)
		if instance.ScenarioID == "" {
			instance.ScenarioID = next.IncomeApproachInstances[idx].ScenarioID
		}
		if scenarioIndex(next.Scenarios, instance.ScenarioID) < 0 {
			return prev, rejected(a, ErrNotFound, "scenario %q", instance.ScenarioID)
		}
		next.IncomeApproachInstances[idx] = instance
	case RemoveIncomeApproachInstance:
		idx := slices.IndexFunc(next.IncomeApproachInstances, func(i IncomeApproachInstance) bool { return i.ID == a.ID })
		if idx < 0 {
			return prev, rejected(a, ErrNotFound, "income approach instance %q", a.ID)
		}
		next.IncomeApproachInstances = slices.Delete(next.IncomeApproachInstances, idx, idx+1)
	case AddPropertyComponent:
		if a.Component.ID == "" || strings.TrimSpace(a.Component.Type) == "" {
			return prev, malformed(a, "component id and type are required")
		}
		if slices.ContainsFunc(next.PropertyComponents, func(c PropertyComponent) bool { return c.ID == a.Component.ID }) {
			return prev, malformed(a, "duplicate component %q", a.Component.ID)
		}
		next.PropertyComponents = append(next.PropertyComponents, layering.Clone(a.Component))
	case RemovePropertyComponent:
		idx := slices.IndexFunc(next.PropertyComponents, func(c PropertyComponent) bool { return c.ID == a.ID })
		if idx < 0 {
			return prev, rejected(a, ErrNotFound, "component %q", a.ID)
		}
		next.PropertyComponents = slices.Delete(next.PropertyComponents, idx, idx+1)
	case SetImprovementsInventory:
		for _, item := range a.Inventory.Items {
			if item.ID == "" || strings.TrimSpace(item.Category) == "" {
				return prev, malformed(a, "improvement id and category are required")
			}
		}
		next.ImprovementsInventory = layering.Clone(a.Inventory)
		if next.ImprovementsInventory.Items == nil {
			next.ImprovementsInventory.Items = []Improvement{}
		}
	case SetApproachMap:
		err = reduceSetApproachMap(&next, a)
	case RemoveApproachMap:
		err = reduceRemoveApproachMap(&next, a)
	case AddUploadedDocument:
		err = reduceAddDocument(&next, a)
	case UpdateUploadedDocument:
		err = reduceUpdateDocument(&next, a)
	case RemoveUploadedDocument:
		if _, ok := next.UploadedDocuments[a.ID]; !ok {
			return prev, rejected(a, ErrNotFound, "document %q", a.ID)
		}
		delete(next.UploadedDocuments, a.ID)
	case AddStagingPhotos:
		err = reduceAddStagingPhotos(&next, a)
	case MarkPhotoClassifying:
		err = reduceMarkClassifying(&next, a)
	case ApplyClassification:
		err = reduceApplyClassification(&next, a)
	case FailClassification:
		err = reduceFailClassification(&next, a)
	case AssignPhotoSlot:
		err = reduceAssignPhotoSlot(&next, a)
	case RemoveStagingPhoto:
		if _, ok := next.StagingPhotos[a.ID]; !ok {
			return prev, rejected(a, ErrPhotoNotFound, "photo %q", a.ID)
		}
		delete(next.StagingPhotos, a.ID)
	case ClearStagingPhotos:
		if len(next.StagingPhotos) == 0 {
			return prev, ErrUnchanged
		}
		next.StagingPhotos = map[string]StagingPhoto{}
	case CommitStagedPhotos:
		err = reduceCommitStagedPhotos(&next, a)
	case RemovePhotoRecord:
		if _, ok := next.Photos[a.SlotID]; !ok {
			return prev, rejected(a, ErrNotFound, "photo record for slot %q", a.SlotID)
		}
		delete(next.Photos, a.SlotID)
	case SetPageTab:
		if a.SectionID == "" || a.TabID == "" {
			return prev, malformed(a, "section and tab are required")
		}
		next.PageTabs[a.SectionID] = PageTab{LastActiveTab: a.TabID, HasInteracted: true}
	case MarkSectionInteracted:
		if a.SectionID == "" {
			return prev, malformed(a, "section is required")
		}
		tab := next.PageTabs[a.SectionID]
		if tab.HasInteracted {
			return prev, ErrUnchanged
		}
		tab.HasInteracted = true
		next.PageTabs[a.SectionID] = tab
	case MarkSectionCompleted:
		if a.SectionID == "" || a.At.IsZero() {
			return prev, malformed(a, "section and timestamp are required")
		}
		if _, done := next.SectionCompletedAt[a.SectionID]; done {
			return prev, ErrUnchanged
		}
		next.SectionCompletedAt[a.SectionID] = a.At.UTC()
	case ShowCelebration:
		if a.Celebration.Level == "" || a.Celebration.Level == CelebrationNone {
			return prev, malformed(a, "celebration level %q cannot be shown", a.Celebration.Level)
		}
		next.Celebration = a.Celebration
		next.Celebration.IsVisible = true
	case HideCelebration:
		if !next.Celebration.IsVisible {
			return prev, ErrUnchanged
		}
		if a.Token != 0 && a.Token != next.Celebration.Token {
			return prev, ErrUnchanged
		}
		next.Celebration = Celebration{}
	case SetFullscreen:
		if next.IsFullscreen == a.Enabled {
			return prev, ErrUnchanged
		}
		next.IsFullscreen = a.Enabled
	case ResetWizard:
		// completion stamps are permanent for the session
		stamps := next.SectionCompletedAt
		next = Defaults()
		if len(stamps) > 0 {
			next.SectionCompletedAt = stamps
		}
	default:
		return prev, &ActionError{Action: actionName(act), Err: ErrUnknownAction}
	}

	if err != nil {
		return prev, err
	}
	ensureActiveScenario(&next)
	return next, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func scenarioIndex(scenarios []Scenario, id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(scenarios, func(s Scenario) bool { return s.ID == id })
}

// ensureActiveScenario keeps ActiveScenarioID pointing at an existing
// scenario, falling back to the first one.
func ensureActiveScenario(s *State) {
	if len(s.Scenarios) == 0 {
		s.ActiveScenarioID = ""
		return
	}
	if scenarioIndex(s.Scenarios, s.ActiveScenarioID) < 0 {
		s.ActiveScenarioID = s.Scenarios[0].ID
	}
}

func normalizeApproaches(approaches []string) []string {
	out := make([]string, 0, len(approaches))
	for _, approach := range approaches {
		approach = strings.ToLower(strings.TrimSpace(approach))
		if approach == "" || slices.Contains(out, approach) {
			continue
		}
		out = append(out, approach)
	}
	return out
}

func reduceAddScenario(next *State, a AddScenario) error {
	scenario := layering.Clone(a.Scenario)
	if scenario.ID == "" || strings.TrimSpace(scenario.Name) == "" {
		return malformed(a, "scenario id and name are required")
	}
	if scenarioIndex(next.Scenarios, scenario.ID) >= 0 {
		return malformed(a, "duplicate scenario %q", scenario.ID)
	}
	scenario.Name = strings.TrimSpace(scenario.Name)
	scenario.Approaches = normalizeApproaches(scenario.Approaches)
	next.Scenarios = append(next.Scenarios, scenario)
	return nil
}

func reduceUpdateScenario(next *State, a UpdateScenario) error {
	idx := scenarioIndex(next.Scenarios, a.ID)
	if idx < 0 {
		return rejected(a, ErrNotFound, "scenario %q", a.ID)
	}
	scenario := next.Scenarios[idx]
	if a.Name != nil {
		name := strings.TrimSpace(*a.Name)
		if name == "" {
			return malformed(a, "scenario name cannot be blank")
		}
		scenario.Name = name
	}
	if a.Approaches != nil {
		scenario.Approaches = normalizeApproaches(a.Approaches)
	}
	if a.EffectiveDate != nil {
		scenario.EffectiveDate = strings.TrimSpace(*a.EffectiveDate)
	}
	if a.IsRequired != nil {
		scenario.IsRequired = *a.IsRequired
	}
	next.Scenarios[idx] = scenario
	return nil
}

func reduceRemoveScenario(next *State, a RemoveScenario) error {
	idx := scenarioIndex(next.Scenarios, a.ID)
	if idx < 0 {
		return rejected(a, ErrNotFound, "scenario %q", a.ID)
	}
	if len(next.Scenarios) == 1 {
		return malformed(a, "cannot remove the only scenario")
	}
	next.Scenarios = slices.Delete(next.Scenarios, idx, idx+1)
	delete(next.ApproachValues, a.ID)
	next.IncomeApproachInstances = slices.DeleteFunc(next.IncomeApproachInstances, func(i IncomeApproachInstance) bool {
		return i.ScenarioID == a.ID
	})
	return nil
}

func reduceAddOwner(next *State, a AddOwner) error {
	if a.Owner.ID == "" || strings.TrimSpace(a.Owner.Name) == "" {
		return malformed(a, "owner id and name are required")
	}
	if a.Owner.Percentage < 0 || a.Owner.Percentage > 100 {
		return malformed(a, "owner percentage %v out of range", a.Owner.Percentage)
	}
	if slices.ContainsFunc(next.Owners, func(o Owner) bool { return o.ID == a.Owner.ID }) {
		return malformed(a, "duplicate owner %q", a.Owner.ID)
	}
	next.Owners = append(next.Owners, a.Owner)
	return nil
}

func reduceAddIncomeInstance(next *State, a AddIncomeApproachInstance) error {
	instance := layering.Clone(a.Instance)
	if instance.ID == "" {
		return malformed(a, "instance id is required")
	}
	if slices.ContainsFunc(next.IncomeApproachInstances, func(i IncomeApproachInstance) bool { return i.ID == instance.ID }) {
		return malformed(a, "duplicate income approach instance %q", instance.ID)
	}
	if instance.ScenarioID == "" {
		instance.ScenarioID = next.ActiveScenarioID
	}
	if scenarioIndex(next.Scenarios, instance.ScenarioID) < 0 {
		return rejected(a, ErrNotFound, "scenario %q", instance.ScenarioID)
	}
	next.IncomeApproachInstances = append(next.IncomeApproachInstances, instance)
	return nil
}

func reduceSetApproachMap(next *State, a SetApproachMap) error {
	idx := scenarioIndex(next.Scenarios, a.ScenarioID)
	if idx < 0 {
		return rejected(a, ErrNotFound, "scenario %q", a.ScenarioID)
	}
	approach := strings.ToLower(strings.TrimSpace(a.Approach))
	if !next.Scenarios[idx].HasApproach(approach) {
		return malformed(a, "scenario %q does not apply approach %q", a.ScenarioID, a.Approach)
	}
	if a.Value != nil && (math.IsNaN(*a.Value) || math.IsInf(*a.Value, 0)) {
		return malformed(a, "approach value must be finite")
	}
	if a.Concluded && a.Value == nil {
		return malformed(a, "a concluded approach needs a value")
	}
	values := next.ApproachValues[a.ScenarioID]
	if values == nil {
		values = map[string]ApproachConclusion{}
	}
	conclusion := ApproachConclusion{Concluded: a.Concluded, UpdatedAt: a.At}
	if a.Value != nil {
		v := *a.Value
		conclusion.Value = &v
	}
	values[approach] = conclusion
	next.ApproachValues[a.ScenarioID] = values
	return nil
}

func reduceRemoveApproachMap(next *State, a RemoveApproachMap) error {
	values, ok := next.ApproachValues[a.ScenarioID]
	if !ok {
		return rejected(a, ErrNotFound, "approach map for scenario %q", a.ScenarioID)
	}
	if a.Approach == "" {
		delete(next.ApproachValues, a.ScenarioID)
		return nil
	}
	approach := strings.ToLower(strings.TrimSpace(a.Approach))
	if _, ok := values[approach]; !ok {
		return rejected(a, ErrNotFound, "approach %q in scenario %q", a.Approach, a.ScenarioID)
	}
	delete(values, approach)
	if len(values) == 0 {
		delete(next.ApproachValues, a.ScenarioID)
	}
	return nil
}

func reduceAddDocument(next *State, a AddUploadedDocument) error {
	doc := layering.Clone(a.Document)
	if doc.ID == "" || strings.TrimSpace(doc.FileName) == "" {
		return malformed(a, "document id and file name are required")
	}
	if _, exists := next.UploadedDocuments[doc.ID]; exists {
		return malformed(a, "duplicate document %q", doc.ID)
	}
	doc.Status = StatusPending
	next.UploadedDocuments[doc.ID] = doc
	return nil
}

// validTransition reports whether an item may move from one status to another.
func validTransition(from, to ItemStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusClassifying || to == StatusError
	case StatusClassifying:
		return to == StatusClassified || to == StatusError
	case StatusClassified:
		return to == StatusAssigned || to == StatusClassifying
	case StatusError:
		return to == StatusAssigned || to == StatusClassifying
	case StatusAssigned:
		return to == StatusClassified || to == StatusError
	}
	return false
}

func reduceUpdateDocument(next *State, a UpdateUploadedDocument) error {
	doc, ok := next.UploadedDocuments[a.ID]
	if !ok {
		return rejected(a, ErrNotFound, "document %q", a.ID)
	}
	if a.Status != nil {
		if !a.Status.Valid() || !validTransition(doc.Status, *a.Status) {
			return malformed(a, "invalid status transition %s -> %s", doc.Status, *a.Status)
		}
		doc.Status = *a.Status
	}
	if a.DocumentType != nil {
		doc.DocumentType = strings.TrimSpace(*a.DocumentType)
	}
	if a.Extracted != nil {
		doc.Extracted = layering.Clone(a.Extracted)
	}
	if a.Error != nil {
		doc.Error = *a.Error
	}
	next.UploadedDocuments[a.ID] = doc
	return nil
}

func reduceAddStagingPhotos(next *State, a AddStagingPhotos) error {
	if len(a.Photos) == 0 {
		return malformed(a, "no photos")
	}
	seen := map[string]struct{}{}
	for _, photo := range a.Photos {
		if photo.ID == "" || strings.TrimSpace(photo.FileName) == "" {
			return malformed(a, "photo id and file name are required")
		}
		if _, dup := seen[photo.ID]; dup {
			return malformed(a, "duplicate photo %q", photo.ID)
		}
		if _, exists := next.StagingPhotos[photo.ID]; exists {
			return malformed(a, "duplicate photo %q", photo.ID)
		}
		seen[photo.ID] = struct{}{}
	}
	for _, photo := range a.Photos {
		staged := layering.Clone(photo)
		staged.Seq = next.NextPhotoSeq
		next.NextPhotoSeq++
		staged.Status = StatusPending
		staged.Suggestions = nil
		staged.DetectedComponents = nil
		staged.AssignedSlot = ""
		staged.Error = ""
		next.StagingPhotos[staged.ID] = staged
	}
	return nil
}

func reduceMarkClassifying(next *State, a MarkPhotoClassifying) error {
	photo, ok := next.StagingPhotos[a.ID]
	if !ok {
		return rejected(a, ErrPhotoNotFound, "photo %q", a.ID)
	}
	if photo.Status != StatusPending && photo.Status != StatusError {
		return malformed(a, "photo %q is %s", a.ID, photo.Status)
	}
	photo.Status = StatusClassifying
	photo.Error = ""
	next.StagingPhotos[a.ID] = photo
	return nil
}

func reduceApplyClassification(next *State, a ApplyClassification) error {
	photo, ok := next.StagingPhotos[a.ID]
	if !ok {
		return rejected(a, ErrPhotoNotFound, "photo %q", a.ID)
	}
	if photo.Status != StatusClassifying && photo.Status != StatusPending {
		return malformed(a, "photo %q is %s", a.ID, photo.Status)
	}
	suggestions := make([]Suggestion, 0, len(a.Suggestions))
	for _, suggestion := range a.Suggestions {
		if suggestion.SlotID == "" || math.IsNaN(suggestion.Confidence) {
			return malformed(a, "suggestion needs a slot id and a numeric confidence")
		}
		suggestion.Confidence = math.Max(0, math.Min(100, suggestion.Confidence))
		suggestions = append(suggestions, suggestion)
	}
	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	photo.Status = StatusClassified
	photo.Suggestions = suggestions
	photo.DetectedComponents = layering.Clone(a.DetectedComponents)
	photo.Error = ""
	photo.ClassifiedAt = a.At
	next.StagingPhotos[a.ID] = photo
	return nil
}

func reduceFailClassification(next *State, a FailClassification) error {
	photo, ok := next.StagingPhotos[a.ID]
	if !ok {
		return rejected(a, ErrPhotoNotFound, "photo %q", a.ID)
	}
	if photo.Status != StatusClassifying && photo.Status != StatusPending {
		return malformed(a, "photo %q is %s", a.ID, photo.Status)
	}
	message := strings.TrimSpace(a.Message)
	if message == "" {
		message = "classification failed"
	}
	photo.Status = StatusError
	photo.Error = message
	photo.Suggestions = nil
	photo.ClassifiedAt = a.At
	next.StagingPhotos[a.ID] = photo
	return nil
}

// slotHolder returns the id of the photo holding slot, if any. Committed
// records report their original photo id.
func slotHolder(s State, slot string) (string, bool) {
	if record, ok := s.Photos[slot]; ok {
		return record.PhotoID, true
	}
	for id, photo := range s.StagingPhotos {
		if photo.AssignedSlot == slot {
			return id, true
		}
	}
	return "", false
}

func reduceAssignPhotoSlot(next *State, a AssignPhotoSlot) error {
	photo, ok := next.StagingPhotos[a.PhotoID]
	if !ok {
		return rejected(a, ErrPhotoNotFound, "photo %q", a.PhotoID)
	}
	if !photo.Settled() {
		return rejected(a, ErrPhotoNotReady, "photo %q is %s", a.PhotoID, photo.Status)
	}
	slot := strings.TrimSpace(a.SlotID)
	if slot == "" {
		if photo.AssignedSlot == "" {
			return ErrUnchanged
		}
		photo.AssignedSlot = ""
		photo.Status = StatusClassified
		if photo.Error != "" {
			photo.Status = StatusError
		}
		next.StagingPhotos[a.PhotoID] = photo
		return nil
	}
	if photo.AssignedSlot == slot {
		return ErrUnchanged
	}
	if holder, taken := slotHolder(*next, slot); taken && holder != a.PhotoID {
		return rejected(a, ErrSlotConflict, "slot %q held by %q", slot, holder)
	}
	photo.AssignedSlot = slot
	photo.Status = StatusAssigned
	next.StagingPhotos[a.PhotoID] = photo
	return nil
}

func reduceCommitStagedPhotos(next *State, a CommitStagedPhotos) error {
	if a.At.IsZero() {
		return malformed(a, "commit timestamp is required")
	}
	committed := 0
	for id, photo := range next.StagingPhotos {
		if photo.AssignedSlot == "" {
			continue
		}
		next.Photos[photo.AssignedSlot] = PhotoRecord{
			PhotoID:     photo.ID,
			SlotID:      photo.AssignedSlot,
			FileName:    photo.FileName,
			SourcePath:  photo.SourcePath,
			CommittedAt: a.At.UTC(),
		}
		delete(next.StagingPhotos, id)
		committed++
	}
	if committed == 0 {
		return ErrUnchanged
	}
	return nil
}
