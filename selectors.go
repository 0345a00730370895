package wizard

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActiveScenario returns the active scenario, falling back to the first one
// when the id is stale. ok is false only when there are no scenarios.
func ActiveScenario(s State) (Scenario, bool) {
	if idx := scenarioIndex(s.Scenarios, s.ActiveScenarioID); idx >= 0 {
		return s.Scenarios[idx], true
	}
	if len(s.Scenarios) == 0 {
		return Scenario{}, false
	}
	return s.Scenarios[0], true
}

// FindScenario looks a scenario up by id.
func FindScenario(s State, id string) (Scenario, bool) {
	if idx := scenarioIndex(s.Scenarios, id); idx >= 0 {
		return s.Scenarios[idx], true
	}
	return Scenario{}, false
}

// HasImprovements reports whether the improvements inventory lists anything.
func HasImprovements(s State) bool {
	return len(s.ImprovementsInventory.Items) > 0
}

// IsScenarioComplete reports whether every approach the scenario applies has
// a concluded value. A scenario without approaches is never complete.
func IsScenarioComplete(s State, scenarioID string) bool {
	scenario, ok := FindScenario(s, scenarioID)
	if !ok || len(scenario.Approaches) == 0 {
		return false
	}
	values := s.ApproachValues[scenarioID]
	for _, approach := range scenario.Approaches {
		if !values[approach].HasValue() {
			return false
		}
	}
	return true
}

// AreAllScenariosComplete reports whether every required scenario is
// complete. When no scenario is marked required, all of them must be.
func AreAllScenariosComplete(s State) bool {
	if len(s.Scenarios) == 0 {
		return false
	}
	anyRequired := false
	for _, scenario := range s.Scenarios {
		if scenario.IsRequired {
			anyRequired = true
			break
		}
	}
	for _, scenario := range s.Scenarios {
		if anyRequired && !scenario.IsRequired {
			continue
		}
		if !IsScenarioComplete(s, scenario.ID) {
			return false
		}
	}
	return true
}

// UsedSlots returns the slots held by assigned staging photos or committed
// photo records, sorted.
func UsedSlots(s State) []string {
	seen := map[string]struct{}{}
	for slot := range s.Photos {
		seen[slot] = struct{}{}
	}
	for _, photo := range s.StagingPhotos {
		if photo.AssignedSlot != "" {
			seen[photo.AssignedSlot] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for slot := range seen {
		out = append(out, slot)
	}
	sort.Strings(out)
	return out
}

// StagingPhotosInOrder returns staging photos in arrival order.
func StagingPhotosInOrder(s State) []StagingPhoto {
	out := make([]StagingPhoto, 0, len(s.StagingPhotos))
	for _, photo := range s.StagingPhotos {
		out = append(out, photo)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// NewScenario builds a scenario with a fresh id.
func NewScenario(name string, approaches ...string) Scenario {
	return Scenario{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(name),
		Approaches: normalizeApproaches(approaches),
	}
}

// NewOwner builds an owner with a fresh id.
func NewOwner(name, ownershipType string, percentage float64) Owner {
	return Owner{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(name),
		OwnershipType: strings.TrimSpace(ownershipType),
		Percentage:    percentage,
	}
}

// NewStagingPhoto builds a staging photo with a fresh id. Seq and status are
// assigned by the reducer.
func NewStagingPhoto(fileName, sourcePath string, size int64, at time.Time) StagingPhoto {
	return StagingPhoto{
		ID:         uuid.NewString(),
		FileName:   fileName,
		SourcePath: sourcePath,
		Size:       size,
		AddedAt:    at,
	}
}
