package layering

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type tabState struct {
	LastActiveTab string `json:"lastActiveTab"`
	HasInteracted bool   `json:"hasInteracted"`
}

type sampleTree struct {
	Template   *string
	Owners     []string
	PageTabs   map[string]tabState
	Completed  map[string]time.Time
	Subject    map[string]any
	Fullscreen bool
}

func strPtr(s string) *string { return &s }

func TestBackfillFillsNilCollections(t *testing.T) {
	persisted := sampleTree{
		Template: strPtr("residential"),
		Owners:   []string{"owner-1"},
	}
	defaults := sampleTree{
		Template:  strPtr("commercial"),
		Owners:    []string{},
		PageTabs:  map[string]tabState{},
		Completed: map[string]time.Time{},
		Subject:   map[string]any{"address": map[string]any{}},
	}

	got := Backfill(persisted, defaults)
	if got.Template == nil || *got.Template != "residential" {
		t.Fatalf("expected persisted template to win, got %v", got.Template)
	}
	if !reflect.DeepEqual(got.Owners, []string{"owner-1"}) {
		t.Fatalf("expected persisted owners, got %v", got.Owners)
	}
	if got.PageTabs == nil || got.Completed == nil {
		t.Fatalf("expected nil maps to be backfilled from defaults: %+v", got)
	}
	if _, ok := got.Subject["address"]; !ok {
		t.Fatalf("expected subject backfilled from defaults, got %v", got.Subject)
	}
}

func TestBackfillMapsCombineKeys(t *testing.T) {
	strong := sampleTree{PageTabs: map[string]tabState{"subject": {LastActiveTab: "site", HasInteracted: true}}}
	weak := sampleTree{PageTabs: map[string]tabState{"setup": {LastActiveTab: "general"}}}

	got := Backfill(strong, weak)
	want := map[string]tabState{
		"subject": {LastActiveTab: "site", HasInteracted: true},
		"setup":   {LastActiveTab: "general"},
	}
	if diff := cmp.Diff(want, got.PageTabs); diff != "" {
		t.Fatalf("merged page tabs mismatch (-want +got):\n%s", diff)
	}
}

func TestBackfillKeepsExplicitScalars(t *testing.T) {
	persisted := sampleTree{Fullscreen: false, Subject: map[string]any{"units": 0}}
	defaults := sampleTree{Fullscreen: true, Subject: map[string]any{"units": 4, "site": map[string]any{}}}

	got := Backfill(persisted, defaults)
	if got.Fullscreen {
		t.Fatalf("expected persisted false to win over default true")
	}
	if got.Subject["units"] != 0 {
		t.Fatalf("expected persisted zero to win, got %v", got.Subject["units"])
	}
	if _, ok := got.Subject["site"]; !ok {
		t.Fatalf("expected missing key added from defaults, got %v", got.Subject)
	}

	got.Subject["site"].(map[string]any)["zoning"] = "R1"
	if len(defaults.Subject["site"].(map[string]any)) != 0 {
		t.Fatalf("backfilled value aliases defaults: %v", defaults.Subject)
	}
}

func TestCloneDetachesNestedReferences(t *testing.T) {
	original := sampleTree{
		Template: strPtr("residential"),
		Owners:   []string{"a"},
		PageTabs: map[string]tabState{"setup": {LastActiveTab: "general"}},
		Subject:  map[string]any{"address": map[string]any{"city": "Austin"}},
	}

	cloned := Clone(original)
	*cloned.Template = "changed"
	cloned.Owners[0] = "changed"
	cloned.PageTabs["setup"] = tabState{LastActiveTab: "changed"}
	cloned.Subject["address"].(map[string]any)["city"] = "Dallas"

	if *original.Template != "residential" || original.Owners[0] != "a" {
		t.Fatalf("clone aliased scalar containers: %+v", original)
	}
	if original.PageTabs["setup"].LastActiveTab != "general" {
		t.Fatalf("clone aliased map: %+v", original.PageTabs)
	}
	if original.Subject["address"].(map[string]any)["city"] != "Austin" {
		t.Fatalf("clone aliased nested any map: %+v", original.Subject)
	}
}

func TestCloneNilCollectionsStayNil(t *testing.T) {
	cloned := Clone(sampleTree{})
	if cloned.Owners != nil || cloned.PageTabs != nil || cloned.Template != nil {
		t.Fatalf("expected nil collections preserved, got %+v", cloned)
	}
}
