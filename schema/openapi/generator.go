// Package openapi describes the persisted wizard session as an OpenAPI
// document. The session snapshot is documented as a single read operation
// and the completion schema is attached under the x-completion extension so
// consumers can see which paths each section requires.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/goliatone/go-wizard"
	"github.com/goliatone/go-wizard/pkg/completion"
)

type sessionRequest struct {
	Domain  string `path:"domain"`
	Session string `path:"session"`
}

// Generate builds the document for schema. It fails when a schema path does
// not start at a property of the session document, which usually means a
// typo in a custom schema file.
func Generate(schema completion.Schema, opts ...GeneratorOption) (map[string]any, error) {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	r := openapi3.NewReflector()
	r.Spec.Info.Title = cfg.title
	r.Spec.Info.Version = cfg.version
	r.Spec.Info.WithDescription(cfg.description)

	getSession, err := r.NewOperationContext(http.MethodGet, cfg.sessionPath)
	if err != nil {
		return nil, fmt.Errorf("openapi: %w", err)
	}
	getSession.SetSummary("Load session snapshot")
	getSession.SetDescription("Returns the last persisted state of one wizard session.")
	getSession.AddReqStructure(sessionRequest{})
	getSession.AddRespStructure(wizard.State{}, openapi.WithHTTPStatus(http.StatusOK))
	if err := r.AddOperation(getSession); err != nil {
		return nil, fmt.Errorf("openapi: %w", err)
	}

	raw, err := r.Spec.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("openapi: encode spec: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("openapi: encode spec: %w", err)
	}

	if err := checkPaths(doc, StateSchema(doc, cfg.sessionPath), schema); err != nil {
		return nil, err
	}
	doc["x-completion"] = completionExtension(schema)
	return doc, nil
}

func checkPaths(doc map[string]any, state map[string]any, schema completion.Schema) error {
	properties, _ := state["properties"].(map[string]any)
	var unknown []string
	for _, path := range schema.Paths() {
		head := path
		if i := strings.IndexAny(head, ".["); i >= 0 {
			head = head[:i]
		}
		if _, ok := properties[head]; !ok {
			unknown = append(unknown, path)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("openapi: schema paths outside the session document: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// StateSchema returns the session document schema from a generated doc,
// following the snapshot operation's response reference.
func StateSchema(doc map[string]any, sessionPath string) map[string]any {
	schema := lookup(doc, "paths", sessionPath, "get", "responses", "200", "content", "application/json", "schema")
	return Resolve(doc, schema)
}

// Resolve follows a local $ref into components; other schemas are returned
// unchanged.
func Resolve(doc map[string]any, schema map[string]any) map[string]any {
	ref, _ := schema["$ref"].(string)
	name, ok := strings.CutPrefix(ref, "#/components/schemas/")
	if !ok {
		return schema
	}
	return lookup(doc, "components", "schemas", name)
}

func lookup(node map[string]any, keys ...string) map[string]any {
	for _, key := range keys {
		next, _ := node[key].(map[string]any)
		if next == nil {
			return nil
		}
		node = next
	}
	return node
}

func completionExtension(schema completion.Schema) []any {
	out := make([]any, 0, len(schema.Sections))
	for _, section := range schema.Sections {
		entry := map[string]any{
			"id":            section.ID,
			"trackProgress": section.TrackProgress,
		}
		if section.Label != "" {
			entry["label"] = section.Label
		}
		if section.CelebrationLevel != "" {
			entry["celebrationLevel"] = string(section.CelebrationLevel)
		}
		if fields := fieldList(section.Fields); len(fields) > 0 {
			entry["fields"] = fields
		}
		if len(section.Tabs) > 0 {
			tabs := make([]any, 0, len(section.Tabs))
			for _, tab := range section.Tabs {
				t := map[string]any{"id": tab.ID, "fields": fieldList(tab.Fields)}
				if tab.When != "" {
					t["when"] = tab.When
				}
				tabs = append(tabs, t)
			}
			entry["tabs"] = tabs
		}
		out = append(out, entry)
	}
	return out
}

func fieldList(fields []completion.Field) []any {
	out := make([]any, 0, len(fields))
	for _, field := range fields {
		if field.When == "" {
			out = append(out, field.Path)
			continue
		}
		out = append(out, map[string]any{"path": field.Path, "when": field.When})
	}
	return out
}
