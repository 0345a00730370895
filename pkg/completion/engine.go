// Package completion measures how much of the wizard has been filled in.
//
// A Schema declares, per section and tab, which state paths are required. The
// Engine serializes a state once per version and answers field, tab, section
// and overall questions against that tree. Percentages are integers 0..100
// rounded half up; anything with nothing required is 100% complete.
package completion

import (
	"math"
	"sync"
	"time"

	"github.com/goliatone/go-wizard"
	"github.com/goliatone/go-wizard/pkg/rules"
	"go.uber.org/zap"
)

// Option configures an Engine.
type Option func(*Engine)

// WithConditions sets the compiler used for `when` conditions. The default
// is the expr backend with the builtin helpers.
func WithConditions(compiler *rules.Compiler) Option {
	return func(e *Engine) {
		if compiler != nil {
			e.compiler = compiler
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver receives one trace per condition evaluation. Defaults to a
// zap adapter around the engine logger.
func WithObserver(observe rules.Observer) Option {
	return func(e *Engine) {
		e.observe = observe
	}
}

// WithClock sets the time exposed to conditions as `now`.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine evaluates a Schema against wizard states. It is safe for concurrent
// use.
type Engine struct {
	schema     Schema
	compiler   *rules.Compiler
	observe    rules.Observer
	logger     *zap.Logger
	now        func() time.Time
	conditions map[string]*rules.Condition

	mu   sync.Mutex
	last *Evaluation
}

// NewEngine validates schema and compiles its conditions.
func NewEngine(schema Schema, opts ...Option) (*Engine, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		schema:     schema,
		logger:     zap.NewNop(),
		now:        time.Now,
		conditions: map[string]*rules.Condition{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.compiler == nil {
		e.compiler = rules.NewCompiler()
	}
	if e.observe == nil {
		e.observe = rules.ZapObserver(e.logger)
	}

	for _, expr := range schema.conditions() {
		cond, err := e.compiler.Compile(expr)
		if err != nil {
			return nil, err
		}
		e.conditions[expr] = cond
	}
	return e, nil
}

// Schema returns the schema the engine was built with.
func (e *Engine) Schema() Schema {
	return e.schema
}

func (s Schema) conditions() []string {
	var out []string
	seen := map[string]bool{}
	add := func(expr string) {
		if expr != "" && !seen[expr] {
			seen[expr] = true
			out = append(out, expr)
		}
	}
	for _, section := range s.Sections {
		for _, field := range section.Fields {
			add(field.When)
		}
		for _, tab := range section.Tabs {
			add(tab.When)
			for _, field := range tab.Fields {
				add(field.When)
			}
		}
	}
	return out
}

// Evaluate returns the evaluation for s, reusing the previous one when s has
// the same version and modification time. States that never went through a
// store carry no stamp and are always evaluated afresh.
func (e *Engine) Evaluate(s wizard.State) *Evaluation {
	e.mu.Lock()
	defer e.mu.Unlock()
	stamped := s.Version != 0 || !s.LastModified.IsZero()
	if stamped && e.last != nil && e.last.version == s.Version && e.last.modified.Equal(s.LastModified) {
		return e.last
	}

	tree, err := wizard.ToDocument(s)
	if err != nil {
		// every path resolves to "not filled"
		e.logger.Error("serialize state for completion", zap.Error(err))
		tree = map[string]any{}
	}
	e.last = &Evaluation{
		engine:   e,
		tree:     tree,
		pageTabs: s.PageTabs,
		version:  s.Version,
		modified: s.LastModified,
		tabs:     map[string]tabResult{},
		sections: map[string]int{},
	}
	return e.last
}

func (e *Engine) FieldCompletion(s wizard.State, path string) bool {
	return e.Evaluate(s).Field(path)
}

func (e *Engine) TabCompletion(s wizard.State, sectionID, tabID string) int {
	return e.Evaluate(s).Tab(sectionID, tabID)
}

func (e *Engine) SectionCompletion(s wizard.State, sectionID string) int {
	return e.Evaluate(s).Section(sectionID)
}

func (e *Engine) OverallCompletion(s wizard.State) int {
	return e.Evaluate(s).Overall()
}

func (e *Engine) SmartInitialTab(s wizard.State, sectionID, defaultTab string) string {
	return e.Evaluate(s).SmartInitialTab(sectionID, defaultTab)
}

// condition evaluates expr. Failures are logged and treated as true so a
// broken condition never hides a required field.
func (e *Engine) condition(expr, sectionID, tabID string, tree map[string]any) bool {
	if expr == "" {
		return true
	}
	cond, ok := e.conditions[expr]
	if !ok {
		return true
	}
	env := rules.Env{State: tree, Now: e.now(), Section: sectionID, Tab: tabID}
	started := time.Now()
	result, err := cond.Eval(env)
	e.observe(rules.Trace{
		Backend: cond.Backend(),
		Expr:    expr,
		At:      env.At(),
		Result:  result,
		Took:    time.Since(started),
		Err:     err,
	})
	if err != nil {
		return true
	}
	return rules.Truthy(result)
}

type tabResult struct {
	percent    int
	applicable bool
}

// Evaluation answers completion questions for one state. Results are computed
// lazily and kept for the lifetime of the evaluation.
type Evaluation struct {
	engine   *Engine
	tree     map[string]any
	pageTabs map[string]wizard.PageTab
	version  uint64
	modified time.Time

	mu       sync.Mutex
	tabs     map[string]tabResult
	sections map[string]int
}

// Tree exposes the serialized state the evaluation reads from. Callers must
// not mutate it.
func (ev *Evaluation) Tree() map[string]any {
	return ev.tree
}

// Field reports whether path resolves to a filled value.
func (ev *Evaluation) Field(path string) bool {
	value, ok := lookup(ev.tree, path)
	return ok && rules.Filled(value)
}

// Tab returns the completion of one tab. Unknown sections or tabs report 0; a
// tab whose condition is false reports 100 since nothing in it is required.
func (ev *Evaluation) Tab(sectionID, tabID string) int {
	section, ok := ev.engine.schema.Section(sectionID)
	if !ok {
		return 0
	}
	tab, ok := section.Tab(tabID)
	if !ok {
		return 0
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.tabLocked(section, tab).percent
}

func (ev *Evaluation) tabLocked(section Section, tab Tab) tabResult {
	key := section.ID + "/" + tab.ID
	if cached, ok := ev.tabs[key]; ok {
		return cached
	}
	result := tabResult{percent: 100}
	result.applicable = ev.engine.condition(tab.When, section.ID, tab.ID, ev.tree)
	if result.applicable {
		result.percent = ev.fieldsPercent(tab.Fields, section.ID, tab.ID)
	}
	ev.tabs[key] = result
	return result
}

func (ev *Evaluation) fieldsPercent(fields []Field, sectionID, tabID string) int {
	required, filled := 0, 0
	for _, field := range fields {
		if !ev.engine.condition(field.When, sectionID, tabID, ev.tree) {
			continue
		}
		required++
		if ev.Field(field.Path) {
			filled++
		}
	}
	if required == 0 {
		return 100
	}
	return percent(float64(filled) / float64(required) * 100)
}

// Section returns the completion of one section: the average of its
// applicable tabs, or its own fields when it has no tabs. Unknown sections
// report 0.
func (ev *Evaluation) Section(sectionID string) int {
	section, ok := ev.engine.schema.Section(sectionID)
	if !ok {
		return 0
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.sectionLocked(section)
}

func (ev *Evaluation) sectionLocked(section Section) int {
	if cached, ok := ev.sections[section.ID]; ok {
		return cached
	}
	var result int
	if len(section.Tabs) == 0 {
		result = ev.fieldsPercent(section.Fields, section.ID, "")
	} else {
		sum, count := 0, 0
		for _, tab := range section.Tabs {
			tr := ev.tabLocked(section, tab)
			if !tr.applicable {
				continue
			}
			sum += tr.percent
			count++
		}
		result = 100
		if count > 0 {
			result = percent(float64(sum) / float64(count))
		}
	}
	ev.sections[section.ID] = result
	return result
}

// Requires reports whether the section currently has at least one
// applicable required field. A section without any is complete by default.
func (ev *Evaluation) Requires(sectionID string) bool {
	section, ok := ev.engine.schema.Section(sectionID)
	if !ok {
		return false
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if len(section.Tabs) == 0 {
		return ev.anyApplicable(section.Fields, section.ID, "")
	}
	for _, tab := range section.Tabs {
		if ev.tabLocked(section, tab).applicable && ev.anyApplicable(tab.Fields, section.ID, tab.ID) {
			return true
		}
	}
	return false
}

func (ev *Evaluation) anyApplicable(fields []Field, sectionID, tabID string) bool {
	for _, field := range fields {
		if ev.engine.condition(field.When, sectionID, tabID, ev.tree) {
			return true
		}
	}
	return false
}

// Overall averages the tracked sections. A schema without tracked sections
// is complete.
func (ev *Evaluation) Overall() int {
	tracked := ev.engine.schema.TrackedSections()
	if len(tracked) == 0 {
		return 100
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	sum := 0
	for _, section := range tracked {
		sum += ev.sectionLocked(section)
	}
	return percent(float64(sum) / float64(len(tracked)))
}

// SmartInitialTab picks the tab a section should open on: defaultTab once the
// user has interacted with the section, otherwise the first applicable tab
// that is not complete, falling back to defaultTab.
func (ev *Evaluation) SmartInitialTab(sectionID, defaultTab string) string {
	section, ok := ev.engine.schema.Section(sectionID)
	if !ok {
		return defaultTab
	}
	if defaultTab == "" {
		defaultTab = section.DefaultTab
	}
	if defaultTab == "" && len(section.Tabs) > 0 {
		defaultTab = section.Tabs[0].ID
	}
	if ev.pageTabs[sectionID].HasInteracted {
		return defaultTab
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	for _, tab := range section.Tabs {
		tr := ev.tabLocked(section, tab)
		if tr.applicable && tr.percent < 100 {
			return tab.ID
		}
	}
	return defaultTab
}

// TabReport and SectionReport summarize an evaluation for display.
type TabReport struct {
	ID         string
	Label      string
	Percent    int
	Applicable bool
}

type SectionReport struct {
	ID      string
	Label   string
	Percent int
	Tracked bool
	Tabs    []TabReport
}

// Report returns every section in schema order.
func (ev *Evaluation) Report() []SectionReport {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	out := make([]SectionReport, 0, len(ev.engine.schema.Sections))
	for _, section := range ev.engine.schema.Sections {
		report := SectionReport{
			ID:      section.ID,
			Label:   section.Label,
			Percent: ev.sectionLocked(section),
			Tracked: section.TrackProgress,
		}
		for _, tab := range section.Tabs {
			tr := ev.tabLocked(section, tab)
			report.Tabs = append(report.Tabs, TabReport{ID: tab.ID, Label: tab.Label, Percent: tr.percent, Applicable: tr.applicable})
		}
		out = append(out, report)
	}
	return out
}

// percent rounds half up and clamps to 0..100.
func percent(value float64) int {
	rounded := int(math.Floor(value + 0.5))
	switch {
	case rounded < 0:
		return 0
	case rounded > 100:
		return 100
	}
	return rounded
}
