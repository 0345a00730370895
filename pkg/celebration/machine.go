// Package celebration decides when the wizard congratulates the user.
//
// A Machine watches committed states and fires at most once per milestone:
// the first time a tracked section reaches 100%, the first time a scenario
// has every approach concluded, and once when all scenarios are complete.
// Only one celebration is visible at a time; a newer one replaces it. Each
// celebration hides itself after its duration unless dismissed first.
package celebration

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-wizard"
	"github.com/goliatone/go-wizard/pkg/activity"
	"github.com/goliatone/go-wizard/pkg/completion"
	"go.uber.org/zap"
)

// Option configures a Machine.
type Option func(*Machine)

func WithClock(clock Clock) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithDurations overrides auto-dismiss delays per level.
func WithDurations(durations map[wizard.CelebrationLevel]time.Duration) Option {
	return func(m *Machine) {
		for level, d := range durations {
			m.durations[level] = d
		}
	}
}

// WithSectionMessages overrides section titles and subtitles by section id.
func WithSectionMessages(messages map[string]Message) Option {
	return func(m *Machine) {
		for id, msg := range messages {
			m.sectionMessages[id] = msg
		}
	}
}

// WithScenarioLevel sets the level used for scenario celebrations.
func WithScenarioLevel(level wizard.CelebrationLevel) Option {
	return func(m *Machine) {
		m.scenarioLevel = level
	}
}

// WithActivity emits milestone events on behalf of actorID.
func WithActivity(emitter *activity.Emitter, actorID string) Option {
	return func(m *Machine) {
		m.emitter = emitter
		m.actorID = actorID
	}
}

// Machine is the celebration state machine: idle until a milestone is
// detected, visible until its timer fires or the user dismisses it.
type Machine struct {
	store           *wizard.Store
	engine          *completion.Engine
	clock           Clock
	logger          *zap.Logger
	emitter         *activity.Emitter
	actorID         string
	durations       map[wizard.CelebrationLevel]time.Duration
	sectionMessages map[string]Message
	scenarioLevel   wizard.CelebrationLevel

	mu        sync.Mutex
	sections  map[string]bool
	scenarios map[string]bool
	finale    bool
	timer     Timer
	token     uint64
	unwatch   func()
}

// NewMachine binds a machine to store and engine. Milestones already reached
// in the store's current state are treated as celebrated, so a restored
// session does not replay them.
func NewMachine(store *wizard.Store, engine *completion.Engine, opts ...Option) *Machine {
	m := &Machine{
		store:           store,
		engine:          engine,
		clock:           RealClock(),
		logger:          zap.NewNop(),
		durations:       DefaultDurations(),
		sectionMessages: DefaultSectionMessages(),
		scenarioLevel:   wizard.CelebrationMajor,
		sections:        map[string]bool{},
		scenarios:       map[string]bool{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.prime(store.State())
	return m
}

func (m *Machine) prime(s wizard.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range s.SectionCompletedAt {
		m.sections[id] = true
	}
	for _, scenario := range s.Scenarios {
		if wizard.IsScenarioComplete(s, scenario.ID) {
			m.scenarios[scenario.ID] = true
		}
	}
	m.finale = wizard.AreAllScenariosComplete(s)
}

// Watch subscribes the machine to the store. The returned function stops
// watching.
func (m *Machine) Watch() func() {
	unsubscribe := m.store.Subscribe(func(s wizard.State, act wizard.Action) {
		switch act.(type) {
		case wizard.ShowCelebration, wizard.HideCelebration, wizard.SetFullscreen:
			return
		}
		m.Observe(s)
	})
	m.mu.Lock()
	m.unwatch = unsubscribe
	m.mu.Unlock()
	return unsubscribe
}

// Observe checks s for new milestones and celebrates them in order: sections,
// then scenarios, then the finale. Later celebrations replace earlier ones.
// It returns the triggers that fired.
func (m *Machine) Observe(s wizard.State) []Trigger {
	triggers := m.detect(s)
	for _, trigger := range triggers {
		m.fire(trigger)
	}
	return triggers
}

// detect claims new milestones under the lock so concurrent observers never
// fire the same one twice. Nothing is dispatched while the lock is held.
func (m *Machine) detect(s wizard.State) []Trigger {
	evaluation := m.engine.Evaluate(s)

	m.mu.Lock()
	defer m.mu.Unlock()

	var triggers []Trigger
	for _, section := range m.engine.Schema().TrackedSections() {
		if m.sections[section.ID] {
			continue
		}
		if _, done := s.SectionCompletedAt[section.ID]; done {
			m.sections[section.ID] = true
			continue
		}
		// vacuously complete sections are not milestones
		if evaluation.Section(section.ID) != 100 || !evaluation.Requires(section.ID) {
			continue
		}
		m.sections[section.ID] = true
		triggers = append(triggers, Trigger{
			Kind:          KindSection,
			SectionID:     section.ID,
			Label:         section.Label,
			Level:         section.CelebrationLevel,
			AnimationType: section.AnimationType,
		})
	}

	for _, scenario := range s.Scenarios {
		if m.scenarios[scenario.ID] || !wizard.IsScenarioComplete(s, scenario.ID) {
			continue
		}
		m.scenarios[scenario.ID] = true
		triggers = append(triggers, Trigger{
			Kind:       KindScenario,
			ScenarioID: scenario.ID,
			Label:      scenario.Name,
			Level:      m.scenarioLevel,
		})
	}

	if !m.finale && wizard.AreAllScenariosComplete(s) {
		m.finale = true
		triggers = append(triggers, Trigger{Kind: KindFinale, Level: wizard.CelebrationGrand})
	}
	return triggers
}

func (m *Machine) fire(t Trigger) {
	now := m.clock.Now().UTC()
	desc := m.describe(t)
	log := m.logger.With(zap.String("kind", string(t.Kind)), zap.String("level", string(desc.Level)))

	if t.Kind == KindSection {
		if err := m.store.Dispatch(wizard.MarkSectionCompleted{SectionID: t.SectionID, At: now}); err != nil {
			log.Warn("mark section completed failed", zap.String("section", t.SectionID), zap.Error(err))
		}
	}
	m.emitMilestone(t, desc, now)

	if !desc.Visible() {
		log.Debug("celebration suppressed")
		return
	}
	m.show(t, desc, log)
}

func (m *Machine) show(t Trigger, desc Descriptor, log *zap.Logger) {
	m.mu.Lock()
	m.token++
	token := m.token
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	err := m.store.Dispatch(wizard.ShowCelebration{Celebration: wizard.Celebration{
		SectionID:     t.SectionID,
		ScenarioID:    t.ScenarioID,
		Level:         desc.Level,
		AnimationType: desc.AnimationType,
		Title:         desc.Title,
		Subtitle:      desc.Subtitle,
		Duration:      desc.Duration,
		Token:         token,
	}})
	if err != nil {
		log.Warn("show celebration failed", zap.Error(err))
		return
	}
	log.Info("celebration shown", zap.String("title", desc.Title), zap.Uint64("token", token))

	if desc.Duration <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != token {
		// replaced while dispatching
		return
	}
	m.timer = m.clock.AfterFunc(desc.Duration, func() {
		m.expire(token)
	})
}

func (m *Machine) expire(token uint64) {
	m.mu.Lock()
	if m.token == token {
		m.timer = nil
	}
	m.mu.Unlock()
	// a stale token is ignored by the reducer
	if err := m.store.Dispatch(wizard.HideCelebration{Token: token}); err != nil {
		m.logger.Warn("auto-dismiss failed", zap.Error(err))
	}
}

// Current returns the celebration currently on screen, if any.
func (m *Machine) Current() (wizard.Celebration, bool) {
	c := m.store.State().Celebration
	return c, c.IsVisible
}

// Dismiss hides the visible celebration and cancels its timer. It reports
// whether anything was visible. Milestones stay celebrated.
func (m *Machine) Dismiss() bool {
	if _, visible := m.Current(); !visible {
		return false
	}
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
	if err := m.store.Dispatch(wizard.HideCelebration{}); err != nil {
		m.logger.Warn("dismiss failed", zap.Error(err))
		return false
	}
	return true
}

// HandleKey dismisses on Escape.
func (m *Machine) HandleKey(key string) bool {
	if key != "Escape" {
		return false
	}
	return m.Dismiss()
}

// HandleClick dismisses on a click anywhere.
func (m *Machine) HandleClick() bool {
	return m.Dismiss()
}

// Close stops watching and cancels any pending timer.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	unwatch := m.unwatch
	m.unwatch = nil
	m.mu.Unlock()
	if unwatch != nil {
		unwatch()
	}
}

func (m *Machine) emitMilestone(t Trigger, desc Descriptor, at time.Time) {
	level := string(desc.Level)
	var event activity.Event
	switch t.Kind {
	case KindSection:
		event = activity.SectionCompleted(t.SectionID, level)
	case KindScenario:
		event = activity.ScenarioCompleted(t.ScenarioID, t.Label, level)
	default:
		event = activity.WizardCompleted(level)
	}
	event = event.By(m.actorID).At(at)
	if err := m.emitter.Emit(context.Background(), event); err != nil {
		m.logger.Warn("activity emit failed", zap.String("verb", event.Verb), zap.Error(err))
	}
}
