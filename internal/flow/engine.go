package flow

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadsim/internal/metrics"
	"leadsim/internal/models"
	"leadsim/internal/schedule"
)

// disclosureText is the fixed rates/AI notice. It is always the first bot
// message of a session and is re-appended at each simulated 24-hour pass.
const disclosureText = "You're chatting with an automated texting assistant. Msg & data rates may apply. Reply STOP at any time to opt out."

// Internal option labels dispatched by the date/time picker operations.
const (
	optionPickerConfirm = "confirm"
	optionPickerCancel  = "cancel"
)

// Default simulated delays.
const (
	defaultReplyDelay = 1200 * time.Millisecond
	defaultPassDelay  = 2500 * time.Millisecond
)

// confirmVisitIntentPhrases trigger the mid-conversation switch from the
// webform workflow into the confirm-visit workflow. Matched as
// case-insensitive substrings of the submitted text.
var confirmVisitIntentPhrases = []string{
	"confirm my appointment",
	"confirm my visit",
	"confirm an appointment",
	"confirm a visit",
	"want to confirm a visit",
	"confirm the appointment",
	"confirming my appointment",
}

// Categorizer maps free text onto one of the six response categories.
type Categorizer interface {
	Classify(ctx context.Context, text string, aiEnabled bool) models.ResponseCategory
}

// Recorder persists finished-session transcripts for demo review.
type Recorder interface {
	SaveTranscript(t models.Transcript) error
}

// LeadProfile supplies the placeholder values interpolated into message
// templates.
type LeadProfile struct {
	FirstName   string
	Address     string
	Appointment string
}

// DefaultLeadProfile is the demo lead used when none is configured.
var DefaultLeadProfile = LeadProfile{
	FirstName:   "Jordan",
	Address:     "128 Market Street",
	Appointment: "Thursday at 2:30 PM",
}

// engineOpts holds Engine configuration.
type engineOpts struct {
	timer      Timer
	recorder   Recorder
	profile    *LeadProfile
	defs       map[models.Workflow]*Definition
	replyDelay *time.Duration
	passDelay  *time.Duration
	aiDefault  *bool
}

// EngineOption configures the Engine.
type EngineOption func(*engineOpts)

// WithTimer substitutes the delay scheduler (tests use a synchronous one).
func WithTimer(t Timer) EngineOption {
	return func(o *engineOpts) { o.timer = t }
}

// WithRecorder enables transcript recording on session resets.
func WithRecorder(r Recorder) EngineOption {
	return func(o *engineOpts) { o.recorder = r }
}

// WithProfile sets the demo lead profile.
func WithProfile(p LeadProfile) EngineOption {
	return func(o *engineOpts) { o.profile = &p }
}

// WithDefinitions overrides the embedded workflow definitions.
func WithDefinitions(defs map[models.Workflow]*Definition) EngineOption {
	return func(o *engineOpts) { o.defs = defs }
}

// WithReplyDelay sets the simulated message-send latency.
func WithReplyDelay(d time.Duration) EngineOption {
	return func(o *engineOpts) { o.replyDelay = &d }
}

// WithPassDelay sets the simulated 24-hour-pass duration.
func WithPassDelay(d time.Duration) EngineOption {
	return func(o *engineOpts) { o.passDelay = &d }
}

// WithAIDefault sets whether new sessions start with AI classification on.
func WithAIDefault(enabled bool) EngineOption {
	return func(o *engineOpts) { o.aiDefault = &enabled }
}

// Engine is the conversation orchestrator. It owns the single live Session,
// dispatches UI events into the active workflow's transition table, invokes
// the categorizer for free text, and performs the mid-conversation workflow
// switch. All session mutation happens under mu; free-text submissions are
// additionally serialized by classifyMu so rapid double-submits are processed
// in order.
type Engine struct {
	mu         sync.Mutex
	classifyMu sync.Mutex

	session     *models.Session
	scheduled   *schedule.Scheduled
	defs        map[models.Workflow]*Definition
	categorizer Categorizer
	timer       Timer
	recorder    Recorder
	profile     LeadProfile
	replyDelay  time.Duration
	passDelay   time.Duration
	aiDefault   bool
	nextGen     uint64
}

// NewEngine creates an engine with the embedded workflow definitions.
func NewEngine(categorizer Categorizer, options ...EngineOption) (*Engine, error) {
	var cfg engineOpts
	for _, opt := range options {
		opt(&cfg)
	}

	defs := cfg.defs
	if defs == nil {
		loaded, err := LoadDefinitions()
		if err != nil {
			return nil, err
		}
		defs = loaded
	}

	e := &Engine{
		defs:        defs,
		categorizer: categorizer,
		timer:       cfg.timer,
		recorder:    cfg.recorder,
		profile:     DefaultLeadProfile,
		replyDelay:  defaultReplyDelay,
		passDelay:   defaultPassDelay,
		aiDefault:   true,
	}
	if e.timer == nil {
		e.timer = NewSimpleTimer()
	}
	if cfg.profile != nil {
		e.profile = *cfg.profile
	}
	if cfg.replyDelay != nil {
		e.replyDelay = *cfg.replyDelay
	}
	if cfg.passDelay != nil {
		e.passDelay = *cfg.passDelay
	}
	if cfg.aiDefault != nil {
		e.aiDefault = *cfg.aiDefault
	}
	return e, nil
}

// Start creates the initial session (webform version A).
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startSessionLocked(models.WorkflowWebform, models.WebformVersionA, e.aiDefault)
}

// Reset discards the live session and starts a fresh one with the same
// workflow, version, and AI setting. The old session's pending timer effects
// and any in-flight classification result are dropped via the generation
// counter.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return
	}
	metrics.SessionResets.Inc()
	e.startSessionLocked(e.session.Workflow, e.session.Version, e.session.AIEnabled)
}

// SelectWorkflow resets into a fresh session on the given workflow.
func (e *Engine) SelectWorkflow(w models.Workflow, v models.WebformVersion) error {
	if !models.IsValidWorkflow(w) {
		return models.ErrInvalidWorkflow
	}
	if v == "" {
		v = models.WebformVersionA
	}
	if !models.IsValidWebformVersion(v) {
		return models.ErrInvalidVersion
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	ai := e.aiDefault
	if e.session != nil {
		ai = e.session.AIEnabled
		metrics.SessionResets.Inc()
	}
	e.startSessionLocked(w, v, ai)
	return nil
}

// SelectVersion resets into a fresh session with the given webform version.
func (e *Engine) SelectVersion(v models.WebformVersion) error {
	if !models.IsValidWebformVersion(v) {
		return models.ErrInvalidVersion
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return models.ErrNoActiveSession
	}
	metrics.SessionResets.Inc()
	e.startSessionLocked(e.session.Workflow, v, e.session.AIEnabled)
	return nil
}

// ToggleAI flips AI classification and resets into a fresh session, returning
// the new setting.
func (e *Engine) ToggleAI() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ai := !e.aiDefault
	if e.session == nil {
		e.aiDefault = ai
		return ai
	}
	ai = !e.session.AIEnabled
	metrics.SessionResets.Inc()
	e.startSessionLocked(e.session.Workflow, e.session.Version, ai)
	return ai
}

// SelectOption dispatches a UI option click into the active workflow table.
// Options not valid for the current state are ignored; this is the net
// against stale clicks racing a pending transition.
func (e *Engine) SelectOption(label string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.session.HasOptedOut {
		return
	}
	e.dispatchLocked(label, true)
}

// SubmitText handles a free-text submission: STOP handling, the confirm-visit
// workflow switch, then categorization and dispatch of the resulting label.
func (e *Engine) SubmitText(ctx context.Context, text string) {
	e.classifyMu.Lock()
	defer e.classifyMu.Unlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}

	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return
	}
	if e.session.HasOptedOut {
		e.appendUserLocked(trimmed)
		e.mu.Unlock()
		return
	}

	if strings.EqualFold(trimmed, "STOP") {
		e.appendUserLocked(trimmed)
		e.session.HasOptedOut = true
		slog.Info("Engine.SubmitText: lead opted out", "session", e.session.ID)
		e.mu.Unlock()
		return
	}

	if e.session.Workflow == models.WorkflowWebform && matchesConfirmVisitIntent(trimmed) {
		e.switchToConfirmVisitLocked(trimmed)
		e.mu.Unlock()
		return
	}

	e.appendUserLocked(trimmed)
	gen := e.session.Generation
	aiEnabled := e.session.AIEnabled
	e.mu.Unlock()

	// Network boundary: the lock is released while the classifier runs.
	category := e.categorizer.Classify(ctx, trimmed, aiEnabled)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.session.Generation != gen {
		slog.Debug("Engine.SubmitText: dropping classification for reset session", "category", category)
		return
	}
	slog.Debug("Engine.SubmitText: classified", "category", category, "state", e.session.State)
	e.dispatchLocked(string(category), false)
}

// ConfirmDateTime validates the picker selection and, if valid, records it
// and dispatches the confirm transition. On validation failure the session is
// untouched and the error carries the user-facing rejection message.
func (e *Engine) ConfirmDateTime(date time.Time, hour12, minute int, ampm string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.session.HasOptedOut {
		return nil
	}

	def := e.defs[e.session.Workflow]
	if def.Lookup(e.session.State, optionPickerConfirm, e.session.IsAfter24HourFollowup) == nil {
		slog.Debug("Engine.ConfirmDateTime: no picker open in current state", "state", e.session.State)
		return nil
	}

	sched, err := schedule.Validate(date, hour12, minute, ampm)
	if err != nil {
		slog.Debug("Engine.ConfirmDateTime: rejected", "error", err)
		return err
	}

	e.scheduled = sched
	e.session.ScheduledAt = &sched.Time
	e.appendUserLocked(sched.LongDate + " at " + sched.Clock)
	e.dispatchLocked(optionPickerConfirm, false)
	return nil
}

// CancelDateTime dismisses the picker via the cancel transition.
func (e *Engine) CancelDateTime() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.session.HasOptedOut {
		return
	}
	e.dispatchLocked(optionPickerCancel, false)
}

// EndCall ends the simulated call screen. The session intentionally remains
// in call_accepted; there is no terminal transition for a completed call.
func (e *Engine) EndCall() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return
	}
	if e.session.State == models.StateCallAccepted {
		slog.Info("Engine.EndCall: call ended, state remains call_accepted", "session", e.session.ID)
	}
}

// EditMessage rewrites the text (and optionally options) of an existing log
// entry in place. Entries are never reordered or removed.
func (e *Engine) EditMessage(id, text string, options []string) error {
	if strings.TrimSpace(text) == "" {
		return models.ErrEmptyText
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return models.ErrNoActiveSession
	}
	for i := range e.session.Messages {
		if e.session.Messages[i].ID == id {
			e.session.Messages[i].Text = text
			if options != nil {
				e.session.Messages[i].Options = options
			}
			slog.Debug("Engine.EditMessage: rewrote entry", "id", id)
			return nil
		}
	}
	return models.ErrMessageNotFound
}

// Messages returns a snapshot of the ordered message log.
func (e *Engine) Messages() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	out := make([]models.Message, len(e.session.Messages))
	copy(out, e.session.Messages)
	return out
}

// Status returns the current workflow/state pair and session flags for the
// diagram renderer.
func (e *Engine) Status() models.StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return models.StatusSnapshot{}
	}
	return models.StatusSnapshot{
		Workflow:    e.session.Workflow,
		Version:     e.session.Version,
		State:       e.session.State,
		ScheduledAt: e.session.ScheduledAt,
		HasOptedOut: e.session.HasOptedOut,
		AIEnabled:   e.session.AIEnabled,
	}
}

// Stop cancels pending timers and records the final transcript.
func (e *Engine) Stop() {
	e.timer.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recordTranscriptLocked()
	e.session = nil
}

// startSessionLocked replaces the live session with a fresh one and kicks off
// the workflow's automatic opening transition. The disclosure message is
// always the first log entry.
func (e *Engine) startSessionLocked(w models.Workflow, v models.WebformVersion, aiEnabled bool) {
	e.recordTranscriptLocked()

	e.nextGen++
	e.scheduled = nil
	def := e.defs[w]
	e.session = &models.Session{
		ID:         uuid.NewString(),
		Workflow:   w,
		Version:    v,
		State:      def.InitialState,
		AIEnabled:  aiEnabled,
		Generation: e.nextGen,
		CreatedAt:  time.Now(),
	}
	slog.Info("Engine: session started", "session", e.session.ID, "workflow", w, "version", v, "ai_enabled", aiEnabled)

	e.appendBotLocked(disclosureText, nil)
	e.autoAdvanceLocked()
}

// switchToConfirmVisitLocked performs the mid-conversation workflow switch:
// the log is preserved, the workflow and state are replaced, and the
// confirm-visit opening prompt follows after the standard delay.
func (e *Engine) switchToConfirmVisitLocked(text string) {
	e.appendUserLocked(text)
	e.session.Workflow = models.WorkflowConfirmVisit
	e.session.State = models.StateConfirmVisitInitial
	slog.Info("Engine: workflow switch to confirm_visit", "session", e.session.ID)
	e.autoAdvanceLocked()
}

// autoAdvanceLocked schedules the automatic transition out of the current
// state, if the table defines one.
func (e *Engine) autoAdvanceLocked() {
	def := e.defs[e.session.Workflow]
	tr := def.Lookup(e.session.State, "", e.session.IsAfter24HourFollowup)
	if tr == nil {
		return
	}
	e.scheduleStepLocked(e.replyDelay, func() { e.applyTransitionLocked(tr) })
}

// dispatchLocked resolves (state, option) in the active table and schedules
// the transition. Unknown options are a silent no-op.
func (e *Engine) dispatchLocked(label string, appendUser bool) {
	def := e.defs[e.session.Workflow]
	tr := def.Lookup(e.session.State, label, e.session.IsAfter24HourFollowup)
	if tr == nil {
		slog.Debug("Engine.dispatch: option not valid for state, ignoring", "option", label, "state", e.session.State)
		return
	}
	if appendUser {
		e.appendUserLocked(label)
	}
	e.scheduleStepLocked(e.replyDelay, func() { e.applyTransitionLocked(tr) })
}

// applyTransitionLocked emits the transition's messages in table order,
// applies the state change, and schedules any follow-on step (automatic
// transition or 24h-pass).
func (e *Engine) applyTransitionLocked(tr *Transition) {
	texts := e.renderMessagesLocked(tr.Messages)
	for i, text := range texts {
		var opts []string
		if i == len(texts)-1 {
			opts = tr.Options
		}
		e.appendBotLocked(text, opts)
	}

	if tr.ConsumeFollowup {
		e.session.IsAfter24HourFollowup = false
	}

	if tr.To != "" {
		from := e.session.State
		e.session.State = tr.To
		metrics.Transitions.WithLabelValues(string(e.session.Workflow)).Inc()
		slog.Info("Engine: transition applied", "session", e.session.ID, "from", from, "to", tr.To, "option", tr.Option)
	}

	if tr.Pass24h {
		e.scheduleStepLocked(e.passDelay, e.apply24hPassLocked)
		return
	}
	if tr.To != "" {
		e.autoAdvanceLocked()
	}
}

// apply24hPassLocked applies the simulated 24-hour passage: the disclosure is
// re-appended, the followup question is emitted with its Yes/No options, the
// session enters the followup state, and the after-24h flag is set.
func (e *Engine) apply24hPassLocked() {
	def := e.defs[e.session.Workflow]
	if def.FollowupState == "" {
		slog.Error("Engine: 24h-pass requested for workflow without followup state", "workflow", e.session.Workflow)
		return
	}

	e.appendBotLocked(disclosureText, nil)
	texts := e.renderMessagesLocked(def.Followup.Messages)
	for i, text := range texts {
		var opts []string
		if i == len(texts)-1 {
			opts = def.Followup.Options
		}
		e.appendBotLocked(text, opts)
	}

	from := e.session.State
	e.session.State = def.FollowupState
	e.session.IsAfter24HourFollowup = true
	metrics.Transitions.WithLabelValues(string(e.session.Workflow)).Inc()
	slog.Info("Engine: 24h-pass applied", "session", e.session.ID, "from", from, "to", def.FollowupState)
}

// scheduleStepLocked runs fn after the given delay, dropping it if the
// session has been reset in the meantime. A zero delay applies synchronously.
func (e *Engine) scheduleStepLocked(delay time.Duration, fn func()) {
	if delay <= 0 {
		fn()
		return
	}
	gen := e.session.Generation
	if _, err := e.timer.ScheduleAfter(delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.session == nil || e.session.Generation != gen {
			slog.Debug("Engine: dropping stale timer effect", "generation", gen)
			return
		}
		fn()
	}); err != nil {
		slog.Error("Engine: failed to schedule step", "error", err)
	}
}

// renderMessagesLocked filters message specs by webform version and resolves
// placeholders.
func (e *Engine) renderMessagesLocked(specs []MessageSpec) []string {
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		if len(spec.Versions) > 0 && !containsVersion(spec.Versions, e.session.Version) {
			continue
		}
		out = append(out, e.interpolateLocked(spec.Text))
	}
	return out
}

func (e *Engine) interpolateLocked(text string) string {
	var scheduledDate, scheduledClock string
	if e.scheduled != nil {
		scheduledDate = e.scheduled.LongDate
		scheduledClock = e.scheduled.Clock
	}
	return strings.NewReplacer(
		"{fName}", e.profile.FirstName,
		"{address}", e.profile.Address,
		"{dateTime}", e.profile.Appointment,
		"{scheduledDate}", scheduledDate,
		"{scheduledTime}", scheduledClock,
	).Replace(text)
}

// appendBotLocked appends a bot message. Once the lead has opted out this is
// a no-op for the remainder of the session.
func (e *Engine) appendBotLocked(text string, options []string) {
	if e.session.HasOptedOut {
		slog.Debug("Engine: bot message suppressed after opt-out", "session", e.session.ID)
		return
	}
	e.session.Messages = append(e.session.Messages, models.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    models.SenderBot,
		Timestamp: time.Now(),
		Options:   options,
	})
}

func (e *Engine) appendUserLocked(text string) {
	e.session.Messages = append(e.session.Messages, models.Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    models.SenderUser,
		Timestamp: time.Now(),
	})
}

// recordTranscriptLocked hands the finished session's log to the recorder.
func (e *Engine) recordTranscriptLocked() {
	if e.recorder == nil || e.session == nil || len(e.session.Messages) == 0 {
		return
	}
	msgs := make([]models.Message, len(e.session.Messages))
	copy(msgs, e.session.Messages)
	t := models.Transcript{
		ID:           uuid.NewString(),
		Workflow:     e.session.Workflow,
		FinalState:   e.session.State,
		MessageCount: len(msgs),
		Messages:     msgs,
		StartedAt:    e.session.CreatedAt,
		EndedAt:      time.Now(),
	}
	if err := e.recorder.SaveTranscript(t); err != nil {
		slog.Error("Engine: failed to record transcript", "error", err, "transcript", t.ID)
	}
}

func matchesConfirmVisitIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range confirmVisitIntentPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func containsVersion(versions []models.WebformVersion, v models.WebformVersion) bool {
	for _, candidate := range versions {
		if candidate == v {
			return true
		}
	}
	return false
}
