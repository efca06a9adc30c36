// Package flow implements the conversation orchestration engine: data-driven
// workflow definitions, the session engine that interprets them, and the
// timer abstraction used for simulated delays.
package flow

import (
	"embed"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"leadsim/internal/models"
)

//go:embed workflows/*.yaml
var workflowFS embed.FS

// workflowFiles lists the embedded definition tables loaded at startup.
var workflowFiles = []string{
	"workflows/webform.yaml",
	"workflows/product_question.yaml",
	"workflows/confirm_visit.yaml",
}

// MessageSpec is one bot message template in a transition. Text may reference
// the placeholders {fName}, {address}, {dateTime}, {scheduledDate} and
// {scheduledTime}, resolved at emission time. Versions restricts the message
// to specific webform versions; empty means all.
type MessageSpec struct {
	Text     string                  `yaml:"text"`
	Versions []models.WebformVersion `yaml:"versions,omitempty"`
}

// Transition is one row of a workflow's transition table, keyed by
// (from, option). An empty option marks an automatic transition taken on
// entering the state; "*" matches any option.
type Transition struct {
	From   models.ConversationState `yaml:"from"`
	Option string                   `yaml:"option,omitempty"`
	// WhenFollowup guards the row on the session's after-24h-followup flag;
	// nil matches either value.
	WhenFollowup *bool                    `yaml:"when_followup,omitempty"`
	To           models.ConversationState `yaml:"to,omitempty"`
	Messages     []MessageSpec            `yaml:"messages,omitempty"`
	// Options is the option set attached to the final emitted message.
	Options []string `yaml:"options,omitempty"`
	// Pass24h runs the simulated 24-hour-passage sequence after the messages.
	Pass24h bool `yaml:"pass_24h,omitempty"`
	// ConsumeFollowup clears the after-24h-followup flag on application.
	ConsumeFollowup bool `yaml:"consume_followup,omitempty"`
}

// FollowupSpec is the content of the 24h-pass sequence: the messages appended
// after the simulated day elapses (the fixed disclosure is re-appended by the
// engine first) and the option set attached to the final one.
type FollowupSpec struct {
	Messages []MessageSpec `yaml:"messages"`
	Options  []string      `yaml:"options"`
}

// Definition is one workflow's complete transition table.
type Definition struct {
	Workflow      models.Workflow          `yaml:"workflow"`
	InitialState  models.ConversationState `yaml:"initial_state"`
	FollowupState models.ConversationState `yaml:"followup_state,omitempty"`
	Followup      FollowupSpec             `yaml:"followup,omitempty"`
	Transitions   []Transition             `yaml:"transitions"`
}

// Lookup finds the transition for (state, option) given the current
// after-24h-followup flag. Exact option rows win over wildcard rows, and
// flag-guarded rows win over unguarded ones. Returns nil when no row matches;
// callers treat that as a silent no-op.
func (d *Definition) Lookup(state models.ConversationState, option string, followup bool) *Transition {
	var best *Transition
	bestScore := -1
	for i := range d.Transitions {
		tr := &d.Transitions[i]
		if tr.From != state {
			continue
		}
		if tr.Option != option && tr.Option != "*" {
			continue
		}
		if tr.WhenFollowup != nil && *tr.WhenFollowup != followup {
			continue
		}
		score := 0
		if tr.Option == option {
			score += 2
		}
		if tr.WhenFollowup != nil {
			score++
		}
		if score > bestScore {
			best = tr
			bestScore = score
		}
	}
	return best
}

// validate checks structural invariants of a loaded definition.
func (d *Definition) validate() error {
	if !models.IsValidWorkflow(d.Workflow) {
		return fmt.Errorf("%w: %q", models.ErrInvalidWorkflow, d.Workflow)
	}
	if d.InitialState == "" {
		return fmt.Errorf("workflow %s: missing initial_state", d.Workflow)
	}
	if len(d.Transitions) == 0 {
		return fmt.Errorf("workflow %s: no transitions", d.Workflow)
	}
	for i, tr := range d.Transitions {
		if tr.From == "" {
			return fmt.Errorf("workflow %s: transition %d missing from state", d.Workflow, i)
		}
		if tr.To == "" && len(tr.Messages) == 0 && !tr.Pass24h {
			return fmt.Errorf("workflow %s: transition %d from %s has no effect", d.Workflow, i, tr.From)
		}
	}
	return nil
}

// LoadDefinitions parses the embedded workflow tables.
func LoadDefinitions() (map[models.Workflow]*Definition, error) {
	defs := make(map[models.Workflow]*Definition, len(workflowFiles))
	for _, name := range workflowFiles {
		raw, err := workflowFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read workflow definition %s: %w", name, err)
		}
		var def Definition
		if err := yaml.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("parse workflow definition %s: %w", name, err)
		}
		if err := def.validate(); err != nil {
			return nil, fmt.Errorf("invalid workflow definition %s: %w", name, err)
		}
		if _, dup := defs[def.Workflow]; dup {
			return nil, fmt.Errorf("duplicate workflow definition %s", def.Workflow)
		}
		defs[def.Workflow] = &def
		slog.Debug("flow.LoadDefinitions: loaded workflow", "workflow", def.Workflow, "transitions", len(def.Transitions))
	}
	return defs, nil
}
