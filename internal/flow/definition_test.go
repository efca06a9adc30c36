package flow

import (
	"testing"

	"leadsim/internal/models"
)

func TestLoadDefinitions(t *testing.T) {
	defs, err := LoadDefinitions()
	if err != nil {
		t.Fatalf("LoadDefinitions failed: %v", err)
	}

	for _, w := range []models.Workflow{models.WorkflowWebform, models.WorkflowProductQuestion, models.WorkflowConfirmVisit} {
		if defs[w] == nil {
			t.Errorf("missing definition for workflow %s", w)
		}
	}

	if defs[models.WorkflowWebform].InitialState != models.StateInitial {
		t.Errorf("webform initial state = %s", defs[models.WorkflowWebform].InitialState)
	}
	if defs[models.WorkflowConfirmVisit].InitialState != models.StateConfirmVisitInitial {
		t.Errorf("confirm_visit initial state = %s", defs[models.WorkflowConfirmVisit].InitialState)
	}
}

func TestDefinition_SixOptionQuestion(t *testing.T) {
	defs, err := LoadDefinitions()
	if err != nil {
		t.Fatalf("LoadDefinitions failed: %v", err)
	}

	tr := defs[models.WorkflowWebform].Lookup(models.StateCallDeclined, "", false)
	if tr == nil {
		t.Fatal("expected auto transition out of call_declined")
	}
	if tr.To != models.StateWaitingForResponse {
		t.Errorf("call_declined auto transition goes to %s", tr.To)
	}
	if len(tr.Options) != 6 {
		t.Fatalf("expected 6 options, got %d: %v", len(tr.Options), tr.Options)
	}
	for i, cat := range models.Categories() {
		if tr.Options[i] != string(cat) {
			t.Errorf("option %d = %q, want %q", i, tr.Options[i], cat)
		}
	}
}

func TestDefinition_PickerCancelReturnsToRescheduleWaiting(t *testing.T) {
	defs, err := LoadDefinitions()
	if err != nil {
		t.Fatalf("LoadDefinitions failed: %v", err)
	}

	tr := defs[models.WorkflowConfirmVisit].Lookup(models.StateConfirmVisitSelectingTime, "cancel", false)
	if tr == nil {
		t.Fatal("expected cancel transition from reschedule picker")
	}
	if tr.To != models.StateConfirmVisitRescheduleWaiting {
		t.Errorf("picker cancel goes to %s, want reschedule_waiting", tr.To)
	}
	if len(tr.Messages) == 0 || len(tr.Options) == 0 {
		t.Error("picker cancel should re-ask the reschedule question with options")
	}
}

func TestDefinition_LookupPrecedence(t *testing.T) {
	yes, no := true, false
	def := &Definition{
		Workflow:     models.WorkflowWebform,
		InitialState: models.StateInitial,
		Transitions: []Transition{
			{From: "s", Option: "*", To: "wildcard"},
			{From: "s", Option: "x", To: "plain"},
			{From: "s", Option: "x", WhenFollowup: &yes, To: "guarded"},
			{From: "s", Option: "y", WhenFollowup: &no, To: "only_no"},
		},
	}

	if tr := def.Lookup("s", "x", true); tr == nil || tr.To != "guarded" {
		t.Errorf("guarded exact row should win, got %+v", tr)
	}
	if tr := def.Lookup("s", "x", false); tr == nil || tr.To != "plain" {
		t.Errorf("unguarded exact row should win when flag mismatches, got %+v", tr)
	}
	if tr := def.Lookup("s", "z", false); tr == nil || tr.To != "wildcard" {
		t.Errorf("wildcard should catch unmatched options, got %+v", tr)
	}
	if tr := def.Lookup("s", "y", true); tr == nil || tr.To != "wildcard" {
		t.Errorf("flag-mismatched row should fall through to wildcard, got %+v", tr)
	}
	if tr := def.Lookup("other", "x", false); tr != nil {
		t.Errorf("unknown state should return nil, got %+v", tr)
	}
}

func TestDefinition_NoFollowupInConfirmVisit(t *testing.T) {
	defs, err := LoadDefinitions()
	if err != nil {
		t.Fatalf("LoadDefinitions failed: %v", err)
	}
	for _, tr := range defs[models.WorkflowConfirmVisit].Transitions {
		if tr.Pass24h {
			t.Errorf("confirm_visit must not use the 24h-pass: %+v", tr)
		}
	}
}
