package flow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"leadsim/internal/models"
)

// stubCategorizer returns a fixed category and records calls.
type stubCategorizer struct {
	cat      models.ResponseCategory
	calls    int
	lastText string
	lastAI   bool
}

func (s *stubCategorizer) Classify(ctx context.Context, text string, aiEnabled bool) models.ResponseCategory {
	s.calls++
	s.lastText = text
	s.lastAI = aiEnabled
	return s.cat
}

// captureTimer queues scheduled functions for manual firing, so tests can
// exercise the stale-timer guard.
type captureTimer struct {
	fns []func()
}

func (t *captureTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	t.fns = append(t.fns, fn)
	return fmt.Sprintf("t%d", len(t.fns)), nil
}

func (t *captureTimer) Cancel(id string) error { return nil }
func (t *captureTimer) Stop()                  {}

// drain fires queued functions, including ones queued by the firing itself.
func (t *captureTimer) drain() {
	for len(t.fns) > 0 {
		fns := t.fns
		t.fns = nil
		for _, fn := range fns {
			fn()
		}
	}
}

// newTestEngine builds an engine with zero delays so transitions apply
// synchronously.
func newTestEngine(t *testing.T, cat Categorizer, opts ...EngineOption) *Engine {
	t.Helper()
	if cat == nil {
		cat = &stubCategorizer{cat: models.CategoryUnknownMessage}
	}
	opts = append([]EngineOption{WithReplyDelay(0), WithPassDelay(0)}, opts...)
	e, err := NewEngine(cat, opts...)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	e.Start()
	return e
}

func botTexts(msgs []models.Message) []string {
	var out []string
	for _, m := range msgs {
		if m.Sender == models.SenderBot {
			out = append(out, m.Text)
		}
	}
	return out
}

func TestStart_DisclosureFirstThenCalling(t *testing.T) {
	e := newTestEngine(t, nil)

	msgs := e.Messages()
	if len(msgs) == 0 || msgs[0].Text != disclosureText || msgs[0].Sender != models.SenderBot {
		t.Fatalf("first message must be the disclosure, got %+v", msgs[:1])
	}

	st := e.Status()
	if st.Workflow != models.WorkflowWebform || st.Version != models.WebformVersionA {
		t.Errorf("default session should be webform A, got %+v", st)
	}
	if st.State != models.StateCalling {
		t.Errorf("session should auto-advance to calling, got %s", st.State)
	}

	texts := strings.Join(botTexts(msgs), "\n")
	if !strings.Contains(texts, "interest form") {
		t.Errorf("version A should send the interest-form intro, got %q", texts)
	}
	last := msgs[len(msgs)-1]
	if len(last.Options) != 2 || last.Options[0] != "Accept" || last.Options[1] != "Decline" {
		t.Errorf("calling message should carry Accept/Decline, got %v", last.Options)
	}
}

func TestStart_VersionBSkipsIntro(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.SelectVersion(models.WebformVersionB); err != nil {
		t.Fatalf("SelectVersion failed: %v", err)
	}

	texts := strings.Join(botTexts(e.Messages()), "\n")
	if strings.Contains(texts, "interest form") {
		t.Errorf("version B must not send the interest-form intro, got %q", texts)
	}
	if e.Status().State != models.StateCalling {
		t.Errorf("version B should still reach calling, got %s", e.Status().State)
	}
}

func TestDecline_DoNotContact_ReachesEnded(t *testing.T) {
	e := newTestEngine(t, nil)

	e.SelectOption("Decline")
	if e.Status().State != models.StateWaitingForResponse {
		t.Fatalf("decline should reach waiting_for_response, got %s", e.Status().State)
	}

	e.SelectOption("Do not contact")
	if e.Status().State != models.StateEnded {
		t.Errorf("do-not-contact should reach ended, got %s", e.Status().State)
	}
}

func TestDecline_NoNo_ReachesFollowupNextDay(t *testing.T) {
	e := newTestEngine(t, nil)

	e.SelectOption("Decline")
	e.SelectOption("No")
	if e.Status().State != models.StateAskingBetterTime {
		t.Fatalf("first No should reach asking_better_time, got %s", e.Status().State)
	}

	e.SelectOption("No")
	st := e.Status()
	if st.State != models.StateFollowupNextDay {
		t.Errorf("second No should pass 24h into followup_next_day, got %s", st.State)
	}
	if !e.session.IsAfter24HourFollowup {
		t.Error("after-24h-followup flag should be set")
	}

	// The pass re-appends the disclosure before the followup question.
	texts := botTexts(e.Messages())
	var disclosures int
	for _, text := range texts {
		if text == disclosureText {
			disclosures++
		}
	}
	if disclosures != 2 {
		t.Errorf("expected disclosure at start and after 24h-pass, got %d occurrences", disclosures)
	}
	last := e.Messages()[len(e.Messages())-1]
	if len(last.Options) != 2 || last.Options[0] != "Yes" || last.Options[1] != "No" {
		t.Errorf("followup question should carry Yes/No, got %v", last.Options)
	}
}

func TestFollowupYes_ConsumesFlagAndOpensScheduling(t *testing.T) {
	e := newTestEngine(t, nil)
	e.SelectOption("Decline")
	e.SelectOption("No response / 24 hours later")

	if e.Status().State != models.StateFollowupNextDay {
		t.Fatalf("expected followup_next_day, got %s", e.Status().State)
	}

	e.SelectOption("Yes")
	if e.Status().State != models.StateSchedulingTime {
		t.Errorf("after-24h Yes should open scheduling, got %s", e.Status().State)
	}
	if e.session.IsAfter24HourFollowup {
		t.Error("Yes branch must consume the after-24h flag")
	}
}

func TestSchedule_ConfirmAndCancel(t *testing.T) {
	e := newTestEngine(t, nil)
	e.SelectOption("Decline")
	e.SelectOption("Call at a different time")
	if e.Status().State != models.StateSchedulingTime {
		t.Fatalf("expected scheduling_time, got %s", e.Status().State)
	}

	// Invalid selection: rejected, picker stays open.
	date := time.Date(2026, time.September, 3, 0, 0, 0, 0, time.UTC)
	if err := e.ConfirmDateTime(date, 5, 5, "PM"); err == nil {
		t.Error("5:05 PM must be rejected")
	}
	if e.Status().State != models.StateSchedulingTime {
		t.Errorf("state must not change on invalid selection, got %s", e.Status().State)
	}

	// Cancel: asks whether to keep scheduling, then reopen the picker.
	e.CancelDateTime()
	if e.Status().State != models.StateAskingAfterCancel {
		t.Fatalf("cancel should reach asking_after_cancel, got %s", e.Status().State)
	}
	e.SelectOption("Yes")
	if e.Status().State != models.StateSchedulingTime {
		t.Fatalf("Yes should reopen the picker, got %s", e.Status().State)
	}

	// Valid selection: confirmed with interpolated date/time.
	if err := e.ConfirmDateTime(date, 2, 30, "PM"); err != nil {
		t.Fatalf("valid selection rejected: %v", err)
	}
	st := e.Status()
	if st.State != models.StateTimeScheduled {
		t.Errorf("expected time_scheduled, got %s", st.State)
	}
	if st.ScheduledAt == nil || st.ScheduledAt.Hour() != 14 {
		t.Errorf("scheduled time not recorded: %v", st.ScheduledAt)
	}
	msgs := e.Messages()
	last := msgs[len(msgs)-1]
	if !strings.Contains(last.Text, "Thursday, September 3, 2026") || !strings.Contains(last.Text, "2:30 PM") {
		t.Errorf("confirmation should interpolate the normalized date/time, got %q", last.Text)
	}
}

func TestStaleOptionClickIgnored(t *testing.T) {
	e := newTestEngine(t, nil)

	before := len(e.Messages())
	e.SelectOption("Yes") // not valid in calling
	if len(e.Messages()) != before {
		t.Error("invalid option must not append messages")
	}
	if e.Status().State != models.StateCalling {
		t.Errorf("invalid option must not change state, got %s", e.Status().State)
	}
}

func TestStop_OptOutSuppressesAllBotMessages(t *testing.T) {
	e := newTestEngine(t, nil)
	e.SelectOption("Decline")

	e.SubmitText(context.Background(), "stop")
	st := e.Status()
	if !st.HasOptedOut {
		t.Fatal("STOP should set the opt-out flag")
	}
	msgs := e.Messages()
	if msgs[len(msgs)-1].Text != "stop" || msgs[len(msgs)-1].Sender != models.SenderUser {
		t.Errorf("STOP should be appended as a user message, got %+v", msgs[len(msgs)-1])
	}

	botsBefore := len(botTexts(msgs))
	e.SelectOption("Yes")
	e.SubmitText(context.Background(), "actually call me")
	if got := len(botTexts(e.Messages())); got != botsBefore {
		t.Errorf("no bot message may be appended after opt-out: %d -> %d", botsBefore, got)
	}
}

func TestSubmitText_EmptyIsNoOp(t *testing.T) {
	e := newTestEngine(t, nil)
	before := len(e.Messages())
	e.SubmitText(context.Background(), "   ")
	if len(e.Messages()) != before {
		t.Error("blank submission must be rejected silently")
	}
}

func TestSubmitText_ClassifiesAndDispatches(t *testing.T) {
	cat := &stubCategorizer{cat: models.CategoryDoNotContact}
	e := newTestEngine(t, cat)
	e.SelectOption("Decline")

	e.SubmitText(context.Background(), "please stop calling me")
	if cat.calls != 1 || cat.lastText != "please stop calling me" {
		t.Fatalf("categorizer not invoked as expected: %+v", cat)
	}
	if !cat.lastAI {
		t.Error("AI flag should default to enabled")
	}
	if e.Status().State != models.StateEnded {
		t.Errorf("DoNotContact should dispatch into ended, got %s", e.Status().State)
	}

	// The raw text is the user message; the category label is not re-appended.
	for _, m := range e.Messages() {
		if m.Sender == models.SenderUser && m.Text == string(models.CategoryDoNotContact) {
			t.Error("category label must not be appended as a user message")
		}
	}
}

func TestWorkflowSwitch_PreservesLog(t *testing.T) {
	e := newTestEngine(t, nil)
	e.SelectOption("Decline")
	priorMsgs := e.Messages()

	e.SubmitText(context.Background(), "I'd like to confirm my appointment")

	st := e.Status()
	if st.Workflow != models.WorkflowConfirmVisit {
		t.Fatalf("expected switch to confirm_visit, got %s", st.Workflow)
	}
	if st.State != models.StateConfirmVisitWaiting {
		t.Errorf("expected confirm_visit_waiting after switch, got %s", st.State)
	}

	msgs := e.Messages()
	if len(msgs) <= len(priorMsgs) {
		t.Fatal("switch should append, never truncate")
	}
	for i, prior := range priorMsgs {
		if msgs[i].ID != prior.ID || msgs[i].Text != prior.Text {
			t.Errorf("prior message %d modified by switch", i)
		}
	}
	if msgs[len(priorMsgs)].Text != "I'd like to confirm my appointment" {
		t.Errorf("user text should be logged before the switch prompt, got %q", msgs[len(priorMsgs)].Text)
	}
}

func TestConfirmVisit_RoundTrip(t *testing.T) {
	e := newTestEngine(t, nil)
	if err := e.SelectWorkflow(models.WorkflowConfirmVisit, ""); err != nil {
		t.Fatalf("SelectWorkflow failed: %v", err)
	}
	if e.Status().State != models.StateConfirmVisitWaiting {
		t.Fatalf("expected confirm_visit_waiting, got %s", e.Status().State)
	}

	e.SelectOption("No")
	if e.Status().State != models.StateConfirmVisitRescheduleWaiting {
		t.Fatalf("No should reach reschedule_waiting, got %s", e.Status().State)
	}

	e.SelectOption("Yes")
	if e.Status().State != models.StateConfirmVisitSelectingTime {
		t.Fatalf("Yes should open the reschedule picker, got %s", e.Status().State)
	}

	// Cancelling the picker re-asks the reschedule question.
	e.CancelDateTime()
	if e.Status().State != models.StateConfirmVisitRescheduleWaiting {
		t.Fatalf("picker cancel should return to reschedule_waiting, got %s", e.Status().State)
	}
	e.SelectOption("Yes")

	date := time.Date(2026, time.September, 4, 0, 0, 0, 0, time.UTC)
	if err := e.ConfirmDateTime(date, 11, 0, "AM"); err != nil {
		t.Fatalf("valid selection rejected: %v", err)
	}
	if e.Status().State != models.StateConfirmVisitConfirmed {
		t.Errorf("expected confirm_visit_confirmed, got %s", e.Status().State)
	}
	msgs := e.Messages()
	last := msgs[len(msgs)-1]
	if !strings.Contains(last.Text, "Friday, September 4, 2026") || !strings.Contains(last.Text, "11:00 AM") {
		t.Errorf("confirmation should carry the normalized date/time, got %q", last.Text)
	}
}

func TestReset_ClearsLogEntirely(t *testing.T) {
	e := newTestEngine(t, nil)
	e.SelectOption("Decline")
	if len(e.Messages()) == 0 {
		t.Fatal("expected messages before reset")
	}

	e.Reset()
	msgs := e.Messages()
	if len(msgs) == 0 {
		t.Fatal("fresh session should restart the opening sequence")
	}
	if msgs[0].Text != disclosureText {
		t.Errorf("fresh log must begin with the disclosure, got %q", msgs[0].Text)
	}
	if e.Status().State != models.StateCalling {
		t.Errorf("fresh webform session should be calling, got %s", e.Status().State)
	}
}

func TestReset_DropsPendingTimerEffects(t *testing.T) {
	timer := &captureTimer{}
	cat := &stubCategorizer{cat: models.CategoryUnknownMessage}
	e, err := NewEngine(cat, WithTimer(timer), WithReplyDelay(50*time.Millisecond), WithPassDelay(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	e.Start()
	timer.drain() // settle the opening sequence

	e.SelectOption("Decline") // schedules the declined transition
	e.Reset()
	timer.drain() // old timer fires against the new session

	// The stale decline must not have leaked into the fresh session.
	st := e.Status()
	if st.State != models.StateCalling {
		t.Errorf("stale timer effect applied to new session: state %s", st.State)
	}
	for _, m := range e.Messages() {
		if m.Sender == models.SenderUser {
			t.Errorf("fresh session log should have no user messages, got %q", m.Text)
		}
	}
}

func TestToggleAI_ResetsSession(t *testing.T) {
	e := newTestEngine(t, nil)
	e.SelectOption("Decline")

	if got := e.ToggleAI(); got {
		t.Error("toggle from default-on should disable AI")
	}
	st := e.Status()
	if st.AIEnabled {
		t.Error("session should reflect disabled AI")
	}
	if st.State != models.StateCalling {
		t.Errorf("AI toggle should reset to a fresh session, got %s", st.State)
	}
}

func TestEditMessage_RewritesInPlace(t *testing.T) {
	e := newTestEngine(t, nil)
	msgs := e.Messages()
	target := msgs[len(msgs)-1]

	if err := e.EditMessage(target.ID, "edited copy", []string{"Accept"}); err != nil {
		t.Fatalf("EditMessage failed: %v", err)
	}

	after := e.Messages()
	if len(after) != len(msgs) {
		t.Fatal("edit must not add or remove entries")
	}
	last := after[len(after)-1]
	if last.ID != target.ID || last.Text != "edited copy" || len(last.Options) != 1 {
		t.Errorf("edit not applied in place: %+v", last)
	}

	if err := e.EditMessage("nope", "x", nil); err != models.ErrMessageNotFound {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
	if err := e.EditMessage(target.ID, "  ", nil); err != models.ErrEmptyText {
		t.Errorf("expected ErrEmptyText for blank text, got %v", err)
	}
}

func TestRecorder_ReceivesTranscriptOnReset(t *testing.T) {
	rec := &stubRecorder{}
	e := newTestEngine(t, nil, WithRecorder(rec))
	e.SelectOption("Decline")
	e.Reset()

	if len(rec.saved) != 1 {
		t.Fatalf("expected one transcript, got %d", len(rec.saved))
	}
	tr := rec.saved[0]
	if tr.Workflow != models.WorkflowWebform || tr.MessageCount == 0 || tr.MessageCount != len(tr.Messages) {
		t.Errorf("unexpected transcript: %+v", tr)
	}
	if tr.FinalState != models.StateWaitingForResponse {
		t.Errorf("transcript final state = %s", tr.FinalState)
	}
}

type stubRecorder struct {
	saved []models.Transcript
}

func (s *stubRecorder) SaveTranscript(t models.Transcript) error {
	s.saved = append(s.saved, t)
	return nil
}

func TestEndCall_LeavesCallAccepted(t *testing.T) {
	e := newTestEngine(t, nil)
	e.SelectOption("Accept")
	if e.Status().State != models.StateCallAccepted {
		t.Fatalf("expected call_accepted, got %s", e.Status().State)
	}

	e.EndCall()
	if e.Status().State != models.StateCallAccepted {
		t.Errorf("ending the call must leave call_accepted, got %s", e.Status().State)
	}
}
