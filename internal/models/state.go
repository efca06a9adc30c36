// Package models defines session and conversation-state structures for LeadSim flows.
package models

import "time"

// ConversationState is the node of the active workflow's state machine the
// session currently occupies.
type ConversationState string

// Generic states shared by the webform and product-question workflows.
const (
	StateInitial            ConversationState = "initial"
	StateCalling            ConversationState = "calling"
	StateCallAccepted       ConversationState = "call_accepted"
	StateCallDeclined       ConversationState = "call_declined"
	StateWaitingForResponse ConversationState = "waiting_for_response"
	StateSchedulingTime     ConversationState = "scheduling_time"
	StateTimeScheduled      ConversationState = "time_scheduled"
	StateAskingBetterTime   ConversationState = "asking_better_time"
	StateAskingAfterCancel  ConversationState = "asking_after_cancel"
	StateFollowupNextDay    ConversationState = "followup_next_day"
	StateUnknown            ConversationState = "unknown"
	StateEnded              ConversationState = "ended"
)

// Confirm-visit workflow states.
const (
	StateConfirmVisitInitial            ConversationState = "confirm_visit_initial"
	StateConfirmVisitWaiting            ConversationState = "confirm_visit_waiting"
	StateConfirmVisitConfirmed          ConversationState = "confirm_visit_confirmed"
	StateConfirmVisitRescheduleQuestion ConversationState = "confirm_visit_reschedule_question"
	StateConfirmVisitRescheduleWaiting  ConversationState = "confirm_visit_reschedule_waiting"
	StateConfirmVisitSelectingTime      ConversationState = "confirm_visit_reschedule_selecting_time"
	StateConfirmVisitCancelled          ConversationState = "confirm_visit_cancelled"
	StateConfirmVisitDNC                ConversationState = "confirm_visit_dnc"
)

// Session is the aggregate root of one simulated conversation. Exactly one
// live Session exists per engine; a reset replaces it wholesale.
type Session struct {
	ID                    string             `json:"id"`
	Workflow              Workflow           `json:"workflow"`
	Version               WebformVersion     `json:"version"`
	State                 ConversationState  `json:"state"`
	Messages              []Message          `json:"messages"`
	ScheduledAt           *time.Time         `json:"scheduled_at,omitempty"`
	HasOptedOut           bool               `json:"has_opted_out"`
	IsAfter24HourFollowup bool               `json:"is_after_24h_followup"`
	AIEnabled             bool               `json:"ai_enabled"`
	Generation            uint64             `json:"-"`
	CreatedAt             time.Time          `json:"created_at"`
}

// StatusSnapshot is the read-only view the UI layer consumes to highlight the
// active diagram node.
type StatusSnapshot struct {
	Workflow    Workflow          `json:"workflow"`
	Version     WebformVersion    `json:"version"`
	State       ConversationState `json:"state"`
	ScheduledAt *time.Time        `json:"scheduled_at,omitempty"`
	HasOptedOut bool              `json:"has_opted_out"`
	AIEnabled   bool              `json:"ai_enabled"`
}

// Transcript is a finished session's message log, recorded for demo review
// when the session is reset or its workflow changes. Transcripts are an
// append-only audit trail; sessions are never restored from them.
type Transcript struct {
	ID           string            `json:"id"`
	Workflow     Workflow          `json:"workflow"`
	FinalState   ConversationState `json:"final_state"`
	MessageCount int               `json:"message_count"`
	Messages     []Message         `json:"messages"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      time.Time         `json:"ended_at"`
}
