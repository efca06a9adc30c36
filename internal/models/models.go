// Package models defines the core data structures for LeadSim.
//
// It includes the message log entry, workflow and response-category enums,
// and the API response envelope shared across modules.
package models

import (
	"errors"
	"time"
)

// Sender identifies who authored a message in the conversation log.
type Sender string

const (
	// SenderBot marks messages authored by the simulated texting assistant.
	SenderBot Sender = "bot"
	// SenderUser marks messages authored by the lead.
	SenderUser Sender = "user"
)

// Message is one entry in the ordered conversation log. Entries are
// append-only; the dialogue editor may rewrite Text/Options of an existing
// entry but never reorders or removes entries.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Options   []string  `json:"options,omitempty"`
}

// Workflow identifies one of the three top-level conversation scenarios.
type Workflow string

const (
	// WorkflowWebform follows up on a submitted interest webform.
	WorkflowWebform Workflow = "webform"
	// WorkflowProductQuestion follows up on a product question.
	WorkflowProductQuestion Workflow = "product_question"
	// WorkflowConfirmVisit confirms or reschedules an existing appointment.
	WorkflowConfirmVisit Workflow = "confirm_visit"
)

// IsValidWorkflow checks if the given workflow is supported.
func IsValidWorkflow(w Workflow) bool {
	switch w {
	case WorkflowWebform, WorkflowProductQuestion, WorkflowConfirmVisit:
		return true
	default:
		return false
	}
}

// WebformVersion selects the A/B variant of the webform workflow.
type WebformVersion string

const (
	// WebformVersionA sends the interest-form intro message before calling.
	WebformVersionA WebformVersion = "A"
	// WebformVersionB skips the intro and goes straight to the call.
	WebformVersionB WebformVersion = "B"
)

// IsValidWebformVersion checks if the given version is supported.
func IsValidWebformVersion(v WebformVersion) bool {
	return v == WebformVersionA || v == WebformVersionB
}

// ResponseCategory is one of the six canonical intents a free-text reply is
// classified into. The string value doubles as the option label the intent
// maps to when dispatched into the active workflow table.
type ResponseCategory string

const (
	CategoryYes                 ResponseCategory = "Yes"
	CategoryCallAtDifferentTime ResponseCategory = "Call at a different time"
	CategoryNo                  ResponseCategory = "No"
	CategoryNoResponse24h       ResponseCategory = "No response / 24 hours later"
	CategoryDoNotContact        ResponseCategory = "Do not contact"
	CategoryUnknownMessage      ResponseCategory = "Unknown message"
)

// Categories lists all response categories in canonical order.
func Categories() []ResponseCategory {
	return []ResponseCategory{
		CategoryYes,
		CategoryCallAtDifferentTime,
		CategoryNo,
		CategoryNoResponse24h,
		CategoryDoNotContact,
		CategoryUnknownMessage,
	}
}

// IsValidCategory checks if the given category is one of the six canonical intents.
func IsValidCategory(c ResponseCategory) bool {
	switch c {
	case CategoryYes, CategoryCallAtDifferentTime, CategoryNo,
		CategoryNoResponse24h, CategoryDoNotContact, CategoryUnknownMessage:
		return true
	default:
		return false
	}
}

// Error variables for better error handling and testability.
var (
	ErrInvalidWorkflow = errors.New("invalid workflow")
	ErrInvalidVersion  = errors.New("invalid webform version")
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrMessageNotFound = errors.New("message not found")
	ErrNoActiveSession = errors.New("no active session")
)

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse is the JSON envelope returned by every API endpoint.
type APIResponse struct {
	Status APIStatus   `json:"status"`
	Error  string      `json:"error,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

// Success builds an ok envelope carrying an optional result payload.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: APIStatusOK, Result: result}
}

// Error builds an error envelope carrying a user-facing message.
func Error(msg string) APIResponse {
	return APIResponse{Status: APIStatusError, Error: msg}
}
