package intent

import (
	"context"
	"log/slog"
	"strings"

	"leadsim/internal/genai"
	"leadsim/internal/metrics"
	"leadsim/internal/models"
)

// Classification request tuning. Output is a single category label, so the
// completion is kept short and near-deterministic.
const (
	classifyTemperature = 0.1
	classifyMaxTokens   = 30
)

// systemPrompt is the fixed instruction given to the external classifier.
const systemPrompt = `You classify a lead's SMS reply into exactly one category. Reply with only the category name, nothing else.

Categories:
- Yes: the lead agrees or accepts. Examples: "sure thing", "sounds good", "ok call me"
- Call at a different time: the lead proposes or implies another time. Examples: "can you call tomorrow", "after 3pm works", "maybe Friday"
- No: the lead declines but does not opt out. Examples: "no thanks", "can't talk now"
- Do not contact: the lead wants no further contact. Examples: "stop calling me", "unsubscribe", "wrong number"
- No response / 24 hours later: the reply is empty or meaningless filler.
- Unknown message: anything that fits none of the above. Examples: "what's your warranty policy?", "who is this?"`

// synonymTable maps lower-cased classifier outputs that are not canonical
// labels onto categories. Ordered longest-first so substring containment
// checks prefer the most specific key.
var synonymTable = []struct {
	key      string
	category models.ResponseCategory
}{
	{"call at a different time", models.CategoryCallAtDifferentTime},
	{"no response / 24 hours later", models.CategoryNoResponse24h},
	{"24 hours later", models.CategoryNoResponse24h},
	{"do not contact", models.CategoryDoNotContact},
	{"unknown message", models.CategoryUnknownMessage},
	{"different time", models.CategoryCallAtDifferentTime},
	{"no response", models.CategoryNoResponse24h},
	{"unknown", models.CategoryUnknownMessage},
	{"dnc", models.CategoryDoNotContact},
	{"yes", models.CategoryYes},
	{"no", models.CategoryNo},
}

// CompletionClient is the slice of the genai client the classifier needs.
type CompletionClient interface {
	Complete(ctx context.Context, req genai.CompletionRequest) (string, error)
}

// Classifier routes free text through the external classifier when AI is
// enabled, falling back to the rule-based categorizer on any failure. It
// never returns an error: every failure degrades to a deterministic path.
type Classifier struct {
	ai    CompletionClient
	rules *RuleBased
}

// NewClassifier creates a classifier adapter. ai may be nil, in which case
// every call uses the rule-based categorizer.
func NewClassifier(ai CompletionClient) *Classifier {
	return &Classifier{ai: ai, rules: NewRuleBased()}
}

// Classify maps text to a response category per the adapter contract:
// near-empty input short-circuits to CategoryNoResponse24h, AI-disabled input
// goes straight to rules, and invalid or failed classifier output falls back
// to rules without retry.
func (c *Classifier) Classify(ctx context.Context, text string, aiEnabled bool) models.ResponseCategory {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 2 {
		slog.Debug("Classifier.Classify: short-circuit on near-empty input", "length", len(trimmed))
		metrics.ClassifierRequests.WithLabelValues(metrics.OutcomeShortCircuit).Inc()
		return models.CategoryNoResponse24h
	}

	if !aiEnabled || c.ai == nil {
		cat := c.rules.Categorize(trimmed)
		slog.Debug("Classifier.Classify: rule-based path", "category", cat)
		metrics.ClassifierRequests.WithLabelValues(metrics.OutcomeRules).Inc()
		return cat
	}

	raw, err := c.ai.Complete(ctx, genai.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserMessage:  trimmed,
		Temperature:  classifyTemperature,
		MaxTokens:    classifyMaxTokens,
	})
	if err != nil {
		slog.Error("Classifier.Classify: external classifier failed, using fallback", "error", err)
		metrics.ClassifierRequests.WithLabelValues(metrics.OutcomeFallback).Inc()
		return c.rules.Categorize(trimmed)
	}

	if cat, ok := parseCategory(raw); ok {
		slog.Debug("Classifier.Classify: external classifier result", "category", cat)
		metrics.ClassifierRequests.WithLabelValues(metrics.OutcomeAI).Inc()
		return cat
	}

	slog.Warn("Classifier.Classify: unrecognized classifier output, using fallback", "raw", raw)
	metrics.ClassifierRequests.WithLabelValues(metrics.OutcomeFallback).Inc()
	return c.rules.Categorize(trimmed)
}

// parseCategory normalizes raw classifier output and resolves it to one of
// the six canonical categories: exact label match first, then case-insensitive
// synonym match, then substring containment in either direction.
func parseCategory(raw string) (models.ResponseCategory, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, `"'`+"`")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return "", false
	}

	if models.IsValidCategory(models.ResponseCategory(cleaned)) {
		return models.ResponseCategory(cleaned), true
	}

	lower := strings.ToLower(cleaned)
	for _, syn := range synonymTable {
		if lower == syn.key {
			return syn.category, true
		}
	}
	for _, syn := range synonymTable {
		if strings.Contains(lower, syn.key) || strings.Contains(syn.key, lower) {
			return syn.category, true
		}
	}
	return "", false
}
