// Package intent maps free-text lead replies onto the six canonical response
// categories, either via the external classifier with a deterministic
// fallback, or via ordered pattern rules alone.
package intent

import (
	"regexp"
	"strings"

	"leadsim/internal/models"
)

// MatchKind selects how a rule's pattern is tested against input text.
type MatchKind string

const (
	// MatchSubstring tests case-insensitive substring containment.
	MatchSubstring MatchKind = "substring"
	// MatchRegex tests a compiled regular expression.
	MatchRegex MatchKind = "regex"
)

// Rule is one typed match rule. Rules are evaluated in slice order; the first
// match wins.
type Rule struct {
	Kind     MatchKind
	Pattern  string
	Category models.ResponseCategory

	re *regexp.Regexp
}

// Matches reports whether the rule matches the given lower-cased text.
func (r *Rule) Matches(lower string) bool {
	switch r.Kind {
	case MatchSubstring:
		return strings.Contains(lower, r.Pattern)
	case MatchRegex:
		return r.re.MatchString(lower)
	default:
		return false
	}
}

func substr(pattern string, cat models.ResponseCategory) Rule {
	return Rule{Kind: MatchSubstring, Pattern: pattern, Category: cat}
}

func regex(pattern string, cat models.ResponseCategory) Rule {
	return Rule{Kind: MatchRegex, Pattern: pattern, Category: cat, re: regexp.MustCompile(pattern)}
}

// defaultRules is the fixed priority-ordered rule set: opt-out phrases first,
// then scheduling phrases, then affirmatives, then negatives.
func defaultRules() []Rule {
	return []Rule{
		// 1. Do not contact.
		substr("stop calling", models.CategoryDoNotContact),
		substr("stop texting", models.CategoryDoNotContact),
		substr("stop contacting", models.CategoryDoNotContact),
		substr("unsubscribe", models.CategoryDoNotContact),
		substr("do not contact", models.CategoryDoNotContact),
		substr("don't contact", models.CategoryDoNotContact),
		substr("leave me alone", models.CategoryDoNotContact),
		substr("remove me", models.CategoryDoNotContact),
		substr("take me off", models.CategoryDoNotContact),
		substr("not interested", models.CategoryDoNotContact),
		substr("wrong number", models.CategoryDoNotContact),
		regex(`\bdnc\b`, models.CategoryDoNotContact),
		regex(`\bopt\s*out\b`, models.CategoryDoNotContact),

		// 2. Call at a different time.
		regex(`\b\d{1,2}:\d{2}\b`, models.CategoryCallAtDifferentTime),
		regex(`\b\d{1,2}\s*(am|pm)\b`, models.CategoryCallAtDifferentTime),
		regex(`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`, models.CategoryCallAtDifferentTime),
		substr("different time", models.CategoryCallAtDifferentTime),
		substr("another time", models.CategoryCallAtDifferentTime),
		substr("better time", models.CategoryCallAtDifferentTime),
		substr("call me later", models.CategoryCallAtDifferentTime),
		substr("call back", models.CategoryCallAtDifferentTime),
		substr("call me back", models.CategoryCallAtDifferentTime),
		substr("tomorrow", models.CategoryCallAtDifferentTime),
		substr("tonight", models.CategoryCallAtDifferentTime),
		substr("this afternoon", models.CategoryCallAtDifferentTime),
		substr("this evening", models.CategoryCallAtDifferentTime),
		substr("next week", models.CategoryCallAtDifferentTime),
		substr("later", models.CategoryCallAtDifferentTime),
		substr("busy right now", models.CategoryCallAtDifferentTime),
		substr("schedule", models.CategoryCallAtDifferentTime),
		substr("reschedule", models.CategoryCallAtDifferentTime),

		// 3. Yes.
		regex(`\byes\b`, models.CategoryYes),
		regex(`\byeah\b`, models.CategoryYes),
		regex(`\byep\b`, models.CategoryYes),
		regex(`\byup\b`, models.CategoryYes),
		regex(`\bsure\b`, models.CategoryYes),
		regex(`\bok(ay)?\b`, models.CategoryYes),
		substr("sounds good", models.CategoryYes),
		substr("that works", models.CategoryYes),
		substr("of course", models.CategoryYes),
		substr("absolutely", models.CategoryYes),
		substr("definitely", models.CategoryYes),
		substr("please do", models.CategoryYes),
		substr("go ahead", models.CategoryYes),

		// 4. No.
		regex(`\bno\b`, models.CategoryNo),
		regex(`\bnope\b`, models.CategoryNo),
		regex(`\bnah\b`, models.CategoryNo),
		substr("no thanks", models.CategoryNo),
		substr("no thank you", models.CategoryNo),
		substr("can't talk", models.CategoryNo),
		substr("cannot talk", models.CategoryNo),
		substr("don't call", models.CategoryNo),
	}
}

// RuleBased is the deterministic text-to-intent classifier. It never returns
// CategoryNoResponse24h: empty and near-empty input is short-circuited by the
// adapter before rules run.
type RuleBased struct {
	rules []Rule
}

// NewRuleBased creates a rule-based categorizer with the default rule set.
func NewRuleBased() *RuleBased {
	return &RuleBased{rules: defaultRules()}
}

// Categorize maps text to the first matching rule's category, or
// CategoryUnknownMessage when nothing matches.
func (rb *RuleBased) Categorize(text string) models.ResponseCategory {
	lower := strings.ToLower(strings.TrimSpace(text))
	for i := range rb.rules {
		if rb.rules[i].Matches(lower) {
			return rb.rules[i].Category
		}
	}
	return models.CategoryUnknownMessage
}
