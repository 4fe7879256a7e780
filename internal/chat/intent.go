package chat

import (
	"regexp"
)

// HandoffDetector decides whether a visitor message is asking for a human.
// It is a pluggable predicate so the matching strategy can be replaced
// without touching the orchestration pipeline.
type HandoffDetector interface {
	Match(text string) bool
}

// RegexpDetector is the default handoff heuristic: case-insensitive phrase
// matching for requests to reach a person. It is intentionally loose and has
// known false positives ("I don't need a human" matches); tightening the
// wording is a product decision, not a code one.
type RegexpDetector struct {
	patterns []*regexp.Regexp
}

var defaultHandoffPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(talk|speak|chat|connect|want|need)\b.{0,60}\b(human|agent|person|support|representative|someone)\b`),
	regexp.MustCompile(`(?i)\b(customer\s+support|real\s+person|live\s+(chat|agent|support))\b`),
}

// NewRegexpDetector creates the default detector.
func NewRegexpDetector() *RegexpDetector {
	return &RegexpDetector{patterns: defaultHandoffPatterns}
}

// Match reports whether text requests a human handoff.
func (d *RegexpDetector) Match(text string) bool {
	for _, p := range d.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
