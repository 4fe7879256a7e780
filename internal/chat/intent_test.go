package chat

import (
	"testing"
)

func TestRegexpDetectorMatch(t *testing.T) {
	d := NewRegexpDetector()

	cases := []struct {
		text string
		want bool
	}{
		{"I want to talk to a human please", true},
		{"can I speak with an agent?", true},
		{"NEED A PERSON NOW", true},
		{"connect me to support", true},
		{"is there a real person there", true},
		{"customer support please", true},
		{"do you have live chat", true},
		{"I'd like a live agent", true},
		{"chat with someone", true},

		{"hello there", false},
		{"how do I reset my password?", false},
		{"my order arrived damaged", false},
		{"what are your opening hours", false},

		// Known false positive of the loose heuristic.
		{"I don't need a human", true},
	}

	for _, tc := range cases {
		if got := d.Match(tc.text); got != tc.want {
			t.Errorf("Match(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
