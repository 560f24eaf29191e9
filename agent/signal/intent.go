package signal

import (
	"strings"
)

// Intent is the coarse class of what the caller wants from this turn.
type Intent string

const (
	IntentNone            Intent = "none"
	IntentQuestion        Intent = "question"
	IntentRequestNextStep Intent = "request_next_step"
	IntentFrustration     Intent = "frustration"
	IntentEndCall         Intent = "end_call"
)

type intentRule struct {
	intent Intent
	rule   rule
}

// intentRules is ordered by priority; the first row that matches wins.
var intentRules = []intentRule{
	{IntentEndCall, rule{pattern: re(`\b(?:bye|goodbye|good bye|that'?s all|that is all|hang up|gotta go|got to go|have to go|talk (?:to you )?later|end (?:the )?call|not interested)\b`)}},
	{IntentFrustration, rule{pattern: re(`\b(?:frustrat\w*|annoy\w*|useless|ridiculous|confus\w*|stuck|waste of time|not working|doesn'?t work|fed up|ugh)\b`)}},
	{IntentRequestNextStep, rule{pattern: re(`\b(?:book|schedule|set up|arrange)\s+(?:a\s+|an\s+)?(?:meeting|call|demo|consultation)\b|\b(?:talk|speak)\s+(?:to|with)\s+(?:sales|someone|somebody|a person|a human|your team|a rep)\b|\bsomeone\s+(?:to\s+)?help\b|\bmeet\s+with\s+(?:your|the)\s+team\b|\bnext steps?\b`)}},
	{IntentQuestion, rule{pattern: re(`\?\s*$|^(?:how|what|when|where|why|which|who|can|could|does|do|is|are|will|would)\b`)}},
}

// ClassifyIntent maps an utterance to a single intent class.
func ClassifyIntent(utterance string) Intent {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return IntentNone
	}
	for _, ir := range intentRules {
		if ir.rule.pattern.MatchString(text) {
			return ir.intent
		}
	}
	return IntentNone
}
