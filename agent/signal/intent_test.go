package signal

import "testing"

func TestClassifyIntent(t *testing.T) {
	t.Parallel()

	cases := map[string]Intent{
		"":                              IntentNone,
		"we have 12 sales reps":         IntentNone,
		"how does pricing work":         IntentQuestion,
		"is there a mobile app?":        IntentQuestion,
		"let's book a meeting":          IntentRequestNextStep,
		"can someone help me":           IntentRequestNextStep,
		"I'd like to talk to sales":     IntentRequestNextStep,
		"what are the next steps?":      IntentRequestNextStep,
		"this is so frustrating":        IntentFrustration,
		"ugh, can I talk to someone?":   IntentFrustration,
		"thanks, bye":                   IntentEndCall,
		"this is useless, I have to go": IntentEndCall,
		"Schedule a demo for next week": IntentRequestNextStep,
	}

	for utterance, want := range cases {
		if got := ClassifyIntent(utterance); got != want {
			t.Fatalf("ClassifyIntent(%q) = %s, want %s", utterance, got, want)
		}
	}
}
