package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/Chative-Voice-Qualification/agent/contract"
	qualifyx "github.com/tanpawarit/Chative-Voice-Qualification/agent/qualify"
	signalx "github.com/tanpawarit/Chative-Voice-Qualification/agent/signal"
)

// ApplySignals classifies the utterance, merges its signals into the
// conversation and recomputes the tier. Signals are committed here, before
// any capability runs.
func ApplySignals(in *GraphState, engine *qualifyx.Engine) (*GraphState, error) {
	if in == nil || in.Conversation == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}

	in.Intent = signalx.ClassifyIntent(in.Utterance)
	in.Updates = signalx.Extract(in.Utterance, in.Conversation.Signals)
	if len(in.Updates) > 0 {
		in.Conversation.Signals = qualifyx.Merge(in.Conversation.Signals, in.Updates)
	}
	in.Assessment = engine.Assess(in.Conversation.Signals)
	return in, nil
}
