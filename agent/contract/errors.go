package contract

import (
	"errors"

	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
	statex "github.com/tanpawarit/Chative-Voice-Qualification/agent/state"
)

var (
	ErrModelInvoke       = errors.New("model invoke failed")
	ErrPromptMissing     = errors.New("required prompt is missing")
	ErrValidation        = errors.New("validation failed")
	ErrConversationEnded = errors.New("conversation has ended")

	ErrDependencyUnavailable = resiliencex.ErrUnavailable
	ErrDependencyFailed      = resiliencex.ErrFailed
	ErrDependencyTimeout     = resiliencex.ErrTimeout
	ErrPolicyViolation       = statex.ErrPolicyViolation
)
