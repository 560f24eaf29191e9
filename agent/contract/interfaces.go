package contract

import "context"

// Capability is one named external operation. Invoke is a single attempt;
// retries and breaker checks happen around it.
type Capability interface {
	Name() string
	Invoke(ctx context.Context, req CapabilityRequest) (CapabilityResult, error)
}

// Responder rephrases a templated reply for the caller.
type Responder interface {
	Respond(ctx context.Context, req ResponderRequest) (string, error)
}
