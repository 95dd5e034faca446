package flushpolicy

import (
	"github.com/columnforge/stripewriter/pkg/errors"
)

// LambdaFlushPolicy delegates the flush decision to a caller-supplied
// predicate, ignoring the progress snapshot entirely. The predicate must be
// side-effect-free with respect to writer-owned state so decisions stay
// reproducible; a panic raised inside it propagates to the caller
// unchanged.
type LambdaFlushPolicy struct {
	lambda func() bool
}

// NewLambdaFlushPolicy creates a predicate-based flush policy.
func NewLambdaFlushPolicy(lambda func() bool) (*LambdaFlushPolicy, error) {
	if lambda == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "flush predicate must not be nil")
	}
	return &LambdaFlushPolicy{lambda: lambda}, nil
}

// ShouldFlush invokes the predicate exactly once and returns its result.
func (p *LambdaFlushPolicy) ShouldFlush(_ StripeProgress) bool {
	return p.lambda()
}

// ShouldFlushDictionary always skips; this policy does not manage the
// dictionary lifecycle.
func (p *LambdaFlushPolicy) ShouldFlushDictionary(_, _ bool, _ StripeProgress, _ WriterContext) FlushDecision {
	return DecisionSkip
}

// OnClose is a no-op; the policy owns no resources.
func (p *LambdaFlushPolicy) OnClose() {}
