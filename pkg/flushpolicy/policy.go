// Package flushpolicy decides when a buffered stripe is complete enough to
// be finalized and what should happen to dictionary-encoded columns as a
// stripe grows. Policies are purely advisory: the writer samples its own
// buffering state into a StripeProgress snapshot, asks the policy, and
// performs the actual flush, abandonment, or evaluation itself.
//
// All policies assume a single calling goroutine per writer session. No
// method blocks or allocates on the common path, and no policy retains a
// reference to the snapshot or writer context beyond the call.
package flushpolicy

// StripeProgress is a read-only snapshot of the writer's buffering state
// for the stripe currently being assembled. Values are monotonically
// non-decreasing within one stripe and reset when the next stripe begins.
type StripeProgress struct {
	// StripeSizeEstimate is the estimated encoded size of the buffered
	// stripe in bytes.
	StripeSizeEstimate uint64
	// StripeRowCount is the number of rows buffered in the stripe so far.
	StripeRowCount uint64
}

// WriterContext exposes the writer-owned state a policy may consult while
// making a dictionary decision. Implementations are queried, never mutated.
type WriterContext interface {
	// DictionaryMemoryUsage returns the bytes currently held by
	// dictionary-encoded column state.
	DictionaryMemoryUsage() int64
	// MemoryBudget returns the writer's total memory budget in bytes.
	MemoryBudget() int64
}

// FlushDecision is the outcome of a dictionary-related policy decision.
type FlushDecision int

const (
	// DecisionSkip means no dictionary action is required now.
	DecisionSkip FlushDecision = iota
	// DecisionEvaluateDictionary asks the writer to re-assess dictionary
	// compression effectiveness without forcing a flush or abandonment.
	DecisionEvaluateDictionary
	// DecisionFlushDictionary asks the writer to finalize dictionary
	// encoding for the current stripe.
	DecisionFlushDictionary
	// DecisionAbandonDictionary asks the writer to convert accumulated
	// dictionary state to direct encoding because it is no longer
	// cost-effective.
	DecisionAbandonDictionary
)

// String returns the decision name for logging.
func (d FlushDecision) String() string {
	switch d {
	case DecisionSkip:
		return "skip"
	case DecisionEvaluateDictionary:
		return "evaluate_dictionary"
	case DecisionFlushDictionary:
		return "flush_dictionary"
	case DecisionAbandonDictionary:
		return "abandon_dictionary"
	default:
		return "unknown"
	}
}

// FlushPolicy is the contract all flush policies satisfy.
type FlushPolicy interface {
	// ShouldFlush reports whether the stripe described by progress should
	// be closed now. Given monotonically increasing snapshots within one
	// stripe, once it returns true it keeps returning true for any later
	// snapshot of the same stripe.
	ShouldFlush(progress StripeProgress) bool

	// ShouldFlushDictionary checks additional flush criteria based on
	// dictionary encoding. It is safe to call multiple times per stripe
	// and must not assume flushStripe was computed by this same policy;
	// callers may force it.
	ShouldFlushDictionary(flushStripe, overMemoryBudget bool, progress StripeProgress, ctx WriterContext) FlushDecision

	// OnClose releases policy-internal state. It must be safe to call
	// after the surrounding writer has closed, and safe to call more
	// than once.
	OnClose()
}
