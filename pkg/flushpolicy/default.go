package flushpolicy

import (
	"github.com/columnforge/stripewriter/pkg/errors"
)

// dictionaryAssessmentCheckpoints is the number of evenly spaced stripe-size
// points at which dictionary quality is re-evaluated. Spacing assessments
// across the stripe-size budget keeps evaluation cost bounded: it neither
// fires on every appended batch nor waits until the stripe is already full.
const dictionaryAssessmentCheckpoints = 4

// DefaultFlushPolicy flushes a stripe once its estimated size crosses a
// byte threshold and manages the dictionary lifecycle against a dictionary
// memory threshold.
type DefaultFlushPolicy struct {
	stripeSizeThreshold     uint64
	dictionarySizeThreshold uint64

	// dictionaryAssessmentThreshold is the next stripe size at which
	// dictionary re-evaluation is due. It advances by a fixed increment
	// each time it is crossed and resets when the stripe closes.
	dictionaryAssessmentThreshold uint64
}

// NewDefaultFlushPolicy creates a threshold-based flush policy. Both
// thresholds are in bytes and must be strictly positive.
func NewDefaultFlushPolicy(stripeSizeThreshold, dictionarySizeThreshold uint64) (*DefaultFlushPolicy, error) {
	if stripeSizeThreshold == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "stripe size threshold must be positive")
	}
	if dictionarySizeThreshold == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "dictionary size threshold must be positive")
	}

	p := &DefaultFlushPolicy{
		stripeSizeThreshold:     stripeSizeThreshold,
		dictionarySizeThreshold: dictionarySizeThreshold,
	}
	p.dictionaryAssessmentThreshold = p.dictionaryAssessmentIncrement()
	return p, nil
}

// ShouldFlush reports whether the stripe's estimated size has reached the
// configured threshold.
func (p *DefaultFlushPolicy) ShouldFlush(progress StripeProgress) bool {
	return progress.StripeSizeEstimate >= p.stripeSizeThreshold
}

// ShouldFlushDictionary derives the dictionary memory usage from the writer
// context and delegates to ShouldFlushDictionaryUsage.
func (p *DefaultFlushPolicy) ShouldFlushDictionary(flushStripe, overMemoryBudget bool, progress StripeProgress, ctx WriterContext) FlushDecision {
	return p.ShouldFlushDictionaryUsage(flushStripe, overMemoryBudget, progress, ctx.DictionaryMemoryUsage())
}

// ShouldFlushDictionaryUsage is the primitive form of the dictionary
// decision, taking the current dictionary memory usage directly. Decision
// order: a closing stripe always flushes its dictionary; memory pressure
// abandons it; otherwise the dictionary is re-evaluated at spaced
// stripe-size checkpoints.
func (p *DefaultFlushPolicy) ShouldFlushDictionaryUsage(flushStripe, overMemoryBudget bool, progress StripeProgress, dictionaryMemoryUsage int64) FlushDecision {
	switch {
	case flushStripe:
		// The stripe is closing; rearm the assessment schedule for the
		// next one.
		p.dictionaryAssessmentThreshold = p.dictionaryAssessmentIncrement()
		return DecisionFlushDictionary
	case overMemoryBudget || (dictionaryMemoryUsage > 0 && uint64(dictionaryMemoryUsage) >= p.dictionarySizeThreshold):
		return DecisionAbandonDictionary
	case progress.StripeSizeEstimate >= p.dictionaryAssessmentThreshold:
		// Advance along the checkpoint grid until past the current size,
		// so one stripe size never triggers two evaluations.
		increment := p.dictionaryAssessmentIncrement()
		for p.dictionaryAssessmentThreshold <= progress.StripeSizeEstimate {
			p.dictionaryAssessmentThreshold += increment
		}
		return DecisionEvaluateDictionary
	default:
		return DecisionSkip
	}
}

// OnClose is a no-op; the policy owns no resources.
func (p *DefaultFlushPolicy) OnClose() {}

func (p *DefaultFlushPolicy) dictionaryAssessmentIncrement() uint64 {
	increment := p.stripeSizeThreshold / dictionaryAssessmentCheckpoints
	if increment == 0 {
		increment = 1
	}
	return increment
}
