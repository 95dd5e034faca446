package flushpolicy

import (
	"github.com/columnforge/stripewriter/pkg/errors"
)

// RowsPerStripeFlushPolicy flushes stripes according to a predetermined
// plan of per-stripe row counts: the first stripe closes when it reaches
// the first entry, the second stripe when it reaches the second entry, and
// so on. Row counts are interpreted per stripe; the snapshot's row count
// resets when a new stripe begins. Once the plan is exhausted the last
// entry applies to every subsequent stripe, so the writer keeps making
// progress instead of faulting mid-write.
type RowsPerStripeFlushPolicy struct {
	rowsPerStripe []uint64
	cursor        int

	// triggered latches the flush signal until the stripe closes. The
	// boundary is observed on the flush path (ShouldFlushDictionary with
	// flushStripe set), or inferred when a snapshot's row count drops
	// below the count that fired.
	triggered       bool
	triggerRowCount uint64
}

// NewRowsPerStripeFlushPolicy creates a row-sequence flush policy. The plan
// must be non-empty with strictly positive entries.
func NewRowsPerStripeFlushPolicy(rowsPerStripe []uint64) (*RowsPerStripeFlushPolicy, error) {
	if len(rowsPerStripe) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "rows per stripe plan must not be empty")
	}
	for i, rows := range rowsPerStripe {
		if rows == 0 {
			return nil, errors.Newf(errors.ErrorTypeConfig, "rows per stripe entry %d must be positive", i)
		}
	}

	plan := make([]uint64, len(rowsPerStripe))
	copy(plan, rowsPerStripe)
	return &RowsPerStripeFlushPolicy{rowsPerStripe: plan}, nil
}

// ShouldFlush compares the stripe's row count against the plan entry for
// the current stripe. Once it fires it stays true for the rest of the
// stripe; the plan cursor advances when the stripe boundary is observed.
func (p *RowsPerStripeFlushPolicy) ShouldFlush(progress StripeProgress) bool {
	if p.triggered {
		if progress.StripeRowCount < p.triggerRowCount {
			// Row count dropped without the flush path announcing the
			// boundary; buffering restarted for the next stripe.
			p.advanceStripe()
		} else {
			return true
		}
	}

	if progress.StripeRowCount >= p.rowsPerStripe[p.cursor] {
		p.triggered = true
		p.triggerRowCount = progress.StripeRowCount
		return true
	}
	return false
}

// ShouldFlushDictionary always skips; this policy does not manage the
// dictionary lifecycle. A true flushStripe still marks the stripe
// boundary, so the next stripe is measured against the next plan entry
// regardless of its first observed row count.
func (p *RowsPerStripeFlushPolicy) ShouldFlushDictionary(flushStripe, _ bool, _ StripeProgress, _ WriterContext) FlushDecision {
	if flushStripe && p.triggered {
		p.advanceStripe()
	}
	return DecisionSkip
}

// advanceStripe releases the latch and consumes the current plan entry,
// clamping at the last one once the plan is exhausted.
func (p *RowsPerStripeFlushPolicy) advanceStripe() {
	p.triggered = false
	if p.cursor < len(p.rowsPerStripe)-1 {
		p.cursor++
	}
}

// OnClose is a no-op; the policy owns no resources.
func (p *RowsPerStripeFlushPolicy) OnClose() {}

// RowThresholdFlushPolicy flushes every stripe at a fixed row count.
type RowThresholdFlushPolicy struct {
	rowCountThreshold uint64
}

// NewRowThresholdFlushPolicy creates a fixed row-count flush policy. The
// threshold must be strictly positive.
func NewRowThresholdFlushPolicy(rowCountThreshold uint64) (*RowThresholdFlushPolicy, error) {
	if rowCountThreshold == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "row count threshold must be positive")
	}
	return &RowThresholdFlushPolicy{rowCountThreshold: rowCountThreshold}, nil
}

// ShouldFlush reports whether the stripe's row count has reached the
// configured threshold.
func (p *RowThresholdFlushPolicy) ShouldFlush(progress StripeProgress) bool {
	return progress.StripeRowCount >= p.rowCountThreshold
}

// ShouldFlushDictionary always skips; this policy does not manage the
// dictionary lifecycle.
func (p *RowThresholdFlushPolicy) ShouldFlushDictionary(_, _ bool, _ StripeProgress, _ WriterContext) FlushDecision {
	return DecisionSkip
}

// OnClose is a no-op; the policy owns no resources.
func (p *RowThresholdFlushPolicy) OnClose() {}
