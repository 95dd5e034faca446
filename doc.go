// Package stripewriter provides a columnar, stripe-oriented table writer
// built around a pluggable flush-decision policy engine.
//
// The writer buffers rows into typed column buffers (strings are
// dictionary-encoded by default) and, after every appended batch, samples
// its buffering state and asks a flush policy two questions: should the
// current stripe be finalized now, and what should happen to the
// dictionary-encoded columns right now. The policy is purely advisory;
// the writer performs the actual flush, evaluation, or abandonment.
//
// # Packages
//
//   - pkg/flushpolicy: the FlushPolicy contract, FlushDecision outcomes,
//     and the concrete policies (size/memory thresholds, per-stripe row
//     plans, fixed row counts, caller-supplied predicates)
//   - pkg/columnar: typed column buffers with a writer-managed dictionary
//     lifecycle and stripe encoding
//   - pkg/stripe: the buffering writer, writer context, and stripe sinks
//   - pkg/compression: block codecs applied to finalized stripe payloads
//   - pkg/config, pkg/logger, pkg/metrics, pkg/errors, pkg/pool:
//     configuration, structured logging, Prometheus metrics, structured
//     errors, and buffer pooling
//
// # Quick Start
//
//	cfg := config.DefaultWriterConfig()
//	sink, _ := stripe.NewFileSink("out.stripes")
//	w, err := stripe.NewWriter(cfg, schema, sink)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close(ctx)
//
//	for batch := range batches {
//	    if err := w.Append(ctx, batch); err != nil {
//	        log.Fatal(err)
//	    }
//	}
package stripewriter
