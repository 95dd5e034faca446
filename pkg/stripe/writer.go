// Package stripe implements the buffering writer that assembles rows into
// columnar stripes. The writer owns no flush logic of its own: it samples
// its buffering state into a flushpolicy.StripeProgress after every batch,
// consults the configured policy, and carries out whatever the policy
// advises, including the dictionary lifecycle of string columns.
package stripe

import (
	"context"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/columnforge/stripewriter/pkg/columnar"
	"github.com/columnforge/stripewriter/pkg/compression"
	"github.com/columnforge/stripewriter/pkg/config"
	"github.com/columnforge/stripewriter/pkg/errors"
	"github.com/columnforge/stripewriter/pkg/flushpolicy"
	"github.com/columnforge/stripewriter/pkg/logger"
	"github.com/columnforge/stripewriter/pkg/metrics"
	"github.com/columnforge/stripewriter/pkg/pool"
)

// fallbackMemoryBudget is used when the system memory probe fails.
const fallbackMemoryBudget = int64(1) << 30

// Writer buffers rows into a columnar stripe and hands finalized stripes
// to a Sink when the flush policy says so. A Writer serves one goroutine;
// it performs no locking.
type Writer struct {
	cfg    *config.WriterConfig
	policy flushpolicy.FlushPolicy
	buffer *columnar.Buffer
	sink   Sink
	comp   compression.Compressor
	log    *zap.Logger

	memoryBudget int64
	stripeIndex  int
	rowsWritten  uint64

	// dictionaryDone latches once the current stripe's dictionary
	// lifecycle reached a terminal decision (flush or abandon).
	dictionaryDone bool
	closed         bool
}

// NewWriter creates a writer whose flush policy is built from the
// configuration.
func NewWriter(cfg *config.WriterConfig, schema columnar.Schema, sink Sink) (*Writer, error) {
	policy, err := buildPolicy(cfg)
	if err != nil {
		return nil, err
	}
	return NewWriterWithPolicy(cfg, schema, sink, policy)
}

// NewWriterWithPolicy creates a writer with a caller-supplied flush policy,
// bypassing the config's policy selection. The thresholds and codec in cfg
// still apply.
func NewWriterWithPolicy(cfg *config.WriterConfig, schema columnar.Schema, sink Sink, policy flushpolicy.FlushPolicy) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "sink must not be nil")
	}
	if policy == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "flush policy must not be nil")
	}

	buffer, err := columnar.NewBuffer(schema)
	if err != nil {
		return nil, err
	}
	comp, err := compression.NewCompressor(cfg.Compression)
	if err != nil {
		return nil, err
	}

	budget := cfg.MemoryBudget
	if budget == 0 {
		budget = deriveMemoryBudget()
	}

	w := &Writer{
		cfg:          cfg,
		policy:       policy,
		buffer:       buffer,
		sink:         sink,
		comp:         comp,
		log:          logger.With(zap.String("writer", cfg.Name), zap.String("policy", string(cfg.Policy))),
		memoryBudget: budget,
	}
	w.log.Debug("writer created",
		zap.Int64("memory_budget", budget),
		zap.String("compression", string(cfg.Compression)))
	return w, nil
}

func buildPolicy(cfg *config.WriterConfig) (flushpolicy.FlushPolicy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Policy {
	case config.PolicyDefault:
		return flushpolicy.NewDefaultFlushPolicy(cfg.StripeSizeThreshold, cfg.DictionarySizeThreshold)
	case config.PolicyRowsPerStripe:
		return flushpolicy.NewRowsPerStripeFlushPolicy(cfg.RowsPerStripe)
	case config.PolicyRowThreshold:
		return flushpolicy.NewRowThresholdFlushPolicy(cfg.RowCountThreshold)
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown policy %q", cfg.Policy)
	}
}

// deriveMemoryBudget sizes the budget as a quarter of available system
// memory.
func deriveMemoryBudget() int64 {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Available == 0 {
		return fallbackMemoryBudget
	}
	return int64(vm.Available / 4)
}

// DictionaryMemoryUsage implements flushpolicy.WriterContext.
func (w *Writer) DictionaryMemoryUsage() int64 {
	return w.buffer.DictionaryMemoryUsage()
}

// MemoryBudget implements flushpolicy.WriterContext.
func (w *Writer) MemoryBudget() int64 {
	return w.memoryBudget
}

// progress samples the current buffering state.
func (w *Writer) progress() flushpolicy.StripeProgress {
	return flushpolicy.StripeProgress{
		StripeSizeEstimate: uint64(w.buffer.MemoryUsage()),
		StripeRowCount:     uint64(w.buffer.RowCount()),
	}
}

// Append buffers a batch of rows, then runs one policy consultation. The
// batch may trigger a stripe flush.
func (w *Writer) Append(ctx context.Context, rows []map[string]interface{}) error {
	if w.closed {
		return errors.New(errors.ErrorTypeValidation, "writer is closed")
	}
	if err := w.buffer.AppendBatch(rows); err != nil {
		return err
	}
	w.rowsWritten += uint64(len(rows))
	return w.maintain(ctx)
}

// maintain performs one flush-policy consultation: stripe flush first, then
// dictionary maintenance for a stripe that stays open.
func (w *Writer) maintain(ctx context.Context) error {
	progress := w.progress()
	flushStripe := w.policy.ShouldFlush(progress)
	overBudget := w.overMemoryBudget()

	if flushStripe {
		return w.flushStripe(ctx, progress)
	}

	if w.dictionaryDone {
		return nil
	}

	decision := w.policy.ShouldFlushDictionary(false, overBudget, progress, w)
	metrics.FlushDecisions.WithLabelValues(string(w.cfg.Policy), decision.String()).Inc()
	metrics.DictionaryMemory.WithLabelValues(w.cfg.Name).Set(float64(w.buffer.DictionaryMemoryUsage()))

	switch decision {
	case flushpolicy.DecisionEvaluateDictionary:
		abandoned := w.buffer.EvaluateDictionaries(w.cfg.MaxDictionaryCardinalityRatio)
		if abandoned > 0 {
			metrics.DictionariesAbandoned.WithLabelValues("ineffective").Add(float64(abandoned))
			w.log.Debug("dictionary evaluation converted columns",
				zap.Int("columns", abandoned),
				zap.Uint64("stripe_size", progress.StripeSizeEstimate))
		}
	case flushpolicy.DecisionAbandonDictionary:
		abandoned := w.buffer.AbandonDictionaries()
		w.dictionaryDone = true
		metrics.DictionariesAbandoned.WithLabelValues("memory_pressure").Add(float64(abandoned))
		w.log.Warn("dictionaries abandoned under memory pressure",
			zap.Int("columns", abandoned),
			zap.Int64("dictionary_memory", w.buffer.DictionaryMemoryUsage()),
			zap.Int64("memory_budget", w.memoryBudget))
	case flushpolicy.DecisionFlushDictionary:
		// Only reachable when a caller forces flushStripe; handled on
		// the flush path.
	case flushpolicy.DecisionSkip:
	}
	return nil
}

func (w *Writer) overMemoryBudget() bool {
	return w.buffer.MemoryUsage() > w.memoryBudget
}

// flushStripe finalizes the buffered stripe and hands it to the sink.
func (w *Writer) flushStripe(ctx context.Context, progress flushpolicy.StripeProgress) error {
	if w.buffer.RowCount() == 0 {
		return nil
	}

	timer := metrics.NewTimer()

	decision := w.policy.ShouldFlushDictionary(true, w.overMemoryBudget(), progress, w)
	metrics.FlushDecisions.WithLabelValues(string(w.cfg.Policy), decision.String()).Inc()
	if decision == flushpolicy.DecisionFlushDictionary {
		// Dictionaries are finalized as part of the stripe encoding; a
		// last effectiveness pass converts columns whose dictionary
		// never paid off.
		abandoned := w.buffer.EvaluateDictionaries(w.cfg.MaxDictionaryCardinalityRatio)
		if abandoned > 0 {
			metrics.DictionariesAbandoned.WithLabelValues("ineffective").Add(float64(abandoned))
		}
	}

	stripe, err := w.encodeStripe(progress)
	if err != nil {
		return err
	}
	if err := w.sink.WriteStripe(ctx, stripe); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "sink write")
	}

	metrics.StripesFlushed.WithLabelValues(string(w.cfg.Policy)).Inc()
	metrics.StripeRows.Observe(float64(stripe.Rows))
	metrics.StripeBytes.Observe(float64(stripe.SizeEstimate))
	timer.ObserveFlush()

	w.log.Info("stripe flushed",
		zap.Int("stripe", stripe.Index),
		zap.Int("rows", stripe.Rows),
		zap.Uint64("size_estimate", stripe.SizeEstimate),
		zap.Int("payload_bytes", stripe.PayloadBytes),
		zap.Int("dictionary_columns", stripe.DictionaryColumns))

	w.buffer.Reset()
	w.stripeIndex++
	w.dictionaryDone = false
	return nil
}

// encodeStripe serializes and compresses the buffered columns.
func (w *Writer) encodeStripe(progress flushpolicy.StripeProgress) (*Stripe, error) {
	raw := pool.GetBuffer()
	defer pool.PutBuffer(raw)

	if err := w.buffer.Encode(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "encode stripe")
	}
	payload, err := w.comp.Compress(raw.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "compress stripe")
	}
	// The none codec returns its input, which aliases the pooled buffer.
	if w.comp.Algorithm() == compression.None {
		payload = append([]byte(nil), payload...)
	}

	dictionaryColumns := 0
	for _, field := range w.buffer.Schema().Fields {
		if col, ok := w.buffer.Column(field.Name); ok {
			if dc, ok := col.(columnar.DictionaryColumn); ok && dc.DictionaryEncoded() {
				dictionaryColumns++
			}
		}
	}

	return &Stripe{
		Index:             w.stripeIndex,
		Rows:              w.buffer.RowCount(),
		SizeEstimate:      progress.StripeSizeEstimate,
		DictionaryColumns: dictionaryColumns,
		Compression:       w.comp.Algorithm(),
		Payload:           payload,
		PayloadBytes:      len(payload),
	}, nil
}

// Flush forces the buffered stripe out regardless of policy state. A
// no-op when the buffer is empty.
func (w *Writer) Flush(ctx context.Context) error {
	if w.closed {
		return errors.New(errors.ErrorTypeValidation, "writer is closed")
	}
	return w.flushStripe(ctx, w.progress())
}

// RowsWritten returns the total rows appended over the writer's lifetime.
func (w *Writer) RowsWritten() uint64 { return w.rowsWritten }

// StripesFlushed returns the number of stripes handed to the sink.
func (w *Writer) StripesFlushed() int { return w.stripeIndex }

// Close flushes any remaining rows, releases the policy, and closes the
// sink. Safe to call more than once.
func (w *Writer) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	flushErr := w.flushStripe(ctx, w.progress())
	w.closed = true
	w.policy.OnClose()
	if err := w.sink.Close(); err != nil {
		return err
	}
	return flushErr
}
