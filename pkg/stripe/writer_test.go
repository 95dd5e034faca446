package stripe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/columnforge/stripewriter/pkg/columnar"
	"github.com/columnforge/stripewriter/pkg/compression"
	"github.com/columnforge/stripewriter/pkg/config"
	"github.com/columnforge/stripewriter/pkg/flushpolicy"
)

func testSchema() columnar.Schema {
	return columnar.Schema{Fields: []columnar.FieldSchema{
		{Name: "host", Type: columnar.ColumnTypeString},
		{Name: "value", Type: columnar.ColumnTypeInt},
	}}
}

func makeRows(n int, distinctHosts int) []map[string]interface{} {
	rows := make([]map[string]interface{}, n)
	for i := range rows {
		rows[i] = map[string]interface{}{
			"host":  fmt.Sprintf("host-%03d", i%distinctHosts),
			"value": int64(i),
		}
	}
	return rows
}

func TestWriter_RowThresholdFlushing(t *testing.T) {
	cfg := config.DefaultWriterConfig()
	cfg.Policy = config.PolicyRowThreshold
	cfg.RowCountThreshold = 100
	cfg.MemoryBudget = 1 << 30

	sink := NewDiscardSink()
	w, err := NewWriter(cfg, testSchema(), sink)
	require.NoError(t, err)

	ctx := context.Background()
	rows := makeRows(250, 8)
	for i := 0; i < len(rows); i += 50 {
		require.NoError(t, w.Append(ctx, rows[i:i+50]))
	}
	require.NoError(t, w.Close(ctx))

	stripes := sink.Stripes()
	require.Len(t, stripes, 3)
	assert.Equal(t, 100, stripes[0].Rows)
	assert.Equal(t, 100, stripes[1].Rows)
	assert.Equal(t, 50, stripes[2].Rows, "Close flushes the partial stripe")
	assert.Equal(t, uint64(250), w.RowsWritten())
	assert.Equal(t, 3, w.StripesFlushed())

	for i, s := range stripes {
		assert.Equal(t, i, s.Index)
		assert.Positive(t, s.PayloadBytes)
		assert.Equal(t, compression.Snappy, s.Compression)
	}
}

func TestWriter_RowsPerStripePlan(t *testing.T) {
	cfg := config.DefaultWriterConfig()
	cfg.Policy = config.PolicyRowsPerStripe
	cfg.RowsPerStripe = []uint64{10, 20}
	cfg.MemoryBudget = 1 << 30

	sink := NewDiscardSink()
	w, err := NewWriter(cfg, testSchema(), sink)
	require.NoError(t, err)

	// 50 rows split exactly across the 10/20 plan plus one clamped stripe.
	ctx := context.Background()
	rows := makeRows(50, 4)
	for i := 0; i < len(rows); i += 5 {
		require.NoError(t, w.Append(ctx, rows[i:i+5]))
	}
	require.NoError(t, w.Close(ctx))

	stripes := sink.Stripes()
	require.Len(t, stripes, 3)
	assert.Equal(t, 10, stripes[0].Rows)
	assert.Equal(t, 20, stripes[1].Rows)
	assert.Equal(t, 20, stripes[2].Rows, "exhausted plan clamps to the last entry")
}

func TestWriter_DefaultPolicySizeFlushing(t *testing.T) {
	cfg := config.DefaultWriterConfig()
	cfg.StripeSizeThreshold = 16 << 10
	cfg.DictionarySizeThreshold = 1 << 20
	cfg.MemoryBudget = 1 << 30

	sink := NewDiscardSink()
	w, err := NewWriter(cfg, testSchema(), sink)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.NoError(t, w.Append(ctx, makeRows(100, 16)))
	}
	require.NoError(t, w.Close(ctx))

	stripes := sink.Stripes()
	require.NotEmpty(t, stripes)
	for i, s := range stripes[:len(stripes)-1] {
		assert.GreaterOrEqual(t, s.SizeEstimate, cfg.StripeSizeThreshold,
			"stripe %d flushed before reaching the size threshold", i)
	}
}

func TestWriter_DictionaryAbandonedUnderMemoryPressure(t *testing.T) {
	cfg := config.DefaultWriterConfig()
	cfg.StripeSizeThreshold = 1 << 30 // never flush on size
	cfg.DictionarySizeThreshold = 1 << 30
	cfg.MemoryBudget = 4 << 10 // tiny budget forces abandonment

	sink := NewDiscardSink()
	w, err := NewWriter(cfg, testSchema(), sink)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		require.NoError(t, w.Append(ctx, makeRows(100, 8)))
	}
	assert.Zero(t, w.DictionaryMemoryUsage(),
		"dictionaries converted to direct encoding once over budget")

	require.NoError(t, w.Close(ctx))
	stripes := sink.Stripes()
	require.Len(t, stripes, 1)
	assert.Zero(t, stripes[0].DictionaryColumns)
}

func TestWriter_LambdaPolicy(t *testing.T) {
	cfg := config.DefaultWriterConfig()
	cfg.MemoryBudget = 1 << 30

	flushNow := false
	policy, err := flushpolicy.NewLambdaFlushPolicy(func() bool { return flushNow })
	require.NoError(t, err)

	sink := NewDiscardSink()
	w, err := NewWriterWithPolicy(cfg, testSchema(), sink, policy)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Append(ctx, makeRows(50, 4)))
	assert.Empty(t, sink.Stripes())

	flushNow = true
	require.NoError(t, w.Append(ctx, makeRows(50, 4)))
	require.Len(t, sink.Stripes(), 1)
	assert.Equal(t, 100, sink.Stripes()[0].Rows)

	flushNow = false
	require.NoError(t, w.Close(ctx))
}

func TestWriter_DictionaryEffectivenessEvaluation(t *testing.T) {
	cfg := config.DefaultWriterConfig()
	cfg.StripeSizeThreshold = 64 << 10
	cfg.DictionarySizeThreshold = 1 << 30
	cfg.MemoryBudget = 1 << 30
	cfg.MaxDictionaryCardinalityRatio = 0.5

	schema := columnar.Schema{Fields: []columnar.FieldSchema{
		{Name: "unique_id", Type: columnar.ColumnTypeString},
	}}

	sink := NewDiscardSink()
	w, err := NewWriter(cfg, schema, sink)
	require.NoError(t, err)

	// Every value distinct, so the first evaluation checkpoint abandons
	// the dictionary.
	ctx := context.Background()
	for i := 0; i < 2000; i++ {
		require.NoError(t, w.Append(ctx, []map[string]interface{}{
			{"unique_id": fmt.Sprintf("id-%08d-%08d", i, i*7)},
		}))
	}
	require.NoError(t, w.Close(ctx))

	stripes := sink.Stripes()
	require.NotEmpty(t, stripes)
	assert.Zero(t, stripes[0].DictionaryColumns,
		"high-cardinality column should not stay dictionary-encoded")
}

func TestWriter_ClosedBehavior(t *testing.T) {
	cfg := config.DefaultWriterConfig()
	cfg.MemoryBudget = 1 << 30

	sink := NewDiscardSink()
	w, err := NewWriter(cfg, testSchema(), sink)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Close(ctx))
	require.NoError(t, w.Close(ctx), "Close is idempotent")

	err = w.Append(ctx, makeRows(1, 1))
	assert.Error(t, err)
	err = w.Flush(ctx)
	assert.Error(t, err)
}

func TestWriter_Validation(t *testing.T) {
	cfg := config.DefaultWriterConfig()

	_, err := NewWriter(cfg, testSchema(), nil)
	assert.Error(t, err, "nil sink rejected")

	_, err = NewWriterWithPolicy(cfg, testSchema(), NewDiscardSink(), nil)
	assert.Error(t, err, "nil policy rejected")

	bad := config.DefaultWriterConfig()
	bad.Policy = "adaptive"
	_, err = NewWriter(bad, testSchema(), NewDiscardSink())
	assert.Error(t, err)

	_, err = NewWriter(cfg, columnar.Schema{}, NewDiscardSink())
	assert.Error(t, err, "empty schema rejected")
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.stripes")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	cfg := config.DefaultWriterConfig()
	cfg.Policy = config.PolicyRowThreshold
	cfg.RowCountThreshold = 100
	cfg.MemoryBudget = 1 << 30
	cfg.Compression = compression.Zstd

	w, err := NewWriter(cfg, testSchema(), sink)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Append(ctx, makeRows(150, 4)))
	require.NoError(t, w.Close(ctx))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	require.NoError(t, sink.Close(), "sink Close is idempotent")
}
