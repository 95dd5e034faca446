package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/columnforge/stripewriter/pkg/columnar"
	"github.com/columnforge/stripewriter/pkg/compression"
	"github.com/columnforge/stripewriter/pkg/config"
	"github.com/columnforge/stripewriter/pkg/flushpolicy"
	"github.com/columnforge/stripewriter/pkg/stripe"
)

func benchSchema() columnar.Schema {
	return columnar.Schema{Fields: []columnar.FieldSchema{
		{Name: "host", Type: columnar.ColumnTypeString},
		{Name: "value", Type: columnar.ColumnTypeFloat},
		{Name: "count", Type: columnar.ColumnTypeInt},
	}}
}

func benchRows(n, cardinality int) []map[string]interface{} {
	rows := make([]map[string]interface{}, n)
	for i := range rows {
		rows[i] = map[string]interface{}{
			"host":  fmt.Sprintf("host-%04d", i%cardinality),
			"value": float64(i) * 1.5,
			"count": int64(i),
		}
	}
	return rows
}

// BenchmarkFlushPolicyDecisions measures the per-call cost of the decision
// surface the writer hits after every batch.
func BenchmarkFlushPolicyDecisions(b *testing.B) {
	policy, err := flushpolicy.NewDefaultFlushPolicy(64<<20, 16<<20)
	if err != nil {
		b.Fatal(err)
	}

	b.Run("ShouldFlush", func(b *testing.B) {
		b.ReportAllocs()
		progress := flushpolicy.StripeProgress{StripeSizeEstimate: 32 << 20, StripeRowCount: 1 << 20}
		for i := 0; i < b.N; i++ {
			_ = policy.ShouldFlush(progress)
		}
	})

	b.Run("ShouldFlushDictionaryUsage", func(b *testing.B) {
		b.ReportAllocs()
		progress := flushpolicy.StripeProgress{StripeSizeEstimate: 32 << 20, StripeRowCount: 1 << 20}
		for i := 0; i < b.N; i++ {
			_ = policy.ShouldFlushDictionaryUsage(false, false, progress, 4<<20)
		}
	})
}

// BenchmarkWriterThroughput pushes batches through the full writer path
// with each policy variant and a discard sink.
func BenchmarkWriterThroughput(b *testing.B) {
	const batchSize = 1000

	configs := map[string]func() *config.WriterConfig{
		"default_policy": func() *config.WriterConfig {
			cfg := config.DefaultWriterConfig()
			cfg.StripeSizeThreshold = 8 << 20
			cfg.DictionarySizeThreshold = 2 << 20
			cfg.MemoryBudget = 1 << 30
			cfg.Compression = compression.Snappy
			return cfg
		},
		"row_threshold": func() *config.WriterConfig {
			cfg := config.DefaultWriterConfig()
			cfg.Policy = config.PolicyRowThreshold
			cfg.RowCountThreshold = 100_000
			cfg.MemoryBudget = 1 << 30
			return cfg
		},
	}

	for name, makeConfig := range configs {
		b.Run(name, func(b *testing.B) {
			rows := benchRows(batchSize, 64)
			w, err := stripe.NewWriter(makeConfig(), benchSchema(), stripe.NewDiscardSink())
			if err != nil {
				b.Fatal(err)
			}
			ctx := context.Background()

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := w.Append(ctx, rows); err != nil {
					b.Fatal(err)
				}
			}
			b.StopTimer()

			if err := w.Close(ctx); err != nil {
				b.Fatal(err)
			}
			rowsPerOp := float64(batchSize)
			b.ReportMetric(rowsPerOp, "rows/op")
			b.Logf("%s: %d stripes flushed for %d rows", name, w.StripesFlushed(), w.RowsWritten())
		})
	}
}

// BenchmarkStripeCompression compares codecs on an encoded stripe payload.
func BenchmarkStripeCompression(b *testing.B) {
	cfg := config.DefaultWriterConfig()
	cfg.MemoryBudget = 1 << 30

	for _, algorithm := range []compression.Algorithm{compression.Snappy, compression.Zstd, compression.LZ4} {
		b.Run(string(algorithm), func(b *testing.B) {
			c, err := compression.NewCompressor(algorithm)
			if err != nil {
				b.Fatal(err)
			}

			buf, err := columnar.NewBuffer(benchSchema())
			if err != nil {
				b.Fatal(err)
			}
			for _, row := range benchRows(10_000, 64) {
				if err := buf.AppendRow(row); err != nil {
					b.Fatal(err)
				}
			}
			var encoded bytesBuffer
			if err := buf.Encode(&encoded); err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			b.ReportAllocs()
			b.SetBytes(int64(len(encoded.data)))
			for i := 0; i < b.N; i++ {
				if _, err := c.Compress(encoded.data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// bytesBuffer is a minimal io.Writer avoiding bytes.Buffer's grow-copy
// noise in benchmark allocation counts.
type bytesBuffer struct {
	data []byte
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}
