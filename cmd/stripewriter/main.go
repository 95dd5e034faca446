package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/columnforge/stripewriter/pkg/columnar"
	"github.com/columnforge/stripewriter/pkg/config"
	"github.com/columnforge/stripewriter/pkg/logger"
	"github.com/columnforge/stripewriter/pkg/stripe"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "stripewriter",
		Short: "Columnar stripe writer with pluggable flush policies",
		Long: `stripewriter buffers rows into columnar stripes and finalizes them
according to a configurable flush policy: size thresholds with dictionary
lifecycle management, fixed row counts, or a predetermined per-stripe plan.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stripewriter v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "policies",
		Short: "List available flush policies",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available flush policies:")
			fmt.Printf("  %-16s stripe size and dictionary memory thresholds\n", config.PolicyDefault)
			fmt.Printf("  %-16s predetermined per-stripe row-count plan\n", config.PolicyRowsPerStripe)
			fmt.Printf("  %-16s fixed row count per stripe\n", config.PolicyRowThreshold)
		},
	})

	root.AddCommand(newWriteCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type writeSummary struct {
	Rows       uint64          `json:"rows"`
	Stripes    []stripe.Stripe `json:"stripes"`
	Duration   time.Duration   `json:"duration_ns"`
	RowsPerSec float64         `json:"rows_per_second"`
}

func newWriteCommand() *cobra.Command {
	var (
		configPath string
		outPath    string
		rows       int
		batchSize  int
		hosts      int
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write synthetic rows through the stripe writer",
		Long: `Generates synthetic rows and pushes them through the writer with the
configured flush policy, then prints per-stripe statistics as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.Config{Level: logLevel, Encoding: "console", Development: true}); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg := config.DefaultWriterConfig()
			if configPath != "" {
				if err := config.Load(configPath, cfg); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runWrite(cmd.Context(), cfg, outPath, rows, batchSize, hosts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "writer configuration YAML")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "stripe output file (omit to discard)")
	cmd.Flags().IntVarP(&rows, "rows", "n", 1_000_000, "number of synthetic rows to write")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 1000, "rows per append batch")
	cmd.Flags().IntVar(&hosts, "cardinality", 64, "distinct values in the host column")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")

	return cmd
}

func runWrite(ctx context.Context, cfg *config.WriterConfig, outPath string, rows, batchSize, hosts int) error {
	schema := columnar.Schema{Fields: []columnar.FieldSchema{
		{Name: "host", Type: columnar.ColumnTypeString},
		{Name: "region", Type: columnar.ColumnTypeString},
		{Name: "value", Type: columnar.ColumnTypeFloat},
		{Name: "count", Type: columnar.ColumnTypeInt},
		{Name: "healthy", Type: columnar.ColumnTypeBool},
		{Name: "observed_at", Type: columnar.ColumnTypeTimestamp},
	}}

	var sink stripe.Sink
	var discard *stripe.DiscardSink
	if outPath != "" {
		fileSink, err := stripe.NewFileSink(outPath)
		if err != nil {
			return err
		}
		sink = fileSink
	} else {
		discard = stripe.NewDiscardSink()
		sink = discard
	}

	w, err := stripe.NewWriter(cfg, schema, sink)
	if err != nil {
		return err
	}

	logger.Info("starting synthetic write",
		zap.Int("rows", rows),
		zap.Int("batch_size", batchSize),
		zap.String("policy", string(cfg.Policy)))

	regions := []string{"us-east", "us-west", "eu-west", "ap-south"}
	rng := rand.New(rand.NewSource(42)) //nolint:gosec // deterministic synthetic data
	start := time.Now()

	batch := make([]map[string]interface{}, 0, batchSize)
	for i := 0; i < rows; i++ {
		batch = append(batch, map[string]interface{}{
			"host":        fmt.Sprintf("host-%04d", rng.Intn(hosts)),
			"region":      regions[rng.Intn(len(regions))],
			"value":       rng.Float64() * 100,
			"count":       int64(i),
			"healthy":     rng.Intn(100) > 2,
			"observed_at": start.Add(time.Duration(i) * time.Millisecond),
		})
		if len(batch) == batchSize {
			if err := w.Append(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := w.Append(ctx, batch); err != nil {
			return err
		}
	}
	if err := w.Close(ctx); err != nil {
		return err
	}

	elapsed := time.Since(start)
	summary := writeSummary{
		Rows:       w.RowsWritten(),
		Duration:   elapsed,
		RowsPerSec: float64(w.RowsWritten()) / elapsed.Seconds(),
	}
	if discard != nil {
		summary.Stripes = discard.Stripes()
	}

	out, err := gojson.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
