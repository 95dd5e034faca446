// Package config provides the configuration surface of the stripe writer.
//
// Example usage:
//
//	cfg := config.DefaultWriterConfig()
//	cfg.StripeSizeThreshold = 128 << 20
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"github.com/columnforge/stripewriter/pkg/compression"
	"github.com/columnforge/stripewriter/pkg/errors"
)

// PolicyKind selects which flush policy the writer builds at startup.
type PolicyKind string

const (
	// PolicyDefault is the size/memory-threshold policy.
	PolicyDefault PolicyKind = "default"
	// PolicyRowsPerStripe flushes per a predetermined row-count plan.
	PolicyRowsPerStripe PolicyKind = "rows_per_stripe"
	// PolicyRowThreshold flushes every stripe at a fixed row count.
	PolicyRowThreshold PolicyKind = "row_threshold"
)

// WriterConfig configures a stripe writer instance.
type WriterConfig struct {
	// Name identifies the writer instance in logs and metrics
	Name string `yaml:"name" json:"name"`

	// Policy selects the flush policy
	Policy PolicyKind `yaml:"policy" json:"policy"`

	// StripeSizeThreshold is the stripe size in bytes at which the
	// default policy closes a stripe
	StripeSizeThreshold uint64 `yaml:"stripe_size_threshold" json:"stripe_size_threshold"`

	// DictionarySizeThreshold is the dictionary memory in bytes past
	// which the default policy abandons dictionary encoding
	DictionarySizeThreshold uint64 `yaml:"dictionary_size_threshold" json:"dictionary_size_threshold"`

	// RowsPerStripe is the per-stripe row plan for the rows_per_stripe
	// policy
	RowsPerStripe []uint64 `yaml:"rows_per_stripe" json:"rows_per_stripe"`

	// RowCountThreshold is the per-stripe row limit for the
	// row_threshold policy
	RowCountThreshold uint64 `yaml:"row_count_threshold" json:"row_count_threshold"`

	// MemoryBudget caps total writer memory in bytes. Zero derives the
	// budget from available system memory at startup.
	MemoryBudget int64 `yaml:"memory_budget" json:"memory_budget"`

	// MaxDictionaryCardinalityRatio is the distinct-over-total ratio
	// above which a dictionary evaluation abandons a column's dictionary
	MaxDictionaryCardinalityRatio float64 `yaml:"max_dictionary_cardinality_ratio" json:"max_dictionary_cardinality_ratio"`

	// Compression selects the codec applied to finalized stripe payloads
	Compression compression.Algorithm `yaml:"compression" json:"compression"`
}

// DefaultWriterConfig returns a configuration with the conventional 64 MiB
// stripe and 16 MiB dictionary thresholds.
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Name:                          "stripewriter",
		Policy:                        PolicyDefault,
		StripeSizeThreshold:           64 << 20,
		DictionarySizeThreshold:       16 << 20,
		MaxDictionaryCardinalityRatio: 0.8,
		Compression:                   compression.Snappy,
	}
}

// Validate checks the configuration for the selected policy.
func (c *WriterConfig) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "writer name is required")
	}

	switch c.Policy {
	case PolicyDefault:
		if c.StripeSizeThreshold == 0 {
			return errors.New(errors.ErrorTypeConfig, "stripe_size_threshold must be positive")
		}
		if c.DictionarySizeThreshold == 0 {
			return errors.New(errors.ErrorTypeConfig, "dictionary_size_threshold must be positive")
		}
	case PolicyRowsPerStripe:
		if len(c.RowsPerStripe) == 0 {
			return errors.New(errors.ErrorTypeConfig, "rows_per_stripe must not be empty")
		}
	case PolicyRowThreshold:
		if c.RowCountThreshold == 0 {
			return errors.New(errors.ErrorTypeConfig, "row_count_threshold must be positive")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown policy %q", c.Policy)
	}

	if c.MemoryBudget < 0 {
		return errors.New(errors.ErrorTypeConfig, "memory_budget must not be negative")
	}
	if c.MaxDictionaryCardinalityRatio <= 0 || c.MaxDictionaryCardinalityRatio > 1 {
		return errors.New(errors.ErrorTypeConfig, "max_dictionary_cardinality_ratio must be in (0, 1]")
	}

	if _, err := compression.NewCompressor(c.Compression); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression algorithm")
	}
	return nil
}
