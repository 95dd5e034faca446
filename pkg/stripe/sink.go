package stripe

import (
	"context"
	"os"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/columnforge/stripewriter/pkg/compression"
	"github.com/columnforge/stripewriter/pkg/errors"
)

// Stripe is a finalized, encoded row group handed off to a Sink.
type Stripe struct {
	// Index is the zero-based position of the stripe within the write.
	Index int `json:"index"`
	// Rows is the number of rows in the stripe.
	Rows int `json:"rows"`
	// SizeEstimate is the in-memory size estimate at flush time, in
	// bytes.
	SizeEstimate uint64 `json:"size_estimate"`
	// DictionaryColumns is the number of columns that stayed
	// dictionary-encoded through finalization.
	DictionaryColumns int `json:"dictionary_columns"`
	// Compression is the codec applied to Payload.
	Compression compression.Algorithm `json:"compression"`
	// Payload is the compressed, encoded stripe body.
	Payload []byte `json:"-"`
	// PayloadBytes is the compressed payload size in bytes.
	PayloadBytes int `json:"payload_bytes"`
}

// Sink receives finalized stripes. Implementations own durability; the
// writer never performs I/O itself.
type Sink interface {
	WriteStripe(ctx context.Context, s *Stripe) error
	Close() error
}

// DiscardSink drops stripes after counting them. Used by tests and
// benchmarks.
type DiscardSink struct {
	mu      sync.Mutex
	stripes []Stripe
}

// NewDiscardSink creates a sink that records stripe metadata and drops
// payloads.
func NewDiscardSink() *DiscardSink {
	return &DiscardSink{}
}

// WriteStripe records the stripe's metadata.
func (s *DiscardSink) WriteStripe(_ context.Context, stripe *Stripe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := *stripe
	meta.Payload = nil
	s.stripes = append(s.stripes, meta)
	return nil
}

// Close is a no-op.
func (s *DiscardSink) Close() error { return nil }

// Stripes returns the metadata of every stripe written so far.
func (s *DiscardSink) Stripes() []Stripe {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stripe, len(s.stripes))
	copy(out, s.stripes)
	return out
}

// FileSink appends stripe payloads to a file, each followed by a one-line
// JSON footer describing the stripe.
type FileSink struct {
	file   *os.File
	closed bool
}

// NewFileSink creates a sink writing to the given path, truncating any
// existing file.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.Create(path) //nolint:gosec // G304: path is controlled by the caller
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "create sink file")
	}
	return &FileSink{file: file}, nil
}

// WriteStripe appends the payload and its JSON footer.
func (s *FileSink) WriteStripe(_ context.Context, stripe *Stripe) error {
	if s.closed {
		return errors.New(errors.ErrorTypeFile, "sink is closed")
	}

	if _, err := s.file.Write(stripe.Payload); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "write stripe payload")
	}

	footer, err := gojson.Marshal(stripe)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "marshal stripe footer")
	}
	footer = append(footer, '\n')
	if _, err := s.file.Write(footer); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "write stripe footer")
	}
	return nil
}

// Close flushes and closes the underlying file. Safe to call twice.
func (s *FileSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "close sink file")
	}
	return nil
}
