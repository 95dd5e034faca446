// Package columnar provides the typed column buffers a stripe is assembled
// from. String columns start out dictionary-encoded; the surrounding writer
// owns the lifecycle and may evaluate, abandon, or finalize the dictionary
// as the stripe grows.
package columnar

import (
	"io"
	"time"

	"github.com/columnforge/stripewriter/pkg/errors"
)

// ColumnType represents the data type of a column
type ColumnType int

const (
	ColumnTypeString ColumnType = iota
	ColumnTypeInt
	ColumnTypeFloat
	ColumnTypeBool
	ColumnTypeTimestamp
)

// Column is the base interface for all column buffers
type Column interface {
	Type() ColumnType
	Len() int
	Get(i int) interface{}
	Append(value interface{}) error
	// AppendZero appends the column's zero value, used for rows that do
	// not carry this field.
	AppendZero()
	// Reset clears the buffer for the next stripe.
	Reset()
	MemoryUsage() int64
	// EncodeTo writes the column's stripe encoding to w.
	EncodeTo(w io.Writer) error
}

// DictionaryColumn is implemented by columns that can hold a dictionary
// encoding. The writer drives the lifecycle: it evaluates effectiveness at
// policy checkpoints and abandons the dictionary when it stops paying off.
type DictionaryColumn interface {
	Column
	// DictionaryMemoryUsage returns the bytes held by dictionary state,
	// zero once the dictionary has been abandoned.
	DictionaryMemoryUsage() int64
	// DictionaryCardinalityRatio returns distinct values over total
	// values, in (0, 1]. Lower means the dictionary is more effective.
	DictionaryCardinalityRatio() float64
	// AbandonDictionary converts accumulated dictionary state to direct
	// encoding. Idempotent within a stripe; Reset re-enables the
	// dictionary for the next stripe.
	AbandonDictionary()
	// DictionaryEncoded reports whether the column is currently
	// dictionary-encoded.
	DictionaryEncoded() bool
}

// StringColumn stores string values, dictionary-encoded until the writer
// abandons the dictionary.
type StringColumn struct {
	dict       map[string]uint32
	dictValues []string // code -> value
	codes      []uint32

	// Direct encoding, populated after abandonment.
	values   []string
	dictMode bool
}

// NewStringColumn creates a new string column in dictionary mode.
func NewStringColumn() *StringColumn {
	return &StringColumn{
		dict:     make(map[string]uint32),
		codes:    make([]uint32, 0, 1024),
		dictMode: true,
	}
}

func (c *StringColumn) Type() ColumnType { return ColumnTypeString }

func (c *StringColumn) Len() int {
	if c.dictMode {
		return len(c.codes)
	}
	return len(c.values)
}

func (c *StringColumn) Get(i int) interface{} {
	if c.dictMode {
		return c.dictValues[c.codes[i]]
	}
	return c.values[i]
}

func (c *StringColumn) Append(value interface{}) error {
	str, ok := value.(string)
	if !ok {
		return errors.Newf(errors.ErrorTypeData, "expected string, got %T", value)
	}

	if c.dictMode {
		code, exists := c.dict[str]
		if !exists {
			code = uint32(len(c.dictValues))
			c.dict[str] = code
			c.dictValues = append(c.dictValues, str)
		}
		c.codes = append(c.codes, code)
		return nil
	}

	c.values = append(c.values, str)
	return nil
}

func (c *StringColumn) AppendZero() { _ = c.Append("") }

// DictionaryMemoryUsage returns the bytes held by the dictionary table and
// the code vector.
func (c *StringColumn) DictionaryMemoryUsage() int64 {
	if !c.dictMode {
		return 0
	}
	var total int64
	for _, v := range c.dictValues {
		total += int64(len(v)) + 16 // string header
		total += 4                  // code
	}
	total += int64(len(c.codes) * 4)
	return total
}

// DictionaryCardinalityRatio returns distinct over total values. An empty
// column reports 1 so it never looks effective before any data arrives.
func (c *StringColumn) DictionaryCardinalityRatio() float64 {
	if !c.dictMode || len(c.codes) == 0 {
		return 1
	}
	return float64(len(c.dictValues)) / float64(len(c.codes))
}

// AbandonDictionary materializes direct values from the codes and drops the
// dictionary state.
func (c *StringColumn) AbandonDictionary() {
	if !c.dictMode {
		return
	}
	c.values = make([]string, len(c.codes))
	for i, code := range c.codes {
		c.values[i] = c.dictValues[code]
	}
	c.dict = nil
	c.dictValues = nil
	c.codes = nil
	c.dictMode = false
}

func (c *StringColumn) DictionaryEncoded() bool { return c.dictMode }

// Reset clears the buffer and re-enables the dictionary for the next
// stripe.
func (c *StringColumn) Reset() {
	c.dict = make(map[string]uint32)
	c.dictValues = nil
	c.codes = c.codes[:0]
	c.values = nil
	c.dictMode = true
}

func (c *StringColumn) MemoryUsage() int64 {
	if c.dictMode {
		return c.DictionaryMemoryUsage()
	}
	var total int64
	for _, v := range c.values {
		total += int64(len(v))
		total += 16 // string header overhead
	}
	return total
}

// IntColumn stores integer values with running min/max statistics
type IntColumn struct {
	values   []int64
	min, max int64
}

// NewIntColumn creates a new integer column
func NewIntColumn() *IntColumn {
	return &IntColumn{
		values: make([]int64, 0, 1024),
	}
}

func (c *IntColumn) Type() ColumnType { return ColumnTypeInt }
func (c *IntColumn) Len() int         { return len(c.values) }

func (c *IntColumn) Get(i int) interface{} {
	return c.values[i]
}

func (c *IntColumn) Append(value interface{}) error {
	var intVal int64
	switch v := value.(type) {
	case int:
		intVal = int64(v)
	case int64:
		intVal = v
	case int32:
		intVal = int64(v)
	case uint64:
		intVal = int64(v)
	default:
		return errors.Newf(errors.ErrorTypeData, "expected int, got %T", value)
	}

	if len(c.values) == 0 {
		c.min = intVal
		c.max = intVal
	} else {
		if intVal < c.min {
			c.min = intVal
		}
		if intVal > c.max {
			c.max = intVal
		}
	}

	c.values = append(c.values, intVal)
	return nil
}

func (c *IntColumn) AppendZero() { _ = c.Append(int64(0)) }

// Min returns the smallest appended value
func (c *IntColumn) Min() int64 { return c.min }

// Max returns the largest appended value
func (c *IntColumn) Max() int64 { return c.max }

func (c *IntColumn) Reset() {
	c.values = c.values[:0]
	c.min = 0
	c.max = 0
}

func (c *IntColumn) MemoryUsage() int64 {
	return int64(len(c.values) * 8)
}

// FloatColumn stores floating point values
type FloatColumn struct {
	values []float64
}

// NewFloatColumn creates a new float column
func NewFloatColumn() *FloatColumn {
	return &FloatColumn{
		values: make([]float64, 0, 1024),
	}
}

func (c *FloatColumn) Type() ColumnType { return ColumnTypeFloat }
func (c *FloatColumn) Len() int         { return len(c.values) }

func (c *FloatColumn) Get(i int) interface{} {
	return c.values[i]
}

func (c *FloatColumn) Append(value interface{}) error {
	var floatVal float64
	switch v := value.(type) {
	case float64:
		floatVal = v
	case float32:
		floatVal = float64(v)
	case int:
		floatVal = float64(v)
	default:
		return errors.Newf(errors.ErrorTypeData, "expected float, got %T", value)
	}

	c.values = append(c.values, floatVal)
	return nil
}

func (c *FloatColumn) AppendZero() { _ = c.Append(float64(0)) }

func (c *FloatColumn) Reset() {
	c.values = c.values[:0]
}

func (c *FloatColumn) MemoryUsage() int64 {
	return int64(len(c.values) * 8)
}

// BoolColumn stores boolean values bit-packed, 64 per word
type BoolColumn struct {
	values []uint64
	count  int
}

// NewBoolColumn creates a new boolean column
func NewBoolColumn() *BoolColumn {
	return &BoolColumn{
		values: make([]uint64, 0, 16),
	}
}

func (c *BoolColumn) Type() ColumnType { return ColumnTypeBool }
func (c *BoolColumn) Len() int         { return c.count }

func (c *BoolColumn) Get(i int) interface{} {
	wordIndex := i / 64
	bitIndex := i % 64
	return (c.values[wordIndex] & (1 << bitIndex)) != 0
}

func (c *BoolColumn) Append(value interface{}) error {
	boolVal, ok := value.(bool)
	if !ok {
		return errors.Newf(errors.ErrorTypeData, "expected bool, got %T", value)
	}

	wordIndex := c.count / 64
	bitIndex := c.count % 64

	if wordIndex >= len(c.values) {
		c.values = append(c.values, 0)
	}

	if boolVal {
		c.values[wordIndex] |= 1 << bitIndex
	}

	c.count++
	return nil
}

func (c *BoolColumn) AppendZero() { _ = c.Append(false) }

func (c *BoolColumn) Reset() {
	c.values = c.values[:0]
	c.count = 0
}

func (c *BoolColumn) MemoryUsage() int64 {
	return int64(len(c.values) * 8)
}

// TimestampColumn stores timestamps as unix nanoseconds
type TimestampColumn struct {
	values []int64
}

// NewTimestampColumn creates a new timestamp column
func NewTimestampColumn() *TimestampColumn {
	return &TimestampColumn{
		values: make([]int64, 0, 1024),
	}
}

func (c *TimestampColumn) Type() ColumnType { return ColumnTypeTimestamp }
func (c *TimestampColumn) Len() int         { return len(c.values) }

func (c *TimestampColumn) Get(i int) interface{} {
	return time.Unix(0, c.values[i])
}

func (c *TimestampColumn) Append(value interface{}) error {
	var ts int64
	switch v := value.(type) {
	case time.Time:
		ts = v.UnixNano()
	case int64:
		ts = v
	default:
		return errors.Newf(errors.ErrorTypeData, "expected timestamp, got %T", value)
	}

	c.values = append(c.values, ts)
	return nil
}

func (c *TimestampColumn) AppendZero() { _ = c.Append(int64(0)) }

func (c *TimestampColumn) Reset() {
	c.values = c.values[:0]
}

func (c *TimestampColumn) MemoryUsage() int64 {
	return int64(len(c.values) * 8)
}
