package columnar

import (
	"time"

	"github.com/columnforge/stripewriter/pkg/errors"
)

// Schema defines the columns of a stripe buffer
type Schema struct {
	Fields []FieldSchema
}

// FieldSchema defines a single field in the schema
type FieldSchema struct {
	Name string
	Type ColumnType
}

// Buffer accumulates one stripe's worth of rows in columnar form. It is
// owned by a single writer goroutine and performs no locking.
type Buffer struct {
	schema   Schema
	columns  []Column
	byName   map[string]Column
	rowCount int
}

// NewBuffer creates a stripe buffer for the given schema.
func NewBuffer(schema Schema) (*Buffer, error) {
	if len(schema.Fields) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "schema must have at least one field")
	}

	b := &Buffer{
		schema:  schema,
		columns: make([]Column, 0, len(schema.Fields)),
		byName:  make(map[string]Column, len(schema.Fields)),
	}
	for _, field := range schema.Fields {
		if _, exists := b.byName[field.Name]; exists {
			return nil, errors.Newf(errors.ErrorTypeConfig, "duplicate field %q", field.Name)
		}
		col := newColumn(field.Type)
		b.columns = append(b.columns, col)
		b.byName[field.Name] = col
	}
	return b, nil
}

func newColumn(colType ColumnType) Column {
	switch colType {
	case ColumnTypeInt:
		return NewIntColumn()
	case ColumnTypeFloat:
		return NewFloatColumn()
	case ColumnTypeBool:
		return NewBoolColumn()
	case ColumnTypeTimestamp:
		return NewTimestampColumn()
	default:
		return NewStringColumn()
	}
}

// InferSchema derives a schema from a sample row. Iteration order over the
// map is not stable, so field order follows the sample only by name.
func InferSchema(sample map[string]interface{}) Schema {
	fields := make([]FieldSchema, 0, len(sample))
	for name, value := range sample {
		fields = append(fields, FieldSchema{Name: name, Type: inferColumnType(value)})
	}
	return Schema{Fields: fields}
}

func inferColumnType(value interface{}) ColumnType {
	switch value.(type) {
	case int, int32, int64, uint64:
		return ColumnTypeInt
	case float32, float64:
		return ColumnTypeFloat
	case bool:
		return ColumnTypeBool
	case time.Time:
		return ColumnTypeTimestamp
	default:
		return ColumnTypeString
	}
}

// AppendRow adds one row. Fields missing from the row get the column's zero
// value; fields not in the schema are ignored.
func (b *Buffer) AppendRow(row map[string]interface{}) error {
	for i, field := range b.schema.Fields {
		value, exists := row[field.Name]
		if !exists {
			b.columns[i].AppendZero()
			continue
		}
		if err := b.columns[i].Append(value); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "append to column "+field.Name)
		}
	}
	b.rowCount++
	return nil
}

// AppendBatch adds multiple rows.
func (b *Buffer) AppendBatch(rows []map[string]interface{}) error {
	for _, row := range rows {
		if err := b.AppendRow(row); err != nil {
			return err
		}
	}
	return nil
}

// RowCount returns the number of buffered rows.
func (b *Buffer) RowCount() int { return b.rowCount }

// Schema returns the buffer's schema.
func (b *Buffer) Schema() Schema { return b.schema }

// Column returns the named column.
func (b *Buffer) Column(name string) (Column, bool) {
	col, ok := b.byName[name]
	return col, ok
}

// Row materializes the row at the given index, mainly for tests and sinks.
func (b *Buffer) Row(index int) (map[string]interface{}, error) {
	if index < 0 || index >= b.rowCount {
		return nil, errors.Newf(errors.ErrorTypeValidation, "row index %d out of range [0, %d)", index, b.rowCount)
	}
	row := make(map[string]interface{}, len(b.schema.Fields))
	for i, field := range b.schema.Fields {
		row[field.Name] = b.columns[i].Get(index)
	}
	return row, nil
}

// MemoryUsage returns the total bytes held by all column buffers. The
// writer uses this as the stripe size estimate.
func (b *Buffer) MemoryUsage() int64 {
	var total int64
	for _, col := range b.columns {
		total += col.MemoryUsage()
	}
	return total
}

// DictionaryMemoryUsage returns the bytes held by dictionary state across
// all columns.
func (b *Buffer) DictionaryMemoryUsage() int64 {
	var total int64
	for _, col := range b.columns {
		if dc, ok := col.(DictionaryColumn); ok {
			total += dc.DictionaryMemoryUsage()
		}
	}
	return total
}

// EvaluateDictionaries abandons the dictionary on every column whose
// cardinality ratio exceeds maxCardinalityRatio. It returns the number of
// columns converted to direct encoding.
func (b *Buffer) EvaluateDictionaries(maxCardinalityRatio float64) int {
	abandoned := 0
	for _, col := range b.columns {
		dc, ok := col.(DictionaryColumn)
		if !ok || !dc.DictionaryEncoded() || dc.Len() == 0 {
			continue
		}
		if dc.DictionaryCardinalityRatio() > maxCardinalityRatio {
			dc.AbandonDictionary()
			abandoned++
		}
	}
	return abandoned
}

// AbandonDictionaries converts every dictionary-encoded column to direct
// encoding, regardless of effectiveness. Used under memory pressure.
func (b *Buffer) AbandonDictionaries() int {
	abandoned := 0
	for _, col := range b.columns {
		if dc, ok := col.(DictionaryColumn); ok && dc.DictionaryEncoded() {
			dc.AbandonDictionary()
			abandoned++
		}
	}
	return abandoned
}

// Reset clears all columns for the next stripe and re-enables dictionary
// encoding.
func (b *Buffer) Reset() {
	for _, col := range b.columns {
		col.Reset()
	}
	b.rowCount = 0
}
