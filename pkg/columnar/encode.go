package columnar

import (
	"encoding/binary"
	"io"
	"math"
)

// Stripe encodings are little-endian. A string column is preceded by an
// encoding marker so readers know whether a dictionary follows.
const (
	stringEncodingDirect     = byte(0)
	stringEncodingDictionary = byte(1)
)

func writeUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func writeString(w io.Writer, s string) error {
	if err := writeUvarint(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// EncodeTo writes either the dictionary encoding (value table plus codes)
// or the direct encoding, depending on the column's current mode.
func (c *StringColumn) EncodeTo(w io.Writer) error {
	if c.dictMode {
		if _, err := w.Write([]byte{stringEncodingDictionary}); err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(len(c.dictValues))); err != nil {
			return err
		}
		for _, v := range c.dictValues {
			if err := writeString(w, v); err != nil {
				return err
			}
		}
		if err := writeUvarint(w, uint64(len(c.codes))); err != nil {
			return err
		}
		for _, code := range c.codes {
			if err := writeUvarint(w, uint64(code)); err != nil {
				return err
			}
		}
		return nil
	}

	if _, err := w.Write([]byte{stringEncodingDirect}); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(len(c.values))); err != nil {
		return err
	}
	for _, v := range c.values {
		if err := writeString(w, v); err != nil {
			return err
		}
	}
	return nil
}

// EncodeTo writes the values as little-endian 64-bit integers.
func (c *IntColumn) EncodeTo(w io.Writer) error {
	if err := writeUvarint(w, uint64(len(c.values))); err != nil {
		return err
	}
	var buf [8]byte
	for _, v := range c.values {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// EncodeTo writes the values as little-endian IEEE 754 doubles.
func (c *FloatColumn) EncodeTo(w io.Writer) error {
	if err := writeUvarint(w, uint64(len(c.values))); err != nil {
		return err
	}
	var buf [8]byte
	for _, v := range c.values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// EncodeTo writes the bit-packed words.
func (c *BoolColumn) EncodeTo(w io.Writer) error {
	if err := writeUvarint(w, uint64(c.count)); err != nil {
		return err
	}
	var buf [8]byte
	for _, word := range c.values {
		binary.LittleEndian.PutUint64(buf[:], word)
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// EncodeTo writes the values as little-endian unix nanoseconds.
func (c *TimestampColumn) EncodeTo(w io.Writer) error {
	if err := writeUvarint(w, uint64(len(c.values))); err != nil {
		return err
	}
	var buf [8]byte
	for _, v := range c.values {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

// Encode writes every column of the buffer, preceded by its field name and
// type, in schema order.
func (b *Buffer) Encode(w io.Writer) error {
	if err := writeUvarint(w, uint64(len(b.schema.Fields))); err != nil {
		return err
	}
	for i, field := range b.schema.Fields {
		if err := writeString(w, field.Name); err != nil {
			return err
		}
		if _, err := w.Write([]byte{byte(field.Type)}); err != nil {
			return err
		}
		if err := b.columns[i].EncodeTo(w); err != nil {
			return err
		}
	}
	return nil
}
