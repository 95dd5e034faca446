package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_ResetOnReturn(t *testing.T) {
	p := New(
		func() *bytes.Buffer { return &bytes.Buffer{} },
		func(b *bytes.Buffer) { b.Reset() },
	)

	buf := p.Get()
	buf.WriteString("stripe payload")
	p.Put(buf)

	reused := p.Get()
	assert.Zero(t, reused.Len(), "buffers come back empty")

	allocated, gets := p.Stats()
	assert.GreaterOrEqual(t, allocated, int64(1))
	assert.Equal(t, int64(2), gets)
}

func TestBufferPool_DropsOversized(t *testing.T) {
	buf := GetBuffer()
	assert.Zero(t, buf.Len())
	buf.Write(make([]byte, maxPooledBufferCap+1))
	// Must not panic; the oversized buffer is simply dropped.
	PutBuffer(buf)

	small := GetBuffer()
	small.WriteString("x")
	PutBuffer(small)
}
