// Package pool provides object pooling for GraphForge's hot allocation
// paths — scratch string slices (label lists, Stringify's join buffer),
// plus string-builder and byte-buffer pools that no other GraphForge
// package draws from — to cut GC
// pressure on high-frequency operations without changing any API's
// semantics.
package pool

import (
	"sync"
)

// PoolConfig configures object pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active.
	Enabled bool

	// MaxSize is the largest capacity a string slice may have and still be
	// returned to its pool by PutStringSlice.
	MaxSize int
}

var globalConfig = PoolConfig{
	Enabled: true,
	MaxSize: 1000,
}

// Configure sets the global pool configuration. Call early during
// initialization, before any Get/Put traffic.
func Configure(config PoolConfig) {
	globalConfig = config
	initPools()
}

func initPools() {
	stringBuilderPool = sync.Pool{
		New: func() any {
			return &PooledStringBuilder{buf: make([]byte, 0, 256)}
		},
	}
	byteBufferPool = sync.Pool{
		New: func() any {
			return make([]byte, 0, 1024)
		},
	}
	stringSlicePool = sync.Pool{
		New: func() any {
			return make([]string, 0, 16)
		},
	}
}

// IsEnabled reports whether pooling is active.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// =============================================================================
// String Slice Pool (label lists, Stringify's join scratch)
// =============================================================================

var stringSlicePool = sync.Pool{
	New: func() any {
		return make([]string, 0, 16)
	},
}

// GetStringSlice returns a zero-length string slice from the pool. Callers
// must not retain the slice past the matching PutStringSlice — it must be
// copied (or fully consumed, e.g. strings.Join'd) before release.
func GetStringSlice() []string {
	if !globalConfig.Enabled {
		return make([]string, 0, 16)
	}
	return stringSlicePool.Get().([]string)[:0]
}

// PutStringSlice returns a string slice to the pool.
func PutStringSlice(s []string) {
	if !globalConfig.Enabled {
		return
	}
	if cap(s) > globalConfig.MaxSize {
		return
	}
	stringSlicePool.Put(s[:0])
}

// =============================================================================
// String Builder Pool
// =============================================================================

var stringBuilderPool = sync.Pool{
	New: func() any {
		return &PooledStringBuilder{buf: make([]byte, 0, 256)}
	},
}

// PooledStringBuilder is a poolable byte-accumulating string builder.
type PooledStringBuilder struct {
	buf []byte
}

func (b *PooledStringBuilder) WriteString(s string) { b.buf = append(b.buf, s...) }
func (b *PooledStringBuilder) WriteByte(c byte)      { b.buf = append(b.buf, c) }
func (b *PooledStringBuilder) String() string        { return string(b.buf) }
func (b *PooledStringBuilder) Len() int              { return len(b.buf) }
func (b *PooledStringBuilder) Reset()                { b.buf = b.buf[:0] }

// GetStringBuilder returns a reset string builder from the pool.
func GetStringBuilder() *PooledStringBuilder {
	if !globalConfig.Enabled {
		return &PooledStringBuilder{buf: make([]byte, 0, 256)}
	}
	b := stringBuilderPool.Get().(*PooledStringBuilder)
	b.Reset()
	return b
}

// PutStringBuilder returns a string builder to the pool.
func PutStringBuilder(b *PooledStringBuilder) {
	if !globalConfig.Enabled || b == nil {
		return
	}
	if cap(b.buf) > 64*1024 { // don't pool huge buffers
		return
	}
	b.Reset()
	stringBuilderPool.Put(b)
}

// =============================================================================
// Byte Buffer Pool
// =============================================================================

var byteBufferPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 1024)
	},
}

// GetByteBuffer returns a zero-length byte buffer from the pool.
func GetByteBuffer() []byte {
	if !globalConfig.Enabled {
		return make([]byte, 0, 1024)
	}
	return byteBufferPool.Get().([]byte)[:0]
}

// PutByteBuffer returns a byte buffer to the pool.
func PutByteBuffer(buf []byte) {
	if !globalConfig.Enabled {
		return
	}
	if cap(buf) > 1024*1024 { // don't pool huge buffers (>1MB)
		return
	}
	byteBufferPool.Put(buf[:0])
}
