package pool

import (
	"sync"
	"testing"
)

func TestConfigure(t *testing.T) {
	origConfig := globalConfig
	defer func() { Configure(origConfig) }()

	t.Run("enable pooling", func(t *testing.T) {
		Configure(PoolConfig{Enabled: true, MaxSize: 500})
		if !IsEnabled() {
			t.Error("IsEnabled() = false, want true")
		}
		if globalConfig.MaxSize != 500 {
			t.Errorf("MaxSize = %d, want 500", globalConfig.MaxSize)
		}
	})

	t.Run("disable pooling", func(t *testing.T) {
		Configure(PoolConfig{Enabled: false, MaxSize: 1000})
		if IsEnabled() {
			t.Error("IsEnabled() = true, want false")
		}
	})
}

func TestStringSlicePool(t *testing.T) {
	Configure(PoolConfig{Enabled: true, MaxSize: 1000})

	t.Run("get returns empty slice", func(t *testing.T) {
		s := GetStringSlice()
		if len(s) != 0 {
			t.Errorf("len = %d, want 0", len(s))
		}
		if cap(s) == 0 {
			t.Error("cap should be > 0 (pre-allocated)")
		}
		PutStringSlice(s)
	})

	t.Run("put and reuse", func(t *testing.T) {
		s := GetStringSlice()
		s = append(s, "Person", "Admin")
		PutStringSlice(s)

		s2 := GetStringSlice()
		if len(s2) != 0 {
			t.Errorf("reused slice len = %d, want 0", len(s2))
		}
	})

	t.Run("disabled pool allocates fresh", func(t *testing.T) {
		Configure(PoolConfig{Enabled: false, MaxSize: 1000})
		defer Configure(PoolConfig{Enabled: true, MaxSize: 1000})

		s := GetStringSlice()
		if cap(s) == 0 {
			t.Error("expected a usable fresh slice")
		}
		PutStringSlice(s) // no-op when disabled, must not panic
	})

	t.Run("oversized slice is not pooled", func(t *testing.T) {
		Configure(PoolConfig{Enabled: true, MaxSize: 4})
		defer Configure(PoolConfig{Enabled: true, MaxSize: 1000})

		big := make([]string, 0, 100)
		PutStringSlice(big) // must not panic, just dropped
	})
}

func TestStringBuilderPool(t *testing.T) {
	Configure(PoolConfig{Enabled: true, MaxSize: 1000})

	b := GetStringBuilder()
	b.WriteString("MATCH (n) ")
	b.WriteByte('R')
	b.WriteString("ETURN n")

	if got, want := b.String(), "MATCH (n) RETURN n"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if b.Len() != len("MATCH (n) RETURN n") {
		t.Errorf("Len() = %d, want %d", b.Len(), len("MATCH (n) RETURN n"))
	}

	b.Reset()
	if b.Len() != 0 {
		t.Error("Reset() should clear the builder")
	}

	PutStringBuilder(b)

	b2 := GetStringBuilder()
	if b2.Len() != 0 {
		t.Error("builder from pool should start empty")
	}
}

func TestByteBufferPool(t *testing.T) {
	Configure(PoolConfig{Enabled: true, MaxSize: 1000})

	buf := GetByteBuffer()
	if len(buf) != 0 {
		t.Errorf("len = %d, want 0", len(buf))
	}
	buf = append(buf, []byte(`{"ok":true}`)...)
	PutByteBuffer(buf)

	buf2 := GetByteBuffer()
	if len(buf2) != 0 {
		t.Errorf("reused buffer len = %d, want 0", len(buf2))
	}

	huge := make([]byte, 0, 2*1024*1024)
	PutByteBuffer(huge) // must not panic; oversized buffers are dropped
}

func TestPoolsAreConcurrencySafe(t *testing.T) {
	Configure(PoolConfig{Enabled: true, MaxSize: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := GetStringSlice()
			s = append(s, "x")
			PutStringSlice(s)

			b := GetStringBuilder()
			b.WriteString("y")
			PutStringBuilder(b)

			buf := GetByteBuffer()
			buf = append(buf, 'z')
			PutByteBuffer(buf)
		}()
	}
	wg.Wait()
}
