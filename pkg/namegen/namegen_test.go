package namegen

import (
	"sync"
	"testing"

	"github.com/panbanda/veil/pkg/lexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestName(t *testing.T) {
	assert.Equal(t, "O100000000", Name(Outer, 0))
	assert.Equal(t, "l100000001", Name(Inner, 1))
	assert.Equal(t, "O111111111", Name(Outer, 255))
	assert.Equal(t, "l1000000000", Name(Inner, 256))
}

func TestName_Injective(t *testing.T) {
	seen := make(map[string]int)
	for i := 0; i < 5000; i++ {
		for _, f := range []Family{Outer, Inner} {
			name := Name(f, i)
			require.True(t, lexer.IsIdentifier(name), "%q is not an identifier", name)

			// The body without the prefix must already be unique per ordinal.
			body := name[1:]
			if prev, ok := seen[body]; ok {
				require.Equal(t, i, prev, "ordinals %d and %d share body %s", prev, i, body)
			}
			seen[body] = i
		}
	}
}

func TestParse(t *testing.T) {
	for _, ord := range []int{0, 1, 77, 255, 256, 100000} {
		for _, f := range []Family{Outer, Inner} {
			gotF, gotOrd, ok := Parse(Name(f, ord))
			require.True(t, ok)
			assert.Equal(t, f, gotF)
			assert.Equal(t, ord, gotOrd)
		}
	}

	for _, bad := range []string{"", "O1", "X100000000", "O0100000000", "O10000000x", "O011111111"} {
		_, _, ok := Parse(bad)
		assert.False(t, ok, bad)
	}
}

func TestCounter(t *testing.T) {
	c := NewCounter(0)
	assert.Equal(t, 0, c.Next())
	assert.Equal(t, 1, c.Next())
	assert.Equal(t, 2, c.Peek())

	c.Reserve(10)
	assert.Equal(t, 11, c.Next())
	c.Reserve(3)
	assert.Equal(t, 12, c.Peek())

	issued := c.Issued()
	assert.True(t, issued.Contains(0))
	assert.True(t, issued.Contains(3))
	assert.True(t, issued.Contains(10))
	assert.False(t, issued.Contains(5))
	assert.Equal(t, 5, c.Count())
}

func TestCounter_Concurrent(t *testing.T) {
	c := NewCounter(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Next()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, c.Count())
	assert.Equal(t, 800, c.Peek())
}
