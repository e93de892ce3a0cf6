// Package namegen maps ordinals to synthetic identifiers.
//
// A name is a one-letter family prefix followed by the binary digits of
// ordinal+0x100, e.g. ordinal 0 in the outer family is "O100000000". The
// digit body alone is injective in the ordinal, so the family letter never
// affects uniqueness. The body always has at least nine digits.
package namegen

import (
	"strconv"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Family selects the visual prefix of a synthetic name.
type Family uint8

const (
	// Outer is used for functions, types and other file-level symbols.
	Outer Family = iota
	// Inner is used for locals, parameters and fields.
	Inner
)

const bodyBase = 0x100

// Prefix returns the leading letter for the family.
func (f Family) Prefix() byte {
	if f == Inner {
		return 'l'
	}
	return 'O'
}

func (f Family) String() string {
	if f == Inner {
		return "inner"
	}
	return "outer"
}

// Name returns the synthetic identifier for ordinal in family f.
func Name(f Family, ordinal int) string {
	buf := make([]byte, 0, 16)
	buf = append(buf, f.Prefix())
	buf = strconv.AppendInt(buf, int64(ordinal)+bodyBase, 2)
	return string(buf)
}

// Parse recovers the family and ordinal from a name produced by Name.
func Parse(name string) (Family, int, bool) {
	if len(name) < 10 {
		return 0, 0, false
	}
	var f Family
	switch name[0] {
	case 'O':
		f = Outer
	case 'l':
		f = Inner
	default:
		return 0, 0, false
	}
	if name[1] != '1' {
		return 0, 0, false
	}
	v, err := strconv.ParseInt(name[1:], 2, 64)
	if err != nil || v < bodyBase {
		return 0, 0, false
	}
	return f, int(v - bodyBase), true
}

// Counter hands out ordinals in increasing order and records every ordinal
// it has issued. It is safe for concurrent use.
type Counter struct {
	mu     sync.Mutex
	next   int
	issued *roaring.Bitmap
}

// NewCounter returns a counter whose first ordinal is start.
func NewCounter(start int) *Counter {
	return &Counter{next: start, issued: roaring.New()}
}

// Next allocates the next ordinal.
func (c *Counter) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.next
	c.next++
	c.issued.Add(uint32(n))
	return n
}

// Reserve marks ordinal as issued without allocating it, and moves the
// counter past it. Used when seeding from an earlier mapping.
func (c *Counter) Reserve(ordinal int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issued.Add(uint32(ordinal))
	if ordinal >= c.next {
		c.next = ordinal + 1
	}
}

// Peek returns the ordinal the next call to Next will return.
func (c *Counter) Peek() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// Issued returns a snapshot of every ordinal issued so far.
func (c *Counter) Issued() *roaring.Bitmap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.issued.Clone()
}

// Count returns how many ordinals have been issued.
func (c *Counter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.issued.GetCardinality())
}
