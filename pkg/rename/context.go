package rename

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/panbanda/veil/pkg/keep"
	"github.com/panbanda/veil/pkg/lexer"
	"github.com/panbanda/veil/pkg/namegen"
)

type pinKind uint8

const (
	pinPositional pinKind = 1 << iota
	pinDirective
)

// Decision is the classification of one token. Name is set only when the
// token is renameable.
type Decision struct {
	Token  lexer.Token `json:"token"`
	Reason Reason      `json:"reason"`
	Name   string      `json:"name,omitempty"`
}

// Stats counts classification outcomes across a batch.
type Stats struct {
	Tokens    int            `json:"tokens"`
	Renamed   int            `json:"renamed"`
	Protected int            `json:"protected"`
	Unique    int            `json:"unique"`
	Allocated int            `json:"allocated"`
	ByReason  map[string]int `json:"by_reason"`
}

// Context is the batch-wide naming state: the keep set, the ReplacementMap,
// the ordinal counter and the texts pinned by positional protection.
//
// Pin every file of a batch before classifying any of them. Pin is safe for
// concurrent use and order independent; Classify and Allocate serialize on
// the context and must be driven in a fixed file order for reproducible
// names.
type Context struct {
	keep    *keep.Set
	logger  *zap.Logger
	counter *namegen.Counter

	mu        sync.Mutex
	names     *Map
	used      map[string]struct{}
	pinned    map[string]pinKind
	seen      map[string]struct{}
	protected map[string]Reason
	stats     Stats
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used for allocation tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCounter replaces the ordinal counter, for example to continue numbering
// after a previously persisted map.
func WithCounter(counter *namegen.Counter) Option {
	return func(c *Context) {
		if counter != nil {
			c.counter = counter
		}
	}
}

// NewContext returns an empty context protecting the identifiers in set.
func NewContext(set *keep.Set, opts ...Option) *Context {
	c := &Context{
		keep:      set,
		logger:    zap.NewNop(),
		counter:   namegen.NewCounter(0),
		names:     NewMap(),
		used:      make(map[string]struct{}),
		pinned:    make(map[string]pinKind),
		seen:      make(map[string]struct{}),
		protected: make(map[string]Reason),
		stats:     Stats{ByReason: make(map[string]int)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seed loads pairs from an earlier run into the map and reserves their
// ordinals so new names continue after them. Pairs whose original is now
// protected or pinned are not mapped, but their names stay reserved. Call it
// after pinning and before Classify.
func (c *Context) Seed(pairs []Pair) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range pairs {
		if !lexer.IsIdentifier(p.Original) {
			return &InvariantError{Subject: p.Original, Detail: "is not an identifier"}
		}
		_, ord, ok := namegen.Parse(p.Synthetic)
		if !ok {
			return &InvariantError{Subject: p.Synthetic, Detail: "is not a generated name"}
		}
		if _, ok := c.used[p.Synthetic]; ok {
			return &InvariantError{Subject: p.Synthetic, Detail: "is already used as a synthetic name"}
		}
		c.used[p.Synthetic] = struct{}{}
		c.counter.Reserve(ord)
		if classifyText(p.Original, c.keep).Protected() || c.pinned[p.Original] != 0 {
			continue
		}
		if err := c.names.add(p.Original, p.Synthetic); err != nil {
			return err
		}
	}
	return nil
}

// Pin records the texts of f that are protected by position (scope qualifier
// or cast) and every word that appears in a preprocessor line. Such texts are
// protected at all of their occurrences in the batch.
func (c *Context) Pin(f *lexer.File) {
	local := make(map[string]pinKind)
	for _, tok := range f.Tokens {
		if classifyText(tok.Text, c.keep).Protected() {
			continue
		}
		if classifyPosition(f.Src, tok).Protected() {
			local[tok.Text] |= pinPositional
		}
	}
	for _, w := range lexer.DirectiveWords(f.Src, f.Spans) {
		if classifyText(w, c.keep).Protected() {
			continue
		}
		local[w] |= pinDirective
	}
	if len(local) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for text, k := range local {
		c.pinned[text] |= k
	}
}

func (c *Context) reasonLocked(src []byte, tok lexer.Token) Reason {
	if r := Classify(src, tok, c.keep); r.Protected() {
		return r
	}
	switch k := c.pinned[tok.Text]; {
	case k&pinDirective != 0:
		return ProtectedDirective
	case k != 0:
		return ProtectedPinned
	}
	return Renameable
}

// Classify decides every token of f and assigns synthetic names to
// renameable identifiers, extending the map on first sight. The returned
// decisions are in token order.
func (c *Context) Classify(f *lexer.File) ([]Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Decision, len(f.Tokens))
	for i, tok := range f.Tokens {
		d := Decision{Token: tok, Reason: c.reasonLocked(f.Src, tok)}
		c.stats.Tokens++
		if _, ok := c.seen[tok.Text]; !ok {
			c.seen[tok.Text] = struct{}{}
			c.stats.Unique++
		}

		if d.Reason.Protected() {
			c.stats.Protected++
			c.stats.ByReason[d.Reason.String()]++
			if _, ok := c.protected[tok.Text]; !ok {
				c.protected[tok.Text] = d.Reason
			}
			out[i] = d
			continue
		}

		name, ok := c.names.Lookup(tok.Text)
		if !ok {
			var err error
			name, err = c.allocLocked(familyFor(f.Src, tok))
			if err != nil {
				return nil, err
			}
			if err := c.names.add(tok.Text, name); err != nil {
				return nil, err
			}
			c.stats.Allocated++
			c.logger.Debug("allocated name",
				zap.String("identifier", tok.Text),
				zap.String("name", name))
		}
		d.Name = name
		c.stats.Renamed++
		c.stats.ByReason[Renameable.String()]++
		out[i] = d
	}
	return out, nil
}

// Allocate issues a fresh synthetic name that is not in the map. It is used
// for injected dead code, which must not share names with real identifiers.
func (c *Context) Allocate(f namegen.Family) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.allocLocked(f)
}

func (c *Context) allocLocked(f namegen.Family) (string, error) {
	name := namegen.Name(f, c.counter.Next())
	switch {
	case keep.IsKeyword(name) || c.keep.Contains(name):
		return "", &InvariantError{Subject: name, Detail: "collides with a protected identifier"}
	case c.pinned[name] != 0:
		return "", &InvariantError{Subject: name, Detail: "collides with a pinned identifier"}
	}
	if _, ok := c.used[name]; ok {
		return "", &InvariantError{Subject: name, Detail: "was already issued"}
	}
	c.used[name] = struct{}{}
	return name, nil
}

// Map returns the ReplacementMap. Do not read it while Classify is running.
func (c *Context) Map() *Map {
	return c.names
}

// Counter returns the ordinal counter.
func (c *Context) Counter() *namegen.Counter {
	return c.counter
}

// Stats returns a snapshot of the classification counters.
func (c *Context) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.ByReason = make(map[string]int, len(c.stats.ByReason))
	for k, v := range c.stats.ByReason {
		s.ByReason[k] = v
	}
	return s
}

// ProtectedNames returns every identifier text that kept its name, with the
// reason of its first protected occurrence, sorted by text.
func (c *Context) ProtectedNames() []Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Decision, 0, len(c.protected))
	for text, r := range c.protected {
		out = append(out, Decision{Token: lexer.Token{Text: text}, Reason: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token.Text < out[j].Token.Text })
	return out
}
