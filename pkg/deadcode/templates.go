package deadcode

import (
	"strconv"
	"strings"

	"github.com/panbanda/veil/pkg/namegen"
)

// FragmentKind distinguishes injected functions from injected types.
type FragmentKind uint8

const (
	KindFunction FragmentKind = iota
	KindClass
)

func (k FragmentKind) String() string {
	if k == KindClass {
		return "class"
	}
	return "function"
}

// Template is a fragment body with numbered symbol slots written as ${N}.
// Slot 0 is the fragment's own top-level name. Every other identifier in a
// body must be a keyword, so a rendered fragment can reference nothing but
// its own symbols.
type Template struct {
	Name  string
	Kind  FragmentKind
	Slots int
	Body  string
}

// Render substitutes names into the slots. names must have Slots entries.
func (t Template) Render(names []string) string {
	pairs := make([]string, 0, 2*len(names))
	for i, n := range names {
		pairs = append(pairs, "${"+strconv.Itoa(i)+"}", n)
	}
	return strings.NewReplacer(pairs...).Replace(t.Body)
}

// Family returns the name family used for slot i.
func (t Template) Family(i int) namegen.Family {
	if i == 0 {
		return namegen.Outer
	}
	return namegen.Inner
}

// Functions are valid in both C and C++.
var Functions = []Template{
	{Name: "modular-sum", Kind: KindFunction, Slots: 5, Body: `int ${0}(int ${1}, int ${2}) {
    int ${3} = 0;
    for (int ${4} = 0; ${4} < ${1}; ++${4}) {
        ${3} += (${4} * ${2}) % 997;
    }
    return ${3};
}
`},
	{Name: "xor-reduce", Kind: KindFunction, Slots: 5, Body: `int ${0}(const int *${1}, int ${2}) {
    int ${3} = 0;
    for (int ${4} = 0; ${4} < ${2}; ++${4}) {
        ${3} ^= ${1}[${4}];
    }
    return ${3};
}
`},
	{Name: "recursive-sum", Kind: KindFunction, Slots: 2, Body: `int ${0}(int ${1}) {
    if (${1} <= 1) return 1;
    return ${0}(${1} - 1) + ${0}(${1} - 2);
}
`},
	{Name: "string-hash", Kind: KindFunction, Slots: 3, Body: `unsigned ${0}(const char *${1}) {
    unsigned ${2} = 0;
    while (*${1}) {
        ${2} = ${2} * 31u + (unsigned char)*${1}++;
    }
    return ${2};
}
`},
	{Name: "bit-rotate", Kind: KindFunction, Slots: 4, Body: `unsigned ${0}(unsigned ${1}, unsigned ${2}) {
    unsigned ${3} = ${1} ^ ${2};
    ${3} = (${3} << 3) | (${3} >> 29);
    return ${3} & 0xFFFFFFFFu;
}
`},
}

// Classes are C++ only.
var Classes = []Template{
	{Name: "value-holder", Kind: KindClass, Slots: 7, Body: `class ${0} {
private:
    int ${1};
    int ${2};
public:
    ${0}() : ${1}(0), ${2}(0) {}
    void ${3}(int ${4}) { ${1} = ${4}; ${2}++; }
    int ${5}() const { return ${1}; }
    int ${6}() const { return ${2}; }
};
`},
	{Name: "accumulator", Kind: KindClass, Slots: 8, Body: `class ${0} {
private:
    double ${1};
public:
    explicit ${0}(double ${2} = 0.0) : ${1}(${2}) {}
    void ${3}(double ${4}) { ${1} += ${4}; }
    void ${5}(double ${4}) { ${1} *= ${4}; }
    double ${6}() const { return ${1}; }
    void ${7}() { ${1} = 0.0; }
};
`},
	{Name: "bounded-stack", Kind: KindClass, Slots: 8, Body: `class ${0} {
private:
    int *${1};
    int ${2};
    int ${3};
public:
    explicit ${0}(int ${4}) : ${1}(new int[${4}]), ${2}(${4}), ${3}(0) {}
    ~${0}() { delete[] ${1}; }
    void ${5}(int ${6}) {
        if (${3} < ${2}) ${1}[${3}++] = ${6};
    }
    int ${7}() { return ${3} > 0 ? ${1}[--${3}] : 0; }
};
`},
}

// Structs replace Classes in C files.
var Structs = []Template{
	{Name: "pair-holder", Kind: KindClass, Slots: 3, Body: `struct ${0} {
    int ${1};
    int ${2};
};
`},
	{Name: "scaled-value", Kind: KindClass, Slots: 4, Body: `struct ${0} {
    double ${1};
    unsigned ${2};
    long ${3};
};
`},
}
