package keep

// cKeywords lists C keywords through C23, including the underscore forms.
var cKeywords = []string{
	"auto", "break", "case", "char", "const", "continue", "default", "do",
	"double", "else", "enum", "extern", "float", "for", "goto", "if", "inline",
	"int", "long", "register", "restrict", "return", "short", "signed",
	"sizeof", "static", "struct", "switch", "typedef", "union", "unsigned",
	"void", "volatile", "while",
	"_Alignas", "_Alignof", "_Atomic", "_Bool", "_Complex", "_Generic",
	"_Imaginary", "_Noreturn", "_Static_assert", "_Thread_local",
	"_BitInt", "_Decimal32", "_Decimal64", "_Decimal128", "typeof",
	"typeof_unqual",
}

// cppKeywords lists C++ keywords, alternative tokens and contextual
// identifiers that must never be renamed.
var cppKeywords = []string{
	"alignas", "alignof", "and", "and_eq", "asm", "bitand", "bitor", "bool",
	"catch", "char8_t", "char16_t", "char32_t", "class", "compl", "concept",
	"consteval", "constexpr", "constinit", "const_cast", "co_await",
	"co_return", "co_yield", "decltype", "delete", "dynamic_cast", "explicit",
	"export", "false", "final", "friend", "import", "module", "mutable",
	"namespace", "new", "noexcept", "not", "not_eq", "nullptr", "operator",
	"or", "or_eq", "override", "private", "protected", "public",
	"reinterpret_cast", "requires", "static_assert", "static_cast",
	"template", "this", "thread_local", "throw", "true", "try", "typeid",
	"typename", "using", "virtual", "wchar_t", "xor", "xor_eq",
}

// stdNames is the built-in standard-library set: names a translation unit
// commonly uses from the C and C++ standard libraries without qualification.
var stdNames = []string{
	// namespaces and common types
	"std", "size_t", "ssize_t", "ptrdiff_t", "nullptr_t", "intptr_t",
	"uintptr_t", "int8_t", "int16_t", "int32_t", "int64_t", "uint8_t",
	"uint16_t", "uint32_t", "uint64_t", "FILE", "NULL", "EOF", "errno",
	"string", "wstring", "string_view", "vector", "array", "deque", "list",
	"forward_list", "map", "multimap", "unordered_map", "set", "multiset",
	"unordered_set", "stack", "queue", "priority_queue", "pair", "tuple",
	"bitset", "optional", "variant", "any", "function", "shared_ptr",
	"unique_ptr", "weak_ptr", "make_shared", "make_unique", "make_pair",
	"make_tuple", "tie", "get", "iterator", "const_iterator", "begin", "end",
	"rbegin", "rend", "size", "empty", "push_back", "emplace_back",
	"pop_back", "push_front", "pop_front", "push", "pop", "top", "front",
	"back", "insert", "erase", "find", "count", "clear", "resize", "reserve",
	"first", "second", "emplace", "at", "data", "substr", "length",
	"c_str", "lower_bound", "upper_bound", "equal_range",
	// iostream
	"cout", "cin", "cerr", "clog", "endl", "flush", "getline", "ios",
	"ios_base", "sync_with_stdio", "tie", "istream", "ostream", "iostream",
	"ifstream", "ofstream", "fstream", "stringstream", "istringstream",
	"ostringstream", "setw", "setprecision", "fixed",
	// algorithm and numeric
	"sort", "stable_sort", "reverse", "unique", "min", "max", "swap",
	"min_element", "max_element", "accumulate", "fill", "memset", "copy",
	"next_permutation", "prev_permutation", "binary_search", "abs",
	"gcd", "lcm", "iota", "partial_sum", "transform", "for_each",
	"numeric_limits", "greater", "less", "hash",
	// cstdio, cstdlib, cstring, cmath
	"printf", "scanf", "puts", "gets", "fgets", "fputs", "putchar",
	"getchar", "fprintf", "fscanf", "sprintf", "snprintf", "sscanf",
	"fopen", "fclose", "fread", "fwrite", "stdin", "stdout", "stderr",
	"malloc", "calloc", "realloc", "free", "exit", "atoi", "atol", "atoll",
	"strtol", "strtoll", "strtod", "qsort", "bsearch", "rand", "srand",
	"memcpy", "memmove", "memcmp", "strlen", "strcpy", "strncpy", "strcmp",
	"strncmp", "strcat", "strchr", "strstr", "sqrt", "pow", "floor", "ceil",
	"round", "log", "log2", "log10", "exp", "sin", "cos", "tan", "atan2",
	"fabs", "time", "clock", "assert",
}
