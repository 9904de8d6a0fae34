package parser

import "github.com/alecthomas/participle/v2/lexer"

// cypherLexer tokenizes Cypher source. Like the sibling pgraph example's
// dslLexer, keywords are matched as a single case-insensitive alternation so
// participle.CaseInsensitive can elide case without touching identifiers
// (Cypher identifiers are case-sensitive per spec.md §4.1, keywords are not).
var cypherLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Keyword", Pattern: `(?i)\b(MATCH|OPTIONAL|WHERE|WITH|RETURN|ORDER|BY|SKIP|LIMIT|ASC|ASCENDING|DESC|DESCENDING|CREATE|MERGE|ON|SET|REMOVE|DELETE|DETACH|UNWIND|UNION|ALL|ANY|NONE|SINGLE|AND|OR|XOR|NOT|IN|IS|NULL|TRUE|FALSE|AS|DISTINCT|STARTS|ENDS|CONTAINS|CASE|WHEN|THEN|ELSE|END|EXISTS|COUNT)\b`},
	{Name: "Float", Pattern: `\d+\.\d+([eE][+-]?\d+)?`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "String", Pattern: `"([^"\\]|\\.)*"|'([^'\\]|\\.)*'`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Param", Pattern: `\$[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Op", Pattern: `<>|<=|>=|\+=|[-+*/%=<>.,:;()\[\]{}|$]`},
	{Name: "Whitespace", Pattern: `\s+`},
})
