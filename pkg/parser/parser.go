// Package parser turns Cypher source text into the typed AST defined in
// pkg/ast. The grammar is declared once, declaratively, as participle struct
// tags (grammar.go, patterns.go, expr_grammar.go) rather than hand-written
// recursive descent, following the technique demonstrated by the sibling
// pgraph example's internal/dsl package. convert.go then lowers the
// resulting concrete syntax tree into pkg/ast.
package parser

import (
	"github.com/alecthomas/participle/v2"

	"github.com/graphforge/graphforge/pkg/ast"
)

var cypherParser = participle.MustBuild[GrammarAST](
	participle.Lexer(cypherLexer),
	participle.CaseInsensitive("Keyword"),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(4),
)

// Parse compiles a single Cypher statement into an *ast.Query. A non-nil
// *ParseError carries the offending token's line/column when participle's
// lexer or grammar rejects the input. Errors raised while lowering the
// syntax tree into pkg/ast carry no position (line and column are 0).
func Parse(source string) (*ast.Query, *ParseError) {
	cst, err := cypherParser.ParseString("", source)
	if err != nil {
		if perr, ok := err.(participle.Error); ok {
			pos := perr.Position()
			return nil, newParseError(pos.Line, pos.Column, "%s", perr.Message())
		}
		return nil, newParseError(0, 0, "%s", err.Error())
	}
	return convertGrammar(cst)
}
