package parser

// PatternAST is a comma-separated list of path patterns, used by MATCH and
// CREATE (MERGE takes a single PathPatternAST, per spec.md §3.3).
type PatternAST struct {
	Paths []*PathPatternAST `parser:"@@ ( \",\" @@ )*"`
}

// PathPatternAST is `[var =] node (rel node)*`.
type PathPatternAST struct {
	PathVar string            `parser:"( @Ident \"=\" )?"`
	Head    *NodePatternAST   `parser:"@@"`
	Tail    []*PatternTailAST `parser:"@@*"`
}

type PatternTailAST struct {
	Rel  *RelPatternAST  `parser:"@@"`
	Node *NodePatternAST `parser:"@@"`
}

// NodePatternAST is `(var? :Label...|Label... {props}?  (WHERE pred)? )`.
// The label list is stored flat; a single `:A:B` is one DNF conjunct.
type NodePatternAST struct {
	Variable string         `parser:"\"(\" @Ident?"`
	Labels   []string       `parser:"( \":\" @Ident )*"`
	Props    *MapLiteralAST `parser:"@@?"`
	Where    *ExprAST       `parser:"( \"WHERE\" @@ )? \")\""`
}

// RelPatternAST is the arrow plus optional bracketed detail:
// `<-[detail]-`, `-[detail]->`, or `-[detail]-`.
type RelPatternAST struct {
	LeftArrow  bool          `parser:"(  @(\"<\" \"-\")"`
	PlainDash  bool          `parser:"|  @\"-\" )"`
	Detail     *RelDetailAST `parser:"( \"[\" @@ \"]\" )?"`
	RightArrow bool          `parser:"\"-\" @\">\"?"`
}

// RelDetailAST is `var? :TYPE|TYPE...  *min..max  {props}?  (WHERE pred)?`.
type RelDetailAST struct {
	Variable  string         `parser:"@Ident?"`
	Types     []string       `parser:"( \":\" @Ident ( \"|\" @Ident )* )?"`
	VarLength *VarLengthAST  `parser:"@@?"`
	Props     *MapLiteralAST `parser:"@@?"`
	Where     *ExprAST       `parser:"( \"WHERE\" @@ )?"`
}

// VarLengthAST is `* [min] [.. [max]]`. Range == nil means a fixed-length
// (non-variable) relationship despite the struct being present at all only
// when `*` appeared; Min alone (no Range) means exactly `*min`.
type VarLengthAST struct {
	Min   *int         `parser:"\"*\" @Int?"`
	Range *HopRangeAST `parser:"@@?"`
}

type HopRangeAST struct {
	Max *int `parser:"\".\" \".\" @Int?"`
}

// MapLiteralAST is `{ key: expr, ... }`, used both for pattern inline
// properties and general map-literal expressions.
type MapLiteralAST struct {
	Pairs []*MapPairAST `parser:"\"{\" ( @@ ( \",\" @@ )* )? \"}\""`
}

type MapPairAST struct {
	Key   string   `parser:"@Ident \":\""`
	Value *ExprAST `parser:"@@"`
}
