package parser

// This file declares GraphForge's Cypher grammar as participle struct tags,
// following the declarative-grammar technique spec.md §4.1 asks for and the
// style demonstrated by the sibling ritamzico-pgraph example
// (internal/dsl/grammar.go): every production is a Go struct, every
// alternative a pointer field tried in tag order, every repetition a slice
// field. convert.go walks this concrete syntax tree into pkg/ast's typed AST;
// this file contains no semantic logic, only shape.
//
// Precedence is encoded structurally (spec.md §4.1, highest to lowest):
// postfix (property/index/call) < unary (-, NOT) < * / % < + - <
// STARTS WITH/ENDS WITH/CONTAINS < comparisons (incl. IN, IS [NOT] NULL) <
// AND < OR. Each level parses a left-associative chain of the level below.

// GrammarAST is the parser's entry production.
type GrammarAST struct {
	Query *QueryAST `parser:"@@"`
}

// QueryAST is one or more clauses optionally followed by UNION [ALL]
// branches, each introducing another full clause sequence.
type QueryAST struct {
	Clauses []*ClauseAST  `parser:"@@+"`
	Unions  []*UnionPartAST `parser:"@@*"`
}

type UnionPartAST struct {
	All     bool         `parser:"\"UNION\" @\"ALL\"?"`
	Clauses []*ClauseAST `parser:"@@+"`
}

// ClauseAST dispatches on the clause-introducing keyword.
type ClauseAST struct {
	Match  *MatchAST  `parser:"  @@"`
	Unwind *UnwindAST `parser:"| @@"`
	With   *WithAST   `parser:"| @@"`
	Return *ReturnAST `parser:"| @@"`
	Merge  *MergeAST  `parser:"| @@"`
	Create *CreateAST `parser:"| @@"`
	Set    *SetAST    `parser:"| @@"`
	Remove *RemoveAST `parser:"| @@"`
	Delete *DeleteAST `parser:"| @@"`
}

// --- MATCH ---

type MatchAST struct {
	Optional bool        `parser:"@\"OPTIONAL\"?"`
	Pattern  *PatternAST `parser:"\"MATCH\" @@"`
	Where    *ExprAST    `parser:"( \"WHERE\" @@ )?"`
}

// --- UNWIND ---

type UnwindAST struct {
	Expr *ExprAST `parser:"\"UNWIND\" @@"`
	Var  string   `parser:"\"AS\" @Ident"`
}

// --- WITH / RETURN ---

type WithAST struct {
	Distinct bool               `parser:"\"WITH\" @\"DISTINCT\"?"`
	Items    *ProjectionListAST `parser:"@@"`
	Where    *ExprAST           `parser:"( \"WHERE\" @@ )?"`
	Order    *OrderByAST        `parser:"@@?"`
	Skip     *ExprAST           `parser:"( \"SKIP\" @@ )?"`
	Limit    *ExprAST           `parser:"( \"LIMIT\" @@ )?"`
}

type ReturnAST struct {
	Distinct bool               `parser:"\"RETURN\" @\"DISTINCT\"?"`
	Items    *ProjectionListAST `parser:"@@"`
	Order    *OrderByAST        `parser:"@@?"`
	Skip     *ExprAST           `parser:"( \"SKIP\" @@ )?"`
	Limit    *ExprAST           `parser:"( \"LIMIT\" @@ )?"`
}

type ProjectionListAST struct {
	Star  bool                `parser:"(  @\"*\""`
	Items []*ProjectionItemAST `parser:"| @@ ( \",\" @@ )* )"`
}

type ProjectionItemAST struct {
	Expr  *ExprAST `parser:"@@"`
	Alias string   `parser:"( \"AS\" @Ident )?"`
}

type OrderByAST struct {
	Items []*OrderItemAST `parser:"\"ORDER\" \"BY\" @@ ( \",\" @@ )*"`
}

type OrderItemAST struct {
	Expr descOrAsc `parser:"@@"`
}

// descOrAsc folds the expr plus optional ASC/DESC keyword into one node so
// OrderItemAST stays a single production.
type descOrAsc struct {
	Expr  *ExprAST `parser:"@@"`
	Desc  bool     `parser:"( @(\"DESC\"|\"DESCENDING\")"`
	Asc   bool     `parser:"| @(\"ASC\"|\"ASCENDING\") )?"`
}

// --- CREATE / MERGE / SET / REMOVE / DELETE ---

type CreateAST struct {
	Pattern *PatternAST `parser:"\"CREATE\" @@"`
}

type MergeAST struct {
	Pattern  *PathPatternAST `parser:"\"MERGE\" @@"`
	OnCreate []*SetItemAST   `parser:"( \"ON\" \"CREATE\" \"SET\" @@ ( \",\" @@ )* )?"`
	OnMatch  []*SetItemAST   `parser:"( \"ON\" \"MATCH\" \"SET\" @@ ( \",\" @@ )* )?"`
}

type SetAST struct {
	Items []*SetItemAST `parser:"\"SET\" @@ ( \",\" @@ )*"`
}

// SetItemAST covers the three SET forms: `var.prop = expr` / `var.prop +=
// expr` (property assign/merge), `var = expr` / `var += expr` (whole-entity
// assign/merge), and `var:Label:Label...` (add labels).
type SetItemAST struct {
	Variable string       `parser:"@Ident"`
	Prop     *SetPropAST  `parser:"(  @@"`
	Whole    *SetWholeAST `parser:"|  @@"`
	Label    *SetLabelAST `parser:"|  @@ )"`
}

type SetPropAST struct {
	Property string   `parser:"\".\" @Ident"`
	Merge    bool     `parser:"( \"=\" | @\"+=\" )"`
	Value    *ExprAST `parser:"@@"`
}

type SetWholeAST struct {
	Merge bool     `parser:"( \"=\" | @\"+=\" )"`
	Value *ExprAST `parser:"@@"`
}

type SetLabelAST struct {
	Labels []string `parser:"( \":\" @Ident )+"`
}

type RemoveAST struct {
	Items []*RemoveItemAST `parser:"\"REMOVE\" @@ ( \",\" @@ )*"`
}

type RemoveItemAST struct {
	Variable string `parser:"@Ident"`
	Label    string `parser:"(  \":\" @Ident"`
	Property string `parser:"|  \".\" @Ident )"`
}

type DeleteAST struct {
	Detach bool       `parser:"@\"DETACH\"?"`
	Vars   []*ExprAST `parser:"\"DELETE\" @@ ( \",\" @@ )*"`
}
