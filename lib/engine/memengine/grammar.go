package memengine

import (
	"fmt"
	"github.com/ValentinKolb/dQL/lib/engine"
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// AST for the participle parser
// --------------------------------------------------------------------------

type astStatement struct {
	Select *astSelect `parser:"  @@"`
	Insert *astInsert `parser:"| @@"`
	Delete *astDelete `parser:"| @@"`
	Create *astCreate `parser:"| @@"`
	Drop   *astDrop   `parser:"| @@"`
	Call   *astCall   `parser:"| @@"`
}

type astSelect struct {
	Columns []string        `parser:"'SELECT' ( '*' | @Ident (',' @Ident)* )"`
	From    *astSource      `parser:"'FROM' @@"`
	Where   []*astCondition `parser:"('WHERE' @@ ('AND' @@)*)?"`
	OrderBy *astOrder       `parser:"('ORDER' 'BY' @@)?"`
	Limit   *astValue       `parser:"('LIMIT' @@)?"`
}

type astSource struct {
	Series *astValue `parser:"  'SERIES' '(' @@ ')'"`
	Table  string    `parser:"| @Ident"`
}

type astCondition struct {
	Column string    `parser:"@Ident"`
	Op     string    `parser:"@Operator"`
	Value  *astValue `parser:"@@"`
}

type astOrder struct {
	Column    string `parser:"@Ident"`
	Direction string `parser:"@('ASC' | 'DESC')?"`
}

type astInsert struct {
	Table   string      `parser:"'INSERT' 'INTO' @Ident"`
	Columns []string    `parser:"('(' @Ident (',' @Ident)* ')')?"`
	Values  []*astTuple `parser:"'VALUES' @@ (',' @@)*"`
}

type astTuple struct {
	Values []*astValue `parser:"'(' @@ (',' @@)* ')'"`
}

type astDelete struct {
	Table string          `parser:"'DELETE' 'FROM' @Ident"`
	Where []*astCondition `parser:"('WHERE' @@ ('AND' @@)*)?"`
}

type astCreate struct {
	Table   string          `parser:"'CREATE' 'TABLE' @Ident"`
	Columns []*astColumnDef `parser:"'(' @@ (',' @@)* ')'"`
}

type astColumnDef struct {
	Name   string `parser:"@Ident"`
	Type   string `parser:"@Ident"`
	Length string `parser:"('(' @Number ')')?"`
}

type astDrop struct {
	Table string `parser:"'DROP' 'TABLE' @Ident"`
}

type astCall struct {
	Count *astValue `parser:"'CALL' 'SERIES' '(' @@ ')'"`
}

// astValue is a literal or a positional placeholder
type astValue struct {
	Param  bool    `parser:"  @'?'"`
	Null   bool    `parser:"| @'NULL'"`
	Bool   *string `parser:"| @('TRUE' | 'FALSE')"`
	Number *string `parser:"| @Number"`
	String *string `parser:"| @String"`
}

// --------------------------------------------------------------------------
// Lexer and parser
// --------------------------------------------------------------------------

var (
	sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Keyword", Pattern: `(?i)\b(SELECT|FROM|WHERE|AND|ORDER|BY|ASC|DESC|LIMIT|INSERT|INTO|VALUES|DELETE|CREATE|TABLE|DROP|CALL|SERIES|NULL|TRUE|FALSE)\b`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
		{Name: "Number", Pattern: `[-+]?\d*\.?\d+`},
		{Name: "String", Pattern: `'(?:[^']|'')*'`},
		{Name: "Operator", Pattern: `<>|>=|<=|!=|[=<>]`},
		{Name: "Punct", Pattern: `[,()*?]`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	sqlParser = participle.MustBuild[astStatement](
		participle.Lexer(sqlLexer),
		participle.Map(unquote, "String"),
		participle.CaseInsensitive("Keyword"),
		participle.Elide("Whitespace"),
		participle.UseLookahead(2),
	)
)

// unquote strips the quotes of a string literal, a doubled quote is an escaped quote
func unquote(token lexer.Token) (lexer.Token, error) {
	token.Value = strings.ReplaceAll(token.Value[1:len(token.Value)-1], "''", "'")
	return token, nil
}

// parse parses a single statement
func parse(query string) (*astStatement, error) {
	query = strings.TrimSuffix(strings.TrimSpace(query), ";")
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty statement", engine.ErrSyntax)
	}
	stmt, err := sqlParser.ParseString("", query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrSyntax, err)
	}
	return stmt, nil
}

// --------------------------------------------------------------------------
// Argument binding
// --------------------------------------------------------------------------

// binder resolves values, placeholders consume the arguments in order
type binder struct {
	args []any
	next int
}

func (b *binder) value(v *astValue) (any, error) {
	switch {
	case v.Param:
		if b.next >= len(b.args) {
			return nil, fmt.Errorf("%w: statement has more placeholders than the %d arguments given", engine.ErrArgs, len(b.args))
		}
		arg := b.args[b.next]
		b.next++
		return normalize(arg), nil
	case v.Null:
		return nil, nil
	case v.Bool != nil:
		return strings.EqualFold(*v.Bool, "TRUE"), nil
	case v.Number != nil:
		if !strings.Contains(*v.Number, ".") {
			if n, err := strconv.ParseInt(*v.Number, 10, 64); err == nil {
				return n, nil
			}
		}
		f, err := strconv.ParseFloat(*v.Number, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %s", engine.ErrSyntax, *v.Number)
		}
		return f, nil
	case v.String != nil:
		return *v.String, nil
	}
	return nil, fmt.Errorf("%w: empty value", engine.ErrSyntax)
}

// nonNegative resolves a value that must be a non-negative integer
func (b *binder) nonNegative(v *astValue, what string) (int64, error) {
	val, err := b.value(v)
	if err != nil {
		return 0, err
	}
	n, ok := val.(int64)
	if !ok || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %v", engine.ErrArgs, what, val)
	}
	return n, nil
}

// done checks that every argument was consumed
func (b *binder) done() error {
	if b.next != len(b.args) {
		return fmt.Errorf("%w: statement has %d placeholders but %d arguments were given", engine.ErrArgs, b.next, len(b.args))
	}
	return nil
}
