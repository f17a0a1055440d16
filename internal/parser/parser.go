package parser

import (
	"fmt"
	"strconv"

	"github.com/breakerlab/deduce/internal/game"
	"github.com/breakerlab/deduce/internal/model"
)

// ParseError represents a parsing or semantic error.
type ParseError struct {
	Pos     model.Position
	Message string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// Parser parses a game declaration into a Game.
type Parser struct {
	tokens []model.Token
	pos    int
	errors []ParseError

	game *game.Game
	// arity of the experiment currently being parsed; 0 outside experiments,
	// where mapping references are invalid.
	arity int
}

// NewParser creates a new parser for the given source.
func NewParser(source string) *Parser {
	return NewParserWithFilename(source, "")
}

// NewParserWithFilename creates a new parser with a filename for error messages.
func NewParserWithFilename(source, filename string) *Parser {
	lexer := NewLexerWithFilename(source, filename)
	tokens, lexErrs := lexer.Tokenize()
	p := &Parser{tokens: tokens, game: game.New()}
	for _, e := range lexErrs {
		p.errors = append(p.errors, ParseError(e))
	}
	return p
}

// ParseGame parses a complete declaration and returns the populated game.
// The game is only usable when no errors are returned.
func ParseGame(source, filename string) (*game.Game, []ParseError) {
	p := NewParserWithFilename(source, filename)
	return p.Parse()
}

// ParseFormula parses a single parameter-free formula against the variables
// already declared in g. Used by tests and interactive tooling.
func ParseFormula(g *game.Game, source string) (model.Formula, error) {
	lexer := NewLexer(source)
	tokens, lexErrs := lexer.Tokenize()
	if len(lexErrs) > 0 {
		return nil, lexErrs[0]
	}
	p := &Parser{tokens: tokens, game: g}
	f := p.parseFormula()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	if !p.check(model.TK_EOF) {
		return nil, ParseError{Pos: p.peek().Pos, Message: "trailing input after formula"}
	}
	return f, nil
}

// Parse consumes the token stream and builds the game.
func (p *Parser) Parse() (*game.Game, []ParseError) {
	for !p.check(model.TK_EOF) {
		switch {
		case p.match(model.TK_Variables):
			p.parseVariables()
		case p.match(model.TK_Restriction):
			f := p.parseFormula()
			if f != nil {
				p.game.AddRestriction(f)
			}
		case p.match(model.TK_Alphabet):
			p.parseAlphabet()
		case p.match(model.TK_Mapping):
			p.parseMapping()
		case p.match(model.TK_Experiment):
			p.parseExperiment()
		default:
			p.errorf(p.peek().Pos, "expected a declaration, got %s", p.peek().Kind)
			p.advance()
		}
	}
	return p.game, p.errors
}

// Errors returns the accumulated errors.
func (p *Parser) Errors() []ParseError {
	return p.errors
}

func (p *Parser) errorf(pos model.Position, format string, args ...any) {
	p.errors = append(p.errors, ParseError{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

// ----------------------------------------------------------------------------
// Declarations
// ----------------------------------------------------------------------------

// parseVariables reads a comma-separated list of names; a name may carry an
// indexed range, x[1-8], which expands to x1..x8.
func (p *Parser) parseVariables() {
	for {
		tok, ok := p.expect(model.TK_Identifier)
		if !ok {
			return
		}
		if p.match(model.TK_LBracket) {
			lo, ok1 := p.expectInt()
			_, ok2 := p.expect(model.TK_Minus)
			hi, ok3 := p.expectInt()
			_, ok4 := p.expect(model.TK_RBracket)
			if !(ok1 && ok2 && ok3 && ok4) {
				return
			}
			if lo > hi {
				p.errorf(tok.Pos, "empty variable range %s[%d-%d]", tok.Literal, lo, hi)
			}
			for i := lo; i <= hi; i++ {
				p.declareVar(fmt.Sprintf("%s%d", tok.Literal, i), tok.Pos)
			}
		} else {
			p.declareVar(tok.Literal, tok.Pos)
		}
		if !p.match(model.TK_Comma) {
			return
		}
	}
}

func (p *Parser) declareVar(name string, pos model.Position) {
	if _, err := p.game.DeclareVar(name); err != nil {
		p.errorf(pos, "%v", err)
	}
}

// parseAlphabet reads the ordered symbol list. Symbols may be identifiers
// or bare integers.
func (p *Parser) parseAlphabet() {
	var symbols []string
	for {
		tok := p.peek()
		if tok.Kind != model.TK_Identifier && tok.Kind != model.TK_IntLit {
			p.errorf(tok.Pos, "expected an alphabet symbol, got %s", tok.Kind)
			return
		}
		p.advance()
		symbols = append(symbols, tok.Literal)
		if !p.match(model.TK_Comma) {
			break
		}
	}
	if err := p.game.SetAlphabet(symbols); err != nil {
		p.errorf(p.peek().Pos, "%v", err)
	}
}

// parseMapping reads: ident [ var, var, ... ].
func (p *Parser) parseMapping() {
	name, ok := p.expect(model.TK_Identifier)
	if !ok {
		return
	}
	if _, ok := p.expect(model.TK_LBracket); !ok {
		return
	}
	var vars []*model.Variable
	for {
		tok, ok := p.expect(model.TK_Identifier)
		if !ok {
			return
		}
		v, found := p.game.Var(tok.Literal)
		if !found {
			p.errorf(tok.Pos, "undefined variable %q in mapping %q", tok.Literal, name.Literal)
			v = &model.Variable{Name: tok.Literal, ID: 1} // keep parsing
		}
		vars = append(vars, v)
		if !p.match(model.TK_Comma) {
			break
		}
	}
	if _, ok := p.expect(model.TK_RBracket); !ok {
		return
	}
	if _, err := p.game.AddMapping(name.Literal, vars); err != nil {
		p.errorf(name.Pos, "%v", err)
	}
}

// parseExperiment reads: name ( arity ) { body }.
func (p *Parser) parseExperiment() {
	name, ok := p.expect(model.TK_Identifier)
	if !ok {
		return
	}
	if _, ok := p.expect(model.TK_LParen); !ok {
		return
	}
	arity, ok := p.expectInt()
	if !ok {
		return
	}
	if _, ok := p.expect(model.TK_RParen); !ok {
		return
	}
	if _, ok := p.expect(model.TK_LBrace); !ok {
		return
	}

	e := p.game.AddExpType(name.Literal, arity)
	p.arity = arity
	defer func() { p.arity = 0 }()

	for !p.check(model.TK_RBrace) && !p.check(model.TK_EOF) {
		switch {
		case p.match(model.TK_ParamsDistinct):
			if list, ok := p.parseIntSet(); ok {
				if err := e.ParamsDistinct(list); err != nil {
					p.errorf(p.peek().Pos, "%v", err)
				}
			}
		case p.match(model.TK_ParamsSorted):
			if list, ok := p.parseIntSet(); ok {
				if err := e.ParamsSorted(list); err != nil {
					p.errorf(p.peek().Pos, "%v", err)
				}
			}
		case p.check(model.TK_Outcome) || p.check(model.TK_FinalOutcome):
			final := p.peek().Kind == model.TK_FinalOutcome
			p.advance()
			oname, ok := p.expect(model.TK_Identifier)
			if !ok {
				return
			}
			if _, ok := p.expect(model.TK_Colon); !ok {
				return
			}
			f := p.parseFormula()
			if _, ok := p.expect(model.TK_Semicolon); !ok {
				return
			}
			if f != nil {
				if err := e.AddOutcome(oname.Literal, f, final); err != nil {
					p.errorf(oname.Pos, "%v", err)
				}
			}
		default:
			p.errorf(p.peek().Pos, "expected an experiment clause, got %s", p.peek().Kind)
			p.advance()
		}
	}
	p.expect(model.TK_RBrace)
}

// parseIntSet reads { i, j, ... } with an optional trailing semicolon.
func (p *Parser) parseIntSet() ([]int, bool) {
	if _, ok := p.expect(model.TK_LBrace); !ok {
		return nil, false
	}
	var list []int
	for {
		v, ok := p.expectInt()
		if !ok {
			return nil, false
		}
		list = append(list, v)
		if !p.match(model.TK_Comma) {
			break
		}
	}
	if _, ok := p.expect(model.TK_RBrace); !ok {
		return nil, false
	}
	p.match(model.TK_Semicolon)
	return list, true
}

// ----------------------------------------------------------------------------
// Formulas
// ----------------------------------------------------------------------------

// Precedence, loosest first: <->, ->, |, &, !, atom.

func (p *Parser) parseFormula() model.Formula {
	return p.parseEquiv()
}

func (p *Parser) parseEquiv() model.Formula {
	left := p.parseImplies()
	if left == nil {
		return nil
	}
	if p.match(model.TK_Equiv) {
		right := p.parseEquiv()
		if right == nil {
			return nil
		}
		return &model.Equiv{L: left, R: right}
	}
	return left
}

func (p *Parser) parseImplies() model.Formula {
	left := p.parseOr()
	if left == nil {
		return nil
	}
	if p.match(model.TK_Implies) {
		right := p.parseImplies()
		if right == nil {
			return nil
		}
		return &model.Implies{L: left, R: right}
	}
	return left
}

func (p *Parser) parseOr() model.Formula {
	left := p.parseAnd()
	if left == nil {
		return nil
	}
	children := []model.Formula{left}
	for p.match(model.TK_Or) {
		next := p.parseAnd()
		if next == nil {
			return nil
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return left
	}
	return model.NewOr(children...)
}

func (p *Parser) parseAnd() model.Formula {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	children := []model.Formula{left}
	for p.match(model.TK_And) {
		next := p.parseUnary()
		if next == nil {
			return nil
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return left
	}
	return model.NewAnd(children...)
}

func (p *Parser) parseUnary() model.Formula {
	if p.match(model.TK_Not) {
		f := p.parseUnary()
		if f == nil {
			return nil
		}
		return f.Neg()
	}
	return p.parseAtom()
}

func (p *Parser) parseAtom() model.Formula {
	tok := p.peek()
	switch tok.Kind {
	case model.TK_LParen:
		p.advance()
		f := p.parseFormula()
		if _, ok := p.expect(model.TK_RParen); !ok {
			return nil
		}
		return f
	case model.TK_AtLeast, model.TK_AtMost, model.TK_Exactly:
		return p.parseCounting()
	case model.TK_Identifier:
		p.advance()
		if p.match(model.TK_Dollar) {
			return p.parseMappingRef(tok)
		}
		v, found := p.game.Var(tok.Literal)
		if !found {
			p.errorf(tok.Pos, "undefined variable %q", tok.Literal)
			return nil
		}
		return v
	default:
		p.errorf(tok.Pos, "expected a formula, got %s", tok.Kind)
		p.advance()
		return nil
	}
}

func (p *Parser) parseCounting() model.Formula {
	tok := p.peek()
	p.advance()
	k, err := strconv.Atoi(tok.Literal)
	if err != nil {
		p.errorf(tok.Pos, "invalid count %q", tok.Literal)
		return nil
	}
	if _, ok := p.expect(model.TK_LParen); !ok {
		return nil
	}
	var children []model.Formula
	for {
		f := p.parseFormula()
		if f == nil {
			return nil
		}
		children = append(children, f)
		if !p.match(model.TK_Comma) {
			break
		}
	}
	if _, ok := p.expect(model.TK_RParen); !ok {
		return nil
	}
	if k > len(children) {
		p.errorf(tok.Pos, "%s-%d applied to %d formulas", tok.Kind, k, len(children))
		return nil
	}
	switch tok.Kind {
	case model.TK_AtLeast:
		return &model.AtLeast{K: k, Children: children}
	case model.TK_AtMost:
		return &model.AtMost{K: k, Children: children}
	default:
		return &model.Exactly{K: k, Children: children}
	}
}

// parseMappingRef reads the $n suffix of a mapping reference.
func (p *Parser) parseMappingRef(ident model.Token) model.Formula {
	num, ok := p.expectInt()
	if !ok {
		return nil
	}
	if p.arity == 0 {
		p.errorf(ident.Pos, "mapping reference %s$%d outside an experiment", ident.Literal, num)
		return nil
	}
	if num < 1 || num > p.arity {
		p.errorf(ident.Pos, "parameter index %d out of range 1..%d", num, p.arity)
		return nil
	}
	id, found := p.game.MappingID(ident.Literal)
	if !found {
		p.errorf(ident.Pos, "undefined mapping %q", ident.Literal)
		return nil
	}
	return &model.MappingRef{Ident: ident.Literal, Map: id, Param: num - 1}
}

// ----------------------------------------------------------------------------
// Token plumbing
// ----------------------------------------------------------------------------

func (p *Parser) peek() model.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[p.pos]
}

func (p *Parser) advance() model.Token {
	tok := p.peek()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) check(kind model.TokenKind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) match(kind model.TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(kind model.TokenKind) (model.Token, bool) {
	if p.check(kind) {
		return p.advance(), true
	}
	p.errorf(p.peek().Pos, "expected %s, got %s", kind, p.peek().Kind)
	return p.peek(), false
}

func (p *Parser) expectInt() (int, bool) {
	tok, ok := p.expect(model.TK_IntLit)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(tok.Literal)
	if err != nil {
		p.errorf(tok.Pos, "invalid integer %q", tok.Literal)
		return 0, false
	}
	return v, true
}
