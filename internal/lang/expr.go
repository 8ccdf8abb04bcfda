package lang

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Expr is the typed expression AST shared between guards, instantiation
// constraints and the compiled per-role models returned by the compile
// service. Exactly the concrete types below implement it; consumers switch
// exhaustively on the tag.
type Expr interface {
	exprNode()
}

// IntLit is an integer literal.
type IntLit int64

// StrLit is a string literal.
type StrLit string

// BoolLit is a boolean literal.
type BoolLit bool

// Ref names a parameter in the enclosing role scope.
type Ref string

// OwnRef names a parameter of the triggering event itself (textually #name).
type OwnRef string

// Binary is a binary operation over two subexpressions.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// BinaryOp is the operator of a Binary expression.
type BinaryOp string

const (
	OpEq  BinaryOp = "=="
	OpNeq BinaryOp = "!="
	OpAnd BinaryOp = "&&"
)

func (IntLit) exprNode()  {}
func (StrLit) exprNode()  {}
func (BoolLit) exprNode() {}
func (Ref) exprNode()     {}
func (OwnRef) exprNode()  {}
func (Binary) exprNode()  {}

// FormatExpr renders an expression in constraint syntax.
func FormatExpr(e Expr) string {
	switch v := e.(type) {
	case IntLit:
		return strconv.FormatInt(int64(v), 10)
	case StrLit:
		return strconv.Quote(string(v))
	case BoolLit:
		return strconv.FormatBool(bool(v))
	case Ref:
		return string(v)
	case OwnRef:
		return "#" + string(v)
	case Binary:
		return fmt.Sprintf("%s %s %s", FormatExpr(v.Left), v.Op, FormatExpr(v.Right))
	default:
		return ""
	}
}

// Conjuncts flattens nested && operations into a list. Non-conjunction
// expressions come back as a single-element list.
func Conjuncts(e Expr) []Expr {
	if b, ok := e.(Binary); ok && b.Op == OpAnd {
		return append(Conjuncts(b.Left), Conjuncts(b.Right)...)
	}
	return []Expr{e}
}

// ParseConstraint parses an instantiation constraint: a conjunction of
// equality and inequality comparisons over literals, parameter references
// and own-parameter references, e.g. `id == 5 && buyer != #id`.
func ParseConstraint(src string) (Expr, error) {
	p := &exprParser{src: src}
	e, err := p.conjunction()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, fmt.Errorf("constraint %q: trailing input at offset %d", src, p.pos)
	}
	return e, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) conjunction() (Expr, error) {
	left, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.accept("&&") {
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		left = Binary{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *exprParser) comparison() (Expr, error) {
	left, err := p.atom()
	if err != nil {
		return nil, err
	}
	var op BinaryOp
	switch {
	case p.accept("=="):
		op = OpEq
	case p.accept("!="):
		op = OpNeq
	default:
		return left, nil
	}
	right, err := p.atom()
	if err != nil {
		return nil, err
	}
	return Binary{Op: op, Left: left, Right: right}, nil
}

func (p *exprParser) atom() (Expr, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("constraint %q: unexpected end of input", p.src)
	}
	ch := p.src[p.pos]
	switch {
	case ch == '#':
		p.pos++
		name := p.ident()
		if name == "" {
			return nil, fmt.Errorf("constraint %q: # without parameter name at offset %d", p.src, p.pos)
		}
		return OwnRef(name), nil
	case ch == '"':
		return p.stringLit()
	case ch == '-' || unicode.IsDigit(rune(ch)):
		start := p.pos
		p.pos++
		for p.pos < len(p.src) && unicode.IsDigit(rune(p.src[p.pos])) {
			p.pos++
		}
		n, err := strconv.ParseInt(p.src[start:p.pos], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("constraint %q: bad integer %q", p.src, p.src[start:p.pos])
		}
		return IntLit(n), nil
	default:
		name := p.ident()
		if name == "" {
			return nil, fmt.Errorf("constraint %q: unexpected character %q at offset %d", p.src, ch, p.pos)
		}
		switch name {
		case "true":
			return BoolLit(true), nil
		case "false":
			return BoolLit(false), nil
		}
		return Ref(name), nil
	}
}

func (p *exprParser) stringLit() (Expr, error) {
	start := p.pos
	p.pos++ // opening quote
	var sb strings.Builder
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if ch == '\\' && p.pos+1 < len(p.src) {
			p.pos++
			sb.WriteByte(p.src[p.pos])
			p.pos++
			continue
		}
		if ch == '"' {
			p.pos++
			return StrLit(sb.String()), nil
		}
		sb.WriteByte(ch)
		p.pos++
	}
	return nil, fmt.Errorf("constraint %q: unterminated string at offset %d", p.src, start)
}

func (p *exprParser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		ch := rune(p.src[p.pos])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *exprParser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

// exprJSON is the wire shape of an Expr, discriminated by tag. The compile
// service returns expressions in this form inside compiled projections.
type exprJSON struct {
	Tag   string          `json:"tag"`
	Value json.RawMessage `json:"value,omitempty"`
	Op    string          `json:"op,omitempty"`
	Left  *exprJSON       `json:"left,omitempty"`
	Right *exprJSON       `json:"right,omitempty"`
}

// EncodeExpr marshals an expression to its tagged JSON form.
func EncodeExpr(e Expr) ([]byte, error) {
	node, err := toExprJSON(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(node)
}

// DecodeExpr unmarshals an expression from its tagged JSON form.
func DecodeExpr(data []byte) (Expr, error) {
	var node exprJSON
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode expression: %w", err)
	}
	return fromExprJSON(&node)
}

func toExprJSON(e Expr) (*exprJSON, error) {
	switch v := e.(type) {
	case IntLit:
		raw, _ := json.Marshal(int64(v))
		return &exprJSON{Tag: "int", Value: raw}, nil
	case StrLit:
		raw, _ := json.Marshal(string(v))
		return &exprJSON{Tag: "string", Value: raw}, nil
	case BoolLit:
		raw, _ := json.Marshal(bool(v))
		return &exprJSON{Tag: "bool", Value: raw}, nil
	case Ref:
		raw, _ := json.Marshal(string(v))
		return &exprJSON{Tag: "ref", Value: raw}, nil
	case OwnRef:
		raw, _ := json.Marshal(string(v))
		return &exprJSON{Tag: "ownref", Value: raw}, nil
	case Binary:
		left, err := toExprJSON(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := toExprJSON(v.Right)
		if err != nil {
			return nil, err
		}
		return &exprJSON{Tag: "binary", Op: string(v.Op), Left: left, Right: right}, nil
	default:
		return nil, fmt.Errorf("encode expression: unsupported node %T", e)
	}
}

func fromExprJSON(node *exprJSON) (Expr, error) {
	switch node.Tag {
	case "int":
		var n int64
		if err := json.Unmarshal(node.Value, &n); err != nil {
			return nil, fmt.Errorf("decode int expression: %w", err)
		}
		return IntLit(n), nil
	case "string":
		var s string
		if err := json.Unmarshal(node.Value, &s); err != nil {
			return nil, fmt.Errorf("decode string expression: %w", err)
		}
		return StrLit(s), nil
	case "bool":
		var b bool
		if err := json.Unmarshal(node.Value, &b); err != nil {
			return nil, fmt.Errorf("decode bool expression: %w", err)
		}
		return BoolLit(b), nil
	case "ref":
		var s string
		if err := json.Unmarshal(node.Value, &s); err != nil {
			return nil, fmt.Errorf("decode ref expression: %w", err)
		}
		return Ref(s), nil
	case "ownref":
		var s string
		if err := json.Unmarshal(node.Value, &s); err != nil {
			return nil, fmt.Errorf("decode ownref expression: %w", err)
		}
		return OwnRef(s), nil
	case "binary":
		if node.Left == nil || node.Right == nil {
			return nil, fmt.Errorf("decode binary expression: missing operand")
		}
		left, err := fromExprJSON(node.Left)
		if err != nil {
			return nil, err
		}
		right, err := fromExprJSON(node.Right)
		if err != nil {
			return nil, err
		}
		switch BinaryOp(node.Op) {
		case OpEq, OpNeq, OpAnd:
			return Binary{Op: BinaryOp(node.Op), Left: left, Right: right}, nil
		}
		return nil, fmt.Errorf("decode binary expression: unknown operator %q", node.Op)
	default:
		return nil, fmt.Errorf("decode expression: unknown tag %q", node.Tag)
	}
}
