package lang

import (
	"fmt"
	"strings"

	"github.com/tardisdcr/tardis/internal/model"
)

// RoleExpr is a structured role expression: a role label plus ordered
// parameter bindings. The textual forms are
//
//	Seller
//	Buyer(#id; #name)           declared own parameters
//	Buyer(#id as A; #name)      own parameter shared as existential A
//	Seller(id=A; name="bob")    bindings to variables or literals
//	Seller(id=_)                wildcard binding
//
// The resolver is purely structural; it knows nothing about role instances.
type RoleExpr struct {
	Role     string
	Bindings []Binding
}

// Binding binds one parameter of a role expression.
type Binding struct {
	Param string
	Value BindingValue
}

// BindingValue is the tagged sum of binding forms. Exactly the types below
// implement it.
type BindingValue interface {
	bindingValue()
}

// LiteralValue binds the parameter to a literal expression.
type LiteralValue struct {
	Expr Expr
}

// OwnParam declares the parameter as the event's own, optionally shared
// under an existential alias (`#id as A`).
type OwnParam struct {
	Param string
	Alias string
}

// SharedVar binds the parameter to an existential variable introduced on
// another side of the communication.
type SharedVar struct {
	Name string
}

// AnyValue is the wildcard binding: the parameter is unconstrained.
type AnyValue struct{}

// ExprValue carries a non-equality conjunct that cannot be reduced to a
// direct binding, e.g. `id != 3`.
type ExprValue struct {
	Expr Expr
}

func (LiteralValue) bindingValue() {}
func (OwnParam) bindingValue()     {}
func (SharedVar) bindingValue()    {}
func (AnyValue) bindingValue()     {}
func (ExprValue) bindingValue()    {}

// VarGen hands out existential variable names A, B, C, ... in order of
// first use, keyed so repeated requests for the same parameter share one
// variable.
type VarGen struct {
	next  int
	byKey map[string]string
}

// For returns the variable assigned to key, creating it on first use.
func (v *VarGen) For(key string) string {
	if v.byKey == nil {
		v.byKey = make(map[string]string)
	}
	if name, ok := v.byKey[key]; ok {
		return name
	}
	name := varName(v.next)
	v.next++
	v.byKey[key] = name
	return name
}

func varName(n int) string {
	// A..Z, then A1, B1, ...
	letter := string(rune('A' + n%26))
	if n < 26 {
		return letter
	}
	return fmt.Sprintf("%s%d", letter, n/26)
}

// FormatRoleExpr renders the textual form of a role expression.
func FormatRoleExpr(re RoleExpr) string {
	if len(re.Bindings) == 0 {
		return re.Role
	}
	parts := make([]string, 0, len(re.Bindings))
	for _, b := range re.Bindings {
		switch v := b.Value.(type) {
		case OwnParam:
			if v.Alias != "" {
				parts = append(parts, fmt.Sprintf("#%s as %s", v.Param, v.Alias))
			} else {
				parts = append(parts, "#"+v.Param)
			}
		case SharedVar:
			parts = append(parts, fmt.Sprintf("%s=%s", b.Param, v.Name))
		case LiteralValue:
			parts = append(parts, fmt.Sprintf("%s=%s", b.Param, FormatExpr(v.Expr)))
		case AnyValue:
			parts = append(parts, fmt.Sprintf("%s=_", b.Param))
		case ExprValue:
			parts = append(parts, FormatExpr(v.Expr))
		}
	}
	return fmt.Sprintf("%s(%s)", re.Role, strings.Join(parts, "; "))
}

// ParseRoleExpr parses the textual form back into a structured expression.
func ParseRoleExpr(src string) (RoleExpr, error) {
	src = strings.TrimSpace(src)
	open := strings.IndexByte(src, '(')
	if open < 0 {
		if src == "" || strings.ContainsAny(src, " \t") {
			return RoleExpr{}, fmt.Errorf("malformed role expression %q", src)
		}
		return RoleExpr{Role: src}, nil
	}
	if !strings.HasSuffix(src, ")") {
		return RoleExpr{}, fmt.Errorf("role expression %q: missing closing parenthesis", src)
	}
	re := RoleExpr{Role: strings.TrimSpace(src[:open])}
	if re.Role == "" {
		return RoleExpr{}, fmt.Errorf("role expression %q: empty role label", src)
	}
	body := src[open+1 : len(src)-1]
	for _, part := range strings.Split(body, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b, err := parseBinding(part)
		if err != nil {
			return RoleExpr{}, fmt.Errorf("role expression %q: %w", src, err)
		}
		re.Bindings = append(re.Bindings, b)
	}
	return re, nil
}

func parseBinding(part string) (Binding, error) {
	if strings.HasPrefix(part, "#") {
		rest := part[1:]
		if name, alias, ok := strings.Cut(rest, " as "); ok {
			name, alias = strings.TrimSpace(name), strings.TrimSpace(alias)
			if name == "" || alias == "" {
				return Binding{}, fmt.Errorf("malformed own-parameter binding %q", part)
			}
			return Binding{Param: name, Value: OwnParam{Param: name, Alias: alias}}, nil
		}
		name := strings.TrimSpace(rest)
		if name == "" {
			return Binding{}, fmt.Errorf("malformed own-parameter binding %q", part)
		}
		return Binding{Param: name, Value: OwnParam{Param: name}}, nil
	}
	name, value, ok := strings.Cut(part, "=")
	if !ok {
		return Binding{}, fmt.Errorf("malformed binding %q", part)
	}
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if name == "" || value == "" {
		return Binding{}, fmt.Errorf("malformed binding %q", part)
	}
	if value == "_" {
		return Binding{Param: name, Value: AnyValue{}}, nil
	}
	if isSharedVarName(value) {
		return Binding{Param: name, Value: SharedVar{Name: value}}, nil
	}
	expr, err := ParseConstraint(value)
	if err != nil {
		return Binding{}, err
	}
	return Binding{Param: name, Value: LiteralValue{Expr: expr}}, nil
}

// Shared variables are single capital letters with an optional numeric
// suffix, matching what VarGen produces.
func isSharedVarName(s string) bool {
	if len(s) == 0 || s[0] < 'A' || s[0] > 'Z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ResolveSharing rewrites the two sides of a communication so that every
// receiver reference to one of the initiator's own parameters goes through
// a fresh existential variable. The variable is introduced once on the
// initiator side (`#id as A`) and substituted on every receiver side
// (`id=A`), modeling a parameter bound once and shared by all participants.
func ResolveSharing(initiators, receivers []RoleExpr) ([]RoleExpr, []RoleExpr) {
	gen := &VarGen{}
	shared := map[string]string{} // own parameter -> variable, in first-use order

	outRecv := make([]RoleExpr, len(receivers))
	for i, re := range receivers {
		out := RoleExpr{Role: re.Role, Bindings: make([]Binding, len(re.Bindings))}
		for j, b := range re.Bindings {
			if own, ok := b.Value.(OwnParam); ok {
				v := gen.For(own.Param)
				shared[own.Param] = v
				out.Bindings[j] = Binding{Param: b.Param, Value: SharedVar{Name: v}}
				continue
			}
			out.Bindings[j] = b
		}
		outRecv[i] = out
	}

	outInit := make([]RoleExpr, len(initiators))
	for i, re := range initiators {
		out := RoleExpr{Role: re.Role, Bindings: make([]Binding, len(re.Bindings))}
		for j, b := range re.Bindings {
			if own, ok := b.Value.(OwnParam); ok && own.Alias == "" {
				if v, hit := shared[own.Param]; hit {
					out.Bindings[j] = Binding{Param: b.Param, Value: OwnParam{Param: own.Param, Alias: v}}
					continue
				}
			}
			out.Bindings[j] = b
		}
		outInit[i] = out
	}
	return outInit, outRecv
}

// DecomposeConstraint splits an instantiation constraint into one binding
// per role parameter by matching parameter names against the left-hand
// sides of the constraint's conjuncts. Parameters with no matching conjunct
// fall back to the shared-variable form; inequality conjuncts are kept
// attached as ExprValue bindings.
func DecomposeConstraint(role model.Role, constraint string, gen *VarGen) ([]Binding, error) {
	if gen == nil {
		gen = &VarGen{}
	}
	var conjuncts []Expr
	if strings.TrimSpace(constraint) != "" {
		expr, err := ParseConstraint(constraint)
		if err != nil {
			return nil, fmt.Errorf("decompose constraint for role %s: %w", role.Label, err)
		}
		conjuncts = Conjuncts(expr)
	}

	bindings := make([]Binding, 0, len(role.Params))
	for _, p := range role.Params {
		b, ok := matchConjunct(p.Name, conjuncts)
		if !ok {
			b = Binding{Param: p.Name, Value: SharedVar{Name: gen.For(role.Label + "." + p.Name)}}
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}

func matchConjunct(param string, conjuncts []Expr) (Binding, bool) {
	for _, c := range conjuncts {
		bin, ok := c.(Binary)
		if !ok || bin.Op == OpAnd {
			continue
		}
		ref, ok := bin.Left.(Ref)
		if !ok || string(ref) != param {
			continue
		}
		if bin.Op == OpNeq {
			return Binding{Param: param, Value: ExprValue{Expr: bin}}, true
		}
		switch rhs := bin.Right.(type) {
		case OwnRef:
			return Binding{Param: param, Value: OwnParam{Param: string(rhs)}}, true
		case Ref:
			if isSharedVarName(string(rhs)) {
				return Binding{Param: param, Value: SharedVar{Name: string(rhs)}}, true
			}
			return Binding{Param: param, Value: LiteralValue{Expr: rhs}}, true
		default:
			return Binding{Param: param, Value: LiteralValue{Expr: bin.Right}}, true
		}
	}
	return Binding{}, false
}
