// Package lang implements the textual choreography language: the parser
// from source text to the graph model, the serializer back to text, and the
// role-binding resolver shared by both.
//
// A source file has three sections separated by standalone ";" lines:
// role declarations, the security lattice, and the event/relation body.
// The body of every scope lists events first, then a ";" line, then
// relations and spawn blocks. Spawn blocks nest recursively:
//
//	Buyer(id: Integer)
//	Seller
//	;
//	public < secret
//	;
//	(order: placeOrder)(public)[?: Integer][Buyer -> Seller]
//	(pay: settle)(secret)[?][Buyer]
//	;
//	order -->* pay
//	order -->> {
//	    (ship: shipItem)(public)[?][Seller]
//	    ;
//	    ship -->% ship
//	}
package lang

import (
	"regexp"
	"strings"

	"github.com/tardisdcr/tardis/internal/model"
)

// Relation operator spellings. Spawn has block syntax of its own.
var opTokens = map[string]model.RelationKind{
	"-->*": model.Condition,
	"*-->": model.Response,
	"-->+": model.Include,
	"-->%": model.Exclude,
	"--<>": model.Milestone,
}

var kindOps = map[model.RelationKind]string{
	model.Condition: "-->*",
	model.Response:  "*-->",
	model.Include:   "-->+",
	model.Exclude:   "-->%",
	model.Milestone: "--<>",
}

var (
	roleRe     = regexp.MustCompile(`^([A-Za-z_]\w*)\s*(?:\(\s*(.*?)\s*\))?$`)
	eventRe    = regexp.MustCompile(`^(%?)(!?)\s*\(\s*([A-Za-z_]\w*)\s*:\s*([^)]*?)\s*\)\s*\(\s*([^)]*?)\s*\)\s*\[(.*)\]\s*\[\s*([^\]\[]*?)\s*\]$`)
	relationRe = regexp.MustCompile(`^(.+?)\s*(-->\*|\*-->|-->\+|-->%|--<>)\s*(.+?)(?:\s+\[(.+)\])?$`)
	spawnRe    = regexp.MustCompile(`^([A-Za-z_]\w*)\s*-->>\s*\{$`)
)

// Parse converts source text into a graph. Every line that matches no
// production is a ParseError; nothing is skipped silently.
func Parse(src string) (*model.Graph, error) {
	p := &parser{
		g:     model.New(),
		lines: strings.Split(src, "\n"),
	}
	if err := p.roles(); err != nil {
		return nil, err
	}
	if err := p.security(); err != nil {
		return nil, err
	}
	if err := p.block(model.GlobalScope, false); err != nil {
		return nil, err
	}
	return p.g, nil
}

type parser struct {
	g     *model.Graph
	lines []string
	pos   int
}

// next returns the next line with its 1-based number, trimming trailing
// carriage returns so CRLF sources parse the same as LF.
func (p *parser) next() (line string, num int, ok bool) {
	if p.pos >= len(p.lines) {
		return "", 0, false
	}
	line = strings.TrimRight(p.lines[p.pos], "\r")
	p.pos++
	return line, p.pos, true
}

func isSeparator(line string) bool {
	return strings.TrimSpace(line) == ";"
}

func (p *parser) roles() error {
	for {
		line, num, ok := p.next()
		if !ok {
			return parseErrf(num, "unexpected end of input in role section")
		}
		if isSeparator(line) {
			return nil
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		m := roleRe.FindStringSubmatch(trimmed)
		if m == nil {
			return parseErrf(num, "malformed role declaration %q", trimmed)
		}
		role := model.Role{Label: m[1]}
		if m[2] != "" {
			for _, part := range strings.Split(m[2], ";") {
				name, typ, ok := strings.Cut(part, ":")
				name, typ = strings.TrimSpace(name), strings.TrimSpace(typ)
				if !ok || name == "" || typ == "" {
					return parseErrf(num, "malformed role parameter %q", strings.TrimSpace(part))
				}
				role.Params = append(role.Params, model.Param{Name: name, Type: model.PrimitiveType(typ)})
			}
		}
		if _, dup := p.g.RoleByLabel(role.Label); dup {
			return parseErrf(num, "duplicate role %q", role.Label)
		}
		p.g.Roles = append(p.g.Roles, role)
	}
}

func (p *parser) security() error {
	var body []string
	for {
		line, num, ok := p.next()
		if !ok {
			return parseErrf(num, "unexpected end of input in security section")
		}
		if isSeparator(line) {
			p.g.Security = strings.TrimSpace(strings.Join(body, "\n"))
			return nil
		}
		body = append(body, line)
	}
}

// block parses one scope body: events, a ";" line, then relations and
// spawn blocks. When inBlock is set the body ends at the matching "}";
// otherwise it runs to end of input.
func (p *parser) block(scope string, inBlock bool) error {
	const (
		phaseEvents = iota
		phaseRelations
	)
	phase := phaseEvents
	for {
		line, num, ok := p.next()
		if !ok {
			if inBlock {
				return parseErrf(num, "unterminated spawn block")
			}
			return nil
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case isSeparator(line):
			if phase == phaseRelations {
				return parseErrf(num, "unexpected second %q separator in scope body", ";")
			}
			phase = phaseRelations
		case inBlock && trimmed == "}":
			return nil
		case phase == phaseEvents:
			if err := p.eventDecl(trimmed, num, scope); err != nil {
				return err
			}
		default:
			if m := spawnRe.FindStringSubmatch(trimmed); m != nil {
				if err := p.spawnBlock(m[1], num, scope); err != nil {
					return err
				}
				continue
			}
			if err := p.relationStmt(trimmed, num, scope); err != nil {
				return err
			}
		}
	}
}

func (p *parser) eventDecl(line string, num int, scope string) error {
	m := eventRe.FindStringSubmatch(line)
	if m == nil {
		return parseErrf(num, "malformed event declaration %q", line)
	}
	excluded, pending := m[1] == "%", m[2] == "!"
	label, name, security := m[3], strings.TrimSpace(m[4]), strings.TrimSpace(m[5])

	kind, valueType, expression, err := parseTypeAnnotation(m[6], num)
	if err != nil {
		return err
	}
	initiators, receivers, err := parseParticipants(m[7], num)
	if err != nil {
		return err
	}

	id, err := p.g.AddEvent(model.EventSpec{
		Scope:      scope,
		Label:      label,
		Name:       name,
		Kind:       kind,
		ValueType:  valueType,
		Expression: expression,
		Initiators: initiators,
		Receivers:  receivers,
		Security:   security,
	})
	if err != nil {
		return parseErrf(num, "event %q: %v", label, err)
	}
	ev, _ := p.g.EventByID(id)
	ev.Marking.Included = !excluded
	ev.Marking.Pending = pending
	return nil
}

func parseTypeAnnotation(text string, num int) (model.EventKind, model.ValueType, string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", nil, "", parseErrf(num, "empty type annotation")
	}
	if !strings.HasPrefix(t, "?") {
		// Computation event: the annotation is the expression.
		return model.EventComputation, nil, t, nil
	}
	rest := strings.TrimSpace(t[1:])
	if rest == "" {
		return model.EventInput, model.UnitType{}, "", nil
	}
	if !strings.HasPrefix(rest, ":") {
		return "", nil, "", parseErrf(num, "malformed input type annotation %q", t)
	}
	typ := strings.TrimSpace(rest[1:])
	if strings.HasPrefix(typ, "{") {
		if !strings.HasSuffix(typ, "}") {
			return "", nil, "", parseErrf(num, "unterminated record type %q", typ)
		}
		var record model.RecordType
		for _, part := range strings.Split(typ[1:len(typ)-1], ";") {
			fname, ftype, ok := strings.Cut(part, ":")
			fname, ftype = strings.TrimSpace(fname), strings.TrimSpace(ftype)
			if !ok || fname == "" || ftype == "" {
				return "", nil, "", parseErrf(num, "malformed record field %q", strings.TrimSpace(part))
			}
			record.Fields = append(record.Fields, model.Field{Name: fname, Type: model.PrimitiveType(ftype)})
		}
		if len(record.Fields) == 0 {
			return "", nil, "", parseErrf(num, "empty record type %q", typ)
		}
		return model.EventInput, record, "", nil
	}
	if typ == "" {
		return "", nil, "", parseErrf(num, "missing type after %q", "?:")
	}
	return model.EventInput, model.PrimitiveType(typ), "", nil
}

func parseParticipants(text string, num int) (initiators, receivers []string, err error) {
	initPart, recvPart, hasRecv := strings.Cut(text, "->")
	initiators, err = parseRoleExprList(initPart, num)
	if err != nil {
		return nil, nil, err
	}
	if len(initiators) == 0 {
		return nil, nil, parseErrf(num, "event declares no initiators")
	}
	if hasRecv {
		receivers, err = parseRoleExprList(recvPart, num)
		if err != nil {
			return nil, nil, err
		}
		if len(receivers) == 0 {
			return nil, nil, parseErrf(num, "empty receiver list after %q", "->")
		}
	}
	return initiators, receivers, nil
}

func parseRoleExprList(text string, num int) ([]string, error) {
	var out []string
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := ParseRoleExpr(part); err != nil {
			return nil, parseErrf(num, "%v", err)
		}
		out = append(out, part)
	}
	return out, nil
}

func (p *parser) spawnBlock(trigger string, num int, scope string) error {
	// The trigger resolves in the current scope first, then anywhere.
	ev, ok := p.resolve(trigger, scope)
	if !ok {
		ev, ok = p.g.EventByLabel(trigger)
	}
	if !ok {
		return parseErrf(num, "spawn trigger %q resolves to no event", trigger)
	}
	sub, err := p.g.AddSubprocess(scope)
	if err != nil {
		return parseErrf(num, "spawn block: %v", err)
	}
	if err := p.block(sub, true); err != nil {
		return err
	}
	if _, err := p.g.AddRelation(model.Spawn, ev.ID, sub, ""); err != nil {
		return parseErrf(num, "spawn relation: %v", err)
	}
	return nil
}

func (p *parser) relationStmt(line string, num int, scope string) error {
	m := relationRe.FindStringSubmatch(line)
	if m == nil {
		return parseErrf(num, "malformed relation statement %q", line)
	}
	kind := opTokens[m[2]]
	guard := strings.TrimSpace(m[4])

	sources, err := p.resolveList(m[1], num, scope)
	if err != nil {
		return err
	}
	targets, err := p.resolveList(m[3], num, scope)
	if err != nil {
		return err
	}

	// Comma lists expand to the Cartesian product of individual relations.
	for _, s := range sources {
		for _, t := range targets {
			if _, err := p.g.AddRelation(kind, s, t, guard); err != nil {
				return parseErrf(num, "relation %s %s %s: %v", s, m[2], t, err)
			}
		}
	}
	return nil
}

func (p *parser) resolveList(text string, num int, scope string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(text, ",") {
		label := strings.TrimSpace(part)
		if label == "" {
			return nil, parseErrf(num, "empty label in relation list %q", text)
		}
		ev, ok := p.resolve(label, scope)
		if !ok {
			// Relations expanded across a scope boundary name labels that
			// are not lexically visible here; fall back to a global search.
			ev, ok = p.g.EventByLabel(label)
		}
		if !ok {
			return nil, parseErrf(num, "unknown event label %q", label)
		}
		out = append(out, ev.ID)
	}
	if len(out) == 0 {
		return nil, parseErrf(num, "empty relation side %q", text)
	}
	return out, nil
}

// resolve walks the scope chain outward looking for a label, mirroring the
// scope index's lexical resolution over the partially built graph.
func (p *parser) resolve(label, scope string) (*model.Event, bool) {
	cur := scope
	for {
		for i := range p.g.Events {
			if p.g.Events[i].Scope == cur && p.g.Events[i].Label == label {
				return &p.g.Events[i], true
			}
		}
		if cur == model.GlobalScope {
			return nil, false
		}
		sc, ok := p.g.ScopeByID(cur)
		if !ok {
			return nil, false
		}
		cur = sc.Parent
	}
}
