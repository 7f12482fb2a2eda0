/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package query

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/uptrace/bun"
)

// StatementKind is the leading verb of an annotated query.
type StatementKind int

const (
	StmtSelect StatementKind = iota + 1
	StmtUpdate
	StmtDelete
	StmtInsert
)

func (k StatementKind) String() string {
	switch k {
	case StmtSelect:
		return "SELECT"
	case StmtUpdate:
		return "UPDATE"
	case StmtDelete:
		return "DELETE"
	case StmtInsert:
		return "INSERT"
	default:
		return "UNKNOWN"
	}
}

// Statement is a resolved annotated query. SQL carries one Bun "?" per
// placeholder occurrence; bindings map each back to a method parameter.
type Statement struct {
	Text     string
	SQL      string
	Kind     StatementKind
	Native   bool
	bindings []binding
}

type binding struct {
	param  int
	prefix bool
	suffix bool
}

// Args expands call values into the per-occurrence argument list for SQL.
// Wildcard-wrapped values are escaped; collections expand through bun.In.
func (s *Statement) Args(values []any) ([]any, error) {
	out := make([]any, len(s.bindings))
	for i, b := range s.bindings {
		if b.param >= len(values) {
			return nil, fmt.Errorf("%w: placeholder %d has no value", ErrArityMismatch, b.param+1)
		}
		v := values[b.param]
		switch {
		case b.prefix || b.suffix:
			if _, _, ok := valueType(v); !ok || isNil(v) {
				return nil, fmt.Errorf("%w: wildcard placeholder %d needs a string", ErrTypeMismatch, b.param+1)
			}
			out[i] = wrapLike(stringValue(v), b.prefix, b.suffix)
		case isSlice(v):
			out[i] = bun.In(v)
		default:
			out[i] = v
		}
	}
	return out, nil
}

// SQL returns the statement and its arguments for this call.
func (b *Bound) SQL() (string, []any, error) {
	if b.Plan.Statement == nil {
		return "", nil, fmt.Errorf("%s: plan is derived, not annotated", b.Plan.Method.Name)
	}
	args, err := b.Plan.Statement.Args(b.Args)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", b.Plan.Method.Name, err)
	}
	return b.Plan.Statement.SQL, args, nil
}

func isSlice(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return (k == reflect.Slice || k == reflect.Array) && reflect.TypeOf(v).Elem().Kind() != reflect.Uint8
}

type tokenKind int

const (
	tokSpace tokenKind = iota
	tokWord
	tokQuoted
	tokPositional
	tokNamed
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
	// position for tokPositional (0 when bare "?"), name for tokNamed
	pos  int
	name string
}

func tokenize(q string) ([]token, error) {
	var toks []token
	rs := []rune(q)
	for i := 0; i < len(rs); {
		c := rs[i]
		start := i
		switch {
		case unicode.IsSpace(c):
			for i < len(rs) && unicode.IsSpace(rs[i]) {
				i++
			}
			toks = append(toks, token{kind: tokSpace, text: string(rs[start:i])})
		case c == '\'' || c == '"' || c == '`':
			i++
			for {
				if i >= len(rs) {
					return nil, fmt.Errorf("%w: unterminated literal at offset %d", ErrInvalidQuery, start)
				}
				if rs[i] == c {
					if i+1 < len(rs) && rs[i+1] == c {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			toks = append(toks, token{kind: tokQuoted, text: string(rs[start:i])})
		case c == '?':
			i++
			for i < len(rs) && unicode.IsDigit(rs[i]) {
				i++
			}
			pos := 0
			if i > start+1 {
				pos, _ = strconv.Atoi(string(rs[start+1 : i]))
				if pos < 1 {
					return nil, fmt.Errorf("%w: placeholder %s", ErrInvalidQuery, string(rs[start:i]))
				}
			}
			toks = append(toks, token{kind: tokPositional, text: string(rs[start:i]), pos: pos})
		case c == ':' && i+1 < len(rs) && rs[i+1] == ':':
			i += 2
			toks = append(toks, token{kind: tokSymbol, text: "::"})
		case c == ':' && i+1 < len(rs) && isIdentStart(rs[i+1]):
			i++
			for i < len(rs) && isIdentPart(rs[i]) {
				i++
			}
			toks = append(toks, token{kind: tokNamed, text: string(rs[start:i]), name: string(rs[start+1 : i])})
		case isIdentStart(c):
			for i < len(rs) && (isIdentPart(rs[i]) || rs[i] == '.' && i+1 < len(rs) && isIdentStart(rs[i+1])) {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: string(rs[start:i])})
		default:
			i++
			toks = append(toks, token{kind: tokSymbol, text: string(c)})
		}
	}
	return toks, nil
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

// aliasStop lists words that may follow a table name but are never its
// alias.
var aliasStop = map[string]bool{
	"WHERE": true, "SET": true, "JOIN": true, "LEFT": true, "RIGHT": true,
	"INNER": true, "OUTER": true, "CROSS": true, "FULL": true, "ON": true,
	"ORDER": true, "GROUP": true, "HAVING": true, "LIMIT": true, "OFFSET": true,
	"UNION": true, "VALUES": true, "USING": true, "RETURNING": true,
}

// ResolveAnnotated resolves m.Query against entity: placeholders are
// bound to declared parameters and, unless m.Native, entity names and
// property paths are translated to tables and columns.
func ResolveAnnotated(entity *Entity, m Method) (*Statement, error) {
	toks, err := tokenize(strings.TrimSpace(m.Query))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	stmt := &Statement{Text: m.Query, Native: m.Native, Kind: classify(toks)}
	if stmt.Kind == 0 {
		return nil, methodErr(ErrInvalidQuery, m.Name, "cannot determine statement kind of %q", m.Query)
	}

	r := &resolver{method: m, entity: entity, kind: stmt.Kind, toks: toks, drop: map[int]bool{}}
	if err := r.bindPlaceholders(stmt); err != nil {
		return nil, err
	}
	if !m.Native {
		if err := r.declarations(); err != nil {
			return nil, err
		}
	}
	out, err := r.render()
	if err != nil {
		return nil, err
	}
	stmt.SQL = out
	return stmt, nil
}

// classify returns the kind of the statement in toks. A WITH statement
// takes the kind of its first top-level verb after the CTE list, and is
// mutating when any CTE body updates, deletes or inserts.
func classify(toks []token) StatementKind {
	first := -1
	for i, t := range toks {
		if t.kind == tokWord {
			first = i
			break
		}
	}
	if first < 0 {
		return 0
	}
	if !strings.EqualFold(toks[first].text, "WITH") {
		return statementKind(toks[first].text)
	}

	var top, nested StatementKind
	depth := 0
	for _, t := range toks[first+1:] {
		switch t.kind {
		case tokSymbol:
			switch t.text {
			case "(":
				depth++
			case ")":
				depth--
			}
		case tokWord:
			k := statementKind(t.text)
			if k == 0 {
				continue
			}
			if depth > 0 {
				if k != StmtSelect && nested == 0 {
					nested = k
				}
			} else if top == 0 {
				top = k
			}
		}
	}
	if top == StmtSelect && nested != 0 {
		return nested
	}
	return top
}

func statementKind(word string) StatementKind {
	switch strings.ToUpper(word) {
	case "SELECT":
		return StmtSelect
	case "UPDATE":
		return StmtUpdate
	case "DELETE":
		return StmtDelete
	case "INSERT":
		return StmtInsert
	}
	return 0
}

type resolver struct {
	method  Method
	entity  *Entity
	kind    StatementKind
	toks    []token
	drop    map[int]bool
	tables  map[int]*Entity
	aliases map[string]*Entity
	first   *Entity
	likeEnd map[int]bool
}

// bindPlaceholders resolves every placeholder occurrence to a parameter
// index and records wildcard neighbours.
func (r *resolver) bindPlaceholders(stmt *Statement) error {
	var named, positional bool
	next := 0
	r.likeEnd = map[int]bool{}
	for i, t := range r.toks {
		var idx int
		switch t.kind {
		case tokNamed:
			named = true
			idx = r.method.paramIndex(t.name)
			if idx < 0 {
				return methodErr(ErrUnboundNamedParameter, r.method.Name, "no parameter named %q", t.name)
			}
		case tokPositional:
			positional = true
			if t.pos == 0 {
				idx = next
				next++
			} else {
				idx = t.pos - 1
			}
			if idx >= len(r.method.Params) {
				return methodErr(ErrArityMismatch, r.method.Name, "placeholder %s exceeds %d declared parameters", t.text, len(r.method.Params))
			}
		default:
			continue
		}
		if named && positional {
			return methodErr(ErrInvalidQuery, r.method.Name, "named and positional placeholders cannot be mixed")
		}
		b := binding{param: idx}
		if i > 0 && r.toks[i-1].kind == tokSymbol && r.toks[i-1].text == "%" {
			b.prefix = true
			r.drop[i-1] = true
		}
		if i+1 < len(r.toks) && r.toks[i+1].kind == tokSymbol && r.toks[i+1].text == "%" {
			b.suffix = true
			r.drop[i+1] = true
		}
		if b.prefix || b.suffix {
			if pt := r.method.Params[idx].Type; pt.Collection || pt.Type != TypeString {
				return methodErr(ErrTypeMismatch, r.method.Name, "wildcard placeholder %s needs a string parameter", t.text)
			}
			r.likeEnd[i] = true
		}
		stmt.bindings = append(stmt.bindings, b)
	}
	return nil
}

func (r *resolver) prevWord(i int) (int, string) {
	for j := i - 1; j >= 0; j-- {
		switch r.toks[j].kind {
		case tokSpace:
			continue
		case tokWord:
			return j, strings.ToUpper(r.toks[j].text)
		default:
			return j, ""
		}
	}
	return -1, ""
}

func (r *resolver) nextSignificant(i int) int {
	for j := i + 1; j < len(r.toks); j++ {
		if r.toks[j].kind != tokSpace {
			return j
		}
	}
	return -1
}

// declarations finds entity references after FROM, JOIN, UPDATE and INTO
// together with their aliases.
func (r *resolver) declarations() error {
	known := map[string]*Entity{}
	var collect func(e *Entity)
	collect = func(e *Entity) {
		if _, ok := known[e.Name]; ok {
			return
		}
		known[e.Name] = e
		for _, rel := range e.Relationships() {
			collect(rel.Target)
		}
	}
	collect(r.entity)

	r.tables = map[int]*Entity{}
	r.aliases = map[string]*Entity{}
	for i, t := range r.toks {
		if t.kind != tokWord {
			continue
		}
		e, ok := known[t.text]
		if !ok {
			continue
		}
		if _, w := r.prevWord(i); w != "FROM" && w != "JOIN" && w != "UPDATE" && w != "INTO" {
			continue
		}
		r.tables[i] = e
		if r.first == nil {
			r.first = e
		}
		j := r.nextSignificant(i)
		if j < 0 || r.toks[j].kind != tokWord {
			continue
		}
		hasAs := strings.EqualFold(r.toks[j].text, "AS")
		if hasAs {
			j = r.nextSignificant(j)
			if j < 0 || r.toks[j].kind != tokWord {
				return methodErr(ErrInvalidQuery, r.method.Name, "missing alias after AS")
			}
		}
		if aliasStop[strings.ToUpper(r.toks[j].text)] {
			continue
		}
		r.aliases[r.toks[j].text] = e
		if r.kind == StmtUpdate || r.kind == StmtDelete {
			for k := i + 1; k <= j; k++ {
				r.drop[k] = true
			}
		}
	}
	if r.first == nil {
		r.first = r.entity
	}
	return nil
}

func (r *resolver) render() (string, error) {
	var b strings.Builder
	for i, t := range r.toks {
		if r.drop[i] {
			continue
		}
		switch t.kind {
		case tokNamed, tokPositional:
			b.WriteByte('?')
			if r.likeEnd[i] {
				b.WriteString(" ESCAPE '" + likeEscape + "'")
			}
		case tokWord:
			if r.method.Native {
				b.WriteString(t.text)
				continue
			}
			s, err := r.translate(i, t.text)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		default:
			b.WriteString(t.text)
		}
	}
	return b.String(), nil
}

// translate maps one word of a non-native query onto SQL.
func (r *resolver) translate(i int, word string) (string, error) {
	if e, ok := r.tables[i]; ok {
		return e.Table, nil
	}
	bare := r.kind == StmtUpdate || r.kind == StmtDelete

	if dot := strings.IndexByte(word, '.'); dot > 0 {
		head, rest := word[:dot], word[dot+1:]
		e, ok := r.aliases[head]
		if !ok {
			return word, nil
		}
		prop, ok := e.Lookup(rest)
		if !ok {
			return "", methodErr(ErrUnparseableMethodName, r.method.Name, "no property %q found on %s", rest, e.Name)
		}
		if bare {
			return prop.Column, nil
		}
		return head + "." + prop.Column, nil
	}

	if e, ok := r.aliases[word]; ok && !r.isDeclaredAlias(i) {
		if _, w := r.prevWord(i); w == "SELECT" || w == "DISTINCT" {
			return word + ".*", nil
		}
		if pk := e.PrimaryKey(); pk != nil {
			return word + "." + pk.Column, nil
		}
		return word, nil
	}

	if j := r.nextSignificant(i); j >= 0 && r.toks[j].text == "(" {
		return word, nil
	}
	if prop, ok := r.first.Lookup(word); ok {
		return prop.Column, nil
	}
	return word, nil
}

// isDeclaredAlias reports whether the word at i is the alias that follows
// a table reference (optionally after AS).
func (r *resolver) isDeclaredAlias(i int) bool {
	j, w := r.prevWord(i)
	if w == "AS" {
		j, _ = r.prevWord(j)
	}
	if j < 0 {
		return false
	}
	_, ok := r.tables[j]
	return ok
}
