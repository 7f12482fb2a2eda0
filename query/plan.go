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
	"strings"

	"github.com/tomoncle/derive/types"
)

// Plan is the immutable, reusable result of deriving a method: either a
// parsed PartTree or a resolved annotated Statement. Only the values bound
// per call vary.
type Plan struct {
	Method    Method
	Entity    *Entity
	Kind      Kind
	Tree      *PartTree
	Statement *Statement
}

// Derive builds the plan for m on entity and performs every check that
// does not need argument values: name parsing, placeholder resolution,
// parameter count and types, and the mutating gate.
func Derive(entity *Entity, m Method) (*Plan, error) {
	if entity == nil {
		return nil, fmt.Errorf("%s: entity cannot be nil", m.Name)
	}
	if m.Annotated() {
		return deriveAnnotated(entity, m)
	}

	tree, err := ParseMethodName(entity, m.Name)
	if err != nil {
		return nil, err
	}
	switch {
	case tree.Kind.Mutating() && !m.Modifying:
		return nil, methodErr(ErrReadOnlyViolation, m.Name, "%s method must be declared modifying", tree.Kind)
	case !tree.Kind.Mutating() && m.Modifying:
		return nil, methodErr(ErrInvalidQuery, m.Name, "%s method cannot be declared modifying", tree.Kind)
	}
	if err := checkDeclaredParams(m, Leaves(tree.Predicate)); err != nil {
		return nil, err
	}
	return &Plan{Method: m, Entity: entity, Kind: tree.Kind, Tree: tree}, nil
}

func deriveAnnotated(entity *Entity, m Method) (*Plan, error) {
	stmt, err := ResolveAnnotated(entity, m)
	if err != nil {
		return nil, err
	}
	kind := KindSelect
	if stmt.Kind != StmtSelect {
		kind = KindModify
	}
	switch {
	case kind.Mutating() && !m.Modifying:
		return nil, methodErr(ErrReadOnlyViolation, m.Name, "%s statement requires a modifying declaration", stmt.Kind)
	case !kind.Mutating() && m.Modifying:
		return nil, methodErr(ErrInvalidQuery, m.Name, "modifying declaration requires an UPDATE, DELETE or INSERT statement")
	}
	return &Plan{Method: m, Entity: entity, Kind: kind, Statement: stmt}, nil
}

// checkDeclaredParams matches the declared parameters against the leaves
// in order: counts must agree and each parameter type must suit its
// property and operator.
func checkDeclaredParams(m Method, leaves []*Leaf) error {
	want := 0
	for _, l := range leaves {
		want += l.Arity()
	}
	if want != len(m.Params) {
		return methodErr(ErrArityMismatch, m.Name, "predicate consumes %d parameters, %d declared", want, len(m.Params))
	}
	for _, l := range leaves {
		for k := 0; k < l.Arity(); k++ {
			p := m.Params[l.Param+k]
			prop := l.Path.Property
			if p.Type.Collection != l.Operator.collection() {
				return methodErr(ErrTypeMismatch, m.Name, "parameter %q (%s) cannot be used with %s on %s", p.Name, p.Type, l.Operator, l.Path)
			}
			if !prop.Type.accepts(p.Type.Type) {
				return methodErr(ErrTypeMismatch, m.Name, "parameter %q is %s but %s is %s", p.Name, p.Type, l.Path, prop.Type)
			}
		}
	}
	return nil
}

// Annotated reports whether the plan runs an explicit query string.
func (p *Plan) Annotated() bool { return p.Statement != nil }

// Relations lists the Bun relation names a derived plan must join, in
// first-use order.
func (p *Plan) Relations() []string {
	if p.Tree == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	add := func(path *PropertyPath) {
		if !path.Cascaded() {
			return
		}
		name := path.relationName()
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, l := range Leaves(p.Tree.Predicate) {
		add(l.Path)
	}
	for _, o := range p.Tree.Orders {
		add(o.Path)
	}
	return out
}

// OrderRefs returns the qualified ORDER BY columns and directions of a
// derived select. Without an explicit order the primary key ascends.
func (p *Plan) OrderRefs() []OrderRef {
	if p.Tree == nil {
		return nil
	}
	if len(p.Tree.Orders) == 0 {
		if pk := p.Entity.PrimaryKey(); pk != nil {
			return []OrderRef{{Column: p.Entity.Alias + "." + pk.Column}}
		}
		return nil
	}
	refs := make([]OrderRef, len(p.Tree.Orders))
	for i, o := range p.Tree.Orders {
		refs[i] = OrderRef{Column: o.Path.columnRef(p.Entity), Desc: o.Desc}
	}
	return refs
}

// OrderRef is a qualified column to sort by.
type OrderRef struct {
	Column string
	Desc   bool
}

// String renders the plan for humans, e.g.
// "select Person where lastName LIKE ?1% AND id < ?2".
func (p *Plan) String() string {
	if p.Statement != nil {
		mode := "entity"
		if p.Statement.Native {
			mode = "native"
		}
		return fmt.Sprintf("%s %s [%s] %s", p.Kind, p.Entity.Name, mode, p.Statement.SQL)
	}
	var b strings.Builder
	b.WriteString(p.Kind.String())
	if p.Tree.Distinct {
		b.WriteString(" distinct")
	}
	b.WriteString(" ")
	b.WriteString(p.Entity.Name)
	if p.Tree.Predicate != nil {
		b.WriteString(" where ")
		b.WriteString(p.Tree.Predicate.String())
	}
	if len(p.Tree.Orders) > 0 {
		parts := make([]string, len(p.Tree.Orders))
		for i, o := range p.Tree.Orders {
			parts[i] = o.String()
		}
		b.WriteString(" order by ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if p.Tree.Limit > 0 {
		fmt.Fprintf(&b, " limit %d", p.Tree.Limit)
	}
	return b.String()
}

// Describe returns a JSON-friendly summary of the plan.
func (p *Plan) Describe() types.JsonObject {
	out := types.JsonObject{
		"method":    p.Method.Name,
		"entity":    p.Entity.Name,
		"kind":      p.Kind.String(),
		"modifying": p.Kind.Mutating(),
		"plan":      p.String(),
	}
	if p.Tree != nil && p.Tree.Predicate != nil {
		out["predicate"] = p.Tree.Predicate.String()
		out["relations"] = p.Relations()
	}
	if p.Statement != nil {
		out["sql"] = p.Statement.SQL
		out["native"] = p.Statement.Native
	}
	return out
}
