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
	"strings"

	"github.com/uptrace/bun"
)

// likeEscape is the escape character emitted with every generated LIKE
// whose operand is wrapped in wildcards.
const likeEscape = "!"

var likeReplacer = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

// EscapeLike escapes LIKE metacharacters in s for use with ESCAPE '!'.
func EscapeLike(s string) string { return likeReplacer.Replace(s) }

// Bound is a plan with one call's argument values attached.
type Bound struct {
	Plan *Plan
	Args []any
}

// Bind checks args against the plan's declared parameters and attaches
// them. Arity is checked first, then each value's semantic type.
func (p *Plan) Bind(args ...any) (*Bound, error) {
	params := p.Method.Params
	if len(args) != len(params) {
		return nil, methodErr(ErrArityMismatch, p.Method.Name, "expected %d arguments, got %d", len(params), len(args))
	}
	for i, arg := range args {
		if err := checkValue(params[i], arg); err != nil {
			return nil, methodErr(ErrTypeMismatch, p.Method.Name, "argument %d (%s): %v", i+1, params[i].Name, err)
		}
	}
	return &Bound{Plan: p, Args: args}, nil
}

func checkValue(param Param, v any) error {
	t, collection, ok := valueType(v)
	if !ok {
		return fmt.Errorf("unsupported value %T", v)
	}
	if v == nil || t == TypeUnknown && !collection {
		if param.Type.Collection {
			return fmt.Errorf("nil is not a %s", param.Type)
		}
		return nil
	}
	if collection != param.Type.Collection {
		return fmt.Errorf("%T is not a %s", v, param.Type)
	}
	if !param.Type.Type.accepts(t) {
		return fmt.Errorf("%T is not a %s", v, param.Type)
	}
	return nil
}

// Where compiles the derived predicate into a Bun WHERE fragment. Column
// references travel as bun.Ident and values as arguments; nothing is
// interpolated. An empty predicate yields "".
func (b *Bound) Where() (string, []any) {
	if b.Plan.Tree == nil || b.Plan.Tree.Predicate == nil {
		return "", nil
	}
	c := &compiler{root: b.Plan.Entity, values: b.Args}
	return c.node(b.Plan.Tree.Predicate), c.args
}

type compiler struct {
	root   *Entity
	values []any
	args   []any
}

func (c *compiler) node(n Node) string {
	switch v := n.(type) {
	case *Leaf:
		return c.leaf(v)
	case *And:
		parts := make([]string, len(v.Children))
		for i, child := range v.Children {
			s := c.node(child)
			if _, ok := child.(*Or); ok {
				s = "(" + s + ")"
			}
			parts[i] = s
		}
		return strings.Join(parts, " AND ")
	case *Or:
		parts := make([]string, len(v.Children))
		for i, child := range v.Children {
			parts[i] = c.node(child)
		}
		return strings.Join(parts, " OR ")
	}
	return ""
}

func (c *compiler) leaf(l *Leaf) string {
	col := bun.Ident(l.Path.columnRef(c.root))
	var v any
	if l.Arity() > 0 {
		v = c.values[l.Param]
	}
	lhs := "?"
	if l.IgnoreCase {
		lhs = "UPPER(?)"
	}
	rhs := lhs

	switch l.Operator {
	case OpEquals, OpNotEquals:
		if isNil(v) {
			c.args = append(c.args, col)
			if l.Operator == OpEquals {
				return "? IS NULL"
			}
			return "? IS NOT NULL"
		}
		c.args = append(c.args, col, v)
		return lhs + " " + l.Operator.Desc() + " " + rhs
	case OpLessThan, OpLessThanEqual, OpGreaterThan, OpGreaterThanEqual:
		c.args = append(c.args, col, v)
		return lhs + " " + l.Operator.Desc() + " " + rhs
	case OpBetween:
		c.args = append(c.args, col, v, c.values[l.Param+1])
		return lhs + " BETWEEN " + rhs + " AND " + rhs
	case OpLike, OpNotLike:
		c.args = append(c.args, col, v)
		return lhs + " " + l.Operator.Desc() + " " + rhs
	case OpStartingWith, OpEndingWith, OpContaining:
		c.args = append(c.args, col, wrapLike(stringValue(v), l.Operator != OpStartingWith, l.Operator != OpEndingWith))
		return lhs + " LIKE " + rhs + " ESCAPE '" + likeEscape + "'"
	case OpIn, OpNotIn:
		if collectionLen(v) == 0 {
			if l.Operator == OpIn {
				return "1 = 0"
			}
			return "1 = 1"
		}
		if !l.IgnoreCase {
			c.args = append(c.args, col, bun.In(v))
			return "? " + l.Operator.Desc() + " (?)"
		}
		// bun.In cannot wrap its elements, so each one gets its own UPPER.
		rv := reflect.Indirect(reflect.ValueOf(v))
		items := make([]string, rv.Len())
		c.args = append(c.args, col)
		for i := range items {
			items[i] = rhs
			c.args = append(c.args, rv.Index(i).Interface())
		}
		return lhs + " " + l.Operator.Desc() + " (" + strings.Join(items, ", ") + ")"
	case OpIsNull, OpIsNotNull:
		c.args = append(c.args, col)
		return "? " + l.Operator.Desc()
	case OpTrue, OpFalse:
		c.args = append(c.args, col, l.Operator == OpTrue)
		return "? = ?"
	}
	return ""
}

func wrapLike(s string, prefix, suffix bool) string {
	s = EscapeLike(s)
	if prefix {
		s = "%" + s
	}
	if suffix {
		s += "%"
	}
	return s
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

func stringValue(v any) string {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	if rv.IsValid() && rv.Kind() == reflect.String {
		return rv.String()
	}
	return fmt.Sprint(v)
}

func collectionLen(v any) int {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return 0
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len()
	}
	return 0
}
