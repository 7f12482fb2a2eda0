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
)

// Node is an element of a predicate tree: a *Leaf, *And or *Or.
type Node interface {
	predicateNode()
	String() string
}

// Leaf compares one property path against zero, one or two consecutive
// method parameters starting at Param (zero based).
type Leaf struct {
	Path       *PropertyPath
	Operator   Operator
	Param      int
	IgnoreCase bool
}

// And is satisfied when every child is.
type And struct{ Children []Node }

// Or is satisfied when any child is.
type Or struct{ Children []Node }

func (*Leaf) predicateNode() {}
func (*And) predicateNode()  {}
func (*Or) predicateNode()   {}

// Arity is the number of parameters the leaf consumes.
func (l *Leaf) Arity() int { return l.Operator.Arity() }

func (l *Leaf) String() string {
	prop := l.Path.String()
	p1, p2 := fmt.Sprintf("?%d", l.Param+1), fmt.Sprintf("?%d", l.Param+2)
	if l.IgnoreCase {
		prop = "UPPER(" + prop + ")"
		p1, p2 = "UPPER("+p1+")", "UPPER("+p2+")"
	}
	switch l.Operator {
	case OpStartingWith:
		return prop + " LIKE " + p1 + "%"
	case OpEndingWith:
		return prop + " LIKE %" + p1
	case OpContaining:
		return prop + " LIKE %" + p1 + "%"
	case OpIn, OpNotIn:
		return prop + " " + l.Operator.Desc() + " (" + p1 + ")"
	case OpBetween:
		return prop + " BETWEEN " + p1 + " AND " + p2
	case OpIsNull, OpIsNotNull, OpTrue, OpFalse:
		return prop + " " + l.Operator.Desc()
	default:
		return prop + " " + l.Operator.Desc() + " " + p1
	}
}

func (a *And) String() string { return joinNodes(a.Children, " AND ", false) }

func (o *Or) String() string { return joinNodes(o.Children, " OR ", true) }

func joinNodes(nodes []Node, sep string, or bool) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		s := n.String()
		if _, nested := n.(*Or); nested && !or {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, sep)
}

// Leaves returns the leaves of the tree left to right.
func Leaves(n Node) []*Leaf {
	var out []*Leaf
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *Leaf:
			out = append(out, v)
		case *And:
			for _, c := range v.Children {
				walk(c)
			}
		case *Or:
			for _, c := range v.Children {
				walk(c)
			}
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// collapse unwraps connectors with a single child.
func collapse(n Node) Node {
	switch v := n.(type) {
	case *And:
		if len(v.Children) == 1 {
			return collapse(v.Children[0])
		}
	case *Or:
		if len(v.Children) == 1 {
			return collapse(v.Children[0])
		}
	}
	return n
}
