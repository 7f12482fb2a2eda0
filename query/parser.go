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
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Kind is the shape of the statement a plan executes.
type Kind int

const (
	KindSelect Kind = iota + 1
	KindCount
	KindExists
	KindDelete
	KindModify
)

func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindCount:
		return "count"
	case KindExists:
		return "exists"
	case KindDelete:
		return "delete"
	case KindModify:
		return "modify"
	default:
		return "unknown"
	}
}

// Mutating reports whether statements of this kind change stored data.
func (k Kind) Mutating() bool { return k == KindDelete || k == KindModify }

// Order is one ORDER BY term of a derived query.
type Order struct {
	Path *PropertyPath
	Desc bool
}

func (o Order) String() string {
	if o.Desc {
		return o.Path.String() + " DESC"
	}
	return o.Path.String() + " ASC"
}

// PartTree is the parsed form of a query method name.
type PartTree struct {
	Method    string
	Kind      Kind
	Distinct  bool
	Limit     int
	Predicate Node
	Orders    []Order
}

// Params is the number of method parameters the predicate consumes.
func (t *PartTree) Params() int {
	n := 0
	for _, l := range Leaves(t.Predicate) {
		n += l.Arity()
	}
	return n
}

const (
	orderByToken      = "OrderBy"
	allIgnoreCase     = "AllIgnoreCase"
	allIgnoringCase   = "AllIgnoringCase"
	partIgnoreCase    = "IgnoreCase"
	partIgnoringCase  = "IgnoringCase"
	descendingKeyword = "Desc"
	ascendingKeyword  = "Asc"
	orKeyword         = "Or"
	andKeyword        = "And"
	isKeyword         = "Is"
)

var (
	criteriaPattern = regexp.MustCompile(`^(find|read|get|query|search|stream|count|exists|delete|remove)(\p{Lu}.*?)??By(.*)$`)
	subjectPattern  = regexp.MustCompile(`^(find|read|get|query|search|stream|count|exists|delete|remove)(\p{Lu}.*)?$`)
	limitPattern    = regexp.MustCompile(`(First|Top)(\d*)`)
)

// ParseMethodName parses a repository method name against entity.
//
// The name is a prefix (get, find, read and friends), an optional subject
// (Distinct, First, Top10), By, and a predicate of property segments joined
// by Or/And, each optionally followed by a condition keyword. A trailing
// OrderBy clause sorts the result.
func ParseMethodName(entity *Entity, name string) (*PartTree, error) {
	var prefix, subject, criteria string
	hasCriteria := false
	if m := criteriaPattern.FindStringSubmatch(name); m != nil && !strings.HasSuffix(m[2], "Order") {
		prefix, subject, criteria, hasCriteria = m[1], m[2], m[3], true
	} else if m := subjectPattern.FindStringSubmatch(name); m != nil {
		prefix, subject = m[1], m[2]
		if i := strings.Index(subject, orderByToken); i >= 0 {
			criteria = subject[i:]
			subject = subject[:i]
		}
	} else {
		return nil, methodErr(ErrUnparseableMethodName, name, "method name must start with get, find, read, query, search, stream, count, exists, delete or remove")
	}

	tree := &PartTree{Method: name, Kind: kindOf(prefix)}
	if tree.Kind == KindSelect {
		tree.Distinct = strings.Contains(subject, "Distinct")
		if m := limitPattern.FindStringSubmatch(subject); m != nil {
			tree.Limit = 1
			if m[2] != "" {
				n, err := strconv.Atoi(m[2])
				if err != nil || n < 1 {
					return nil, methodErr(ErrUnparseableMethodName, name, "invalid result limit %q", m[2])
				}
				tree.Limit = n
			}
		}
	}

	if i := strings.Index(criteria, orderByToken); i >= 0 {
		if tree.Kind != KindSelect {
			return nil, methodErr(ErrUnparseableMethodName, name, "OrderBy is only valid on select methods")
		}
		orders, err := parseOrders(entity, name, criteria[i+len(orderByToken):])
		if err != nil {
			return nil, err
		}
		tree.Orders = orders
		criteria = criteria[:i]
	}

	if hasCriteria && criteria == "" && tree.Orders == nil {
		return nil, methodErr(ErrUnparseableMethodName, name, "missing criteria after By")
	}
	if criteria == "" {
		return tree, nil
	}

	allIgnore := false
	for _, suffix := range []string{allIgnoreCase, allIgnoringCase} {
		if strings.HasSuffix(criteria, suffix) {
			criteria = strings.TrimSuffix(criteria, suffix)
			allIgnore = true
			break
		}
	}

	param := 0
	or := &Or{}
	for _, branch := range splitKeyword(criteria, orKeyword) {
		and := &And{}
		for _, part := range splitKeyword(branch, andKeyword) {
			leaf, err := parsePart(entity, name, part, allIgnore)
			if err != nil {
				return nil, err
			}
			leaf.Param = param
			param += leaf.Arity()
			and.Children = append(and.Children, leaf)
		}
		or.Children = append(or.Children, collapse(and))
	}
	tree.Predicate = collapse(or)

	if tree.Kind == KindDelete {
		for _, l := range Leaves(tree.Predicate) {
			if l.Path.Cascaded() {
				return nil, methodErr(ErrUnparseableMethodName, name, "cascaded property %s is not supported in delete methods", l.Path)
			}
		}
	}
	return tree, nil
}

func kindOf(prefix string) Kind {
	switch prefix {
	case "count":
		return KindCount
	case "exists":
		return KindExists
	case "delete", "remove":
		return KindDelete
	default:
		return KindSelect
	}
}

// splitKeyword splits s on kw where kw is followed by an uppercase letter
// and both sides are non-empty.
func splitKeyword(s, kw string) []string {
	var parts []string
	start := 0
	for i := 1; i+len(kw) < len(s); i++ {
		if i > start && strings.HasPrefix(s[i:], kw) && unicode.IsUpper(rune(s[i+len(kw)])) {
			parts = append(parts, s[start:i])
			start = i + len(kw)
			i = start
		}
	}
	return append(parts, s[start:])
}

func parsePart(entity *Entity, method, part string, allIgnore bool) (*Leaf, error) {
	ignore, explicit := allIgnore, false
	for _, suffix := range []string{partIgnoringCase, partIgnoreCase} {
		if strings.HasSuffix(part, suffix) && len(part) > len(suffix) {
			part = strings.TrimSuffix(part, suffix)
			ignore, explicit = true, true
			break
		}
	}

	leaf, err := matchKeyword(entity, part)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	prop := leaf.Path.Property
	switch {
	case leaf.Operator.like() && prop.Type != TypeString:
		return nil, methodErr(ErrUnparseableMethodName, method, "%s requires a string property, %s is %s", leaf.Operator, leaf.Path, prop.Type)
	case (leaf.Operator == OpTrue || leaf.Operator == OpFalse) && prop.Type != TypeBool:
		return nil, methodErr(ErrUnparseableMethodName, method, "%s requires a bool property, %s is %s", leaf.Operator, leaf.Path, prop.Type)
	case explicit && prop.Type != TypeString:
		return nil, methodErr(ErrUnparseableMethodName, method, "IgnoreCase requires a string property, %s is %s", leaf.Path, prop.Type)
	}
	leaf.IgnoreCase = ignore && prop.Type == TypeString && leaf.Operator.Arity() > 0
	return leaf, nil
}

// matchKeyword tries every condition keyword that ends part, longest
// first, and falls back to equality on the whole segment so that
// properties such as checkIn still resolve.
func matchKeyword(entity *Entity, part string) (*Leaf, error) {
	for _, kw := range keywords {
		if !strings.HasSuffix(part, kw.text) || len(part) == len(kw.text) {
			continue
		}
		segment := part[:len(part)-len(kw.text)]
		candidates := []string{segment}
		if trimmed := strings.TrimSuffix(segment, isKeyword); trimmed != segment && trimmed != "" {
			candidates = append(candidates, trimmed)
		}
		for _, c := range candidates {
			if path, err := entity.ResolvePath(c); err == nil {
				return &Leaf{Path: path, Operator: kw.op}, nil
			}
		}
	}
	path, err := entity.ResolvePath(part)
	if err != nil {
		return nil, err
	}
	return &Leaf{Path: path, Operator: OpEquals}, nil
}

func parseOrders(entity *Entity, method, s string) ([]Order, error) {
	if s == "" {
		return nil, methodErr(ErrUnparseableMethodName, method, "missing property after OrderBy")
	}
	var orders []Order
	for s != "" {
		end, dir := -1, ""
	scan:
		for i := 1; i < len(s); i++ {
			for _, d := range []string{descendingKeyword, ascendingKeyword} {
				if strings.HasPrefix(s[i:], d) && (i+len(d) == len(s) || unicode.IsUpper(rune(s[i+len(d)]))) {
					end, dir = i, d
					break scan
				}
			}
		}
		segment := s
		if end >= 0 {
			segment = s[:end]
			s = s[end+len(dir):]
		} else {
			s = ""
		}
		path, err := entity.ResolvePath(segment)
		if err != nil {
			return nil, fmt.Errorf("%s: order by: %w", method, err)
		}
		orders = append(orders, Order{Path: path, Desc: dir == descendingKeyword})
	}
	return orders, nil
}
