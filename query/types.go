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
	"time"

	"github.com/tomoncle/derive/types"
)

// SemanticType is the storage-independent type of an entity property or
// method parameter.
type SemanticType int

const (
	TypeUnknown SemanticType = iota
	TypeString
	TypeInteger
	TypeFloat
	TypeBool
	TypeDate
)

var _ types.BaseEnum = TypeString

var semanticTypeNames = map[SemanticType]string{
	TypeString:  "string",
	TypeInteger: "int",
	TypeFloat:   "float",
	TypeBool:    "bool",
	TypeDate:    "date",
}

func (t SemanticType) IsValid() bool {
	_, ok := semanticTypeNames[t]
	return ok
}

func (t SemanticType) Number() int {
	if !t.IsValid() {
		return types.IllegalValue
	}
	return int(t)
}

func (t SemanticType) Name() string {
	if name, ok := semanticTypeNames[t]; ok {
		return name
	}
	return types.IllegalName
}

func (t SemanticType) String() string { return t.Name() }

func (t SemanticType) Desc() string {
	switch t {
	case TypeString:
		return "character data"
	case TypeInteger:
		return "whole number"
	case TypeFloat:
		return "floating point number"
	case TypeBool:
		return "boolean flag"
	case TypeDate:
		return "date and time"
	default:
		return types.IllegalDesc
	}
}

// accepts reports whether a value of type v may be compared with a
// property of type t. Integers widen to floats.
func (t SemanticType) accepts(v SemanticType) bool {
	if t == v {
		return true
	}
	return t == TypeFloat && v == TypeInteger
}

var timeType = reflect.TypeOf(time.Time{})

// SemanticTypeOf maps a Go type onto a semantic type. Pointers are
// dereferenced; unsupported kinds yield TypeUnknown.
func SemanticTypeOf(typ reflect.Type) SemanticType {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == timeType || typ.ConvertibleTo(timeType) && typ.Kind() == reflect.Struct {
		return TypeDate
	}
	switch typ.Kind() {
	case reflect.String:
		return TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.Bool:
		return TypeBool
	default:
		return TypeUnknown
	}
}

// ParamType is the declared type of a method parameter: a semantic type,
// optionally as a collection (List<String> and friends).
type ParamType struct {
	Type       SemanticType
	Collection bool
}

var (
	StringParam  = ParamType{Type: TypeString}
	IntegerParam = ParamType{Type: TypeInteger}
	FloatParam   = ParamType{Type: TypeFloat}
	BoolParam    = ParamType{Type: TypeBool}
	DateParam    = ParamType{Type: TypeDate}
)

// ListOf returns the collection form of a parameter type.
func ListOf(p ParamType) ParamType {
	return ParamType{Type: p.Type, Collection: true}
}

func (p ParamType) String() string {
	if p.Collection {
		return "[]" + p.Type.Name()
	}
	return p.Type.Name()
}

// ParseParamType parses the textual form used in declaration files:
// "string", "int", "date", "[]string", "list<int>".
func ParseParamType(s string) (ParamType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	var collection bool
	switch {
	case strings.HasPrefix(s, "[]"):
		collection, s = true, s[2:]
	case strings.HasPrefix(s, "list<") && strings.HasSuffix(s, ">"):
		collection, s = true, s[5:len(s)-1]
	}
	var t SemanticType
	switch s {
	case "string", "text":
		t = TypeString
	case "int", "integer", "long", "int64":
		t = TypeInteger
	case "float", "double", "float64":
		t = TypeFloat
	case "bool", "boolean":
		t = TypeBool
	case "date", "time", "datetime", "timestamp":
		t = TypeDate
	default:
		return ParamType{}, fmt.Errorf("unknown parameter type %q, want one of %s", s,
			strings.Join(types.EnumNames(TypeString, TypeInteger, TypeFloat, TypeBool, TypeDate), ", "))
	}
	return ParamType{Type: t, Collection: collection}, nil
}

func (p ParamType) MarshalYAML() (interface{}, error) { return p.String(), nil }

func (p *ParamType) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseParamType(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// valueType reports the semantic type of a runtime value. nil is reported
// as TypeUnknown with ok=true so callers can treat it as SQL NULL.
func valueType(v any) (t SemanticType, collection bool, ok bool) {
	if v == nil {
		return TypeUnknown, false, true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return TypeUnknown, false, true
		}
		rv = rv.Elem()
	}
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		elem := SemanticTypeOf(rv.Type().Elem())
		return elem, true, elem != TypeUnknown
	}
	t = SemanticTypeOf(rv.Type())
	return t, false, t != TypeUnknown
}

// Operator is a comparison applied by a predicate leaf.
type Operator int

const (
	OpEquals Operator = iota + 1
	OpNotEquals
	OpLessThan
	OpLessThanEqual
	OpGreaterThan
	OpGreaterThanEqual
	OpBetween
	OpLike
	OpNotLike
	OpStartingWith
	OpEndingWith
	OpContaining
	OpIn
	OpNotIn
	OpIsNull
	OpIsNotNull
	OpTrue
	OpFalse
)

var _ types.BaseEnum = OpEquals

var operatorNames = map[Operator]string{
	OpEquals:           "Equals",
	OpNotEquals:        "Not",
	OpLessThan:         "LessThan",
	OpLessThanEqual:    "LessThanEqual",
	OpGreaterThan:      "GreaterThan",
	OpGreaterThanEqual: "GreaterThanEqual",
	OpBetween:          "Between",
	OpLike:             "Like",
	OpNotLike:          "NotLike",
	OpStartingWith:     "StartingWith",
	OpEndingWith:       "EndingWith",
	OpContaining:       "Containing",
	OpIn:               "In",
	OpNotIn:            "NotIn",
	OpIsNull:           "IsNull",
	OpIsNotNull:        "IsNotNull",
	OpTrue:             "True",
	OpFalse:            "False",
}

func (o Operator) IsValid() bool {
	_, ok := operatorNames[o]
	return ok
}

func (o Operator) Number() int {
	if !o.IsValid() {
		return types.IllegalValue
	}
	return int(o)
}

func (o Operator) Name() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return types.IllegalName
}

func (o Operator) String() string { return o.Name() }

func (o Operator) Desc() string {
	switch o {
	case OpEquals:
		return "="
	case OpNotEquals:
		return "<>"
	case OpLessThan:
		return "<"
	case OpLessThanEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanEqual:
		return ">="
	case OpBetween:
		return "BETWEEN"
	case OpLike, OpStartingWith, OpEndingWith, OpContaining:
		return "LIKE"
	case OpNotLike:
		return "NOT LIKE"
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	case OpTrue:
		return "= TRUE"
	case OpFalse:
		return "= FALSE"
	default:
		return types.IllegalDesc
	}
}

// Arity is the number of method parameters the operator consumes.
func (o Operator) Arity() int {
	switch o {
	case OpBetween:
		return 2
	case OpIsNull, OpIsNotNull, OpTrue, OpFalse:
		return 0
	default:
		return 1
	}
}

func (o Operator) collection() bool { return o == OpIn || o == OpNotIn }

func (o Operator) like() bool {
	switch o {
	case OpLike, OpNotLike, OpStartingWith, OpEndingWith, OpContaining:
		return true
	}
	return false
}

// keyword maps a method-name suffix onto its operator. Several spellings
// share an operator.
type keyword struct {
	text string
	op   Operator
}

// keywords is ordered longest first so that LessThanEqual wins over
// LessThan and NotIn over In.
var keywords = sortKeywords([]keyword{
	{"IsNotNull", OpIsNotNull},
	{"NotNull", OpIsNotNull},
	{"IsNull", OpIsNull},
	{"Null", OpIsNull},
	{"LessThanEqual", OpLessThanEqual},
	{"LessThan", OpLessThan},
	{"GreaterThanEqual", OpGreaterThanEqual},
	{"GreaterThan", OpGreaterThan},
	{"Before", OpLessThan},
	{"After", OpGreaterThan},
	{"Between", OpBetween},
	{"NotLike", OpNotLike},
	{"Like", OpLike},
	{"StartingWith", OpStartingWith},
	{"StartsWith", OpStartingWith},
	{"EndingWith", OpEndingWith},
	{"EndsWith", OpEndingWith},
	{"Containing", OpContaining},
	{"Contains", OpContaining},
	{"NotIn", OpNotIn},
	{"In", OpIn},
	{"True", OpTrue},
	{"False", OpFalse},
	{"IsNot", OpNotEquals},
	{"Not", OpNotEquals},
	{"Equals", OpEquals},
	{"Is", OpEquals},
})

func sortKeywords(kws []keyword) []keyword {
	out := make([]keyword, len(kws))
	copy(out, kws)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j].text) > len(out[j-1].text); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
